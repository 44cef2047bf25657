package worker

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamu-vscl/dfti/internal/broadcast"
	"github.com/tamu-vscl/dfti/internal/mavlink"
	"github.com/tamu-vscl/dfti/internal/sensordata"
)

// discardPort is a no-op io.ReadWriteCloser standing in for the
// autopilot's serial port in tests that only exercise dispatch logic.
type discardPort struct{}

func (discardPort) Read(p []byte) (int, error)  { return 0, nil }
func (discardPort) Write(p []byte) (int, error) { return len(p), nil }
func (discardPort) Close() error                { return nil }

// countingPort is a discardPort that records how many frames were
// written to it.
type countingPort struct {
	discardPort
	writes int
}

func (c *countingPort) Write(p []byte) (int, error) {
	c.writes++
	return len(p), nil
}

func buildRCChannelsRawPayload(chans [8]uint16) []byte {
	payload := make([]byte, 22)
	binary.LittleEndian.PutUint32(payload[0:4], 12345) // time_boot_ms
	for i, c := range chans {
		binary.LittleEndian.PutUint16(payload[4+2*i:6+2*i], c)
	}
	payload[20] = 0 // port
	payload[21] = 255
	return payload
}

func buildServoOutputRawPayload(servos [8]uint16) []byte {
	payload := make([]byte, 21)
	binary.LittleEndian.PutUint32(payload[0:4], 54321) // time_usec
	for i, s := range servos {
		binary.LittleEndian.PutUint16(payload[4+2*i:6+2*i], s)
	}
	payload[20] = 0 // port
	return payload
}

func TestAutopilotEmitsAPDataAfterBothRCMessages(t *testing.T) {
	out := broadcast.New[sensordata.APData]()
	ch := out.Register()
	w := NewAutopilotWorker(AutopilotConfig{}, out)

	rc := [8]uint16{1100, 1200, 1300, 1400, 1500, 1600, 1700, 1800}
	servo := [8]uint16{1500, 1500, 1500, 1500, 1500, 1500, 1500, 1500}

	w.dispatch(mavlink.Message{MsgID: mavlink.MsgRCChannelsRaw, Payload: buildRCChannelsRawPayload(rc)}, discardPort{})

	select {
	case <-ch:
		t.Fatal("should not emit after only RC_CHANNELS_RAW")
	default:
	}

	w.dispatch(mavlink.Message{MsgID: mavlink.MsgServoOutputRaw, Payload: buildServoOutputRawPayload(servo)}, discardPort{})

	select {
	case data := <-ch:
		assert.Equal(t, rc, data.RCIn)
		assert.Equal(t, servo, data.RCOut)
		assert.NotZero(t, data.RCInTimeUs)
		assert.NotZero(t, data.RCOutTimeUs)
	default:
		t.Fatal("expected an APData emission after both messages arrived")
	}

	require.Zero(t, w.rcInTimestamp)
	require.Zero(t, w.rcOutTimestamp)
}

func TestAutopilotFirstHeartbeatLatchesSysIDAndSendsRateSetup(t *testing.T) {
	out := broadcast.New[sensordata.APData]()
	w := NewAutopilotWorker(AutopilotConfig{StreamRateHz: 10}, out)

	hb := make([]byte, 9)
	port := &countingPort{}
	w.dispatch(mavlink.Message{SysID: 1, CompID: 50, MsgID: mavlink.MsgHeartbeat, Payload: hb}, port)

	assert.True(t, w.haveFirstMsg)
	assert.Equal(t, uint8(1), w.sysID)
	assert.Equal(t, uint8(50), w.compID)
	assert.Equal(t, 1, port.writes) // one REQUEST_DATA_STREAM frame

	// A second heartbeat must not re-latch or resend.
	w.dispatch(mavlink.Message{SysID: 99, CompID: 99, MsgID: mavlink.MsgHeartbeat, Payload: hb}, port)
	assert.Equal(t, uint8(1), w.sysID)
	assert.Equal(t, 1, port.writes)
}

func TestAutopilotUnhandledMessageDoesNotPanic(t *testing.T) {
	out := broadcast.New[sensordata.APData]()
	w := NewAutopilotWorker(AutopilotConfig{}, out)
	assert.NotPanics(t, func() {
		w.dispatch(mavlink.Message{MsgID: mavlink.MsgSysStatus, Payload: []byte{1, 2, 3}}, discardPort{})
	})
}
