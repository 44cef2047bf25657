package worker

import (
	"io"
	"log"
	"sync"
	"time"

	"github.com/tamu-vscl/dfti/internal/broadcast"
	"github.com/tamu-vscl/dfti/internal/mavlink"
	"github.com/tamu-vscl/dfti/internal/sensordata"
)

// AutopilotConfig configures the autopilot worker's rate-setup handshake
// (spec.md section 4.3).
type AutopilotConfig struct {
	PortName           string
	Baud               int
	StreamRateHz       uint32
	UseMessageInterval bool
}

// AutopilotWorker owns the autopilot's serial port read-write (it must
// send rate-setting commands), dispatches decoded MAVLink messages, and
// assembles a combined APData once both RC_CHANNELS_RAW and
// SERVO_OUTPUT_RAW have arrived since the last emit.
type AutopilotWorker struct {
	cfg AutopilotConfig
	out *broadcast.Broadcaster[sensordata.APData]
	log *log.Logger

	mu    sync.Mutex
	state State
	port  io.ReadWriteCloser
	stop  chan struct{}
	done  chan struct{}

	parser  *mavlink.Parser
	encoder mavlink.Encoder

	haveFirstMsg bool
	sysID        uint8
	compID       uint8

	data           sensordata.APData
	rcInTimestamp  uint64
	rcOutTimestamp uint64

	lastDropCount uint32
	unhandledMsgs uint64
}

// NewAutopilotWorker constructs a worker in the Constructed state.
func NewAutopilotWorker(cfg AutopilotConfig, out *broadcast.Broadcaster[sensordata.APData]) *AutopilotWorker {
	return &AutopilotWorker{
		cfg:    cfg,
		out:    out,
		log:    log.New(log.Writer(), "[autopilot] ", log.LstdFlags),
		state:  StateConstructed,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
		parser: mavlink.NewParser(),
	}
}

// State returns the worker's current lifecycle state.
func (w *AutopilotWorker) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

func (w *AutopilotWorker) setState(s State) {
	w.mu.Lock()
	w.state = s
	w.mu.Unlock()
}

// Run opens the port read-write and runs the decode/dispatch loop until
// Stop is called; a read error is treated as no data and does not end
// the loop.
func (w *AutopilotWorker) Run() {
	defer close(w.done)
	w.setState(StateOpening)

	p, err := openPort(w.cfg.PortName, w.cfg.Baud)
	if err != nil {
		w.log.Printf("failed to open port %s: %v", w.cfg.PortName, err)
		w.setState(StateIdle)
		return
	}
	w.mu.Lock()
	w.port = p
	w.mu.Unlock()
	w.setState(StateRunning)

	buf := make([]byte, readChunkSize)
	for {
		select {
		case <-w.stop:
			p.Close()
			w.setState(StateClosed)
			return
		default:
		}

		n, err := p.Read(buf)
		if err != nil {
			continue
		}
		for i := 0; i < n; i++ {
			msg, ok := w.parser.Feed(buf[i])
			if drop := w.parser.Status.PacketRxDropCount; drop != w.lastDropCount {
				w.log.Printf("warning: packet_rx_drop_count changed %d -> %d", w.lastDropCount, drop)
				w.lastDropCount = drop
			}
			if !ok {
				continue
			}
			w.dispatch(msg, p)
		}
	}
}

func (w *AutopilotWorker) dispatch(msg mavlink.Message, p io.ReadWriteCloser) {
	if !w.haveFirstMsg {
		w.sysID = msg.SysID
		w.compID = msg.CompID
		w.haveFirstMsg = true
		w.sendRateSetup(p)
	}

	switch msg.MsgID {
	case mavlink.MsgHeartbeat:
		// Noted, no action (spec.md section 4.3 dispatch table).
	case mavlink.MsgRCChannelsRaw:
		rc, ok := mavlink.UnpackRCChannelsRaw(msg.Payload)
		if !ok {
			return
		}
		w.data.RCIn = rc.Chan
		w.rcInTimestamp = nowMicros()
		w.data.RCInTimeUs = uint32(w.rcInTimestamp)
		w.maybeEmit()
	case mavlink.MsgServoOutputRaw:
		servo, ok := mavlink.UnpackServoOutputRaw(msg.Payload)
		if !ok {
			return
		}
		w.data.RCOut = servo.Servo
		w.rcOutTimestamp = nowMicros()
		w.data.RCOutTimeUs = uint32(w.rcOutTimestamp)
		w.maybeEmit()
	case mavlink.MsgStatustext:
		st, ok := mavlink.UnpackStatustext(msg.Payload)
		if ok {
			w.log.Printf("warning: STATUSTEXT severity=%d: %s", st.Severity, st.Text)
		}
	case mavlink.MsgCommandAck, mavlink.MsgMessageInterval:
		// Observability only.
	default:
		// Unhandled message type; counted in unhandledMsgs, matching
		// spec.md section 4.3's dispatch table.
		w.unhandledMsgs++
	}
}

// maybeEmit publishes a combined APData once both RC_CHANNELS_RAW and
// SERVO_OUTPUT_RAW have arrived since the last emit, then clears both
// arrival timestamps (spec.md section 4.3's sample assembly rule).
func (w *AutopilotWorker) maybeEmit() {
	if w.rcInTimestamp == 0 || w.rcOutTimestamp == 0 {
		return
	}
	samplesDecoded.WithLabelValues("autopilot").Inc()
	w.out.Publish(w.data)
	w.rcInTimestamp = 0
	w.rcOutTimestamp = 0
}

// sendRateSetup issues the first-heartbeat rate-setup handshake (spec.md
// section 4.3): prefer MAV_CMD_SET/GET_MESSAGE_INTERVAL when configured,
// else fall back to the legacy REQUEST_DATA_STREAM interface.
func (w *AutopilotWorker) sendRateSetup(p io.ReadWriteCloser) {
	if w.cfg.StreamRateHz == 0 {
		return
	}
	if w.cfg.UseMessageInterval {
		intervalUs := int32(1e6 / float64(w.cfg.StreamRateHz))
		for _, id := range []uint16{mavlink.MsgRCChannelsRaw, mavlink.MsgServoOutputRaw} {
			p.Write(w.encoder.SetMessageInterval(w.sysID, w.compID, id, intervalUs))
			p.Write(w.encoder.GetMessageInterval(w.sysID, w.compID, id))
		}
		return
	}
	const streamRC1 = 3 // MAV_DATA_STREAM_RC_CHANNELS
	p.Write(w.encoder.RequestDataStream(w.sysID, w.compID, streamRC1, uint16(w.cfg.StreamRateHz), 1))
}

func nowMicros() uint64 {
	return uint64(time.Now().UnixMicro())
}

// Stop asks the worker to exit its loop and close its port.
func (w *AutopilotWorker) Stop() {
	close(w.stop)
}

// Done returns a channel closed once Run has returned.
func (w *AutopilotWorker) Done() <-chan struct{} {
	return w.done
}
