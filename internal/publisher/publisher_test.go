package publisher

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamu-vscl/dfti/internal/sensordata"
)

func TestMarshalSizeMatchesWireSize(t *testing.T) {
	buf := marshal(sensordata.StateData{})
	require.Len(t, buf, sensordata.StateDataWireSize)
}

func TestMarshalFieldLayout(t *testing.T) {
	s := sensordata.StateData{
		GPSTimeNs:       1_700_000_000_000_000_000,
		EulerDeg:        [3]float32{10, -5, 2.5},
		Quaternion:      [4]float32{1, 0, 0, 0},
		AngularRatesRPS: [3]float32{0.1, 0.2, 0.3},
		AccelMps2:       [3]float32{0, 0, -9.81},
		IASMps:          23.5,
		AoADeg:          3.25,
		AoSDeg:          -1.1,
		NumRIOValues:    2,
	}
	s.RIOValues[0] = 1.5
	s.RIOValues[1] = -2.25

	buf := marshal(s)

	assert.Equal(t, s.GPSTimeNs, binary.LittleEndian.Uint64(buf[0:8]))
	assert.Equal(t, s.EulerDeg[0], math.Float32frombits(binary.LittleEndian.Uint32(buf[8:12])))
	assert.Equal(t, s.Quaternion[0], math.Float32frombits(binary.LittleEndian.Uint32(buf[20:24])))
	assert.Equal(t, s.IASMps, math.Float32frombits(binary.LittleEndian.Uint32(buf[60:64])))
	assert.Equal(t, s.AoADeg, math.Float32frombits(binary.LittleEndian.Uint32(buf[64:68])))
	assert.Equal(t, s.AoSDeg, math.Float32frombits(binary.LittleEndian.Uint32(buf[68:72])))
	assert.Equal(t, s.NumRIOValues, buf[72])
	assert.Equal(t, s.RIOValues[0], math.Float32frombits(binary.LittleEndian.Uint32(buf[73:77])))
	assert.Equal(t, s.RIOValues[1], math.Float32frombits(binary.LittleEndian.Uint32(buf[77:81])))
}

func TestOnRIOClampsToStateDataSize(t *testing.T) {
	p := New("127.0.0.1", 2701, 50)
	values := make([]float32, 15)
	for i := range values {
		values[i] = float32(i)
	}
	p.OnRIO(sensordata.RIOData{Values: values})

	assert.Equal(t, uint8(sensordata.StateDataSize), p.state.NumRIOValues)
	assert.Equal(t, float32(0), p.state.RIOValues[0])
	assert.Equal(t, float32(9), p.state.RIOValues[9])
}

func TestOnINSAndOnADSUpdateInPlace(t *testing.T) {
	p := New("127.0.0.1", 2701, 50)
	p.OnINS(sensordata.VN200Data{GPSTimeNs: 42, EulerDeg: [3]float32{1, 2, 3}})
	p.OnADS(sensordata.UADCData{IASMps: 20, AoADeg: 1, AoSDeg: -1})

	assert.Equal(t, uint64(42), p.state.GPSTimeNs)
	assert.Equal(t, [3]float32{1, 2, 3}, p.state.EulerDeg)
	assert.Equal(t, float32(20), p.state.IASMps)
}
