package mavlink

import (
	"encoding/binary"
	"math"
)

// Encoder builds outgoing MAVLink v1 frames with a monotonically
// increasing sequence number, matching the parser's own sequence-gap
// bookkeeping.
type Encoder struct {
	seq uint8
}

func (e *Encoder) frame(sysid, compid, msgid uint8, payload []byte) []byte {
	length := uint8(len(payload))
	buf := make([]byte, 0, 8+len(payload))
	buf = append(buf, stx, length, e.seq, sysid, compid, msgid)
	buf = append(buf, payload...)
	e.seq++

	crc := crc16Init()
	crc = crc16Accumulate(crc, length)
	crc = crc16Accumulate(crc, buf[2]) // seq
	crc = crc16Accumulate(crc, sysid)
	crc = crc16Accumulate(crc, compid)
	crc = crc16Accumulate(crc, msgid)
	for _, c := range payload {
		crc = crc16Accumulate(crc, c)
	}
	if extra, ok := crcExtra[msgid]; ok {
		crc = crc16Accumulate(crc, extra)
	}
	var crcBytes [2]byte
	binary.LittleEndian.PutUint16(crcBytes[:], crc)
	return append(buf, crcBytes[0], crcBytes[1])
}

// RequestDataStream builds a REQUEST_DATA_STREAM message (legacy stream
// rate interface, MAVLink message 66).
func (e *Encoder) RequestDataStream(sysid, compid uint8, streamID uint8, rateHz uint16, startStop uint8) []byte {
	payload := make([]byte, 6)
	binary.LittleEndian.PutUint16(payload[0:2], rateHz)
	payload[2] = sysid
	payload[3] = compid
	payload[4] = streamID
	payload[5] = startStop
	return e.frame(sysid, compid, MsgRequestDataStream, payload)
}

// CommandLong builds a COMMAND_LONG message (MAVLink message 76) with a
// single-precision parameter set, used here for MAV_CMD_SET/GET_MESSAGE_INTERVAL.
func (e *Encoder) CommandLong(sysid, compid uint8, command uint16, param1, param2 float32) []byte {
	payload := make([]byte, 33)
	binary.LittleEndian.PutUint32(payload[0:4], f32bits(param1))
	binary.LittleEndian.PutUint32(payload[4:8], f32bits(param2))
	binary.LittleEndian.PutUint16(payload[28:30], command)
	payload[30] = sysid
	payload[31] = compid
	payload[32] = 0 // confirmation
	return e.frame(sysid, compid, MsgCommandLong, payload)
}

// SetMessageInterval builds the COMMAND_LONG that requests a message be
// streamed at intervalUs microseconds (-1 disables it, 0 restores the
// autopilot's default rate for msgID).
func (e *Encoder) SetMessageInterval(sysid, compid uint8, msgID uint16, intervalUs int32) []byte {
	return e.CommandLong(sysid, compid, CmdSetMessageInterval, float32(msgID), float32(intervalUs))
}

// GetMessageInterval builds the COMMAND_LONG that requests the autopilot
// report its current stream interval for msgID via a MESSAGE_INTERVAL ack.
func (e *Encoder) GetMessageInterval(sysid, compid uint8, msgID uint16) []byte {
	return e.CommandLong(sysid, compid, CmdGetMessageInterval, float32(msgID), 0)
}

func f32bits(f float32) uint32 {
	return math.Float32bits(f)
}
