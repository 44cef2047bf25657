// Package mavlink is a minimal MAVLink v1 codec covering exactly the
// message set the autopilot worker needs: four inbound telemetry/status
// messages (HEARTBEAT, RC_CHANNELS_RAW, SERVO_OUTPUT_RAW, STATUSTEXT),
// two inbound acknowledgement/observability messages, and the three
// outbound commands used to configure the autopilot's stream
// rates. It is not a general-purpose MAVLink library.
//
// The decoder is fed one byte at a time, mirroring the byte-oriented
// contract every other sensor decoder in this repository uses:
// Parser.Feed(b) returns a decoded Message and true once a complete,
// checksum-valid frame has been assembled; otherwise it returns
// (Message{}, false) and keeps accumulating.
package mavlink

import "encoding/binary"

const (
	stx        = 0xFE
	maxPayload = 255
)

// Message IDs for the subset of MAVLink common.xml this package speaks.
const (
	MsgHeartbeat         = 0
	MsgSysStatus         = 1
	MsgRCChannelsRaw     = 35
	MsgServoOutputRaw    = 36
	MsgRequestDataStream = 66
	MsgCommandLong       = 76
	MsgCommandAck        = 77
	MsgStatustext        = 253
	MsgMessageInterval   = 244
)

// MAV_CMD identifiers used by the outgoing COMMAND_LONG messages.
const (
	CmdSetMessageInterval = 511
	CmdGetMessageInterval = 510
)

// crcExtra holds the MAVLink common.xml CRC_EXTRA seed byte per message
// ID, mixed into the checksum after the payload. Values are the standard
// ones published in the MAVLink common dialect.
var crcExtra = map[uint8]byte{
	MsgHeartbeat:         50,
	MsgSysStatus:         124,
	MsgRCChannelsRaw:     244,
	MsgServoOutputRaw:    222,
	MsgRequestDataStream: 148,
	MsgCommandLong:       152,
	MsgCommandAck:        143,
	MsgStatustext:        83,
	MsgMessageInterval:   95,
}

// Message is the decoded envelope for one MAVLink v1 packet.
type Message struct {
	SysID   uint8
	CompID  uint8
	MsgID   uint8
	Seq     uint8
	Payload []byte
}

// Status tracks parser-observable health, mirroring the mavlink_status_t
// fields the autopilot worker polls for packet loss.
type Status struct {
	PacketRxDropCount uint32
}

type parserState int

const (
	stateIdle parserState = iota
	stateLen
	stateSeq
	stateSysID
	stateCompID
	stateMsgID
	statePayload
	stateCRC1
	stateCRC2
)

// Parser is a stateful, byte-fed MAVLink v1 frame assembler.
type Parser struct {
	state       parserState
	length      uint8
	seq         uint8
	sysid       uint8
	compid      uint8
	msgid       uint8
	payload     []byte
	payloadIdx  uint8
	crcBuf      [2]byte
	lastSeq     uint8
	haveLastSeq bool
	Status      Status
}

// NewParser returns a ready-to-feed Parser.
func NewParser() *Parser {
	return &Parser{payload: make([]byte, 0, maxPayload)}
}

// Feed consumes one byte and returns a decoded Message and true once a
// complete, checksum-valid frame has been assembled. Frames with a bad
// checksum or an unrecognized message ID are silently discarded, the
// drop count is incremented, and the parser resumes scanning for the
// next sync byte.
func (p *Parser) Feed(b byte) (Message, bool) {
	switch p.state {
	case stateIdle:
		if b == stx {
			p.state = stateLen
			p.payload = p.payload[:0]
		}
	case stateLen:
		p.length = b
		p.state = stateSeq
	case stateSeq:
		p.seq = b
		p.state = stateSysID
	case stateSysID:
		p.sysid = b
		p.state = stateCompID
	case stateCompID:
		p.compid = b
		p.state = stateMsgID
	case stateMsgID:
		p.msgid = b
		p.payloadIdx = 0
		if p.length == 0 {
			p.state = stateCRC1
			return Message{}, false
		}
		p.state = statePayload
	case statePayload:
		p.payload = append(p.payload, b)
		p.payloadIdx++
		if p.payloadIdx >= p.length {
			p.state = stateCRC1
		}
	case stateCRC1:
		p.crcBuf[0] = b
		p.state = stateCRC2
	case stateCRC2:
		p.crcBuf[1] = b
		p.state = stateIdle
		return p.verify()
	}
	return Message{}, false
}

func (p *Parser) verify() (Message, bool) {
	extra, known := crcExtra[p.msgid]
	crc := crc16Init()
	crc = crc16Accumulate(crc, p.length)
	crc = crc16Accumulate(crc, p.seq)
	crc = crc16Accumulate(crc, p.sysid)
	crc = crc16Accumulate(crc, p.compid)
	crc = crc16Accumulate(crc, p.msgid)
	for _, c := range p.payload {
		crc = crc16Accumulate(crc, c)
	}
	if known {
		crc = crc16Accumulate(crc, extra)
	}
	wire := binary.LittleEndian.Uint16(p.crcBuf[:])
	if !known || crc != wire {
		p.Status.PacketRxDropCount++
		return Message{}, false
	}
	if p.haveLastSeq {
		gap := byte(p.seq - p.lastSeq - 1)
		p.Status.PacketRxDropCount += uint32(gap)
	}
	p.lastSeq = p.seq
	p.haveLastSeq = true
	out := Message{
		SysID:   p.sysid,
		CompID:  p.compid,
		MsgID:   p.msgid,
		Seq:     p.seq,
		Payload: append([]byte(nil), p.payload...),
	}
	return out, true
}
