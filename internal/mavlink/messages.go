package mavlink

import "encoding/binary"

// Heartbeat is MAVLink message 0. All six MAVLink v1 fields are decoded.
type Heartbeat struct {
	Type           uint8
	Autopilot      uint8
	BaseMode       uint8
	CustomMode     uint32
	SystemStatus   uint8
	MavlinkVersion uint8
}

// UnpackHeartbeat decodes a HEARTBEAT payload.
func UnpackHeartbeat(payload []byte) (Heartbeat, bool) {
	if len(payload) < 9 {
		return Heartbeat{}, false
	}
	return Heartbeat{
		CustomMode:     binary.LittleEndian.Uint32(payload[0:4]),
		Type:           payload[4],
		Autopilot:      payload[5],
		BaseMode:       payload[6],
		SystemStatus:   payload[7],
		MavlinkVersion: payload[8],
	}, true
}

// RCChannelsRaw is MAVLink message 35.
type RCChannelsRaw struct {
	TimeBootMs uint32
	Port       uint8
	Chan       [8]uint16
	RSSI       uint8
}

// UnpackRCChannelsRaw decodes an RC_CHANNELS_RAW payload.
func UnpackRCChannelsRaw(payload []byte) (RCChannelsRaw, bool) {
	if len(payload) < 22 {
		return RCChannelsRaw{}, false
	}
	var m RCChannelsRaw
	m.TimeBootMs = binary.LittleEndian.Uint32(payload[0:4])
	for i := 0; i < 8; i++ {
		m.Chan[i] = binary.LittleEndian.Uint16(payload[4+2*i : 6+2*i])
	}
	m.Port = payload[20]
	m.RSSI = payload[21]
	return m, true
}

// ServoOutputRaw is MAVLink message 36.
type ServoOutputRaw struct {
	TimeUsec uint32
	Port     uint8
	Servo    [8]uint16
}

// UnpackServoOutputRaw decodes a SERVO_OUTPUT_RAW payload.
func UnpackServoOutputRaw(payload []byte) (ServoOutputRaw, bool) {
	if len(payload) < 21 {
		return ServoOutputRaw{}, false
	}
	var m ServoOutputRaw
	m.TimeUsec = binary.LittleEndian.Uint32(payload[0:4])
	for i := 0; i < 8; i++ {
		m.Servo[i] = binary.LittleEndian.Uint16(payload[4+2*i : 6+2*i])
	}
	m.Port = payload[20]
	return m, true
}

// Statustext is MAVLink message 253.
type Statustext struct {
	Severity uint8
	Text     string
}

// UnpackStatustext decodes a STATUSTEXT payload.
func UnpackStatustext(payload []byte) (Statustext, bool) {
	if len(payload) < 1 {
		return Statustext{}, false
	}
	end := len(payload)
	for i := 1; i < end; i++ {
		if payload[i] == 0 {
			end = i
			break
		}
	}
	return Statustext{Severity: payload[0], Text: string(payload[1:end])}, true
}

// CommandAck is MAVLink message 77.
type CommandAck struct {
	Command uint16
	Result  uint8
}

// UnpackCommandAck decodes a COMMAND_ACK payload.
func UnpackCommandAck(payload []byte) (CommandAck, bool) {
	if len(payload) < 3 {
		return CommandAck{}, false
	}
	return CommandAck{
		Command: binary.LittleEndian.Uint16(payload[0:2]),
		Result:  payload[2],
	}, true
}

// MessageInterval is MAVLink message 244.
type MessageInterval struct {
	IntervalUs int32
	MessageID  uint16
}

// UnpackMessageInterval decodes a MESSAGE_INTERVAL payload.
func UnpackMessageInterval(payload []byte) (MessageInterval, bool) {
	if len(payload) < 6 {
		return MessageInterval{}, false
	}
	return MessageInterval{
		IntervalUs: int32(binary.LittleEndian.Uint32(payload[0:4])),
		MessageID:  binary.LittleEndian.Uint16(payload[4:6]),
	}, true
}
