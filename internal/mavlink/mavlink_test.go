package mavlink

import "testing"

func feedAll(p *Parser, b []byte) (Message, bool) {
	var msg Message
	var ok bool
	for _, c := range b {
		msg, ok = p.Feed(c)
		if ok {
			return msg, true
		}
	}
	return msg, false
}

func TestHeartbeatRoundTrip(t *testing.T) {
	var enc Encoder
	payload := make([]byte, 9)
	payload[4] = 2 // type
	payload[5] = 3 // autopilot
	frame := enc.frame(1, 1, MsgHeartbeat, payload)

	p := NewParser()
	msg, ok := feedAll(p, frame)
	if !ok {
		t.Fatalf("expected a decoded heartbeat frame")
	}
	if msg.MsgID != MsgHeartbeat {
		t.Fatalf("wrong msg id: %d", msg.MsgID)
	}
	hb, ok := UnpackHeartbeat(msg.Payload)
	if !ok {
		t.Fatalf("failed to unpack heartbeat")
	}
	if hb.Type != 2 || hb.Autopilot != 3 {
		t.Fatalf("unexpected heartbeat fields: %+v", hb)
	}
}

func TestByteAtATimeMatchesWholeFrame(t *testing.T) {
	var enc Encoder
	frame := enc.RequestDataStream(1, 1, 0, 4, 1)

	p1 := NewParser()
	var whole Message
	for _, b := range frame {
		if m, ok := p1.Feed(b); ok {
			whole = m
		}
	}

	p2 := NewParser()
	var stepwise Message
	for i, b := range frame {
		m, ok := p2.Feed(b)
		if ok && i != len(frame)-1 {
			t.Fatalf("decoded too early at byte %d", i)
		}
		if ok {
			stepwise = m
		}
	}
	if whole.MsgID != stepwise.MsgID {
		t.Fatalf("mismatch between whole and stepwise decode")
	}
}

func TestBadChecksumDropsFrameButRecovers(t *testing.T) {
	var enc Encoder
	good := enc.RequestDataStream(1, 1, 0, 4, 1)
	corrupt := append([]byte(nil), good...)
	corrupt[len(corrupt)-1] ^= 0xFF

	p := NewParser()
	if _, ok := feedAll(p, corrupt); ok {
		t.Fatalf("corrupted frame should not decode")
	}
	if p.Status.PacketRxDropCount == 0 {
		t.Fatalf("expected drop count to increase")
	}

	good2 := enc.RequestDataStream(1, 1, 0, 4, 1)
	if _, ok := feedAll(p, good2); !ok {
		t.Fatalf("expected recovery on next valid frame")
	}
}

func TestCommandLongSetMessageInterval(t *testing.T) {
	var enc Encoder
	frame := enc.SetMessageInterval(1, 1, MsgRCChannelsRaw, 20000)
	p := NewParser()
	msg, ok := feedAll(p, frame)
	if !ok || msg.MsgID != MsgCommandLong {
		t.Fatalf("expected COMMAND_LONG frame")
	}
}
