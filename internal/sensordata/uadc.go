package sensordata

import (
	"strconv"
	"strings"

	"github.com/tamu-vscl/dfti/internal/framer"
)

// uADC field offsets/lengths, spec.md section 4.1.
const (
	uadcFrameLen   = 56
	uadcOffSeq     = 0
	uadcLenSeq     = 5
	uadcOffIAS     = 7
	uadcLenIAS     = 5
	uadcOffAoA     = 14
	uadcLenAoA     = 6
	uadcOffAoS     = 22
	uadcLenAoS     = 6
	uadcOffAlt     = 30
	uadcLenAlt     = 5
	uadcOffPt      = 37
	uadcLenPt      = 6
	uadcOffPs      = 45
	uadcLenPs      = 6
	uadcOffCksum   = 53
	uadcLenCksum   = 2
	uadcChecksumTo = 53 // XOR over bytes [0,53)
)

// UADCDecoder assembles uADC ASCII lines terminated by '\n' and decodes
// them into UADCData. It slides past the byte after the last '\n' seen
// and discards bytes preceding a successful parse, matching spec.md
// section 4.1's framing rule.
type UADCDecoder struct {
	buf []byte
}

// NewUADCDecoder returns a ready-to-feed UADCDecoder.
func NewUADCDecoder() *UADCDecoder {
	return &UADCDecoder{}
}

// Feed appends one byte to the internal buffer. Once a '\n' has been
// seen, the accumulated line is parsed: a successful parse returns
// (data, true, nil); a malformed or checksum-failing line returns
// (UADCData{}, false, err) with err one of framer's sentinel errors.
// Either way the buffer is advanced past the newline for the next call.
func (d *UADCDecoder) Feed(b byte) (UADCData, bool, error) {
	d.buf = append(d.buf, b)
	if b != '\n' {
		return UADCData{}, false, nil
	}
	line := d.buf
	d.buf = nil

	// Only a minimum length is checked, so a line ending in either LF or
	// CRLF is accepted; the checksum covers the fixed-width field span
	// regardless of which line terminator variant arrived.
	if len(line) < uadcFrameLen {
		return UADCData{}, false, framer.ErrStructurallyInvalid
	}

	sum := framer.XOR8(line[0:uadcChecksumTo])
	wantSum, err := framer.ParseHexU8(line[uadcOffCksum : uadcOffCksum+uadcLenCksum])
	if err != nil {
		return UADCData{}, false, framer.ErrStructurallyInvalid
	}
	if sum != wantSum {
		return UADCData{}, false, framer.ErrChecksumMismatch
	}

	seq, err1 := parseIntField(line[uadcOffSeq : uadcOffSeq+uadcLenSeq])
	ias, err2 := parseFloatField(line[uadcOffIAS : uadcOffIAS+uadcLenIAS])
	aoa, err3 := parseFloatField(line[uadcOffAoA : uadcOffAoA+uadcLenAoA])
	aos, err4 := parseFloatField(line[uadcOffAoS : uadcOffAoS+uadcLenAoS])
	alt, err5 := parseIntField(line[uadcOffAlt : uadcOffAlt+uadcLenAlt])
	pt, err6 := parseIntField(line[uadcOffPt : uadcOffPt+uadcLenPt])
	ps, err7 := parseIntField(line[uadcOffPs : uadcOffPs+uadcLenPs])
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil || err5 != nil || err6 != nil || err7 != nil {
		return UADCData{}, false, framer.ErrStructurallyInvalid
	}

	return UADCData{
		SeqID:         uint32(seq),
		IASMps:        float32(ias),
		AoADeg:        float32(aoa),
		AoSDeg:        float32(aos),
		AltM:          uint16(alt),
		TotalPressPa:  uint32(pt),
		StaticPressPa: uint32(ps),
	}, true, nil
}

func parseIntField(b []byte) (int64, error) {
	s := strings.TrimSpace(string(b))
	return strconv.ParseInt(s, 10, 64)
}

func parseFloatField(b []byte) (float64, error) {
	s := strings.TrimSpace(string(b))
	return strconv.ParseFloat(s, 64)
}
