package sensordata

import (
	"strconv"
	"strings"

	"github.com/tamu-vscl/dfti/internal/framer"
)

const (
	rioStart = "$$$"
	rioSep   = "$"
	rioTerm  = "\r\n"
)

// RIODecoder assembles RIO ASCII packets ("$$$v1$v2$...$vN$XX\r\n")
// terminated by "\r\n" and decodes them into RIOData. The XOR checksum
// is computed over every byte from the "$$$" start marker up to, but not
// including, the checksum's two hex digits; the "\r\n" terminator that
// follows them is not part of the XOR input.
type RIODecoder struct {
	buf []byte
}

// NewRIODecoder returns a ready-to-feed RIODecoder.
func NewRIODecoder() *RIODecoder {
	return &RIODecoder{}
}

// Feed appends one byte and, once a full "\r\n"-terminated packet has
// accumulated, parses and returns it.
func (d *RIODecoder) Feed(b byte) (RIOData, bool, error) {
	d.buf = append(d.buf, b)
	if !strings.HasSuffix(string(d.buf), rioTerm) {
		return RIOData{}, false, nil
	}
	pkt := d.buf
	d.buf = nil

	if !strings.HasPrefix(string(pkt), rioStart) {
		return RIOData{}, false, framer.ErrStructurallyInvalid
	}
	if len(pkt) < len(rioStart)+len(rioSep)+2+len(rioTerm) {
		return RIOData{}, false, framer.ErrStructurallyInvalid
	}

	// Checksum: XOR of all bytes up to but not including the checksum's
	// own two hex digits (which sit immediately before the terminator).
	cksumOff := len(pkt) - len(rioTerm) - 2
	sum := framer.XOR8(pkt[:cksumOff])
	wantSum, err := framer.ParseHexU8(pkt[cksumOff : cksumOff+2])
	if err != nil {
		return RIOData{}, false, framer.ErrStructurallyInvalid
	}
	if sum != wantSum {
		return RIOData{}, false, framer.ErrChecksumMismatch
	}

	body := string(pkt[len(rioStart):cksumOff])
	fields := strings.Split(body, rioSep)
	// A trailing "$" before the checksum leaves one empty field; drop it.
	if len(fields) > 0 && fields[len(fields)-1] == "" {
		fields = fields[:len(fields)-1]
	}
	values := make([]float32, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseFloat(f, 32)
		if err != nil {
			return RIOData{}, false, framer.ErrStructurallyInvalid
		}
		values = append(values, float32(v))
	}
	if len(values) == 0 {
		return RIOData{}, false, framer.ErrStructurallyInvalid
	}
	return RIOData{Values: values}, true, nil
}
