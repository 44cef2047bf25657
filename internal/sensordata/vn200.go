package sensordata

import (
	"encoding/binary"
	"math"

	"github.com/tamu-vscl/dfti/internal/framer"
)

const (
	vn200Sync      = 0xFA
	vn200Group     = 0x01
	vn200InsPktLen = 102
	// vn200LegacyLen is the 100-byte common body, plus mag[3] (12 bytes),
	// temp (4 bytes), and static pressure (4 bytes) inserted before the
	// trailing 2-byte CRC-16, per
	// original_source/libs/libvn200/libvn200.hh's packed VN200Packet
	// struct: 100 + 12 + 4 + 4 + 2 = 122.
	vn200LegacyLen = 100 + 12 + 4 + 4 + 2
)

// VN200Decoder scans for the 0xFA sync byte, accumulates a full frame,
// verifies its CRC-16, and on success swaps the wire's scalar-last
// quaternion to scalar-first before returning the decoded sample.
type VN200Decoder struct {
	variant PacketVariant
	frameSz int
	buf     []byte
}

// NewVN200Decoder returns a decoder configured for the given packet
// variant (spec.md section 9's configuration-carried Open Question).
func NewVN200Decoder(variant PacketVariant) *VN200Decoder {
	sz := vn200InsPktLen
	if variant == PacketVariantLegacy {
		sz = vn200LegacyLen
	}
	return &VN200Decoder{variant: variant, frameSz: sz}
}

// Feed appends one byte to the scan buffer. Bytes before a sync byte are
// discarded; once frameSz bytes have accumulated from a sync byte, the
// CRC is checked and the frame decoded.
func (d *VN200Decoder) Feed(b byte) (VN200Data, bool, error) {
	if len(d.buf) == 0 {
		if b != vn200Sync {
			return VN200Data{}, false, nil
		}
	}
	d.buf = append(d.buf, b)
	if len(d.buf) < d.frameSz {
		return VN200Data{}, false, nil
	}

	frame := d.buf
	d.buf = nil

	if frame[1] != vn200Group {
		// Not the sync byte we expected after all; the whole buffered
		// frame is discarded and scanning for a sync byte resumes with
		// the next byte fed.
		return VN200Data{}, false, framer.ErrStructurallyInvalid
	}

	crc := framer.VN200CRC16(frame[1:])
	if crc != 0 {
		return VN200Data{}, false, framer.ErrChecksumMismatch
	}

	data := decodeVN200Frame(frame, d.variant)
	return data, true, nil
}

func decodeVN200Frame(frame []byte, variant PacketVariant) VN200Data {
	var d VN200Data
	d.GPSTimeNs = binary.LittleEndian.Uint64(frame[4:12])
	for i := 0; i < 3; i++ {
		d.EulerDeg[i] = readF32(frame, 12+4*i)
	}
	// Quaternion on the wire is scalar-last [x,y,z,w] at offset 24;
	// swap to scalar-first [w,x,y,z].
	qx := readF32(frame, 24)
	qy := readF32(frame, 28)
	qz := readF32(frame, 32)
	qw := readF32(frame, 36)
	d.Quaternion = [4]float32{qw, qx, qy, qz}
	for i := 0; i < 3; i++ {
		d.RatesRPS[i] = readF32(frame, 40+4*i)
	}
	for i := 0; i < 3; i++ {
		d.PosDegDegM[i] = readF64(frame, 52+8*i)
	}
	for i := 0; i < 3; i++ {
		d.VelNedMps[i] = readF32(frame, 76+4*i)
	}
	for i := 0; i < 3; i++ {
		d.AccelMps2[i] = readF32(frame, 88+4*i)
	}
	if variant == PacketVariantLegacy {
		d.HasLegacyFields = true
		for i := 0; i < 3; i++ {
			d.MagGauss[i] = readF32(frame, 100+4*i)
		}
		d.TempC = readF32(frame, 112)
		d.PressureKpa = readF32(frame, 116)
	}
	return d
}

// readF32 reads a little-endian IEEE-754 float32 at offset idx, bounds
// checked, consolidating the duplicated "b2f" helpers original_source
// scatters across its sensor libraries (spec.md section 9).
func readF32(b []byte, idx int) float32 {
	if idx+4 > len(b) {
		return 0
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(b[idx : idx+4]))
}

func readF64(b []byte, idx int) float64 {
	if idx+8 > len(b) {
		return 0
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(b[idx : idx+8]))
}
