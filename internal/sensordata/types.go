// Package sensordata defines the immutable, copy-by-value sample types
// each sensor worker publishes, the packed UDP state datagram the
// publisher transmits, and the byte-oriented decoders that turn a raw
// serial stream into those samples.
package sensordata

// StateDataSize is the fixed capacity of the RIO value array carried in
// the UDP state datagram (spec section 3, STATE_DATA_SIZE).
const StateDataSize = 10

// APData is one autopilot sample: eight RC input channels with their
// arrival timestamp, and eight RC output (servo) channels with theirs.
type APData struct {
	RCInTimeUs  uint32
	RCIn        [8]uint16
	RCOutTimeUs uint32
	RCOut       [8]uint16
}

// UADCData is one Aeroprobe Micro Air Data Computer sample.
type UADCData struct {
	SeqID       uint32
	IASMps      float32
	AoADeg      float32
	AoSDeg      float32
	AltM        uint16
	TotalPressPa  uint32
	StaticPressPa uint32
}

// PacketVariant selects which VN-200 wire layout a decoder expects. The
// legacy (Arduino) variant appends magnetic field, temperature, and
// static pressure fields the newer daemon variant omits; spec.md section
// 9 requires this to be a configuration choice, never hardcoded.
type PacketVariant uint8

const (
	// PacketVariantINS is the 102-byte, mag/temp/pressure-free layout
	// documented in spec.md section 4.1.
	PacketVariantINS PacketVariant = iota
	// PacketVariantLegacy is the 122-byte layout carried over from the
	// embedded Arduino VN-200 reader in original_source/libs/libvn200.
	PacketVariantLegacy
)

// VN200Data is one VectorNav VN-200 INS sample. Quaternion is always
// scalar-first [w,x,y,z] regardless of the scalar-last wire order.
type VN200Data struct {
	GPSTimeNs   uint64
	EulerDeg    [3]float32 // yaw, pitch, roll
	Quaternion  [4]float32 // w, x, y, z
	RatesRPS    [3]float32 // p, q, r
	PosDegDegM  [3]float64 // lat, lon, alt
	VelNedMps   [3]float32
	AccelMps2   [3]float32

	// Legacy-variant-only fields; zero and HasLegacyFields false when the
	// decoder is configured for PacketVariantINS.
	HasLegacyFields bool
	MagGauss        [3]float32
	TempC           float32
	PressureKpa     float32
}

// RIOData is one remote I/O sample: a variable-length, ordered sequence
// of values, as many as the packet it was decoded from carried.
type RIOData struct {
	Values []float32
}

// StateData is the fixed, 1-byte-packed record broadcast over UDP. Field
// order and sizes exactly match spec.md section 6.2; it is serialized
// with an explicit little-endian encoder rather than relying on Go
// struct layout, which offers no packing guarantee.
type StateData struct {
	GPSTimeNs       uint64
	EulerDeg        [3]float32
	Quaternion      [4]float32
	AngularRatesRPS [3]float32
	AccelMps2       [3]float32
	IASMps          float32
	AoADeg          float32
	AoSDeg          float32
	NumRIOValues    uint8
	RIOValues       [StateDataSize]float32
}

// StateDataWireSize is sizeof(StateData) as packed on the wire (spec.md
// section 6.2): 113 bytes.
const StateDataWireSize = 8 + 12 + 16 + 12 + 12 + 4 + 4 + 4 + 1 + 4*StateDataSize
