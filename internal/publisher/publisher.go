// Package publisher implements the UDP state datagram broadcaster
// (spec.md section 4.5): it owns a StateData record, updates it in
// place as INS/ADS/RIO samples arrive, and sends a packed snapshot at a
// fixed cadence over a UDP socket connected to the configured destination
// with net.DialUDP (the socket is not an unconnected one), grounded on the
// teacher's net.DialUDP usage (cyoung-stratux/network.go).
package publisher

import (
	"encoding/binary"
	"log"
	"math"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/tamu-vscl/dfti/internal/sensordata"
)

// Publisher implements spec.md section 4.5.
type Publisher struct {
	addr   string
	rateHz uint8
	log    *log.Logger

	mu    sync.Mutex
	state sensordata.StateData

	conn *net.UDPConn
	stop chan struct{}
	done chan struct{}
}

// New constructs a Publisher targeting address:port at rateHz. The
// socket is opened lazily in Run.
func New(address string, port uint16, rateHz uint8) *Publisher {
	return &Publisher{
		addr:   net.JoinHostPort(address, strconv.Itoa(int(port))),
		rateHz: rateHz,
		log:    log.New(log.Writer(), "[publisher] ", log.LstdFlags),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// OnINS updates the INS-derived fields in place (spec.md section 4.5).
func (p *Publisher) OnINS(s sensordata.VN200Data) {
	p.mu.Lock()
	p.state.GPSTimeNs = s.GPSTimeNs
	p.state.EulerDeg = s.EulerDeg
	p.state.Quaternion = s.Quaternion
	p.state.AngularRatesRPS = s.RatesRPS
	p.state.AccelMps2 = s.AccelMps2
	p.mu.Unlock()
}

// OnADS updates the air-data-derived fields in place.
func (p *Publisher) OnADS(s sensordata.UADCData) {
	p.mu.Lock()
	p.state.IASMps = s.IASMps
	p.state.AoADeg = s.AoADeg
	p.state.AoSDeg = s.AoSDeg
	p.mu.Unlock()
}

// OnRIO updates the RIO value block, clamping its length to
// sensordata.StateDataSize per spec.md section 4.5.
func (p *Publisher) OnRIO(s sensordata.RIOData) {
	p.mu.Lock()
	n := len(s.Values)
	if n > sensordata.StateDataSize {
		n = sensordata.StateDataSize
	}
	p.state.NumRIOValues = uint8(n)
	for i := 0; i < sensordata.StateDataSize; i++ {
		if i < n {
			p.state.RIOValues[i] = s.Values[i]
		} else {
			p.state.RIOValues[i] = 0
		}
	}
	p.mu.Unlock()
}

// Run opens the UDP socket and sends a packed StateData snapshot every
// 1/rateHz seconds until Stop is called. Meant to run on its own
// goroutine.
func (p *Publisher) Run() {
	defer close(p.done)

	raddr, err := net.ResolveUDPAddr("udp", p.addr)
	if err != nil {
		p.log.Printf("resolving %s: %v", p.addr, err)
		return
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		p.log.Printf("dialing %s: %v", p.addr, err)
		return
	}
	p.conn = conn
	defer conn.Close()

	rateHz := p.rateHz
	if rateHz == 0 {
		rateHz = 1
	}
	ticker := time.NewTicker(time.Second / time.Duration(rateHz))
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			p.send()
		}
	}
}

func (p *Publisher) send() {
	p.mu.Lock()
	buf := marshal(p.state)
	p.mu.Unlock()

	if _, err := p.conn.Write(buf); err != nil {
		p.log.Printf("warning: udp send failed: %v", err)
	}
}

// marshal packs a StateData into exactly sensordata.StateDataWireSize
// bytes, little-endian, 1-byte packed, matching spec.md section 6.2's
// wire layout exactly rather than relying on Go struct layout (spec.md
// section 9's "no reinterpret_cast" design note).
func marshal(s sensordata.StateData) []byte {
	buf := make([]byte, sensordata.StateDataWireSize)
	off := 0

	putU64 := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[off:], v)
		off += 8
	}
	putF32 := func(v float32) {
		binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(v))
		off += 4
	}
	putU8 := func(v uint8) {
		buf[off] = v
		off++
	}

	putU64(s.GPSTimeNs)
	for _, v := range s.EulerDeg {
		putF32(v)
	}
	for _, v := range s.Quaternion {
		putF32(v)
	}
	for _, v := range s.AngularRatesRPS {
		putF32(v)
	}
	for _, v := range s.AccelMps2 {
		putF32(v)
	}
	putF32(s.IASMps)
	putF32(s.AoADeg)
	putF32(s.AoSDeg)
	putU8(s.NumRIOValues)
	for _, v := range s.RIOValues {
		putF32(v)
	}
	return buf
}

// Stop asks Run to exit and close the UDP socket.
func (p *Publisher) Stop() {
	close(p.stop)
}

// Done returns a channel closed once Run has returned.
func (p *Publisher) Done() <-chan struct{} {
	return p.done
}
