// Package worker implements the per-sensor serial I/O loop (spec.md
// section 4.2): each Worker owns one serial port, decodes its protocol's
// byte stream, and publishes decoded samples on a broadcast channel.
package worker

import (
	"io"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/tarm/serial"

	"github.com/tamu-vscl/dfti/internal/broadcast"
)

// State is a worker's observable lifecycle state (spec.md section 4.7).
type State int

const (
	StateConstructed State = iota
	StateOpening
	StateRunning
	StateIdle
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConstructed:
		return "constructed"
	case StateOpening:
		return "opening"
	case StateRunning:
		return "running"
	case StateIdle:
		return "idle"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// readChunkSize is the implementation-chosen read size spec.md section
// 4.2 leaves open.
const readChunkSize = 256

// readTimeout bounds how long a blocked read can delay noticing the
// cooperative shutdown flag (spec.md section 5).
const readTimeout = 100 * time.Millisecond

// normalizeBaud falls back to 57600 for any baud rate spec.md section
// 4.2 doesn't recognize.
func normalizeBaud(baud int) int {
	switch baud {
	case 57600, 115200:
		return baud
	default:
		return 57600
	}
}

var (
	decodeErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dfti_decode_errors_total",
			Help: "Count of framer decode errors (checksum mismatch or structurally invalid) per sensor.",
		},
		[]string{"sensor", "kind"},
	)
	samplesDecoded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dfti_samples_decoded_total",
			Help: "Count of successfully decoded samples per sensor.",
		},
		[]string{"sensor"},
	)
)

func init() {
	prometheus.MustRegister(decodeErrors, samplesDecoded)
}

// Decoder is implemented by each protocol's byte-fed frame assembler
// (sensordata.UADCDecoder, sensordata.RIODecoder, sensordata.VN200Decoder).
type Decoder[T any] interface {
	Feed(b byte) (T, bool, error)
}

// openPort opens a serial port read-write, read-only by convention
// (callers needing write access, like the autopilot worker, write to
// the returned *serial.Port directly).
func openPort(portName string, baud int) (*serial.Port, error) {
	cfg := &serial.Config{
		Name:        portName,
		Baud:        normalizeBaud(baud),
		ReadTimeout: readTimeout,
		Size:        8,
		Parity:      serial.ParityNone,
		StopBits:    serial.Stop1,
	}
	return serial.OpenPort(cfg)
}

// SerialWorker owns one serial port and feeds every byte it reads to a
// Decoder, publishing each successful decode on its broadcast channel.
type SerialWorker[T any] struct {
	Name     string
	PortName string
	Baud     int
	Decoder  Decoder[T]
	Out      *broadcast.Broadcaster[T]

	log *log.Logger

	mu    sync.Mutex
	state State
	port  io.ReadWriteCloser
	stop  chan struct{}
	done  chan struct{}

	// onSample, when set, is called synchronously with every decoded
	// sample before it is published — used by specializations (VN200's
	// gps-available signal) to do protocol-specific bookkeeping without
	// subclassing.
	onSample func(T)
}

// NewSerialWorker constructs a Worker in the Constructed state. The port
// is not opened until Run is called on its own goroutine.
func NewSerialWorker[T any](name, portName string, baud int, dec Decoder[T], out *broadcast.Broadcaster[T]) *SerialWorker[T] {
	return &SerialWorker[T]{
		Name:     name,
		PortName: portName,
		Baud:     baud,
		Decoder:  dec,
		Out:      out,
		log:      log.New(log.Writer(), "["+name+"] ", log.LstdFlags),
		state:    StateConstructed,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// State returns the worker's current lifecycle state.
func (w *SerialWorker[T]) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

func (w *SerialWorker[T]) setState(s State) {
	w.mu.Lock()
	w.state = s
	w.mu.Unlock()
}

// OnSample registers a hook invoked synchronously with each decoded
// sample before it reaches Out. Must be called before Run.
func (w *SerialWorker[T]) OnSample(fn func(T)) {
	w.onSample = fn
}

// Port returns the underlying opened port, or nil if not yet open.
func (w *SerialWorker[T]) Port() io.ReadWriteCloser {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.port
}

// Run opens the port and runs the decode loop until Stop is called; a
// read error is treated as no data and does not end the loop. It is
// meant to run on its own goroutine.
func (w *SerialWorker[T]) Run() {
	defer close(w.done)
	w.setState(StateOpening)

	p, err := openPort(w.PortName, w.Baud)
	if err != nil {
		w.log.Printf("failed to open port %s: %v", w.PortName, err)
		w.setState(StateIdle)
		return
	}
	w.mu.Lock()
	w.port = p
	w.mu.Unlock()
	w.setState(StateRunning)

	buf := make([]byte, readChunkSize)
	for {
		select {
		case <-w.stop:
			p.Close()
			w.setState(StateClosed)
			return
		default:
		}

		n, err := p.Read(buf)
		if err != nil {
			// Read timeouts surface as an error from tarm/serial on some
			// platforms; treat any read error as "no data this tick" and
			// re-check the shutdown flag, matching spec.md section 5's
			// bounded cancellation latency.
			continue
		}
		for i := 0; i < n; i++ {
			sample, ok, decErr := w.Decoder.Feed(buf[i])
			if decErr != nil {
				decodeErrors.WithLabelValues(w.Name, decErr.Error()).Inc()
				continue
			}
			if !ok {
				continue
			}
			samplesDecoded.WithLabelValues(w.Name).Inc()
			if w.onSample != nil {
				w.onSample(sample)
			}
			w.Out.Publish(sample)
		}
	}
}

// Stop asks the worker to exit its loop and close its port. It does not
// block; wait on Done() to observe completion.
func (w *SerialWorker[T]) Stop() {
	close(w.stop)
}

// Done returns a channel closed once Run has returned.
func (w *SerialWorker[T]) Done() <-chan struct{} {
	return w.done
}
