// Package clocksync implements the GPS-driven OS clock correction
// (spec.md section 4.6): on a sane GPS timestamp it launches a date(1)
// subprocess to set the wall clock; once that succeeds it latches so it
// never fires again, while a failure leaves it ready to retry on the next
// timestamp, grounded on the teacher's exec.Command("date", "-s", ...)
// call (cyoung-stratux/main/gps.go).
package clocksync

import (
	"context"
	"log"
	"os/exec"
	"strconv"
	"sync"
	"time"
)

// gpsUnixOffsetSec is the GPS-to-Unix epoch offset in seconds
// (spec.md GLOSSARY: 1980-01-06 00:00:00 UTC).
const gpsUnixOffsetSec = 315964800

// sanityBoundNs rejects GPS timestamps too small to be a real fix
// (spec.md section 4.6, section 8 invariant 5).
const sanityBoundNs = 1e18

// commandTimeout bounds how long the date(1) subprocess may run
// (spec.md section 5).
const commandTimeout = 2 * time.Second

// Runner executes the OS clock-set command. Production code uses
// execRunner; tests substitute a fake to avoid actually changing the
// system clock.
type Runner interface {
	SetClock(ctx context.Context, unixSeconds int64) error
}

type execRunner struct{}

// SetClock runs the equivalent of `date +%s -s @{unixSeconds}`.
func (execRunner) SetClock(ctx context.Context, unixSeconds int64) error {
	arg := "@" + strconv.FormatInt(unixSeconds, 10)
	return exec.CommandContext(ctx, "date", "-s", arg).Run()
}

// ClockSyncer implements spec.md section 4.6: a one-shot latch that
// sets the OS clock from the first sane GPS timestamp for which the
// clock-set command succeeds.
type ClockSyncer struct {
	enabled bool
	runner  Runner
	log     *log.Logger

	mu      sync.Mutex
	latched bool
}

// New constructs a ClockSyncer. enabled mirrors the [dfti] set_system_time
// configuration key; when false, GPS events are observed but ignored.
func New(enabled bool) *ClockSyncer {
	return &ClockSyncer{
		enabled: enabled,
		runner:  execRunner{},
		log:     log.New(log.Writer(), "[clocksync] ", log.LstdFlags),
	}
}

// WithRunner overrides the command runner, used by tests.
func (c *ClockSyncer) WithRunner(r Runner) *ClockSyncer {
	c.runner = r
	return c
}

// OnGPSTimestamp handles one GPS-available event. It is safe to call
// concurrently and from any goroutine.
func (c *ClockSyncer) OnGPSTimestamp(gpsTimeNs uint64) {
	if !c.enabled {
		return
	}
	if gpsTimeNs <= sanityBoundNs {
		return
	}

	c.mu.Lock()
	if c.latched {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	unixSeconds := int64((gpsUnixOffsetSec*uint64(1e9) + gpsTimeNs) / uint64(1e9))

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	err := c.runner.SetClock(ctx, unixSeconds)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.log.Printf("warning: failed to set system clock: %v", err)
		return
	}
	c.latched = true
	c.log.Printf("system clock set from GPS to unix time %d", unixSeconds)
}

// Latched reports whether the clock has already been set this process
// lifetime (spec.md section 3 invariant: "The clock is set at most once
// per process lifetime").
func (c *ClockSyncer) Latched() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.latched
}
