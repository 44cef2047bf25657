package worker

import "github.com/tamu-vscl/dfti/internal/sensordata"

// GPSEvent is the one-shot signal the VN-200 worker raises to the Clock
// Syncer whenever a decoded sample carries a non-zero lat/lon fix
// (spec.md section 4.2's VN200 specialization).
type GPSEvent struct {
	GPSTimeNs uint64
}

// NewVN200GPSHook returns an OnSample hook for a VN200 SerialWorker that
// forwards a GPSEvent to events whenever the sample's |lat| or |lon| is
// nonzero. events should be a small buffered channel; if it is full the
// event is dropped, since the Clock Syncer only needs to observe one
// reasonably current fix and missing a signal is harmless.
func NewVN200GPSHook(events chan<- GPSEvent) func(sensordata.VN200Data) {
	return func(s sensordata.VN200Data) {
		lat, lon := s.PosDegDegM[0], s.PosDegDegM[1]
		if lat == 0 && lon == 0 {
			return
		}
		select {
		case events <- GPSEvent{GPSTimeNs: s.GPSTimeNs}:
		default:
		}
	}
}
