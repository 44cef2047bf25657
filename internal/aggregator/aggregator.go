// Package aggregator owns the four per-sensor CSV logs (spec.md section
// 4.4): it subscribes to every enabled worker's sample channel, keeps the
// latest snapshot of each sensor plus a "fresh since last tick" flag, and
// writes one line per active sensor on every log-rate tick, grounded on
// the teacher's encoding/csv TraceLogger (cyoung-stratux/main/trace.go).
package aggregator

import (
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/tamu-vscl/dfti/internal/config"
	"github.com/tamu-vscl/dfti/internal/sensordata"
)

const (
	f32Precision  = 7
	f64Precision  = 15
	uadcPrecision = 2
)

func f32s(v float32) string {
	return strconv.FormatFloat(float64(v), 'f', f32Precision, 32)
}

func f64s(v float64) string {
	return strconv.FormatFloat(v, 'f', f64Precision, 64)
}

func uadcF32s(v float32) string {
	return strconv.FormatFloat(float64(v), 'f', uadcPrecision, 32)
}

// sensorLog owns one sensor's open CSV file and write state.
type sensorLog struct {
	file          *os.File
	writer        *csv.Writer
	headerWritten bool
}

func (s *sensorLog) writeRow(fields []string) error {
	if err := s.writer.Write(fields); err != nil {
		return err
	}
	s.writer.Flush()
	return s.writer.Error()
}

// Aggregator implements spec.md section 4.4.
type Aggregator struct {
	cfg config.Config
	log *log.Logger

	mu sync.Mutex

	apLog    *sensorLog
	rioLog   *sensorLog
	uadcLog  *sensorLog
	vn200Log *sensorLog

	apData    sensordata.APData
	apFresh   bool
	rioData   sensordata.RIOData
	rioFresh  bool
	rioSeen   bool
	rioN      int
	uadcData  sensordata.UADCData
	uadcFresh bool
	vnData    sensordata.VN200Data
	vnFresh   bool

	stop chan struct{}
	done chan struct{}
}

// New constructs an Aggregator. Call Start to open the per-sensor log
// files; opening fails fatally per spec.md section 7's LogOpenFailure
// entry, so the caller should treat a non-nil error from Start as fatal.
func New(cfg config.Config) *Aggregator {
	return &Aggregator{
		cfg:  cfg,
		log:  log.New(log.Writer(), "[aggregator] ", log.LstdFlags),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

func openSensorLog(dir, name string, stamp string) (*sensorLog, error) {
	path := filepath.Join(dir, fmt.Sprintf("%s-%s.csv", name, stamp))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("aggregator: opening %s: %w", path, err)
	}
	return &sensorLog{file: f, writer: csv.NewWriter(f)}, nil
}

// Start opens one CSV file per enabled sensor, named per spec.md section
// 4.4's {autopilot,rio,uadc,vn200}-YYYYMMDDTHHMM.csv convention.
func (a *Aggregator) Start(logDir string) error {
	stamp := time.Now().UTC().Format("20060102T1504")

	if a.cfg.UseMavlink {
		l, err := openSensorLog(logDir, "autopilot", stamp)
		if err != nil {
			return err
		}
		a.apLog = l
	}
	if a.cfg.UseRIO {
		l, err := openSensorLog(logDir, "rio", stamp)
		if err != nil {
			return err
		}
		a.rioLog = l
	}
	if a.cfg.UseUADC {
		l, err := openSensorLog(logDir, "uadc", stamp)
		if err != nil {
			return err
		}
		a.uadcLog = l
	}
	if a.cfg.UseVN200 {
		l, err := openSensorLog(logDir, "vn200", stamp)
		if err != nil {
			return err
		}
		a.vn200Log = l
	}
	return nil
}

// OnAP overwrites the latest autopilot snapshot and marks it fresh.
func (a *Aggregator) OnAP(s sensordata.APData) {
	a.mu.Lock()
	a.apData, a.apFresh = s, true
	a.mu.Unlock()
}

// OnRIO overwrites the latest RIO snapshot and marks it fresh.
func (a *Aggregator) OnRIO(s sensordata.RIOData) {
	a.mu.Lock()
	a.rioData, a.rioFresh, a.rioSeen = s, true, true
	a.mu.Unlock()
}

// OnUADC overwrites the latest uADC snapshot and marks it fresh.
func (a *Aggregator) OnUADC(s sensordata.UADCData) {
	a.mu.Lock()
	a.uadcData, a.uadcFresh = s, true
	a.mu.Unlock()
}

// OnVN200 overwrites the latest VN-200 snapshot and marks it fresh.
func (a *Aggregator) OnVN200(s sensordata.VN200Data) {
	a.mu.Lock()
	a.vnData, a.vnFresh = s, true
	a.mu.Unlock()
}

// Run drives the write and flush tickers until Stop is called. Meant to
// run on its own goroutine.
func (a *Aggregator) Run() {
	defer close(a.done)

	logRateHz := a.cfg.LogRateHz
	if logRateHz == 0 {
		logRateHz = 1
	}
	writeTicker := time.NewTicker(time.Second / time.Duration(logRateHz))
	defer writeTicker.Stop()

	flushSec := a.cfg.FlushTimeSec
	if flushSec == 0 {
		flushSec = 10
	}
	flushTicker := time.NewTicker(time.Duration(flushSec) * time.Second)
	defer flushTicker.Stop()

	for {
		select {
		case <-a.stop:
			a.closeAll()
			return
		case <-writeTicker.C:
			a.writeTick()
		case <-flushTicker.C:
			a.flushAll()
		}
	}
}

// Stop asks Run to exit and close every open log file.
func (a *Aggregator) Stop() {
	close(a.stop)
}

// Done returns a channel closed once Run has returned.
func (a *Aggregator) Done() <-chan struct{} {
	return a.done
}

func (a *Aggregator) allHighRateFresh() bool {
	if a.cfg.UseUADC && !a.uadcFresh {
		return false
	}
	if a.cfg.UseVN200 && !a.vnFresh {
		return false
	}
	return true
}

// shouldLog implements spec.md section 4.4's gating formula:
// should_log(s) = file_open(s) ∧ enabled(s) ∧ (¬wait_for_update ∨ fresh(s)).
func shouldLog(fileOpen, enabled, waitForUpdate, fresh bool) bool {
	return fileOpen && enabled && (!waitForUpdate || fresh)
}

func (a *Aggregator) writeTick() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cfg.WaitForAllSensors && !a.allHighRateFresh() {
		return
	}

	// Headers are written on the first tick per active file, independent
	// of freshness (spec.md section 4.4); RIO's header is deferred until
	// its first sample arrives, since its column count depends on N.
	a.writeAPHeader()
	a.writeUADCHeader()
	a.writeVN200Header()

	now := time.Now().UnixMicro()

	if shouldLog(a.apLog != nil, a.cfg.UseMavlink, a.cfg.WaitForUpdate, a.apFresh) {
		a.writeAPRow(now)
		a.apFresh = false
	}
	if shouldLog(a.rioLog != nil, a.cfg.UseRIO, a.cfg.WaitForUpdate, a.rioFresh) && a.rioSeen {
		a.writeRIORow(now)
		a.rioFresh = false
	}
	if shouldLog(a.uadcLog != nil, a.cfg.UseUADC, a.cfg.WaitForUpdate, a.uadcFresh) {
		a.writeUADCRow(now)
		a.uadcFresh = false
	}
	if shouldLog(a.vn200Log != nil, a.cfg.UseVN200, a.cfg.WaitForUpdate, a.vnFresh) {
		a.writeVN200Row(now)
		a.vnFresh = false
	}
}

func (a *Aggregator) writeAPHeader() {
	if a.apLog == nil || a.apLog.headerWritten {
		return
	}
	header := []string{"unix_time", "rc_in_time"}
	for i := 1; i <= 8; i++ {
		header = append(header, fmt.Sprintf("rc_in_%d_pwm", i))
	}
	header = append(header, "rc_out_time")
	for i := 1; i <= 8; i++ {
		header = append(header, fmt.Sprintf("rc_out_%d_pwm", i))
	}
	if err := a.apLog.writeRow(header); err != nil {
		a.log.Printf("warning: writing autopilot header: %v", err)
	}
	a.apLog.headerWritten = true
}

func (a *Aggregator) writeUADCHeader() {
	if a.uadcLog == nil || a.uadcLog.headerWritten {
		return
	}
	header := []string{"unix_time", "uadc_id", "ias_mps", "aoa_deg", "aos_deg", "alt_m", "pt_pa", "ps_pa"}
	if err := a.uadcLog.writeRow(header); err != nil {
		a.log.Printf("warning: writing uadc header: %v", err)
	}
	a.uadcLog.headerWritten = true
}

// isVN200Legacy reports whether the active VN-200 decoder is configured
// for the legacy packet variant, which carries five extra columns
// (mag_x/mag_y/mag_z, temp_c, pressure_kpa) per SPEC_FULL.md section 3.
func (a *Aggregator) isVN200Legacy() bool {
	return a.cfg.VN200.PacketVariant == "legacy"
}

func (a *Aggregator) writeVN200Header() {
	if a.vn200Log == nil || a.vn200Log.headerWritten {
		return
	}
	header := []string{
		"unix_time", "gps_time_ns",
		"psi_deg", "theta_deg", "phi_deg",
		"quat_w", "quat_x", "quat_y", "quat_z",
		"p_rps", "q_rps", "r_rps",
		"lat_deg", "lon_deg", "alt_m",
		"Vx_mps", "Vy_mps", "Vz_mps",
		"Ax_mps2", "Ay_mps2", "Az_mps2",
	}
	if a.isVN200Legacy() {
		header = append(header, "mag_x", "mag_y", "mag_z", "temp_c", "pressure_kpa")
	}
	if err := a.vn200Log.writeRow(header); err != nil {
		a.log.Printf("warning: writing vn200 header: %v", err)
	}
	a.vn200Log.headerWritten = true
}

func (a *Aggregator) writeAPRow(nowUs int64) {
	row := []string{strconv.FormatInt(nowUs, 10), strconv.FormatUint(uint64(a.apData.RCInTimeUs), 10)}
	for _, c := range a.apData.RCIn {
		row = append(row, strconv.FormatUint(uint64(c), 10))
	}
	row = append(row, strconv.FormatUint(uint64(a.apData.RCOutTimeUs), 10))
	for _, c := range a.apData.RCOut {
		row = append(row, strconv.FormatUint(uint64(c), 10))
	}
	if err := a.apLog.writeRow(row); err != nil {
		a.log.Printf("warning: writing autopilot row: %v", err)
	}
}

func (a *Aggregator) writeRIORow(nowUs int64) {
	if !a.rioLog.headerWritten {
		a.rioN = len(a.rioData.Values)
		header := []string{"unix_time"}
		for i := 0; i < a.rioN; i++ {
			header = append(header, fmt.Sprintf("rio_value_%d", i))
		}
		if err := a.rioLog.writeRow(header); err != nil {
			a.log.Printf("warning: writing rio header: %v", err)
		}
		a.rioLog.headerWritten = true
	}
	row := []string{strconv.FormatInt(nowUs, 10)}
	for i := 0; i < a.rioN; i++ {
		var v float32
		if i < len(a.rioData.Values) {
			v = a.rioData.Values[i]
		}
		row = append(row, f32s(v))
	}
	if err := a.rioLog.writeRow(row); err != nil {
		a.log.Printf("warning: writing rio row: %v", err)
	}
}

func (a *Aggregator) writeUADCRow(nowUs int64) {
	d := a.uadcData
	row := []string{
		strconv.FormatInt(nowUs, 10),
		strconv.FormatUint(uint64(d.SeqID), 10),
		uadcF32s(d.IASMps),
		uadcF32s(d.AoADeg),
		uadcF32s(d.AoSDeg),
		strconv.FormatUint(uint64(d.AltM), 10),
		strconv.FormatUint(uint64(d.TotalPressPa), 10),
		strconv.FormatUint(uint64(d.StaticPressPa), 10),
	}
	if err := a.uadcLog.writeRow(row); err != nil {
		a.log.Printf("warning: writing uadc row: %v", err)
	}
}

func (a *Aggregator) writeVN200Row(nowUs int64) {
	d := a.vnData
	row := []string{
		strconv.FormatInt(nowUs, 10),
		strconv.FormatUint(d.GPSTimeNs, 10),
		f32s(d.EulerDeg[0]), f32s(d.EulerDeg[1]), f32s(d.EulerDeg[2]),
		f32s(d.Quaternion[0]), f32s(d.Quaternion[1]), f32s(d.Quaternion[2]), f32s(d.Quaternion[3]),
		f32s(d.RatesRPS[0]), f32s(d.RatesRPS[1]), f32s(d.RatesRPS[2]),
		f64s(d.PosDegDegM[0]), f64s(d.PosDegDegM[1]), f64s(d.PosDegDegM[2]),
		f32s(d.VelNedMps[0]), f32s(d.VelNedMps[1]), f32s(d.VelNedMps[2]),
		f32s(d.AccelMps2[0]), f32s(d.AccelMps2[1]), f32s(d.AccelMps2[2]),
	}
	if a.isVN200Legacy() {
		row = append(row,
			f32s(d.MagGauss[0]), f32s(d.MagGauss[1]), f32s(d.MagGauss[2]),
			f32s(d.TempC), f32s(d.PressureKpa),
		)
	}
	if err := a.vn200Log.writeRow(row); err != nil {
		a.log.Printf("warning: writing vn200 row: %v", err)
	}
}

func (a *Aggregator) flushAll() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, l := range []*sensorLog{a.apLog, a.rioLog, a.uadcLog, a.vn200Log} {
		if l == nil {
			continue
		}
		l.writer.Flush()
		l.file.Sync()
	}
}

func (a *Aggregator) closeAll() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, l := range []*sensorLog{a.apLog, a.rioLog, a.uadcLog, a.vn200Log} {
		if l == nil {
			continue
		}
		l.writer.Flush()
		l.file.Close()
	}
}
