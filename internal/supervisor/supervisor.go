// Package supervisor is the root of the daemon (spec.md section 4.7):
// it reads configuration, constructs a worker per enabled sensor, wires
// each worker's broadcast channel to the Aggregator and, where
// applicable, the Publisher, starts every goroutine, and owns
// coordinated shutdown. Grounded on the teacher's signal.Notify-driven
// shutdown loop (cyoung-stratux/fancontrol_main/fancontrol.go).
package supervisor

import (
	"log"

	"github.com/tamu-vscl/dfti/internal/aggregator"
	"github.com/tamu-vscl/dfti/internal/broadcast"
	"github.com/tamu-vscl/dfti/internal/clocksync"
	"github.com/tamu-vscl/dfti/internal/config"
	"github.com/tamu-vscl/dfti/internal/publisher"
	"github.com/tamu-vscl/dfti/internal/sensordata"
	"github.com/tamu-vscl/dfti/internal/worker"
)

// runnable is the lifecycle contract every worker/aggregator/publisher
// satisfies, letting the Supervisor start and stop them uniformly.
type runnable interface {
	Run()
	Stop()
	Done() <-chan struct{}
}

// Supervisor implements spec.md section 4.7.
type Supervisor struct {
	cfg config.Config
	log *log.Logger

	agg *aggregator.Aggregator
	pub *publisher.Publisher
	clk *clocksync.ClockSyncer

	// started holds every long-lived task in start order, so Stop can
	// join them in reverse order (spec.md section 4.7).
	started []runnable
}

// New constructs a Supervisor. Call Start to open logs, spawn workers,
// and wire everything together.
func New(cfg config.Config) *Supervisor {
	return &Supervisor{
		cfg: cfg,
		log: log.New(log.Writer(), "[supervisor] ", log.LstdFlags),
		agg: aggregator.New(cfg),
		clk: clocksync.New(cfg.SetSystemTime),
	}
}

// Start opens the Aggregator's log files, constructs a worker per
// enabled sensor, wires their sample channels to the Aggregator and (for
// INS/ADS/RIO) the Publisher, and starts every goroutine. logDir names
// the directory CSV logs are written into.
func (s *Supervisor) Start(logDir string) error {
	if err := s.agg.Start(logDir); err != nil {
		return err
	}

	if s.cfg.Server.Enabled {
		s.pub = publisher.New(s.cfg.Server.Address, s.cfg.Server.Port, s.cfg.Server.RateHz)
	}

	if s.cfg.UseMavlink {
		apOut := broadcast.New[sensordata.APData]()
		apCh := apOut.Register()
		apWorker := worker.NewAutopilotWorker(worker.AutopilotConfig{
			PortName:           s.cfg.MAVLink.SerialPort,
			Baud:               s.cfg.MAVLink.BaudRate,
			StreamRateHz:       s.cfg.MAVLink.StreamRateHz,
			UseMessageInterval: s.cfg.MAVLink.UseMessageInterval,
		}, apOut)
		s.spawn(apWorker)
		go s.forwardAP(apCh)
	}

	if s.cfg.UseUADC {
		uadcOut := broadcast.New[sensordata.UADCData]()
		uadcCh := uadcOut.Register()
		uadcWorker := worker.NewSerialWorker[sensordata.UADCData](
			"uadc", s.cfg.UADC.SerialPort, s.cfg.UADC.BaudRate, sensordata.NewUADCDecoder(), uadcOut)
		s.spawn(uadcWorker)
		go s.forwardUADC(uadcCh)
	}

	if s.cfg.UseRIO {
		rioOut := broadcast.New[sensordata.RIOData]()
		rioCh := rioOut.Register()
		rioWorker := worker.NewSerialWorker[sensordata.RIOData](
			"rio", s.cfg.RIO.SerialPort, s.cfg.RIO.BaudRate, sensordata.NewRIODecoder(), rioOut)
		s.spawn(rioWorker)
		go s.forwardRIO(rioCh)
	}

	if s.cfg.UseVN200 {
		vnOut := broadcast.New[sensordata.VN200Data]()
		vnCh := vnOut.Register()
		variant := sensordata.PacketVariantINS
		if s.cfg.VN200.PacketVariant == "legacy" {
			variant = sensordata.PacketVariantLegacy
		}
		vnWorker := worker.NewSerialWorker[sensordata.VN200Data](
			"vn200", s.cfg.VN200.SerialPort, s.cfg.VN200.BaudRate, sensordata.NewVN200Decoder(variant), vnOut)

		gpsEvents := make(chan worker.GPSEvent, 1)
		vnWorker.OnSample(worker.NewVN200GPSHook(gpsEvents))
		go s.watchGPSEvents(gpsEvents)

		s.spawn(vnWorker)
		go s.forwardVN200(vnCh)
	}

	s.spawn(s.agg)
	if s.pub != nil {
		s.spawn(s.pub)
	}

	return nil
}

func (s *Supervisor) spawn(r runnable) {
	s.started = append(s.started, r)
	go r.Run()
}

func (s *Supervisor) forwardAP(ch <-chan sensordata.APData) {
	for sample := range ch {
		s.agg.OnAP(sample)
	}
}

func (s *Supervisor) forwardUADC(ch <-chan sensordata.UADCData) {
	for sample := range ch {
		s.agg.OnUADC(sample)
		if s.pub != nil {
			s.pub.OnADS(sample)
		}
	}
}

func (s *Supervisor) forwardRIO(ch <-chan sensordata.RIOData) {
	for sample := range ch {
		s.agg.OnRIO(sample)
		if s.pub != nil {
			s.pub.OnRIO(sample)
		}
	}
}

func (s *Supervisor) forwardVN200(ch <-chan sensordata.VN200Data) {
	for sample := range ch {
		s.agg.OnVN200(sample)
		if s.pub != nil {
			s.pub.OnINS(sample)
		}
	}
}

func (s *Supervisor) watchGPSEvents(events <-chan worker.GPSEvent) {
	for ev := range events {
		s.clk.OnGPSTimestamp(ev.GPSTimeNs)
	}
}

// Stop asks every started task to exit and waits for each to confirm,
// joining in reverse start order (spec.md section 4.7).
func (s *Supervisor) Stop() {
	for i := len(s.started) - 1; i >= 0; i-- {
		s.started[i].Stop()
	}
	for i := len(s.started) - 1; i >= 0; i-- {
		<-s.started[i].Done()
	}
	s.log.Println("shutdown complete")
}
