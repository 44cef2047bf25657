// Command dfti is the flight-test instrumentation daemon (spec.md
// section 6.3): it loads configuration, starts one worker per enabled
// sensor plus the Aggregator and State Publisher, exposes a Prometheus
// /metrics endpoint, and shuts down cleanly on SIGINT/SIGTERM. Grounded
// on the teacher's flag/signal.Notify/promhttp daemon shape
// (cyoung-stratux/fancontrol_main/fancontrol.go).
package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tamu-vscl/dfti/internal/config"
	"github.com/tamu-vscl/dfti/internal/debugflags"
	"github.com/tamu-vscl/dfti/internal/supervisor"
	"github.com/tamu-vscl/dfti/internal/version"
)

const metricsAddr = ":9110"

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath  string
		debugData   bool
		debugRC     bool
		debugSerial bool
		showVersion bool
	)

	flag.StringVar(&configPath, "c", "", "path to configuration file")
	flag.StringVar(&configPath, "config", "", "path to configuration file")
	flag.BoolVar(&debugData, "d", false, "enable data debug output")
	flag.BoolVar(&debugData, "debug-data", false, "enable data debug output")
	flag.BoolVar(&debugRC, "r", false, "enable RC debug output")
	flag.BoolVar(&debugRC, "debug-rc", false, "enable RC debug output")
	flag.BoolVar(&debugSerial, "s", false, "enable serial debug output")
	flag.BoolVar(&debugSerial, "debug-serial", false, "enable serial debug output")
	flag.BoolVar(&showVersion, "version", false, "print version and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("%s %s\n", version.AppName, version.AppVersion)
		return 0
	}

	flags := debugflags.NewSet(debugRC, debugSerial, debugData)
	if flags.Has(debugflags.RC) || flags.Has(debugflags.Serial) || flags.Has(debugflags.Data) {
		log.Printf("debug flags enabled: rc=%v serial=%v data=%v", debugRC, debugSerial, debugData)
	}

	resolvedPath, err := config.Resolve(configPath)
	if err != nil {
		log.Printf("fatal: %v", err)
		return 1
	}
	cfg, err := config.Load(resolvedPath)
	if err != nil {
		log.Printf("fatal: %v", err)
		return 1
	}

	log.Printf("%s %s starting, config: %s, sensors: mavlink=%v rio=%v uadc=%v vn200=%v",
		version.AppName, version.AppVersion, resolvedPath,
		cfg.UseMavlink, cfg.UseRIO, cfg.UseUADC, cfg.UseVN200)

	sup := supervisor.New(*cfg)
	if err := sup.Start("."); err != nil {
		log.Printf("fatal: %v", err)
		return -1
	}

	http.Handle("/metrics", promhttp.Handler())
	go http.ListenAndServe(metricsAddr, nil)

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	sig := <-interrupt
	log.Printf("received signal %v, shutting down", sig)

	sup.Stop()
	return 0
}
