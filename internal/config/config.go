// Package config loads the dfti INI configuration file (spec.md section
// 6.4). Configuration-file loading is named in spec.md section 1 as an
// out-of-scope external collaborator with an interface-only contract;
// this package is the thin, real implementation that contract needs to
// run end-to-end.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/ini.v1"
)

// ErrConfigMissing is returned when no configuration file can be found
// at any of the lookup-order locations (spec.md section 6.4).
var ErrConfigMissing = errors.New("config: no configuration file found")

// SensorConfig holds the serial port settings common to every sensor
// section ([mavlink], [rio], [uadc], [vn200]).
type SensorConfig struct {
	SerialPort string
	BaudRate   int
}

// VN200Config extends SensorConfig with the VN-200-specific keys.
type VN200Config struct {
	SensorConfig
	WaitForGPS     bool
	PacketVariant  string // "ins" (default) or "legacy"
}

// MAVLinkConfig extends SensorConfig with the autopilot-specific keys.
type MAVLinkConfig struct {
	SensorConfig
	StreamRateHz       uint32
	UseMessageInterval bool
	WaitForInit        bool
}

// ServerConfig is the [server] section (the UDP state publisher).
type ServerConfig struct {
	Enabled bool
	Address string
	Port    uint16
	RateHz  uint8
}

// Config is the fully-resolved dfti configuration.
type Config struct {
	LogRateHz         uint16
	FlushTimeSec      uint16
	SetSystemTime     bool
	UseMavlink        bool
	UseRIO            bool
	UseUADC           bool
	UseVN200          bool
	WaitForAllSensors bool
	WaitForUpdate     bool

	Server  ServerConfig
	MAVLink MAVLinkConfig
	RIO     SensorConfig
	UADC    SensorConfig
	VN200   VN200Config
}

// defaults matches the default column of spec.md section 6.4.
func defaults() Config {
	return Config{
		LogRateHz:     100,
		FlushTimeSec:  10,
		WaitForUpdate: true,
		Server: ServerConfig{
			Address: "127.0.0.1",
			Port:    2701,
			RateHz:  50,
		},
	}
}

// Resolve implements the lookup order in spec.md section 6.4: the
// command-line path if given and it exists; else $HOME/.config/dfti/rc.ini;
// else /etc/dftirc; else ErrConfigMissing.
func Resolve(cliPath string) (string, error) {
	if cliPath != "" {
		if _, err := os.Stat(cliPath); err == nil {
			return cliPath, nil
		}
	}
	if home, err := os.UserHomeDir(); err == nil {
		p := filepath.Join(home, ".config", "dfti", "rc.ini")
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	if _, err := os.Stat("/etc/dftirc"); err == nil {
		return "/etc/dftirc", nil
	}
	return "", ErrConfigMissing
}

// Load parses the INI file at path into a Config, applying defaults for
// any key not present.
func Load(path string) (*Config, error) {
	f, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("config: loading %s: %w", path, err)
	}

	cfg := defaults()

	dfti := f.Section("dfti")
	cfg.LogRateHz = uint16(dfti.Key("log_rate_hz").MustUint(uint(cfg.LogRateHz)))
	cfg.FlushTimeSec = uint16(dfti.Key("flush_time_sec").MustUint(uint(cfg.FlushTimeSec)))
	cfg.SetSystemTime = dfti.Key("set_system_time").MustBool(false)
	cfg.UseMavlink = dfti.Key("use_mavlink").MustBool(false)
	cfg.UseRIO = dfti.Key("use_rio").MustBool(false)
	cfg.UseUADC = dfti.Key("use_uadc").MustBool(false)
	cfg.UseVN200 = dfti.Key("use_vn200").MustBool(false)
	cfg.WaitForAllSensors = dfti.Key("wait_for_all_sensors").MustBool(false)
	cfg.WaitForUpdate = dfti.Key("wait_for_update").MustBool(cfg.WaitForUpdate)

	server := f.Section("server")
	cfg.Server.Enabled = server.Key("enabled").MustBool(false)
	cfg.Server.Address = server.Key("address").MustString(cfg.Server.Address)
	cfg.Server.Port = uint16(server.Key("port").MustUint(uint(cfg.Server.Port)))
	cfg.Server.RateHz = uint8(server.Key("rate_hz").MustUint(uint(cfg.Server.RateHz)))
	// spec.md section 4.5 invariant: send_rate_hz <= log_rate_hz / 2.
	if maxRate := cfg.LogRateHz / 2; uint16(cfg.Server.RateHz) > maxRate {
		cfg.Server.RateHz = uint8(maxRate)
	}

	mav := f.Section("mavlink")
	cfg.MAVLink.SerialPort = mav.Key("serial_port").String()
	cfg.MAVLink.BaudRate = mav.Key("baud_rate").MustInt(57600)
	cfg.MAVLink.StreamRateHz = uint32(mav.Key("stream_rate").MustUint(4))
	cfg.MAVLink.UseMessageInterval = mav.Key("use_message_interval").MustBool(false)
	cfg.MAVLink.WaitForInit = mav.Key("wait_for_init").MustBool(false)

	rio := f.Section("rio")
	cfg.RIO.SerialPort = rio.Key("serial_port").String()
	cfg.RIO.BaudRate = rio.Key("baud_rate").MustInt(57600)

	uadc := f.Section("uadc")
	cfg.UADC.SerialPort = uadc.Key("serial_port").String()
	cfg.UADC.BaudRate = uadc.Key("baud_rate").MustInt(57600)

	vn := f.Section("vn200")
	cfg.VN200.SerialPort = vn.Key("serial_port").String()
	cfg.VN200.BaudRate = vn.Key("baud_rate").MustInt(115200)
	cfg.VN200.WaitForGPS = vn.Key("wait_for_gps").MustBool(false)
	cfg.VN200.PacketVariant = vn.Key("packet_variant").MustString("ins")

	return &cfg, nil
}
