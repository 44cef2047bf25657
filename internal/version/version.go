// Package version holds the application identity printed by --version
// and the startup banner, mirroring original_source/src/core/consts.hh.
package version

const (
	// AppName is the daemon's process name.
	AppName = "dfti"
	// AppVersion is the daemon's semantic version.
	AppVersion = "1.0.0"
)
