package driver

import (
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
)

// Logger names used across the module.
const (
	DriverLogName  = "sigil.driver"
	HarnessLogName = "sigil.harness"
)

var log = commonlog.GetLogger(DriverLogName)

// ConfigureLogging sets commonlog's verbosity and destination.
func ConfigureLogging(cfg LogConfig) {
	var path *string
	if cfg.Path != "" {
		path = &cfg.Path
	}
	commonlog.Configure(cfg.Verbosity, path)
}
