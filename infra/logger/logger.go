package logger

import (
	"os"
	"strconv"

	"github.com/rs/zerolog"

	corelogger "github.com/kilianp07/trackdb/core/logger"
)

// Logger mirrors the core logger interface.
type Logger = corelogger.Logger

// NopLogger implements Logger with no-op methods.
type NopLogger struct{}

func (NopLogger) Debugf(string, ...any)         {}
func (NopLogger) Debugw(string, map[string]any) {}
func (NopLogger) Infof(string, ...any)          {}
func (NopLogger) Warnf(string, ...any)          {}
func (NopLogger) Errorf(string, ...any)         {}

// New returns a Logger for the given component. The output format is chosen
// from the APP_ENV variable.
func New(component string) Logger {
	return NewZerologLogger(component)
}

// SetDebug toggles debug output for every logger. Write successes and write
// errors are only reported at debug level. TRACKDB_DEBUG=true forces it on.
func SetDebug(enabled bool) {
	if v, err := strconv.ParseBool(os.Getenv("TRACKDB_DEBUG")); err == nil && v {
		enabled = true
	}
	if enabled {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		return
	}
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}
