package flashdrv

import (
	"context"
	"log/slog"
)

// LogLevel selects which diagnostics the driver emits.
type LogLevel int32

// Log levels.
const (
	LogDisabled LogLevel = iota // no output
	LogInfo                     // info and errors
	LogError                    // errors only
	LogVerbose1                 // info, errors, per-write and per-sector details
	LogVerbose2                 // everything, including per-word program traces
)

// LevelTrace is the slog level used for LogVerbose2 output.
const LevelTrace = slog.LevelDebug - 4

// String returns a string representation of the log level.
func (l LogLevel) String() string {
	switch l {
	case LogDisabled:
		return "disabled"
	case LogInfo:
		return "info"
	case LogError:
		return "error"
	case LogVerbose1:
		return "verbose1"
	case LogVerbose2:
		return "verbose2"
	default:
		return "unknown"
	}
}

// ParseLogLevel parses the names returned by LogLevel.String.
func ParseLogLevel(s string) (LogLevel, bool) {
	for l := LogDisabled; l <= LogVerbose2; l++ {
		if l.String() == s {
			return l, true
		}
	}
	return LogDisabled, false
}

// allows reports whether a message at slog level lvl passes the filter.
func (l LogLevel) allows(lvl slog.Level) bool {
	switch l {
	case LogInfo:
		return lvl >= slog.LevelInfo
	case LogError:
		return lvl >= slog.LevelError
	case LogVerbose1:
		return lvl >= slog.LevelDebug
	case LogVerbose2:
		return true
	default:
		return false
	}
}

var discardLogger = slog.New(slog.DiscardHandler)

// SetLogger replaces the logger used for diagnostics. A nil logger
// discards output.
func (d *Driver) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = discardLogger
	}
	d.logger.Store(logger)
}

// SetLogLevel sets which diagnostics reach the logger.
func (d *Driver) SetLogLevel(level LogLevel) {
	d.logLevel.Store(int32(level))
}

func (d *Driver) log(lvl slog.Level, msg string, args ...any) {
	if !LogLevel(d.logLevel.Load()).allows(lvl) {
		return
	}
	logger := d.logger.Load()
	if logger == nil {
		return
	}
	logger.Log(context.Background(), lvl, msg, args...)
}

func (d *Driver) logInfo(msg string, args ...any)  { d.log(slog.LevelInfo, msg, args...) }
func (d *Driver) logError(msg string, args ...any) { d.log(slog.LevelError, msg, args...) }
func (d *Driver) logDebug(msg string, args ...any) { d.log(slog.LevelDebug, msg, args...) }
func (d *Driver) logTrace(msg string, args ...any) { d.log(LevelTrace, msg, args...) }
