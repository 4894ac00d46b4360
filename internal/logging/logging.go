// Package logging wraps github.com/tliron/commonlog into the single
// leveled logger shared by the CLI driver and the language server, so
// that neither writes pass output to stdout: commonlog always targets
// stderr, keeping the BRIL-JSON output stream on stdout clean.
package logging

import "github.com/tliron/commonlog"

const loggerName = "brilopt"

// Configure sets the process-wide log verbosity from a CLI-facing
// level name.
func Configure(level string) {
	commonlog.Configure(verbosity(level), nil)
}

func verbosity(level string) int {
	switch level {
	case "error":
		return 0
	case "warn", "warning":
		return 1
	case "info":
		return 2
	case "debug":
		return 3
	default:
		return 1
	}
}

// Get returns the shared commonlog.Logger, for callers that need more
// than the package-level formatting helpers below.
func Get() commonlog.Logger {
	return commonlog.GetLogger(loggerName)
}

func Debugf(format string, args ...any) { Get().Debugf(format, args...) }
func Infof(format string, args ...any)  { Get().Infof(format, args...) }
func Warnf(format string, args ...any)  { Get().Warningf(format, args...) }
func Errorf(format string, args ...any) { Get().Errorf(format, args...) }
