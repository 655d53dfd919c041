// Package logging builds the charmbracelet logger behind leaker's slog
// default. The --debug flag wins over the environment so that decode stops
// and converted faults, which the core logs at debug level, show up with
// their call sites.
package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
)

// LoggerCloser wraps a logger and the file it writes to, if any.
type LoggerCloser struct {
	*log.Logger
	closer io.Closer
}

func (lc *LoggerCloser) Close() error {
	if lc.closer != nil {
		return lc.closer.Close()
	}
	return nil
}

// ParseLevel maps a LEAKER_LOG_LEVEL value to a level, defaulting to info.
func ParseLevel(s string) log.Level {
	switch s {
	case "debug":
		return log.DebugLevel
	case "warn":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	}
	return log.InfoLevel
}

// NewLoggerWithWriter creates a logger writing to w. With debug set the level
// is forced to debug and every record reports its caller, regardless of
// LEAKER_LOG_LEVEL.
func NewLoggerWithWriter(w io.Writer, debug bool) *LoggerCloser {
	lg := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
	})

	lg.SetLevel(ParseLevel(os.Getenv("LEAKER_LOG_LEVEL")))
	if debug {
		lg.SetLevel(log.DebugLevel)
		lg.SetReportCaller(true)
	}

	prefix := os.Getenv("LEAKER_LOG_PREFIX")
	if prefix == "" {
		prefix = "leaker "
	}

	var closer io.Closer
	if c, ok := w.(io.Closer); ok && w != os.Stderr {
		closer = c
	}

	return &LoggerCloser{
		Logger: lg.WithPrefix(prefix),
		closer: closer,
	}
}

// NewLogger writes to stderr, or to leaker-<time>-debug.log in the working
// directory when LEAKER_LOG_TO_FILE=1, so that REPL sessions stay readable
// while a script is being debugged. The file is closed by Close.
func NewLogger(debug bool) *LoggerCloser {
	output := io.Writer(os.Stderr)

	if os.Getenv("LEAKER_LOG_TO_FILE") == "1" {
		timestamp := time.Now().Format("20060102-150405")
		logFile := fmt.Sprintf("leaker-%s-debug.log", timestamp)

		f, err := os.OpenFile(logFile, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
		if err == nil {
			output = f
		}
	}

	return NewLoggerWithWriter(output, debug)
}
