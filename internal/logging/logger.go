package logging

import (
	"fmt"
	"io"
	"io/ioutil"
	"log"
	"sync"

	"github.com/fatih/color"
	"github.com/google/uuid"
)

// Logger is the main logger type. It has the novel property that it still
// functions if nil, but it doesn't log anything. It wraps the standard
// library logger, so it respects any flags set on it, and is safe for
// concurrent use.
type Logger struct {
	// prefix is any prefix specified for the logger.
	prefix string
	// level is the minimum level at which this logger (and its subloggers)
	// will emit output.
	level Level
	// runID is an optional correlation identifier attached to every line
	// emitted at LevelDebug. It is empty unless explicitly assigned.
	runID string
}

// RootLogger is the root logger from which all other loggers derive. Its
// level defaults to LevelWarn, matching rdup's default (non-verbose)
// behavior: only diagnostics and fatal errors are printed.
var RootLogger = &Logger{level: LevelWarn}

var runIDOnce sync.Once

// SetLevel adjusts the logger's threshold. It is normally called once, from
// the CLI layer, after parsing --verbose.
func (l *Logger) SetLevel(level Level) {
	if l != nil {
		l.level = level
	}
}

// AssignRunID generates a fresh correlation identifier for this logger and
// all lines it emits at LevelDebug. It is a no-op if called more than once or
// on a nil logger.
func (l *Logger) AssignRunID() {
	if l == nil {
		return
	}
	runIDOnce.Do(func() {
		l.runID = uuid.NewString()
	})
}

// Sublogger creates a new sublogger with the specified name, inheriting the
// parent's level and run ID.
func (l *Logger) Sublogger(name string) *Logger {
	if l == nil {
		return nil
	}
	prefix := name
	if l.prefix != "" {
		prefix = l.prefix + "." + name
	}
	return &Logger{
		prefix: prefix,
		level:  l.level,
		runID:  l.runID,
	}
}

// output is the internal logging method.
func (l *Logger) output(line string) {
	if l.prefix != "" {
		line = fmt.Sprintf("[%s] %s", l.prefix, line)
	}
	if l.runID != "" {
		line = fmt.Sprintf("[%s] %s", l.runID, line)
	}
	log.Output(3, line)
}

// Error logs a fatal-class diagnostic. Always emitted, regardless of level,
// matching rdup's unconditional "** message" diagnostics.
func (l *Logger) Error(v ...interface{}) {
	if l != nil {
		l.output(color.RedString("** ") + fmt.Sprint(v...))
	}
}

// Warn logs a non-fatal diagnostic (corrupt record, stat failure). Emitted at
// LevelWarn and above.
func (l *Logger) Warn(v ...interface{}) {
	if l != nil && l.level >= LevelWarn {
		l.output(color.YellowString("** ") + fmt.Sprint(v...))
	}
}

// Info logs basic execution information. Emitted at LevelInfo and above.
func (l *Logger) Info(v ...interface{}) {
	if l != nil && l.level >= LevelInfo {
		l.output(fmt.Sprint(v...))
	}
}

// Infof is the formatted variant of Info.
func (l *Logger) Infof(format string, v ...interface{}) {
	if l != nil && l.level >= LevelInfo {
		l.output(fmt.Sprintf(format, v...))
	}
}

// Debugf logs per-record diagnostics. Emitted at LevelDebug only.
func (l *Logger) Debugf(format string, v ...interface{}) {
	if l != nil && l.level >= LevelDebug {
		l.output(fmt.Sprintf(format, v...))
	}
}

// Writer returns an io.Writer that writes lines using Warn. Useful for
// handing the logger to APIs that expect a plain io.Writer.
func (l *Logger) Writer() io.Writer {
	if l == nil {
		return ioutil.Discard
	}
	return &lineWriter{log: l}
}

// lineWriter adapts Logger.Warn to the io.Writer interface. Each Write is
// passed to a single Warn call as-is; input is not split into lines.
type lineWriter struct {
	log *Logger
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.log.Warn(string(p))
	return len(p), nil
}
