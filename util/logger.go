// Package util provides low-level helpers shared by all other packages.
package util

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// LogLevel controls output verbosity.
type LogLevel int

const (
	LogQuiet   LogLevel = 0 // errors only
	LogNormal  LogLevel = 1 // transitions, warnings
	LogVerbose LogLevel = 2 // failed attempts, retry delays
	LogDebug   LogLevel = 3 // every attempt, adapter detail
)

// TimestampFormat is the prefix layout used when timestamps are on.
const TimestampFormat = "2006-01-02 15:04:05.000"

// tags maps each message class to its line tag and the minimum level
// that prints it.
var tags = [...]struct { //nolint:gochecknoglobals
	tag string
	min LogLevel
}{
	classError:   {"ERR", LogQuiet},
	classWarn:    {"WRN", LogNormal},
	classInfo:    {"INF", LogNormal},
	classVerbose: {"VRB", LogVerbose},
	classDebug:   {"DBG", LogDebug},
}

type class int

const (
	classError class = iota
	classWarn
	classInfo
	classVerbose
	classDebug
)

// Logger writes one line per message: optional timestamp, optional
// session tag, level tag, text.  It is safe for concurrent use; lines
// from concurrent connect sequences never interleave.
type Logger struct {
	level LogLevel

	mu         sync.Mutex
	output     io.Writer
	timestamps bool
	session    string
	now        func() time.Time
}

// NewLogger returns a Logger writing to stderr that prints messages at
// or below the given verbosity.  Timestamps are on: transition lines
// are read after the fact.
func NewLogger(verbosity int) *Logger {
	return &Logger{
		level:      LogLevel(verbosity),
		output:     os.Stderr,
		timestamps: true,
		now:        time.Now,
	}
}

// Discard returns a Logger that drops everything, for tests.
func Discard() *Logger {
	l := NewLogger(int(LogDebug))
	l.output = io.Discard
	return l
}

// SetTimestamps enables or disables timestamp prefixes.
func (l *Logger) SetTimestamps(on bool) {
	l.mu.Lock()
	l.timestamps = on
	l.mu.Unlock()
}

// SetOutput overrides the output writer.
func (l *Logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	l.output = w
	l.mu.Unlock()
}

// SetSession tags every following line with id, shortened to its first
// eight characters.  An empty id removes the tag.
func (l *Logger) SetSession(id string) {
	if len(id) > 8 {
		id = id[:8]
	}
	l.mu.Lock()
	l.session = id
	l.mu.Unlock()
}

// Level returns the current log level.
func (l *Logger) Level() LogLevel { return l.level }

// Enabled reports whether messages at lvl would print.
func (l *Logger) Enabled(lvl LogLevel) bool { return l.level >= lvl }

// Error always prints.
func (l *Logger) Error(format string, args ...interface{}) { l.logf(classError, format, args) }

// Warn prints at normal verbosity and above.
func (l *Logger) Warn(format string, args ...interface{}) { l.logf(classWarn, format, args) }

// Info prints at normal verbosity and above.
func (l *Logger) Info(format string, args ...interface{}) { l.logf(classInfo, format, args) }

// Verbose prints with -v.
func (l *Logger) Verbose(format string, args ...interface{}) { l.logf(classVerbose, format, args) }

// Debug prints with -vv.
func (l *Logger) Debug(format string, args ...interface{}) { l.logf(classDebug, format, args) }

func (l *Logger) logf(c class, format string, args []interface{}) {
	t := tags[c]
	if l.level < t.min {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	var b strings.Builder
	if l.timestamps {
		b.WriteString(l.now().Format(TimestampFormat))
		b.WriteByte(' ')
	}
	if l.session != "" {
		b.WriteString(l.session)
		b.WriteByte(' ')
	}
	b.WriteByte('[')
	b.WriteString(t.tag)
	b.WriteString("] ")
	fmt.Fprintf(&b, format, args...)
	b.WriteByte('\n')
	io.WriteString(l.output, b.String()) //nolint:errcheck
}
