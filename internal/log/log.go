// Package log writes leveled, categorized log lines for doideposit.
// Output goes to the debug file chosen with --debug or DOIDEPOSIT_DEBUG; every line is
// also published so the serve command can stream it.
package log

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/scholarly-tools/doideposit/internal/pubsub"
)

// Level is the severity of a line.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = [...]string{
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
}

func (l Level) String() string {
	if l < 0 || int(l) >= len(levelNames) {
		return "UNKNOWN"
	}
	return levelNames[l]
}

// Category is the part of doideposit a line comes from.
type Category string

const (
	CatDeposit Category = "deposit" // pipeline runs and status updates
	CatExport  Category = "export"
	CatHTTP    Category = "http" // CrossRef calls
	CatDB      Category = "db"
	CatConfig  Category = "config"
	CatCache   Category = "cache"
	CatAPI     Category = "api"
)

type logger struct {
	mu       sync.Mutex
	w        io.Writer
	minLevel Level
	lines    *pubsub.Broker[string]
}

// current is nil until Init or InitWriter runs; logging before that is a no-op.
var current atomic.Pointer[logger]

// Init appends debug-level output to the file at path and returns a function that
// closes it.
func Init(path string) (func(), error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644) //nolint:gosec // G304: debug log path comes from the user
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	install(f, LevelDebug)
	return func() { _ = f.Close() }, nil
}

// InitWriter sends lines at or above minLevel to w.
func InitWriter(w io.Writer, minLevel Level) {
	install(w, minLevel)
}

func install(w io.Writer, minLevel Level) {
	if old := current.Swap(&logger{w: w, minLevel: minLevel, lines: pubsub.NewBroker[string]()}); old != nil {
		old.lines.Close()
	}
}

// Debug logs at debug level. fields are key/value pairs.
func Debug(cat Category, msg string, fields ...any) { write(LevelDebug, cat, msg, fields) }

// Info logs at info level.
func Info(cat Category, msg string, fields ...any) { write(LevelInfo, cat, msg, fields) }

// Warn logs at warning level.
func Warn(cat Category, msg string, fields ...any) { write(LevelWarn, cat, msg, fields) }

// Error logs at error level.
func Error(cat Category, msg string, fields ...any) { write(LevelError, cat, msg, fields) }

// ErrorErr logs at error level with err appended as the "error" field.
func ErrorErr(cat Category, msg string, err error, fields ...any) {
	var text any = "<nil>"
	if err != nil {
		text = err.Error()
	}
	write(LevelError, cat, msg, append(fields, "error", text))
}

// format renders one line:
// 2025-12-06T10:45:00 [ERROR] [deposit] message key=value key2=value2
func format(at time.Time, level Level, cat Category, msg string, fields []any) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s] [%s] %s", at.Format("2006-01-02T15:04:05"), level, cat, msg)
	for i := 0; i < len(fields); i += 2 {
		if i+1 == len(fields) {
			fmt.Fprintf(&b, " %v=<missing>", fields[i])
			break
		}
		fmt.Fprintf(&b, " %v=%v", fields[i], fields[i+1])
	}
	b.WriteByte('\n')
	return b.String()
}

func write(level Level, cat Category, msg string, fields []any) {
	l := current.Load()
	if l == nil || level < l.minLevel {
		return
	}
	line := format(time.Now(), level, cat, msg, fields)

	l.mu.Lock()
	_, _ = io.WriteString(l.w, line)
	l.mu.Unlock()

	l.lines.Publish(pubsub.LoggedEvent, line)
}

// Subscribe streams formatted lines until ctx ends. It returns nil before logging is
// initialized.
func Subscribe(ctx context.Context) <-chan pubsub.Event[string] {
	l := current.Load()
	if l == nil {
		return nil
	}
	return l.lines.Subscribe(ctx)
}
