package logging

import (
	"log"
	"os"
)

// Logger is the sink used by long-lived components (push registry, bridge,
// worker). Args are appended to the message as extra context.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

type StdLogger struct {
	std *log.Logger
}

var _ Logger = (*StdLogger)(nil)

func NewStdLogger(std *log.Logger) *StdLogger {
	if std == nil {
		std = log.New(os.Stderr, "", log.LstdFlags)
	}
	return &StdLogger{std: std}
}

func (l *StdLogger) print(level string, msg string, args []interface{}) {
	if len(args) == 0 {
		l.std.Printf("[%s] %s", level, msg)
		return
	}
	l.std.Printf("[%s] %s %+v", level, msg, args)
}

func (l *StdLogger) Debug(msg string, args ...interface{}) { l.print("debug", msg, args) }
func (l *StdLogger) Info(msg string, args ...interface{})  { l.print("info", msg, args) }
func (l *StdLogger) Warn(msg string, args ...interface{})  { l.print("warn", msg, args) }
func (l *StdLogger) Error(msg string, args ...interface{}) { l.print("error", msg, args) }

// Discard drops everything. Used by tests.
type Discard struct{}

func (Discard) Debug(string, ...interface{}) {}
func (Discard) Info(string, ...interface{})  {}
func (Discard) Warn(string, ...interface{})  {}
func (Discard) Error(string, ...interface{}) {}
