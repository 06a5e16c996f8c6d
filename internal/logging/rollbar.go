package logging

import (
	"log"
	"os"

	"github.com/rollbar/rollbar-go"
)

// RollbarLogger reports to Rollbar and mirrors every entry to std.
type RollbarLogger struct {
	std *StdLogger
}

var _ Logger = (*RollbarLogger)(nil)

type RollbarOptions struct {
	Token       string
	Environment string
	CodeVersion string
}

func NewRollbarLogger(std *log.Logger, opts RollbarOptions) *RollbarLogger {
	rollbar.SetToken(opts.Token)
	rollbar.SetEnvironment(opts.Environment)
	rollbar.SetCodeVersion(opts.CodeVersion)
	if host, err := os.Hostname(); err == nil {
		rollbar.SetServerHost(host)
	}
	return &RollbarLogger{std: NewStdLogger(std)}
}

// expected fmt: msg | error, map[string]interface{}
func (l *RollbarLogger) prepare(msg string, args []interface{}) []interface{} {
	out := make([]interface{}, 0, len(args)+1)
	out = append(out, msg)
	return append(out, args...)
}

func (l *RollbarLogger) Debug(msg string, args ...interface{}) {
	rollbar.Debug(l.prepare(msg, args)...)
	l.std.Debug(msg, args...)
}

func (l *RollbarLogger) Info(msg string, args ...interface{}) {
	rollbar.Info(l.prepare(msg, args)...)
	l.std.Info(msg, args...)
}

func (l *RollbarLogger) Warn(msg string, args ...interface{}) {
	rollbar.Warning(l.prepare(msg, args)...)
	l.std.Warn(msg, args...)
}

func (l *RollbarLogger) Error(msg string, args ...interface{}) {
	rollbar.Error(l.prepare(msg, args)...)
	l.std.Error(msg, args...)
}

// Flush blocks until queued Rollbar items are sent.
func (l *RollbarLogger) Flush() {
	rollbar.Wait()
}

// New picks Rollbar when a token is configured.
func New(token string, environment string, codeVersion string) Logger {
	std := log.New(os.Stderr, "", log.LstdFlags)
	if token == "" {
		return NewStdLogger(std)
	}
	return NewRollbarLogger(std, RollbarOptions{
		Token:       token,
		Environment: environment,
		CodeVersion: codeVersion,
	})
}
