package webservo

import (
	"log"
	"sync/atomic"
	"testing"
)

// Logger can be implemented to get informed about important states. It receives the server's own
// diagnostics; request access and error lines go to the [LogSink] instead.
type Logger interface {
	LogUnhandledServeError(err error)
	LogImplicitFlushError(err error)
	LogScriptCloseError(path string, err error)
}

type stdLogger struct{ *log.Logger }

func (l stdLogger) LogUnhandledServeError(err error) {
	l.Logger.Printf("webservo: unhandled server error: %s", err)
}

func (l stdLogger) LogImplicitFlushError(err error) {
	l.Logger.Printf("webservo: error while flushing implicitly: %s", err)
}

func (l stdLogger) LogScriptCloseError(path string, err error) {
	l.Logger.Printf("webservo: failed to release script %q: %s", path, err)
}

func NewStdLogger(l *log.Logger) Logger {
	if l == nil {
		l = log.Default()
	}

	return stdLogger{l}
}

type TestLogger struct {
	tb testing.TB

	NumLogUnhandledServeError int64
	NumLogImplicitFlushError  int64
	NumLogScriptCloseError    int64
}

func NewTestLogger(tb testing.TB) *TestLogger {
	return &TestLogger{tb: tb}
}

func (l *TestLogger) LogUnhandledServeError(err error) {
	atomic.AddInt64(&l.NumLogUnhandledServeError, 1)
	l.tb.Logf("webservo: unhandled server error: %s", err)
}

func (l *TestLogger) LogImplicitFlushError(err error) {
	atomic.AddInt64(&l.NumLogImplicitFlushError, 1)
	l.tb.Logf("webservo: error while flushing implicitly: %s", err)
}

func (l *TestLogger) LogScriptCloseError(path string, err error) {
	atomic.AddInt64(&l.NumLogScriptCloseError, 1)
	l.tb.Logf("webservo: failed to release script %q: %s", path, err)
}

var _ Logger = &TestLogger{}
