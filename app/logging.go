package app

import (
	webservo "github.com/Komrod/web-servo"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger creates the diagnostics logger. It uses JSON encoding, or the development console encoder
// when error debugging is enabled.
func NewLogger(cfg *Config) (*zap.Logger, error) {
	if cfg.Log.Error.Debug {
		return zap.NewDevelopment()
	}

	zcfg := zap.NewProductionConfig()
	zcfg.EncoderConfig.TimeKey = "timestamp"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return zcfg.Build()
}

type zapLogger struct{ *zap.Logger }

func (l zapLogger) LogUnhandledServeError(err error) {
	l.Logger.Error("unhandled server error", zap.Error(err))
}

func (l zapLogger) LogImplicitFlushError(err error) {
	l.Logger.Error("error while flushing implicitly", zap.Error(err))
}

func (l zapLogger) LogScriptCloseError(path string, err error) {
	l.Logger.Warn("failed to release script", zap.String("path", path), zap.Error(err))
}

func newZapServoLogger(l *zap.Logger) webservo.Logger {
	return zapLogger{l.Named("webservo")}
}
