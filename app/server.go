package app

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	webservo "github.com/Komrod/web-servo"
	"github.com/Komrod/web-servo/logsink"
	"github.com/Komrod/web-servo/script"
	"github.com/cockroachdb/errors"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

const readHeaderTimeout = 10 * time.Second

// Console is where the log sink mirrors lines. Defaults to the colored stdout.
type Console io.Writer

// SinkParams holds the dependencies of the log sink.
type SinkParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    *Config
	Logger    *zap.Logger
	Console   Console `optional:"true"`
}

// NewSink creates the access and error log channels. They are checked on start and closed on stop.
func NewSink(params SinkParams) *logsink.Sink {
	opts := []logsink.Option{logsink.WithLogger(params.Logger.Named("logsink"))}
	if params.Console != nil {
		opts = append(opts, logsink.WithConsole(params.Console))
	}

	sink := logsink.New(params.Config.SinkConfig(), opts...)

	params.Lifecycle.Append(fx.Hook{
		OnStart: func(context.Context) error {
			_ = sink.Check() // problems are reported on the console
			return nil
		},
		OnStop: func(context.Context) error {
			return sink.Close()
		},
	})

	return sink
}

// HandlerParams holds the dependencies of the request pipeline.
type HandlerParams struct {
	fx.In

	Config *Config
	Engine script.Engine
	Sink   *logsink.Sink
	Logger *zap.Logger
}

// NewHandler creates the request pipeline.
func NewHandler(params HandlerParams) (*webservo.Server, error) {
	core, err := params.Config.Core()
	if err != nil {
		return nil, err
	}

	return webservo.New(core, params.Engine, params.Sink,
		webservo.WithLogger(newZapServoLogger(params.Logger)),
		webservo.WithMiddleware(logRequests(params.Logger.Named("request"))),
	)
}

// ServerParams holds the dependencies for creating an HTTP server.
type ServerParams struct {
	fx.In

	Config     *Config
	Handler    *webservo.Server
	TracerProv trace.TracerProvider
	Propagator propagation.TextMapPropagator
}

// NewServer creates the HTTP server with tracing, request ids and the request deadline around the pipeline.
func NewServer(params ServerParams) *http.Server {
	timeout := time.Duration(params.Config.Server.Timeout)

	handler := withTracing(params.TracerProv, params.Propagator, params.Config.Trace.Service)(
		withRequestID(withRequestDeadline(timeout)(params.Handler)))

	if params.Config.Server.H2C {
		handler = h2c.NewHandler(handler, &http2.Server{})
	}

	header, read, write := serverTimeouts(timeout)

	return &http.Server{
		Addr:              params.Config.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: header,
		ReadTimeout:       read,
		WriteTimeout:      write,
	}
}

// startServerHook registers lifecycle hooks for the HTTP server. The listener is opened synchronously so
// that a port already in use fails the start.
func startServerHook(lc fx.Lifecycle, server *http.Server, cfg *Config, sink *logsink.Sink, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if cfg.File() != "" {
				sink.Notice(fmt.Sprintf("Using config file %q", cfg.File()))
			}
			sink.Notice(fmt.Sprintf("Using WWW directory %q", cfg.WWWDir()))

			ln, err := (&net.ListenConfig{}).Listen(ctx, "tcp", server.Addr)
			if err != nil {
				return errors.Wrapf(err, "listen on %s", server.Addr)
			}

			logger.Info("starting server", zap.String("addr", ln.Addr().String()))
			sink.Info(fmt.Sprintf("Server listening on: http://localhost:%d", ln.Addr().(*net.TCPAddr).Port))

			go func() {
				if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("server error", zap.Error(err))
				}
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("stopping server")
			return server.Shutdown(ctx)
		},
	})
}
