package webservo

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Komrod/web-servo/script"
	"github.com/cockroachdb/errors"
)

// Server runs the request pipeline: resolve, merge parameters, dispatch to a script or a static file and
// emit exactly one canonical response.
type Server struct {
	cfg     Config
	logs    Logger
	sink    LogSink
	decoder bodyDecoder
	scripts *scriptUnit
	emit    emitter
	handler Handler
}

// Option configures a [Server].
type Option func(*Server)

// WithLogger sets the logger for the server's own diagnostics.
func WithLogger(l Logger) Option {
	return func(s *Server) { s.logs = l }
}

// WithMiddleware wraps the dispatch handler. The first middleware is the outermost.
func WithMiddleware(m ...Middleware) Option {
	return func(s *Server) { s.handler = Wrap(s.handler, m...) }
}

// New inits a server from a validated configuration.
func New(cfg Config, engine script.Engine, sink LogSink, opts ...Option) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}

	if engine == nil {
		return nil, errors.New("script engine must not be nil")
	} else if sink == nil {
		return nil, errors.New("log sink must not be nil")
	}

	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}

	srv := &Server{
		cfg:     cfg,
		logs:    NewStdLogger(nil),
		sink:    sink,
		decoder: bodyDecoder{uploadDir: cfg.UploadDir, maxFieldSize: cfg.MaxFieldSize},
		emit:    emitter{sink: sink},
	}

	srv.handler = HandlerFunc(srv.dispatch)
	for _, o := range opts {
		o(srv)
	}

	srv.scripts = &scriptUnit{engine: engine, cfg: &srv.cfg, sink: sink, logs: srv.logs}

	return srv, nil
}

// Config returns a copy of the effective configuration.
func (s *Server) Config() Config { return s.cfg }

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rc := NewRequestContext(r)
	bw := NewResponseWriter(w, s.cfg.BufferLimit)
	defer bw.Free()

	reply, err := s.serve(r.Context(), bw, r)
	if err != nil {
		bw.Reset()
		s.emit.fail(bw, rc, err)
	} else {
		s.emit.ok(bw, rc, reply)
	}

	if err := bw.FlushBuffer(); err != nil {
		s.logs.LogImplicitFlushError(err)
	}
}

// serve runs the handler chain. A panic anywhere below becomes a server error.
func (s *Server) serve(ctx context.Context, w ResponseWriter, r *http.Request) (reply Reply, err error) {
	defer func() {
		if e := recover(); e != nil {
			err = serverError("", errors.Newf("panic: %v", e))
			s.logs.LogUnhandledServeError(err)
		}
	}()

	return s.handler.ServeServo(ctx, w, r)
}

func (s *Server) dispatch(ctx context.Context, w ResponseWriter, r *http.Request) (Reply, error) {
	res := Resolve(s.cfg.Root, s.cfg.DefaultDocument, s.cfg.ScriptExtension, r.URL.RequestURI())

	params := ParseQuery(r.URL.RawQuery)
	if s.cfg.CleanupUploads {
		defer func() {
			if err := params.RemoveUploads(); err != nil {
				s.sink.Warning(fmt.Sprintf("Failed to clean up uploads: %s", err))
			}
		}()
	}

	if r.Method == http.MethodPost {
		if err := s.decoder.Decode(r, params); err != nil {
			return Reply{}, serverError(res.File, errors.Wrap(err, "decode body"))
		}
	}

	switch res.Kind {
	case KindScript:
		return s.scripts.run(ctx, w, NewRequestContext(r), res.File, params)
	default:
		return serveStatic(res.File)
	}
}
