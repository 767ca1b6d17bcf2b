package app

import (
	"context"

	"go.uber.org/fx"
)

// App wraps an fx.App for lifecycle management.
type App struct {
	app *fx.App
}

// AppConfig holds configuration for the app.
type AppConfig struct {
	FxOptions   []fx.Option
	Console     Console
	TraceOutput TraceOutput
}

// Option configures the App.
type Option func(*AppConfig)

// WithFx adds fx options for dependency injection.
func WithFx(fxOpts ...fx.Option) Option {
	return func(c *AppConfig) {
		c.FxOptions = append(c.FxOptions, fxOpts...)
	}
}

// WithConsole sends the log sink's console output to w. The last one given wins.
func WithConsole(w Console) Option {
	return func(c *AppConfig) { c.Console = w }
}

// WithTraceOutput sends exported spans to w.
func WithTraceOutput(w TraceOutput) Option {
	return func(c *AppConfig) { c.TraceOutput = w }
}

// FxOptions returns the dependency graph of the server for the given configuration.
func FxOptions(cfg *Config, opts ...Option) []fx.Option {
	var acfg AppConfig
	for _, opt := range opts {
		opt(&acfg)
	}

	baseOpts := make([]fx.Option, 0, 12+len(acfg.FxOptions))
	baseOpts = append(baseOpts, []fx.Option{
		fx.NopLogger,
		fx.Supply(cfg),
		fx.Provide(NewLogger),
		fx.Provide(NewSink),
		fx.Provide(NewEngine),
		fx.Provide(NewTracerProvider),
		fx.Provide(NewPropagator),
		fx.Provide(NewHandler),
		fx.Provide(NewServer),
		fx.Invoke(startServerHook),
	}...)

	if acfg.Console != nil {
		baseOpts = append(baseOpts, fx.Provide(func() Console { return acfg.Console }))
	}

	if acfg.TraceOutput != nil {
		baseOpts = append(baseOpts, fx.Provide(func() TraceOutput { return acfg.TraceOutput }))
	}

	return append(baseOpts, acfg.FxOptions...)
}

// NewApp creates the server app.
//
//	cfg, err := app.Load("config.json")
//	if err != nil {
//	    return err
//	}
//	app.NewApp(cfg).Run()
func NewApp(cfg *Config, opts ...Option) *App {
	return &App{
		app: fx.New(FxOptions(cfg, opts...)...),
	}
}

// Err returns the error of building the dependency graph, if any.
func (a *App) Err() error {
	return a.app.Err()
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() {
	a.app.Run()
}

// Start starts the application with the given context.
func (a *App) Start(ctx context.Context) error {
	if err := a.app.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.app.StopTimeout())
	defer cancel()

	return a.app.Stop(stopCtx)
}
