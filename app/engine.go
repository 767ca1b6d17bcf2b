package app

import (
	"context"
	"slices"

	"github.com/Komrod/web-servo/script"
	"github.com/Komrod/web-servo/script/jsengine"
	"github.com/Komrod/web-servo/script/wasmengine"
	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
	"go.uber.org/fx"
)

// EngineFactory creates a script engine. The returned close function is called when the app stops and
// may be nil.
type EngineFactory func(ctx context.Context) (script.Engine, func(context.Context) error, error)

var engines = map[string]EngineFactory{
	jsengine.Name: func(context.Context) (script.Engine, func(context.Context) error, error) {
		return jsengine.New(), nil, nil
	},
	wasmengine.Name: func(ctx context.Context) (script.Engine, func(context.Context) error, error) {
		eng, err := wasmengine.New(ctx)
		if err != nil {
			return nil, nil, err
		}
		return eng, eng.Close, nil
	},
}

// EngineNames lists the registered engines in order.
func EngineNames() []string {
	names := lo.Keys(engines)
	slices.Sort(names)

	return names
}

// OpenEngine creates the engine registered under name.
func OpenEngine(ctx context.Context, name string) (script.Engine, func(context.Context) error, error) {
	factory, ok := engines[name]
	if !ok {
		return nil, nil, errors.Newf("unknown script engine %q (supported: %v)", name, EngineNames())
	}

	eng, closeFn, err := factory(ctx)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "init %s engine", name)
	}

	return eng, closeFn, nil
}

// NewEngine provides the engine named by the page configuration. It is released when the app stops.
func NewEngine(lc fx.Lifecycle, cfg *Config) (script.Engine, error) {
	eng, closeFn, err := OpenEngine(context.Background(), cfg.Page.Engine)
	if err != nil {
		return nil, err
	}

	if closeFn != nil {
		lc.Append(fx.Hook{OnStop: closeFn})
	}

	return eng, nil
}
