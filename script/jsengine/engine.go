// Package jsengine executes JavaScript script resources with goja. A script is a CommonJS module whose
// export is a function taking (request, response, params, server) and returning the response body.
//
//	module.exports = function (request, response, params, server) {
//		return "Hello " + params.name;
//	};
//
// Every load starts from a fresh runtime, so neither the script nor anything it requires is remembered
// between requests.
package jsengine

import (
	"context"
	"os"
	"path/filepath"

	"github.com/Komrod/web-servo/script"
	"github.com/cockroachdb/errors"
	"github.com/dop251/goja"
)

// Name is the registry name of the engine.
const Name = "js"

// Engine loads JavaScript modules.
type Engine struct {
	exts []string
}

// Option configures the [Engine].
type Option func(*Engine)

// WithRequireExtensions sets the extensions tried, in order, when require() is given a path without one.
func WithRequireExtensions(exts ...string) Option {
	return func(e *Engine) { e.exts = exts }
}

// New inits the engine.
func New(opts ...Option) *Engine {
	e := &Engine{exts: []string{".js", ".json"}}
	for _, o := range opts {
		o(e)
	}

	return e
}

func (e *Engine) Name() string { return Name }

// Load runs the module's top-level code in a new runtime and returns what it exported.
func (e *Engine) Load(ctx context.Context, path string) (script.Module, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve %q", path)
	}

	vm := goja.New()

	stop := context.AfterFunc(ctx, func() { vm.Interrupt(ctx.Err()) })
	defer stop()

	ld := &loader{vm: vm, exts: e.exts, modules: map[string]*goja.Object{}}

	exports, err := ld.load(abs)
	if err != nil {
		return nil, err
	}

	fn, ok := goja.AssertFunction(exports)

	return &module{vm: vm, fn: fn, invocable: ok, path: abs}, nil
}

// Diagnose parses the file and reports its syntax errors, one per line. A script that parses yields nothing.
func (e *Engine) Diagnose(_ context.Context, path string) ([]string, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read %q", path)
	}

	return syntaxErrors(path, string(src)), nil
}

var (
	_ script.Engine    = &Engine{}
	_ script.Diagnoser = &Engine{}
)
