// Package wasmengine executes WebAssembly script resources with wazero. A script is a WASI command module:
// it reads a JSON description of the request from stdin and writes the response body to stdout. Anything
// written to stderr ends up on the server's error channel, one record per line.
//
// Modules are compiled on every load and the compiled form is closed once the call is over, so a rebuilt
// .wasm file takes effect on the next request.
package wasmengine

import (
	"context"
	"os"

	"github.com/Komrod/web-servo/script"
	"github.com/cockroachdb/errors"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
)

// Name is the registry name of the engine.
const Name = "wasm"

const entrypoint = "_start"

// Engine holds the wazero runtime shared by all loads.
type Engine struct {
	rt wazero.Runtime
}

// New inits the runtime and instantiates WASI into it. Cancelling a call's context aborts the module.
func New(ctx context.Context) (*Engine, error) {
	rt := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfig().WithCloseOnContextDone(true))

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		_ = rt.Close(ctx)
		return nil, errors.Wrap(err, "instantiate wasi")
	}

	return &Engine{rt: rt}, nil
}

func (e *Engine) Name() string { return Name }

// Load reads and compiles the module at path.
func (e *Engine) Load(ctx context.Context, path string) (script.Module, error) {
	bin, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read module %q", path)
	}

	compiled, err := e.rt.CompileModule(ctx, bin)
	if err != nil {
		return nil, errors.Wrapf(err, "compile module %q", path)
	}

	_, invocable := compiled.ExportedFunctions()[entrypoint]

	return &module{rt: e.rt, compiled: compiled, path: path, invocable: invocable}, nil
}

// Diagnose compiles the module and reports why it does not validate.
func (e *Engine) Diagnose(ctx context.Context, path string) ([]string, error) {
	bin, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read module %q", path)
	}

	compiled, err := e.rt.CompileModule(ctx, bin)
	if err != nil {
		return []string{err.Error()}, nil
	}

	if _, ok := compiled.ExportedFunctions()[entrypoint]; !ok {
		_ = compiled.Close(ctx)
		return []string{path + ": module does not export " + entrypoint}, nil
	}

	return nil, errors.Wrap(compiled.Close(ctx), "close compiled module")
}

// Close releases the runtime and everything compiled in it.
func (e *Engine) Close(ctx context.Context) error {
	return errors.Wrap(e.rt.Close(ctx), "close runtime")
}

var (
	_ script.Engine    = &Engine{}
	_ script.Diagnoser = &Engine{}
)
