package wasmengine

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/Komrod/web-servo/script"
	"github.com/cockroachdb/errors"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/sys"
)

type module struct {
	rt        wazero.Runtime
	compiled  wazero.CompiledModule
	path      string
	invocable bool
}

// payload is what the module reads from stdin.
type payload struct {
	Method        string            `json:"method"`
	URL           string            `json:"url"`
	Path          string            `json:"path"`
	Headers       map[string]string `json:"headers"`
	RemoteAddress string            `json:"remoteAddress"`
	Params        []param           `json:"params"`
	Dir           dirs              `json:"dir"`
	// RemainingMs is the time left before the request deadline. Zero means no deadline.
	RemainingMs   int64             `json:"remainingMs"`
}

type param struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type dirs struct {
	Base string `json:"base"`
	WWW  string `json:"www"`
}

func (m *module) Invocable() bool { return m.invocable }

// Invoke instantiates the module and runs its entrypoint. Exiting with status zero is a success.
func (m *module) Invoke(ctx context.Context, call script.Call) (script.Result, error) {
	if !m.invocable {
		return script.Result{}, nil
	}

	stdin, err := json.Marshal(newPayload(ctx, call))
	if err != nil {
		return script.Result{}, errors.Wrap(err, "encode payload")
	}

	var stdout, stderr bytes.Buffer
	cfg := wazero.NewModuleConfig().
		WithName("").
		WithArgs(m.path).
		WithStartFunctions().
		WithStdin(bytes.NewReader(stdin)).
		WithStdout(&stdout).
		WithStderr(&stderr)

	inst, err := m.rt.InstantiateModule(ctx, m.compiled, cfg)
	if err != nil {
		return script.Result{}, errors.Wrapf(err, "instantiate %q", m.path)
	}
	defer inst.Close(ctx)

	_, err = inst.ExportedFunction(entrypoint).Call(ctx)
	forwardLines(&stderr, call.Host)

	if exitErr := (*sys.ExitError)(nil); errors.As(err, &exitErr) && exitErr.ExitCode() == 0 {
		err = nil
	}

	if err != nil {
		return script.Result{}, errors.Wrapf(err, "run %q", m.path)
	}

	return script.Result{Body: stdout.Bytes()}, nil
}

// Close releases the compiled module.
func (m *module) Close(ctx context.Context) error {
	return errors.Wrapf(m.compiled.Close(ctx), "close %q", m.path)
}

func newPayload(ctx context.Context, call script.Call) payload {
	pl := payload{
		Method:        call.Request.Method,
		URL:           call.Request.URL,
		Path:          call.Request.Path,
		Headers:       map[string]string{},
		RemoteAddress: call.Request.RemoteAddr,
		Params:        make([]param, 0, len(call.Params)),
		RemainingMs:   script.RemainingTime(ctx).Milliseconds(),
	}

	for k, vs := range call.Request.Header {
		pl.Headers[strings.ToLower(k)] = strings.Join(vs, ", ")
	}

	for _, p := range call.Params {
		pl.Params = append(pl.Params, param{Key: p.Key, Value: p.Value})
	}

	if call.Host != nil {
		pl.Dir = dirs{Base: call.Host.BaseDir(), WWW: call.Host.DocumentRoot()}
	}

	return pl
}

func forwardLines(r io.Reader, h script.Host) {
	if h == nil {
		return
	}

	for sc := bufio.NewScanner(r); sc.Scan(); {
		if line := strings.TrimRight(sc.Text(), "\r"); line != "" {
			h.Error(line)
		}
	}
}
