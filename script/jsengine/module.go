package jsengine

import (
	"context"
	"net/http"
	"strings"

	"github.com/Komrod/web-servo/script"
	"github.com/cockroachdb/errors"
	"github.com/dop251/goja"
)

type module struct {
	vm        *goja.Runtime
	fn        goja.Callable
	invocable bool
	path      string
}

func (m *module) Invocable() bool { return m.invocable }

// Invoke calls the exported function. Cancelling ctx interrupts the script.
func (m *module) Invoke(ctx context.Context, call script.Call) (script.Result, error) {
	if !m.invocable {
		return script.Result{}, nil
	}

	stop := context.AfterFunc(ctx, func() { m.vm.Interrupt(ctx.Err()) })
	defer stop()

	ret, err := m.fn(goja.Undefined(),
		m.requestObject(call.Request, call.Params),
		m.responseObject(call.Response),
		m.paramsObject(call.Params),
		m.serverObject(ctx, call.Host),
	)
	if err != nil {
		return script.Result{}, errors.Wrapf(err, "call %q", m.path)
	}

	return script.Result{Body: coerce(ret)}, nil
}

// Close drops the runtime. Nothing of the module outlives it.
func (m *module) Close(context.Context) error {
	if m.vm != nil {
		m.vm.ClearInterrupt()
	}

	m.vm, m.fn = nil, nil

	return nil
}

// coerce turns the returned value into a body. undefined, null, false and the empty string are "nothing".
func coerce(v goja.Value) []byte {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil
	}

	switch exp := v.Export().(type) {
	case bool:
		if !exp {
			return nil
		}
	case goja.ArrayBuffer:
		return exp.Bytes()
	case []byte:
		return exp
	}

	return []byte(v.String())
}

func (m *module) requestObject(req script.Request, params []script.Param) *goja.Object {
	obj := m.vm.NewObject()
	headers := m.vm.NewObject()

	pairs := make([]any, 0, len(params))
	for _, p := range params {
		pairs = append(pairs, m.vm.NewArray(p.Key, p.Value))
	}

	for k, vs := range req.Header {
		_ = headers.Set(strings.ToLower(k), strings.Join(vs, ", "))
	}

	_ = obj.Set("method", req.Method)
	_ = obj.Set("url", req.URL)
	_ = obj.Set("path", req.Path)
	_ = obj.Set("headers", headers)
	_ = obj.Set("remoteAddress", req.RemoteAddr)
	_ = obj.Set("params", m.vm.NewArray(pairs...))

	return obj
}

func (m *module) responseObject(w http.ResponseWriter) *goja.Object {
	obj := m.vm.NewObject()

	_ = obj.Set("setHeader", func(name, value string) { w.Header().Set(name, value) })
	_ = obj.Set("removeHeader", func(name string) { w.Header().Del(name) })
	_ = obj.Set("getHeader", func(call goja.FunctionCall) goja.Value {
		vals := w.Header().Values(call.Argument(0).String())
		if len(vals) == 0 {
			return goja.Undefined()
		}
		return m.vm.ToValue(strings.Join(vals, ", "))
	})
	_ = obj.Set("write", func(call goja.FunctionCall) goja.Value {
		if _, err := w.Write(coerce(call.Argument(0))); err != nil {
			panic(m.vm.NewGoError(errors.Wrap(err, "response.write")))
		}
		return goja.Undefined()
	})

	return obj
}

// paramsObject maps keys to values on a null-prototype object, so "__proto__" is an ordinary key. Integer-like
// keys enumerate first; request.params holds the pairs in order.
func (m *module) paramsObject(params []script.Param) *goja.Object {
	obj := m.vm.CreateObject(nil)
	for _, p := range params {
		_ = obj.DefineDataProperty(p.Key, m.vm.ToValue(p.Value), goja.FLAG_TRUE, goja.FLAG_TRUE, goja.FLAG_TRUE)
	}

	return obj
}

func (m *module) serverObject(ctx context.Context, h script.Host) *goja.Object {
	obj := m.vm.NewObject()

	_ = obj.Set("remaining", func() int64 { return script.RemainingTime(ctx).Milliseconds() })

	if h == nil {
		return obj
	}

	dir := m.vm.NewObject()
	_ = dir.Set("base", h.BaseDir())
	_ = dir.Set("www", h.DocumentRoot())

	_ = obj.Set("log", func(call goja.FunctionCall) goja.Value {
		h.Log(call.Argument(0).String())
		return goja.Undefined()
	})
	_ = obj.Set("warning", func(call goja.FunctionCall) goja.Value {
		h.Warning(call.Argument(0).String())
		return goja.Undefined()
	})
	_ = obj.Set("error", func(call goja.FunctionCall) goja.Value {
		h.Error(call.Argument(0).String())
		return goja.Undefined()
	})
	_ = obj.Set("config", func(call goja.FunctionCall) goja.Value {
		v, ok := h.Setting(call.Argument(0).String())
		if !ok {
			return goja.Undefined()
		}
		return m.vm.ToValue(v)
	})
	_ = obj.Set("dir", dir)

	return obj
}
