package jsengine

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/dop251/goja"
)

const (
	wrapperHead = "(function(exports, require, module, __filename, __dirname) {"
	wrapperTail = "\n})"
)

// loader evaluates one module graph in one runtime. Modules are shared only within that graph, so a
// cycle sees the partial exports of the module that is still loading.
type loader struct {
	vm      *goja.Runtime
	exts    []string
	modules map[string]*goja.Object
}

// load evaluates the file and returns its module.exports.
func (l *loader) load(file string) (goja.Value, error) {
	if mod, ok := l.modules[file]; ok {
		return mod.Get("exports"), nil
	}

	src, err := os.ReadFile(file)
	if err != nil {
		return nil, errors.Wrapf(err, "read module %q", file)
	}

	mod := l.vm.NewObject()
	exports := l.vm.NewObject()
	if err := mod.Set("exports", exports); err != nil {
		return nil, errors.Wrap(err, "set exports")
	}

	l.modules[file] = mod

	if strings.EqualFold(filepath.Ext(file), ".json") {
		return l.loadJSON(file, mod, src)
	}

	prog, err := goja.Compile(file, wrapperHead+string(src)+wrapperTail, false)
	if err != nil {
		return nil, errors.Wrapf(err, "compile %q", file)
	}

	wrapper, err := l.vm.RunProgram(prog)
	if err != nil {
		return nil, errors.Wrapf(err, "evaluate %q", file)
	}

	call, ok := goja.AssertFunction(wrapper)
	if !ok {
		return nil, errors.Newf("module wrapper for %q is not a function", file)
	}

	if _, err := call(goja.Undefined(),
		exports,
		l.vm.ToValue(l.requireFrom(filepath.Dir(file))),
		mod,
		l.vm.ToValue(file),
		l.vm.ToValue(filepath.Dir(file)),
	); err != nil {
		return nil, errors.Wrapf(err, "run %q", file)
	}

	return mod.Get("exports"), nil
}

func (l *loader) loadJSON(file string, mod *goja.Object, src []byte) (goja.Value, error) {
	var v any
	if err := json.Unmarshal(src, &v); err != nil {
		return nil, errors.Wrapf(err, "decode %q", file)
	}

	if err := mod.Set("exports", v); err != nil {
		return nil, errors.Wrap(err, "set exports")
	}

	return mod.Get("exports"), nil
}

// requireFrom returns the require function seen by modules in dir. Only relative and absolute paths are
// supported; there is no package lookup.
func (l *loader) requireFrom(dir string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		name := call.Argument(0).String()
		if !strings.HasPrefix(name, "./") && !strings.HasPrefix(name, "../") && !filepath.IsAbs(name) {
			panic(l.vm.NewGoError(errors.Newf("cannot find module %q: only relative paths can be required", name)))
		}

		if !filepath.IsAbs(name) {
			name = filepath.Join(dir, filepath.FromSlash(name))
		}

		file, err := l.resolve(name)
		if err != nil {
			panic(l.vm.NewGoError(err))
		}

		exports, err := l.load(file)
		if err != nil {
			panic(l.vm.NewGoError(err))
		}

		return exports
	}
}

func (l *loader) resolve(name string) (string, error) {
	candidates := []string{name}
	for _, ext := range l.exts {
		candidates = append(candidates, name+ext)
	}
	for _, ext := range l.exts {
		candidates = append(candidates, filepath.Join(name, "index"+ext))
	}

	for _, c := range candidates {
		if fi, err := os.Stat(c); err == nil && !fi.IsDir() {
			return c, nil
		}
	}

	return "", errors.Newf("cannot find module %q", name)
}
