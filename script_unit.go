package webservo

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/Komrod/web-servo/script"
	"github.com/cockroachdb/errors"
)

// scriptUnit loads and invokes one script per call. Nothing survives a call: the module is closed before
// the unit returns, whatever the outcome. Load and invoke hold a single lock, so at most one script runs
// at any time.
type scriptUnit struct {
	mu     sync.Mutex
	engine script.Engine
	cfg    *Config
	sink   LogSink
	logs   Logger
}

func (u *scriptUnit) run(ctx context.Context, w ResponseWriter, rc RequestContext, file string, params *Params) (Reply, error) {
	fi, err := os.Stat(file)
	if err != nil {
		return Reply{}, notFound(file, errors.Wrapf(err, "Error: script not found %q", file))
	} else if fi.IsDir() {
		return Reply{}, notFound(file, errors.Newf("Error: script %q is a directory", file))
	}

	res, err := u.loadAndInvoke(ctx, w, rc, file, params)
	if err != nil {
		if u.cfg.Debug {
			u.diagnose(ctx, file)
		}

		return Reply{}, serverError(file, errors.Wrapf(err, "script %q", file))
	}

	if len(res.Body) == 0 {
		u.sink.Warning(fmt.Sprintf("Script %q returned nothing", file))
	}

	return Reply{ContentType: "text/html", Body: res.Body}, nil
}

func (u *scriptUnit) loadAndInvoke(
	ctx context.Context, w ResponseWriter, rc RequestContext, file string, params *Params,
) (res script.Result, err error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	mod, err := u.engine.Load(ctx, file)
	if err != nil {
		return res, errors.Wrap(err, "load")
	}

	defer func() {
		if cerr := mod.Close(ctx); cerr != nil {
			u.logs.LogScriptCloseError(file, cerr)
		}
	}()

	if !mod.Invocable() {
		return res, nil
	}

	defer func() {
		if e := recover(); e != nil {
			err = errors.Newf("panic: %v", e)
		}
	}()

	res, err = mod.Invoke(ctx, script.Call{
		Request:  rc.scriptRequest(),
		Response: w,
		Params:   params.Pairs(),
		Host:     host{cfg: u.cfg, sink: u.sink},
	})
	if err != nil {
		return res, errors.Wrap(err, "invoke")
	}

	return res, nil
}

// diagnose writes syntax diagnostics for file to the error channel, line by line.
func (u *scriptUnit) diagnose(ctx context.Context, file string) {
	var lines []string
	var err error

	switch d, ok := u.engine.(script.Diagnoser); {
	case len(u.cfg.Checker) > 0:
		lines, err = runChecker(ctx, u.cfg.Checker, file)
	case ok:
		lines, err = d.Diagnose(ctx, file)
	default:
		return
	}

	for _, line := range lines {
		u.sink.Error(line)
	}

	if err != nil {
		u.sink.Error(fmt.Sprintf("diagnostics for %q failed: %s", file, err))
	}
}

// runChecker runs the external command with the file appended. A non-zero exit is the normal outcome for a
// broken script and is not an error.
func runChecker(ctx context.Context, checker []string, file string) ([]string, error) {
	args := append(append([]string(nil), checker[1:]...), file)

	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, checker[0], args...) //nolint:gosec
	cmd.Stdout, cmd.Stderr = &out, &out

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, errors.Wrapf(err, "run %q", checker[0])
		}
	}

	var lines []string
	for sc := bufio.NewScanner(&out); sc.Scan(); {
		if line := strings.TrimRight(sc.Text(), "\r"); line != "" {
			lines = append(lines, line)
		}
	}

	return lines, nil
}
