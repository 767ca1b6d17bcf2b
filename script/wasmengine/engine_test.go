package wasmengine_test

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/Komrod/web-servo/script"
	"github.com/Komrod/web-servo/script/wasmengine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	header = []byte("\x00asm\x01\x00\x00\x00")

	// exports an empty _start
	noopModule = concat(header,
		[]byte{0x01, 0x04, 0x01, 0x60, 0x00, 0x00},
		[]byte{0x03, 0x02, 0x01, 0x00},
		[]byte{0x07, 0x0a, 0x01, 0x06}, []byte("_start"), []byte{0x00, 0x00},
		[]byte{0x0a, 0x04, 0x01, 0x02, 0x00, 0x0b},
	)

	// exports a _start that hits unreachable
	trapModule = concat(header,
		[]byte{0x01, 0x04, 0x01, 0x60, 0x00, 0x00},
		[]byte{0x03, 0x02, 0x01, 0x00},
		[]byte{0x07, 0x0a, 0x01, 0x06}, []byte("_start"), []byte{0x00, 0x00},
		[]byte{0x0a, 0x05, 0x01, 0x03, 0x00, 0x00, 0x0b},
	)

	// writes "OK" to stdout through wasi fd_write
	okModule = concat(header,
		[]byte{0x01, 0x0c, 0x02, 0x60, 0x04, 0x7f, 0x7f, 0x7f, 0x7f, 0x01, 0x7f, 0x60, 0x00, 0x00},
		[]byte{0x02, 0x23, 0x01, 0x16}, []byte("wasi_snapshot_preview1"), []byte{0x08}, []byte("fd_write"), []byte{0x00, 0x00},
		[]byte{0x03, 0x02, 0x01, 0x01},
		[]byte{0x05, 0x03, 0x01, 0x00, 0x01},
		[]byte{0x07, 0x13, 0x02, 0x06}, []byte("_start"), []byte{0x00, 0x01, 0x06}, []byte("memory"), []byte{0x02, 0x00},
		[]byte{0x0a, 0x0f, 0x01, 0x0d, 0x00, 0x41, 0x01, 0x41, 0x00, 0x41, 0x01, 0x41, 0x10, 0x10, 0x00, 0x1a, 0x0b},
		[]byte{0x0b, 0x10, 0x01, 0x00, 0x41, 0x00, 0x0b, 0x0a, 0x08, 0x00, 0x00, 0x00, 0x02, 0x00, 0x00, 0x00, 'O', 'K'},
	)
)

func concat(parts ...[]byte) (out []byte) {
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func setup(t *testing.T) (context.Context, *wasmengine.Engine) {
	t.Helper()

	ctx := context.Background()
	eng, err := wasmengine.New(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, eng.Close(ctx)) })

	return ctx, eng
}

func writeModule(t *testing.T, bin []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "mod.wasm")
	require.NoError(t, os.WriteFile(path, bin, 0o600))

	return path
}

func TestEmptyModuleIsNotInvocable(t *testing.T) {
	ctx, eng := setup(t)
	assert.Equal(t, wasmengine.Name, eng.Name())

	mod, err := eng.Load(ctx, writeModule(t, header))
	require.NoError(t, err)
	defer func() { require.NoError(t, mod.Close(ctx)) }()

	assert.False(t, mod.Invocable())

	res, err := mod.Invoke(ctx, script.Call{})
	require.NoError(t, err)
	assert.Empty(t, res.Body)
}

func TestInvalidModule(t *testing.T) {
	ctx, eng := setup(t)

	_, err := eng.Load(ctx, writeModule(t, []byte("not wasm at all")))
	require.Error(t, err)

	lines, err := eng.Diagnose(ctx, writeModule(t, []byte("not wasm at all")))
	require.NoError(t, err)
	assert.Len(t, lines, 1)

	_, err = eng.Load(ctx, filepath.Join(t.TempDir(), "missing.wasm"))
	require.Error(t, err)
}

func TestInvoke(t *testing.T) {
	ctx, eng := setup(t)

	t.Run("noop returns nothing", func(t *testing.T) {
		mod, err := eng.Load(ctx, writeModule(t, noopModule))
		require.NoError(t, err)
		defer mod.Close(ctx)

		require.True(t, mod.Invocable())
		res, err := mod.Invoke(ctx, script.Call{Response: httptest.NewRecorder()})
		require.NoError(t, err)
		assert.Empty(t, res.Body)
	})

	t.Run("stdout is the body", func(t *testing.T) {
		mod, err := eng.Load(ctx, writeModule(t, okModule))
		require.NoError(t, err)
		defer mod.Close(ctx)

		for range 2 {
			res, err := mod.Invoke(ctx, script.Call{
				Request: script.Request{Method: "GET", URL: "/mod.wasm"},
				Params:  []script.Param{{Key: "a", Value: "1"}},
			})
			require.NoError(t, err)
			assert.Equal(t, "OK", string(res.Body))
		}
	})

	t.Run("trap fails the call", func(t *testing.T) {
		mod, err := eng.Load(ctx, writeModule(t, trapModule))
		require.NoError(t, err)
		defer mod.Close(ctx)

		_, err = mod.Invoke(ctx, script.Call{})
		require.Error(t, err)
	})
}

func TestDiagnoseValidModule(t *testing.T) {
	ctx, eng := setup(t)

	lines, err := eng.Diagnose(ctx, writeModule(t, okModule))
	require.NoError(t, err)
	assert.Empty(t, lines)

	lines, err = eng.Diagnose(ctx, writeModule(t, header))
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "_start")
}
