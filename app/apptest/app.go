// Package apptest provides test helpers for web-servo applications.
//
// It constructs the identical DI graph as [app.NewApp] but uses
// [fxtest.App] which fails the test immediately on DI errors.
//
// Example:
//
//	cfg := apptest.Config(t, 18081)
//	tapp := apptest.New(t, cfg)
//	tapp.RequireStart()
//	t.Cleanup(tapp.RequireStop)
package apptest

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/Komrod/web-servo/app"
	"go.uber.org/fx/fxtest"
)

// App embeds *fxtest.App for testing web-servo applications.
type App struct {
	*fxtest.App
}

// New creates a test app with the same DI graph as [app.NewApp]. Console output is discarded unless an
// option says otherwise.
func New(t testing.TB, cfg *app.Config, opts ...app.Option) *App {
	t.Helper()

	opts = append([]app.Option{app.WithConsole(&bytes.Buffer{})}, opts...)

	return &App{App: fxtest.New(t, app.FxOptions(cfg, opts...)...)}
}

// Config returns a configuration rooted in a fresh temporary directory, with the document root at
// www/ and both log channels enabled below log/. Port is required because each test must use a unique
// port to avoid collisions.
func Config(t testing.TB, port int) *app.Config {
	t.Helper()

	base := t.TempDir()
	if err := os.MkdirAll(filepath.Join(base, "www"), 0o755); err != nil {
		t.Fatalf("apptest: create www dir: %v", err)
	}

	cfg := app.DefaultConfig().WithBaseDir(base)
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = app.Port(port)
	cfg.Log.Error.Enabled = true
	cfg.Log.Error.Console = false
	cfg.Log.Access.Enabled = true
	cfg.Upload.Dir = "uploads"

	if err := os.MkdirAll(filepath.Join(base, "uploads"), 0o755); err != nil {
		t.Fatalf("apptest: create upload dir: %v", err)
	}

	return cfg
}

// WriteFile writes a file below the document root of cfg.
func WriteFile(t testing.TB, cfg *app.Config, name, content string) string {
	t.Helper()

	path := filepath.Join(cfg.WWWDir(), filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("apptest: create dir: %v", err)
	}

	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("apptest: write file: %v", err)
	}

	return path
}
