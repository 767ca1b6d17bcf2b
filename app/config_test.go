package app_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Komrod/web-servo/app"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoadJSON(t *testing.T) {
	path := writeConfig(t, "config.json", `{
		"server": {"port": "8080", "dir": "public/"},
		"page": {"script": "sjs"},
		"log": {
			"error": {"enabled": true, "console": false, "path": "logs/err.log", "debug": true, "checker": ["node", "--check"]},
			"access": {"enabled": true, "path": "/var/log/servo/access.log", "maxSize": 5}
		}
	}`)

	cfg, err := app.Load(path)
	require.NoError(t, err)

	base := filepath.Dir(path)
	assert.Equal(t, path, cfg.File())
	assert.Equal(t, base, cfg.BaseDir())
	assert.Equal(t, app.Port(8080), cfg.Server.Port)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, filepath.Join(base, "public"), cfg.WWWDir())
	assert.Equal(t, "index.html", cfg.Page.Default, "defaults fill what the file leaves out")
	assert.Equal(t, "js", cfg.Page.Engine)

	core, err := cfg.Core()
	require.NoError(t, err)
	assert.Equal(t, "sjs", core.ScriptExtension)
	assert.True(t, core.Debug)
	assert.Equal(t, []string{"node", "--check"}, core.Checker)
	assert.Equal(t, -1, core.BufferLimit)
	assert.Equal(t, "sjs", gjson.GetBytes(core.Settings, "page.script").String())
	assert.Equal(t, "8080", gjson.GetBytes(core.Settings, "server.port").Raw)

	sink := cfg.SinkConfig()
	assert.True(t, sink.Error.Enabled)
	assert.False(t, sink.Error.Console)
	assert.Equal(t, filepath.Join(base, "logs", "err.log"), sink.Error.Path)
	assert.Equal(t, filepath.FromSlash("/var/log/servo/access.log"), sink.Access.Path)
	assert.Equal(t, 5, sink.Access.MaxSize)
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, "servo.yaml", `
server:
  port: "9090"
  h2c: true
  bufferLimit: 4096
  timeout: 1.5s
page:
  engine: wasm
  script: wasm
log:
  access:
    enabled: true
    console: true
upload:
  dir: tmp/uploads
  cleanup: true
trace:
  exporter: stdout
`)

	cfg, err := app.Load(path)
	require.NoError(t, err)

	assert.Equal(t, app.Port(9090), cfg.Server.Port)
	assert.True(t, cfg.Server.H2C)
	assert.Equal(t, app.Duration(1500*time.Millisecond), cfg.Server.Timeout)
	assert.Equal(t, "wasm", cfg.Page.Engine)
	assert.True(t, cfg.Log.Access.Console)
	assert.Equal(t, "stdout", cfg.Trace.Exporter)

	core, err := cfg.Core()
	require.NoError(t, err)
	assert.Equal(t, 4096, core.BufferLimit)
	assert.True(t, core.CleanupUploads)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "tmp", "uploads"), core.UploadDir)
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, "config.json", `{"server": {"port": 8080}, "page": {"script": "xjs"}}`)

	t.Setenv("SERVO_SERVER_PORT", "7070")
	t.Setenv("SERVO_SERVER_TIMEOUT", "30")
	t.Setenv("SERVO_PAGE_SCRIPT", "njs")
	t.Setenv("SERVO_LOG_ERROR_DEBUG", "true")
	t.Setenv("SERVO_LOG_ERROR_CHECKER", "node --check")
	t.Setenv("SERVO_LOG_ACCESS_ENABLED", "true")

	cfg, err := app.Load(path)
	require.NoError(t, err)

	assert.Equal(t, app.Port(7070), cfg.Server.Port)
	assert.Equal(t, app.Duration(30*time.Second), cfg.Server.Timeout)
	assert.Equal(t, "njs", cfg.Page.Script)
	assert.True(t, cfg.Log.Error.Debug)
	assert.Equal(t, []string{"node", "--check"}, cfg.Log.Error.Checker)
	assert.True(t, cfg.Log.Access.Enabled)
	assert.Equal(t, "www/", cfg.Server.Dir, "unset variables keep file values")
}

func TestLoadWithoutFile(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := app.Load("")
	require.NoError(t, err)
	assert.Empty(t, cfg.File())
	assert.Equal(t, app.Port(80), cfg.Server.Port)
	assert.Equal(t, "xjs", cfg.Page.Script)

	_, err = app.Load(filepath.Join(t.TempDir(), "missing.json"))
	require.ErrorContains(t, err, "read config file")
}

func TestLoadErrors(t *testing.T) {
	for _, tt := range []struct {
		name, file, content, msg string
	}{
		{"bad json", "c.json", `{"server": `, "decode json config"},
		{"bad yaml", "c.yml", "server: [", "decode yaml config"},
		{"bad port", "c.json", `{"server": {"port": "eighty"}}`, "invalid port"},
		{"port out of range", "c.json", `{"server": {"port": 70000}}`, "invalid server port"},
		{"bad timeout", "c.json", `{"server": {"timeout": "soon"}}`, "invalid duration"},
		{"negative timeout", "c.json", `{"server": {"timeout": "-1s"}}`, "must not be negative"},
		{"exporter", "c.json", `{"trace": {"exporter": "xray"}}`, "unsupported trace exporter"},
		{"dotted default", "c.json", `{"page": {"default": "a/index.html"}}`, "plain file name"},
		{"empty engine", "c.json", `{"page": {"engine": ""}}`, "page engine"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			_, err := app.Load(writeConfig(t, tt.file, tt.content))
			require.ErrorContains(t, err, tt.msg)
		})
	}

	t.Run("bad env", func(t *testing.T) {
		t.Setenv("SERVO_SERVER_H2C", "maybe")
		_, err := app.Load(writeConfig(t, "c.json", `{}`))
		require.ErrorContains(t, err, "failed to parse environment")
	})
}
