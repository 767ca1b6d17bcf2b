package app

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	webservo "github.com/Komrod/web-servo"
	"github.com/Komrod/web-servo/logsink"
	"github.com/caarlos0/env/v11"
	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable that overrides the configuration file.
const EnvPrefix = "SERVO_"

// DefaultConfigFile is looked up in the working directory when no file is given.
const DefaultConfigFile = "config.json"

// Port is a TCP port. Configuration files may write it as a number or as a quoted number.
type Port int

func (p *Port) UnmarshalText(text []byte) error {
	n, err := strconv.Atoi(strings.TrimSpace(string(text)))
	if err != nil {
		return errors.Wrapf(err, "invalid port %q", text)
	}

	*p = Port(n)

	return nil
}

func (p *Port) UnmarshalJSON(data []byte) error {
	return p.UnmarshalText(bytes.Trim(data, `"`))
}

func (p *Port) UnmarshalYAML(node *yaml.Node) error {
	return p.UnmarshalText([]byte(node.Value))
}

// Duration is a time span written as a Go duration string ("1.5s") or as a number of seconds.
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		*d = Duration(n * float64(time.Second))
		return nil
	}

	v, err := time.ParseDuration(s)
	if err != nil {
		return errors.Wrapf(err, "invalid duration %q", text)
	}

	*d = Duration(v)

	return nil
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	return d.UnmarshalText(bytes.Trim(data, `"`))
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	return d.UnmarshalText([]byte(node.Value))
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Config is the whole configuration of the server.
type Config struct {
	Server ServerConfig `json:"server" yaml:"server" envPrefix:"SERVER_"`
	Page   PageConfig   `json:"page"   yaml:"page"   envPrefix:"PAGE_"`
	Log    LogConfig    `json:"log"    yaml:"log"    envPrefix:"LOG_"`
	Upload UploadConfig `json:"upload" yaml:"upload" envPrefix:"UPLOAD_"`
	Trace  TraceConfig  `json:"trace"  yaml:"trace"  envPrefix:"TRACE_"`

	file    string
	baseDir string
}

type ServerConfig struct {
	Host        string `json:"host"        yaml:"host"        env:"HOST"`
	Port        Port   `json:"port"        yaml:"port"        env:"PORT"`
	Dir         string `json:"dir"         yaml:"dir"         env:"DIR"`
	H2C         bool   `json:"h2c"         yaml:"h2c"         env:"H2C"`
	BufferLimit int    `json:"bufferLimit" yaml:"bufferLimit" env:"BUFFER_LIMIT"`

	// Timeout bounds the handling of one request, scripts included. Zero means no bound.
	Timeout Duration `json:"timeout" yaml:"timeout" env:"TIMEOUT"`
}

type PageConfig struct {
	Script  string `json:"script"  yaml:"script"  env:"SCRIPT"`
	Default string `json:"default" yaml:"default" env:"DEFAULT"`
	Engine  string `json:"engine"  yaml:"engine"  env:"ENGINE"`
}

type LogConfig struct {
	Error  ErrorLogConfig `json:"error"  yaml:"error"  envPrefix:"ERROR_"`
	Access ChannelConfig  `json:"access" yaml:"access" envPrefix:"ACCESS_"`
}

// ChannelConfig configures one log file. Rotation is off unless MaxSize is set.
type ChannelConfig struct {
	Enabled    bool   `json:"enabled"    yaml:"enabled"    env:"ENABLED"`
	Console    bool   `json:"console"    yaml:"console"    env:"CONSOLE"`
	Path       string `json:"path"       yaml:"path"       env:"PATH"`
	MaxSize    int    `json:"maxSize"    yaml:"maxSize"    env:"MAX_SIZE"`
	MaxBackups int    `json:"maxBackups" yaml:"maxBackups" env:"MAX_BACKUPS"`
	MaxAge     int    `json:"maxAge"     yaml:"maxAge"     env:"MAX_AGE"`
	Compress   bool   `json:"compress"   yaml:"compress"   env:"COMPRESS"`
}

type ErrorLogConfig struct {
	ChannelConfig `yaml:",inline"`

	// Debug turns on script diagnostics and development logging.
	Debug bool `json:"debug" yaml:"debug" env:"DEBUG"`
	// Checker is an external command that explains a failing script, e.g. ["node", "--check"].
	Checker []string `json:"checker" yaml:"checker" env:"CHECKER" envSeparator:" "`
}

type UploadConfig struct {
	Dir     string `json:"dir"     yaml:"dir"     env:"DIR"`
	Cleanup bool   `json:"cleanup" yaml:"cleanup" env:"CLEANUP"`
}

type TraceConfig struct {
	// Exporter is "none" or "stdout".
	Exporter string `json:"exporter" yaml:"exporter" env:"EXPORTER"`
	Service  string `json:"service"  yaml:"service"  env:"SERVICE"`
}

// DefaultConfig returns the configuration used for everything a file leaves out.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: 80, Dir: "www/", BufferLimit: -1},
		Page:   PageConfig{Script: "xjs", Default: "index.html", Engine: "js"},
		Log: LogConfig{
			Error:  ErrorLogConfig{ChannelConfig: ChannelConfig{Console: true, Path: "log/error.log"}},
			Access: ChannelConfig{Path: "log/access.log"},
		},
		Trace: TraceConfig{Exporter: "none", Service: "web-servo"},
	}
}

// Load reads the configuration file at path on top of the defaults and applies environment overrides.
// With an empty path, config.json in the working directory is used when it exists. Relative paths in the
// configuration are relative to the directory of the file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	explicit := path != ""
	if !explicit {
		path = DefaultConfigFile
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve config path %q", path)
	}

	cfg.baseDir = filepath.Dir(abs)

	data, err := os.ReadFile(abs)
	switch {
	case err == nil:
		cfg.file = abs
		if err := decode(abs, data, cfg); err != nil {
			return nil, err
		}
	case explicit || !errors.Is(err, os.ErrNotExist):
		return nil, errors.Wrapf(err, "read config file")
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, errors.Wrap(err, "failed to parse environment")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func decode(file string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(file)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return errors.Wrapf(err, "decode yaml config %q", file)
		}
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return errors.Wrapf(err, "decode json config %q", file)
		}
	}

	return nil
}

// Validate checks the fields that have no meaningful fallback.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return errors.Newf("invalid server port %d", c.Server.Port)
	}

	if c.Server.Timeout < 0 {
		return errors.Newf("server timeout must not be negative, got %s", time.Duration(c.Server.Timeout))
	}

	if c.Page.Engine == "" {
		return errors.New("page engine must be set")
	}

	switch c.Trace.Exporter {
	case "", "none", "stdout":
	default:
		return errors.Newf("unsupported trace exporter: %q (supported: none, stdout)", c.Trace.Exporter)
	}

	if _, err := c.Core(); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}

	return nil
}

// File is the configuration file that was read, empty when only defaults were used.
func (c *Config) File() string { return c.file }

// BaseDir is the directory relative paths are resolved against.
func (c *Config) BaseDir() string {
	if c.baseDir == "" {
		wd, _ := os.Getwd()
		return wd
	}
	return c.baseDir
}

// WithBaseDir returns a copy of the configuration with relative paths resolved against dir.
func (c *Config) WithBaseDir(dir string) *Config {
	c2 := *c
	c2.baseDir = dir

	return &c2
}

// Addr is the listen address of the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) abs(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.BaseDir(), p)
}

// WWWDir is the absolute document root.
func (c *Config) WWWDir() string { return c.abs(c.Server.Dir) }

// Core translates the configuration into the request pipeline's configuration.
func (c *Config) Core() (webservo.Config, error) {
	settings, err := c.JSON()
	if err != nil {
		return webservo.Config{}, err
	}

	core := webservo.Config{
		Root:            c.WWWDir(),
		DefaultDocument: c.Page.Default,
		ScriptExtension: strings.TrimPrefix(c.Page.Script, "."),
		BaseDir:         c.BaseDir(),
		UploadDir:       c.abs(c.Upload.Dir),
		CleanupUploads:  c.Upload.Cleanup,
		BufferLimit:     c.Server.BufferLimit,
		Debug:           c.Log.Error.Debug,
		Checker:         c.Log.Error.Checker,
		Settings:        settings,
	}

	return core, core.Validate()
}

// SinkConfig translates the log section into the log sink's configuration.
func (c *Config) SinkConfig() logsink.Config {
	channel := func(ch ChannelConfig) logsink.ChannelConfig {
		return logsink.ChannelConfig{
			Enabled:    ch.Enabled,
			Console:    ch.Console,
			Path:       c.abs(ch.Path),
			MaxSize:    ch.MaxSize,
			MaxBackups: ch.MaxBackups,
			MaxAge:     ch.MaxAge,
			Compress:   ch.Compress,
		}
	}

	return logsink.Config{
		Access: channel(c.Log.Access),
		Error:  channel(c.Log.Error.ChannelConfig),
	}
}

// JSON renders the effective configuration. Scripts query it by path.
func (c *Config) JSON() ([]byte, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, errors.Wrap(err, "encode configuration")
	}
	return data, nil
}
