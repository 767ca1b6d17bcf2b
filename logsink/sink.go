// Package logsink implements the access and error log channels. Each channel appends timestamped,
// tab-delimited lines to a file and can be mirrored to the console. Failing to write never reaches the
// caller.
package logsink

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fatih/color"
	"go.uber.org/zap"
	"gopkg.in/natefinch/lumberjack.v2"
)

// TimeLayout is the local timestamp that starts every line.
const TimeLayout = "2006:01:02:15:04:05"

// lineEnd terminates every record.
const lineEnd = "\r"

// ChannelConfig configures one channel.
type ChannelConfig struct {
	Enabled bool
	Console bool
	Path    string
	// MaxSize is the size in megabytes at which the file is rotated. Zero never rotates.
	MaxSize    int
	MaxBackups int
	MaxAge     int
	Compress   bool
}

// Config configures both channels.
type Config struct {
	Access ChannelConfig
	Error  ChannelConfig
}

// Sink writes access and error records.
type Sink struct {
	access  *channel
	errs    *channel
	now     func() time.Time
	logs    *zap.Logger
	console io.Writer
	conMu   sync.Mutex
}

// Option configures the [Sink].
type Option func(*Sink)

// WithConsole sets where mirrored lines are printed. Defaults to stdout.
func WithConsole(w io.Writer) Option { return func(s *Sink) { s.console = w } }

// WithClock replaces the clock used for timestamps.
func WithClock(now func() time.Time) Option { return func(s *Sink) { s.now = now } }

// WithLogger sets the logger that receives write failures.
func WithLogger(l *zap.Logger) Option { return func(s *Sink) { s.logs = l } }

type channel struct {
	name string
	cfg  ChannelConfig
	mu   sync.Mutex
	out  io.WriteCloser
}

// New inits the sink. Files are opened on the first write.
func New(cfg Config, opts ...Option) *Sink {
	s := &Sink{
		now:     time.Now,
		logs:    zap.NewNop(),
		console: color.Output,
	}

	for _, o := range opts {
		o(s)
	}

	s.access = newChannel("access", cfg.Access)
	s.errs = newChannel("error", cfg.Error)

	return s
}

func newChannel(name string, cfg ChannelConfig) *channel {
	ch := &channel{name: name, cfg: cfg}
	switch {
	case !cfg.Enabled || cfg.Path == "":
	case cfg.MaxSize > 0:
		ch.out = &lumberjack.Logger{
			Filename:   cfg.Path,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
			LocalTime:  true,
		}
	default:
		ch.out = &appendFile{path: cfg.Path}
	}

	return ch
}

// appendFile is a single, never rotated log file. It is opened on the first write.
type appendFile struct {
	path string
	f    *os.File
}

func (a *appendFile) Write(p []byte) (int, error) {
	if a.f == nil {
		if err := os.MkdirAll(filepath.Dir(a.path), 0o755); err != nil {
			return 0, errors.Wrap(err, "create log directory")
		}

		f, err := os.OpenFile(a.path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644) //nolint:gosec
		if err != nil {
			return 0, errors.Wrap(err, "open log file")
		}

		a.f = f
	}

	return a.f.Write(p)
}

func (a *appendFile) Close() error {
	if a.f == nil {
		return nil
	}

	err := a.f.Close()
	a.f = nil

	return err
}

// fieldEscaper keeps every field on one line and free of the field separator.
var fieldEscaper = strings.NewReplacer("\r", "\\r", "\n", "\\n", "\t", "\\t")

// Access records one emitted response.
func (s *Sink) Access(status int, ip, url string) {
	fields := strings.Join([]string{strconv.Itoa(status), fieldEscaper.Replace(ip), fieldEscaper.Replace(url)}, "\t")

	if s.access.cfg.Console {
		s.print(statusColor(status), fields)
	}

	s.write(s.access, fields)
}

// Error records msg on the error channel.
func (s *Sink) Error(msg string) {
	if s.errs.cfg.Console {
		s.print(color.New(color.FgRed), msg)
	}

	s.write(s.errs, fieldEscaper.Replace(msg))
}

// Warning prints msg to the console. Warnings are never written to a file.
func (s *Sink) Warning(msg string) {
	s.print(color.New(color.FgYellow), msg)
}

// Info prints msg to the console.
func (s *Sink) Info(msg string) {
	s.print(color.New(color.Reset), msg)
}

// Notice prints a highlighted startup message to the console.
func (s *Sink) Notice(msg string) {
	s.print(color.New(color.FgCyan), msg)
}

func (s *Sink) print(c *color.Color, msg string) {
	s.conMu.Lock()
	defer s.conMu.Unlock()

	_, _ = c.Fprintln(s.console, msg)
}

func (s *Sink) write(ch *channel, fields string) {
	if ch.out == nil {
		return
	}

	line := s.now().Format(TimeLayout) + "\t" + fields + lineEnd

	ch.mu.Lock()
	defer ch.mu.Unlock()

	if _, err := io.WriteString(ch.out, line); err != nil {
		s.logs.Warn("failed to write log record",
			zap.String("channel", ch.name), zap.String("path", ch.cfg.Path), zap.Error(err))
	}
}

// Check verifies that every enabled channel can be appended to. Problems are printed as console warnings
// and returned, they never disable a channel.
func (s *Sink) Check() error {
	var rerr error
	for _, ch := range []*channel{s.errs, s.access} {
		if !ch.cfg.Enabled {
			continue
		}

		if err := ch.check(); err != nil {
			s.Warning(fmt.Sprintf("Cannot write to %s log file %q: %s", ch.name, ch.cfg.Path, err))
			rerr = errors.CombineErrors(rerr, err)
		}
	}

	return rerr
}

func (ch *channel) check() error {
	if ch.cfg.Path == "" {
		return errors.Newf("%s log is enabled without a path", ch.name)
	}

	if err := os.MkdirAll(filepath.Dir(ch.cfg.Path), 0o755); err != nil {
		return errors.Wrapf(err, "create %s log directory", ch.name)
	}

	f, err := os.OpenFile(ch.cfg.Path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644) //nolint:gosec
	if err != nil {
		return errors.Wrapf(err, "open %s log", ch.name)
	}

	return errors.Wrapf(f.Close(), "close %s log", ch.name)
}

// Close closes the channel files.
func (s *Sink) Close() error {
	var rerr error
	for _, ch := range []*channel{s.errs, s.access} {
		if ch.out == nil {
			continue
		}

		ch.mu.Lock()
		rerr = errors.CombineErrors(rerr, errors.Wrapf(ch.out.Close(), "close %s log", ch.name))
		ch.mu.Unlock()
	}

	return rerr
}

func statusColor(status int) *color.Color {
	switch {
	case status >= 500:
		return color.New(color.FgRed)
	case status >= 400:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgGreen)
	}
}
