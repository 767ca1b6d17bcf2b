package webservo

import (
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
)

// Config is the immutable configuration of a [Server]. It is copied into the server on construction and
// read, never written, while requests are handled.
type Config struct {
	// Root is the document root that request paths are joined with.
	Root string
	// DefaultDocument is substituted when a request path denotes a directory.
	DefaultDocument string
	// ScriptExtension marks script resources, without the leading dot.
	ScriptExtension string
	// BaseDir is the directory the configuration was loaded from. Scripts can read it.
	BaseDir string
	// UploadDir receives upload artifacts. Defaults to the OS temp directory.
	UploadDir string
	// CleanupUploads removes upload artifacts once the response was emitted.
	CleanupUploads bool
	// BufferLimit bounds the response body in bytes. Zero or negative means unbounded.
	BufferLimit int
	// MaxFieldSize bounds a single scalar body field in bytes. Zero means 10 MiB.
	MaxFieldSize int64
	// Debug enables syntax diagnostics on script failures.
	Debug bool
	// Checker is the external command run on a failing script when Debug is set. The script path is
	// appended as the last argument. When empty the engine's own diagnostics are used, if any.
	Checker []string
	// Settings is the effective configuration rendered as JSON. Scripts query it by path.
	Settings []byte
}

const (
	defaultMaxFieldSize = 10 << 20
	minBufferLimit      = 1024
)

// Validate checks the fields the pipeline branches on.
func (c Config) Validate() error {
	switch {
	case c.Root == "":
		return errors.New("document root must be set")
	case c.DefaultDocument == "":
		return errors.New("default document must be set")
	case strings.ContainsAny(c.DefaultDocument, `/\`):
		return errors.Newf("default document %q must be a plain file name", c.DefaultDocument)
	case c.ScriptExtension == "":
		return errors.New("script extension must be set")
	case strings.HasPrefix(c.ScriptExtension, "."):
		return errors.Newf("script extension %q must not start with a dot", c.ScriptExtension)
	case c.BufferLimit > 0 && c.BufferLimit < minBufferLimit:
		return errors.Newf("buffer limit %d is below the minimum of %d, use -1 for unbounded", c.BufferLimit, minBufferLimit)
	}

	return nil
}

func (c Config) withDefaults() (Config, error) {
	root, err := filepath.Abs(c.Root)
	if err != nil {
		return c, errors.Wrapf(err, "resolve document root %q", c.Root)
	}
	c.Root = root

	if c.BufferLimit <= 0 {
		c.BufferLimit = -1
	}

	if c.MaxFieldSize <= 0 {
		c.MaxFieldSize = defaultMaxFieldSize
	}

	if len(c.Settings) == 0 {
		c.Settings = []byte("{}")
	}

	return c, nil
}
