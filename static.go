package webservo

import (
	"mime"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
)

const fallbackContentType = "application/octet-stream"

// serveStatic reads the whole file. Every read failure, a directory included, is a not-found condition.
func serveStatic(file string) (Reply, error) {
	body, err := os.ReadFile(file)
	if err != nil {
		return Reply{}, notFound(file, errors.Wrapf(err, "Error: 404 file not found %q", file))
	}

	return Reply{ContentType: contentTypeOf(file), Body: body}, nil
}

func contentTypeOf(file string) string {
	if ct := mime.TypeByExtension(filepath.Ext(file)); ct != "" {
		return ct
	}
	return fallbackContentType
}
