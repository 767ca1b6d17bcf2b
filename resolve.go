package webservo

import (
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

// Kind classifies a resolved resource.
type Kind int

const (
	// KindStatic resources are transferred verbatim.
	KindStatic Kind = iota
	// KindScript resources are executed by the script engine.
	KindScript
)

func (k Kind) String() string {
	if k == KindScript {
		return "script"
	}
	return "static"
}

// Resource is a request path mapped onto the filesystem. It is computed for every request and never
// cached.
type Resource struct {
	File string
	Kind Kind
}

// Resolve maps the raw request URL onto a file below root. The query is stripped. When the path
// denotes a directory, defaultDoc is appended. The file is not required to exist and the path can
// never escape root.
func Resolve(root, defaultDoc, scriptExt, rawURL string) Resource {
	p := rawURL
	if u, err := url.ParseRequestURI(rawURL); err == nil {
		p = u.Path
	} else if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}

	isDir := p == "" || strings.HasSuffix(p, "/")

	clean := path.Clean("/" + p)
	if clean == "/" {
		isDir = true
	}

	file := filepath.Join(root, filepath.FromSlash(clean))
	if isDir {
		file = filepath.Join(file, defaultDoc)
	}

	return Resource{File: file, Kind: Classify(file, scriptExt)}
}

// Classify decides between script execution and static transfer. It only looks at the extension,
// never at the filesystem.
func Classify(file, scriptExt string) Kind {
	if scriptExt != "" && filepath.Ext(file) == "."+scriptExt {
		return KindScript
	}
	return KindStatic
}
