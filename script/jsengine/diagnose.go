package jsengine

import (
	"github.com/cockroachdb/errors"
	"github.com/dop251/goja/parser"
)

// syntaxErrors parses src inside the module wrapper, so that top-level return statements are accepted the
// same way Load accepts them.
func syntaxErrors(path, src string) []string {
	_, err := parser.ParseFile(nil, path, wrapperHead+src+wrapperTail, 0)
	if err == nil {
		return nil
	}

	var list parser.ErrorList
	if !errors.As(err, &list) {
		return []string{err.Error()}
	}

	lines := make([]string, 0, len(list))
	for _, e := range list {
		lines = append(lines, e.Error())
	}

	return lines
}
