package webservo

import (
	"net/url"
	"os"
	"strings"

	"github.com/Komrod/web-servo/script"
	"github.com/cockroachdb/errors"
)

// Params is the ordered parameter set of one request. A key keeps the position of its first appearance,
// later writes replace the value. Body values therefore shadow query values.
type Params struct {
	keys    []string
	values  map[string]string
	uploads []string
}

// NewParams inits an empty parameter set.
func NewParams() *Params {
	return &Params{values: map[string]string{}}
}

// ParseQuery seeds a parameter set from a raw query string. Duplicate keys overwrite in parse order.
func ParseQuery(rawQuery string) *Params {
	p := NewParams()
	p.mergeQuery(rawQuery)

	return p
}

func (p *Params) mergeQuery(rawQuery string) {
	for pair := range strings.SplitSeq(rawQuery, "&") {
		if pair == "" {
			continue
		}

		key, val, _ := strings.Cut(pair, "=")
		p.Set(unescape(key), unescape(val))
	}
}

func unescape(s string) string {
	if dec, err := url.QueryUnescape(s); err == nil {
		return dec
	}
	return s
}

// Set writes the value for key.
func (p *Params) Set(key, val string) {
	if _, ok := p.values[key]; !ok {
		p.keys = append(p.keys, key)
	}
	p.values[key] = val
}

// Get returns the value for key.
func (p *Params) Get(key string) (string, bool) {
	v, ok := p.values[key]
	return v, ok
}

func (p *Params) Keys() []string { return append([]string(nil), p.keys...) }
func (p *Params) Len() int       { return len(p.keys) }

// Pairs returns the parameters in order, ready to be handed to a script.
func (p *Params) Pairs() []script.Param {
	pairs := make([]script.Param, 0, len(p.keys))
	for _, k := range p.keys {
		pairs = append(pairs, script.Param{Key: k, Value: p.values[k]})
	}

	return pairs
}

// SetUpload records an upload artifact and points key at it.
func (p *Params) SetUpload(key, file string) {
	p.uploads = append(p.uploads, file)
	p.Set(key, file)
}

// Uploads returns every artifact written while decoding, including those whose key was shadowed later.
func (p *Params) Uploads() []string { return append([]string(nil), p.uploads...) }

// RemoveUploads deletes all upload artifacts. Files that are already gone are not an error.
func (p *Params) RemoveUploads() error {
	var rerr error
	for _, f := range p.uploads {
		if err := os.Remove(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			rerr = errors.CombineErrors(rerr, errors.Wrapf(err, "remove upload %q", f))
		}
	}

	return rerr
}
