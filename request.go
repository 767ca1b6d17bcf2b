package webservo

import (
	"net"
	"net/http"

	"github.com/Komrod/web-servo/script"
)

// RequestContext is the immutable per-request bundle the pipeline works with.
type RequestContext struct {
	Method     string
	URL        string
	Path       string
	Header     http.Header
	RemoteAddr string
}

// NewRequestContext captures r. The header map is cloned so later mutations of r do not leak in.
func NewRequestContext(r *http.Request) RequestContext {
	return RequestContext{
		Method:     r.Method,
		URL:        r.URL.RequestURI(),
		Path:       r.URL.Path,
		Header:     r.Header.Clone(),
		RemoteAddr: r.RemoteAddr,
	}
}

// RemoteIP is the address without its port, or the raw address if it has none.
func (rc RequestContext) RemoteIP() string {
	host, _, err := net.SplitHostPort(rc.RemoteAddr)
	if err != nil {
		return rc.RemoteAddr
	}
	return host
}

func (rc RequestContext) scriptRequest() script.Request {
	return script.Request{
		Method:     rc.Method,
		URL:        rc.URL,
		Path:       rc.Path,
		Header:     rc.Header.Clone(),
		RemoteAddr: rc.RemoteAddr,
	}
}
