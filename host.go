package webservo

import (
	"github.com/Komrod/web-servo/script"
	"github.com/tidwall/gjson"
)

// LogSink receives the access and error records of the pipeline. Implementations must never fail the
// caller: write errors are theirs to deal with.
type LogSink interface {
	Access(status int, ip, url string)
	Error(msg string)
	Warning(msg string)
	Info(msg string)
}

// host is the server-context handle scripts receive.
type host struct {
	cfg  *Config
	sink LogSink
}

func (h host) Log(msg string)     { h.sink.Info(msg) }
func (h host) Warning(msg string) { h.sink.Warning(msg) }
func (h host) Error(msg string)   { h.sink.Error(msg) }

func (h host) BaseDir() string      { return h.cfg.BaseDir }
func (h host) DocumentRoot() string { return h.cfg.Root }

func (h host) Setting(path string) (any, bool) {
	res := gjson.GetBytes(h.cfg.Settings, path)
	if !res.Exists() {
		return nil, false
	}
	return res.Value(), true
}

var _ script.Host = host{}
