// Package script defines the contract between the server and the engines that execute script resources.
// An engine loads a module from disk on every request; nothing is memoized between loads, so edits to a
// script take effect on the next request.
package script

import (
	"context"
	"net/http"
	"time"
)

// Request is the read-only view of the incoming request handed to a script.
type Request struct {
	Method     string
	URL        string
	Path       string
	Header     http.Header
	RemoteAddr string
}

// Param is one entry of the merged parameter set. Order is the order of first appearance.
type Param struct {
	Key   string
	Value string
}

// Host is the server-context handle. It lets scripts write to the same log channels as the server and
// read its configuration.
type Host interface {
	Log(msg string)
	Warning(msg string)
	Error(msg string)
	// Setting returns the configuration value at the gjson path, and whether it exists.
	Setting(path string) (any, bool)
	BaseDir() string
	DocumentRoot() string
}

// Call carries everything a single invocation receives.
type Call struct {
	Request  Request
	Response http.ResponseWriter
	Params   []Param
	Host     Host
}

// Result is what a module returned. A nil or empty Body means the script returned nothing.
type Result struct {
	Body []byte
}

// Engine loads script modules.
type Engine interface {
	Name() string
	// Load reads and compiles the module at path. The returned module must be closed by the caller.
	Load(ctx context.Context, path string) (Module, error)
}

// Module is one freshly loaded script.
type Module interface {
	// Invocable reports whether the loaded value can be called. Non-invocable modules produce an empty result.
	Invocable() bool
	Invoke(ctx context.Context, call Call) (Result, error)
	// Close releases everything the load allocated.
	Close(ctx context.Context) error
}

// Diagnoser is implemented by engines that can explain why a script fails to compile.
type Diagnoser interface {
	Diagnose(ctx context.Context, path string) ([]string, error)
}

// RemainingTime returns the time until the deadline of ctx, or zero when there is none.
func RemainingTime(ctx context.Context) time.Duration {
	deadline, ok := ctx.Deadline()
	if !ok {
		return 0
	}

	return max(time.Until(deadline), 0)
}
