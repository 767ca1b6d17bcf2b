package app

import (
	"context"
	"net/http"
	"time"
)

// deadlineBuffer is the time left after the request deadline to emit the failure response before the
// server's write timeout cuts the connection.
const deadlineBuffer = 500 * time.Millisecond

// serverTimeouts returns the http.Server timeouts for a request timeout. Without a request timeout only
// the header timeout applies.
func serverTimeouts(timeout time.Duration) (header, read, write time.Duration) {
	if timeout <= 0 {
		return readHeaderTimeout, 0, 0
	}

	outer := timeout + deadlineBuffer

	return min(timeout, readHeaderTimeout), outer, outer
}

// withRequestDeadline bounds the request context by timeout. Scripts observe the context, so a script
// that runs past the deadline is interrupted and the request fails with a server error.
func withRequestDeadline(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if timeout <= 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
