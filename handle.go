package webservo

import (
	"context"
	"net/http"
)

// ResponseWriter implements the http.ResponseWriter but the underlying bytes are buffered. This allows
// the server to throw away whatever a failing script wrote and formulate a completely new response.
type ResponseWriter interface {
	http.ResponseWriter
	Reset()
	Free()
	FlushBuffer() error
}

// Reply is the successful outcome of a pipeline unit: the body and content type of a 200 response.
type Reply struct {
	ContentType string
	Body        []byte
}

// Handler produces the reply for a request, or an error that the emitter maps onto a failure status.
// Handlers never write the status line themselves.
type Handler interface {
	ServeServo(ctx context.Context, w ResponseWriter, r *http.Request) (Reply, error)
}

// HandlerFunc allow casting a function to implement [Handler].
type HandlerFunc func(context.Context, ResponseWriter, *http.Request) (Reply, error)

// ServeServo implements the [Handler] interface.
func (f HandlerFunc) ServeServo(ctx context.Context, w ResponseWriter, r *http.Request) (Reply, error) {
	return f(ctx, w, r)
}
