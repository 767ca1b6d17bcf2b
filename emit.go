package webservo

import (
	"net/http"
	"strconv"

	"github.com/cockroachdb/errors"
)

const (
	bodyNotFound    = "404 Not found"
	bodyServerError = "500 Server error"
)

// emitter writes the three canonical responses. Every call writes exactly one access record. The writer
// is buffered, so the emitter can still replace whatever a script wrote before it.
type emitter struct {
	sink LogSink
}

// ok writes a 200 with the reply. Script replies are always text/html, which overrides any content type
// a script may have set.
func (e emitter) ok(w ResponseWriter, rc RequestContext, reply Reply) {
	w.Header().Set("Content-Type", reply.ContentType)
	// scripts may set any header, the length is left to net/http
	w.Header().Del("Content-Length")
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write(reply.Body); err != nil {
		// the body does not fit the buffer, the client gets a 500 instead
		w.Reset()
		e.fail(w, rc, serverError("", errors.Wrap(err, "write reply")))

		return
	}

	e.sink.Access(http.StatusOK, rc.RemoteIP(), rc.URL)
}

// fail writes the fixed 404 or 500 response for err and reports err to the error channel.
func (e emitter) fail(w ResponseWriter, rc RequestContext, err error) {
	status, body := http.StatusInternalServerError, bodyServerError
	if StatusOf(err) == http.StatusNotFound {
		status, body = http.StatusNotFound, bodyNotFound
	}

	e.sink.Error(err.Error())

	w.Header().Set("Content-Type", "text/html")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))

	e.sink.Access(status, rc.RemoteIP(), rc.URL)
}
