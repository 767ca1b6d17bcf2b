package webservo

import (
	"bytes"
	"net/http"
	"sync"

	"github.com/cockroachdb/errors"
)

// ErrBufferFull is returned when a write would grow the response buffer past its limit.
var ErrBufferFull = errors.New("buffer is full")

var bufPool = sync.Pool{New: func() any { return new(bytes.Buffer) }}

// ResponseBuffer is a http.ResponseWriter that holds the status, headers and body in memory until
// it is flushed. Until the first flush the whole response can be thrown away with Reset.
type ResponseBuffer struct {
	resp    http.ResponseWriter
	buf     *bytes.Buffer
	header  http.Header
	status  int
	limit   int
	flushed bool
}

// NewResponseWriter wraps 'resp' in a buffered writer. A negative limit disables the size check.
func NewResponseWriter(resp http.ResponseWriter, limit int) ResponseWriter {
	return newBufferResponse(resp, limit)
}

func newBufferResponse(resp http.ResponseWriter, limit int) *ResponseBuffer {
	buf, _ := bufPool.Get().(*bytes.Buffer)
	buf.Reset()

	return &ResponseBuffer{
		resp:   resp,
		buf:    buf,
		header: http.Header{},
		limit:  limit,
	}
}

// Header returns the buffered header map.
func (w *ResponseBuffer) Header() http.Header { return w.header }

// Unwrap returns the underlying writer so http.ResponseController can reach it.
func (w *ResponseBuffer) Unwrap() http.ResponseWriter { return w.resp }

// WriteHeader records the status. Like the standard library only the first call counts.
func (w *ResponseBuffer) WriteHeader(status int) {
	if w.status != 0 {
		return
	}
	w.status = status
}

// Write buffers 'p'. It never writes to the underlying writer.
func (w *ResponseBuffer) Write(p []byte) (int, error) {
	if w.limit >= 0 && w.buf.Len()+len(p) > w.limit {
		return 0, errors.Wrapf(ErrBufferFull, "writing %d bytes past limit of %d", len(p), w.limit)
	}

	w.WriteHeader(http.StatusOK)

	return w.buf.Write(p)
}

// Reset discards everything buffered so far, including headers and status. It panics when part of the
// response already reached the client.
func (w *ResponseBuffer) Reset() {
	if w.flushed {
		panic("webservo: cannot reset response, it has already flushed")
	}

	w.buf.Reset()
	w.header = http.Header{}
	w.status = 0
}

// FlushError implements the interface used by http.ResponseController to flush explicitly.
func (w *ResponseBuffer) FlushError() error {
	if err := w.FlushBuffer(); err != nil {
		return err
	}

	if err := http.NewResponseController(w.resp).Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return errors.Wrap(err, "flush underlying writer")
	}

	return nil
}

// FlushBuffer writes the status, headers and buffered body to the underlying writer.
func (w *ResponseBuffer) FlushBuffer() error {
	if !w.flushed {
		dst := w.resp.Header()
		for k, v := range w.header {
			dst[k] = v
		}

		status := w.status
		if status == 0 {
			status = http.StatusOK
		}

		w.resp.WriteHeader(status)
		w.flushed = true
	}

	if w.buf.Len() == 0 {
		return nil
	}

	if _, err := w.buf.WriteTo(w.resp); err != nil {
		return errors.Wrap(err, "write buffered body")
	}

	return nil
}

// Free returns the buffer to the pool. The writer must not be used afterwards.
func (w *ResponseBuffer) Free() {
	if w.buf == nil {
		return
	}

	bufPool.Put(w.buf)
	w.buf = nil
}

var _ ResponseWriter = &ResponseBuffer{}
