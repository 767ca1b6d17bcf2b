package webservo

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func BenchmarkResponseBuffer(b *testing.B) {
	for _, dat := range [][]byte{
		make([]byte, 1024),
		make([]byte, 1024*64),
	} {
		b.Run("buffered-"+strconv.Itoa(len(dat)), func(b *testing.B) {
			b.ReportAllocs()

			for range b.N {
				rbuf := newBufferResponse(httptest.NewRecorder(), -1)
				_, err := rbuf.Write(dat)
				require.NoError(b, err)
				require.NoError(b, rbuf.FlushBuffer())
				rbuf.Free()
			}
		})
	}
}

// TestBufferMatchesStd compares what a client observes from a plain handler with what it observes when the
// same handler writes through the buffer.
func TestBufferMatchesStd(t *testing.T) {
	tests := []struct {
		name    string
		handler func(http.ResponseWriter, *http.Request)
		status  int
		header  string
		body    string
	}{
		{
			name:    "implicit 200",
			handler: func(http.ResponseWriter, *http.Request) {},
			status:  http.StatusOK,
		},
		{
			name: "header then body",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("X-Servo", "yes")
				fmt.Fprintf(w, "foo")
			},
			status: http.StatusOK,
			header: "yes",
			body:   "foo",
		},
		{
			name: "explicit 404 with body",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("X-Servo", "nf")
				w.WriteHeader(http.StatusNotFound)
				fmt.Fprintf(w, "404 Not found")
			},
			status: http.StatusNotFound,
			header: "nf",
			body:   "404 Not found",
		},
		{
			name: "second status is ignored",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				fmt.Fprintf(w, "bar")
				w.WriteHeader(http.StatusOK)
			},
			status: http.StatusInternalServerError,
			body:   "bar",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv1 := httptest.NewServer(http.HandlerFunc(tt.handler))
			defer srv1.Close()

			srv2 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				wr := newBufferResponse(w, 64)
				defer wr.Free()
				tt.handler(wr, r)
				assert.NoError(t, wr.FlushBuffer())
			}))
			defer srv2.Close()

			for _, url := range []string{srv1.URL, srv2.URL} {
				resp, err := http.Get(url) //nolint:noctx
				require.NoError(t, err)

				body, err := io.ReadAll(resp.Body)
				require.NoError(t, err)
				require.NoError(t, resp.Body.Close())

				require.Equal(t, tt.status, resp.StatusCode)
				require.Equal(t, tt.header, resp.Header.Get("X-Servo"))
				require.Equal(t, tt.body, string(body))
			}
		})
	}
}

func TestBufferedWrites(t *testing.T) {
	t.Run("should limit writes exactly", func(t *testing.T) {
		rec := httptest.NewRecorder()
		wrt := newBufferResponse(rec, 1)
		n, err := wrt.Write([]byte{0x01})
		require.NoError(t, err)
		require.Equal(t, 1, n)

		n, err = wrt.Write([]byte{0x02})
		require.Equal(t, 0, n)
		require.ErrorIs(t, err, ErrBufferFull)
		assert.Equal(t, 0, rec.Body.Len())
	})

	t.Run("should not limit writes when passed -1", func(t *testing.T) {
		rec := httptest.NewRecorder()
		wrt := newBufferResponse(rec, -1)
		n, err := wrt.Write(bytes.Repeat([]byte{0x01}, 4096))
		require.NoError(t, err)
		require.Equal(t, 4096, n)
		assert.Equal(t, 0, rec.Body.Len())
	})

	t.Run("should flush repeatedly", func(t *testing.T) {
		rec := httptest.NewRecorder()
		fwr := newBufferResponse(rec, 2)

		for range 3 {
			_, err := fwr.Write([]byte{0x01, 0x02})
			require.NoError(t, err)
			require.NoError(t, fwr.FlushError())
		}

		assert.Equal(t, []byte{0x01, 0x02, 0x01, 0x02, 0x01, 0x02}, rec.Body.Bytes())
	})

	t.Run("should unwrap", func(t *testing.T) {
		rec := httptest.NewRecorder()
		require.Equal(t, rec, newBufferResponse(rec, 0).Unwrap())
	})

	t.Run("should pass on flush errors", func(t *testing.T) {
		fwr := newBufferResponse(failingResponseWriter{httptest.NewRecorder()}, -1)
		_, _ = fmt.Fprint(fwr, "foo")
		err := fwr.FlushError()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "write fail")
	})

	t.Run("reset discards body headers and status", func(t *testing.T) {
		rec := httptest.NewRecorder()
		resp := newBufferResponse(rec, -1)
		resp.Header().Set("X-Before", "before")
		resp.WriteHeader(http.StatusInternalServerError)
		fmt.Fprintf(resp, "partial")

		resp.Reset()
		resp.Header().Set("X-After", "after")
		fmt.Fprintf(resp, "bar")

		require.NoError(t, resp.FlushBuffer())
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "bar", rec.Body.String())
		assert.Equal(t, "after", rec.Header().Get("X-After"))
		assert.Empty(t, rec.Header().Values("X-Before"))
	})

	t.Run("should not allow reset after explicit flush", func(t *testing.T) {
		resp := newBufferResponse(httptest.NewRecorder(), -1)
		require.NoError(t, http.NewResponseController(resp).Flush())

		defer func() {
			r := recover()
			require.NotNil(t, r)
			require.Contains(t, fmt.Sprintf("%v", r), "already flushed")
		}()
		resp.Reset()
	})
}

type failingResponseWriter struct {
	http.ResponseWriter
}

func (f failingResponseWriter) Write([]byte) (int, error) {
	return 0, errors.New("write fail")
}
