package app

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Komrod/web-servo/script"
	"github.com/stretchr/testify/assert"
)

func TestServerTimeouts(t *testing.T) {
	header, read, write := serverTimeouts(0)
	assert.Equal(t, readHeaderTimeout, header)
	assert.Zero(t, read)
	assert.Zero(t, write)

	header, read, write = serverTimeouts(2 * time.Second)
	assert.Equal(t, 2*time.Second, header)
	assert.Equal(t, 2*time.Second+deadlineBuffer, read)
	assert.Equal(t, 2*time.Second+deadlineBuffer, write)

	header, _, _ = serverTimeouts(time.Minute)
	assert.Equal(t, readHeaderTimeout, header)
}

func TestWithRequestDeadline(t *testing.T) {
	var remaining time.Duration
	inner := http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		remaining = script.RemainingTime(r.Context())
	})

	withRequestDeadline(0)(inner).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Zero(t, remaining)

	withRequestDeadline(time.Minute)(inner).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Greater(t, remaining, 50*time.Second)
	assert.LessOrEqual(t, remaining, time.Minute)
}
