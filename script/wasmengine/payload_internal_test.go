package wasmengine

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/Komrod/web-servo/script"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPayload(t *testing.T) {
	call := script.Call{
		Request: script.Request{Method: http.MethodGet, URL: "/m.wasm?b=1&2=x", Path: "/m.wasm", Header: http.Header{"X-Custom": {"c"}}},
		Params:  []script.Param{{Key: "b", Value: "1"}, {Key: "2", Value: "x"}, {Key: "__proto__", Value: "p"}},
	}

	pl := newPayload(context.Background(), call)
	assert.Zero(t, pl.RemainingMs)
	assert.Equal(t, "c", pl.Headers["x-custom"])

	data, err := json.Marshal(pl)
	require.NoError(t, err)
	assert.Contains(t, string(data),
		`"params":[{"key":"b","value":"1"},{"key":"2","value":"x"},{"key":"__proto__","value":"p"}]`)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pl = newPayload(ctx, call)
	assert.Greater(t, pl.RemainingMs, int64(50_000))
	assert.LessOrEqual(t, pl.RemainingMs, int64(60_000))
}
