package webservo_test

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	webservo "github.com/Komrod/web-servo"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerErrorBecomesServerError(t *testing.T) {
	deny := func(webservo.Handler) webservo.Handler {
		return webservo.HandlerFunc(func(context.Context, webservo.ResponseWriter, *http.Request) (webservo.Reply, error) {
			return webservo.Reply{}, errors.New("denied")
		})
	}

	fx := setup(t, nil, webservo.WithMiddleware(deny))
	fx.write(t, "index.html", "home")

	rec := fx.get("/")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "500 Server error", rec.Body.String())
	assert.Equal(t, []string{"denied"}, fx.sink.errs)
	require.Len(t, fx.sink.access, 1)
	assert.Equal(t, http.StatusInternalServerError, fx.sink.access[0].Status)
}

func TestHandlerWritesAreDiscardedOnError(t *testing.T) {
	chatty := func(next webservo.Handler) webservo.Handler {
		return webservo.HandlerFunc(func(ctx context.Context, w webservo.ResponseWriter, r *http.Request) (webservo.Reply, error) {
			w.Header().Set("X-Chatty", "yes")
			fmt.Fprint(w, "partial")

			return next.ServeServo(ctx, w, r)
		})
	}

	fx := setup(t, nil, webservo.WithMiddleware(chatty))
	fx.write(t, "index.html", "home")

	rec := fx.get("/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "partialhome", rec.Body.String())
	assert.Equal(t, "yes", rec.Header().Get("X-Chatty"))

	rec = fx.get("/missing.html")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "404 Not found", rec.Body.String())
	assert.Empty(t, rec.Header().Get("X-Chatty"))
}

func TestHandlerReplyReplacesContentType(t *testing.T) {
	asText := func(next webservo.Handler) webservo.Handler {
		return webservo.HandlerFunc(func(ctx context.Context, w webservo.ResponseWriter, r *http.Request) (webservo.Reply, error) {
			reply, err := next.ServeServo(ctx, w, r)
			reply.ContentType = "text/plain"

			return reply, err
		})
	}

	fx := setup(t, nil, webservo.WithMiddleware(asText))
	fx.write(t, "data.json", `{"a":1}`)

	rec := fx.get("/data.json")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/plain", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"a":1}`, rec.Body.String())
}
