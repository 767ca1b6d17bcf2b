package app

import (
	"context"
	"net/http"
	"time"

	webservo "github.com/Komrod/web-servo"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RequestIDHeader carries the id of a request, in both directions.
const RequestIDHeader = "X-Request-Id"

type ctxKey string

const requestIDKey ctxKey = "request-id"

// RequestID returns the id assigned to the request, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// withRequestID keeps an incoming request id or assigns a new one, and echoes it on the response. It sits
// outside the buffered writer so the header survives a reset.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}

		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

// logRequests writes one debug entry per dispatched request.
func logRequests(logs *zap.Logger) webservo.Middleware {
	return func(next webservo.Handler) webservo.Handler {
		return webservo.HandlerFunc(func(ctx context.Context, w webservo.ResponseWriter, r *http.Request) (webservo.Reply, error) {
			start := time.Now()
			reply, err := next.ServeServo(ctx, w, r)

			status := http.StatusOK
			if err != nil {
				status = webservo.StatusOf(err)
			}

			logs.Debug("dispatched request",
				zap.String("request_id", RequestID(ctx)),
				zap.String("method", r.Method),
				zap.String("url", r.URL.RequestURI()),
				zap.Int("status", status),
				zap.Duration("duration", time.Since(start)))

			return reply, err
		})
	}
}
