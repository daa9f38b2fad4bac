package main

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const requestIDHeader = "X-Request-Id"

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// withLogging tags every request with an ID, logs it, and records it in metrics.
func (s *server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		defer func() {
			if p := recover(); p != nil {
				s.logger.Error("handler panic", zap.String("request_id", id), zap.Any("panic", p))
				http.Error(rec, "internal error", http.StatusInternalServerError)
			}
			s.metrics.Request(routeLabel(r.URL.Path), rec.status)
			s.logger.Info("request",
				zap.String("request_id", id),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rec.status),
				zap.Duration("elapsed", time.Since(start)),
			)
		}()

		next.ServeHTTP(rec, r)
	})
}

var knownRoutes = map[string]struct{}{
	"/monitor": {},
	"/upload":  {},
	"/status":  {},
	"/login":   {},
	"/queues":  {},
	"/healthz": {},
	"/metrics": {},
}

// routeLabel keeps the metrics path label bounded.
func routeLabel(path string) string {
	if _, ok := knownRoutes[path]; ok {
		return path
	}
	return "other"
}
