package middleware

import (
	"net/http"
	"time"

	"github.com/yuzvak/flashsale-engine/internal/pkg/logger"
)

func NewLoggingMiddleware(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now().UTC()

			wrw := &responseWriterWrapper{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrw, r)

			reqLog := log
			if id := RequestID(r.Context()); id != "" {
				reqLog = log.WithCorrelationID(id)
			}

			fields := []interface{}{
				"method", r.Method,
				"path", r.URL.Path,
				"status", wrw.statusCode,
				"duration_ms", time.Since(start).Milliseconds(),
				"user_agent", r.UserAgent(),
				"remote_addr", r.RemoteAddr,
			}
			if wrw.statusCode >= http.StatusInternalServerError {
				reqLog.Error("HTTP Request", fields...)
				return
			}
			reqLog.Info("HTTP Request", fields...)
		})
	}
}

type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (w *responseWriterWrapper) WriteHeader(statusCode int) {
	if !w.wroteHeader {
		w.statusCode = statusCode
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(statusCode)
}
