package monitoring

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

type HTTPMetricsMiddleware struct {
	next http.Handler
}

func NewHTTPMetricsMiddleware(next http.Handler) *HTTPMetricsMiddleware {
	return &HTTPMetricsMiddleware{
		next: next,
	}
}

func (m *HTTPMetricsMiddleware) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	wrapped := &responseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}

	m.next.ServeHTTP(wrapped, r)

	handlerName := extractHandlerName(r.Method, r.URL.Path)
	statusCode := strconv.Itoa(wrapped.statusCode)

	HTTPRequestDuration.WithLabelValues(handlerName, r.Method, statusCode).Observe(time.Since(start).Seconds())
	HTTPRequestsTotal.WithLabelValues(handlerName, r.Method, statusCode).Inc()
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// extractHandlerName collapses ids out of the path so labels stay bounded.
func extractHandlerName(method, path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")

	switch {
	case len(parts) == 0 || parts[0] == "":
		return "root"
	case parts[0] == "metrics", parts[0] == "health":
		return parts[0]
	case parts[0] != "flash-sales":
		return "unknown"
	}

	switch len(parts) {
	case 1:
		return "sales"
	case 2:
		if parts[1] == "analytics" {
			return "analytics"
		}
		return "sale"
	case 3:
		switch parts[2] {
		case "toggle", "publish", "view":
			return "sale_" + parts[2]
		}
		return "unknown"
	}

	switch parts[len(parts)-1] {
	case "purchase":
		return "purchase"
	default:
		if len(parts) == 6 && parts[4] == "buyers" {
			return "buyer_quota"
		}
		return "unknown"
	}
}
