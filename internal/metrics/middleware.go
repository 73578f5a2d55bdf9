package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// responseWriter wraps http.ResponseWriter to capture the status code for
// the plain net/http middleware path.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.written = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

// HTTPMiddleware instruments a plain net/http handler chain.
func (r *Recorder) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, req)

		r.RecordAPIRequest(req.Method, req.URL.Path, rw.statusCode, Elapsed(start))
	})
}

// GinMiddleware instruments the gin router used by the orchestrator's
// HTTP surface (spec.md §6.3), using the matched route pattern (not the
// literal request path) as the label so path parameters never blow up
// metric cardinality.
func (r *Recorder) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		statusStr := strconv.Itoa(c.Writer.Status())
		r.apiRequests.WithLabelValues(c.Request.Method, path, statusStr).Inc()
		r.apiLatency.WithLabelValues(c.Request.Method, path, statusStr).Observe(Elapsed(start))
	}
}
