package metrics

import (
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
)

// idSegment matches numeric and long hex path segments (event IDs, pubkeys, sha256).
var idSegment = regexp.MustCompile(`/([0-9]+|[0-9a-fA-F]{16,})(/|$)`)

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if !r.written {
		r.statusCode = code
		r.written = true
		r.ResponseWriter.WriteHeader(code)
	}
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if !r.written {
		r.statusCode = http.StatusOK
		r.written = true
	}
	return r.ResponseWriter.Write(b)
}

// Middleware records request count and latency. The path label is the chi
// route pattern when available so IDs never become label values.
// A panicking handler is recorded as a 500.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		start := time.Now()

		defer func() {
			if err := recover(); err != nil {
				if !recorder.written {
					recorder.WriteHeader(http.StatusInternalServerError)
				}
				recorder.statusCode = http.StatusInternalServerError
			}

			path := routePattern(r)
			status := strconv.Itoa(recorder.statusCode)
			RecordRequest(r.Method, path, status)
			RecordRequestDuration(r.Method, path, status, time.Since(start).Seconds())
		}()

		next.ServeHTTP(recorder, r)
	})
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return normalizePath(r.URL.Path)
}

// normalizePath replaces ID-like segments with ":id".
//
//	/decisions/3bf0c63f...           -> /decisions/:id
//	/check-result/9f86d081.../extra  -> /check-result/:id/extra
func normalizePath(path string) string {
	// Run twice so adjacent ID segments sharing a slash are both replaced.
	for range 2 {
		path = idSegment.ReplaceAllString(path, "/:id$2")
	}
	return path
}
