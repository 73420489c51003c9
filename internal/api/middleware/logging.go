package middleware

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

// responseWriter records the status and body size of a response.
type responseWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (rw *responseWriter) WriteHeader(status int) {
	rw.status = status
	rw.ResponseWriter.WriteHeader(status)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	size, err := rw.ResponseWriter.Write(b)
	rw.size += size
	return size, err
}

// Flush lets large .ics exports stream through the wrapper.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// routeLabel names a request by its route template so log lines group by
// endpoint, e.g. "/api/users/{userId}/calendar". Falls back to the path.
func routeLabel(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return r.URL.Path
}

// Logging writes one access line per request:
// METHOD route status bytes duration [user=<id>] [query=<raw>].
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{
			ResponseWriter: w,
			status:         http.StatusOK,
		}

		next.ServeHTTP(wrapped, r)

		line := r.Method + " " + routeLabel(r)
		if user := mux.Vars(r)["userId"]; user != "" {
			line += " user=" + user
		}
		if r.URL.RawQuery != "" {
			line += " query=" + r.URL.RawQuery
		}
		log.Printf("%s %d %d %s", line, wrapped.status, wrapped.size, time.Since(start))
	})
}
