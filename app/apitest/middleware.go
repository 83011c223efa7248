package apitest

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
)

func routeKey(r *http.Request) string {
	route := mux.CurrentRoute(r)
	if route == nil {
		return r.Method + " " + r.URL.Path
	}
	tmpl, err := route.GetPathTemplate()
	if err != nil {
		return r.Method + " " + r.URL.Path
	}
	return r.Method + " " + tmpl
}

// requestLogger logs information about each request.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.mutex.Lock()
		logger := s.logger
		s.mutex.Unlock()
		logger.Printf("%s %s [%s] took %s", r.Method, r.URL.Path, r.Header.Get("X-Request-ID"), time.Since(start))
	})
}

// recoverer recovers from panics and answers 500.
func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				sendError(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// contentTypeJSON sets the Content-Type header to application/json for API routes.
func contentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api") {
			w.Header().Set("Content-Type", "application/json")
		}
		next.ServeHTTP(w, r)
	})
}

// faultInjector counts calls, runs the hook and answers queued failures.
func (s *Server) faultInjector(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := routeKey(r)

		s.mutex.Lock()
		s.calls[key]++
		hook := s.hook
		status := 0
		if queued := s.failures[key]; len(queued) > 0 {
			status = queued[0]
			s.failures[key] = queued[1:]
		}
		s.mutex.Unlock()

		if hook != nil {
			hook(r)
		}
		if status != 0 {
			sendError(w, http.StatusText(status), status)
			return
		}
		next.ServeHTTP(w, r)
	})
}
