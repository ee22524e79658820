// Package dataserver serves a prepared point set over HTTP.
package dataserver

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/cbegin/sonoscope-go/internal/dataset"
)

type Server struct {
	points         []dataset.Point
	allowedOrigins []string
	logger         *log.Logger
}

// New builds a server for points. A nil logger disables request logging.
func New(points []dataset.Point, allowedOrigins []string, logger *log.Logger) *Server {
	if points == nil {
		points = []dataset.Point{}
	}
	return &Server{points: points, allowedOrigins: allowedOrigins, logger: logger}
}

// Handler returns the routed handler with CORS and logging applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/data", s.handleData)
	mux.HandleFunc("/health", s.handleHealth)

	var h http.Handler = mux
	h = corsMiddleware(s.allowedOrigins)(h)
	if s.logger != nil {
		h = loggingMiddleware(s.logger)(h)
	}
	return h
}

func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.respondJSON(w, http.StatusOK, dataset.Response{Points: s.points})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]any{"status": "ok", "points": len(s.points)})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil && s.logger != nil {
		s.logger.Printf("encode response: %v", err)
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": http.StatusText(status), "message": message})
}

// corsMiddleware echoes allowed origins. An empty list or "*" allows any origin.
func corsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	anyOrigin := len(allowedOrigins) == 0 || (len(allowedOrigins) == 1 && allowedOrigins[0] == "*")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			allowed := false
			if anyOrigin {
				w.Header().Set("Access-Control-Allow-Origin", "*")
				allowed = true
			} else {
				for _, o := range allowedOrigins {
					if strings.EqualFold(o, origin) {
						w.Header().Set("Access-Control-Allow-Origin", origin)
						w.Header().Add("Vary", "Origin")
						allowed = true
						break
					}
				}
			}
			if allowed {
				w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
				w.Header().Set("Access-Control-Max-Age", "3600")
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func loggingMiddleware(logger *log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			logger.Printf("%s %s -> %d", r.Method, r.URL.Path, rec.status)
		})
	}
}
