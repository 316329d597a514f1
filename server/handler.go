package server

import (
	"encoding/json"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"
)

// CreateSessionHandler mints a new session id. Never fails.
func CreateSessionHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := s.Sessions.Create()

		sessionsCreated.Inc()
		sessionsActive.Set(float64(s.Sessions.Len()))
		log.WithField("session", id).Info("session created")

		writeJSON(w, 200, map[string]interface{}{
			"sessionId": id,
		})
	}
}

// GetSessionHandler reports whether a session id is still live, for clients
// verifying a shared link before connecting.
func GetSessionHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/session/")
		if id == "" || strings.Contains(id, "/") {
			writeJSON(w, 404, map[string]interface{}{
				"error": errSessionNotFound,
			})
			return
		}

		if _, ok := s.Sessions.Get(id); !ok {
			writeJSON(w, 404, map[string]interface{}{
				"error": errSessionNotFound,
			})
			return
		}

		writeJSON(w, 200, map[string]interface{}{
			"sessionId": id,
			"exists":    true,
		})
	}
}

// EventsHandler serves the realtime endpoint, rejecting plain HTTP requests.
func EventsHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !IsWebSocket(r) {
			http.Error(w, "Expected websocket upgrade", 400)
			return
		}
		s.ServeWebSocket(w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, data map[string]interface{}) {
	b, _ := json.Marshal(data)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(b)
}

// WithCors allows the configured client origin to call the admission API
// cross-origin.
func WithCors(origin string, h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		// if options return immediately
		if r.Method == "OPTIONS" {
			return
		}

		h.ServeHTTP(w, r)
	})
}
