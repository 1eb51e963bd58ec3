package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
)

func (s *Server) setupRoutes() {
	s.router.Get("/", s.servePage)
	s.router.Get("/kiosk.js", s.serveScript)
	s.router.Get("/frame.jpg", s.frame)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.health)
		r.Get("/state", s.state)
		r.Get("/events", s.events)
		r.Post("/quit", s.requestQuit)
	})
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data) //nolint:errcheck // client went away
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

func (s *Server) state(w http.ResponseWriter, _ *http.Request) {
	snap, ok := s.store.Snapshot()
	if !ok {
		respondError(w, http.StatusServiceUnavailable, "no frame processed yet")
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

func (s *Server) frame(w http.ResponseWriter, _ *http.Request) {
	data, ok, err := s.store.JPEG()
	if err != nil {
		s.logger.Error("web: encoding frame failed", "error", err)
		respondError(w, http.StatusInternalServerError, "could not encode frame")
		return
	}
	if !ok {
		respondError(w, http.StatusServiceUnavailable, "no frame processed yet")
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data) //nolint:errcheck // client went away
}

func (s *Server) requestQuit(w http.ResponseWriter, _ *http.Request) {
	s.logger.Info("web: quit requested")
	if s.quit != nil {
		s.quit()
	}
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "stopping"})
}

// events streams snapshots as server-sent events until the client leaves or
// the kiosk stops.
func (s *Server) events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	updates, unsubscribe := s.store.Subscribe()
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if snap, ok := s.store.Snapshot(); ok {
		sendSSEEvent(w, flusher, "state", snap)
	} else {
		flusher.Flush()
	}

	keepAlive := time.NewTicker(15 * time.Second)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepAlive.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case snap, ok := <-updates:
			if !ok {
				sendSSEEvent(w, flusher, "closed", map[string]string{"status": "stopped"})
				return
			}
			sendSSEEvent(w, flusher, "state", snap)
		}
	}
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
	flusher.Flush()
}

const statusPage = `<!DOCTYPE html>
<html>
<head>
    <title>Absen Kiosk</title>
    <style>
        body { margin: 0; background: #111; display: flex; justify-content: center; align-items: center; height: 100vh; }
        img { max-width: 100vw; max-height: 100vh; }
    </style>
</head>
<body>
    <img id="screen" src="/frame.jpg" alt="kiosk">
    <script src="/kiosk.js"></script>
</body>
</html>`

// statusScript reloads the screen whenever the kiosk publishes a new state.
const statusScript = `const img = document.getElementById('screen');
new EventSource('/api/v1/events').addEventListener('state', () => {
    img.src = '/frame.jpg?t=' + Date.now();
});
`

func (s *Server) servePage(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(statusPage)) //nolint:errcheck // client went away
}

func (s *Server) serveScript(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(statusScript)) //nolint:errcheck // client went away
}
