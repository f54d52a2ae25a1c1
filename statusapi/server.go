// Package statusapi exposes the memory-read engine's progress and the
// discovered ECU list over HTTP: a JSON GET for each, plus a WebSocket feed
// that relays every snapshot passed to PushProgress. It is opt-in — callers
// only construct a Server when the engine facade is started with a listen
// address — and failures here never affect the read itself.
package statusapi

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"ecudump/discovery"
	"ecudump/logging"
	"ecudump/memoryread"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ProgressSource and ECUSource let the server pull current state from the
// facade without depending on its concrete type.
type ProgressSource func() memoryread.Progress
type ECUSource func() []discovery.ECU

// Server is a gorilla/mux-routed HTTP server serving /ecus, /progress and
// /ws. It does not own a listener's lifecycle beyond http.Serve; Start
// blocks until the listener errors or is closed.
type Server struct {
	router   *mux.Router
	progress ProgressSource
	ecus     ECUSource
	log      *logging.Logger

	clientsMu sync.Mutex
	clients   map[*websocket.Conn]bool
}

func New(progress ProgressSource, ecus ECUSource, log *logging.Logger) *Server {
	s := &Server{
		progress: progress,
		ecus:     ecus,
		log:      log,
		clients:  make(map[*websocket.Conn]bool),
	}
	s.router = mux.NewRouter()
	s.router.HandleFunc("/ecus", s.handleECUs).Methods(http.MethodGet)
	s.router.HandleFunc("/progress", s.handleProgress).Methods(http.MethodGet)
	s.router.HandleFunc("/ws", s.handleWS)
	return s
}

func (s *Server) handleECUs(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.ecus())
}

func (s *Server) handleProgress(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.progress())
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		if s.log != nil {
			s.log.Warnf("statusapi: websocket upgrade failed: %v", err)
		}
		return
	}

	s.clientsMu.Lock()
	s.clients[conn] = true
	s.clientsMu.Unlock()

	defer func() {
		s.clientsMu.Lock()
		delete(s.clients, conn)
		s.clientsMu.Unlock()
		conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// PushProgress broadcasts one progress snapshot to every connected
// WebSocket client. A disconnected client is dropped silently; it never
// surfaces as an error to the caller.
func (s *Server) PushProgress(p memoryread.Progress) {
	payload, err := json.Marshal(p)
	if err != nil {
		return
	}

	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	for conn := range s.clients {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			conn.Close()
			delete(s.clients, conn)
		}
	}
}

// Start serves the router on addr. It blocks until the server stops.
func (s *Server) Start(addr string) error {
	if s.log != nil {
		s.log.Infof("statusapi: listening on %s", addr)
	}
	return http.ListenAndServe(addr, s.router)
}
