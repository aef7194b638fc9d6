package display

import (
	"context"
	_ "embed"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

//go:embed static/index.html
var indexHTML []byte

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// StatusFunc reports daemon state for /api/status.
type StatusFunc func() map[string]any

// Server serves the mirror page and its websocket feed.
type Server struct {
	hub        *Hub
	status     StatusFunc
	router     *chi.Mux
	httpServer *http.Server
	log        *slog.Logger
}

func NewServer(addr string, hub *Hub, status StatusFunc, log *slog.Logger) *Server {
	r := chi.NewRouter()
	s := &Server{hub: hub, status: status, router: r, log: log}

	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)

	r.Get("/", s.handleIndex)
	r.Get("/ws", s.handleWebsocket)
	r.Get("/api/status", s.handleStatus)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) Start() error {
	s.log.Info("Starting display server", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errors.Wrap(err, "display server failed")
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(indexHTML)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{}
	if s.status != nil {
		body = s.status()
	}
	body["fields"] = s.hub.Fields()
	body["clients"] = s.hub.ClientCount()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Warn("Can not write status", "error", err)
	}
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("WebSocket upgrade error", "error", err)
		return
	}
	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	s.hub.Register(conn)
	defer s.hub.Unregister(conn)

	// clients only listen; reading keeps pong handling and close detection alive
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	}
}
