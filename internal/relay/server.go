package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"

	"github.com/codefionn/threadgate/internal/config"
	"github.com/codefionn/threadgate/internal/engine"
	"github.com/codefionn/threadgate/internal/logger"
	"github.com/codefionn/threadgate/internal/store"
)

// Server hosts the websocket endpoint and the health check
type Server struct {
	hub      *Hub
	threads  *ThreadStore
	bridge   *StreamingBridge
	verifier tokenVerifier

	httpServer *http.Server
	listener   net.Listener
	upgrader   websocket.Upgrader
}

// NewServer wires the relay together over the given gateway and engine
func NewServer(cfg *config.Config, gateway store.Gateway, eng engine.Engine) *Server {
	threads := NewThreadStore(gateway)

	s := &Server{
		hub:      NewHub(),
		threads:  threads,
		bridge:   NewStreamingBridge(eng, threads, cfg.Engine.DefaultModel),
		verifier: stubVerifier{},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Clients connect from app frontends on arbitrary origins;
			// the token handshake is the actual access control.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	router := httprouter.New()
	router.GET("/ws", s.handleWebsocket)
	router.GET("/healthz", s.handleHealth)

	s.httpServer = &http.Server{
		Addr:    cfg.Listen,
		Handler: router,
	}
	return s
}

// Listen binds the configured address. Separate from Start so callers can
// fail fast on a bad address and learn the bound port before serving.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}
	s.listener = ln
	return nil
}

// Start serves until the server is shut down, binding first if Listen was
// not called. It returns http.ErrServerClosed after a clean Shutdown.
func (s *Server) Start() error {
	if s.listener == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}

	logger.Info("Relay listening on %s", s.listener.Addr())
	return s.httpServer.Serve(s.listener)
}

// Addr returns the bound address, useful when listening on port 0
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.httpServer.Addr
	}
	return s.listener.Addr().String()
}

// Shutdown stops accepting connections, closes live sockets and waits for
// the HTTP server to drain within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Shutdown()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("Websocket upgrade failed: %v", err)
		return
	}

	c := newClient(conn, s.hub, s.threads, s.bridge, s.verifier)
	c.Start()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":      "ok",
		"connections": s.hub.Count(),
		"threads":     s.threads.Count(),
	})
}
