// Package httpserver implements the HTTP and websocket edges described
// by spec §6: a JSON request/response endpoint in front of the façade,
// and a websocket endpoint that streams events out of the C7 fan-out
// registry. Grounded on the teacher's internal/api.Server — an
// http.ServeMux wrapped by a logging middleware, owning its own
// http.Server for graceful Shutdown.
package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/sonarhub/sonarfleetd/internal/facade"
	"github.com/sonarhub/sonarfleetd/internal/wsregistry"
)

// upgrader has no origin restriction; the daemon is assumed to sit
// behind a reverse proxy or run on a trusted network (spec §6 says
// nothing about auth — out of scope here as in the teacher's own
// LAN-local websocket server).
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server is the HTTP API server (spec §6).
type Server struct {
	address  string
	port     int
	facade   *facade.Facade
	registry *wsregistry.Registry
	logger   *slog.Logger
	server   *http.Server
}

// New constructs an HTTP server bound to address:port, routing
// requests through f and streaming registry events over websocket.
func New(address string, port int, f *facade.Facade, reg *wsregistry.Registry, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{address: address, port: port, facade: f, registry: reg, logger: logger}
}

// Start runs the server until Shutdown is called or ListenAndServe
// fails; ctx is not watched, so cancelling it does not stop the server.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/request", s.handleRequest)
	mux.HandleFunc("GET /v1/events", s.handleWebsocket)
	mux.HandleFunc("GET /health", s.handleHealth)

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.address, s.port),
		Handler:      s.withLogging(mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	addr := s.address
	if addr == "" {
		addr = "0.0.0.0"
	}
	s.logger.Info("starting sonarfleetd HTTP server", "address", addr, "port", s.port)
	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// handleRequest decodes a wire request, dispatches it through the
// façade, and writes back either the Answer or a tagged ManagerError
// (spec §6, §7).
func (s *Server) handleRequest(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
		return
	}

	req, err := decodeRequest(body)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, encodeError(err))
		return
	}

	answer, err := s.facade.Dispatch(r.Context(), req)
	if err != nil {
		s.writeJSON(w, statusForError(err), encodeError(err))
		return
	}
	s.writeJSON(w, http.StatusOK, answer)
}

// handleWebsocket upgrades the connection and registers a subscriber
// with the C7 registry, honoring the "filter" and "device_number"
// query parameters of spec §6. The socket lifetime is owned by the
// subscriber's outbox, not the request context (mirrors the decoupled
// pump lifetime of the teacher's own websocket handlers).
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	filter := r.URL.Query().Get("filter")

	var deviceID *uuid.UUID
	if raw := r.URL.Query().Get("device_number"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			http.Error(w, "invalid device_number", http.StatusBadRequest)
			return
		}
		deviceID = &id
	}

	sub, err := s.registry.Subscribe(filter, deviceID)
	if err != nil {
		http.Error(w, "invalid filter: "+err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("httpserver: websocket upgrade failed", "error", err)
		s.registry.Unsubscribe(sub)
		return
	}

	go s.pump(conn, sub)
}

// pump drains a subscriber's outbox to its websocket connection until
// the outbox closes (on Unsubscribe) or the write fails.
func (s *Server) pump(conn *websocket.Conn, sub *wsregistry.Subscriber) {
	defer conn.Close()
	defer s.registry.Unsubscribe(sub)

	for msg := range sub.Messages() {
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("httpserver: failed to write JSON response", "error", err)
	}
}

func statusForError(err error) int {
	we := encodeError(err)
	switch we.Kind {
	case "device_not_exists":
		return http.StatusNotFound
	case "device_already_exists":
		return http.StatusConflict
	case "device_status_mismatch":
		return http.StatusConflict
	case "not_implemented":
		return http.StatusNotImplemented
	case "transport_source_failure", "device_error":
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

