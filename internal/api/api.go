// Package api exposes token resolution and scans over HTTP.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/matrixise/tip3-raffle/internal/blockchain"
	"github.com/matrixise/tip3-raffle/internal/health"
	"github.com/matrixise/tip3-raffle/internal/metrics"
	"github.com/matrixise/tip3-raffle/internal/raffle"
	"github.com/matrixise/tip3-raffle/internal/token"
)

const (
	maxRequestBody = 1 << 20
	wsReadTimeout  = 30 * time.Second
	wsWriteTimeout = 10 * time.Second
)

// Scanner runs one scan. *raffle.Runner implements it.
type Scanner interface {
	Run(ctx context.Context, req raffle.Request, extra ...raffle.Sink) (*raffle.Result, error)
}

// Server holds the HTTP handlers. Health and Metrics may be nil, in
// which case their routes are not mounted.
type Server struct {
	Scanner  Scanner
	Resolver raffle.TokenResolver
	Health   *health.Checker
	Metrics  *metrics.Metrics
	Logger   *slog.Logger

	upgrader websocket.Upgrader
}

// Router builds the chi router.
func (s *Server) Router() http.Handler {
	if s.Logger == nil {
		s.Logger = slog.Default()
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(*http.Request) bool { return true },
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	if s.Health != nil {
		r.Get("/health", s.Health.Handler())
	}
	if s.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.Metrics.Handler())
	}
	r.Get("/tokens/{identifier}", s.getToken)
	r.Post("/scans", s.postScan)
	r.Get("/scans/ws", s.streamScan)

	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.Logger.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (s *Server) getToken(w http.ResponseWriter, r *http.Request) {
	identifier := chi.URLParam(r, "identifier")

	tok, err := s.Resolver.Resolve(r.Context(), identifier)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tok)
}

func (s *Server) postScan(w http.ResponseWriter, r *http.Request) {
	req, err := raffle.DecodeRequest(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err != nil {
		s.writeError(w, err)
		return
	}

	result, err := s.Scanner.Run(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// streamScan reads one scan request from the socket, streams every
// event as a JSON message and closes. The summary event carries the
// result; a failed run ends with an error message instead.
func (s *Server) streamScan(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Logger.Warn("WebSocket upgrade failed", "error", err)
		return
	}
	defer func() {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(wsWriteTimeout))
		conn.Close()
	}()

	conn.SetReadLimit(maxRequestBody)
	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))

	_, payload, err := conn.ReadMessage()
	if err != nil {
		s.Logger.Debug("WebSocket request not received", "error", err)
		return
	}
	_ = conn.SetReadDeadline(time.Time{})

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// A client that goes away cancels the scan.
	go func() {
		for {
			if _, _, err := conn.NextReader(); err != nil {
				cancel()
				return
			}
		}
	}()

	req, err := raffle.DecodeRequest(bytes.NewReader(payload))
	if err != nil {
		s.writeSocketError(conn, err)
		return
	}

	stream := raffle.NewAsyncSink(raffle.SinkFunc(func(e raffle.Event) {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := conn.WriteJSON(e); err != nil {
			s.Logger.Debug("WebSocket write failed", "error", err)
			cancel()
		}
	}))

	_, runErr := s.Scanner.Run(ctx, req, stream)
	stream.Close()

	if runErr != nil {
		s.writeSocketError(conn, runErr)
	}
}

type errorBody struct {
	Kind  string `json:"kind,omitempty"`
	Error string `json:"error"`
}

func (s *Server) writeSocketError(conn *websocket.Conn, err error) {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if werr := conn.WriteJSON(errorBody{Kind: "error", Error: err.Error()}); werr != nil {
		s.Logger.Debug("WebSocket write failed", "error", werr)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		s.Logger.Warn("Request failed", "status", status, "error", err)
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}

// StatusFor maps pipeline errors to HTTP status codes.
func StatusFor(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, raffle.ErrMalformedInput),
		errors.Is(err, blockchain.ErrMalformedAddress):
		return http.StatusBadRequest
	case errors.Is(err, token.ErrUnknownSymbol):
		return http.StatusNotFound
	case errors.Is(err, blockchain.ErrNoHealthyEndpoint),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		// manifest, contract call and gateway failures
		return http.StatusBadGateway
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}
