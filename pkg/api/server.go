// Package api exposes the pipeline over HTTP: chat-based preparation,
// execution of prepared transactions and balance reports.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/harshkas4na/Protocol-Pal/pkg/assistant"
	"github.com/harshkas4na/Protocol-Pal/pkg/balance"
	"github.com/harshkas4na/Protocol-Pal/pkg/builder"
	"github.com/harshkas4na/Protocol-Pal/pkg/intentparser"
	"github.com/harshkas4na/Protocol-Pal/pkg/logger"
	"github.com/harshkas4na/Protocol-Pal/pkg/models"
)

// Server is the public HTTP front of the pipeline.
type Server struct {
	port      string
	assistant *assistant.Assistant
	balances  *balance.Service
	logger    logger.Logger
	httpSrv   *http.Server
}

// NewServer creates the API server.
func NewServer(port string, a *assistant.Assistant, b *balance.Service, lg logger.Logger) *Server {
	return &Server{
		port:      port,
		assistant: a,
		balances:  b,
		logger:    lg,
	}
}

// Handler builds the route table. Exposed separately so tests can drive the
// server through httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/chat", s.handleChat)
	mux.HandleFunc("/execute", s.handleExecute)
	mux.HandleFunc("/balances", s.handleBalances)
	return mux
}

// Start serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:              ":" + s.port,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.InfoWithScope(logger.API, "Starting API server on port %s", s.port)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpSrv.Shutdown(shutdownCtx)
	}
}

type chatRequest struct {
	Message       string `json:"message"`
	WalletAddress string `json:"wallet_address"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		s.writeError(w, http.StatusBadRequest, "message is required")
		return
	}
	if req.WalletAddress == "" {
		s.writeError(w, http.StatusBadRequest, "wallet_address is required")
		return
	}

	resp, err := s.assistant.Chat(r.Context(), req.Message, req.WalletAddress)
	if err != nil {
		s.writeError(w, chatErrorStatus(err), err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func chatErrorStatus(err error) int {
	switch {
	case errors.Is(err, assistant.ErrResolverUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, intentparser.ErrTimeout),
		errors.Is(err, intentparser.ErrUnreachable),
		errors.Is(err, intentparser.ErrInvalidResponse):
		return http.StatusBadGateway
	case errors.Is(err, builder.ErrMalformedIntent),
		errors.Is(err, builder.ErrUnknownFunction):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

type executeRequest struct {
	Prepared *models.PreparedTransaction `json:"prepared"`
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req executeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if req.Prepared == nil {
		s.writeError(w, http.StatusBadRequest, "prepared transaction is required")
		return
	}

	result, err := s.assistant.Execute(r.Context(), req.Prepared)
	if err != nil {
		if errors.Is(err, assistant.ErrNoSigner) {
			s.writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		// Execution failures are outcomes, not transport errors: the session
		// and its user-facing message are the answer.
		s.writeJSON(w, http.StatusOK, result)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleBalances(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	address := r.URL.Query().Get("address")
	if address == "" {
		s.writeError(w, http.StatusBadRequest, "address parameter is required")
		return
	}

	var symbols []string
	if raw := r.URL.Query().Get("tokens"); raw != "" {
		symbols = strings.Split(raw, ",")
	}

	report, err := s.balances.Check(r.Context(), address, symbols)
	if err != nil {
		if strings.Contains(err.Error(), "invalid wallet address") {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.ErrorWithScope(logger.API, "Failed to encode response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
