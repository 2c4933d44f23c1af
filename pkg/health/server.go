// Package health serves the operational endpoints: liveness, readiness,
// chain status, circuit breaker admin and Prometheus metrics.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/harshkas4na/Protocol-Pal/pkg/balance"
	"github.com/harshkas4na/Protocol-Pal/pkg/circuitbreaker"
	"github.com/harshkas4na/Protocol-Pal/pkg/logger"
)

// ChainReader is the slice of the gateway the status endpoint needs.
type ChainReader interface {
	LatestBlock(ctx context.Context) (uint64, error)
}

// Server represents the health and metrics HTTP server.
type Server struct {
	port          string
	rpcURL        string
	chain         ChainReader
	breaker       *circuitbreaker.CircuitBreaker
	balances      *balance.Service
	signerAddress *common.Address
	metricsAPIKey string
	logger        logger.Logger
	httpSrv       *http.Server
}

// NewServer creates a health server. signerAddress is nil when the service
// runs without a signing key.
func NewServer(port, rpcURL string, chain ChainReader, breaker *circuitbreaker.CircuitBreaker, balances *balance.Service, signerAddress *common.Address, lg logger.Logger) *Server {
	return &Server{
		port:          port,
		rpcURL:        rpcURL,
		chain:         chain,
		breaker:       breaker,
		balances:      balances,
		signerAddress: signerAddress,
		metricsAPIKey: os.Getenv("METRICS_API_KEY"),
		logger:        lg,
	}
}

// metricsAuthMiddleware checks for a valid API key when one is configured.
func (s *Server) metricsAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.metricsAPIKey == "" {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Missing Authorization header", http.StatusUnauthorized)
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			http.Error(w, "Invalid Authorization header format", http.StatusUnauthorized)
			return
		}

		if parts[1] != s.metricsAPIKey {
			http.Error(w, "Invalid API key", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if _, err := s.chain.LatestBlock(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("Chain client not reachable"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("Ready"))
	})

	mux.HandleFunc("/status", s.handleStatus)

	mux.HandleFunc("/circuit/reset", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		s.breaker.Reset()
		s.logger.Notice("Circuit breaker reset via admin endpoint")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("Circuit breaker reset"))
	})

	mux.Handle("/metrics", s.metricsAuthMiddleware(promhttp.Handler()))

	return mux
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	circuitStatus := "closed"
	if s.breaker.IsOpen() {
		circuitStatus = "open"
	}

	status := map[string]interface{}{
		"rpc_url":   s.rpcURL,
		"circuit":   circuitStatus,
		"connected": false,
	}

	if blockNumber, err := s.chain.LatestBlock(r.Context()); err == nil {
		status["connected"] = true
		status["latest_block"] = blockNumber
	}

	if s.signerAddress != nil {
		status["signer_address"] = s.signerAddress.Hex()
		if report, err := s.balances.Check(r.Context(), s.signerAddress.Hex(), nil); err == nil {
			tokenBalances := make(map[string]string, len(report.Tokens))
			for _, token := range report.Tokens {
				if token.Error == "" {
					tokenBalances[token.Symbol] = token.Amount
				}
			}
			status["native_balance"] = report.Native
			status["token_balances"] = tokenBalances
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(status); err != nil {
		s.logger.Error("Error encoding status JSON: %v", err)
	}
}

// Start serves until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:              ":" + s.port,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting health and metrics server on port %s", s.port)
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
