package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"

	"github.com/harshkas4na/Protocol-Pal/pkg/api"
	"github.com/harshkas4na/Protocol-Pal/pkg/assistant"
	"github.com/harshkas4na/Protocol-Pal/pkg/balance"
	"github.com/harshkas4na/Protocol-Pal/pkg/builder"
	"github.com/harshkas4na/Protocol-Pal/pkg/circuitbreaker"
	"github.com/harshkas4na/Protocol-Pal/pkg/config"
	"github.com/harshkas4na/Protocol-Pal/pkg/executor"
	"github.com/harshkas4na/Protocol-Pal/pkg/gateway"
	"github.com/harshkas4na/Protocol-Pal/pkg/health"
	"github.com/harshkas4na/Protocol-Pal/pkg/intentparser"
	"github.com/harshkas4na/Protocol-Pal/pkg/logger"
	"github.com/harshkas4na/Protocol-Pal/pkg/registry"
	"github.com/harshkas4na/Protocol-Pal/pkg/wallet"
)

func main() {
	// Load configuration from environment variables
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	lg := logger.NewStdLogger(cfg.LoggerConfig.Coloring, cfg.LoggerConfig.Level)

	// Set up context with cancellation on SIGINT/SIGTERM
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-signalCh
		lg.Notice("Received termination signal, shutting down gracefully...")
		cancel()
	}()

	// Contract and token registry, with optional file overrides
	reg, err := registry.NewSepolia()
	if err != nil {
		log.Fatalf("Failed to build contract registry: %v", err)
	}
	if cfg.RegistryFile != "" {
		if err := reg.ApplyFile(cfg.RegistryFile); err != nil {
			log.Fatalf("Failed to apply registry overrides: %v", err)
		}
		lg.Info("Applied registry overrides from %s", cfg.RegistryFile)
	}

	// Chain gateway
	gw, err := gateway.Dial(ctx, cfg.RPCURL, lg)
	if err != nil {
		log.Fatalf("Failed to connect to chain: %v", err)
	}
	defer gw.Close()

	// Intent resolver behind the circuit breaker
	resolver := intentparser.New(cfg.ResolverURL, cfg.ResolverTimeout, lg)
	breaker := circuitbreaker.New(
		cfg.CircuitBreaker.Enabled,
		cfg.CircuitBreaker.Threshold,
		cfg.CircuitBreaker.WindowDuration,
		cfg.CircuitBreaker.ResetTimeout,
	)

	b := builder.New(reg, lg)
	balances := balance.New(gw, reg, lg)

	// Execution is only wired when a signing key is configured; without one
	// the service prepares transactions and reports balances.
	var runner assistant.Runner
	var signerAddress *common.Address
	if cfg.PrivateKey != "" {
		signer, err := wallet.NewKeyedSigner(cfg.PrivateKey, cfg.ChainID, cfg.GasLimit, gw, lg)
		if err != nil {
			log.Fatalf("Failed to create signer: %v", err)
		}
		addr := signer.Address()
		signerAddress = &addr
		lg.Info("Signing enabled for %s", addr.Hex())

		feeRoutine := gateway.NewFeeRoutine(ctx, gw, gateway.DefaultFeeRefreshInterval)
		feeRoutine.Start()
		defer feeRoutine.Stop()

		runner = executor.New(signer, gw, lg, executor.Config{
			PollInterval: cfg.PollInterval,
			MaxAttempts:  cfg.MaxPollAttempts,
			SettleDelay:  cfg.SettleDelay,
		})
	} else {
		lg.Notice("No PRIVATE_KEY configured, running in prepare-only mode")
	}

	a := assistant.New(resolver, breaker, b, runner, lg)

	// Health and metrics server
	healthSrv := health.NewServer(cfg.MetricsPort, cfg.RPCURL, gw, breaker, balances, signerAddress, lg)
	go func() {
		if err := healthSrv.Start(ctx); err != nil {
			lg.Error("Health server error: %v", err)
		}
	}()

	// Public API server
	apiSrv := api.NewServer(cfg.ListenPort, a, balances, lg)
	lg.Notice("Starting transaction pipeline on port %s", cfg.ListenPort)
	if err := apiSrv.Start(ctx); err != nil {
		log.Fatalf("API server error: %v", err)
	}
}
