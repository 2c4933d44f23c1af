package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/harshkas4na/Protocol-Pal/pkg/logger"
)

// Config holds the configuration for the transaction pipeline service.
type Config struct {
	RPCURL          string
	ChainID         int64
	ResolverURL     string
	ResolverTimeout time.Duration
	PrivateKey      string
	GasLimit        uint64
	PollInterval    time.Duration
	MaxPollAttempts int
	SettleDelay     time.Duration
	ListenPort      string
	MetricsPort     string
	RegistryFile    string
	CircuitBreaker  CircuitBreakerConfig
	LoggerConfig    LoggerConfig
}

// CircuitBreakerConfig holds circuit breaker configuration for the resolver endpoint.
type CircuitBreakerConfig struct {
	Enabled        bool
	Threshold      int
	WindowDuration time.Duration
	ResetTimeout   time.Duration
}

// LoggerConfig holds the configuration for logging.
type LoggerConfig struct {
	Level    logger.Level
	Coloring bool
}

// LoadConfig loads the configuration from environment variables.
func LoadConfig() (*Config, error) {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables")
	}

	resolverURL, err := GetEnvResolverURL()
	if err != nil {
		return nil, err
	}

	resolverTimeout, err := GetEnvResolverTimeout()
	if err != nil {
		return nil, err
	}

	chainID, err := GetEnvChainID()
	if err != nil {
		return nil, err
	}

	gasLimit, err := GetEnvGasLimit()
	if err != nil {
		return nil, err
	}

	pollInterval, err := GetEnvPollInterval()
	if err != nil {
		return nil, err
	}

	maxPollAttempts, err := GetEnvMaxPollAttempts()
	if err != nil {
		return nil, err
	}

	settleDelay, err := GetEnvSettleDelay()
	if err != nil {
		return nil, err
	}

	listenPort, err := GetEnvListenPort()
	if err != nil {
		return nil, err
	}

	metricsPort, err := GetEnvMetricsPort()
	if err != nil {
		return nil, err
	}

	cbEnabled, err := GetEnvCircuitBreakerEnabled()
	if err != nil {
		return nil, err
	}

	cbThreshold, err := GetEnvCircuitBreakerThreshold()
	if err != nil {
		return nil, err
	}

	cbWindow, err := GetEnvCircuitBreakerWindow()
	if err != nil {
		return nil, err
	}

	cbReset, err := GetEnvCircuitBreakerReset()
	if err != nil {
		return nil, err
	}

	logLevel, err := GetEnvLogLevel()
	if err != nil {
		return nil, err
	}

	logColoring, err := GetEnvLogColoring()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		RPCURL:          GetEnvRPCURL(),
		ChainID:         chainID,
		ResolverURL:     resolverURL,
		ResolverTimeout: resolverTimeout,
		PrivateKey:      os.Getenv("PRIVATE_KEY"),
		GasLimit:        gasLimit,
		PollInterval:    pollInterval,
		MaxPollAttempts: maxPollAttempts,
		SettleDelay:     settleDelay,
		ListenPort:      listenPort,
		MetricsPort:     metricsPort,
		RegistryFile:    os.Getenv("REGISTRY_FILE"),
		CircuitBreaker: CircuitBreakerConfig{
			Enabled:        cbEnabled,
			Threshold:      cbThreshold,
			WindowDuration: cbWindow,
			ResetTimeout:   cbReset,
		},
		LoggerConfig: LoggerConfig{
			Level:    logLevel,
			Coloring: logColoring,
		},
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateConfig validates the configuration.
func validateConfig(cfg *Config) error {
	if cfg.RPCURL == "" {
		return fmt.Errorf("RPC_URL environment variable is required")
	}
	if cfg.ResolverURL == "" {
		return fmt.Errorf("INTENT_PARSER_URL environment variable is required")
	}
	if cfg.ListenPort == cfg.MetricsPort {
		return fmt.Errorf("API_PORT and METRICS_PORT must differ")
	}
	return nil
}
