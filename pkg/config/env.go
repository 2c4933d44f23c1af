package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/harshkas4na/Protocol-Pal/pkg/logger"
)

const (
	// DefaultRPCURL is the JSON-RPC endpoint for the target network (Sepolia)
	DefaultRPCURL = "https://ethereum-sepolia-rpc.publicnode.com"

	// DefaultChainID is the Sepolia testnet chain ID
	DefaultChainID = 11155111

	// DefaultResolverTimeout bounds one intent resolution request in seconds
	DefaultResolverTimeout = 30

	// DefaultGasLimit is the fixed gas limit applied to broadcast transactions
	DefaultGasLimit = 300000

	// DefaultPollInterval is the confirmation polling interval in seconds
	DefaultPollInterval = 1

	// DefaultMaxPollAttempts is the confirmation polling attempt ceiling
	DefaultMaxPollAttempts = 60

	// DefaultSettleDelay is the pause between a confirmed approval and the
	// main transaction, in seconds
	DefaultSettleDelay = 1

	// DefaultListenPort is the port for the chat API server
	DefaultListenPort = "8081"

	// DefaultMetricsPort is the port for the health and metrics server
	DefaultMetricsPort = "8080"

	// DefaultCircuitBreakerEnabled defines whether the resolver circuit breaker is enabled
	DefaultCircuitBreakerEnabled = true

	// DefaultCircuitBreakerThreshold defines the number of resolver failures before the breaker trips
	DefaultCircuitBreakerThreshold = 5

	// DefaultCircuitBreakerWindow defines the failure window in minutes
	DefaultCircuitBreakerWindow = 5

	// DefaultCircuitBreakerReset defines the reset timeout in minutes
	DefaultCircuitBreakerReset = 15
)

// GetEnvRPCURL returns the JSON-RPC endpoint from environment variables.
func GetEnvRPCURL() string {
	if rpcURL := os.Getenv("RPC_URL"); rpcURL != "" {
		return rpcURL
	}
	return DefaultRPCURL
}

// GetEnvChainID returns the target chain ID from environment variables.
func GetEnvChainID() (int64, error) {
	raw := os.Getenv("CHAIN_ID")
	if raw == "" {
		return DefaultChainID, nil
	}

	chainID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid CHAIN_ID value: %s, must be an integer", raw)
	}
	if chainID <= 0 {
		return 0, fmt.Errorf("CHAIN_ID must be greater than 0")
	}
	return chainID, nil
}

// GetEnvResolverURL returns the intent parser endpoint from environment variables.
func GetEnvResolverURL() (string, error) {
	resolverURL := os.Getenv("INTENT_PARSER_URL")
	if resolverURL == "" {
		return "", nil
	}

	if _, err := url.ParseRequestURI(resolverURL); err != nil {
		return "", fmt.Errorf("invalid INTENT_PARSER_URL value: %s", resolverURL)
	}
	return resolverURL, nil
}

// GetEnvResolverTimeout returns the intent resolution timeout from environment variables.
func GetEnvResolverTimeout() (time.Duration, error) {
	raw := os.Getenv("INTENT_PARSER_TIMEOUT")
	if raw == "" {
		return time.Duration(DefaultResolverTimeout) * time.Second, nil
	}

	seconds, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid INTENT_PARSER_TIMEOUT value: %s, must be an integer", raw)
	}
	if seconds <= 0 {
		return 0, fmt.Errorf("INTENT_PARSER_TIMEOUT must be greater than 0")
	}
	return time.Duration(seconds) * time.Second, nil
}

// GetEnvGasLimit returns the fixed transaction gas limit from environment variables.
func GetEnvGasLimit() (uint64, error) {
	raw := os.Getenv("GAS_LIMIT")
	if raw == "" {
		return DefaultGasLimit, nil
	}

	gasLimit, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid GAS_LIMIT value: %s, must be an unsigned integer", raw)
	}
	if gasLimit < 21000 {
		return 0, fmt.Errorf("GAS_LIMIT must be at least 21000")
	}
	return gasLimit, nil
}

// GetEnvPollInterval returns the confirmation polling interval from environment variables.
func GetEnvPollInterval() (time.Duration, error) {
	raw := os.Getenv("CONFIRMATION_POLL_INTERVAL")
	if raw == "" {
		return time.Duration(DefaultPollInterval) * time.Second, nil
	}

	seconds, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid CONFIRMATION_POLL_INTERVAL value: %s, must be an integer", raw)
	}
	if seconds <= 0 {
		return 0, fmt.Errorf("CONFIRMATION_POLL_INTERVAL must be greater than 0")
	}
	return time.Duration(seconds) * time.Second, nil
}

// GetEnvMaxPollAttempts returns the confirmation polling ceiling from environment variables.
func GetEnvMaxPollAttempts() (int, error) {
	raw := os.Getenv("CONFIRMATION_MAX_ATTEMPTS")
	if raw == "" {
		return DefaultMaxPollAttempts, nil
	}

	attempts, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid CONFIRMATION_MAX_ATTEMPTS value: %s, must be an integer", raw)
	}
	if attempts <= 0 {
		return 0, fmt.Errorf("CONFIRMATION_MAX_ATTEMPTS must be greater than 0")
	}
	return attempts, nil
}

// GetEnvSettleDelay returns the post-approval settle delay from environment variables.
func GetEnvSettleDelay() (time.Duration, error) {
	raw := os.Getenv("SETTLE_DELAY")
	if raw == "" {
		return time.Duration(DefaultSettleDelay) * time.Second, nil
	}

	seconds, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid SETTLE_DELAY value: %s, must be an integer", raw)
	}
	if seconds < 0 {
		return 0, fmt.Errorf("SETTLE_DELAY must not be negative")
	}
	return time.Duration(seconds) * time.Second, nil
}

// GetEnvListenPort returns the chat API port from environment variables.
func GetEnvListenPort() (string, error) {
	port := os.Getenv("API_PORT")
	if port == "" {
		return DefaultListenPort, nil
	}

	if _, err := strconv.Atoi(port); err != nil {
		return "", fmt.Errorf("invalid API_PORT value: %s, must be a port number", port)
	}
	return port, nil
}

// GetEnvMetricsPort returns the health and metrics port from environment variables.
func GetEnvMetricsPort() (string, error) {
	port := os.Getenv("METRICS_PORT")
	if port == "" {
		return DefaultMetricsPort, nil
	}

	if _, err := strconv.Atoi(port); err != nil {
		return "", fmt.Errorf("invalid METRICS_PORT value: %s, must be a port number", port)
	}
	return port, nil
}

// GetEnvCircuitBreakerEnabled returns whether the resolver circuit breaker is enabled.
func GetEnvCircuitBreakerEnabled() (bool, error) {
	raw := os.Getenv("CIRCUIT_BREAKER_ENABLED")
	if raw == "" {
		return DefaultCircuitBreakerEnabled, nil
	}

	enabled, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid CIRCUIT_BREAKER_ENABLED value: %s, must be a boolean", raw)
	}
	return enabled, nil
}

// GetEnvCircuitBreakerThreshold returns the resolver failure threshold.
func GetEnvCircuitBreakerThreshold() (int, error) {
	raw := os.Getenv("CIRCUIT_BREAKER_THRESHOLD")
	if raw == "" {
		return DefaultCircuitBreakerThreshold, nil
	}

	threshold, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid CIRCUIT_BREAKER_THRESHOLD value: %s, must be an integer", raw)
	}
	if threshold <= 0 {
		return 0, fmt.Errorf("CIRCUIT_BREAKER_THRESHOLD must be greater than 0")
	}
	return threshold, nil
}

// GetEnvCircuitBreakerWindow returns the resolver failure window.
func GetEnvCircuitBreakerWindow() (time.Duration, error) {
	raw := os.Getenv("CIRCUIT_BREAKER_WINDOW")
	if raw == "" {
		return time.Duration(DefaultCircuitBreakerWindow) * time.Minute, nil
	}

	minutes, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid CIRCUIT_BREAKER_WINDOW value: %s, must be an integer", raw)
	}
	if minutes <= 0 {
		return 0, fmt.Errorf("CIRCUIT_BREAKER_WINDOW must be greater than 0")
	}
	return time.Duration(minutes) * time.Minute, nil
}

// GetEnvCircuitBreakerReset returns the breaker reset timeout.
func GetEnvCircuitBreakerReset() (time.Duration, error) {
	raw := os.Getenv("CIRCUIT_BREAKER_RESET")
	if raw == "" {
		return time.Duration(DefaultCircuitBreakerReset) * time.Minute, nil
	}

	minutes, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid CIRCUIT_BREAKER_RESET value: %s, must be an integer", raw)
	}
	if minutes <= 0 {
		return 0, fmt.Errorf("CIRCUIT_BREAKER_RESET must be greater than 0")
	}
	return time.Duration(minutes) * time.Minute, nil
}

// GetEnvLogLevel returns the log level from environment variables.
func GetEnvLogLevel() (logger.Level, error) {
	raw := os.Getenv("LOG_LEVEL")
	switch raw {
	case "", "info":
		return logger.InfoLevel, nil
	case "debug":
		return logger.DebugLevel, nil
	case "notice":
		return logger.NoticeLevel, nil
	case "error":
		return logger.ErrorLevel, nil
	default:
		return 0, fmt.Errorf("invalid LOG_LEVEL value: %s, must be one of debug, info, notice, error", raw)
	}
}

// GetEnvLogColoring returns whether log coloring is enabled.
func GetEnvLogColoring() (bool, error) {
	raw := os.Getenv("LOG_COLORING")
	if raw == "" {
		return true, nil
	}

	coloring, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid LOG_COLORING value: %s, must be a boolean", raw)
	}
	return coloring, nil
}
