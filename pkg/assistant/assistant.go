// Package assistant ties the pipeline together for the chat surface: it
// resolves an utterance into a prepared transaction with a human-readable
// summary, and runs prepared transactions to a plain-language outcome. The
// resolver sits behind the circuit breaker so a flapping upstream degrades
// into fast, explicit refusals.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/harshkas4na/Protocol-Pal/pkg/builder"
	"github.com/harshkas4na/Protocol-Pal/pkg/circuitbreaker"
	"github.com/harshkas4na/Protocol-Pal/pkg/executor"
	"github.com/harshkas4na/Protocol-Pal/pkg/logger"
	"github.com/harshkas4na/Protocol-Pal/pkg/models"
)

const etherscanTxURL = "https://sepolia.etherscan.io/tx/"

// ErrResolverUnavailable is returned while the circuit breaker is open.
var ErrResolverUnavailable = errors.New("intent resolver temporarily unavailable")

// ErrNoSigner is returned from Execute when no signing key is configured.
var ErrNoSigner = errors.New("no signing key configured")

// Resolver turns free text into a structured intent.
type Resolver interface {
	Resolve(ctx context.Context, utterance string) (*models.StructuredIntent, error)
}

// Runner executes a prepared transaction to a terminal session.
type Runner interface {
	Execute(ctx context.Context, prepared *models.PreparedTransaction) (*executor.Session, error)
}

// Summary is the short description of a prepared transaction shown to the
// user before they confirm.
type Summary struct {
	Title   string   `json:"title"`
	Icon    string   `json:"icon"`
	Details []string `json:"details"`
}

// ChatResponse is the answer to one utterance. When the resolver declined
// the request, Reply carries its message and Prepared is nil.
type ChatResponse struct {
	Reply    string                      `json:"reply"`
	Prepared *models.PreparedTransaction `json:"prepared,omitempty"`
	Summary  *Summary                    `json:"summary,omitempty"`
}

// ExecuteResult pairs the terminal session with the message shown in chat.
type ExecuteResult struct {
	Session *executor.Session `json:"session"`
	Message string            `json:"message"`
}

// Assistant is the chat-facing pipeline facade.
type Assistant struct {
	resolver Resolver
	breaker  *circuitbreaker.CircuitBreaker
	builder  *builder.Builder
	runner   Runner
	logger   logger.Logger
}

// New creates an assistant. runner may be nil when the service runs without
// a signing key; Execute then refuses with ErrNoSigner.
func New(resolver Resolver, breaker *circuitbreaker.CircuitBreaker, b *builder.Builder, runner Runner, lg logger.Logger) *Assistant {
	return &Assistant{
		resolver: resolver,
		breaker:  breaker,
		builder:  b,
		runner:   runner,
		logger:   lg,
	}
}

// Chat resolves the utterance and prepares the transaction it describes.
func (a *Assistant) Chat(ctx context.Context, utterance, callerAddress string) (*ChatResponse, error) {
	if a.breaker.IsOpen() {
		a.logger.Notice("Refusing chat request, circuit breaker is open")
		return nil, ErrResolverUnavailable
	}

	intent, err := a.resolver.Resolve(ctx, utterance)
	if err != nil {
		if a.breaker.RecordFailure() {
			a.logger.Error("Circuit breaker tripped after repeated resolver failures")
		}
		return nil, err
	}
	a.breaker.RecordSuccess()

	if intent.IsError() {
		return &ChatResponse{Reply: intent.Error}, nil
	}

	prepared, err := a.builder.Build(intent, callerAddress)
	if err != nil {
		return nil, err
	}

	summary := Summarize(prepared)
	return &ChatResponse{
		Reply:    summary.Title,
		Prepared: prepared,
		Summary:  summary,
	}, nil
}

// Execute runs a prepared transaction and phrases the outcome for the user.
// The result is returned even when err is non-nil so callers can show both
// the message and the session that produced it.
func (a *Assistant) Execute(ctx context.Context, prepared *models.PreparedTransaction) (*ExecuteResult, error) {
	if a.runner == nil {
		return nil, ErrNoSigner
	}

	session, err := a.runner.Execute(ctx, prepared)
	if err != nil {
		return &ExecuteResult{Session: session, Message: failureMessage(err)}, err
	}
	return &ExecuteResult{Session: session, Message: successMessage(session.MainTxHash)}, nil
}

func successMessage(hash string) string {
	return fmt.Sprintf("Transaction successful!\n\nHash: %s\n\nView: %s%s",
		shortenHash(hash), etherscanTxURL, hash)
}

func failureMessage(err error) string {
	return fmt.Sprintf("Transaction failed: %v\n\nTips:\n• Check wallet balance\n• Verify network (Sepolia)\n• Try rephrasing your request", err)
}

func shortenHash(hash string) string {
	if len(hash) < 18 {
		return hash
	}
	return hash[:10] + "..." + hash[len(hash)-8:]
}

// Summarize describes the prepared transaction in one title plus a few
// detail lines, keyed off the function name.
func Summarize(prepared *models.PreparedTransaction) *Summary {
	tx := prepared.Transaction
	function := strings.ToLower(tx.FunctionName)
	contractKey := tx.ContractKey
	if contractKey == "" {
		contractKey = "contract"
	}
	value := formatValue(tx.Value)
	hasValue := value != "0.0000"

	s := &Summary{}
	switch {
	case strings.Contains(function, "swap") || strings.Contains(strings.ToLower(contractKey), "swap"):
		s.Title = "Token Swap"
		s.Icon = "swap"
		s.Details = []string{
			fmt.Sprintf("Using %s", contractKey),
			pick(hasValue, fmt.Sprintf("Sending %s ETH", value), "Token-to-token swap"),
		}
	case strings.Contains(function, "mint") || strings.Contains(function, "claim"):
		s.Title = "Mint NFT"
		s.Icon = "mint"
		s.Details = []string{
			fmt.Sprintf("Collection: %s", contractKey),
			pick(hasValue, fmt.Sprintf("Cost: %s ETH", value), "Free mint"),
		}
	case strings.Contains(function, "transfer"):
		s.Title = "Transfer Tokens"
		s.Icon = "transfer"
		s.Details = []string{
			fmt.Sprintf("Transferring via %s", contractKey),
			pick(hasValue, fmt.Sprintf("Amount: %s ETH", value), "Token transfer"),
		}
	default:
		s.Title = "Execute Transaction"
		if tx.FunctionName != "" {
			s.Title = strings.ToUpper(tx.FunctionName[:1]) + tx.FunctionName[1:]
		}
		s.Icon = "default"
		s.Details = []string{
			fmt.Sprintf("Contract: %s", contractKey),
			pick(hasValue, fmt.Sprintf("Value: %s ETH", value), "No ETH transfer"),
		}
	}
	s.Details = append(s.Details, "Network: Sepolia Testnet")

	if prepared.RequiresApproval {
		s.Details = append(s.Details, "Requires 2 transactions")
	}
	return s
}

func formatValue(value string) string {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return "0.0000"
	}
	return strconv.FormatFloat(f, 'f', 4, 64)
}

func pick(cond bool, a, b string) string {
	if cond {
		return a
	}
	return b
}
