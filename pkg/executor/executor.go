// Package executor drives a prepared transaction through its two-phase life
// cycle: the optional ERC-20 approval first, then the main call, each
// broadcast and polled to a terminal receipt before the next step runs.
package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/harshkas4na/Protocol-Pal/pkg/gateway"
	"github.com/harshkas4na/Protocol-Pal/pkg/logger"
	"github.com/harshkas4na/Protocol-Pal/pkg/metrics"
	"github.com/harshkas4na/Protocol-Pal/pkg/models"
)

// State is the execution session's position in the two-phase life cycle.
type State int

const (
	StateIdle State = iota
	StateAwaitingApprovalSignature
	StateApprovalBroadcast
	StateApprovalConfirmed
	StateAwaitingMainSignature
	StateMainBroadcast
	StateConfirmed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingApprovalSignature:
		return "awaiting_approval_signature"
	case StateApprovalBroadcast:
		return "approval_broadcast"
	case StateApprovalConfirmed:
		return "approval_confirmed"
	case StateAwaitingMainSignature:
		return "awaiting_main_signature"
	case StateMainBroadcast:
		return "main_broadcast"
	case StateConfirmed:
		return "confirmed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the session can no longer progress.
func (s State) Terminal() bool {
	return s == StateConfirmed || s == StateFailed
}

// Execution failures. Each one maps to a distinct terminal reason and is
// preserved through wrapping so callers can branch with errors.Is.
var (
	// ErrApprovalIndeterminate means the preparation step flagged an approval
	// but could not derive its parameters; execution refuses to start.
	ErrApprovalIndeterminate = errors.New("approval required but parameters could not be determined")
	// ErrSignatureRejected means the signer declined to sign.
	ErrSignatureRejected = errors.New("signature rejected")
	// ErrBroadcastFailed means the signed transaction was not accepted by the
	// network.
	ErrBroadcastFailed = errors.New("broadcast failed")
	// ErrReverted means the transaction was mined but reverted on chain.
	ErrReverted = errors.New("transaction reverted")
	// ErrConfirmationTimeout means no receipt appeared within the polling
	// budget. The transaction may still confirm later.
	ErrConfirmationTimeout = errors.New("confirmation timed out")
)

// Broadcaster signs a descriptor and submits it to the network, returning the
// transaction hash. Implementations wrap their failures with
// ErrSignatureRejected or ErrBroadcastFailed.
type Broadcaster interface {
	SignAndBroadcast(ctx context.Context, tx *models.TransactionDescriptor) (string, error)
}

// ReceiptSource answers receipt lookups for broadcast transactions.
type ReceiptSource interface {
	ReceiptStatus(ctx context.Context, txHash common.Hash) gateway.ReceiptStatus
}

// Session records one execution run. It is returned even on failure so
// callers can report how far the run got.
type Session struct {
	ID               string
	State            State
	ApprovalTxHash   string
	MainTxHash       string
	ApprovalAttempts int
	MainAttempts     int
	FailureReason    string
}

// Config bounds the confirmation polling.
type Config struct {
	// PollInterval is the delay between receipt lookups.
	PollInterval time.Duration
	// MaxAttempts caps receipt lookups per transaction.
	MaxAttempts int
	// SettleDelay is waited after the approval confirms before the main
	// transaction is broadcast, letting RPC nodes catch up on state.
	SettleDelay time.Duration
}

// Orchestrator executes prepared transactions sequentially.
type Orchestrator struct {
	broadcaster Broadcaster
	receipts    ReceiptSource
	logger      logger.Logger
	cfg         Config
}

// New creates an orchestrator. Zero config fields fall back to safe values.
func New(b Broadcaster, r ReceiptSource, lg logger.Logger, cfg Config) *Orchestrator {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 60
	}
	return &Orchestrator{broadcaster: b, receipts: r, logger: lg, cfg: cfg}
}

// Execute runs the prepared transaction to a terminal state. The approval, if
// present, must confirm before the main call is signed; any failure along the
// way ends the session with a recorded reason. The returned session is valid
// even when err is non-nil.
func (o *Orchestrator) Execute(ctx context.Context, prepared *models.PreparedTransaction) (*Session, error) {
	session := &Session{ID: uuid.NewString(), State: StateIdle}
	metrics.SessionsActive.Inc()
	defer metrics.SessionsActive.Dec()

	if prepared.RequiresApproval && prepared.ApprovalTransaction == nil {
		return o.fail(session, ErrApprovalIndeterminate)
	}

	if prepared.RequiresApproval {
		if err := o.runApproval(ctx, session, prepared.ApprovalTransaction); err != nil {
			return o.fail(session, err)
		}
	}

	if err := o.runMain(ctx, session, &prepared.Transaction); err != nil {
		return o.fail(session, err)
	}

	session.State = StateConfirmed
	metrics.ExecutionsTotal.WithLabelValues("confirmed").Inc()
	o.logger.NoticeWithScope(logger.Executor, "Transaction confirmed: %s", session.MainTxHash)
	return session, nil
}

func (o *Orchestrator) runApproval(ctx context.Context, session *Session, tx *models.TransactionDescriptor) error {
	session.State = StateAwaitingApprovalSignature
	hash, err := o.broadcaster.SignAndBroadcast(ctx, tx)
	if err != nil {
		return classifyBroadcastErr(err)
	}
	session.ApprovalTxHash = hash
	session.State = StateApprovalBroadcast
	o.logger.InfoWithScope(logger.Executor, "Approval broadcast: %s", hash)

	attempts, err := o.awaitReceipt(ctx, hash)
	session.ApprovalAttempts = attempts
	if err != nil {
		return fmt.Errorf("approval: %w", err)
	}
	session.State = StateApprovalConfirmed
	o.logger.InfoWithScope(logger.Executor, "Approval confirmed after %d polls: %s", attempts, hash)

	if o.cfg.SettleDelay > 0 {
		select {
		case <-time.After(o.cfg.SettleDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (o *Orchestrator) runMain(ctx context.Context, session *Session, tx *models.TransactionDescriptor) error {
	session.State = StateAwaitingMainSignature
	hash, err := o.broadcaster.SignAndBroadcast(ctx, tx)
	if err != nil {
		return classifyBroadcastErr(err)
	}
	session.MainTxHash = hash
	session.State = StateMainBroadcast
	o.logger.InfoWithScope(logger.Executor, "Transaction broadcast: %s", hash)

	attempts, err := o.awaitReceipt(ctx, hash)
	session.MainAttempts = attempts
	return err
}

// awaitReceipt polls until the receipt is terminal or the attempt budget runs
// out. It returns the number of lookups performed.
func (o *Orchestrator) awaitReceipt(ctx context.Context, hash string) (int, error) {
	txHash := common.HexToHash(hash)

	for attempt := 1; attempt <= o.cfg.MaxAttempts; attempt++ {
		switch o.receipts.ReceiptStatus(ctx, txHash) {
		case gateway.ReceiptConfirmed:
			metrics.ConfirmationPolls.Observe(float64(attempt))
			return attempt, nil
		case gateway.ReceiptReverted:
			metrics.ConfirmationPolls.Observe(float64(attempt))
			return attempt, ErrReverted
		}

		if attempt == o.cfg.MaxAttempts {
			break
		}
		select {
		case <-time.After(o.cfg.PollInterval):
		case <-ctx.Done():
			return attempt, ctx.Err()
		}
	}

	metrics.ConfirmationPolls.Observe(float64(o.cfg.MaxAttempts))
	return o.cfg.MaxAttempts, fmt.Errorf("%w after %d attempts", ErrConfirmationTimeout, o.cfg.MaxAttempts)
}

func (o *Orchestrator) fail(session *Session, err error) (*Session, error) {
	session.State = StateFailed
	session.FailureReason = err.Error()
	metrics.ExecutionsTotal.WithLabelValues(outcomeLabel(err)).Inc()
	o.logger.ErrorWithScope(logger.Executor, "Execution failed: %v", err)
	return session, err
}

// classifyBroadcastErr keeps sentinel wrapping intact and folds everything
// else into a broadcast failure.
func classifyBroadcastErr(err error) error {
	if errors.Is(err, ErrSignatureRejected) || errors.Is(err, ErrBroadcastFailed) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrBroadcastFailed, err)
}

func outcomeLabel(err error) string {
	switch {
	case errors.Is(err, ErrApprovalIndeterminate):
		return "approval_indeterminate"
	case errors.Is(err, ErrSignatureRejected):
		return "signature_rejected"
	case errors.Is(err, ErrBroadcastFailed):
		return "broadcast_failed"
	case errors.Is(err, ErrReverted):
		return "reverted"
	case errors.Is(err, ErrConfirmationTimeout):
		return "confirmation_timeout"
	default:
		return "error"
	}
}
