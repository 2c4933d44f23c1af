package assistant

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harshkas4na/Protocol-Pal/pkg/builder"
	"github.com/harshkas4na/Protocol-Pal/pkg/circuitbreaker"
	"github.com/harshkas4na/Protocol-Pal/pkg/executor"
	"github.com/harshkas4na/Protocol-Pal/pkg/logger"
	"github.com/harshkas4na/Protocol-Pal/pkg/models"
	"github.com/harshkas4na/Protocol-Pal/pkg/registry"
)

const caller = "0x1111111111111111111111111111111111111111"

type mockResolver struct {
	intent *models.StructuredIntent
	err    error
	calls  int
}

func (m *mockResolver) Resolve(_ context.Context, _ string) (*models.StructuredIntent, error) {
	m.calls++
	return m.intent, m.err
}

type mockRunner struct {
	session *executor.Session
	err     error
}

func (m *mockRunner) Execute(_ context.Context, _ *models.PreparedTransaction) (*executor.Session, error) {
	return m.session, m.err
}

func newAssistant(t *testing.T, resolver Resolver, runner Runner) (*Assistant, *circuitbreaker.CircuitBreaker) {
	t.Helper()
	reg, err := registry.NewSepolia()
	require.NoError(t, err)
	breaker := circuitbreaker.New(true, 3, time.Minute, time.Minute)
	b := builder.New(reg, &logger.EmptyLogger{})
	return New(resolver, breaker, b, runner, &logger.EmptyLogger{}), breaker
}

func swapIntent() *models.StructuredIntent {
	return &models.StructuredIntent{
		Action:       "prepare_transaction",
		ContractKey:  registry.KeyUniswapRouter,
		FunctionName: "swapExactETHForTokens",
		Args: []interface{}{
			"0",
			[]interface{}{registry.SepoliaWETHAddress, registry.SepoliaUSDCAddress},
			models.PlaceholderUserAddress,
			models.PlaceholderDeadline,
		},
		Value: "0.01",
	}
}

func TestChatPreparesTransaction(t *testing.T) {
	a, _ := newAssistant(t, &mockResolver{intent: swapIntent()}, nil)

	resp, err := a.Chat(context.Background(), "swap 0.01 eth for usdc", caller)
	require.NoError(t, err)

	require.NotNil(t, resp.Prepared)
	assert.Equal(t, caller, resp.Prepared.Transaction.Args[2])

	require.NotNil(t, resp.Summary)
	assert.Equal(t, "Token Swap", resp.Summary.Title)
	assert.Contains(t, resp.Summary.Details, "Sending 0.0100 ETH")
}

func TestChatPassesThroughResolverRefusal(t *testing.T) {
	a, _ := newAssistant(t, &mockResolver{intent: &models.StructuredIntent{Error: "I only prepare transactions."}}, nil)

	resp, err := a.Chat(context.Background(), "what is the weather", caller)
	require.NoError(t, err)

	assert.Equal(t, "I only prepare transactions.", resp.Reply)
	assert.Nil(t, resp.Prepared)
	assert.Nil(t, resp.Summary)
}

func TestChatTripsBreakerAfterRepeatedFailures(t *testing.T) {
	resolver := &mockResolver{err: errors.New("connection refused")}
	a, breaker := newAssistant(t, resolver, nil)

	for i := 0; i < 3; i++ {
		_, err := a.Chat(context.Background(), "swap", caller)
		assert.Error(t, err)
	}
	assert.True(t, breaker.IsOpen())

	// Open breaker refuses without touching the resolver.
	before := resolver.calls
	_, err := a.Chat(context.Background(), "swap", caller)
	assert.ErrorIs(t, err, ErrResolverUnavailable)
	assert.Equal(t, before, resolver.calls)
}

func TestChatSuccessClearsFailureCount(t *testing.T) {
	resolver := &mockResolver{err: errors.New("connection refused")}
	a, breaker := newAssistant(t, resolver, nil)

	_, _ = a.Chat(context.Background(), "swap", caller)
	_, _ = a.Chat(context.Background(), "swap", caller)

	resolver.err = nil
	resolver.intent = swapIntent()
	_, err := a.Chat(context.Background(), "swap", caller)
	require.NoError(t, err)
	assert.False(t, breaker.IsOpen())
	assert.Equal(t, 0, breaker.State().FailureCount)
}

func TestExecuteWithoutSigner(t *testing.T) {
	a, _ := newAssistant(t, &mockResolver{}, nil)
	_, err := a.Execute(context.Background(), &models.PreparedTransaction{})
	assert.ErrorIs(t, err, ErrNoSigner)
}

func TestExecuteSuccessMessage(t *testing.T) {
	hash := "0xabcdef0123456789abcdef0123456789abcdef0123456789abcdef0123456789"
	runner := &mockRunner{session: &executor.Session{State: executor.StateConfirmed, MainTxHash: hash}}
	a, _ := newAssistant(t, &mockResolver{}, runner)

	result, err := a.Execute(context.Background(), &models.PreparedTransaction{})
	require.NoError(t, err)

	assert.Contains(t, result.Message, "Transaction successful!")
	assert.Contains(t, result.Message, "0xabcdef01...23456789")
	assert.Contains(t, result.Message, etherscanTxURL+hash)
}

func TestExecuteFailureMessage(t *testing.T) {
	runner := &mockRunner{
		session: &executor.Session{State: executor.StateFailed, FailureReason: "transaction reverted"},
		err:     executor.ErrReverted,
	}
	a, _ := newAssistant(t, &mockResolver{}, runner)

	result, err := a.Execute(context.Background(), &models.PreparedTransaction{})
	assert.ErrorIs(t, err, executor.ErrReverted)

	require.NotNil(t, result)
	assert.Contains(t, result.Message, "Transaction failed")
	assert.Contains(t, result.Message, "Check wallet balance")
	assert.Equal(t, executor.StateFailed, result.Session.State)
}

func TestSummarize(t *testing.T) {
	tests := []struct {
		name      string
		prepared  *models.PreparedTransaction
		wantTitle string
		wantLine  string
	}{
		{
			name: "eth swap",
			prepared: &models.PreparedTransaction{
				Transaction: models.TransactionDescriptor{
					ContractKey:  registry.KeyUniswapRouter,
					FunctionName: "swapExactETHForTokens",
					Value:        "0.01",
				},
			},
			wantTitle: "Token Swap",
			wantLine:  "Sending 0.0100 ETH",
		},
		{
			name: "token swap has no eth leg",
			prepared: &models.PreparedTransaction{
				Transaction: models.TransactionDescriptor{
					ContractKey:  registry.KeyUniswapRouter,
					FunctionName: "swapExactTokensForTokens",
					Value:        "0.0",
				},
			},
			wantTitle: "Token Swap",
			wantLine:  "Token-to-token swap",
		},
		{
			name: "nft claim",
			prepared: &models.PreparedTransaction{
				Transaction: models.TransactionDescriptor{
					ContractKey:  registry.KeyNFTDrop,
					FunctionName: "claim",
					Value:        "0.0",
				},
			},
			wantTitle: "Mint NFT",
			wantLine:  "Free mint",
		},
		{
			name: "unrecognized function falls back to its name",
			prepared: &models.PreparedTransaction{
				Transaction: models.TransactionDescriptor{
					ContractKey:  "SOME_CONTRACT",
					FunctionName: "delegate",
					Value:        "0.0",
				},
			},
			wantTitle: "Delegate",
			wantLine:  "No ETH transfer",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Summarize(tt.prepared)
			assert.Equal(t, tt.wantTitle, s.Title)
			assert.Contains(t, s.Details, tt.wantLine)
			assert.Contains(t, s.Details, "Network: Sepolia Testnet")
		})
	}
}

func TestSummarizeApprovalNote(t *testing.T) {
	prepared := &models.PreparedTransaction{
		RequiresApproval: true,
		Transaction: models.TransactionDescriptor{
			ContractKey:  registry.KeyUniswapRouter,
			FunctionName: "swapExactTokensForETH",
			Value:        "0.0",
		},
	}
	s := Summarize(prepared)
	assert.Contains(t, s.Details, "Requires 2 transactions")
}
