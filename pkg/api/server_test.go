package api

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harshkas4na/Protocol-Pal/pkg/assistant"
	"github.com/harshkas4na/Protocol-Pal/pkg/balance"
	"github.com/harshkas4na/Protocol-Pal/pkg/builder"
	"github.com/harshkas4na/Protocol-Pal/pkg/circuitbreaker"
	"github.com/harshkas4na/Protocol-Pal/pkg/executor"
	"github.com/harshkas4na/Protocol-Pal/pkg/intentparser"
	"github.com/harshkas4na/Protocol-Pal/pkg/logger"
	"github.com/harshkas4na/Protocol-Pal/pkg/models"
	"github.com/harshkas4na/Protocol-Pal/pkg/registry"
)

const wallet = "0x1111111111111111111111111111111111111111"

type stubResolver struct {
	intent *models.StructuredIntent
	err    error
}

func (s *stubResolver) Resolve(_ context.Context, _ string) (*models.StructuredIntent, error) {
	return s.intent, s.err
}

type stubRunner struct {
	session *executor.Session
	err     error
}

func (s *stubRunner) Execute(_ context.Context, _ *models.PreparedTransaction) (*executor.Session, error) {
	return s.session, s.err
}

type stubReader struct{}

func (stubReader) NativeBalance(_ context.Context, _ common.Address) (*big.Int, error) {
	return big.NewInt(1_000_000_000_000_000_000), nil
}

func (stubReader) TokenBalance(_ context.Context, _, _ common.Address) (*big.Int, error) {
	return big.NewInt(1_500_000), nil
}

func (stubReader) TokenDecimals(_ context.Context, _ common.Address) uint8 {
	return 18
}

func newTestServer(t *testing.T, resolver assistant.Resolver, runner assistant.Runner) *httptest.Server {
	t.Helper()
	reg, err := registry.NewSepolia()
	require.NoError(t, err)

	lg := &logger.EmptyLogger{}
	breaker := circuitbreaker.New(true, 5, time.Minute, time.Minute)
	a := assistant.New(resolver, breaker, builder.New(reg, lg), runner, lg)
	balances := balance.New(stubReader{}, reg, lg)

	srv := httptest.NewServer(NewServer("0", a, balances, lg).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestChatEndpoint(t *testing.T) {
	resolver := &stubResolver{intent: &models.StructuredIntent{
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
	}}
	srv := newTestServer(t, resolver, nil)

	resp := postJSON(t, srv.URL+"/chat", `{"message":"swap 0.01 eth for usdc","wallet_address":"`+wallet+`"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out assistant.ChatResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.NotNil(t, out.Prepared)
	assert.Equal(t, wallet, out.Prepared.Transaction.Args[2])
	assert.Equal(t, "Token Swap", out.Summary.Title)
}

func TestChatEndpointValidation(t *testing.T) {
	srv := newTestServer(t, &stubResolver{}, nil)

	tests := []struct {
		name string
		body string
	}{
		{"missing message", `{"wallet_address":"` + wallet + `"}`},
		{"missing wallet", `{"message":"swap"}`},
		{"broken json", `{"message":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, srv.URL+"/chat", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestChatEndpointStatusMapping(t *testing.T) {
	t.Run("resolver failure maps to bad gateway", func(t *testing.T) {
		srv := newTestServer(t, &stubResolver{err: intentparser.ErrUnreachable}, nil)
		resp := postJSON(t, srv.URL+"/chat", `{"message":"swap","wallet_address":"`+wallet+`"}`)
		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	})

	t.Run("unknown contract maps to unprocessable", func(t *testing.T) {
		resolver := &stubResolver{intent: &models.StructuredIntent{
			Action:       "prepare_transaction",
			ContractKey:  "CURVE_POOL",
			FunctionName: "exchange",
			Args:         []interface{}{},
		}}
		srv := newTestServer(t, resolver, nil)
		resp := postJSON(t, srv.URL+"/chat", `{"message":"swap","wallet_address":"`+wallet+`"}`)
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	})

	t.Run("resolver refusal is a normal answer", func(t *testing.T) {
		srv := newTestServer(t, &stubResolver{intent: &models.StructuredIntent{Error: "I only do transactions."}}, nil)
		resp := postJSON(t, srv.URL+"/chat", `{"message":"weather?","wallet_address":"`+wallet+`"}`)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var out assistant.ChatResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		assert.Equal(t, "I only do transactions.", out.Reply)
		assert.Nil(t, out.Prepared)
	})
}

func TestExecuteEndpoint(t *testing.T) {
	hash := "0x" + strings.Repeat("ab", 32)
	runner := &stubRunner{session: &executor.Session{State: executor.StateConfirmed, MainTxHash: hash}}
	srv := newTestServer(t, &stubResolver{}, runner)

	resp := postJSON(t, srv.URL+"/execute", `{"prepared":{"transaction":{"contract_address":"`+registry.SepoliaUniswapRouterAddress+`","value":"0.0"}}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out assistant.ExecuteResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Contains(t, out.Message, "Transaction successful!")
	assert.Equal(t, hash, out.Session.MainTxHash)
}

func TestExecuteEndpointFailureIsAnOutcome(t *testing.T) {
	runner := &stubRunner{
		session: &executor.Session{State: executor.StateFailed, FailureReason: "transaction reverted"},
		err:     executor.ErrReverted,
	}
	srv := newTestServer(t, &stubResolver{}, runner)

	resp := postJSON(t, srv.URL+"/execute", `{"prepared":{"transaction":{"value":"0.0"}}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out assistant.ExecuteResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Contains(t, out.Message, "Transaction failed")
}

func TestExecuteEndpointWithoutSigner(t *testing.T) {
	srv := newTestServer(t, &stubResolver{}, nil)
	resp := postJSON(t, srv.URL+"/execute", `{"prepared":{"transaction":{"value":"0.0"}}}`)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestBalancesEndpoint(t *testing.T) {
	srv := newTestServer(t, &stubResolver{}, nil)

	resp, err := http.Get(srv.URL + "/balances?address=" + wallet + "&tokens=USDC")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var report balance.Report
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))
	assert.Equal(t, "1.000000", report.Native)
	require.Len(t, report.Tokens, 1)
	assert.Equal(t, "USDC", report.Tokens[0].Symbol)
	assert.Equal(t, "1.50", report.Tokens[0].Amount)
}

func TestBalancesEndpointValidation(t *testing.T) {
	srv := newTestServer(t, &stubResolver{}, nil)

	resp, err := http.Get(srv.URL + "/balances")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/balances?address=nope")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, &stubResolver{}, nil)

	resp, err := http.Get(srv.URL + "/chat")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	resp = postJSON(t, srv.URL+"/balances", `{}`)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
