// Package gateway wraps the JSON-RPC endpoint behind a small read surface:
// balances, token metadata and transaction receipts. Reads degrade to a
// neutral answer instead of failing the caller where the pipeline can make
// progress without them.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/harshkas4na/Protocol-Pal/pkg/logger"
	"github.com/harshkas4na/Protocol-Pal/pkg/metrics"
)

// ReceiptStatus is the three-valued outcome of a receipt lookup.
type ReceiptStatus int

const (
	// ReceiptUnknown means no receipt is available yet, or the lookup itself
	// failed. Both cases read the same to the poller: try again.
	ReceiptUnknown ReceiptStatus = iota
	// ReceiptConfirmed means the transaction was mined and succeeded.
	ReceiptConfirmed
	// ReceiptReverted means the transaction was mined and reverted.
	ReceiptReverted
)

func (s ReceiptStatus) String() string {
	switch s {
	case ReceiptConfirmed:
		return "confirmed"
	case ReceiptReverted:
		return "reverted"
	default:
		return "unknown"
	}
}

// erc20ReadABI covers the view functions balance reporting needs.
const erc20ReadABI = `[
	{
		"constant": true,
		"inputs": [{"name": "_owner", "type": "address"}],
		"name": "balanceOf",
		"outputs": [{"name": "balance", "type": "uint256"}],
		"payable": false,
		"stateMutability": "view",
		"type": "function"
	},
	{
		"constant": true,
		"inputs": [],
		"name": "decimals",
		"outputs": [{"name": "", "type": "uint8"}],
		"payable": false,
		"stateMutability": "view",
		"type": "function"
	}
]`

// DefaultTokenDecimals is assumed when a token contract does not answer the
// decimals call.
const DefaultTokenDecimals = 18

// Client is the chain gateway: reads for balances and receipts, plus the
// delegated write surface the signer uses.
type Client struct {
	eth      *ethclient.Client
	erc20ABI abi.ABI
	logger   logger.Logger

	mu              sync.RWMutex
	currentGasPrice *big.Int
}

// Dial connects to the RPC endpoint and returns a gateway client.
func Dial(ctx context.Context, rpcURL string, lg logger.Logger) (*Client, error) {
	eth, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC endpoint: %v", err)
	}
	return NewClient(eth, lg)
}

// NewClient wraps an already connected ethclient.
func NewClient(eth *ethclient.Client, lg logger.Logger) (*Client, error) {
	parsed, err := abi.JSON(strings.NewReader(erc20ReadABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ERC20 ABI: %v", err)
	}
	return &Client{eth: eth, erc20ABI: parsed, logger: lg}, nil
}

// Close releases the underlying RPC connection.
func (c *Client) Close() {
	c.eth.Close()
}

// NativeBalance returns the ETH balance of the address in wei.
func (c *Client) NativeBalance(ctx context.Context, addr common.Address) (*big.Int, error) {
	balance, err := c.eth.BalanceAt(ctx, addr, nil)
	if err != nil {
		metrics.GatewayReadErrors.WithLabelValues("native_balance").Inc()
		return nil, fmt.Errorf("failed to get native balance: %v", err)
	}
	return balance, nil
}

// TokenBalance returns the ERC-20 balance of the holder in the token's
// smallest unit.
func (c *Client) TokenBalance(ctx context.Context, token, holder common.Address) (*big.Int, error) {
	contract := bind.NewBoundContract(token, c.erc20ABI, c.eth, c.eth, c.eth)

	var out []interface{}
	if err := contract.Call(&bind.CallOpts{Context: ctx}, &out, "balanceOf", holder); err != nil {
		metrics.GatewayReadErrors.WithLabelValues("token_balance").Inc()
		return nil, fmt.Errorf("failed to get token balance: %v", err)
	}
	if len(out) == 0 || out[0] == nil {
		metrics.GatewayReadErrors.WithLabelValues("token_balance").Inc()
		return nil, fmt.Errorf("empty balance response from %s", token.Hex())
	}
	balance, ok := out[0].(*big.Int)
	if !ok {
		metrics.GatewayReadErrors.WithLabelValues("token_balance").Inc()
		return nil, fmt.Errorf("invalid balance format from %s", token.Hex())
	}
	return balance, nil
}

// TokenDecimals returns the token's decimals, assuming DefaultTokenDecimals
// when the contract does not answer.
func (c *Client) TokenDecimals(ctx context.Context, token common.Address) uint8 {
	contract := bind.NewBoundContract(token, c.erc20ABI, c.eth, c.eth, c.eth)

	var out []interface{}
	if err := contract.Call(&bind.CallOpts{Context: ctx}, &out, "decimals"); err != nil {
		c.logger.DebugWithScope(logger.Gateway, "Decimals call to %s failed, assuming %d: %v",
			token.Hex(), DefaultTokenDecimals, err)
		return DefaultTokenDecimals
	}
	if len(out) == 0 || out[0] == nil {
		return DefaultTokenDecimals
	}
	decimals, ok := out[0].(uint8)
	if !ok {
		return DefaultTokenDecimals
	}
	return decimals
}

// LatestBlock returns the current chain head number.
func (c *Client) LatestBlock(ctx context.Context) (uint64, error) {
	n, err := c.eth.BlockNumber(ctx)
	if err != nil {
		metrics.GatewayReadErrors.WithLabelValues("block_number").Inc()
		return 0, fmt.Errorf("failed to get latest block: %v", err)
	}
	return n, nil
}

// ReceiptStatus looks up the receipt for the hash. It never returns an error:
// a missing receipt and a failed lookup are both ReceiptUnknown, since the
// poller treats them identically and retries.
func (c *Client) ReceiptStatus(ctx context.Context, txHash common.Hash) ReceiptStatus {
	receipt, err := c.eth.TransactionReceipt(ctx, txHash)
	if err != nil {
		// ethereum.NotFound is the common pending case; anything else is a
		// transport hiccup worth counting.
		if !errors.Is(err, ethereum.NotFound) {
			metrics.GatewayReadErrors.WithLabelValues("receipt").Inc()
			c.logger.DebugWithScope(logger.Gateway, "Receipt lookup for %s failed: %v", txHash.Hex(), err)
		}
		return ReceiptUnknown
	}
	if receipt.Status == types.ReceiptStatusSuccessful {
		return ReceiptConfirmed
	}
	return ReceiptReverted
}
