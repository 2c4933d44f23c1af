package gateway

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/harshkas4na/Protocol-Pal/pkg/logger"
)

// DefaultFeeRefreshInterval is how often the fee routine re-reads the
// suggested gas price.
const DefaultFeeRefreshInterval = 30 * time.Second

// FeeRoutine periodically refreshes the suggested gas price so transaction
// signing does not pay an RPC round trip per call.
type FeeRoutine struct {
	ctx      context.Context
	client   *Client
	interval time.Duration
	stopChan chan struct{}
	mu       sync.RWMutex
	running  bool
	logger   logger.Logger
}

// NewFeeRoutine creates a fee refresh routine for the client.
func NewFeeRoutine(ctx context.Context, client *Client, interval time.Duration) *FeeRoutine {
	return &FeeRoutine{
		ctx:      ctx,
		client:   client,
		interval: interval,
		logger:   client.logger,
	}
}

// Start begins the periodic updates.
func (r *FeeRoutine) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return
	}
	r.stopChan = make(chan struct{})
	r.running = true

	go r.run(r.stopChan)
}

// Stop halts the periodic updates.
func (r *FeeRoutine) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		return
	}
	close(r.stopChan)
	r.running = false
}

// IsRunning returns whether the routine is currently running.
func (r *FeeRoutine) IsRunning() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.running
}

// run receives its stop channel at start so Stop never races a restart.
func (r *FeeRoutine) run(stop <-chan struct{}) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.updateGasPrice()

	for {
		select {
		case <-ticker.C:
			r.updateGasPrice()
		case <-stop:
			return
		case <-r.ctx.Done():
			return
		}
	}
}

func (r *FeeRoutine) updateGasPrice() {
	gasPrice, err := r.client.eth.SuggestGasPrice(r.ctx)
	if err != nil {
		r.logger.DebugWithScope(logger.Gateway, "Failed to refresh gas price: %v", err)
		return
	}

	r.client.mu.Lock()
	r.client.currentGasPrice = gasPrice
	r.client.mu.Unlock()
}

// SuggestGasPrice returns the cached gas price when a fee routine has filled
// it, falling back to a live query.
func (c *Client) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	c.mu.RLock()
	cached := c.currentGasPrice
	c.mu.RUnlock()

	if cached != nil {
		return new(big.Int).Set(cached), nil
	}
	return c.eth.SuggestGasPrice(ctx)
}

// PendingNonceAt delegates to the underlying client so the gateway can serve
// as the signer's backend.
func (c *Client) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return c.eth.PendingNonceAt(ctx, account)
}

// SendTransaction delegates to the underlying client.
func (c *Client) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	return c.eth.SendTransaction(ctx, tx)
}
