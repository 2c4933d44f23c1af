package wallet

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// nonceSyncInterval bounds how long allocated nonces are trusted before the
// counter is re-read from the chain.
const nonceSyncInterval = 5 * time.Minute

// nonceCache allocates sequential nonces for one account without a round
// trip per transaction. The counter is seeded from the chain's pending nonce
// and re-synchronized periodically; a nonce whose broadcast failed can be
// handed back for reuse so the account does not develop a gap.
type nonceCache struct {
	mu       sync.Mutex
	current  uint64
	lastSync time.Time
}

// next reserves and returns the next nonce, re-reading the chain state when
// the cache is stale.
func (n *nonceCache) next(ctx context.Context, signer *KeyedSigner) (uint64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.lastSync.IsZero() || time.Since(n.lastSync) > nonceSyncInterval {
		pending, err := signer.backend.PendingNonceAt(ctx, signer.address)
		if err != nil {
			return 0, fmt.Errorf("failed to get pending nonce: %v", err)
		}
		if pending > n.current {
			n.current = pending
		}
		n.lastSync = time.Now()
	}

	nonce := n.current
	n.current++
	return nonce, nil
}

// release hands a nonce back after a failed broadcast. Only the most recently
// allocated nonce can be reused; anything older would reorder pending
// transactions.
func (n *nonceCache) release(nonce uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.current == nonce+1 {
		n.current = nonce
	}
}

// invalidate forces a chain re-read on the next allocation.
func (n *nonceCache) invalidate() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.lastSync = time.Time{}
}
