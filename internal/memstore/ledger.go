package memstore

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/xenking/promo-engine/internal/domain/coupon"
)

var _ coupon.Ledger = (*Ledger)(nil)

// Ledger counts redemptions per (coupon code, user) pair. Each pair gets its
// own atomic counter, so concurrent increments for the same pair never lose
// updates and increments for different pairs never contend.
type Ledger struct {
	counters sync.Map // ledgerKey -> *atomic.Int64
}

type ledgerKey struct {
	code   string
	userID string
}

// NewLedger returns an empty Ledger.
func NewLedger() *Ledger {
	return &Ledger{}
}

// RecordUsage increments the counter for (code, userID), creating it at zero
// first if absent.
func (l *Ledger) RecordUsage(_ context.Context, code, userID string) error {
	c, _ := l.counters.LoadOrStore(ledgerKey{code, userID}, new(atomic.Int64))
	c.(*atomic.Int64).Add(1)
	return nil
}

// UsageCount returns the recorded redemption count, zero when no entry
// exists. It never fails.
func (l *Ledger) UsageCount(_ context.Context, code, userID string) (int64, error) {
	c, ok := l.counters.Load(ledgerKey{code, userID})
	if !ok {
		return 0, nil
	}
	return c.(*atomic.Int64).Load(), nil
}
