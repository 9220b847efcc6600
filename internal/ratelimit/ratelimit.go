package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/deusflow/autopost/internal/logger"
)

// Budget caps how many times an action may run during one invocation and
// spaces consecutive uses by a minimum interval.
type Budget struct {
	mu       sync.Mutex
	name     string
	max      int // 0 means unlimited
	used     int
	interval time.Duration
	last     time.Time
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewBudget creates a budget allowing max uses spaced by interval.
func NewBudget(name string, max int, interval time.Duration) *Budget {
	return &Budget{
		name:     name,
		max:      max,
		interval: interval,
		sleep:    sleepCtx,
	}
}

// Allow reports whether another use fits in the budget.
func (b *Budget) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.max > 0 && b.used >= b.max {
		logger.Debug("budget exhausted", "budget", b.name, "used", b.used, "max", b.max)
		return false
	}
	return true
}

// Use consumes one unit, first waiting out the spacing interval.
func (b *Budget) Use(ctx context.Context) error {
	b.mu.Lock()
	if b.max > 0 && b.used >= b.max {
		b.mu.Unlock()
		return fmt.Errorf("%s budget exceeded (%d/%d)", b.name, b.used, b.max)
	}
	var wait time.Duration
	if !b.last.IsZero() && b.interval > 0 {
		wait = b.interval - time.Since(b.last)
	}
	b.mu.Unlock()

	if wait > 0 {
		if err := b.sleep(ctx, wait); err != nil {
			return err
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.used++
	b.last = time.Now()
	logger.Debug("budget used", "budget", b.name, "used", b.used, "max", b.max)
	return nil
}

// Remaining returns the uses left, or -1 when unlimited.
func (b *Budget) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.max <= 0 {
		return -1
	}
	return b.max - b.used
}

// GetStats reports usage under <name>_used and <name>_limit.
func (b *Budget) GetStats() map[string]interface{} {
	b.mu.Lock()
	defer b.mu.Unlock()

	return map[string]interface{}{
		b.name + "_used":  b.used,
		b.name + "_limit": b.max,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
