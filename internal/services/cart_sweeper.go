package services

import (
	"context"
	"time"

	applog "autospa/internal/log"
)

// CartSweeper periodically deletes cart lines that lost their owner key.
type CartSweeper struct {
	carts *CartService
	every time.Duration
}

func NewCartSweeper(carts *CartService, every time.Duration) *CartSweeper {
	if every <= 0 {
		every = time.Hour
	}
	return &CartSweeper{carts: carts, every: every}
}

// Run sweeps once immediately and then on every tick until ctx is done.
func (s *CartSweeper) Run(ctx context.Context) {
	t := time.NewTicker(s.every)
	defer t.Stop()
	for {
		s.SweepOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

func (s *CartSweeper) SweepOnce(ctx context.Context) int64 {
	n, err := s.carts.SweepOrphans(ctx)
	if err != nil {
		if ctx.Err() == nil {
			applog.Error(nil, "cart.sweep.failed", err, nil)
		}
		return 0
	}
	if n > 0 {
		applog.Info(nil, "cart.sweep", map[string]any{"deleted": n})
	}
	return n
}
