package round

import (
	"context"
	"log/slog"
	"time"

	"github.com/alejandrodnm/roundwatch/internal/ports"
)

// PriceFeed polls a price source and pushes each price into the scheduler.
type PriceFeed struct {
	source   ports.PriceSource
	sched    *Scheduler
	interval time.Duration
}

// NewPriceFeed creates a feed polling source every interval.
func NewPriceFeed(source ports.PriceSource, sched *Scheduler, interval time.Duration) *PriceFeed {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &PriceFeed{source: source, sched: sched, interval: interval}
}

// Poll fetches one price and forwards it. It returns the fetched price.
func (f *PriceFeed) Poll(ctx context.Context) (float64, error) {
	p, err := f.source.LatestPrice(ctx)
	if err != nil {
		return 0, err
	}
	f.sched.SetReferencePrice(p)
	return p, nil
}

// Run polls until ctx is cancelled. Errors are logged; the last good price stays.
func (f *PriceFeed) Run(ctx context.Context) error {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		if p, err := f.Poll(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			slog.Warn("price feed error", "err", err)
		} else {
			slog.Debug("price feed update", "price", p)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
