package round

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/roundwatch/internal/domain"
	"github.com/alejandrodnm/roundwatch/internal/ports"
)

// Aggregator runs one full pass: round state → phase → participants →
// predictions → ranking. It holds no state between passes.
type Aggregator struct {
	ledger  ports.LedgerReader
	workers int
	now     func() time.Time
}

// NewAggregator builds an Aggregator. workers bounds the per-agent fan-out
// (0 = default).
func NewAggregator(ledger ports.LedgerReader, workers int) *Aggregator {
	return &Aggregator{ledger: ledger, workers: workers, now: time.Now}
}

// Run executes one pass against the ledger and returns a complete snapshot.
// reference is the live price used for ranking; values <= 0 mean "unknown"
// and produce an unranked list. An error means no snapshot should be published.
func (a *Aggregator) Run(ctx context.Context, reference float64) (domain.Snapshot, error) {
	r, err := ReadRound(ctx, a.ledger)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("round.Aggregator.Run: %w", err)
	}

	now := a.now()
	snap := domain.Snapshot{
		PassID:         uuid.New(),
		TakenAt:        now.UTC(),
		Phase:          domain.Classify(r, now),
		Round:          r,
		TimeRemaining:  domain.TimeRemaining(r, now),
		ReferencePrice: reference,
		PriceKnown:     reference > 0,
		Predictions:    []domain.LivePrediction{},
	}
	if snap.Phase == domain.PhaseNoRound {
		snap.TimeRemaining = 0
		return snap, nil
	}

	agents, err := ReadParticipants(ctx, a.ledger, r.ID)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("round.Aggregator.Run: %w", err)
	}

	resolved := resolvePredictions(ctx, a.ledger, r.ID, agents, a.workers)

	// A cancelled pass drops agents for the wrong reason; never publish it.
	if err := ctx.Err(); err != nil {
		return domain.Snapshot{}, fmt.Errorf("round.Aggregator.Run: %w", err)
	}

	if snap.PriceKnown {
		snap.Predictions = domain.Rank(reference, resolved)
	} else {
		snap.Predictions = domain.Unranked(resolved)
	}
	snap.Predictions = domain.WithSettledAccuracy(r, snap.Predictions)
	return snap, nil
}
