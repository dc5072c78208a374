package round

// resolver.go: worker pool that joins each participant's prediction with its
// stats. Agents are independent: one failed or unsubmitted agent is dropped
// and never aborts the batch. The join waits for every agent to settle.

import (
	"context"
	"log/slog"
	"sync"

	"github.com/alejandrodnm/roundwatch/internal/domain"
	"github.com/alejandrodnm/roundwatch/internal/ports"
)

const defaultWorkers = 8

// resolvePredictions returns one record per agent whose reads both succeeded
// and whose prediction is submitted. Output order is not guaranteed.
func resolvePredictions(
	ctx context.Context,
	ledger ports.LedgerReader,
	roundID uint64,
	agents []string,
	workers int,
) []domain.ResolvedPrediction {
	if len(agents) == 0 {
		return []domain.ResolvedPrediction{}
	}
	if workers <= 0 {
		workers = defaultWorkers
	}
	if workers > len(agents) {
		workers = len(agents)
	}

	workCh := make(chan string, len(agents))
	resultCh := make(chan domain.ResolvedPrediction, len(agents))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for agent := range workCh {
				rec, ok := resolveAgent(ctx, ledger, roundID, agent)
				if ok {
					resultCh <- rec
				}
			}
		}()
	}

	for _, agent := range agents {
		workCh <- agent
	}
	close(workCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	out := make([]domain.ResolvedPrediction, 0, len(agents))
	for rec := range resultCh {
		out = append(out, rec)
	}

	slog.Debug("round: predictions resolved",
		"round", roundID,
		"participants", len(agents),
		"resolved", len(out),
		"workers", workers,
	)
	return out
}

func resolveAgent(ctx context.Context, ledger ports.LedgerReader, roundID uint64, agent string) (domain.ResolvedPrediction, bool) {
	pred, err := ledger.PredictionOf(ctx, roundID, agent)
	if err != nil {
		slog.Debug("round: prediction read failed, dropping agent", "round", roundID, "agent", agent, "err", err)
		return domain.ResolvedPrediction{}, false
	}
	if !pred.Submitted {
		slog.Debug("round: prediction not submitted, dropping agent", "round", roundID, "agent", agent)
		return domain.ResolvedPrediction{}, false
	}

	stats, err := ledger.AgentStats(ctx, agent)
	if err != nil {
		slog.Debug("round: agent stats read failed, dropping agent", "round", roundID, "agent", agent, "err", err)
		return domain.ResolvedPrediction{}, false
	}

	pred.Agent = agent
	pred.RoundID = roundID
	return domain.ResolvedPrediction{Stats: stats, Prediction: pred}, true
}
