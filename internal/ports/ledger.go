package ports

import (
	"context"

	"github.com/alejandrodnm/roundwatch/internal/domain"
)

// LedgerReader issues read-only calls against the prediction contract.
// Every method may fail with an error wrapping domain.ErrReadFailure.
type LedgerReader interface {
	// CurrentRoundID returns the active round identifier; 0 means no round yet.
	CurrentRoundID(ctx context.Context) (uint64, error)

	// RoundByID returns the round record for id.
	RoundByID(ctx context.Context, id uint64) (domain.Round, error)

	// ParticipantsOf returns the agents recorded for the round, in contract order.
	ParticipantsOf(ctx context.Context, roundID uint64) ([]string, error)

	// AgentStats returns the lifetime counters of an agent.
	AgentStats(ctx context.Context, agent string) (domain.AgentStats, error)

	// PredictionOf returns the agent's prediction record for the round.
	PredictionOf(ctx context.Context, roundID uint64, agent string) (domain.Prediction, error)
}
