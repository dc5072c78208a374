package round

import (
	"context"
	"fmt"

	"github.com/alejandrodnm/roundwatch/internal/domain"
	"github.com/alejandrodnm/roundwatch/internal/ports"
)

// ReadRound fetches the current round id and, when non-zero, its record.
// An id of 0 yields a zero Round and no further calls.
func ReadRound(ctx context.Context, ledger ports.LedgerReader) (domain.Round, error) {
	id, err := ledger.CurrentRoundID(ctx)
	if err != nil {
		return domain.Round{}, fmt.Errorf("round.ReadRound: current id: %w", err)
	}
	if id == 0 {
		return domain.Round{}, nil
	}

	r, err := ledger.RoundByID(ctx, id)
	if err != nil {
		return domain.Round{}, fmt.Errorf("round.ReadRound: round %d: %w", id, err)
	}
	r.ID = id
	return r, nil
}

// ReadParticipants returns the agents of a round. An empty list is a valid
// answer and is distinct from an error.
func ReadParticipants(ctx context.Context, ledger ports.LedgerReader, roundID uint64) ([]string, error) {
	agents, err := ledger.ParticipantsOf(ctx, roundID)
	if err != nil {
		return nil, fmt.Errorf("round.ReadParticipants: round %d: %w", roundID, err)
	}
	if agents == nil {
		agents = []string{}
	}
	return agents, nil
}
