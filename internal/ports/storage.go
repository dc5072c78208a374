package ports

import (
	"context"

	"github.com/alejandrodnm/roundwatch/internal/domain"
)

// SnapshotStore keeps a history of published snapshots.
type SnapshotStore interface {
	// SaveSnapshot persists the round and its ranked predictions.
	SaveSnapshot(ctx context.Context, snap domain.Snapshot) error

	// GetRound returns the last stored snapshot of a round, or domain.ErrNotFound.
	GetRound(ctx context.Context, roundID uint64) (domain.Snapshot, error)

	// Close closes the underlying database.
	Close() error
}
