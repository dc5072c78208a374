package ports

import (
	"context"

	"github.com/alejandrodnm/roundwatch/internal/domain"
)

// Notifier presents a published snapshot to the user.
type Notifier interface {
	Notify(ctx context.Context, snap domain.Snapshot) error
}
