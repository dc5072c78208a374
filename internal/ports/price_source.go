package ports

import "context"

// PriceSource returns the latest reference price for a feed.
type PriceSource interface {
	LatestPrice(ctx context.Context) (float64, error)
}
