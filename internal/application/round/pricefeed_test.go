package round

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPrice struct {
	price float64
	err   error
}

func (s stubPrice) LatestPrice(context.Context) (float64, error) { return s.price, s.err }

func TestPriceFeed_PollForwardsPrice(t *testing.T) {
	s := NewScheduler(Config{}, runnerFunc(nil), nil, nil)
	f := NewPriceFeed(stubPrice{price: 2999.5}, s, 0)

	p, err := f.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2999.5, p)
	assert.Equal(t, 2999.5, s.ReferencePrice())
}

func TestPriceFeed_PollErrorKeepsLastPrice(t *testing.T) {
	s := NewScheduler(Config{}, runnerFunc(nil), nil, nil)
	s.SetReferencePrice(1500)
	f := NewPriceFeed(stubPrice{err: errors.New("hermes down")}, s, 0)

	_, err := f.Poll(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 1500.0, s.ReferencePrice())
}
