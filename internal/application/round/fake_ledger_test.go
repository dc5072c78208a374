package round

import (
	"context"
	"fmt"
	"sync"

	"github.com/alejandrodnm/roundwatch/internal/domain"
)

// fakeLedger is an in-memory ports.LedgerReader that counts calls.
type fakeLedger struct {
	mu sync.Mutex

	currentID    uint64
	round        domain.Round
	participants []string
	stats        map[string]domain.AgentStats
	predictions  map[string]domain.Prediction

	currentErr      error
	roundErr        error
	participantsErr error
	statsErr        map[string]error
	predErr         map[string]error

	calls map[string]int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		stats:       map[string]domain.AgentStats{},
		predictions: map[string]domain.Prediction{},
		statsErr:    map[string]error{},
		predErr:     map[string]error{},
		calls:       map[string]int{},
	}
}

func (f *fakeLedger) count(method string) {
	f.mu.Lock()
	f.calls[method]++
	f.mu.Unlock()
}

func (f *fakeLedger) callCount(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *fakeLedger) addAgent(agent string, price float64, submitted bool, total, best uint64) {
	f.participants = append(f.participants, agent)
	f.stats[agent] = domain.AgentStats{Address: agent, WalletAddress: "0xw" + agent, TotalGuesses: total, BestGuesses: best}
	f.predictions[agent] = domain.Prediction{
		Agent:          agent,
		PredictedPrice: domain.FixedPriceFromFloat(price),
		Submitted:      submitted,
	}
}

func readFailure(msg string) error {
	return fmt.Errorf("%w: %s", domain.ErrReadFailure, msg)
}

func (f *fakeLedger) CurrentRoundID(ctx context.Context) (uint64, error) {
	f.count("CurrentRoundID")
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return f.currentID, f.currentErr
}

func (f *fakeLedger) RoundByID(ctx context.Context, id uint64) (domain.Round, error) {
	f.count("RoundByID")
	if f.roundErr != nil {
		return domain.Round{}, f.roundErr
	}
	r := f.round
	r.ID = id
	return r, nil
}

func (f *fakeLedger) ParticipantsOf(ctx context.Context, roundID uint64) ([]string, error) {
	f.count("ParticipantsOf")
	if f.participantsErr != nil {
		return nil, f.participantsErr
	}
	return append([]string(nil), f.participants...), nil
}

func (f *fakeLedger) AgentStats(ctx context.Context, agent string) (domain.AgentStats, error) {
	f.count("AgentStats")
	if err := f.statsErr[agent]; err != nil {
		return domain.AgentStats{}, err
	}
	return f.stats[agent], nil
}

func (f *fakeLedger) PredictionOf(ctx context.Context, roundID uint64, agent string) (domain.Prediction, error) {
	f.count("PredictionOf")
	if err := ctx.Err(); err != nil {
		return domain.Prediction{}, err
	}
	if err := f.predErr[agent]; err != nil {
		return domain.Prediction{}, err
	}
	p := f.predictions[agent]
	p.RoundID = roundID
	return p, nil
}
