package domain

import (
	"time"

	"github.com/google/uuid"
)

// LivePrediction is a resolved prediction with its live score.
type LivePrediction struct {
	Agent          string     `json:"agent"`
	AgentWallet    string     `json:"agent_wallet"`
	PredictedPrice FixedPrice `json:"predicted_price"`
	Timestamp      time.Time  `json:"timestamp"`
	Accuracy       float64    `json:"accuracy"`
	TotalGuesses   uint64     `json:"total_guesses"`
	BestGuesses    uint64     `json:"best_guesses"`
	WinRate        float64    `json:"win_rate"`

	// Set only for finalized rounds.
	SettledAccuracy *float64 `json:"settled_accuracy,omitempty"`
	Winner          bool     `json:"winner,omitempty"`
}

// Snapshot is one consistent view of the current round. A snapshot is never
// modified after it is published; the next pass replaces it as a whole.
type Snapshot struct {
	PassID         uuid.UUID        `json:"pass_id"`
	TakenAt        time.Time        `json:"taken_at"`
	Phase          Phase            `json:"phase"`
	Round          Round            `json:"round"`
	TimeRemaining  time.Duration    `json:"time_remaining"`
	ReferencePrice float64          `json:"reference_price"`
	PriceKnown     bool             `json:"price_known"`
	Predictions    []LivePrediction `json:"predictions"`
}

// Clone returns a copy that shares no memory with s. Published snapshots are
// handed out as clones so one consumer cannot change what another sees.
func (s Snapshot) Clone() Snapshot {
	if s.Predictions == nil {
		return s
	}
	preds := make([]LivePrediction, len(s.Predictions))
	copy(preds, s.Predictions)
	for i := range preds {
		if v := preds[i].SettledAccuracy; v != nil {
			settled := *v
			preds[i].SettledAccuracy = &settled
		}
	}
	s.Predictions = preds
	return s
}

// Leader returns the best ranked prediction, if any.
func (s Snapshot) Leader() (LivePrediction, bool) {
	if len(s.Predictions) == 0 {
		return LivePrediction{}, false
	}
	return s.Predictions[0], true
}
