package domain

import "time"

// AgentStats are the lifetime counters the contract keeps for an agent.
type AgentStats struct {
	Address        string
	WalletAddress  string
	TotalGuesses   uint64
	BestGuesses    uint64
	Accuracy       uint64 // as stored on chain, informational
	LastGuessBlock uint64
	Deviation      uint64
}

// WinRate returns bestGuesses/totalGuesses as a percentage, or 0 for an agent
// with no recorded guesses.
func (a AgentStats) WinRate() float64 {
	if a.TotalGuesses == 0 {
		return 0
	}
	return float64(a.BestGuesses) / float64(a.TotalGuesses) * 100
}

// Prediction is an agent's guess for one round.
// Submitted=false means the contract has no record yet, not a guess of zero.
type Prediction struct {
	RoundID        uint64
	Agent          string
	PredictedPrice FixedPrice
	Timestamp      time.Time
	Submitted      bool
}

// ResolvedPrediction is a submitted prediction joined with its agent's stats.
type ResolvedPrediction struct {
	Stats      AgentStats
	Prediction Prediction
}
