package domain

import "time"

// Round is one prediction competition cycle as recorded by the contract.
// ID 0 means no round has been started yet.
type Round struct {
	ID                 uint64    `json:"id"`
	ForBlockNumber     uint64    `json:"for_block_number"`
	StartTime          time.Time `json:"start_time"`
	SubmissionDeadline time.Time `json:"submission_deadline"`
	PredictionCount    uint64    `json:"prediction_count"`
	Finalized          bool      `json:"finalized"`

	// Only meaningful once Finalized is true.
	WinnerAgent string     `json:"winner_agent,omitempty"`
	ActualPrice FixedPrice `json:"actual_price,omitempty"`
}

// Phase is the lifecycle state of a round.
type Phase string

const (
	PhaseNoRound   Phase = "no-round"
	PhaseActive    Phase = "active"
	PhaseJudging   Phase = "judging"
	PhaseFinalized Phase = "finalized"
)

// Classify derives the round phase from its metadata and the wall clock.
// The finalized flag wins over any time-based check.
func Classify(r Round, now time.Time) Phase {
	switch {
	case r.ID == 0:
		return PhaseNoRound
	case r.Finalized:
		return PhaseFinalized
	case now.Before(r.SubmissionDeadline):
		return PhaseActive
	default:
		return PhaseJudging
	}
}

// TimeRemaining returns the time left before the submission deadline, floored at 0.
func TimeRemaining(r Round, now time.Time) time.Duration {
	d := r.SubmissionDeadline.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}
