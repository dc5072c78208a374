package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var now = time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)

func TestClassify_ZeroIDIsNoRound(t *testing.T) {
	// Other fields must not matter.
	rounds := []Round{
		{ID: 0},
		{ID: 0, Finalized: true},
		{ID: 0, SubmissionDeadline: now.Add(time.Hour)},
		{ID: 0, SubmissionDeadline: now.Add(-time.Hour), PredictionCount: 4},
	}
	for _, r := range rounds {
		assert.Equal(t, PhaseNoRound, Classify(r, now))
	}
}

func TestClassify_FinalizedWinsOverDeadline(t *testing.T) {
	r := Round{ID: 3, Finalized: true, SubmissionDeadline: now.Add(time.Hour)}
	assert.Equal(t, PhaseFinalized, Classify(r, now))

	r.SubmissionDeadline = now.Add(-time.Hour)
	assert.Equal(t, PhaseFinalized, Classify(r, now))
}

func TestClassify_ActiveBeforeDeadline(t *testing.T) {
	r := Round{ID: 1, SubmissionDeadline: now.Add(time.Second)}
	assert.Equal(t, PhaseActive, Classify(r, now))
}

func TestClassify_JudgingAtAndAfterDeadline(t *testing.T) {
	r := Round{ID: 1, SubmissionDeadline: now}
	assert.Equal(t, PhaseJudging, Classify(r, now))

	r.SubmissionDeadline = now.Add(-time.Minute)
	assert.Equal(t, PhaseJudging, Classify(r, now))
}

func TestTimeRemaining_NeverNegative(t *testing.T) {
	r := Round{ID: 1, SubmissionDeadline: now}
	for _, offset := range []time.Duration{-time.Hour, -time.Second, 0, time.Second, time.Hour} {
		got := TimeRemaining(r, now.Add(offset))
		assert.GreaterOrEqual(t, got, time.Duration(0))
		if offset < 0 {
			assert.Equal(t, -offset, got)
		} else {
			assert.Zero(t, got)
		}
	}
}
