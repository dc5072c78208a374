package round

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/roundwatch/internal/domain"
)

var testNow = time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)

func newTestAggregator(l *fakeLedger) *Aggregator {
	a := NewAggregator(l, 4)
	a.now = func() time.Time { return testNow }
	return a
}

func TestAggregator_NoRoundShortCircuits(t *testing.T) {
	l := newFakeLedger()
	l.currentID = 0
	l.addAgent("a", 3000, true, 1, 1)

	snap, err := newTestAggregator(l).Run(context.Background(), 3000)
	require.NoError(t, err)

	assert.Equal(t, domain.PhaseNoRound, snap.Phase)
	assert.Empty(t, snap.Predictions)
	assert.Zero(t, snap.TimeRemaining)
	assert.Equal(t, 1, l.callCount("CurrentRoundID"))
	assert.Zero(t, l.callCount("RoundByID"))
	assert.Zero(t, l.callCount("ParticipantsOf"))
	assert.Zero(t, l.callCount("AgentStats"))
	assert.Zero(t, l.callCount("PredictionOf"))
}

func TestAggregator_JudgingRoundWithOneFailedAgent(t *testing.T) {
	l := newFakeLedger()
	l.currentID = 7
	l.round = domain.Round{SubmissionDeadline: testNow.Add(-time.Minute), PredictionCount: 3}
	l.addAgent("A", 2990, true, 10, 5)
	l.addAgent("B", 3000, true, 4, 4)
	l.addAgent("C", 3100, true, 0, 0)
	l.predErr["B"] = readFailure("rpc timeout")

	snap, err := newTestAggregator(l).Run(context.Background(), 3000.00)
	require.NoError(t, err)

	assert.Equal(t, domain.PhaseJudging, snap.Phase)
	assert.Equal(t, uint64(7), snap.Round.ID)
	assert.True(t, snap.PriceKnown)
	require.Len(t, snap.Predictions, 2)
	assert.Equal(t, "A", snap.Predictions[0].Agent)
	assert.Equal(t, "C", snap.Predictions[1].Agent)
	assert.Greater(t, snap.Predictions[0].Accuracy, snap.Predictions[1].Accuracy)
	assert.InDelta(t, 50.0, snap.Predictions[0].WinRate, 1e-9)
	assert.Equal(t, 0.0, snap.Predictions[1].WinRate)
	for _, p := range snap.Predictions {
		assert.NotEqual(t, "B", p.Agent)
	}
}

func TestAggregator_ActiveRoundTimeRemaining(t *testing.T) {
	l := newFakeLedger()
	l.currentID = 2
	l.round = domain.Round{SubmissionDeadline: testNow.Add(90 * time.Second)}

	snap, err := newTestAggregator(l).Run(context.Background(), 3000)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseActive, snap.Phase)
	assert.Equal(t, 90*time.Second, snap.TimeRemaining)
	assert.NotNil(t, snap.Predictions)
	assert.Empty(t, snap.Predictions)
}

func TestAggregator_FinalizedRoundCarriesSettlement(t *testing.T) {
	l := newFakeLedger()
	l.currentID = 4
	l.round = domain.Round{
		SubmissionDeadline: testNow.Add(time.Hour),
		Finalized:          true,
		WinnerAgent:        "A",
		ActualPrice:        domain.FixedPriceFromFloat(3000),
	}
	l.addAgent("A", 3000, true, 1, 1)

	snap, err := newTestAggregator(l).Run(context.Background(), 3100)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseFinalized, snap.Phase)
	require.Len(t, snap.Predictions, 1)
	require.NotNil(t, snap.Predictions[0].SettledAccuracy)
	assert.InDelta(t, 100.0, *snap.Predictions[0].SettledAccuracy, 1e-9)
	assert.True(t, snap.Predictions[0].Winner)
}

func TestAggregator_RoundReadFailure(t *testing.T) {
	l := newFakeLedger()
	l.currentID = 7
	l.roundErr = readFailure("bad arity")

	_, err := newTestAggregator(l).Run(context.Background(), 3000)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrReadFailure)
	assert.Zero(t, l.callCount("ParticipantsOf"))
}

func TestAggregator_CurrentIDFailureIsNotNoRound(t *testing.T) {
	l := newFakeLedger()
	l.currentErr = readFailure("connection reset")

	snap, err := newTestAggregator(l).Run(context.Background(), 3000)
	require.Error(t, err)
	assert.NotEqual(t, domain.PhaseNoRound, snap.Phase)
}

func TestAggregator_ParticipantsFailure(t *testing.T) {
	l := newFakeLedger()
	l.currentID = 7
	l.round = domain.Round{SubmissionDeadline: testNow.Add(time.Minute)}
	l.participantsErr = readFailure("decode")

	_, err := newTestAggregator(l).Run(context.Background(), 3000)
	assert.ErrorIs(t, err, domain.ErrReadFailure)
	assert.Zero(t, l.callCount("PredictionOf"))
}

func TestAggregator_WithoutReferencePrice(t *testing.T) {
	l := newFakeLedger()
	l.currentID = 1
	l.round = domain.Round{SubmissionDeadline: testNow.Add(time.Minute)}
	l.addAgent("A", 10, true, 0, 0)

	snap, err := newTestAggregator(l).Run(context.Background(), 0)
	require.NoError(t, err)
	assert.False(t, snap.PriceKnown)
	require.Len(t, snap.Predictions, 1)
	assert.Zero(t, snap.Predictions[0].Accuracy)
}

func TestAggregator_Idempotent(t *testing.T) {
	l := newFakeLedger()
	l.currentID = 9
	l.round = domain.Round{SubmissionDeadline: testNow.Add(-time.Second), ForBlockNumber: 42}
	l.addAgent("A", 2900, true, 3, 1)
	l.addAgent("B", 3050, true, 6, 2)
	l.addAgent("C", 3001, true, 0, 0)
	l.addAgent("D", 3200, false, 1, 0)

	agg := newTestAggregator(l)
	first, err := agg.Run(context.Background(), 3000)
	require.NoError(t, err)
	second, err := agg.Run(context.Background(), 3000)
	require.NoError(t, err)

	assert.Equal(t, first.Phase, second.Phase)
	assert.Equal(t, first.Round, second.Round)
	assert.Equal(t, first.Predictions, second.Predictions)
	assert.NotEqual(t, first.PassID, second.PassID)
}

func TestAggregator_CancelledPassReturnsError(t *testing.T) {
	l := newFakeLedger()
	l.currentID = 1
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestAggregator(l).Run(ctx, 3000)
	assert.ErrorIs(t, err, context.Canceled)
}
