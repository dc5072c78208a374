package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/roundwatch/internal/adapters/storage"
	"github.com/alejandrodnm/roundwatch/internal/domain"
)

func makeSnapshot(roundID uint64, ref float64, agents ...string) domain.Snapshot {
	deadline := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	snap := domain.Snapshot{
		PassID:  uuid.New(),
		TakenAt: deadline.Add(-time.Minute),
		Phase:   domain.PhaseActive,
		Round: domain.Round{
			ID:                 roundID,
			ForBlockNumber:     1200,
			StartTime:          deadline.Add(-time.Hour),
			SubmissionDeadline: deadline,
			PredictionCount:    uint64(len(agents)),
		},
		TimeRemaining:  time.Minute,
		ReferencePrice: ref,
		PriceKnown:     ref > 0,
	}
	for i, a := range agents {
		snap.Predictions = append(snap.Predictions, domain.LivePrediction{
			Agent:          a,
			AgentWallet:    "0xwallet-" + a,
			PredictedPrice: domain.FixedPrice(300000000000 + int64(i)*100000000),
			Timestamp:      deadline.Add(-30 * time.Minute),
			Accuracy:       99.5 - float64(i),
			TotalGuesses:   10,
			BestGuesses:    uint64(5 - i),
			WinRate:        float64(5-i) * 10,
		})
	}
	return snap
}

func TestSQLiteStorage_SaveAndGetRound(t *testing.T) {
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer db.Close()

	snap := makeSnapshot(7, 3000, "alpha", "beta")
	require.NoError(t, db.SaveSnapshot(context.Background(), snap))

	got, err := db.GetRound(context.Background(), 7)
	require.NoError(t, err)

	assert.Equal(t, snap.PassID, got.PassID)
	assert.Equal(t, domain.PhaseActive, got.Phase)
	assert.Equal(t, uint64(1200), got.Round.ForBlockNumber)
	assert.True(t, snap.Round.SubmissionDeadline.Equal(got.Round.SubmissionDeadline))
	assert.InDelta(t, 3000, got.ReferencePrice, 0.001)
	assert.True(t, got.PriceKnown)

	// rank order preserved
	require.Len(t, got.Predictions, 2)
	assert.Equal(t, "alpha", got.Predictions[0].Agent)
	assert.Equal(t, "beta", got.Predictions[1].Agent)
	assert.Equal(t, "0xwallet-beta", got.Predictions[1].AgentWallet)
	assert.Equal(t, domain.FixedPrice(300100000000), got.Predictions[1].PredictedPrice)
	assert.InDelta(t, 98.5, got.Predictions[1].Accuracy, 0.001)
	assert.Nil(t, got.Predictions[0].SettledAccuracy)
}

func TestSQLiteStorage_GetRound_NotFound(t *testing.T) {
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer db.Close()

	_, err = db.GetRound(context.Background(), 42)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSQLiteStorage_SkipsNoRound(t *testing.T) {
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer db.Close()

	err = db.SaveSnapshot(context.Background(), domain.Snapshot{Phase: domain.PhaseNoRound})
	require.NoError(t, err)

	_, err = db.GetRound(context.Background(), 0)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSQLiteStorage_UnchangedPassNotRewritten(t *testing.T) {
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	first := makeSnapshot(3, 3000, "alpha", "beta")
	require.NoError(t, db.SaveSnapshot(ctx, first))

	// same phase, same agents, same leader, price moved < 0.1%
	second := makeSnapshot(3, 3001, "alpha", "beta")
	require.NoError(t, db.SaveSnapshot(ctx, second))

	got, err := db.GetRound(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, first.PassID, got.PassID)
}

func TestSQLiteStorage_ChangedPassRewritten(t *testing.T) {
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	require.NoError(t, db.SaveSnapshot(ctx, makeSnapshot(3, 3000, "alpha")))

	judging := makeSnapshot(3, 3000, "alpha", "beta", "gamma")
	judging.Phase = domain.PhaseJudging
	require.NoError(t, db.SaveSnapshot(ctx, judging))

	got, err := db.GetRound(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, judging.PassID, got.PassID)
	assert.Equal(t, domain.PhaseJudging, got.Phase)
	assert.Len(t, got.Predictions, 3)
}

func TestSQLiteStorage_FinalizedRound(t *testing.T) {
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer db.Close()

	snap := makeSnapshot(9, 3000, "alpha", "beta")
	snap.Phase = domain.PhaseFinalized
	snap.Round.Finalized = true
	snap.Round.WinnerAgent = "alpha"
	snap.Round.ActualPrice = domain.FixedPrice(300050000000)
	settled := 99.98
	snap.Predictions[0].SettledAccuracy = &settled
	snap.Predictions[0].Winner = true

	require.NoError(t, db.SaveSnapshot(context.Background(), snap))

	got, err := db.GetRound(context.Background(), 9)
	require.NoError(t, err)
	assert.True(t, got.Round.Finalized)
	assert.Equal(t, "alpha", got.Round.WinnerAgent)
	assert.Equal(t, domain.FixedPrice(300050000000), got.Round.ActualPrice)
	require.NotNil(t, got.Predictions[0].SettledAccuracy)
	assert.InDelta(t, 99.98, *got.Predictions[0].SettledAccuracy, 0.0001)
	assert.True(t, got.Predictions[0].Winner)
	assert.False(t, got.Predictions[1].Winner)
}
