package domain

import (
	"math"
	"sort"
)

// Accuracy scores a predicted price against a reference price as a percentage.
// A prediction off by more than 100% of the reference scores below zero; the
// value is not clamped. reference must be > 0.
func Accuracy(predicted FixedPrice, reference float64) float64 {
	return 100 - math.Abs(predicted.Float()-reference)/reference*100
}

// Rank computes live accuracy and win rate for every resolved prediction and
// orders them by accuracy, best first. Equal accuracies keep their input order.
// reference must be > 0; callers guard this before ranking.
func Rank(reference float64, resolved []ResolvedPrediction) []LivePrediction {
	out := make([]LivePrediction, 0, len(resolved))
	for _, r := range resolved {
		lp := newLivePrediction(r)
		lp.Accuracy = Accuracy(r.Prediction.PredictedPrice, reference)
		out = append(out, lp)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Accuracy > out[j].Accuracy
	})
	return out
}

// Unranked builds the prediction list when no reference price is available yet.
// Accuracy stays 0 and resolver order is kept.
func Unranked(resolved []ResolvedPrediction) []LivePrediction {
	out := make([]LivePrediction, 0, len(resolved))
	for _, r := range resolved {
		out = append(out, newLivePrediction(r))
	}
	return out
}

// WithSettledAccuracy fills SettledAccuracy against the price the round was
// settled at. No-op unless the round is finalized with a positive actual price.
func WithSettledAccuracy(round Round, preds []LivePrediction) []LivePrediction {
	if !round.Finalized || round.ActualPrice <= 0 {
		return preds
	}
	actual := round.ActualPrice.Float()
	for i := range preds {
		acc := Accuracy(preds[i].PredictedPrice, actual)
		preds[i].SettledAccuracy = &acc
		preds[i].Winner = preds[i].Agent == round.WinnerAgent
	}
	return preds
}

func newLivePrediction(r ResolvedPrediction) LivePrediction {
	return LivePrediction{
		Agent:          r.Prediction.Agent,
		AgentWallet:    r.Stats.WalletAddress,
		PredictedPrice: r.Prediction.PredictedPrice,
		Timestamp:      r.Prediction.Timestamp,
		TotalGuesses:   r.Stats.TotalGuesses,
		BestGuesses:    r.Stats.BestGuesses,
		WinRate:        r.Stats.WinRate(),
	}
}

// AccuracyBand buckets an accuracy for display.
type AccuracyBand string

const (
	BandHigh   AccuracyBand = "high"
	BandMedium AccuracyBand = "medium"
	BandLow    AccuracyBand = "low"
)

// DisplayAccuracy clamps an accuracy into [0, 100] for rendering.
// The snapshot itself always carries the unclamped value.
func DisplayAccuracy(a float64) float64 {
	return math.Max(0, math.Min(100, a))
}

// Band returns the display band for an accuracy: high above 99, medium above 95.
func Band(a float64) AccuracyBand {
	a = DisplayAccuracy(a)
	switch {
	case a > 99:
		return BandHigh
	case a > 95:
		return BandMedium
	default:
		return BandLow
	}
}
