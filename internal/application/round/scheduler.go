package round

// scheduler.go: drives the aggregation pipeline and owns the published snapshot.
//
// Policy:
//   - a pass runs at start, on every interval tick and on every reference price change
//   - passes never overlap: a tick that fires while a pass is in flight is skipped
//   - a price change during a pass marks it dirty; the running pass still
//     publishes and one fresh pass starts right after at the newest price,
//     so a pass slower than the price cadence is never starved
//   - publishing swaps one immutable *Snapshot; readers never see a mix of passes
//     and get their own copy of the prediction list
//   - a failed pass keeps the previous snapshot and is retried on the next tick

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alejandrodnm/roundwatch/internal/domain"
	"github.com/alejandrodnm/roundwatch/internal/ports"
)

const (
	// DefaultInterval matches the dashboard refresh cadence.
	DefaultInterval = 5 * time.Second

	subscriberBuffer = 4
	sinkTimeout      = 5 * time.Second
)

// PassRunner executes one pipeline pass at the given reference price.
type PassRunner interface {
	Run(ctx context.Context, reference float64) (domain.Snapshot, error)
}

// Config contains the scheduler settings.
type Config struct {
	Interval time.Duration
}

// Scheduler runs passes and publishes their snapshots.
type Scheduler struct {
	cfg      Config
	runner   PassRunner
	store    ports.SnapshotStore
	notifier ports.Notifier

	latest   atomic.Pointer[domain.Snapshot]
	refPrice atomic.Uint64 // math.Float64bits of the reference price
	trigger  chan struct{}

	subMu sync.Mutex
	subs  map[chan domain.Snapshot]struct{}

	failures atomic.Int64
}

// NewScheduler creates a Scheduler. store and notifier may be nil.
func NewScheduler(cfg Config, runner PassRunner, store ports.SnapshotStore, notifier ports.Notifier) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	return &Scheduler{
		cfg:      cfg,
		runner:   runner,
		store:    store,
		notifier: notifier,
		trigger:  make(chan struct{}, 1),
		subs:     make(map[chan domain.Snapshot]struct{}),
	}
}

// Latest returns the last published snapshot. ok is false until the first
// pass succeeds.
func (s *Scheduler) Latest() (domain.Snapshot, bool) {
	p := s.latest.Load()
	if p == nil {
		return domain.Snapshot{}, false
	}
	return p.Clone(), true
}

// ReferencePrice returns the price the next pass will rank against.
func (s *Scheduler) ReferencePrice() float64 {
	return math.Float64frombits(s.refPrice.Load())
}

// SetReferencePrice records a new live price and, if it changed, requests a
// fresh pass. Non-positive prices are ignored.
func (s *Scheduler) SetReferencePrice(p float64) {
	if p <= 0 || math.IsNaN(p) || math.IsInf(p, 0) {
		slog.Debug("round: ignoring invalid reference price", "price", p)
		return
	}
	old := s.refPrice.Swap(math.Float64bits(p))
	if math.Float64frombits(old) == p {
		return
	}
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// ConsecutiveFailures returns how many passes failed since the last success.
func (s *Scheduler) ConsecutiveFailures() int64 {
	return s.failures.Load()
}

// Subscribe returns a channel receiving every published snapshot and a
// function to cancel the subscription. Slow subscribers miss snapshots.
func (s *Scheduler) Subscribe() (<-chan domain.Snapshot, func()) {
	ch := make(chan domain.Snapshot, subscriberBuffer)
	s.subMu.Lock()
	s.subs[ch] = struct{}{}
	s.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, ch)
			s.subMu.Unlock()
			close(ch)
		})
	}
}

// RunOnce executes a single pass and publishes it on success.
func (s *Scheduler) RunOnce(ctx context.Context) (domain.Snapshot, error) {
	snap, err := s.runner.Run(ctx, s.ReferencePrice())
	if err != nil {
		s.failures.Add(1)
		return domain.Snapshot{}, err
	}
	s.publish(ctx, snap)
	return snap.Clone(), nil
}

type passResult struct {
	seq  uint64
	snap domain.Snapshot
	err  error
}

// Run drives passes until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	slog.Info("round scheduler starting", "interval", s.cfg.Interval)

	results := make(chan passResult)
	var (
		seq      uint64
		inFlight bool
		dirty    bool // price changed while a pass was in flight
	)

	start := func(reason string) {
		seq++
		inFlight = true
		dirty = false

		n, ref := seq, s.ReferencePrice()
		slog.Debug("round: pass started", "seq", n, "reason", reason, "reference", ref)
		go func() {
			snap, err := s.runner.Run(ctx, ref)
			select {
			case results <- passResult{seq: n, snap: snap, err: err}:
			case <-ctx.Done():
			}
		}()
	}

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	start("startup")
	for {
		select {
		case <-ctx.Done():
			slog.Info("round scheduler stopped")
			return nil

		case <-ticker.C:
			if inFlight {
				slog.Debug("round: tick skipped, pass in flight", "seq", seq)
				continue
			}
			start("tick")

		case <-s.trigger:
			if inFlight {
				dirty = true
				continue
			}
			start("price")

		case r := <-results:
			inFlight = false
			if r.err != nil {
				if errors.Is(r.err, context.Canceled) && ctx.Err() != nil {
					continue
				}
				n := s.failures.Add(1)
				slog.Error("round pass failed, keeping previous snapshot", "seq", r.seq, "failures", n, "err", r.err)
			} else {
				s.publish(ctx, r.snap)
			}
			if dirty {
				start("price")
			}
		}
	}
}

// publish swaps the published snapshot, fans it out and hands it to the sinks.
func (s *Scheduler) publish(ctx context.Context, snap domain.Snapshot) {
	p := &snap
	s.latest.Store(p)
	s.failures.Store(0)

	s.subMu.Lock()
	for ch := range s.subs {
		select {
		case ch <- snap.Clone():
		default:
		}
	}
	s.subMu.Unlock()

	slog.Info("round snapshot published",
		"round", snap.Round.ID,
		"phase", snap.Phase,
		"predictions", len(snap.Predictions),
		"reference", snap.ReferencePrice,
		"remaining", snap.TimeRemaining.Round(time.Second),
	)

	sinkCtx, cancel := context.WithTimeout(ctx, sinkTimeout)
	defer cancel()

	if s.store != nil && snap.Phase != domain.PhaseNoRound {
		if err := s.store.SaveSnapshot(sinkCtx, snap.Clone()); err != nil {
			slog.Warn("storage error", "err", err)
		}
	}
	if s.notifier != nil {
		if err := s.notifier.Notify(sinkCtx, snap.Clone()); err != nil {
			slog.Warn("notifier error", "err", err)
		}
	}
}
