package storage

// sqlite.go: history of published round snapshots.
//
// Layout:
//   - `rounds`: one row per round (UPSERT), with the phase and reference price
//     of the last stored pass.
//   - `predictions`: one row per (round, agent), rewritten with the pass's rank
//     and accuracy.
//   - In-memory cache: a pass is only written when the round phase, the set of
//     predictions, the leader or the reference price (> 0.1%) changed. With a
//     5 s poll most passes are identical and end there.
//   - Rounds older than the retention window are pruned on open.

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/alejandrodnm/roundwatch/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS rounds (
    round_id         INTEGER PRIMARY KEY,
    for_block        INTEGER NOT NULL DEFAULT 0,
    start_time       INTEGER NOT NULL DEFAULT 0,
    deadline         INTEGER NOT NULL DEFAULT 0,
    prediction_count INTEGER NOT NULL DEFAULT 0,
    finalized        INTEGER NOT NULL DEFAULT 0,
    winner_agent     TEXT    NOT NULL DEFAULT '',
    actual_price     INTEGER NOT NULL DEFAULT 0,
    phase            TEXT    NOT NULL,
    reference_price  REAL    NOT NULL DEFAULT 0,
    price_known      INTEGER NOT NULL DEFAULT 0,
    pass_id          TEXT    NOT NULL,
    taken_at         INTEGER NOT NULL,
    first_seen       INTEGER NOT NULL,
    last_seen        INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS predictions (
    round_id         INTEGER NOT NULL,
    agent            TEXT    NOT NULL,
    agent_wallet     TEXT    NOT NULL DEFAULT '',
    predicted_price  INTEGER NOT NULL,
    submitted_at     INTEGER NOT NULL DEFAULT 0,
    accuracy         REAL    NOT NULL DEFAULT 0,
    settled_accuracy REAL,
    winner           INTEGER NOT NULL DEFAULT 0,
    win_rate         REAL    NOT NULL DEFAULT 0,
    total_guesses    INTEGER NOT NULL DEFAULT 0,
    best_guesses     INTEGER NOT NULL DEFAULT 0,
    rank             INTEGER NOT NULL,
    PRIMARY KEY (round_id, agent)
);

CREATE INDEX IF NOT EXISTS idx_rounds_last     ON rounds(last_seen DESC);
CREATE INDEX IF NOT EXISTS idx_predictions_rnk ON predictions(round_id, rank);
`

const (
	retentionWindow = 30 * 24 * time.Hour
	refChangePct    = 0.001
)

// cachedState is what was last written for a round.
type cachedState struct {
	phase     domain.Phase
	count     int
	leader    string
	reference float64
}

// SQLiteStorage implements ports.SnapshotStore on SQLite (pure Go, no CGo).
type SQLiteStorage struct {
	db    *sql.DB
	cache map[uint64]cachedState
	mu    sync.Mutex
}

// NewSQLiteStorage opens (or creates) the database at path, applies the
// schema and prunes rounds past retention.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStorage: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite is single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: apply schema: %w", err)
	}

	s := &SQLiteStorage{
		db:    db,
		cache: make(map[uint64]cachedState),
	}
	s.pruneOld(context.Background())
	return s, nil
}

// SaveSnapshot upserts the round and replaces its prediction rows when the
// pass differs meaningfully from the last one written.
func (s *SQLiteStorage) SaveSnapshot(ctx context.Context, snap domain.Snapshot) error {
	if snap.Round.ID == 0 {
		return nil
	}
	if !s.changed(snap) {
		return nil
	}

	now := time.Now().UTC().Unix()
	r := snap.Round

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.SaveSnapshot: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO rounds
			(round_id, for_block, start_time, deadline, prediction_count, finalized,
			 winner_agent, actual_price, phase, reference_price, price_known,
			 pass_id, taken_at, first_seen, last_seen)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(round_id) DO UPDATE SET
			for_block        = excluded.for_block,
			start_time       = excluded.start_time,
			deadline         = excluded.deadline,
			prediction_count = excluded.prediction_count,
			finalized        = excluded.finalized,
			winner_agent     = excluded.winner_agent,
			actual_price     = excluded.actual_price,
			phase            = excluded.phase,
			reference_price  = excluded.reference_price,
			price_known      = excluded.price_known,
			pass_id          = excluded.pass_id,
			taken_at         = excluded.taken_at,
			last_seen        = excluded.last_seen
	`,
		int64(r.ID),
		int64(r.ForBlockNumber),
		unix(r.StartTime),
		unix(r.SubmissionDeadline),
		int64(r.PredictionCount),
		boolInt(r.Finalized),
		r.WinnerAgent,
		int64(r.ActualPrice),
		string(snap.Phase),
		snap.ReferencePrice,
		boolInt(snap.PriceKnown),
		snap.PassID.String(),
		unix(snap.TakenAt),
		now, // first_seen: kept on conflict
		now,
	); err != nil {
		return fmt.Errorf("storage.SaveSnapshot: upsert round %d: %w", r.ID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM predictions WHERE round_id = ?`, int64(r.ID)); err != nil {
		return fmt.Errorf("storage.SaveSnapshot: clear predictions: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO predictions
			(round_id, agent, agent_wallet, predicted_price, submitted_at, accuracy,
			 settled_accuracy, winner, win_rate, total_guesses, best_guesses, rank)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("storage.SaveSnapshot: prepare: %w", err)
	}
	defer stmt.Close()

	for i, p := range snap.Predictions {
		var settled sql.NullFloat64
		if p.SettledAccuracy != nil {
			settled = sql.NullFloat64{Float64: *p.SettledAccuracy, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx,
			int64(r.ID),
			p.Agent,
			p.AgentWallet,
			int64(p.PredictedPrice),
			unix(p.Timestamp),
			p.Accuracy,
			settled,
			boolInt(p.Winner),
			p.WinRate,
			int64(p.TotalGuesses),
			int64(p.BestGuesses),
			i+1,
		); err != nil {
			return fmt.Errorf("storage.SaveSnapshot: insert prediction %s: %w", p.Agent, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.SaveSnapshot: commit: %w", err)
	}

	s.remember(snap)
	return nil
}

// GetRound rebuilds the last stored snapshot of a round, predictions in rank order.
func (s *SQLiteStorage) GetRound(ctx context.Context, roundID uint64) (domain.Snapshot, error) {
	var (
		snap                     domain.Snapshot
		forBlock, count, actual  int64
		start, deadline, takenAt int64
		finalized, priceKnown    int
		phase, passID            string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT for_block, start_time, deadline, prediction_count, finalized,
		       winner_agent, actual_price, phase, reference_price, price_known,
		       pass_id, taken_at
		FROM rounds WHERE round_id = ?
	`, int64(roundID)).Scan(
		&forBlock, &start, &deadline, &count, &finalized,
		&snap.Round.WinnerAgent, &actual, &phase, &snap.ReferencePrice, &priceKnown,
		&passID, &takenAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Snapshot{}, fmt.Errorf("storage.GetRound: round %d: %w", roundID, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("storage.GetRound: query round %d: %w", roundID, err)
	}

	snap.Round.ID = roundID
	snap.Round.ForBlockNumber = uint64(forBlock)
	snap.Round.StartTime = fromUnix(start)
	snap.Round.SubmissionDeadline = fromUnix(deadline)
	snap.Round.PredictionCount = uint64(count)
	snap.Round.Finalized = finalized == 1
	snap.Round.ActualPrice = domain.FixedPrice(actual)
	snap.Phase = domain.Phase(phase)
	snap.PriceKnown = priceKnown == 1
	snap.TakenAt = fromUnix(takenAt)
	if snap.PassID, err = uuid.Parse(passID); err != nil {
		return domain.Snapshot{}, fmt.Errorf("storage.GetRound: parse pass id %q: %w", passID, err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT agent, agent_wallet, predicted_price, submitted_at, accuracy,
		       settled_accuracy, winner, win_rate, total_guesses, best_guesses
		FROM predictions
		WHERE round_id = ?
		ORDER BY rank ASC
	`, int64(roundID))
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("storage.GetRound: query predictions: %w", err)
	}
	defer rows.Close()

	snap.Predictions = []domain.LivePrediction{}
	for rows.Next() {
		var (
			p                domain.LivePrediction
			price, submitted int64
			total, best      int64
			winner           int
			settled          sql.NullFloat64
		)
		if err := rows.Scan(
			&p.Agent, &p.AgentWallet, &price, &submitted, &p.Accuracy,
			&settled, &winner, &p.WinRate, &total, &best,
		); err != nil {
			return domain.Snapshot{}, fmt.Errorf("storage.GetRound: scan row: %w", err)
		}
		p.PredictedPrice = domain.FixedPrice(price)
		p.Timestamp = fromUnix(submitted)
		p.TotalGuesses = uint64(total)
		p.BestGuesses = uint64(best)
		p.Winner = winner == 1
		if settled.Valid {
			v := settled.Float64
			p.SettledAccuracy = &v
		}
		snap.Predictions = append(snap.Predictions, p)
	}
	return snap, rows.Err()
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// --- helpers ---

// changed reports whether snap differs from the last pass written for its round.
func (s *SQLiteStorage) changed(snap domain.Snapshot) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.cache[snap.Round.ID]
	if !ok {
		return true
	}
	next := stateOf(snap)
	return prev.phase != next.phase ||
		prev.count != next.count ||
		prev.leader != next.leader ||
		relChange(prev.reference, next.reference) >= refChangePct
}

func (s *SQLiteStorage) remember(snap domain.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[snap.Round.ID] = stateOf(snap)
}

func stateOf(snap domain.Snapshot) cachedState {
	st := cachedState{
		phase:     snap.Phase,
		count:     len(snap.Predictions),
		reference: snap.ReferencePrice,
	}
	if leader, ok := snap.Leader(); ok {
		st.leader = leader.Agent
	}
	return st
}

// pruneOld deletes rounds not seen within the retention window.
func (s *SQLiteStorage) pruneOld(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-retentionWindow).Unix()
	s.db.ExecContext(ctx, `DELETE FROM predictions WHERE round_id IN (SELECT round_id FROM rounds WHERE last_seen < ?)`, cutoff)
	s.db.ExecContext(ctx, `DELETE FROM rounds WHERE last_seen < ?`, cutoff)
}

// relChange returns the relative change between two values (0 to +Inf).
func relChange(old, new float64) float64 {
	if old == 0 {
		if new == 0 {
			return 0
		}
		return 1.0
	}
	return math.Abs(new-old) / math.Abs(old)
}

func unix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func fromUnix(secs int64) time.Time {
	if secs == 0 {
		return time.Time{}
	}
	return time.Unix(secs, 0).UTC()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
