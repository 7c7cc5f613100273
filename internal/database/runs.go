package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/voteradar/voteradar/internal/metrics"
)

// Backtest run states.
const (
	RunStatusRunning   = "running"
	RunStatusPaused    = "paused"
	RunStatusCompleted = "completed"
)

// BacktestRun is the per-member checkpoint: where the run is, what it has
// accumulated, and why it stopped if it did. One row per member.
type BacktestRun struct {
	MemberID    string
	RunID       uuid.UUID
	Status      string
	Cursor      int // position in SampleIndexes of the next trial
	TargetCount int
	// SampleIndexes is the full sampled index list into the member's vote
	// pool. Persisted so a resumed run replays the exact same sequence even
	// when the sample was drawn randomly.
	SampleIndexes []int
	Results       []metrics.TrialResult
	LastError     *string
	StartedAt     time.Time
	UpdatedAt     time.Time
}

const runColumns = `member_id, run_id, status, cursor_index, target_count, sample_indexes, results, last_error, started_at, updated_at`

// GetRun retrieves the checkpoint for a member, or nil when none exists.
func (db *DB) GetRun(ctx context.Context, memberID string) (*BacktestRun, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+runColumns+` FROM backtest_runs WHERE member_id = $1`,
		memberID,
	)

	var r BacktestRun
	var indexesJSON, resultsJSON []byte
	err := row.Scan(&r.MemberID, &r.RunID, &r.Status, &r.Cursor, &r.TargetCount,
		&indexesJSON, &resultsJSON, &r.LastError, &r.StartedAt, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(indexesJSON, &r.SampleIndexes); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint sample indexes: %w", err)
	}
	if err := json.Unmarshal(resultsJSON, &r.Results); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint results: %w", err)
	}
	return &r, nil
}

// SaveRun upserts the checkpoint. Called after every trial so a crash at any
// point resumes from the last persisted cursor.
func (db *DB) SaveRun(ctx context.Context, r *BacktestRun) error {
	indexesJSON, err := json.Marshal(r.SampleIndexes)
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint sample indexes: %w", err)
	}
	if r.SampleIndexes == nil {
		indexesJSON = []byte("[]")
	}
	resultsJSON, err := json.Marshal(r.Results)
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint results: %w", err)
	}
	if r.Results == nil {
		resultsJSON = []byte("[]")
	}

	_, err = db.pool.Exec(ctx,
		`INSERT INTO backtest_runs (member_id, run_id, status, cursor_index, target_count, sample_indexes, results, last_error, started_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
		 ON CONFLICT (member_id) DO UPDATE SET
		   run_id = EXCLUDED.run_id,
		   status = EXCLUDED.status,
		   cursor_index = EXCLUDED.cursor_index,
		   target_count = EXCLUDED.target_count,
		   sample_indexes = EXCLUDED.sample_indexes,
		   results = EXCLUDED.results,
		   last_error = EXCLUDED.last_error,
		   updated_at = now()`,
		r.MemberID, r.RunID, r.Status, r.Cursor, r.TargetCount, indexesJSON, resultsJSON, r.LastError, r.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save checkpoint for %s: %w", r.MemberID, err)
	}
	return nil
}

// DeleteRun removes the checkpoint. Callers must write the accuracy report
// first; a crash between the two then loses only the checkpoint, not both.
func (db *DB) DeleteRun(ctx context.Context, memberID string) error {
	_, err := db.pool.Exec(ctx,
		`DELETE FROM backtest_runs WHERE member_id = $1`,
		memberID,
	)
	return err
}

// ListPausedRuns returns member ids with a paused checkpoint, for resume-only
// batch mode.
func (db *DB) ListPausedRuns(ctx context.Context) ([]string, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT member_id FROM backtest_runs WHERE status = $1 ORDER BY updated_at`,
		RunStatusPaused,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
