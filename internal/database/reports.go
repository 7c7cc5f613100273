package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/voteradar/voteradar/internal/metrics"
)

// AccuracyReport is the durable per-member summary. Overwritten on every
// completed run; the trend column keeps a bounded history of past runs.
type AccuracyReport struct {
	MemberID string
	Report   metrics.Report
	Trend    []metrics.TrendPoint
	RanAt    time.Time
}

// GetReport retrieves the stored report for a member, or nil when no
// backtest has completed yet.
func (db *DB) GetReport(ctx context.Context, memberID string) (*AccuracyReport, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT member_id, overall, sample_size, skipped, by_decision, by_party, confusion, trend, ran_at
		 FROM accuracy_reports WHERE member_id = $1`,
		memberID,
	)

	var r AccuracyReport
	var byDecision, byParty, confusion, trend []byte
	err := row.Scan(&r.MemberID, &r.Report.Overall, &r.Report.SampleSize, &r.Report.Skipped,
		&byDecision, &byParty, &confusion, &trend, &r.RanAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	for _, dec := range []struct {
		data []byte
		dst  any
	}{
		{byDecision, &r.Report.ByDecision},
		{byParty, &r.Report.ByParty},
		{confusion, &r.Report.Confusion},
		{trend, &r.Trend},
	} {
		if err := json.Unmarshal(dec.data, dec.dst); err != nil {
			return nil, fmt.Errorf("failed to decode report for %s: %w", memberID, err)
		}
	}
	r.Report.RanAt = r.RanAt
	return &r, nil
}

// SaveReport overwrites the member's report and appends to its trend. The
// previous trend is read inside the same statement so concurrent runs for
// different members never interact.
func (db *DB) SaveReport(ctx context.Context, memberID string, report metrics.Report) error {
	prev, err := db.GetReport(ctx, memberID)
	if err != nil {
		return err
	}

	var trend []metrics.TrendPoint
	if prev != nil {
		trend = prev.Trend
	}
	trend = metrics.AppendTrend(trend, metrics.TrendPoint{
		Date:    report.RanAt.UTC().Format("2006-01-02"),
		Overall: report.Overall,
	})

	byDecision, err := json.Marshal(report.ByDecision)
	if err != nil {
		return err
	}
	byParty, err := json.Marshal(report.ByParty)
	if err != nil {
		return err
	}
	confusion, err := json.Marshal(report.Confusion)
	if err != nil {
		return err
	}
	trendJSON, err := json.Marshal(trend)
	if err != nil {
		return err
	}

	_, err = db.pool.Exec(ctx,
		`INSERT INTO accuracy_reports (member_id, overall, sample_size, skipped, by_decision, by_party, confusion, trend, ran_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (member_id) DO UPDATE SET
		   overall = EXCLUDED.overall,
		   sample_size = EXCLUDED.sample_size,
		   skipped = EXCLUDED.skipped,
		   by_decision = EXCLUDED.by_decision,
		   by_party = EXCLUDED.by_party,
		   confusion = EXCLUDED.confusion,
		   trend = EXCLUDED.trend,
		   ran_at = EXCLUDED.ran_at`,
		memberID, report.Overall, report.SampleSize, report.Skipped,
		byDecision, byParty, confusion, trendJSON, report.RanAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save report for %s: %w", memberID, err)
	}
	return nil
}
