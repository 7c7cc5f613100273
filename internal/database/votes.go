package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// Vote decision categories as recorded by the parliament API. ABSENT marks
// non-participation and is never a prediction target.
const (
	DecisionFor     = "FOR"
	DecisionAgainst = "AGAINST"
	DecisionAbstain = "ABSTAIN"
	DecisionAbsent  = "ABSENT"
)

// Decisions lists the predictable categories in canonical order.
var Decisions = []string{DecisionFor, DecisionAgainst, DecisionAbstain}

// Vote is one immutable recorded roll-call decision by a member.
type Vote struct {
	ID         string
	MemberID   string
	Title      string
	VotingTime time.Time
	Decision   string
	Party      string // party code at the time of the vote
}

const voteColumns = `id, member_id, title, voting_time, decision, party`

// VotesBefore returns a member's votes strictly before cutoff, oldest first.
// The strict `<` filter lives here, at the data layer, so no caller can
// accidentally leak the tested vote or anything after it into context.
func (db *DB) VotesBefore(ctx context.Context, memberID string, cutoff time.Time) ([]Vote, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+voteColumns+` FROM votes
		 WHERE member_id = $1 AND voting_time < $2
		 ORDER BY voting_time ASC`,
		memberID, cutoff,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectVotes(rows)
}

// CountVotesBefore returns how many votes a member cast strictly before cutoff.
func (db *DB) CountVotesBefore(ctx context.Context, memberID string, cutoff time.Time) (int, error) {
	var count int
	err := db.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM votes WHERE member_id = $1 AND voting_time < $2`,
		memberID, cutoff,
	).Scan(&count)
	return count, err
}

// ListVotes returns all of a member's votes ordered by voting time ascending.
// This is the sampler's eligible pool.
func (db *DB) ListVotes(ctx context.Context, memberID string) ([]Vote, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+voteColumns+` FROM votes
		 WHERE member_id = $1
		 ORDER BY voting_time ASC`,
		memberID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectVotes(rows)
}

// InsertVote records a historical vote. Owned by the upstream sync pipeline;
// exposed for that pipeline and for seeding test data.
func (db *DB) InsertVote(ctx context.Context, v Vote) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO votes (id, member_id, title, voting_time, decision, party)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO NOTHING`,
		v.ID, v.MemberID, v.Title, v.VotingTime, v.Decision, v.Party,
	)
	if err != nil {
		return fmt.Errorf("failed to insert vote %s: %w", v.ID, err)
	}
	return nil
}

func collectVotes(rows pgx.Rows) ([]Vote, error) {
	var votes []Vote
	for rows.Next() {
		var v Vote
		if err := rows.Scan(&v.ID, &v.MemberID, &v.Title, &v.VotingTime, &v.Decision, &v.Party); err != nil {
			return nil, err
		}
		votes = append(votes, v)
	}
	return votes, rows.Err()
}
