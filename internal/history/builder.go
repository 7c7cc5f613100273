// Package history assembles a member's pre-cutoff voting context for a
// single backtest trial. Everything it returns originates strictly before
// the trial's cutoff; the strict filter itself lives in the vote store.
package history

import (
	"context"
	"errors"
	"time"

	"github.com/voteradar/voteradar/internal/database"
)

// ErrInsufficientHistory signals that a member has too few qualifying votes
// before the cutoff. A skip, not a failure: the caller moves on.
var ErrInsufficientHistory = errors.New("insufficient history before cutoff")

// VoteSource supplies a member's votes strictly before a cutoff, oldest
// first. *database.DB satisfies this.
type VoteSource interface {
	VotesBefore(ctx context.Context, memberID string, cutoff time.Time) ([]database.Vote, error)
}

// Context is the aggregated pre-cutoff picture handed to the predictor.
type Context struct {
	// Distribution counts qualifying (non-absent) decisions per category.
	Distribution map[string]int
	// Recent holds the last K qualifying votes, oldest first.
	Recent []database.Vote
	// Total is the number of qualifying votes before the cutoff.
	Total int
}

// DominantDecision returns the most common pre-cutoff decision and its share
// of qualifying votes. Share is 0 when there is no history.
func (c *Context) DominantDecision() (string, float64) {
	best := ""
	bestCount := 0
	for _, d := range database.Decisions {
		if c.Distribution[d] > bestCount {
			best = d
			bestCount = c.Distribution[d]
		}
	}
	if c.Total == 0 || best == "" {
		return "", 0
	}
	return best, float64(bestCount) / float64(c.Total)
}

// Builder constructs trial contexts.
type Builder struct {
	votes      VoteSource
	minHistory int
	recentK    int
}

// NewBuilder creates a Builder. minHistory is the qualifying-vote floor below
// which Build reports ErrInsufficientHistory; recentK bounds the short list.
func NewBuilder(votes VoteSource, minHistory, recentK int) *Builder {
	return &Builder{votes: votes, minHistory: minHistory, recentK: recentK}
}

// Build aggregates the member's qualifying votes strictly before cutoff.
func (b *Builder) Build(ctx context.Context, memberID string, cutoff time.Time) (*Context, error) {
	votes, err := b.votes.VotesBefore(ctx, memberID, cutoff)
	if err != nil {
		return nil, err
	}

	hc := &Context{Distribution: make(map[string]int, len(database.Decisions))}
	var qualifying []database.Vote
	for _, v := range votes {
		if v.Decision == database.DecisionAbsent {
			continue
		}
		hc.Distribution[v.Decision]++
		qualifying = append(qualifying, v)
	}
	hc.Total = len(qualifying)

	if hc.Total < b.minHistory {
		return nil, ErrInsufficientHistory
	}

	if len(qualifying) > b.recentK {
		qualifying = qualifying[len(qualifying)-b.recentK:]
	}
	hc.Recent = qualifying

	return hc, nil
}
