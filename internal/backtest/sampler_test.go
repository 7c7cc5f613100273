package backtest

import (
	"fmt"
	"math/rand"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voteradar/voteradar/internal/database"
)

func votePool(decisions []string) []database.Vote {
	base := time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)
	votes := make([]database.Vote, len(decisions))
	for i, d := range decisions {
		votes[i] = database.Vote{
			ID:         fmt.Sprintf("v-%04d", i),
			MemberID:   "mp-1",
			Title:      fmt.Sprintf("Bill %d", i),
			VotingTime: base.Add(time.Duration(i) * time.Hour),
			Decision:   d,
			Party:      "REF",
		}
	}
	return votes
}

func repeat(d string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = d
	}
	return out
}

func TestSequential_SkipsTrainingPrefix(t *testing.T) {
	s := &Sampler{MinTraining: 20, Cap: 200}
	pool := votePool(repeat(database.DecisionFor, 30))

	got := s.Sequential(pool, 5)
	assert.Equal(t, []int{20, 21, 22, 23, 24}, got)
}

func TestSequential_ClampsToPoolAndCap(t *testing.T) {
	pool := votePool(repeat(database.DecisionFor, 30))

	s := &Sampler{MinTraining: 20, Cap: 200}
	assert.Len(t, s.Sequential(pool, 50), 10, "only 10 votes are eligible")

	s = &Sampler{MinTraining: 20, Cap: 4}
	assert.Len(t, s.Sequential(pool, 50), 4, "cap bounds the sample")
}

func TestSequential_ExcludesAbsent(t *testing.T) {
	decisions := repeat(database.DecisionFor, 10)
	decisions[5] = database.DecisionAbsent
	decisions[7] = database.DecisionAbsent
	pool := votePool(decisions)

	s := &Sampler{MinTraining: 4, Cap: 200}
	got := s.Sequential(pool, 10)
	assert.Equal(t, []int{4, 6, 8, 9}, got)
}

func TestStratified_ProportionalCounts(t *testing.T) {
	decisions := append(repeat(database.DecisionFor, 500),
		append(repeat(database.DecisionAgainst, 300), repeat(database.DecisionAbstain, 200)...)...)
	pool := votePool(decisions)

	s := &Sampler{MinTraining: 0, Cap: 200, Rand: rand.New(rand.NewSource(42))}
	got := s.Stratified(pool, 100)
	require.Len(t, got, 100)

	counts := map[string]int{}
	for _, i := range got {
		counts[pool[i].Decision]++
	}
	assert.InDelta(t, 50, counts[database.DecisionFor], 1)
	assert.InDelta(t, 30, counts[database.DecisionAgainst], 1)
	assert.InDelta(t, 20, counts[database.DecisionAbstain], 1)
}

func TestStratified_TemporalOrder(t *testing.T) {
	decisions := append(repeat(database.DecisionFor, 60), repeat(database.DecisionAgainst, 40)...)
	pool := votePool(decisions)

	s := &Sampler{MinTraining: 10, Cap: 200, Rand: rand.New(rand.NewSource(7))}
	got := s.Stratified(pool, 30)
	require.Len(t, got, 30)
	assert.True(t, sort.IntsAreSorted(got), "sample must be in temporal order")
	for _, i := range got {
		assert.GreaterOrEqual(t, i, 10)
	}
}

func TestStratified_WholePoolWhenSmall(t *testing.T) {
	pool := votePool(repeat(database.DecisionFor, 12))
	s := &Sampler{MinTraining: 5, Cap: 200, Rand: rand.New(rand.NewSource(1))}

	got := s.Stratified(pool, 50)
	assert.Equal(t, []int{5, 6, 7, 8, 9, 10, 11}, got)
}

func TestStratified_ExactSizeDespiteRounding(t *testing.T) {
	// 7 / 5 / 3 eligible: proportional shares of 10 do not divide evenly.
	decisions := append(repeat(database.DecisionFor, 7),
		append(repeat(database.DecisionAgainst, 5), repeat(database.DecisionAbstain, 3)...)...)
	pool := votePool(decisions)

	s := &Sampler{MinTraining: 0, Cap: 200, Rand: rand.New(rand.NewSource(3))}
	got := s.Stratified(pool, 10)
	assert.Len(t, got, 10)
}
