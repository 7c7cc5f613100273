package backtest

import (
	"math/rand"
	"sort"
	"sync"

	"github.com/voteradar/voteradar/internal/database"
)

// Sampler selects which votes from a member's temporally ordered pool become
// trials. Votes inside the training prefix are never selected: the first
// MinTraining votes exist only to give the earliest trial enough history.
// ABSENT votes are never selected either, there is nothing to predict when
// the member did not take part.
type Sampler struct {
	MinTraining int
	Cap         int
	// Rand drives stratified selection. Injected so tests can fix the
	// sequence. nil is fine for purely sequential sampling.
	Rand *rand.Rand

	// mu serializes draws; rand.Rand is not safe for concurrent use and one
	// Sampler serves every member of a batch.
	mu sync.Mutex
}

// eligible returns indexes into pool that may become trials, in temporal
// order.
func (s *Sampler) eligible(pool []database.Vote) []int {
	var idx []int
	for i := s.MinTraining; i < len(pool); i++ {
		if pool[i].Decision == database.DecisionAbsent {
			continue
		}
		idx = append(idx, i)
	}
	return idx
}

// clampSize applies the per-member sample cap and the eligible pool size.
func (s *Sampler) clampSize(size, eligible int) int {
	if s.Cap > 0 && size > s.Cap {
		size = s.Cap
	}
	if size > eligible {
		size = eligible
	}
	return size
}

// Sequential returns the first size eligible indexes, oldest first. The
// result is deterministic for a given pool, which is what makes sequential
// runs resumable from the cursor alone.
func (s *Sampler) Sequential(pool []database.Vote, size int) []int {
	idx := s.eligible(pool)
	return idx[:s.clampSize(size, len(idx))]
}

// Stratified draws a sample whose decision mix matches the eligible pool's.
// Each decision category gets a proportional share, the draw within a
// category is uniform without replacement, and the union is re-sorted into
// temporal order so the run still walks forward in time.
func (s *Sampler) Stratified(pool []database.Vote, size int) []int {
	idx := s.eligible(pool)
	size = s.clampSize(size, len(idx))
	if size == len(idx) {
		return idx
	}

	strata := make(map[string][]int)
	var order []string
	for _, i := range idx {
		d := pool[i].Decision
		if _, seen := strata[d]; !seen {
			order = append(order, d)
		}
		strata[d] = append(strata[d], i)
	}
	sort.Strings(order)

	// Proportional allocation, largest-remainder to land exactly on size.
	counts := make(map[string]int, len(order))
	remainders := make(map[string]float64, len(order))
	allocated := 0
	for _, d := range order {
		exact := float64(size) * float64(len(strata[d])) / float64(len(idx))
		counts[d] = int(exact)
		remainders[d] = exact - float64(counts[d])
		allocated += counts[d]
	}
	for allocated < size {
		best := ""
		for _, d := range order {
			if counts[d] >= len(strata[d]) {
				continue
			}
			if best == "" || remainders[d] > remainders[best] {
				best = d
			}
		}
		if best == "" {
			break
		}
		counts[best]++
		remainders[best] = -1
		allocated++
	}

	var sample []int
	s.mu.Lock()
	for _, d := range order {
		members := strata[d]
		s.Rand.Shuffle(len(members), func(a, b int) {
			members[a], members[b] = members[b], members[a]
		})
		sample = append(sample, members[:counts[d]]...)
	}
	s.mu.Unlock()
	sort.Ints(sample)
	return sample
}
