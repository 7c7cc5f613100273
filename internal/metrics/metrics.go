// Package metrics reduces backtest trial results to accuracy figures:
// overall accuracy, per-decision precision, a confusion matrix, and
// per-party breakdowns.
package metrics

import (
	"math"
	"time"
)

// TrialResult is one tested prediction against a historical vote.
type TrialResult struct {
	VoteID     string    `json:"voteId"`
	Title      string    `json:"title,omitempty"`
	VotingTime time.Time `json:"votingTime"`
	Party      string    `json:"party,omitempty"`
	Predicted  string    `json:"predicted"`
	Actual     string    `json:"actual"`
	Confidence float64   `json:"confidence"`
	Correct    bool      `json:"correct"`
	Provenance string    `json:"provenance,omitempty"` // model or heuristic
}

// Report is the reduced accuracy summary for one member.
type Report struct {
	Overall    float64                   `json:"overall"` // percent, 0 when no trials
	SampleSize int                       `json:"sampleSize"`
	Skipped    int                       `json:"skipped"` // non-participation trials excluded from the matrix
	ByDecision map[string]float64        `json:"byDecision"` // precision per predicted decision, percent
	ByParty    map[string]float64        `json:"byParty"`    // accuracy per party, percent
	Confusion  map[string]map[string]int `json:"confusion"`  // predicted -> actual -> count
	RanAt      time.Time                 `json:"ranAt"`
}

// TrendPoint is one entry in a member's accuracy history.
type TrendPoint struct {
	Date    string  `json:"date"` // YYYY-MM-DD
	Overall float64 `json:"overall"`
}

// MaxTrendPoints bounds the stored accuracy trend per member.
const MaxTrendPoints = 100

// Compute reduces trials to a Report. Decisions lists the predictable
// categories; trials whose actual decision is outside that list count as
// skipped and stay out of the confusion matrix.
func Compute(trials []TrialResult, decisions []string) Report {
	tracked := make(map[string]bool, len(decisions))
	for _, d := range decisions {
		tracked[d] = true
	}

	confusion := make(map[string]map[string]int, len(decisions))
	for _, p := range decisions {
		confusion[p] = make(map[string]int, len(decisions))
	}

	var correct, total, skipped int
	partyCorrect := make(map[string]int)
	partyTotal := make(map[string]int)

	for _, t := range trials {
		if !tracked[t.Actual] {
			skipped++
			continue
		}
		total++
		if t.Correct {
			correct++
		}
		if t.Party != "" {
			partyTotal[t.Party]++
			if t.Correct {
				partyCorrect[t.Party]++
			}
		}
		if tracked[t.Predicted] {
			confusion[t.Predicted][t.Actual]++
		}
	}

	byDecision := make(map[string]float64, len(decisions))
	for _, p := range decisions {
		var predicted, hit int
		for _, a := range decisions {
			predicted += confusion[p][a]
		}
		hit = confusion[p][p]
		// A decision never predicted has precision 0, not NaN.
		if predicted == 0 {
			byDecision[p] = 0
			continue
		}
		byDecision[p] = round1(float64(hit) / float64(predicted) * 100)
	}

	byParty := make(map[string]float64, len(partyTotal))
	for party, n := range partyTotal {
		byParty[party] = round1(float64(partyCorrect[party]) / float64(n) * 100)
	}

	return Report{
		Overall:    Accuracy(correct, total),
		SampleSize: total,
		Skipped:    skipped,
		ByDecision: byDecision,
		ByParty:    byParty,
		Confusion:  confusion,
	}
}

// Accuracy returns correct/total as a rounded percentage, 0 when total is 0.
func Accuracy(correct, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(correct) / float64(total) * 100)
}

// AppendTrend appends a point and drops the oldest entries beyond
// MaxTrendPoints.
func AppendTrend(trend []TrendPoint, p TrendPoint) []TrendPoint {
	trend = append(trend, p)
	if len(trend) > MaxTrendPoints {
		trend = trend[len(trend)-MaxTrendPoints:]
	}
	return trend
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
