package predict

import (
	"github.com/voteradar/voteradar/internal/database"
	"github.com/voteradar/voteradar/internal/history"
)

// Shortcut confidence is deliberately discounted below what the raw loyalty
// rate suggests, and capped, so a heuristic answer never outranks a
// well-founded model prediction.
const (
	shortcutDiscount      = 0.9
	shortcutMaxConfidence = 0.95
)

// Shortcut predicts along the party line for highly loyal members without an
// external call. Results carry provenance "heuristic".
type Shortcut struct {
	// LoyaltyThreshold is the minimum loyalty percentage for the shortcut to
	// apply, e.g. 95.
	LoyaltyThreshold float64
}

// Try returns a heuristic prediction and true when the member qualifies:
// loyalty at or above the threshold and a dominant pre-cutoff decision to
// follow. Otherwise it returns false and the caller goes to the backend.
func (s *Shortcut) Try(member *database.Member, hc *history.Context) (*Prediction, bool) {
	if member.LoyaltyRate < s.LoyaltyThreshold {
		return nil, false
	}

	dominant, share := hc.DominantDecision()
	if dominant == "" {
		return nil, false
	}

	confidence := (member.LoyaltyRate / 100) * share * shortcutDiscount
	if confidence > shortcutMaxConfidence {
		confidence = shortcutMaxConfidence
	}

	return &Prediction{
		Decision:   dominant,
		Confidence: confidence,
		Reasoning:  "party-line heuristic: member votes with the party majority",
		Provenance: ProvenanceHeuristic,
	}, true
}
