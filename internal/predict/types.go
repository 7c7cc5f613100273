// Package predict turns a member's pre-cutoff context and a bill into a
// single vote prediction, either by calling an LLM backend through the
// failover registry or by the party-line statistical shortcut. Predictions
// carry their provenance so the two paths can never be confused.
package predict

import "fmt"

// Bill is the scenario being predicted: proposed legislation text.
type Bill struct {
	ID      string
	Title   string
	Summary string
}

// Provenance marks where a prediction came from.
type Provenance string

const (
	// ProvenanceModel means an LLM backend produced the prediction.
	ProvenanceModel Provenance = "model"
	// ProvenanceHeuristic means the party-line shortcut produced it without
	// an external call.
	ProvenanceHeuristic Provenance = "heuristic"
)

// Prediction is one predicted vote.
type Prediction struct {
	Decision     string     `json:"decision"`   // FOR, AGAINST, ABSTAIN
	Confidence   float64    `json:"confidence"` // 0..1
	Reasoning    string     `json:"reasoning,omitempty"`
	Provenance   Provenance `json:"provenance"`
	Model        string     `json:"model,omitempty"` // backend model name, empty for heuristic
	InputTokens  int        `json:"inputTokens,omitempty"`
	OutputTokens int        `json:"outputTokens,omitempty"`
}

// MalformedResponseError means the model's output held no valid prediction.
// Counted as a failed trial; the run continues.
type MalformedResponseError struct {
	Reason string
	Raw    string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed model response: %s", e.Reason)
}
