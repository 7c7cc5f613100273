package predict

import (
	"context"

	"github.com/voteradar/voteradar/internal/database"
	"github.com/voteradar/voteradar/internal/history"
	"github.com/voteradar/voteradar/internal/llm"
)

// Completer is the single backend capability the predictor needs.
// *llm.Registry satisfies this.
type Completer interface {
	Complete(ctx context.Context, messages []llm.Message) (*llm.Response, error)
}

// Predictor invokes a backend for one prediction. Dependencies are injected
// at construction; there is no process-global client.
type Predictor struct {
	backends Completer
	prompts  PromptBuilder
}

// NewPredictor creates a Predictor. A nil prompts falls back to the default
// builder.
func NewPredictor(backends Completer, prompts PromptBuilder) *Predictor {
	if prompts == nil {
		prompts = DefaultPromptBuilder{}
	}
	return &Predictor{backends: backends, prompts: prompts}
}

// Predict runs one completion and parses the result. The returned prediction
// has provenance "model". Backend errors pass through untouched so callers
// can distinguish transient exhaustion from malformed output.
func (p *Predictor) Predict(ctx context.Context, member *database.Member, bill Bill, hc *history.Context) (*Prediction, error) {
	messages := p.prompts.Build(member, bill, hc)

	resp, err := p.backends.Complete(ctx, messages)
	if err != nil {
		return nil, err
	}

	pred, err := parsePrediction(resp.Content)
	if err != nil {
		return nil, err
	}

	pred.Provenance = ProvenanceModel
	pred.Model = resp.Model
	pred.InputTokens = resp.InputTokens
	pred.OutputTokens = resp.OutputTokens
	return pred, nil
}
