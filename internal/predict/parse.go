package predict

import (
	"encoding/json"
	"fmt"

	"github.com/xeipuuv/gojsonschema"

	"github.com/voteradar/voteradar/internal/llm"
)

// predictionSchema is the strict half of the loose-extraction,
// strict-validation contract: whatever object ExtractJSON pulls out of the
// model's prose must satisfy this exactly.
const predictionSchema = `{
	"type": "object",
	"required": ["decision", "confidence"],
	"properties": {
		"decision": {
			"type": "string",
			"enum": ["FOR", "AGAINST", "ABSTAIN"]
		},
		"confidence": {
			"type": "number",
			"minimum": 0,
			"maximum": 1
		},
		"reasoning": {
			"type": "string"
		}
	}
}`

var schemaLoader = gojsonschema.NewStringLoader(predictionSchema)

// parsePrediction extracts and validates a prediction object from raw model
// output.
func parsePrediction(raw string) (*Prediction, error) {
	extracted, ok := llm.ExtractJSON(raw)
	if !ok {
		return nil, &MalformedResponseError{Reason: "no JSON object in output", Raw: raw}
	}

	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewStringLoader(extracted))
	if err != nil {
		return nil, &MalformedResponseError{Reason: fmt.Sprintf("schema validation failed: %v", err), Raw: raw}
	}
	if !result.Valid() {
		return nil, &MalformedResponseError{
			Reason: fmt.Sprintf("prediction does not match schema: %v", result.Errors()),
			Raw:    raw,
		}
	}

	var p Prediction
	if err := json.Unmarshal([]byte(extracted), &p); err != nil {
		return nil, &MalformedResponseError{Reason: err.Error(), Raw: raw}
	}
	return &p, nil
}
