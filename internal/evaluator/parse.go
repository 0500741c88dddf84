package evaluator

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/quizattn/quizattn/internal/config"
	"github.com/quizattn/quizattn/internal/model"
	appErr "github.com/quizattn/quizattn/internal/pkg/errors"
)

type weightsPayload struct {
	TokenWeights []model.WeightedToken `json:"token_weights"`
	TotalWeight  float64               `json:"total_weight"`
}

// ParseResponse tolerates fenced output and surrounding prose by parsing
// the span from the first '{' to the last '}'.
func ParseResponse(raw string) ([]model.WeightedToken, error) {
	clean := strings.TrimSpace(raw)
	clean = strings.TrimPrefix(clean, "```json")
	clean = strings.TrimPrefix(clean, "```")
	clean = strings.TrimSuffix(clean, "```")
	clean = strings.TrimSpace(clean)
	start := strings.Index(clean, "{")
	end := strings.LastIndex(clean, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("%w: no json object found", appErr.ErrMalformedResponse)
	}
	clean = clean[start : end+1]

	var payload weightsPayload
	if err := json.Unmarshal([]byte(clean), &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", appErr.ErrMalformedResponse, err)
	}
	if len(payload.TokenWeights) == 0 {
		return nil, fmt.Errorf("%w: empty token_weights", appErr.ErrMalformedResponse)
	}
	return payload.TokenWeights, nil
}

// In exact mode every returned token must match the source token at the
// same position; count mode only checks cardinality.
func ValidateWeights(rec model.QuestionRecord, weights []model.WeightedToken, matchMode string) error {
	if rec.TokenCount != len(rec.Tokens) {
		return fmt.Errorf("%w: record declares %d tokens but carries %d", appErr.ErrTokenMismatch, rec.TokenCount, len(rec.Tokens))
	}
	if len(weights) != rec.TokenCount {
		return fmt.Errorf("%w: got %d weights for %d tokens", appErr.ErrTokenMismatch, len(weights), rec.TokenCount)
	}
	for i, w := range weights {
		if w.Weight < 0 || w.Weight > 1 {
			return fmt.Errorf("%w: token %q weight %v", appErr.ErrWeightOutOfRange, w.Token, w.Weight)
		}
		if matchMode == config.TokenMatchExact && w.Token != rec.Tokens[i] {
			return fmt.Errorf("%w: position %d got %q want %q", appErr.ErrTokenMismatch, i, w.Token, rec.Tokens[i])
		}
	}
	return nil
}
