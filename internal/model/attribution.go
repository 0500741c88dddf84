package model

type WeightedToken struct {
	Token  string  `json:"token"`
	Weight float64 `json:"weight"`
}

// AttributionResult carries one weight per source token, in token order.
type AttributionResult struct {
	QuestionRecord
	AttentionWeights []WeightedToken `json:"attention_weights"`
	TotalWeight      float64         `json:"total_weight"`
	Model            string          `json:"model"`
	RawResponse      string          `json:"raw_response,omitempty"`
}

func (r *AttributionResult) WeightSum() float64 {
	var sum float64
	for _, w := range r.AttentionWeights {
		sum += w.Weight
	}
	return sum
}

// Persisted files can drift if edited by hand.
func (r *AttributionResult) Aligned() bool {
	return len(r.AttentionWeights) == r.TokenCount
}
