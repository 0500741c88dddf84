package model

// TokenCount always equals len(Tokens); rows violating that are rejected
// at parse time.
type QuestionRecord struct {
	DataID     int64    `json:"data_id"`
	Question   string   `json:"question"`
	Answer     string   `json:"answer"`
	Tokens     []string `json:"tokens"`
	TokenCount int      `json:"token_count"`
}
