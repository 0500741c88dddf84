package store

const (
	SelectedQuestionsJSONKey = "selected_questions.json"
	SelectedQuestionsCSVKey  = "selected_questions.csv"
	DefaultResultKey         = "attention_weights.json"
)
