package models

// QuestionRecord is one normalized row of a question catalog.
type QuestionRecord struct {
	ID       string   `json:"id"`
	Text     string   `json:"text"`
	Type     string   `json:"type"`
	Section  string   `json:"section"`
	Required bool     `json:"required"`
	Options  []string `json:"options"`
}
