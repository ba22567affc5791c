package types

// Question is a structured interview question produced by a question generator.
type Question struct {
	Domain        Domain     `json:"domain"`
	Difficulty    Difficulty `json:"difficulty"`
	Prompt        string     `json:"question"`
	Options       []string   `json:"options,omitempty"`
	CorrectAnswer string     `json:"correctAnswer,omitempty"`
	Explanation   string     `json:"explanation,omitempty"`
}

// NextQuestionRequest asks for a question in the caller's current tier for a domain.
type NextQuestionRequest struct {
	Domain Domain `json:"domain" validate:"required,oneof=technical hr behavioral marketing"`
}

// NextQuestionResponse wraps a generated question.
type NextQuestionResponse struct {
	Data *Question `json:"data"`
}
