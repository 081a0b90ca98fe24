package dto

type ClassifyRequest struct {
	Query   string   `json:"query" validate:"required"`
	History []string `json:"history,omitempty" validate:"max=50"`
}

type ClassifyResponse struct {
	Subject    string             `json:"subject"`
	Confidence float64            `json:"confidence"`
	Scores     map[string]float64 `json:"scores"`
	Method     string             `json:"method"`
}

type SubjectDTO struct {
	Id          string   `json:"id"`
	Description string   `json:"description,omitempty"`
	Keywords    []string `json:"keywords"`
	Patterns    []string `json:"patterns"`
	Priority    int      `json:"priority"`
	Enabled     bool     `json:"enabled"`
}
