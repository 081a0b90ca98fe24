package dto

import (
	"time"

	"github.com/google/uuid"

	"ai-tutor-be/pkg/envelope"
	"ai-tutor-be/pkg/store"
)

type ChatMessageDTO struct {
	Role    string `json:"role" validate:"required,oneof=user assistant system"`
	Content string `json:"content" validate:"required"`
}

type SendMessageRequest struct {
	Query        string           `json:"query" validate:"required"`
	SessionId    string           `json:"session_id,omitempty"`
	History      []ChatMessageDTO `json:"history,omitempty" validate:"max=50,dive"`
	SystemPrompt string           `json:"system_prompt,omitempty"`
	Mode         string           `json:"mode,omitempty"` // forced mode tag, verbatim
	LLMProvider  string           `json:"llm_provider,omitempty"`
	Model        string           `json:"model,omitempty"`
	RagEnabled   bool             `json:"rag_enabled,omitempty"`
	DeepSearch   bool             `json:"deep_search,omitempty"`
	WebSearch    bool             `json:"web_search,omitempty"`
	Agent        bool             `json:"agent,omitempty"`
	FileIds      []uuid.UUID      `json:"file_ids,omitempty" validate:"max=20"`
}

type SourceDTO struct {
	Title       string  `json:"title"`
	URL         string  `json:"url,omitempty"`
	Snippet     string  `json:"snippet,omitempty"`
	Reliability float64 `json:"reliability,omitempty"`
}

type ClassificationDTO struct {
	Subject    string             `json:"subject"`
	Confidence float64            `json:"confidence"`
	Scores     map[string]float64 `json:"scores,omitempty"`
	Method     string             `json:"method"`
}

type SendMessageResponse struct {
	Answer         string             `json:"answer"`
	Mode           string             `json:"mode"`
	RequestedMode  string             `json:"requested_mode,omitempty"`
	BackendId      string             `json:"backend_id,omitempty"`
	AgentName      string             `json:"agent_name,omitempty"`
	Classification *ClassificationDTO `json:"classification,omitempty"`
	Sources        []SourceDTO        `json:"sources,omitempty"`
	Confidence     float64            `json:"confidence"`
	FallbackLevel  int                `json:"fallback_level"`
	SourcesWarning bool               `json:"sources_warning,omitempty"`
	ErrorKind      string             `json:"error_kind,omitempty"`
	ResetTime      *time.Time         `json:"reset_time,omitempty"`
	Timestamp      time.Time          `json:"timestamp"`
}

func ToSourceDTOs(sources []store.Source) []SourceDTO {
	if len(sources) == 0 {
		return nil
	}
	out := make([]SourceDTO, 0, len(sources))
	for _, s := range sources {
		out = append(out, SourceDTO{
			Title:       s.Title,
			URL:         s.URL,
			Snippet:     s.Snippet,
			Reliability: s.Reliability,
		})
	}
	return out
}

func FromEnvelope(env *envelope.Envelope) *SendMessageResponse {
	resp := &SendMessageResponse{
		Answer:         env.Answer,
		Mode:           string(env.Mode),
		RequestedMode:  env.RequestedMode,
		BackendId:      env.BackendId,
		AgentName:      env.AgentName,
		Sources:        ToSourceDTOs(env.Sources),
		Confidence:     env.Confidence,
		FallbackLevel:  env.FallbackLevel,
		SourcesWarning: env.SourcesWarning,
		ErrorKind:      string(env.ErrorKind),
		ResetTime:      env.ResetTime,
		Timestamp:      env.Timestamp,
	}
	if env.Classification.Subject != "" {
		resp.Classification = &ClassificationDTO{
			Subject:    string(env.Classification.Subject),
			Confidence: env.Classification.Confidence,
			Scores:     env.Classification.Scores,
			Method:     env.Classification.Method,
		}
	}
	return resp
}
