package store

import (
	"time"

	"github.com/google/uuid"
)

// Mode is the strategy chosen for a query. Exactly one is active per query.
type Mode string

const (
	ModeDirect       Mode = "direct"
	ModeRAG          Mode = "rag"
	ModeWebSearch    Mode = "web-search"
	ModeDeepResearch Mode = "deep-research"
	ModeAgent        Mode = "agent"
	ModeOffline      Mode = "offline"
)

// Message is a single chat turn in provider-agnostic form.
type Message struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}

// Preferences are the user-supplied knobs attached to a query.
type Preferences struct {
	ModelFamily string      // preferred vendor family, "" = no preference
	Model       string      // preferred model id within the family
	RagEnabled  bool
	DeepSearch  bool
	WebSearch   bool
	Agent       bool
	FileIds     []uuid.UUID
}

// Query is the unit of work. Immutable after creation.
type Query struct {
	Id        uuid.UUID
	UserId    uuid.UUID
	SessionId uuid.UUID
	Text      string
	History   []Message // most-recent-last, already bounded by the caller layer
	// ForcedMode is set when exactly one user flag forces a mode, "" otherwise.
	ForcedMode Mode
	// RequestedModeTag preserves the caller's verbatim mode string for telemetry
	// (the UI sends diverging names like "deep-search"/"enhanced_deep_search").
	RequestedModeTag string
	Prefs            Preferences
	SystemPrompt     string
	CreatedAt        time.Time
}

// Source is one attributed reference attached to an envelope.
type Source struct {
	Title       string  `json:"title"`
	URL         string  `json:"url,omitempty"`
	Snippet     string  `json:"snippet,omitempty"`
	Reliability float64 `json:"reliability,omitempty"`
}

// Passage is one retrieval-index hit.
type Passage struct {
	Text         string  `json:"text"`
	Score        float64 `json:"score"`
	DocumentName string  `json:"documentName"`
}
