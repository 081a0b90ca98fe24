package agents

import (
	"context"
	"sort"
	"strings"
	"sync"

	"ai-tutor-be/pkg/llm"
	"ai-tutor-be/pkg/store"
)

// Handler is one specialized agent routine. Handlers are fully optional;
// with none registered, agent mode degrades to the hybrid strategy.
type Handler interface {
	Name() string
	// Score rates how well this handler matches the query intent, 0 = no match.
	Score(q *store.Query) float64
	// Handle produces an answer, typically by composing direct LLM calls.
	Handle(ctx context.Context, q *store.Query, provider llm.Provider) (string, error)
}

// Registry holds the active handlers.
type Registry struct {
	mu       sync.RWMutex
	handlers []Handler
}

func NewRegistry(handlers ...Handler) *Registry {
	return &Registry{handlers: handlers}
}

func (r *Registry) Register(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers = append(r.handlers, h)
}

func (r *Registry) HasAgents() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers) > 0
}

// Pick returns the best-scoring handler for the query, nil when none scores
// above zero.
func (r *Registry) Pick(q *store.Query) Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.handlers) == 0 {
		return nil
	}
	type scored struct {
		h Handler
		s float64
	}
	cands := make([]scored, 0, len(r.handlers))
	for _, h := range r.handlers {
		cands = append(cands, scored{h, h.Score(q)})
	}
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].s > cands[j].s })
	if cands[0].s <= 0 {
		return nil
	}
	return cands[0].h
}

// --- Built-in handlers ---

type keywordHandler struct {
	name     string
	keywords []string
	preamble string
}

func (h *keywordHandler) Name() string { return h.name }

func (h *keywordHandler) Score(q *store.Query) float64 {
	lower := strings.ToLower(q.Text)
	score := 0.0
	for _, kw := range h.keywords {
		if strings.Contains(lower, kw) {
			score += 1.0
		}
	}
	return score
}

func (h *keywordHandler) Handle(ctx context.Context, q *store.Query, provider llm.Provider) (string, error) {
	history := make([]llm.Message, 0, len(q.History)+2)
	history = append(history, llm.Message{Role: "system", Content: h.preamble})
	for _, m := range q.History {
		history = append(history, llm.Message{Role: m.Role, Content: m.Content})
	}
	history = append(history, llm.Message{Role: "user", Content: q.Text})
	return provider.Chat(ctx, history)
}

func NewResearchHandler() Handler {
	return &keywordHandler{
		name:     "research",
		keywords: []string{"research", "investigate", "compare", "sources", "evidence", "study"},
		preamble: "You are a research assistant. Structure the answer with cited claims and note where evidence is thin.",
	}
}

func NewCodingHandler() Handler {
	return &keywordHandler{
		name:     "coding",
		keywords: []string{"code", "implement", "bug", "function", "compile", "refactor"},
		preamble: "You are a programming assistant. Prefer working code samples with short explanations.",
	}
}

func NewAcademicHandler() Handler {
	return &keywordHandler{
		name:     "academic",
		keywords: []string{"essay", "thesis", "exam", "homework", "explain", "definition"},
		preamble: "You are an academic tutor. Explain step by step at an undergraduate level.",
	}
}

func NewCreativeHandler() Handler {
	return &keywordHandler{
		name:     "creative",
		keywords: []string{"story", "poem", "write", "creative", "imagine", "brainstorm"},
		preamble: "You are a creative writing partner. Offer vivid, original material.",
	}
}
