package selector

import (
	"errors"
	"time"

	"ai-tutor-be/pkg/classifier"
	"ai-tutor-be/pkg/routing/registry"
	"ai-tutor-be/pkg/store"
)

// Precondition failures surface directly to the caller, no fallback.
var (
	ErrRagWithoutFiles  = errors.New("rag mode requires at least one selected file")
	ErrConflictingFlags = errors.New("conflicting mode flags")
)

// AgentProbe reports whether any agent handler is registered.
type AgentProbe interface {
	HasAgents() bool
}

// Selection is the resolved mode plus the backend candidates for it.
type Selection struct {
	Mode       store.Mode
	Subject    classifier.Subject
	Candidates []registry.Snapshot
}

// Selector implements the mode decision rules. Specialist picking can be
// switched off (USE_ENHANCED_SEARCH), in which case classified subjects still
// flow into the envelope but backend choice is generalist-only.
type Selector struct {
	registry            *registry.Registry
	agents              AgentProbe
	specialistThreshold float64
	specialistsEnabled  bool
}

func New(reg *registry.Registry, agents AgentProbe, specialistThreshold float64, specialistsEnabled bool) *Selector {
	if specialistThreshold <= 0 {
		specialistThreshold = 0.3
	}
	return &Selector{
		registry:            reg,
		agents:              agents,
		specialistThreshold: specialistThreshold,
		specialistsEnabled:  specialistsEnabled,
	}
}

// Select resolves exactly one mode for the query. Forced flags win when their
// preconditions hold; RAG without files is an error, not a silent fallthrough.
func (s *Selector) Select(q *store.Query, cls classifier.Result, now time.Time) (*Selection, error) {
	forced, err := forcedMode(q)
	if err != nil {
		return nil, err
	}

	switch forced {
	case store.ModeRAG:
		if len(q.Prefs.FileIds) == 0 {
			return nil, ErrRagWithoutFiles
		}
		return s.withCandidates(store.ModeRAG, cls, now), nil
	case store.ModeDeepResearch:
		return s.withCandidates(store.ModeDeepResearch, cls, now), nil
	case store.ModeWebSearch:
		return s.withCandidates(store.ModeWebSearch, cls, now), nil
	case store.ModeAgent:
		// Agent handlers are optional. With none registered the request is
		// served as hybrid web search instead of failing.
		if s.agents == nil || !s.agents.HasAgents() {
			return s.withCandidates(store.ModeWebSearch, cls, now), nil
		}
		return s.withCandidates(store.ModeAgent, cls, now), nil
	}

	// No forced flag: confident classification on a subject with a live
	// specialist picks direct against that specialist list.
	if s.specialistsEnabled && cls.Subject != classifier.SubjectGeneral && cls.Confidence >= s.specialistThreshold {
		sel := s.withCandidates(store.ModeDirect, cls, now)
		if len(sel.Candidates) > 0 {
			return sel, nil
		}
	}

	// Generalist direct call.
	return &Selection{
		Mode:       store.ModeDirect,
		Subject:    cls.Subject,
		Candidates: s.registry.Generalists(now),
	}, nil
}

func (s *Selector) withCandidates(mode store.Mode, cls classifier.Result, now time.Time) *Selection {
	return &Selection{
		Mode:       mode,
		Subject:    cls.Subject,
		Candidates: s.registry.PickFor(cls.Subject, now),
	}
}

// forcedMode maps the mutually exclusive user flags to a mode. More than one
// flag set is a precondition failure.
func forcedMode(q *store.Query) (store.Mode, error) {
	set := 0
	var mode store.Mode
	if q.Prefs.RagEnabled {
		set++
		mode = store.ModeRAG
	}
	if q.Prefs.DeepSearch {
		set++
		mode = store.ModeDeepResearch
	}
	if q.Prefs.WebSearch {
		set++
		mode = store.ModeWebSearch
	}
	if q.Prefs.Agent {
		set++
		mode = store.ModeAgent
	}
	if set > 1 {
		return "", ErrConflictingFlags
	}
	if set == 0 {
		return "", nil
	}
	return mode, nil
}
