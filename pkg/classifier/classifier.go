package classifier

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"sync"

	"ai-tutor-be/pkg/embedding"
)

// Subject is a coarse domain label.
type Subject string

const (
	SubjectMathematics Subject = "mathematics"
	SubjectProgramming Subject = "programming"
	SubjectScience     Subject = "science"
	SubjectHistory     Subject = "history"
	SubjectLiterature  Subject = "literature"
	SubjectGeneral     Subject = "general"
)

// Method records which signals produced the classification.
const (
	MethodKeyword = "keyword"
	MethodPattern = "pattern"
	MethodHybrid  = "hybrid"
)

const (
	maxTextLen     = 5000
	patternHitCap  = 10
	defaultMinimum = 1.0
)

// SubjectConfig declares one subject's scoring inputs.
type SubjectConfig struct {
	Id          Subject
	Description string
	Keywords    []string
	Patterns    []string
	Priority    int
	Enabled     bool
}

// Weights blend the three scoring signals.
type Weights struct {
	Keyword   float64
	Pattern   float64
	Embedding float64
	Threshold float64
}

func DefaultWeights() Weights {
	return Weights{Keyword: 0.4, Pattern: 0.1, Embedding: 0.5, Threshold: defaultMinimum}
}

// Result is the classification for one query.
type Result struct {
	Subject    Subject            `json:"subject"`
	Confidence float64            `json:"confidence"`
	Scores     map[string]float64 `json:"scores"`
	Method     string             `json:"method"`
}

type compiledSubject struct {
	cfg      SubjectConfig
	patterns []*regexp.Regexp
	// embedded prototype of the subject description, computed lazily
	protoOnce sync.Once
	prototype []float32
}

// Classifier scores query text against the configured subjects. It never
// fails: any internal problem degrades to the general subject.
type Classifier struct {
	mu       sync.RWMutex
	subjects []*compiledSubject
	weights  Weights
	embedder embedding.EmbeddingProvider // optional third signal
}

// New compiles the subject configs. Invalid patterns are skipped rather than
// failing the whole subject.
func New(configs []SubjectConfig, weights Weights, embedder embedding.EmbeddingProvider) *Classifier {
	return &Classifier{
		subjects: compile(configs),
		weights:  weights,
		embedder: embedder,
	}
}

func compile(configs []SubjectConfig) []*compiledSubject {
	subjects := make([]*compiledSubject, 0, len(configs))
	for _, cfg := range configs {
		if !cfg.Enabled || cfg.Id == SubjectGeneral {
			continue
		}
		cs := &compiledSubject{cfg: cfg}
		for _, p := range cfg.Patterns {
			re, err := regexp.Compile(p)
			if err != nil {
				continue
			}
			cs.patterns = append(cs.patterns, re)
		}
		subjects = append(subjects, cs)
	}
	return subjects
}

// Reconfigure swaps in a new subject set and weights. In-flight Classify
// calls finish against the snapshot they started with.
func (c *Classifier) Reconfigure(configs []SubjectConfig, weights Weights) {
	compiled := compile(configs)
	c.mu.Lock()
	c.subjects = compiled
	c.weights = weights
	c.mu.Unlock()
}

// Classify maps text (plus an optional prior-message window) to a subject.
// Deterministic for a given text and config; identical input yields an
// identical result.
func (c *Classifier) Classify(ctx context.Context, text string, history []string) Result {
	text = Truncate(text, maxTextLen)
	if strings.TrimSpace(text) == "" {
		return Result{Subject: SubjectGeneral, Confidence: 0, Scores: map[string]float64{}, Method: MethodKeyword}
	}

	c.mu.RLock()
	subjects, weights := c.subjects, c.weights
	c.mu.RUnlock()

	lower := strings.ToLower(text)
	// Recent context participates with the same signals but the weaker
	// keyword signal only, so a history about code does not hijack a math turn.
	var historyLower string
	if len(history) > 0 {
		historyLower = strings.ToLower(strings.Join(history, "\n"))
	}

	scores := make(map[string]float64, len(subjects))
	usedKeyword, usedPattern, usedEmbedding := false, false, false

	var queryVec []float32
	if c.embedder != nil {
		if res, err := c.embedder.Generate(ctx, text, embedding.TaskClassification); err == nil {
			queryVec = res.Embedding.Values
		}
	}

	for _, cs := range subjects {
		var score float64

		kwHits := countKeywordHits(lower, cs.cfg.Keywords)
		if kwHits == 0 && historyLower != "" {
			// Half credit for context-only keyword evidence.
			if countKeywordHits(historyLower, cs.cfg.Keywords) > 0 {
				score += weights.Keyword / 2
				usedKeyword = true
			}
		}
		if kwHits > 0 {
			score += float64(kwHits) * weights.Keyword
			usedKeyword = true
		}

		patHits := 0
		for _, re := range cs.patterns {
			patHits += len(re.FindAllStringIndex(text, -1))
		}
		if patHits > patternHitCap {
			patHits = patternHitCap
		}
		if patHits > 0 {
			score += float64(patHits) * weights.Pattern
			usedPattern = true
		}

		if queryVec != nil {
			if proto := c.prototypeFor(ctx, cs); proto != nil {
				sim := embedding.CosineSimilarity(queryVec, proto)
				if sim > 0 {
					score += sim * weights.Embedding
					usedEmbedding = true
				}
			}
		}

		scores[string(cs.cfg.Id)] = score
	}

	winner, top := pickWinner(subjects, scores)
	method := MethodKeyword
	switch {
	case usedEmbedding:
		method = MethodHybrid
	case usedKeyword && usedPattern:
		method = MethodHybrid
	case usedPattern && !usedKeyword:
		method = MethodPattern
	}

	if winner == "" || top < weights.Threshold {
		return Result{Subject: SubjectGeneral, Confidence: 0, Scores: scores, Method: method}
	}
	return Result{Subject: winner, Confidence: top, Scores: scores, Method: method}
}

// pickWinner breaks ties by declared priority, then lexicographic id.
func pickWinner(subjects []*compiledSubject, scores map[string]float64) (Subject, float64) {
	type cand struct {
		id       Subject
		score    float64
		priority int
	}
	cands := make([]cand, 0, len(subjects))
	for _, cs := range subjects {
		cands = append(cands, cand{cs.cfg.Id, scores[string(cs.cfg.Id)], cs.cfg.Priority})
	}
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].score != cands[j].score {
			return cands[i].score > cands[j].score
		}
		if cands[i].priority != cands[j].priority {
			return cands[i].priority > cands[j].priority
		}
		return cands[i].id < cands[j].id
	})
	if len(cands) == 0 {
		return "", 0
	}
	return cands[0].id, cands[0].score
}

func (c *Classifier) prototypeFor(ctx context.Context, cs *compiledSubject) []float32 {
	if cs.cfg.Description == "" || c.embedder == nil {
		return nil
	}
	cs.protoOnce.Do(func() {
		res, err := c.embedder.Generate(ctx, cs.cfg.Description, embedding.TaskClassification)
		if err != nil {
			return
		}
		cs.prototype = res.Embedding.Values
	})
	return cs.prototype
}

// Subjects exposes the active subject configs (for GET /subjects).
func (c *Classifier) Subjects() []SubjectConfig {
	c.mu.RLock()
	subjects := c.subjects
	c.mu.RUnlock()
	out := make([]SubjectConfig, 0, len(subjects))
	for _, cs := range subjects {
		out = append(out, cs.cfg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Id < out[j].Id })
	return out
}

func countKeywordHits(lower string, keywords []string) int {
	hits := 0
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(kw)) {
			hits++
		}
	}
	return hits
}

// Truncate cuts text to max bytes at the nearest word boundary before max.
func Truncate(text string, max int) string {
	if len(text) <= max {
		return text
	}
	cut := text[:max]
	if idx := strings.LastIndexAny(cut, " \t\n"); idx > 0 {
		cut = cut[:idx]
	}
	return cut
}
