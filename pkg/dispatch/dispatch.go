package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ai-tutor-be/internal/pkg/logger"
	"ai-tutor-be/pkg/agents"
	"ai-tutor-be/pkg/events"
	"ai-tutor-be/pkg/llm"
	"ai-tutor-be/pkg/retrieval"
	"ai-tutor-be/pkg/routing/registry"
	"ai-tutor-be/pkg/store"
	"ai-tutor-be/pkg/websearch"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
)

// Outcome classifies one attempt.
type Outcome string

const (
	OutcomeSuccess       Outcome = "success"
	OutcomeTimeout       Outcome = "timeout"
	OutcomeAuthFail      Outcome = "auth-fail"
	OutcomeQuotaExceeded Outcome = "quota-exceeded"
	OutcomeTransport     Outcome = "transport-error"
	OutcomeContent       Outcome = "content-error"
	OutcomeCancelled     Outcome = "cancelled"
)

// Transient reports whether the outcome class is retryable within the same
// backend family.
func (o Outcome) Transient() bool {
	return o == OutcomeTimeout || o == OutcomeTransport
}

// Attempt is one dispatch against one backend (or one deep-research stage).
type Attempt struct {
	BackendId string
	Stage     string // "" for single-stage modes
	Start     time.Time
	End       time.Time
	Outcome   Outcome
	Bytes     int
	Latency   time.Duration
}

// Result is the normalized payload handed to the response shaper.
type Result struct {
	Answer        string
	Sources       []store.Source
	SourcesFailed bool // answer produced but source retrieval failed
	AgentName     string
}

// CredentialResolver yields the secret to use for (user, vendor), falling
// back to shared admin keys when the user allows it. A resolution failure
// means Unauthenticated.
type CredentialResolver interface {
	Resolve(ctx context.Context, userId uuid.UUID, vendor string) (string, error)
	// Invalidate drops the cached binding after an auth-fail outcome.
	Invalidate(userId uuid.UUID, vendor string)
}

// HealthPublisher emits attempt outcomes on the registry's event channel.
type HealthPublisher interface {
	PublishHealth(sig events.HealthSignal)
}

// TelemetrySink receives attempt events; implementations are best-effort.
type TelemetrySink interface {
	Publish(ctx context.Context, event events.Event) error
}

// Config holds per-attempt policy.
type Config struct {
	ConnectTimeout  time.Duration
	OverallDeadline time.Duration
	MaxRetries      uint64
	BackoffBase     time.Duration
	BackoffCap      time.Duration
	SearchResults   int
	RetrievalTopK   int
}

func DefaultConfig() Config {
	return Config{
		ConnectTimeout:  10 * time.Second,
		OverallDeadline: 30 * time.Second,
		MaxRetries:      3,
		BackoffBase:     1 * time.Second,
		BackoffCap:      10 * time.Second,
		SearchResults:   5,
		RetrievalTopK:   5,
	}
}

// Dispatcher executes the selected mode against the selected backend. It
// never raises to callers: every path returns a result or a classified
// attempt outcome for the cascade to act on.
type Dispatcher struct {
	creds     CredentialResolver
	searcher  websearch.Searcher
	index     retrieval.Index
	agents    *agents.Registry
	health    HealthPublisher
	telemetry TelemetrySink
	cfg       Config
	log       logger.ILogger
	newProv   func(b registry.Backend, secret string) (llm.Provider, error)
}

func New(
	creds CredentialResolver,
	searcher websearch.Searcher,
	index retrieval.Index,
	agentReg *agents.Registry,
	health HealthPublisher,
	telemetry TelemetrySink,
	cfg Config,
	log logger.ILogger,
	newProvider func(b registry.Backend, secret string) (llm.Provider, error),
) *Dispatcher {
	if cfg.OverallDeadline <= 0 {
		cfg = DefaultConfig()
	}
	return &Dispatcher{
		creds:     creds,
		searcher:  searcher,
		index:     index,
		agents:    agentReg,
		health:    health,
		telemetry: telemetry,
		cfg:       cfg,
		log:       log,
		newProv:   newProvider,
	}
}

// Execute runs one mode against one backend. The returned attempts always
// contain at least one element; the last one carries the decisive outcome.
func (d *Dispatcher) Execute(ctx context.Context, q *store.Query, mode store.Mode, backend registry.Snapshot) (*Result, []Attempt) {
	secret, err := d.creds.Resolve(ctx, q.UserId, backend.Vendor)
	if err != nil {
		at := d.finishAttempt(ctx, q, Attempt{BackendId: backend.Id, Start: time.Now()}, 0, OutcomeAuthFail)
		return nil, []Attempt{at}
	}

	provider, err := d.newProv(backend.Backend, secret)
	if err != nil {
		at := d.finishAttempt(ctx, q, Attempt{BackendId: backend.Id, Start: time.Now()}, 0, OutcomeContent)
		return nil, []Attempt{at}
	}

	switch mode {
	case store.ModeDirect, store.ModeOffline:
		return d.direct(ctx, q, backend, provider, nil, nil)
	case store.ModeRAG:
		return d.rag(ctx, q, backend, provider)
	case store.ModeWebSearch:
		return d.webSearch(ctx, q, backend, provider)
	case store.ModeDeepResearch:
		return d.deepResearch(ctx, q, backend, provider)
	case store.ModeAgent:
		return d.agent(ctx, q, backend, provider)
	default:
		at := d.finishAttempt(ctx, q, Attempt{BackendId: backend.Id, Start: time.Now()}, 0, OutcomeContent)
		return nil, []Attempt{at}
	}
}

// direct performs the plain chat call, with optional extra context and
// sources already gathered by a richer mode.
func (d *Dispatcher) direct(ctx context.Context, q *store.Query, backend registry.Snapshot, provider llm.Provider, contextBlock []string, sources []store.Source) (*Result, []Attempt) {
	history := d.buildHistory(q, contextBlock)

	answer, attempt := d.callWithRetry(ctx, q, backend, "", func(callCtx context.Context) (string, error) {
		return provider.Chat(callCtx, history, llm.WithModel(preferredModel(q, backend)))
	})
	if attempt.Outcome != OutcomeSuccess {
		return nil, []Attempt{attempt}
	}
	return &Result{Answer: answer, Sources: sources}, []Attempt{attempt}
}

// rag retrieves top-k passages for the user's selected files and attaches
// them as context. Retrieval failure is a partial success, not an error.
func (d *Dispatcher) rag(ctx context.Context, q *store.Query, backend registry.Snapshot, provider llm.Provider) (*Result, []Attempt) {
	var contextBlock []string
	var sources []store.Source
	sourcesFailed := false

	passages, err := d.index.Search(ctx, q.UserId, q.Prefs.FileIds, q.Text, d.cfg.RetrievalTopK)
	if err != nil {
		d.log.Warn("dispatch", "passage retrieval failed, continuing without context", map[string]interface{}{
			"query_id": q.Id.String(),
			"error":    err.Error(),
		})
		sourcesFailed = true
	} else {
		for _, p := range passages {
			contextBlock = append(contextBlock, fmt.Sprintf("[%s] %s", p.DocumentName, p.Text))
			sources = append(sources, store.Source{
				Title:       p.DocumentName,
				Snippet:     snippet(p.Text),
				Reliability: p.Score,
			})
		}
	}

	res, attempts := d.direct(ctx, q, backend, provider, contextBlock, sources)
	if res != nil {
		res.SourcesFailed = sourcesFailed
		if sourcesFailed {
			res.Sources = []store.Source{}
		}
	}
	return res, attempts
}

// webSearch collects titled snippets and answers with them as context.
func (d *Dispatcher) webSearch(ctx context.Context, q *store.Query, backend registry.Snapshot, provider llm.Provider) (*Result, []Attempt) {
	var contextBlock []string
	var sources []store.Source
	sourcesFailed := false

	hits, err := d.searcher.Search(ctx, q.Text, d.cfg.SearchResults)
	if err != nil {
		d.log.Warn("dispatch", "web search failed, continuing without sources", map[string]interface{}{
			"query_id": q.Id.String(),
			"error":    err.Error(),
		})
		sourcesFailed = true
	} else {
		sources = websearch.ToSources(hits)
		for _, h := range hits {
			contextBlock = append(contextBlock, fmt.Sprintf("%s (%s): %s", h.Title, h.URL, h.Snippet))
		}
	}

	res, attempts := d.direct(ctx, q, backend, provider, contextBlock, sources)
	if res != nil {
		res.SourcesFailed = sourcesFailed
		if sourcesFailed {
			res.Sources = []store.Source{}
		}
	}
	return res, attempts
}

// agent dispatches to the best-matching registered handler; without a match
// it behaves as a direct call.
func (d *Dispatcher) agent(ctx context.Context, q *store.Query, backend registry.Snapshot, provider llm.Provider) (*Result, []Attempt) {
	handler := d.agents.Pick(q)
	if handler == nil {
		return d.direct(ctx, q, backend, provider, nil, nil)
	}

	answer, attempt := d.callWithRetry(ctx, q, backend, "agent:"+handler.Name(), func(callCtx context.Context) (string, error) {
		return handler.Handle(callCtx, q, provider)
	})
	if attempt.Outcome != OutcomeSuccess {
		return nil, []Attempt{attempt}
	}
	return &Result{Answer: answer, AgentName: handler.Name()}, []Attempt{attempt}
}

// callWithRetry runs one logical backend call with deadline, retry and
// outcome classification. Only transient classes are retried.
func (d *Dispatcher) callWithRetry(ctx context.Context, q *store.Query, backend registry.Snapshot, stage string, call func(context.Context) (string, error)) (string, Attempt) {
	attempt := Attempt{BackendId: backend.Id, Stage: stage, Start: time.Now()}

	callCtx, cancel := context.WithTimeout(ctx, d.cfg.OverallDeadline)
	defer cancel()

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = d.cfg.BackoffBase
	expo.MaxInterval = d.cfg.BackoffCap
	expo.MaxElapsedTime = d.cfg.OverallDeadline

	var answer string
	operation := func() error {
		out, err := call(callCtx)
		if err != nil {
			if transientError(err) {
				return err // retryable
			}
			return backoff.Permanent(err)
		}
		answer = out
		return nil
	}

	err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(expo, d.cfg.MaxRetries), callCtx))

	outcome := classify(ctx, callCtx, err)
	attempt = d.finishAttempt(ctx, q, attempt, len(answer), outcome)
	if outcome == OutcomeAuthFail {
		d.creds.Invalidate(q.UserId, backend.Vendor)
	}
	return answer, attempt
}

func (d *Dispatcher) finishAttempt(ctx context.Context, q *store.Query, attempt Attempt, bytes int, outcome Outcome) Attempt {
	attempt.End = time.Now()
	attempt.Latency = attempt.End.Sub(attempt.Start)
	attempt.Outcome = outcome
	attempt.Bytes = bytes

	if d.health != nil {
		d.health.PublishHealth(events.HealthSignal{
			BackendId: attempt.BackendId,
			Outcome:   string(outcome),
			Latency:   attempt.Latency,
			At:        attempt.End.UTC(),
		})
	}
	if d.telemetry != nil {
		// Cancelled tasks still record their attempt for telemetry.
		_ = d.telemetry.Publish(context.WithoutCancel(ctx),
			events.NewAttemptEvent(attempt.BackendId, string(outcome), attempt.Latency, q.UserId.String()))
	}
	return attempt
}

// buildHistory assembles system prompt, context block, bounded prior window
// and the query itself, in send order.
func (d *Dispatcher) buildHistory(q *store.Query, contextBlock []string) []llm.Message {
	history := make([]llm.Message, 0, len(q.History)+3)
	if q.SystemPrompt != "" {
		history = append(history, llm.Message{Role: "system", Content: q.SystemPrompt})
	}
	if len(contextBlock) > 0 {
		history = append(history, llm.Message{
			Role:    "user",
			Content: "Use the following context when answering:\n\n" + strings.Join(contextBlock, "\n---\n"),
		})
		history = append(history, llm.Message{Role: "assistant", Content: "Understood. I will ground my answer in that context."})
	}
	for _, m := range q.History {
		history = append(history, llm.Message{Role: m.Role, Content: m.Content})
	}
	history = append(history, llm.Message{Role: "user", Content: q.Text})
	return history
}

// classify maps the final error to an attempt outcome. The parent ctx is
// checked first so a caller cancel never masquerades as a timeout.
func classify(parent, call context.Context, err error) Outcome {
	if err == nil {
		return OutcomeSuccess
	}
	if parent.Err() != nil && errors.Is(parent.Err(), context.Canceled) {
		return OutcomeCancelled
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded) || call.Err() == context.DeadlineExceeded:
		return OutcomeTimeout
	case errors.Is(err, llm.ErrAuth):
		return OutcomeAuthFail
	case errors.Is(err, llm.ErrQuota):
		return OutcomeQuotaExceeded
	case errors.Is(err, llm.ErrOverload):
		return OutcomeTransport
	case errors.Is(err, llm.ErrContent):
		return OutcomeContent
	default:
		return OutcomeTransport
	}
}

func transientError(err error) bool {
	if errors.Is(err, llm.ErrAuth) || errors.Is(err, llm.ErrQuota) || errors.Is(err, llm.ErrContent) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	// Overloaded, 5xx and plain network failures are retryable.
	return true
}

func preferredModel(q *store.Query, backend registry.Snapshot) string {
	if q.Prefs.Model != "" && q.Prefs.ModelFamily == backend.Vendor {
		return q.Prefs.Model
	}
	return ""
}

func snippet(text string) string {
	const max = 200
	if len(text) <= max {
		return text
	}
	return text[:max] + "…"
}
