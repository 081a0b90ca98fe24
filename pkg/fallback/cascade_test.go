package fallback

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-tutor-be/internal/constant"
	"ai-tutor-be/internal/pkg/logger"
	"ai-tutor-be/pkg/classifier"
	"ai-tutor-be/pkg/dispatch"
	"ai-tutor-be/pkg/envelope"
	"ai-tutor-be/pkg/llm"
	"ai-tutor-be/pkg/quota"
	"ai-tutor-be/pkg/routing/registry"
	"ai-tutor-be/pkg/routing/selector"
	"ai-tutor-be/pkg/store"
	"ai-tutor-be/pkg/websearch"
)

// stubProvider replays a fixed error sequence; nil entries succeed.
type stubProvider struct {
	mu          sync.Mutex
	failures    []error
	answer      string
	calls       int
	lastHistory []llm.Message
	blockOnCtx  bool
}

func (p *stubProvider) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (string, error) {
	p.mu.Lock()
	p.calls++
	p.lastHistory = history
	var err error
	if len(p.failures) > 0 {
		err = p.failures[0]
		p.failures = p.failures[1:]
	}
	p.mu.Unlock()

	if p.blockOnCtx {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if err != nil {
		return "", err
	}
	return p.answer, nil
}

func (p *stubProvider) Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	return p.Chat(ctx, []llm.Message{{Role: "user", Content: prompt}}, opts...)
}

func (p *stubProvider) Ping(ctx context.Context) error { return nil }

type stubCreds struct{}

func (stubCreds) Resolve(ctx context.Context, userId uuid.UUID, vendor string) (string, error) {
	return "shared-test-secret", nil
}
func (stubCreds) Invalidate(userId uuid.UUID, vendor string) {}

type noSearch struct{}

func (noSearch) Search(ctx context.Context, query string, limit int) ([]websearch.Hit, error) {
	return nil, fmt.Errorf("search unavailable")
}

type stubIndex struct{}

func (stubIndex) Search(ctx context.Context, userId uuid.UUID, fileIds []uuid.UUID, query string, k int) ([]store.Passage, error) {
	return []store.Passage{{Text: "chapter 3 covers this", Score: 0.9, DocumentName: "notes.pdf"}}, nil
}

// harness wires a real dispatcher and limiter around scripted providers.
type harness struct {
	cascade   *Cascade
	registry  *registry.Registry
	limiter   *quota.Limiter
	providers map[string]*stubProvider
}

func permanent() error { return fmt.Errorf("bad request: %w", llm.ErrContent) }
func authFail() error  { return fmt.Errorf("rejected: %w", llm.ErrAuth) }

func newHarness(backends []registry.Backend, limiterCfg quota.Config) *harness {
	h := &harness{providers: make(map[string]*stubProvider)}
	for _, b := range backends {
		h.providers[b.Id] = &stubProvider{answer: "answer from " + b.Id}
	}

	log := logger.NopLogger{}
	h.registry = registry.New(backends, log)
	h.limiter = quota.NewLimiter(limiterCfg, nil, log)

	dispatcher := dispatch.New(
		stubCreds{}, noSearch{}, stubIndex{}, nil, nil, nil,
		dispatch.Config{
			ConnectTimeout:  time.Second,
			OverallDeadline: 5 * time.Second,
			MaxRetries:      1,
			BackoffBase:     time.Millisecond,
			BackoffCap:      2 * time.Millisecond,
			SearchResults:   3,
			RetrievalTopK:   3,
		},
		log,
		func(b registry.Backend, secret string) (llm.Provider, error) {
			return h.providers[b.Id], nil
		},
	)

	h.cascade = New(h.registry, h.limiter, dispatcher, envelope.NewShaper(), "gen-default", log)
	return h
}

func relaxedLimits() quota.Config {
	return quota.Config{
		DailyLimit:         100,
		BurstLimit:         100,
		BurstWindow:        time.Second,
		MinIntervalMetered: time.Nanosecond,
		MinIntervalLocal:   time.Nanosecond,
	}
}

func testBackends() []registry.Backend {
	tiny := time.Nanosecond
	return []registry.Backend{
		{Id: "math-a", Vendor: "ollama", Priority: 20, MinInterval: tiny,
			Specialties: []classifier.Subject{classifier.SubjectMathematics}},
		{Id: "math-b", Vendor: "ollama", Priority: 15, MinInterval: tiny,
			Specialties: []classifier.Subject{classifier.SubjectMathematics}},
		{Id: "gen-default", Vendor: "ollama", Priority: 10, MinInterval: tiny},
	}
}

func mathQuery() (*store.Query, classifier.Result, *selector.Selection) {
	q := &store.Query{
		Id:           uuid.New(),
		UserId:       uuid.New(),
		Text:         "What is 2 + 2?",
		SystemPrompt: constant.DefaultSystemPromptV1,
	}
	cls := classifier.Result{Subject: classifier.SubjectMathematics, Confidence: 1.0}
	return q, cls, nil
}

func (h *harness) selection(mode store.Mode, subject classifier.Subject) *selector.Selection {
	return &selector.Selection{
		Mode:       mode,
		Subject:    subject,
		Candidates: h.registry.PickFor(subject, time.Now().UTC()),
	}
}

func TestCascadeSpecialistSuccess(t *testing.T) {
	h := newHarness(testBackends(), relaxedLimits())
	q, cls, _ := mathQuery()
	sel := h.selection(store.ModeDirect, cls.Subject)

	out := h.cascade.Run(context.Background(), q, cls, sel)

	require.NotNil(t, out.Envelope)
	assert.Equal(t, FamilyPrimary, out.Envelope.FallbackLevel)
	assert.Equal(t, "math-a", out.Envelope.BackendId)
	assert.Equal(t, store.ModeDirect, out.Envelope.Mode)
	assert.Equal(t, envelope.KindNone, out.Envelope.ErrorKind)
	require.Len(t, out.Attempts, 1)
	assert.Equal(t, dispatch.OutcomeSuccess, out.Attempts[0].Outcome)
}

func TestCascadeGeneralDirectAnswersAtPrimary(t *testing.T) {
	h := newHarness(testBackends(), relaxedLimits())

	q, _, _ := mathQuery()
	q.Text = "Tell me something interesting"
	cls := classifier.Result{Subject: classifier.SubjectGeneral, Confidence: 0}

	out := h.cascade.Run(context.Background(), q, cls, h.selection(store.ModeDirect, cls.Subject))

	require.NotNil(t, out.Envelope)
	assert.Equal(t, FamilyPrimary, out.Envelope.FallbackLevel)
	assert.Equal(t, store.ModeDirect, out.Envelope.Mode)
	assert.Equal(t, "math-a", out.Envelope.BackendId, "priority order holds without a specialist match")
	require.Len(t, out.Attempts, 1)
	assert.Equal(t, dispatch.OutcomeSuccess, out.Attempts[0].Outcome)
}

func TestCascadeForcedRagRunsAtPrimary(t *testing.T) {
	h := newHarness(testBackends(), relaxedLimits())

	q, _, _ := mathQuery()
	q.Text = "Summarize my notes"
	q.Prefs.RagEnabled = true
	q.Prefs.FileIds = []uuid.UUID{uuid.New()}
	cls := classifier.Result{Subject: classifier.SubjectGeneral, Confidence: 0}

	out := h.cascade.Run(context.Background(), q, cls, h.selection(store.ModeRAG, cls.Subject))

	require.NotNil(t, out.Envelope)
	assert.Equal(t, FamilyPrimary, out.Envelope.FallbackLevel)
	assert.Equal(t, store.ModeRAG, out.Envelope.Mode, "forced retrieval is not downgraded")
	require.NotEmpty(t, out.Envelope.Sources)
	assert.Equal(t, "notes.pdf", out.Envelope.Sources[0].Title)
}

func TestCascadeBurstWallYieldsRetryAfter(t *testing.T) {
	cfg := relaxedLimits()
	cfg.BurstLimit = 1
	cfg.BurstWindow = time.Minute
	h := newHarness(testBackends(), cfg)

	q, cls, _ := mathQuery()

	// Fill the user's single burst slot so every admission is refused.
	d := h.limiter.Admit(context.Background(), q.UserId, quota.Target{
		BackendId: "warmup", MinInterval: time.Nanosecond,
	})
	require.True(t, d.OK)

	out := h.cascade.Run(context.Background(), q, cls, h.selection(store.ModeDirect, cls.Subject))

	assert.Nil(t, out.Envelope, "a pure burst wall is surfaced, not degraded to offline")
	assert.Greater(t, out.RetryAfter, time.Duration(0))
	assert.Empty(t, out.Attempts)
}

func TestCascadeWalksToOffline(t *testing.T) {
	h := newHarness(testBackends(), relaxedLimits())
	// Every backend fails permanently on every call.
	for _, p := range h.providers {
		p.failures = []error{permanent(), permanent(), permanent(), permanent()}
	}

	q, cls, _ := mathQuery()
	out := h.cascade.Run(context.Background(), q, cls, h.selection(store.ModeDirect, cls.Subject))

	require.NotNil(t, out.Envelope)
	assert.Equal(t, FamilyOffline, out.Envelope.FallbackLevel)
	assert.Equal(t, store.ModeOffline, out.Envelope.Mode)
	assert.Equal(t, envelope.KindNone, out.Envelope.ErrorKind, "offline degradation is not an error")
	assert.Contains(t, out.Envelope.Answer, "Khan Academy")
	require.NotEmpty(t, out.Envelope.Sources)
	assert.Equal(t, 1.0, out.Envelope.Sources[0].Reliability)

	// One transition per family before handing over.
	assert.Len(t, out.Attempts, 4)
}

func TestCascadeOfflineDeterministic(t *testing.T) {
	run := func() string {
		h := newHarness(testBackends(), relaxedLimits())
		for _, p := range h.providers {
			p.failures = []error{permanent(), permanent(), permanent(), permanent()}
		}
		q, cls, _ := mathQuery()
		out := h.cascade.Run(context.Background(), q, cls, h.selection(store.ModeDirect, cls.Subject))
		require.NotNil(t, out.Envelope)
		return out.Envelope.Answer
	}
	assert.Equal(t, run(), run())
}

func TestCascadeOfflineUnknownSubjectUsesGeneral(t *testing.T) {
	h := newHarness(testBackends(), relaxedLimits())
	for _, p := range h.providers {
		p.failures = []error{permanent(), permanent(), permanent(), permanent()}
	}

	q, _, _ := mathQuery()
	cls := classifier.Result{Subject: "astrology", Confidence: 0.5}
	out := h.cascade.Run(context.Background(), q, cls, h.selection(store.ModeDirect, classifier.SubjectGeneral))

	require.NotNil(t, out.Envelope)
	assert.Equal(t, FamilyOffline, out.Envelope.FallbackLevel)
	assert.Contains(t, out.Envelope.Answer, "Wikipedia")
}

func TestCascadeQuotaPivotWithinFamily(t *testing.T) {
	h := newHarness(testBackends(), relaxedLimits())
	// Vendor-side quota on the first specialist, the second answers.
	h.providers["math-a"].failures = []error{fmt.Errorf("exhausted: %w", llm.ErrQuota)}

	q, cls, _ := mathQuery()
	out := h.cascade.Run(context.Background(), q, cls, h.selection(store.ModeDirect, cls.Subject))

	require.NotNil(t, out.Envelope)
	assert.Equal(t, FamilyPrimary, out.Envelope.FallbackLevel, "pivot stays inside the family")
	assert.Equal(t, "math-b", out.Envelope.BackendId)
	require.Len(t, out.Attempts, 2)
	assert.Equal(t, dispatch.OutcomeQuotaExceeded, out.Attempts[0].Outcome)
	assert.Equal(t, dispatch.OutcomeSuccess, out.Attempts[1].Outcome)
}

func TestCascadeAuthWall(t *testing.T) {
	h := newHarness(testBackends(), relaxedLimits())
	for _, p := range h.providers {
		p.failures = []error{authFail(), authFail(), authFail(), authFail()}
	}

	q, cls, _ := mathQuery()
	out := h.cascade.Run(context.Background(), q, cls, h.selection(store.ModeDirect, cls.Subject))

	require.NotNil(t, out.Envelope)
	assert.Equal(t, envelope.KindUnauthenticated, out.Envelope.ErrorKind)
	assert.NotEmpty(t, out.Attempts)
	for _, at := range out.Attempts {
		assert.Equal(t, dispatch.OutcomeAuthFail, at.Outcome)
	}
}

func TestCascadeDailyQuotaWall(t *testing.T) {
	backends := testBackends()
	for i := range backends {
		backends[i].Metered = true
	}
	cfg := relaxedLimits()
	cfg.DailyLimit = 1
	h := newHarness(backends, cfg)

	q, cls, _ := mathQuery()

	// Burn the single daily slot on an unrelated backend so every cascade
	// admission hits the daily wall, not the interval check.
	d := h.limiter.Admit(context.Background(), q.UserId, quota.Target{
		BackendId: "warmup", Metered: true, MinInterval: time.Nanosecond,
	})
	require.True(t, d.OK)

	out := h.cascade.Run(context.Background(), q, cls, h.selection(store.ModeDirect, cls.Subject))

	require.NotNil(t, out.Envelope)
	assert.Equal(t, FamilyQuota, out.Envelope.FallbackLevel)
	assert.Equal(t, envelope.KindQuotaExceeded, out.Envelope.ErrorKind)
	require.NotNil(t, out.Envelope.ResetTime)
	assert.Contains(t, out.Envelope.Answer, "Daily limit reached")
	assert.Empty(t, out.Attempts, "nothing was dispatched")
}

func TestCascadeCancelledBeforeRun(t *testing.T) {
	h := newHarness(testBackends(), relaxedLimits())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	q, cls, _ := mathQuery()
	out := h.cascade.Run(ctx, q, cls, h.selection(store.ModeDirect, cls.Subject))

	assert.Nil(t, out.Envelope, "a cancelled task yields no envelope")
	assert.Empty(t, out.Attempts)
}

func TestCascadeCancelledMidDispatch(t *testing.T) {
	h := newHarness(testBackends(), relaxedLimits())
	for _, p := range h.providers {
		p.blockOnCtx = true
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	q, cls, _ := mathQuery()
	out := h.cascade.Run(ctx, q, cls, h.selection(store.ModeDirect, cls.Subject))

	assert.Nil(t, out.Envelope)
	require.Len(t, out.Attempts, 1, "the in-flight attempt is recorded, nothing further starts")
	assert.Equal(t, dispatch.OutcomeCancelled, out.Attempts[0].Outcome)
}

func TestCascadeStandardFamilyReducesPrompt(t *testing.T) {
	h := newHarness(testBackends(), relaxedLimits())
	// The top-ranked backend burns the primary, hybrid and multi-AI
	// transitions; the default vendor answers at family 3.
	h.providers["math-a"].failures = []error{permanent(), permanent(), permanent()}

	q, _, _ := mathQuery()
	q.History = []store.Message{
		{Role: "user", Content: "m1"}, {Role: "assistant", Content: "m2"},
		{Role: "user", Content: "m3"}, {Role: "assistant", Content: "m4"},
		{Role: "user", Content: "m5"}, {Role: "assistant", Content: "m6"},
		{Role: "user", Content: "m7"}, {Role: "assistant", Content: "m8"},
	}
	cls := classifier.Result{Subject: classifier.SubjectGeneral, Confidence: 0}

	out := h.cascade.Run(context.Background(), q, cls, h.selection(store.ModeDirect, cls.Subject))

	require.NotNil(t, out.Envelope)
	assert.Equal(t, FamilyStandard, out.Envelope.FallbackLevel)
	assert.Equal(t, "gen-default", out.Envelope.BackendId)

	// The standard family calls with the reduced prompt and half the window.
	p := h.providers["gen-default"]
	p.mu.Lock()
	history := p.lastHistory
	p.mu.Unlock()
	require.NotEmpty(t, history)
	assert.Equal(t, constant.ReducedSystemPromptV1, history[0].Content)
	assert.Len(t, history, 1+constant.HistoryWindowDefault/2+1)
}
