package fallback

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ai-tutor-be/internal/constant"
	"ai-tutor-be/internal/pkg/logger"
	"ai-tutor-be/pkg/classifier"
	"ai-tutor-be/pkg/dispatch"
	"ai-tutor-be/pkg/envelope"
	"ai-tutor-be/pkg/quota"
	"ai-tutor-be/pkg/routing/registry"
	"ai-tutor-be/pkg/routing/selector"
	"ai-tutor-be/pkg/store"
)

// Family indices. The final envelope's fallback level equals the family of
// the succeeding attempt; family 0 is the primary selection, untouched.
const (
	FamilyPrimary  = 0
	FamilyHybrid   = 1
	FamilyMultiAI  = 2
	FamilyStandard = 3
	FamilyOffline  = 4
	FamilyQuota    = 5
)

// Outcome bundles the envelope with the attempt trail for telemetry.
// RetryAfter is set, with a nil envelope, when rate limiting was the only
// thing standing between the query and a backend.
type Outcome struct {
	Envelope   *envelope.Envelope
	Attempts   []dispatch.Attempt
	RetryAfter time.Duration
}

// Cascade walks the family chain for a single query. It always terminates:
// the offline family is local and deterministic, so it cannot fail.
type Cascade struct {
	registry   *registry.Registry
	limiter    *quota.Limiter
	dispatcher *dispatch.Dispatcher
	shaper     *envelope.Shaper
	defaultId  string // family-3 default vendor backend id
	log        logger.ILogger
}

func New(
	reg *registry.Registry,
	limiter *quota.Limiter,
	dispatcher *dispatch.Dispatcher,
	shaper *envelope.Shaper,
	defaultBackendId string,
	log logger.ILogger,
) *Cascade {
	return &Cascade{
		registry:   reg,
		limiter:    limiter,
		dispatcher: dispatcher,
		shaper:     shaper,
		defaultId:  defaultBackendId,
		log:        log,
	}
}

// run bookkeeping across one query.
type walk struct {
	attempts    []dispatch.Attempt
	dispatched  bool // at least one real backend call happened
	quotaDenied bool // at least one admit was refused for daily budget
	rateDenied  bool // at least one admit was refused for burst or interval
	authOnly    bool // every dispatched attempt failed authentication
	resetTime   time.Time
	retryAfter  time.Duration
}

// Run executes the cascade. A cancelled context yields a nil envelope, as
// does an admission wall with no other blockers (RetryAfter set instead);
// every other path yields exactly one.
func (c *Cascade) Run(ctx context.Context, q *store.Query, cls classifier.Result, sel *selector.Selection) *Outcome {
	w := &walk{authOnly: true}

	for family := FamilyPrimary; family <= FamilyStandard; family++ {
		if ctx.Err() != nil {
			return &Outcome{Attempts: w.attempts}
		}

		mode, candidates := c.plan(family, q, cls, sel)
		if len(candidates) == 0 {
			continue
		}

		env := c.tryFamily(ctx, q, cls, family, mode, candidates, w)
		if env != nil {
			return &Outcome{Envelope: env, Attempts: w.attempts}
		}
	}

	if ctx.Err() != nil {
		return &Outcome{Attempts: w.attempts}
	}

	// Nothing answered. Unauthenticated surfaces directly when it was the
	// only blocker; a pure quota wall yields the informational family 5; a
	// pure burst wall surfaces as a retryable denial; anything else degrades
	// to the deterministic offline family 4.
	switch {
	case w.dispatched && w.authOnly:
		return &Outcome{
			Envelope: c.shaper.Error(envelope.KindUnauthenticated,
				"No usable credential for any configured backend. Add a key under Settings → Keys.",
				sel.Mode, q.RequestedModeTag, cls, FamilyStandard),
			Attempts: w.attempts,
		}
	case !w.dispatched && w.quotaDenied:
		reset := w.resetTime
		if reset.IsZero() {
			reset = c.limiter.ResetTime()
		}
		answer := fmt.Sprintf(constant.QuotaExceededTemplateV1, reset.Format("15:04, Jan 2"))
		return &Outcome{
			Envelope: c.shaper.QuotaExceeded(answer, q.RequestedModeTag, cls, reset),
			Attempts: w.attempts,
		}
	case !w.dispatched && w.rateDenied:
		return &Outcome{Attempts: w.attempts, RetryAfter: w.retryAfter}
	default:
		return &Outcome{
			Envelope: c.offline(q, cls),
			Attempts: w.attempts,
		}
	}
}

// plan resolves the mode and candidate list for one family.
func (c *Cascade) plan(family int, q *store.Query, cls classifier.Result, sel *selector.Selection) (store.Mode, []registry.Snapshot) {
	now := time.Now().UTC()
	switch family {
	case FamilyPrimary:
		// The selection runs as-is: its mode, its full candidate list with
		// specialists already ranked first.
		return sel.Mode, sel.Candidates
	case FamilyHybrid:
		// Web search plus synthesis on the best remaining backend.
		return store.ModeWebSearch, topN(c.registry.PickFor(cls.Subject, now), 1)
	case FamilyMultiAI:
		// Any generalist vendor, plain direct call.
		return store.ModeDirect, c.registry.Generalists(now)
	case FamilyStandard:
		// Single default vendor with a reduced prompt.
		if snap, ok := c.registry.Get(c.defaultId); ok {
			return store.ModeDirect, []registry.Snapshot{snap}
		}
		return store.ModeDirect, nil
	default:
		return store.ModeOffline, nil
	}
}

// tryFamily makes one transition into the family. Quota denials pivot to the
// next backend in the same family; transient exhaustion hands over to the
// next family.
func (c *Cascade) tryFamily(ctx context.Context, q *store.Query, cls classifier.Result, family int, mode store.Mode, candidates []registry.Snapshot, w *walk) *envelope.Envelope {
	fq := q
	if family == FamilyStandard {
		fq = reducedQuery(q)
	}

	for _, backend := range candidates {
		if ctx.Err() != nil {
			return nil
		}

		decision := c.limiter.Admit(ctx, q.UserId, quota.Target{
			BackendId:   backend.Id,
			Metered:     backend.Metered,
			MinInterval: backend.MinInterval,
		})
		if !decision.OK {
			if decision.Reason == quota.ReasonDailyLimit {
				w.quotaDenied = true
				w.resetTime = decision.ResetTime
				continue // pivot within the family
			}
			// Burst/interval denials also pivot rather than block the task.
			w.rateDenied = true
			if decision.RetryAfter > w.retryAfter {
				w.retryAfter = decision.RetryAfter
			}
			c.log.Info("cascade", "admission denied, pivoting", map[string]interface{}{
				"backend": backend.Id,
				"reason":  decision.Reason,
			})
			continue
		}

		result, attempts := c.dispatcher.Execute(ctx, fq, mode, backend)
		w.attempts = append(w.attempts, attempts...)
		w.dispatched = true
		if len(attempts) == 0 {
			continue
		}

		last := attempts[len(attempts)-1]
		switch last.Outcome {
		case dispatch.OutcomeSuccess:
			w.authOnly = false
			return c.shaper.Success(
				result.Answer, mode, q.RequestedModeTag, backend.Id, result.AgentName,
				cls, result.Sources, result.SourcesFailed, family, nil,
			)
		case dispatch.OutcomeCancelled:
			return nil
		case dispatch.OutcomeQuotaExceeded:
			// Vendor-side quota: the backend is excluded until UTC midnight,
			// the family pivots to its next member.
			w.authOnly = false
			w.quotaDenied = true
			continue
		case dispatch.OutcomeAuthFail:
			continue
		default:
			// Transient exhausted or permanent failure: one transition per
			// family, move on.
			w.authOnly = false
			return nil
		}
	}
	return nil
}

// offline renders the deterministic family-4 envelope.
func (c *Cascade) offline(q *store.Query, cls classifier.Result) *envelope.Envelope {
	subject := string(cls.Subject)
	tmpl, ok := constant.OfflineTemplates[subject]
	if !ok {
		tmpl = constant.OfflineTemplates["general"]
		subject = "general"
	}

	links := constant.OfflineLinks[subject]
	var sb strings.Builder
	sources := make([]store.Source, 0, len(links))
	for _, l := range links {
		fmt.Fprintf(&sb, "- [%s](%s)\n", l.Title, l.URL)
		sources = append(sources, store.Source{Title: l.Title, URL: l.URL, Reliability: 1})
	}

	return c.shaper.Offline(fmt.Sprintf(tmpl, sb.String()), q.RequestedModeTag, cls, sources)
}

// reducedQuery strips the prompt down for the standard family: short system
// prompt, half the history window.
func reducedQuery(q *store.Query) *store.Query {
	reduced := *q
	reduced.SystemPrompt = constant.ReducedSystemPromptV1
	if n := len(q.History); n > constant.HistoryWindowDefault/2 {
		reduced.History = q.History[n-constant.HistoryWindowDefault/2:]
	}
	return &reduced
}

func topN(list []registry.Snapshot, n int) []registry.Snapshot {
	if len(list) <= n {
		return list
	}
	return list[:n]
}
