package dispatch

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"ai-tutor-be/pkg/llm"
	"ai-tutor-be/pkg/routing/registry"
	"ai-tutor-be/pkg/store"
	"ai-tutor-be/pkg/websearch"
)

const maxSubQueries = 3

// deepResearch runs the multi-stage pipeline: decompose the query, retrieve
// from multiple sources per sub-query, keep facts confirmed by at least two
// distinct sources, then synthesize. Every stage is its own Attempt.
func (d *Dispatcher) deepResearch(ctx context.Context, q *store.Query, backend registry.Snapshot, provider llm.Provider) (*Result, []Attempt) {
	var attempts []Attempt

	// Stage 1: decompose.
	subQueries, attempt := d.decompose(ctx, q, backend, provider)
	attempts = append(attempts, attempt)
	if attempt.Outcome != OutcomeSuccess {
		return nil, attempts
	}

	// Stage 2: retrieve per sub-query. Partial retrieval failures degrade to
	// whatever evidence was collected.
	evidence, sources, attempt := d.gatherEvidence(ctx, q, backend, subQueries)
	attempts = append(attempts, attempt)
	sourcesFailed := attempt.Outcome != OutcomeSuccess

	// Stage 3: cross-verify by overlap across hosts.
	verified := crossVerify(evidence)

	// Stage 4: synthesize.
	history := d.buildHistory(q, verified)
	answer, attempt := d.callWithRetry(ctx, q, backend, "synthesize", func(callCtx context.Context) (string, error) {
		return provider.Chat(callCtx, history, llm.WithModel(preferredModel(q, backend)))
	})
	attempts = append(attempts, attempt)
	if attempt.Outcome != OutcomeSuccess {
		return nil, attempts
	}

	res := &Result{Answer: answer, Sources: sources, SourcesFailed: sourcesFailed}
	if sourcesFailed {
		res.Sources = []store.Source{}
	}
	return res, attempts
}

// decompose asks the model to split the query into at most three sub-queries.
func (d *Dispatcher) decompose(ctx context.Context, q *store.Query, backend registry.Snapshot, provider llm.Provider) ([]string, Attempt) {
	prompt := fmt.Sprintf(
		"Split the following question into at most %d short, independent search queries, one per line, no numbering:\n\n%s",
		maxSubQueries, q.Text,
	)
	raw, attempt := d.callWithRetry(ctx, q, backend, "decompose", func(callCtx context.Context) (string, error) {
		return provider.Generate(callCtx, prompt, llm.WithModel(preferredModel(q, backend)))
	})
	if attempt.Outcome != OutcomeSuccess {
		return nil, attempt
	}

	var subQueries []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(line, "-*0123456789. "))
		if line == "" {
			continue
		}
		subQueries = append(subQueries, line)
		if len(subQueries) == maxSubQueries {
			break
		}
	}
	if len(subQueries) == 0 {
		subQueries = []string{q.Text}
	}
	return subQueries, attempt
}

// gatherEvidence searches every sub-query. The stage succeeds if any search
// returned hits.
func (d *Dispatcher) gatherEvidence(ctx context.Context, q *store.Query, backend registry.Snapshot, subQueries []string) (map[string][]string, []store.Source, Attempt) {
	attempt := Attempt{BackendId: backend.Id, Stage: "retrieve", Start: time.Now()}

	evidence := make(map[string][]string) // snippet text -> hosts that stated it
	var sources []store.Source
	anyHit := false

	for _, sub := range subQueries {
		hits, err := d.searcher.Search(ctx, sub, d.cfg.SearchResults)
		if err != nil {
			d.log.Warn("dispatch", "deep-research retrieval failed for sub-query", map[string]interface{}{
				"query_id": q.Id.String(),
				"error":    err.Error(),
			})
			continue
		}
		anyHit = anyHit || len(hits) > 0
		for _, h := range hits {
			key := normalizeFact(h.Snippet)
			if key == "" {
				continue
			}
			evidence[key] = append(evidence[key], hostOf(h.URL))
		}
		sources = append(sources, websearch.ToSources(hits)...)
	}

	outcome := OutcomeSuccess
	if !anyHit {
		outcome = OutcomeTransport
	}
	if ctx.Err() != nil {
		outcome = OutcomeCancelled
	}
	attempt.End = time.Now()
	attempt.Latency = attempt.End.Sub(attempt.Start)
	attempt.Outcome = outcome
	return evidence, sources, attempt
}

// crossVerify keeps facts stated by two or more distinct hosts. With too
// little corroborated material it falls back to everything gathered, so a
// thin result set still produces an answer.
func crossVerify(evidence map[string][]string) []string {
	var verified, all []string
	for fact, hosts := range evidence {
		all = append(all, fact)
		if distinctCount(hosts) >= 2 {
			verified = append(verified, fact)
		}
	}
	if len(verified) == 0 {
		return all
	}
	return verified
}

func distinctCount(hosts []string) int {
	seen := make(map[string]struct{}, len(hosts))
	for _, h := range hosts {
		seen[h] = struct{}{}
	}
	return len(seen)
}

// normalizeFact collapses a snippet into a comparable key.
func normalizeFact(snippet string) string {
	s := strings.ToLower(strings.TrimSpace(snippet))
	if len(s) > 160 {
		s = s[:160]
	}
	return s
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	return u.Host
}
