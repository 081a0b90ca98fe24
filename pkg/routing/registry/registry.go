package registry

import (
	"context"
	"sort"
	"sync"
	"time"

	"ai-tutor-be/internal/pkg/logger"
	"ai-tutor-be/pkg/classifier"
	"ai-tutor-be/pkg/events"

	"github.com/ThreeDotsLabs/watermill/message"
)

// Availability of one backend as last observed.
type Availability string

const (
	AvailabilityUnknown       Availability = "unknown"
	AvailabilityAvailable     Availability = "available"
	AvailabilityDegraded      Availability = "degraded"
	AvailabilityQuotaExceeded Availability = "quota-exceeded"
	AvailabilityDown          Availability = "down"
)

// Capabilities a backend declares. The dispatcher switches on these rather
// than on vendor names.
type Capabilities struct {
	Chat   bool
	Stream bool
	Embed  bool
}

// Backend is the registry's descriptor for one LLM backend.
type Backend struct {
	Id            string
	Vendor        string // vendor family: "gemini", "ollama"
	Model         string
	Specialties   []classifier.Subject
	CredentialRef string // vendor key under which user credentials are stored
	Priority      int
	MinInterval   time.Duration
	Metered       bool
	Capabilities  Capabilities
}

// state is the mutable health bookkeeping behind one descriptor.
type state struct {
	desc         Backend
	availability Availability
	reason       string
	until        time.Time // down/degraded expiry; quota-exceeded uses next UTC midnight
	successes    int64
	failures     int64
	latencyEWMA  time.Duration
}

// Snapshot is the read-only view handed out to callers.
type Snapshot struct {
	Backend
	Availability Availability
	Reason       string
	Until        time.Time
	SuccessRate  float64
	LatencyEWMA  time.Duration
}

// Registry owns all backend descriptors. Mutations happen only here, driven
// by health events and probes; reads return copies.
type Registry struct {
	mu       sync.RWMutex
	backends map[string]*state
	order    []string // registration order, for stable listing
	log      logger.ILogger
}

func New(backends []Backend, log logger.ILogger) *Registry {
	r := &Registry{
		backends: make(map[string]*state, len(backends)),
		log:      log,
	}
	for _, b := range backends {
		r.backends[b.Id] = &state{desc: b, availability: AvailabilityUnknown}
		r.order = append(r.order, b.Id)
	}
	return r
}

// List returns a stable-ordered snapshot of every backend.
func (r *Registry) List() []Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Snapshot, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.snapshotLocked(r.backends[id]))
	}
	return out
}

// Get returns one backend snapshot.
func (r *Registry) Get(id string) (Snapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.backends[id]
	if !ok {
		return Snapshot{}, false
	}
	return r.snapshotLocked(st), true
}

// PickFor returns the ordered candidate list for a subject: specialists first
// (priority, then descending success rate), then generalists, then degraded
// entries as last resort. Backends marked quota-exceeded or down are skipped
// while their window holds.
func (r *Registry) PickFor(subject classifier.Subject, now time.Time) []Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var specialists, generalists, degraded []Snapshot
	for _, id := range r.order {
		st := r.backends[id]
		snap := r.snapshotLocked(st)
		switch st.availability {
		case AvailabilityQuotaExceeded, AvailabilityDown:
			if now.Before(st.until) {
				continue // still inside the exclusion window
			}
			// Window elapsed, treat as unknown again.
			snap.Availability = AvailabilityUnknown
		case AvailabilityDegraded:
			degraded = append(degraded, snap)
			continue
		}
		if hasSpecialty(st.desc.Specialties, subject) {
			specialists = append(specialists, snap)
		} else {
			generalists = append(generalists, snap)
		}
	}

	byRank := func(list []Snapshot) {
		sort.SliceStable(list, func(i, j int) bool {
			if list[i].Priority != list[j].Priority {
				return list[i].Priority > list[j].Priority
			}
			return list[i].SuccessRate > list[j].SuccessRate
		})
	}
	byRank(specialists)
	byRank(generalists)
	byRank(degraded)

	out := append(specialists, generalists...)
	return append(out, degraded...)
}

// Generalists returns every non-excluded backend that is not a specialist for
// any particular subject requirement, ordered as PickFor orders them.
func (r *Registry) Generalists(now time.Time) []Snapshot {
	return r.PickFor(classifier.SubjectGeneral, now)
}

func (r *Registry) MarkAvailable(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if st, ok := r.backends[id]; ok {
		st.availability = AvailabilityAvailable
		st.reason = ""
		st.until = time.Time{}
	}
}

func (r *Registry) MarkDegraded(id, reason string, until time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if st, ok := r.backends[id]; ok {
		st.availability = AvailabilityDegraded
		st.reason = reason
		st.until = until
	}
}

func (r *Registry) MarkDown(id, reason string, until time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if st, ok := r.backends[id]; ok {
		st.availability = AvailabilityDown
		st.reason = reason
		st.until = until
	}
}

// MarkQuotaExceeded excludes the backend until the next UTC midnight.
func (r *Registry) MarkQuotaExceeded(id string, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if st, ok := r.backends[id]; ok {
		st.availability = AvailabilityQuotaExceeded
		st.reason = "vendor quota exhausted"
		st.until = NextUTCMidnight(now)
	}
}

// RecordOutcome folds one attempt outcome into the health stats.
func (r *Registry) RecordOutcome(id string, success bool, latency time.Duration, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.backends[id]
	if !ok {
		return
	}
	if success {
		st.successes++
		st.availability = AvailabilityAvailable
		st.reason = ""
	} else {
		st.failures++
	}
	if latency > 0 {
		if st.latencyEWMA == 0 {
			st.latencyEWMA = latency
		} else {
			// alpha = 0.2
			st.latencyEWMA = (st.latencyEWMA*4 + latency) / 5
		}
	}
}

// Consume applies health signals from the dispatcher's event channel until
// the subscription closes. Run it on its own goroutine.
func (r *Registry) Consume(ctx context.Context, messages <-chan *message.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			sig, err := events.UnmarshalHealthSignal(msg.Payload)
			if err != nil {
				r.log.Warn("registry", "dropping malformed health signal", map[string]interface{}{"error": err.Error()})
				msg.Ack()
				continue
			}
			r.apply(sig)
			msg.Ack()
		}
	}
}

func (r *Registry) apply(sig Signal) {
	now := sig.At
	if now.IsZero() {
		now = time.Now().UTC()
	}
	switch sig.Outcome {
	case "success":
		r.RecordOutcome(sig.BackendId, true, sig.Latency, now)
	case "quota-exceeded":
		r.RecordOutcome(sig.BackendId, false, sig.Latency, now)
		r.MarkQuotaExceeded(sig.BackendId, now)
	case "timeout", "transport-error":
		r.RecordOutcome(sig.BackendId, false, sig.Latency, now)
		r.MarkDegraded(sig.BackendId, sig.Outcome, now.Add(5*time.Minute))
	case "auth-fail":
		r.RecordOutcome(sig.BackendId, false, sig.Latency, now)
		r.MarkDegraded(sig.BackendId, sig.Outcome, now.Add(15*time.Minute))
	default:
		r.RecordOutcome(sig.BackendId, false, sig.Latency, now)
	}
}

// Signal aliases the event payload so registry callers need not import events.
type Signal = events.HealthSignal

func (r *Registry) snapshotLocked(st *state) Snapshot {
	total := st.successes + st.failures
	rate := 1.0 // optimistic before any data
	if total > 0 {
		rate = float64(st.successes) / float64(total)
	}
	return Snapshot{
		Backend:      st.desc,
		Availability: st.availability,
		Reason:       st.reason,
		Until:        st.until,
		SuccessRate:  rate,
		LatencyEWMA:  st.latencyEWMA,
	}
}

func hasSpecialty(specialties []classifier.Subject, subject classifier.Subject) bool {
	for _, s := range specialties {
		if s == subject {
			return true
		}
	}
	return false
}

// NextUTCMidnight returns the first instant of the next UTC day.
func NextUTCMidnight(now time.Time) time.Time {
	u := now.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC).Add(24 * time.Hour)
}
