package registry

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-tutor-be/internal/pkg/logger"
	"ai-tutor-be/pkg/classifier"
	"ai-tutor-be/pkg/events"
)

func testBackends() []Backend {
	return []Backend{
		{Id: "math-specialist", Vendor: "ollama", Priority: 20, Specialties: []classifier.Subject{classifier.SubjectMathematics}},
		{Id: "gemini-flash", Vendor: "gemini", Priority: 15, Metered: true},
		{Id: "ollama-default", Vendor: "ollama", Priority: 10},
	}
}

func newTestRegistry() *Registry {
	return New(testBackends(), logger.NopLogger{})
}

func TestListStableOrder(t *testing.T) {
	r := newTestRegistry()
	snaps := r.List()
	require.Len(t, snaps, 3)
	assert.Equal(t, "math-specialist", snaps[0].Id)
	assert.Equal(t, "gemini-flash", snaps[1].Id)
	assert.Equal(t, "ollama-default", snaps[2].Id)
}

func TestPickForSpecialistsFirst(t *testing.T) {
	r := newTestRegistry()
	now := time.Now().UTC()

	picks := r.PickFor(classifier.SubjectMathematics, now)
	require.Len(t, picks, 3)
	assert.Equal(t, "math-specialist", picks[0].Id, "specialists lead the candidate list")
	assert.Equal(t, "gemini-flash", picks[1].Id, "generalists rank by priority")
	assert.Equal(t, "ollama-default", picks[2].Id)
}

func TestPickForSkipsExcludedUntilWindowLapses(t *testing.T) {
	r := newTestRegistry()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	r.MarkQuotaExceeded("gemini-flash", now)

	picks := r.PickFor(classifier.SubjectGeneral, now)
	for _, p := range picks {
		assert.NotEqual(t, "gemini-flash", p.Id, "quota-excluded backends stay out until midnight")
	}

	// The exclusion lapses at the next UTC midnight.
	afterMidnight := time.Date(2026, 3, 11, 0, 0, 1, 0, time.UTC)
	picks = r.PickFor(classifier.SubjectGeneral, afterMidnight)
	found := false
	for _, p := range picks {
		if p.Id == "gemini-flash" {
			found = true
			assert.Equal(t, AvailabilityUnknown, p.Availability)
		}
	}
	assert.True(t, found)
}

func TestPickForDegradedLast(t *testing.T) {
	r := newTestRegistry()
	now := time.Now().UTC()

	r.MarkDegraded("math-specialist", "timeout", now.Add(5*time.Minute))

	picks := r.PickFor(classifier.SubjectMathematics, now)
	require.Len(t, picks, 3)
	assert.Equal(t, "math-specialist", picks[2].Id, "degraded entries are last resort")
}

func TestPickForDownSkipped(t *testing.T) {
	r := newTestRegistry()
	now := time.Now().UTC()

	r.MarkDown("ollama-default", "connection refused", now.Add(time.Minute))

	picks := r.PickFor(classifier.SubjectGeneral, now)
	require.Len(t, picks, 2)
	for _, p := range picks {
		assert.NotEqual(t, "ollama-default", p.Id)
	}
}

func TestRecordOutcomeSuccessRate(t *testing.T) {
	r := newTestRegistry()
	now := time.Now().UTC()

	snap, ok := r.Get("gemini-flash")
	require.True(t, ok)
	assert.Equal(t, 1.0, snap.SuccessRate, "no data reads as optimistic")

	r.RecordOutcome("gemini-flash", true, 100*time.Millisecond, now)
	r.RecordOutcome("gemini-flash", false, 200*time.Millisecond, now)

	snap, _ = r.Get("gemini-flash")
	assert.Equal(t, 0.5, snap.SuccessRate)
	assert.Greater(t, snap.LatencyEWMA, time.Duration(0))
}

func TestSuccessRateOrdersGeneralists(t *testing.T) {
	r := New([]Backend{
		{Id: "flaky", Priority: 10},
		{Id: "steady", Priority: 10},
	}, logger.NopLogger{})
	now := time.Now().UTC()

	r.RecordOutcome("flaky", false, 0, now)
	r.RecordOutcome("flaky", true, 0, now)
	r.RecordOutcome("steady", true, 0, now)
	r.RecordOutcome("steady", true, 0, now)

	picks := r.PickFor(classifier.SubjectGeneral, now)
	require.Len(t, picks, 2)
	assert.Equal(t, "steady", picks[0].Id, "equal priority breaks by success rate")
}

func TestConsumeAppliesHealthSignals(t *testing.T) {
	r := newTestRegistry()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	ch := make(chan *message.Message, 4)
	push := func(sig events.HealthSignal) {
		data, err := sig.Marshal()
		require.NoError(t, err)
		ch <- message.NewMessage(watermill.NewUUID(), data)
	}

	push(events.HealthSignal{BackendId: "gemini-flash", Outcome: "quota-exceeded", At: now})
	push(events.HealthSignal{BackendId: "ollama-default", Outcome: "timeout", At: now})
	push(events.HealthSignal{BackendId: "math-specialist", Outcome: "success", Latency: 50 * time.Millisecond, At: now})
	close(ch)

	r.Consume(context.Background(), ch)

	snap, _ := r.Get("gemini-flash")
	assert.Equal(t, AvailabilityQuotaExceeded, snap.Availability)
	assert.Equal(t, NextUTCMidnight(now), snap.Until)

	snap, _ = r.Get("ollama-default")
	assert.Equal(t, AvailabilityDegraded, snap.Availability)

	snap, _ = r.Get("math-specialist")
	assert.Equal(t, AvailabilityAvailable, snap.Availability)
	assert.Equal(t, 1.0, snap.SuccessRate)
}

func TestConsumeDropsMalformedSignal(t *testing.T) {
	r := newTestRegistry()

	ch := make(chan *message.Message, 1)
	ch <- message.NewMessage(watermill.NewUUID(), []byte("{not json"))
	close(ch)

	// Must not panic, must keep state untouched.
	r.Consume(context.Background(), ch)
	snap, _ := r.Get("gemini-flash")
	assert.Equal(t, AvailabilityUnknown, snap.Availability)
}

func TestNextUTCMidnight(t *testing.T) {
	now := time.Date(2026, 3, 10, 23, 59, 59, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC), NextUTCMidnight(now))
}
