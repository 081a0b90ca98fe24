package events

import (
	"encoding/json"
	"time"
)

// TopicBackendHealth carries dispatcher attempt outcomes to the backend
// registry. Health updates flow over this channel, never as direct calls,
// so the registry has no dependency on the dispatcher.
const TopicBackendHealth = "backend.health"

const (
	EventAttemptFinished = "ATTEMPT_FINISHED"
	EventBackendProbed   = "BACKEND_PROBED"
)

// HealthSignal is the wire payload published on TopicBackendHealth.
type HealthSignal struct {
	BackendId string        `json:"backend_id"`
	Outcome   string        `json:"outcome"` // attempt outcome string
	Latency   time.Duration `json:"latency_ns"`
	At        time.Time     `json:"at"`
}

func (s HealthSignal) Marshal() ([]byte, error) {
	return json.Marshal(s)
}

func UnmarshalHealthSignal(data []byte) (HealthSignal, error) {
	var s HealthSignal
	err := json.Unmarshal(data, &s)
	return s, err
}

// NewAttemptEvent wraps a finished attempt for the telemetry bus.
func NewAttemptEvent(backendId, outcome string, latency time.Duration, userId string) Event {
	return BaseEvent{
		Type: EventAttemptFinished,
		Data: map[string]interface{}{
			"backend_id": backendId,
			"outcome":    outcome,
			"latency_ms": latency.Milliseconds(),
			"user_id":    userId,
		},
		OccurredAt: time.Now().UTC(),
	}
}
