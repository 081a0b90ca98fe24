package envelope

import (
	"strings"
	"time"

	"ai-tutor-be/pkg/classifier"
	"ai-tutor-be/pkg/store"
)

// ErrorKind mirrors the error taxonomy surfaced to callers.
type ErrorKind string

const (
	KindNone               ErrorKind = ""
	KindPreconditionFailed ErrorKind = "PreconditionFailed"
	KindUnauthenticated    ErrorKind = "Unauthenticated"
	KindQuotaExceeded      ErrorKind = "QuotaExceeded"
	KindTransient          ErrorKind = "Transient"
	KindPermanent          ErrorKind = "Permanent"
)

// Envelope is the single normalized response for one query.
type Envelope struct {
	Answer         string            `json:"answer"`
	Mode           store.Mode        `json:"mode"`
	RequestedMode  string            `json:"requested_mode,omitempty"` // caller's verbatim mode tag
	BackendId      string            `json:"backend_id,omitempty"`
	AgentName      string            `json:"agent,omitempty"`
	Classification classifier.Result `json:"classification"`
	Sources        []store.Source    `json:"sources"`
	Confidence     float64           `json:"confidence"`
	FallbackLevel  int               `json:"fallback_level"`
	SourcesWarning bool              `json:"sources_warning,omitempty"`
	ErrorKind      ErrorKind         `json:"error_kind,omitempty"`
	ResetTime      *time.Time        `json:"reset_time,omitempty"`
	Timestamp      time.Time         `json:"timestamp"`
}

// Shaper builds envelopes. The secrets list holds every credential resolved
// during the query so no answer can leak one.
type Shaper struct {
	now func() time.Time
}

func NewShaper() *Shaper {
	return &Shaper{now: time.Now}
}

// Success shapes a completed attempt. mode and backendId reflect the attempt
// that actually produced the answer, not the original selection.
func (s *Shaper) Success(answer string, mode store.Mode, requestedMode, backendId, agentName string, cls classifier.Result, sources []store.Source, sourcesFailed bool, level int, secrets []string) *Envelope {
	if sources == nil {
		sources = []store.Source{}
	}
	return &Envelope{
		Answer:         Scrub(answer, secrets),
		Mode:           mode,
		RequestedMode:  requestedMode,
		BackendId:      backendId,
		AgentName:      agentName,
		Classification: cls,
		Sources:        sources,
		Confidence:     cls.Confidence,
		FallbackLevel:  level,
		SourcesWarning: sourcesFailed,
		Timestamp:      s.now().UTC(),
	}
}

// Offline shapes the deterministic family-4 response.
func (s *Shaper) Offline(answer string, requestedMode string, cls classifier.Result, links []store.Source) *Envelope {
	if links == nil {
		links = []store.Source{}
	}
	return &Envelope{
		Answer:         answer,
		Mode:           store.ModeOffline,
		RequestedMode:  requestedMode,
		Classification: cls,
		Sources:        links,
		Confidence:     cls.Confidence,
		FallbackLevel:  4,
		Timestamp:      s.now().UTC(),
	}
}

// QuotaExceeded shapes the informational family-5 envelope.
func (s *Shaper) QuotaExceeded(answer string, requestedMode string, cls classifier.Result, resetTime time.Time) *Envelope {
	return &Envelope{
		Answer:         answer,
		Mode:           store.ModeOffline,
		RequestedMode:  requestedMode,
		Classification: cls,
		Sources:        []store.Source{},
		Confidence:     cls.Confidence,
		FallbackLevel:  5,
		ErrorKind:      KindQuotaExceeded,
		ResetTime:      &resetTime,
		Timestamp:      s.now().UTC(),
	}
}

// Error shapes a terminal non-recoverable failure (families 0-3 ending in a
// typed error the caller can act on).
func (s *Shaper) Error(kind ErrorKind, message string, mode store.Mode, requestedMode string, cls classifier.Result, level int) *Envelope {
	return &Envelope{
		Answer:         message,
		Mode:           mode,
		RequestedMode:  requestedMode,
		Classification: cls,
		Sources:        []store.Source{},
		Confidence:     cls.Confidence,
		FallbackLevel:  level,
		ErrorKind:      kind,
		Timestamp:      s.now().UTC(),
	}
}

// Scrub removes secret material from text. Backends never echo keys in
// normal operation; this guards error bodies that might.
func Scrub(text string, secrets []string) string {
	for _, secret := range secrets {
		if len(secret) < 8 {
			continue // too short to be meaningful secret material
		}
		text = strings.ReplaceAll(text, secret, "[redacted]")
	}
	return text
}
