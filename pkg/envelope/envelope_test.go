package envelope

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-tutor-be/pkg/classifier"
	"ai-tutor-be/pkg/store"
)

func TestScrub(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		secrets []string
		want    string
	}{
		{
			name:    "secret removed",
			text:    "failed with key sk-abcdef123456 rejected",
			secrets: []string{"sk-abcdef123456"},
			want:    "failed with key [redacted] rejected",
		},
		{
			name:    "short strings are not secrets",
			text:    "the word key appears here",
			secrets: []string{"key"},
			want:    "the word key appears here",
		},
		{
			name:    "multiple occurrences",
			text:    "token12345 and again token12345",
			secrets: []string{"token12345"},
			want:    "[redacted] and again [redacted]",
		},
		{
			name: "no secrets",
			text: "plain answer",
			want: "plain answer",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Scrub(tt.text, tt.secrets))
		})
	}
}

func TestSuccessEnvelope(t *testing.T) {
	s := NewShaper()
	cls := classifier.Result{Subject: classifier.SubjectMathematics, Confidence: 1.2}

	env := s.Success("4", store.ModeDirect, "", "math-specialist", "", cls, nil, false, 0, nil)

	assert.Equal(t, "4", env.Answer)
	assert.Equal(t, store.ModeDirect, env.Mode)
	assert.Equal(t, "math-specialist", env.BackendId)
	assert.Equal(t, 0, env.FallbackLevel)
	assert.Equal(t, cls.Confidence, env.Confidence)
	assert.Equal(t, KindNone, env.ErrorKind)
	require.NotNil(t, env.Sources, "sources serialize as an empty list, never null")
	assert.Empty(t, env.Sources)
	assert.False(t, env.Timestamp.IsZero())
}

func TestSuccessScrubsSecrets(t *testing.T) {
	s := NewShaper()

	env := s.Success("error body echoed sk-leaked-secret-42", store.ModeDirect, "", "b", "",
		classifier.Result{}, nil, false, 1, []string{"sk-leaked-secret-42"})

	assert.NotContains(t, env.Answer, "sk-leaked-secret-42")
	assert.Contains(t, env.Answer, "[redacted]")
}

func TestPartialSuccessSetsWarning(t *testing.T) {
	s := NewShaper()

	env := s.Success("answer without sources", store.ModeWebSearch, "web-search", "b", "",
		classifier.Result{}, []store.Source{}, true, 1, nil)

	assert.True(t, env.SourcesWarning)
	assert.Equal(t, KindNone, env.ErrorKind, "partial success is a success")
	assert.Empty(t, env.Sources)
}

func TestQuotaExceededEnvelope(t *testing.T) {
	s := NewShaper()
	reset := time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)

	env := s.QuotaExceeded("daily limit reached", "", classifier.Result{}, reset)

	assert.Equal(t, KindQuotaExceeded, env.ErrorKind)
	assert.Equal(t, 5, env.FallbackLevel)
	require.NotNil(t, env.ResetTime)
	assert.Equal(t, reset, *env.ResetTime)
	assert.Equal(t, store.ModeOffline, env.Mode)
}

func TestOfflineEnvelope(t *testing.T) {
	s := NewShaper()
	links := []store.Source{{Title: "Khan Academy", URL: "https://khanacademy.org", Reliability: 1}}

	env := s.Offline("study guide", "", classifier.Result{Subject: classifier.SubjectMathematics}, links)

	assert.Equal(t, store.ModeOffline, env.Mode)
	assert.Equal(t, 4, env.FallbackLevel)
	assert.Equal(t, KindNone, env.ErrorKind, "offline answers are not errors")
	assert.Equal(t, links, env.Sources)
}

func TestErrorEnvelope(t *testing.T) {
	s := NewShaper()

	env := s.Error(KindUnauthenticated, "no usable credential", store.ModeDirect, "", classifier.Result{}, 3)

	assert.Equal(t, KindUnauthenticated, env.ErrorKind)
	assert.Equal(t, 3, env.FallbackLevel)
	assert.NotNil(t, env.Sources)
}
