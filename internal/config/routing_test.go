package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-tutor-be/internal/pkg/logger"
	"ai-tutor-be/pkg/classifier"
	"ai-tutor-be/pkg/quota"
)

func writeRouting(t *testing.T, path string, rc *RoutingConfig) {
	t.Helper()
	data, err := json.Marshal(rc)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func configWith(daily int) *RoutingConfig {
	rc := DefaultRoutingConfig()
	rc.Quota.DailyLimit = daily
	return rc
}

func TestRoutingConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*RoutingConfig)
		wantErr bool
	}{
		{name: "defaults are valid", mutate: func(*RoutingConfig) {}},
		{
			name: "empty subject id",
			mutate: func(rc *RoutingConfig) {
				rc.Subjects = append(rc.Subjects, classifier.SubjectConfig{Id: ""})
			},
			wantErr: true,
		},
		{
			name: "duplicate subject id",
			mutate: func(rc *RoutingConfig) {
				rc.Subjects = append(rc.Subjects, rc.Subjects[0])
			},
			wantErr: true,
		},
		{
			name:    "negative threshold",
			mutate:  func(rc *RoutingConfig) { rc.Weights.Threshold = -1 },
			wantErr: true,
		},
		{
			name:    "negative daily limit",
			mutate:  func(rc *RoutingConfig) { rc.Quota.DailyLimit = -5 },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rc := DefaultRoutingConfig()
			tt.mutate(rc)
			err := rc.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestWatcherMissingFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routing.json")
	w := NewRoutingWatcher(path, logger.NopLogger{})
	require.NoError(t, w.Start())
	defer w.Close()

	assert.Equal(t, quota.DefaultConfig().DailyLimit, w.Current().Quota.DailyLimit)
}

func TestWatcherLoadsFileOnStart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routing.json")
	writeRouting(t, path, configWith(17))

	w := NewRoutingWatcher(path, logger.NopLogger{})
	require.NoError(t, w.Start())
	defer w.Close()

	assert.Equal(t, 17, w.Current().Quota.DailyLimit)
}

func TestWatcherAppliesRewrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routing.json")
	writeRouting(t, path, configWith(10))

	w := NewRoutingWatcher(path, logger.NopLogger{})

	var notified atomic.Int32
	w.Subscribe(func(rc *RoutingConfig) { notified.Add(1) })

	require.NoError(t, w.Start())
	defer w.Close()
	require.Equal(t, 10, w.Current().Quota.DailyLimit)

	writeRouting(t, path, configWith(25))

	require.Eventually(t, func() bool {
		return w.Current().Quota.DailyLimit == 25
	}, 3*time.Second, 50*time.Millisecond)
	assert.GreaterOrEqual(t, notified.Load(), int32(1))
}

func TestWatcherRejectsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routing.json")
	writeRouting(t, path, configWith(10))

	w := NewRoutingWatcher(path, logger.NopLogger{})
	require.NoError(t, w.Start())
	defer w.Close()
	require.Equal(t, 10, w.Current().Quota.DailyLimit)

	require.NoError(t, os.WriteFile(path, []byte("{broken json"), 0o644))

	// The previous revision stays in force.
	time.Sleep(600 * time.Millisecond)
	assert.Equal(t, 10, w.Current().Quota.DailyLimit)
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "routing.json")
	writeRouting(t, path, configWith(10))

	w := NewRoutingWatcher(path, logger.NopLogger{})

	var notified atomic.Int32
	w.Subscribe(func(rc *RoutingConfig) { notified.Add(1) })
	require.NoError(t, w.Start())
	defer w.Close()

	// The initial load is the only revision so far.
	base := notified.Load()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.json"), []byte("{}"), 0o644))

	time.Sleep(600 * time.Millisecond)
	assert.Equal(t, base, notified.Load())
}

func TestWatcherInitialLoadReachesEarlySubscribers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routing.json")
	writeRouting(t, path, configWith(17))

	w := NewRoutingWatcher(path, logger.NopLogger{})

	// Wiring registers subscribers before Start and relies on the initial
	// revision reaching them.
	var got atomic.Int32
	w.Subscribe(func(rc *RoutingConfig) { got.Store(int32(rc.Quota.DailyLimit)) })

	require.NoError(t, w.Start())
	defer w.Close()

	assert.Equal(t, int32(17), got.Load())
}

func TestWatcherIdenticalContentIsNoOp(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routing.json")
	writeRouting(t, path, configWith(10))

	w := NewRoutingWatcher(path, logger.NopLogger{})
	require.NoError(t, w.Start())
	defer w.Close()

	first := w.Current()

	var notified atomic.Int32
	w.Subscribe(func(rc *RoutingConfig) { notified.Add(1) })

	// Same bytes rewritten: the revision pointer must not move.
	writeRouting(t, path, configWith(10))

	time.Sleep(600 * time.Millisecond)
	assert.Same(t, first, w.Current())
	assert.Equal(t, int32(0), notified.Load())
}
