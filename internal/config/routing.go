package config

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"ai-tutor-be/internal/pkg/logger"
	"ai-tutor-be/pkg/classifier"
	"ai-tutor-be/pkg/quota"
)

// RoutingConfig is the hot-reloadable portion of the service configuration:
// classifier subjects, scoring weights, and quota policy. Backend descriptors
// stay static for the process lifetime; availability is runtime state, not
// configuration.
type RoutingConfig struct {
	Subjects []classifier.SubjectConfig `json:"subjects"`
	Weights  classifier.Weights         `json:"weights"`
	Quota    quota.Config               `json:"quota"`
}

// Validate rejects configs that would make routing undecidable.
func (rc *RoutingConfig) Validate() error {
	seen := make(map[classifier.Subject]bool, len(rc.Subjects))
	for _, s := range rc.Subjects {
		if s.Id == "" {
			return fmt.Errorf("subject with empty id")
		}
		if seen[s.Id] {
			return fmt.Errorf("duplicate subject id %q", s.Id)
		}
		seen[s.Id] = true
	}
	if rc.Weights.Threshold < 0 {
		return fmt.Errorf("negative classification threshold")
	}
	if rc.Quota.DailyLimit < 0 || rc.Quota.BurstLimit < 0 {
		return fmt.Errorf("negative quota limit")
	}
	return nil
}

// DefaultRoutingConfig matches the behavior shipped when no routing file
// exists on disk.
func DefaultRoutingConfig() *RoutingConfig {
	return &RoutingConfig{
		Subjects: classifier.DefaultSubjects(),
		Weights:  classifier.DefaultWeights(),
		Quota:    quota.DefaultConfig(),
	}
}

// ReloadFunc receives each accepted config revision.
type ReloadFunc func(*RoutingConfig)

// RoutingWatcher loads the routing file and pushes accepted revisions to its
// subscribers. A rewrite with identical content is a no-op; an invalid file
// keeps the previous revision in force.
type RoutingWatcher struct {
	path    string
	log     logger.ILogger
	watcher *fsnotify.Watcher

	mu       sync.Mutex
	current  *RoutingConfig
	lastHash [32]byte
	subs     []ReloadFunc
	done     chan struct{}
}

func NewRoutingWatcher(path string, log logger.ILogger) *RoutingWatcher {
	return &RoutingWatcher{
		path:    path,
		log:     log,
		current: DefaultRoutingConfig(),
		done:    make(chan struct{}),
	}
}

// Current returns the latest accepted revision.
func (w *RoutingWatcher) Current() *RoutingConfig {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Subscribe registers a callback for future revisions. The callback runs on
// the watcher goroutine; keep it short.
func (w *RoutingWatcher) Subscribe(fn ReloadFunc) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.subs = append(w.subs, fn)
}

// Start loads the file once, then watches it for changes. A missing file is
// not an error; defaults stay in force until one appears. The initial load
// counts as a revision: subscribers registered beforehand receive it.
func (w *RoutingWatcher) Start() error {
	if err := w.loadOnce(); err != nil {
		w.log.Warn("config", "initial routing config load failed, using defaults", map[string]interface{}{
			"path":  w.path,
			"error": err.Error(),
		})
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create routing watcher: %w", err)
	}
	w.watcher = watcher

	// Watch the directory, not the file: editors replace files atomically
	// and the inode-level watch would go stale.
	dir := filepath.Dir(w.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	go w.loop()
	return nil
}

func (w *RoutingWatcher) Close() error {
	close(w.done)
	if w.watcher != nil {
		return w.watcher.Close()
	}
	return nil
}

func (w *RoutingWatcher) loop() {
	// Debounce: editors often fire several events per save.
	var pending <-chan time.Time

	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(w.path) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			pending = time.After(250 * time.Millisecond)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("config", "routing watcher error", map[string]interface{}{"error": err.Error()})
		case <-pending:
			pending = nil
			if err := w.loadOnce(); err != nil {
				w.log.Warn("config", "routing config reload rejected, keeping previous", map[string]interface{}{
					"path":  w.path,
					"error": err.Error(),
				})
			}
		}
	}
}

func (w *RoutingWatcher) loadOnce() error {
	data, err := os.ReadFile(w.path)
	if err != nil {
		return err
	}

	hash := sha256.Sum256(data)

	w.mu.Lock()
	if hash == w.lastHash {
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	var rc RoutingConfig
	if err := json.Unmarshal(data, &rc); err != nil {
		return fmt.Errorf("invalid routing config: %w", err)
	}
	if err := rc.Validate(); err != nil {
		return err
	}

	w.mu.Lock()
	w.current = &rc
	w.lastHash = hash
	subs := make([]ReloadFunc, len(w.subs))
	copy(subs, w.subs)
	w.mu.Unlock()

	w.log.Info("config", "routing config applied", map[string]interface{}{
		"path":     w.path,
		"subjects": len(rc.Subjects),
	})
	for _, fn := range subs {
		fn(&rc)
	}
	return nil
}
