package quota

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ai-tutor-be/internal/pkg/logger"

	"github.com/google/uuid"
)

// Denial reasons exposed to the fallback cascade.
const (
	ReasonDailyLimit = "daily-limit"
	ReasonBurst      = "burst"
	ReasonInterval   = "min-interval"
)

// Decision is the admit outcome.
type Decision struct {
	OK         bool
	Reason     string
	RetryAfter time.Duration
	ResetTime  time.Time // next UTC midnight, set on daily-limit denials
	Remaining  int       // daily calls left after this decision
}

// Config holds the enforcement knobs. Zero values fall back to defaults.
type Config struct {
	DailyLimit         int
	BurstLimit         int
	BurstWindow        time.Duration
	MinIntervalMetered time.Duration
	MinIntervalLocal   time.Duration
}

func DefaultConfig() Config {
	return Config{
		DailyLimit:         50,
		BurstLimit:         5,
		BurstWindow:        60 * time.Second,
		MinIntervalMetered: 2 * time.Second,
		MinIntervalLocal:   1 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.DailyLimit <= 0 {
		c.DailyLimit = d.DailyLimit
	}
	if c.BurstLimit <= 0 {
		c.BurstLimit = d.BurstLimit
	}
	if c.BurstWindow <= 0 {
		c.BurstWindow = d.BurstWindow
	}
	if c.MinIntervalMetered <= 0 {
		c.MinIntervalMetered = d.MinIntervalMetered
	}
	if c.MinIntervalLocal <= 0 {
		c.MinIntervalLocal = d.MinIntervalLocal
	}
	return c
}

// Record is the persisted per-(user, UTC day) quota state.
type Record struct {
	UserId           uuid.UUID
	UTCDay           string // "2006-01-02"
	Count            int
	BurstWindowStart time.Time
	LastCallAt       time.Time
}

// Repository persists quota records across restarts.
type Repository interface {
	Load(ctx context.Context, userId uuid.UUID, utcDay string) (*Record, error)
	Save(ctx context.Context, rec *Record) error
}

// Target is the slice of backend metadata the limiter needs.
type Target struct {
	BackendId   string
	Metered     bool
	MinInterval time.Duration // backend override; 0 uses the config default
}

// bucket serializes admissions for one (userId, backendId) pair and holds the
// sliding burst window plus last-call time. The daily counter lives in the
// day record shared across the user's buckets.
type bucket struct {
	mu         sync.Mutex
	lastCallAt time.Time
}

type dayRecord struct {
	mu     sync.Mutex
	day    string
	count  int
	window []time.Time // admit timestamps inside the burst window
}

// Limiter enforces daily budget, burst window and minimum inter-request
// interval. Admissions for the same (user, backend) are totally ordered by
// the bucket mutex.
type Limiter struct {
	mu      sync.Mutex
	cfg     Config
	buckets map[string]*bucket
	days    map[uuid.UUID]*dayRecord
	repo    Repository // optional
	log     logger.ILogger
	nowFn   func() time.Time
}

func NewLimiter(cfg Config, repo Repository, log logger.ILogger) *Limiter {
	return &Limiter{
		cfg:     cfg.withDefaults(),
		buckets: make(map[string]*bucket),
		days:    make(map[uuid.UUID]*dayRecord),
		repo:    repo,
		log:     log,
		nowFn:   func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the time source; tests only.
func (l *Limiter) SetClock(now func() time.Time) { l.nowFn = now }

// Reconfigure swaps the limits. Existing counters are preserved; a reload of
// unchanged values mutates nothing.
func (l *Limiter) Reconfigure(cfg Config) {
	l.mu.Lock()
	defer l.mu.Unlock()
	next := cfg.withDefaults()
	if next != l.cfg {
		l.cfg = next
	}
}

// Admit decides whether one call by userId against the target may proceed.
// A granted admit debits the daily counter immediately; callers that later
// fail still consumed budget (the counter is already committed).
func (l *Limiter) Admit(ctx context.Context, userId uuid.UUID, target Target) Decision {
	now := l.nowFn()
	cfg := l.config()
	bk := l.bucketFor(userId, target.BackendId)

	bk.mu.Lock()
	defer bk.mu.Unlock()

	// Minimum inter-request interval, per (user, backend).
	minInterval := target.MinInterval
	if minInterval <= 0 {
		if target.Metered {
			minInterval = cfg.MinIntervalMetered
		} else {
			minInterval = cfg.MinIntervalLocal
		}
	}
	if !bk.lastCallAt.IsZero() {
		if delta := now.Sub(bk.lastCallAt); delta < minInterval {
			return Decision{OK: false, Reason: ReasonInterval, RetryAfter: minInterval - delta}
		}
	}

	day := l.dayFor(ctx, userId, now)
	day.mu.Lock()
	defer day.mu.Unlock()

	// UTC midnight rollover: either every counter is fresh or none is.
	today := now.Format("2006-01-02")
	if day.day != today {
		day.day = today
		day.count = 0
		day.window = day.window[:0]
	}

	// Daily budget applies to metered vendors only.
	if target.Metered && day.count >= cfg.DailyLimit {
		return Decision{
			OK:        false,
			Reason:    ReasonDailyLimit,
			ResetTime: nextUTCMidnight(now),
		}
	}

	// Sliding burst window across all of the user's backends.
	cutoff := now.Add(-cfg.BurstWindow)
	kept := day.window[:0]
	for _, t := range day.window {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	day.window = kept
	if len(day.window) >= cfg.BurstLimit {
		oldest := day.window[0]
		return Decision{
			OK:         false,
			Reason:     ReasonBurst,
			RetryAfter: cfg.BurstWindow - now.Sub(oldest),
		}
	}

	// Admit: commit counters before any network work happens.
	bk.lastCallAt = now
	day.window = append(day.window, now)
	if target.Metered {
		day.count++
	}
	remaining := cfg.DailyLimit - day.count

	l.persist(ctx, userId, day, now)

	return Decision{OK: true, Remaining: remaining}
}

// Remaining reports the user's daily budget left, for GET /status.
func (l *Limiter) Remaining(ctx context.Context, userId uuid.UUID) int {
	now := l.nowFn()
	cfg := l.config()
	day := l.dayFor(ctx, userId, now)
	day.mu.Lock()
	defer day.mu.Unlock()
	if day.day != now.Format("2006-01-02") {
		return cfg.DailyLimit
	}
	left := cfg.DailyLimit - day.count
	if left < 0 {
		left = 0
	}
	return left
}

// ResetTime returns the next UTC midnight, when daily counters roll over.
func (l *Limiter) ResetTime() time.Time {
	return nextUTCMidnight(l.nowFn())
}

func (l *Limiter) bucketFor(userId uuid.UUID, backendId string) *bucket {
	key := fmt.Sprintf("%s:%s", userId, backendId)
	l.mu.Lock()
	defer l.mu.Unlock()
	bk, ok := l.buckets[key]
	if !ok {
		bk = &bucket{}
		l.buckets[key] = bk
	}
	return bk
}

func (l *Limiter) dayFor(ctx context.Context, userId uuid.UUID, now time.Time) *dayRecord {
	l.mu.Lock()
	day, ok := l.days[userId]
	if !ok {
		day = &dayRecord{day: now.Format("2006-01-02")}
		l.days[userId] = day
		l.mu.Unlock()
		// First touch this process: hydrate from the store so restarts do not
		// reset budgets.
		if l.repo != nil {
			if rec, err := l.repo.Load(ctx, userId, day.day); err == nil && rec != nil {
				day.mu.Lock()
				if day.day == rec.UTCDay && day.count == 0 {
					day.count = rec.Count
				}
				day.mu.Unlock()
			}
		}
		return day
	}
	l.mu.Unlock()
	return day
}

// persist writes the committed counters through to the store. Failures are
// logged, not surfaced: the in-memory state is authoritative for this process.
func (l *Limiter) persist(ctx context.Context, userId uuid.UUID, day *dayRecord, now time.Time) {
	if l.repo == nil {
		return
	}
	rec := &Record{
		UserId:     userId,
		UTCDay:     day.day,
		Count:      day.count,
		LastCallAt: now,
	}
	if len(day.window) > 0 {
		rec.BurstWindowStart = day.window[0]
	}
	if err := l.repo.Save(ctx, rec); err != nil && l.log != nil {
		l.log.Warn("quota", "failed to persist quota record", map[string]interface{}{
			"user_id": userId.String(),
			"error":   err.Error(),
		})
	}
}

func (l *Limiter) config() Config {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cfg
}

func nextUTCMidnight(now time.Time) time.Time {
	u := now.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC).Add(24 * time.Hour)
}
