package registry

import (
	"context"
	"time"

	"ai-tutor-be/internal/pkg/logger"
	"ai-tutor-be/pkg/classifier"
	"ai-tutor-be/pkg/llm"
)

// ProviderResolver builds a provider for probing a backend with its shared
// (admin) credentials. Per-user credentials are never used for probes.
type ProviderResolver func(backend Backend) (llm.Provider, error)

// Prober periodically pings every backend and updates the registry.
// Probes run concurrently with user tasks; they are the only registry writers
// besides dispatch outcome events.
type Prober struct {
	registry *Registry
	resolve  ProviderResolver
	interval time.Duration
	timeout  time.Duration
	log      logger.ILogger
}

func NewProber(reg *Registry, resolve ProviderResolver, interval time.Duration, log logger.ILogger) *Prober {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Prober{
		registry: reg,
		resolve:  resolve,
		interval: interval,
		timeout:  10 * time.Second,
		log:      log,
	}
}

// Run probes until ctx is cancelled. Call on its own goroutine.
func (p *Prober) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.ProbeAll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.ProbeAll(ctx)
		}
	}
}

// ProbeAll checks every backend once. Quota-excluded backends are left alone
// until their window lapses.
func (p *Prober) ProbeAll(ctx context.Context) {
	now := time.Now().UTC()
	for _, snap := range p.registry.List() {
		if snap.Availability == AvailabilityQuotaExceeded && now.Before(snap.Until) {
			continue
		}
		p.probeOne(ctx, snap.Backend)
	}
}

// ProbeSubjects warms the backends serving the given subjects, each at most
// once. Used for the startup preload.
func (p *Prober) ProbeSubjects(ctx context.Context, subjects []classifier.Subject) {
	now := time.Now().UTC()
	probed := make(map[string]bool)
	for _, subject := range subjects {
		for _, snap := range p.registry.PickFor(subject, now) {
			if probed[snap.Backend.Id] {
				continue
			}
			probed[snap.Backend.Id] = true
			p.probeOne(ctx, snap.Backend)
		}
	}
}

func (p *Prober) probeOne(ctx context.Context, b Backend) {
	provider, err := p.resolve(b)
	if err != nil {
		p.registry.MarkDown(b.Id, "no provider: "+err.Error(), time.Now().UTC().Add(p.interval))
		return
	}

	probeCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	if err := provider.Ping(probeCtx); err != nil {
		p.log.Warn("prober", "backend probe failed", map[string]interface{}{
			"backend": b.Id,
			"error":   err.Error(),
		})
		p.registry.MarkDown(b.Id, err.Error(), time.Now().UTC().Add(p.interval))
		return
	}
	p.registry.RecordOutcome(b.Id, true, time.Since(start), time.Now().UTC())
	p.registry.MarkAvailable(b.Id)
}
