// Package pool implements the Assignment component: a warm-sandbox pool
// keyed by (image, network-enabled), with global-LRU eviction, an idle
// reaper, and graceful shutdown.
//
// The pool key intentionally excludes user identity, function id, code,
// and environment variables — those are supplied at exec time. This is
// what makes warm reuse economical: one sandbox serves any function with
// the same image and network policy.
package pool

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/clowdy-dev/clowdy/driver"
)

// Key identifies an interchangeable class of sandboxes.
type Key struct {
	Image          string
	NetworkEnabled bool
}

type entry struct {
	handle    driver.Handle
	idleSince time.Time
}

// Config controls pool sizing and reaping cadence.
type Config struct {
	MaxPoolSize  int
	IdleTimeout  time.Duration
	ReapInterval time.Duration
}

// DefaultConfig matches the spec's defaults.
func DefaultConfig() Config {
	return Config{
		MaxPoolSize:  10,
		IdleTimeout:  300 * time.Second,
		ReapInterval: 30 * time.Second,
	}
}

// Pool is the Assignment component: a warm-sandbox pool with LRU eviction.
type Pool struct {
	cfg Config
	d   driver.Driver

	mu      sync.Mutex
	entries map[Key][]entry

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}

	totalGauge prometheus.Gauge
	byKeyGauge *prometheus.GaugeVec
}

// New constructs a Pool backed by d. If reg is non-nil, pool size gauges
// are registered against it.
func New(d driver.Driver, cfg Config, reg prometheus.Registerer) *Pool {
	p := &Pool{
		cfg:     cfg,
		d:       d,
		entries: make(map[Key][]entry),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
		totalGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "clowdy_pool_total",
			Help: "Total number of warm sandboxes across all pool keys.",
		}),
		byKeyGauge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "clowdy_pool_by_key",
			Help: "Number of warm sandboxes for a given (image, network) key.",
		}, []string{"image", "network_enabled"}),
	}
	if reg != nil {
		reg.MustRegister(p.totalGauge, p.byKeyGauge)
	}
	return p
}

// Acquire pops the most-recently-released entry for key (LIFO favors
// cache warmth). Returns false if the pool has no match for key — the
// caller falls back to placement.Create (a cold start).
func (p *Pool) Acquire(key Key) (driver.Handle, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	entries := p.entries[key]
	if len(entries) == 0 {
		return "", false
	}
	last := entries[len(entries)-1]
	p.entries[key] = entries[:len(entries)-1]
	if len(p.entries[key]) == 0 {
		delete(p.entries, key)
	}
	p.publishLocked()
	return last.handle, true
}

// Release returns a sandbox to the pool after invocation. If the pool is
// full, the globally least-recently-idle entry is evicted and destroyed
// outside the lock before the new entry is appended.
func (p *Pool) Release(ctx context.Context, h driver.Handle, key Key) {
	var evicted *driver.Handle

	p.mu.Lock()
	if p.totalLocked() >= p.cfg.MaxPoolSize {
		evicted = p.evictLRULocked()
	}
	p.entries[key] = append(p.entries[key], entry{handle: h, idleSince: time.Now()})
	p.publishLocked()
	p.mu.Unlock()

	if evicted != nil {
		p.d.Destroy(ctx, *evicted)
	}
}

// evictLRULocked removes and returns the entry with the smallest
// idleSince across every key. Ties break by first-encountered (stable
// iteration order is not guaranteed by Go maps, but within a single key
// slice order is preserved, and a true tie across keys is vanishingly
// unlikely given time.Now() resolution — any winner is a valid LRU pick).
// Must be called while holding p.mu.
func (p *Pool) evictLRULocked() *driver.Handle {
	var (
		oldestKey  Key
		oldestIdx  = -1
		oldestTime time.Time
		foundAny   bool
	)

	for key, entries := range p.entries {
		for idx, e := range entries {
			if !foundAny || e.idleSince.Before(oldestTime) {
				oldestKey = key
				oldestIdx = idx
				oldestTime = e.idleSince
				foundAny = true
			}
		}
	}
	if !foundAny {
		return nil
	}

	entries := p.entries[oldestKey]
	h := entries[oldestIdx].handle
	entries = append(entries[:oldestIdx], entries[oldestIdx+1:]...)
	if len(entries) == 0 {
		delete(p.entries, oldestKey)
	} else {
		p.entries[oldestKey] = entries
	}
	return &h
}

// Reap destroys entries idle longer than cfg.IdleTimeout. Destruction
// happens outside the lock.
func (p *Pool) Reap(ctx context.Context) {
	now := time.Now()
	var toDestroy []driver.Handle

	p.mu.Lock()
	for key, entries := range p.entries {
		kept := entries[:0:0]
		for _, e := range entries {
			if now.Sub(e.idleSince) > p.cfg.IdleTimeout {
				toDestroy = append(toDestroy, e.handle)
			} else {
				kept = append(kept, e)
			}
		}
		if len(kept) == 0 {
			delete(p.entries, key)
		} else {
			p.entries[key] = kept
		}
	}
	p.publishLocked()
	p.mu.Unlock()

	for _, h := range toDestroy {
		p.d.Destroy(ctx, h)
	}
}

// RunReaper starts a background task that fires Reap every
// cfg.ReapInterval until Shutdown is called. Resilient to individual
// Reap failures — Reap itself never returns an error, but the ticker
// loop is structured so a future fallible Reap cannot kill the loop.
func (p *Pool) RunReaper(ctx context.Context) {
	go func() {
		defer close(p.doneCh)
		ticker := time.NewTicker(p.cfg.ReapInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				p.Reap(ctx)
			case <-p.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Shutdown drains and destroys every pooled entry. Idempotent.
func (p *Pool) Shutdown(ctx context.Context) {
	p.stopOnce.Do(func() {
		close(p.stopCh)
	})

	p.mu.Lock()
	var all []driver.Handle
	for _, entries := range p.entries {
		for _, e := range entries {
			all = append(all, e.handle)
		}
	}
	p.entries = make(map[Key][]entry)
	p.publishLocked()
	p.mu.Unlock()

	for _, h := range all {
		p.d.Destroy(ctx, h)
	}
}

// Stats is a point-in-time snapshot of pool occupancy.
type Stats struct {
	Total int
	ByKey map[Key]int
}

// Stats returns a snapshot of pool counts.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	byKey := make(map[Key]int, len(p.entries))
	total := 0
	for key, entries := range p.entries {
		byKey[key] = len(entries)
		total += len(entries)
	}
	return Stats{Total: total, ByKey: byKey}
}

func (p *Pool) totalLocked() int {
	total := 0
	for _, entries := range p.entries {
		total += len(entries)
	}
	return total
}

// publishLocked refreshes the Prometheus gauges. Must be called while
// holding p.mu.
func (p *Pool) publishLocked() {
	if p.totalGauge == nil {
		return
	}
	p.byKeyGauge.Reset()
	total := 0
	for key, entries := range p.entries {
		total += len(entries)
		p.byKeyGauge.WithLabelValues(key.Image, boolLabel(key.NetworkEnabled)).Set(float64(len(entries)))
	}
	p.totalGauge.Set(float64(total))
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
