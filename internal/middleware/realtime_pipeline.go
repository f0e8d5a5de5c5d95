package middleware

import (
	"fmt"
	"sync"
	"time"

	"ThemePulse/internal/domain/models"
	domrepo "ThemePulse/internal/domain/repository"
)

// NameResolver maps an instrument code to its display name.
type NameResolver interface {
	NameByCode(code string) (string, bool)
}

// RealtimePipeline sits between the feed stream and the price cache.
// It validates, optionally transforms, writes the cache and then notifies listeners.
// Ticks are applied in arrival order; nothing is buffered or reordered.
type RealtimePipeline struct {
	cache     domrepo.PriceWriter
	names     NameResolver
	metrics   domrepo.Metrics
	transform func(models.Tick) models.Tick

	mu        sync.RWMutex
	listeners []domrepo.TickListener
}

type PipelineOption func(*RealtimePipeline)

// WithTransform sets a hook applied to every valid tick before it is stored.
func WithTransform(fn func(models.Tick) models.Tick) PipelineOption {
	return func(p *RealtimePipeline) { p.transform = fn }
}

// WithNames fills Tick.Name from the directory when the feed leaves it empty.
func WithNames(r NameResolver) PipelineOption {
	return func(p *RealtimePipeline) { p.names = r }
}

// NewRealtimePipeline creates a new pipeline.
func NewRealtimePipeline(cache domrepo.PriceWriter, metrics domrepo.Metrics, opts ...PipelineOption) *RealtimePipeline {
	p := &RealtimePipeline{cache: cache, metrics: metrics}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// AddListener registers l to receive every tick after it reaches the cache.
func (p *RealtimePipeline) AddListener(l domrepo.TickListener) {
	p.mu.Lock()
	p.listeners = append(p.listeners, l)
	p.mu.Unlock()
}

// Process validates t, stores it and fans it out.
func (p *RealtimePipeline) Process(t models.Tick) error {
	start := time.Now()
	t, err := p.prepare(t)
	if err != nil {
		p.metrics.RecordDrop("invalid_tick")
		return err
	}
	p.cache.Put(t.Code, t)
	p.metrics.RecordTick(t.Code)
	p.metrics.RecordLastPrice(t.Code, t.Price)

	p.mu.RLock()
	listeners := p.listeners
	p.mu.RUnlock()
	for _, l := range listeners {
		l.OnTick(t)
	}
	p.metrics.RecordLatency("pipeline_process", time.Since(start).Seconds())
	return nil
}

// Seed stores t only when the cache has no entry for its code yet. Bootstrap
// snapshots use it so they never overwrite fresher stream data.
func (p *RealtimePipeline) Seed(t models.Tick) (bool, error) {
	t, err := p.prepare(t)
	if err != nil {
		p.metrics.RecordDrop("invalid_tick")
		return false, err
	}
	return p.cache.PutIfAbsent(t.Code, t), nil
}

func (p *RealtimePipeline) prepare(t models.Tick) (models.Tick, error) {
	if err := validateTick(t); err != nil {
		return t, err
	}
	if p.transform != nil {
		t = p.transform(t)
		if err := validateTick(t); err != nil {
			return t, err
		}
	}
	if t.Name == "" && p.names != nil {
		if name, ok := p.names.NameByCode(t.Code); ok {
			t.Name = name
		}
	}
	return t, nil
}

func validateTick(t models.Tick) error {
	if t.Code == "" {
		return fmt.Errorf("code empty")
	}
	if t.Price <= 0 {
		return fmt.Errorf("price invalid for %s", t.Code)
	}
	if t.CumulativeVolume < 0 {
		return fmt.Errorf("negative volume for %s", t.Code)
	}
	return nil
}
