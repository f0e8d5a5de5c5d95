package usecase

import (
	"context"
	"sync"
	"time"

	"ThemePulse/internal/domain/models"
	drepo "ThemePulse/internal/domain/repository"
	"ThemePulse/pkg/logger"
	"ThemePulse/pkg/util"
)

// AggregateSource yields the live aggregates the samplers record.
type AggregateSource interface {
	PriorityAggregates() []models.ThemeAggregate
}

// SessionClock is the slice of the session clock the recorder needs.
type SessionClock interface {
	Now() time.Time
	IsOpen() bool
}

type HistoryOptions struct {
	FineInterval   time.Duration
	CoarseInterval time.Duration
	RingCapacity   int
	WriteTimeout   time.Duration
}

// sampleRing holds the last N samples of one theme, overwriting the oldest when full.
type sampleRing struct {
	buf   []models.HistorySample
	size  int
	start int
	count int
}

func newSampleRing(size int) *sampleRing {
	return &sampleRing{buf: make([]models.HistorySample, size), size: size}
}

func (r *sampleRing) add(s models.HistorySample) {
	idx := (r.start + r.count) % r.size
	if r.count == r.size {
		r.start = (r.start + 1) % r.size
		r.count--
	}
	r.buf[idx] = s
	r.count++
}

// items returns the samples oldest first.
func (r *sampleRing) items() []models.HistorySample {
	out := make([]models.HistorySample, 0, r.count)
	for i := 0; i < r.count; i++ {
		out = append(out, r.buf[(r.start+i)%r.size])
	}
	return out
}

// HistoryRecorder samples priority theme aggregates into a same-day ring per
// theme (fine cadence) and into the durable store (coarse cadence).
type HistoryRecorder struct {
	source    AggregateSource
	dir       ThemeDirectory
	store     drepo.HistoryStore
	publisher drepo.SamplePublisher
	clock     SessionClock
	opts      HistoryOptions
	log       *logger.Logger
	metrics   drepo.Metrics

	mu       sync.Mutex
	rings    map[string]*sampleRing
	lastDate string

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewHistoryRecorder creates a recorder. store and publisher may be nil.
func NewHistoryRecorder(
	source AggregateSource,
	dir ThemeDirectory,
	store drepo.HistoryStore,
	publisher drepo.SamplePublisher,
	clock SessionClock,
	opts HistoryOptions,
	log *logger.Logger,
	metrics drepo.Metrics,
) *HistoryRecorder {
	if opts.RingCapacity <= 0 {
		opts.RingCapacity = 390
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	return &HistoryRecorder{
		source:    source,
		dir:       dir,
		store:     store,
		publisher: publisher,
		clock:     clock,
		opts:      opts,
		log:       log.Component("history"),
		metrics:   metrics,
		rings:     make(map[string]*sampleRing),
	}
}

// Start launches both samplers. They stop when ctx is cancelled or Stop is called.
func (h *HistoryRecorder) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	h.cancel = cancel
	h.wg.Add(2)
	go h.loop(ctx, h.opts.FineInterval, func(context.Context) { h.SampleFine() })
	go h.loop(ctx, h.opts.CoarseInterval, h.SampleCoarse)
	h.log.Info("samplers started",
		logger.Duration("fine_ms", h.opts.FineInterval),
		logger.Duration("coarse_ms", h.opts.CoarseInterval))
}

func (h *HistoryRecorder) loop(ctx context.Context, every time.Duration, fn func(context.Context)) {
	defer h.wg.Done()
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}

// Stop halts the samplers and waits for an in-flight sample to finish.
func (h *HistoryRecorder) Stop() {
	if h.cancel != nil {
		h.cancel()
	}
	h.wg.Wait()
}

// SampleFine runs one fine-cadence cycle: a date rollover clears every ring,
// then, while the session is open, one sample per priority theme is appended.
func (h *HistoryRecorder) SampleFine() {
	now := h.clock.Now()
	h.mu.Lock()
	defer h.mu.Unlock()
	h.rolloverLocked(now)
	if !h.clock.IsOpen() {
		return
	}
	for _, agg := range h.source.PriorityAggregates() {
		r, ok := h.rings[agg.Name]
		if !ok {
			r = newSampleRing(h.opts.RingCapacity)
			h.rings[agg.Name] = r
		}
		r.add(models.SampleFrom(agg, now))
	}
}

// SampleCoarse runs one coarse-cadence cycle. Storage and publish failures
// are logged and counted, never returned.
func (h *HistoryRecorder) SampleCoarse(ctx context.Context) {
	if h.store == nil && h.publisher == nil {
		return
	}
	if !h.clock.IsOpen() {
		return
	}
	now := h.clock.Now()
	aggs := h.source.PriorityAggregates()
	samples := make([]models.HistorySample, 0, len(aggs))
	for _, agg := range aggs {
		samples = append(samples, models.SampleFrom(agg, now))
	}
	if len(samples) == 0 {
		return
	}

	wctx, cancel := context.WithTimeout(ctx, h.opts.WriteTimeout)
	defer cancel()
	if h.store != nil {
		start := time.Now()
		if err := h.store.InsertSamples(wctx, samples); err != nil {
			h.metrics.RecordError("history_insert")
			h.log.Error("history insert failed", logger.Int("rows", len(samples)), logger.Error(err))
		} else {
			h.metrics.RecordLatency("history_insert", time.Since(start).Seconds())
		}
	}
	if h.publisher != nil {
		if err := h.publisher.PublishSamples(wctx, samples); err != nil {
			h.metrics.RecordError("history_publish")
			h.log.Warn("history publish failed", logger.Error(err))
		}
	}
}

// GetHistory answers a range query. "today" reads the in-memory ring only;
// the other periods read the durable store from now minus the period.
func (h *HistoryRecorder) GetHistory(ctx context.Context, theme string, period models.HistoryPeriod) ([]models.HistorySample, error) {
	if _, ok := h.dir.Theme(theme); !ok {
		return nil, models.ErrThemeNotFound
	}
	now := h.clock.Now()
	if period == models.PeriodToday {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.rolloverLocked(now)
		if r, ok := h.rings[theme]; ok {
			return r.items(), nil
		}
		return []models.HistorySample{}, nil
	}

	d, err := period.Duration()
	if err != nil {
		return nil, err
	}
	if h.store == nil {
		return []models.HistorySample{}, nil
	}
	rows, err := h.store.QuerySamples(ctx, theme, now.Add(-d))
	if err != nil {
		h.metrics.RecordError("history_query")
		h.log.Error("history query failed", logger.String("theme", theme), logger.String("period", string(period)), logger.Error(err))
		return []models.HistorySample{}, nil
	}
	if rows == nil {
		rows = []models.HistorySample{}
	}
	return rows, nil
}

// rolloverLocked clears all rings when the KST date changed since the last call.
func (h *HistoryRecorder) rolloverLocked(now time.Time) {
	today := util.DateKey(now)
	if h.lastDate == today {
		return
	}
	if h.lastDate != "" {
		h.log.Info("date rollover, clearing rings", logger.String("from", h.lastDate), logger.String("to", today))
	}
	h.rings = make(map[string]*sampleRing)
	h.lastDate = today
}
