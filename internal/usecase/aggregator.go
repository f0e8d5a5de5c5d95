package usecase

import (
	"context"
	"encoding/json"
	"math"
	"sort"
	"time"

	"ThemePulse/internal/domain/models"
	drepo "ThemePulse/internal/domain/repository"
	"ThemePulse/internal/service/cache"
	"ThemePulse/pkg/logger"
)

const snapshotKey = "themes:snapshot"

// ThemeDirectory is the read side of the instrument directory.
type ThemeDirectory interface {
	PriorityThemes() []string
	IsPriority(name string) bool
	Theme(name string) (models.Theme, bool)
	ListThemeMembers(theme string, limit int) ([]string, bool)
	CodeByName(name string) (string, bool)
}

// MarketClock supplies wall-clock time and the session status derived from it.
type MarketClock interface {
	Now() time.Time
	Status() models.MarketStatusInfo
}

type AggregatorOptions struct {
	TopN          int
	SnapshotTTL   time.Duration
	OnDemandLimit int
	OnDemandTTL   time.Duration
}

// Aggregator projects the price cache into per-theme aggregates.
type Aggregator struct {
	dir       ThemeDirectory
	prices    drepo.PriceReader
	quotes    drepo.QuoteLookup
	clock     MarketClock
	snapshots *cache.TTLCache
	onDemand  cache.BytesCache
	opts      AggregatorOptions
	log       *logger.Logger
	metrics   drepo.Metrics
}

// NewAggregator wires the aggregator. quotes may be nil when no upstream
// credentials are configured; non-priority themes then use cached prices only.
func NewAggregator(
	dir ThemeDirectory,
	prices drepo.PriceReader,
	quotes drepo.QuoteLookup,
	clock MarketClock,
	snapshots *cache.TTLCache,
	onDemand cache.BytesCache,
	opts AggregatorOptions,
	log *logger.Logger,
	metrics drepo.Metrics,
) *Aggregator {
	if opts.TopN <= 0 {
		opts.TopN = 4
	}
	return &Aggregator{
		dir:       dir,
		prices:    prices,
		quotes:    quotes,
		clock:     clock,
		snapshots: snapshots,
		onDemand:  onDemand,
		opts:      opts,
		log:       log.Component("aggregator"),
		metrics:   metrics,
	}
}

// ComputeThemePrices builds a fresh snapshot of every priority theme.
func (a *Aggregator) ComputeThemePrices() models.ThemeSnapshot {
	start := time.Now()
	now := a.clock.Now()
	priority := a.dir.PriorityThemes()
	snap := models.ThemeSnapshot{
		Themes:                make([]models.ThemeAggregate, 0, len(priority)),
		MarketStatus:          a.clock.Status(),
		LastUpdateTime:        now,
		CachedInstrumentCount: a.prices.Len(),
	}
	for _, name := range priority {
		snap.Themes = append(snap.Themes, a.liveAggregate(name, now))
	}
	a.metrics.RecordLatency("aggregate_compute", time.Since(start).Seconds())
	return snap
}

// GetAllThemePrices returns the memoized snapshot, recomputing it when the
// memo has expired or forceRefresh is set.
func (a *Aggregator) GetAllThemePrices(forceRefresh bool) models.ThemeSnapshot {
	if !forceRefresh {
		if v, ok := a.snapshots.Get(snapshotKey); ok {
			if snap, ok := v.(models.ThemeSnapshot); ok {
				return snap
			}
		}
	}
	snap := a.ComputeThemePrices()
	a.snapshots.Set(snapshotKey, snap, a.opts.SnapshotTTL)
	return snap
}

// GetThemePrice returns one theme's aggregate. Priority themes read the live
// cache; other known themes go through point lookups.
func (a *Aggregator) GetThemePrice(ctx context.Context, name string) (models.ThemeAggregate, error) {
	if a.dir.IsPriority(name) {
		return a.liveAggregate(name, a.clock.Now()), nil
	}
	if _, ok := a.dir.Theme(name); !ok {
		return models.ThemeAggregate{}, models.ErrThemeNotFound
	}
	return a.onDemandAggregate(ctx, name)
}

// PriorityAggregates returns the live aggregate of every priority theme in directory order.
func (a *Aggregator) PriorityAggregates() []models.ThemeAggregate {
	now := a.clock.Now()
	priority := a.dir.PriorityThemes()
	out := make([]models.ThemeAggregate, 0, len(priority))
	for _, name := range priority {
		out = append(out, a.liveAggregate(name, now))
	}
	return out
}

func (a *Aggregator) liveAggregate(theme string, now time.Time) models.ThemeAggregate {
	members, _ := a.dir.ListThemeMembers(theme, a.opts.TopN)
	ticks := make([]models.Tick, 0, len(members))
	for _, m := range members {
		code, ok := a.dir.CodeByName(m)
		if !ok {
			continue
		}
		t, ok := a.prices.Get(code)
		if !ok {
			continue
		}
		if t.Name == "" {
			t.Name = m
		}
		ticks = append(ticks, t)
	}
	return buildAggregate(theme, ticks, now)
}

func (a *Aggregator) onDemandAggregate(ctx context.Context, theme string) (models.ThemeAggregate, error) {
	key := "ondemand:" + theme
	if a.onDemand != nil {
		if b, ok, err := a.onDemand.GetBytes(key); err != nil {
			a.log.Warn("on-demand cache read failed", logger.String("theme", theme), logger.Error(err))
		} else if ok {
			var agg models.ThemeAggregate
			if err := json.Unmarshal(b, &agg); err == nil {
				return agg, nil
			}
		}
	}

	start := time.Now()
	members, _ := a.dir.ListThemeMembers(theme, a.opts.OnDemandLimit)
	ticks := make([]models.Tick, 0, len(members))
	for _, m := range members {
		if err := ctx.Err(); err != nil {
			return models.ThemeAggregate{}, err
		}
		code, ok := a.dir.CodeByName(m)
		if !ok {
			continue
		}
		t, ok := a.prices.Get(code)
		if !ok {
			if a.quotes == nil {
				continue
			}
			var err error
			t, err = a.quotes.Quote(ctx, code)
			if err != nil {
				a.metrics.RecordError("ondemand_lookup")
				a.log.Debug("on-demand lookup failed", logger.String("code", code), logger.Error(err))
				continue
			}
		}
		if t.Name == "" {
			t.Name = m
		}
		ticks = append(ticks, t)
	}
	agg := buildAggregate(theme, ticks, a.clock.Now())
	a.metrics.RecordLatency("aggregate_ondemand", time.Since(start).Seconds())

	if a.onDemand != nil && a.opts.OnDemandTTL > 0 {
		if b, err := json.Marshal(agg); err == nil {
			if err := a.onDemand.SetBytes(key, b, a.opts.OnDemandTTL); err != nil {
				a.log.Warn("on-demand cache write failed", logger.String("theme", theme), logger.Error(err))
			}
		}
	}
	return agg, nil
}

// buildAggregate sorts ticks by traded value (ties keep input order) and
// derives the average and the top gainer and loser. ticks is reordered in place.
func buildAggregate(theme string, ticks []models.Tick, now time.Time) models.ThemeAggregate {
	agg := models.ThemeAggregate{Name: theme, Stocks: ticks, UpdatedAt: now}
	if len(ticks) == 0 {
		agg.Stocks = []models.Tick{}
		return agg
	}
	sort.SliceStable(ticks, func(i, j int) bool {
		return ticks[i].TradedValue() > ticks[j].TradedValue()
	})

	var sum float64
	gainer, loser := 0, 0
	for i, t := range ticks {
		sum += t.ChangeRate
		if t.ChangeRate > ticks[gainer].ChangeRate {
			gainer = i
		}
		if t.ChangeRate < ticks[loser].ChangeRate {
			loser = i
		}
	}
	agg.AvgChangeRate = round2(sum / float64(len(ticks)))
	g, l := ticks[gainer], ticks[loser]
	agg.TopGainer, agg.TopLoser = &g, &l
	return agg
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
