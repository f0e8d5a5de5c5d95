package repository

import (
	"context"
	"time"

	"ThemePulse/internal/domain/models"
)

// MarketStream is one logical connection to the upstream tick feed.
type MarketStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context, codes []string) error
	Read(ctx context.Context) (<-chan models.Tick, <-chan error)
	Close() error
	IsConnected() bool
}

// QuoteLookup performs one-shot point price lookups against the upstream REST API.
type QuoteLookup interface {
	Quote(ctx context.Context, code string) (models.Tick, error)
}

// PriceReader is the read side of the price cache.
type PriceReader interface {
	Get(code string) (models.Tick, bool)
	All() map[string]models.Tick
	Len() int
}

// PriceWriter is the write side of the price cache.
type PriceWriter interface {
	Put(code string, t models.Tick)
	PutIfAbsent(code string, t models.Tick) bool
}

// HistoryStore is the durable, coarse-grained history tier. Rows expire through
// the store's own TTL; callers never delete.
type HistoryStore interface {
	InsertSamples(ctx context.Context, samples []models.HistorySample) error
	QuerySamples(ctx context.Context, theme string, from time.Time) ([]models.HistorySample, error)
	Health(ctx context.Context) error
}

// SamplePublisher streams coarse samples to downstream consumers.
type SamplePublisher interface {
	PublishSamples(ctx context.Context, samples []models.HistorySample) error
	Close() error
}

// TickListener receives every decoded tick after it reaches the cache.
type TickListener interface {
	OnTick(t models.Tick)
}

type Metrics interface {
	RecordTick(code string)
	RecordDrop(reason string)
	RecordError(kind string)
	RecordLastPrice(code string, price float64)
	RecordLatency(op string, seconds float64)
	RecordPush(channel string, subscribers int)
	RecordReconnect()
}
