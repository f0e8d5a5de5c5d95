package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"ThemePulse/internal/domain/models"
	domrepo "ThemePulse/internal/domain/repository"
	pkgkafka "ThemePulse/pkg/kafka"
	applogger "ThemePulse/pkg/logger"
)

var (
	_ domrepo.HistoryStore    = (*ClickHouseHistory)(nil)
	_ domrepo.SamplePublisher = (*KafkaSamplePublisher)(nil)
)

// ClickHouseHistory implements HistoryStore on a MergeTree table ordered by
// (theme, ts). Expiry is left to the table TTL.
type ClickHouseHistory struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

// NewClickHouseHistory creates the store. table may be database-qualified.
func NewClickHouseHistory(db *sql.DB, table string, l *applogger.Logger) *ClickHouseHistory {
	return &ClickHouseHistory{db: db, table: table, l: l.Component("history_store")}
}

// InsertSamples writes all samples in one multi-row INSERT.
func (s *ClickHouseHistory) InsertSamples(ctx context.Context, samples []models.HistorySample) error {
	q, args := buildInsert(s.table, samples)
	if q == "" {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("insert history: %w", err)
	}
	return nil
}

// QuerySamples returns rows of theme with ts >= from, oldest first.
func (s *ClickHouseHistory) QuerySamples(ctx context.Context, theme string, from time.Time) ([]models.HistorySample, error) {
	const qtpl = `
        SELECT theme, avg_change_rate, top_stock_name, top_stock_rate, ts
        FROM %s
        WHERE theme = ? AND ts >= ?
        ORDER BY ts ASC
    `
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(qtpl, s.table), theme, from)
	if err != nil {
		s.l.Error("clickhouse history query error",
			applogger.String("table", s.table),
			applogger.String("theme", theme),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	out := make([]models.HistorySample, 0, 256)
	for rows.Next() {
		var h models.HistorySample
		if err := rows.Scan(&h.Theme, &h.AvgChangeRate, &h.TopStockName, &h.TopStockRate, &h.Timestamp); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (s *ClickHouseHistory) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func buildInsert(table string, samples []models.HistorySample) (string, []interface{}) {
	if len(samples) == 0 {
		return "", nil
	}
	values := make([]string, 0, len(samples))
	args := make([]interface{}, 0, len(samples)*5)
	for _, h := range samples {
		if h.Theme == "" {
			continue
		}
		values = append(values, "(?, ?, ?, ?, ?)")
		args = append(args, h.Theme, h.AvgChangeRate, h.TopStockName, h.TopStockRate, h.Timestamp)
	}
	if len(values) == 0 {
		return "", nil
	}
	q := fmt.Sprintf("INSERT INTO %s (theme, avg_change_rate, top_stock_name, top_stock_rate, ts) VALUES %s",
		table, strings.Join(values, ","))
	return q, args
}

// KafkaSamplePublisher implements SamplePublisher for Kafka, keyed by theme.
type KafkaSamplePublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaSamplePublisher creates Kafka publisher.
func NewKafkaSamplePublisher(producer *pkgkafka.Producer, topic string) *KafkaSamplePublisher {
	return &KafkaSamplePublisher{producer: producer, topic: topic}
}

func (p *KafkaSamplePublisher) PublishSamples(ctx context.Context, samples []models.HistorySample) error {
	if len(samples) == 0 {
		return nil
	}
	return p.producer.PublishBatch(ctx, p.topic, sampleMessages(samples))
}

func sampleMessages(samples []models.HistorySample) []pkgkafka.Message {
	msgs := make([]pkgkafka.Message, len(samples))
	for i, h := range samples {
		msgs[i] = pkgkafka.Message{Key: []byte(h.Theme), Value: h}
	}
	return msgs
}

func (p *KafkaSamplePublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
