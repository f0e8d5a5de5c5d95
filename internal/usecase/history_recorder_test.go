package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ThemePulse/internal/domain/models"
	"ThemePulse/internal/service/directory"
	"ThemePulse/internal/service/session"
	"ThemePulse/pkg/logger"
	"ThemePulse/pkg/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticAggregates []models.ThemeAggregate

func (s staticAggregates) PriorityAggregates() []models.ThemeAggregate { return s }

type memStore struct {
	mu       sync.Mutex
	rows     []models.HistorySample
	inserts  int
	failNext bool
	lastFrom time.Time
}

func (m *memStore) InsertSamples(ctx context.Context, samples []models.HistorySample) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failNext {
		m.failNext = false
		return errors.New("clickhouse down")
	}
	m.inserts++
	m.rows = append(m.rows, samples...)
	return nil
}

func (m *memStore) QuerySamples(ctx context.Context, theme string, from time.Time) ([]models.HistorySample, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastFrom = from
	var out []models.HistorySample
	for _, r := range m.rows {
		if r.Theme == theme && !r.Timestamp.Before(from) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memStore) Health(context.Context) error { return nil }

type historyFixture struct {
	rec   *HistoryRecorder
	store *memStore
	now   *time.Time
}

func newHistoryFixture(t *testing.T, capacity int) *historyFixture {
	t.Helper()
	dir, err := directory.Parse([]byte(testThemes))
	require.NoError(t, err)
	now := testNow
	store := &memStore{}
	src := staticAggregates{
		{Name: "T", AvgChangeRate: 1.5, Stocks: []models.Tick{{Code: "005", Name: "A", ChangeRate: 2}}},
		{Name: "Wide", AvgChangeRate: -0.5},
	}
	rec := NewHistoryRecorder(src, dir, store, nil, session.NewClockAt(func() time.Time { return now }),
		HistoryOptions{FineInterval: time.Minute, CoarseInterval: 5 * time.Minute, RingCapacity: capacity},
		logger.Nop(), metrics.Nop{})
	return &historyFixture{rec: rec, store: store, now: &now}
}

func TestFineSamplerAppendsWhileOpen(t *testing.T) {
	f := newHistoryFixture(t, 390)
	f.rec.SampleFine()
	*f.now = f.now.Add(time.Minute)
	f.rec.SampleFine()

	got, err := f.rec.GetHistory(t.Context(), "T", models.PeriodToday)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "A", got[0].TopStockName)
	assert.Equal(t, 2.0, got[0].TopStockRate)
	assert.True(t, got[0].Timestamp.Before(got[1].Timestamp))

	wide, err := f.rec.GetHistory(t.Context(), "Wide", models.PeriodToday)
	require.NoError(t, err)
	require.Len(t, wide, 2)
	assert.Empty(t, wide[0].TopStockName)
}

func TestFineSamplerSkipsWhenClosed(t *testing.T) {
	f := newHistoryFixture(t, 390)
	*f.now = time.Date(2024, 10, 19, 3, 0, 0, 0, time.UTC) // saturday
	f.rec.SampleFine()
	got, err := f.rec.GetHistory(t.Context(), "T", models.PeriodToday)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRingEvictsOldest(t *testing.T) {
	f := newHistoryFixture(t, 3)
	var stamps []time.Time
	for i := 0; i < 5; i++ {
		stamps = append(stamps, *f.now)
		f.rec.SampleFine()
		*f.now = f.now.Add(time.Minute)
	}
	got, err := f.rec.GetHistory(t.Context(), "T", models.PeriodToday)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, stamps[2], got[0].Timestamp)
	assert.Equal(t, stamps[4], got[2].Timestamp)
}

func TestDateRolloverClearsRings(t *testing.T) {
	f := newHistoryFixture(t, 390)
	f.rec.SampleFine()

	// next day 08:00 KST, before open: rings cleared, nothing appended
	*f.now = time.Date(2024, 10, 16, 23, 0, 0, 0, time.UTC)
	got, err := f.rec.GetHistory(t.Context(), "T", models.PeriodToday)
	require.NoError(t, err)
	assert.Empty(t, got)

	*f.now = time.Date(2024, 10, 17, 1, 0, 0, 0, time.UTC)
	f.rec.SampleFine()
	got, _ = f.rec.GetHistory(t.Context(), "T", models.PeriodToday)
	assert.Len(t, got, 1)
}

func TestCoarseSamplerBatchesAndSwallowsErrors(t *testing.T) {
	f := newHistoryFixture(t, 390)
	f.store.failNext = true
	assert.NotPanics(t, func() { f.rec.SampleCoarse(t.Context()) })
	assert.Equal(t, 0, f.store.inserts)

	f.rec.SampleCoarse(t.Context())
	assert.Equal(t, 1, f.store.inserts)
	assert.Len(t, f.store.rows, 2)
}

func TestCoarseSamplerSkipsWhenClosed(t *testing.T) {
	f := newHistoryFixture(t, 390)
	*f.now = time.Date(2024, 10, 16, 12, 0, 0, 0, time.UTC) // 21:00 KST
	f.rec.SampleCoarse(t.Context())
	assert.Equal(t, 0, f.store.inserts)
}

func TestGetHistoryRouting(t *testing.T) {
	f := newHistoryFixture(t, 390)
	f.rec.SampleCoarse(t.Context())
	f.rec.SampleFine()

	got, err := f.rec.GetHistory(t.Context(), "T", models.Period7D)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, testNow.Add(-7*24*time.Hour), f.store.lastFrom)

	_, err = f.rec.GetHistory(t.Context(), "T", models.HistoryPeriod("2w"))
	assert.ErrorIs(t, err, models.ErrInvalidPeriod)

	_, err = f.rec.GetHistory(t.Context(), "Nope", models.PeriodToday)
	assert.ErrorIs(t, err, models.ErrThemeNotFound)

	cold, err := f.rec.GetHistory(t.Context(), "Cold", models.PeriodToday)
	require.NoError(t, err)
	assert.Empty(t, cold)
}

func TestSamplersStartStop(t *testing.T) {
	f := newHistoryFixture(t, 390)
	f.rec.opts.FineInterval = 5 * time.Millisecond
	f.rec.opts.CoarseInterval = 5 * time.Millisecond
	f.rec.Start(t.Context())
	require.Eventually(t, func() bool {
		f.store.mu.Lock()
		defer f.store.mu.Unlock()
		return f.store.inserts > 0
	}, time.Second, 5*time.Millisecond)
	f.rec.Stop()
}
