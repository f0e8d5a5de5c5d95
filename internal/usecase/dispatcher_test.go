package usecase

import (
	"sync"
	"testing"
	"time"

	"ThemePulse/internal/domain/models"
	"ThemePulse/pkg/logger"
	"ThemePulse/pkg/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSource struct {
	mu     sync.Mutex
	calls  int
	cached int
	now    func() time.Time
}

func (s *countingSource) GetAllThemePrices(force bool) models.ThemeSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if !force {
		s.cached++
	}
	return models.ThemeSnapshot{LastUpdateTime: s.now(), CachedInstrumentCount: s.calls}
}

func newTestDispatcher(now *time.Time) (*Dispatcher, *countingSource) {
	src := &countingSource{now: func() time.Time { return *now }}
	d := NewDispatcher(src, time.Second, []string{"themes", "other"}, logger.Nop(), metrics.Nop{})
	d.now = func() time.Time { return *now }
	return d, src
}

func drain(s *ChanSubscriber) []PushMessage {
	var out []PushMessage
	for {
		select {
		case m := <-s.C():
			out = append(out, m)
		default:
			return out
		}
	}
}

func TestSubscribeSendsSnapshotImmediately(t *testing.T) {
	now := testNow
	d, src := newTestDispatcher(&now)
	sub := NewChanSubscriber("a", 4)

	require.NoError(t, d.Subscribe("themes", sub))
	assert.Equal(t, 1, src.calls)
	assert.Zero(t, src.cached, "subscribe must not serve the memoized snapshot")
	got := drain(sub)
	require.Len(t, got, 1)
	assert.Equal(t, "themes", got[0].Channel)
	assert.Equal(t, 1, d.Subscribers("themes"))
}

func TestSubscribeUnknownChannel(t *testing.T) {
	now := testNow
	d, _ := newTestDispatcher(&now)
	assert.ErrorIs(t, d.Subscribe("nope", NewChanSubscriber("a", 1)), models.ErrUnknownChannel)
}

func TestPushRateLimited(t *testing.T) {
	now := testNow
	d, _ := newTestDispatcher(&now)
	sub := NewChanSubscriber("a", 1024)
	require.NoError(t, d.Subscribe("themes", sub))

	// a tick every 10ms for 5s
	for i := 0; i < 500; i++ {
		d.OnTick(models.Tick{Code: "005930"})
		now = now.Add(10 * time.Millisecond)
	}

	got := drain(sub)
	assert.LessOrEqual(t, len(got), 6)
	assert.GreaterOrEqual(t, len(got), 5)
	for i := 1; i < len(got); i++ {
		assert.False(t, got[i].Data.LastUpdateTime.Before(got[i-1].Data.LastUpdateTime), "pushes are time-ordered")
	}
}

func TestNoComputeWithoutSubscribers(t *testing.T) {
	now := testNow
	d, src := newTestDispatcher(&now)
	d.OnTick(models.Tick{})
	assert.Equal(t, 0, src.calls)
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	now := testNow
	d, _ := newTestDispatcher(&now)
	slow := NewChanSubscriber("slow", 1)
	fast := NewChanSubscriber("fast", 16)
	require.NoError(t, d.Subscribe("themes", slow))
	require.NoError(t, d.Subscribe("themes", fast))

	for i := 0; i < 5; i++ {
		now = now.Add(time.Second)
		d.OnTick(models.Tick{})
	}
	assert.Len(t, drain(slow), 1)
	assert.Len(t, drain(fast), 6)
}

func TestUnsubscribe(t *testing.T) {
	now := testNow
	d, _ := newTestDispatcher(&now)
	sub := NewChanSubscriber("a", 8)
	require.NoError(t, d.Subscribe("themes", sub))
	require.NoError(t, d.Subscribe("other", sub))
	drain(sub)

	d.Unsubscribe("themes", "a")
	now = now.Add(time.Second)
	d.OnTick(models.Tick{})
	got := drain(sub)
	require.Len(t, got, 1)
	assert.Equal(t, "other", got[0].Channel)

	d.UnsubscribeAll("a")
	now = now.Add(time.Second)
	d.OnTick(models.Tick{})
	assert.Empty(t, drain(sub))
	assert.Equal(t, 0, d.Subscribers("other"))
}
