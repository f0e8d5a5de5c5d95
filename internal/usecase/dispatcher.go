package usecase

import (
	"sync"
	"time"

	"ThemePulse/internal/domain/models"
	drepo "ThemePulse/internal/domain/repository"
	"ThemePulse/pkg/logger"
)

var _ drepo.TickListener = (*Dispatcher)(nil)

// PushMessage is the envelope delivered to subscribers.
type PushMessage struct {
	Channel string               `json:"channel"`
	Data    models.ThemeSnapshot `json:"data"`
}

// Subscriber receives pushes. Send must not block; it reports false when the
// message was dropped.
type Subscriber interface {
	ID() string
	Send(msg PushMessage) bool
}

// SnapshotSource produces the theme snapshot pushed to subscribers.
type SnapshotSource interface {
	GetAllThemePrices(forceRefresh bool) models.ThemeSnapshot
}

type pushChannel struct {
	name     string
	mu       sync.Mutex
	subs     map[string]Subscriber
	lastPush time.Time
}

// Dispatcher pushes theme snapshots to channel subscribers, at most once per
// interval per channel. Triggers arriving inside the interval are discarded.
type Dispatcher struct {
	source   SnapshotSource
	interval time.Duration
	now      func() time.Time
	log      *logger.Logger
	metrics  drepo.Metrics

	channels map[string]*pushChannel
}

// NewDispatcher creates a dispatcher serving the named channels.
func NewDispatcher(source SnapshotSource, interval time.Duration, channels []string, log *logger.Logger, metrics drepo.Metrics) *Dispatcher {
	d := &Dispatcher{
		source:   source,
		interval: interval,
		now:      time.Now,
		log:      log.Component("dispatcher"),
		metrics:  metrics,
		channels: make(map[string]*pushChannel, len(channels)),
	}
	for _, name := range channels {
		d.channels[name] = &pushChannel{name: name, subs: make(map[string]Subscriber)}
	}
	return d
}

// Subscribe delivers a freshly computed snapshot to sub right away, then adds
// it to the channel. Re-subscribing the same ID replaces the previous subscriber.
func (d *Dispatcher) Subscribe(channel string, sub Subscriber) error {
	ch, ok := d.channels[channel]
	if !ok {
		return models.ErrUnknownChannel
	}
	snap := d.source.GetAllThemePrices(true)

	ch.mu.Lock()
	defer ch.mu.Unlock()
	if !sub.Send(PushMessage{Channel: channel, Data: snap}) {
		d.metrics.RecordDrop("push_buffer_full")
	}
	ch.subs[sub.ID()] = sub
	d.log.Debug("subscribed", logger.String("channel", channel), logger.String("id", sub.ID()), logger.Int("subscribers", len(ch.subs)))
	return nil
}

func (d *Dispatcher) Unsubscribe(channel, id string) {
	ch, ok := d.channels[channel]
	if !ok {
		return
	}
	ch.mu.Lock()
	delete(ch.subs, id)
	ch.mu.Unlock()
}

// UnsubscribeAll removes id from every channel.
func (d *Dispatcher) UnsubscribeAll(id string) {
	for name := range d.channels {
		d.Unsubscribe(name, id)
	}
}

// Subscribers returns the member count of channel.
func (d *Dispatcher) Subscribers(channel string) int {
	ch, ok := d.channels[channel]
	if !ok {
		return 0
	}
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return len(ch.subs)
}

// OnTick is the push trigger. The snapshot is computed at most once per call
// and only when some channel is due.
func (d *Dispatcher) OnTick(models.Tick) {
	var (
		snap     models.ThemeSnapshot
		computed bool
	)
	for _, ch := range d.channels {
		ch.mu.Lock()
		if len(ch.subs) == 0 {
			ch.mu.Unlock()
			continue
		}
		now := d.now()
		if !ch.lastPush.IsZero() && now.Sub(ch.lastPush) < d.interval {
			ch.mu.Unlock()
			continue
		}
		if !computed {
			snap = d.source.GetAllThemePrices(true)
			computed = true
		}
		ch.lastPush = now
		d.broadcast(ch, snap)
		ch.mu.Unlock()
	}
}

// broadcast must be called with ch.mu held.
func (d *Dispatcher) broadcast(ch *pushChannel, snap models.ThemeSnapshot) {
	msg := PushMessage{Channel: ch.name, Data: snap}
	for _, s := range ch.subs {
		if !s.Send(msg) {
			d.metrics.RecordDrop("push_buffer_full")
		}
	}
	d.metrics.RecordPush(ch.name, len(ch.subs))
}

// ChanSubscriber buffers pushes in a channel; a full buffer drops the message.
type ChanSubscriber struct {
	id string
	ch chan PushMessage
}

func NewChanSubscriber(id string, buffer int) *ChanSubscriber {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChanSubscriber{id: id, ch: make(chan PushMessage, buffer)}
}

func (s *ChanSubscriber) ID() string { return s.id }

func (s *ChanSubscriber) Send(msg PushMessage) bool {
	select {
	case s.ch <- msg:
		return true
	default:
		return false
	}
}

// C returns the receive side of the buffer.
func (s *ChanSubscriber) C() <-chan PushMessage { return s.ch }
