package usecase

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"ThemePulse/internal/domain/models"
	drepo "ThemePulse/internal/domain/repository"
	mid "ThemePulse/internal/middleware"
	"ThemePulse/pkg/logger"
)

// TokenSource issues the REST access token needed before the stream handshake.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// SessionGate reports whether the market session is worth trusting.
type SessionGate interface {
	IsOpen() bool
}

// FeedOptions tunes the collector's startup and recovery behaviour.
type FeedOptions struct {
	Codes               []string
	ReconnectDelay      time.Duration
	BootstrapWhenClosed bool
}

// FeedCollector owns the single upstream feed connection: handshake,
// subscription, cache bootstrap and fixed-delay reconnect.
type FeedCollector struct {
	stream  drepo.MarketStream
	tokens  TokenSource
	quotes  drepo.QuoteLookup
	prices  drepo.PriceReader
	pipe    *mid.RealtimePipeline
	session SessionGate
	opts    FeedOptions
	log     *logger.Logger
	metrics drepo.Metrics

	// afterFunc is time.AfterFunc; tests swap it to fire reconnects by hand.
	afterFunc func(d time.Duration, f func()) *time.Timer

	mu      sync.Mutex
	root    context.Context
	cancel  context.CancelFunc
	timer   *time.Timer
	pending atomic.Bool
	stopped atomic.Bool
}

// NewFeedCollector creates a new FeedCollector instance.
func NewFeedCollector(
	stream drepo.MarketStream,
	tokens TokenSource,
	quotes drepo.QuoteLookup,
	prices drepo.PriceReader,
	pipe *mid.RealtimePipeline,
	session SessionGate,
	opts FeedOptions,
	log *logger.Logger,
	metrics drepo.Metrics,
) *FeedCollector {
	return &FeedCollector{
		stream:    stream,
		tokens:    tokens,
		quotes:    quotes,
		prices:    prices,
		pipe:      pipe,
		session:   session,
		opts:      opts,
		log:       log.Component("feed"),
		metrics:   metrics,
		afterFunc: time.AfterFunc,
	}
}

// IsConnected returns true if the market stream is connected.
func (c *FeedCollector) IsConnected() bool {
	if c == nil {
		return false
	}
	return c.stream.IsConnected()
}

// Start runs the startup sequence once. On failure a reconnect is already
// scheduled when the error is returned.
func (c *FeedCollector) Start(ctx context.Context) error {
	c.mu.Lock()
	c.root = ctx
	c.mu.Unlock()

	if err := c.connect(); err != nil {
		c.log.Error("feed startup failed", logger.Error(err))
		c.scheduleReconnect()
		return err
	}
	return nil
}

// connect performs token, approval, connect, subscribe and bootstrap.
func (c *FeedCollector) connect() error {
	c.mu.Lock()
	root := c.root
	c.mu.Unlock()
	if root == nil || root.Err() != nil {
		return context.Canceled
	}

	start := time.Now()
	if _, err := c.tokens.AccessToken(root); err != nil {
		c.metrics.RecordError("feed_token")
		return err
	}
	if err := c.stream.Connect(root); err != nil {
		c.metrics.RecordError("feed_connect")
		return err
	}

	connCtx, cancel := context.WithCancel(root)
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()

	ticks, errs := c.stream.Read(connCtx)
	go c.consume(connCtx, ticks, errs)

	if err := c.stream.Subscribe(connCtx, c.opts.Codes); err != nil {
		c.metrics.RecordError("feed_subscribe")
		return err
	}
	c.log.Info("feed started",
		logger.Int("codes", len(c.opts.Codes)),
		logger.Duration("handshake_ms", time.Since(start)))

	if c.quotes != nil && (c.opts.BootstrapWhenClosed || c.session.IsOpen()) {
		go c.bootstrap(connCtx)
	}
	return nil
}

func (c *FeedCollector) consume(ctx context.Context, ticks <-chan models.Tick, errs <-chan error) {
	for ticks != nil || errs != nil {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err != nil {
				c.metrics.RecordError("stream")
				c.log.Warn("feed transport lost", logger.Error(err))
				c.scheduleReconnect()
			}
		case t, ok := <-ticks:
			if !ok {
				ticks = nil
				continue
			}
			if err := c.pipe.Process(t); err != nil {
				c.log.Debug("tick dropped", logger.String("code", t.Code), logger.Error(err))
			}
		}
	}
}

// bootstrap fills the cache with point lookups, one at a time. Codes the
// stream has already written are skipped.
func (c *FeedCollector) bootstrap(ctx context.Context) {
	start := time.Now()
	filled := 0
	for _, code := range c.opts.Codes {
		if ctx.Err() != nil {
			return
		}
		if _, ok := c.prices.Get(code); ok {
			continue
		}
		t, err := c.quotes.Quote(ctx, code)
		if err != nil {
			c.metrics.RecordError("bootstrap_lookup")
			c.log.Debug("bootstrap lookup failed", logger.String("code", code), logger.Error(err))
			continue
		}
		if ok, err := c.pipe.Seed(t); err == nil && ok {
			filled++
		}
	}
	c.metrics.RecordLatency("feed_bootstrap", time.Since(start).Seconds())
	c.log.Info("bootstrap done", logger.Int("filled", filled), logger.Int("codes", len(c.opts.Codes)))
}

// scheduleReconnect arms the single reconnect timer. Calls while one is
// pending are no-ops.
func (c *FeedCollector) scheduleReconnect() {
	if c.stopped.Load() {
		return
	}
	if !c.pending.CompareAndSwap(false, true) {
		return
	}
	c.metrics.RecordReconnect()
	c.log.Info("reconnect scheduled", logger.Duration("delay_ms", c.opts.ReconnectDelay))
	t := c.afterFunc(c.opts.ReconnectDelay, c.reconnect)
	c.mu.Lock()
	c.timer = t
	c.mu.Unlock()
}

func (c *FeedCollector) reconnect() {
	c.pending.Store(false)
	if c.stopped.Load() {
		return
	}
	c.teardown()
	if err := c.connect(); err != nil {
		c.log.Error("reconnect failed", logger.Error(err))
		c.scheduleReconnect()
	}
}

func (c *FeedCollector) teardown() {
	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	_ = c.stream.Close()
}

// Shutdown cancels any pending reconnect and closes the stream.
func (c *FeedCollector) Shutdown(ctx context.Context) error {
	c.stopped.Store(true)
	c.mu.Lock()
	if c.timer != nil {
		c.timer.Stop()
	}
	c.mu.Unlock()
	c.teardown()
	return nil
}
