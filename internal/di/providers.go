package di

import (
	"context"
	"fmt"
	"time"

	"ThemePulse/internal/domain/repository"
	"ThemePulse/internal/handler/api"
	mid "ThemePulse/internal/middleware"
	internalrepo "ThemePulse/internal/repository"
	"ThemePulse/internal/service/cache"
	"ThemePulse/internal/service/directory"
	"ThemePulse/internal/service/kis"
	apimetrics "ThemePulse/internal/service/metrics"
	"ThemePulse/internal/service/pricecache"
	"ThemePulse/internal/service/ratelimit"
	"ThemePulse/internal/service/session"
	"ThemePulse/internal/usecase"
	pkgch "ThemePulse/pkg/clickhouse"
	"ThemePulse/pkg/config"
	xhttp "ThemePulse/pkg/http"
	pkgkafka "ThemePulse/pkg/kafka"
	"ThemePulse/pkg/logger"
	"ThemePulse/pkg/metrics"
	"ThemePulse/pkg/server"
)

// ProvideLogger builds the root logger from config.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	return logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics(cfg *config.Config) repository.Metrics {
	if !cfg.Metrics.Enabled {
		return metrics.Nop{}
	}
	apimetrics.Register()
	return metrics.New()
}

// ProvideDirectory loads the theme file, or the embedded default when none is configured.
func ProvideDirectory(cfg *config.Config) (*directory.Directory, error) {
	if cfg.Themes.File == "" {
		return directory.Default()
	}
	return directory.Load(cfg.Themes.File)
}

func ProvideClock() *session.Clock {
	return session.NewClock()
}

func ProvidePriceCache() *pricecache.Cache {
	return pricecache.New()
}

func ProvideSnapshotCache() *cache.TTLCache {
	return cache.NewTTLCache()
}

// ProvideBytesCache returns Redis when enabled and reachable, otherwise an
// in-process TTL cache.
func ProvideBytesCache(cfg *config.Config, l *logger.Logger) (cache.BytesCache, func()) {
	if !cfg.Redis.Enabled {
		return cache.NewTTLCache(), func() {}
	}
	rc := cache.NewRedisCache(cache.RedisConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		Prefix:   cfg.Redis.Prefix,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rc.Ping(ctx); err != nil {
		l.Warn("redis unreachable, using in-process cache", logger.String("addr", cfg.Redis.Addr), logger.Error(err))
		_ = rc.Close()
		return cache.NewTTLCache(), func() {}
	}
	l.Info("redis cache ready", logger.String("addr", cfg.Redis.Addr))
	return rc, func() { _ = rc.Close() }
}

// ProvideKISAuth returns nil when no upstream credentials are configured.
func ProvideKISAuth(cfg *config.Config, store cache.BytesCache, l *logger.Logger) *kis.Auth {
	if !cfg.FeedEnabled() {
		return nil
	}
	return kis.NewAuth(
		xhttp.NewClient(xhttp.WithTimeout(cfg.KIS.HandshakeTimeout)),
		cfg.KIS.RestURL,
		kis.Credentials{AppKey: cfg.KIS.AppKey, AppSecret: cfg.KIS.AppSecret},
		cfg.KIS.TokenRefreshMargin,
		cfg.KIS.HandshakeTimeout,
		l,
		kis.WithTokenStore(store),
	)
}

// ProvideQuoteLookup returns a nil interface when the feed is disabled.
func ProvideQuoteLookup(cfg *config.Config, auth *kis.Auth) repository.QuoteLookup {
	if auth == nil {
		return nil
	}
	return kis.NewQuotes(
		xhttp.NewClient(xhttp.WithTimeout(cfg.KIS.HandshakeTimeout)),
		cfg.KIS.RestURL,
		auth,
		cfg.KIS.RequestInterval,
		cfg.KIS.RetryMax,
		cfg.KIS.RetryDelay,
	)
}

// ProvidePipeline builds the tick pipeline between the feed and the price cache.
func ProvidePipeline(prices *pricecache.Cache, dir *directory.Directory, m repository.Metrics) *mid.RealtimePipeline {
	return mid.NewRealtimePipeline(prices, m, mid.WithNames(dir))
}

func ProvideAggregator(
	cfg *config.Config,
	dir *directory.Directory,
	prices *pricecache.Cache,
	quotes repository.QuoteLookup,
	clock *session.Clock,
	snapshots *cache.TTLCache,
	store cache.BytesCache,
	l *logger.Logger,
	m repository.Metrics,
) *usecase.Aggregator {
	return usecase.NewAggregator(dir, prices, quotes, clock, snapshots, store, usecase.AggregatorOptions{
		TopN:          cfg.Themes.TopN,
		SnapshotTTL:   cfg.Themes.SnapshotTTL,
		OnDemandLimit: cfg.Themes.OnDemandLimit,
		OnDemandTTL:   cfg.Themes.OnDemandTTL,
	}, l, m)
}

// ProvideDispatcher creates the push dispatcher and registers it as a tick listener.
func ProvideDispatcher(
	cfg *config.Config,
	agg *usecase.Aggregator,
	pipe *mid.RealtimePipeline,
	l *logger.Logger,
	m repository.Metrics,
) *usecase.Dispatcher {
	d := usecase.NewDispatcher(agg, cfg.Push.Interval, []string{cfg.Push.Channel}, l, m)
	pipe.AddListener(d)
	return d
}

// ProvideFeedCollector returns nil when the feed is disabled.
func ProvideFeedCollector(
	cfg *config.Config,
	auth *kis.Auth,
	quotes repository.QuoteLookup,
	prices *pricecache.Cache,
	pipe *mid.RealtimePipeline,
	clock *session.Clock,
	dir *directory.Directory,
	l *logger.Logger,
	m repository.Metrics,
) *usecase.FeedCollector {
	if auth == nil {
		return nil
	}
	stream := kis.NewStream(cfg.KIS.WebSocketURL, auth, cfg.KIS.HandshakeTimeout, cfg.KIS.PingInterval, l, m)
	return usecase.NewFeedCollector(stream, auth, quotes, prices, pipe, clock, usecase.FeedOptions{
		Codes:               dir.SubscriptionCodes(cfg.Themes.TopN, cfg.KIS.MaxSubscriptions),
		ReconnectDelay:      cfg.KIS.ReconnectDelay,
		BootstrapWhenClosed: cfg.KIS.BootstrapWhenClosed,
	}, l, m)
}

// ProvideClickHouseClient creates a ClickHouse client and prepares the
// history table. Returns nil when no host is configured.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, func(), error) {
	if cfg.ClickHouse.Host == "" {
		return nil, func() {}, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase("default"),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.InitSchema(ctx, pkgch.HistorySchema(cfg.ClickHouse.Database, cfg.History.Table, cfg.History.RetentionDays)); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, func() { _ = client.Close() }, nil
}

// ProvideHistoryStore returns a nil interface without ClickHouse.
func ProvideHistoryStore(client *pkgch.Client, cfg *config.Config, l *logger.Logger) repository.HistoryStore {
	if client == nil {
		return nil
	}
	return internalrepo.NewClickHouseHistory(client.DB(), cfg.ClickHouse.Database+"."+cfg.History.Table, l)
}

// ProvideKafkaProducer creates a Kafka producer. Returns nil when no brokers are configured.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithDelivery(cfg.Kafka.RequiredAcks, cfg.Kafka.MaxAttempts),
		pkgkafka.WithBatching(cfg.Kafka.BatchTimeout, cfg.Kafka.Async),
		pkgkafka.WithTimeouts(cfg.Kafka.WriteTimeout, cfg.Kafka.WriteTimeout),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideSamplePublisher returns a nil interface without Kafka. The
// publisher owns the producer and closes it.
func ProvideSamplePublisher(producer *pkgkafka.Producer, cfg *config.Config) (repository.SamplePublisher, func()) {
	if producer == nil {
		return nil, func() {}
	}
	pub := internalrepo.NewKafkaSamplePublisher(producer, cfg.Kafka.Topic)
	return pub, func() { _ = pub.Close() }
}

func ProvideHistoryRecorder(
	cfg *config.Config,
	agg *usecase.Aggregator,
	dir *directory.Directory,
	store repository.HistoryStore,
	pub repository.SamplePublisher,
	clock *session.Clock,
	l *logger.Logger,
	m repository.Metrics,
) *usecase.HistoryRecorder {
	return usecase.NewHistoryRecorder(agg, dir, store, pub, clock, usecase.HistoryOptions{
		FineInterval:   cfg.History.FineInterval,
		CoarseInterval: cfg.History.CoarseInterval,
		RingCapacity:   cfg.History.RingCapacity,
		WriteTimeout:   cfg.History.WriteTimeout,
	}, l, m)
}

// ProvideHTTPServer registers the query surface and the push endpoint.
func ProvideHTTPServer(
	cfg *config.Config,
	l *logger.Logger,
	agg *usecase.Aggregator,
	history *usecase.HistoryRecorder,
	clock *session.Clock,
	prices *pricecache.Cache,
	feed *usecase.FeedCollector,
	dispatcher *usecase.Dispatcher,
) *xhttp.Server {
	themes := api.NewThemesEchoHandler(l, agg, history, clock, prices, feed, ratelimit.New(), api.RefreshLimit{
		Burst:     cfg.Server.RefreshBurst,
		PerSecond: cfg.Server.RefreshPerSec,
	})
	ws := api.NewWSHandler(l, dispatcher, cfg.Push.ClientBuffer, cfg.Push.PingInterval)

	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	return xhttp.NewServer(l, []xhttp.Handler{themes, ws},
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithSlowThreshold(cfg.Server.SlowThreshold),
		xhttp.WithMetricsPath(metricsPath),
	)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *logger.Logger,
	feed *usecase.FeedCollector,
	history *usecase.HistoryRecorder,
	httpServer *xhttp.Server,
	store repository.HistoryStore,
) *server.App {
	return server.New(cfg, l, feed, history, httpServer, store)
}
