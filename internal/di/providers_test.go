package di

import (
	"testing"

	"ThemePulse/internal/service/cache"
	"ThemePulse/pkg/config"
	"ThemePulse/pkg/logger"
	"ThemePulse/pkg/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T, doc string) *config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte("environment: test\n" + doc))
	require.NoError(t, err)
	return cfg
}

func TestOptionalInfrastructureStaysOff(t *testing.T) {
	cfg := testConfig(t, "metrics:\n  enabled: false\n")
	l := logger.Nop()

	m := ProvideMetrics(cfg)
	assert.IsType(t, metrics.Nop{}, m)

	store, cleanup := ProvideBytesCache(cfg, l)
	defer cleanup()
	assert.IsType(t, &cache.TTLCache{}, store)

	auth := ProvideKISAuth(cfg, store, l)
	assert.Nil(t, auth)
	assert.Nil(t, ProvideQuoteLookup(cfg, auth))

	client, chCleanup, err := ProvideClickHouseClient(cfg)
	require.NoError(t, err)
	defer chCleanup()
	assert.Nil(t, client)
	assert.Nil(t, ProvideHistoryStore(client, cfg, l))

	producer, err := ProvideKafkaProducer(cfg)
	require.NoError(t, err)
	pub, pubCleanup := ProvideSamplePublisher(producer, cfg)
	defer pubCleanup()
	assert.Nil(t, pub)
}

func TestFeedDisabledWithoutCredentials(t *testing.T) {
	cfg := testConfig(t, "metrics:\n  enabled: false\n")
	l := logger.Nop()
	m := ProvideMetrics(cfg)

	dir, err := ProvideDirectory(cfg)
	require.NoError(t, err)
	prices := ProvidePriceCache()
	clock := ProvideClock()
	pipe := ProvidePipeline(prices, dir, m)

	feed := ProvideFeedCollector(cfg, nil, nil, prices, pipe, clock, dir, l, m)
	assert.Nil(t, feed)
	assert.False(t, feed.IsConnected())
}

func TestFeedEnabledWithCredentials(t *testing.T) {
	cfg := testConfig(t, "metrics:\n  enabled: false\nkis:\n  app_key: k\n  app_secret: s\n")
	l := logger.Nop()
	m := ProvideMetrics(cfg)
	store, cleanup := ProvideBytesCache(cfg, l)
	defer cleanup()

	auth := ProvideKISAuth(cfg, store, l)
	require.NotNil(t, auth)
	quotes := ProvideQuoteLookup(cfg, auth)
	require.NotNil(t, quotes)

	dir, err := ProvideDirectory(cfg)
	require.NoError(t, err)
	prices := ProvidePriceCache()
	pipe := ProvidePipeline(prices, dir, m)
	feed := ProvideFeedCollector(cfg, auth, quotes, prices, pipe, ProvideClock(), dir, l, m)
	require.NotNil(t, feed)
	assert.False(t, feed.IsConnected())
}
