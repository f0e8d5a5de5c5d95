package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTTLCacheExpiry(t *testing.T) {
	now := time.Date(2024, 10, 16, 10, 0, 0, 0, time.UTC)
	c := NewTTLCacheWithClock(func() time.Time { return now })

	c.Set("snap", 1, 2*time.Second)
	v, ok := c.Get("snap")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	now = now.Add(2 * time.Second)
	_, ok = c.Get("snap")
	assert.True(t, ok, "entry is valid up to its expiry instant")

	now = now.Add(time.Millisecond)
	_, ok = c.Get("snap")
	assert.False(t, ok)
}

func TestTTLCacheZeroTTLNeverExpires(t *testing.T) {
	now := time.Now()
	c := NewTTLCacheWithClock(func() time.Time { return now })
	c.Set("k", "v", 0)
	now = now.Add(24 * time.Hour)
	_, ok := c.Get("k")
	assert.True(t, ok)
}

func TestTTLCacheBytes(t *testing.T) {
	c := NewTTLCache()
	require.NoError(t, c.SetBytes("token", []byte("abc"), time.Minute))
	b, ok, err := c.GetBytes("token")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("abc"), b)

	c.Set("other", 42, time.Minute)
	_, ok, err = c.GetBytes("other")
	require.NoError(t, err)
	assert.False(t, ok)

	c.Delete("token")
	_, ok, _ = c.GetBytes("token")
	assert.False(t, ok)
}
