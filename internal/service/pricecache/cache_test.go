package pricecache

import (
	"sync"
	"testing"

	"ThemePulse/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLastWriteWins(t *testing.T) {
	c := New()
	c.Put("005930", models.Tick{Code: "005930", Price: 70000})
	c.Put("005930", models.Tick{Code: "005930", Price: 71000})

	got, ok := c.Get("005930")
	require.True(t, ok)
	assert.Equal(t, 71000.0, got.Price)
	assert.Equal(t, 1, c.Len())
}

func TestPutIfAbsentKeepsExisting(t *testing.T) {
	c := New()
	c.Put("005", models.Tick{Code: "005", Price: 2})
	assert.False(t, c.PutIfAbsent("005", models.Tick{Code: "005", Price: 1}))
	assert.True(t, c.PutIfAbsent("006", models.Tick{Code: "006", Price: 1}))

	got, _ := c.Get("005")
	assert.Equal(t, 2.0, got.Price)
}

func TestAllIsACopy(t *testing.T) {
	c := New()
	c.Put("005", models.Tick{Code: "005", Price: 1})
	all := c.All()
	all["005"] = models.Tick{Code: "005", Price: 99}
	delete(all, "005")

	got, ok := c.Get("005")
	require.True(t, ok)
	assert.Equal(t, 1.0, got.Price)
}

func TestGetMissing(t *testing.T) {
	_, ok := New().Get("000000")
	assert.False(t, ok)
}

// Readers must observe whole ticks: price and volume are written together.
func TestConcurrentReadersSeeWholeTicks(t *testing.T) {
	c := New()
	c.Put("005", models.Tick{Code: "005", Price: 1, CumulativeVolume: 1})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 2; i < 5000; i++ {
			c.Put("005", models.Tick{Code: "005", Price: float64(i), CumulativeVolume: int64(i)})
		}
	}()
	for i := 0; i < 5000; i++ {
		got, _ := c.Get("005")
		if got.Price != float64(got.CumulativeVolume) {
			t.Fatalf("torn tick: price=%v volume=%v", got.Price, got.CumulativeVolume)
		}
	}
	wg.Wait()
}
