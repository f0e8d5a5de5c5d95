package logger

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(&Config{Level: "loud", Output: "stdout"})
	require.Error(t, err)
}

func TestFieldKeyValues(t *testing.T) {
	k, v := Duration("took_ms", 1500*time.Millisecond).GetKeyValue()
	assert.Equal(t, "took_ms", k)
	assert.Equal(t, int64(1500), v)

	k, v = Error(errors.New("boom")).GetKeyValue()
	assert.Equal(t, "error", k)
	assert.Equal(t, "boom", v)

	_, v = Strings("codes", []string{"005930", "000660"}).GetKeyValue()
	assert.Equal(t, "005930, 000660", v)
}

func TestNilLoggerChildrenAreSafe(t *testing.T) {
	var l *Logger
	child := l.Component("feed")
	require.NotNil(t, child)
	child.Info("discarded", String("k", "v"))
}
