package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryExpiry(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(time.Hour)
	defer m.Close()

	require.NoError(t, m.Set(ctx, "calendar", []byte("[1,2]"), 50*time.Millisecond))
	require.NoError(t, m.Set(ctx, "mapping", []byte("{}"), 0))

	v, ok, err := m.Get(ctx, "calendar")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "[1,2]", string(v))

	time.Sleep(80 * time.Millisecond)
	_, ok, _ = m.Get(ctx, "calendar")
	assert.False(t, ok, "entry should have expired")

	_, ok, _ = m.Get(ctx, "mapping")
	assert.True(t, ok, "zero ttl never expires")

	m.cleanup()
	assert.Equal(t, 1, m.Len())
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(time.Hour)
	defer m.Close()

	want := map[string]string{"AAPL": "001690001"}
	require.NoError(t, SetJSON(ctx, m, "tickers", want, time.Minute))

	var got map[string]string
	ok, err := GetJSON(ctx, m, "tickers", &got)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want, got)

	require.NoError(t, m.Set(ctx, "broken", []byte("{"), time.Minute))
	ok, err = GetJSON(ctx, m, "broken", &got)
	assert.NoError(t, err)
	assert.False(t, ok)

	ok, err = GetJSON(ctx, m, "absent", &got)
	assert.NoError(t, err)
	assert.False(t, ok)
}
