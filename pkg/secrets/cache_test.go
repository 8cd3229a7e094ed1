package secrets

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_PutGet(t *testing.T) {
	c := NewCache[map[string]string](time.Minute)

	c.Put("db", map[string]string{"dsn": "postgres://..."})
	got, ok := c.Get("db")
	require.True(t, ok)
	assert.Equal(t, "postgres://...", got["dsn"])
}

func TestCache_MissingKey(t *testing.T) {
	c := NewCache[string](time.Minute)

	_, ok := c.Get("nope")
	assert.False(t, ok)
}

func TestCache_Expiry(t *testing.T) {
	c := NewCache[string](10 * time.Millisecond)

	c.Put("k", "v")
	time.Sleep(20 * time.Millisecond)

	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestCache_Bust(t *testing.T) {
	c := NewCache[string](time.Minute)

	c.Put("k", "v")
	c.Bust("k")

	_, ok := c.Get("k")
	assert.False(t, ok)
}
