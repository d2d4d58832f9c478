package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

func TestMemory_JSONHelpers(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()

	var out sample
	assert.ErrorIs(t, GetJSON(ctx, c, "track:react", &out), ErrMiss)

	require.NoError(t, SetJSON(ctx, c, "track:react", sample{Name: "React", Price: 100}, time.Minute))
	require.NoError(t, GetJSON(ctx, c, "track:react", &out))
	assert.Equal(t, sample{Name: "React", Price: 100}, out)

	require.NoError(t, c.Delete(ctx, "track:react"))
	assert.ErrorIs(t, GetJSON(ctx, c, "track:react", &out), ErrMiss)
}

func TestMemory_Expiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "k", "v", time.Second))
	v, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)

	now = now.Add(2 * time.Second)
	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestNoop(t *testing.T) {
	ctx := context.Background()
	var c Cache = Noop{}
	require.NoError(t, c.Set(ctx, "k", "v", 0))
	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)
}
