package messagequeue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocal_PublishConsume(t *testing.T) {
	q := NewLocal(4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan string, 2)
	done := make(chan error, 1)
	go func() {
		done <- q.Consume(ctx, "notifications", func(body []byte) { got <- string(body) })
	}()

	require.NoError(t, q.Publish(ctx, "notifications", []byte("a")))
	require.NoError(t, q.Publish(ctx, "notifications", []byte("b")))

	for _, want := range []string{"a", "b"} {
		select {
		case v := <-got:
			assert.Equal(t, want, v)
		case <-time.After(time.Second):
			t.Fatal("message not delivered")
		}
	}

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestLocal_FullQueueDrops(t *testing.T) {
	q := NewLocal(1)
	ctx := context.Background()
	require.NoError(t, q.Publish(ctx, "n", []byte("1")))
	require.NoError(t, q.Publish(ctx, "n", []byte("2")))
}

func TestLocal_Close(t *testing.T) {
	q := NewLocal(1)
	require.NoError(t, q.Close())
	require.NoError(t, q.Close())
	assert.ErrorIs(t, q.Publish(context.Background(), "n", nil), ErrClosed)
}

func TestLocal_PublishRacingClose(t *testing.T) {
	for i := 0; i < 50; i++ {
		q := NewLocal(4)
		var wg sync.WaitGroup
		for p := 0; p < 8; p++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for n := 0; n < 20; n++ {
					err := q.Publish(context.Background(), "n", []byte("x"))
					if err != nil {
						assert.ErrorIs(t, err, ErrClosed)
						return
					}
				}
			}()
		}
		require.NotPanics(t, func() { _ = q.Close() })
		wg.Wait()
	}
}
