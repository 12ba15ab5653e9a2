package shadow

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInbox_FIFO(t *testing.T) {
	q := NewInbox(4)

	require.NoError(t, q.Push(Inbound{Topic: "a"}))
	require.NoError(t, q.Push(Inbound{Topic: "b"}))
	require.NoError(t, q.Push(Inbound{Topic: "c"}))
	assert.Equal(t, 3, q.Len())

	got := q.Drain()
	require.Len(t, got, 3)
	assert.Equal(t, "a", got[0].Topic)
	assert.Equal(t, "b", got[1].Topic)
	assert.Equal(t, "c", got[2].Topic)

	assert.Equal(t, 0, q.Len())
	assert.Nil(t, q.Drain())
}

func TestInbox_FullDropsNewest(t *testing.T) {
	q := NewInbox(2)

	require.NoError(t, q.Push(Inbound{Topic: "first"}))
	require.NoError(t, q.Push(Inbound{Topic: "second"}))
	assert.ErrorIs(t, q.Push(Inbound{Topic: "third"}), ErrInboxFull)
	assert.Equal(t, uint64(1), q.Dropped())

	got := q.Drain()
	require.Len(t, got, 2)
	assert.Equal(t, "second", got[1].Topic)

	require.NoError(t, q.Push(Inbound{Topic: "fourth"}))
}

func TestInbox_DefaultSize(t *testing.T) {
	q := NewInbox(0)
	for i := 0; i < DefaultInboxSize; i++ {
		require.NoError(t, q.Push(Inbound{}))
	}
	assert.ErrorIs(t, q.Push(Inbound{}), ErrInboxFull)
}

func TestInbox_ConcurrentPush(t *testing.T) {
	q := NewInbox(100)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 15; j++ {
				_ = q.Push(Inbound{})
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, q.Len())
	assert.Equal(t, uint64(50), q.Dropped())
}
