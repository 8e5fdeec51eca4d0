package locker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryAcquireRelease(t *testing.T) {
	l := NewMemory()

	release, err := l.Acquire(context.Background(), []string{"email:a@x.com", "phone:123"})
	require.NoError(t, err)
	release()

	// Re-acquiring after release must not block.
	release, err = l.Acquire(context.Background(), []string{"email:a@x.com"})
	require.NoError(t, err)
	release()
}

func TestMemoryMutualExclusion(t *testing.T) {
	l := NewMemory()
	keys := []string{"email:a@x.com"}

	release, err := l.Acquire(context.Background(), keys)
	require.NoError(t, err)

	var mu sync.Mutex
	holders := 0
	maxHolders := 0
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := l.Acquire(context.Background(), keys)
			if err != nil {
				return
			}
			mu.Lock()
			holders++
			if holders > maxHolders {
				maxHolders = holders
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			holders--
			mu.Unlock()
			r()
		}()
	}

	// Everyone is parked behind the held lock until we let go.
	time.Sleep(10 * time.Millisecond)
	mu.Lock()
	assert.Equal(t, 0, holders)
	mu.Unlock()

	release()
	wg.Wait()
	assert.Equal(t, 1, maxHolders)
}

func TestMemoryOverlappingKeySetsDoNotDeadlock(t *testing.T) {
	l := NewMemory()
	done := make(chan struct{})

	go func() {
		defer close(done)
		var wg sync.WaitGroup
		// Opposite declaration orders; sorted acquisition makes this safe.
		for range 50 {
			wg.Add(2)
			go func() {
				defer wg.Done()
				r, err := l.Acquire(context.Background(), []string{"email:a@x.com", "phone:123"})
				if err == nil {
					r()
				}
			}()
			go func() {
				defer wg.Done()
				r, err := l.Acquire(context.Background(), []string{"phone:123", "email:a@x.com"})
				if err == nil {
					r()
				}
			}()
		}
		wg.Wait()
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("lockers deadlocked on overlapping key sets")
	}
}

func TestMemoryReleaseIsIdempotent(t *testing.T) {
	l := NewMemory()
	release, err := l.Acquire(context.Background(), []string{"email:a@x.com"})
	require.NoError(t, err)
	release()
	assert.NotPanics(t, release)
}

func TestMemoryCanceledContext(t *testing.T) {
	l := NewMemory()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := l.Acquire(ctx, []string{"email:a@x.com"})
	assert.Error(t, err)
}

func TestSortedUnique(t *testing.T) {
	assert.Equal(t,
		[]string{"email:a@x.com", "phone:123"},
		sortedUnique([]string{"phone:123", "email:a@x.com", "phone:123", ""}))
}
