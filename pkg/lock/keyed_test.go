package lock

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestWithLockSerializesSameKey(t *testing.T) {
	locker := NewKeyedMutex()

	const workers = 50
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := locker.WithLock(context.Background(), "wallet:1", func(ctx context.Context) error {
				// Unsynchronized increment; only safe if the lock holds.
				counter++
				return nil
			})
			if err != nil {
				t.Errorf("with lock: %v", err)
			}
		}()
	}
	wg.Wait()

	if counter != workers {
		t.Errorf("counter = %d, want %d", counter, workers)
	}
}

func TestWithLockDifferentKeysDoNotBlock(t *testing.T) {
	locker := NewKeyedMutex()
	release := make(chan struct{})
	held := make(chan struct{})

	go locker.WithLock(context.Background(), "a", func(ctx context.Context) error {
		close(held)
		<-release
		return nil
	})

	<-held
	done := make(chan struct{})
	go func() {
		locker.WithLock(context.Background(), "b", func(ctx context.Context) error {
			return nil
		})
		close(done)
	}()

	<-done
	close(release)
}

func TestWithLockPropagatesError(t *testing.T) {
	locker := NewKeyedMutex()
	sentinel := errors.New("boom")

	err := locker.WithLock(context.Background(), "k", func(ctx context.Context) error {
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Errorf("err = %v, want sentinel", err)
	}
}

func TestWithLockRejectsCancelledContext(t *testing.T) {
	locker := NewKeyedMutex()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := locker.WithLock(ctx, "k", func(ctx context.Context) error {
		t.Error("fn ran despite cancelled context")
		return nil
	})
	if err == nil {
		t.Error("cancelled context accepted")
	}
}

func TestEntriesAreReleased(t *testing.T) {
	locker := NewKeyedMutex()

	for i := 0; i < 100; i++ {
		locker.WithLock(context.Background(), "ride:1", func(ctx context.Context) error {
			return nil
		})
	}

	locker.mu.Lock()
	remaining := len(locker.entries)
	locker.mu.Unlock()
	if remaining != 0 {
		t.Errorf("entries map holds %d stale entries", remaining)
	}
}
