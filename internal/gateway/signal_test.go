package gateway

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignalReleasesAllWaiters(t *testing.T) {
	s := newSignal()
	errBoom := errors.New("boom")

	var wg sync.WaitGroup
	results := make(chan error, 3)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- s.Wait(context.Background(), 2*time.Second)
		}()
	}

	time.Sleep(10 * time.Millisecond)
	s.Set(errBoom)
	wg.Wait()
	close(results)

	for err := range results {
		assert.ErrorIs(t, err, errBoom)
	}
	assert.True(t, s.IsSet())
}

func TestSignalFirstSetWins(t *testing.T) {
	s := newSignal()
	s.Set(nil)
	s.Set(errors.New("late"))

	assert.NoError(t, s.Wait(context.Background(), time.Millisecond))
}

func TestSignalClearRearms(t *testing.T) {
	s := newSignal()
	s.Set(nil)
	done := s.Done()

	s.Clear()
	assert.False(t, s.IsSet())

	select {
	case <-done:
	default:
		t.Fatal("previous generation should stay released")
	}

	err := s.Wait(context.Background(), 20*time.Millisecond)
	assert.ErrorIs(t, err, errWaitTimeout)
}

func TestSignalClearWhenUnsetKeepsWaiters(t *testing.T) {
	s := newSignal()
	done := s.Done()
	s.Clear()
	s.Set(nil)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("waiter not released")
	}
}

func TestSignalContextCancel(t *testing.T) {
	s := newSignal()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Wait(ctx, time.Second)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
