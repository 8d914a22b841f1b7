package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPendingOperationResolvesOnce(t *testing.T) {
	op := newPendingOperation("dev", OperationRaise, 7)

	pos, err := op.Result()
	assert.Zero(t, pos)
	assert.NoError(t, err)

	assert.True(t, op.resolve(PositionOpen, nil))
	assert.False(t, op.resolve(PositionStopped, newError(KindTransport, "receive", ErrNotConnected)))

	pos, err = op.Wait(context.Background(), time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, PositionOpen, pos)

	pos, err = op.Result()
	require.NoError(t, err)
	assert.Equal(t, PositionOpen, pos)
}

func TestPendingOperationTimeout(t *testing.T) {
	op := newPendingOperation("dev", OperationLower, 1)

	_, err := op.Wait(context.Background(), 10*time.Millisecond)
	assert.ErrorIs(t, err, ErrCommandTimeout)
	assert.True(t, IsRetryable(err))

	select {
	case <-op.Done():
		t.Fatal("timeout must not resolve the operation")
	default:
	}
}

func TestSessionPendingTracking(t *testing.T) {
	var s session
	first := newPendingOperation("a", OperationRaise, 1)
	second := newPendingOperation("b", OperationLower, 2)

	assert.Nil(t, s.setPending(first))
	assert.Same(t, first, s.setPending(second))

	assert.Nil(t, s.takePending("a"))
	s.clearPending(first)
	assert.Same(t, second, s.takePending("b"))
	assert.Nil(t, s.takeAnyPending())

	last, op := s.feedback(true)
	assert.Equal(t, lastRemoteControl, last)
	assert.Nil(t, op)
	assert.True(t, s.PendingSucceeded())
}
