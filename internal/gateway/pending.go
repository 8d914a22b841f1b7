package gateway

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// PendingOperation tracks one sent motor command until the device reports
// a resting position. Only the most recent command of a Client is tracked;
// sending a new one resolves the previous with ErrSuperseded.
type PendingOperation struct {
	DeviceID  string
	Operation Operation
	Seq       uint16
	SentAt    time.Time

	accepted atomic.Bool // gateway answered 200

	once     sync.Once
	done     chan struct{}
	position Position
	err      error
}

func newPendingOperation(deviceID string, op Operation, seq uint16) *PendingOperation {
	return &PendingOperation{
		DeviceID:  deviceID,
		Operation: op,
		Seq:       seq,
		SentAt:    time.Now(),
		done:      make(chan struct{}),
	}
}

// Done is closed once the operation is resolved.
func (p *PendingOperation) Done() <-chan struct{} {
	return p.done
}

// Accepted reports whether the gateway acknowledged the command.
func (p *PendingOperation) Accepted() bool {
	return p.accepted.Load()
}

// Result returns the final position or the failure. It is only meaningful
// after Done is closed.
func (p *PendingOperation) Result() (Position, error) {
	select {
	case <-p.done:
		return p.position, p.err
	default:
		return 0, nil
	}
}

// Wait blocks until the operation resolves. A timeout yields an
// ErrCommandTimeout error and leaves the operation unresolved.
func (p *PendingOperation) Wait(ctx context.Context, timeout time.Duration) (Position, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-p.done:
		return p.position, p.err
	case <-timer.C:
		return 0, newError(KindTimeout, "remote-control", ErrCommandTimeout)
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// resolve completes the operation; later calls are ignored.
func (p *PendingOperation) resolve(pos Position, err error) bool {
	resolved := false
	p.once.Do(func() {
		p.position = pos
		p.err = err
		close(p.done)
		resolved = true
	})
	return resolved
}
