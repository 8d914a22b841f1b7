package gateway

import (
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

// StatusEvent reports a device change.
type StatusEvent struct {
	DeviceID string
	Name     string
	Status   string
	Position Position
	Snapshot bool // emitted while rebuilding the registry from home info
	Time     time.Time
}

// Subscription receives status events until Close is called. Events are
// dropped, not queued, when the buffer is full.
type Subscription struct {
	C <-chan StatusEvent

	id     uint64
	sub    *subscriber
	client *Client
}

// Close stops delivery and closes C.
func (s *Subscription) Close() {
	s.client.subs.Delete(s.id)
	s.sub.close()
}

type subscriber struct {
	mu     sync.Mutex
	ch     chan StatusEvent
	closed bool
}

// send delivers without blocking and reports whether the event fit.
func (s *subscriber) send(ev StatusEvent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return true
	}
	select {
	case s.ch <- ev:
		return true
	default:
		return false
	}
}

func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

func newSubscriberMap() *xsync.MapOf[uint64, *subscriber] {
	return xsync.NewMapOf[uint64, *subscriber]()
}

// Subscribe registers a listener for status events. buffer is the channel
// capacity; values below 1 are raised to 1.
func (c *Client) Subscribe(buffer int) *Subscription {
	if buffer < 1 {
		buffer = 1
	}

	sub := &subscriber{ch: make(chan StatusEvent, buffer)}
	id := c.nextSubID.Add(1)
	c.subs.Store(id, sub)

	return &Subscription{C: sub.ch, id: id, sub: sub, client: c}
}

func (c *Client) publish(ev StatusEvent) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}

	c.subs.Range(func(_ uint64, sub *subscriber) bool {
		if sub.send(ev) {
			c.metrics.events.Inc()
		} else {
			c.metrics.eventsDropped.Inc()
		}
		return true
	})
}
