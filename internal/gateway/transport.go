package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/gfhanger/internal/logging"
	"github.com/muurk/gfhanger/internal/protocol"
)

const readBufferSize = 4096

// Connect opens a connection unless one is already being read. Up to
// MaxRetries dials are made; when all fail the client turns terminal.
func (c *Client) Connect(ctx context.Context) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn != nil && !c.closed.Load() {
		return nil
	}

	c.sess.setState(StateConnecting)

	var lastErr error
	attempts := 0
	for attempts < c.cfg.MaxRetries {
		if attempts > 0 && c.cfg.RetryDelay > 0 {
			select {
			case <-time.After(c.cfg.RetryDelay):
			case <-ctx.Done():
				lastErr = ctx.Err()
			}
			if ctx.Err() != nil {
				break
			}
		}
		attempts++

		c.metrics.dialAttempts.Inc()
		conn, err := c.dial(ctx)
		if err == nil {
			c.start(conn)
			return nil
		}

		lastErr = err
		c.metrics.dialFailures.Inc()
		logging.Warn("Failed to connect to gateway",
			zap.String("addr", c.addr),
			zap.Int("attempt", attempts),
			zap.Int("max_retries", c.cfg.MaxRetries),
			zap.String("reason", describeDialError(err)),
			zap.Error(err),
		)

		if ctx.Err() != nil {
			break
		}
	}

	logging.Error("Giving up connecting to gateway",
		zap.String("addr", c.addr),
		zap.Int("attempts", attempts),
	)
	c.shouldExit.Store(true)
	c.sess.closed()

	return newError(KindTransport, "connect",
		fmt.Errorf("%w: %s after %d attempts: %w", ErrConnectFailed, c.addr, attempts, lastErr))
}

func (c *Client) dial(ctx context.Context) (net.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, c.cfg.DialTimeout)
	defer cancel()

	var d net.Dialer
	return d.DialContext(dialCtx, "tcp", c.addr)
}

// start installs conn as the current connection. Caller holds connMu.
func (c *Client) start(conn net.Conn) {
	cn := &connection{Conn: conn, done: make(chan struct{})}
	c.conn = cn
	c.closed.Store(false)
	c.shouldExit.Store(false)
	c.sess.setState(StateAuthenticating)
	c.metrics.connected.Set(1)

	logging.LogConnection(c.addr, "connected")

	go c.readLoop(cn)
}

func (c *Client) current() *connection {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.closed.Load() {
		return nil
	}
	return c.conn
}

func (c *Client) isCurrent(cn *connection) bool {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	return c.conn == cn && !c.closed.Load()
}

// readLoop owns the decoder of one connection.
func (c *Client) readLoop(cn *connection) {
	defer close(cn.done)

	dec := protocol.NewDecoder()
	buf := make([]byte, readBufferSize)
	var discarded uint64

	for {
		n, err := cn.Read(buf)
		if n > 0 {
			c.metrics.bytesIn.Add(float64(n))
			dec.Feed(buf[:n])
			for {
				frame, ok := dec.Next()
				if !ok {
					break
				}
				c.handleFrame(cn, frame)
			}
			if d := dec.Discarded(); d > discarded {
				c.metrics.noiseBytes.Add(float64(d - discarded))
				logging.Debug("Discarded noise bytes", zap.Uint64("count", d-discarded))
				discarded = d
			}
		}
		if err != nil {
			if cn.localClose.Load() {
				logging.Debug("Read loop stopped", zap.String("addr", c.addr))
			} else if errors.Is(err, io.EOF) {
				logging.Info("Gateway closed the connection", zap.String("addr", c.addr))
			} else {
				logging.Warn("Gateway connection lost", zap.String("addr", c.addr), zap.Error(err))
			}
			break
		}
		if n == 0 {
			logging.Info("Gateway closed the connection", zap.String("addr", c.addr))
			break
		}
	}

	c.connectionEnded(cn)

	if !cn.localClose.Load() {
		if frame, ok := dec.Flush(); ok {
			logging.LogRawBytes("Dispatching residual frame", frame.Raw)
			c.dispatch(frame)
		}
	}
}

// connectionEnded marks cn closed if it is still current.
func (c *Client) connectionEnded(cn *connection) {
	_ = cn.Close()

	lost := newError(KindTransport, "receive", ErrNotConnected)

	c.connMu.Lock()
	current := c.conn == cn
	if current {
		c.closed.Store(true)
		c.metrics.connected.Set(0)
		c.sess.connectionLost()
		// Under connMu so a Login re-arming the signal cannot interleave.
		c.login.Set(lost)
	}
	c.connMu.Unlock()

	if !current {
		return
	}

	logging.LogConnection(c.addr, "disconnected")
	if op := c.sess.takeAnyPending(); op != nil {
		op.resolve(0, lost)
	}
}

// SendHex writes a hex-encoded frame. A closed connection is reopened
// first; write failures reconnect and retry up to MaxRetries times.
func (c *Client) SendHex(ctx context.Context, hexFrame string) error {
	data, err := protocol.DecodeHex(hexFrame)
	if err != nil {
		logging.Error("Refusing to send invalid hex frame", zap.String("hex", hexFrame), zap.Error(err))
		return newError(KindInvalid, "send", fmt.Errorf("%w: %w", ErrInvalidFrame, err))
	}
	return c.send(ctx, data)
}

func (c *Client) send(ctx context.Context, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		cn := c.current()
		if cn == nil {
			c.metrics.reconnects.Inc()
			logging.Info("Connection closed, reconnecting before send", zap.String("addr", c.addr))
			if err := c.Connect(ctx); err != nil {
				return err
			}
			if cn = c.current(); cn == nil {
				lastErr = ErrNotConnected
				continue
			}
		}

		err := c.write(cn, data)
		if err == nil {
			c.metrics.framesOut.Inc()
			c.metrics.bytesOut.Add(float64(len(data)))
			logging.LogFrame(c.addr, "send", frameTypeOf(data), data)
			return nil
		}

		lastErr = err
		logging.Warn("Write to gateway failed",
			zap.String("addr", c.addr),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		c.drop(cn)
	}

	logging.Error("Giving up sending to gateway", zap.Int("attempts", c.cfg.MaxRetries))
	c.shouldExit.Store(true)
	return newError(KindTransport, "send", fmt.Errorf("%w: %w", ErrNotConnected, lastErr))
}

func (c *Client) write(cn *connection, data []byte) error {
	if err := cn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout)); err != nil {
		return err
	}
	_, err := cn.Write(data)
	return err
}

// drop closes a broken connection without making the client terminal.
func (c *Client) drop(cn *connection) {
	cn.localClose.Store(true)
	_ = cn.Close()

	c.connMu.Lock()
	if c.conn == cn {
		c.closed.Store(true)
		c.metrics.connected.Set(0)
	}
	c.connMu.Unlock()
}

// Close stops the read loop, closes the socket and makes the client
// terminal. Waiting logins and commands fail with ErrClosed. It does not
// wait for the read loop, so handlers may call it.
func (c *Client) Close() error {
	c.closeWith(newError(KindTransport, "close", ErrClosed))
	return nil
}

// closeWith closes the client and fails waiters with cause. The closed
// flag is set before waiters are released.
func (c *Client) closeWith(cause error) {
	c.shouldExit.Store(true)

	c.connMu.Lock()
	cn := c.conn
	c.closed.Store(true)
	c.metrics.connected.Set(0)
	c.connMu.Unlock()

	c.sess.closed()

	// Waiters are released before the socket closes so the read loop
	// cannot report the local close as a lost connection.
	c.login.Set(cause)
	if op := c.sess.takeAnyPending(); op != nil {
		op.resolve(0, cause)
	}

	if cn != nil && cn.localClose.CompareAndSwap(false, true) {
		if err := cn.Close(); err != nil {
			logging.Debug("Error closing gateway connection", zap.Error(err))
		}
		logging.LogConnection(c.addr, "closed")
	}
}

// Shutdown closes the client and waits for the read loop to exit.
func (c *Client) Shutdown(ctx context.Context) error {
	c.connMu.Lock()
	cn := c.conn
	c.connMu.Unlock()

	_ = c.Close()

	if cn == nil {
		return nil
	}
	select {
	case <-cn.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func frameTypeOf(data []byte) string {
	if len(data) < protocol.TagSize {
		return "short"
	}
	return protocol.FrameType(uint16(data[0])<<8 | uint16(data[1])).String()
}
