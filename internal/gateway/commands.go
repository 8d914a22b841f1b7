package gateway

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/muurk/gfhanger/internal/logging"
	"github.com/muurk/gfhanger/internal/protocol"
)

// Login connects if needed, performs the handshake and authenticates.
// It returns once onLoginInfoEnd arrives or LoginTimeout elapses; a timeout
// closes the connection. Login is not retried.
func (c *Client) Login(ctx context.Context, creds Credentials) error {
	if err := creds.Validate(); err != nil {
		return newError(KindInvalid, "login", err)
	}

	c.sess.beginLogin()
	c.connMu.Lock()
	c.login.Clear()
	c.connMu.Unlock()

	if err := c.Connect(ctx); err != nil {
		c.metrics.logins.WithLabelValues("connect_failed").Inc()
		return err
	}
	c.sess.setState(StateAuthenticating)

	loginFrame, err := protocol.EncodeCommand(c.seq.Next(), protocol.MethodLogin, protocol.LoginRequest{
		Mobile:      creds.Mobile,
		Password:    creds.Password,
		PackageName: protocol.PackageName,
		ClientID:    creds.ClientID,
	}, false)
	if err != nil {
		return newError(KindInvalid, "login", err)
	}

	steps := []struct {
		name string
		hex  string
	}{
		{"handshake", protocol.HandshakeHex},
		{"handshake ack", protocol.HandshakeAckHex},
		{"login", loginFrame},
	}

	for _, step := range steps {
		c.response.Clear()
		if err := c.SendHex(ctx, step.hex); err != nil {
			c.metrics.logins.WithLabelValues("send_failed").Inc()
			return err
		}

		switch err := c.response.Wait(ctx, c.cfg.HandshakeTimeout); {
		case err == nil:
		case errors.Is(err, errWaitTimeout):
			logging.Warn("No reply to login step, continuing",
				zap.String("step", step.name),
				zap.Duration("timeout", c.cfg.HandshakeTimeout),
			)
		default:
			return err
		}
	}

	err = c.login.Wait(ctx, c.cfg.LoginTimeout)
	switch {
	case err == nil:
		c.metrics.logins.WithLabelValues("ok").Inc()
		return nil

	case errors.Is(err, errWaitTimeout):
		logging.Error("Login timed out", zap.Duration("timeout", c.cfg.LoginTimeout))
		c.metrics.logins.WithLabelValues("timeout").Inc()
		timeout := newError(KindTimeout, "login", ErrLoginTimeout)
		c.closeWith(timeout)
		return timeout

	case errors.Is(err, ErrLoginRejected):
		c.metrics.logins.WithLabelValues("rejected").Inc()
		return err

	default:
		c.metrics.logins.WithLabelValues("failed").Inc()
		return err
	}
}

// RemoteControl sends a motor command and returns once it is written. A
// closed or unauthenticated session is logged in first. The returned
// operation resolves when the device reports a resting position.
func (c *Client) RemoteControl(ctx context.Context, creds Credentials, deviceID string, op Operation) (*PendingOperation, error) {
	name, ok := op.command()
	if !ok {
		return nil, newError(KindInvalid, "remote-control", fmt.Errorf("%w: %d", ErrInvalidOperation, int(op)))
	}
	if deviceID == "" {
		return nil, newError(KindInvalid, "remote-control", fmt.Errorf("%w: empty device id", ErrInvalidOperation))
	}

	if !c.IsConnected() || !c.LoggedIn() {
		logging.Info("Session not ready, logging in before command", zap.Stringer("state", c.State()))
		if err := c.Login(ctx, creds); err != nil {
			return nil, err
		}
	}

	seq := c.seq.Next()
	pending := newPendingOperation(deviceID, op, seq)
	if prev := c.sess.setPending(pending); prev != nil {
		prev.resolve(0, newError(KindInvalid, "remote-control", ErrSuperseded))
	}

	hexFrame, err := protocol.EncodeCommand(seq, protocol.MethodRemoteControl, protocol.RemoteControlRequest{
		DeviceID: deviceID,
		Props:    []protocol.PropCommand{{Name: name, Method: "set", Value: nil}},
	}, true)
	if err != nil {
		c.sess.clearPending(pending)
		return nil, newError(KindInvalid, "remote-control", err)
	}

	if err := c.SendHex(ctx, hexFrame); err != nil {
		c.sess.clearPending(pending)
		pending.resolve(0, err)
		c.metrics.commands.WithLabelValues(op.String(), "send_failed").Inc()
		return nil, err
	}

	logging.Info("Command sent",
		zap.String("id", deviceID),
		zap.Stringer("operation", op),
		zap.Uint16("seq", seq),
	)
	return pending, nil
}

// RemoteControlAndWait sends a command and waits up to CommandTimeout for
// a resting position, resending up to MaxRetries times on timeout.
func (c *Client) RemoteControlAndWait(ctx context.Context, creds Credentials, deviceID string, op Operation) (Position, error) {
	var lastErr error

	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			logging.Warn("No position feedback, resending command",
				zap.String("id", deviceID),
				zap.Stringer("operation", op),
				zap.Int("retry", attempt),
				zap.Int("max_retries", c.cfg.MaxRetries),
			)
		}

		pending, err := c.RemoteControl(ctx, creds, deviceID, op)
		if err != nil {
			return 0, err
		}

		pos, err := pending.Wait(ctx, c.cfg.CommandTimeout)
		if err == nil {
			c.metrics.commands.WithLabelValues(op.String(), "ok").Inc()
			return pos, nil
		}

		if kind, _ := KindOf(err); kind != KindTimeout || ctx.Err() != nil {
			c.metrics.commands.WithLabelValues(op.String(), resultLabel(err)).Inc()
			return 0, err
		}

		c.sess.clearPending(pending)
		pending.resolve(0, err)
		lastErr = err
	}

	logging.Error("Command failed, retries exhausted",
		zap.String("id", deviceID),
		zap.Stringer("operation", op),
	)
	c.metrics.commands.WithLabelValues(op.String(), "timeout").Inc()
	return 0, lastErr
}

func resultLabel(err error) string {
	kind, ok := KindOf(err)
	if !ok {
		return "error"
	}
	return kind.String()
}
