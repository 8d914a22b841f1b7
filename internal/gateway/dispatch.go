package gateway

import (
	"go.uber.org/zap"

	"github.com/muurk/gfhanger/internal/logging"
	"github.com/muurk/gfhanger/internal/protocol"
)

// handleFrame dispatches a frame decoded on cn, unless cn is no longer the
// live connection.
func (c *Client) handleFrame(cn *connection, frame *protocol.Frame) {
	if !c.isCurrent(cn) {
		c.metrics.framesDropped.Inc()
		logging.Debug("Dropping frame received after close", zap.Stringer("type", frame.Type))
		return
	}

	c.dispatch(frame)
	c.response.Set(nil)
}

// dispatch routes one frame to its handler. Nothing here returns an error;
// bad input is logged, counted and dropped.
func (c *Client) dispatch(frame *protocol.Frame) {
	c.metrics.framesIn.WithLabelValues(frame.Type.String()).Inc()
	logging.LogFrame(c.addr, "recv", frame.Type.String(), frame.Raw)

	switch frame.Type {
	case protocol.FrameHeartbeat:
		logging.Debug("Heartbeat received", zap.String("addr", c.addr))
		return
	case protocol.FrameHandshake:
		logging.Debug("Handshake received", zap.ByteString("body", frame.Body))
		return
	}

	msg, err := protocol.DecodeMessage(frame)
	if err != nil {
		c.metrics.malformed.Inc()
		logging.Warn("Dropping undecodable message",
			zap.Error(err),
			zap.Int("length", len(frame.Raw)),
		)
		return
	}

	switch msg.Method {
	case protocol.RouteHomeInfo:
		c.handleHomeInfo(msg)
	case protocol.RouteLoginInfoEnd:
		c.handleLoginInfoEnd(msg)
	case protocol.RouteDeviceStatus:
		c.handleDeviceStatus(msg)
	default:
		if !msg.Feedback {
			logging.Debug("Ignoring message", zap.String("method", msg.Method))
		}
	}

	if msg.Feedback {
		c.handleOperationFeedback(msg)
	}
}
