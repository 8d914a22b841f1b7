package simulator

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/gfhanger/internal/logging"
	"github.com/muurk/gfhanger/internal/protocol"
)

// session is one client connection.
type session struct {
	server     *Server
	conn       net.Conn
	remoteAddr string

	writeMu sync.Mutex
}

func (sess *session) write(b []byte) {
	sess.writeMu.Lock()
	defer sess.writeMu.Unlock()

	_ = sess.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if _, err := sess.conn.Write(b); err != nil {
		logging.Debug("Write to client failed", zap.String("remote_addr", sess.remoteAddr), zap.Error(err))
		return
	}
	logging.LogFrame(sess.remoteAddr, "send", "sim", b)
}

func (sess *session) push(route string, data any) {
	frame, err := protocol.BuildPush(route, data)
	if err != nil {
		logging.Error("Failed to build push", zap.String("route", route), zap.Error(err))
		return
	}
	sess.write(frame)
}

func (sess *session) respond(seq uint16, data any) {
	frame, err := protocol.BuildResponse(seq, data)
	if err != nil {
		logging.Error("Failed to build response", zap.Error(err))
		return
	}
	sess.write(frame)
}

// handleConnection serves one client until it disconnects.
func (s *Server) handleConnection(conn net.Conn) {
	sess := &session{
		server:     s,
		conn:       conn,
		remoteAddr: conn.RemoteAddr().String(),
	}

	s.track(sess)
	done := make(chan struct{})
	defer func() {
		close(done)
		_ = conn.Close()
		s.untrack(sess)
		logging.LogConnection(sess.remoteAddr, "connection_closed")
	}()

	logging.LogConnection(sess.remoteAddr, "connection_accepted")

	if s.config.HeartbeatInterval > 0 {
		go sess.heartbeats(s.config.HeartbeatInterval, done)
	}

	for {
		frame, err := protocol.ReadFrame(conn)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				logging.Debug("Client read ended", zap.String("remote_addr", sess.remoteAddr), zap.Error(err))
			}
			return
		}

		logging.LogFrame(sess.remoteAddr, "recv", frame.Type.String(), frame.Raw)

		switch frame.Type {
		case protocol.FrameHandshake:
			if s.config.SilentHandshake {
				continue
			}
			reply, err := protocol.BuildHandshake(map[string]any{
				"code": 200,
				"sys": map[string]any{
					"heartbeat": int(s.config.HeartbeatInterval / time.Second),
				},
			})
			if err == nil {
				sess.write(reply)
			}

		case protocol.FrameHandshakeAck:
			if !s.config.SilentHandshake {
				sess.write(protocol.BuildHeartbeat())
			}

		case protocol.FrameHeartbeat:

		case protocol.FramePayload:
			cmd, err := protocol.ParseCommand(frame)
			if err != nil {
				logging.Warn("Unparseable command", zap.String("remote_addr", sess.remoteAddr), zap.Error(err))
				continue
			}
			s.record(cmd)
			sess.handleCommand(cmd)

		default:
			logging.Warn("Unknown frame type", zap.Stringer("type", frame.Type))
		}
	}
}

func (sess *session) heartbeats(interval time.Duration, done <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			sess.write(protocol.BuildHeartbeat())
		case <-done:
			return
		}
	}
}

func (sess *session) handleCommand(cmd *protocol.Command) {
	switch cmd.Method {
	case protocol.MethodLogin:
		sess.handleLogin(cmd)
	case protocol.MethodRemoteControl:
		sess.handleRemoteControl(cmd)
	default:
		logging.Warn("Unknown method", zap.String("method", cmd.Method))
		sess.respond(cmd.Seq, result(404, "unknown method"))
	}
}

func (sess *session) handleLogin(cmd *protocol.Command) {
	s := sess.server

	var req protocol.LoginRequest
	if err := json.Unmarshal(cmd.Payload, &req); err != nil {
		sess.respond(cmd.Seq, result(400, "bad request"))
		return
	}

	if (s.config.Mobile != "" && req.Mobile != s.config.Mobile) ||
		(s.config.Password != "" && req.Password != s.config.Password) {
		logging.Info("Rejecting login", zap.String("mobile", req.Mobile))
		sess.respond(cmd.Seq, result(200, "ok"))
		sess.push(protocol.RouteLoginInfoEnd, result(403, "invalid mobile or password"))
		return
	}

	sess.respond(cmd.Seq, result(200, "ok"))
	sess.push(protocol.RouteHomeInfo, homeInfo(s.devices.list()))

	if s.config.SkipLoginEnd {
		return
	}
	sess.push(protocol.RouteLoginInfoEnd, result(s.config.LoginCode, "login"))
	if s.config.LoginCode == 200 {
		s.logins.Add(1)
		logging.Info("Client logged in", zap.String("mobile", req.Mobile), zap.String("clientid", req.ClientID))
	}
}

func (sess *session) handleRemoteControl(cmd *protocol.Command) {
	s := sess.server

	var req protocol.RemoteControlRequest
	if err := json.Unmarshal(cmd.Payload, &req); err != nil || len(req.Props) == 0 {
		sess.respond(cmd.Seq, result(400, "bad request"))
		return
	}

	dev, ok := s.devices.get(req.DeviceID)
	if !ok {
		sess.respond(cmd.Seq, result(404, "device not found"))
		return
	}

	moving, rest, ok := motion(req.Props[0].Name)
	if !ok {
		sess.respond(cmd.Seq, result(400, "unknown command"))
		return
	}

	if s.config.FeedbackCode != 200 {
		sess.respond(cmd.Seq, result(s.config.FeedbackCode, "rejected"))
		return
	}
	sess.respond(cmd.Seq, result(200, "ok"))

	logging.Info("Device command",
		zap.String("id", dev.ID),
		zap.String("command", req.Props[0].Name),
	)

	if moving >= 0 {
		if d, ok := s.devices.setPosition(dev.ID, moving); ok {
			_ = s.Broadcast(protocol.RouteDeviceStatus, statusPush(d, false))
		}
	}

	if s.config.SkipTerminal {
		return
	}
	s.after(s.config.MotionDelay, func() {
		if err := s.SetDevicePosition(dev.ID, rest); err != nil {
			logging.Warn("Failed to finish motion", zap.Error(err))
		}
	})
}
