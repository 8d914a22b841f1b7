package gateway

import (
	"time"

	"go.uber.org/zap"

	"github.com/muurk/gfhanger/internal/logging"
	"github.com/muurk/gfhanger/internal/protocol"
)

const codeOK = 200

// handleHomeInfo rebuilds the device registry. An account without usable
// devices ends the session.
func (c *Client) handleHomeInfo(msg *protocol.Message) {
	var info protocol.HomeInfo
	if err := msg.Decode(&info); err != nil {
		c.metrics.malformed.Inc()
		logging.Warn("Malformed home info", zap.Error(err))
		return
	}

	devices := flattenHomeInfo(info)
	if len(devices) == 0 {
		logging.Error("Home info lists no usable devices, closing connection")
		err := newError(KindRejected, "home-info", ErrNoDevices)
		c.sess.setLastError(err)
		c.closeWith(err)
		return
	}

	c.sess.replaceDevices(devices)
	c.metrics.devices.Set(float64(len(devices)))
	logging.Info("Device registry updated", zap.Int("devices", len(devices)))

	now := time.Now()
	for _, d := range devices {
		c.publish(StatusEvent{
			DeviceID: d.ID,
			Name:     d.Name,
			Status:   d.Status,
			Position: d.Position,
			Snapshot: true,
			Time:     now,
		})
	}
}

// flattenHomeInfo walks homes, layers and grids, keeping devices that have
// a name, an id, a status and a known position.
func flattenHomeInfo(info protocol.HomeInfo) []Device {
	var devices []Device
	now := time.Now()

	for _, home := range info.Homes {
		for _, layer := range home.Layers {
			for _, grid := range layer.HomeGrids {
				for _, rec := range grid.Devices {
					status, hasStatus := rec.Props.StatusText()
					pos, hasPos := rec.Props.PositionValue()
					if rec.Name == "" || rec.ID == "" || !hasStatus || !hasPos || !Position(pos).Valid() {
						logging.Debug("Skipping incomplete device record", zap.String("id", rec.ID))
						continue
					}
					devices = append(devices, Device{
						ID:        rec.ID,
						Name:      rec.Name,
						Status:    status,
						Position:  Position(pos),
						UpdatedAt: now,
					})
				}
			}
		}
	}

	return devices
}

func (c *Client) handleLoginInfoEnd(msg *protocol.Message) {
	var res protocol.Result
	if err := msg.Decode(&res); err != nil {
		c.metrics.malformed.Inc()
		logging.Warn("Malformed login result", zap.Error(err))
		return
	}

	code, _ := res.StatusCode()
	if code == codeOK {
		if c.sess.loginSucceeded() {
			logging.Info("Logged in to gateway", zap.String("addr", c.addr))
		} else {
			logging.Debug("Logged in to gateway", zap.String("addr", c.addr))
		}
		c.login.Set(nil)
		return
	}

	logging.Error("Gateway rejected login",
		zap.Int("code", code),
		zap.String("codetxt", res.CodeText),
	)
	err := rejected("login", code, ErrLoginRejected, res.CodeText)
	c.sess.setLastError(err)
	c.closeWith(err)
}

// handleDeviceStatus applies every device of the push. Records marked with
// an origin echo a status query: only the status text is taken.
func (c *Client) handleDeviceStatus(msg *protocol.Message) {
	var data protocol.DeviceStatusData
	if err := msg.Decode(&data); err != nil {
		c.metrics.malformed.Inc()
		logging.Warn("Malformed device status", zap.Error(err))
		return
	}

	if len(data.Devices) == 0 {
		logging.Info("Device status push without devices")
		return
	}

	for _, rec := range data.Devices {
		status, hasStatus := rec.Props.StatusText()

		if data.HasOrigin() || rec.HasOrigin() {
			if hasStatus {
				c.sess.updateStatus(rec.ID, status)
			}
			logging.Debug("Status query echo", zap.String("id", rec.ID), zap.String("status", status))
			continue
		}

		raw, ok := rec.Props.PositionValue()
		pos := Position(raw)
		if !ok || !pos.Valid() {
			if hasStatus {
				c.sess.updateStatus(rec.ID, status)
			}
			logging.Warn("Device status without a valid position",
				zap.String("id", rec.ID),
				zap.ByteString("position", rec.Props.Position),
			)
			continue
		}

		dev, found := c.sess.applyStatus(rec.ID, status, hasStatus, pos)
		if !found {
			logging.Warn("Status for unknown device", zap.String("id", rec.ID), zap.String("name", rec.Name))
			continue
		}

		logging.Info("Device status",
			zap.String("id", dev.ID),
			zap.String("name", dev.Name),
			zap.String("status", dev.Status),
			zap.Stringer("position", dev.Position),
		)

		c.publish(StatusEvent{
			DeviceID: dev.ID,
			Name:     dev.Name,
			Status:   dev.Status,
			Position: dev.Position,
			Time:     dev.UpdatedAt,
		})

		if pos.Terminal() {
			if op := c.sess.takePending(dev.ID); op != nil {
				elapsed := time.Since(op.SentAt)
				if op.resolve(pos, nil) {
					c.metrics.commandTime.Observe(elapsed.Seconds())
					logging.Info("Device operation completed",
						zap.String("id", dev.ID),
						zap.Stringer("operation", op.Operation),
						zap.Stringer("position", pos),
						zap.Duration("elapsed", elapsed),
					)
				}
			}
		}
	}
}

// handleOperationFeedback processes the answer to the last command.
func (c *Client) handleOperationFeedback(msg *protocol.Message) {
	if c.closed.Load() {
		return
	}

	var res protocol.Result
	if err := msg.Decode(&res); err != nil {
		c.metrics.malformed.Inc()
		logging.Warn("Malformed operation feedback", zap.Error(err))
		return
	}

	code, _ := res.StatusCode()
	last, pending := c.sess.feedback(code == codeOK)

	logging.Info("Operation feedback",
		zap.Int("code", code),
		zap.String("codetxt", res.CodeText),
	)

	if code == codeOK {
		if last == lastRemoteControl && pending != nil {
			pending.accepted.Store(true)
		}
		return
	}

	switch last {
	case lastLogin:
		err := rejected("login", code, ErrLoginRejected, res.CodeText)
		c.sess.setLastError(err)
		c.closeWith(err)
		return

	case lastRemoteControl:
		op := pending
		if op == nil {
			break
		}
		logging.Error("Gateway rejected command",
			zap.String("id", op.DeviceID),
			zap.Stringer("operation", op.Operation),
			zap.Int("code", code),
		)
		err := rejected("remote-control", code, ErrCommandRejected, res.CodeText)
		if c.cfg.CloseOnRejection {
			logging.Error("Closing connection after rejected command", zap.Int("code", code))
			c.closeWith(err)
			return
		}
		c.sess.clearPending(op)
		op.resolve(0, err)
		return
	}

	if c.cfg.CloseOnRejection {
		logging.Error("Closing connection after rejected command", zap.Int("code", code))
		_ = c.Close()
	}
}
