// Package logging provides structured logging for gfhanger.
//
// This package wraps a package-level zap logger with convenience functions
// used by the gateway client, the simulator and the MQTT bridge. Logging is
// silent until Initialize is called with a level or GFHANGER_LOG_LEVEL is set.
//
// # Log Levels
//
//   - Debug: Frame hex dumps, heartbeats, resync noise
//   - Info: Connections, login, device status changes
//   - Warn: Dropped messages, retries, unknown devices
//   - Error: Login failures, rejected commands, exhausted retries
//
// # Structured Logging
//
//	logging.Info("Device status applied",
//	    zap.String("device_id", id),
//	    zap.String("position", pos.String()),
//	)
//
// Frame dumps go through LogFrame so they cost nothing unless debug logging
// is enabled:
//
//	logging.LogFrame(remoteAddr, "received", frame.Type.String(), frame.Raw)
//
// # Thread Safety
//
// All logging functions are safe for concurrent use. SetLogger and
// Initialize are meant to be called once at startup (or from TestMain).
package logging
