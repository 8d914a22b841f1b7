// Package gateway implements the client side of the hanger gateway
// protocol.
//
// A Client owns at most one TCP connection. A background read loop feeds
// a protocol.Decoder and dispatches every frame: home info rebuilds the
// device registry, onLoginInfoEnd completes a login, onDeviceStatusData
// updates positions and resolves the pending command, and feedback frames
// carry the result of the last command.
//
// # Login
//
// Login sends the handshake, the handshake ack and the login command,
// waiting briefly for any reply after each step, then waits for
// onLoginInfoEnd:
//
//	c := gateway.NewClient(&gateway.Config{Host: "hanger.example", Port: 13015})
//	creds := gateway.Credentials{Mobile: "138...", Password: "...", ClientID: "..."}
//	if err := c.Login(ctx, creds); err != nil {
//	    fmt.Println(gateway.TroubleshootingHint(err))
//	}
//
// # Commands
//
// RemoteControl writes a motor command and returns a PendingOperation that
// resolves once the device reports a resting position (stopped, closed or
// open). RemoteControlAndWait resends on timeout. A closed or
// unauthenticated session is logged in again before any command, and a
// write on a closed connection reconnects first.
//
// # Errors
//
// Operations return *Error values carrying a Kind and wrapping one of the
// package sentinels, so both errors.Is(err, ErrLoginRejected) and KindOf
// work.
//
// # Events
//
// Subscribe returns a buffered channel of StatusEvent values. Delivery
// never blocks the read loop; slow subscribers lose events.
package gateway
