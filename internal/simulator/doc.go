// Package simulator implements a local stand-in for the hanger gateway.
//
// It accepts plain TCP connections and speaks the same framing as the real
// gateway: it answers the handshake, logs clients in, pushes the home info
// and reports device motion with onDeviceStatusData pushes. Tests use it
// as a loopback peer; `gfhanger simulate` runs it standalone.
//
// # Usage Example
//
//	sim := simulator.New(&simulator.Config{
//	    Addr:        "127.0.0.1:0",
//	    Mobile:      "13800000000",
//	    Password:    "secret",
//	    MotionDelay: 500 * time.Millisecond,
//	})
//	if err := sim.Listen(); err != nil {
//	    log.Fatal(err)
//	}
//	go sim.Serve()
//	defer sim.Shutdown(context.Background())
//
// Behaviour can be degraded for failure testing: SilentHandshake,
// SkipLoginEnd, SkipTerminal, a non-200 LoginCode or FeedbackCode, and
// BroadcastRaw for injecting noise.
package simulator
