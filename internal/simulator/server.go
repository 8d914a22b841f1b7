package simulator

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/gfhanger/internal/logging"
	"github.com/muurk/gfhanger/internal/protocol"
)

// Config holds the simulator configuration
type Config struct {
	Addr string // listen address, default 127.0.0.1:13015

	// Accepted credentials. Empty values accept anything.
	Mobile   string
	Password string

	Devices []Device // default: one hanger

	LoginCode    int // onLoginInfoEnd code for valid credentials, default 200
	FeedbackCode int // answer to remote control, default 200

	MotionDelay       time.Duration // travel time to a resting position, default 2s
	HeartbeatInterval time.Duration // 0 disables heartbeats

	SilentHandshake bool // never answer handshake frames
	SkipLoginEnd    bool // never send onLoginInfoEnd
	SkipTerminal    bool // devices never come to rest
}

func (c *Config) setDefaults() {
	if c.Addr == "" {
		c.Addr = "127.0.0.1:13015"
	}
	if c.Devices == nil {
		c.Devices = []Device{{
			ID:       "5f0c9a7e1d2b3c4d5e6f7a8b",
			Name:     "Balcony Hanger",
			Status:   "online",
			Position: 2,
		}}
	}
	if c.LoginCode == 0 {
		c.LoginCode = 200
	}
	if c.FeedbackCode == 0 {
		c.FeedbackCode = 200
	}
	if c.MotionDelay == 0 {
		c.MotionDelay = 2 * time.Second
	}
}

// Server is a fake hanger gateway speaking the wire protocol over TCP.
type Server struct {
	config   Config
	listener net.Listener
	wg       sync.WaitGroup

	mu          sync.Mutex
	activeConns map[string]*session
	timers      map[*time.Timer]struct{}
	commands    []protocol.Command
	devices     *registry

	accepted atomic.Int64
	logins   atomic.Int64
	closing  atomic.Bool
}

// New creates a new simulator instance
func New(config *Config) *Server {
	cfg := *config
	cfg.setDefaults()

	return &Server{
		config:      cfg,
		activeConns: make(map[string]*session),
		timers:      make(map[*time.Timer]struct{}),
		devices:     newRegistry(cfg.Devices),
	}
}

// Listen binds the listening socket.
func (s *Server) Listen() error {
	listener, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Addr, err)
	}
	s.listener = listener

	logging.Info("Simulator listening for connections",
		zap.String("addr", listener.Addr().String()),
		zap.Int("devices", len(s.config.Devices)),
	)
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Start listens and serves until SIGINT or SIGTERM.
func (s *Server) Start() error {
	if err := s.Listen(); err != nil {
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	errChan := make(chan error, 1)
	go func() {
		errChan <- s.Serve()
	}()

	select {
	case <-sigChan:
		logging.Info("Shutdown signal received, stopping simulator...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.Shutdown(ctx)
	case err := <-errChan:
		return err
	}
}

// Serve accepts connections until the listener is closed.
func (s *Server) Serve() error {
	if s.listener == nil {
		return errors.New("simulator is not listening")
	}

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.closing.Load() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			logging.Error("Failed to accept connection", zap.Error(err))
			continue
		}

		s.accepted.Add(1)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(conn)
		}()
	}
}

// Shutdown stops accepting, closes every connection and waits for the
// handlers to finish.
func (s *Server) Shutdown(ctx context.Context) error {
	s.closing.Store(true)
	logging.Info("Shutting down simulator...")

	if s.listener != nil {
		if err := s.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			logging.Error("Error closing listener", zap.Error(err))
		}
	}

	s.mu.Lock()
	for t := range s.timers {
		t.Stop()
	}
	s.timers = make(map[*time.Timer]struct{})
	for addr, sess := range s.activeConns {
		logging.Debug("Closing active connection", zap.String("remote_addr", addr))
		_ = sess.conn.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logging.Info("All simulator connections closed")
		return nil
	case <-ctx.Done():
		logging.Warn("Shutdown timeout, forcing close")
		return ctx.Err()
	}
}

// ActiveConnections returns the number of open connections.
func (s *Server) ActiveConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.activeConns)
}

// AcceptedConnections returns the number of connections accepted so far.
func (s *Server) AcceptedConnections() int {
	return int(s.accepted.Load())
}

// Logins returns the number of successful logins.
func (s *Server) Logins() int {
	return int(s.logins.Load())
}

// Commands returns the commands received so far, in order.
func (s *Server) Commands() []protocol.Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]protocol.Command, len(s.commands))
	copy(out, s.commands)
	return out
}

// Devices returns the simulated devices.
func (s *Server) Devices() []Device {
	return s.devices.list()
}

// SetDevicePosition moves a device and pushes its status to every client.
func (s *Server) SetDevicePosition(id string, position int) error {
	dev, ok := s.devices.setPosition(id, position)
	if !ok {
		return fmt.Errorf("unknown device %q", id)
	}
	return s.Broadcast(protocol.RouteDeviceStatus, statusPush(dev, false))
}

// EchoDeviceStatus pushes a status query echo, marked with an origin.
func (s *Server) EchoDeviceStatus(id string) error {
	dev, ok := s.devices.get(id)
	if !ok {
		return fmt.Errorf("unknown device %q", id)
	}
	return s.Broadcast(protocol.RouteDeviceStatus, statusPush(dev, true))
}

// Broadcast pushes route+data to every connected client.
func (s *Server) Broadcast(route string, data any) error {
	frame, err := protocol.BuildPush(route, data)
	if err != nil {
		return err
	}
	s.BroadcastRaw(frame)
	return nil
}

// BroadcastRaw writes bytes verbatim to every connected client.
func (s *Server) BroadcastRaw(b []byte) {
	s.mu.Lock()
	sessions := make([]*session, 0, len(s.activeConns))
	for _, sess := range s.activeConns {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.write(b)
	}
}

// DropConnections closes every client connection but keeps listening.
func (s *Server) DropConnections() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.activeConns {
		_ = sess.conn.Close()
	}
}

// after runs f once d elapses unless the simulator shuts down first.
func (s *Server) after(d time.Duration, f func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing.Load() {
		return
	}

	var t *time.Timer
	t = time.AfterFunc(d, func() {
		s.mu.Lock()
		_, live := s.timers[t]
		delete(s.timers, t)
		s.mu.Unlock()
		if live {
			f()
		}
	})
	s.timers[t] = struct{}{}
}

func (s *Server) track(sess *session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeConns[sess.remoteAddr] = sess
}

func (s *Server) untrack(sess *session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.activeConns, sess.remoteAddr)
}

func (s *Server) record(cmd *protocol.Command) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commands = append(s.commands, *cmd)
}
