package gateway

import (
	"errors"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/muurk/gfhanger/internal/config"
	"github.com/muurk/gfhanger/internal/protocol"
)

// Config holds Client settings.
type Config struct {
	Host string
	Port int

	MaxRetries       int           // dial attempts per connect, send attempts per write, command retries
	RetryDelay       time.Duration // pause between dial attempts
	DialTimeout      time.Duration
	WriteTimeout     time.Duration
	HandshakeTimeout time.Duration // wait for any reply after each login step
	LoginTimeout     time.Duration // wait for onLoginInfoEnd
	CommandTimeout   time.Duration // wait for a resting position

	// CloseOnRejection tears the connection down when the gateway answers a
	// command with a non-200 code.
	CloseOnRejection bool

	// Registerer receives the client metrics. A private registry is used
	// when nil.
	Registerer prometheus.Registerer
}

// ConfigFrom converts the file configuration.
func ConfigFrom(g config.GatewayConfig) *Config {
	return &Config{
		Host:             g.Host,
		Port:             g.Port,
		MaxRetries:       g.MaxRetries,
		RetryDelay:       g.RetryDelay,
		DialTimeout:      g.DialTimeout,
		WriteTimeout:     g.WriteTimeout,
		HandshakeTimeout: g.HandshakeTimeout,
		LoginTimeout:     g.LoginTimeout,
		CommandTimeout:   g.CommandTimeout,
		CloseOnRejection: g.ShouldCloseOnRejection(),
	}
}

func (c *Config) setDefaults() {
	if c.MaxRetries < 1 {
		c.MaxRetries = 3
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = 3 * time.Second
	}
	if c.LoginTimeout <= 0 {
		c.LoginTimeout = 10 * time.Second
	}
	if c.CommandTimeout <= 0 {
		c.CommandTimeout = 10 * time.Second
	}
}

// Credentials identify the app account.
type Credentials struct {
	Mobile   string
	Password string
	ClientID string
}

// CredentialsFrom converts the file configuration.
func CredentialsFrom(c config.CredentialsConfig) Credentials {
	return Credentials{Mobile: c.Mobile, Password: c.Password, ClientID: c.ClientID}
}

// Validate checks that a login can be attempted.
func (c Credentials) Validate() error {
	switch {
	case c.Mobile == "":
		return errors.New("mobile is required")
	case c.Password == "":
		return errors.New("password is required")
	case c.ClientID == "":
		return errors.New("client id is required")
	}
	return nil
}

// connection is one TCP session and its read loop.
type connection struct {
	net.Conn
	localClose atomic.Bool
	done       chan struct{}
}

// Client is a gateway protocol client. It is safe for concurrent use.
type Client struct {
	cfg  Config
	addr string
	seq  protocol.Sequence

	connMu     sync.Mutex
	conn       *connection
	closed     atomic.Bool
	shouldExit atomic.Bool

	writeMu sync.Mutex

	response *signal // any frame decoded
	login    *signal // onLoginInfoEnd (or a fatal condition) received
	sess     session

	subs      *xsync.MapOf[uint64, *subscriber]
	nextSubID atomic.Uint64

	metrics *metrics
}

// NewClient creates a client. No connection is made until Connect, Login
// or a command.
func NewClient(cfg *Config) *Client {
	c := &Client{
		cfg:      *cfg,
		response: newSignal(),
		login:    newSignal(),
		subs:     newSubscriberMap(),
	}
	c.cfg.setDefaults()
	c.addr = net.JoinHostPort(c.cfg.Host, strconv.Itoa(c.cfg.Port))
	c.closed.Store(true)

	reg := c.cfg.Registerer
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	c.metrics = newMetrics(reg)

	return c
}

// Addr returns the gateway address.
func (c *Client) Addr() string {
	return c.addr
}

// State returns the current session state.
func (c *Client) State() State {
	return c.sess.State()
}

// LoggedIn reports whether the current connection is authenticated.
func (c *Client) LoggedIn() bool {
	return c.sess.LoggedIn()
}

// IsConnected reports whether a connection is open.
func (c *Client) IsConnected() bool {
	return !c.closed.Load()
}

// Terminal reports whether the client gave up: connect retries were
// exhausted or the session was closed. A later successful connect clears it.
func (c *Client) Terminal() bool {
	return c.shouldExit.Load()
}

// LastError returns the last fatal session error, e.g. ErrNoDevices.
func (c *Client) LastError() error {
	return c.sess.LastError()
}

// Devices returns a snapshot of the device registry.
func (c *Client) Devices() []Device {
	return c.sess.Devices()
}

// Device returns one device by id.
func (c *Client) Device(id string) (Device, bool) {
	return c.sess.Device(id)
}

// PendingSucceeded reports whether the gateway accepted the most recent
// motor command.
func (c *Client) PendingSucceeded() bool {
	return c.sess.PendingSucceeded()
}
