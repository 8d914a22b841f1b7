package config

import "time"

// Default gateway endpoint used by the GoFull mobile app.
const (
	DefaultGatewayHost = "main.ortron.cn"
	DefaultGatewayPort = 13015
)

// Config represents the entire user configuration file.
type Config struct {
	Version     int               `yaml:"version"`
	Gateway     GatewayConfig     `yaml:"gateway"`
	Credentials CredentialsConfig `yaml:"credentials"`
	MQTT        MQTTConfig        `yaml:"mqtt"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Log         LogConfig         `yaml:"log"`
}

// GatewayConfig holds the TCP endpoint and the retry/timeout policy of the
// protocol client.
type GatewayConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	MaxRetries       int           `yaml:"max_retries"`
	RetryDelay       time.Duration `yaml:"retry_delay"`
	DialTimeout      time.Duration `yaml:"dial_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	LoginTimeout     time.Duration `yaml:"login_timeout"`
	CommandTimeout   time.Duration `yaml:"command_timeout"`
	CloseOnRejection *bool         `yaml:"close_on_rejection,omitempty"` // nil = true
}

// CredentialsConfig holds the app account used to log in to the gateway.
// Values support ${ENV} expansion so the password can stay out of the file.
type CredentialsConfig struct {
	Mobile   string `yaml:"mobile"`
	Password string `yaml:"password,omitempty"`
	ClientID string `yaml:"client_id"`
}

// MQTTConfig configures the MQTT bridge.
type MQTTConfig struct {
	Broker      string `yaml:"broker"` // e.g. tcp://localhost:1883
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username,omitempty"`
	Password    string `yaml:"password,omitempty"`
	TopicPrefix string `yaml:"topic_prefix"`
	QoS         int    `yaml:"qos"`
}

// MetricsConfig configures the Prometheus endpoint served by the bridge.
type MetricsConfig struct {
	Addr string `yaml:"addr"` // empty = disabled
	Path string `yaml:"path"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level,omitempty"` // empty = command default
}

// Default returns a Config populated with default values.
func Default() *Config {
	cfg := &Config{Version: 1}
	cfg.setDefaults()
	return cfg
}

func (c *Config) setDefaults() {
	if c.Version == 0 {
		c.Version = 1
	}

	g := &c.Gateway
	if g.Host == "" {
		g.Host = DefaultGatewayHost
	}
	if g.Port == 0 {
		g.Port = DefaultGatewayPort
	}
	if g.MaxRetries == 0 {
		g.MaxRetries = 3
	}
	if g.DialTimeout == 0 {
		g.DialTimeout = 5 * time.Second
	}
	if g.WriteTimeout == 0 {
		g.WriteTimeout = 10 * time.Second
	}
	if g.HandshakeTimeout == 0 {
		g.HandshakeTimeout = 3 * time.Second
	}
	if g.LoginTimeout == 0 {
		g.LoginTimeout = 10 * time.Second
	}
	if g.CommandTimeout == 0 {
		g.CommandTimeout = 10 * time.Second
	}

	m := &c.MQTT
	if m.Broker == "" {
		m.Broker = "tcp://localhost:1883"
	}
	if m.ClientID == "" {
		m.ClientID = "gfhanger-bridge"
	}
	if m.TopicPrefix == "" {
		m.TopicPrefix = "gfhanger"
	}
	if m.QoS == 0 {
		m.QoS = 1
	}

	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}

}

// ShouldCloseOnRejection reports whether a rejected command tears down the
// gateway session.
func (g GatewayConfig) ShouldCloseOnRejection() bool {
	return g.CloseOnRejection == nil || *g.CloseOnRejection
}
