package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

const (
	appName    = "gfhanger"
	configFile = "config.yaml"
)

// Mutex for thread-safe file operations
var fileMutex sync.Mutex

// GetConfigDir returns the OS-appropriate configuration directory for the application.
// This follows platform conventions:
//   - Linux: $XDG_CONFIG_HOME/gfhanger or $HOME/.config/gfhanger
//   - macOS: $HOME/.config/gfhanger
//   - Windows: %LOCALAPPDATA%\gfhanger
func GetConfigDir() (string, error) {
	var baseDir string

	switch runtime.GOOS {
	case "windows":
		localAppData := os.Getenv("LOCALAPPDATA")
		if localAppData == "" {
			userProfile := os.Getenv("USERPROFILE")
			if userProfile == "" {
				return "", fmt.Errorf("cannot determine user profile directory (LOCALAPPDATA and USERPROFILE not set)")
			}
			baseDir = filepath.Join(userProfile, "AppData", "Local", appName)
		} else {
			baseDir = filepath.Join(localAppData, appName)
		}

	case "darwin":
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		baseDir = filepath.Join(homeDir, ".config", appName)

	default:
		xdgConfigHome := os.Getenv("XDG_CONFIG_HOME")
		if xdgConfigHome != "" {
			baseDir = filepath.Join(xdgConfigHome, appName)
		} else {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("cannot determine home directory: %w", err)
			}
			baseDir = filepath.Join(homeDir, ".config", appName)
		}
	}

	return baseDir, nil
}

// GetConfigPath returns the full path to the configuration file.
func GetConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, configFile), nil
}

// Load reads a configuration file, expanding ${VAR} references from the
// environment, and fills defaults for anything left unset.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// envRef matches a ${VAR} reference. Bare $ is kept literally.
var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

func expandEnv(s string) string {
	return envRef.ReplaceAllStringFunc(s, func(ref string) string {
		return os.Getenv(envRef.FindStringSubmatch(ref)[1])
	})
}

// expandSecrets resolves ${VAR} references in the string fields that
// may hold them.
func (c *Config) expandSecrets() {
	for _, field := range []*string{
		&c.Gateway.Host,
		&c.Credentials.Mobile,
		&c.Credentials.Password,
		&c.Credentials.ClientID,
		&c.MQTT.Broker,
		&c.MQTT.Username,
		&c.MQTT.Password,
	} {
		*field = expandEnv(*field)
	}
}

// Parse decodes configuration YAML. ${VAR} references in the endpoint and
// credential fields are expanded after decoding.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if cfg.Version != 0 && cfg.Version != 1 {
		return nil, fmt.Errorf("unsupported config version: %d (expected 1)", cfg.Version)
	}

	cfg.expandSecrets()
	cfg.setDefaults()

	return &cfg, nil
}

// LoadDefault loads the config from the default location. A missing file
// yields the default configuration.
func LoadDefault() (*Config, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, fmt.Errorf("failed to get config path: %w", err)
	}

	cfg, err := Load(configPath)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Validate checks the fields every command needs.
func (c *Config) Validate() error {
	var problems []string

	if c.Gateway.Host == "" {
		problems = append(problems, "gateway.host is required")
	}
	if c.Gateway.Port <= 0 || c.Gateway.Port > 65535 {
		problems = append(problems, fmt.Sprintf("gateway.port %d out of range", c.Gateway.Port))
	}
	if c.Gateway.MaxRetries < 1 {
		problems = append(problems, "gateway.max_retries must be at least 1")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		problems = append(problems, fmt.Sprintf("mqtt.qos %d must be 0, 1 or 2", c.MQTT.QoS))
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// ValidateCredentials checks that a login can be attempted.
func (c *CredentialsConfig) ValidateCredentials() error {
	switch {
	case c.Mobile == "":
		return errors.New("credentials.mobile is required")
	case c.Password == "":
		return errors.New("credentials.password is required")
	case c.ClientID == "":
		return errors.New("credentials.client_id is required")
	}
	return nil
}

// Save writes the config to path atomically, creating the directory if needed.
func (c *Config) Save(path string) error {
	fileMutex.Lock()
	defer fileMutex.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# gfhanger configuration file
#
# Credentials may reference environment variables, e.g.
#   password: ${GFHANGER_PASSWORD}
#
# Location: ` + path + `

`)
	data = append(header, data...)

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary config file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save config file: %w", err)
	}

	return nil
}

// CreateDefaultConfig writes a starter configuration to path. The password
// is left as an environment reference.
func CreateDefaultConfig(path string) error {
	cfg := Default()
	cfg.Credentials = CredentialsConfig{
		Mobile:   "13800000000",
		Password: "${GFHANGER_PASSWORD}",
		ClientID: "gfhanger",
	}
	return cfg.Save(path)
}
