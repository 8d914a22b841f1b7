package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/muurk/gfhanger/internal/config"
	"github.com/muurk/gfhanger/internal/gateway"
	"github.com/muurk/gfhanger/internal/logging"
)

// loadConfig reads the config file, applies flag overrides and sets up
// logging. The level comes from --log-level, then GFHANGER_LOG_LEVEL,
// then log.level, then defaultLevel. An empty result keeps logging silent.
func loadConfig(defaultLevel string) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.Load(configPath)
	} else {
		cfg, err = config.LoadDefault()
	}
	if err != nil {
		return nil, err
	}

	applyOverrides(cfg)

	if err := logging.Initialize(logLevelFor(cfg, defaultLevel)); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func logLevelFor(cfg *config.Config, defaultLevel string) string {
	switch {
	case logLevel != "":
		return logLevel
	case os.Getenv(logging.LogLevelEnvVar) != "":
		return os.Getenv(logging.LogLevelEnvVar)
	case cfg.Log.Level != "":
		return cfg.Log.Level
	default:
		return defaultLevel
	}
}

func applyOverrides(cfg *config.Config) {
	if hostFlag != "" {
		cfg.Gateway.Host = hostFlag
	}
	if portFlag != 0 {
		cfg.Gateway.Port = portFlag
	}
	if mobileFlag != "" {
		cfg.Credentials.Mobile = mobileFlag
	}
	if clientIDFlag != "" {
		cfg.Credentials.ClientID = clientIDFlag
	}
}

// credentials returns the login credentials, prompting for the password
// on a terminal when the config has none.
func credentials(cfg *config.Config) (gateway.Credentials, error) {
	if cfg.Credentials.Password == "" {
		password, err := promptPassword(cfg.Credentials.Mobile)
		if err != nil {
			return gateway.Credentials{}, err
		}
		cfg.Credentials.Password = password
	}

	if err := cfg.Credentials.ValidateCredentials(); err != nil {
		return gateway.Credentials{}, err
	}
	return gateway.CredentialsFrom(cfg.Credentials), nil
}

func promptPassword(mobile string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("credentials.password is not set and stdin is not a terminal")
	}

	fmt.Fprintf(os.Stderr, "Password for %s: ", mobile)
	password, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimSpace(string(password)), nil
}

func newGatewayClient(cfg *config.Config, reg prometheus.Registerer) *gateway.Client {
	gwCfg := gateway.ConfigFrom(cfg.Gateway)
	gwCfg.Registerer = reg
	return gateway.NewClient(gwCfg)
}

func shutdownClient(client *gateway.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Shutdown(ctx); err != nil {
		logging.Debug("Gateway shutdown incomplete", zap.Error(err))
	}
}

// resolveDevice finds a device by id or, case-insensitively, by name.
func resolveDevice(devices []gateway.Device, ref string) (gateway.Device, error) {
	for _, d := range devices {
		if d.ID == ref {
			return d, nil
		}
	}

	var matches []gateway.Device
	for _, d := range devices {
		if strings.EqualFold(d.Name, ref) {
			matches = append(matches, d)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return gateway.Device{}, fmt.Errorf("no device matches %q (see 'gfhanger devices')", ref)
	default:
		return gateway.Device{}, fmt.Errorf("%d devices are named %q, use the device id", len(matches), ref)
	}
}

// keepSession logs in again whenever the connection drops, until ctx
// ends.
func keepSession(ctx context.Context, client *gateway.Client, creds gateway.Credentials, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if client.IsConnected() && client.LoggedIn() {
				continue
			}
			logging.Info("Gateway session lost, logging in again")
			if err := client.Login(ctx, creds); err != nil {
				logging.Warn("Re-login failed", zap.Error(err))
			}
		}
	}
}
