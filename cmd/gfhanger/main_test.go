package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muurk/gfhanger/internal/config"
	"github.com/muurk/gfhanger/internal/gateway"
	"github.com/muurk/gfhanger/internal/logging"
)

func TestResolveDevice(t *testing.T) {
	devices := []gateway.Device{
		{ID: "a1", Name: "Balcony"},
		{ID: "b2", Name: "Laundry"},
		{ID: "c3", Name: "laundry"},
	}

	d, err := resolveDevice(devices, "b2")
	require.NoError(t, err)
	assert.Equal(t, "Laundry", d.Name)

	d, err = resolveDevice(devices, "balcony")
	require.NoError(t, err)
	assert.Equal(t, "a1", d.ID)

	_, err = resolveDevice(devices, "LAUNDRY")
	assert.ErrorContains(t, err, "2 devices")

	_, err = resolveDevice(devices, "garage")
	assert.ErrorContains(t, err, "no device")
}

func TestApplyOverrides(t *testing.T) {
	t.Cleanup(func() {
		hostFlag, portFlag, mobileFlag, clientIDFlag = "", 0, "", ""
	})

	cfg := config.Default()
	applyOverrides(cfg)
	assert.Equal(t, config.DefaultGatewayHost, cfg.Gateway.Host)

	hostFlag, portFlag, mobileFlag, clientIDFlag = "127.0.0.1", 9000, "139", "cli"
	applyOverrides(cfg)
	assert.Equal(t, "127.0.0.1", cfg.Gateway.Host)
	assert.Equal(t, 9000, cfg.Gateway.Port)
	assert.Equal(t, "139", cfg.Credentials.Mobile)
	assert.Equal(t, "cli", cfg.Credentials.ClientID)
}

func TestLogLevelFor(t *testing.T) {
	t.Cleanup(func() { logLevel = "" })
	t.Setenv(logging.LogLevelEnvVar, "")

	cfg := config.Default()
	assert.Equal(t, "", logLevelFor(cfg, ""), "silent without any setting")
	assert.Equal(t, "info", logLevelFor(cfg, "info"))

	cfg.Log.Level = "warn"
	assert.Equal(t, "warn", logLevelFor(cfg, ""), "config applies to every command")
	assert.Equal(t, "warn", logLevelFor(cfg, "info"))

	t.Setenv(logging.LogLevelEnvVar, "error")
	assert.Equal(t, "error", logLevelFor(cfg, "info"))

	logLevel = "debug"
	assert.Equal(t, "debug", logLevelFor(cfg, "info"))
}

func TestCommandTree(t *testing.T) {
	for _, name := range []string{"devices", "control", "watch", "bridge", "simulate", "config", "version"} {
		cmd, _, err := rootCmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}
}
