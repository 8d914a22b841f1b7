package mqtt

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muurk/gfhanger/internal/config"
)

func TestTopics(t *testing.T) {
	topics := NewTopics("/gfhanger/")

	assert.Equal(t, "gfhanger/state/abc", topics.State("abc"))
	assert.Equal(t, "gfhanger/command/abc", topics.Command("abc"))
	assert.Equal(t, "gfhanger/command/+", topics.AllCommands())
	assert.Equal(t, "gfhanger/ack/abc", topics.Ack("abc"))
	assert.Equal(t, "gfhanger/bridge/status", topics.BridgeStatus())
}

func TestDeviceFromCommand(t *testing.T) {
	topics := NewTopics("home/hanger")

	tests := []struct {
		topic  string
		wantID string
		wantOK bool
	}{
		{"home/hanger/command/abc", "abc", true},
		{"home/hanger/command/", "", false},
		{"home/hanger/command/abc/extra", "", false},
		{"home/hanger/state/abc", "", false},
		{"other/command/abc", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			id, ok := topics.DeviceFromCommand(tt.topic)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantID, id)
		})
	}
}

func TestBuildClientOptions(t *testing.T) {
	cfg := config.MQTTConfig{
		Broker:      "tcp://broker.local:1883",
		ClientID:    "bridge-1",
		Username:    "user",
		Password:    "pass",
		TopicPrefix: "gfhanger",
		QoS:         1,
	}

	opts := buildClientOptions(cfg)
	configureLWT(opts, NewTopics(cfg.TopicPrefix), 1)

	require.Len(t, opts.Servers, 1)
	assert.Equal(t, "broker.local:1883", opts.Servers[0].Host)
	assert.Equal(t, "bridge-1", opts.ClientID)
	assert.Equal(t, "user", opts.Username)
	assert.True(t, opts.AutoReconnect)
	assert.True(t, opts.CleanSession)

	assert.True(t, opts.WillEnabled)
	assert.Equal(t, "gfhanger/bridge/status", opts.WillTopic)
	assert.Equal(t, []byte(StatusOffline), opts.WillPayload)
	assert.True(t, opts.WillRetained)
}

func TestBuildClientOptionsAnonymous(t *testing.T) {
	opts := buildClientOptions(config.MQTTConfig{Broker: "tcp://localhost:1883", ClientID: "x"})
	assert.Empty(t, opts.Username)
	assert.False(t, opts.WillEnabled)
}

func TestConnectRejectsInvalidQoS(t *testing.T) {
	_, err := Connect(config.MQTTConfig{Broker: "tcp://localhost:1883", QoS: 3})
	assert.True(t, errors.Is(err, ErrInvalidQoS))
}

func TestPublishValidatesTopic(t *testing.T) {
	c := &Client{subscriptions: make(map[string]subscription)}

	assert.ErrorIs(t, c.Publish("", []byte("x"), false), ErrInvalidTopic)
	assert.ErrorIs(t, c.Subscribe("", func(string, []byte) error { return nil }), ErrInvalidTopic)
	assert.ErrorIs(t, c.Subscribe("a/b", nil), ErrSubscribeFailed)
	assert.NoError(t, c.Close())
}
