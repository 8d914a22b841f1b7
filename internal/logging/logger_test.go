package logging

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    zapcore.Level
		wantErr bool
	}{
		{"debug", zapcore.DebugLevel, false},
		{"info", zapcore.InfoLevel, false},
		{"warn", zapcore.WarnLevel, false},
		{"error", zapcore.ErrorLevel, false},
		{"verbose", zapcore.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			require.Equal(t, tt.want, got)
		})
	}
}

func TestInitializeSilentByDefault(t *testing.T) {
	t.Setenv(LogLevelEnvVar, "")
	require.NoError(t, Initialize(""))
	require.False(t, GetLogger().Core().Enabled(zapcore.ErrorLevel))
}

func TestLogFrameOnlyAtDebug(t *testing.T) {
	defer SetLogger(nil)

	core, logs := observer.New(zapcore.InfoLevel)
	SetLogger(zap.New(core))
	LogFrame("127.0.0.1:1", "received", "payload", []byte{0x04, 0x00})
	require.Equal(t, 0, logs.Len())

	core, logs = observer.New(zapcore.DebugLevel)
	SetLogger(zap.New(core))
	LogFrame("127.0.0.1:1", "received", "payload", []byte{0x04, 0x00})
	require.Equal(t, 1, logs.Len())
	require.Equal(t, "0400", logs.All()[0].ContextMap()["hex"])
}

func TestDumpsTruncate(t *testing.T) {
	data := make([]byte, maxDumpBytes+10)
	for i := range data {
		data[i] = 'a'
	}
	require.Len(t, hexDump(data), maxDumpBytes*2+3)
	require.Len(t, asciiDump(data), maxDumpBytes)
	require.Equal(t, "a.b", asciiDump([]byte{'a', 0x01, 'b'}))
}
