package eio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDecodeServerConfig(t *testing.T) {
	t.Run("should decode durations and numbers", func(t *testing.T) {
		config, err := DecodeServerConfig(map[string]any{
			"pingInterval":   "10s",
			"PingTimeout":    int64(5 * time.Second),
			"upgradeTimeout": "1m",
			"maxBufferSize":  "2048",
			"compression":    true,
		})
		require.NoError(t, err)
		require.Equal(t, 10*time.Second, config.PingInterval)
		require.Equal(t, 5*time.Second, config.PingTimeout)
		require.Equal(t, time.Minute, config.UpgradeTimeout)
		require.Equal(t, int64(2048), config.MaxBufferSize)
		require.True(t, config.Compression)

		io := NewServer(nil, config)
		require.NoError(t, io.Run())
	})

	t.Run("should reject unknown keys", func(t *testing.T) {
		_, err := DecodeServerConfig(map[string]any{
			"pingIntervall": "10s",
		})
		require.Error(t, err)
	})

	t.Run("should reject invalid durations", func(t *testing.T) {
		_, err := DecodeServerConfig(map[string]any{
			"pingInterval": "soon",
		})
		require.Error(t, err)
	})

	t.Run("should not touch fields that cannot come from a map", func(t *testing.T) {
		_, err := DecodeServerConfig(map[string]any{
			"debugger": "print",
		})
		require.Error(t, err)
	})
}
