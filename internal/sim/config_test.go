package sim

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig(nil)

	require.Equal(t, ":8080", cfg.Server.Addr)
	require.Equal(t, "info", cfg.Server.LogLevel)
	require.Equal(t, 16, cfg.Workload.Slots)
	require.Equal(t, 4, cfg.Workload.Writers)
	require.Equal(t, 8, cfg.Workload.Readers)
	require.Equal(t, time.Duration(0), cfg.Workload.Duration)
	require.Equal(t, 2*time.Second, cfg.Workload.RetuneEvery)
}

func TestLoadConfigFlags(t *testing.T) {
	cfg := LoadConfig([]string{
		"--addr", ":9999",
		"--slots", "3",
		"--writers", "2",
		"--duration", "30s",
	})

	require.Equal(t, ":9999", cfg.Server.Addr)
	require.Equal(t, 3, cfg.Workload.Slots)
	require.Equal(t, 2, cfg.Workload.Writers)
	require.Equal(t, 30*time.Second, cfg.Workload.Duration)
}

func TestLoadConfigEnv(t *testing.T) {
	t.Setenv("SLOTSIM_WORKLOAD_READERS", "5")
	t.Setenv("SLOTSIM_SERVER_LOG_LEVEL", "debug")

	cfg := LoadConfig(nil)

	require.Equal(t, 5, cfg.Workload.Readers)
	require.Equal(t, "debug", cfg.Server.LogLevel)
}

func TestLoadConfigClampsNonsense(t *testing.T) {
	cfg := LoadConfig([]string{"--slots", "0", "--retune-every", "0s"})

	require.Equal(t, 16, cfg.Workload.Slots)
	require.Equal(t, 2*time.Second, cfg.Workload.RetuneEvery)
}
