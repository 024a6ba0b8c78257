package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	require.Equal(t, ":8080", c.Addr)
	require.Equal(t, uint64(3), c.StopRetryAttempts)
	require.Equal(t, 100*time.Millisecond, c.StopRetryBackoff)
	require.Equal(t, 15*time.Minute, c.HandshakeWindow)
	require.Equal(t, 10, c.HandshakeMaxFails)
	require.Equal(t, "UTC", c.Timezone)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"addr: \":9090\"\nstop_retry_attempts: 5\ntimezone: Europe/Berlin\n",
	), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":9090", c.Addr)
	require.Equal(t, uint64(5), c.StopRetryAttempts)
	require.Equal(t, "Europe/Berlin", c.Timezone)
	// Untouched keys keep their defaults.
	require.Equal(t, 100*time.Millisecond, c.StopRetryBackoff)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("TALLY_ADDR", ":7070")
	c, err := Load("")
	require.NoError(t, err)
	require.Equal(t, ":7070", c.Addr)
}

func TestLoadMissingFileIsFine(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
}

func TestSafeLocation(t *testing.T) {
	loc, ok := SafeLocation("Europe/Berlin")
	require.True(t, ok)
	require.Equal(t, "Europe/Berlin", loc.String())

	loc, ok = SafeLocation("Not/AZone")
	require.False(t, ok)
	require.Equal(t, time.UTC, loc)

	loc, ok = SafeLocation("")
	require.False(t, ok)
	require.Equal(t, time.UTC, loc)
}
