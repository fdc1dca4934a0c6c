package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	want := Config{
		DataDir:    "/var/lib/epicenter",
		ClientID:   "node-1",
		Debounce:   500 * time.Millisecond,
		JSONMirror: true,
		LogLevel:   "debug",
		LogJSON:    true,
	}
	require.NoError(t, Save(path, want))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestFromCommandFlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, Save(path, Config{DataDir: "/from/file", ClientID: "file-client"}))

	cmd := &cobra.Command{Use: "test"}
	BindFlags(cmd.Flags())
	require.NoError(t, cmd.Flags().Set("data-dir", "/from/flag"))

	cfg, err := FromCommand(cmd, path)
	require.NoError(t, err)
	assert.Equal(t, "/from/flag", cfg.DataDir)
	assert.Equal(t, "file-client", cfg.ClientID, "unset flags leave the file's value")
}
