package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitConfigDefaults(t *testing.T) {
	// Run from an empty home so no config file is picked up.
	t.Setenv("HOME", t.TempDir())

	require.NoError(t, InitConfig())
	cfg := Get()
	require.NotNil(t, cfg)

	assert.Equal(t, "data", cfg.DataDir)
	assert.Equal(t, filepath.Join("data", "harvests"), cfg.HarvestDir)
	assert.Equal(t, filepath.Join("data", "zips"), cfg.ZipDir)

	// InitConfig is idempotent.
	require.NoError(t, InitConfig())
	assert.Same(t, cfg, Get())
}
