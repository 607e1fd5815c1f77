package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg, err := LoadFiles(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, StoreFile, cfg.StoreDriver)
	assert.Equal(t, 2*time.Second, cfg.AutosaveDelay)
	assert.False(t, cfg.MDNSEnabled)
}

func TestDotenvAndEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("WB_TEST_UNUSED=1\nSTORE_DRIVER=memory\nAUTOSAVE_DELAY=250ms\n"), 0o644))
	t.Setenv("PORT", "9090")
	t.Setenv("STORE_DRIVER", "")
	os.Unsetenv("STORE_DRIVER")
	t.Cleanup(func() {
		os.Unsetenv("STORE_DRIVER")
		os.Unsetenv("AUTOSAVE_DELAY")
		os.Unsetenv("WB_TEST_UNUSED")
	})

	cfg, err := LoadFiles(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, StoreMemory, cfg.StoreDriver)
	assert.Equal(t, 250*time.Millisecond, cfg.AutosaveDelay)
}

func TestUnknownDriver(t *testing.T) {
	t.Setenv("STORE_DRIVER", "floppy")
	_, err := LoadFiles()
	assert.Error(t, err)
}
