package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "worldlink.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	assert.NoError(t, validate(Default()))
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeTempConfig(t, `
transport:
  pipe_pool_size: 4
cache:
  tiers:
    - name: mem
      budget_bytes: 1024
      policy: lru
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Transport.PipePoolSize)
	// Fields left unset in the YAML fall back to Default()'s values.
	assert.Equal(t, Default().Transport.WriteQueueHighWaterMark, cfg.Transport.WriteQueueHighWaterMark)
	require.Len(t, cfg.Cache.Tiers, 1)
	assert.EqualValues(t, 1024, cfg.Cache.Tiers[0].BudgetBytes)
}

func TestLoadRejectsMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	assert.Error(t, err)
}

func TestLoadRejectsInvalidPolicy(t *testing.T) {
	path := writeTempConfig(t, `
cache:
  tiers:
    - name: mem
      budget_bytes: 1024
      policy: mru
`)

	assert.Panics(t, func() {
		_, _ = Load(path)
	})
}

func TestValidateCatchesBadReadWaterMarks(t *testing.T) {
	cfg := Default()
	cfg.Transport.ReadLowWaterMark = cfg.Transport.ReadScratchSize + 1
	assert.Error(t, validate(cfg))
}

func TestGetPanicsBeforeSetCurrent(t *testing.T) {
	configLock.Lock()
	current = nil
	configLock.Unlock()

	assert.Panics(t, func() {
		Get()
	})
}

func TestSetCurrentThenGet(t *testing.T) {
	cfg := Default()
	SetCurrent(cfg)
	assert.Same(t, cfg, Get())
}
