package engineconfig_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luddite478/fortuned-sub004/internal/engineconfig"
)

func TestDefaultHasSensibleValues(t *testing.T) {
	cfg := engineconfig.Default()
	require.Equal(t, 48000, cfg.SampleRate)
	require.Equal(t, 100, cfg.HistorySize)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := engineconfig.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.Equal(t, engineconfig.Default(), cfg)
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := engineconfig.Load("")
	require.NoError(t, err)
	require.Equal(t, engineconfig.Default(), cfg)
}

func TestLoadOverlaysYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sample_rate: 44100\nhistory_size: 50\n"), 0o644))

	cfg, err := engineconfig.Load(path)
	require.NoError(t, err)
	require.Equal(t, 44100, cfg.SampleRate)
	require.Equal(t, 50, cfg.HistorySize)
	require.Equal(t, engineconfig.Default().VolumeRiseMs, cfg.VolumeRiseMs)
}
