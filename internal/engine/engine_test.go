package engine_test

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luddite478/fortuned-sub004/internal/engine"
	"github.com/luddite478/fortuned-sub004/internal/engineconfig"
	"github.com/luddite478/fortuned-sub004/internal/table"
	"github.com/luddite478/fortuned-sub004/internal/wavio"
)

func writeToneWAV(t *testing.T, path string) {
	t.Helper()
	frames := 4096
	data := make([]float32, frames*wavio.NumChannels)
	for i := 0; i < frames; i++ {
		v := float32(math.Sin(float64(i) * 0.05))
		data[i*2] = v
		data[i*2+1] = v
	}
	require.NoError(t, wavio.Encode(path, data))
}

func newTestEngine(t *testing.T) *engine.Engine {
	t.Helper()
	cfg := engineconfig.Default()
	cfg.SampleRate = 48000
	e := engine.Init(cfg)
	t.Cleanup(e.Cleanup)
	return e
}

func TestInitWiresCircularDependencies(t *testing.T) {
	e := newTestEngine(t)
	path := filepath.Join(t.TempDir(), "kick.wav")
	writeToneWAV(t, path)

	require.NoError(t, e.BankLoad(0, path))
	require.NoError(t, e.BankSetSampleSettings(0, 1.0, 1.5))

	s, err := e.BankGet(0)
	require.NoError(t, err)
	require.True(t, s.IsProcessing)
}

func TestPlaybackAndRenderAdvancesStep(t *testing.T) {
	e := newTestEngine(t)
	path := filepath.Join(t.TempDir(), "kick.wav")
	writeToneWAV(t, path)
	require.NoError(t, e.BankLoad(0, path))

	require.NoError(t, e.SetCell(0, 0, 0, table.SentinelInherit, table.SentinelInherit))
	require.NoError(t, e.PlaybackStart(120, 0))

	framesPerStep := (48000 * 60) / (120 * 4)
	dst := make([]float32, (framesPerStep+64)*2)
	e.Render(dst)

	require.Equal(t, 1, e.PlaybackState().CurrentStep)
}

func TestUndoRedoAcrossTableEdits(t *testing.T) {
	e := newTestEngine(t)
	require.False(t, e.CanUndo(), "only the Init baseline entry exists so far")

	require.NoError(t, e.SetCell(0, 0, 3, table.SentinelInherit, table.SentinelInherit))
	cell, err := e.Table.GetCell(0, 0)
	require.NoError(t, err)
	require.Equal(t, 3, cell.SampleSlot)

	require.True(t, e.CanUndo())
	require.NoError(t, e.Undo())

	cell, err = e.Table.GetCell(0, 0)
	require.NoError(t, err)
	require.True(t, cell.IsEmpty())

	require.True(t, e.CanRedo())
	require.NoError(t, e.Redo())
	cell, err = e.Table.GetCell(0, 0)
	require.NoError(t, err)
	require.Equal(t, 3, cell.SampleSlot)
}

func TestRecordingStartStopProducesFile(t *testing.T) {
	e := newTestEngine(t)
	path := filepath.Join(t.TempDir(), "take.wav")

	require.False(t, e.RecordingIsActive())
	require.NoError(t, e.RecordingStart(path))
	require.True(t, e.RecordingIsActive())

	dst := make([]float32, 256)
	e.Render(dst)

	require.NoError(t, e.RecordingStop())
	require.False(t, e.RecordingIsActive())

	decoded, err := wavio.Decode(path)
	require.NoError(t, err)
	require.Greater(t, decoded.Len(), 0)
}
