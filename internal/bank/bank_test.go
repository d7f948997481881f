package bank_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luddite478/fortuned-sub004/internal/bank"
	"github.com/luddite478/fortuned-sub004/internal/wavio"
)

func writeTestWAV(t *testing.T, name string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	data := make([]float32, 256*wavio.NumChannels)
	require.NoError(t, wavio.Encode(path, data))
	return path
}

type fakeScheduler struct {
	calls []struct {
		slot  int
		ratio float64
	}
}

func (f *fakeScheduler) StartAsync(slot int, ratio float64) {
	f.calls = append(f.calls, struct {
		slot  int
		ratio float64
	}{slot, ratio})
}

func TestLoadSetsDefaults(t *testing.T) {
	b := bank.New(nil)
	path := writeTestWAV(t, "kick.wav")

	require.NoError(t, b.Load(3, path))

	s, err := b.Get(3)
	require.NoError(t, err)
	require.True(t, s.Loaded)
	require.Equal(t, "kick.wav", s.DisplayName)
	require.Equal(t, 1.0, s.Settings.Volume)
	require.Equal(t, 1.0, s.Settings.Pitch)
	require.NotEmpty(t, s.SampleID)
}

func TestLoadInvalidSlot(t *testing.T) {
	b := bank.New(nil)
	err := b.Load(bank.NumSlots, writeTestWAV(t, "x.wav"))
	require.Error(t, err)
}

func TestUnloadIsIdempotent(t *testing.T) {
	b := bank.New(nil)
	path := writeTestWAV(t, "snare.wav")
	require.NoError(t, b.Load(0, path))
	require.NoError(t, b.Unload(0))
	require.NoError(t, b.Unload(0))

	s, err := b.Get(0)
	require.NoError(t, err)
	require.False(t, s.Loaded)
	require.Empty(t, s.FilePath)
}

func TestSetSampleSettingsClampsAndSchedulesPitch(t *testing.T) {
	sched := &fakeScheduler{}
	b := bank.New(sched)
	require.NoError(t, b.Load(1, writeTestWAV(t, "hat.wav")))

	require.NoError(t, b.SetSampleSettings(1, 5.0, 10.0))
	s, err := b.Get(1)
	require.NoError(t, err)
	require.Equal(t, 1.0, s.Settings.Volume)
	require.Equal(t, 4.0, s.Settings.Pitch)
	require.True(t, s.IsProcessing)
	require.Len(t, sched.calls, 1)
	require.Equal(t, 1, sched.calls[0].slot)

	// Unity pitch (within tolerance) must not schedule generation.
	sched.calls = nil
	require.NoError(t, b.SetSampleSettings(1, 0.8, 1.0005))
	require.Empty(t, sched.calls)
}

func TestApplyStateReconciles(t *testing.T) {
	b := bank.New(nil)
	pathA := writeTestWAV(t, "a.wav")
	require.NoError(t, b.Load(0, pathA))
	require.NoError(t, b.Load(1, writeTestWAV(t, "b.wav")))

	snap := b.Snapshot()
	require.NoError(t, b.Unload(0))
	require.NoError(t, b.SetSampleSettings(1, 0.2, 1.0))

	require.NoError(t, b.ApplyState(snap))

	s0, _ := b.Get(0)
	require.True(t, s0.Loaded)
	require.Equal(t, pathA, s0.FilePath)

	s1, _ := b.Get(1)
	require.Equal(t, 1.0, s1.Settings.Volume)
}
