package recorder_test

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luddite478/fortuned-sub004/internal/errs"
	"github.com/luddite478/fortuned-sub004/internal/recorder"
	"github.com/luddite478/fortuned-sub004/internal/wavio"
)

func TestStartStopProducesValidWAV(t *testing.T) {
	r := recorder.New()
	path := filepath.Join(t.TempDir(), "take.wav")

	require.False(t, r.IsActive())
	require.NoError(t, r.Start(path))
	require.True(t, r.IsActive())

	r.Write([]float32{0.1, -0.1, 0.2, -0.2})
	r.Write([]float32{0.3, -0.3})

	require.NoError(t, r.Stop())
	require.False(t, r.IsActive())

	decoded, err := wavio.Decode(path)
	require.NoError(t, err)
	require.Equal(t, 3, decoded.Len())
}

func TestStartTwiceFails(t *testing.T) {
	r := recorder.New()
	path := filepath.Join(t.TempDir(), "take.wav")
	require.NoError(t, r.Start(path))

	err := r.Start(filepath.Join(t.TempDir(), "other.wav"))
	require.Error(t, err)
	require.True(t, errors.Is(err, errs.ErrAlreadyRecording))

	require.NoError(t, r.Stop())
}

func TestStopWithoutStartFails(t *testing.T) {
	r := recorder.New()
	err := r.Stop()
	require.Error(t, err)
	require.True(t, errors.Is(err, errs.ErrNotRecording))
}

func TestWriteIsNoopWhenInactive(t *testing.T) {
	r := recorder.New()
	require.NotPanics(t, func() {
		r.Write([]float32{1, 1, 1, 1})
	})
}

func TestDefaultPathWhenEmpty(t *testing.T) {
	t.Chdir(t.TempDir())
	r := recorder.New()
	require.NoError(t, r.Start(""))
	require.NoError(t, r.Stop())
}
