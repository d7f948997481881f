package pitch_test

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/luddite478/fortuned-sub004/internal/bank"
	"github.com/luddite478/fortuned-sub004/internal/pitch"
	"github.com/luddite478/fortuned-sub004/internal/wavio"
)

func writeToneWAV(t *testing.T, path string, frames int) {
	t.Helper()
	data := make([]float32, frames*wavio.NumChannels)
	for i := 0; i < frames; i++ {
		v := float32(math.Sin(float64(i) * 0.05))
		data[i*2] = v
		data[i*2+1] = v
	}
	require.NoError(t, wavio.Encode(path, data))
}

func newTestBank(t *testing.T) (*bank.Bank, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "kick.wav")
	writeToneWAV(t, path, 4096)

	b := bank.New(nil)
	require.NoError(t, b.Load(0, path))
	return b, path
}

func TestGetFilePathIsDeterministicAndQuantized(t *testing.T) {
	b, path := newTestBank(t)
	c := pitch.New(b)

	p1, err := c.GetFilePath(0, 1.2345)
	require.NoError(t, err)
	p2, err := c.GetFilePath(0, 1.2341)
	require.NoError(t, err)
	require.Equal(t, p1, p2, "ratios within tolerance must resolve to the same artifact")

	require.Equal(t, filepath.Dir(path), filepath.Dir(p1))
}

func TestGenerateFileProducesNonEmptyWAV(t *testing.T) {
	b, _ := newTestBank(t)
	c := pitch.New(b)

	require.NoError(t, c.GenerateFile(0, 1.5))

	path, err := c.GetFilePath(0, 1.5)
	require.NoError(t, err)
	decoded, err := wavio.Decode(path)
	require.NoError(t, err)
	require.Greater(t, decoded.Len(), 0)
}

func TestGenerateFileSkipsIfAlreadyPresent(t *testing.T) {
	b, _ := newTestBank(t)
	c := pitch.New(b)

	require.NoError(t, c.GenerateFile(0, 2.0))
	path, err := c.GetFilePath(0, 2.0)
	require.NoError(t, err)
	info1, err := os.Stat(path)
	require.NoError(t, err)

	require.NoError(t, c.GenerateFile(0, 2.0))
	info2, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, info1.ModTime(), info2.ModTime())
}

func TestStartAsyncGeneratesAndMarksProcessingDone(t *testing.T) {
	b, _ := newTestBank(t)
	c := pitch.New(b)
	b.SetPitchScheduler(c)

	require.NoError(t, b.SetSampleSettings(0, 1.0, 1.5))

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		s, err := b.Get(0)
		require.NoError(t, err)
		if !s.IsProcessing {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	s, err := b.Get(0)
	require.NoError(t, err)
	require.False(t, s.IsProcessing)

	path, err := c.GetFilePath(0, 1.5)
	require.NoError(t, err)
	_, statErr := os.Stat(path)
	require.NoError(t, statErr)
}

func TestOpenSourceFallsBackToRealtimeResampler(t *testing.T) {
	b, _ := newTestBank(t)
	c := pitch.New(b)

	src, err := c.OpenSource(0, 2.0)
	require.NoError(t, err)
	require.Equal(t, pitch.MethodRealtimeResampler, src.Method())
	require.Greater(t, src.Length(), 0)

	out := src.Read(100)
	require.NotEmpty(t, out)
}

func TestOpenSourceUsesCacheOnceGenerated(t *testing.T) {
	b, _ := newTestBank(t)
	c := pitch.New(b)
	require.NoError(t, c.GenerateFile(0, 1.5))

	src, err := c.OpenSource(0, 1.5)
	require.NoError(t, err)
	require.Equal(t, pitch.MethodCachedFile, src.Method())
}

func TestSetMethodChangesRealtimeFallback(t *testing.T) {
	b, _ := newTestBank(t)
	c := pitch.New(b)

	c.SetMethod(pitch.MethodRealtimeTimeDomain)
	src, err := c.OpenSource(0, 2.0)
	require.NoError(t, err)
	require.Equal(t, pitch.MethodRealtimeTimeDomain, src.Method())

	c.SetMethod(pitch.MethodRealtimeResampler)
	src, err = c.OpenSource(0, 3.0)
	require.NoError(t, err)
	require.Equal(t, pitch.MethodRealtimeResampler, src.Method())
}

func TestOpenSourceRealtimeResamplerReadDoesNotAllocate(t *testing.T) {
	b, _ := newTestBank(t)
	c := pitch.New(b)

	src, err := c.OpenSource(0, 1.5)
	require.NoError(t, err)
	require.Equal(t, pitch.MethodRealtimeResampler, src.Method())

	// Warm up: the first Read grows the scratch buffer, which is
	// expected to allocate once. Steady-state reads afterward must not.
	src.Read(1)

	allocs := testing.AllocsPerRun(100, func() {
		src.Read(1)
	})
	require.Zero(t, allocs, "steady-state Read(1) must not allocate (spec.md §5)")
}

func TestClearPreprocessedCacheRemovesArtifacts(t *testing.T) {
	b, _ := newTestBank(t)
	c := pitch.New(b)
	require.NoError(t, c.GenerateFile(0, 1.5))

	path, err := c.GetFilePath(0, 1.5)
	require.NoError(t, err)
	_, err = os.Stat(path)
	require.NoError(t, err)

	require.NoError(t, c.ClearPreprocessedCache(0))
	_, err = os.Stat(path)
	require.True(t, os.IsNotExist(err))
}
