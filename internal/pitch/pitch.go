// Package pitch implements the pitch cache (spec.md §4.2, C2): offline
// generation and lookup of pitch-shifted renditions of bank samples, plus
// the real-time pitch sources the voice pipeline falls back to before a
// cache entry is ready.
package pitch

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/luddite478/fortuned-sub004/internal/bank"
	"github.com/luddite478/fortuned-sub004/internal/errs"
	"github.com/luddite478/fortuned-sub004/internal/wavio"
)

// Quality is the process-global generation quality preset (spec.md §4.2:
// "q=0 longest analysis window, anti-alias filter enabled" through "q=4
// shortest window, no anti-alias"). Lower is higher quality.
type Quality int

const (
	Quality0 Quality = iota
	Quality1
	Quality2
	Quality3
	Quality4
)

const (
	maxWorkers = 4

	ratioDedupTolerance = 0.001
	unityTolerance      = 0.001

	minRatio = 1.0 / 32.0
	maxRatio = 32.0

	chunkFrames = 16384
)

// BankSource is the subset of *bank.Bank the cache needs: reading a
// slot's current state/frames and clearing its processing flag once a
// job completes.
type BankSource interface {
	Get(slot int) (bank.Sample, error)
	MarkProcessingDone(slot int)
}

type jobKey struct {
	slot  int
	ratio float64
}

// Cache owns the bounded worker pool and the quality preset, and serves
// as the bank's PitchScheduler.
type Cache struct {
	bank BankSource

	mu      sync.Mutex
	quality Quality
	method  Method
	pending map[jobKey]bool

	sem chan struct{}
}

// New creates a pitch cache bound to bank. quality defaults to Quality0;
// the real-time fallback method defaults to MethodRealtimeResampler.
func New(bank BankSource) *Cache {
	return &Cache{
		bank:    bank,
		method:  MethodRealtimeResampler,
		pending: make(map[jobKey]bool),
		sem:     make(chan struct{}, maxWorkers),
	}
}

// SetQuality changes the process-global generation quality preset
// (spec.md §4.2: "process-global and cannot change per voice").
func (c *Cache) SetQuality(q Quality) {
	c.mu.Lock()
	c.quality = q
	c.mu.Unlock()
}

func (c *Cache) currentQuality() Quality {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.quality
}

// SetMethod changes which real-time fallback a cache miss builds
// (spec.md §6's pitch_set_method, §4.2: "process-global, cannot change
// per voice [after construction]" — only voices built after this call
// are affected). MethodCachedFile is not a valid argument; OpenSource
// always prefers a cache hit regardless of this setting.
func (c *Cache) SetMethod(m Method) {
	c.mu.Lock()
	c.method = m
	c.mu.Unlock()
}

func (c *Cache) currentMethod() Method {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.method
}

// quantizeRatio rounds ratio to three decimals (the ratioDedupTolerance
// grid). It rounds through decimal formatting rather than dividing by
// 0.001, which is not exact in binary and pushes values such as 1.2345
// (stored just below the half) up to the next step.
func quantizeRatio(ratio float64) float64 {
	q, _ := strconv.ParseFloat(strconv.FormatFloat(ratio, 'f', 3, 64), 64)
	return q
}

// GetFilePath returns the deterministic on-disk path for (slot, ratio):
// "<source-dir>/<source-stem>_p<ratio-%.3f>.wav", e.g. "kick_p1.200.wav"
// (spec.md §6: "Pitch artifact naming").
func (c *Cache) GetFilePath(slot int, ratio float64) (string, error) {
	s, err := c.bank.Get(slot)
	if err != nil {
		return "", err
	}
	if !s.Loaded {
		return "", fmt.Errorf("pitch: slot %d not loaded: %w", slot, errs.ErrInvalidArgument)
	}
	dir := filepath.Dir(s.FilePath)
	stem := strings.TrimSuffix(filepath.Base(s.FilePath), filepath.Ext(s.FilePath))
	ratio = quantizeRatio(ratio)
	return filepath.Join(dir, fmt.Sprintf("%s_p%.3f.wav", stem, ratio)), nil
}

// StartAsync enqueues a generation job on the bounded worker pool,
// de-duplicating requests within tolerance against any job already
// in-flight for the same slot (spec.md §4.2). Implements
// bank.PitchScheduler.
func (c *Cache) StartAsync(slot int, ratio float64) {
	key := jobKey{slot: slot, ratio: quantizeRatio(ratio)}

	c.mu.Lock()
	if c.pending[key] {
		c.mu.Unlock()
		return
	}
	c.pending[key] = true
	c.mu.Unlock()

	go func() {
		c.sem <- struct{}{}
		defer func() { <-c.sem }()
		defer func() {
			c.mu.Lock()
			delete(c.pending, key)
			c.mu.Unlock()
			c.bank.MarkProcessingDone(slot)
		}()
		_ = c.GenerateFile(slot, ratio)
	}()
}

// RunPreprocessing resolves a cell's pitch (useDefault selects "inherit
// from bank"), clamps, skips near-unity ratios, and schedules generation
// (spec.md §4.2).
func (c *Cache) RunPreprocessing(slot int, cellPitch float64, useDefault bool) error {
	s, err := c.bank.Get(slot)
	if err != nil {
		return err
	}
	ratio := cellPitch
	if useDefault {
		ratio = s.Settings.Pitch
	}
	ratio = clampRatio(ratio)
	if math.Abs(ratio-1.0) < unityTolerance {
		return nil
	}
	c.StartAsync(slot, ratio)
	return nil
}

func clampRatio(r float64) float64 {
	if r < minRatio {
		return minRatio
	}
	if r > maxRatio {
		return maxRatio
	}
	return r
}

// GenerateFile produces (or confirms) the pitched artifact for (slot,
// ratio): take the slot's decoded frames from the bank, feed 16384-frame
// chunks through the time-domain shifter, and stream each shifted chunk to
// a float32 WAV. Each chunk is shifted on its own; no shifter state or
// residual samples carry over between chunks. A zero-frame result deletes
// the partial file and reports failure (spec.md §4.2).
func (c *Cache) GenerateFile(slot int, ratio float64) error {
	path, err := c.GetFilePath(slot, ratio)
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil {
		return nil // already generated
	}

	s, err := c.bank.Get(slot)
	if err != nil {
		return err
	}
	source := s.Frames().Data
	if len(source) == 0 {
		return fmt.Errorf("pitch: slot %d has no source frames: %w", slot, errs.ErrInvalidArgument)
	}

	q := c.currentQuality()
	enc, err := wavio.NewStreamEncoder(path)
	if err != nil {
		return fmt.Errorf("pitch: generate slot %d: %w", slot, errs.ErrIO)
	}

	frames := len(source) / wavio.NumChannels
	totalWritten := 0
	for start := 0; start < frames; start += chunkFrames {
		end := start + chunkFrames
		if end > frames {
			end = frames
		}
		chunk := source[start*wavio.NumChannels : end*wavio.NumChannels]
		shifted := timeDomainShift(chunk, wavio.NumChannels, ratio, q)
		if err := enc.WriteFrames(shifted); err != nil {
			enc.Close()
			os.Remove(path)
			return fmt.Errorf("pitch: generate slot %d: %w", slot, errs.ErrIO)
		}
		totalWritten += len(shifted) / wavio.NumChannels
	}

	if err := enc.Close(); err != nil {
		os.Remove(path)
		return fmt.Errorf("pitch: generate slot %d: %w", slot, errs.ErrIO)
	}
	if totalWritten == 0 {
		os.Remove(path)
		return fmt.Errorf("pitch: generate slot %d produced no frames: %w", slot, errs.ErrIO)
	}
	return nil
}

// OpenSource resolves the pitch source a voice should read from for
// (slot, ratio): the cached pitched artifact if present, else a
// real-time wrapper over the unity-rate source (the resampler-style one,
// or the time-domain one after SetMethod(MethodRealtimeTimeDomain)), with
// generation kicked in the background so the next trigger benefits from
// cache (spec.md §4.5).
func (c *Cache) OpenSource(slot int, ratio float64) (Source, error) {
	path, err := c.GetFilePath(slot, ratio)
	if err != nil {
		return nil, err
	}
	if _, statErr := os.Stat(path); statErr == nil {
		cached, decodeErr := wavio.Decode(path)
		if decodeErr == nil {
			return newCachedSource(cached), nil
		}
	}

	s, err := c.bank.Get(slot)
	if err != nil {
		return nil, err
	}
	c.StartAsync(slot, ratio)
	if c.currentMethod() == MethodRealtimeTimeDomain {
		return newRealtimeTimeDomainSource(s.Frames(), ratio, c.currentQuality()), nil
	}
	return newRealtimeResamplerSource(s.Frames(), ratio), nil
}

// OpenTimeDomainSource opens slot through the same time-domain shifter
// used for offline generation rather than the cheaper resampler-style
// wrapper. Not used by the default voice fallback path (spec.md §4.5
// prefers the resampler for real-time use), but available for callers
// that need the time-domain variant's duration-preserving behavior, e.g.
// previewing a cell's pitch before a cache entry exists.
func (c *Cache) OpenTimeDomainSource(slot int, ratio float64) (Source, error) {
	s, err := c.bank.Get(slot)
	if err != nil {
		return nil, err
	}
	return newRealtimeTimeDomainSource(s.Frames(), ratio, c.currentQuality()), nil
}

// ClearPreprocessedCache removes slot's generated artifacts from disk.
// Used when a sample is reloaded or unloaded so stale pitched renditions
// of a different source file are not served.
func (c *Cache) ClearPreprocessedCache(slot int) error {
	s, err := c.bank.Get(slot)
	if err != nil {
		return err
	}
	if !s.Loaded {
		return nil
	}
	dir := filepath.Dir(s.FilePath)
	stem := strings.TrimSuffix(filepath.Base(s.FilePath), filepath.Ext(s.FilePath))
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("pitch: clear cache for slot %d: %w", slot, errs.ErrIO)
	}
	prefix := stem + "_p"
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), prefix) && strings.HasSuffix(e.Name(), ".wav") {
			os.Remove(filepath.Join(dir, e.Name()))
		}
	}
	return nil
}
