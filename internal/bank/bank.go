// Package bank implements the sample bank (spec.md §4.1, C1): up to 26
// slots, each holding a decoded sample reference and default
// gain/pitch, published to readers through a seqlock.
package bank

import (
	"fmt"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/luddite478/fortuned-sub004/internal/errs"
	"github.com/luddite478/fortuned-sub004/internal/seqlock"
	"github.com/luddite478/fortuned-sub004/internal/wavio"
)

// NumSlots is the fixed slot count (spec.md §3: "Up to 26 slots, indexed 0..25").
const NumSlots = 26

const (
	defaultVolume = 1.0
	defaultPitch  = 1.0
	minVolume     = 0.0
	maxVolume     = 1.0
	minPitch      = 0.25
	maxPitch      = 4.0
	// pitchUnityTolerance is the "differs from 1.0 by >= this much" threshold
	// spec.md §4.1 uses to decide whether a pitch-cache generation job is
	// worth scheduling.
	pitchUnityTolerance = 0.001
)

// Settings is a sample's (or a cell's resolved) volume/pitch pair.
type Settings struct {
	Volume float64
	Pitch  float64
}

// Sample is one bank slot (spec.md §3).
type Sample struct {
	Loaded       bool
	FilePath     string
	DisplayName  string
	SampleID     string
	Settings     Settings
	IsProcessing bool
	// frames holds the decoded unity-rate source, owned by this slot and
	// read by internal/voice/internal/pitch when building a voice.
	frames wavio.Samples
}

// Frames returns the decoded unity-rate source audio for this slot. The
// returned value is shared; callers must not mutate it.
func (s Sample) Frames() wavio.Samples { return s.frames }

// PitchScheduler is implemented by internal/pitch's worker pool. The bank
// depends on this interface, not on the pitch package directly, to avoid
// an import cycle (pitch consults the bank for decoded source frames).
type PitchScheduler interface {
	StartAsync(slot int, ratio float64)
}

// Bank owns all 26 sample slots and publishes them under a seqlock.
type Bank struct {
	lock    seqlock.SeqLock
	samples [NumSlots]Sample
	pitch   PitchScheduler
}

// New creates an empty bank. pitch may be nil (e.g. in tests that never
// exercise non-unity pitch); SetSampleSettings becomes a no-op for
// pitch-cache scheduling in that case.
func New(pitch PitchScheduler) *Bank {
	return &Bank{pitch: pitch}
}

// SetPitchScheduler wires the scheduler after construction, for the
// common case where the scheduler itself depends on the bank (internal/
// engine constructs the bank first with a nil scheduler, then the pitch
// cache, then calls this).
func (b *Bank) SetPitchScheduler(pitch PitchScheduler) {
	b.lock.Lock()
	b.pitch = pitch
	b.lock.Unlock()
}

func validSlot(slot int) error {
	if slot < 0 || slot >= NumSlots {
		return fmt.Errorf("bank: slot %d out of range [0,%d): %w", slot, NumSlots, errs.ErrInvalidArgument)
	}
	return nil
}

// Load decodes path into slot, resetting settings to defaults and
// assigning a generated opaque sample id (spec.md §4.1).
func (b *Bank) Load(slot int, path string) error {
	return b.load(slot, path, uuid.NewString())
}

// LoadWithID is Load plus an explicit caller-supplied opaque id.
func (b *Bank) LoadWithID(slot int, path, id string) error {
	return b.load(slot, path, id)
}

func (b *Bank) load(slot int, path, id string) error {
	if err := validSlot(slot); err != nil {
		return err
	}
	frames, err := wavio.Decode(path)
	if err != nil {
		return fmt.Errorf("bank: load slot %d: %w", slot, errs.ErrDecode)
	}

	b.lock.Lock()
	b.samples[slot] = Sample{
		Loaded:      true,
		FilePath:    path,
		DisplayName: filepath.Base(path),
		SampleID:    id,
		Settings:    Settings{Volume: defaultVolume, Pitch: defaultPitch},
		frames:      frames,
	}
	b.lock.Unlock()
	return nil
}

// Unload clears slot. Idempotent (spec.md §4.1).
func (b *Bank) Unload(slot int) error {
	if err := validSlot(slot); err != nil {
		return err
	}
	b.lock.Lock()
	b.samples[slot] = Sample{}
	b.lock.Unlock()
	return nil
}

// SetSampleSettings clamps volume/pitch and, if the new pitch departs
// from unity by at least the tolerance, schedules background pitch-cache
// generation and marks the slot as processing (spec.md §4.1).
func (b *Bank) SetSampleSettings(slot int, volume, pitch float64) error {
	if err := validSlot(slot); err != nil {
		return err
	}
	volume = clamp(volume, minVolume, maxVolume)
	pitch = clamp(pitch, minPitch, maxPitch)

	b.lock.Lock()
	s := &b.samples[slot]
	if !s.Loaded {
		b.lock.Unlock()
		return fmt.Errorf("bank: slot %d not loaded: %w", slot, errs.ErrInvalidArgument)
	}
	s.Settings = Settings{Volume: volume, Pitch: pitch}
	needsGeneration := abs(pitch-1.0) >= pitchUnityTolerance
	if needsGeneration {
		s.IsProcessing = true
	}
	b.lock.Unlock()

	if needsGeneration && b.pitch != nil {
		b.pitch.StartAsync(slot, pitch)
	}
	return nil
}

// MarkProcessingDone clears the IsProcessing flag for slot, called by the
// pitch cache worker after a generation job completes (spec.md §7: "the
// UI observes the is_processing flag transitioning back to false
// regardless of success").
func (b *Bank) MarkProcessingDone(slot int) {
	if slot < 0 || slot >= NumSlots {
		return
	}
	b.lock.Lock()
	b.samples[slot].IsProcessing = false
	b.lock.Unlock()
}

// Get returns a consistent snapshot copy of slot's state. The copy shares
// the slot's decoded frames (large, never mutated after load), which
// callers read through Frames() after confirming Loaded.
func (b *Bank) Get(slot int) (Sample, error) {
	if err := validSlot(slot); err != nil {
		return Sample{}, err
	}
	var out Sample
	b.lock.Read(func() { out = b.samples[slot] })
	return out, nil
}

// State is a deep-copyable snapshot of the whole bank, used by
// internal/undo.
type State struct {
	Samples [NumSlots]Sample
}

// Snapshot returns a consistent deep copy of every slot (spec.md §3's
// Snapshot contract). The decoded frames slices are shared (read-only,
// content never mutated after load), so this copy is cheap.
func (b *Bank) Snapshot() State {
	var out State
	b.lock.Read(func() { out.Samples = b.samples })
	return out
}

// ApplyState reconciles the bank with a previously captured State: loads
// missing files, unloads extras, then applies settings (spec.md §4.1).
// This is also how undo/redo restores bank state.
func (b *Bank) ApplyState(state State) error {
	for slot := 0; slot < NumSlots; slot++ {
		want := state.Samples[slot]
		current, _ := b.Get(slot)

		switch {
		case !want.Loaded && current.Loaded:
			if err := b.Unload(slot); err != nil {
				return err
			}
		case want.Loaded && (!current.Loaded || current.FilePath != want.FilePath):
			if err := b.LoadWithID(slot, want.FilePath, want.SampleID); err != nil {
				return err
			}
			if err := b.SetSampleSettings(slot, want.Settings.Volume, want.Settings.Pitch); err != nil {
				return err
			}
		case want.Loaded:
			if err := b.SetSampleSettings(slot, want.Settings.Volume, want.Settings.Pitch); err != nil {
				return err
			}
		}
	}
	return nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
