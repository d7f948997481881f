// Package scheduler implements the frame-driven step scheduler (spec.md
// §4.6, C6): converts audio-callback frame counts into step advances,
// drives the voice pipeline and transport, and optionally taps the
// mixed output to a recorder.
package scheduler

import (
	"github.com/luddite478/fortuned-sub004/internal/table"
	"github.com/luddite478/fortuned-sub004/internal/transport"
	"github.com/luddite478/fortuned-sub004/internal/voice"
)

// Transport is the subset of *transport.Transport the scheduler drives.
type Transport interface {
	Snapshot() transport.State
	SetCurrentStep(step int)
	AdvanceSectionLoop()
	AdvanceSectionSong() bool
}

// Table is the subset of *table.Table the scheduler reads cells from.
type Table interface {
	GetCell(step, col int) (table.Cell, error)
}

// VoicePipeline is the subset of *voice.Pipeline the scheduler drives.
type VoicePipeline interface {
	TriggerColumn(col int, cell table.Cell)
	UpdateSmoothing(frameCount int)
	RenderFrame() (float32, float32)
}

// Recorder is the subset of *recorder.Recorder the scheduler taps the
// post-mix buffer through.
type Recorder interface {
	IsActive() bool
	Write(frames []float32)
}

// Scheduler owns the fractional frame accumulator that converts bpm into
// step advances (spec.md §4.6).
type Scheduler struct {
	transport  Transport
	table      Table
	voices     VoicePipeline
	recorder   Recorder
	sampleRate int

	// stepFrameCounter is a fractional accumulator: it carries its
	// remainder across step boundaries rather than resetting to zero,
	// so rounding in framesPerStep never drifts the long-run tempo.
	stepFrameCounter float64

	// stepFrames is the length in frames of the step in progress. It is
	// taken from the bpm at each step boundary, so a tempo change applies
	// from the next step on and never shortens the current one.
	stepFrames float64

	// wasPlaying detects the stopped->playing edge so the region-start
	// step gets triggered once, immediately, rather than only at the
	// first boundary a full step later.
	wasPlaying bool
}

// New creates a scheduler. recorder may be nil.
func New(tr Transport, tbl Table, voices VoicePipeline, rec Recorder, sampleRate int) *Scheduler {
	return &Scheduler{transport: tr, table: tbl, voices: voices, recorder: rec, sampleRate: sampleRate}
}

// framesPerStep computes 1/16-note granularity frame count from bpm
// (spec.md §4.6: "frames_per_step = (sample_rate × 60) / (bpm × 4)").
func (s *Scheduler) framesPerStep(bpm int) float64 {
	return (float64(s.sampleRate) * 60.0) / (float64(bpm) * 4.0)
}

// Render is the audio callback entry point: advances the step scheduler
// frame-by-frame, triggers voices at step boundaries, applies smoothing,
// then mixes the frames that were scheduled while playing; frames after
// playback stopped (the whole buffer while stopped) are written as
// silence. The full buffer is then tapped to the recorder (spec.md §4.6).
func (s *Scheduler) Render(dst []float32) {
	frameCount := len(dst) / 2
	framesRendered := s.advanceFrames(frameCount)

	s.voices.UpdateSmoothing(framesRendered)
	for i := 0; i < framesRendered; i++ {
		l, r := s.voices.RenderFrame()
		dst[i*2] = l
		dst[i*2+1] = r
	}
	for i := framesRendered * 2; i < len(dst); i++ {
		dst[i] = 0
	}

	if s.recorder != nil && s.recorder.IsActive() {
		s.recorder.Write(dst)
	}
}

// advanceFrames runs the per-frame step bookkeeping loop for up to
// frameCount frames, stopping early if playback stops mid-buffer
// (spec.md §4.6 step 3: "If section-advance stops playback, leave the
// callback loop"). On the stopped->playing edge it triggers the
// region-start step immediately, since Start only positions current_step
// there without sounding it. Returns how many frames were actually
// scheduled.
func (s *Scheduler) advanceFrames(frameCount int) int {
	for i := 0; i < frameCount; i++ {
		state := s.transport.Snapshot()
		if !state.IsPlaying {
			s.wasPlaying = false
			return i
		}
		if !s.wasPlaying {
			s.wasPlaying = true
			s.stepFrames = s.framesPerStep(state.BPM)
			s.playStep(state.CurrentStep)
		}

		s.stepFrameCounter++
		if s.stepFrameCounter < s.stepFrames {
			continue
		}
		s.stepFrameCounter -= s.stepFrames
		s.stepFrames = s.framesPerStep(state.BPM)

		newStep := state.CurrentStep + 1
		if newStep >= state.RegionEnd {
			if state.SongMode {
				if !s.transport.AdvanceSectionSong() {
					s.playStep(s.transport.Snapshot().CurrentStep)
					return i + 1
				}
			} else {
				s.transport.AdvanceSectionLoop()
			}
		} else {
			s.transport.SetCurrentStep(newStep)
		}

		s.playStep(s.transport.Snapshot().CurrentStep)
	}
	return frameCount
}

// playStep walks every column and applies the voice trigger rule
// (spec.md §4.6 step 4, §4.5).
func (s *Scheduler) playStep(step int) {
	if step < 0 {
		return
	}
	for col := 0; col < table.MaxColumns; col++ {
		cell, err := s.table.GetCell(step, col)
		if err != nil {
			continue
		}
		s.voices.TriggerColumn(col, cell)
	}
}
