// Package recorder implements the single global WAV tap (spec.md §4.7,
// C7): the audio callback writes the post-mix buffer through it exactly
// once per callback, under a lock held only around the write.
package recorder

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/luddite478/fortuned-sub004/internal/errs"
	"github.com/luddite478/fortuned-sub004/internal/wavio"
)

// Recorder is a single global WAV writer, safe to Start/Stop from any
// thread while the audio thread concurrently calls Write.
type Recorder struct {
	mu     sync.Mutex
	enc    *wavio.StreamEncoder
	path   string
	active atomic.Bool
}

// New creates an idle recorder.
func New() *Recorder {
	return &Recorder{}
}

// Start opens path (float32 48kHz stereo) and begins accepting Write
// calls. Returns errs.ErrAlreadyRecording if already recording, or an
// open error wrapping errs.ErrIO.
func (r *Recorder) Start(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active.Load() {
		return fmt.Errorf("recorder: already recording: %w", errs.ErrAlreadyRecording)
	}
	if path == "" {
		path = uuid.NewString() + ".wav"
	}
	enc, err := wavio.NewStreamEncoder(path)
	if err != nil {
		return fmt.Errorf("recorder: open %s: %w", path, errs.ErrIO)
	}
	r.enc = enc
	r.path = path
	r.active.Store(true)
	return nil
}

// Stop finalizes the RIFF/data chunk sizes and closes the file. Returns
// errs.ErrNotRecording if not currently recording.
func (r *Recorder) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.active.Load() {
		return fmt.Errorf("recorder: %w", errs.ErrNotRecording)
	}
	r.active.Store(false)
	err := r.enc.Close()
	r.enc = nil
	if err != nil {
		return fmt.Errorf("recorder: close %s: %w", r.path, errs.ErrIO)
	}
	return nil
}

// IsActive is a lock-free snapshot read, safe to call from the audio
// thread ahead of Write.
func (r *Recorder) IsActive() bool {
	return r.active.Load()
}

// Write appends one callback's interleaved stereo buffer. Called from
// the audio thread; the lock here is held only around the encoder
// write, never across the whole callback (spec.md §4.7, §5). A failed
// write flips the recorder off rather than propagating the error
// upward (spec.md §7); the caller observes this on the next IsActive
// check or Stop call.
func (r *Recorder) Write(frames []float32) {
	if !r.active.Load() {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.enc == nil {
		return
	}
	if err := r.enc.WriteFrames(frames); err != nil {
		r.active.Store(false)
		r.enc.Close()
		r.enc = nil
	}
}
