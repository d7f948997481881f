// Package errs defines the sentinel error kinds from spec.md §7, shared
// across every component so callers can classify failures with
// errors.Is regardless of which mutator returned them.
package errs

import "errors"

var (
	// ErrInvalidArgument covers an out-of-range slot, section, step,
	// column, or numeric parameter.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNotInitialized covers an operation attempted before engine init.
	ErrNotInitialized = errors.New("not initialized")
	// ErrAlreadyRecording covers Recorder.Start while already recording.
	ErrAlreadyRecording = errors.New("already recording")
	// ErrNotRecording covers Recorder.Stop while not recording.
	ErrNotRecording = errors.New("not recording")
	// ErrDecode covers a failure to open or decode an audio file.
	ErrDecode = errors.New("decode error")
	// ErrIO covers a pitch-cache artifact or recording write/read failure.
	ErrIO = errors.New("io error")
	// ErrCapacityExhausted covers no free async job slot or a full undo
	// history ring; both are handled silently (the pitch job queue never
	// refuses a job, the undo ring evicts its oldest entry). The table
	// reports it when an insert or append would exceed its step or
	// section capacity.
	ErrCapacityExhausted = errors.New("capacity exhausted")
	// ErrRaceRetry covers a reader observing an odd seqlock version; in
	// this implementation seqlock.Read retries internally, and no code
	// path in this module returns this sentinel.
	ErrRaceRetry = errors.New("race retry")
)
