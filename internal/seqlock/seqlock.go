// Package seqlock provides a single-writer, multi-reader publication
// discipline for state read by the real-time audio thread and by UI
// reader threads, without ever blocking the writer or the readers.
//
// The version counter is even when the protected state is stable and odd
// while a writer is mutating it. Readers sample the version, read the
// state, then resample the version; if the version changed or was odd at
// either end, the read overlapped a write and must retry.
package seqlock

import (
	"sync/atomic"
)

// maxReadRetries bounds retry spinning. A writer critical section is a
// plain field-copy (microseconds), so this is generous, not a real limit.
const maxReadRetries = 1000

// SeqLock guards a piece of state published for lock-free reads.
// The zero value is a valid, stable (even, version 0) lock.
type SeqLock struct {
	version atomic.Uint32
}

// Lock begins a writer critical section, making the version odd.
// Only one writer may hold the lock at a time; callers are responsible
// for serializing writers (spec.md §5 assigns exactly one control-thread
// writer per state).
func (s *SeqLock) Lock() {
	s.version.Add(1)
}

// Unlock ends a writer critical section, making the version even again.
func (s *SeqLock) Unlock() {
	s.version.Add(1)
}

// Version returns the current version. An odd value means a writer is
// mid-mutation.
func (s *SeqLock) Version() uint32 {
	return s.version.Load()
}

// Read invokes fn to copy out a consistent snapshot of the guarded state,
// retrying fn until it observes a stable (even, unchanged) version across
// the call. fn must not have side effects beyond populating its own
// captured output — it may run more than once.
//
// Read never blocks the writer: if a write is observed mid-flight, the
// reader simply retries its own read, exactly as spec.md §5 requires.
func (s *SeqLock) Read(fn func()) {
	for i := 0; i < maxReadRetries; i++ {
		v1 := s.version.Load()
		if v1%2 == 1 {
			continue // writer in progress, don't bother reading yet
		}
		fn()
		v2 := s.version.Load()
		if v1 == v2 {
			return
		}
	}
	// Pathological contention (effectively impossible under a
	// single-writer model): return the last attempt's result rather than
	// looping forever.
	fn()
}
