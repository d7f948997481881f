// Package undo implements the composite undo/redo history (spec.md
// §4.8, C8): a ring of up to 100 {bank, table, playback} snapshots and
// a cursor, with an is_applying guard so replaying a snapshot doesn't
// itself generate new history.
package undo

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/luddite478/fortuned-sub004/internal/bank"
	"github.com/luddite478/fortuned-sub004/internal/errs"
	"github.com/luddite478/fortuned-sub004/internal/table"
	"github.com/luddite478/fortuned-sub004/internal/transport"
)

// MaxEntries bounds the history ring (spec.md §4.8: "a ring of up to 100
// composite snapshots").
const MaxEntries = 100

// Bank is the subset of *bank.Bank the history records/restores.
type Bank interface {
	Snapshot() bank.State
	ApplyState(bank.State) error
}

// Table is the subset of *table.Table the history records/restores.
type Table interface {
	Snapshot() table.State
	ApplyState(table.State) error
}

// Transport is the subset of *transport.Transport the history
// records/restores.
type Transport interface {
	Snapshot() transport.State
	ApplyState(transport.State)
}

// entry is one composite snapshot (spec.md §4.8: "{bank, table,
// playback}").
type entry struct {
	bank      bank.State
	table     table.State
	transport transport.State
}

// History owns the undo/redo ring. The table and the transport call
// Record() after a committed mutation and check IsApplying() before
// doing so, through their Recorder interfaces. The bank has no recorder;
// internal/engine calls Record() after a bank settings change.
type History struct {
	mu sync.Mutex

	bankSrc      Bank
	tableSrc     Table
	transportSrc Transport

	entries []entry
	cursor  int // index of the entry representing current state, -1 if empty

	applying atomic.Bool
}

// New creates an empty history bound to the three components it
// snapshots. All three must already exist (spec.md §4.8's composite
// snapshot spans bank+table+playback as one atomic unit).
func New(b Bank, t Table, tr Transport) *History {
	return &History{bankSrc: b, tableSrc: t, transportSrc: tr, cursor: -1}
}

// IsApplying reports whether an Undo/Redo replay is currently in
// progress, so component mutators can skip recording (spec.md §4.8).
func (h *History) IsApplying() bool {
	return h.applying.Load()
}

// Record captures a deep copy of {bank, table, playback} as one new
// history entry, truncating any redo tail past the cursor and
// discarding the oldest entry once the ring is full (spec.md §4.8).
// No-op while IsApplying (component callers already guard on this, but
// Record re-checks so History itself is safe to call directly too).
func (h *History) Record() {
	if h.applying.Load() {
		return
	}
	e := entry{
		bank:      h.bankSrc.Snapshot(),
		table:     h.tableSrc.Snapshot(),
		transport: h.transportSrc.Snapshot(),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = h.entries[:h.cursor+1]
	h.entries = append(h.entries, e)
	if len(h.entries) > MaxEntries {
		h.entries = h.entries[len(h.entries)-MaxEntries:]
	}
	h.cursor = len(h.entries) - 1
}

// CanUndo reports whether Undo would have an earlier entry to move to.
func (h *History) CanUndo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cursor > 0
}

// CanRedo reports whether Redo would have a later entry to move to.
func (h *History) CanRedo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cursor >= 0 && h.cursor < len(h.entries)-1
}

// Undo moves the cursor back one entry and replays it into every
// component (spec.md §4.8).
func (h *History) Undo() error {
	h.mu.Lock()
	if h.cursor <= 0 {
		h.mu.Unlock()
		return fmt.Errorf("undo: no earlier entry: %w", errs.ErrInvalidArgument)
	}
	h.cursor--
	e := h.entries[h.cursor]
	h.mu.Unlock()
	return h.apply(e)
}

// Redo moves the cursor forward one entry and replays it.
func (h *History) Redo() error {
	h.mu.Lock()
	if h.cursor < 0 || h.cursor >= len(h.entries)-1 {
		h.mu.Unlock()
		return fmt.Errorf("undo: no later entry: %w", errs.ErrInvalidArgument)
	}
	h.cursor++
	e := h.entries[h.cursor]
	h.mu.Unlock()
	return h.apply(e)
}

// apply replays e into every component under the is_applying guard, so
// none of the component mutators it calls generate a new history entry.
func (h *History) apply(e entry) error {
	h.applying.Store(true)
	defer h.applying.Store(false)

	if err := h.bankSrc.ApplyState(e.bank); err != nil {
		return fmt.Errorf("undo: apply bank state: %w", err)
	}
	if err := h.tableSrc.ApplyState(e.table); err != nil {
		return fmt.Errorf("undo: apply table state: %w", err)
	}
	h.transportSrc.ApplyState(e.transport)
	return nil
}
