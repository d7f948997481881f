// Package table implements the table store (spec.md §4.3, C3): the dense
// step x column cell grid, grouped into sections, with layer metadata.
// All mutators run under a seqlock writer and notify an undo recorder
// unless told not to.
package table

import (
	"fmt"

	"github.com/luddite478/fortuned-sub004/internal/errs"
	"github.com/luddite478/fortuned-sub004/internal/seqlock"
)

const (
	MaxSteps    = 2048
	MaxColumns  = 16
	MaxSections = 64
	MaxLayers   = 4
	EmptySlot   = -1
	// SentinelInherit marks a cell's volume/pitch as "use the sample
	// bank default" (spec.md §3, §9).
	SentinelInherit = -1.0
)

// Cell is one (step, column) entry (spec.md §3).
type Cell struct {
	SampleSlot int
	Volume     float64 // SentinelInherit means "use sample default"
	Pitch      float64 // SentinelInherit means "use sample default"
}

// IsEmpty reports whether the cell carries no sample reference.
func (c Cell) IsEmpty() bool { return c.SampleSlot == EmptySlot }

func emptyCell() Cell {
	return Cell{SampleSlot: EmptySlot, Volume: SentinelInherit, Pitch: SentinelInherit}
}

// Section is a contiguous run of steps (spec.md §3).
type Section struct {
	StartStep int
	NumSteps  int
	Layers    [MaxLayers]int // layer lengths, 0..16 each
}

// Recorder is implemented by internal/undo. The table depends on this
// interface, not the undo package, to avoid an import cycle.
type Recorder interface {
	Record()
	IsApplying() bool
}

// Table owns the cell grid and section list.
type Table struct {
	lock     seqlock.SeqLock
	cells    [MaxSteps][MaxColumns]Cell
	sections []Section
	undo     Recorder
}

// New creates a table with a single section of numSteps steps (spec.md
// §3: "At least one section always exists").
func New(undo Recorder, numSteps int) *Table {
	if numSteps < 1 {
		numSteps = 1
	}
	if numSteps > MaxSteps {
		numSteps = MaxSteps
	}
	t := &Table{undo: undo, sections: []Section{{StartStep: 0, NumSteps: numSteps}}}
	for step := 0; step < MaxSteps; step++ {
		for col := 0; col < MaxColumns; col++ {
			t.cells[step][col] = emptyCell()
		}
	}
	return t
}

// SetRecorder wires the undo recorder after construction, for the
// common case where the recorder (internal/undo.History) itself needs
// this table to already exist for its own construction.
func (t *Table) SetRecorder(undo Recorder) {
	t.lock.Lock()
	t.undo = undo
	t.lock.Unlock()
}

func (t *Table) maybeRecord(undoRecord bool) {
	if undoRecord && t.undo != nil && !t.undo.IsApplying() {
		t.undo.Record()
	}
}

func validStepCol(step, col int) error {
	if step < 0 || step >= MaxSteps || col < 0 || col >= MaxColumns {
		return fmt.Errorf("table: (%d,%d) out of range: %w", step, col, errs.ErrInvalidArgument)
	}
	return nil
}

// SetCell sets sample slot, volume, and pitch for (step, col) in one
// mutation (spec.md §4.3).
func (t *Table) SetCell(step, col, slot int, volume, pitch float64, undoRecord bool) error {
	if err := validStepCol(step, col); err != nil {
		return err
	}
	if slot != EmptySlot && (slot < 0 || slot >= 26) {
		return fmt.Errorf("table: slot %d invalid: %w", slot, errs.ErrInvalidArgument)
	}
	t.lock.Lock()
	t.cells[step][col] = Cell{SampleSlot: slot, Volume: volume, Pitch: pitch}
	t.lock.Unlock()
	t.maybeRecord(undoRecord)
	return nil
}

// SetCellSettings updates only volume/pitch, leaving the sample slot
// reference unchanged.
func (t *Table) SetCellSettings(step, col int, volume, pitch float64, undoRecord bool) error {
	if err := validStepCol(step, col); err != nil {
		return err
	}
	t.lock.Lock()
	c := &t.cells[step][col]
	c.Volume = volume
	c.Pitch = pitch
	t.lock.Unlock()
	t.maybeRecord(undoRecord)
	return nil
}

// SetCellSampleSlot updates only the sample slot reference.
func (t *Table) SetCellSampleSlot(step, col, slot int, undoRecord bool) error {
	if err := validStepCol(step, col); err != nil {
		return err
	}
	if slot != EmptySlot && (slot < 0 || slot >= 26) {
		return fmt.Errorf("table: slot %d invalid: %w", slot, errs.ErrInvalidArgument)
	}
	t.lock.Lock()
	t.cells[step][col].SampleSlot = slot
	t.lock.Unlock()
	t.maybeRecord(undoRecord)
	return nil
}

// ClearCell resets (step, col) to empty + sentinels (spec.md §4.3).
func (t *Table) ClearCell(step, col int, undoRecord bool) error {
	if err := validStepCol(step, col); err != nil {
		return err
	}
	t.lock.Lock()
	t.cells[step][col] = emptyCell()
	t.lock.Unlock()
	t.maybeRecord(undoRecord)
	return nil
}

// GetCell is a pure read of the live state.
func (t *Table) GetCell(step, col int) (Cell, error) {
	if err := validStepCol(step, col); err != nil {
		return Cell{}, err
	}
	var out Cell
	t.lock.Read(func() { out = t.cells[step][col] })
	return out, nil
}

// GetSectionAtStep returns the index of the section containing step.
func (t *Table) GetSectionAtStep(step int) (int, error) {
	var idx = -1
	t.lock.Read(func() {
		for i, s := range t.sections {
			if step >= s.StartStep && step < s.StartStep+s.NumSteps {
				idx = i
				return
			}
		}
	})
	if idx == -1 {
		return -1, fmt.Errorf("table: no section contains step %d: %w", step, errs.ErrInvalidArgument)
	}
	return idx, nil
}

// GetSectionStartStep returns sections[index].StartStep.
func (t *Table) GetSectionStartStep(index int) (int, error) {
	var out int
	var err error
	t.lock.Read(func() {
		if index < 0 || index >= len(t.sections) {
			err = fmt.Errorf("table: section %d out of range: %w", index, errs.ErrInvalidArgument)
			return
		}
		out = t.sections[index].StartStep
	})
	return out, err
}

// Section returns a copy of sections[index].
func (t *Table) Section(index int) (Section, error) {
	var out Section
	var err error
	t.lock.Read(func() {
		if index < 0 || index >= len(t.sections) {
			err = fmt.Errorf("table: section %d out of range: %w", index, errs.ErrInvalidArgument)
			return
		}
		out = t.sections[index]
	})
	return out, err
}

// SectionCount returns the number of sections.
func (t *Table) SectionCount() int {
	var n int
	t.lock.Read(func() { n = len(t.sections) })
	return n
}

// rebaseLocked recomputes StartStep for every section, from section 0
// on, so the contiguity invariant (spec.md §3) holds. Must be called
// with the seqlock already held for writing.
func (t *Table) rebaseLocked() {
	cursor := 0
	for i := range t.sections {
		t.sections[i].StartStep = cursor
		cursor += t.sections[i].NumSteps
	}
}

// totalStepsLocked sums NumSteps across all sections. Must be called
// with the seqlock held.
func (t *Table) totalStepsLocked() int {
	n := 0
	for _, s := range t.sections {
		n += s.NumSteps
	}
	return n
}

// InsertStep inserts a cleared row at atStep within section, shifting
// later rows down by one, and re-bases following sections (spec.md
// §4.3). Any downstream scheduler layout built from section lengths must
// be rebuilt by the caller after this returns.
func (t *Table) InsertStep(section, atStep int, undoRecord bool) error {
	t.lock.Lock()

	if section < 0 || section >= len(t.sections) {
		t.lock.Unlock()
		return fmt.Errorf("table: section %d out of range: %w", section, errs.ErrInvalidArgument)
	}
	s := t.sections[section]
	if atStep < s.StartStep || atStep > s.StartStep+s.NumSteps {
		t.lock.Unlock()
		return fmt.Errorf("table: step %d not within section %d: %w", atStep, section, errs.ErrInvalidArgument)
	}
	if t.totalStepsLocked() >= MaxSteps {
		t.lock.Unlock()
		return fmt.Errorf("table: at capacity (%d steps): %w", MaxSteps, errs.ErrCapacityExhausted)
	}

	total := t.totalStepsLocked()
	for step := total; step > atStep; step-- {
		t.cells[step] = t.cells[step-1]
	}
	for col := 0; col < MaxColumns; col++ {
		t.cells[atStep][col] = emptyCell()
	}
	t.sections[section].NumSteps++
	t.rebaseLocked()
	t.lock.Unlock()

	t.maybeRecord(undoRecord)
	return nil
}

// DeleteStep removes atStep from section, shifting later rows up and
// re-basing following sections. Refuses when the section would become
// empty (spec.md §4.3).
func (t *Table) DeleteStep(section, atStep int, undoRecord bool) error {
	t.lock.Lock()

	if section < 0 || section >= len(t.sections) {
		t.lock.Unlock()
		return fmt.Errorf("table: section %d out of range: %w", section, errs.ErrInvalidArgument)
	}
	s := t.sections[section]
	if s.NumSteps == 1 {
		t.lock.Unlock()
		return fmt.Errorf("table: section %d has only one step: %w", section, errs.ErrInvalidArgument)
	}
	if atStep < s.StartStep || atStep >= s.StartStep+s.NumSteps {
		t.lock.Unlock()
		return fmt.Errorf("table: step %d not within section %d: %w", atStep, section, errs.ErrInvalidArgument)
	}

	total := t.totalStepsLocked()
	for step := atStep; step < total-1; step++ {
		t.cells[step] = t.cells[step+1]
	}
	for col := 0; col < MaxColumns; col++ {
		t.cells[total-1][col] = emptyCell()
	}
	t.sections[section].NumSteps--
	t.rebaseLocked()
	t.lock.Unlock()

	t.maybeRecord(undoRecord)
	return nil
}

// AppendSection creates a new trailing section of steps length. If
// copyFrom >= 0, the new section's cells and step count are copied from
// that section instead of using steps (spec.md §4.3).
func (t *Table) AppendSection(steps, copyFrom int, undoRecord bool) error {
	t.lock.Lock()

	if len(t.sections) >= MaxSections {
		t.lock.Unlock()
		return fmt.Errorf("table: at max sections (%d): %w", MaxSections, errs.ErrCapacityExhausted)
	}
	if copyFrom >= 0 && (copyFrom < 0 || copyFrom >= len(t.sections)) {
		t.lock.Unlock()
		return fmt.Errorf("table: copyFrom %d out of range: %w", copyFrom, errs.ErrInvalidArgument)
	}

	newLen := steps
	if copyFrom >= 0 {
		newLen = t.sections[copyFrom].NumSteps
	}
	if newLen < 1 {
		newLen = 1
	}
	if newLen > MaxSteps {
		newLen = MaxSteps
	}
	if t.totalStepsLocked()+newLen > MaxSteps {
		t.lock.Unlock()
		return fmt.Errorf("table: appending %d steps exceeds capacity: %w", newLen, errs.ErrCapacityExhausted)
	}

	start := t.totalStepsLocked()
	if copyFrom >= 0 {
		srcStart := t.sections[copyFrom].StartStep
		for i := 0; i < newLen; i++ {
			t.cells[start+i] = t.cells[srcStart+i]
		}
	} else {
		for i := 0; i < newLen; i++ {
			for col := 0; col < MaxColumns; col++ {
				t.cells[start+i][col] = emptyCell()
			}
		}
	}

	sec := Section{StartStep: start, NumSteps: newLen}
	if copyFrom >= 0 {
		sec.Layers = t.sections[copyFrom].Layers
	}
	t.sections = append(t.sections, sec)
	t.lock.Unlock()

	t.maybeRecord(undoRecord)
	return nil
}

// DeleteSection removes sections[index], compacting cells and section
// metadata and re-basing the start-step chain. Refuses if it is the
// only remaining section (spec.md §4.3).
func (t *Table) DeleteSection(index int, undoRecord bool) error {
	t.lock.Lock()

	if len(t.sections) <= 1 {
		t.lock.Unlock()
		return fmt.Errorf("table: cannot delete the only section: %w", errs.ErrInvalidArgument)
	}
	if index < 0 || index >= len(t.sections) {
		t.lock.Unlock()
		return fmt.Errorf("table: section %d out of range: %w", index, errs.ErrInvalidArgument)
	}

	s := t.sections[index]
	total := t.totalStepsLocked()
	for step := s.StartStep; step+s.NumSteps < total; step++ {
		t.cells[step] = t.cells[step+s.NumSteps]
	}
	for step := total - s.NumSteps; step < total; step++ {
		for col := 0; col < MaxColumns; col++ {
			t.cells[step][col] = emptyCell()
		}
	}
	t.sections = append(t.sections[:index], t.sections[index+1:]...)
	t.rebaseLocked()
	t.lock.Unlock()

	t.maybeRecord(undoRecord)
	return nil
}

// SetLayerLen sets layer metadata only; it never affects scheduling
// (spec.md §3, §4.3).
func (t *Table) SetLayerLen(section, layer, length int, undoRecord bool) error {
	if layer < 0 || layer >= MaxLayers {
		return fmt.Errorf("table: layer %d out of range: %w", layer, errs.ErrInvalidArgument)
	}
	if length < 0 || length > 16 {
		return fmt.Errorf("table: layer len %d out of range: %w", length, errs.ErrInvalidArgument)
	}
	t.lock.Lock()
	if section < 0 || section >= len(t.sections) {
		t.lock.Unlock()
		return fmt.Errorf("table: section %d out of range: %w", section, errs.ErrInvalidArgument)
	}
	t.sections[section].Layers[layer] = length
	t.lock.Unlock()
	t.maybeRecord(undoRecord)
	return nil
}

// State is a deep-copyable snapshot of the table, used by internal/undo.
type State struct {
	Cells    [MaxSteps][MaxColumns]Cell
	Sections []Section
}

// Snapshot returns a consistent deep copy of the table.
func (t *Table) Snapshot() State {
	var out State
	t.lock.Read(func() {
		out.Cells = t.cells
		out.Sections = append([]Section(nil), t.sections...)
	})
	return out
}

// ApplyState replaces the table's content with state (spec.md §3, §4.3 —
// used by internal/undo and by the top-level engine apply_state).
func (t *Table) ApplyState(state State) error {
	if len(state.Sections) == 0 {
		return fmt.Errorf("table: state has no sections: %w", errs.ErrInvalidArgument)
	}
	t.lock.Lock()
	t.cells = state.Cells
	t.sections = append([]Section(nil), state.Sections...)
	t.lock.Unlock()
	return nil
}
