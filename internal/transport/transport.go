// Package transport implements the playback state (spec.md §4.4, C4): the
// observable tempo/mode/region/cursor, published under a seqlock and
// advanced by internal/scheduler on the audio thread.
package transport

import (
	"fmt"

	"github.com/luddite478/fortuned-sub004/internal/errs"
	"github.com/luddite478/fortuned-sub004/internal/seqlock"
	"github.com/luddite478/fortuned-sub004/internal/table"
)

const (
	minBPM = 1
	maxBPM = 300

	minSectionLoops = 1
	maxSectionLoops = 1024
)

// Mode selects whether the scheduler loops a single section or advances
// through the whole section sequence once (spec.md §3, §4.6.1).
type Mode int

const (
	// LoopMode repeats the region between region_start and region_end
	// (normally one section) indefinitely.
	LoopMode Mode = iota
	// SongMode plays the section sequence once, advancing sections per
	// their configured loop counts, then stops.
	SongMode
)

// String returns the mode's canonical name, used by enginectl flags and
// log lines.
func (m Mode) String() string {
	switch m {
	case LoopMode:
		return "loop"
	case SongMode:
		return "song"
	default:
		return "unknown"
	}
}

// ParseMode converts a string to a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "loop":
		return LoopMode, nil
	case "song":
		return SongMode, nil
	default:
		return LoopMode, fmt.Errorf("transport: invalid mode %q: %w", s, errs.ErrInvalidArgument)
	}
}

// Recorder is implemented by internal/undo. The transport depends on this
// interface, not the undo package, to avoid an import cycle.
type Recorder interface {
	Record()
	IsApplying() bool
}

// SectionSource is implemented by *table.Table. The transport resolves
// section boundaries against it without owning section storage itself.
type SectionSource interface {
	SectionCount() int
	Section(index int) (table.Section, error)
}

// Transport owns the tempo/mode/region/cursor state (spec.md §3).
type Transport struct {
	lock seqlock.SeqLock

	bpm                int
	isPlaying          bool
	currentStep        int
	regionStart        int
	regionEnd          int
	songMode           bool
	currentSection     int
	currentSectionLoop int
	sectionLoopsNum    [table.MaxSections]int

	tbl  SectionSource
	undo Recorder
}

// New creates a stopped transport at the default tempo, loop mode, with
// every section's loop count defaulted to 1.
func New(tbl SectionSource, undo Recorder) *Transport {
	tr := &Transport{
		bpm:         120,
		currentStep: -1,
		tbl:         tbl,
		undo:        undo,
	}
	for i := range tr.sectionLoopsNum {
		tr.sectionLoopsNum[i] = 1
	}
	if tbl != nil {
		if s, err := tbl.Section(0); err == nil {
			tr.regionStart = s.StartStep
			tr.regionEnd = s.StartStep + s.NumSteps
		}
	}
	return tr
}

// SetRecorder wires the undo recorder after construction, mirroring
// internal/table.Table.SetRecorder and internal/bank.Bank.SetPitchScheduler
// for the same circular-construction reason.
func (tr *Transport) SetRecorder(undo Recorder) {
	tr.lock.Lock()
	tr.undo = undo
	tr.lock.Unlock()
}

func (tr *Transport) maybeRecord() {
	if tr.undo != nil && !tr.undo.IsApplying() {
		tr.undo.Record()
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// SetBPM clamps and stores the tempo. The scheduler picks up the new
// value at the next step boundary (spec.md §4.6.2).
func (tr *Transport) SetBPM(bpm int) {
	bpm = clampInt(bpm, minBPM, maxBPM)
	tr.lock.Lock()
	tr.bpm = bpm
	tr.lock.Unlock()
	tr.maybeRecord()
}

// SetRegion sets the [start,end) step range the scheduler plays within
// loop mode. start must be < end.
func (tr *Transport) SetRegion(start, end int) error {
	if start < 0 || end <= start {
		return fmt.Errorf("transport: region [%d,%d) invalid: %w", start, end, errs.ErrInvalidArgument)
	}
	tr.lock.Lock()
	tr.regionStart = start
	tr.regionEnd = end
	tr.lock.Unlock()
	tr.maybeRecord()
	return nil
}

// SetMode switches between loop and song mode.
func (tr *Transport) SetMode(m Mode) {
	tr.lock.Lock()
	tr.songMode = m == SongMode
	tr.lock.Unlock()
	tr.maybeRecord()
}

// SetSectionLoopsNum sets how many times section completes before song
// mode advances past it (spec.md §3, §4.6.1).
func (tr *Transport) SetSectionLoopsNum(section, n int) error {
	if section < 0 || section >= table.MaxSections {
		return fmt.Errorf("transport: section %d out of range: %w", section, errs.ErrInvalidArgument)
	}
	n = clampInt(n, minSectionLoops, maxSectionLoops)
	tr.lock.Lock()
	tr.sectionLoopsNum[section] = n
	tr.lock.Unlock()
	tr.maybeRecord()
	return nil
}

// Start resolves the section containing startStep (or uses the current
// section if startStep equals that section's first step), clamps bpm,
// and begins playback (spec.md §4.4).
func (tr *Transport) Start(bpm, startStep int) error {
	if tr.tbl == nil {
		return fmt.Errorf("transport: no section source: %w", errs.ErrNotInitialized)
	}
	bpm = clampInt(bpm, minBPM, maxBPM)

	tr.lock.Lock()
	sectionIdx, err := tr.sectionAtLocked(startStep)
	if err != nil {
		tr.lock.Unlock()
		return err
	}

	s, err := tr.tbl.Section(sectionIdx)
	if err != nil {
		tr.lock.Unlock()
		return err
	}

	tr.bpm = bpm
	tr.currentSection = sectionIdx
	tr.currentSectionLoop = 0
	tr.currentStep = s.StartStep
	tr.regionStart = s.StartStep
	tr.regionEnd = s.StartStep + s.NumSteps
	tr.isPlaying = true
	tr.lock.Unlock()

	tr.maybeRecord()
	return nil
}

// sectionAtLocked finds the section index containing step. Must be
// called with the lock held.
func (tr *Transport) sectionAtLocked(step int) (int, error) {
	n := tr.tbl.SectionCount()
	for i := 0; i < n; i++ {
		s, err := tr.tbl.Section(i)
		if err != nil {
			return 0, err
		}
		if step >= s.StartStep && step < s.StartStep+s.NumSteps {
			return i, nil
		}
	}
	return 0, fmt.Errorf("transport: no section contains step %d: %w", step, errs.ErrInvalidArgument)
}

// Stop halts playback. Section and loop counters are preserved at their
// final values (spec.md §4.4); current_step becomes -1.
func (tr *Transport) Stop() {
	tr.lock.Lock()
	tr.isPlaying = false
	tr.currentStep = -1
	tr.lock.Unlock()
	tr.maybeRecord()
}

// SwitchToSection clamps i into range and either updates the stopped
// cursor's section/region, or, if playing, stops and restarts at the new
// section's first step (spec.md §4.4).
func (tr *Transport) SwitchToSection(i int) error {
	if tr.tbl == nil {
		return fmt.Errorf("transport: no section source: %w", errs.ErrNotInitialized)
	}
	n := tr.tbl.SectionCount()
	i = clampInt(i, 0, n-1)
	s, err := tr.tbl.Section(i)
	if err != nil {
		return err
	}

	var wasPlaying bool
	var bpm int
	tr.lock.Read(func() {
		wasPlaying = tr.isPlaying
		bpm = tr.bpm
	})

	if wasPlaying {
		tr.Stop()
		return tr.Start(bpm, s.StartStep)
	}

	tr.lock.Lock()
	tr.currentSection = i
	tr.regionStart = s.StartStep
	tr.regionEnd = s.StartStep + s.NumSteps
	tr.lock.Unlock()
	tr.maybeRecord()
	return nil
}

// State is a consistent snapshot of the transport, used by readers and
// by internal/scheduler's frame-advance loop.
type State struct {
	BPM                int
	IsPlaying          bool
	CurrentStep        int
	RegionStart        int
	RegionEnd          int
	SongMode           bool
	CurrentSection     int
	CurrentSectionLoop int
	SectionLoopsNum    [table.MaxSections]int
}

// Snapshot returns a consistent read of the full transport state.
func (tr *Transport) Snapshot() State {
	var out State
	tr.lock.Read(func() {
		out = State{
			BPM:                tr.bpm,
			IsPlaying:          tr.isPlaying,
			CurrentStep:        tr.currentStep,
			RegionStart:        tr.regionStart,
			RegionEnd:          tr.regionEnd,
			SongMode:           tr.songMode,
			CurrentSection:     tr.currentSection,
			CurrentSectionLoop: tr.currentSectionLoop,
			SectionLoopsNum:    tr.sectionLoopsNum,
		}
	})
	return out
}

// ApplyState restores the transport from state (used by internal/undo and
// the top-level engine apply_state). Does not invoke Start/Stop
// transitions; it is a direct field restore.
func (tr *Transport) ApplyState(state State) {
	tr.lock.Lock()
	tr.bpm = state.BPM
	tr.isPlaying = state.IsPlaying
	tr.currentStep = state.CurrentStep
	tr.regionStart = state.RegionStart
	tr.regionEnd = state.RegionEnd
	tr.songMode = state.SongMode
	tr.currentSection = state.CurrentSection
	tr.currentSectionLoop = state.CurrentSectionLoop
	tr.sectionLoopsNum = state.SectionLoopsNum
	tr.lock.Unlock()
}

// AdvanceSectionSong applies the song-mode section-advance rule (spec.md
// §4.6.1). Called by internal/scheduler when current_step reaches
// region_end in song mode. Returns false if playback stopped as a
// result (the last section completed its loop count).
func (tr *Transport) AdvanceSectionSong() bool {
	tr.lock.Lock()

	tr.currentSectionLoop++
	loopsWanted := tr.sectionLoopsNum[tr.currentSection]
	if tr.currentSectionLoop < loopsWanted {
		tr.currentStep = tr.regionStart
		tr.lock.Unlock()
		return true
	}

	n := tr.tbl.SectionCount()
	if tr.currentSection >= n-1 {
		tr.currentSectionLoop = loopsWanted - 1
		tr.isPlaying = false
		tr.currentStep = -1
		tr.lock.Unlock()
		tr.maybeRecord()
		return false
	}

	tr.currentSection++
	tr.currentSectionLoop = 0
	s, err := tr.tbl.Section(tr.currentSection)
	if err != nil {
		tr.isPlaying = false
		tr.currentStep = -1
		tr.lock.Unlock()
		tr.maybeRecord()
		return false
	}
	tr.regionStart = s.StartStep
	tr.regionEnd = s.StartStep + s.NumSteps
	tr.currentStep = tr.regionStart
	tr.lock.Unlock()
	return true
}

// AdvanceSectionLoop wraps current_step back to region_start (spec.md
// §4.6 step 3a).
func (tr *Transport) AdvanceSectionLoop() {
	tr.lock.Lock()
	tr.currentStep = tr.regionStart
	tr.lock.Unlock()
}

// SetCurrentStep publishes a new cursor position without any other side
// effect; internal/scheduler calls this at each step advance that stays
// inside the region (spec.md §4.6 step 5).
func (tr *Transport) SetCurrentStep(step int) {
	tr.lock.Lock()
	tr.currentStep = step
	tr.lock.Unlock()
}
