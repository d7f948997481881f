// Package engine is the composition root (spec.md §6, §9): one Engine
// object owns the sample bank, table, transport, pitch cache, voice
// pipeline, scheduler, recorder, and undo history, and exposes the flat
// operation surface a host (cmd/enginectl, or a mobile embedding layer)
// drives. Re-init performs Cleanup first; Cleanup stops an active
// recording and releases its file handle. In-flight pitch-cache jobs are
// not waited for.
package engine

import (
	"log"

	"github.com/luddite478/fortuned-sub004/internal/bank"
	"github.com/luddite478/fortuned-sub004/internal/engineconfig"
	"github.com/luddite478/fortuned-sub004/internal/pitch"
	"github.com/luddite478/fortuned-sub004/internal/recorder"
	"github.com/luddite478/fortuned-sub004/internal/scheduler"
	"github.com/luddite478/fortuned-sub004/internal/table"
	"github.com/luddite478/fortuned-sub004/internal/transport"
	"github.com/luddite478/fortuned-sub004/internal/undo"
	"github.com/luddite478/fortuned-sub004/internal/voice"
)

// defaultNumSteps is the initial section length a freshly initialized
// table starts with.
const defaultNumSteps = 16

// Engine is the single object every module hangs off (spec.md §9:
// "global mutable state... is preserved deliberately... the
// substitution is a single engine object").
type Engine struct {
	cfg *engineconfig.EngineConfig

	Bank      *bank.Bank
	Table     *table.Table
	Transport *transport.Transport
	Pitch     *pitch.Cache
	Voices    *voice.Pipeline
	Scheduler *scheduler.Scheduler
	Recorder  *recorder.Recorder
	History   *undo.History
}

// Init constructs every component and wires the circular dependencies
// (bank↔pitch, table/transport↔history) via their SetX late-binding
// setters (spec.md §9's single engine object, §4.1/§4.3/§4.4/§4.8's
// construction-order notes recorded in DESIGN.md).
func Init(cfg *engineconfig.EngineConfig) *Engine {
	if cfg == nil {
		cfg = engineconfig.Default()
	}

	e := &Engine{cfg: cfg}

	e.Bank = bank.New(nil)
	e.Table = table.New(nil, defaultNumSteps)
	e.Transport = transport.New(e.Table, nil)

	e.Pitch = pitch.New(e.Bank)
	e.Pitch.SetQuality(pitch.Quality(cfg.PitchQuality))
	e.Bank.SetPitchScheduler(e.Pitch)

	e.Voices = voice.New(e.Bank, e.Pitch, cfg.SampleRate)
	e.Voices.SetSmoothing(cfg.VolumeRiseMs/1000, cfg.VolumeFallMs/1000)

	e.Recorder = recorder.New()

	e.History = undo.New(e.Bank, e.Table, e.Transport)
	e.Table.SetRecorder(e.History)
	e.Transport.SetRecorder(e.History)
	e.History.Record() // baseline entry so the first Undo has somewhere to land

	e.Scheduler = scheduler.New(e.Transport, e.Table, e.Voices, e.Recorder, cfg.SampleRate)

	log.Printf("🎚️  engine initialized (sample_rate=%d pitch_quality=%d)", cfg.SampleRate, cfg.PitchQuality)
	return e
}

// Reinit performs a full Cleanup, then Init with cfg (spec.md §5:
// "re-init is idempotent and performs a full shutdown first").
func (e *Engine) Reinit(cfg *engineconfig.EngineConfig) *Engine {
	e.Cleanup()
	return Init(cfg)
}

// Cleanup releases the recorder's file handle, if any open, and logs
// shutdown (spec.md §5: "cleanup releases graph, device, sample
// decoders, worker threads, recorder").
func (e *Engine) Cleanup() {
	if e.Recorder != nil && e.Recorder.IsActive() {
		if err := e.Recorder.Stop(); err != nil {
			log.Printf("⚠️  engine cleanup: stop recorder: %v", err)
		}
	}
	log.Println("✅ engine cleanup complete")
}

// Render is the audio boundary (spec.md §6: "host provides a callback
// at 48kHz stereo float32"). dst is interleaved stereo float32.
func (e *Engine) Render(dst []float32) {
	e.Scheduler.Render(dst)
}

// --- Playback (C4) ---

func (e *Engine) PlaybackStart(bpm, startStep int) error { return e.Transport.Start(bpm, startStep) }
func (e *Engine) PlaybackStop()                          { e.Transport.Stop() }
func (e *Engine) SetBPM(bpm int)                         { e.Transport.SetBPM(bpm) }
func (e *Engine) SetRegion(start, end int) error         { return e.Transport.SetRegion(start, end) }
func (e *Engine) SetMode(m transport.Mode)               { e.Transport.SetMode(m) }
func (e *Engine) SwitchToSection(i int) error            { return e.Transport.SwitchToSection(i) }
func (e *Engine) PlaybackState() transport.State         { return e.Transport.Snapshot() }
func (e *Engine) PlaybackApplyState(s transport.State)   { e.Transport.ApplyState(s) }
func (e *Engine) SetSectionLoopsNum(section, n int) error {
	return e.Transport.SetSectionLoopsNum(section, n)
}

// --- Table (C3) ---

func (e *Engine) SetCell(step, col, slot int, volume, pitchRatio float64) error {
	return e.Table.SetCell(step, col, slot, volume, pitchRatio, true)
}
func (e *Engine) ClearCell(step, col int) error { return e.Table.ClearCell(step, col, true) }
func (e *Engine) InsertStep(section, index int) error {
	return e.Table.InsertStep(section, index, true)
}
func (e *Engine) DeleteStep(section, index int) error {
	return e.Table.DeleteStep(section, index, true)
}
func (e *Engine) AppendSection(steps, copyFrom int) error {
	return e.Table.AppendSection(steps, copyFrom, true)
}
func (e *Engine) DeleteSection(index int) error       { return e.Table.DeleteSection(index, true) }
func (e *Engine) TableState() table.State             { return e.Table.Snapshot() }
func (e *Engine) TableApplyState(s table.State) error { return e.Table.ApplyState(s) }

// --- Sample bank (C1) ---

func (e *Engine) BankLoad(slot int, path string) error { return e.Bank.Load(slot, path) }
func (e *Engine) BankUnload(slot int) error            { return e.Bank.Unload(slot) }
func (e *Engine) BankSetSampleSettings(slot int, volume, pitchRatio float64) error {
	err := e.Bank.SetSampleSettings(slot, volume, pitchRatio)
	if err == nil {
		e.History.Record()
	}
	return err
}
func (e *Engine) BankGet(slot int) (bank.Sample, error) { return e.Bank.Get(slot) }
func (e *Engine) BankApplyState(s bank.State) error     { return e.Bank.ApplyState(s) }

// --- Pitch cache (C2) ---

func (e *Engine) PitchSetQuality(q pitch.Quality) { e.Pitch.SetQuality(q) }
func (e *Engine) PitchSetMethod(m pitch.Method)   { e.Pitch.SetMethod(m) }
func (e *Engine) PitchRunPreprocessing(slot int, cellPitch float64, useDefault bool) error {
	return e.Pitch.RunPreprocessing(slot, cellPitch, useDefault)
}
func (e *Engine) PitchClearPreprocessedCache(slot int) error {
	return e.Pitch.ClearPreprocessedCache(slot)
}

// --- Recording (C7) ---

func (e *Engine) RecordingStart(path string) error { return e.Recorder.Start(path) }
func (e *Engine) RecordingStop() error             { return e.Recorder.Stop() }
func (e *Engine) RecordingIsActive() bool          { return e.Recorder.IsActive() }

// --- Undo/redo (C8) ---

func (e *Engine) UndoRedoRecord() { e.History.Record() }
func (e *Engine) Undo() error     { return e.History.Undo() }
func (e *Engine) Redo() error     { return e.History.Redo() }
func (e *Engine) CanUndo() bool   { return e.History.CanUndo() }
func (e *Engine) CanRedo() bool   { return e.History.CanRedo() }
