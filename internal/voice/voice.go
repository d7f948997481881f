// Package voice implements the voice pipeline (spec.md §4.5, C5):
// per-column A/B voice pairs, the trigger rule, volume smoothing, and the
// mix into a single stereo graph endpoint read once per audio callback.
package voice

import (
	"math"

	"github.com/luddite478/fortuned-sub004/internal/bank"
	"github.com/luddite478/fortuned-sub004/internal/pitch"
	"github.com/luddite478/fortuned-sub004/internal/table"
)

const (
	numColumns = table.MaxColumns

	pitchUnityTolerance = 0.001

	riseTimeConstant = 0.006 // seconds, spec.md §4.5 "~6 ms rise"
	fallTimeConstant = 0.012 // seconds, spec.md §4.5 "~12 ms fall"

	smoothingEpsilon = 1e-4
)

// Slot is A or B within a column's voice pair.
type Slot int

const (
	SlotA Slot = iota
	SlotB
	slotNone
)

// Voice is one A/B half of a column's voice pair (spec.md §4.5).
type Voice struct {
	SampleSlot    int
	PitchRatio    float64
	UserVolume    float64
	CurrentVolume float64
	TargetVolume  float64
	playing       bool
	source        pitch.Source
}

func (v *Voice) stop() {
	if v.source != nil {
		v.source.Close()
	}
	*v = Voice{}
}

// renderFrame reads one stereo frame from the voice's source (looping
// silence once exhausted, since the voice stays "active" until faded to
// silence) and returns it scaled by CurrentVolume.
func (v *Voice) renderFrame() (float32, float32) {
	if !v.playing || v.source == nil {
		return 0, 0
	}
	frame := v.source.Read(1)
	var l, r float32
	if len(frame) >= 2 {
		l, r = frame[0], frame[1]
	}
	vol := float32(v.CurrentVolume)
	return l * vol, r * vol
}

// smooth advances CurrentVolume toward TargetVolume by alpha, matching
// the rise/fall time constant appropriate to the direction of travel
// (spec.md §4.5).
func (v *Voice) smooth(alphaRise, alphaFall float64) {
	alpha := alphaRise
	if v.TargetVolume < v.CurrentVolume {
		alpha = alphaFall
	}
	v.CurrentVolume += alpha * (v.TargetVolume - v.CurrentVolume)
	if v.CurrentVolume < smoothingEpsilon && v.TargetVolume < smoothingEpsilon {
		v.playing = false
	}
}

// Pair is one column's A/B voice pair plus which is active/next (spec.md
// §4.5).
type Pair struct {
	voices [2]Voice
	active Slot
	next   Slot
}

func newPair() *Pair {
	return &Pair{active: slotNone, next: SlotA}
}

// BankSource is the subset of *bank.Bank the voice pipeline needs to
// resolve sentinel cell settings to the sample's current defaults.
type BankSource interface {
	Get(slot int) (bank.Sample, error)
}

// PitchSource is the subset of *pitch.Cache the voice pipeline needs to
// resolve a (slot, ratio) into a playable Source.
type PitchSource interface {
	OpenSource(slot int, ratio float64) (pitch.Source, error)
}

// Pipeline owns all MaxColumns voice pairs and the mixer endpoint.
type Pipeline struct {
	pairs [numColumns]*Pair
	bank  BankSource
	pitch PitchSource

	sampleRate int
	riseSec    float64
	fallSec    float64
}

// New creates a pipeline with all pairs idle, using the spec.md §4.5
// default smoothing time constants (~6ms rise / ~12ms fall).
func New(bankSrc BankSource, pitchSrc PitchSource, sampleRate int) *Pipeline {
	p := &Pipeline{
		bank:       bankSrc,
		pitch:      pitchSrc,
		sampleRate: sampleRate,
		riseSec:    riseTimeConstant,
		fallSec:    fallTimeConstant,
	}
	for i := range p.pairs {
		p.pairs[i] = newPair()
	}
	return p
}

// SetSmoothing overrides the rise/fall time constants (seconds), for
// deployments that configure them via internal/engineconfig.
func (p *Pipeline) SetSmoothing(riseSeconds, fallSeconds float64) {
	p.riseSec = riseSeconds
	p.fallSec = fallSeconds
}

func resolveSetting(sentinel, fallback float64) float64 {
	if sentinel == table.SentinelInherit {
		return fallback
	}
	return sentinel
}

// TriggerColumn executes the trigger rule for column c given cell
// (spec.md §4.5). No-op if cell is empty.
func (p *Pipeline) TriggerColumn(col int, cell table.Cell) {
	if cell.IsEmpty() {
		return
	}
	sample, err := p.bank.Get(cell.SampleSlot)
	if err != nil {
		return
	}
	volume := resolveSetting(cell.Volume, sample.Settings.Volume)
	pitchRatio := resolveSetting(cell.Pitch, sample.Settings.Pitch)

	pair := p.pairs[col]
	if pair.active != slotNone {
		active := &pair.voices[pair.active]
		if active.SampleSlot == cell.SampleSlot {
			if math.Abs(pitchRatio-active.PitchRatio) < pitchUnityTolerance {
				active.source.Seek(0)
				active.TargetVolume = volume
				return
			}
		}
	}

	if pair.active != slotNone {
		pair.voices[pair.active].TargetVolume = 0
	}

	src, err := p.pitch.OpenSource(cell.SampleSlot, pitchRatio)
	if err != nil {
		return
	}

	nextVoice := &pair.voices[pair.next]
	nextVoice.stop()
	nextVoice.SampleSlot = cell.SampleSlot
	nextVoice.PitchRatio = pitchRatio
	nextVoice.UserVolume = volume
	nextVoice.CurrentVolume = 0
	nextVoice.TargetVolume = volume
	nextVoice.source = src
	nextVoice.playing = true

	pair.active = pair.next
	if pair.next == SlotA {
		pair.next = SlotB
	} else {
		pair.next = SlotA
	}
}

// UpdateSmoothing advances every voice's volume smoothing by one callback
// of frameCount frames (spec.md §4.5).
func (p *Pipeline) UpdateSmoothing(frameCount int) {
	dt := float64(frameCount) / float64(p.sampleRate)
	alphaRise := 1 - math.Exp(-dt/p.riseSec)
	alphaFall := 1 - math.Exp(-dt/p.fallSec)
	for _, pair := range p.pairs {
		pair.voices[SlotA].smooth(alphaRise, alphaFall)
		pair.voices[SlotB].smooth(alphaRise, alphaFall)
	}
}

// RenderFrame mixes every column's active contribution into one stereo
// frame (spec.md §4.5: "all voices' mixer nodes attach to a single
// stereo endpoint").
func (p *Pipeline) RenderFrame() (float32, float32) {
	var l, r float32
	for _, pair := range p.pairs {
		al, ar := pair.voices[SlotA].renderFrame()
		bl, br := pair.voices[SlotB].renderFrame()
		l += al + bl
		r += ar + br
	}
	return l, r
}

// Render fills dst (interleaved stereo float32) one frame at a time,
// applying smoothing once for the whole buffer (spec.md §4.6: "the
// callback updates volume smoothing for all voices and then reads the
// graph into the output buffer").
func (p *Pipeline) Render(dst []float32) {
	frameCount := len(dst) / 2
	p.UpdateSmoothing(frameCount)
	for i := 0; i < frameCount; i++ {
		l, r := p.RenderFrame()
		dst[i*2] = l
		dst[i*2+1] = r
	}
}
