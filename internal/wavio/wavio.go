// Package wavio provides WAV decode and float32/48kHz/stereo WAV encode
// for the sample bank, the pitch cache, and the recorder. The engine is
// fixed at 48 kHz stereo float32 (spec.md §1); this package is the single
// place that format gets read or produced on disk.
package wavio

import (
	"fmt"
	"io"
	"math"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// SampleRate and NumChannels are the engine's only supported audio format.
const (
	SampleRate  = 48000
	NumChannels = 2
	BitDepth    = 32
	// wavFormatIEEEFloat is the WAV fmt-chunk audio_format code for
	// uncompressed 32-bit IEEE float PCM (spec.md §6).
	wavFormatIEEEFloat = 3
)

// Samples holds decoded interleaved stereo float32 frames at 48 kHz.
// Len() is the frame count (Data has 2*Len() elements).
type Samples struct {
	Data []float32
}

func (s Samples) Len() int {
	return len(s.Data) / NumChannels
}

// Decode reads a WAV file from disk and returns its content resampled to
// the engine's fixed format if necessary. Mono sources are duplicated to
// both channels; stereo passes through unchanged. Sample-rate conversion
// for bank sources other than 48 kHz uses simple linear interpolation,
// since this path only runs offline (load time or pitch-cache
// generation), never on the audio thread.
func Decode(path string) (Samples, error) {
	f, err := os.Open(path)
	if err != nil {
		return Samples{}, fmt.Errorf("wavio: open %s: %w", path, err)
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return Samples{}, fmt.Errorf("wavio: %s is not a valid WAV file", path)
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return Samples{}, fmt.Errorf("wavio: decode %s: %w", path, err)
	}

	floats := buf.AsFloatBuffer()
	stereo := toStereo(floats.Data, buf.Format.NumChannels)
	if buf.Format.SampleRate != SampleRate {
		stereo = resampleLinear(stereo, buf.Format.SampleRate, SampleRate)
	}

	out := make([]float32, len(stereo))
	for i, v := range stereo {
		out[i] = float32(v)
	}
	return Samples{Data: out}, nil
}

// toStereo expands mono to stereo (duplicated channel) or passes stereo
// through; the engine never handles more than two source channels.
func toStereo(data []float64, channels int) []float64 {
	if channels == NumChannels {
		return data
	}
	if channels == 1 {
		out := make([]float64, len(data)*2)
		for i, v := range data {
			out[2*i] = v
			out[2*i+1] = v
		}
		return out
	}
	// Downmix anything else to mono first, then duplicate.
	frames := len(data) / channels
	mono := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < channels; c++ {
			sum += data[i*channels+c]
		}
		mono[i] = sum / float64(channels)
	}
	return toStereo(mono, 1)
}

// resampleLinear converts interleaved stereo frames between sample rates
// with simple linear interpolation. Offline-only path (bank load, pitch
// cache generation); the real-time voice pipeline never resamples bank
// content this way, only the pitch source wrapper does (internal/pitch).
func resampleLinear(stereo []float64, fromRate, toRate int) []float64 {
	if fromRate == toRate || fromRate <= 0 {
		return stereo
	}
	frames := len(stereo) / NumChannels
	ratio := float64(toRate) / float64(fromRate)
	outFrames := int(float64(frames) * ratio)
	out := make([]float64, outFrames*NumChannels)
	for i := 0; i < outFrames; i++ {
		srcPos := float64(i) / ratio
		idx := int(srcPos)
		frac := srcPos - float64(idx)
		for c := 0; c < NumChannels; c++ {
			s1 := sampleAt(stereo, idx, c, frames)
			s2 := sampleAt(stereo, idx+1, c, frames)
			out[i*NumChannels+c] = s1 + (s2-s1)*frac
		}
	}
	return out
}

func sampleAt(stereo []float64, frame, channel, frames int) float64 {
	if frame >= frames {
		frame = frames - 1
	}
	if frame < 0 {
		return 0
	}
	return stereo[frame*NumChannels+channel]
}

// Encode writes interleaved stereo float32 frames to path as a canonical
// 48kHz/stereo/float32 WAV file (spec.md §6): RIFF header, fmt chunk with
// audio_format=3, then a data chunk sized on close.
func Encode(path string, data []float32) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("wavio: create %s: %w", path, err)
	}
	defer f.Close()
	return EncodeTo(f, data)
}

// EncodeTo writes the same format as Encode to an arbitrary WriteSeeker,
// used by the recorder to keep a single open file handle across many
// callback-driven writes (see internal/recorder).
func EncodeTo(w io.WriteSeeker, data []float32) error {
	enc := wav.NewEncoder(w, SampleRate, BitDepth, NumChannels, wavFormatIEEEFloat)
	// go-audio/wav's Encoder serializes IntBuffer.Data at the configured
	// bit depth; for 32-bit IEEE float we hand it each sample's raw bit
	// pattern reinterpreted as an int, the same bit-reinterpretation
	// idiom malgo's own byte<->float32 conversion uses in the opposite
	// direction.
	ints := make([]int, len(data))
	for i, v := range data {
		ints[i] = int(int32(math.Float32bits(v)))
	}
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: NumChannels, SampleRate: SampleRate},
		Data:           ints,
		SourceBitDepth: BitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("wavio: write: %w", err)
	}
	return enc.Close()
}

// NewStreamEncoder opens path and returns a StreamEncoder for frame-by-frame
// writes, used by the recorder so no single huge buffer needs to sit in
// memory, and by the pitch cache so chunked pitch-shift output streams
// straight to disk.
type StreamEncoder struct {
	f   *os.File
	enc *wav.Encoder
}

func NewStreamEncoder(path string) (*StreamEncoder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("wavio: create %s: %w", path, err)
	}
	enc := wav.NewEncoder(f, SampleRate, BitDepth, NumChannels, wavFormatIEEEFloat)
	return &StreamEncoder{f: f, enc: enc}, nil
}

// WriteFrames appends interleaved stereo float32 frames.
func (s *StreamEncoder) WriteFrames(data []float32) error {
	if len(data) == 0 {
		return nil
	}
	ints := make([]int, len(data))
	for i, v := range data {
		ints[i] = int(int32(math.Float32bits(v)))
	}
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: NumChannels, SampleRate: SampleRate},
		Data:           ints,
		SourceBitDepth: BitDepth,
	}
	return s.enc.Write(buf)
}

// Close finalizes the RIFF/data chunk sizes and closes the file.
func (s *StreamEncoder) Close() error {
	if err := s.enc.Close(); err != nil {
		s.f.Close()
		return fmt.Errorf("wavio: close encoder: %w", err)
	}
	return s.f.Close()
}
