package pitch

import "github.com/luddite478/fortuned-sub004/internal/wavio"

// Method selects how a voice obtains pitched audio for a cell (spec.md
// §4.5's "pitch source selection contract").
type Method int

const (
	// MethodCachedFile reads a pre-rendered pitched artifact directly at
	// unity playback rate.
	MethodCachedFile Method = iota
	// MethodRealtimeResampler reads ⌈N/ratio⌉ source frames per N
	// requested output frames and linearly resamples between them.
	MethodRealtimeResampler
	// MethodRealtimeTimeDomain shifts the whole source once, when the
	// source is built, through the same time-domain shifter used for
	// offline generation, then reads it at unity rate; output length is
	// nominally the source length.
	MethodRealtimeTimeDomain
)

// Source is the single semantic data source a voice reads from,
// regardless of which Method produced it (spec.md §4.5).
type Source interface {
	// Read returns up to n frames of interleaved stereo float32. A short
	// (or empty) read means the source is exhausted.
	Read(n int) []float32
	Seek(frame int) error
	Cursor() int
	Length() int
	Method() Method
	Close()
}

// cachedSource wraps a decoded pitched-cache file; pitch was already
// applied offline so playback proceeds at unity rate.
type cachedSource struct {
	frames []float32
	cursor int
}

func newCachedSource(samples wavio.Samples) *cachedSource {
	return &cachedSource{frames: samples.Data}
}

func (s *cachedSource) Read(n int) []float32 {
	total := len(s.frames) / wavio.NumChannels
	if s.cursor >= total {
		return nil
	}
	end := s.cursor + n
	if end > total {
		end = total
	}
	out := s.frames[s.cursor*wavio.NumChannels : end*wavio.NumChannels]
	s.cursor = end
	return out
}

func (s *cachedSource) Seek(frame int) error {
	s.cursor = frame
	return nil
}

func (s *cachedSource) Cursor() int { return s.cursor }

func (s *cachedSource) Length() int { return len(s.frames) / wavio.NumChannels }

func (s *cachedSource) Method() Method { return MethodCachedFile }

func (s *cachedSource) Close() {}

// realtimeResamplerSource wraps the unity-rate source and resamples on
// read (spec.md §4.5: "read ⌈N/ratio⌉ source frames, resample into N;
// reported length scales by ratio"). scratch is reused across Read calls
// so steady-state rendering (one Read(1) per frame per active voice)
// never allocates on the audio thread (spec.md §5).
type realtimeResamplerSource struct {
	frames  []float32
	ratio   float64
	cursor  int // in resampled (reported) frame space
	scratch []float32
}

func newRealtimeResamplerSource(samples wavio.Samples, ratio float64) *realtimeResamplerSource {
	return &realtimeResamplerSource{frames: samples.Data, ratio: ratio}
}

func (s *realtimeResamplerSource) sourceFrames() int { return len(s.frames) / wavio.NumChannels }

func (s *realtimeResamplerSource) Length() int {
	return int(float64(s.sourceFrames()) * s.ratio)
}

func (s *realtimeResamplerSource) Read(n int) []float32 {
	total := s.Length()
	if s.cursor >= total {
		return nil
	}
	end := s.cursor + n
	if end > total {
		end = total
	}
	reqOut := end - s.cursor
	if reqOut <= 0 {
		return nil
	}

	srcStart := int(float64(s.cursor) / s.ratio)
	srcCount := int(float64(reqOut)/s.ratio) + 2
	srcEnd := srcStart + srcCount
	if srcEnd > s.sourceFrames() {
		srcEnd = s.sourceFrames()
	}
	if srcStart >= srcEnd {
		s.cursor = end
		return nil
	}
	chunk := s.frames[srcStart*wavio.NumChannels : srcEnd*wavio.NumChannels]
	s.scratch = linearResampleRatioInto(s.scratch, chunk, wavio.NumChannels, s.ratio)
	resampled := s.scratch

	outFrames := reqOut
	if outFrames*wavio.NumChannels > len(resampled) {
		outFrames = len(resampled) / wavio.NumChannels
	}
	out := resampled[:outFrames*wavio.NumChannels]
	s.cursor = end
	return out
}

func (s *realtimeResamplerSource) Seek(frame int) error {
	s.cursor = frame
	return nil
}

func (s *realtimeResamplerSource) Cursor() int { return s.cursor }

func (s *realtimeResamplerSource) Method() Method { return MethodRealtimeResampler }

func (s *realtimeResamplerSource) Close() {}

// realtimeTimeDomainSource shifts the whole source once (eagerly, at
// construction) through the same OLA shifter used offline, then serves
// it like a cached source. Output length is nominally the source length
// (spec.md §4.5).
type realtimeTimeDomainSource struct {
	*cachedSource
}

func newRealtimeTimeDomainSource(samples wavio.Samples, ratio float64, q Quality) *realtimeTimeDomainSource {
	shifted := timeDomainShift(samples.Data, wavio.NumChannels, ratio, q)
	return &realtimeTimeDomainSource{cachedSource: newCachedSource(wavio.Samples{Data: shifted})}
}

func (s *realtimeTimeDomainSource) Method() Method { return MethodRealtimeTimeDomain }
