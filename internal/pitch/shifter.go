package pitch

import "math"

// antiAliasFilter is a 64-tap windowed-sinc low-pass FIR, identical in
// design to a polyphase anti-aliasing filter: when ratio > 1 it runs on the
// OLA-stretched signal, before the resample-back stage, which would
// otherwise fold high-frequency content back into the audible band.
type antiAliasFilter struct {
	taps []float32
}

func newAntiAliasFilter(cutoff float64) *antiAliasFilter {
	const n = 64
	taps := make([]float32, n)
	for i := 0; i < n; i++ {
		x := float64(i) - float64(n-1)/2.0
		var s float64
		if x == 0 {
			s = 2.0 * cutoff
		} else {
			s = math.Sin(2.0*math.Pi*cutoff*x) / (math.Pi * x)
		}
		window := 0.54 - 0.46*math.Cos(2.0*math.Pi*float64(i)/float64(n-1))
		taps[i] = float32(s * window)
	}
	var sum float32
	for _, t := range taps {
		sum += t
	}
	for i := range taps {
		taps[i] /= sum
	}
	return &antiAliasFilter{taps: taps}
}

// apply convolves input (interleaved stereo) per channel, zero-padded at
// the edges; used once over a whole grain so no cross-call history is
// needed.
func (f *antiAliasFilter) apply(input []float32, channels int) []float32 {
	n := len(f.taps)
	frames := len(input) / channels
	out := make([]float32, len(input))
	half := n / 2
	for ch := 0; ch < channels; ch++ {
		for i := 0; i < frames; i++ {
			var acc float32
			for j := 0; j < n; j++ {
				srcFrame := i - half + j
				if srcFrame >= 0 && srcFrame < frames {
					acc += input[srcFrame*channels+ch] * f.taps[j]
				}
			}
			out[i*channels+ch] = acc
		}
	}
	return out
}

// qualityWindow maps a Quality preset to the OLA grain length (in frames)
// and whether the anti-alias filter runs (spec.md §4.2: "q=0 longest
// analysis window, anti-alias filter enabled" through "q=4 shortest
// window, no anti-alias").
func qualityWindow(q Quality) (grainFrames int, antiAlias bool) {
	switch q {
	case Quality0:
		return 4096, true
	case Quality1:
		return 2048, true
	case Quality2:
		return 1024, true
	case Quality3:
		return 512, false
	default:
		return 256, false
	}
}

// timeDomainShift changes the perceived pitch of interleaved stereo input
// by ratio while leaving sample rate unchanged, using overlap-add
// time-stretching by 1/ratio followed by linear-interpolation resampling
// back by ratio (classic PSOLA-lite two-stage shift). Duration is
// nominally preserved.
func timeDomainShift(input []float32, channels int, ratio float64, q Quality) []float32 {
	if len(input) == 0 || ratio == 1.0 {
		return input
	}
	grain, antiAlias := qualityWindow(q)
	hop := grain / 2

	stretched := olaStretch(input, channels, grain, hop, 1.0/ratio)
	if antiAlias && ratio > 1.0 {
		cutoff := 0.5 / ratio
		stretched = newAntiAliasFilter(cutoff).apply(stretched, channels)
	}
	return linearResampleRatio(stretched, channels, ratio)
}

// olaStretch time-stretches interleaved input by factor using
// overlap-add with Hann-windowed grains read at stride hop*factor and
// written at stride hop.
func olaStretch(input []float32, channels, grain, hop int, factor float64) []float32 {
	frames := len(input) / channels
	if frames == 0 {
		return input
	}
	outFrames := int(float64(frames) * factor)
	if outFrames < grain {
		outFrames = grain
	}
	out := make([]float32, outFrames*channels)
	weight := make([]float32, outFrames)

	window := make([]float32, grain)
	for i := range window {
		window[i] = float32(0.5 - 0.5*math.Cos(2.0*math.Pi*float64(i)/float64(grain-1)))
	}

	readStep := float64(hop) / factor
	readPos := 0.0
	writePos := 0

	for writePos == 0 || writePos+grain <= outFrames {
		srcStart := int(readPos)
		for i := 0; i < grain; i++ {
			srcFrame := srcStart + i
			if srcFrame >= frames {
				break
			}
			w := window[i]
			for ch := 0; ch < channels; ch++ {
				out[(writePos+i)*channels+ch] += input[srcFrame*channels+ch] * w
			}
			weight[writePos+i] += w
		}
		readPos += readStep
		writePos += hop
		if int(readPos) >= frames {
			break
		}
	}

	for i := 0; i < outFrames; i++ {
		if weight[i] > 1e-6 {
			for ch := 0; ch < channels; ch++ {
				out[i*channels+ch] /= weight[i]
			}
		}
	}
	return out
}

// linearResampleRatio resamples interleaved input by ratio using linear
// interpolation across however many channels the buffer carries. Used by
// offline generation, where a fresh allocation per call is fine.
func linearResampleRatio(input []float32, channels int, ratio float64) []float32 {
	return linearResampleRatioInto(nil, input, channels, ratio)
}

// linearResampleRatioInto is linearResampleRatio's hot-path variant: it
// writes into buf (growing it via append/re-slicing only when too small)
// instead of allocating a fresh output slice, so the real-time resampler
// source can call it once per rendered frame without allocating. The
// returned slice aliases buf and is only valid until the next call.
func linearResampleRatioInto(buf []float32, input []float32, channels int, ratio float64) []float32 {
	frames := len(input) / channels
	if ratio == 1.0 {
		return input
	}
	if frames == 0 {
		return buf[:0]
	}
	outFrames := int(float64(frames) * ratio)
	outLen := outFrames * channels
	if cap(buf) < outLen {
		buf = make([]float32, outLen)
	}
	out := buf[:outLen]
	for i := 0; i < outFrames; i++ {
		srcPos := float64(i) / ratio
		srcIdx := int(srcPos)
		frac := float32(srcPos - float64(srcIdx))
		for ch := 0; ch < channels; ch++ {
			s1 := sampleAt(input, channels, frames, srcIdx, ch)
			s2 := sampleAt(input, channels, frames, srcIdx+1, ch)
			out[i*channels+ch] = s1 + (s2-s1)*frac
		}
	}
	return out
}

func sampleAt(input []float32, channels, frames, frame, ch int) float32 {
	if frame < 0 {
		frame = 0
	}
	if frame >= frames {
		frame = frames - 1
	}
	if frames == 0 {
		return 0
	}
	return input[frame*channels+ch]
}
