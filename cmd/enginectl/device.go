package main

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gen2brain/malgo"

	"github.com/luddite478/fortuned-sub004/internal/engine"
)

// openPlaybackDevice starts a persistent stereo float32 48kHz malgo
// playback device whose data callback renders directly from eng
// (spec.md §6: "the host provides a callback at 48kHz stereo float32.
// The engine returns a fixed-size interleaved buffer per call"),
// mirrors a standard malgo capture-free playback device setup.
func openPlaybackDevice(eng *engine.Engine, sampleRate int) (*malgo.AllocatedContext, *malgo.Device, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("init audio context: %w", err)
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatF32
	deviceConfig.Playback.Channels = 2
	deviceConfig.SampleRate = uint32(sampleRate)

	var frameBuf []float32
	onSendFrames := func(pOutputSample, pInputSamples []byte, frameCount uint32) {
		needed := int(frameCount) * 2
		if cap(frameBuf) < needed {
			frameBuf = make([]float32, needed)
		}
		frameBuf = frameBuf[:needed]
		eng.Render(frameBuf)
		for i, v := range frameBuf {
			binary.LittleEndian.PutUint32(pOutputSample[i*4:], math.Float32bits(v))
		}
	}

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, malgo.DeviceCallbacks{Data: onSendFrames})
	if err != nil {
		ctx.Uninit()
		ctx.Free()
		return nil, nil, fmt.Errorf("init playback device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		ctx.Uninit()
		ctx.Free()
		return nil, nil, fmt.Errorf("start playback device: %w", err)
	}
	return ctx, device, nil
}

func closePlaybackDevice(ctx *malgo.AllocatedContext, device *malgo.Device) {
	if device != nil {
		device.Stop()
		device.Uninit()
	}
	if ctx != nil {
		ctx.Uninit()
		ctx.Free()
	}
}
