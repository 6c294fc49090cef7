package main

import (
	"context"
	"time"

	"github.com/mesmerglass/engine/internal/audio"
	"github.com/mesmerglass/engine/internal/media"
)

// placeholderFrameDecoder satisfies media.FrameDecoder without an
// actual video codec behind it: this harness ships no H.264 decoder,
// so it fills the seam with a flat mid-grey frame. A real deployment
// swaps this implementation for a platform decoder without touching
// internal/media at all.
type placeholderFrameDecoder struct{}

func (placeholderFrameDecoder) DecodeFrame(ctx context.Context, sampleIndex int, sampleBytes []byte) (*media.DecodedImage, error) {
	const w, h = 2, 2
	px := make([]byte, w*h*4)
	for i := 0; i < len(px); i += 4 {
		px[i], px[i+1], px[i+2], px[i+3] = 0x40, 0x40, 0x40, 0xff
	}
	return &media.DecodedImage{Width: w, Height: h, Pixels: px}, nil
}

// placeholderAudioDecoder satisfies audio.Decoder with silence, so
// prefetch requests resolve to a short silent buffer instead of
// blocking forever on a codec this harness doesn't ship.
type placeholderAudioDecoder struct {
	sampleRate int
}

func (d placeholderAudioDecoder) DecodeHeader(ctx context.Context, path string) (time.Duration, error) {
	return 0, nil
}

func (d placeholderAudioDecoder) DecodeFull(ctx context.Context, path string) (*audio.PCM, error) {
	return &audio.PCM{Samples: make([]float32, d.sampleRate/10), SampleRate: d.sampleRate}, nil
}

func (d placeholderAudioDecoder) OpenStream(ctx context.Context, path string) (audio.StreamReader, error) {
	return silentStream{}, nil
}

// silentStream yields one silent chunk forever, the stream-only
// fallback path's trivial terminal case when there is no real decoder.
type silentStream struct{}

func (silentStream) ReadChunk() (*audio.PCM, error) {
	return &audio.PCM{Samples: make([]float32, 4096), SampleRate: 48000}, nil
}

func (silentStream) Close() error { return nil }
