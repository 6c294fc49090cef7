// Package audio implements the multi-role mixer, its async prefetch
// worker, and the streaming fallback path: a mixer feeding an
// abstract output sink, with per-role linear fade ramps.
package audio

import (
	"context"
	"time"
)

// PCM is a decoded mono PCM buffer sampled at SampleRate Hz.
type PCM struct {
	Samples    []float32
	SampleRate int
}

// Decoder decodes audio files. Real formats (wav/flac/mp3/etc.) each
// need their own codec, so this stays an injected interface the way
// media.FrameDecoder does for video: the host wires in whatever
// platform codec it ships.
type Decoder interface {
	// DecodeHeader returns the track duration without decoding the
	// full file, used to measure decode latency against
	// slow_decode_stream_ms.
	DecodeHeader(ctx context.Context, path string) (time.Duration, error)
	// DecodeFull decodes the entire file to PCM.
	DecodeFull(ctx context.Context, path string) (*PCM, error)
	// OpenStream opens path for progressive, non-buffered playback
	// (the "stream-only" fallback path).
	OpenStream(ctx context.Context, path string) (StreamReader, error)
}

// StreamReader yields PCM chunks progressively for the streaming
// playback path.
type StreamReader interface {
	ReadChunk() (*PCM, error)
	Close() error
}
