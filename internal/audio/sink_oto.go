//go:build !headless

package audio

import (
	"sync"
	"unsafe"

	"github.com/ebitengine/oto/v3"
)

// OtoSink streams the Engine's mixed output through oto via its
// io.Reader-based player.
type OtoSink struct {
	ctx     *oto.Context
	player  *oto.Player
	engine  *Engine
	buf     []float32
	started bool
	mu      sync.Mutex
}

// NewOtoSink creates an oto-backed sink at the given sample rate.
func NewOtoSink(sampleRate int, engine *Engine) (*OtoSink, error) {
	opts := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 1,
		Format:       oto.FormatFloat32LE,
		BufferSize:   4,
	}
	ctx, ready, err := oto.NewContext(opts)
	if err != nil {
		return nil, err
	}
	<-ready

	s := &OtoSink{ctx: ctx, engine: engine, buf: make([]float32, 4096)}
	s.player = ctx.NewPlayer(s)
	return s, nil
}

func (s *OtoSink) Read(p []byte) (int, error) {
	numSamples := len(p) / 4
	if len(s.buf) < numSamples {
		s.buf = make([]float32, numSamples)
	}
	samples := s.buf[:numSamples]
	s.engine.Mix(samples)
	copy(p, (*[1 << 30]byte)(unsafe.Pointer(&samples[0]))[:len(p)])
	return len(p), nil
}

func (s *OtoSink) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		s.player.Play()
		s.started = true
	}
}

func (s *OtoSink) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		s.player.Pause()
		s.started = false
	}
}

func (s *OtoSink) Close() {
	s.Stop()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.player.Close()
}

func (s *OtoSink) IsStarted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}
