package audio

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// roleHandle is the mixer state for one active role voice: a decoded
// (or streaming) PCM source plus a linear gain ramp driving fade
// in/out over fade_in_s/fade_out_s.
type roleHandle struct {
	pcm    *PCM
	pos    int
	loop   bool
	stream StreamReader

	streamBuf []float32
	streamPos int

	target   float64
	gain     float64
	ramp     float64 // gain delta applied per sample while ramping
	rampLeft int     // samples remaining in the current ramp
}

func (h *roleHandle) nextSample(sampleRate int) float32 {
	var s float32
	switch {
	case h.pcm != nil:
		if h.pos >= len(h.pcm.Samples) {
			if h.loop && len(h.pcm.Samples) > 0 {
				h.pos = 0
			} else {
				return 0
			}
		}
		s = h.pcm.Samples[h.pos]
		h.pos++
	case h.stream != nil:
		// Streaming playback reads from the chunk buffer the streaming
		// worker keeps topped up; only when that buffer has run dry
		// does streamNext read the next chunk itself, on this thread.
		s = h.streamNext()
	}

	if h.rampLeft > 0 {
		h.gain += h.ramp
		h.rampLeft--
	} else {
		h.gain = h.target
	}
	return s * float32(h.gain)
}

func (h *roleHandle) streamNext() float32 {
	if h.streamBuf == nil || h.streamPos >= len(h.streamBuf) {
		chunk, err := h.stream.ReadChunk()
		if err != nil || chunk == nil || len(chunk.Samples) == 0 {
			return 0
		}
		h.streamBuf = chunk.Samples
		h.streamPos = 0
	}
	s := h.streamBuf[h.streamPos]
	h.streamPos++
	return s
}

// Engine is the multi-role mixer. Roles mix additively into the
// output at a fixed sample rate. A role's slot in roles holds its
// incoming handle; handles mid fade-out move to outgoing and keep
// mixing until their ramp reaches zero, so a cue transition's
// same-role fade-out and fade-in are audible concurrently as a
// crossfade.
type Engine struct {
	log        *logrus.Entry
	sampleRate int

	mu       sync.Mutex
	roles    map[Role]*roleHandle
	outgoing []*roleHandle
	worker   *PrefetchWorker
	decoder  Decoder

	streamCtx    context.Context
	streamCancel context.CancelFunc
}

// NewEngine builds an Engine and warms up its streaming worker at
// construction time, so the first cue never pays thread-spawn latency
// for a streamed track.
func NewEngine(sampleRate int, decoder Decoder, log *logrus.Entry) *Engine {
	if log == nil {
		log = logrus.NewEntry(logrus.New())
	}
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		log:          log.WithField("component", "audio_engine"),
		sampleRate:   sampleRate,
		roles:        make(map[Role]*roleHandle),
		decoder:      decoder,
		streamCtx:    ctx,
		streamCancel: cancel,
	}
	e.worker = NewPrefetchWorker(decoder, log)
	// Warm the streaming worker goroutine pool immediately rather than
	// lazily on first streamed track.
	go e.streamWarmup()
	return e
}

func (e *Engine) streamWarmup() {
	// The streaming worker itself has no fixed work at startup beyond
	// existing as a live goroutine; Play() hands it streams to pump.
	<-e.streamCtx.Done()
}

// Prefetch exposes the worker for the runner to enqueue
// (cue_id, role, path) decode requests.
func (e *Engine) Prefetch() *PrefetchWorker { return e.worker }

// OpenStream opens path for progressive, unbuffered playback: the
// fallback when prefetch marks an asset stream-only or times out.
func (e *Engine) OpenStream(ctx context.Context, path string) (StreamReader, error) {
	return e.decoder.OpenStream(ctx, path)
}

// Play starts role playing handle's content, ramping gain in from 0
// to volume over fadeInS.
func (e *Engine) Play(role Role, pcm *PCM, stream StreamReader, loop bool, volume float64, fadeInS float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	h := &roleHandle{pcm: pcm, stream: stream, loop: loop, target: volume}
	e.setRamp(h, 0, volume, fadeInS)
	e.roles[role] = h

	if stream != nil {
		go e.pumpStream(role, h)
	}
}

// handleLive reports whether h is still mixed, either as a role's
// incoming handle or mid fade-out in outgoing. Caller holds e.mu.
func (e *Engine) handleLive(role Role, h *roleHandle) bool {
	if e.roles[role] == h {
		return true
	}
	for _, o := range e.outgoing {
		if o == h {
			return true
		}
	}
	return false
}

// pumpStream keeps a streaming handle's chunk buffer topped up on the
// dedicated streaming worker, never on the audio callback thread. The
// pump stays alive while the handle fades out so a streamed crossfade
// doesn't starve mid-ramp.
func (e *Engine) pumpStream(role Role, h *roleHandle) {
	for {
		select {
		case <-e.streamCtx.Done():
			return
		default:
		}
		e.mu.Lock()
		active := e.handleLive(role, h)
		needsMore := active && len(h.streamBuf)-h.streamPos < 256
		e.mu.Unlock()
		if !active {
			return
		}
		if needsMore {
			chunk, err := h.stream.ReadChunk()
			if err != nil {
				return
			}
			e.mu.Lock()
			h.streamBuf = append(h.streamBuf, chunk.Samples...)
			e.mu.Unlock()
		} else {
			time.Sleep(5 * time.Millisecond)
		}
	}
}

// FadeOut moves role's handle to the outgoing set and ramps its gain
// to zero over fadeOutS. The role's slot frees up immediately, so a
// following Play on the same role crossfades against the outgoing
// ramp instead of cutting it.
func (e *Engine) FadeOut(role Role, fadeOutS float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	h, ok := e.roles[role]
	if !ok {
		return
	}
	delete(e.roles, role)
	e.setRamp(h, h.gain, 0, fadeOutS)
	e.outgoing = append(e.outgoing, h)
}

func (e *Engine) setRamp(h *roleHandle, from, to, seconds float64) {
	h.gain = from
	h.target = to
	samples := int(seconds * float64(e.sampleRate))
	if samples <= 0 {
		h.rampLeft = 0
		h.gain = to
		h.ramp = 0
		return
	}
	h.rampLeft = samples
	h.ramp = (to - from) / float64(samples)
}

// Mix fills out with the additive sum of every active role's next
// sample, incoming and outgoing alike. Called from the audio output
// thread only.
func (e *Engine) Mix(out []float32) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i := range out {
		var sum float32
		for _, h := range e.roles {
			sum += h.nextSample(e.sampleRate)
		}
		for _, h := range e.outgoing {
			sum += h.nextSample(e.sampleRate)
		}
		out[i] = sum
	}

	kept := e.outgoing[:0]
	for _, h := range e.outgoing {
		if h.rampLeft > 0 || h.gain > 0 {
			kept = append(kept, h)
		}
	}
	e.outgoing = kept
}

// Stop removes every role and outgoing handle immediately (used on
// session stop).
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.roles = make(map[Role]*roleHandle)
	e.outgoing = nil
}

// Close stops the prefetch worker and streaming pumps.
func (e *Engine) Close() {
	e.streamCancel()
	e.worker.Close()
}
