package audio

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// SlowDecodeStreamMs is the default slow-decode threshold: a decode
// elapsed past this duration marks the asset stream-only.
const SlowDecodeStreamMs = 350

// PrefetchBlockLimitMs is the default bound the runner waits for a
// pending cue's prefetch before falling back to streaming.
const PrefetchBlockLimitMs = 150

// request is one (cue_id, role, path) decode request, keyed by the
// cue's correlation id.
type request struct {
	CueID uuid.UUID
	Role  Role
	Path  string
}

// assetState tracks what the prefetch worker learned about one
// (cue_id, role) pair.
type assetState struct {
	ready      chan struct{}
	once       sync.Once
	pcm        *PCM
	streamOnly bool
	err        error
}

func newAssetState() *assetState {
	return &assetState{ready: make(chan struct{})}
}

func (a *assetState) resolve(pcm *PCM, streamOnly bool, err error) {
	a.once.Do(func() {
		a.pcm = pcm
		a.streamOnly = streamOnly
		a.err = err
		close(a.ready)
	})
}

// PrefetchWorker is the single background task servicing the queue of
// audio decode requests.
type PrefetchWorker struct {
	decoder Decoder
	log     *logrus.Entry

	slowThreshold time.Duration

	queue chan request

	mu     sync.Mutex
	assets map[key]*assetState

	done chan struct{}
}

type key struct {
	cueID uuid.UUID
	role  Role
}

// NewPrefetchWorker starts the worker goroutine.
func NewPrefetchWorker(decoder Decoder, log *logrus.Entry) *PrefetchWorker {
	if log == nil {
		log = logrus.NewEntry(logrus.New())
	}
	w := &PrefetchWorker{
		decoder:       decoder,
		log:           log.WithField("component", "audio_prefetch"),
		slowThreshold: SlowDecodeStreamMs * time.Millisecond,
		queue:         make(chan request, 64),
		assets:        make(map[key]*assetState),
		done:          make(chan struct{}),
	}
	go w.loop()
	return w
}

// Enqueue schedules a decode for (cueID, role, path). Safe to call
// multiple times for the same key; only the first request is acted on.
func (w *PrefetchWorker) Enqueue(cueID uuid.UUID, role Role, path string) {
	k := key{cueID, role}
	w.mu.Lock()
	if _, exists := w.assets[k]; exists {
		w.mu.Unlock()
		return
	}
	w.assets[k] = newAssetState()
	w.mu.Unlock()

	select {
	case w.queue <- request{CueID: cueID, Role: role, Path: path}:
	case <-w.done:
	}
}

func (w *PrefetchWorker) loop() {
	for {
		select {
		case <-w.done:
			return
		case req := <-w.queue:
			w.process(req)
		}
	}
}

func (w *PrefetchWorker) process(req request) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	start := time.Now()
	_, err := w.decoder.DecodeHeader(ctx, req.Path)
	elapsed := time.Since(start)

	k := key{req.CueID, req.Role}
	w.mu.Lock()
	state := w.assets[k]
	w.mu.Unlock()
	if state == nil {
		return
	}

	if err != nil {
		w.log.WithFields(logrus.Fields{"role": req.Role, "path": req.Path}).WithError(err).Warn("prefetch header decode failed")
		state.resolve(nil, true, err)
		return
	}

	if elapsed > w.slowThreshold {
		w.log.WithFields(logrus.Fields{"role": req.Role, "path": req.Path, "elapsed_ms": elapsed.Milliseconds()}).
			Warn("decode exceeded slow_decode_stream_ms, marking stream-only")
		state.resolve(nil, true, nil)
		return
	}

	pcm, err := w.decoder.DecodeFull(ctx, req.Path)
	if err != nil {
		state.resolve(nil, true, err)
		return
	}
	state.resolve(pcm, false, nil)
}

// PendingForCue reports how many (role) assets for cueID have not yet
// resolved.
func (w *PrefetchWorker) PendingForCue(cueID uuid.UUID, roles []Role) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	pending := 0
	for _, r := range roles {
		st, ok := w.assets[key{cueID, r}]
		if !ok {
			pending++
			continue
		}
		select {
		case <-st.ready:
		default:
			pending++
		}
	}
	return pending
}

// WaitForCue blocks up to limit (PrefetchBlockLimitMs when limit is
// not positive) for every role requested for cueID to resolve,
// returning per-role results; a role with no prefetch request gets no
// entry. A timeout resolves the remaining roles as stream-only without an
// error: the offending track falls back to streaming rather than
// failing the cue.
func (w *PrefetchWorker) WaitForCue(cueID uuid.UUID, roles []Role, limit time.Duration) map[Role]Result {
	if limit <= 0 {
		limit = PrefetchBlockLimitMs * time.Millisecond
	}
	deadline := time.After(limit)
	results := make(map[Role]Result, len(roles))

	remaining := make(map[Role]*assetState, len(roles))
	w.mu.Lock()
	for _, r := range roles {
		if st, ok := w.assets[key{cueID, r}]; ok {
			remaining[r] = st
		}
	}
	w.mu.Unlock()

	for len(remaining) > 0 {
		progressed := false
		for role, st := range remaining {
			select {
			case <-st.ready:
				results[role] = Result{PCM: st.pcm, StreamOnly: st.streamOnly, Err: st.err}
				delete(remaining, role)
				progressed = true
			default:
			}
		}
		if len(remaining) == 0 {
			break
		}
		if !progressed {
			select {
			case <-deadline:
				for role := range remaining {
					results[role] = Result{StreamOnly: true}
					w.log.WithFields(logrus.Fields{"role": role, "cue": cueID}).Warn("prefetch wait timed out, falling back to streaming")
				}
				return results
			case <-time.After(time.Millisecond):
			}
		}
	}
	return results
}

// Result is what WaitForCue resolves to for one role.
type Result struct {
	PCM        *PCM
	StreamOnly bool
	Err        error
}

// Release discards prefetched state for a cue; a skipped cue's audio
// is released immediately rather than lingering until session end.
func (w *PrefetchWorker) Release(cueID uuid.UUID, roles []Role) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, r := range roles {
		delete(w.assets, key{cueID, r})
	}
}

// Close stops the worker.
func (w *PrefetchWorker) Close() { close(w.done) }
