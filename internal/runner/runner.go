// Package runner implements the Session Runner: the cue state machine
// and two-phase transition scheduler that gates cue changes on
// compositor cycle-boundary events so a video never cuts mid-frame.
package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/mesmerglass/engine/internal/audio"
	"github.com/mesmerglass/engine/internal/config"
	"github.com/mesmerglass/engine/internal/director"
	"github.com/mesmerglass/engine/internal/events"
	"github.com/mesmerglass/engine/internal/session"
	"github.com/mesmerglass/engine/internal/shuffle"
	"github.com/mesmerglass/engine/internal/telemetry"
)

// State is one of the Session Runner's state-machine states:
// IDLE → LOADING → PLAYING → PAUSED → TRANSITIONING →
// PLAYING → ... → STOPPED.
type State int

const (
	StateIdle State = iota
	StateLoading
	StatePlaying
	StatePaused
	StateTransitioning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateTransitioning:
		return "transitioning"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// cueRuntime is the per-cue correlation state the runner needs beyond
// what session.Cue itself stores: a stable id for audio prefetch keys
// and a playback-pool shuffler (anti-repetition tracked per cue).
type cueRuntime struct {
	id       uuid.UUID
	shuffler *shuffle.Shuffler

	// Playback-pool state for the on_media_cycle selection mode:
	// which pool entry is active, and how many cycles / how much
	// wall-clock time have elapsed since it was selected, so
	// OnCycleBoundary can honor each entry's min/max cycle and duration
	// constraints before re-selecting.
	activeEntryIdx         int
	entryCyclesSinceSelect uint
	entrySelectedAt        time.Duration
}

// DeviceController is the optional device-control collaborator:
// pulse(intensity, duration_ms). The core has no other BLE logic; a
// nil controller just means scripted pulses are dropped.
type DeviceController interface {
	Pulse(intensity float64, durationMS int)
}

// Runner drives one Cuelist through its cues.
type Runner struct {
	log       *logrus.Entry
	dispatch  *events.Dispatcher
	telemetry *telemetry.Telemetry
	director  *director.Director
	engine    *audio.Engine
	device    DeviceController
	cfg       config.Config

	sess    *session.Session
	cuelist session.Cuelist
	runtime []cueRuntime

	mu                sync.Mutex
	state             State
	cueIndex          int
	direction         int // +1 or -1, for ping_pong loop mode
	cueElapsed        time.Duration
	pendingTransition bool
	transitionAskedAt time.Time
	runToken          uint64 // bumped on skip/stop to cancel in-flight background work
	firedPulses       map[int]bool
}

// SetDeviceController attaches the device-control collaborator. Safe to
// call at any time; nil disables pulse scheduling.
func (r *Runner) SetDeviceController(d DeviceController) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.device = d
}

func New(log *logrus.Entry, dispatch *events.Dispatcher, tel *telemetry.Telemetry, d *director.Director, engine *audio.Engine, cfg config.Config) *Runner {
	if log == nil {
		log = logrus.NewEntry(logrus.New())
	}
	return &Runner{
		log:       log.WithField("component", "runner"),
		dispatch:  dispatch,
		telemetry: tel,
		director:  d,
		engine:    engine,
		cfg:       cfg,
		direction: 1,
	}
}

func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Load validates sess, selects cuelistKey, and assigns each cue a
// stable correlation id. Must be called before Start.
func (r *Runner) Load(sess *session.Session, cuelistKey string) error {
	if err := sess.Validate(); err != nil {
		r.dispatch.EmitError(events.ErrorSessionInvalid, err.Error())
		return err
	}
	cl, ok := sess.Cuelists[cuelistKey]
	if !ok {
		err := fmt.Errorf("cuelist %q not found", cuelistKey)
		r.dispatch.EmitError(events.ErrorSessionInvalid, err.Error())
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sess = sess
	r.cuelist = cl
	r.runtime = make([]cueRuntime, len(cl.Cues))
	for i, cue := range cl.Cues {
		weights := make([]uint, len(cue.PlaybackPool))
		for j, entry := range cue.PlaybackPool {
			w := entry.Weight
			if w == 0 {
				w = 1
			}
			weights[j] = w
		}
		r.runtime[i] = cueRuntime{
			id:       uuid.New(),
			shuffler: shuffle.NewWithWeights(weights, shuffle.DefaultCapacity),
		}
	}
	return nil
}

// Start enters LOADING, primes audio for the first cue and its
// lookahead, then starts playback and transitions to PLAYING.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	if len(r.cuelist.Cues) == 0 {
		r.mu.Unlock()
		return fmt.Errorf("runner: cuelist has no cues")
	}
	r.state = StateLoading
	r.cueIndex = 0
	r.mu.Unlock()

	r.prefetchLookahead(0)
	r.waitForCuePrefetch(0)

	return r.startCue(ctx, 0)
}

// Pause/Resume implement the wall-clock cue timer's pause semantics:
// elapsed time freezes and resumes where it left off.
func (r *Runner) Pause() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == StatePlaying {
		r.state = StatePaused
	}
}

func (r *Runner) Resume() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == StatePaused {
		r.state = StatePlaying
	}
}

// Stop invalidates the run token (cancelling background work) and
// silences all audio immediately, without a fade-out.
func (r *Runner) Stop() {
	r.mu.Lock()
	r.state = StateStopped
	r.runToken++
	r.mu.Unlock()
	r.engine.Stop()
}

// SkipNext/SkipPrev cancel any pending transition and force an
// immediate cue end, ignoring the cycle boundary and accepting the
// visible seam.
func (r *Runner) SkipNext(ctx context.Context) error { return r.skip(ctx, 1) }
func (r *Runner) SkipPrev(ctx context.Context) error { return r.skip(ctx, -1) }

func (r *Runner) skip(ctx context.Context, delta int) error {
	r.mu.Lock()
	r.pendingTransition = false
	r.runToken++
	current := r.cueIndex
	next := r.nextIndex(r.cueIndex + delta)
	r.mu.Unlock()

	r.log.Warn("skip forced an immediate cue end; cycle-boundary alignment was not observed")
	r.endCue(current)
	r.releasePrefetch(current)
	if next < 0 {
		r.Stop()
		return nil
	}
	return r.startCue(ctx, next)
}

// releasePrefetch discards any still-pending prefetched audio for
// cueIndex, so a skipped cue's audio is released immediately.
func (r *Runner) releasePrefetch(cueIndex int) {
	cue := r.cuelist.Cues[cueIndex]
	if len(cue.Audio) == 0 {
		return
	}
	roles := make([]session.AudioRole, 0, len(cue.Audio))
	for _, a := range cue.Audio {
		roles = append(roles, a.Role)
	}
	r.engine.Prefetch().Release(r.runtime[cueIndex].id, roles)
}

// SeekCue jumps directly to index, cancelling any pending transition.
func (r *Runner) SeekCue(ctx context.Context, index int) error {
	if index < 0 || index >= len(r.cuelist.Cues) {
		return fmt.Errorf("runner: cue index %d out of range", index)
	}
	r.mu.Lock()
	r.pendingTransition = false
	r.runToken++
	current := r.cueIndex
	r.mu.Unlock()

	r.endCue(current)
	r.releasePrefetch(current)
	return r.startCue(ctx, index)
}

// Tick advances the wall-clock cue timer by dt. Call once per render
// tick from the game loop. When duration_seconds is reached, issues a
// *transition request* (the request phase of the two-phase cue
// transition) rather than ending the cue immediately.
func (r *Runner) Tick(dt time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StatePlaying {
		return
	}
	r.cueElapsed += dt

	cue := r.cuelist.Cues[r.cueIndex]
	r.firePulses(cue)
	durationReached := r.cueElapsed >= time.Duration(cue.DurationSeconds*float64(time.Second))

	if durationReached && !r.pendingTransition {
		r.pendingTransition = true
		r.transitionAskedAt = time.Now()
		r.log.Info("waiting for cycle boundary")
		r.dispatch.EmitTransitionPending("duration_reached")
	}

	if r.pendingTransition && !r.transitionAskedAt.IsZero() && time.Since(r.transitionAskedAt) > r.cfg.MaxTransitionWait {
		r.log.Warn("transition watchdog fired: forcing execute phase without a boundary")
		r.pendingTransition = false
		r.dispatch.EmitError(events.ErrorTransitionStuck, fmt.Sprintf("cue %d: no cycle boundary within %s", r.cueIndex, r.cfg.MaxTransitionWait))
		go r.executeTransitionForced()
	}
}

// firePulses invokes any of cue's scripted DevicePulses whose offset has
// now elapsed, exactly once each. Caller must hold r.mu.
func (r *Runner) firePulses(cue session.Cue) {
	if r.device == nil {
		return
	}
	for i, p := range cue.DevicePulses {
		if r.firedPulses[i] {
			continue
		}
		if r.cueElapsed >= time.Duration(p.OffsetSeconds*float64(time.Second)) {
			r.firedPulses[i] = true
			r.device.Pulse(p.Intensity, p.DurationMS)
		}
	}
}

func (r *Runner) executeTransitionForced() {
	r.mu.Lock()
	current := r.cueIndex
	r.mu.Unlock()
	next := r.nextIndex(current + r.direction)
	if next < 0 {
		r.Stop()
		return
	}
	r.endCue(current)
	_ = r.startCue(context.Background(), next)
}

// OnCycleBoundary is registered with the director as the cycle-boundary
// callback (the execute phase of the two-phase cue transition). It
// must be short and non-blocking like every boundary callback.
func (r *Runner) OnCycleBoundary() {
	start := timeNow()
	defer func() {
		if r.telemetry != nil {
			r.telemetry.ObserveBoundaryCallback(timeNow().Sub(start))
		}
	}()

	r.mu.Lock()
	if r.pendingTransition {
		// Playback-switch vs cue-transition priority: cue-transition
		// wins outright; any pool switch that would
		// otherwise fire on this same boundary is discarded below by
		// simply returning once the transition is handled.
		current := r.cueIndex
		r.pendingTransition = false
		next := r.nextIndex(current + r.direction)
		r.mu.Unlock()

		if next < 0 {
			r.Stop()
			return
		}
		r.endCue(current)
		go func() {
			if err := r.startCue(context.Background(), next); err != nil {
				r.log.WithError(err).Warn("cue transition failed")
			}
		}()
		return
	}

	// No pending cue transition: consider an on_media_cycle
	// playback-pool re-selection.
	cueIndex := r.cueIndex
	cue := r.cuelist.Cues[cueIndex]
	if cue.EffectiveSelectionMode() != session.SelectionOnMediaCycle || len(cue.PlaybackPool) == 0 {
		r.mu.Unlock()
		return
	}
	rt := &r.runtime[cueIndex]
	rt.entryCyclesSinceSelect++
	entry := cue.PlaybackPool[rt.activeEntryIdx]
	elapsedSinceSelect := r.cueElapsed - rt.entrySelectedAt
	if !poolEntryEligibleToSwitch(entry, rt, elapsedSinceSelect) {
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()

	key, poolIdx, err := r.selectPlayback(cueIndex)
	if err != nil {
		r.dispatch.EmitError(events.ErrorPlaybackLoadFailed, err.Error())
		return
	}
	pb, ok := r.sess.Playbacks[key]
	if !ok {
		r.dispatch.EmitError(events.ErrorPlaybackLoadFailed, fmt.Sprintf("playback %q not found", key))
		return
	}

	r.director.LoadPlayback(pb)
	if err := r.director.StartPlayback(context.Background()); err != nil {
		r.log.WithError(err).Warn("playback-pool switch failed; continuing with black background")
	}

	r.mu.Lock()
	if r.cueIndex == cueIndex {
		rt := &r.runtime[cueIndex]
		rt.activeEntryIdx = poolIdx
		rt.entryCyclesSinceSelect = 0
		rt.entrySelectedAt = r.cueElapsed
	}
	r.mu.Unlock()
	r.log.WithField("playback", key).Debug("playback-pool switch on media-cycle boundary")
}

// nextIndex applies the cuelist's loop_mode to compute the next cue
// index, returning -1 when playback should stop (once: stop after the
// last cue).
func (r *Runner) nextIndex(candidate int) int {
	n := len(r.cuelist.Cues)
	if n == 0 {
		return -1
	}
	switch r.cuelist.LoopMode {
	case session.LoopOnce:
		if candidate < 0 || candidate >= n {
			return -1
		}
		return candidate
	case session.LoopLoop:
		return ((candidate % n) + n) % n
	case session.LoopPingPong:
		if candidate >= n {
			r.direction = -1
			return n - 2
		}
		if candidate < 0 {
			r.direction = 1
			return min(n-1, 1)
		}
		return candidate
	default:
		return ((candidate % n) + n) % n
	}
}

// selectPlayback samples the cue's playback_pool weighted by entry
// weight, with the shuffler's last-N anti-repetition tracked per cue.
func (r *Runner) selectPlayback(cueIndex int) (string, int, error) {
	cue := r.cuelist.Cues[cueIndex]
	if len(cue.PlaybackPool) == 0 {
		return "", 0, fmt.Errorf("cue %q has an empty playback pool", cue.Name)
	}
	rt := &r.runtime[cueIndex]
	idx := rt.shuffler.Next()
	if idx < 0 || idx >= len(cue.PlaybackPool) {
		idx = 0
	}
	return cue.PlaybackPool[idx].PlaybackKey, idx, nil
}

// poolEntryEligibleToSwitch reports whether the currently-active pool
// entry on rt has satisfied its minimums and hit a maximum (or carries
// no constraint at all), honoring the entry's min/max_cycles and
// min/max_duration_s fields. Called only when the cue's effective
// selection mode is on_media_cycle.
func poolEntryEligibleToSwitch(entry session.PoolEntry, rt *cueRuntime, elapsedSinceSelect time.Duration) bool {
	minCyclesOK := entry.MinCycles == nil || rt.entryCyclesSinceSelect >= *entry.MinCycles
	minDurationOK := entry.MinDuration == nil || elapsedSinceSelect >= *entry.MinDuration
	if !minCyclesOK || !minDurationOK {
		return false
	}
	maxHit := (entry.MaxCycles != nil && rt.entryCyclesSinceSelect >= *entry.MaxCycles) ||
		(entry.MaxDuration != nil && elapsedSinceSelect >= *entry.MaxDuration)
	noConstraint := !entry.HasCycleOrDurationConstraint()
	return maxHit || noConstraint
}

func (r *Runner) startCue(ctx context.Context, index int) error {
	cue := r.cuelist.Cues[index]

	key, poolIdx, err := r.selectPlayback(index)
	if err != nil {
		r.dispatch.EmitError(events.ErrorPlaybackLoadFailed, err.Error())
		return err
	}
	pb, ok := r.sess.Playbacks[key]
	if !ok {
		err := fmt.Errorf("playback %q not found", key)
		r.dispatch.EmitError(events.ErrorPlaybackLoadFailed, err.Error())
		return err
	}

	r.director.LoadPlayback(pb)
	if err := r.director.StartPlayback(ctx); err != nil {
		r.log.WithError(err).Warn("playback start failed; continuing with black background")
	}

	for _, a := range cue.Audio {
		pcm, stream := r.resolveRoleAudio(ctx, r.runtime[index].id, a)
		if pcm != nil || stream != nil {
			r.engine.Play(a.Role, pcm, stream, a.Loop, a.Volume, a.FadeInS)
		}
	}

	r.mu.Lock()
	r.cueIndex = index
	r.cueElapsed = 0
	r.pendingTransition = false
	r.state = StatePlaying
	r.firedPulses = make(map[int]bool, len(cue.DevicePulses))
	rt := &r.runtime[index]
	rt.activeEntryIdx = poolIdx
	rt.entryCyclesSinceSelect = 0
	rt.entrySelectedAt = 0
	r.mu.Unlock()

	r.dispatch.EmitCueStarted(index, cue.Name)
	r.prefetchLookahead(index)
	return nil
}

func (r *Runner) endCue(index int) {
	cue := r.cuelist.Cues[index]
	for _, a := range cue.Audio {
		r.engine.FadeOut(a.Role, a.FadeOutS)
	}
	r.dispatch.EmitCueEnded(index)
}

// prefetchLookahead enqueues audio prefetch requests for cueIndex and
// the NLookahead cues after it.
func (r *Runner) prefetchLookahead(cueIndex int) {
	worker := r.engine.Prefetch()
	for offset := 0; offset <= r.cfg.NLookahead; offset++ {
		idx := r.nextIndex(cueIndex + offset)
		if idx < 0 {
			break
		}
		cue := r.cuelist.Cues[idx]
		id := r.runtime[idx].id
		for _, a := range cue.Audio {
			worker.Enqueue(id, a.Role, a.Path)
		}
	}
}

func (r *Runner) waitForCuePrefetch(cueIndex int) {
	cue := r.cuelist.Cues[cueIndex]
	if len(cue.Audio) == 0 {
		return
	}
	roles := make([]session.AudioRole, 0, len(cue.Audio))
	for _, a := range cue.Audio {
		roles = append(roles, a.Role)
	}
	r.engine.Prefetch().WaitForCue(r.runtime[cueIndex].id, roles, r.cfg.PrefetchBlockLimit)
}

// resolveRoleAudio resolves one cue audio entry's decoded content,
// falling back to streaming if prefetch marked it stream-only, timed
// out, or failed.
func (r *Runner) resolveRoleAudio(ctx context.Context, cueID uuid.UUID, a session.CueAudio) (*audio.PCM, audio.StreamReader) {
	roles := []session.AudioRole{a.Role}
	results := r.engine.Prefetch().WaitForCue(cueID, roles, r.cfg.PrefetchBlockLimit)
	result, ok := results[a.Role]
	// A wait that hit its bound leaves the asset unresolved; a slow
	// decode already marked stream-only is resolved.
	timedOut := ok && result.StreamOnly && r.engine.Prefetch().PendingForCue(cueID, roles) > 0
	if !ok || timedOut {
		r.dispatch.EmitError(events.ErrorAudioPrefetchTimeout, a.Role.String())
		if r.telemetry != nil {
			r.telemetry.IncPrefetchTimeout()
		}
		result = audio.Result{StreamOnly: true}
	}

	if !result.StreamOnly && result.PCM != nil {
		return result.PCM, nil
	}

	stream, err := r.engine.OpenStream(ctx, a.Path)
	if err != nil {
		r.log.WithError(err).WithField("path", a.Path).Warn("audio role silent: stream open failed")
		return nil, nil
	}
	return nil, stream
}

func timeNow() time.Time { return time.Now() }
