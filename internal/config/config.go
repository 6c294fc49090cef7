// Package config holds the engine's tuning knobs as a typed struct
// with one place a collaborator can override them. The core never
// reads a config file itself; cmd/mesmerglassd is the only place
// Default() gets overridden, via spf13/viper bound to spf13/cobra
// flags.
package config

import "time"

// Config carries every defaulted timing/capacity constant the engine
// depends on. Zero-value Config is invalid; always start from
// Default().
type Config struct {
	// PrefetchBlockLimit bounds how long the runner blocks waiting for
	// a cue's audio prefetch before falling back to streaming.
	PrefetchBlockLimit time.Duration
	// MaxTransitionWait is the stuck-transition watchdog threshold.
	MaxTransitionWait time.Duration
	// NLookahead is how many cues ahead of the current one get their
	// audio prefetched.
	NLookahead int
	// ImageWorkers sizes the image decode worker pool.
	ImageWorkers int
	// AudioSampleRate is the mixer's fixed output sample rate.
	AudioSampleRate int
	// TargetFPS is the compositor's assumed display refresh rate,
	// used by the phase accumulator and the video frame-advance rate;
	// the cycle_speed curve is counted in frames and does not use it.
	TargetFPS float64
	// FadeQueueCapacity bounds the compositor's ref-counted background
	// texture fade queue.
	FadeQueueCapacity int
}

// Default returns the engine's out-of-the-box tuning.
func Default() Config {
	return Config{
		PrefetchBlockLimit: 150 * time.Millisecond,
		MaxTransitionWait:  30 * time.Second,
		NLookahead:         2,
		ImageWorkers:       2,
		AudioSampleRate:    48000,
		TargetFPS:          60,
		FadeQueueCapacity:  4,
	}
}
