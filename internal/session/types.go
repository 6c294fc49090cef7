// Package session defines the engine's typed data model: Session,
// Playback, Cuelist, Cue, and the Media Bank. Loading bytes from disk
// and marshalling to/from JSON is the editor/loader's job (an external
// collaborator); this package only owns the typed, validated shape
// that collaborator hands to the runtime.
package session

import "time"

// SpiralType is the enum of built-in spiral shader patterns.
type SpiralType int

const (
	SpiralType1 SpiralType = iota + 1
	SpiralType2
	SpiralType3
	SpiralType4
	SpiralType5
	SpiralType6
	SpiralType7
)

func (t SpiralType) Valid() bool { return t >= SpiralType1 && t <= SpiralType7 }

// RGBA is a normalized color in [0,1] per channel.
type RGBA struct {
	R, G, B, A float64
}

// SpiralConfig is the spiral group of a Playback.
type SpiralConfig struct {
	Type             SpiralType
	RotationSpeedRPM float64
	Opacity          float64
	Reverse          bool
	ArmColor         RGBA
	GapColor         RGBA
}

// MediaMode selects what kind of media a Playback cycles through.
type MediaMode int

const (
	MediaModeNone MediaMode = iota
	MediaModeImages
	MediaModeVideos
	MediaModeBoth
)

// MediaPath is either a literal path or a reference into the session's
// Media Bank. The loader makes a relative path absolute against the
// session file's directory; a Media Bank label is carried as given and
// is not resolved to a path, and the runtime reads only AbsolutePath.
type MediaPath struct {
	AbsolutePath   string
	MediaBankLabel string
}

// MediaConfig is the media group of a Playback.
type MediaConfig struct {
	Mode       MediaMode
	CycleSpeed int // [1, 100]
	Paths      []MediaPath
	Shuffle    bool
}

// TextMode is the enum of text overlay animation modes.
type TextMode int

const (
	TextModeOff TextMode = iota
	TextModeStatic
	TextModeFlash
	TextModeFade
	TextModePulse
	TextModeScroll
	TextModeCenteredSync
	TextModeSubtext
)

// TextConfig is the text group of a Playback.
type TextConfig struct {
	Enabled          bool
	Mode             TextMode
	Library          []string
	Opacity          float64
	SyncWithMedia    bool
	ManualCycleSpeed int // [1, 100], used when SyncWithMedia is false
}

// ZoomMode is the enum of background zoom animation patterns.
type ZoomMode int

const (
	ZoomModeNone ZoomMode = iota
	ZoomModeIn
	ZoomModeOut
	ZoomModePulse
)

// ZoomConfig is the zoom group of a Playback.
type ZoomConfig struct {
	Mode ZoomMode
	Rate float64
}

// Playback is a render recipe: spiral + media + text + zoom.
type Playback struct {
	Key    string
	Spiral SpiralConfig
	Media  MediaConfig
	Text   TextConfig
	Zoom   ZoomConfig
}

// IsNoop reports whether this playback would render nothing: neither a
// visible spiral, nor media, nor text. Permitted, but callers should
// warn.
func (p Playback) IsNoop() bool {
	return p.Spiral.Opacity <= 0 && p.Media.Mode == MediaModeNone && !p.Text.Enabled
}

// SelectionMode governs when the runner resolves a playback-pool entry.
type SelectionMode int

const (
	SelectionOnCueStart SelectionMode = iota
	SelectionOnMediaCycle
)

// PoolEntry is one candidate playback within a Cue's playback_pool.
type PoolEntry struct {
	PlaybackKey string
	Weight      uint
	MinDuration *time.Duration
	MaxDuration *time.Duration
	MinCycles   *uint
	MaxCycles   *uint
}

// HasCycleOrDurationConstraint reports whether this pool entry carries
// any of the constraints that force selection-mode promotion to
// on_media_cycle.
func (p PoolEntry) HasCycleOrDurationConstraint() bool {
	return p.MinDuration != nil || p.MaxDuration != nil || p.MinCycles != nil || p.MaxCycles != nil
}

// AudioRole is the fixed small set of mixer roles an Audio Engine owns.
type AudioRole int

const (
	AudioRoleHypno AudioRole = iota
	AudioRoleBackground
	AudioRoleOther
)

func (r AudioRole) String() string {
	switch r {
	case AudioRoleHypno:
		return "hypno"
	case AudioRoleBackground:
		return "background"
	case AudioRoleOther:
		return "other"
	default:
		return "unknown"
	}
}

// CueAudio is one audio entry attached to a Cue.
type CueAudio struct {
	Role     AudioRole
	Path     string
	Volume   float64
	Loop     bool
	FadeInS  float64
	FadeOutS float64
}

// DevicePulse is one scripted haptic pulse relative to cue start,
// fired by the runner against the optional device-control
// collaborator.
type DevicePulse struct {
	OffsetSeconds float64
	Intensity     float64 // [0,1]
	DurationMS    int
}

// Cue is a single timed segment within a Cuelist.
type Cue struct {
	Name             string
	DurationSeconds  float64
	FadeIn           float64
	FadeOut          float64
	PlaybackPool     []PoolEntry
	StoredSelectMode SelectionMode
	Audio            []CueAudio
	DevicePulses     []DevicePulse
}

// EffectiveSelectionMode applies the backward-compat promotion rule:
// any pool entry carrying a duration/cycle constraint forces
// on_media_cycle, regardless of what was stored. Tooling that rewrites
// a session should persist this value, canonicalizing the two
// historically-inconsistent spellings.
func (c Cue) EffectiveSelectionMode() SelectionMode {
	for _, entry := range c.PlaybackPool {
		if entry.HasCycleOrDurationConstraint() {
			return SelectionOnMediaCycle
		}
	}
	return c.StoredSelectMode
}

// LoopMode governs how a Cuelist wraps at its ends.
type LoopMode int

const (
	LoopOnce LoopMode = iota
	LoopLoop
	LoopPingPong
)

// Cuelist is an ordered list of Cues with a loop policy.
type Cuelist struct {
	Key      string
	Name     string
	LoopMode LoopMode
	Cues     []Cue
}

// MediaBankType classifies a labelled directory entry in the Media Bank.
type MediaBankType int

const (
	MediaBankImages MediaBankType = iota
	MediaBankVideos
	MediaBankFonts
	MediaBankBoth
)

// MediaBankEntry is one labelled directory in the session's media bank.
type MediaBankEntry struct {
	Label string
	Path  string
	Type  MediaBankType
}

// RuntimeHints are optional last-used pointers carried by a session.
type RuntimeHints struct {
	LastPlayback string
	LastCuelist  string
}

// Session is the root, immutable-during-a-run bundle.
type Session struct {
	Version   string
	Name      string
	Created   time.Time
	Modified  time.Time
	Playbacks map[string]Playback
	Cuelists  map[string]Cuelist
	MediaBank []MediaBankEntry
	Runtime   RuntimeHints
}
