package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mesmerglass/engine/internal/session"
)

// The types below are the on-disk session schema. Parsing bytes from
// disk into a typed shape is the loader's job, kept out of the engine
// core; internal/session only owns the validated, in-memory Session,
// so the JSON tags live here rather than on session.Session itself.

type fileRGBA struct {
	R, G, B, A float64
}

func (c fileRGBA) toRGBA() session.RGBA {
	return session.RGBA{R: c.R, G: c.G, B: c.B, A: c.A}
}

type fileSpiral struct {
	Type             int      `json:"type"`
	RotationSpeedRPM float64  `json:"rotation_speed_rpm"`
	Opacity          float64  `json:"opacity"`
	Reverse          bool     `json:"reverse"`
	ArmColor         fileRGBA `json:"arm_color"`
	GapColor         fileRGBA `json:"gap_color"`
}

type fileMediaPath struct {
	Path           string `json:"path"`
	MediaBankLabel string `json:"media_bank_label"`
}

type fileMedia struct {
	Mode       string          `json:"mode"`
	CycleSpeed int             `json:"cycle_speed"`
	Paths      []fileMediaPath `json:"paths"`
	Shuffle    bool            `json:"shuffle"`
}

type fileText struct {
	Enabled          bool     `json:"enabled"`
	Mode             string   `json:"mode"`
	Library          []string `json:"library"`
	Opacity          float64  `json:"opacity"`
	SyncWithMedia    bool     `json:"sync_with_media"`
	ManualCycleSpeed int      `json:"manual_cycle_speed"`
}

type fileZoom struct {
	Mode string  `json:"mode"`
	Rate float64 `json:"rate"`
}

type filePlayback struct {
	Spiral fileSpiral `json:"spiral"`
	Media  fileMedia  `json:"media"`
	Text   fileText   `json:"text"`
	Zoom   fileZoom   `json:"zoom"`
}

type filePoolEntry struct {
	PlaybackKey string `json:"playback_key"`
	Weight      uint   `json:"weight"`
	MinDuration *int   `json:"min_duration_s,omitempty"`
	MaxDuration *int   `json:"max_duration_s,omitempty"`
	MinCycles   *uint  `json:"min_cycles,omitempty"`
	MaxCycles   *uint  `json:"max_cycles,omitempty"`
}

type fileCueAudio struct {
	Role     string  `json:"role"`
	Path     string  `json:"path"`
	Volume   float64 `json:"volume"`
	Loop     bool    `json:"loop"`
	FadeInS  float64 `json:"fade_in_s"`
	FadeOutS float64 `json:"fade_out_s"`
}

type fileDevicePulse struct {
	OffsetSeconds float64 `json:"offset_seconds"`
	Intensity     float64 `json:"intensity"`
	DurationMS    int     `json:"duration_ms"`
}

type fileCue struct {
	Name            string            `json:"name"`
	DurationSeconds float64           `json:"duration_seconds"`
	FadeIn          float64           `json:"fade_in"`
	FadeOut         float64           `json:"fade_out"`
	PlaybackPool    []filePoolEntry   `json:"playback_pool"`
	SelectionMode   string            `json:"selection_mode"`
	Audio           []fileCueAudio    `json:"audio"`
	DevicePulses    []fileDevicePulse `json:"device_pulses"`
}

type fileCuelist struct {
	Name     string    `json:"name"`
	LoopMode string    `json:"loop_mode"`
	Cues     []fileCue `json:"cues"`
}

type fileMetadata struct {
	Name     string `json:"name"`
	Created  string `json:"created"`
	Modified string `json:"modified"`
}

type fileMediaBankEntry struct {
	Label string `json:"label"`
	Path  string `json:"path"`
	Type  string `json:"type"`
}

type fileRuntime struct {
	LastPlayback string `json:"last_playback"`
	LastCuelist  string `json:"last_cuelist"`
}

type fileSession struct {
	Version   string                  `json:"version"`
	Metadata  fileMetadata            `json:"metadata"`
	Playbacks map[string]filePlayback `json:"playbacks"`
	Cuelists  map[string]fileCuelist  `json:"cuelists"`
	MediaBank []fileMediaBankEntry    `json:"media_bank"`
	Runtime   fileRuntime             `json:"runtime"`
}

// LoadSession reads and decodes a session file from disk, resolving
// relative media paths against the file's own directory. Validation of
// cross-reference invariants happens later, in session.Session.Validate;
// this function only has to produce a well-typed shape.
func LoadSession(path string) (*session.Session, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}
	var fs fileSession
	if err := json.Unmarshal(raw, &fs); err != nil {
		return nil, fmt.Errorf("parse session: %w", err)
	}

	baseDir := filepath.Dir(path)
	sess := &session.Session{
		Version:   fs.Version,
		Name:      fs.Metadata.Name,
		Created:   parseTimestamp(fs.Metadata.Created),
		Modified:  parseTimestamp(fs.Metadata.Modified),
		Playbacks: make(map[string]session.Playback, len(fs.Playbacks)),
		Cuelists:  make(map[string]session.Cuelist, len(fs.Cuelists)),
		MediaBank: make([]session.MediaBankEntry, 0, len(fs.MediaBank)),
		Runtime: session.RuntimeHints{
			LastPlayback: fs.Runtime.LastPlayback,
			LastCuelist:  fs.Runtime.LastCuelist,
		},
	}
	for _, e := range fs.MediaBank {
		entryPath := e.Path
		if entryPath != "" && !filepath.IsAbs(entryPath) {
			entryPath = filepath.Join(baseDir, entryPath)
		}
		sess.MediaBank = append(sess.MediaBank, session.MediaBankEntry{
			Label: e.Label,
			Path:  entryPath,
			Type:  mediaBankTypeFromFile(e.Type),
		})
	}

	for key, pb := range fs.Playbacks {
		sess.Playbacks[key] = session.Playback{
			Key:    key,
			Spiral: spiralFromFile(pb.Spiral),
			Media:  mediaFromFile(pb.Media, baseDir),
			Text:   textFromFile(pb.Text),
			Zoom:   zoomFromFile(pb.Zoom),
		}
	}
	for key, cl := range fs.Cuelists {
		cues := make([]session.Cue, len(cl.Cues))
		for i, c := range cl.Cues {
			cues[i] = cueFromFile(c)
		}
		sess.Cuelists[key] = session.Cuelist{
			Key:      key,
			Name:     cl.Name,
			LoopMode: loopModeFromFile(cl.LoopMode),
			Cues:     cues,
		}
	}
	return sess, nil
}

func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func mediaBankTypeFromFile(t string) session.MediaBankType {
	switch t {
	case "videos":
		return session.MediaBankVideos
	case "fonts":
		return session.MediaBankFonts
	case "both":
		return session.MediaBankBoth
	default:
		return session.MediaBankImages
	}
}

func spiralFromFile(s fileSpiral) session.SpiralConfig {
	return session.SpiralConfig{
		Type:             session.SpiralType(s.Type),
		RotationSpeedRPM: s.RotationSpeedRPM,
		Opacity:          s.Opacity,
		Reverse:          s.Reverse,
		ArmColor:         s.ArmColor.toRGBA(),
		GapColor:         s.GapColor.toRGBA(),
	}
}

func mediaFromFile(m fileMedia, baseDir string) session.MediaConfig {
	mode := session.MediaModeNone
	switch m.Mode {
	case "images":
		mode = session.MediaModeImages
	case "videos":
		mode = session.MediaModeVideos
	case "both":
		mode = session.MediaModeBoth
	}
	paths := make([]session.MediaPath, len(m.Paths))
	for i, p := range m.Paths {
		abs := p.Path
		if abs != "" && !filepath.IsAbs(abs) {
			abs = filepath.Join(baseDir, abs)
		}
		paths[i] = session.MediaPath{AbsolutePath: abs, MediaBankLabel: p.MediaBankLabel}
	}
	return session.MediaConfig{Mode: mode, CycleSpeed: m.CycleSpeed, Paths: paths, Shuffle: m.Shuffle}
}

func textModeFromFile(mode string) session.TextMode {
	switch mode {
	case "static":
		return session.TextModeStatic
	case "flash":
		return session.TextModeFlash
	case "fade":
		return session.TextModeFade
	case "pulse":
		return session.TextModePulse
	case "scroll":
		return session.TextModeScroll
	case "centered_sync":
		return session.TextModeCenteredSync
	case "subtext":
		return session.TextModeSubtext
	default:
		return session.TextModeOff
	}
}

func textFromFile(t fileText) session.TextConfig {
	return session.TextConfig{
		Enabled:          t.Enabled,
		Mode:             textModeFromFile(t.Mode),
		Library:          t.Library,
		Opacity:          t.Opacity,
		SyncWithMedia:    t.SyncWithMedia,
		ManualCycleSpeed: t.ManualCycleSpeed,
	}
}

func zoomFromFile(z fileZoom) session.ZoomConfig {
	mode := session.ZoomModeNone
	switch z.Mode {
	case "in":
		mode = session.ZoomModeIn
	case "out":
		mode = session.ZoomModeOut
	case "pulse":
		mode = session.ZoomModePulse
	}
	return session.ZoomConfig{Mode: mode, Rate: z.Rate}
}

func audioRoleFromFile(role string) session.AudioRole {
	switch role {
	case "background":
		return session.AudioRoleBackground
	case "other":
		return session.AudioRoleOther
	default:
		return session.AudioRoleHypno
	}
}

func selectionModeFromFile(mode string) session.SelectionMode {
	if mode == "on_media_cycle" {
		return session.SelectionOnMediaCycle
	}
	return session.SelectionOnCueStart
}

func loopModeFromFile(mode string) session.LoopMode {
	switch mode {
	case "loop":
		return session.LoopLoop
	case "ping_pong":
		return session.LoopPingPong
	default:
		return session.LoopOnce
	}
}

func cueFromFile(c fileCue) session.Cue {
	pool := make([]session.PoolEntry, len(c.PlaybackPool))
	for i, e := range c.PlaybackPool {
		entry := session.PoolEntry{PlaybackKey: e.PlaybackKey, Weight: e.Weight}
		if e.MinDuration != nil {
			d := time.Duration(*e.MinDuration) * time.Second
			entry.MinDuration = &d
		}
		if e.MaxDuration != nil {
			d := time.Duration(*e.MaxDuration) * time.Second
			entry.MaxDuration = &d
		}
		entry.MinCycles = e.MinCycles
		entry.MaxCycles = e.MaxCycles
		pool[i] = entry
	}
	audio := make([]session.CueAudio, len(c.Audio))
	for i, a := range c.Audio {
		audio[i] = session.CueAudio{
			Role: audioRoleFromFile(a.Role), Path: a.Path, Volume: a.Volume,
			Loop: a.Loop, FadeInS: a.FadeInS, FadeOutS: a.FadeOutS,
		}
	}
	pulses := make([]session.DevicePulse, len(c.DevicePulses))
	for i, p := range c.DevicePulses {
		pulses[i] = session.DevicePulse{OffsetSeconds: p.OffsetSeconds, Intensity: p.Intensity, DurationMS: p.DurationMS}
	}
	return session.Cue{
		Name: c.Name, DurationSeconds: c.DurationSeconds, FadeIn: c.FadeIn, FadeOut: c.FadeOut,
		PlaybackPool: pool, StoredSelectMode: selectionModeFromFile(c.SelectionMode),
		Audio: audio, DevicePulses: pulses,
	}
}
