package session

import "fmt"

// InvalidError reports a structurally invalid session: fatal at load
// time, never recoverable by the runtime.
type InvalidError struct {
	Reason string
}

func (e *InvalidError) Error() string {
	return fmt.Sprintf("session invalid: %s", e.Reason)
}

// Validate checks the cross-reference and range invariants that the
// typed structs alone cannot enforce (a Go struct
// can hold playback_pool == nil just as easily as a non-empty slice).
// It does not touch disk; the caller already owns a parsed Session.
func (s Session) Validate() error {
	if s.Version == "" {
		return &InvalidError{Reason: "missing version"}
	}
	for key, pb := range s.Playbacks {
		if err := validatePlayback(key, pb); err != nil {
			return err
		}
	}
	for key, cl := range s.Cuelists {
		if err := validateCuelist(key, cl, s.Playbacks); err != nil {
			return err
		}
	}
	return nil
}

func validatePlayback(key string, pb Playback) error {
	if !pb.Spiral.Type.Valid() && pb.Spiral.Opacity > 0 {
		return &InvalidError{Reason: fmt.Sprintf("playback %q: invalid spiral type %d", key, pb.Spiral.Type)}
	}
	if pb.Spiral.Opacity < 0 || pb.Spiral.Opacity > 1 {
		return &InvalidError{Reason: fmt.Sprintf("playback %q: spiral opacity out of range", key)}
	}
	if pb.Media.Mode != MediaModeNone && (pb.Media.CycleSpeed < 1 || pb.Media.CycleSpeed > 100) {
		return &InvalidError{Reason: fmt.Sprintf("playback %q: media cycle_speed out of range", key)}
	}
	if pb.Text.Opacity < 0 || pb.Text.Opacity > 1 {
		return &InvalidError{Reason: fmt.Sprintf("playback %q: text opacity out of range", key)}
	}
	return nil
}

func validateCuelist(key string, cl Cuelist, playbacks map[string]Playback) error {
	if len(cl.Cues) == 0 {
		return &InvalidError{Reason: fmt.Sprintf("cuelist %q: no cues", key)}
	}
	for i, cue := range cl.Cues {
		if err := validateCue(key, i, cue, playbacks); err != nil {
			return err
		}
	}
	return nil
}

func validateCue(cuelistKey string, index int, cue Cue, playbacks map[string]Playback) error {
	if cue.DurationSeconds <= 0 {
		return &InvalidError{Reason: fmt.Sprintf("cuelist %q cue %d: duration_seconds must be > 0", cuelistKey, index)}
	}
	if len(cue.PlaybackPool) == 0 {
		return &InvalidError{Reason: fmt.Sprintf("cuelist %q cue %d: playback_pool is empty", cuelistKey, index)}
	}
	for _, entry := range cue.PlaybackPool {
		if _, ok := playbacks[entry.PlaybackKey]; !ok {
			return &InvalidError{Reason: fmt.Sprintf("cuelist %q cue %d: references unknown playback %q", cuelistKey, index, entry.PlaybackKey)}
		}
	}
	for _, a := range cue.Audio {
		if a.Volume < 0 || a.Volume > 1 {
			return &InvalidError{Reason: fmt.Sprintf("cuelist %q cue %d: audio volume out of range", cuelistKey, index)}
		}
	}
	for _, p := range cue.DevicePulses {
		if p.Intensity < 0 || p.Intensity > 1 {
			return &InvalidError{Reason: fmt.Sprintf("cuelist %q cue %d: device pulse intensity out of range", cuelistKey, index)}
		}
		if p.OffsetSeconds < 0 {
			return &InvalidError{Reason: fmt.Sprintf("cuelist %q cue %d: device pulse offset_seconds must be >= 0", cuelistKey, index)}
		}
	}
	return nil
}
