package compositor

import "github.com/mesmerglass/engine/internal/session"

// TextLayer is the resolved, per-frame state of the text overlay.
// Cycling/animation of which string is shown lives in the cycler
// package; this is just what the renderer draws this tick.
type TextLayer struct {
	Enabled bool
	Content string
	Opacity float32
	Mode    session.TextMode
}

// ResolveTextLayer builds a TextLayer from a TextConfig and the
// currently-selected string (cycling owned by the caller).
func ResolveTextLayer(cfg session.TextConfig, current string) TextLayer {
	return TextLayer{
		Enabled: cfg.Enabled,
		Content: current,
		Opacity: float32(cfg.Opacity),
		Mode:    cfg.Mode,
	}
}
