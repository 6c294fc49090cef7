//go:build !headless

package compositor

import (
	"github.com/hajimehoshi/ebiten/v2"
)

// Window drives an Ebiten game loop for one on-screen surface. It
// carries only what a render-only compositor surface needs: no
// keyboard forwarding, no clipboard, no input handling.
type Window struct {
	renderer *EbitenRenderer
	width    int
	height   int
	tick     func()
	closing  func() bool
}

// NewWindow wires tick (called once per Ebiten Update, expected to
// drive director.Update(dt) and Compositor.Render) and closing (polled
// each Update to decide whether to terminate the loop).
func NewWindow(renderer *EbitenRenderer, width, height int, tick func(), closing func() bool) *Window {
	return &Window{renderer: renderer, width: width, height: height, tick: tick, closing: closing}
}

// Run blocks running the Ebiten game loop. Call from its own
// goroutine; Ebiten requires the loop to own the main OS thread on
// some platforms, so callers on darwin/windows should invoke this
// directly from func main.
func (w *Window) Run(title string) error {
	ebiten.SetWindowSize(w.width, w.height)
	ebiten.SetWindowTitle(title)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetRunnableOnUnfocused(true)
	return ebiten.RunGame(w)
}

func (w *Window) Update() error {
	if w.closing != nil && w.closing() {
		return ebiten.Termination
	}
	if w.tick != nil {
		w.tick()
	}
	return nil
}

func (w *Window) Draw(screen *ebiten.Image) {
	if w.renderer == nil || w.renderer.screen == nil {
		return
	}
	screen.DrawImage(w.renderer.screen, nil)
}

func (w *Window) Layout(_, _ int) (int, int) {
	return w.width, w.height
}
