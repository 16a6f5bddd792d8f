// Package ui is the ebiten windowed front end: it owns the window, polls
// keyboard input into joypad presses, uploads the core's framebuffer to the
// screen each frame, and drives an audio player reading the core's sample
// sink. This is the external-collaborator boundary spec.md §1 calls out as
// out of scope for the core itself; the core (internal/...) never imports
// ebiten. Grounded on the teacher's internal/ui/{ebitenapp.go,audio.go},
// trimmed of the teacher's save-state-slot/ROM-picker/settings menu system
// (host UI widgets, also out of spec.md §1's scope) — see DESIGN.md.
package ui

// Config contains window/input/audio related settings.
type Config struct {
	Title string // window title
	Scale int    // integer upscaling factor
}

// Defaults fills missing fields with reasonable defaults.
func (c *Config) Defaults() {
	if c.Title == "" {
		c.Title = "gbemu"
	}
	if c.Scale <= 0 {
		c.Scale = 3
	}
}
