package ui

import (
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/audio"

	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/machine"
)

// App is the minimal ebiten Game wiring a Machine to a window: it polls the
// arrow keys/Z/X/Enter/Shift into joypad presses, runs one frame of emulation
// per Update, and blits the resulting framebuffer in Draw. Grounded on the
// teacher's internal/ui/ebitenapp.go App, stripped of its pause/fast-forward
// menu, save-state slots, and ROM-picker screens — those are host UI widgets
// spec.md §1 places out of scope for the core (see DESIGN.md).
type App struct {
	cfg Config
	m   *machine.Machine

	tex *ebiten.Image
	fb  []byte

	audioCtx    *audio.Context
	audioPlayer *audio.Player
	audioSrc    *apuStream
}

// NewApp constructs the window around m. cfg.Defaults() should already have
// been applied by the caller.
func NewApp(cfg Config, m *machine.Machine) *App {
	ebiten.SetWindowTitle(cfg.Title)
	ebiten.SetWindowSize(160*cfg.Scale, 144*cfg.Scale)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)

	a := &App{cfg: cfg, m: m, fb: make([]byte, 160*144*4)}
	a.audioCtx = audio.NewContext(44100)
	a.audioSrc = &apuStream{m: m}
	if p, err := a.audioCtx.NewPlayer(a.audioSrc); err == nil {
		a.audioPlayer = p
		a.audioPlayer.SetBufferSize(audioBufferDuration)
		a.audioPlayer.Play()
	}
	return a
}

// Run starts ebiten's game loop, blocking until the window is closed.
func (a *App) Run() error { return ebiten.RunGame(a) }

var buttonKeys = [...]struct {
	key    ebiten.Key
	button byte
}{
	{ebiten.KeyArrowUp, machine.ButtonUp},
	{ebiten.KeyArrowDown, machine.ButtonDown},
	{ebiten.KeyArrowLeft, machine.ButtonLeft},
	{ebiten.KeyArrowRight, machine.ButtonRight},
	{ebiten.KeyZ, machine.ButtonA},
	{ebiten.KeyX, machine.ButtonB},
	{ebiten.KeyEnter, machine.ButtonStart},
	{ebiten.KeyShiftRight, machine.ButtonSelect},
	{ebiten.KeyShiftLeft, machine.ButtonSelect},
}

// Update polls input and advances the machine by one frame.
func (a *App) Update() error {
	var pressed byte
	for _, bk := range buttonKeys {
		if ebiten.IsKeyPressed(bk.key) {
			pressed |= bk.button
		}
	}
	a.m.Press(pressed)
	a.m.Release(^pressed)

	return a.m.RunUntilVBlank()
}

// Draw uploads the current framebuffer to the screen.
func (a *App) Draw(screen *ebiten.Image) {
	if a.tex == nil {
		a.tex = ebiten.NewImage(160, 144)
	}
	a.m.Render(a.fb)
	a.tex.WritePixels(a.fb)
	screen.DrawImage(a.tex, nil)
}

// Layout keeps the internal resolution fixed at the DMG's native 160x144;
// ebiten handles scaling the window around it.
func (a *App) Layout(outsideWidth, outsideHeight int) (int, int) { return 160, 144 }
