// Package terminal is a headless ASCII-art front end for the core,
// letting a framebuffer be inspected over SSH without a GPU/windowing
// stack. Grounded on valerio-go-jeebie's backend/terminal package: the
// half-block (▀) double-pixel-per-cell technique and tcell screen/key-poll
// loop are adapted from its Backend.Update/render/drawGameBoy, narrowed to
// this core's four-shade grayscale output and Button bitset instead of
// jeebie's action/event framework (SPEC_FULL.md §3, `cmd/corerunner -ascii`).
package terminal

import (
	"fmt"

	"github.com/gdamore/tcell/v2"

	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/machine"
)

const (
	width  = 160
	height = 144
)

// Run drives m in an ASCII-art terminal window until the user quits (Esc or
// q) or frames frames have been run (unbounded when frames <= 0).
func Run(m *machine.Machine, frames int) error {
	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("terminal: init screen: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("terminal: init screen: %w", err)
	}
	defer screen.Fini()

	screen.SetStyle(tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorWhite))
	screen.Clear()

	fb := make([]byte, width*height*4)
	quit := false
	for i := 0; (frames <= 0 || i < frames) && !quit; i++ {
		for screen.HasPendingEvent() {
			if ev, ok := screen.PollEvent().(*tcell.EventKey); ok {
				quit = quit || handleKey(m, ev)
			}
		}
		if quit {
			break
		}

		if err := m.RunUntilVBlank(); err != nil {
			return err
		}
		m.Render(fb)
		draw(screen, fb)
		screen.Show()
	}
	return nil
}

// handleKey applies a key event to the machine's joypad state and reports
// whether it was a quit request.
func handleKey(m *machine.Machine, ev *tcell.EventKey) bool {
	if ev.Key() == tcell.KeyEscape {
		return true
	}
	switch ev.Rune() {
	case 'q':
		return true
	case 'w':
		m.Press(machine.ButtonUp)
	case 's':
		m.Press(machine.ButtonDown)
	case 'a':
		m.Press(machine.ButtonLeft)
	case 'd':
		m.Press(machine.ButtonRight)
	case 'z':
		m.Press(machine.ButtonA)
	case 'x':
		m.Press(machine.ButtonB)
	case '\r', '\n':
		m.Press(machine.ButtonStart)
	case ' ':
		m.Press(machine.ButtonSelect)
	}
	return false
}

// shade maps an RGBA8 grayscale pixel back to one of the four DMG shade
// levels (inverse of ppu.shade's 0xFF/0xAA/0x55/0x00 mapping).
func shade(fb []byte, i int) int {
	switch v := fb[i*4]; {
	case v >= 0xD8:
		return 3
	case v >= 0x80:
		return 2
	case v >= 0x2B:
		return 1
	default:
		return 0
	}
}

var shadeColor = [4]tcell.Color{tcell.ColorBlack, tcell.ColorGray, tcell.ColorSilver, tcell.ColorWhite}

// draw renders two vertically-stacked pixels per terminal cell using the
// Unicode upper-half-block character, jeebie's double-density technique.
func draw(screen tcell.Screen, fb []byte) {
	for y := 0; y < height; y += 2 {
		for x := 0; x < width; x++ {
			top := shade(fb, y*width+x)
			bottom := 3
			if y+1 < height {
				bottom = shade(fb, (y+1)*width+x)
			}
			style := tcell.StyleDefault.Foreground(shadeColor[top]).Background(shadeColor[bottom])
			screen.SetContent(x, y/2, '▀', nil, style)
		}
	}
}
