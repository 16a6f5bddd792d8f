// Package joypad implements P1/JOYP (0xFF00): button state plus the
// selection register multiplexing directions vs. action buttons (spec §3,
// §4.8). Grounded on the teacher's bus.go JOYP handling, split into its own
// leaf component per spec §2.
package joypad

import "github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/interrupt"

// Button bitmask values, per spec §6.
const (
	A      byte = 1 << 0
	B      byte = 1 << 1
	Select byte = 1 << 2
	Start  byte = 1 << 3
	Right  byte = 1 << 4
	Left   byte = 1 << 5
	Up     byte = 1 << 6
	Down   byte = 1 << 7
)

// Joypad tracks which buttons are currently pressed and the host-selected
// nibble.
type Joypad struct {
	pressed byte // bitset of currently-pressed buttons (1 = pressed)
	select_ byte // last written bits 5-4
	lower4  byte // previously-computed active-low lower nibble, for edge detection
}

func New() *Joypad { return &Joypad{select_: 0x30, lower4: 0x0F} }

// Press marks the given buttons (OR of the bit constants) as pressed.
func (j *Joypad) Press(mask byte, ctl *interrupt.Controller) {
	j.pressed |= mask
	j.refresh(ctl)
}

// Release marks the given buttons as released.
func (j *Joypad) Release(mask byte, ctl *interrupt.Controller) {
	j.pressed &^= mask
	j.refresh(ctl)
}

// Read returns the P1/JOYP byte: bits 7-6 always one, bits 5-4 reflect the
// last selection write, bits 3-0 are the active-low selected nibble.
func (j *Joypad) Read() byte {
	return 0xC0 | (j.select_ & 0x30) | j.activeLowNibble()
}

// Write stores the selection bits (5-4); other bits are read-only.
func (j *Joypad) Write(v byte, ctl *interrupt.Controller) {
	j.select_ = v & 0x30
	j.refresh(ctl)
}

func (j *Joypad) activeLowNibble() byte {
	n := byte(0x0F)
	if j.select_&0x10 == 0 { // P14 low selects D-pad
		if j.pressed&Right != 0 {
			n &^= 0x01
		}
		if j.pressed&Left != 0 {
			n &^= 0x02
		}
		if j.pressed&Up != 0 {
			n &^= 0x04
		}
		if j.pressed&Down != 0 {
			n &^= 0x08
		}
	}
	if j.select_&0x20 == 0 { // P15 low selects buttons
		if j.pressed&A != 0 {
			n &^= 0x01
		}
		if j.pressed&B != 0 {
			n &^= 0x02
		}
		if j.pressed&Select != 0 {
			n &^= 0x04
		}
		if j.pressed&Start != 0 {
			n &^= 0x08
		}
	}
	return n
}

// refresh recomputes the active-low nibble and raises the joypad interrupt
// on any 1->0 transition (a button becoming observably pressed).
func (j *Joypad) refresh(ctl *interrupt.Controller) {
	n := j.activeLowNibble()
	falling := j.lower4 &^ n
	if falling != 0 && ctl != nil {
		ctl.SetIRQ(interrupt.Joypad)
	}
	j.lower4 = n
}
