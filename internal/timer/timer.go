// Package timer implements the DMG DIV/TIMA/TMA/TAC registers and the
// internal 16-bit system counter, including the falling-edge TIMA increment
// quirks hardware actually exhibits (spec §3, §4.5). Grounded on the
// teacher's internal/bus/bus.go timer handling, split into its own leaf
// component per spec §2.
package timer

import (
	"fmt"
	"os"

	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/interrupt"
)

// selectBits maps TAC's rate-select field to the system-counter bit that
// feeds the falling-edge detector.
var selectBits = [4]uint{9, 3, 5, 7}

// Timer owns the free-running system counter and TIMA/TMA/TAC state.
type Timer struct {
	counter uint16 // 16-bit system counter; DIV is its high byte
	tima    byte
	tma     byte
	tac     byte // low 3 bits meaningful (bit2 enable, bits0-1 rate select)

	debug bool
}

// New constructs a Timer with its debug trace gated by GB_DEBUG_TIMER, as in
// the teacher's bus.go.
func New() *Timer {
	return &Timer{debug: os.Getenv("GB_DEBUG_TIMER") != ""}
}

func (t *Timer) ReadDIV() byte  { return byte(t.counter >> 8) }
func (t *Timer) ReadTIMA() byte { return t.tima }
func (t *Timer) ReadTMA() byte  { return t.tma }
func (t *Timer) ReadTAC() byte  { return 0xF8 | (t.tac & 0x07) }

func (t *Timer) inputBit() bool {
	if t.tac&0x04 == 0 {
		return false
	}
	bit := selectBits[t.tac&0x03]
	return (t.counter>>bit)&1 != 0
}

// WriteDIV resets the system counter to zero. Per spec §4.5, this may cause
// a spurious TIMA increment if the multiplexed bit was set (a write-induced
// falling edge).
func (t *Timer) WriteDIV(ctl *interrupt.Controller) {
	before := t.inputBit()
	t.counter = 0
	if before && !t.inputBit() {
		t.bumpTIMA(ctl)
	}
	if t.debug {
		fmt.Printf("[TMR] DIV write -> reset tima=%02X tma=%02X tac=%02X\n", t.tima, t.tma, t.tac)
	}
}

func (t *Timer) WriteTIMA(v byte) { t.tima = v }
func (t *Timer) WriteTMA(v byte)  { t.tma = v }

// selectedBit reports the system counter's bit selected by tac's rate-select
// field, independent of the enable bit (bit 2). Used to detect the
// write-induced rising-edge quirk below, which fires off the raw
// multiplexer bit even when the AND-gate output (inputBit) was never high.
func (t *Timer) selectedBit(tac byte) bool {
	bit := selectBits[tac&0x03]
	return (t.counter>>bit)&1 != 0
}

// WriteTAC updates the enable/rate-select bits. Two independent hardware
// quirks can bump TIMA on this write (spec §4.5):
//   - disabling the timer while the old multiplexer bit is 1 is a regular
//     falling edge of the AND-gate output (before && !after, below);
//   - enabling the timer while the newly selected bit is already 1, coming
//     from an old selection whose bit was 0, also bumps TIMA even though
//     the gate's output was never high before the write -- the write itself
//     produces the edge. Ground truth: original_source's write_to_tac, c1
//     (`val.bit(2) && !self.rate_bit() && self.sys_counter.bit(new_rate)`).
func (t *Timer) WriteTAC(v byte, ctl *interrupt.Controller) {
	before := t.inputBit()
	v &= 0x07
	risingEdge := v&0x04 != 0 && !t.selectedBit(t.tac) && t.selectedBit(v)
	t.tac = v
	if (before && !t.inputBit()) || risingEdge {
		t.bumpTIMA(ctl)
	}
	if t.debug {
		fmt.Printf("[TMR] TAC write %02X tima=%02X tma=%02X\n", t.tac, t.tima, t.tma)
	}
}

func (t *Timer) bumpTIMA(ctl *interrupt.Controller) {
	if t.tima == 0xFF {
		t.tima = t.tma
		ctl.SetIRQ(interrupt.Timer)
		return
	}
	t.tima++
}

// Tick advances the system counter by n M-cycles (4 system clocks each),
// processing every intervening system clock individually so no falling edge
// is missed (spec §4.5, "every M-cycle ... must be processed").
func (t *Timer) Tick(mCycles int, ctl *interrupt.Controller) {
	for i := 0; i < mCycles; i++ {
		for clk := 0; clk < 4; clk++ {
			before := t.inputBit()
			t.counter++
			if before && !t.inputBit() {
				t.bumpTIMA(ctl)
			}
		}
	}
}
