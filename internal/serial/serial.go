// Package serial is the minimal link-cable stub spec §2/§4.2 calls for: no
// networking, writes accepted, reads return documented defaults. Grounded on
// the teacher's bus.go serial handling (immediate-completion transfer used
// by blargg-style test ROMs to report pass/fail over "the link cable").
package serial

import "github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/interrupt"

// Port models SB (0xFF01) and SC (0xFF02). There is no remote end: a
// transfer start completes immediately and the transmitted byte is handed to
// an optional sink (a headless test harness capturing blargg-style output).
type Port struct {
	sb byte
	sc byte

	sink func(b byte)
}

func New() *Port { return &Port{} }

// SetSink attaches a callback invoked with each byte "transmitted" by the
// program. Pass nil to detach.
func (p *Port) SetSink(sink func(b byte)) { p.sink = sink }

func (p *Port) ReadSB() byte { return p.sb }

// ReadSC returns SC with the unused bits read as one and bit 7 reflecting
// transfer-in-progress (always 0, since transfers complete immediately).
func (p *Port) ReadSC() byte { return 0x7E | (p.sc & 0x81) }

func (p *Port) WriteSB(v byte) { p.sb = v }

// WriteSC starts a transfer when bit 7 is set. Because no link partner
// exists, the transfer completes within the same write: the byte is handed
// to the sink, the serial interrupt is raised, and the start bit clears.
func (p *Port) WriteSC(v byte, ctl *interrupt.Controller) {
	p.sc = v & 0x81
	if p.sc&0x80 != 0 {
		if p.sink != nil {
			p.sink(p.sb)
		}
		ctl.SetIRQ(interrupt.Serial)
		p.sc &^= 0x80
	}
}
