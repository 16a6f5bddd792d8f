package ppu

import (
	"testing"

	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/interrupt"
)

func statMode(p *PPU) byte { return p.CPURead(0xFF41) & 0x03 }

func TestPPUModeSequenceOneLine(t *testing.T) {
	var ctl interrupt.Controller
	p := New()
	p.CPUWrite(0xFF40, 0x80)
	if m := statMode(p); m != 2 {
		t.Fatalf("expected mode 2 after LCD on, got %d", m)
	}
	// After 80 dots (20 M-cycles) -> mode 3
	p.Tick(20, &ctl)
	if m := statMode(p); m != 3 {
		t.Fatalf("expected mode 3 at dot 80, got %d", m)
	}
	// Mode 3 runs dots [80,254); 44 more M-cycles reach dot 256, the first
	// 4-dot step past that boundary.
	p.Tick(44, &ctl)
	if m := statMode(p); m != 0 {
		t.Fatalf("expected mode 0 at dot 256, got %d", m)
	}
	// End of line -> next line mode 2 and LY increments.
	p.Tick((456 - 256) / 4, &ctl)
	if ly := p.CPURead(0xFF44); ly != 1 {
		t.Fatalf("expected LY=1, got %d", ly)
	}
	if m := statMode(p); m != 2 {
		t.Fatalf("expected mode 2 at new line, got %d", m)
	}
}

func TestPPUVBlankAndSTATOnVBlank(t *testing.T) {
	var ctl interrupt.Controller
	p := New()
	p.CPUWrite(0xFF41, 1<<4) // STAT VBlank IRQ enable
	p.CPUWrite(0xFF40, 0x80)
	p.Tick(144*456/4, &ctl)

	if ctl.ReadIF()&(1<<interrupt.VBlank) == 0 {
		t.Fatalf("expected VBlank IF set at LY=144")
	}
	if ctl.ReadIF()&(1<<interrupt.LCDStat) == 0 {
		t.Fatalf("expected STAT IF set on VBlank when enabled")
	}
}

func TestSTATModeAndLYCCoincidence(t *testing.T) {
	var ctl interrupt.Controller
	p := New()
	p.CPUWrite(0xFF41, (1<<3)|(1<<5)|(1<<6)) // HBlank, OAM, LYC
	p.CPUWrite(0xFF45, 2)                    // LYC=2
	p.CPUWrite(0xFF40, 0x80)

	p.Tick((80+176)/4, &ctl) // dot 256: entering HBlank of line 0
	if ctl.ReadIF()&(1<<interrupt.LCDStat) == 0 {
		t.Fatalf("expected STAT IRQ on HBlank when enabled")
	}

	ctl.WriteIF(0)
	p.Tick((456-256)/4+456/4+1, &ctl) // finish line 0, full line 1, into line 2
	if ctl.ReadIF()&(1<<interrupt.LCDStat) == 0 {
		t.Fatalf("expected STAT IRQ on LYC coincidence at LY=2")
	}
}
