// Package ppu implements the DMG pixel-processing unit: tile data/maps,
// OAM, LCDC/STAT mode timing, the OAM-DMA engine, and on-demand
// rasterisation into an RGBA8 framebuffer (spec §3, §4.6). Grounded on the
// teacher's internal/ppu/{ppu.go,fetcher.go,scanline.go}; the fetcher/FIFO
// helpers are kept for scanline rendering and generalized to cover window
// and sprite layers the teacher's scaffold didn't reach.
package ppu

import (
	"bytes"
	"encoding/gob"

	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/interrupt"
)

const (
	dotsPerLine   = 456
	linesPerFrame = 154
	// TotalDots is the spec's t_state period: CYCLES_PER_HSYNC * 154.
	TotalDots = dotsPerLine * linesPerFrame

	mode2End = 80  // OAM scan: dots [0,80)
	mode3End = 254 // pixel transfer: dots [80,254)
)

// LCDC bit positions.
const (
	lcdcBGDisp       = 1 << 0
	lcdcOBJDispEn    = 1 << 1
	lcdcOBJSize      = 1 << 2
	lcdcBGDispSel    = 1 << 3
	lcdcBGWinDataSel = 1 << 4
	lcdcWinDispEn    = 1 << 5
	lcdcWinDispSel   = 1 << 6
	lcdcDisplayEn    = 1 << 7
)

// STAT bit positions.
const (
	statCoincidence = 1 << 2
	statHBlankIRQEn = 1 << 3
	statVBlankIRQEn = 1 << 4
	statOAMIRQEn    = 1 << 5
	statLYCIRQEn    = 1 << 6
)

// Sprite attribute bit flags, per spec §3.
const (
	AttrPalNum = 1 << 4
	AttrFlipX  = 1 << 5
	AttrFlipY  = 1 << 6
	AttrBGPrio = 1 << 7
)

type dmaSlot struct {
	active bool
	src    uint16
}

// PPU owns VRAM, OAM, LCD control/status registers, and the OAM-DMA queue.
type PPU struct {
	vram [0x2000]byte // 0x8000-0x9FFF: tile data (384*16B) + two 1024B maps
	oam  [0xA0]byte   // 0xFE00-0xFE9F: 40 sprites * 4 bytes

	lcdc byte
	stat byte // bits 0-1 mode, bit2 coincidence, bits3-6 IRQ enables
	scy  byte
	scx  byte
	ly   byte
	lyc  byte
	bgp  byte
	obp0 byte
	obp1 byte
	wy   byte
	wx   byte
	dmaReg byte // FF46 last-written value, for read-back

	tState int // 0..TotalDots-1

	statShadow byte // per-condition shadow-IRQ bits, cleared on STAT IRQ drain

	dma       dmaSlot // slot 0: promoted to active at the start of the next AdvanceDMA
	dmaNext   dmaSlot // slot 1: promoted to dma at the start of the next AdvanceDMA
	dmaQueued dmaSlot // write landed this M-cycle; invisible to this cycle's AdvanceDMA
	dmaActive bool
	dmaSrc    uint16
	dmaIndex  int
}

func New() *PPU { return &PPU{} }

// --- CPU-facing VRAM/OAM access ---

func (p *PPU) mode() byte { return p.stat & 0x03 }

// CPURead serves VRAM/OAM reads for the bus. VRAM is inaccessible during
// mode 3 and OAM during modes 2/3 and while DMA is active; all return 0xFF.
func (p *PPU) CPURead(addr uint16) byte {
	switch {
	case addr >= 0x8000 && addr <= 0x9FFF:
		if p.mode() == 3 {
			return 0xFF
		}
		return p.vram[addr-0x8000]
	case addr >= 0xFE00 && addr <= 0xFE9F:
		if p.dmaActive || p.mode() == 2 || p.mode() == 3 {
			return 0xFF
		}
		return p.oam[addr-0xFE00]
	default:
		return p.readReg(addr)
	}
}

// CPUWrite serves VRAM/OAM writes; writes are dropped under the same
// blocking conditions as CPURead.
func (p *PPU) CPUWrite(addr uint16, v byte) {
	switch {
	case addr >= 0x8000 && addr <= 0x9FFF:
		if p.mode() == 3 {
			return
		}
		p.vram[addr-0x8000] = v
	case addr >= 0xFE00 && addr <= 0xFE9F:
		if p.dmaActive || p.mode() == 2 || p.mode() == 3 {
			return
		}
		p.oam[addr-0xFE00] = v
	default:
		p.writeReg(addr, v)
	}
}

func (p *PPU) readReg(addr uint16) byte {
	switch addr {
	case 0xFF40:
		return p.lcdc
	case 0xFF41:
		return 0x80 | (p.stat & 0x7F)
	case 0xFF42:
		return p.scy
	case 0xFF43:
		return p.scx
	case 0xFF44:
		return p.ly
	case 0xFF45:
		return p.lyc
	case 0xFF46:
		return p.dmaReg
	case 0xFF47:
		return p.bgp
	case 0xFF48:
		return p.obp0
	case 0xFF49:
		return p.obp1
	case 0xFF4A:
		return p.wy
	case 0xFF4B:
		return p.wx
	default:
		return 0xFF
	}
}

func (p *PPU) writeReg(addr uint16, v byte) {
	switch addr {
	case 0xFF40:
		prev := p.lcdc
		p.lcdc = v
		if prev&lcdcDisplayEn != 0 && v&lcdcDisplayEn == 0 {
			p.tState = 0
			p.ly = 0
			p.setMode(0, nil)
		} else if prev&lcdcDisplayEn == 0 && v&lcdcDisplayEn != 0 {
			p.tState = 0
			p.ly = 0
			p.setMode(2, nil)
		}
	case 0xFF41:
		p.stat = (p.stat & 0x07) | (v & 0x78)
	case 0xFF42:
		p.scy = v
	case 0xFF43:
		p.scx = v
	case 0xFF44:
		// LY is read-only.
	case 0xFF45:
		p.lyc = v
	case 0xFF46:
		p.dmaReg = v
		p.ScheduleDMA(v)
	case 0xFF47:
		p.bgp = v
	case 0xFF48:
		p.obp0 = v
	case 0xFF49:
		p.obp1 = v
	case 0xFF4A:
		p.wy = v
	case 0xFF4B:
		p.wx = v
	}
}

// --- line timing ---

// Tick advances the PPU by n M-cycles (4 dots each), updating LY/mode and
// raising VBlank/STAT interrupts as their conditions are met (spec §4.6).
func (p *PPU) Tick(mCycles int, ctl *interrupt.Controller) {
	if p.lcdc&lcdcDisplayEn == 0 {
		return
	}
	for i := 0; i < mCycles; i++ {
		p.tState = (p.tState + 4) % TotalDots
		dot := p.tState % dotsPerLine
		newLY := byte(p.tState / dotsPerLine)
		if newLY != p.ly {
			p.ly = newLY
			if p.ly == 144 {
				ctl.SetIRQ(interrupt.VBlank)
			}
			p.checkLYC(ctl)
		}
		var mode byte
		switch {
		case p.ly >= 144:
			mode = 1
		case dot < mode2End:
			mode = 2
		case dot < mode3End:
			mode = 3
		default:
			mode = 0
		}
		p.setMode(mode, ctl)
	}
}

func (p *PPU) setMode(mode byte, ctl *interrupt.Controller) {
	prev := p.stat & 0x03
	p.stat = (p.stat &^ 0x03) | mode
	if prev == mode || ctl == nil {
		return
	}
	switch mode {
	case 0:
		if p.stat&statHBlankIRQEn != 0 {
			p.noteStatCondition(statHBlankIRQEn, ctl)
		}
	case 1:
		if p.stat&statVBlankIRQEn != 0 {
			p.noteStatCondition(statVBlankIRQEn, ctl)
		}
	case 2:
		if p.stat&statOAMIRQEn != 0 {
			p.noteStatCondition(statOAMIRQEn, ctl)
		}
	}
}

func (p *PPU) checkLYC(ctl *interrupt.Controller) {
	if p.ly == p.lyc {
		p.stat |= statCoincidence
		if p.stat&statLYCIRQEn != 0 {
			p.noteStatCondition(statLYCIRQEn, ctl)
		}
	} else {
		p.stat &^= statCoincidence
	}
}

// noteStatCondition latches one of the four independently-selectable STAT
// conditions and raises the shared LCD-STAT interrupt line, per spec §4.6
// ("Each selected condition sets its own shadow-IRQ bit...").
func (p *PPU) noteStatCondition(bit byte, ctl *interrupt.Controller) {
	p.statShadow |= bit
	ctl.SetIRQ(interrupt.LCDStat)
}

// DrainStatIRQ clears all shadow-IRQ bits; called by the machine when it
// services the LCD-STAT interrupt (clears the corresponding IF bit).
func (p *PPU) DrainStatIRQ() { p.statShadow = 0 }

// StatShadow exposes the latched condition bits, for debugging.
func (p *PPU) StatShadow() byte { return p.statShadow }

// --- OAM DMA ---

// ScheduleDMA queues a new OAM-DMA transfer from src*0x100, per spec §4.6.
// The write lands in dmaQueued, a cycle away from even entering the
// dmaNext/dma shift chain: the CPU's FF46 write and the bus's AdvanceDMA
// call for that same M-cycle both happen before the next M-cycle boundary
// (Machine.StepInstruction ticks CPU then bus together), so if the write
// fed dmaNext directly, that same AdvanceDMA call would immediately
// promote it into dma. Staging it one cycle further back is what produces
// the documented two-M-cycle gap between the trigger write and the first
// byte copy: queued -> dmaNext (cycle N+1) -> dma, now active (cycle N+2).
func (p *PPU) ScheduleDMA(src byte) {
	p.dmaQueued = dmaSlot{active: true, src: uint16(src) << 8}
}

// OAMDMAActive reports whether a transfer is currently copying bytes.
func (p *PPU) OAMDMAActive() bool { return p.dmaActive }

// AdvanceDMA runs one M-cycle of the DMA state machine: activate the slot-0
// transfer if one is waiting, shift slot 1 down into slot 0, pull in
// anything queued this cycle as the new slot 1, then copy one byte if a
// transfer is active. readSrc must resolve full CPU address space
// (ROM/WRAM/etc.), which only the bus can do — hence the callback.
func (p *PPU) AdvanceDMA(readSrc func(addr uint16) byte) {
	if p.dma.active {
		p.dmaActive = true
		p.dmaSrc = p.dma.src
		p.dmaIndex = 0
		p.dma.active = false
	}
	p.dma = p.dmaNext
	p.dmaNext = p.dmaQueued
	p.dmaQueued = dmaSlot{}

	if !p.dmaActive {
		return
	}
	srcAddr := p.dmaSrc + uint16(p.dmaIndex)
	if srcAddr >= 0xE000 {
		srcAddr -= 0x2000 // DMA bypasses the normal echo mapping (spec §4.6)
	}
	p.oam[p.dmaIndex] = readSrc(srcAddr)
	p.dmaIndex++
	if p.dmaIndex >= 0xA0 {
		p.dmaActive = false
	}
}

// --- register accessors used by rendering/front ends ---

func (p *PPU) LY() byte   { return p.ly }
func (p *PPU) Mode() byte { return p.mode() }
func (p *PPU) LCDC() byte { return p.lcdc }
func (p *PPU) STAT() byte { return 0x80 | (p.stat & 0x7F) }
func (p *PPU) SCY() byte  { return p.scy }
func (p *PPU) SCX() byte  { return p.scx }
func (p *PPU) WY() byte   { return p.wy }
func (p *PPU) WX() byte   { return p.wx }
func (p *PPU) BGP() byte  { return p.bgp }
func (p *PPU) OBP0() byte { return p.obp0 }
func (p *PPU) OBP1() byte { return p.obp1 }

// --- save state ---

type ppuState struct {
	VRAM                                        [0x2000]byte
	OAM                                         [0xA0]byte
	LCDC, STAT, SCY, SCX, LY, LYC               byte
	BGP, OBP0, OBP1, WY, WX, DMAReg, StatShadow byte
	TState                                      int
	Dma, DmaNext, DmaQueued                     dmaSlot
	DmaActive                                   bool
	DmaSrc                                      uint16
	DmaIndex                                    int
}

// SaveState serializes PPU state with gob (grounded on the teacher's
// internal/ppu save/load helpers).
func (p *PPU) SaveState() []byte {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	s := ppuState{
		VRAM: p.vram, OAM: p.oam,
		LCDC: p.lcdc, STAT: p.stat, SCY: p.scy, SCX: p.scx, LY: p.ly, LYC: p.lyc,
		BGP: p.bgp, OBP0: p.obp0, OBP1: p.obp1, WY: p.wy, WX: p.wx,
		DMAReg: p.dmaReg, StatShadow: p.statShadow, TState: p.tState,
		Dma: p.dma, DmaNext: p.dmaNext, DmaQueued: p.dmaQueued, DmaActive: p.dmaActive,
		DmaSrc: p.dmaSrc, DmaIndex: p.dmaIndex,
	}
	_ = enc.Encode(s)
	return buf.Bytes()
}

// LoadState restores state written by SaveState.
func (p *PPU) LoadState(data []byte) {
	var s ppuState
	dec := gob.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&s); err != nil {
		return
	}
	p.vram, p.oam = s.VRAM, s.OAM
	p.lcdc, p.stat, p.scy, p.scx, p.ly, p.lyc = s.LCDC, s.STAT, s.SCY, s.SCX, s.LY, s.LYC
	p.bgp, p.obp0, p.obp1, p.wy, p.wx = s.BGP, s.OBP0, s.OBP1, s.WY, s.WX
	p.dmaReg, p.statShadow, p.tState = s.DMAReg, s.StatShadow, s.TState
	p.dma, p.dmaNext, p.dmaQueued, p.dmaActive = s.Dma, s.DmaNext, s.DmaQueued, s.DmaActive
	p.dmaSrc, p.dmaIndex = s.DmaSrc, s.DmaIndex
}
