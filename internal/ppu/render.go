package ppu

// vramView adapts *PPU to the TileSource interface the fetcher/scanline
// helpers expect, translating full CPU addresses to the internal array.
type vramView struct{ p *PPU }

func (v vramView) Read(addr uint16) byte { return v.p.vram[addr-0x8000] }

const (
	spriteCount   = 40
	maxPerLine    = 10 // real hardware's per-scanline sprite limit
	screenWidth   = 160
	screenHeight  = 144
	bytesPerPixel = 4
)

// shade maps a 2-bit color index through a BGP/OBPn-style palette register
// into a grayscale byte, per spec §4.6 (00->0xFF, 01->0xAA, 10->0x55, 11->0x00).
func shade(ci byte, palette byte) byte {
	bits := (palette >> (ci * 2)) & 0x03
	switch bits {
	case 0:
		return 0xFF
	case 1:
		return 0xAA
	case 2:
		return 0x55
	default:
		return 0x00
	}
}

type spriteHit struct {
	screenX int
	oamIdx  int
	tile    byte
	attr    byte
	row     byte // row within the sprite, after Y-flip
}

// visibleSprites returns up to maxPerLine sprites intersecting scanline y,
// ordered by the hardware's drawing priority (lower X first, OAM index
// breaking ties), per spec §3/§4.6.
func (p *PPU) visibleSprites(y int) []spriteHit {
	height := 8
	if p.lcdc&lcdcOBJSize != 0 {
		height = 16
	}
	var hits []spriteHit
	for i := 0; i < spriteCount; i++ {
		base := i * 4
		sy := int(p.oam[base]) - 16
		if y < sy || y >= sy+height {
			continue
		}
		sx := int(p.oam[base+1]) - 8
		tile := p.oam[base+2]
		attr := p.oam[base+3]
		row := byte(y - sy)
		if attr&AttrFlipY != 0 {
			row = byte(height-1) - row
		}
		hits = append(hits, spriteHit{screenX: sx, oamIdx: i, tile: tile, attr: attr, row: row})
	}
	// Insertion sort by (X, OAM index): small N, stable priority order.
	for i := 1; i < len(hits); i++ {
		for j := i; j > 0; j-- {
			a, b := hits[j-1], hits[j]
			if a.screenX < b.screenX || (a.screenX == b.screenX && a.oamIdx < b.oamIdx) {
				break
			}
			hits[j-1], hits[j] = hits[j], hits[j-1]
		}
	}
	if len(hits) > maxPerLine {
		hits = hits[:maxPerLine]
	}
	return hits
}

// spritePixel returns the sprite's color index and palette at screen column
// x, or ok=false if no opaque sprite pixel covers it (transparency on color
// index 0, spec §4.6; the 8x16 tile-index low-bit split, spec §3).
func (p *PPU) spritePixel(h spriteHit, x int) (ci byte, palette byte, ok bool) {
	dx := x - h.screenX
	if dx < 0 || dx > 7 {
		return 0, 0, false
	}
	tile := h.tile
	row := h.row
	if p.lcdc&lcdcOBJSize != 0 {
		tile &^= 0x01
		if row >= 8 {
			tile |= 0x01
			row -= 8
		}
	}
	base := 0x8000 + uint16(tile)*16 + uint16(row)*2
	lo := p.vram[base-0x8000]
	hi := p.vram[base+1-0x8000]
	bit := byte(7 - dx)
	if h.attr&AttrFlipX != 0 {
		bit = byte(dx)
	}
	ci = ((hi>>bit)&1)<<1 | ((lo >> bit) & 1)
	if ci == 0 {
		return 0, 0, false
	}
	palette = p.bgp
	if h.attr&AttrPalNum != 0 {
		palette = p.obp1
	} else {
		palette = p.obp0
	}
	return ci, palette, true
}

// Render rasterizes the current VRAM+OAM contents into buf, a caller-owned
// RGBA8 framebuffer of 160*144*4 bytes (spec §4.6). It does not consume
// clock cycles: callers invoke it on demand, independent of Tick. Alpha
// bytes are left untouched. Sprite BG-priority (OAM attribute bit 7) is
// not evaluated, per spec's Non-goals.
func (p *PPU) Render(buf []byte) {
	if len(buf) < screenWidth*screenHeight*bytesPerPixel {
		return
	}
	if p.lcdc&lcdcDisplayEn == 0 {
		for i := 0; i < screenWidth*screenHeight; i++ {
			o := i * bytesPerPixel
			buf[o], buf[o+1], buf[o+2] = 0xFF, 0xFF, 0xFF
		}
		return
	}

	vr := vramView{p}
	bgEnabled := p.lcdc&lcdcBGDisp != 0
	tileData8000 := p.lcdc&lcdcBGWinDataSel != 0
	bgMapBase := uint16(0x9800)
	if p.lcdc&lcdcBGDispSel != 0 {
		bgMapBase = 0x9C00
	}
	winMapBase := uint16(0x9800)
	if p.lcdc&lcdcWinDispSel != 0 {
		winMapBase = 0x9C00
	}
	winEnabled := bgEnabled && p.lcdc&lcdcWinDispEn != 0

	for y := 0; y < screenHeight; y++ {
		var bgLine [160]byte
		if bgEnabled {
			bgLine = RenderBackgroundLine(vr, bgMapBase, tileData8000, p.scx, p.scy, byte(y))
		}

		wxStart := -1
		var winLine [160]byte
		if winEnabled && y >= int(p.wy) {
			wxStart = int(p.wx) - 7
			winLine = RenderWindowLine(vr, winMapBase, tileData8000, wxStart, byte(y-int(p.wy)))
		}

		var sprites []spriteHit
		if p.lcdc&lcdcOBJDispEn != 0 {
			sprites = p.visibleSprites(y)
		}

		for x := 0; x < screenWidth; x++ {
			ci := byte(0)
			palette := p.bgp
			if wxStart >= 0 && x >= wxStart {
				ci = winLine[x]
			} else {
				ci = bgLine[x]
			}

			for _, h := range sprites {
				if sci, spal, ok := p.spritePixel(h, x); ok {
					ci, palette = sci, spal
					break
				}
			}

			v := shade(ci, palette)
			o := (y*screenWidth + x) * bytesPerPixel
			buf[o], buf[o+1], buf[o+2] = v, v, v
		}
	}
}
