package ppu

import "testing"

func writeSprite(p *PPU, slot int, x, y int, tile, attr byte) {
	base := uint16(0xFE00 + slot*4)
	p.CPUWrite(base+0, byte(y+16))
	p.CPUWrite(base+1, byte(x+8))
	p.CPUWrite(base+2, tile)
	p.CPUWrite(base+3, attr)
}

func TestSpriteOpaquePixelOverridesBG(t *testing.T) {
	p := New()
	writeTile(p, 0, 0) // BG tile: white everywhere
	writeTile(p, 1, 3) // sprite tile: opaque, black
	// OAM is written before the LCD turns on (mode 2 blocks OAM writes).
	writeSprite(p, 0, 10, 5, 1, 0)
	p.CPUWrite(0xFF48, 0xE4)           // OBP0: each color index to its own shade
	p.CPUWrite(0xFF40, 0x80|0x01|0x02) // LCD+BG+OBJ on

	buf := make([]byte, screenWidth*screenHeight*4)
	p.Render(buf)

	got := buf[(5*screenWidth+10)*4]
	if got != 0x00 {
		t.Fatalf("expected sprite pixel (black) at (10,5), got %#02x", got)
	}
}

func TestSpriteColorZeroIsTransparent(t *testing.T) {
	p := New()
	writeTile(p, 0, 0) // BG tile: color 0, white
	writeTile(p, 1, 0) // sprite tile: color 0 everywhere -> transparent
	writeSprite(p, 0, 10, 5, 1, 0)
	p.CPUWrite(0xFF40, 0x80|0x01|0x02)

	buf := make([]byte, screenWidth*screenHeight*4)
	p.Render(buf)

	got := buf[(5*screenWidth+10)*4]
	if got != 0xFF {
		t.Fatalf("expected BG (white) to show through transparent sprite, got %#02x", got)
	}
}

func TestSpriteOverlapXPriority(t *testing.T) {
	p := New()
	writeTile(p, 0, 0) // BG: white
	writeTile(p, 1, 2) // sprite tile A: color 2 (mid gray 0x55)
	writeTile(p, 2, 1) // sprite tile B: color 1 (light gray 0xAA)
	// Two sprites both cover x=20; the lower screen-X sprite wins there.
	writeSprite(p, 0, 20, 0, 1, 0) // screenX=20, covers x in [20,27]
	writeSprite(p, 1, 14, 0, 2, 0) // screenX=14, covers x in [14,21]
	p.CPUWrite(0xFF48, 0xE4)
	p.CPUWrite(0xFF40, 0x80|0x01|0x02)

	buf := make([]byte, screenWidth*screenHeight*4)
	p.Render(buf)

	got := buf[(0*screenWidth+20)*4]
	if got != 0xAA {
		t.Fatalf("expected lower-X sprite (tile B, color1, 0xAA) to win at x=20, got %#02x", got)
	}
}
