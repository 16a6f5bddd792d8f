package ppu

import "testing"

func TestRenderBackgroundLineSCXOffsetAndTileWrap(t *testing.T) {
	// 32-tile map row at 0x9800 with sequential tile numbers 0..31.
	mapBase := uint16(0x9800)
	src := fakeTileSource{}
	rowY := byte(0)
	for tile := 0; tile < 32; tile++ {
		src[mapBase+uint16(tile)] = byte(tile)
		base := uint16(0x8000+tile*16) + uint16(rowY)*2
		lo := byte(tile)
		hi := ^byte(tile)
		src[base] = lo
		src[base+1] = hi
	}
	// scx=5 discards the first 5 pixels of tile 0, then continues across 160px.
	out := RenderBackgroundLine(src, mapBase, true, 5, 0, 0)
	lo0, hi0 := byte(0), ^byte(0)
	for i := 0; i < 3; i++ {
		b := 2 - byte(i)
		want := ((hi0>>b)&1)<<1 | ((lo0 >> b) & 1)
		if out[i] != want {
			t.Fatalf("px %d got %d want %d", i, out[i], want)
		}
	}
	lo1, hi1 := byte(1), ^byte(1)
	for i := 0; i < 8; i++ {
		b := 7 - byte(i)
		want := ((hi1>>b)&1)<<1 | ((lo1 >> b) & 1)
		if out[3+i] != want {
			t.Fatalf("tile1 px %d got %d want %d", i, out[3+i], want)
		}
	}
}

func TestRenderBackgroundLineSCYRowSelectAndMapWrap(t *testing.T) {
	// ly=0, scy=11 -> bgY=11, mapRow=1, rowY=3.
	mapBase := uint16(0x9800)
	src := fakeTileSource{}
	rowY := byte(3)
	src[mapBase+32+0] = 0
	src[mapBase+32+1] = 1
	base0 := uint16(0x8000+0*16) + uint16(rowY)*2
	src[base0] = 0x12
	src[base0+1] = 0x34
	base1 := uint16(0x8000+1*16) + uint16(rowY)*2
	src[base1] = 0x56
	src[base1+1] = 0x78
	out := RenderBackgroundLine(src, mapBase, true, 0, 11, 0)
	lo0, hi0 := byte(0x12), byte(0x34)
	for i := 0; i < 8; i++ {
		b := 7 - byte(i)
		want := ((hi0>>b)&1)<<1 | ((lo0 >> b) & 1)
		if out[i] != want {
			t.Fatalf("tile0 px %d got %d want %d", i, out[i], want)
		}
	}
	lo1, hi1 := byte(0x56), byte(0x78)
	for i := 0; i < 8; i++ {
		b := 7 - byte(i)
		want := ((hi1>>b)&1)<<1 | ((lo1 >> b) & 1)
		if out[8+i] != want {
			t.Fatalf("tile1 px %d got %d want %d", i, out[8+i], want)
		}
	}
}
