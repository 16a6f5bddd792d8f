package ppu

// renderTileRow walks a tile map row, fetching and draining whole tiles
// through a rowFetcher/pixelQueue pair, and writes color indices into out[startX:160].
// discard pixels are popped and thrown away before the first one lands in
// out, which is how BG scrolling (SCX) clips a partial leading tile; the
// window layer never discards, since WX already marks its first on-screen
// pixel exactly.
func renderTileRow(src TileSource, mapBase uint16, unsigned8000 bool, mapRow uint16, startTileCol uint16, discard int, rowY byte, startX int) [160]byte {
	var out [160]byte

	tileCol := startTileCol
	mapAddr := mapBase + mapRow*32 + tileCol

	var q pixelQueue
	f := newRowFetcher(src, &q)
	f.Seek(mapBase, unsigned8000, mapAddr, rowY)
	f.FetchRow()
	for i := 0; i < discard; i++ {
		_, _ = q.Pop()
	}

	for x := startX; x < 160; x++ {
		if q.Len() == 0 {
			tileCol = (tileCol + 1) & 31
			mapAddr = mapBase + mapRow*32 + tileCol
			f.Seek(mapBase, unsigned8000, mapAddr, rowY)
			f.FetchRow()
		}
		px, _ := q.Pop()
		out[x] = px
	}
	return out
}

// RenderBackgroundLine renders 160 BG color indices for scanline ly, scrolled
// by scx/scy, per spec §4.6.
func RenderBackgroundLine(src TileSource, mapBase uint16, unsigned8000 bool, scx, scy, ly byte) [160]byte {
	bgY := uint16(ly) + uint16(scy)
	rowY := byte(bgY & 7)
	mapRow := (bgY >> 3) & 31

	tileCol := (uint16(scx) >> 3) & 31
	discard := int(scx & 7)

	return renderTileRow(src, mapBase, unsigned8000, mapRow, tileCol, discard, rowY, 0)
}

// RenderWindowLine renders the window layer for a scanline whose vertical
// position within the window is winLine, starting at screen column wxStart
// (WX-7). Columns left of wxStart stay 0 so the caller can blend against BG.
func RenderWindowLine(src TileSource, mapBase uint16, unsigned8000 bool, wxStart int, winLine byte) [160]byte {
	if wxStart >= 160 {
		return [160]byte{}
	}
	startX := wxStart
	if startX < 0 {
		startX = 0
	}
	mapRow := (uint16(winLine) >> 3) & 31
	rowY := winLine & 7

	return renderTileRow(src, mapBase, unsigned8000, mapRow, 0, 0, rowY, startX)
}
