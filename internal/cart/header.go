package cart

import "strings"

// Header is a read-only decode of the cartridge header, kept for display
// purposes (window title, compat tables) — the core only consumes the
// cartridge-type byte (spec §6: "No further header fields are consumed").
// Grounded on the teacher's internal/cart/header.go.
type Header struct {
	Title    string
	CartType byte
}

// ParseHeader decodes the title and cartridge-type fields.
func ParseHeader(rom []byte) *Header {
	h := &Header{}
	if len(rom) > 0x143 {
		h.Title = strings.TrimRight(string(rom[0x134:0x144]), "\x00")
	}
	if len(rom) > headerMBCTypeOffset {
		h.CartType = rom[headerMBCTypeOffset]
	}
	return h
}
