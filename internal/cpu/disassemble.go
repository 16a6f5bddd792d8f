package cpu

import (
	"fmt"
	"strconv"
	"strings"
)

// Disassemble renders the instruction at addr as text and returns its
// length in bytes, reading through read rather than the live bus so
// callers can disassemble ahead of the program counter without side
// effects (spec §4.9 supplement, grounded on original_source's debugger).
// The returned text substitutes the decoded opcode's placeholder token
// (d8/d16/a8/a16/r8) with the actual operand value read from memory.
func Disassemble(addr uint16, read func(uint16) byte) (text string, size int) {
	op := read(addr)
	if op == 0xCB {
		sub := read(addr + 1)
		return decodeCB(sub).mnemonic, 2
	}
	info := decode(op)
	if info.illegal {
		return fmt.Sprintf("DB %#02x ; illegal", op), 1
	}
	size = 1 + info.immBytes
	switch info.immBytes {
	case 0:
		return info.mnemonic, size
	case 1:
		return substituteImm8(info.mnemonic, read(addr+1)), size
	default:
		lo, hi := read(addr+1), read(addr+2)
		return substituteImm16(info.mnemonic, uint16(hi)<<8|uint16(lo)), size
	}
}

// substituteImm8 replaces the single-byte placeholder token in an opcode's
// mnemonic (d8, r8, or a8) with its actual operand value. r8 is a signed
// PC-relative displacement; the others print as unsigned hex.
func substituteImm8(mnemonic string, v byte) string {
	switch {
	case strings.Contains(mnemonic, "r8"):
		return strings.Replace(mnemonic, "r8", strconv.Itoa(int(int8(v))), 1)
	case strings.Contains(mnemonic, "a8"):
		return strings.Replace(mnemonic, "a8", fmt.Sprintf("%#02x", v), 1)
	default:
		return strings.Replace(mnemonic, "d8", fmt.Sprintf("%#02x", v), 1)
	}
}

// substituteImm16 replaces the two-byte placeholder token (d16 or a16)
// with its actual little-endian operand value.
func substituteImm16(mnemonic string, v uint16) string {
	if strings.Contains(mnemonic, "a16") {
		return strings.Replace(mnemonic, "a16", fmt.Sprintf("%#04x", v), 1)
	}
	return strings.Replace(mnemonic, "d16", fmt.Sprintf("%#04x", v), 1)
}
