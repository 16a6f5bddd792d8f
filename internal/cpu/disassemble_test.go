package cpu_test

import (
	"testing"

	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/cpu"
)

func readerOf(bytes ...byte) func(uint16) byte {
	return func(addr uint16) byte {
		if int(addr) < len(bytes) {
			return bytes[addr]
		}
		return 0
	}
}

func TestDisassembleNoOperand(t *testing.T) {
	text, size := cpu.Disassemble(0, readerOf(0x00))
	if text != "NOP" || size != 1 {
		t.Fatalf("Disassemble(NOP) = (%q, %d), want (\"NOP\", 1)", text, size)
	}
}

func TestDisassembleSubstitutesImmediate8(t *testing.T) {
	text, size := cpu.Disassemble(0, readerOf(0x06, 0x2A)) // LD B,d8
	if text != "LD B,0x2a" || size != 2 {
		t.Fatalf("Disassemble(LD B,d8) = (%q, %d), want (\"LD B,0x2a\", 2)", text, size)
	}
}

func TestDisassembleSubstitutesImmediate16(t *testing.T) {
	text, size := cpu.Disassemble(0, readerOf(0x01, 0x34, 0x12)) // LD BC,d16
	if text != "LD BC,0x1234" || size != 3 {
		t.Fatalf("Disassemble(LD BC,d16) = (%q, %d), want (\"LD BC,0x1234\", 3)", text, size)
	}
}

func TestDisassembleSignedRelativeDisplacement(t *testing.T) {
	text, _ := cpu.Disassemble(0, readerOf(0x18, 0xFE)) // JR r8, -2
	if text != "JR -2" {
		t.Fatalf("Disassemble(JR r8) = %q, want \"JR -2\"", text)
	}
}

func TestDisassembleCBPrefixed(t *testing.T) {
	text, size := cpu.Disassemble(0, readerOf(0xCB, 0x87)) // RES 0,A
	if text != "RES 0,A" || size != 2 {
		t.Fatalf("Disassemble(CB RES 0,A) = (%q, %d), want (\"RES 0,A\", 2)", text, size)
	}
}

func TestDisassembleIllegalOpcode(t *testing.T) {
	text, size := cpu.Disassemble(0, readerOf(0xD3))
	if text != "DB 0xd3 ; illegal" || size != 1 {
		t.Fatalf("Disassemble(illegal) = (%q, %d), want (\"DB 0xd3 ; illegal\", 1)", text, size)
	}
}
