// Package cart loads a cartridge image into 16 KiB ROM banks and parses the
// header byte that selects the memory-bank-controller flavor (spec §3, §4.2,
// §6). Bank *selection* and the MBC control-write semantics live on the bus
// (internal/bus), which per spec §3 "owns... the ROM-bank selector index" —
// this package only owns the immutable bank storage. Grounded on the
// teacher's internal/cart/{cart.go,rom_only.go,header.go}, narrowed to the
// plain-ROM and basic-banked MBCs spec.md accepts (Non-goal: "memory-bank
// controllers beyond the simplest").
package cart

import (
	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/fault"
	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/mem"
)

const bankSize = 0x4000 // 16 KiB

// MBC type byte values this core accepts, per spec §4.2.
const (
	TypeROMOnly    byte = 0x00
	TypeMBC1       byte = 0x01
	TypeMBC1RAM    byte = 0x02
	TypeMBC1RAMBat byte = 0x03
)

// headerMBCTypeOffset is the ROM offset carrying the cartridge-type byte.
const headerMBCTypeOffset = 0x147

// cgbFlagOffset/cgbOnlyFlag: a CGB-only cartridge (spec's CGB Non-goal)
// announces itself at 0x143 with 0xC0; DMG-compatible carts use other values.
const (
	cgbFlagOffset = 0x143
	cgbOnlyFlag   = 0xC0
)

// Cartridge holds the cartridge image chunked into fixed banks plus the
// always-present 8 KiB external RAM region (spec §3: "external RAM (8 KiB,
// always present in this core)").
type Cartridge struct {
	MBCType byte
	Banked  bool // true for 0x01-0x03 (basic banked); false for 0x00 (ROM only)

	bank0 *mem.Bytes
	banks []*mem.Bytes // banks[0] is bank index 1, banks[i] is bank index i+1

	RAM *mem.Bytes // 8 KiB external RAM, always allocated
}

// Load chunks rom into 16 KiB banks and validates the header MBC-type byte.
// Returns an UnsupportedMBC fault for any type byte other than 0x00..0x03.
func Load(rom []byte) (*Cartridge, error) {
	if len(rom) < headerMBCTypeOffset+1 {
		return nil, fault.Newf(fault.UnsupportedMBC, headerMBCTypeOffset, "ROM too small to contain header")
	}
	if rom[cgbFlagOffset] == cgbOnlyFlag {
		return nil, fault.Newf(fault.UnsupportedCGB, cgbFlagOffset, "cartridge requires CGB hardware")
	}
	t := rom[headerMBCTypeOffset]
	switch t {
	case TypeROMOnly, TypeMBC1, TypeMBC1RAM, TypeMBC1RAMBat:
	default:
		return nil, fault.Newf(fault.UnsupportedMBC, headerMBCTypeOffset, "cartridge type %#02x not supported", t)
	}

	n := (len(rom) + bankSize - 1) / bankSize
	if n < 2 {
		n = 2
	}
	padded := make([]byte, n*bankSize)
	copy(padded, rom)

	c := &Cartridge{
		MBCType: t,
		Banked:  t != TypeROMOnly,
		bank0:   mem.WrapBytes(padded[:bankSize]),
		RAM:     mem.NewBytes(0x2000),
	}
	for i := 1; i < n; i++ {
		c.banks = append(c.banks, mem.WrapBytes(padded[i*bankSize:(i+1)*bankSize]))
	}
	return c, nil
}

// ReadBank0 reads from the fixed 0x0000-0x3FFF bank.
func (c *Cartridge) ReadBank0(offset int) byte {
	v, _ := c.bank0.Read(offset)
	return v
}

// ReadBank reads from switchable bank n (n>=1), clamping to the available
// bank count the way real cartridges mirror short images.
func (c *Cartridge) ReadBank(n int, offset int) byte {
	if len(c.banks) == 0 {
		return 0xFF
	}
	idx := (n - 1) % len(c.banks)
	v, _ := c.banks[idx].Read(offset)
	return v
}

// BankCount returns the number of switchable banks (banks 1..N).
func (c *Cartridge) BankCount() int { return len(c.banks) }
