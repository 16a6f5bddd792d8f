package cpu

import "github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/bus"

func (c *CPU) regGet(idx byte) byte {
	switch idx {
	case 0:
		return c.B
	case 1:
		return c.C
	case 2:
		return c.D
	case 3:
		return c.E
	case 4:
		return c.H
	case 5:
		return c.L
	default:
		return c.A
	}
}

func (c *CPU) regSet(idx byte, v byte) {
	switch idx {
	case 0:
		c.B = v
	case 1:
		c.C = v
	case 2:
		c.D = v
	case 3:
		c.E = v
	case 4:
		c.H = v
	case 5:
		c.L = v
	default:
		c.A = v
	}
}

func add16(a, b uint16) (res uint16, h, cy bool) {
	r := uint32(a) + uint32(b)
	res = uint16(r)
	h = ((a & 0x0FFF) + (b & 0x0FFF)) > 0x0FFF
	cy = r > 0xFFFF
	return
}

// spAddOffset computes SP + a signed 8-bit displacement, with the quirky
// DMG flag rule: H/C are derived from the *unsigned* low-byte addition,
// not from the signed result. Shared by ADD SP,r8 and LD HL,SP+r8.
func (c *CPU) spAddOffset(imm byte) (res uint16, h, cy bool) {
	r8 := int8(imm)
	res = uint16(int32(c.SP) + int32(r8))
	h = (c.SP&0x0F)+uint16(imm&0x0F) > 0x0F
	cy = (c.SP&0xFF)+uint16(imm) > 0xFF
	return
}

func (c *CPU) aluApply(op byte, v byte) {
	switch op {
	case 0:
		res, z, n, h, cy := add8(c.A, v)
		c.A = res
		c.setZNHC(z, n, h, cy)
	case 1:
		res, z, n, h, cy := adc8(c.A, v, c.F&flagC != 0)
		c.A = res
		c.setZNHC(z, n, h, cy)
	case 2:
		res, z, n, h, cy := sub8(c.A, v)
		c.A = res
		c.setZNHC(z, n, h, cy)
	case 3:
		res, z, n, h, cy := sbc8(c.A, v, c.F&flagC != 0)
		c.A = res
		c.setZNHC(z, n, h, cy)
	case 4:
		res, z, n, h, cy := and8(c.A, v)
		c.A = res
		c.setZNHC(z, n, h, cy)
	case 5:
		res, z, n, h, cy := xor8(c.A, v)
		c.A = res
		c.setZNHC(z, n, h, cy)
	case 6:
		res, z, n, h, cy := or8(c.A, v)
		c.A = res
		c.setZNHC(z, n, h, cy)
	default: // CP: compare only, A unchanged
		z, n, h, cy := cp8(c.A, v)
		c.setZNHC(z, n, h, cy)
	}
}

// maxCallStackDepth bounds the debug call-stack shadow so a runaway or
// recursive program cannot grow it unboundedly.
const maxCallStackDepth = 64

func (c *CPU) pushCall(target uint16) {
	c.CallStack = append(c.CallStack, CallFrame{ReturnPC: c.PC, Target: target})
	if len(c.CallStack) > maxCallStackDepth {
		c.CallStack = c.CallStack[len(c.CallStack)-maxCallStackDepth:]
	}
}

func (c *CPU) popCall() {
	if len(c.CallStack) > 0 {
		c.CallStack = c.CallStack[:len(c.CallStack)-1]
	}
}

func (c *CPU) pushPC(b *bus.Bus) {
	c.SP -= 2
	c.write8(b, c.SP, byte(c.PC))
	c.write8(b, c.SP+1, byte(c.PC>>8))
}

func (c *CPU) popAddr(b *bus.Bus) uint16 {
	lo := uint16(b.Read(c.SP))
	hi := uint16(b.Read(c.SP + 1))
	c.SP += 2
	return lo | hi<<8
}

// execute evaluates the decoded opcode using whatever immediate/memory
// bytes the prior fetch states gathered (c.imm0/c.imm1/c.memVal0), mutating
// registers/PC/SP and, for the regular register/(HL) forms, setting
// c.pendingWB for the Writeback state to apply. It returns whether a
// conditional branch was taken.
func (c *CPU) execute(b *bus.Bus) bool {
	if c.cbMode {
		c.executeCB()
		return false
	}

	op := c.opcode
	x := op >> 6
	y := (op >> 3) & 7
	z := op & 7
	p := y >> 1
	q := y & 1
	imm16 := uint16(c.imm0) | uint16(c.imm1)<<8

	switch x {
	case 0:
		switch z {
		case 0:
			switch {
			case y == 0: // NOP
			case y == 1: // LD (a16),SP
				c.write8(b, imm16, byte(c.SP))
				c.write8(b, imm16+1, byte(c.SP>>8))
			case y == 2: // STOP: consumes its operand byte; no double-speed mode on DMG
			case y == 3: // JR d8
				c.PC = uint16(int32(c.PC) + int32(int8(c.imm0)))
			default: // JR cc,d8
				taken := c.checkCC(y - 4)
				if taken {
					c.PC = uint16(int32(c.PC) + int32(int8(c.imm0)))
				}
				return taken
			}
		case 1:
			if q == 0 {
				c.setRP(p, imm16)
			} else {
				res, h, cy := add16(c.getHL(), c.rp(p))
				c.setHL(res)
				c.F = c.F & flagZ
				if h {
					c.F |= flagH
				}
				if cy {
					c.F |= flagC
				}
			}
		case 2:
			addr := c.getHL()
			switch p {
			case 0:
				addr = c.getBC()
			case 1:
				addr = c.getDE()
			}
			if q == 0 {
				c.write8(b, addr, c.A)
			} else {
				c.A = b.Read(addr)
			}
			if p == 2 {
				c.setHL(c.getHL() + 1)
			} else if p == 3 {
				c.setHL(c.getHL() - 1)
			}
		case 3:
			if q == 0 {
				c.setRP(p, c.rp(p)+1)
			} else {
				c.setRP(p, c.rp(p)-1)
			}
		case 4:
			if y == 6 {
				res := c.memVal0 + 1
				c.applyZNH(res == 0, false, c.memVal0&0x0F == 0x0F)
				c.pendingWB = writeback{kind: wbMem8, addr: c.memAddr, val8: res}
			} else {
				v := c.regGet(y)
				res := v + 1
				c.applyZNH(res == 0, false, v&0x0F == 0x0F)
				c.regSet(y, res)
			}
		case 5:
			if y == 6 {
				res := c.memVal0 - 1
				c.applyZNH(res == 0, true, c.memVal0&0x0F == 0)
				c.pendingWB = writeback{kind: wbMem8, addr: c.memAddr, val8: res}
			} else {
				v := c.regGet(y)
				res := v - 1
				c.applyZNH(res == 0, true, v&0x0F == 0)
				c.regSet(y, res)
			}
		case 6:
			if y == 6 {
				c.pendingWB = writeback{kind: wbMem8, addr: c.getHL(), val8: c.imm0}
			} else {
				c.regSet(y, c.imm0)
			}
		default: // z==7
			switch y {
			case 0: // RLCA
				cy := c.A&0x80 != 0
				c.A = c.A<<1 | b2u8(cy)
				c.setZNHC(false, false, false, cy)
			case 1: // RRCA
				cy := c.A&0x01 != 0
				c.A = c.A>>1 | b2u8(cy)<<7
				c.setZNHC(false, false, false, cy)
			case 2: // RLA
				oldC := c.F&flagC != 0
				cy := c.A&0x80 != 0
				c.A = c.A<<1 | b2u8(oldC)
				c.setZNHC(false, false, false, cy)
			case 3: // RRA
				oldC := c.F&flagC != 0
				cy := c.A&0x01 != 0
				c.A = c.A>>1 | b2u8(oldC)<<7
				c.setZNHC(false, false, false, cy)
			case 4: // DAA
				c.daa()
			case 5: // CPL
				c.A = ^c.A
				c.F = (c.F & (flagZ | flagC)) | flagN | flagH
			case 6: // SCF
				c.F = (c.F & flagZ) | flagC
			default: // CCF
				newC := c.F&flagC == 0
				c.F = c.F & flagZ
				if newC {
					c.F |= flagC
				}
			}
		}
	case 1: // LD r,r' / LD r,(HL) / LD (HL),r / HALT
		if z == 6 && y == 6 {
			if c.cgbIgnoreNextHalt {
				c.cgbIgnoreNextHalt = false
			} else {
				c.halted.Load(true)
			}
		} else if z == 6 {
			c.regSet(y, c.memVal0)
		} else if y == 6 {
			c.pendingWB = writeback{kind: wbMem8, addr: c.getHL(), val8: c.regGet(z)}
		} else {
			c.regSet(y, c.regGet(z))
		}
	case 2: // ALU A,r[z]
		var v byte
		if z == 6 {
			v = c.memVal0
		} else {
			v = c.regGet(z)
		}
		c.aluApply(y, v)
	default: // x==3
		switch z {
		case 0:
			switch {
			case y < 4: // RET cc
				taken := c.checkCC(y)
				if taken {
					c.PC = c.popAddr(b)
					c.popCall()
				}
				return taken
			case y == 4: // LDH (a8),A
				c.write8(b, 0xFF00+uint16(c.imm0), c.A)
			case y == 5: // ADD SP,r8
				res, h, cy := c.spAddOffset(c.imm0)
				c.SP = res
				c.setZNHC(false, false, h, cy)
			case y == 6: // LDH A,(a8)
				c.A = b.Read(0xFF00 + uint16(c.imm0))
			default: // LD HL,SP+r8
				res, h, cy := c.spAddOffset(c.imm0)
				c.setHL(res)
				c.setZNHC(false, false, h, cy)
			}
		case 1:
			if q == 0 {
				c.setRP2(p, c.popAddr(b))
			} else {
				switch p {
				case 0: // RET
					c.PC = c.popAddr(b)
					c.popCall()
				case 1: // RETI
					c.PC = c.popAddr(b)
					c.popCall()
					c.ime.Reset(true)
				case 2: // JP HL
					c.PC = c.getHL()
				default: // LD SP,HL
					c.SP = c.getHL()
				}
			}
		case 2:
			switch {
			case y < 4: // JP cc,a16
				taken := c.checkCC(y)
				if taken {
					c.PC = imm16
				}
				return taken
			case y == 4: // LD (C),A
				c.write8(b, 0xFF00+uint16(c.C), c.A)
			case y == 5: // LD (a16),A
				c.write8(b, imm16, c.A)
			case y == 6: // LD A,(C)
				c.A = b.Read(0xFF00 + uint16(c.C))
			default: // LD A,(a16)
				c.A = b.Read(imm16)
			}
		case 3:
			switch y {
			case 0: // JP a16
				c.PC = imm16
			case 6: // DI
				c.ime.Reset(false)
			default: // EI
				c.RequestEI()
			}
		case 4: // CALL cc,a16
			taken := c.checkCC(y)
			if taken {
				c.pushPC(b)
				c.pushCall(imm16)
				c.PC = imm16
			}
			return taken
		case 5:
			if q == 0 {
				c.SP -= 2
				v := c.rp2(p)
				c.write8(b, c.SP, byte(v))
				c.write8(b, c.SP+1, byte(v>>8))
			} else { // CALL a16 (p==0 only; others filtered illegal)
				c.pushPC(b)
				c.pushCall(imm16)
				c.PC = imm16
			}
		case 6: // ALU A,d8
			c.aluApply(y, c.imm0)
		default: // RST y*8
			c.pushPC(b)
			target := uint16(y) * 8
			c.pushCall(target)
			c.PC = target
		}
	}
	return false
}

func b2u8(v bool) byte {
	if v {
		return 1
	}
	return 0
}

func (c *CPU) daa() {
	a := c.A
	var adjust byte
	carry := c.F&flagC != 0
	if c.F&flagH != 0 || (c.F&flagN == 0 && a&0x0F > 9) {
		adjust |= 0x06
	}
	if carry || (c.F&flagN == 0 && a > 0x99) {
		adjust |= 0x60
		carry = true
	}
	if c.F&flagN != 0 {
		a -= adjust
	} else {
		a += adjust
	}
	c.A = a
	c.setZNHC(a == 0, c.F&flagN != 0, false, carry)
}

// executeCB evaluates the byte following a 0xCB prefix: rotates/shifts (x=0),
// BIT (x=1), RES (x=2), SET (x=3), each targeting r[z] (memVal0/pendingWB
// stand in for (HL) when z==6).
func (c *CPU) executeCB() {
	op := c.cbOpcode
	x := op >> 6
	y := (op >> 3) & 7
	z := op & 7

	get := func() byte {
		if z == 6 {
			return c.memVal0
		}
		return c.regGet(z)
	}
	set := func(v byte) {
		if z == 6 {
			c.pendingWB = writeback{kind: wbMem8, addr: c.memAddr, val8: v}
		} else {
			c.regSet(z, v)
		}
	}

	v := get()
	switch x {
	case 0: // rotates/shifts
		var res byte
		var cy bool
		switch y {
		case 0: // RLC
			cy = v&0x80 != 0
			res = v<<1 | b2u8(cy)
		case 1: // RRC
			cy = v&0x01 != 0
			res = v>>1 | b2u8(cy)<<7
		case 2: // RL
			oldC := c.F&flagC != 0
			cy = v&0x80 != 0
			res = v<<1 | b2u8(oldC)
		case 3: // RR
			oldC := c.F&flagC != 0
			cy = v&0x01 != 0
			res = v>>1 | b2u8(oldC)<<7
		case 4: // SLA
			cy = v&0x80 != 0
			res = v << 1
		case 5: // SRA
			cy = v&0x01 != 0
			res = v>>1 | (v & 0x80)
		case 6: // SWAP
			res = v<<4 | v>>4
			cy = false
		default: // SRL
			cy = v&0x01 != 0
			res = v >> 1
		}
		set(res)
		c.setZNHC(res == 0, false, false, cy)
	case 1: // BIT y,r[z]
		c.applyZNH(v&(1<<y) == 0, false, true)
	case 2: // RES y,r[z]
		set(v &^ (1 << y))
	default: // SET y,r[z]
		set(v | (1 << y))
	}
}
