// Package cpu implements the SM83 (LR35902) instruction execution engine:
// fetch, decode, condition evaluation and the register/stack effects, with
// architectural correctness only. Cycle timing is out of scope.
package cpu

import (
	"github.com/dmgtools/sm83/internal/mem"
)

// StepResult reports the outcome of one successfully decoded step.
type StepResult struct {
	PC     uint16 // program counter after the instruction
	Halted bool   // the CPU has reached, or remains in, the halt state
}

// CPU owns the register file and executes instructions against a memory
// image. One instance is single-threaded; independent instances share
// nothing.
type CPU struct {
	Regs Registers

	ime       bool
	eiPending bool // EI takes effect after the following instruction
	halted    bool
	fault     error // latched decode failure, cleared by Reset

	mem *mem.Image
}

// New creates a CPU in the post-boot register state, executing from m.
func New(m *mem.Image) *CPU {
	c := &CPU{mem: m}
	c.Regs.Reset()
	return c
}

// Reset restores the post-boot register state and clears the halt latch,
// interrupt enable and any latched decode fault. The memory image is left
// untouched, stack writes included.
func (c *CPU) Reset() {
	c.Regs.Reset()
	c.ime = false
	c.eiPending = false
	c.halted = false
	c.fault = nil
}

// Image exposes the underlying memory image for inspection.
func (c *CPU) Image() *mem.Image { return c.mem }

// Halted reports whether the CPU has reached the halt state.
func (c *CPU) Halted() bool { return c.halted }

func (c *CPU) setZNHC(z, n, h, carry bool) {
	c.Regs.F = Flags{Z: z, N: n, H: h, C: carry}
}

func (c *CPU) add8(a, b byte) (res byte, z, n, h, cy bool) {
	r := uint16(a) + uint16(b)
	res = byte(r)
	z = res == 0
	n = false
	h = (a&0x0F)+(b&0x0F) > 0x0F
	cy = r > 0xFF
	return
}

func (c *CPU) adc8(a, b byte, carryIn bool) (res byte, z, n, h, cy bool) {
	ci := byte(0)
	if carryIn {
		ci = 1
	}
	r := uint16(a) + uint16(b) + uint16(ci)
	res = byte(r)
	z = res == 0
	n = false
	h = (a&0x0F)+(b&0x0F)+ci > 0x0F
	cy = r > 0xFF
	return
}

func (c *CPU) sub8(a, b byte) (res byte, z, n, h, cy bool) {
	res = a - b
	z = res == 0
	n = true
	h = (a & 0x0F) < (b & 0x0F)
	cy = a < b
	return
}

func (c *CPU) sbc8(a, b byte, carryIn bool) (res byte, z, n, h, cy bool) {
	ci := byte(0)
	if carryIn {
		ci = 1
	}
	r := int16(a) - int16(b) - int16(ci)
	res = byte(r)
	z = res == 0
	n = true
	h = (a & 0x0F) < (b&0x0F)+ci
	cy = int16(a) < int16(b)+int16(ci)
	return
}

func (c *CPU) and8(a, b byte) (res byte, z, n, h, cy bool) {
	res = a & b
	z = res == 0
	n = false
	h = true
	cy = false
	return
}

func (c *CPU) xor8(a, b byte) (res byte, z, n, h, cy bool) {
	res = a ^ b
	z = res == 0
	n = false
	h = false
	cy = false
	return
}

func (c *CPU) or8(a, b byte) (res byte, z, n, h, cy bool) {
	res = a | b
	z = res == 0
	n = false
	h = false
	cy = false
	return
}

func (c *CPU) cp8(a, b byte) (z, n, h, cy bool) {
	_, z, n, h, cy = c.sub8(a, b)
	return
}

func (c *CPU) read8(addr uint16) byte     { return c.mem.Read(addr) }
func (c *CPU) write8(addr uint16, v byte) { c.mem.Write(addr, v) }

func (c *CPU) fetch8() byte {
	b := c.read8(c.Regs.PC)
	c.Regs.PC++
	return b
}

func (c *CPU) fetch16() uint16 {
	lo := uint16(c.fetch8())
	hi := uint16(c.fetch8())
	return lo | hi<<8
}

func (c *CPU) push16(v uint16) {
	c.Regs.SP -= 2
	c.mem.Write16(c.Regs.SP, v)
}

func (c *CPU) pop16() uint16 {
	v := c.mem.Read16(c.Regs.SP)
	c.Regs.SP += 2
	return v
}

// reg8 reads the 8-bit register selected by the standard r encoding
// (0=B 1=C 2=D 3=E 4=H 5=L 6=(HL) 7=A).
func (c *CPU) reg8(idx byte) byte {
	switch idx & 7 {
	case 0:
		return c.Regs.B
	case 1:
		return c.Regs.C
	case 2:
		return c.Regs.D
	case 3:
		return c.Regs.E
	case 4:
		return c.Regs.H
	case 5:
		return c.Regs.L
	case 6:
		return c.read8(c.Regs.HL())
	default:
		return c.Regs.A
	}
}

func (c *CPU) setReg8(idx byte, v byte) {
	switch idx & 7 {
	case 0:
		c.Regs.B = v
	case 1:
		c.Regs.C = v
	case 2:
		c.Regs.D = v
	case 3:
		c.Regs.E = v
	case 4:
		c.Regs.H = v
	case 5:
		c.Regs.L = v
	case 6:
		c.write8(c.Regs.HL(), v)
	default:
		c.Regs.A = v
	}
}

// serviceInterrupt dispatches the lowest pending enabled interrupt, if any.
// IE lives at 0xFFFF and IF at 0xFF0F in the image; nothing raises IF here
// except program writes.
func (c *CPU) serviceInterrupt() bool {
	ie := c.read8(0xFFFF)
	iflag := c.read8(0xFF0F) & 0x1F
	pending := ie & iflag
	if pending == 0 {
		return false
	}
	// priority order VBlank(0), LCD STAT(1), Timer(2), Serial(3), Joypad(4)
	var bit uint
	for bit = 0; bit < 5; bit++ {
		if pending&(1<<bit) != 0 {
			break
		}
	}
	c.write8(0xFF0F, (iflag&^(1<<bit))&0x1F)
	c.halted = false
	c.ime = false
	c.push16(c.Regs.PC)
	c.Regs.PC = 0x0040 + uint16(bit)*8
	return true
}

// Step advances the machine by exactly one instruction (or one interrupt
// dispatch) and reports the new PC. An opcode byte with no defined encoding
// returns a *DecodeError; the fault is latched, so no further instruction
// executes until Reset. Stepping a halted CPU is not an error: it wakes only
// on a pending enabled interrupt, otherwise reports the same halted state.
func (c *CPU) Step() (StepResult, error) {
	if c.fault != nil {
		return StepResult{PC: c.Regs.PC}, c.fault
	}

	if c.halted {
		if c.ime {
			if c.serviceInterrupt() {
				return StepResult{PC: c.Regs.PC}, nil
			}
			return StepResult{PC: c.Regs.PC, Halted: true}, nil
		}
		// wake without servicing when an enabled interrupt is pending
		if c.read8(0xFFFF)&c.read8(0xFF0F)&0x1F != 0 {
			c.halted = false
		} else {
			return StepResult{PC: c.Regs.PC, Halted: true}, nil
		}
	}

	if c.ime && c.serviceInterrupt() {
		return StepResult{PC: c.Regs.PC}, nil
	}

	// EI enables interrupts only after the instruction that follows it, so
	// the promotion sits after the service check above.
	if c.eiPending {
		c.ime = true
		c.eiPending = false
	}

	opAddr := c.Regs.PC
	op := c.fetch8()
	switch op {
	case 0x00: // NOP

	case 0x10: // STOP, treated as HALT
		c.halted = true

	// LD r,d8
	case 0x06:
		c.Regs.B = c.fetch8()
	case 0x0E:
		c.Regs.C = c.fetch8()
	case 0x16:
		c.Regs.D = c.fetch8()
	case 0x1E:
		c.Regs.E = c.fetch8()
	case 0x26:
		c.Regs.H = c.fetch8()
	case 0x2E:
		c.Regs.L = c.fetch8()
	case 0x3E:
		c.Regs.A = c.fetch8()
	case 0x36: // LD (HL),d8
		c.write8(c.Regs.HL(), c.fetch8())

	// LD r,r' (0x76 is HALT, handled below)
	case 0x40, 0x41, 0x42, 0x43, 0x44, 0x45, 0x46, 0x47,
		0x48, 0x49, 0x4A, 0x4B, 0x4C, 0x4D, 0x4E, 0x4F,
		0x50, 0x51, 0x52, 0x53, 0x54, 0x55, 0x56, 0x57,
		0x58, 0x59, 0x5A, 0x5B, 0x5C, 0x5D, 0x5E, 0x5F,
		0x60, 0x61, 0x62, 0x63, 0x64, 0x65, 0x66, 0x67,
		0x68, 0x69, 0x6A, 0x6B, 0x6C, 0x6D, 0x6E, 0x6F,
		0x70, 0x71, 0x72, 0x73, 0x74, 0x75, 0x77,
		0x78, 0x79, 0x7A, 0x7B, 0x7C, 0x7D, 0x7E, 0x7F:
		c.setReg8(op>>3, c.reg8(op))

	case 0x76: // HALT
		c.halted = true

	// 16-bit immediate loads
	case 0x01:
		c.Regs.SetBC(c.fetch16())
	case 0x11:
		c.Regs.SetDE(c.fetch16())
	case 0x21:
		c.Regs.SetHL(c.fetch16())
	case 0x31:
		c.Regs.SP = c.fetch16()
	case 0x08: // LD (a16),SP
		c.mem.Write16(c.fetch16(), c.Regs.SP)

	// A to/from memory through register pairs
	case 0x02:
		c.write8(c.Regs.BC(), c.Regs.A)
	case 0x12:
		c.write8(c.Regs.DE(), c.Regs.A)
	case 0x0A:
		c.Regs.A = c.read8(c.Regs.BC())
	case 0x1A:
		c.Regs.A = c.read8(c.Regs.DE())
	case 0x22: // LD (HL+),A
		hl := c.Regs.HL()
		c.write8(hl, c.Regs.A)
		c.Regs.SetHL(hl + 1)
	case 0x2A: // LD A,(HL+)
		hl := c.Regs.HL()
		c.Regs.A = c.read8(hl)
		c.Regs.SetHL(hl + 1)
	case 0x32: // LD (HL-),A
		hl := c.Regs.HL()
		c.write8(hl, c.Regs.A)
		c.Regs.SetHL(hl - 1)
	case 0x3A: // LD A,(HL-)
		hl := c.Regs.HL()
		c.Regs.A = c.read8(hl)
		c.Regs.SetHL(hl - 1)

	// high-page loads
	case 0xE0: // LDH (a8),A
		c.write8(0xFF00+uint16(c.fetch8()), c.Regs.A)
	case 0xF0: // LDH A,(a8)
		c.Regs.A = c.read8(0xFF00 + uint16(c.fetch8()))
	case 0xE2: // LD (C),A
		c.write8(0xFF00+uint16(c.Regs.C), c.Regs.A)
	case 0xF2: // LD A,(C)
		c.Regs.A = c.read8(0xFF00 + uint16(c.Regs.C))

	case 0xEA: // LD (a16),A
		c.write8(c.fetch16(), c.Regs.A)
	case 0xFA: // LD A,(a16)
		c.Regs.A = c.read8(c.fetch16())

	// accumulator rotates: Z is always cleared, unlike the CB forms
	case 0x07: // RLCA
		bit7 := c.Regs.A >> 7
		c.Regs.A = c.Regs.A<<1 | bit7
		c.setZNHC(false, false, false, bit7 == 1)
	case 0x0F: // RRCA
		bit0 := c.Regs.A & 1
		c.Regs.A = c.Regs.A>>1 | bit0<<7
		c.setZNHC(false, false, false, bit0 == 1)
	case 0x17: // RLA
		bit7 := c.Regs.A >> 7
		carry := byte(0)
		if c.Regs.F.C {
			carry = 1
		}
		c.Regs.A = c.Regs.A<<1 | carry
		c.setZNHC(false, false, false, bit7 == 1)
	case 0x1F: // RRA
		bit0 := c.Regs.A & 1
		carry := byte(0)
		if c.Regs.F.C {
			carry = 1
		}
		c.Regs.A = c.Regs.A>>1 | carry<<7
		c.setZNHC(false, false, false, bit0 == 1)

	case 0x27: // DAA
		a := c.Regs.A
		carry := c.Regs.F.C
		if !c.Regs.F.N { // after addition
			if carry || a > 0x99 {
				a += 0x60
				carry = true
			}
			if c.Regs.F.H || a&0x0F > 0x09 {
				a += 0x06
			}
		} else { // after subtraction
			if carry {
				a -= 0x60
			}
			if c.Regs.F.H {
				a -= 0x06
			}
		}
		c.Regs.A = a
		c.setZNHC(a == 0, c.Regs.F.N, false, carry)
	case 0x2F: // CPL
		c.Regs.A = ^c.Regs.A
		c.Regs.F.N = true
		c.Regs.F.H = true
	case 0x37: // SCF
		c.Regs.F = Flags{Z: c.Regs.F.Z, C: true}
	case 0x3F: // CCF
		c.Regs.F = Flags{Z: c.Regs.F.Z, C: !c.Regs.F.C}

	// INC r: carry is preserved, half-carry out of bit 3
	case 0x04:
		old := c.Regs.B
		c.Regs.B++
		c.setZNHC(c.Regs.B == 0, false, old&0x0F == 0x0F, c.Regs.F.C)
	case 0x0C:
		old := c.Regs.C
		c.Regs.C++
		c.setZNHC(c.Regs.C == 0, false, old&0x0F == 0x0F, c.Regs.F.C)
	case 0x14:
		old := c.Regs.D
		c.Regs.D++
		c.setZNHC(c.Regs.D == 0, false, old&0x0F == 0x0F, c.Regs.F.C)
	case 0x1C:
		old := c.Regs.E
		c.Regs.E++
		c.setZNHC(c.Regs.E == 0, false, old&0x0F == 0x0F, c.Regs.F.C)
	case 0x24:
		old := c.Regs.H
		c.Regs.H++
		c.setZNHC(c.Regs.H == 0, false, old&0x0F == 0x0F, c.Regs.F.C)
	case 0x2C:
		old := c.Regs.L
		c.Regs.L++
		c.setZNHC(c.Regs.L == 0, false, old&0x0F == 0x0F, c.Regs.F.C)
	case 0x3C:
		old := c.Regs.A
		c.Regs.A++
		c.setZNHC(c.Regs.A == 0, false, old&0x0F == 0x0F, c.Regs.F.C)
	case 0x34: // INC (HL)
		addr := c.Regs.HL()
		old := c.read8(addr)
		v := old + 1
		c.write8(addr, v)
		c.setZNHC(v == 0, false, old&0x0F == 0x0F, c.Regs.F.C)

	// DEC r: carry preserved, half-borrow when the low nibble was zero
	case 0x05:
		old := c.Regs.B
		c.Regs.B--
		c.setZNHC(c.Regs.B == 0, true, old&0x0F == 0x00, c.Regs.F.C)
	case 0x0D:
		old := c.Regs.C
		c.Regs.C--
		c.setZNHC(c.Regs.C == 0, true, old&0x0F == 0x00, c.Regs.F.C)
	case 0x15:
		old := c.Regs.D
		c.Regs.D--
		c.setZNHC(c.Regs.D == 0, true, old&0x0F == 0x00, c.Regs.F.C)
	case 0x1D:
		old := c.Regs.E
		c.Regs.E--
		c.setZNHC(c.Regs.E == 0, true, old&0x0F == 0x00, c.Regs.F.C)
	case 0x25:
		old := c.Regs.H
		c.Regs.H--
		c.setZNHC(c.Regs.H == 0, true, old&0x0F == 0x00, c.Regs.F.C)
	case 0x2D:
		old := c.Regs.L
		c.Regs.L--
		c.setZNHC(c.Regs.L == 0, true, old&0x0F == 0x00, c.Regs.F.C)
	case 0x3D:
		old := c.Regs.A
		c.Regs.A--
		c.setZNHC(c.Regs.A == 0, true, old&0x0F == 0x00, c.Regs.F.C)
	case 0x35: // DEC (HL)
		addr := c.Regs.HL()
		old := c.read8(addr)
		v := old - 1
		c.write8(addr, v)
		c.setZNHC(v == 0, true, old&0x0F == 0x00, c.Regs.F.C)

	// 16-bit INC/DEC: no flags
	case 0x03:
		c.Regs.SetBC(c.Regs.BC() + 1)
	case 0x13:
		c.Regs.SetDE(c.Regs.DE() + 1)
	case 0x23:
		c.Regs.SetHL(c.Regs.HL() + 1)
	case 0x33:
		c.Regs.SP++
	case 0x0B:
		c.Regs.SetBC(c.Regs.BC() - 1)
	case 0x1B:
		c.Regs.SetDE(c.Regs.DE() - 1)
	case 0x2B:
		c.Regs.SetHL(c.Regs.HL() - 1)
	case 0x3B:
		c.Regs.SP--

	// ADD HL,rr: Z preserved, half-carry out of bit 11
	case 0x09:
		c.addHL(c.Regs.BC())
	case 0x19:
		c.addHL(c.Regs.DE())
	case 0x29:
		c.addHL(c.Regs.HL())
	case 0x39:
		c.addHL(c.Regs.SP)

	// ALU A,r for all eight operations
	case 0x80, 0x81, 0x82, 0x83, 0x84, 0x85, 0x86, 0x87,
		0x88, 0x89, 0x8A, 0x8B, 0x8C, 0x8D, 0x8E, 0x8F,
		0x90, 0x91, 0x92, 0x93, 0x94, 0x95, 0x96, 0x97,
		0x98, 0x99, 0x9A, 0x9B, 0x9C, 0x9D, 0x9E, 0x9F,
		0xA0, 0xA1, 0xA2, 0xA3, 0xA4, 0xA5, 0xA6, 0xA7,
		0xA8, 0xA9, 0xAA, 0xAB, 0xAC, 0xAD, 0xAE, 0xAF,
		0xB0, 0xB1, 0xB2, 0xB3, 0xB4, 0xB5, 0xB6, 0xB7,
		0xB8, 0xB9, 0xBA, 0xBB, 0xBC, 0xBD, 0xBE, 0xBF:
		c.alu(op>>3&7, c.reg8(op))

	// ALU A,d8
	case 0xC6, 0xCE, 0xD6, 0xDE, 0xE6, 0xEE, 0xF6, 0xFE:
		c.alu(op>>3&7, c.fetch8())

	// jumps
	case 0xC3: // JP a16
		c.Regs.PC = c.fetch16()
	case 0xE9: // JP HL
		c.Regs.PC = c.Regs.HL()
	case 0xC2: // JP NZ,a16
		addr := c.fetch16()
		if !c.Regs.F.Z {
			c.Regs.PC = addr
		}
	case 0xCA: // JP Z,a16
		addr := c.fetch16()
		if c.Regs.F.Z {
			c.Regs.PC = addr
		}
	case 0xD2: // JP NC,a16
		addr := c.fetch16()
		if !c.Regs.F.C {
			c.Regs.PC = addr
		}
	case 0xDA: // JP C,a16
		addr := c.fetch16()
		if c.Regs.F.C {
			c.Regs.PC = addr
		}

	// relative jumps: target is the address after the displacement byte
	// plus the sign-extended displacement, wrapping mod 65536
	case 0x18: // JR r8
		off := int8(c.fetch8())
		c.Regs.PC = uint16(int32(c.Regs.PC) + int32(off))
	case 0x20: // JR NZ,r8
		off := int8(c.fetch8())
		if !c.Regs.F.Z {
			c.Regs.PC = uint16(int32(c.Regs.PC) + int32(off))
		}
	case 0x28: // JR Z,r8
		off := int8(c.fetch8())
		if c.Regs.F.Z {
			c.Regs.PC = uint16(int32(c.Regs.PC) + int32(off))
		}
	case 0x30: // JR NC,r8
		off := int8(c.fetch8())
		if !c.Regs.F.C {
			c.Regs.PC = uint16(int32(c.Regs.PC) + int32(off))
		}
	case 0x38: // JR C,r8
		off := int8(c.fetch8())
		if c.Regs.F.C {
			c.Regs.PC = uint16(int32(c.Regs.PC) + int32(off))
		}

	// calls: the operand is always fetched, the stack only touched when taken
	case 0xCD: // CALL a16
		addr := c.fetch16()
		c.push16(c.Regs.PC)
		c.Regs.PC = addr
	case 0xC4: // CALL NZ,a16
		addr := c.fetch16()
		if !c.Regs.F.Z {
			c.push16(c.Regs.PC)
			c.Regs.PC = addr
		}
	case 0xCC: // CALL Z,a16
		addr := c.fetch16()
		if c.Regs.F.Z {
			c.push16(c.Regs.PC)
			c.Regs.PC = addr
		}
	case 0xD4: // CALL NC,a16
		addr := c.fetch16()
		if !c.Regs.F.C {
			c.push16(c.Regs.PC)
			c.Regs.PC = addr
		}
	case 0xDC: // CALL C,a16
		addr := c.fetch16()
		if c.Regs.F.C {
			c.push16(c.Regs.PC)
			c.Regs.PC = addr
		}

	// returns
	case 0xC9: // RET
		c.Regs.PC = c.pop16()
	case 0xD9: // RETI
		c.Regs.PC = c.pop16()
		c.ime = true
	case 0xC0: // RET NZ
		if !c.Regs.F.Z {
			c.Regs.PC = c.pop16()
		}
	case 0xC8: // RET Z
		if c.Regs.F.Z {
			c.Regs.PC = c.pop16()
		}
	case 0xD0: // RET NC
		if !c.Regs.F.C {
			c.Regs.PC = c.pop16()
		}
	case 0xD8: // RET C
		if c.Regs.F.C {
			c.Regs.PC = c.pop16()
		}

	// RST t: one-byte call to a fixed vector
	case 0xC7, 0xCF, 0xD7, 0xDF, 0xE7, 0xEF, 0xF7, 0xFF:
		c.push16(c.Regs.PC)
		c.Regs.PC = uint16(op & 0x38)

	// stack register ops
	case 0xC5: // PUSH BC
		c.push16(c.Regs.BC())
	case 0xD5: // PUSH DE
		c.push16(c.Regs.DE())
	case 0xE5: // PUSH HL
		c.push16(c.Regs.HL())
	case 0xF5: // PUSH AF
		c.push16(c.Regs.AF())
	case 0xC1: // POP BC
		c.Regs.SetBC(c.pop16())
	case 0xD1: // POP DE
		c.Regs.SetDE(c.pop16())
	case 0xE1: // POP HL
		c.Regs.SetHL(c.pop16())
	case 0xF1: // POP AF, flag low nibble reads zero
		c.Regs.SetAF(c.pop16())

	case 0xF9: // LD SP,HL
		c.Regs.SP = c.Regs.HL()
	case 0xE8: // ADD SP,r8
		off := int8(c.fetch8())
		_, _, _, h, cy := c.add8(byte(c.Regs.SP), byte(off))
		c.Regs.SP = uint16(int32(c.Regs.SP) + int32(off))
		c.setZNHC(false, false, h, cy)
	case 0xF8: // LD HL,SP+r8
		off := int8(c.fetch8())
		_, _, _, h, cy := c.add8(byte(c.Regs.SP), byte(off))
		c.Regs.SetHL(uint16(int32(c.Regs.SP) + int32(off)))
		c.setZNHC(false, false, h, cy)

	case 0xF3: // DI
		c.ime = false
		c.eiPending = false
	case 0xFB: // EI
		c.eiPending = true

	case 0xCB:
		c.stepCB()

	default:
		// 0xD3 0xDB 0xDD 0xE3 0xE4 0xEB 0xEC 0xED 0xF4 0xFC 0xFD have no
		// encoding; freeze at the faulting instruction
		c.Regs.PC = opAddr
		c.fault = &DecodeError{Addr: opAddr, Opcode: op}
		return StepResult{PC: opAddr}, c.fault
	}

	return StepResult{PC: c.Regs.PC, Halted: c.halted}, nil
}

// addHL implements ADD HL,rr: Z preserved, half-carry out of bit 11.
func (c *CPU) addHL(v uint16) {
	hl := c.Regs.HL()
	r := uint32(hl) + uint32(v)
	h := hl&0x0FFF+v&0x0FFF > 0x0FFF
	c.Regs.SetHL(uint16(r))
	c.setZNHC(c.Regs.F.Z, false, h, r > 0xFFFF)
}

// alu applies the operation selected by the standard three-bit encoding
// (0=ADD 1=ADC 2=SUB 3=SBC 4=AND 5=XOR 6=OR 7=CP) to the accumulator.
func (c *CPU) alu(sel byte, v byte) {
	switch sel {
	case 0:
		r, z, n, h, cy := c.add8(c.Regs.A, v)
		c.Regs.A = r
		c.setZNHC(z, n, h, cy)
	case 1:
		r, z, n, h, cy := c.adc8(c.Regs.A, v, c.Regs.F.C)
		c.Regs.A = r
		c.setZNHC(z, n, h, cy)
	case 2:
		r, z, n, h, cy := c.sub8(c.Regs.A, v)
		c.Regs.A = r
		c.setZNHC(z, n, h, cy)
	case 3:
		r, z, n, h, cy := c.sbc8(c.Regs.A, v, c.Regs.F.C)
		c.Regs.A = r
		c.setZNHC(z, n, h, cy)
	case 4:
		r, z, n, h, cy := c.and8(c.Regs.A, v)
		c.Regs.A = r
		c.setZNHC(z, n, h, cy)
	case 5:
		r, z, n, h, cy := c.xor8(c.Regs.A, v)
		c.Regs.A = r
		c.setZNHC(z, n, h, cy)
	case 6:
		r, z, n, h, cy := c.or8(c.Regs.A, v)
		c.Regs.A = r
		c.setZNHC(z, n, h, cy)
	case 7: // CP discards the result
		z, n, h, cy := c.cp8(c.Regs.A, v)
		c.setZNHC(z, n, h, cy)
	}
}

// stepCB executes one CB-prefixed opcode. All 256 are defined, so the
// prefix never faults.
func (c *CPU) stepCB() {
	cb := c.fetch8()
	reg := cb & 7
	y := cb >> 3 & 7
	switch cb >> 6 & 3 {
	case 0: // rotates and shifts; Z computed from the result here
		v := c.reg8(reg)
		var bit byte
		switch y {
		case 0: // RLC
			bit = v >> 7
			v = v<<1 | bit
			c.setZNHC(v == 0, false, false, bit == 1)
		case 1: // RRC
			bit = v & 1
			v = v>>1 | bit<<7
			c.setZNHC(v == 0, false, false, bit == 1)
		case 2: // RL
			bit = v >> 7
			cin := byte(0)
			if c.Regs.F.C {
				cin = 1
			}
			v = v<<1 | cin
			c.setZNHC(v == 0, false, false, bit == 1)
		case 3: // RR
			bit = v & 1
			cin := byte(0)
			if c.Regs.F.C {
				cin = 1
			}
			v = v>>1 | cin<<7
			c.setZNHC(v == 0, false, false, bit == 1)
		case 4: // SLA
			bit = v >> 7
			v <<= 1
			c.setZNHC(v == 0, false, false, bit == 1)
		case 5: // SRA
			bit = v & 1
			v = v>>1 | v&0x80
			c.setZNHC(v == 0, false, false, bit == 1)
		case 6: // SWAP
			v = v<<4 | v>>4
			c.setZNHC(v == 0, false, false, false)
		case 7: // SRL
			bit = v & 1
			v >>= 1
			c.setZNHC(v == 0, false, false, bit == 1)
		}
		c.setReg8(reg, v)
	case 1: // BIT y,r: Z from the tested bit, C preserved
		v := c.reg8(reg)
		c.Regs.F.Z = v>>y&1 == 0
		c.Regs.F.N = false
		c.Regs.F.H = true
	case 2: // RES y,r
		c.setReg8(reg, c.reg8(reg)&^(1<<y))
	case 3: // SET y,r
		c.setReg8(reg, c.reg8(reg)|1<<y)
	}
}
