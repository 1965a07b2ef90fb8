package cpu

// Hardware bit positions inside the packed F register. The low nibble is
// always zero.
const (
	flagZ byte = 1 << 7
	flagN byte = 1 << 6
	flagH byte = 1 << 5
	flagC byte = 1 << 4
)

// Flags holds the four condition flags as independent booleans. The packed
// byte form exists only at the AF boundary (PUSH AF/POP AF and the paired
// view), so assigning one flag can never disturb another.
type Flags struct {
	Z bool // zero
	N bool // subtract
	H bool // half-carry
	C bool // carry
}

// Byte packs the flags into the hardware F-register layout.
func (f Flags) Byte() byte {
	var b byte
	if f.Z {
		b |= flagZ
	}
	if f.N {
		b |= flagN
	}
	if f.H {
		b |= flagH
	}
	if f.C {
		b |= flagC
	}
	return b
}

// flagsFromByte unpacks an F-register byte; the low nibble is discarded.
func flagsFromByte(b byte) Flags {
	return Flags{
		Z: b&flagZ != 0,
		N: b&flagN != 0,
		H: b&flagH != 0,
		C: b&flagC != 0,
	}
}

// Registers is the register file: pure state with paired 16-bit views, no
// instruction semantics. All arithmetic on these values wraps.
type Registers struct {
	A byte
	F Flags

	B, C byte
	D, E byte
	H, L byte

	SP uint16
	PC uint16
}

// Reset restores the DMG post-boot register state.
func (r *Registers) Reset() {
	r.A, r.F = 0x01, flagsFromByte(0xB0)
	r.B, r.C = 0x00, 0x13
	r.D, r.E = 0x00, 0xD8
	r.H, r.L = 0x01, 0x4D
	r.SP = 0xFFFE
	r.PC = 0x0100
}

func (r *Registers) AF() uint16 { return uint16(r.A)<<8 | uint16(r.F.Byte()) }
func (r *Registers) BC() uint16 { return uint16(r.B)<<8 | uint16(r.C) }
func (r *Registers) DE() uint16 { return uint16(r.D)<<8 | uint16(r.E) }
func (r *Registers) HL() uint16 { return uint16(r.H)<<8 | uint16(r.L) }

func (r *Registers) SetAF(v uint16) { r.A = byte(v >> 8); r.F = flagsFromByte(byte(v)) }
func (r *Registers) SetBC(v uint16) { r.B = byte(v >> 8); r.C = byte(v) }
func (r *Registers) SetDE(v uint16) { r.D = byte(v >> 8); r.E = byte(v) }
func (r *Registers) SetHL(v uint16) { r.H = byte(v >> 8); r.L = byte(v) }
