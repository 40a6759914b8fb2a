package emulator

const (
	RegisterCount = 16
	FlagCount     = 8
)

// Registers is the CHIP-8 register file.
type Registers struct {
	// I is the address register. Only the low 12 bits address memory.
	I uint16

	// V are the 16 general registers. VF doubles as the flag register.
	V [RegisterCount]uint8

	// R are the 8 HP-48 RPL user flags used by FX75 and FX85.
	R [FlagCount]uint8

	// DT is the delay timer. It holds the instant (in ns) it expires.
	DT int64

	// ST is the sound timer. It holds the instant (in ns) it expires.
	ST int64
}

// SaveFlags copies V0..Vx into R0..Rx.
func (r *Registers) SaveFlags(x uint8) error {
	if x >= FlagCount {
		return ErrInvalidOperand
	}
	copy(r.R[:x+1], r.V[:x+1])
	return nil
}

// RestoreFlags copies R0..Rx into V0..Vx.
func (r *Registers) RestoreFlags(x uint8) error {
	if x >= FlagCount {
		return ErrInvalidOperand
	}
	copy(r.V[:x+1], r.R[:x+1])
	return nil
}

func (r *Registers) updateCarryFlag(b bool) {
	if b {
		r.V[0xf] = 1
	} else {
		r.V[0xf] = 0
	}
}
