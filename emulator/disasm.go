package emulator

import (
	"fmt"
	"strings"
)

// Disassemble returns the mnemonic for a single instruction word. Words
// that do not decode are shown as data.
func Disassemble(op uint16) string {
	nnn := op & 0x0FFF
	nn := uint8(nnn & 0xff)
	x := uint8((nnn >> 8) & 0xf)
	y := uint8((nnn >> 4) & 0xf)
	n := nn & 0x0f

	switch op & 0xF000 {
	case 0x0000:
		switch {
		case op&0xFFF0 == 0x00C0:
			return fmt.Sprintf("SCD  %d", n)
		case op&0xFFF0 == 0x00B0:
			return fmt.Sprintf("SCU  %d", n)
		case op == 0x00E0:
			return "CLS"
		case op == 0x00EE:
			return "RET"
		case op == 0x00FB:
			return "SCR"
		case op == 0x00FC:
			return "SCL"
		case op == 0x00FD:
			return "EXIT"
		case op == 0x00FE:
			return "LOW"
		case op == 0x00FF:
			return "HIGH"
		}
	case 0x1000:
		return fmt.Sprintf("JP   #%03X", nnn)
	case 0x2000:
		return fmt.Sprintf("CALL #%03X", nnn)
	case 0x3000:
		return fmt.Sprintf("SE   V%X,#%02X", x, nn)
	case 0x4000:
		return fmt.Sprintf("SNE  V%X,#%02X", x, nn)
	case 0x5000:
		if n == 0 {
			return fmt.Sprintf("SE   V%X,V%X", x, y)
		}
	case 0x6000:
		return fmt.Sprintf("LD   V%X,#%02X", x, nn)
	case 0x7000:
		return fmt.Sprintf("ADD  V%X,#%02X", x, nn)
	case 0x8000:
		if name, ok := aluMnemonics[n]; ok {
			if n == 6 || n == 0xE {
				return fmt.Sprintf("%-4s V%X", name, x)
			}
			return fmt.Sprintf("%-4s V%X,V%X", name, x, y)
		}
	case 0x9000:
		if n == 0 {
			return fmt.Sprintf("SNE  V%X,V%X", x, y)
		}
	case 0xA000:
		return fmt.Sprintf("LD   I,#%03X", nnn)
	case 0xB000:
		return fmt.Sprintf("JP   V0,#%03X", nnn)
	case 0xC000:
		return fmt.Sprintf("RND  V%X,#%02X", x, nn)
	case 0xD000:
		return fmt.Sprintf("DRW  V%X,V%X,%d", x, y, n)
	case 0xE000:
		switch nn {
		case 0x9E:
			return fmt.Sprintf("SKP  V%X", x)
		case 0xA1:
			return fmt.Sprintf("SKNP V%X", x)
		}
	case 0xF000:
		if format, ok := loadMnemonics[nn]; ok {
			return fmt.Sprintf(format, x)
		}
	}

	return fmt.Sprintf("DW   #%04X", op)
}

var aluMnemonics = map[uint8]string{
	0x0: "LD",
	0x1: "OR",
	0x2: "AND",
	0x3: "XOR",
	0x4: "ADD",
	0x5: "SUB",
	0x6: "SHR",
	0x7: "SUBN",
	0xE: "SHL",
}

var loadMnemonics = map[uint8]string{
	0x07: "LD   V%X,DT",
	0x0A: "LD   V%X,K",
	0x15: "LD   DT,V%X",
	0x18: "LD   ST,V%X",
	0x1E: "ADD  I,V%X",
	0x29: "LD   F,V%X",
	0x30: "LD   HF,V%X",
	0x33: "LD   B,V%X",
	0x55: "LD   [I],V%X",
	0x65: "LD   V%X,[I]",
	0x75: "LD   R,V%X",
	0x85: "LD   V%X,R",
}

// Disassembly lists program as if it were loaded at ProgramOffset, one
// instruction word per line. A trailing odd byte is listed on its own.
func Disassembly(program []byte) string {
	var sb strings.Builder

	for i := 0; i < len(program); i += 2 {
		addr := ProgramOffset + i
		if i+1 == len(program) {
			fmt.Fprintf(&sb, "%03X  %02X    DB   #%02X\n", addr, program[i], program[i])
			break
		}

		op := uint16(program[i])<<8 | uint16(program[i+1])
		fmt.Fprintf(&sb, "%03X  %04X  %s\n", addr, op, Disassemble(op))
	}

	return sb.String()
}
