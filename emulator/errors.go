package emulator

import (
	"errors"
	"fmt"
)

// ErrProgramTooLarge is returned by Load when a program does not fit
// between ProgramOffset and the end of the loadable window.
var ErrProgramTooLarge = errors.New("program is too large to fit into memory")

// Execution faults. They are always reported wrapped in a *Fault.
var (
	ErrMemoryFault        = errors.New("memory fault")
	ErrStackOverflow      = errors.New("stack overflow")
	ErrStackUnderflow     = errors.New("stack underflow")
	ErrIllegalInstruction = errors.New("illegal instruction")
	ErrInvalidOperand     = errors.New("invalid operand")
)

// Fault is a fatal execution error. The VM stays halted on the faulting
// instruction until it is reset.
type Fault struct {
	// PC is the address of the instruction that faulted.
	PC uint16

	// Opcode is the instruction word, or 0 when it could not be fetched.
	Opcode uint16

	// Err is one of the execution fault sentinels.
	Err error
}

// Error implements the error interface for a Fault.
func (f *Fault) Error() string {
	return fmt.Sprintf("%v @ %03X (opcode %04X)", f.Err, f.PC, f.Opcode)
}

func (f *Fault) Unwrap() error {
	return f.Err
}
