package emulator

// StackDepth is the number of return addresses the stack can hold. The
// original 1802 interpreter only had 12 cells; later ones went to 16.
const StackDepth = 16

// Stack holds subroutine return addresses.
type Stack struct {
	addrs [StackDepth]uint16
	sp    int
}

// Push stores a return address. It fails with ErrStackOverflow when the
// stack is already StackDepth deep.
func (s *Stack) Push(addr uint16) error {
	if s.sp >= StackDepth {
		return ErrStackOverflow
	}

	// post increment
	s.addrs[s.sp] = addr
	s.sp++
	return nil
}

// Pop returns the most recently pushed address.
func (s *Stack) Pop() (uint16, error) {
	if s.sp == 0 {
		return 0, ErrStackUnderflow
	}

	// pre-decrement
	s.sp--
	return s.addrs[s.sp], nil
}

// Depth returns the number of addresses on the stack.
func (s *Stack) Depth() int {
	return s.sp
}

// Addresses returns a copy of the live part of the stack, oldest first.
func (s *Stack) Addresses() []uint16 {
	out := make([]uint16, s.sp)
	copy(out, s.addrs[:s.sp])
	return out
}

func (s *Stack) reset() {
	*s = Stack{}
}
