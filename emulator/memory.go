package emulator

const (
	MemorySize    = 0x1000
	AddressMask   = 0x0FFF
	MaxAddress    = 0x0FFF
	ProgramOffset = 0x200
	MaxProgram    = 0x800
)

// Memory is the flat CHIP-8 address space. Addresses are 12 bits wide and
// every access through Read and Write wraps around at 0x1000.
type Memory [MemorySize]byte

// Read returns the byte at addr, wrapping to 12 bits.
func (m *Memory) Read(addr uint16) byte {
	return m[addr&AddressMask]
}

// Write stores b at addr, wrapping to 12 bits.
func (m *Memory) Write(addr uint16, b byte) {
	m[addr&AddressMask] = b
}

// ReadN copies n bytes starting at addr. Reads past 0xFFF continue at 0x000.
func (m *Memory) ReadN(addr uint16, n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = m.Read(addr + uint16(i))
	}
	return b
}

// Fetch reads the big-endian instruction word at pc. Unlike data accesses,
// instruction fetches never wrap.
func (m *Memory) Fetch(pc uint16) (uint16, error) {
	if int(pc)+1 > MaxAddress {
		return 0, ErrMemoryFault
	}
	return uint16(m[pc])<<8 | uint16(m[pc+1]), nil
}
