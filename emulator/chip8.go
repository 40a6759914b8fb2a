package emulator

import (
	"fmt"
	"math/rand"
	"os"

	"github.com/benbjohnson/clock"
)

const OpHistoryNum = 16

// Status tells the caller what a call to Step or Exec did.
type Status int

const (
	// Executed means one instruction ran.
	Executed Status = iota

	// Throttled means the next cycle is not due yet; call again later.
	Throttled

	// AwaitingKey means FX0A is waiting for a key to be pressed.
	AwaitingKey

	// Halted means the program exited or faulted.
	Halted
)

func (s Status) String() string {
	switch s {
	case Executed:
		return "executed"
	case Throttled:
		return "throttled"
	case AwaitingKey:
		return "awaiting key"
	case Halted:
		return "halted"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

type opRecord struct {
	pc uint16
	op uint16
}

// Chip8 is a CHIP-8 virtual machine with the SCHIP extensions. It is not
// safe for concurrent use; a host must make every call from one goroutine.
type Chip8 struct {
	// rom is the pristine memory image that mem is reset from.
	rom     Memory
	romSize int
	mem     Memory

	disp  Display
	stack Stack
	keys  Keypad
	regs  Registers
	pc    uint16

	clock  clock.Clock
	start  int64 // ns instant emulation began
	cycles int64
	speed  int64

	rand *rand.Rand

	waiting bool
	waitReg uint8
	halted  bool
	fault   *Fault

	ophistory      [OpHistoryNum]opRecord
	ophistoryCount int
	ophistoryIndex int
}

// Option configures a Chip8 at load time.
type Option func(c *Chip8)

// WithClock sets the time source used for pacing and timers.
func WithClock(clk clock.Clock) Option {
	return func(c *Chip8) {
		c.clock = clk
	}
}

// WithSpeed sets the number of instructions executed per second.
func WithSpeed(speed int64) Option {
	return func(c *Chip8) {
		if speed > 0 {
			c.speed = speed
		}
	}
}

// WithSeed seeds the generator behind CXNN.
func WithSeed(seed int64) Option {
	return func(c *Chip8) {
		c.rand = rand.New(rand.NewSource(seed))
	}
}

// Load returns a new virtual machine running program.
func Load(program []byte, opts ...Option) (*Chip8, error) {
	if len(program) > MaxProgram {
		return nil, fmt.Errorf("%w: %d bytes, limit is %d", ErrProgramTooLarge, len(program), MaxProgram)
	}

	c := &Chip8{
		romSize: len(program),
		clock:   clock.New(),
		speed:   DefaultSpeed,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.rand == nil {
		c.rand = rand.New(rand.NewSource(c.clock.Now().UnixNano()))
	}

	reserved := ReservedROM()
	copy(c.rom[:ProgramOffset], reserved[:])
	copy(c.rom[ProgramOffset:], program)

	c.Reset()
	return c, nil
}

// LoadFile reads a ROM image from disk and loads it.
func LoadFile(path string, opts ...Option) (*Chip8, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rom: %w", err)
	}

	c, err := Load(b, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return c, nil
}

// Reset puts the machine back into the state it had right after Load.
// The program size and speed are kept.
func (c *Chip8) Reset() {
	copy(c.mem[:], c.rom[:])

	c.disp.reset()
	c.stack.reset()
	c.keys.reset()
	c.regs = Registers{}
	c.pc = ProgramOffset

	c.start = c.now()
	c.cycles = 0

	c.waiting = false
	c.waitReg = 0
	c.halted = false
	c.fault = nil

	c.ophistory = [OpHistoryNum]opRecord{}
	c.ophistoryCount = 0
	c.ophistoryIndex = 0
}

func (c *Chip8) now() int64 {
	return c.clock.Now().UnixNano()
}

// ROMSize returns the length of the loaded program.
func (c *Chip8) ROMSize() int {
	return c.romSize
}

// Program returns a copy of the loaded program bytes.
func (c *Chip8) Program() []byte {
	b := make([]byte, c.romSize)
	copy(b, c.rom[ProgramOffset:])
	return b
}

// Cycles returns the number of instructions executed since the last reset.
func (c *Chip8) Cycles() int64 {
	return c.cycles
}

// Speed returns the target number of instructions per second.
func (c *Chip8) Speed() int64 {
	return c.speed
}

// SetSpeed changes the instruction rate. The pacing baseline is moved so
// that the cycles already executed count as on time at the new rate.
func (c *Chip8) SetSpeed(speed int64) {
	if speed <= 0 {
		return
	}
	c.speed = speed
	c.Resync()
}

// IncSpeed raises the instruction rate by one step and returns the new rate.
func (c *Chip8) IncSpeed() int64 {
	if c.speed+SpeedStep <= MaxSpeed {
		c.SetSpeed(c.speed + SpeedStep)
	}
	return c.speed
}

// DecSpeed lowers the instruction rate by one step and returns the new rate.
func (c *Chip8) DecSpeed() int64 {
	if c.speed-SpeedStep >= MinSpeed {
		c.SetSpeed(c.speed - SpeedStep)
	}
	return c.speed
}

// Resync moves the pacing baseline to now, so time spent paused or waiting
// for a key is not made up with a burst of instructions.
func (c *Chip8) Resync() {
	c.start = c.now() - cycleOffset(c.cycles, c.speed)
}

// SetKey updates one key of the hex pad. Keys outside 0-F are ignored.
func (c *Chip8) SetKey(key uint8, pressed bool) {
	c.keys.Set(key, pressed)
}

// DelayTimer returns the current value of DT.
func (c *Chip8) DelayTimer() uint8 {
	return Countdown(c.regs.DT, c.now())
}

// SoundTimer returns the current value of ST.
func (c *Chip8) SoundTimer() uint8 {
	return Countdown(c.regs.ST, c.now())
}

// SoundActive is true while the sound timer is running.
func (c *Chip8) SoundActive() bool {
	return c.now() < c.regs.ST
}

// Frame returns the current contents of the display.
func (c *Chip8) Frame() Frame {
	return c.disp.Frame()
}

// HighRes returns true if the display is in 128x64 mode.
func (c *Chip8) HighRes() bool {
	return c.disp.HighRes()
}

// Waiting returns true while FX0A is blocked on the keypad.
func (c *Chip8) Waiting() bool {
	return c.waiting
}

// Halted returns true once the program exited or faulted.
func (c *Chip8) Halted() bool {
	return c.halted || c.fault != nil
}

// Fault returns the fault that halted the machine, if any.
func (c *Chip8) Fault() error {
	if c.fault == nil {
		return nil
	}
	return c.fault
}

// State is a snapshot of the machine registers.
type State struct {
	PC     uint16
	I      uint16
	V      [RegisterCount]uint8
	R      [FlagCount]uint8
	DT     uint8
	ST     uint8
	SP     int
	Stack  []uint16
	Keys   [KeyCount]bool
	Cycles int64
	Speed  int64
}

// State returns a snapshot of the registers, timers and stack.
func (c *Chip8) State() State {
	now := c.now()
	return State{
		PC:     c.pc,
		I:      c.regs.I,
		V:      c.regs.V,
		R:      c.regs.R,
		DT:     Countdown(c.regs.DT, now),
		ST:     Countdown(c.regs.ST, now),
		SP:     c.stack.Depth(),
		Stack:  c.stack.Addresses(),
		Keys:   c.keys.Keys(),
		Cycles: c.cycles,
		Speed:  c.speed,
	}
}

// History returns the most recently executed instructions, oldest first,
// formatted as address, opcode and mnemonic.
func (c *Chip8) History() []string {
	out := make([]string, 0, c.ophistoryCount)
	first := (c.ophistoryIndex - c.ophistoryCount + OpHistoryNum) % OpHistoryNum
	for i := 0; i < c.ophistoryCount; i++ {
		r := c.ophistory[(first+i)%OpHistoryNum]
		out = append(out, fmt.Sprintf("%03X-%04X %s", r.pc, r.op, Disassemble(r.op)))
	}
	return out
}

func (c *Chip8) record(pc, op uint16) {
	c.ophistory[c.ophistoryIndex] = opRecord{pc: pc, op: op}
	c.ophistoryIndex = (c.ophistoryIndex + 1) % OpHistoryNum
	if c.ophistoryCount < OpHistoryNum {
		c.ophistoryCount++
	}
}

// Step executes the next instruction if it is due at the configured speed.
// It returns Throttled when the caller is ahead of the clock.
func (c *Chip8) Step() (Status, error) {
	if c.Halted() {
		return c.Exec()
	}
	if c.cycles >= dueCycles(c.now()-c.start, c.speed) {
		return Throttled, nil
	}
	return c.Exec()
}

// Process executes every instruction that is due and returns how many ran.
// It stops early when the program waits for a key, exits or faults. The
// due count is taken again after every instruction because finishing a
// key wait moves the pacing baseline.
func (c *Chip8) Process() (int, error) {
	n := 0
	for c.cycles < dueCycles(c.now()-c.start, c.speed) {
		before := c.cycles
		st, err := c.Exec()
		n += int(c.cycles - before)
		if err != nil {
			return n, err
		}
		if st != Executed {
			break
		}
	}
	return n, nil
}

// Exec executes exactly one instruction, ignoring the pacing clock.
func (c *Chip8) Exec() (Status, error) {
	if c.fault != nil {
		return Halted, c.fault
	}
	if c.halted {
		return Halted, nil
	}

	if c.waiting {
		key, ok := c.keys.takePress()
		if !ok {
			return AwaitingKey, nil
		}

		c.regs.V[c.waitReg] = key
		c.waiting = false
		c.pc += 2

		// don't make up for the time spent waiting
		c.Resync()
	}

	pc := c.pc
	op, err := c.fetchOpcode()
	if err != nil {
		c.fault = &Fault{PC: pc, Err: err}
		return Halted, c.fault
	}

	if err := c.execOpcode(op); err != nil {
		c.pc = pc
		c.fault = &Fault{PC: pc, Opcode: op, Err: err}
		return Halted, c.fault
	}

	c.record(pc, op)
	c.cycles++

	switch {
	case c.halted:
		return Halted, nil
	case c.waiting:
		return AwaitingKey, nil
	}
	return Executed, nil
}

func (c *Chip8) fetchOpcode() (uint16, error) {
	op, err := c.mem.Fetch(c.pc)
	if err != nil {
		return 0, err
	}
	c.pc += 2
	return op, nil
}

func (c *Chip8) draw(x, y, n uint8) bool {
	return c.disp.DrawSprite(int(x), int(y), c.mem.ReadN(c.regs.I, int(n)), false)
}

// drawExtended draws the 16x16 sprite of DXY0, two bytes per row. In
// low-res mode only the left byte of each row is drawn, giving 8x16.
func (c *Chip8) drawExtended(x, y uint8) bool {
	sprite := c.mem.ReadN(c.regs.I, 32)
	if c.disp.HighRes() {
		return c.disp.DrawSprite(int(x), int(y), sprite, true)
	}

	left := make([]byte, 16)
	for i := range left {
		left[i] = sprite[i<<1]
	}
	return c.disp.DrawSprite(int(x), int(y), left, false)
}

// scrollRows converts an SCHIP scroll amount, given in high-res lines, to
// lines of the current mode.
func (c *Chip8) scrollRows(n uint8) int {
	if !c.disp.HighRes() {
		return int(n >> 1)
	}
	return int(n)
}
