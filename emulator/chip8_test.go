package emulator

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// loop is a program that jumps to itself forever.
var loop = []byte{0x12, 0x00}

func TestLoadProgramSize(t *testing.T) {
	c, err := Load(make([]byte, MaxProgram))
	require.NoError(t, err)
	assert.Equal(t, MaxProgram, c.ROMSize())

	_, err = Load(make([]byte, MaxProgram+1))
	assert.ErrorIs(t, err, ErrProgramTooLarge)
}

func TestLoadMemoryLayout(t *testing.T) {
	program := []byte{0x60, 0x01, 0x70, 0x02, 0x12, 0x04, 0xAB}
	c, _ := newTestChip8(t, program)

	reserved := ReservedROM()
	assert.Equal(t, reserved[:], c.mem[:ProgramOffset])
	assert.Equal(t, program, c.mem[ProgramOffset:ProgramOffset+len(program)])
	assert.Equal(t, uint8(0), c.mem[ProgramOffset+len(program)])
	assert.Equal(t, program, c.Program())
	assert.Equal(t, uint16(ProgramOffset), c.State().PC)

	// the font glyph for 0 sits at the start of memory
	assert.Equal(t, []byte{0xF0, 0x90, 0x90, 0x90, 0xF0}, c.mem[0:5])
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loop.ch8")
	require.NoError(t, os.WriteFile(path, loop, 0o644))

	c, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, loop, c.Program())

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.ch8"))
	assert.Error(t, err)
}

func TestReset(t *testing.T) {
	program := []byte{
		0x60, 0xFF, // LD V0,#FF
		0xA3, 0x00, // LD I,#300
		0xF0, 0x55, // LD [I],V0
		0x22, 0x0A, // CALL #20A
		0x00, 0x00,
		0xF0, 0x15, // LD DT,V0
		0x00, 0xFF, // HIGH
		0xD0, 0x05, // DRW V0,V0,5
		0x12, 0x10, // JP #210
	}
	c, mock := newTestChip8(t, program)
	c.SetSpeed(1000)

	for i := 0; i < 8; i++ {
		_, err := c.Exec()
		require.NoError(t, err)
	}
	c.SetKey(3, true)

	require.Equal(t, uint8(0xFF), c.mem[0x300])
	require.True(t, c.HighRes())
	require.Equal(t, 1, c.State().SP)

	mock.Add(time.Second)
	c.Reset()

	s := c.State()
	assert.Equal(t, c.rom, c.mem)
	assert.Equal(t, uint16(ProgramOffset), s.PC)
	assert.Equal(t, uint16(0), s.I)
	assert.Equal(t, [RegisterCount]uint8{}, s.V)
	assert.Equal(t, 0, s.SP)
	assert.Equal(t, uint8(0), s.DT)
	assert.Equal(t, [KeyCount]bool{}, s.Keys)
	assert.Equal(t, int64(0), c.Cycles())
	assert.False(t, c.HighRes())
	assert.Equal(t, make([]byte, 64*32/8), c.Frame().Pixels)
	assert.Empty(t, c.History())

	assert.Equal(t, int64(1000), c.Speed())
	assert.Equal(t, len(program), c.ROMSize())
	assert.Equal(t, mock.Now().UnixNano(), c.start)
}

func TestArithmeticFlags(t *testing.T) {
	program := []byte{
		0x60, 0xFF, // LD V0,#FF
		0x61, 0x01, // LD V1,#01
		0x80, 0x14, // ADD V0,V1
		0x62, 0x01, // LD V2,#01
		0x63, 0x02, // LD V3,#02
		0x82, 0x35, // SUB V2,V3
	}
	c, _ := newTestChip8(t, program)

	for i := 0; i < 3; i++ {
		_, err := c.Exec()
		require.NoError(t, err)
	}
	assert.Equal(t, uint8(0x00), c.regs.V[0])
	assert.Equal(t, uint8(1), c.regs.V[0xf])

	for i := 0; i < 3; i++ {
		_, err := c.Exec()
		require.NoError(t, err)
	}
	assert.Equal(t, uint8(0xFF), c.regs.V[2])
	assert.Equal(t, uint8(0), c.regs.V[0xf])
}

func TestStackDepth(t *testing.T) {
	// every instruction calls the next one
	program := make([]byte, 0, 2*(StackDepth+1))
	for i := 0; i <= StackDepth; i++ {
		addr := ProgramOffset + 2*(i+1)
		program = append(program, 0x20|byte(addr>>8), byte(addr))
	}
	c, _ := newTestChip8(t, program)

	for i := 0; i < StackDepth; i++ {
		st, err := c.Exec()
		require.NoError(t, err)
		require.Equal(t, Executed, st)
	}
	assert.Equal(t, StackDepth, c.State().SP)

	_, err := c.Exec()
	assert.ErrorIs(t, err, ErrStackOverflow)
	assert.Equal(t, StackDepth, c.State().SP)
	assert.Equal(t, uint16(ProgramOffset+2*StackDepth), c.State().PC)
}

func TestReturnWithEmptyStack(t *testing.T) {
	c, _ := newTestChip8(t, []byte{0x00, 0xEE})

	_, err := c.Exec()
	assert.ErrorIs(t, err, ErrStackUnderflow)
	assert.True(t, c.Halted())
}

func TestCallAndReturn(t *testing.T) {
	program := []byte{
		0x22, 0x04, // CALL #204
		0x12, 0x02, // JP #202
		0x00, 0xEE, // RET
	}
	c, _ := newTestChip8(t, program)

	for i := 0; i < 2; i++ {
		_, err := c.Exec()
		require.NoError(t, err)
	}
	assert.Equal(t, uint16(0x202), c.State().PC)
	assert.Equal(t, 0, c.State().SP)
}

func TestFetchPastEndOfMemory(t *testing.T) {
	c, _ := newTestChip8(t, []byte{0x1F, 0xFF})

	_, err := c.Exec()
	require.NoError(t, err)

	_, err = c.Exec()
	assert.ErrorIs(t, err, ErrMemoryFault)

	var fault *Fault
	require.ErrorAs(t, err, &fault)
	assert.Equal(t, uint16(0xFFF), fault.PC)
}

func TestDrawSameSpriteTwice(t *testing.T) {
	program := []byte{
		0xA0, 0x00, // LD I,#000
		0xD0, 0x05, // DRW V0,V0,5
		0xD0, 0x05, // DRW V0,V0,5
	}
	c, _ := newTestChip8(t, program)

	for i := 0; i < 2; i++ {
		_, err := c.Exec()
		require.NoError(t, err)
	}
	assert.Equal(t, uint8(0), c.regs.V[0xf])
	assert.NotEqual(t, make([]byte, 256), c.Frame().Pixels)

	_, err := c.Exec()
	require.NoError(t, err)
	assert.Equal(t, uint8(1), c.regs.V[0xf])
	assert.Equal(t, make([]byte, 256), c.Frame().Pixels)
}

func TestDelayTimerCountdown(t *testing.T) {
	program := []byte{
		0x60, 0x0A, // LD V0,#0A
		0xF0, 0x15, // LD DT,V0
		0xF1, 0x07, // LD V1,DT
		0xF2, 0x07, // LD V2,DT
	}
	c, mock := newTestChip8(t, program)

	for i := 0; i < 2; i++ {
		_, err := c.Exec()
		require.NoError(t, err)
	}
	assert.Equal(t, uint8(10), c.DelayTimer())

	mock.Add(time.Second / TimerFrequency)
	_, err := c.Exec()
	require.NoError(t, err)
	assert.Equal(t, uint8(9), c.regs.V[1])

	mock.Add(9 * time.Second / TimerFrequency)
	_, err = c.Exec()
	require.NoError(t, err)
	assert.Equal(t, uint8(0), c.regs.V[2])
	assert.Equal(t, uint8(0), c.DelayTimer())
}

func TestSoundActive(t *testing.T) {
	c, mock := newTestChip8(t, []byte{0x60, 0x03, 0xF0, 0x18})
	assert.False(t, c.SoundActive())

	for i := 0; i < 2; i++ {
		_, err := c.Exec()
		require.NoError(t, err)
	}
	assert.True(t, c.SoundActive())

	mock.Add(3 * time.Second / TimerFrequency)
	assert.False(t, c.SoundActive())
}

func TestPacing(t *testing.T) {
	c, mock := newTestChip8(t, loop)

	st, err := c.Step()
	require.NoError(t, err)
	assert.Equal(t, Throttled, st)

	for i := 0; i < 100; i++ {
		mock.Add(10 * time.Millisecond)
		for {
			st, err := c.Step()
			require.NoError(t, err)
			if st == Throttled {
				break
			}
		}
		require.LessOrEqual(t, c.Cycles(), int64(i+1)*DefaultSpeed/100)
	}

	assert.Equal(t, int64(DefaultSpeed), c.Cycles())
}

func TestProcess(t *testing.T) {
	c, mock := newTestChip8(t, loop)

	mock.Add(time.Second)
	n, err := c.Process()
	require.NoError(t, err)
	assert.Equal(t, DefaultSpeed, n)
	assert.Equal(t, int64(DefaultSpeed), c.Cycles())

	n, err = c.Process()
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	mock.Add(time.Second / 2)
	n, err = c.Process()
	require.NoError(t, err)
	assert.Equal(t, DefaultSpeed/2, n)
}

func TestProcessStopsOnFault(t *testing.T) {
	c, mock := newTestChip8(t, []byte{0x60, 0x01, 0x00, 0x00})

	mock.Add(time.Second)
	n, err := c.Process()
	assert.Equal(t, 1, n)
	assert.ErrorIs(t, err, ErrIllegalInstruction)
	assert.Equal(t, int64(1), c.Cycles())
}

func TestSetSpeedKeepsCycles(t *testing.T) {
	c, mock := newTestChip8(t, loop)

	mock.Add(time.Second)
	_, err := c.Process()
	require.NoError(t, err)

	c.SetSpeed(1400)
	assert.Equal(t, int64(DefaultSpeed), c.Cycles())

	st, err := c.Step()
	require.NoError(t, err)
	assert.Equal(t, Throttled, st)

	mock.Add(time.Second)
	n, err := c.Process()
	require.NoError(t, err)
	assert.Equal(t, 1400, n)
}

func TestIncDecSpeed(t *testing.T) {
	c, _ := newTestChip8(t, loop)

	assert.Equal(t, int64(DefaultSpeed+SpeedStep), c.IncSpeed())
	assert.Equal(t, int64(DefaultSpeed), c.DecSpeed())

	c.SetSpeed(MaxSpeed)
	assert.Equal(t, int64(MaxSpeed), c.IncSpeed())

	c.SetSpeed(MinSpeed)
	assert.Equal(t, int64(MinSpeed), c.DecSpeed())
}

func TestAwaitKey(t *testing.T) {
	program := []byte{
		0xF3, 0x0A, // LD V3,K
		0x12, 0x02, // JP #202
	}
	c, mock := newTestChip8(t, program)

	// a key held before the wait does not count
	c.SetKey(5, true)

	st, err := c.Exec()
	require.NoError(t, err)
	assert.Equal(t, AwaitingKey, st)
	assert.Equal(t, int64(1), c.Cycles())

	mock.Add(time.Second)
	for i := 0; i < 3; i++ {
		st, err = c.Step()
		require.NoError(t, err)
		assert.Equal(t, AwaitingKey, st)
	}
	assert.Equal(t, uint16(0x200), c.State().PC)
	assert.Equal(t, int64(1), c.Cycles())

	// releasing and pressing again is a new press
	c.SetKey(5, false)
	c.SetKey(9, true)

	st, err = c.Exec()
	require.NoError(t, err)
	assert.Equal(t, Executed, st)
	assert.Equal(t, uint8(9), c.regs.V[3])
	assert.False(t, c.Waiting())
	assert.Equal(t, uint16(0x202), c.State().PC)

	// the wait is not made up with a burst of cycles
	n, err := c.Process()
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestAwaitKeyDuringProcess(t *testing.T) {
	program := []byte{
		0xF1, 0x0A, // LD V1,K
		0x70, 0x01, // ADD V0,#01
		0x12, 0x02, // JP #202
	}
	c, mock := newTestChip8(t, program)

	mock.Add(10 * time.Millisecond)
	n, err := c.Process()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, c.Waiting())

	mock.Add(10 * time.Second)
	n, err = c.Process()
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	// completing the wait runs the next instruction, not ten seconds worth
	c.SetKey(5, true)
	n, err = c.Process()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, int64(2), c.Cycles())
	assert.Equal(t, uint8(5), c.State().V[1])
	assert.Equal(t, uint8(1), c.State().V[0])

	// afterwards pacing continues from the key press at the configured speed
	mock.Add(time.Second)
	_, err = c.Process()
	require.NoError(t, err)
	assert.Equal(t, int64(1+DefaultSpeed), c.Cycles())
}

func TestExitHalts(t *testing.T) {
	c, mock := newTestChip8(t, []byte{0x00, 0xFD})

	// the exit instruction itself is counted
	mock.Add(time.Second)
	n, err := c.Process()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, c.Halted())

	st, err := c.Step()
	require.NoError(t, err)
	assert.Equal(t, Halted, st)
	assert.Equal(t, int64(1), c.Cycles())
}

func TestHistory(t *testing.T) {
	c, _ := newTestChip8(t, []byte{0x60, 0x01, 0x12, 0x02})

	for i := 0; i < OpHistoryNum+3; i++ {
		_, err := c.Exec()
		require.NoError(t, err)
	}

	h := c.History()
	require.Len(t, h, OpHistoryNum)
	assert.Equal(t, "202-1202 JP   #202", h[len(h)-1])
	assert.NotContains(t, h, "200-6001 LD   V0,#01")
}

func TestWriteBMP(t *testing.T) {
	c, _ := newTestChip8(t, []byte{0xD0, 0x05})
	_, err := c.Exec()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteBMP(&buf, c.Frame(), 2))
	assert.Equal(t, "BM", buf.String()[:2])

	img := c.Frame().Image(2)
	assert.Equal(t, 128, img.Bounds().Dx())
	assert.Equal(t, uint8(1), img.ColorIndexAt(1, 1))
	assert.Equal(t, uint8(0), img.ColorIndexAt(8, 0))
}

func TestIndependentMachines(t *testing.T) {
	a, _ := newTestChip8(t, []byte{0x60, 0x01})
	b, _ := newTestChip8(t, []byte{0x60, 0x02})

	_, err := a.Exec()
	require.NoError(t, err)
	_, err = b.Exec()
	require.NoError(t, err)

	assert.Equal(t, uint8(1), a.State().V[0])
	assert.Equal(t, uint8(2), b.State().V[0])
}

func TestDefaultClock(t *testing.T) {
	c, err := Load(loop)
	require.NoError(t, err)
	_, ok := c.clock.(*clock.Mock)
	assert.False(t, ok)
	assert.Equal(t, int64(DefaultSpeed), c.Speed())
}
