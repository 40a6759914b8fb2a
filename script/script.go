// Package script drives a CHIP-8 machine from Lua. Scripts run against a
// simulated clock, so a script that runs the machine for a minute finishes
// in a fraction of that and gives the same result every time.
package script

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"
	lua "github.com/yuin/gopher-lua"

	"github.com/tuboc/chip8vm/emulator"
)

// frameTime is the slice run() advances the clock by between batches, so
// timers and key waits see the same granularity as the interactive host.
const frameTime = time.Second / emulator.VBlankFrequency

// Runner owns a machine and the Lua state scripting it.
type Runner struct {
	chip8 *emulator.Chip8
	clock *clock.Mock
	state *lua.LState
	log   *slog.Logger
}

// New loads program into a machine on a simulated clock and prepares a
// Lua state with the machine functions registered as globals.
func New(program []byte, logger *slog.Logger, opts ...emulator.Option) (*Runner, error) {
	if logger == nil {
		logger = slog.Default()
	}

	mock := clock.NewMock()
	c, err := emulator.Load(program, append(opts, emulator.WithClock(mock))...)
	if err != nil {
		return nil, err
	}

	r := &Runner{
		chip8: c,
		clock: mock,
		state: lua.NewState(),
		log:   logger,
	}
	r.register()
	return r, nil
}

// Chip8 returns the machine driven by the script.
func (r *Runner) Chip8() *emulator.Chip8 {
	return r.chip8
}

// DoString runs a chunk of Lua source.
func (r *Runner) DoString(src string) error {
	if err := r.state.DoString(src); err != nil {
		return fmt.Errorf("running script: %w", err)
	}
	return nil
}

// DoFile runs the Lua script at path.
func (r *Runner) DoFile(path string) error {
	if err := r.state.DoFile(path); err != nil {
		return fmt.Errorf("running script %s: %w", path, err)
	}
	return nil
}

// Close releases the Lua state.
func (r *Runner) Close() {
	r.state.Close()
}

func (r *Runner) register() {
	funcs := map[string]lua.LGFunction{
		"step":       r.step,
		"run":        r.run,
		"press":      r.press,
		"release":    r.release,
		"v":          r.v,
		"i":          r.i,
		"pc":         r.pc,
		"cycles":     r.cycles,
		"pixel":      r.pixel,
		"reset":      r.reset,
		"screenshot": r.screenshot,
		"state":      r.stateTable,
		"log":        r.logf,
	}
	for name, fn := range funcs {
		r.state.SetGlobal(name, r.state.NewFunction(fn))
	}
}

// step([n]) executes up to n instructions regardless of pacing and returns
// how many ran. It stops early while waiting for a key or after EXIT.
func (r *Runner) step(L *lua.LState) int {
	n := L.OptInt(1, 1)
	before := r.chip8.Cycles()

	for i := 0; i < n; i++ {
		st, err := r.chip8.Exec()
		if err != nil {
			r.raise(L, err)
		}
		if st != emulator.Executed {
			break
		}
	}

	L.Push(lua.LNumber(r.chip8.Cycles() - before))
	return 1
}

// run(ms) lets ms milliseconds of simulated time pass, executing whatever
// is due, and returns the number of instructions executed.
func (r *Runner) run(L *lua.LState) int {
	ms := L.CheckInt(1)
	if ms < 0 {
		L.ArgError(1, "negative duration")
	}

	before := r.chip8.Cycles()
	remaining := time.Duration(ms) * time.Millisecond
	for remaining > 0 {
		d := min(frameTime, remaining)
		r.clock.Add(d)
		remaining -= d

		if _, err := r.chip8.Process(); err != nil {
			r.raise(L, err)
		}
		if r.chip8.Halted() {
			break
		}
	}

	L.Push(lua.LNumber(r.chip8.Cycles() - before))
	return 1
}

func (r *Runner) press(L *lua.LState) int {
	r.chip8.SetKey(checkKey(L, 1), true)
	return 0
}

func (r *Runner) release(L *lua.LState) int {
	r.chip8.SetKey(checkKey(L, 1), false)
	return 0
}

func (r *Runner) v(L *lua.LState) int {
	x := checkKey(L, 1)
	L.Push(lua.LNumber(r.chip8.State().V[x]))
	return 1
}

func (r *Runner) i(L *lua.LState) int {
	L.Push(lua.LNumber(r.chip8.State().I))
	return 1
}

func (r *Runner) pc(L *lua.LState) int {
	L.Push(lua.LNumber(r.chip8.State().PC))
	return 1
}

func (r *Runner) cycles(L *lua.LState) int {
	L.Push(lua.LNumber(r.chip8.Cycles()))
	return 1
}

func (r *Runner) pixel(L *lua.LState) int {
	x, y := L.CheckInt(1), L.CheckInt(2)
	L.Push(lua.LBool(r.chip8.Frame().Pixel(x, y)))
	return 1
}

func (r *Runner) reset(L *lua.LState) int {
	r.chip8.Reset()
	return 0
}

// screenshot(path[, scale]) saves the current frame as a BMP.
func (r *Runner) screenshot(L *lua.LState) int {
	path := L.CheckString(1)
	scale := L.OptInt(2, emulator.DefaultScale)

	if err := emulator.SaveBMP(path, r.chip8.Frame(), scale); err != nil {
		r.raise(L, err)
	}
	r.log.Info("screenshot saved", slog.String("path", path))
	return 0
}

func (r *Runner) stateTable(L *lua.LState) int {
	st := r.chip8.State()

	t := L.NewTable()
	t.RawSetString("pc", lua.LNumber(st.PC))
	t.RawSetString("i", lua.LNumber(st.I))
	t.RawSetString("dt", lua.LNumber(st.DT))
	t.RawSetString("st", lua.LNumber(st.ST))
	t.RawSetString("sp", lua.LNumber(st.SP))
	t.RawSetString("cycles", lua.LNumber(st.Cycles))
	t.RawSetString("speed", lua.LNumber(st.Speed))
	t.RawSetString("hires", lua.LBool(r.chip8.HighRes()))
	t.RawSetString("waiting", lua.LBool(r.chip8.Waiting()))
	t.RawSetString("halted", lua.LBool(r.chip8.Halted()))

	// V is indexed from 0 like the registers, not from 1
	v := L.NewTable()
	for x, b := range st.V {
		v.RawSetInt(x, lua.LNumber(b))
	}
	t.RawSetString("v", v)

	stack := L.NewTable()
	for _, addr := range st.Stack {
		stack.Append(lua.LNumber(addr))
	}
	t.RawSetString("stack", stack)

	L.Push(t)
	return 1
}

func (r *Runner) logf(L *lua.LState) int {
	r.log.Info(L.CheckString(1), slog.Int64("cycles", r.chip8.Cycles()))
	return 0
}

// raise turns a machine error into a Lua error. It does not return.
func (r *Runner) raise(L *lua.LState, err error) {
	var f *emulator.Fault
	if errors.As(err, &f) {
		r.log.Error("machine fault",
			slog.String("error", f.Err.Error()),
			slog.String("pc", fmt.Sprintf("%03X", f.PC)),
			slog.String("opcode", fmt.Sprintf("%04X", f.Opcode)))
	}
	L.RaiseError("%v", err)
}

// checkKey reads a key or register index in 0-F.
func checkKey(L *lua.LState, n int) uint8 {
	k := L.CheckInt(n)
	if k < 0 || k >= emulator.KeyCount {
		L.ArgError(n, "must be in 0-15")
	}
	return uint8(k)
}
