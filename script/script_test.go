package script

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuboc/chip8vm/emulator"
)

func newRunner(t *testing.T, program []byte) *Runner {
	t.Helper()

	r, err := New(program, slog.New(slog.NewTextHandler(io.Discard, nil)), emulator.WithSeed(1))
	require.NoError(t, err)
	t.Cleanup(r.Close)
	return r
}

func TestScripts(t *testing.T) {
	tests := []struct {
		name    string
		program []byte
		script  string
	}{
		{
			name:    "step",
			program: []byte{0x60, 0x05, 0x70, 0x01, 0xA1, 0x23},
			script: `
				assert(step(2) == 2)
				assert(v(0) == 6)
				assert(pc() == 0x204)
				assert(step() == 1)
				assert(i() == 0x123)
				assert(cycles() == 3)
			`,
		},
		{
			name:    "run paces at the configured speed",
			program: []byte{0x12, 0x00},
			script: `
				assert(run(1000) == 700)
				assert(run(500) == 350)
				assert(state().speed == 700)
			`,
		},
		{
			name:    "timers follow simulated time",
			program: []byte{0x60, 0x3C, 0xF0, 0x15, 0x12, 0x04},
			script: `
				step(2)
				assert(state().dt == 60)
				run(500)
				assert(state().dt == 30)
				run(500)
				assert(state().dt == 0)
			`,
		},
		{
			name:    "key wait",
			program: []byte{0xF3, 0x0A, 0x12, 0x02},
			script: `
				assert(step() == 1)
				assert(state().waiting)
				assert(step() == 0)
				press(7)
				assert(step() == 1)
				assert(v(3) == 7)
				assert(not state().waiting)
				release(7)
			`,
		},
		{
			name:    "draw",
			program: []byte{0x60, 0x00, 0xA0, 0x00, 0xD0, 0x05},
			script: `
				step(3)
				assert(pixel(0, 0))
				assert(pixel(3, 0))
				assert(not pixel(4, 0))
				assert(not pixel(1, 1))
				assert(v(15) == 0)
				local s = state()
				assert(s.v[0] == 0 and s.i == 0 and not s.hires)
			`,
		},
		{
			name:    "reset",
			program: []byte{0x22, 0x04, 0x00, 0xE0, 0x12, 0x04},
			script: `
				step(2)
				assert(#state().stack == 1)
				assert(state().stack[1] == 0x202)
				reset()
				assert(pc() == 0x200 and cycles() == 0)
				assert(#state().stack == 0)
			`,
		},
		{
			name:    "exit",
			program: []byte{0x00, 0xFD},
			script: `
				assert(step(10) == 1)
				assert(state().halted)
				assert(run(100) == 0)
			`,
		},
		{
			name:    "fault can be caught",
			program: []byte{0x00, 0xEE},
			script: `
				local ok, err = pcall(step)
				assert(not ok)
				assert(string.find(err, "stack underflow"))
			`,
		},
		{
			name:    "invalid key",
			program: []byte{0x12, 0x00},
			script: `
				assert(not pcall(press, 16))
				assert(not pcall(v, -1))
			`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRunner(t, tt.program)
			assert.NoError(t, r.DoString(tt.script))
		})
	}
}

func TestScriptFault(t *testing.T) {
	r := newRunner(t, []byte{0x80, 0x08})

	err := r.DoString("step()")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "illegal instruction")
	assert.True(t, r.Chip8().Halted())
}

func TestScriptFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.lua")
	shot := filepath.Join(dir, "frame.bmp")

	src := `
		step(3)
		screenshot("` + filepath.ToSlash(shot) + `", 2)
		log("done")
	`
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))

	r := newRunner(t, []byte{0x00, 0xFF, 0xA0, 0x50, 0xD0, 0x00})
	require.NoError(t, r.DoFile(path))

	b, err := os.ReadFile(shot)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(b, []byte("BM")))
	assert.True(t, r.Chip8().HighRes())
}

func TestScriptMissingFile(t *testing.T) {
	r := newRunner(t, nil)
	assert.Error(t, r.DoFile(filepath.Join(t.TempDir(), "missing.lua")))
}
