package terminal

import (
	"bytes"
	"fmt"
	"io"

	"github.com/tuboc/chip8vm/emulator"
)

const (
	home       = "\x1b[H"
	clearAll   = "\x1b[2J"
	clearEOL   = "\x1b[K"
	hideCursor = "\x1b[?25l"
	showCursor = "\x1b[?25h"
	newline    = clearEOL + "\r\n"
)

// half-block glyphs indexed by top<<1 | bottom
var blocks = [4]string{" ", "▄", "▀", "█"}

// keypad layout as printed in the debug panel
var keypadRows = [4][4]uint8{
	{0x1, 0x2, 0x3, 0xC},
	{0x4, 0x5, 0x6, 0xD},
	{0x7, 0x8, 0x9, 0xE},
	{0xA, 0x0, 0xB, 0xF},
}

// Screen renders frames as text using half-block characters, so every
// character cell holds two pixels stacked vertically. It expects the
// terminal to be in raw mode and therefore ends lines with CR LF.
type Screen struct {
	w       io.Writer
	debug   bool
	started bool
	beeping bool
	buf     bytes.Buffer
}

// NewScreen returns a Screen writing to w. With debug set, registers, keys
// and the instruction history are printed below the display.
func NewScreen(w io.Writer, debug bool) *Screen {
	return &Screen{w: w, debug: debug}
}

// Draw implements emulator.Screen.
func (s *Screen) Draw(f emulator.Frame, st emulator.State, history []string, paused bool) error {
	s.buf.Reset()
	if !s.started {
		s.buf.WriteString(hideCursor + clearAll)
		s.started = true
	}
	s.buf.WriteString(home)

	renderFrame(&s.buf, f)
	if s.debug {
		renderState(&s.buf, st, paused)
		renderHistory(&s.buf, history)
	}
	s.buf.WriteString("\x1b[J")

	_, err := s.w.Write(s.buf.Bytes())
	return err
}

// Beep implements emulator.Screen. The terminal bell is rung once each
// time the sound timer starts.
func (s *Screen) Beep(active bool) {
	if active && !s.beeping {
		io.WriteString(s.w, "\a")
	}
	s.beeping = active
}

// Close shows the cursor again.
func (s *Screen) Close() error {
	_, err := io.WriteString(s.w, showCursor+"\r\n")
	return err
}

func renderFrame(b *bytes.Buffer, f emulator.Frame) {
	for y := 0; y < f.Height; y += 2 {
		for x := 0; x < f.Width; x++ {
			i := 0
			if f.Pixel(x, y) {
				i |= 2
			}
			if f.Pixel(x, y+1) {
				i |= 1
			}
			b.WriteString(blocks[i])
		}
		b.WriteString(newline)
	}
}

func renderState(b *bytes.Buffer, st emulator.State, paused bool) {
	b.WriteString(newline)
	fmt.Fprintf(b, "PC %03X  I %03X  SP %02d  DT %02X  ST %02X  speed %d  cycles %d",
		st.PC, st.I, st.SP, st.DT, st.ST, st.Speed, st.Cycles)
	if paused {
		b.WriteString("  [paused]")
	}
	b.WriteString(newline)

	for row := 0; row < 2; row++ {
		for i := row * 8; i < row*8+8; i++ {
			fmt.Fprintf(b, "V%X = %02X  ", i, st.V[i])
		}
		b.WriteString(newline)
	}

	b.WriteString(newline)
	for _, row := range keypadRows {
		for _, k := range row {
			if st.Keys[k] {
				fmt.Fprintf(b, "[%X]", k)
			} else {
				fmt.Fprintf(b, " %X ", k)
			}
		}
		b.WriteString(newline)
	}
}

func renderHistory(b *bytes.Buffer, history []string) {
	b.WriteString(newline)
	for _, line := range history {
		b.WriteString(line)
		b.WriteString(newline)
	}
}
