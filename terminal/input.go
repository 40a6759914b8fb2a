package terminal

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/tuboc/chip8vm/emulator"
)

// DefaultHold is how long a key counts as held after its last byte was
// read. Terminals report no key releases, only auto-repeat, so the hold
// must outlast the initial repeat delay.
const DefaultHold = 300 * time.Millisecond

// KeyMap maps the left hand block of a QWERTY keyboard onto the hex pad.
//
//	1 2 3 4      1 2 3 C
//	q w e r  ->  4 5 6 D
//	a s d f      7 8 9 E
//	z x c v      A 0 B F
var KeyMap = map[byte]uint8{
	'1': 0x1, '2': 0x2, '3': 0x3, '4': 0xC,
	'q': 0x4, 'w': 0x5, 'e': 0x6, 'r': 0xD,
	'a': 0x7, 's': 0x8, 'd': 0x9, 'f': 0xE,
	'z': 0xA, 'x': 0x0, 'c': 0xB, 'v': 0xF,
}

// Control keys. In raw mode Ctrl-C and Ctrl-D arrive as plain bytes.
const (
	keyCtrlC = 0x03
	keyCtrlD = 0x04
	keyCtrlR = 0x12
	keyEsc   = 0x1b
)

// Translate maps a control byte to its event. Hex pad keys are not
// controls and are handled by Input itself.
func Translate(b byte) (emulator.Event, bool) {
	switch b {
	case keyCtrlC, keyCtrlD, keyEsc:
		return emulator.Event{Kind: emulator.Quit}, true
	case ' ':
		return emulator.Event{Kind: emulator.StepMode}, true
	case '\r', '\n':
		return emulator.Event{Kind: emulator.Resume}, true
	case keyCtrlR:
		return emulator.Event{Kind: emulator.ResetMachine}, true
	case '+', '=':
		return emulator.Event{Kind: emulator.SpeedUp}, true
	case '-', '_':
		return emulator.Event{Kind: emulator.SpeedDown}, true
	}
	return emulator.Event{}, false
}

// Input turns the byte stream of a raw terminal into emulator events. A
// hex key is pressed on its first byte and released once no repeat has
// arrived for the hold duration.
type Input struct {
	r      io.Reader
	clock  clock.Clock
	hold   time.Duration
	events chan emulator.Event

	mu     sync.Mutex
	closed bool
	down   [emulator.KeyCount]bool
	gen    [emulator.KeyCount]uint64
	timers [emulator.KeyCount]*clock.Timer
}

// NewInput returns an Input reading from r. A nil clock means wall time.
func NewInput(r io.Reader, clk clock.Clock, hold time.Duration) *Input {
	if clk == nil {
		clk = clock.New()
	}
	if hold <= 0 {
		hold = DefaultHold
	}
	return &Input{
		r:      r,
		clock:  clk,
		hold:   hold,
		events: make(chan emulator.Event, 64),
	}
}

// Events returns the channel events are delivered on. It is closed when
// Run returns.
func (in *Input) Events() <-chan emulator.Event {
	return in.events
}

// Run reads until the reader fails or ctx is done. Reaching the end of
// the input is not an error.
func (in *Input) Run(ctx context.Context) error {
	defer in.close()

	buf := make([]byte, 16)
	for {
		n, err := in.r.Read(buf)
		for _, b := range buf[:n] {
			if !in.handle(ctx, b) {
				return ctx.Err()
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (in *Input) handle(ctx context.Context, b byte) bool {
	if ev, ok := Translate(b); ok {
		return in.send(ctx, ev)
	}

	key, ok := KeyMap[lower(b)]
	if !ok {
		return true
	}

	in.mu.Lock()
	wasDown := in.down[key]
	in.down[key] = true
	in.gen[key]++
	if in.timers[key] != nil {
		in.timers[key].Stop()
	}
	gen := in.gen[key]
	in.timers[key] = in.clock.AfterFunc(in.hold, func() { in.release(key, gen) })
	in.mu.Unlock()

	if wasDown {
		return true
	}
	return in.send(ctx, emulator.Event{Kind: emulator.KeyDown, Key: key})
}

// release runs on a timer goroutine. It must not block, so when the
// channel is full the key stays down and the release is retried after
// another hold period.
func (in *Input) release(key uint8, gen uint64) {
	in.mu.Lock()
	defer in.mu.Unlock()

	if in.closed || in.gen[key] != gen || !in.down[key] {
		return
	}

	select {
	case in.events <- emulator.Event{Kind: emulator.KeyUp, Key: key}:
		in.down[key] = false
		in.timers[key] = nil
	default:
		in.gen[key]++
		next := in.gen[key]
		in.timers[key] = in.clock.AfterFunc(in.hold, func() { in.release(key, next) })
	}
}

func (in *Input) send(ctx context.Context, ev emulator.Event) bool {
	select {
	case in.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func (in *Input) close() {
	in.mu.Lock()
	defer in.mu.Unlock()

	in.closed = true
	for i, t := range in.timers {
		if t != nil {
			t.Stop()
			in.timers[i] = nil
		}
	}
	close(in.events)
}

func lower(b byte) byte {
	if b >= 'A' && b <= 'Z' {
		return b + 'a' - 'A'
	}
	return b
}
