package emulator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"
)

const VBlankFrequency = 60

// Screen is the output side of a frontend.
type Screen interface {
	// Draw presents one frame together with the debug information.
	Draw(f Frame, s State, history []string, paused bool) error

	// Beep is called once per frame with the state of the sound timer.
	Beep(active bool)
}

// EventKind identifies an input event coming from a frontend.
type EventKind int

const (
	KeyDown EventKind = iota
	KeyUp
	Quit
	StepMode
	Resume
	ResetMachine
	SpeedUp
	SpeedDown
)

// Event is a single input event. Key is only used by KeyDown and KeyUp.
type Event struct {
	Kind EventKind
	Key  uint8
}

// Emulator drives a Chip8 from a frontend: it paces execution, feeds it
// input events and presents a frame 60 times a second.
type Emulator struct {
	chip8  *Chip8
	screen Screen
	events <-chan Event
	clock  clock.Clock
	log    *slog.Logger

	running  bool
	stepMode bool
	trace    bool
}

// NewEmulator wires a machine to a screen and an event source. With sm set
// the machine starts paused in step mode.
func NewEmulator(c *Chip8, screen Screen, events <-chan Event, logger *slog.Logger, sm bool) *Emulator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Emulator{
		chip8:    c,
		screen:   screen,
		events:   events,
		clock:    c.clock,
		log:      logger,
		running:  true,
		stepMode: sm,
	}
}

// SetTrace enables logging of every executed instruction at debug level.
func (e *Emulator) SetTrace(on bool) {
	e.trace = on
}

// Run loops until a Quit event, a fault or ctx is done. A fault is logged
// and returned; the last frame is still drawn.
func (e *Emulator) Run(ctx context.Context) error {
	ticker := e.clock.Ticker(time.Second / VBlankFrequency)
	defer ticker.Stop()

	e.log.Info("emulation started",
		slog.Int("rom_size", e.chip8.ROMSize()),
		slog.Int64("speed", e.chip8.Speed()),
		slog.Bool("step_mode", e.stepMode))

	for e.running {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-e.events:
			if !ok {
				e.running = false
				break
			}
			if err := e.handleEvent(ev); err != nil {
				return e.halt(err)
			}

		case <-ticker.C:
			if err := e.frame(); err != nil {
				return e.halt(err)
			}
		}
	}

	e.log.Info("emulation stopped", slog.Int64("cycles", e.chip8.Cycles()))
	return nil
}

// frame runs the instructions due since the last frame and presents the
// display.
func (e *Emulator) frame() error {
	var err error
	if !e.stepMode {
		var n int
		n, err = e.chip8.Process()
		e.traceHistory(n)
	}

	e.screen.Beep(e.chip8.SoundActive())
	if drawErr := e.draw(); drawErr != nil && err == nil {
		err = drawErr
	}
	return err
}

func (e *Emulator) draw() error {
	return e.screen.Draw(e.chip8.Frame(), e.chip8.State(), e.chip8.History(), e.stepMode)
}

func (e *Emulator) handleEvent(ev Event) error {
	switch ev.Kind {
	case KeyDown:
		e.chip8.SetKey(ev.Key, true)

	case KeyUp:
		e.chip8.SetKey(ev.Key, false)

	case Quit:
		e.running = false

	case StepMode:
		if !e.stepMode {
			e.stepMode = true
			e.log.Info("paused", slog.String("pc", fmt.Sprintf("%03X", e.chip8.State().PC)))
			return e.draw()
		}

		st, err := e.chip8.Exec()
		if err != nil {
			return err
		}
		if st == Executed {
			e.traceHistory(1)
		}
		return e.draw()

	case Resume:
		if e.stepMode {
			e.stepMode = false
			e.chip8.Resync()
			e.log.Info("resumed")
		}

	case ResetMachine:
		e.chip8.Reset()
		e.log.Info("machine reset")
		return e.draw()

	case SpeedUp:
		e.log.Info("speed changed", slog.Int64("speed", e.chip8.IncSpeed()))

	case SpeedDown:
		e.log.Info("speed changed", slog.Int64("speed", e.chip8.DecSpeed()))
	}

	return nil
}

// traceHistory logs the last n executed instructions.
func (e *Emulator) traceHistory(n int) {
	if !e.trace || n == 0 {
		return
	}

	h := e.chip8.History()
	if n < len(h) {
		h = h[len(h)-n:]
	}
	for _, line := range h {
		e.log.Debug("exec", slog.String("op", line))
	}
}

func (e *Emulator) halt(err error) error {
	attrs := []any{slog.String("error", err.Error()), slog.Int64("cycles", e.chip8.Cycles())}
	var f *Fault
	if errors.As(err, &f) {
		attrs = append(attrs,
			slog.String("pc", fmt.Sprintf("%03X", f.PC)),
			slog.String("opcode", fmt.Sprintf("%04X", f.Opcode)))
	}
	e.log.Error("emulation halted", attrs...)
	return err
}
