package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/tuboc/chip8vm/cli"
	e "github.com/tuboc/chip8vm/emulator"
	"github.com/tuboc/chip8vm/script"
	"github.com/tuboc/chip8vm/terminal"
)

// lines used by the debug panel below the display
const panelLines = 9 + e.OpHistoryNum

func main() {
	opts, err := cli.ParseFlags(os.Args[1:])
	if err != nil {
		var usageErr *cli.UsageError
		if errors.As(err, &usageErr) {
			usageErr.ShowUsage(os.Stderr)
			os.Exit(2)
		}
		log.Fatalf("%v", err)
	}

	logger, closeLog := newLogger(opts)
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, logger); err != nil && !errors.Is(err, context.Canceled) {
		closeLog()
		stop()
		log.Fatalf("%v", err)
	}
}

func newLogger(opts cli.Options) (*slog.Logger, func()) {
	var w io.Writer = os.Stderr
	closeLog := func() {}

	if opts.LogFile != "" {
		f, err := os.OpenFile(opts.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			log.Fatalf("opening log file: %v", err)
		}
		w = f
		closeLog = func() { _ = f.Close() }
	}

	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: opts.LogLevel}))
	slog.SetDefault(logger)
	return logger, closeLog
}

func run(ctx context.Context, opts cli.Options, logger *slog.Logger) error {
	program, err := os.ReadFile(opts.ROM)
	if err != nil {
		return fmt.Errorf("reading rom: %w", err)
	}

	if opts.Disasm {
		fmt.Print(e.Disassembly(program))
		return nil
	}

	machineOpts := []e.Option{e.WithSpeed(opts.Speed)}
	if opts.Seed != 0 {
		machineOpts = append(machineOpts, e.WithSeed(opts.Seed))
	}

	switch {
	case opts.Script != "":
		return runScript(opts, program, logger, machineOpts)
	case opts.Cycles > 0:
		return runHeadless(opts, program, logger, machineOpts)
	}
	return runTerminal(ctx, opts, program, logger, machineOpts)
}

func runScript(opts cli.Options, program []byte, logger *slog.Logger, machineOpts []e.Option) error {
	r, err := script.New(program, logger, machineOpts...)
	if err != nil {
		return err
	}
	defer r.Close()

	err = r.DoFile(opts.Script)
	logger.Info("script finished", slog.String("script", opts.Script), slog.Int64("cycles", r.Chip8().Cycles()))
	if err != nil {
		return err
	}
	return saveScreenshot(opts, r.Chip8(), logger)
}

// runHeadless executes opts.Cycles instructions as fast as possible.
func runHeadless(opts cli.Options, program []byte, logger *slog.Logger, machineOpts []e.Option) error {
	c, err := e.Load(program, machineOpts...)
	if err != nil {
		return err
	}

	for c.Cycles() < opts.Cycles {
		st, err := c.Exec()
		if err != nil {
			return err
		}
		if st == e.AwaitingKey {
			logger.Warn("program is waiting for a key, stopping", slog.Int64("cycles", c.Cycles()))
			break
		}
		if st == e.Halted {
			break
		}
	}

	logger.Info("headless run finished", slog.Int64("cycles", c.Cycles()), slog.Bool("halted", c.Halted()))
	return saveScreenshot(opts, c, logger)
}

func runTerminal(ctx context.Context, opts cli.Options, program []byte, logger *slog.Logger, machineOpts []e.Option) error {
	c, err := e.Load(program, machineOpts...)
	if err != nil {
		return err
	}

	if !terminal.FitsFrame(os.Stdout, 128, 64, panelLines) {
		logger.Warn("terminal is smaller than the high-res display and debug panel")
	}

	restore, err := terminal.MakeRaw(os.Stdin)
	if err != nil {
		return err
	}

	screen := terminal.NewScreen(os.Stdout, true)
	input := terminal.NewInput(os.Stdin, nil, terminal.DefaultHold)
	go func() {
		if err := input.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("reading input", slog.String("error", err.Error()))
		}
	}()

	emu := e.NewEmulator(c, screen, input.Events(), logger, opts.StepMode)
	emu.SetTrace(opts.Trace)
	runErr := emu.Run(ctx)

	_ = screen.Close()
	if err := restore(); err != nil {
		logger.Warn("restoring terminal", slog.String("error", err.Error()))
	}

	if err := saveScreenshot(opts, c, logger); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

func saveScreenshot(opts cli.Options, c *e.Chip8, logger *slog.Logger) error {
	if opts.Screenshot == "" {
		return nil
	}
	if err := e.SaveBMP(opts.Screenshot, c.Frame(), opts.Scale); err != nil {
		return err
	}
	logger.Info("screenshot saved", slog.String("path", opts.Screenshot))
	return nil
}
