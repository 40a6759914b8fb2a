// Package cli handles command line interface logic
package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/tuboc/chip8vm/emulator"
)

// Options holds everything configurable from the command line.
type Options struct {
	ROM        string
	StepMode   bool
	Speed      int64
	Seed       int64
	Trace      bool
	LogLevel   slog.Level
	LogFile    string
	Disasm     bool
	Script     string
	Screenshot string
	Scale      int
	Cycles     int64
}

// ParseFlags parses command line arguments, without the program name.
func ParseFlags(args []string) (Options, error) {
	flags := flag.NewFlagSet("chip8", flag.ContinueOnError)
	flags.SetOutput(io.Discard)

	var opts Options
	var logLevel string
	readOptionFlags(flags, &opts, &logLevel)

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return opts, &UsageError{flags: flags}
		}
		return opts, &UsageError{flags: flags, msg: err.Error()}
	}

	if err := setROM(flags, &opts); err != nil {
		return opts, err
	}

	if err := opts.LogLevel.UnmarshalText([]byte(logLevel)); err != nil {
		return opts, fmt.Errorf("unsupported log level: %s. Valid options: debug, info, warn, error", logLevel)
	}

	if opts.Speed < emulator.MinSpeed || opts.Speed > emulator.MaxSpeed {
		return opts, fmt.Errorf("speed %d out of range %d-%d", opts.Speed, emulator.MinSpeed, emulator.MaxSpeed)
	}
	if opts.Cycles < 0 {
		return opts, fmt.Errorf("cycles must not be negative: %d", opts.Cycles)
	}
	if opts.Scale < 1 {
		return opts, fmt.Errorf("scale must be positive: %d", opts.Scale)
	}
	if opts.Trace && opts.LogLevel > slog.LevelDebug {
		// tracing is useless unless debug records get through
		opts.LogLevel = slog.LevelDebug
	}

	return opts, nil
}

// setROM takes the ROM path from -f or from the single positional argument.
func setROM(flags *flag.FlagSet, opts *Options) error {
	args := flags.Args()

	for i, arg := range args {
		switch {
		case i > 0 && strings.HasPrefix(arg, "-"):
			return &UsageError{flags: flags, msg: fmt.Sprintf("flag %s found after the ROM file, pass flags first", arg)}
		case i > 0 || opts.ROM != "":
			return &UsageError{
				flags: flags,
				msg:   fmt.Sprintf("unexpected argument %s, pass a single ROM either with -f or as the last argument", arg),
			}
		}
		opts.ROM = arg
	}

	if opts.ROM == "" {
		return &UsageError{flags: flags, msg: "no ROM file given"}
	}
	return nil
}

// UsageError represents an error that should show usage information
type UsageError struct {
	flags *flag.FlagSet
	msg   string
}

func (e *UsageError) Error() string {
	if e.msg == "" {
		return "usage requested"
	}
	return e.msg
}

// ShowUsage prints the reason, if any, followed by the usage text and the
// flag defaults to w.
func (e *UsageError) ShowUsage(w io.Writer) {
	if e.msg != "" {
		fmt.Fprintf(w, "%s\n\n", e.msg)
	}
	fmt.Fprintf(w, "usage: chip8 [options] <rom file>\n\n")
	e.flags.SetOutput(w)
	e.flags.PrintDefaults()
	fmt.Fprintln(w)
}

func readOptionFlags(flags *flag.FlagSet, opts *Options, logLevel *string) {
	flags.StringVar(&opts.ROM, "f", "", "chip8 image file path")
	flags.BoolVar(&opts.StepMode, "s", false, "start with stepMode")
	flags.Int64Var(&opts.Speed, "speed", emulator.DefaultSpeed, "instructions executed per second")
	flags.Int64Var(&opts.Seed, "seed", 0, "seed for the random number generator, 0 picks one from the clock")
	flags.BoolVar(&opts.Trace, "trace", false, "log every executed instruction, implies -log-level debug")
	flags.StringVar(logLevel, "log-level", "info", "log level (debug/info/warn/error)")
	flags.StringVar(&opts.LogFile, "log-file", "", "write the log to this file instead of stderr")
	flags.BoolVar(&opts.Disasm, "d", false, "print the disassembly of the ROM and exit")
	flags.StringVar(&opts.Script, "script", "", "run a Lua script against the ROM instead of the terminal frontend")
	flags.StringVar(&opts.Screenshot, "screenshot", "", "save the final frame as a BMP file")
	flags.IntVar(&opts.Scale, "scale", emulator.DefaultScale, "pixel size of screenshots")
	flags.Int64Var(&opts.Cycles, "cycles", 0, "run this many instructions headless instead of the terminal frontend")
}
