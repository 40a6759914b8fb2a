package terminal

import (
	"fmt"
	"os"

	"golang.org/x/term"
)

// MakeRaw switches f to raw mode and returns a function restoring the
// previous state. When f is not a terminal nothing is changed.
func MakeRaw(f *os.File) (func() error, error) {
	fd := int(f.Fd())
	if !term.IsTerminal(fd) {
		return func() error { return nil }, nil
	}

	old, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("setting raw mode: %w", err)
	}
	return func() error { return term.Restore(fd, old) }, nil
}

// FitsFrame reports whether the terminal behind f is large enough for a
// frame of width x height pixels plus extra lines. Non-terminals always
// fit.
func FitsFrame(f *os.File, width, height, extra int) bool {
	fd := int(f.Fd())
	if !term.IsTerminal(fd) {
		return true
	}

	cols, rows, err := term.GetSize(fd)
	if err != nil {
		return true
	}
	return cols >= width && rows >= (height+1)/2+extra
}
