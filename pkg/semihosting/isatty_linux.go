//go:build linux

package semihosting

import (
	"os"

	"golang.org/x/sys/unix"
)

// isTerminal reports whether f's fd is connected to a terminal, used by
// ISTTY when the fd in question is a real host-allocated file rather
// than one of the reserved stdio slots.
func isTerminal(f *os.File) bool {
	_, err := unix.IoctlGetTermios(int(f.Fd()), unix.TCGETS)
	return err == nil
}
