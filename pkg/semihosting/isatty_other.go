//go:build !linux

package semihosting

import "os"

// isTerminal always reports false on platforms without a termios ioctl
// wired up; ISTTY falls back to treating the fd as a plain file.
func isTerminal(f *os.File) bool {
	return false
}
