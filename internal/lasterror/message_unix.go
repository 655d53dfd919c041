//go:build unix

package lasterror

import (
	"syscall"

	"golang.org/x/sys/unix"
)

func platformMessage(code Code) (string, bool) {
	errno := syscall.Errno(code)
	if unix.ErrnoName(errno) == "" {
		return "", false
	}
	return errno.Error(), true
}
