//go:build unix

package lasterror

import (
	"syscall"
	"testing"
)

func TestMessageErrno(t *testing.T) {
	msg, err := Message(Code(syscall.ENOENT))
	if err != nil {
		t.Fatalf("Message(ENOENT) error = %v", err)
	}
	if msg != syscall.ENOENT.Error() {
		t.Errorf("Message(ENOENT) = %q, want %q", msg, syscall.ENOENT.Error())
	}
}
