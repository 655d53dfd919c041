// Package lasterror defines the failure taxonomy shared by the introspection
// packages and a "last error" cell that a host can query after a call
// reported failure, the same way GetLastError works for Win32 callers.
package lasterror

import (
	"errors"
	"fmt"
	"sync/atomic"
	"syscall"
)

// Code is a numeric error code. Taxonomy codes use the NTSTATUS-style
// values below; anything else is a platform code (errno on Unix, a Win32
// error on Windows) passed through unchanged.
type Code uint32

const (
	Success          Code = 0
	Unsuccessful     Code = 0xC0000001
	AccessViolation  Code = 0xC0000005
	InvalidParameter Code = 0xC000000D
	InvalidArgument  Code = 0xE0000057
	DecodeIncomplete Code = 0xE0000100
)

var (
	ErrUnsuccessful     = errors.New("operation unsuccessful")
	ErrAccessViolation  = errors.New("access violation")
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrDecodeIncomplete = errors.New("decode incomplete")
)

var sentinels = map[Code]error{
	Unsuccessful:     ErrUnsuccessful,
	AccessViolation:  ErrAccessViolation,
	InvalidParameter: ErrInvalidParameter,
	InvalidArgument:  ErrInvalidArgument,
	DecodeIncomplete: ErrDecodeIncomplete,
}

func (c Code) String() string {
	if err, ok := sentinels[c]; ok {
		return err.Error()
	}
	return fmt.Sprintf("error 0x%08x", uint32(c))
}

// Error is a failed operation at an address. Err is the taxonomy sentinel
// for Code, or the platform error for OS codes, so errors.Is works against
// both.
type Error struct {
	Op   string
	Addr uint64
	Code Code
	Err  error
}

// New returns an *Error for one of the taxonomy codes.
func New(op string, addr uint64, code Code) *Error {
	err, ok := sentinels[code]
	if !ok {
		err = syscall.Errno(code)
	}
	return &Error{Op: op, Addr: addr, Code: code, Err: err}
}

// Errorf is like New but replaces the message while keeping the sentinel
// reachable through errors.Is.
func Errorf(op string, addr uint64, code Code, format string, args ...any) *Error {
	e := New(op, addr, code)
	e.Err = fmt.Errorf("%w: %s", e.Err, fmt.Sprintf(format, args...))
	return e
}

// OS wraps a platform error, keeping its numeric code verbatim.
func OS(op string, addr uint64, err error) *Error {
	return &Error{Op: op, Addr: addr, Code: CodeOf(err), Err: err}
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s 0x%x: %v", e.Op, e.Addr, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// CodeOf maps err to the code a host would see from GetLastError.
func CodeOf(err error) Code {
	if err == nil {
		return Success
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return Code(errno)
	}
	for code, sentinel := range sentinels {
		if errors.Is(err, sentinel) {
			return code
		}
	}
	return Unsuccessful
}

// Slot holds the code of the most recent failure. Successful calls leave
// it alone.
type Slot struct {
	code atomic.Uint32
}

func (s *Slot) Set(code Code) { s.code.Store(uint32(code)) }

func (s *Slot) Get() Code { return Code(s.code.Load()) }

// Record stores the code of err, if any, and returns err unchanged.
func (s *Slot) Record(err error) error {
	if err != nil {
		s.Set(CodeOf(err))
	}
	return err
}

// Message returns the text for code. Taxonomy codes always resolve;
// platform codes resolve through the system message tables and fail with
// ErrInvalidArgument when the platform does not know the code.
func Message(code Code) (string, error) {
	if code == Success {
		return "The operation completed successfully.", nil
	}
	if err, ok := sentinels[code]; ok {
		return err.Error(), nil
	}
	msg, ok := platformMessage(code)
	if !ok {
		return "", Errorf("message", uint64(code), InvalidArgument, "no message for code 0x%08x", uint32(code))
	}
	return msg, nil
}
