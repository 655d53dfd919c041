package lasterror

import (
	"strings"

	"golang.org/x/sys/windows"
)

func platformMessage(code Code) (string, bool) {
	buf := make([]uint16, 512)
	flags := uint32(windows.FORMAT_MESSAGE_FROM_SYSTEM | windows.FORMAT_MESSAGE_IGNORE_INSERTS)
	n, err := windows.FormatMessage(flags, 0, uint32(code), 0, buf, nil)
	if err != nil || n == 0 {
		return "", false
	}
	return strings.TrimRight(windows.UTF16ToString(buf[:n]), "\r\n"), true
}
