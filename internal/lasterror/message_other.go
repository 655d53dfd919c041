//go:build !unix && !windows

package lasterror

func platformMessage(code Code) (string, bool) {
	return "", false
}
