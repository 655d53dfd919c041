package envblock

import (
	"os"
	"strconv"
	"strings"
)

// envStartField is the index of env_start among the fields that follow the
// parenthesised command name in /proc/<pid>/stat (field 50 overall).
const envStartField = 47

var statSlot slot[uint64]

// parseEnvStart extracts env_start from a /proc/<pid>/stat line. The command
// name may itself contain spaces and parentheses, so fields are counted from
// the last ')'.
func parseEnvStart(stat string) (uint64, bool) {
	i := strings.LastIndexByte(stat, ')')
	if i < 0 {
		return 0, false
	}
	fields := strings.Fields(stat[i+1:])
	if len(fields) <= envStartField {
		return 0, false
	}
	v, err := strconv.ParseUint(fields[envStartField], 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// processBlock reports the start of the process environment block. It is
// fixed for the lifetime of the process, so it is read once.
func processBlock() uint64 {
	v, _ := statSlot.get("/proc/self/stat", func() (uint64, error) {
		b, err := os.ReadFile("/proc/self/stat")
		if err != nil {
			return 0, err
		}
		v, ok := parseEnvStart(string(b))
		if !ok {
			return 0, os.ErrInvalid
		}
		return v, nil
	})
	return v
}
