package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"unsafe"

	"github.com/google/go-cmp/cmp"

	"leaker/internal/lasterror"
	"leaker/internal/region"
)

// execute runs the command line with a private config file.
func execute(t *testing.T, cfgPath string, args ...string) (string, error) {
	t.Helper()
	if cfgPath == "" {
		cfgPath = filepath.Join(t.TempDir(), "config.yml")
	}
	root := newRootCmd()
	root.SilenceErrors = true
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--config", cfgPath}, args...))
	err := root.Execute()
	return out.String(), err
}

func addrOf(b []byte) uint64 { return uint64(uintptr(unsafe.Pointer(&b[0]))) }

func TestDisasm(t *testing.T) {
	code := []byte{0x55, 0x48, 0x89, 0xe5, 0x90, 0xc3}
	addr := addrOf(code)

	out, err := execute(t, "", "--bits", "64", "disasm", "-n", "2", fmt.Sprintf("%#x", addr))
	if err != nil {
		t.Fatal(err)
	}
	want := fmt.Sprintf("%016x : push rbp\n%016x : mov rbp, rsp\n", addr, addr+1)
	if diff := cmp.Diff(want, out); diff != "" {
		t.Errorf("disasm mismatch (-want +got):\n%s", diff)
	}
	runtime.KeepAlive(code)
}

func TestDisasmATTOverride(t *testing.T) {
	code := []byte{0x48, 0x89, 0xe5}
	out, err := execute(t, "", "--bits", "64", "--syntax", "att", "disasm", "-n", "1", fmt.Sprint(addrOf(code)))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "%rsp,%rbp") {
		t.Errorf("att listing = %q", out)
	}
	runtime.KeepAlive(code)
}

func TestDisasmIncomplete(t *testing.T) {
	code := []byte{0x90, 0x06, 0x90}
	out, err := execute(t, "", "--bits", "64", "disasm", "-n", "3", fmt.Sprintf("%#x", addrOf(code)))
	if !errors.Is(err, lasterror.ErrDecodeIncomplete) {
		t.Errorf("err = %v, want decode incomplete", err)
	}
	if !strings.Contains(out, "nop") {
		t.Errorf("decoded prefix missing: %q", out)
	}
	runtime.KeepAlive(code)
}

func TestInvalidOverride(t *testing.T) {
	if _, err := execute(t, "", "--bits", "48", "disasm", "0x1000"); err == nil {
		t.Error("--bits 48 accepted")
	}
	if _, err := execute(t, "", "--syntax", "masm", "disasm", "0x1000"); err == nil {
		t.Error("--syntax masm accepted")
	}
}

func TestDump(t *testing.T) {
	buf := []byte("ABCDEFGH")
	out, err := execute(t, "", "--bits", "64", "--width", "8", "dump", "-n", "8", fmt.Sprintf("%#x", addrOf(buf)))
	if err != nil {
		t.Fatal(err)
	}
	want := fmt.Sprintf("%016x | 41 42 43 44 45 46 47 48 | ABCDEFGH\n", addrOf(buf))
	if diff := cmp.Diff(want, out); diff != "" {
		t.Errorf("dump mismatch (-want +got):\n%s", diff)
	}
	runtime.KeepAlive(buf)
}

func TestDumpUnknownType(t *testing.T) {
	buf := []byte{1}
	_, err := execute(t, "", "dump", "-t", "uint128_t", fmt.Sprintf("%#x", addrOf(buf)))
	if !errors.Is(err, lasterror.ErrInvalidArgument) {
		t.Errorf("err = %v, want invalid argument", err)
	}
}

func TestRead(t *testing.T) {
	buf := []byte{0xfe, 0xff, 0xff, 0xff}
	addr := fmt.Sprintf("%#x", addrOf(buf))

	tests := []struct {
		typ  string
		want string
	}{
		{"uint8_t", "0xfe\n"},
		{"uint4", "0xfffffffe\n"},
		{"sint4", "-2\n"},
		{"int16_t", "-2\n"},
	}
	for _, tt := range tests {
		t.Run(tt.typ, func(t *testing.T) {
			out, err := execute(t, "", "read", tt.typ, addr)
			if err != nil {
				t.Fatal(err)
			}
			if out != tt.want {
				t.Errorf("read %s = %q, want %q", tt.typ, out, tt.want)
			}
		})
	}
	runtime.KeepAlive(buf)
}

func TestReadFault(t *testing.T) {
	_, err := execute(t, "", "read", "uint32_t", "0")
	if !errors.Is(err, lasterror.ErrAccessViolation) {
		t.Errorf("err = %v, want access violation", err)
	}
}

func TestErrmsg(t *testing.T) {
	out, err := execute(t, "", "errmsg", "0xC0000005")
	if err != nil {
		t.Fatal(err)
	}
	want, _ := lasterror.Message(lasterror.AccessViolation)
	if out != want+"\n" {
		t.Errorf("errmsg = %q, want %q", out, want)
	}
	if _, err := execute(t, "", "errmsg", "nope"); err == nil {
		t.Error("non-numeric code accepted")
	}
}

func TestConfigRoundTrip(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yml")

	if _, err := execute(t, cfgPath, "config", "set", "syntax", "att"); err != nil {
		t.Fatal(err)
	}
	out, err := execute(t, cfgPath, "config", "get", "syntax")
	if err != nil {
		t.Fatal(err)
	}
	if out != "att\n" {
		t.Errorf("config get syntax = %q", out)
	}

	if _, err := execute(t, cfgPath, "config", "set", "bits", "12"); err == nil {
		t.Error("invalid bits saved")
	}
	out, err = execute(t, cfgPath, "config", "get")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "syntax: att\n") || strings.Contains(out, "bits: 12") {
		t.Errorf("config get = %q", out)
	}

	// Overrides apply to the session, not the file.
	if _, err := execute(t, cfgPath, "--syntax", "intel", "config", "get", "syntax"); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(cfgPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "syntax: att") {
		t.Errorf("config file = %s", data)
	}
}

func TestSchema(t *testing.T) {
	out, err := execute(t, "", "schema")
	if err != nil {
		t.Fatal(err)
	}
	var schema map[string]any
	if err := json.Unmarshal([]byte(out), &schema); err != nil {
		t.Fatalf("schema is not JSON: %v", err)
	}
	if !strings.Contains(out, "row-width") {
		t.Errorf("schema lacks row-width:\n%s", out)
	}
}

func TestDocs(t *testing.T) {
	out, err := execute(t, "", "docs")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"# Builtins", "disassemble", "getlasterror"} {
		if !strings.Contains(out, want) {
			t.Errorf("docs missing %q", want)
		}
	}
}

func TestRunScript(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "main.star")
	src := `
def main():
    return "%d-bit %s" % (bits(), syntax())
`
	if err := os.WriteFile(script, []byte(src), 0o600); err != nil {
		t.Fatal(err)
	}
	out, err := execute(t, "", "--bits", "32", "--syntax", "att", "run", script)
	if err != nil {
		t.Fatal(err)
	}
	if out != "\"32-bit att\"\n" {
		t.Errorf("run output = %q", out)
	}
}

func TestRunScriptError(t *testing.T) {
	script := filepath.Join(t.TempDir(), "bad.star")
	if err := os.WriteFile(script, []byte("x = undefined_name\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := execute(t, "", "run", script); err == nil {
		t.Error("script with an undefined name succeeded")
	}
}

func TestWriteRegions(t *testing.T) {
	regions := []region.Info{
		{BaseAddress: 0x1000, RegionSize: 0x2000, State: region.MemCommit, Protect: region.PageReadOnly, Type: region.MemImage},
		{BaseAddress: 0x3000, RegionSize: 0x1000, State: region.MemFree, Protect: region.PageNoAccess},
	}
	var sb strings.Builder
	writeRegions(&sb, regions, false)

	lines := strings.Split(strings.TrimSuffix(sb.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines:\n%s", len(lines), sb.String())
	}
	for i, want := range []string{"0000000000001000", "commit", "r--", "image"} {
		if !strings.Contains(lines[1], want) {
			t.Errorf("line 1 missing field %d %q: %q", i, want, lines[1])
		}
	}
	if !strings.Contains(lines[2], "free") {
		t.Errorf("free region line = %q", lines[2])
	}
	if strings.Contains(sb.String(), "\x1b[") {
		t.Error("unstyled output contains escape sequences")
	}
}

func TestFormatValue(t *testing.T) {
	buf := []byte{0, 0, 0xc0, 0x3f} // 1.5f
	out, err := execute(t, "", "read", "float", fmt.Sprintf("%#x", addrOf(buf)))
	if err != nil {
		t.Fatal(err)
	}
	if out != "1.5\n" {
		t.Errorf("read float = %q", out)
	}
	runtime.KeepAlive(buf)
}
