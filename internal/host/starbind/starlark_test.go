package starbind

import (
	"fmt"
	"runtime"
	"strings"
	"testing"
	"unsafe"

	"go.starlark.net/starlark"

	"leaker/internal/config"
	"leaker/internal/host"
)

func newEnv(t *testing.T) (*Env, *strings.Builder) {
	t.Helper()
	cfg := config.Default()
	cfg.Bits = 64
	l, err := host.New(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { l.Close() })
	var out strings.Builder
	return New(l, &out), &out
}

func TestScriptReadsBuffer(t *testing.T) {
	buf := []byte{0x01, 0x00, 0x00, 0x00, 0x02, 0x00, 0x00, 0x00}
	addr := uint64(uintptr(unsafe.Pointer(&buf[0])))
	env, out := newEnv(t)

	src := fmt.Sprintf(`
a = %d
print(uint32_t(a), uint32_t(a + 4))
print(load(a, 4))
print(dump(a, 2, "uint4").endswith("\n"))
`, addr)
	if _, err := env.Execute("test.star", src); err != nil {
		t.Fatal(err)
	}
	want := "1 2\n(4, 1)\nTrue\n"
	if out.String() != want {
		t.Errorf("output = %q, want %q", out.String(), want)
	}
	runtime.KeepAlive(buf)
}

func TestFailuresReturnNone(t *testing.T) {
	env, out := newEnv(t)

	src := `
print(uint32_t(0))
print("0x%x" % getlasterror())
print(syntax("masm"), syntax())
print("0x%x" % getlasterror())
print(dump(0, 1, "uint128_t"))
print(geterrormessage(0xC0000005))
print(mem_size("no.such.symbol"))
`
	if _, err := env.Execute("test.star", src); err != nil {
		t.Fatal(err)
	}
	want := "None\n0xc0000005\nNone default\n0xe0000057\nNone\naccess violation\nNone\n"
	if out.String() != want {
		t.Errorf("output = %q, want %q", out.String(), want)
	}
}

func TestWritePatchRestore(t *testing.T) {
	env, out := newEnv(t)

	src := `
buf = alloc(4096)
write(buf, 8, 0x1122334455667788)
prev = write(buf, 2, 0xffff)
print("0x%x" % prev, "0x%x" % uint64_t(buf))
write(buf, 2, prev)
print("0x%x" % uint64_t(buf), sint8_t(buf + 1))
print(store(buf, 16, 7), write(buf, 3, 1))
print(free(buf))
`
	if _, err := env.Execute("test.star", src); err != nil {
		t.Fatal(err)
	}
	want := "0x7788 0x112233445566ffff\n0x1122334455667788 119\n8 None\nTrue\n"
	if out.String() != want {
		t.Errorf("output = %q, want %q", out.String(), want)
	}
}

func TestBadArgumentsRaise(t *testing.T) {
	env, _ := newEnv(t)

	for _, src := range []string{
		`uint8_t()`,
		`uint8_t(1.5)`,
		`dump(0, "x")`,
		`syntax(64)`,
		`write(0, 1)`,
		`read_bytes(0, -1)`,
		`uint8_t(addr=1)`,
	} {
		if _, err := env.Execute("bad.star", src); err == nil {
			t.Errorf("%s: expected error", src)
		}
	}
}

func TestMainIsCalled(t *testing.T) {
	env, _ := newEnv(t)

	v, err := env.Execute("main.star", "def main():\n    return bits()\n")
	if err != nil {
		t.Fatal(err)
	}
	if n, ok := v.(starlark.Int); !ok || n.String() != "64" {
		t.Errorf("main() = %v", v)
	}
}

func TestDocsCoverBuiltins(t *testing.T) {
	env, _ := newEnv(t)

	docs := env.Docs()
	for _, name := range []string{"disassemble", "dump", "uint32_t", "mem_protect", "getTeb", "geterrormessage"} {
		if !strings.Contains(docs, "## `"+name+"(") {
			t.Errorf("docs missing %s", name)
		}
	}
}

func TestCompleter(t *testing.T) {
	env, _ := newEnv(t)
	complete := env.completer(env.env)

	got := complete("x = mem_s")
	want := map[string]bool{"x = mem_size": true, "x = mem_state": true}
	if len(got) != len(want) {
		t.Fatalf("completions = %q", got)
	}
	for _, c := range got {
		if !want[c] {
			t.Errorf("unexpected completion %q", c)
		}
	}
	if got := complete("print("); got != nil {
		t.Errorf("completions after '(' = %q", got)
	}
}
