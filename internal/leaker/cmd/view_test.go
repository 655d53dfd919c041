package cmd

import (
	"runtime"
	"strings"
	"testing"

	"leaker/internal/config"
	"leaker/internal/host"
)

func TestViewPages(t *testing.T) {
	cfg := config.Default()
	cfg.Bits = 64
	l, err := host.New(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	code := []byte{0x90, 0x06, 0x90, 0x90, 0x90, 0x90, 0x90, 0x90}
	pages := viewPages(l, addrOf(code), 3, false)
	runtime.KeepAlive(code)

	if len(pages) != 3 {
		t.Fatalf("got %d pages", len(pages))
	}
	if p := pages[0]; p.Title != "disasm" || !strings.Contains(p.Content, "nop") || !strings.Contains(p.Content, "decode incomplete") {
		t.Errorf("disasm page = %+v", p)
	}
	if p := pages[2]; !strings.Contains(p.Content, "commit") {
		t.Errorf("region page = %+v", p)
	}
}
