package viewer

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea/v2"
)

func testPages() []Page {
	return []Page{
		{Title: "disasm", Content: "00401000 : push rbp\n00401001 : ret "},
		{Title: "dump", Content: "00401000 | 55 c3 | U.\n"},
	}
}

func TestTabCycles(t *testing.T) {
	m := New(0x401000, testPages())

	tests := []struct {
		key  string
		want int
	}{
		{"tab", 1},
		{"tab", 0},
		{"shift+tab", 1},
		{"shift+tab", 0},
	}
	for _, tt := range tests {
		var handled bool
		m, _, handled = m.handleKey(tt.key)
		if !handled {
			t.Fatalf("%s not handled", tt.key)
		}
		if m.current != tt.want {
			t.Errorf("after %s current = %d, want %d", tt.key, m.current, tt.want)
		}
	}
}

func TestQuit(t *testing.T) {
	m := New(0, testPages())
	for _, key := range []string{"q", "ctrl+c", "esc"} {
		_, cmd, handled := m.handleKey(key)
		if !handled || cmd == nil {
			t.Fatalf("%s did not quit", key)
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Errorf("%s: command did not produce QuitMsg", key)
		}
	}
}

func TestUnhandledKeyFallsThrough(t *testing.T) {
	m := New(0, testPages())
	if _, _, handled := m.handleKey("down"); handled {
		t.Error("navigation key consumed by viewer")
	}
}

func TestViewShowsPageAndStatus(t *testing.T) {
	m := New(0x401000, testPages())
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 10})
	view := updated.(model).View()

	for _, want := range []string{"push rbp", "0x401000", "disasm", "dump", "quit"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}
