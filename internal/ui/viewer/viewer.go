// Package viewer pages listings and dumps in a full-screen terminal view.
package viewer

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/v2/viewport"
	tea "github.com/charmbracelet/bubbletea/v2"
	"github.com/charmbracelet/lipgloss/v2"
)

// Page is one tab of the viewer.
type Page struct {
	Title   string
	Content string
}

type model struct {
	viewport viewport.Model
	pages    []Page
	current  int
	address  uint64
	width    int
	height   int
}

// New builds a viewer over pages, labelled with the inspected address.
func New(address uint64, pages []Page) model {
	vp := viewport.New()
	vp.SetWidth(80)
	vp.SetHeight(22)

	m := model{
		viewport: vp,
		pages:    pages,
		address:  address,
		width:    80,
		height:   24,
	}
	m.show(0)
	return m
}

// Run blocks until the user quits.
func Run(ctx context.Context, address uint64, pages []Page) error {
	if len(pages) == 0 {
		return fmt.Errorf("viewer: nothing to show")
	}
	program := tea.NewProgram(
		New(address, pages),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("viewer: %w", err)
	}
	return nil
}

func (m *model) show(i int) {
	if len(m.pages) == 0 {
		return
	}
	m.current = (i + len(m.pages)) % len(m.pages)
	m.viewport.SetContent(m.pages[m.current].Content)
	m.viewport.GotoTop()
}

func (m model) Init() tea.Cmd {
	return nil
}

// handleKey applies a key; handled is false when the viewport should
// receive it instead.
func (m model) handleKey(key string) (model, tea.Cmd, bool) {
	switch key {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit, true
	case "tab":
		m.show(m.current + 1)
		return m, nil, true
	case "shift+tab":
		m.show(m.current - 1)
		return m, nil, true
	}
	return m, nil, false
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.SetWidth(msg.Width)
		m.viewport.SetHeight(msg.Height - 2)
	case tea.KeyMsg:
		next, cmd, handled := m.handleKey(msg.String())
		if handled {
			return next, cmd
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m model) tabs() string {
	active := lipgloss.NewStyle().Foreground(lipgloss.Color("170")).Bold(true)
	idle := lipgloss.NewStyle().Foreground(lipgloss.Color("245"))

	titles := make([]string, len(m.pages))
	for i, p := range m.pages {
		if i == m.current {
			titles[i] = active.Render(p.Title)
		} else {
			titles[i] = idle.Render(p.Title)
		}
	}
	return strings.Join(titles, " • ")
}

func (m model) View() string {
	menu := fmt.Sprintf(" %#x  %s   Tab: next • Q: quit ", m.address, m.tabs())

	menuStyle := lipgloss.NewStyle().
		Background(lipgloss.Color("235")).
		Foreground(lipgloss.Color("252")).
		Padding(0, 1).
		Width(m.width)

	return m.viewport.View() + "\n" + menuStyle.Render(menu)
}
