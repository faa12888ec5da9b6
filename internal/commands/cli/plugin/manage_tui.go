package plugin

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/andrei-cloud/go_ayoto/internal/dispatch"
	"github.com/andrei-cloud/go_ayoto/internal/plugins"
)

// toggleFunc enables or disables one plugin.
type toggleFunc func(t dispatch.Target, enabled bool) error

// toggledMsg reports the outcome of a toggle started by the model.
type toggledMsg struct {
	index   int
	enabled bool
	err     error
}

type manageModel struct {
	plugins []plugins.Summary
	cursor  int
	toggle  toggleFunc
	pending bool
	status  string
	done    bool
}

// newManageModel creates a TUI model over the given plugins.
func newManageModel(list []plugins.Summary, toggle toggleFunc) manageModel {
	return manageModel{plugins: list, toggle: toggle}
}

// Init initializes the model.
func (m manageModel) Init() tea.Cmd {
	return nil
}

// Update handles messages and updates the model state.
func (m manageModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case toggledMsg:
		m.pending = false
		p := &m.plugins[msg.index]
		if msg.err != nil {
			m.status = fmt.Sprintf("%s: %v", p.ID, msg.err)

			return m, nil
		}
		p.Enabled = msg.enabled
		m.status = fmt.Sprintf("%s %s", p.ID, stateWord(msg.enabled))
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			m.done = true

			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.plugins)-1 {
				m.cursor++
			}
		case "enter", " ":
			if len(m.plugins) == 0 || m.pending {
				return m, nil
			}
			m.pending = true

			return m, m.toggleCmd(m.cursor)
		}
	}

	return m, nil
}

// toggleCmd flips the plugin at index outside the update loop.
func (m manageModel) toggleCmd(index int) tea.Cmd {
	p := m.plugins[index]
	target := dispatch.Target{Backend: p.Backend, PluginID: p.ID}
	enabled := !p.Enabled

	return func() tea.Msg {
		return toggledMsg{index: index, enabled: enabled, err: m.toggle(target, enabled)}
	}
}

func stateWord(enabled bool) string {
	if enabled {
		return "enabled"
	}

	return "disabled"
}

// View renders the current state of the model.
func (m manageModel) View() string {
	if m.done {
		return ""
	}

	s := "Manage Plugins\n"
	s += strings.Repeat("=", 50) + "\n\n"

	if len(m.plugins) == 0 {
		s += "  No plugins loaded.\n"
	}
	for i, p := range m.plugins {
		cursor := "  "
		if i == m.cursor {
			cursor = "▶ "
		}
		check := "○"
		if p.Enabled {
			check = "●"
		}
		s += fmt.Sprintf("%s%s %s (%s) %s\n", cursor, check, p.ID, p.Backend, p.Version)
	}

	if m.status != "" {
		s += "\n" + m.status + "\n"
	}
	s += "\n↑/↓: move • enter/space: toggle • q: quit\n"

	return s
}
