package ui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
)

// confirmModel is a one-line yes/no prompt. No is the default: enter
// commits the highlighted choice, which starts on no. Escape and ctrl+c
// always decline, y and n answer directly, left/right/tab move the
// highlight.
type confirmModel struct {
	prompt   string
	styles   *Styles
	selected bool
	answered bool
	choice   bool
}

func (m confirmModel) Init() tea.Cmd { return nil }

func (m confirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "y", "Y":
		m.choice = true
		m.answered = true
		return m, tea.Quit
	case "n", "N", "esc", "ctrl+c", "q":
		m.choice = false
		m.answered = true
		return m, tea.Quit
	case "left", "right", "tab":
		m.selected = !m.selected
		return m, nil
	case "enter":
		m.choice = m.selected
		m.answered = true
		return m, tea.Quit
	}
	return m, nil
}

func (m confirmModel) View() string {
	hint := "[y/N]"
	if m.selected {
		hint = "[Y/n]"
	}
	line := m.styles.ConfirmPrompt.Render(m.prompt) + " " + m.styles.ConfirmHint.Render(hint)
	if !m.answered {
		return line + " "
	}
	if m.choice {
		return line + " " + m.styles.Success.Render("yes") + "\n"
	}
	return line + " " + m.styles.Error.Render("no") + "\n"
}

// Confirm asks an inline yes/no question on the session terminal and
// satisfies the pipeline's confirmation hook. It assumes an interactive
// terminal; non-interactive runs should deny instead of calling this.
func (u *UI) Confirm(prompt string) (bool, error) {
	m := confirmModel{prompt: prompt, styles: u.styles}
	out, err := tea.NewProgram(m, tea.WithOutput(u.out)).Run()
	if err != nil {
		return false, fmt.Errorf("confirmation prompt: %w", err)
	}
	final, ok := out.(confirmModel)
	if !ok {
		return false, nil
	}
	return final.choice, nil
}
