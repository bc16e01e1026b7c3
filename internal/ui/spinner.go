package ui

import (
	"context"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/normanking/safeshell/internal/llm"
	"github.com/normanking/safeshell/internal/pipeline"
)

type waitDoneMsg struct{ err error }

// waitModel shows an inline spinner while a collaborator call is in
// flight. Ctrl+C cancels the call's context and keeps spinning until the
// call returns; the model never abandons a running goroutine.
type waitModel struct {
	spinner  spinner.Model
	label    string
	styles   *Styles
	cancel   context.CancelFunc
	done     <-chan waitDoneMsg
	err      error
	canceled bool
	finished bool
}

func newWaitModel(label string, styles *Styles, cancel context.CancelFunc, done <-chan waitDoneMsg) waitModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.SpinnerDots
	return waitModel{
		spinner: sp,
		label:   label,
		styles:  styles,
		cancel:  cancel,
		done:    done,
	}
}

func (m waitModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.waitForDone())
}

func (m waitModel) waitForDone() tea.Cmd {
	done := m.done
	return func() tea.Msg { return <-done }
}

func (m waitModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.canceled = true
			m.cancel()
		}
		return m, nil
	case waitDoneMsg:
		m.err = msg.err
		m.finished = true
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m waitModel) View() string {
	if m.finished {
		return ""
	}
	line := m.spinner.View() + m.styles.SpinnerLabel.Render(m.label)
	if m.canceled {
		line += m.styles.Muted.Render(" (canceling, ctrl+c again does nothing)")
	}
	return line
}

// Wait runs fn behind an inline spinner and returns its error. Ctrl+C
// cancels the context passed to fn; Wait still blocks until fn returns.
func (u *UI) Wait(ctx context.Context, label string, fn func(context.Context) error) error {
	cctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan waitDoneMsg, 1)
	go func() { done <- waitDoneMsg{err: fn(cctx)} }()

	m := newWaitModel(label, u.styles, cancel, done)
	out, err := tea.NewProgram(m, tea.WithOutput(u.out)).Run()
	if err != nil {
		// The terminal failed, not the call. Cancel it and wait it out.
		cancel()
		return (<-done).err
	}
	if final, ok := out.(waitModel); ok {
		return final.err
	}
	return (<-done).err
}

func clipLabel(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

// SpinTranslator decorates a translator with a session spinner. The
// terminal is idle while the translator thinks, so the spinner owns it
// for exactly that window.
type SpinTranslator struct {
	Inner pipeline.Translator
	UI    *UI
}

func (s SpinTranslator) Translate(ctx context.Context, query, platformName string) (*llm.Translation, error) {
	var tr *llm.Translation
	err := s.UI.Wait(ctx, "translating", func(ctx context.Context) error {
		var inner error
		tr, inner = s.Inner.Translate(ctx, query, platformName)
		return inner
	})
	return tr, err
}

// SpinValidator decorates a validator the same way.
type SpinValidator struct {
	Inner pipeline.Validator
	UI    *UI
}

func (s SpinValidator) Validate(ctx context.Context, command, platformName string) (*llm.Verdict, error) {
	var v *llm.Verdict
	label := "validating " + clipLabel(command, 48)
	err := s.UI.Wait(ctx, label, func(ctx context.Context) error {
		var inner error
		v, inner = s.Inner.Validate(ctx, command, platformName)
		return inner
	})
	return v, err
}
