package ui

import (
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/safeshell/internal/pipeline"
)

var (
	_ pipeline.ConfirmFunc = (&UI{}).Confirm
	_ pipeline.Translator  = SpinTranslator{}
	_ pipeline.Validator   = SpinValidator{}
)

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg(tea.Key{Type: tea.KeyRunes, Runes: []rune(s)})
}

func isQuit(t *testing.T, cmd tea.Cmd) {
	t.Helper()
	require.NotNil(t, cmd)
	_, ok := cmd().(tea.QuitMsg)
	assert.True(t, ok, "expected a quit command")
}

func TestConfirmDirectYes(t *testing.T) {
	styles := NewStyles(ThemeDefault)

	for _, key := range []tea.KeyMsg{keyRunes("y"), keyRunes("Y")} {
		m := confirmModel{prompt: "Run \"find /\" (tier 2.5)?", styles: styles}
		next, cmd := m.Update(key)
		got := next.(confirmModel)
		assert.True(t, got.answered)
		assert.True(t, got.choice)
		isQuit(t, cmd)
	}
}

func TestConfirmArrowSelection(t *testing.T) {
	styles := NewStyles(ThemeDefault)

	m := confirmModel{prompt: "Run it?", styles: styles}
	next, cmd := m.Update(tea.KeyMsg(tea.Key{Type: tea.KeyRight}))
	got := next.(confirmModel)
	assert.Nil(t, cmd, "moving the highlight does not answer")
	assert.False(t, got.answered)
	assert.Contains(t, got.View(), "[Y/n]", "highlight moves to yes")

	next, cmd = got.Update(tea.KeyMsg(tea.Key{Type: tea.KeyEnter}))
	got = next.(confirmModel)
	assert.True(t, got.answered)
	assert.True(t, got.choice, "enter commits the highlighted yes")
	isQuit(t, cmd)

	m = confirmModel{prompt: "Run it?", styles: styles}
	next, _ = m.Update(tea.KeyMsg(tea.Key{Type: tea.KeyRight}))
	next, _ = next.(confirmModel).Update(tea.KeyMsg(tea.Key{Type: tea.KeyLeft}))
	next, cmd = next.(confirmModel).Update(tea.KeyMsg(tea.Key{Type: tea.KeyEnter}))
	got = next.(confirmModel)
	assert.True(t, got.answered)
	assert.False(t, got.choice, "toggling back lands on the default no")
	isQuit(t, cmd)
}

func TestConfirmDefaultsToNo(t *testing.T) {
	styles := NewStyles(ThemeDefault)

	declines := []tea.KeyMsg{
		keyRunes("n"),
		keyRunes("N"),
		keyRunes("q"),
		{Type: tea.KeyEnter},
		{Type: tea.KeyEsc},
		{Type: tea.KeyCtrlC},
	}
	for _, key := range declines {
		m := confirmModel{prompt: "Run it?", styles: styles}
		next, cmd := m.Update(key)
		got := next.(confirmModel)
		assert.True(t, got.answered, "key %q should answer", key.String())
		assert.False(t, got.choice, "key %q should decline", key.String())
		isQuit(t, cmd)
	}
}

func TestConfirmIgnoresOtherKeys(t *testing.T) {
	m := confirmModel{prompt: "Run it?", styles: NewStyles(ThemeDefault)}
	next, cmd := m.Update(keyRunes("x"))
	got := next.(confirmModel)
	assert.False(t, got.answered)
	assert.Nil(t, cmd)
}

func TestConfirmViewShowsPromptAndDefault(t *testing.T) {
	m := confirmModel{prompt: "Run \"rm core\" (tier 2.5)?", styles: NewStyles(ThemeDefault)}
	view := m.View()
	assert.Contains(t, view, "rm core")
	assert.Contains(t, view, "[y/N]")

	m.answered = true
	m.choice = true
	assert.Contains(t, m.View(), "yes")
	m.choice = false
	assert.Contains(t, m.View(), "no")
}

func TestWaitModelFinishesOnDone(t *testing.T) {
	styles := NewStyles(ThemeDefault)
	boom := errors.New("boom")
	m := newWaitModel("translating", styles, func() {}, make(chan waitDoneMsg))

	next, cmd := m.Update(waitDoneMsg{err: boom})
	got := next.(waitModel)
	assert.True(t, got.finished)
	assert.ErrorIs(t, got.err, boom)
	isQuit(t, cmd)
	assert.Empty(t, got.View(), "a finished spinner leaves no residue")
}

func TestWaitModelCancelKeepsSpinning(t *testing.T) {
	styles := NewStyles(ThemeDefault)
	canceled := false
	m := newWaitModel("validating git push", styles, func() { canceled = true }, make(chan waitDoneMsg))

	next, cmd := m.Update(tea.KeyMsg(tea.Key{Type: tea.KeyCtrlC}))
	got := next.(waitModel)
	assert.True(t, canceled, "ctrl+c must cancel the collaborator call")
	assert.False(t, got.finished, "the spinner waits for the call to return")
	assert.Nil(t, cmd)
	assert.Contains(t, got.View(), "canceling")
}

func TestClipLabel(t *testing.T) {
	assert.Equal(t, "short", clipLabel("short", 10))
	assert.Equal(t, "0123456...", clipLabel("0123456789abcdef", 10))
}
