package ui

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

const helpMarkdown = `# safeshell

Type a shell command, or describe what you want in plain language and it
will be translated for your shell before the usual safety checks run.

## Meta commands

| Command | Effect |
| ------- | ------ |
| /help | this page |
| /exit, /quit | leave the session |
| /clear | clear the screen |
| /status | platform, shell, and AI collaborator status |
| /stats | session counters |
| /history [n] | recent invocations, newest first |
| /tiers | verb safety classifications |
| /aliases | alias listing for the active shell family |
| /reload | reload alias and tier tables from disk |
| /config | effective configuration |
| /theme [name] | list or switch color themes |
| /version | build information |

## Force

Prefix a command with /f or /force to skip the tier 2.5 confirmation
prompt. Force never unlocks tier 4: lockdown commands do not run at all.

## Safety tiers

| Tier | Meaning |
| ---- | ------- |
| 1 | instant, runs immediately |
| 2 | auto-correct, typos are fixed before running |
| 2.5 | confirm, asks before running |
| 3 | validate, an AI validator must approve |
| 4 | lockdown, never runs |

Unknown commands are treated as tier 3 until you classify them.
`

// RenderHelp returns the help page rendered for the terminal.
func (u *UI) RenderHelp() string {
	return u.Markdown(helpMarkdown)
}

// Markdown renders markdown for the terminal, falling back to the raw
// text when the renderer cannot be built.
func (u *UI) Markdown(md string) string {
	opts := []glamour.TermRendererOption{glamour.WithWordWrap(u.width)}
	if u.theme.GlamourStyle != "" {
		opts = append(opts, glamour.WithStandardStyle(u.theme.GlamourStyle))
	} else {
		opts = append(opts, glamour.WithAutoStyle())
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimRight(out, "\n")
}
