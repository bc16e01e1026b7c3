// Package ui renders the interactive session: the prompt, confirmation
// dialogs, progress spinners for AI round trips, and the table and
// markdown views behind the meta commands. It writes plain styled lines
// rather than owning the whole screen, so subprocess output interleaves
// naturally with its own.
package ui

// Theme is a named color palette. Colors are hex strings so they feed
// lipgloss.Color directly.
type Theme struct {
	Name string

	Foreground string
	Border     string

	Primary   string
	Secondary string
	Success   string
	Warning   string
	Error     string
	Muted     string

	// Tier colors, instant through lockdown.
	TierInstant     string
	TierAutoCorrect string
	TierConfirm     string
	TierValidate    string
	TierLockdown    string

	// GlamourStyle names the markdown style for the help view.
	GlamourStyle string
}

// ThemeDefault is a VS Code dark palette.
var ThemeDefault = Theme{
	Name: "Default (VS Code Dark)",

	Foreground: "#d4d4d4",
	Border:     "#3e3e42",

	Primary:   "#007acc",
	Secondary: "#9cdcfe",
	Success:   "#4ec9b0",
	Warning:   "#dcdcaa",
	Error:     "#f48771",
	Muted:     "#6a737d",

	TierInstant:     "#4ec9b0",
	TierAutoCorrect: "#9cdcfe",
	TierConfirm:     "#dcdcaa",
	TierValidate:    "#ce9178",
	TierLockdown:    "#f44747",

	GlamourStyle: "dark",
}

// ThemeDracula is the Dracula palette.
var ThemeDracula = Theme{
	Name: "Dracula",

	Foreground: "#f8f8f2",
	Border:     "#6272a4",

	Primary:   "#bd93f9",
	Secondary: "#8be9fd",
	Success:   "#50fa7b",
	Warning:   "#f1fa8c",
	Error:     "#ff5555",
	Muted:     "#6272a4",

	TierInstant:     "#50fa7b",
	TierAutoCorrect: "#8be9fd",
	TierConfirm:     "#f1fa8c",
	TierValidate:    "#ffb86c",
	TierLockdown:    "#ff5555",

	GlamourStyle: "dracula",
}

// Themes lists the built-in palettes by lookup name.
var Themes = map[string]Theme{
	"default": ThemeDefault,
	"dracula": ThemeDracula,
}

// ThemeByName returns the named theme, or the default when unknown.
func ThemeByName(name string) Theme {
	if t, ok := Themes[name]; ok {
		return t
	}
	return ThemeDefault
}
