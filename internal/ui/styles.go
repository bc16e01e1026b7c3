package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/normanking/safeshell/internal/safety"
)

// Styles holds pre-computed lipgloss styles for every session element,
// so render paths never rebuild styles per line.
type Styles struct {
	theme Theme

	Banner     lipgloss.Style
	BannerMeta lipgloss.Style

	Prompt     lipgloss.Style
	PromptPath lipgloss.Style

	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Muted   lipgloss.Style
	Accent  lipgloss.Style

	// BlockBox frames a lockdown notice. Loud on purpose: a blocked
	// command explains itself, it never quietly does nothing.
	BlockBox    lipgloss.Style
	BlockHeader lipgloss.Style

	ConfirmPrompt lipgloss.Style
	ConfirmHint   lipgloss.Style

	SpinnerLabel lipgloss.Style
	SpinnerDots  lipgloss.Style

	// TableBase feeds the bubble-table renders behind the listing
	// meta commands.
	TableBase lipgloss.Style

	tiers map[safety.Tier]lipgloss.Style
}

// NewStyles computes the style set for a theme.
func NewStyles(theme Theme) *Styles {
	s := &Styles{theme: theme}

	s.Banner = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color(theme.Primary))
	s.BannerMeta = lipgloss.NewStyle().
		Foreground(lipgloss.Color(theme.Muted))

	s.Prompt = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color(theme.Primary))
	s.PromptPath = lipgloss.NewStyle().
		Foreground(lipgloss.Color(theme.Secondary))

	s.Success = lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Success))
	s.Warning = lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Warning))
	s.Error = lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Error))
	s.Muted = lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Muted))
	s.Accent = lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Secondary))

	s.BlockBox = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(theme.TierLockdown)).
		Padding(0, 1)
	s.BlockHeader = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color(theme.TierLockdown))

	s.ConfirmPrompt = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color(theme.Warning))
	s.ConfirmHint = lipgloss.NewStyle().
		Foreground(lipgloss.Color(theme.Muted))

	s.SpinnerLabel = lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Muted))
	s.SpinnerDots = lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Primary))

	s.TableBase = lipgloss.NewStyle().
		Foreground(lipgloss.Color(theme.Foreground)).
		BorderForeground(lipgloss.Color(theme.Border))

	s.tiers = map[safety.Tier]lipgloss.Style{
		safety.TierInstant:     lipgloss.NewStyle().Foreground(lipgloss.Color(theme.TierInstant)),
		safety.TierAutoCorrect: lipgloss.NewStyle().Foreground(lipgloss.Color(theme.TierAutoCorrect)),
		safety.TierConfirm:     lipgloss.NewStyle().Foreground(lipgloss.Color(theme.TierConfirm)),
		safety.TierValidate:    lipgloss.NewStyle().Foreground(lipgloss.Color(theme.TierValidate)),
		safety.TierLockdown:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(theme.TierLockdown)),
	}
	return s
}

// Tier returns the badge style for a tier.
func (s *Styles) Tier(t safety.Tier) lipgloss.Style {
	if st, ok := s.tiers[t]; ok {
		return st
	}
	return s.Muted
}

// TierBadge renders a tier as a colored "tier 2.5 (confirm)" badge.
func (s *Styles) TierBadge(t safety.Tier) string {
	return s.Tier(t).Render("tier " + t.String() + " (" + t.Label() + ")")
}
