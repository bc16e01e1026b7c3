package ui

import (
	"fmt"

	"github.com/evertras/bubble-table/table"

	"github.com/normanking/safeshell/internal/alias"
	"github.com/normanking/safeshell/internal/history"
	"github.com/normanking/safeshell/internal/safety"
)

// Table renders happen once per meta command, so everything here builds a
// fresh static model and returns its View.

func (u *UI) newTable(cols []table.Column, rows []table.Row) table.Model {
	return table.New(cols).
		WithRows(rows).
		BorderRounded().
		WithBaseStyle(u.styles.TableBase).
		HeaderStyle(u.styles.Accent.Bold(true)).
		WithTargetWidth(u.width)
}

// TierTable renders the verb classification listing for /tiers.
func (u *UI) TierTable(entries []safety.TierEntry) string {
	if len(entries) == 0 {
		return u.styles.Muted.Render("no tier classifications loaded")
	}
	cols := []table.Column{
		table.NewFlexColumn("verb", "Verb", 2),
		table.NewColumn("tier", "Tier", 18),
		table.NewColumn("origin", "Origin", 10),
	}
	rows := make([]table.Row, 0, len(entries))
	for _, e := range entries {
		origin := "builtin"
		if e.UserDefined {
			origin = "user"
		}
		rows = append(rows, table.NewRow(table.RowData{
			"verb":   e.Verb,
			"tier":   e.Tier.String() + " (" + e.Tier.Label() + ")",
			"origin": origin,
		}).WithStyle(u.styles.Tier(e.Tier)))
	}
	return u.newTable(cols, rows).View()
}

// AliasTable renders the active family's alias listing for /aliases.
func (u *UI) AliasTable(entries []*alias.Entry) string {
	if len(entries) == 0 {
		return u.styles.Muted.Render("no aliases for this shell family")
	}
	cols := []table.Column{
		table.NewColumn("source", "Alias", 14),
		table.NewFlexColumn("target", "Translates To", 2),
		table.NewFlexColumn("desc", "Description", 3),
	}
	rows := make([]table.Row, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, table.NewRow(table.RowData{
			"source": e.Source,
			"target": e.Target,
			"desc":   e.Description,
		}))
	}
	return u.newTable(cols, rows).View()
}

// HistoryTable renders recent invocations for /history.
func (u *UI) HistoryTable(records []*history.Record) string {
	if len(records) == 0 {
		return u.styles.Muted.Render("no history yet")
	}
	cols := []table.Column{
		table.NewColumn("when", "When", 17),
		table.NewFlexColumn("command", "Command", 3),
		table.NewColumn("tier", "Tier", 5),
		table.NewColumn("outcome", "Outcome", 9),
		table.NewColumn("exit", "Exit", 5),
		table.NewColumn("took", "Took", 8),
	}
	rows := make([]table.Row, 0, len(records))
	for _, r := range records {
		exit := fmt.Sprintf("%d", r.ExitCode)
		if r.Outcome == history.OutcomeBlocked {
			exit = "-"
		}
		row := table.NewRow(table.RowData{
			"when":    r.ExecutedAt.Local().Format("2006-01-02 15:04"),
			"command": r.Command,
			"tier":    r.Tier,
			"outcome": r.Outcome,
			"exit":    exit,
			"took":    formatMillis(r.DurationMs),
		})
		switch r.Outcome {
		case history.OutcomeBlocked:
			row = row.WithStyle(u.styles.Error)
		case history.OutcomeFailed:
			row = row.WithStyle(u.styles.Warning)
		}
		rows = append(rows, row)
	}
	return u.newTable(cols, rows).View()
}

func formatMillis(ms int64) string {
	if ms <= 0 {
		return "-"
	}
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	return fmt.Sprintf("%.1fs", float64(ms)/1000)
}
