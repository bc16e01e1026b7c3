package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/normanking/safeshell/internal/classify"
	"github.com/normanking/safeshell/internal/pipeline"
	"github.com/normanking/safeshell/internal/platform"
)

const defaultWidth = 100

// UI writes the interactive session to a terminal. Everything goes out as
// styled lines on a shared writer, so subprocess output, prompts, and
// notices interleave in order instead of fighting over the screen.
type UI struct {
	out     io.Writer
	term    *termenv.Output
	theme   Theme
	styles  *Styles
	width   int
	profile termenv.Profile
}

// Option configures a UI.
type Option func(*UI)

// WithWriter directs all output to w instead of stdout.
func WithWriter(w io.Writer) Option {
	return func(u *UI) {
		if w != nil {
			u.out = w
		}
	}
}

// WithTheme selects the color theme.
func WithTheme(theme Theme) Option {
	return func(u *UI) { u.theme = theme }
}

// WithWidth sets the wrap width for markdown and tables.
func WithWidth(width int) Option {
	return func(u *UI) {
		if width > 0 {
			u.width = width
		}
	}
}

// WithColorProfile overrides the detected terminal color profile.
func WithColorProfile(p termenv.Profile) Option {
	return func(u *UI) { u.profile = p }
}

// New builds a UI for the session terminal.
func New(opts ...Option) *UI {
	u := &UI{
		out:     os.Stdout,
		theme:   ThemeDefault,
		width:   defaultWidth,
		profile: termenv.EnvColorProfile(),
	}
	for _, opt := range opts {
		opt(u)
	}
	u.term = termenv.NewOutput(u.out, termenv.WithProfile(u.profile))
	lipgloss.SetColorProfile(u.profile)
	u.styles = NewStyles(u.theme)
	return u
}

// Styles exposes the computed style set.
func (u *UI) Styles() *Styles { return u.styles }

// Theme returns the active theme.
func (u *UI) Theme() Theme { return u.theme }

// SetTheme switches the palette in place, so references held elsewhere
// keep rendering with the new styles.
func (u *UI) SetTheme(theme Theme) {
	u.theme = theme
	u.styles = NewStyles(theme)
}

// Width returns the wrap width.
func (u *UI) Width() int { return u.width }

// Writer returns the underlying output writer.
func (u *UI) Writer() io.Writer { return u.out }

// Print writes a line verbatim.
func (u *UI) Print(line string) {
	fmt.Fprintln(u.out, line)
}

// Printf writes a formatted line.
func (u *UI) Printf(format string, args ...any) {
	fmt.Fprintf(u.out, format+"\n", args...)
}

// Successf writes a line in the success color.
func (u *UI) Successf(format string, args ...any) {
	fmt.Fprintln(u.out, u.styles.Success.Render(fmt.Sprintf(format, args...)))
}

// Warnf writes a line in the warning color.
func (u *UI) Warnf(format string, args ...any) {
	fmt.Fprintln(u.out, u.styles.Warning.Render(fmt.Sprintf(format, args...)))
}

// Errorf writes a line in the error color.
func (u *UI) Errorf(format string, args ...any) {
	fmt.Fprintln(u.out, u.styles.Error.Render(fmt.Sprintf(format, args...)))
}

// Mutedf writes a dimmed line.
func (u *UI) Mutedf(format string, args ...any) {
	fmt.Fprintln(u.out, u.styles.Muted.Render(fmt.Sprintf(format, args...)))
}

// Clear wipes the screen and homes the cursor.
func (u *UI) Clear() {
	u.term.ClearScreen()
}

// Banner prints the session header: name, version, detected shell, and
// whether the AI collaborators are wired.
func (u *UI) Banner(version string, info *platform.Info, aiEnabled bool) {
	fmt.Fprintln(u.out, u.styles.Banner.Render("safeshell "+version))
	if info != nil {
		meta := fmt.Sprintf("%s (%s) on %s", info.Shell, info.Family, info.OS)
		if !info.Modern {
			meta += ", legacy fallback"
		}
		fmt.Fprintln(u.out, u.styles.BannerMeta.Render(meta))
	}
	if aiEnabled {
		fmt.Fprintln(u.out, u.styles.BannerMeta.Render("AI translation and validation enabled"))
	} else {
		fmt.Fprintln(u.out, u.styles.BannerMeta.Render("AI offline: prose input and tier 3 commands will be refused"))
	}
	fmt.Fprintln(u.out, u.styles.BannerMeta.Render(`type a command, describe what you want, or /help`))
}

// Prompt renders the input prompt for the current directory.
func (u *UI) Prompt(cwd string) string {
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		if cwd == home {
			cwd = "~"
		} else if strings.HasPrefix(cwd, home+string(os.PathSeparator)) {
			cwd = "~" + cwd[len(home):]
		}
	}
	return u.styles.PromptPath.Render(cwd) + " " + u.styles.Prompt.Render("❯") + " "
}

// Blocked prints the lockdown notice. The reason is always stated; a
// blocked command is never a silent no-op.
func (u *UI) Blocked(reason string) {
	body := u.styles.BlockHeader.Render("BLOCKED") + "\n" +
		reason + "\n" +
		u.styles.Muted.Render("tier 4 commands never run, not even with /force")
	fmt.Fprintln(u.out, u.styles.BlockBox.Render(body))
}

// RenderResult prints everything a finished pipeline pass produced:
// translation, warnings, subprocess output, and the outcome notice.
func (u *UI) RenderResult(res *pipeline.Result, err error) {
	if res == nil {
		if err != nil {
			u.Errorf("error: %v", err)
		}
		return
	}
	if res.Kind == classify.KindEmpty || res.Kind == classify.KindMeta {
		return
	}

	if res.Translated {
		line := u.styles.Muted.Render("→ ") + u.styles.Accent.Render(res.Command)
		if res.Explanation != "" {
			line += u.styles.Muted.Render("  " + res.Explanation)
		}
		fmt.Fprintln(u.out, line)
	}
	for _, seg := range res.Segments {
		if seg.Warning != "" {
			u.Warnf("%s", seg.Warning)
		}
	}

	u.writeOutput(res)

	if res.Blocked {
		u.Blocked(res.BlockReason)
		return
	}
	if err != nil {
		u.renderFailure(res, err)
		return
	}
	if res.ExitCode > 0 {
		u.Mutedf("exit %d", res.ExitCode)
	}
}

// writeOutput prints captured subprocess output verbatim. Styling shell
// output would corrupt anything the command meant literally.
func (u *UI) writeOutput(res *pipeline.Result) {
	if res.Stdout != "" {
		io.WriteString(u.out, res.Stdout)
		if !strings.HasSuffix(res.Stdout, "\n") {
			io.WriteString(u.out, "\n")
		}
	}
	if res.Stderr != "" {
		io.WriteString(u.out, res.Stderr)
		if !strings.HasSuffix(res.Stderr, "\n") {
			io.WriteString(u.out, "\n")
		}
	}
	if res.Truncated {
		u.Mutedf("[output truncated]")
	}
}

func (u *UI) renderFailure(res *pipeline.Result, err error) {
	switch res.ErrKind {
	case pipeline.ErrKindValidationDenied:
		u.Errorf("denied: %v", err)
	case pipeline.ErrKindTranslationUnavailable:
		u.Warnf("could not translate that: %v", err)
		u.Mutedf("try phrasing it as a shell command")
	case pipeline.ErrKindUnknownCommand:
		u.Errorf("%v", err)
	case pipeline.ErrKindExecutionTimeout:
		u.Errorf("timed out: %v", err)
	case pipeline.ErrKindShellUnavailable:
		u.Errorf("shell unavailable: %v", err)
	case pipeline.ErrKindCanceled:
		u.Mutedf("canceled")
	default:
		u.Errorf("error: %v", err)
	}
}
