package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	zlog "github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/normanking/safeshell/internal/bus"
	"github.com/normanking/safeshell/internal/classify"
	"github.com/normanking/safeshell/internal/config"
	"github.com/normanking/safeshell/internal/history"
	"github.com/normanking/safeshell/internal/ui"
)

// session is one interactive run: a read loop on the controlling
// terminal feeding the pipeline one line at a time.
type session struct {
	a         *app
	reader    *bufio.Reader
	startedAt time.Time

	// cancel aborts the in-flight pipeline pass; nil at an idle prompt.
	mu     sync.Mutex
	cancel context.CancelFunc
}

func runSession(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer a.Close()

	s := &session{
		a:         a,
		reader:    bufio.NewReader(os.Stdin),
		startedAt: time.Now(),
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	defer signal.Stop(sigCh)
	go func() {
		for range sigCh {
			s.interrupt()
		}
	}()

	a.u.Banner(version, a.info, a.aiUp)
	s.loop()
	a.u.Mutedf("bye")
	return nil
}

func (s *session) loop() {
	u := s.a.u
	for {
		cwd, err := os.Getwd()
		if err != nil {
			cwd = "?"
		}
		fmt.Fprint(u.Writer(), u.Prompt(cwd))

		line, err := s.reader.ReadString('\n')
		if err != nil {
			fmt.Fprintln(u.Writer())
			return
		}
		input := strings.TrimSpace(line)

		switch {
		case input == "":
			continue
		case input == "exit" || input == "quit":
			// Only /-prefixed input is a session command. Dispatching a
			// bare exit would spawn a shell that exits silently instead.
			u.Mutedf("type /exit to leave the session")
			continue
		case s.handleCd(input):
			continue
		}

		if quit := s.dispatch(input); quit {
			return
		}
	}
}

// dispatch runs one input line through the pipeline. Meta commands come
// back classified instead of executed; the session owns those.
func (s *session) dispatch(input string) (quit bool) {
	ctx, cancel := context.WithCancel(context.Background())
	s.setCancel(cancel)
	res, err := s.a.pipe.Process(ctx, input)
	s.setCancel(nil)
	cancel()

	if res != nil && res.Kind == classify.KindMeta {
		return s.handleMeta(res.Meta)
	}
	s.a.u.RenderResult(res, err)
	return false
}

func (s *session) setCancel(c context.CancelFunc) {
	s.mu.Lock()
	s.cancel = c
	s.mu.Unlock()
}

// interrupt cancels the in-flight command if there is one. At an idle
// prompt there is nothing to cancel, so it hints at /exit instead of
// tearing the session down the way a bare ctrl+c would.
func (s *session) interrupt() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		return
	}
	u := s.a.u
	fmt.Fprintln(u.Writer())
	u.Mutedf("nothing to interrupt, /exit leaves the session")
}

// handleCd keeps cd inside the session process. A subprocess cd changes
// nothing once the subprocess exits, so the front-end moves itself.
// Compound lines still go to the shell untouched.
func (s *session) handleCd(input string) bool {
	if strings.ContainsAny(input, "|&;><") {
		return false
	}
	fields := strings.Fields(input)
	if len(fields) == 0 || fields[0] != "cd" || len(fields) > 2 {
		return false
	}

	home, _ := os.UserHomeDir()
	target := ""
	if len(fields) == 2 {
		target = fields[1]
	}
	switch {
	case target == "" || target == "~":
		target = home
	case strings.HasPrefix(target, "~/"):
		target = filepath.Join(home, target[2:])
	}

	if err := os.Chdir(target); err != nil {
		s.a.u.Errorf("cd: %v", err)
	}
	return true
}

func (s *session) handleMeta(meta classify.Meta) (quit bool) {
	u := s.a.u
	switch meta.Name {
	case "exit", "quit":
		return true
	case "help":
		u.Print(u.RenderHelp())
	case "clear":
		u.Clear()
	case "version":
		u.Printf("SafeShell v%s", version)
	case "status":
		s.renderStatus()
	case "stats":
		s.renderStats()
	case "history":
		s.renderHistory(meta.Args)
	case "tiers":
		u.Print(u.TierTable(s.a.tierTbl.Entries()))
		u.Mutedf("overrides: %s", s.a.cfg.Safety.TiersPath)
	case "aliases":
		u.Mutedf("translations for the %s family", s.a.info.Family)
		u.Print(u.AliasTable(s.a.aliasTbl.Entries(s.a.info.Family)))
	case "reload":
		s.reloadTables()
	case "config":
		s.renderConfig()
	case "theme":
		s.switchTheme(meta.Args)
	case "f", "force":
		u.Mutedf("usage: /f <command> runs it without the tier 2.5 prompt")
	default:
		u.Warnf("unknown command /%s, /help lists the session commands", meta.Name)
	}
	return false
}

func (s *session) renderStatus() {
	u, a := s.a.u, s.a

	u.Printf("shell     %s", a.info)
	u.Printf("os        %s", a.info.OS)

	switch {
	case a.provider == nil:
		u.Warnf("ai        offline, prose and tier 3 commands are refused")
	case a.provider.Available():
		a.aiUp = true
		u.Successf("ai        %s (%s) reachable", a.provider.Name(), a.cfg.AI.Model)
	default:
		a.aiUp = false
		u.Warnf("ai        %s unreachable at %s", a.provider.Name(), a.cfg.AI.Endpoint)
	}

	if a.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if count, err := a.store.Count(ctx); err == nil {
			u.Printf("history   %d records in %s", count, a.cfg.History.DataDir)
		} else {
			u.Warnf("history   %v", err)
		}
		cancel()
	} else {
		u.Mutedf("history   disabled")
	}

	u.Printf("config    %s", configPathInUse())
	u.Printf("session   %s, up %s", a.sessionID, time.Since(s.startedAt).Round(time.Second))
}

func (s *session) renderStats() {
	u := s.a.u
	if s.a.stats == nil {
		u.Mutedf("no stats collector running")
		return
	}
	st := s.a.stats.Snapshot()

	u.Printf("commands     %d", st.Total)
	tiers := make([]string, 0, len(st.PerTier))
	for t := range st.PerTier {
		tiers = append(tiers, t)
	}
	sort.Strings(tiers)
	for _, t := range tiers {
		u.Printf("  tier %-5s %d", t, st.PerTier[t])
	}
	u.Printf("executed     %d", st.Executed)
	u.Printf("blocked      %d", st.Blocked)
	u.Printf("denied       %d", st.Denied)
	u.Printf("translated   %d", st.Translated)
	u.Printf("corrected    %d", st.Corrected)
	u.Printf("exec errors  %d", st.ExecFailures)
	u.Printf("exec time    %s", (time.Duration(st.TotalExecMs) * time.Millisecond).Round(time.Millisecond))
	u.Printf("uptime       %s", st.Uptime().Round(time.Second))
}

func (s *session) renderHistory(args []string) {
	u := s.a.u
	if s.a.store == nil {
		u.Mutedf("history is disabled")
		return
	}

	limit := 20
	search := ""
	if len(args) > 0 {
		if n, err := strconv.Atoi(args[0]); err == nil && n > 0 {
			limit = n
		} else {
			search = strings.Join(args, " ")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var (
		recs []*history.Record
		err  error
	)
	if search != "" {
		recs, err = s.a.store.Search(ctx, search, limit)
	} else {
		recs, err = s.a.store.Recent(ctx, limit)
	}
	if err != nil {
		u.Errorf("history: %v", err)
		return
	}
	u.Print(u.HistoryTable(recs))
}

// reloadTables refreshes the alias and tier tables from disk. The tables
// swap atomically under their own locks, so commands racing a reload see
// either the old table or the new one, never a mix.
func (s *session) reloadTables() {
	u, a := s.a.u, s.a

	if err := a.aliasTbl.Reload(); err != nil {
		u.Errorf("alias reload: %v", err)
		return
	}
	if err := a.tierTbl.Reload(); err != nil {
		u.Errorf("tier reload: %v", err)
		return
	}

	aliases := a.aliasTbl.Len(a.info.Family)
	tiers := a.tierTbl.Len()

	ev := bus.NewEvent(bus.EventTablesReloaded)
	ev.SessionID = a.sessionID
	ev.Details = fmt.Sprintf("%d aliases, %d tier entries", aliases, tiers)
	if err := a.events.Publish(ev); err != nil {
		zlog.Warn().Err(err).Msg("reload event publish failed")
	}

	u.Successf("reloaded: %d aliases for %s, %d tier entries", aliases, a.info.Family, tiers)
}

func (s *session) renderConfig() {
	u := s.a.u
	data, err := yaml.Marshal(s.a.cfg)
	if err != nil {
		u.Errorf("config: %v", err)
		return
	}
	u.Mutedf("config: %s", configPathInUse())
	u.Print(strings.TrimRight(string(data), "\n"))
}

func (s *session) switchTheme(args []string) {
	u := s.a.u
	if len(args) == 0 {
		names := make([]string, 0, len(ui.Themes))
		for name := range ui.Themes {
			names = append(names, name)
		}
		sort.Strings(names)
		u.Printf("themes: %s (current: %s)", strings.Join(names, ", "), u.Theme().Name)
		return
	}

	name := args[0]
	if _, ok := ui.Themes[name]; !ok {
		u.Warnf("unknown theme %q", name)
		return
	}
	u.SetTheme(ui.ThemeByName(name))
	u.Successf("theme set to %s", name)
}

func configPathInUse() string {
	if cfgPath != "" {
		return cfgPath
	}
	return config.ConfigPath()
}

// notifyInterrupt returns a context canceled by the first interrupt, for
// one-shot runs that have no prompt to fall back to.
func notifyInterrupt(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt)
}
