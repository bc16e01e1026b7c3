// Package main is the entry point for the SafeShell CLI.
// SafeShell is a shell front-end that classifies every input line,
// translates cross-platform aliases for the detected shell, assigns a
// safety tier, and only then hands the command to a subprocess.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/normanking/safeshell/internal/alias"
	"github.com/normanking/safeshell/internal/bus"
	"github.com/normanking/safeshell/internal/classify"
	"github.com/normanking/safeshell/internal/config"
	"github.com/normanking/safeshell/internal/history"
	"github.com/normanking/safeshell/internal/llm"
	"github.com/normanking/safeshell/internal/logging"
	"github.com/normanking/safeshell/internal/metrics"
	"github.com/normanking/safeshell/internal/pipeline"
	"github.com/normanking/safeshell/internal/platform"
	"github.com/normanking/safeshell/internal/safety"
	"github.com/normanking/safeshell/internal/shell"
	"github.com/normanking/safeshell/internal/ui"
)

var (
	version = "0.3.0"

	cfgPath   string
	verbose   bool
	shellFlag string
	themeFlag string

	appCfg *config.Config
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "safeshell",
		Short: "SafeShell - a safety-tiered shell front-end",
		Long: `SafeShell sits between you and your shell:
  • Natural language is translated into a command for your shell
  • Unix commands translate to PowerShell and cmd equivalents
  • Every command gets a safety tier before anything runs
  • Tier 4 commands never run; tier 3 needs an AI safety verdict
  • Tier 2.5 asks first (prefix /f to skip the prompt)

Start interactive mode:  safeshell
Run one command:         safeshell exec "ls -la"
Environment checkup:     safeshell doctor`,
		PersistentPreRunE: initLogging,
		RunE:              runSession,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file path (default ~/.safeshell/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging, mirrored to stderr")
	rootCmd.PersistentFlags().StringVar(&shellFlag, "shell", "", "target shell override (pwsh, powershell, cmd, bash, zsh, sh)")
	rootCmd.PersistentFlags().StringVar(&themeFlag, "theme", "", "color theme (default, dracula)")

	rootCmd.AddCommand(
		versionCmd(),
		execCmd(),
		tiersCmd(),
		aliasesCmd(),
		historyCmd(),
		configCmd(),
		doctorCmd(),
	)

	err := rootCmd.Execute()
	logging.Close()
	if err != nil {
		var ec exitCodeError
		if errors.As(err, &ec) {
			os.Exit(ec.code)
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// exitCodeError carries a subprocess exit status out of a command so the
// process can propagate it without re-printing an already rendered
// failure.
type exitCodeError struct{ code int }

func (e exitCodeError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if cfgPath != "" {
		cfg, err = config.LoadFromPath(cfgPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// initLogging loads the configuration and points the global logger at a
// timestamped file for this session. Logs never go to the terminal the
// session is rendering on unless --verbose asks for it.
func initLogging(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	appCfg = cfg

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	level := cfg.Logging.Level
	var mirror io.Writer
	if verbose {
		level = "debug"
		mirror = os.Stderr
	}

	logPath, err := logging.Setup(cfg.Logging.Dir, level, mirror)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
		logging.Discard()
		return nil
	}
	zlog.Info().Str("version", version).Str("log_file", logPath).Msg("session started")
	return nil
}

func newUI() *ui.UI {
	return ui.New(ui.WithTheme(ui.ThemeByName(themeFlag)))
}

// app holds everything a running command needs. buildApp wires the whole
// pipeline; Close tears it down in dependency order.
type app struct {
	cfg       *config.Config
	u         *ui.UI
	info      *platform.Info
	aliasTbl  *alias.Table
	tierTbl   *safety.Table
	events    *bus.Bus
	store     *history.Store
	recorder  *history.Recorder
	stats     *metrics.Collector
	provider  llm.Provider
	pipe      *pipeline.Pipeline
	sessionID string
	aiUp      bool
}

func buildApp(ctx context.Context, interactive bool) (*app, error) {
	cfg := appCfg
	u := newUI()

	preferred := platform.Shell(cfg.Shell.Preferred)
	if shellFlag != "" {
		preferred = platform.Shell(shellFlag)
	}
	detector := platform.NewDetector(
		platform.WithPreferred(preferred),
		platform.WithProbeTimeout(cfg.Shell.ProbeTimeout),
	)
	info, err := detector.Detect(ctx)
	if err != nil {
		return nil, fmt.Errorf("no usable shell: %w", err)
	}

	aliasTbl, err := alias.NewTable(alias.WithUserPath(cfg.Translation.AliasesPath))
	if err != nil {
		return nil, fmt.Errorf("load alias table: %w", err)
	}
	tierTbl, err := safety.NewTable(safety.WithUserPath(cfg.Safety.TiersPath))
	if err != nil {
		return nil, fmt.Errorf("load tier table: %w", err)
	}

	aliases := alias.NewTranslator(aliasTbl, info.Family, alias.WithEnabled(cfg.Translation.Enabled))

	var valOpts []safety.ValidatorOption
	if cfg.Safety.CorrectionEnabled {
		valOpts = append(valOpts, safety.WithCorrector(safety.NewCorrector(tierTbl.Verbs())))
	}
	tiers := safety.NewValidator(tierTbl, valOpts...)

	adapter := shell.ForPlatform(info)
	events := bus.New()
	sessionID := uuid.NewString()

	a := &app{
		cfg:       cfg,
		u:         u,
		info:      info,
		aliasTbl:  aliasTbl,
		tierTbl:   tierTbl,
		events:    events,
		sessionID: sessionID,
	}

	if cfg.History.Enabled {
		store, err := history.Open(cfg.History.DataDir)
		if err != nil {
			u.Warnf("history disabled: %v", err)
		} else {
			a.store = store
			if cfg.History.RetentionDays > 0 {
				age := time.Duration(cfg.History.RetentionDays) * 24 * time.Hour
				if _, err := store.PurgeOlderThan(ctx, age); err != nil {
					zlog.Warn().Err(err).Msg("history purge failed")
				}
			}
			a.recorder = history.NewRecorder(store, events)
		}
	}

	opts := []pipeline.Option{
		pipeline.WithBus(events),
		pipeline.WithSessionID(sessionID),
	}

	a.provider = buildProvider(cfg)
	if a.provider != nil {
		translator := llm.NewTranslator(a.provider, llm.WithMinConfidence(cfg.AI.MinConfidence))
		validator := llm.NewValidator(a.provider)
		if interactive {
			opts = append(opts,
				pipeline.WithTranslator(ui.SpinTranslator{Inner: translator, UI: u}),
				pipeline.WithValidator(ui.SpinValidator{Inner: validator, UI: u}),
			)
		} else {
			opts = append(opts,
				pipeline.WithTranslator(translator),
				pipeline.WithValidator(validator),
			)
		}
		a.aiUp = a.provider.Available()
	}
	if interactive {
		opts = append(opts, pipeline.WithConfirm(u.Confirm))
	}

	pipe, err := pipeline.New(cfg, info, aliases, tiers, adapter, opts...)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.pipe = pipe

	if interactive {
		a.stats = metrics.NewCollector(events)
		a.stats.Start()
	}

	return a, nil
}

// Close tears the app down: consumers come off the bus before it closes,
// and the history store closes last so nothing appends after checkpoint.
func (a *app) Close() {
	if a.stats != nil {
		a.stats.Stop()
	}
	if a.recorder != nil {
		a.recorder.Detach()
	}
	if a.events != nil {
		a.events.Close()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			zlog.Warn().Err(err).Msg("history close failed")
		}
	}
}

// buildProvider constructs the AI collaborator backend. A missing or
// misconfigured provider degrades the session instead of killing it:
// prose input and tier 3 commands will be refused until it is back.
func buildProvider(cfg *config.Config) llm.Provider {
	pcfg := llm.DefaultProviderConfig(cfg.AI.Provider)
	if cfg.AI.Endpoint != "" {
		pcfg.Endpoint = cfg.AI.Endpoint
	}
	if cfg.AI.Model != "" {
		pcfg.Model = cfg.AI.Model
	}
	if cfg.AI.APIKey != "" {
		pcfg.APIKey = cfg.AI.APIKey
	}

	provider, err := llm.NewProvider(pcfg)
	if err != nil {
		zlog.Warn().Err(err).Msg("AI provider not constructed, translation and validation offline")
		return nil
	}
	return provider
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("SafeShell v%s\n", version)
		},
	}
}

func execCmd() *cobra.Command {
	var force bool

	c := &cobra.Command{
		Use:   "exec <command>",
		Short: "Run one command through the safety pipeline and exit",
		Long: `Runs a single command through classification, translation, and tier
checks, then exits with the command's exit code.

Without a terminal there is nobody to answer a tier 2.5 prompt, so
confirmation-tier commands are denied unless --force is given. Tier 4
commands are blocked regardless.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := strings.Join(args, " ")
			if force {
				input = "/force " + input
			}

			a, err := buildApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := notifyInterrupt(cmd.Context())
			defer stop()

			res, perr := a.pipe.Process(ctx, input)
			if res != nil && res.Kind == classify.KindMeta {
				return fmt.Errorf("/%s is a session command, run safeshell without arguments", res.Meta.Name)
			}
			a.u.RenderResult(res, perr)

			if perr != nil {
				return exitCodeError{1}
			}
			if res != nil && res.ExitCode > 0 {
				return exitCodeError{res.ExitCode}
			}
			return nil
		},
	}

	c.Flags().BoolVarP(&force, "force", "f", false, "skip the tier 2.5 confirmation prompt")
	return c
}

func tiersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tiers",
		Short: "List command safety classifications",
		RunE: func(cmd *cobra.Command, args []string) error {
			tbl, err := safety.NewTable(safety.WithUserPath(appCfg.Safety.TiersPath))
			if err != nil {
				return fmt.Errorf("load tier table: %w", err)
			}
			u := newUI()
			u.Print(u.TierTable(tbl.Entries()))
			u.Mutedf("overrides: %s", appCfg.Safety.TiersPath)
			return nil
		},
	}
}

func aliasesCmd() *cobra.Command {
	var familyFlag string

	c := &cobra.Command{
		Use:   "aliases",
		Short: "List cross-platform command translations",
		RunE: func(cmd *cobra.Command, args []string) error {
			tbl, err := alias.NewTable(alias.WithUserPath(appCfg.Translation.AliasesPath))
			if err != nil {
				return fmt.Errorf("load alias table: %w", err)
			}

			family := platform.QuickDetect()
			if familyFlag != "" {
				family = platform.Family(familyFlag)
			}

			u := newUI()
			u.Mutedf("translations for the %s family", family)
			u.Print(u.AliasTable(tbl.Entries(family)))
			return nil
		},
	}

	c.Flags().StringVar(&familyFlag, "family", "", "shell family to list (posix, powershell, cmd)")
	return c
}

func historyCmd() *cobra.Command {
	var (
		limit  int
		search string
		stats  bool
	)

	c := &cobra.Command{
		Use:   "history",
		Short: "Show recent invocations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !appCfg.History.Enabled {
				return errors.New("history is disabled in configuration")
			}
			store, err := history.Open(appCfg.History.DataDir)
			if err != nil {
				return fmt.Errorf("open history: %w", err)
			}
			defer store.Close()

			u := newUI()
			if stats {
				return renderStoreStats(cmd.Context(), u, store)
			}

			var recs []*history.Record
			if search != "" {
				recs, err = store.Search(cmd.Context(), search, limit)
			} else {
				recs, err = store.Recent(cmd.Context(), limit)
			}
			if err != nil {
				return err
			}

			u.Print(u.HistoryTable(recs))
			return nil
		},
	}

	c.Flags().IntVarP(&limit, "limit", "n", 20, "maximum records to show")
	c.Flags().StringVar(&search, "search", "", "filter by command substring")
	c.Flags().BoolVar(&stats, "stats", false, "summarize the whole store instead of listing")
	return c
}

func renderStoreStats(ctx context.Context, u *ui.UI, store *history.Store) error {
	st, err := store.Stats(ctx)
	if err != nil {
		return fmt.Errorf("aggregate history: %w", err)
	}

	u.Printf("records      %d", st.Total)
	if st.Total == 0 {
		return nil
	}
	for _, outcome := range sortedKeys(st.ByOutcome) {
		u.Printf("  %-10s %d", outcome, st.ByOutcome[outcome])
	}
	for _, tier := range sortedKeys(st.ByTier) {
		u.Printf("  tier %-5s %d", tier, st.ByTier[tier])
	}
	u.Printf("exec time    %s", (time.Duration(st.TotalExecMs) * time.Millisecond).Round(time.Millisecond))
	u.Printf("oldest       %s", st.Oldest.Local().Format("2006-01-02 15:04"))
	u.Printf("newest       %s", st.Newest.Local().Format("2006-01-02 15:04"))
	return nil
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func configCmd() *cobra.Command {
	group := &cobra.Command{
		Use:   "config",
		Short: "Inspect and manage configuration",
	}

	group.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := yaml.Marshal(appCfg)
			if err != nil {
				return err
			}
			fmt.Print(string(data))
			return nil
		},
	})

	group.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the configuration file path",
		Run: func(cmd *cobra.Command, args []string) {
			if cfgPath != "" {
				fmt.Println(cfgPath)
				return
			}
			fmt.Println(config.ConfigPath())
		},
	})

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := cfgPath
			if path == "" {
				path = config.ConfigPath()
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists, use --force to overwrite", path)
			}
			if err := config.Default().SaveToPath(path); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	group.AddCommand(initCmd)

	return group
}

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check the environment SafeShell depends on",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := appCfg
			u := newUI()
			failures := 0

			fail := func(format string, args ...any) {
				failures++
				u.Errorf("fail  "+format, args...)
			}
			ok := func(format string, args ...any) {
				u.Successf("ok    "+format, args...)
			}

			preferred := platform.Shell(cfg.Shell.Preferred)
			if shellFlag != "" {
				preferred = platform.Shell(shellFlag)
			}
			detector := platform.NewDetector(
				platform.WithPreferred(preferred),
				platform.WithProbeTimeout(cfg.Shell.ProbeTimeout),
			)
			info, err := detector.Detect(ctx)
			if err != nil {
				fail("shell detection: %v", err)
			} else {
				ok("shell: %s", info)
				if adapter := shell.ForPlatform(info); adapter == nil || !adapter.Available() {
					fail("shell adapter unavailable for %s", info.Shell)
				} else {
					ok("shell adapter: %s at %s", adapter.Name(), adapter.Path())
				}
			}

			if tbl, err := safety.NewTable(safety.WithUserPath(cfg.Safety.TiersPath)); err != nil {
				fail("tier table: %v", err)
			} else {
				ok("tier table: %d verbs classified", tbl.Len())
			}

			if tbl, err := alias.NewTable(alias.WithUserPath(cfg.Translation.AliasesPath)); err != nil {
				fail("alias table: %v", err)
			} else {
				family := platform.QuickDetect()
				ok("alias table: %d translations for the %s family", tbl.Len(family), family)
			}

			if provider := buildProvider(cfg); provider == nil {
				u.Warnf("warn  AI provider %q not constructed, prose and tier 3 are refused", cfg.AI.Provider)
			} else if !provider.Available() {
				u.Warnf("warn  AI provider %s unreachable at %s", provider.Name(), cfg.AI.Endpoint)
			} else {
				ok("AI provider: %s (%s)", provider.Name(), cfg.AI.Model)
			}

			if !cfg.History.Enabled {
				u.Mutedf("skip  history disabled in configuration")
			} else if store, err := history.Open(cfg.History.DataDir); err != nil {
				fail("history store: %v", err)
			} else {
				if err := store.Health(); err != nil {
					fail("history health: %v", err)
				} else {
					count, _ := store.Count(ctx)
					ok("history store: %d records in %s", count, cfg.History.DataDir)
				}
				store.Close()
			}

			if failures > 0 {
				return fmt.Errorf("%d checks failed", failures)
			}
			u.Successf("all checks passed")
			return nil
		},
	}
}
