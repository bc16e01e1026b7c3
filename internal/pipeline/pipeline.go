// Package pipeline runs one line of interactive input through the whole
// command chain: classification, natural language translation, alias
// translation, tier assignment, the lockdown gate, confirmation and
// validation, and finally dispatch to the target shell.
//
// Process is synchronous from the caller's point of view. The two AI
// round trips (translation and tier 3 validation) are the only
// suspension points; both are timeout-bounded and canceled by the
// caller's context.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/normanking/safeshell/internal/alias"
	"github.com/normanking/safeshell/internal/bus"
	"github.com/normanking/safeshell/internal/classify"
	"github.com/normanking/safeshell/internal/config"
	"github.com/normanking/safeshell/internal/llm"
	"github.com/normanking/safeshell/internal/platform"
	"github.com/normanking/safeshell/internal/safety"
	"github.com/normanking/safeshell/internal/shell"
)

// Translator turns natural language into a candidate command line for
// the named platform. Implementations report unavailability by wrapping
// ErrTranslationUnavailable; any other error is treated the same way.
type Translator interface {
	Translate(ctx context.Context, query, platformName string) (*llm.Translation, error)
}

// Validator returns an approve or deny verdict for one command. An
// error means no verdict could be obtained; the pipeline then denies.
type Validator interface {
	Validate(ctx context.Context, command, platformName string) (*llm.Verdict, error)
}

// ConfirmFunc obtains an explicit affirmative for one command before it
// runs. The prompt names the command and its tier. Returning an error
// counts as a refusal.
type ConfirmFunc func(prompt string) (bool, error)

// DenyAll is the non-interactive ConfirmFunc: every confirmation is
// refused. It is the default until a caller installs an interactive one.
func DenyAll(string) (bool, error) { return false, nil }

// Segment is one pipe-separated unit of the input after alias
// translation and tier assignment.
type Segment struct {
	Raw        string
	Translated string
	Verb       string
	Tier       safety.Tier
	// Unknown marks a verb with no tier table entry.
	Unknown bool
	// Pattern names the override that raised the tier, if one did.
	Pattern    string
	Suggestion string
	Warning    string
	// Rationale is the validator's one-line reason, approve or deny.
	Rationale            string
	RequiresConfirmation bool
	RequiresValidation   bool
}

// Result is the outcome of one Process invocation. It is complete when
// Process returns and never mutated afterwards.
//
// Success means the pipeline itself succeeded: the input was handled
// and, if it reached the shell, the subprocess ran to completion. A
// non-zero ExitCode is the command's business, not the pipeline's, and
// does not clear Success. ExitCode is -1 when no subprocess ran.
type Result struct {
	RequestID string
	Input     string
	Kind      classify.Kind
	// Meta is set for meta input. The pipeline does not interpret meta
	// commands; the session does.
	Meta   classify.Meta
	Forced bool

	// Translated is set when natural language input was turned into a
	// command. Translation holds that command as returned, before
	// alias translation.
	Translated  bool
	Translation string
	Explanation string

	Segments []Segment
	// Command is the final dispatch-ready line, all segments alias
	// translated and joined with the platform's pipe operator. Set
	// even when the pipeline was blocked or denied before running it.
	Command string
	// Tier is the highest tier across segments.
	Tier safety.Tier

	Blocked     bool
	BlockReason string

	Stdout    string
	Stderr    string
	ExitCode  int
	TimedOut  bool
	Truncated bool

	Duration time.Duration
	Success  bool
	ErrKind  ErrKind
}

// Pipeline wires the stages together. Construct with New; the zero
// value is not usable.
type Pipeline struct {
	cfg        *config.Config
	platform   *platform.Info
	classifier *classify.Classifier
	aliases    *alias.Translator
	tiers      *safety.Validator
	adapter    shell.Adapter

	translator Translator // nil: natural language reports unavailable
	validator  Validator  // nil: tier 3 fails closed
	events     *bus.Bus   // nil: no events published
	confirm    ConfirmFunc
	sessionID  string
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithTranslator enables natural language translation.
func WithTranslator(t Translator) Option {
	return func(p *Pipeline) {
		p.translator = t
	}
}

// WithValidator enables tier 3 validation verdicts. Without one every
// tier 3 command is denied.
func WithValidator(v Validator) Option {
	return func(p *Pipeline) {
		p.validator = v
	}
}

// WithBus publishes an event at each stage of every invocation.
func WithBus(b *bus.Bus) Option {
	return func(p *Pipeline) {
		p.events = b
	}
}

// WithConfirm installs the interactive confirmation prompt.
func WithConfirm(fn ConfirmFunc) Option {
	return func(p *Pipeline) {
		if fn != nil {
			p.confirm = fn
		}
	}
}

// WithSessionID stamps published events with a session identifier.
func WithSessionID(id string) Option {
	return func(p *Pipeline) {
		p.sessionID = id
	}
}

// New builds a Pipeline over an already-detected platform. The adapter
// must be usable; a missing shell is fatal here, not at dispatch time.
func New(cfg *config.Config, info *platform.Info, aliases *alias.Translator, tiers *safety.Validator, adapter shell.Adapter, opts ...Option) (*Pipeline, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if info == nil {
		return nil, fmt.Errorf("no platform detected: %w", ErrShellUnavailable)
	}
	if adapter == nil || !adapter.Available() {
		return nil, fmt.Errorf("shell %s: %w", info.Shell, ErrShellUnavailable)
	}
	if aliases == nil || tiers == nil {
		return nil, errors.New("alias translator and tier validator are required")
	}

	p := &Pipeline{
		cfg:      cfg,
		platform: info,
		aliases:  aliases,
		tiers:    tiers,
		adapter:  adapter,
		confirm:  DenyAll,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.classifier = classify.NewClassifier(tiers.Table().Known, aliases.Known)
	return p, nil
}

// Platform returns the detected platform the pipeline dispatches to.
func (p *Pipeline) Platform() *platform.Info {
	return p.platform
}

// Process runs one line of input. The returned Result is always
// non-nil; the error, when set, wraps one of the package sentinels.
func (p *Pipeline) Process(ctx context.Context, input string) (*Result, error) {
	start := time.Now()
	res, err := p.process(ctx, input)
	res.Duration = time.Since(start)
	res.Success = err == nil
	res.ErrKind = KindOf(err)
	return res, err
}

func (p *Pipeline) process(ctx context.Context, input string) (*Result, error) {
	res := &Result{
		RequestID: uuid.NewString(),
		Input:     input,
		ExitCode:  -1,
	}

	cls := p.classifier.Classify(input)
	res.Kind = cls.Kind
	res.Forced = cls.ForceRequested
	log.Debug().
		Str("request_id", res.RequestID).
		Str("kind", cls.Kind.String()).
		Bool("forced", cls.ForceRequested).
		Msg("input classified")

	switch cls.Kind {
	case classify.KindEmpty:
		return res, nil
	case classify.KindMeta:
		res.Meta = cls.Meta
		return res, nil
	}

	ev := p.newEvent(res, bus.EventCommandReceived)
	ev.Command = input
	ev.Details = cls.Kind.String()
	p.publish(ev)

	segments := cls.Segments
	if cls.Kind == classify.KindNaturalLanguage {
		tr, err := p.translate(ctx, res, cls.Text)
		if err != nil {
			return res, err
		}
		res.Translated = true
		res.Translation = tr.Command
		res.Explanation = tr.Explanation

		// The translated command re-enters the classifier exactly as
		// typed input would. Prose twice in a row stops here rather
		// than looping back to the translator.
		next := p.classifier.Classify(tr.Command)
		if next.Kind != classify.KindPipeline {
			return res, fmt.Errorf("translation %q is not a runnable command: %w", tr.Command, ErrTranslationUnavailable)
		}
		// Force comes from the typed input only, never from the
		// translator's output.
		segments = next.Segments
	}

	p.assignTiers(res, segments)
	return res, p.dispatch(ctx, res)
}

// translate is the first suspension point. The round trip is bounded by
// the configured translate timeout; the caller's interrupt cancels it.
func (p *Pipeline) translate(ctx context.Context, res *Result, query string) (*llm.Translation, error) {
	if p.translator == nil {
		return nil, fmt.Errorf("no translator configured: %w", ErrTranslationUnavailable)
	}

	tctx, cancel := context.WithTimeout(ctx, p.cfg.AI.TranslateTimeout)
	defer cancel()

	tr, err := p.translator.Translate(tctx, query, string(p.platform.Shell))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !errors.Is(err, ErrTranslationUnavailable) {
			err = fmt.Errorf("translator: %v: %w", err, ErrTranslationUnavailable)
		}
		return nil, err
	}
	if tr == nil || strings.TrimSpace(tr.Command) == "" {
		return nil, fmt.Errorf("translator returned no command: %w", ErrTranslationUnavailable)
	}

	log.Debug().
		Str("request_id", res.RequestID).
		Str("command", tr.Command).
		Float64("confidence", tr.Confidence).
		Msg("natural language translated")

	ev := p.newEvent(res, bus.EventCommandTranslated)
	ev.Command = tr.Command
	ev.Confidence = tr.Confidence
	ev.Details = tr.Explanation
	p.publish(ev)
	return tr, nil
}

// assignTiers alias-translates and tier-checks each segment in
// left-to-right order, then records the final joined command line.
func (p *Pipeline) assignTiers(res *Result, segments []string) {
	parts := make([]string, 0, len(segments))
	for _, raw := range segments {
		translated := p.aliases.Translate(raw)
		d := p.tiers.Validate(translated)

		seg := Segment{
			Raw:                  raw,
			Translated:           translated,
			Verb:                 d.Verb,
			Tier:                 d.Tier,
			Unknown:              d.Unknown,
			Pattern:              d.Pattern,
			Suggestion:           d.Suggestion,
			Warning:              d.Warning,
			RequiresConfirmation: d.RequiresConfirmation,
			RequiresValidation:   d.RequiresValidation,
		}
		res.Segments = append(res.Segments, seg)
		parts = append(parts, translated)
		if d.Tier > res.Tier {
			res.Tier = d.Tier
		}

		ev := p.newEvent(res, bus.EventTierAssigned)
		ev.Command = translated
		ev.Verb = d.Verb
		ev.Tier = d.Tier.String()
		ev.Suggestion = d.Suggestion
		ev.Details = d.Warning
		p.publish(ev)
	}
	res.Command = p.platform.Family.JoinPipe(parts)
}

// dispatch is the only path to a subprocess. The lockdown gate runs
// first, before force flags, verdicts, or confirmation are consulted;
// then validation, then confirmation, then the run itself.
func (p *Pipeline) dispatch(ctx context.Context, res *Result) error {
	if err := p.gateLockdown(res); err != nil {
		return err
	}
	if err := p.awaitValidation(ctx, res); err != nil {
		return err
	}
	if err := p.awaitConfirmation(res); err != nil {
		return err
	}
	return p.run(ctx, res)
}

// gateLockdown is the single lockdown checkpoint. Any tier 4 segment
// blocks the whole pipeline and no subprocess is spawned. The gate
// consults nothing but the tiers: force flags, confirmation state, and
// configuration cannot reach it.
func (p *Pipeline) gateLockdown(res *Result) error {
	for i := range res.Segments {
		seg := &res.Segments[i]
		if seg.Tier != safety.TierLockdown {
			continue
		}

		reason := fmt.Sprintf("%q is a lockdown (tier 4) command", seg.Verb)
		if seg.Pattern != "" {
			reason = fmt.Sprintf("%q matches lockdown pattern %q", seg.Translated, seg.Pattern)
		}
		res.Blocked = true
		res.BlockReason = reason

		log.Warn().
			Str("request_id", res.RequestID).
			Str("command", seg.Translated).
			Str("verb", seg.Verb).
			Str("pattern", seg.Pattern).
			Msg("lockdown gate blocked command")

		ev := p.newEvent(res, bus.EventCommandBlocked)
		ev.Command = seg.Translated
		ev.Verb = seg.Verb
		ev.Tier = seg.Tier.String()
		ev.Details = reason
		p.publish(ev)

		return fmt.Errorf("%s: %w", reason, ErrSecurityBlocked)
	}
	return nil
}

// awaitValidation is the second suspension point: every segment that
// requires a verdict gets one before confirmation starts. No validator,
// an unreachable validator, and a timed-out round trip all deny.
// Execution without a verdict is not an option.
func (p *Pipeline) awaitValidation(ctx context.Context, res *Result) error {
	for i := range res.Segments {
		seg := &res.Segments[i]
		if !seg.RequiresValidation {
			continue
		}

		ev := p.newEvent(res, bus.EventValidationRequested)
		ev.Command = seg.Translated
		ev.Verb = seg.Verb
		ev.Tier = seg.Tier.String()
		p.publish(ev)

		verdict, err := p.obtainVerdict(ctx, seg)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.publishVerdict(res, seg, "deny", err.Error())
			p.publishFailure(res, seg.Translated, err.Error())
			if seg.Unknown {
				return fmt.Errorf("%w %q: %v: %w", ErrUnknownCommand, seg.Verb, err, ErrValidationDenied)
			}
			return fmt.Errorf("%v: %w", err, ErrValidationDenied)
		}

		seg.Rationale = verdict.Rationale
		if !verdict.Approved {
			reason := verdict.Rationale
			if reason == "" {
				reason = fmt.Sprintf("validator denied %q", seg.Translated)
			}
			log.Info().
				Str("request_id", res.RequestID).
				Str("command", seg.Translated).
				Str("rationale", verdict.Rationale).
				Msg("validation denied")
			p.publishVerdict(res, seg, "deny", verdict.Rationale)
			p.publishFailure(res, seg.Translated, reason)
			return fmt.Errorf("%s: %w", reason, ErrValidationDenied)
		}
		p.publishVerdict(res, seg, "approve", verdict.Rationale)
	}
	return nil
}

func (p *Pipeline) obtainVerdict(ctx context.Context, seg *Segment) (*llm.Verdict, error) {
	if p.validator == nil {
		return nil, fmt.Errorf("tier %s command %q needs a validation verdict and no validator is configured", seg.Tier, seg.Verb)
	}

	vctx, cancel := context.WithTimeout(ctx, p.cfg.AI.ValidateTimeout)
	defer cancel()

	verdict, err := p.validator.Validate(vctx, seg.Translated, string(p.platform.Shell))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("validator unreachable (%v), failing closed", err)
	}
	if verdict == nil {
		return nil, errors.New("validator returned no verdict, failing closed")
	}
	return verdict, nil
}

// awaitConfirmation prompts for every segment that requires it. Force
// auto-affirms; the lockdown gate has already run by this point, so
// force never reaches tier 4.
func (p *Pipeline) awaitConfirmation(res *Result) error {
	for i := range res.Segments {
		seg := &res.Segments[i]
		if !seg.RequiresConfirmation {
			continue
		}
		if res.Forced {
			log.Debug().
				Str("request_id", res.RequestID).
				Str("command", seg.Translated).
				Msg("confirmation affirmed by force flag")
			continue
		}

		ok, err := p.confirm(confirmPrompt(seg))
		if err != nil {
			reason := fmt.Sprintf("confirmation failed (%v)", err)
			p.publishFailure(res, seg.Translated, reason)
			return fmt.Errorf("%s: %w", reason, ErrValidationDenied)
		}
		if !ok {
			reason := fmt.Sprintf("%q was not confirmed", seg.Translated)
			p.publishFailure(res, seg.Translated, reason)
			return fmt.Errorf("%s: %w", reason, ErrValidationDenied)
		}
	}
	return nil
}

// run executes the cleared, recombined command as one subprocess.
func (p *Pipeline) run(ctx context.Context, res *Result) error {
	opts := shell.RunOptions{
		Timeout:        p.cfg.Exec.Timeout,
		MaxOutputBytes: int64(p.cfg.Exec.MaxOutputBytes),
	}

	rr, err := p.adapter.Run(ctx, res.Command, opts)
	if rr != nil {
		res.Stdout = rr.Stdout
		res.Stderr = rr.Stderr
		res.ExitCode = rr.ExitCode
		res.TimedOut = rr.TimedOut
		res.Truncated = rr.Truncated
	}
	if err != nil {
		ev := p.newEvent(res, bus.EventCommandFailed)
		ev.Command = res.Command
		ev.Verb = firstVerb(res)
		ev.Tier = res.Tier.String()
		ev.Error = err.Error()
		if rr != nil {
			ev.ExitCode = rr.ExitCode
			ev.DurationMs = rr.Duration.Milliseconds()
		}
		p.publish(ev)
		return err
	}

	log.Debug().
		Str("request_id", res.RequestID).
		Str("command", res.Command).
		Int("exit_code", rr.ExitCode).
		Int64("duration_ms", rr.Duration.Milliseconds()).
		Msg("command executed")

	ev := p.newEvent(res, bus.EventCommandExecuted)
	ev.Command = res.Command
	ev.Verb = firstVerb(res)
	ev.Tier = res.Tier.String()
	ev.ExitCode = rr.ExitCode
	ev.DurationMs = rr.Duration.Milliseconds()
	p.publish(ev)
	return nil
}

func (p *Pipeline) newEvent(res *Result, t bus.EventType) bus.Event {
	ev := bus.NewEvent(t)
	ev.RequestID = res.RequestID
	ev.SessionID = p.sessionID
	ev.Platform = string(p.platform.Shell)
	return ev
}

func (p *Pipeline) publish(ev bus.Event) {
	if p.events != nil {
		p.events.Publish(ev)
	}
}

func (p *Pipeline) publishVerdict(res *Result, seg *Segment, verdict, rationale string) {
	ev := p.newEvent(res, bus.EventValidationVerdict)
	ev.Command = seg.Translated
	ev.Verb = seg.Verb
	ev.Tier = seg.Tier.String()
	ev.Verdict = verdict
	ev.Details = rationale
	p.publish(ev)
}

// publishFailure records a command that ended without a subprocess
// completing: a denial, a refusal, or an execution failure.
func (p *Pipeline) publishFailure(res *Result, command, reason string) {
	ev := p.newEvent(res, bus.EventCommandFailed)
	ev.Command = command
	ev.Verb = firstVerb(res)
	ev.Tier = res.Tier.String()
	ev.Error = reason
	p.publish(ev)
}

func confirmPrompt(seg *Segment) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run %q (tier %s)?", seg.Translated, seg.Tier)
	if seg.Warning != "" {
		fmt.Fprintf(&b, " warning: %s.", seg.Warning)
	}
	if seg.Rationale != "" {
		fmt.Fprintf(&b, " validator: %s", seg.Rationale)
	}
	return b.String()
}

func firstVerb(res *Result) string {
	if len(res.Segments) == 0 {
		return ""
	}
	return res.Segments[0].Verb
}
