package pipeline

import (
	"context"
	"errors"

	"github.com/normanking/safeshell/internal/llm"
	"github.com/normanking/safeshell/internal/platform"
	"github.com/normanking/safeshell/internal/shell"
)

// Every failure Process can return wraps one of these sentinels, so
// callers branch with errors.Is instead of matching message text.
var (
	// ErrUnknownCommand marks a verb with no tier table entry. Not
	// fatal on its own: unknown verbs classify as tier 3 and go
	// through validation like any other tier 3 command.
	ErrUnknownCommand = errors.New("unknown command")

	// ErrTranslationUnavailable means natural language input could not
	// be turned into a command. The original text stays on the Result
	// untouched; nothing executes.
	ErrTranslationUnavailable = llm.ErrTranslationUnavailable

	// ErrValidationDenied stops execution short of the lockdown tier:
	// a deny verdict, an unreachable validator, or a declined (or
	// non-interactive) confirmation. The message carries the reason.
	ErrValidationDenied = errors.New("validation denied")

	// ErrSecurityBlocked is the lockdown gate's answer. It is never
	// silent and nothing overrides it.
	ErrSecurityBlocked = errors.New("blocked by security policy")

	// ErrExecutionTimeout reports a subprocess killed at its deadline.
	// Whatever output was captured first stays on the Result.
	ErrExecutionTimeout = shell.ErrExecutionTimeout

	// ErrShellUnavailable means no usable target shell adapter exists.
	// Fatal at construction time only.
	ErrShellUnavailable = platform.ErrShellUnavailable
)

// ErrKind is the taxonomy bucket of a Result's error, for renderers and
// history rows that switch on a label instead of an error chain.
type ErrKind string

const (
	ErrKindNone                   ErrKind = ""
	ErrKindUnknownCommand         ErrKind = "unknown_command"
	ErrKindTranslationUnavailable ErrKind = "translation_unavailable"
	ErrKindValidationDenied       ErrKind = "validation_denied"
	ErrKindSecurityBlocked        ErrKind = "security_blocked"
	ErrKindExecutionTimeout       ErrKind = "execution_timeout"
	ErrKindShellUnavailable       ErrKind = "shell_unavailable"
	ErrKindCanceled               ErrKind = "canceled"
	ErrKindInternal               ErrKind = "internal"
)

// KindOf maps an error chain onto its taxonomy bucket. Specific buckets
// win over the generic ones: a timed-out validation round trip is a
// denial, not a cancellation, even though a context deadline sits in
// the chain.
func KindOf(err error) ErrKind {
	switch {
	case err == nil:
		return ErrKindNone
	case errors.Is(err, ErrSecurityBlocked):
		return ErrKindSecurityBlocked
	case errors.Is(err, ErrValidationDenied):
		return ErrKindValidationDenied
	case errors.Is(err, ErrExecutionTimeout):
		return ErrKindExecutionTimeout
	case errors.Is(err, ErrTranslationUnavailable):
		return ErrKindTranslationUnavailable
	case errors.Is(err, ErrShellUnavailable):
		return ErrKindShellUnavailable
	case errors.Is(err, ErrUnknownCommand):
		return ErrKindUnknownCommand
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ErrKindCanceled
	default:
		return ErrKindInternal
	}
}
