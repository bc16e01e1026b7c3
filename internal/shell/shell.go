// Package shell runs dispatch-ready commands in the detected target shell.
// Adapters are concurrency-safe: every Run gets fresh buffers and its own
// timeout context, and a timed-out subprocess is killed together with its
// process tree.
package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/normanking/safeshell/internal/platform"
)

// ErrExecutionTimeout reports a subprocess killed at its deadline. The
// RunResult alongside it retains whatever output was captured first.
var ErrExecutionTimeout = errors.New("execution timed out")

const (
	// DefaultTimeout bounds a run when the caller sets none. Timeouts
	// are mandatory; there is no way to run unbounded.
	DefaultTimeout = 30 * time.Second
	// DefaultMaxOutputBytes caps captured output per stream.
	DefaultMaxOutputBytes int64 = 1 << 20
	// killGracePeriod is how long Wait may linger on open pipes after
	// the process tree was killed.
	killGracePeriod = 2 * time.Second
)

// RunOptions bound one subprocess run.
type RunOptions struct {
	Timeout        time.Duration
	WorkingDir     string
	Env            []string // appended to the parent environment
	MaxOutputBytes int64
}

// RunResult is what a finished (or killed) subprocess produced. A non-zero
// ExitCode is data, not an error.
type RunResult struct {
	Command   string
	ExitCode  int
	Stdout    string
	Stderr    string
	Combined  string
	Duration  time.Duration
	TimedOut  bool
	Truncated bool
}

// Adapter runs one command string in a concrete shell.
type Adapter interface {
	// Name is the shell's short name, e.g. "bash" or "pwsh".
	Name() string
	// Path is the resolved shell binary.
	Path() string
	// Available reports whether the shell binary can be executed.
	Available() bool
	// Run executes the command and captures its output. Run returns an
	// error only for infrastructure failures (spawn, timeout, cancel);
	// command failure is reported through RunResult.ExitCode.
	Run(ctx context.Context, command string, opts RunOptions) (*RunResult, error)
}

// execAdapter is the shared exec.Cmd implementation. The shells differ
// only in how a command string becomes argv.
type execAdapter struct {
	shell platform.Shell
	path  string
	args  func(command string) []string
}

// NewPosixAdapter runs commands via `<shell> -c`.
func NewPosixAdapter(sh platform.Shell, path string) Adapter {
	return &execAdapter{
		shell: sh,
		path:  path,
		args:  func(command string) []string { return []string{"-c", command} },
	}
}

// NewPowerShellAdapter runs commands via `-NoProfile -Command` so user
// profiles cannot rewrite what was validated.
func NewPowerShellAdapter(sh platform.Shell, path string) Adapter {
	return &execAdapter{
		shell: sh,
		path:  path,
		args:  func(command string) []string { return []string{"-NoProfile", "-Command", command} },
	}
}

// NewCmdAdapter runs commands via `cmd /C`.
func NewCmdAdapter(path string) Adapter {
	return &execAdapter{
		shell: platform.ShellCmd,
		path:  path,
		args:  func(command string) []string { return []string{"/C", command} },
	}
}

// ForPlatform builds the adapter matching a detection result.
func ForPlatform(info *platform.Info) Adapter {
	switch platform.FamilyOf(info.Shell) {
	case platform.FamilyPowerShell:
		return NewPowerShellAdapter(info.Shell, info.Path)
	case platform.FamilyCmd:
		return NewCmdAdapter(info.Path)
	default:
		return NewPosixAdapter(info.Shell, info.Path)
	}
}

func (a *execAdapter) Name() string { return string(a.shell) }
func (a *execAdapter) Path() string { return a.path }

func (a *execAdapter) Available() bool {
	_, err := exec.LookPath(a.path)
	return err == nil
}

func (a *execAdapter) Run(ctx context.Context, command string, opts RunOptions) (*RunResult, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	maxOutput := opts.MaxOutputBytes
	if maxOutput <= 0 {
		maxOutput = DefaultMaxOutputBytes
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, a.path, a.args(command)...)
	cmd.Dir = opts.WorkingDir
	if len(opts.Env) > 0 {
		cmd.Env = append(os.Environ(), opts.Env...)
	}

	// The whole process tree dies with the deadline, not just the
	// immediate child.
	setProcessGroup(cmd)
	cmd.Cancel = func() error { return killProcessGroup(cmd) }
	cmd.WaitDelay = killGracePeriod

	var stdout, stderr bytes.Buffer
	outLimited := &limitedWriter{w: &stdout, max: maxOutput}
	errLimited := &limitedWriter{w: &stderr, max: maxOutput}
	cmd.Stdout = outLimited
	cmd.Stderr = errLimited

	log.Debug().
		Str("shell", a.Name()).
		Str("command", command).
		Dur("timeout", timeout).
		Msg("running subprocess")

	start := time.Now()
	err := cmd.Run()

	res := &RunResult{
		Command:   command,
		Stdout:    stdout.String(),
		Stderr:    stderr.String(),
		Duration:  time.Since(start),
		Truncated: outLimited.truncated || errLimited.truncated,
	}
	res.Combined = res.Stdout
	if res.Stderr != "" {
		if res.Combined != "" {
			res.Combined += "\n"
		}
		res.Combined += res.Stderr
	}

	switch {
	case runCtx.Err() == context.DeadlineExceeded:
		res.TimedOut = true
		res.ExitCode = -1
		log.Warn().
			Str("shell", a.Name()).
			Dur("after", timeout).
			Msg("subprocess killed at deadline")
		return res, fmt.Errorf("%q: %w after %s", command, ErrExecutionTimeout, timeout)
	case runCtx.Err() == context.Canceled:
		res.ExitCode = -1
		return res, context.Canceled
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			log.Debug().
				Str("shell", a.Name()).
				Int("exit_code", res.ExitCode).
				Dur("duration", res.Duration).
				Msg("subprocess exited non-zero")
			return res, nil
		}
		return res, fmt.Errorf("start %s: %w", a.Name(), err)
	}

	log.Debug().
		Str("shell", a.Name()).
		Dur("duration", res.Duration).
		Msg("subprocess finished")
	return res, nil
}

// limitedWriter caps how much subprocess output is kept. Writes past the
// cap are swallowed, not errored, so the subprocess never sees EPIPE.
type limitedWriter struct {
	w         io.Writer
	max       int64
	written   int64
	truncated bool
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	if lw.written >= lw.max {
		lw.truncated = true
		return n, nil
	}

	remaining := lw.max - lw.written
	if int64(n) > remaining {
		lw.truncated = true
		written, err := lw.w.Write(p[:remaining])
		lw.written += int64(written)
		return n, err
	}

	written, err := lw.w.Write(p)
	lw.written += int64(written)
	return written, err
}
