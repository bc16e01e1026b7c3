// Package platform detects which target shell SafeShell dispatches into.
// Detection runs once per process, prefers a modern shell over a legacy one
// when both exist, and caches the result for every later translation and
// tier decision.
package platform

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrShellUnavailable reports that no usable target shell was found. It is
// fatal at startup only.
var ErrShellUnavailable = errors.New("no usable target shell detected")

// Shell identifies a concrete shell binary.
type Shell string

const (
	ShellPwsh       Shell = "pwsh"       // PowerShell Core (modern)
	ShellPowerShell Shell = "powershell" // Windows PowerShell 5.x (legacy)
	ShellCmd        Shell = "cmd"        // cmd.exe (legacy)
	ShellBash       Shell = "bash"
	ShellZsh        Shell = "zsh"
	ShellSh         Shell = "sh" // POSIX sh (legacy)
	ShellUnknown    Shell = "unknown"
)

// Family groups shells by command dialect. Alias translation and tier
// assignment key off the family, not the exact binary.
type Family string

const (
	FamilyPosix      Family = "posix"
	FamilyPowerShell Family = "powershell"
	FamilyCmd        Family = "cmd"
)

// JoinPipe recombines validated pipeline segments into one expression using
// the family's pipe operator.
func (f Family) JoinPipe(segments []string) string {
	return strings.Join(segments, " | ")
}

// FamilyOf maps a shell to its dialect family.
func FamilyOf(s Shell) Family {
	switch s {
	case ShellPwsh, ShellPowerShell:
		return FamilyPowerShell
	case ShellCmd:
		return FamilyCmd
	default:
		return FamilyPosix
	}
}

// Probe records the outcome of one shell capability check. The doctor
// command reports these.
type Probe struct {
	Shell     Shell  `json:"shell"`
	Path      string `json:"path,omitempty"`
	Version   string `json:"version,omitempty"`
	Available bool   `json:"available"`
	Error     string `json:"error,omitempty"`
}

// Info describes the selected target platform.
type Info struct {
	Shell   Shell  `json:"shell"`
	Family  Family `json:"family"`
	Path    string `json:"path"`    // resolved binary path
	Version string `json:"version"` // probe output, best effort
	OS      string `json:"os"`
	// Modern is false when the selection fell back to a legacy shell
	// (sh, powershell 5.x, cmd).
	Modern bool `json:"modern"`

	// Probes holds every candidate checked during detection, in probe order.
	Probes []Probe `json:"probes,omitempty"`

	DetectedAt time.Time `json:"detected_at"`
}

// String returns a human-readable description of the selection.
func (i *Info) String() string {
	return fmt.Sprintf("%s (%s, %s)", i.Shell, i.Family, i.Path)
}

// Detector provides cached shell platform detection.
type Detector struct {
	mu           sync.RWMutex
	cached       *Info
	preferred    Shell
	probeTimeout time.Duration
}

// Option configures a Detector.
type Option func(*Detector)

// WithPreferred pins detection to one shell; probing still verifies it.
func WithPreferred(s Shell) Option {
	return func(d *Detector) {
		d.preferred = s
	}
}

// WithProbeTimeout bounds each individual capability probe.
func WithProbeTimeout(t time.Duration) Option {
	return func(d *Detector) {
		if t > 0 {
			d.probeTimeout = t
		}
	}
}

// NewDetector creates a shell detector. The cache has no TTL: the platform
// is selected once per process lifetime.
func NewDetector(opts ...Option) *Detector {
	d := &Detector{
		probeTimeout: 3 * time.Second,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

var (
	globalDetector     *Detector
	globalDetectorOnce sync.Once
)

// GetDetector returns the global detector singleton.
func GetDetector() *Detector {
	globalDetectorOnce.Do(func() {
		globalDetector = NewDetector()
	})
	return globalDetector
}

// Detect returns the selected platform, probing on first use.
func (d *Detector) Detect(ctx context.Context) (*Info, error) {
	d.mu.RLock()
	if d.cached != nil {
		cached := d.cached
		d.mu.RUnlock()
		log.Debug().
			Str("shell", string(cached.Shell)).
			Str("family", string(cached.Family)).
			Msg("using cached shell platform")
		return cached, nil
	}
	d.mu.RUnlock()

	info, err := DetectShell(ctx, d.preferred, d.probeTimeout)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	d.cached = info
	d.mu.Unlock()

	return info, nil
}

// InvalidateCache clears the cached selection so the next Detect re-probes.
// Only the doctor command uses this.
func (d *Detector) InvalidateCache() {
	d.mu.Lock()
	d.cached = nil
	d.mu.Unlock()
	log.Debug().Msg("shell platform cache invalidated")
}

// DetectShell probes candidate shells in preference order and selects the
// first available one. A pinned shell that fails its probe is an error, not
// a silent fallback.
func DetectShell(ctx context.Context, preferred Shell, probeTimeout time.Duration) (*Info, error) {
	if probeTimeout <= 0 {
		probeTimeout = 3 * time.Second
	}

	log.Debug().
		Str("os", runtime.GOOS).
		Str("preferred", string(preferred)).
		Msg("probing target shells")

	candidates := candidateOrder(preferred)

	info := &Info{
		OS:         runtime.GOOS,
		DetectedAt: time.Now(),
	}

	for _, candidate := range candidates {
		probe := probeShell(ctx, candidate, probeTimeout)
		info.Probes = append(info.Probes, probe)

		if !probe.Available {
			log.Debug().
				Str("shell", string(candidate)).
				Str("error", probe.Error).
				Msg("shell probe failed")
			if candidate == preferred && preferred != "" {
				return nil, fmt.Errorf("preferred shell %s: %s: %w", preferred, probe.Error, ErrShellUnavailable)
			}
			continue
		}

		info.Shell = probe.Shell
		info.Family = FamilyOf(probe.Shell)
		info.Path = probe.Path
		info.Version = probe.Version
		info.Modern = isModern(probe.Shell)

		log.Info().
			Str("shell", string(info.Shell)).
			Str("family", string(info.Family)).
			Str("path", info.Path).
			Str("version", info.Version).
			Bool("modern", info.Modern).
			Msg("target shell selected")

		return info, nil
	}

	return nil, ErrShellUnavailable
}

// candidateOrder lists shells to probe, modern first. A preferred shell is
// probed alone; $SHELL is honored as a hint on POSIX hosts.
func candidateOrder(preferred Shell) []Shell {
	if preferred != "" {
		return []Shell{preferred}
	}

	if runtime.GOOS == "windows" {
		return []Shell{ShellPwsh, ShellPowerShell, ShellCmd}
	}

	// pwsh closes the list so a PowerShell-only unix host still resolves.
	order := []Shell{ShellBash, ShellZsh, ShellSh, ShellPwsh}
	if hint := shellFromEnv(); hint != "" {
		reordered := []Shell{hint}
		for _, s := range order {
			if s != hint {
				reordered = append(reordered, s)
			}
		}
		order = reordered
	}
	return order
}

// shellFromEnv maps $SHELL onto a known candidate, or "".
func shellFromEnv() Shell {
	env := os.Getenv("SHELL")
	if env == "" {
		return ""
	}
	switch s := Shell(filepath.Base(env)); s {
	case ShellBash, ShellZsh, ShellSh, ShellPwsh:
		return s
	default:
		return ""
	}
}

func isModern(s Shell) bool {
	switch s {
	case ShellPowerShell, ShellCmd, ShellSh:
		return false
	default:
		return true
	}
}

// probeShell checks that a shell binary exists and answers a trivial version
// query within the probe timeout.
func probeShell(ctx context.Context, s Shell, timeout time.Duration) Probe {
	probe := Probe{Shell: s}

	path, err := exec.LookPath(string(s))
	if err != nil {
		probe.Error = "not found in PATH"
		return probe
	}
	probe.Path = path

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var cmd *exec.Cmd
	switch s {
	case ShellPwsh, ShellPowerShell:
		cmd = exec.CommandContext(ctx, path, "-NoProfile", "-Command", "$PSVersionTable.PSVersion.ToString()")
	case ShellCmd:
		cmd = exec.CommandContext(ctx, path, "/C", "ver")
	default:
		cmd = exec.CommandContext(ctx, path, "--version")
	}

	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	if err := cmd.Run(); err != nil {
		// sh commonly lacks --version; existence plus a trivial -c probe
		// is enough for the legacy fallback.
		if s == ShellSh {
			echo := exec.CommandContext(ctx, path, "-c", "echo ok")
			if echoErr := echo.Run(); echoErr == nil {
				probe.Available = true
				probe.Version = "POSIX sh"
				return probe
			}
		}
		probe.Error = fmt.Sprintf("version probe failed: %v", err)
		return probe
	}

	probe.Available = true
	probe.Version = firstLine(stdout.String())
	return probe
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// QuickDetect guesses the platform family from the OS without probing.
// Use Detect for the real selection.
func QuickDetect() Family {
	if runtime.GOOS == "windows" {
		return FamilyPowerShell
	}
	return FamilyPosix
}
