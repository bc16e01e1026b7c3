// Package logging configures the process-wide zerolog logger.
//
// The interactive prompt owns stdout, so entries go to a timestamped
// session file under the configured directory. A console mirror on
// stderr is opt-in for troubleshooting runs.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
)

var (
	mu   sync.Mutex
	file *os.File
)

// Setup opens a fresh session log file under dir, applies the minimum
// level and replaces the global logger. The returned path names the
// session file. A non-nil mirror (usually os.Stderr) additionally echoes
// entries to the console in human-readable form.
func Setup(dir, level string, mirror io.Writer) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create log directory: %w", err)
	}

	name := fmt.Sprintf("safeshell_%s.log", time.Now().Format("2006-01-02_15-04-05"))
	path := filepath.Join(dir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return "", fmt.Errorf("open log file: %w", err)
	}

	mu.Lock()
	if file != nil {
		file.Close()
	}
	file = f
	mu.Unlock()

	var w io.Writer = f
	if mirror != nil {
		w = zerolog.MultiLevelWriter(f, zerolog.ConsoleWriter{Out: mirror, TimeFormat: time.Kitchen})
	}

	zerolog.SetGlobalLevel(ParseLevel(level))
	zlog.Logger = zerolog.New(w).With().Timestamp().Logger()
	return path, nil
}

// Discard silences the global logger. Used when the session file cannot
// be opened: the front-end keeps running without its log rather than
// scribbling over the prompt.
func Discard() {
	zlog.Logger = zerolog.New(io.Discard)
}

// Close releases the session file handle.
func Close() error {
	mu.Lock()
	defer mu.Unlock()

	if file == nil {
		return nil
	}
	err := file.Close()
	file = nil
	return err
}

// ParseLevel maps a configuration string to a zerolog level. Unknown
// values fall back to info so a typo in the config never disables
// logging outright.
func ParseLevel(s string) zerolog.Level {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "warning" {
		s = "warn"
	}
	lvl, err := zerolog.ParseLevel(s)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}
