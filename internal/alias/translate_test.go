package alias

import (
	"testing"

	"github.com/normanking/safeshell/internal/platform"
)

func newTestTable(t *testing.T) *Table {
	t.Helper()
	table, err := NewTable()
	if err != nil {
		t.Fatalf("NewTable failed: %v", err)
	}
	return table
}

func TestTranslatePowerShell(t *testing.T) {
	tr := NewTranslator(newTestTable(t), platform.FamilyPowerShell)

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"bare verb", "grep", "Select-String"},
		{"verb with args no mapping", "grep error log.txt", "Select-String error log.txt"},
		{"unknown verb passes through", "frobnicate --now", "frobnicate --now"},
		{"simple substitution", "pwd", "Get-Location"},
		{"hidden files flag", "ls -a", "Get-ChildItem -Force"},
		{"combined flags decompose", "ls -la", "Get-ChildItem -Force | Format-List"},
		{"path appended unchanged", "ls -la /home/user", "Get-ChildItem -Force /home/user | Format-List"},
		{"suffix appended once", "ls -l -la", "Get-ChildItem -Force | Format-List"},
		{"flag plus default mapping", "kill -9 1234", "Stop-Process -Force -Id 1234"},
		{"default mapping only", "kill 1234", "Stop-Process -Id 1234"},
		{"quoted tail preserved", `grep "a b" log.txt`, `Select-String "a b" log.txt`},
		{"recursive copy", "cp -r src dst", "Copy-Item -Recurse src dst"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tr.Translate(tt.input); got != tt.want {
				t.Errorf("Translate(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestTranslateTwoStage(t *testing.T) {
	tr := NewTranslator(newTestTable(t), platform.FamilyPowerShell)

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"head with -n", "head -n 10 file.txt", "Get-Content file.txt | Select-Object -First 10"},
		{"head numeric shorthand", "head -5 file.txt", "Get-Content file.txt | Select-Object -First 5"},
		{"tail numeric shorthand", "tail -20 app.log", "Get-Content app.log | Select-Object -Last 20"},
		{"wc lines", "wc -l file.txt", "Get-Content file.txt | Measure-Object -Line"},
		{"file without count", "head file.txt", "Get-Content file.txt | Select-Object"},
		{"count without file", "head -n 3", "Get-Content | Select-Object -First 3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tr.Translate(tt.input); got != tt.want {
				t.Errorf("Translate(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestTranslateCmd(t *testing.T) {
	tr := NewTranslator(newTestTable(t), platform.FamilyCmd)

	tests := []struct {
		input string
		want  string
	}{
		{"ls", "dir"},
		{"cat readme.md", "type readme.md"},
		{"kill -9 123", "taskkill /F /PID 123"},
		{"pwd", "pwd"}, // not in the cmd table
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := tr.Translate(tt.input); got != tt.want {
				t.Errorf("Translate(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestTranslatePosixIsIdentity(t *testing.T) {
	tr := NewTranslator(newTestTable(t), platform.FamilyPosix)

	inputs := []string{"ls -la", "grep error log.txt", "head -5 file.txt"}
	for _, input := range inputs {
		if got := tr.Translate(input); got != input {
			t.Errorf("POSIX target should pass through, Translate(%q) = %q", input, got)
		}
	}
}

func TestTranslateIdempotent(t *testing.T) {
	tr := NewTranslator(newTestTable(t), platform.FamilyPowerShell)

	// Translating already-translated text is a no-op pass-through because
	// destination verbs miss the source table.
	inputs := []string{"pwd", "ls -a", "grep error log.txt", "kill -9 1234"}
	for _, input := range inputs {
		once := tr.Translate(input)
		twice := tr.Translate(once)
		if once != twice {
			t.Errorf("Translate not idempotent for %q: first %q, second %q", input, once, twice)
		}
	}
}

func TestTranslatePreservesArgumentOrder(t *testing.T) {
	tr := NewTranslator(newTestTable(t), platform.FamilyPowerShell)

	// Mapped fragments and positionals keep the input's relative order.
	got := tr.Translate("ls -a dir1 dir2")
	want := "Get-ChildItem -Force dir1 dir2"
	if got != want {
		t.Errorf("Translate = %q, want %q", got, want)
	}

	got = tr.Translate("ls dir1 -a dir2")
	want = "Get-ChildItem dir1 -Force dir2"
	if got != want {
		t.Errorf("Translate = %q, want %q", got, want)
	}
}

func TestTranslatorDisabled(t *testing.T) {
	tr := NewTranslator(newTestTable(t), platform.FamilyPowerShell, WithEnabled(false))

	if got := tr.Translate("ls -la"); got != "ls -la" {
		t.Errorf("disabled translator should pass through, got %q", got)
	}
}

func TestTranslateNeverEmpty(t *testing.T) {
	tr := NewTranslator(newTestTable(t), platform.FamilyPowerShell)

	tests := []string{"", "   ", "\t"}
	for _, input := range tests {
		if got := tr.Translate(input); got != input {
			t.Errorf("whitespace input should be unchanged, Translate(%q) = %q", input, got)
		}
	}
}

func TestDescribe(t *testing.T) {
	tr := NewTranslator(newTestTable(t), platform.FamilyPowerShell)

	if desc := tr.Describe("grep error"); desc != "Search text patterns" {
		t.Errorf("Describe = %q", desc)
	}
	if desc := tr.Describe("frobnicate"); desc != "" {
		t.Errorf("unknown verb should have empty description, got %q", desc)
	}
}

func TestDecomposeCombined(t *testing.T) {
	table := newTestTable(t)
	entry, ok := table.Lookup(platform.FamilyPowerShell, "ls")
	if !ok {
		t.Fatal("ls entry missing")
	}

	tests := []struct {
		tok  string
		want int // number of constituents, 0 = nil
	}{
		{"-la", 2},
		{"-al", 2},
		{"-lx", 0}, // -x unknown
		{"-9", 0},  // digits never decompose
		{"-l", 0},  // single flags are not combined
		{"file", 0},
	}

	for _, tt := range tests {
		t.Run(tt.tok, func(t *testing.T) {
			got := decomposeCombined(entry, tt.tok)
			if len(got) != tt.want {
				t.Errorf("decomposeCombined(%q) = %v, want %d constituents", tt.tok, got, tt.want)
			}
		})
	}
}
