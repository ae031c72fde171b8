package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tally/internal/audit"
	"tally/internal/profile"
)

// resetFlags returns every flag variable to its default. Command vars are
// package-level, so values would otherwise leak between Execute calls.
func resetFlags() {
	flagProfile = profile.DefaultHandle
	flagDataDir = ""
	flagConfig = ""

	profilesDeleteArchive = false
	listStart, listEnd, listCategory = "", "", ""
	exportStart, exportEnd, exportCategory, exportOutput = "", "", "", ""
	categoriesMonth = ""
	checkStart, checkEnd, checkCategory = "", "", ""
	auditFormat, auditVariant, auditOutput = audit.FormatJSON, audit.VariantGeneric, ""
}

func runCLI(t *testing.T, dataDir string, args ...string) (string, error) {
	t.Helper()
	return runCLIStdin(t, dataDir, "", args...)
}

func runCLIStdin(t *testing.T, dataDir, stdin string, args ...string) (string, error) {
	t.Helper()
	resetFlags()

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(append([]string{
		"--data-dir", dataDir,
		"--config", filepath.Join(dataDir, "missing-config.toml"),
	}, args...))

	err := rootCmd.Execute()
	return buf.String(), err
}

func mustRunCLI(t *testing.T, dataDir string, args ...string) string {
	t.Helper()
	out, err := runCLI(t, dataDir, args...)
	if err != nil {
		t.Fatalf("tally %s: %v", strings.Join(args, " "), err)
	}
	return out
}

func mustRunCLIStdin(t *testing.T, dataDir, stdin string, args ...string) string {
	t.Helper()
	out, err := runCLIStdin(t, dataDir, stdin, args...)
	if err != nil {
		t.Fatalf("tally %s: %v", strings.Join(args, " "), err)
	}
	return out
}

func TestProfileCommands(t *testing.T) {
	dir := t.TempDir()

	out := mustRunCLI(t, dir, "profiles", "create", " Alice ")
	if !strings.Contains(out, "Created profile alice") {
		t.Errorf("create output = %q, want normalized handle alice", out)
	}
	mustRunCLI(t, dir, "profiles", "create", "bob")

	out = mustRunCLI(t, dir, "profiles", "list")
	if out != "alice\nbob\n" {
		t.Errorf("list output = %q, want alice and bob sorted", out)
	}

	out = mustRunCLI(t, dir, "profiles", "rename", "alice", "carol")
	if !strings.Contains(out, "Renamed profile alice to carol") {
		t.Errorf("rename output = %q", out)
	}

	out = mustRunCLI(t, dir, "profiles", "archive", "carol")
	if !strings.Contains(out, "Archived profile carol to ") {
		t.Errorf("archive output = %q, want destination path", out)
	}

	// bob is the only live profile now; deleting it must be refused.
	if _, err := runCLI(t, dir, "profiles", "delete", "bob"); err == nil {
		t.Error("delete last profile error = nil, want refusal")
	}

	mustRunCLI(t, dir, "profiles", "create", "dana")
	mustRunCLI(t, dir, "profiles", "delete", "bob", "--archive")

	out = mustRunCLI(t, dir, "profiles", "list")
	if out != "dana\n" {
		t.Errorf("list after delete = %q, want only dana", out)
	}
}

func TestExpenseCommands(t *testing.T) {
	dir := t.TempDir()

	out := mustRunCLI(t, dir, "add", "2025-07-01", " Food ", "12,50", "team", "lunch")
	if !strings.Contains(out, "Added expense 1: 2025-07-01 food 12.50") {
		t.Errorf("add output = %q, want normalized category and comma-decimal amount", out)
	}
	mustRunCLI(t, dir, "add", "2025-07-02", "transport", "5")

	out = mustRunCLI(t, dir, "list")
	for _, want := range []string{"ID", "food", "12.50", "team lunch", "transport"} {
		if !strings.Contains(out, want) {
			t.Errorf("list output missing %q:\n%s", want, out)
		}
	}

	out = mustRunCLI(t, dir, "list", "--category", "FOOD")
	if !strings.Contains(out, "food") || strings.Contains(out, "transport") {
		t.Errorf("filtered list output = %q, want only food rows", out)
	}

	if _, err := runCLI(t, dir, "list", "--start", "garbage"); err == nil {
		t.Error("list with bad start date error = nil, want parse error")
	}
	if _, err := runCLI(t, dir, "add", "2025-13-40", "food", "1"); err == nil {
		t.Error("add with bad date error = nil, want parse error")
	}

	out = mustRunCLI(t, dir, "summary", "2025-07")
	if !strings.Contains(out, "2025-07 total: 17.50") {
		t.Errorf("summary output = %q, want total 17.50", out)
	}

	out = mustRunCLI(t, dir, "categories")
	if out != "food\ntransport\n" {
		t.Errorf("categories output = %q", out)
	}

	out = mustRunCLI(t, dir, "export")
	if !strings.HasPrefix(out, "id,date,category,amount,description\n") {
		t.Errorf("export output = %q, want csv header first", out)
	}
	if !strings.Contains(out, "1,2025-07-01,food,12.50,team lunch") {
		t.Errorf("export output = %q, want the food row", out)
	}
}

func TestExportToFile(t *testing.T) {
	dir := t.TempDir()
	mustRunCLI(t, dir, "add", "2025-07-01", "food", "10")

	target := filepath.Join(dir, "out.csv")
	out := mustRunCLI(t, dir, "export", "--output", target)
	if out != "" {
		t.Errorf("export with --output printed %q, want nothing on stdout", out)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read export file: %v", err)
	}
	if !strings.Contains(string(data), "food") {
		t.Errorf("export file = %q, want the food row", data)
	}
}

func TestMigrateLegacyCommand(t *testing.T) {
	dir := t.TempDir()

	legacy := filepath.Join(dir, "expenses.json")
	doc := `[
		{"date": "2025-07-20", "category": "food", "amount": 10.0, "note": "groceries"},
		{"date": "not-a-date", "category": "food", "amount": 1.0}
	]`
	if err := os.WriteFile(legacy, []byte(doc), 0o644); err != nil {
		t.Fatalf("write legacy file: %v", err)
	}

	out := mustRunCLI(t, dir, "migrate-legacy", legacy)
	if !strings.Contains(out, "Imported 1 expenses") {
		t.Errorf("migrate output = %q, want 1 imported, 1 skipped", out)
	}

	out = mustRunCLI(t, dir, "list")
	if !strings.Contains(out, "groceries") {
		t.Errorf("list after migrate = %q, want the imported row", out)
	}
}

func TestLimitsEditingCommands(t *testing.T) {
	dir := t.TempDir()

	out := mustRunCLI(t, dir, "limits", "set", "2025-07", "Food=100", "rent=900,50")
	if !strings.Contains(out, "Saved 2 limits for 2025-07") {
		t.Errorf("set output = %q", out)
	}

	out = mustRunCLI(t, dir, "limits", "show", "2025-07")
	for _, want := range []string{"food", "100.00", "rent", "900.50"} {
		if !strings.Contains(out, want) {
			t.Errorf("show month output missing %q:\n%s", want, out)
		}
	}

	out = mustRunCLI(t, dir, "limits", "show")
	if !strings.Contains(out, "2025-07") {
		t.Errorf("show all output = %q, want the month heading", out)
	}

	if _, err := runCLI(t, dir, "limits", "set", "2025-07", "food"); err == nil {
		t.Error("set without = error = nil, want category=amount complaint")
	}
	if _, err := runCLI(t, dir, "limits", "set", "2025-7", "food=1"); err == nil {
		t.Error("set with bad month error = nil")
	}

	out = mustRunCLI(t, dir, "limits", "export-csv", "2025-07")
	if !strings.HasPrefix(out, "category,limit\n") {
		t.Errorf("export-csv output = %q, want csv header", out)
	}

	out = mustRunCLIStdin(t, dir, "category,limit\nfuel,55\n", "limits", "import-csv", "2025-08", "-")
	if !strings.Contains(out, "Imported 1 limits for 2025-08") {
		t.Errorf("import-csv output = %q", out)
	}

	docPath := filepath.Join(dir, "limits.json")
	doc := `{"2025-09": {"food": 80}, "2025-10": {"rent": 700}}`
	if err := os.WriteFile(docPath, []byte(doc), 0o644); err != nil {
		t.Fatalf("write limits doc: %v", err)
	}
	out = mustRunCLI(t, dir, "limits", "import-json", docPath)
	if !strings.Contains(out, "Imported limits for 2 months") {
		t.Errorf("import-json output = %q", out)
	}

	out = mustRunCLI(t, dir, "limits", "export-json")
	for _, want := range []string{"2025-09", "2025-10"} {
		if !strings.Contains(out, want) {
			t.Errorf("export-json output missing %q:\n%s", want, out)
		}
	}

	out = mustRunCLI(t, dir, "limits", "clear", "2025-09")
	if !strings.Contains(out, "Cleared 1 limits for 2025-09") {
		t.Errorf("clear output = %q", out)
	}
}

func TestLimitsAdvisoryCommands(t *testing.T) {
	dir := t.TempDir()

	mustRunCLI(t, dir, "add", "2025-05-10", "food", "30")
	mustRunCLI(t, dir, "add", "2025-06-10", "food", "40")

	// Trailing average of 30 and 40 is 35.
	out := mustRunCLI(t, dir, "limits", "suggest", "2025-07")
	if !strings.Contains(out, "food") || !strings.Contains(out, "35.00") {
		t.Errorf("suggest output = %q, want food 35.00", out)
	}

	out = mustRunCLI(t, dir, "limits", "autofill", "2025-07")
	if !strings.Contains(out, "35.00") {
		t.Errorf("autofill output = %q, want the suggestion persisted", out)
	}
	out = mustRunCLI(t, dir, "limits", "show", "2025-07")
	if !strings.Contains(out, "35.00") {
		t.Errorf("show after autofill = %q", out)
	}

	mustRunCLI(t, dir, "add", "2025-07-05", "food", "60")
	out = mustRunCLI(t, dir, "limits", "check", "--start", "2025-07-01", "--end", "2025-07-31")
	if !strings.Contains(out, "2025-07 food: $60.00 [over] (Limit: $35.00)") {
		t.Errorf("check output = %q, want the over warning line", out)
	}

	// 35 suggested against a 20 limit crosses the raise threshold.
	mustRunCLI(t, dir, "limits", "set", "2025-07", "food=20")
	out = mustRunCLI(t, dir, "limits", "advise", "2025-07")
	if !strings.Contains(out, "food") || !strings.Contains(out, "raising") {
		t.Errorf("advise output = %q, want a raise hint for food", out)
	}
}

func TestAuditTrailSurvivesInvocations(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TALLY_AUDIT_LOG", filepath.Join(dir, "audit.jsonl"))

	mustRunCLI(t, dir, "limits", "set", "2025-07", "food=100")

	// A fresh invocation starts with an empty in-memory log; export must
	// read the sink back.
	out := mustRunCLI(t, dir, "audit", "export")
	var rows []map[string]any
	if err := json.Unmarshal([]byte(out), &rows); err != nil {
		t.Fatalf("export output is not json: %v\n%s", err, out)
	}
	if len(rows) != 1 {
		t.Fatalf("exported %d entries, want 1", len(rows))
	}
	if rows[0]["kind"] != audit.KindSave {
		t.Errorf("entry kind = %v, want %s", rows[0]["kind"], audit.KindSave)
	}

	out = mustRunCLI(t, dir, "audit", "export", "--format", "csv", "--variant", "diff")
	if !strings.Contains(out, "user,month,category,before,after") {
		t.Errorf("diff csv output = %q, want header", out)
	}

	if _, err := runCLI(t, dir, "audit", "export", "--format", "xml"); err == nil {
		t.Error("export with unknown format error = nil")
	}

	mustRunCLI(t, dir, "audit", "clear")

	out = mustRunCLI(t, dir, "audit", "export")
	if err := json.Unmarshal([]byte(out), &rows); err != nil {
		t.Fatalf("export after clear is not json: %v\n%s", err, out)
	}
	if len(rows) != 0 {
		t.Errorf("exported %d entries after clear, want 0", len(rows))
	}
}

func TestProfileFlagRoutesData(t *testing.T) {
	dir := t.TempDir()

	// Only the default profile materializes on first use.
	mustRunCLI(t, dir, "profiles", "create", "work")

	mustRunCLI(t, dir, "add", "2025-07-01", "food", "10")
	mustRunCLI(t, dir, "--profile", "work", "add", "2025-07-01", "travel", "99")

	out := mustRunCLI(t, dir, "list")
	if strings.Contains(out, "travel") {
		t.Errorf("default profile list = %q, leaked the work profile's row", out)
	}
	out = mustRunCLI(t, dir, "-p", "work", "list")
	if !strings.Contains(out, "travel") {
		t.Errorf("work profile list = %q, want the travel row", out)
	}
}
