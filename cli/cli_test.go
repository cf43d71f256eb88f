package cli

import (
	"os"
	"path/filepath"
	"testing"
)

func TestExecuteDispatch(t *testing.T) {
	origArgs := os.Args
	defer func() { os.Args = origArgs }()

	origMerge := MergePDF
	origInspect := InspectPDF
	origMigrate := MigratePlacements
	defer func() {
		MergePDF = origMerge
		InspectPDF = origInspect
		MigratePlacements = origMigrate
	}()

	var called string
	MergePDF = func(input, output, placementsPath string, compressLevel, maxImagePixels int) {
		called = "merge"
	}
	InspectPDF = func(input string) { called = "inspect" }
	MigratePlacements = func(input, output string) { called = "migrate" }

	os.Args = []string{"pdfmerge", "merge", "-placements", "p.json", "in.pdf", "out.pdf"}
	Execute()
	if called != "merge" {
		t.Errorf("expected merge to be dispatched, got %q", called)
	}

	os.Args = []string{"pdfmerge", "inspect", "in.pdf"}
	Execute()
	if called != "inspect" {
		t.Errorf("expected inspect to be dispatched, got %q", called)
	}

	os.Args = []string{"pdfmerge", "migrate", "legacy.json"}
	Execute()
	if called != "migrate" {
		t.Errorf("expected migrate to be dispatched, got %q", called)
	}
}

func TestExecuteUnknownCommand(t *testing.T) {
	origArgs := os.Args
	defer func() { os.Args = origArgs }()

	origExit := osExit
	defer func() { osExit = origExit }()

	exitCode := -1
	osExit = func(code int) { exitCode = code }

	os.Args = []string{"pdfmerge", "frobnicate"}
	Execute()
	if exitCode != 1 {
		t.Errorf("expected exit code 1 for unknown command, got %d", exitCode)
	}
}

func TestMergeCommandMissingArgs(t *testing.T) {
	origArgs := os.Args
	defer func() { os.Args = origArgs }()

	origExit := osExit
	defer func() { osExit = origExit }()

	exited := false
	osExit = func(code int) { exited = true }

	os.Args = []string{"pdfmerge", "merge"}
	MergeCommand()
	if !exited {
		t.Error("expected exit when required arguments are missing")
	}
}

func TestMigratePlacements(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "legacy.json")
	output := filepath.Join(dir, "canonical.json")

	legacy := `{"signature_data":{"signatures":[{"id":"sig-1","page":1,"position":{"relativeX":0.1,"relativeY":0.2,"relativeWidth":0.3,"relativeHeight":0.1}}]}}`
	if err := os.WriteFile(input, []byte(legacy), 0o644); err != nil {
		t.Fatal(err)
	}

	origExit := osExit
	defer func() { osExit = origExit }()
	osExit = func(code int) { t.Fatalf("unexpected exit with code %d", code) }

	migratePlacementsImpl(input, output)

	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) == 0 {
		t.Error("expected canonical JSON output")
	}
}

func TestMigratePlacementsInvalidInput(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(input, []byte("not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	origExit := osExit
	defer func() { osExit = origExit }()

	exited := false
	osExit = func(code int) { exited = true }

	migratePlacementsImpl(input, "")
	if !exited {
		t.Error("expected exit for invalid placement JSON")
	}
}
