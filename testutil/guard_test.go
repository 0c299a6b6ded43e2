package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestInternalImportForbiddenPredicate(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"medtracker/internal/core", true},
		{"example.com/mod/internal/x", true},
		{"medtracker/pkg/domain", false},
	}
	for _, c := range cases {
		if got := InternalImportForbidden(c.in); got != c.want {
			t.Fatalf("InternalImportForbidden(%q)=%v want %v", c.in, got, c.want)
		}
	}
}

func TestNonStdlibImportForbiddenPredicate(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"encoding/json", false},
		{"time", false},
		{"github.com/rs/zerolog", true},
		{"medtracker/pkg/domain", true},
	}
	for _, c := range cases {
		if got := NonStdlibImportForbidden(c.in); got != c.want {
			t.Fatalf("NonStdlibImportForbidden(%q)=%v want %v", c.in, got, c.want)
		}
	}
}

func TestPrefixForbidden(t *testing.T) {
	pred := PrefixForbidden("medtracker/internal/infra")
	if !pred("medtracker/internal/infra/persistence/sqlite") {
		t.Fatalf("expected nested path to match")
	}
	if !pred("medtracker/internal/infra") {
		t.Fatalf("expected exact path to match")
	}
	if pred("medtracker/internal/infrastructure") {
		t.Fatalf("sibling with shared prefix must not match")
	}
}

func TestAssertNoDirectImports(t *testing.T) {
	dir := t.TempDir()
	src := []byte("package tmp\nimport \"fmt\"\nfunc X(){fmt.Println(1)}")
	if err := os.WriteFile(filepath.Join(dir, "x.go"), src, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "x_test.go"), []byte("package tmp\nimport _ \"medtracker/internal/core\""), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	AssertNoDirectImports(t, dir, InternalImportForbidden, "test files are ignored")
}

func TestDirectImportViolationsReportsFile(t *testing.T) {
	dir := t.TempDir()
	src := []byte("package tmp\nimport _ \"medtracker/internal/core\"\n")
	if err := os.WriteFile(filepath.Join(dir, "bad.go"), src, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	viols, err := directImportViolations(dir, InternalImportForbidden)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(viols) != 1 || viols[0] != "medtracker/internal/core (in bad.go)" {
		t.Fatalf("unexpected violations: %v", viols)
	}
}
