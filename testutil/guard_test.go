package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDomainImportForbiddenPredicate(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"culturecore/pkg/domain", true},
		{"example.com/mod/pkg/domain@v1", true},
		{"example.com/mod/pkg/notdomain", false},
	}
	for _, c := range cases {
		if got := DomainImportForbidden(c.in); got != c.want {
			t.Fatalf("DomainImportForbidden(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestInternalImportForbiddenPredicate(t *testing.T) {
	if !InternalImportForbidden("culturecore/internal/core") {
		t.Fatalf("expected internal path to match")
	}
	if InternalImportForbidden("culturecore/pkg/domain") {
		t.Fatalf("expected non-internal path to pass")
	}
}

func TestAssertNoDirectImportsFlagsViolations(t *testing.T) {
	dir := t.TempDir()
	src := `package sample

import (
	_ "culturecore/pkg/domain"
	_ "fmt"
)
`
	if err := os.WriteFile(filepath.Join(dir, "sample.go"), []byte(src), 0o600); err != nil {
		t.Fatalf("write sample: %v", err)
	}
	viols, err := directImportViolations(dir, DomainImportForbidden)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(viols) != 1 {
		t.Fatalf("expected one violation, got %v", viols)
	}

	viols, err = directImportViolations(dir, func(string) bool { return false })
	if err != nil || len(viols) != 0 {
		t.Fatalf("expected clean scan, got %v err=%v", viols, err)
	}
}
