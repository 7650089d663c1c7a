package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestNewFileRole(t *testing.T) {
	tests := []struct {
		path string
		role string
	}{
		{"requirements/requirements.in", "requirements"},
		{"requirements/tests.in", "tests"},
		{"requirements/dev.in", "dev"},
	}
	for _, tt := range tests {
		if got := NewFile(tt.path).Role; got != tt.role {
			t.Errorf("NewFile(%q).Role = %q, want %q", tt.path, got, tt.role)
		}
	}
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "tests.in", "")
	writeFile(t, dir, "requirements.in", "")
	writeFile(t, dir, "requirements.txt", "") // compiled output, not a manifest

	files, err := Discover(dir)
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}
	var roles []string
	for _, f := range files {
		roles = append(roles, f.Role)
	}
	if diff := cmp.Diff([]string{"requirements", "tests"}, roles); diff != "" {
		t.Errorf("roles mismatch (-want +got):\n%s", diff)
	}
}

func TestDiscover_MissingDir(t *testing.T) {
	files, err := Discover(filepath.Join(t.TempDir(), "nope"))
	if err != nil {
		t.Fatalf("Discover of a missing directory failed: %v", err)
	}
	if len(files) != 0 {
		t.Errorf("files = %v, want none", files)
	}
}

func TestSpecs(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "requirements.in", `
# pinned for the importer
requests>=2.0   # see issue 142
-r common.in

gunicorn
`)

	specs, err := NewFile(path).Specs()
	if err != nil {
		t.Fatalf("Specs failed: %v", err)
	}
	want := []string{"requests>=2.0", "gunicorn"}
	if diff := cmp.Diff(want, specs); diff != "" {
		t.Errorf("specs mismatch (-want +got):\n%s", diff)
	}
}

func TestSpecs_MissingFile(t *testing.T) {
	if _, err := (File{Path: "/no/such/file.in"}).Specs(); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}
