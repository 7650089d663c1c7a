package product

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/lwaddell/depscope/pkg/errors"
	"github.com/lwaddell/depscope/pkg/pydep"
)

const productsTOML = `
[applications.via]
git_url = "https://github.com/example/via.git"

[applications.bouncer]
git_url = "https://github.com/example/bouncer.git"

[libraries.h-api]
git_url = "https://github.com/example/h-api.git"
on_registry = true

[libraries.h-assets]
git_url = "https://github.com/example/h-assets.git"
`

func TestParse(t *testing.T) {
	set, err := Parse([]byte(productsTOML))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	app, err := set.Get("via")
	if err != nil {
		t.Fatalf("Get(via) failed: %v", err)
	}
	if app.Kind != KindApplication || app.GitURL != "https://github.com/example/via.git" {
		t.Errorf("via = %+v, want an application with its git URL", app)
	}

	lib, err := set.Get("h-api")
	if err != nil {
		t.Fatalf("Get(h-api) failed: %v", err)
	}
	if lib.Kind != KindLibrary || !lib.OnRegistry {
		t.Errorf("h-api = %+v, want a registry-published library", lib)
	}
	if lib.Identity() != "h_api" {
		t.Errorf("Identity = %q, want %q", lib.Identity(), "h_api")
	}

	var codes []string
	for _, p := range set.All() {
		codes = append(codes, p.Code)
	}
	if !sort.StringsAreSorted(codes) || len(codes) != 4 {
		t.Errorf("All = %v, want 4 products sorted by code", codes)
	}
	if libs := set.Libraries(); len(libs) != 2 {
		t.Errorf("Libraries = %d products, want 2", len(libs))
	}
}

func TestParse_OnRegistryDefaultsTrue(t *testing.T) {
	set, err := Parse([]byte(`
[libraries.h-assets]
git_url = "https://github.com/example/h-assets.git"

[libraries.internal-only]
git_url = "https://github.com/example/internal-only.git"
on_registry = false
`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	// Omitting the flag means the library is published; only an explicit
	// false opts out.
	lib, err := set.Get("h-assets")
	if err != nil {
		t.Fatalf("Get(h-assets) failed: %v", err)
	}
	if !lib.OnRegistry {
		t.Error("a library without on_registry should default to on-registry")
	}

	private, err := set.Get("internal-only")
	if err != nil {
		t.Fatalf("Get(internal-only) failed: %v", err)
	}
	if private.OnRegistry {
		t.Error("on_registry = false must be honored")
	}
}

func TestParse_DuplicateProduct(t *testing.T) {
	_, err := Parse([]byte(`
[applications.via]
git_url = "https://example.com/via.git"

[libraries.via]
git_url = "https://example.com/via.git"
`))
	if err == nil {
		t.Fatal("expected a duplicate-product error")
	}
	if code := errors.GetCode(err); code != errors.ErrCodeInvalidConfig {
		t.Errorf("code = %s, want %s", code, errors.ErrCodeInvalidConfig)
	}
}

func TestGet_Unknown(t *testing.T) {
	set, err := Parse([]byte(productsTOML))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	_, err = set.Get("nope")
	if code := errors.GetCode(err); code != errors.ErrCodeUnknownProduct {
		t.Errorf("code = %s, want %s", code, errors.ErrCodeUnknownProduct)
	}
}

func TestFirstParty(t *testing.T) {
	set, err := Parse([]byte(productsTOML))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	fp := set.FirstParty()
	if fp.Cardinality() != 2 || !fp.Contains("h_api") || !fp.Contains("h_assets") {
		t.Errorf("FirstParty = %v, want the two libraries", fp)
	}
}

// fetcher serves canned registry metadata for requirement resolution.
type fetcher struct {
	pkgs map[pydep.Identity]*pydep.Metadata
}

func (f *fetcher) Fetch(_ context.Context, name string) (*pydep.Metadata, error) {
	meta, ok := f.pkgs[pydep.Normalize(name)]
	if !ok {
		return nil, errors.New(errors.ErrCodePackageNotFound, "package %q not found", name)
	}
	return meta, nil
}

func testResolver(metas ...*pydep.Metadata) *pydep.Resolver {
	f := &fetcher{pkgs: make(map[pydep.Identity]*pydep.Metadata)}
	for _, meta := range metas {
		f.pkgs[pydep.Normalize(meta.Name)] = meta
	}
	return pydep.NewResolver(f, pydep.DefaultEnvironment(), nil)
}

func TestApplicationRequirements(t *testing.T) {
	checkout := t.TempDir()
	reqDir := filepath.Join(checkout, RequirementsDir)
	if err := os.MkdirAll(reqDir, 0o755); err != nil {
		t.Fatal(err)
	}
	write := func(name, content string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(reqDir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("requirements.in", "requests\ngunicorn\n")
	write("tests.in", "pytest\nrequests\n")

	res := testResolver(
		&pydep.Metadata{Name: "requests"},
		&pydep.Metadata{Name: "gunicorn"},
		&pydep.Metadata{Name: "pytest"},
	)
	app := &Product{Code: "via", Kind: KindApplication}

	pkgs, err := app.Requirements(context.Background(), res, checkout)
	if err != nil {
		t.Fatalf("Requirements failed: %v", err)
	}
	if len(pkgs) != 3 {
		t.Fatalf("got %d packages, want 3 (requests merged across files)", len(pkgs))
	}

	roles := make(map[pydep.Identity][]string)
	for _, pkg := range pkgs {
		tags := pkg.Roles.ToSlice()
		sort.Strings(tags)
		roles[pkg.Identity] = tags
	}
	// requests appears in both files, so it carries both roles.
	if got := roles["requests"]; len(got) != 2 || got[0] != "requirements" || got[1] != "tests" {
		t.Errorf("requests roles = %v, want [requirements tests]", got)
	}
	if got := roles["gunicorn"]; len(got) != 1 || got[0] != "requirements" {
		t.Errorf("gunicorn roles = %v, want [requirements]", got)
	}
	if got := roles["pytest"]; len(got) != 1 || got[0] != "tests" {
		t.Errorf("pytest roles = %v, want [tests]", got)
	}
}

func TestLibraryRequirements(t *testing.T) {
	res := testResolver(
		&pydep.Metadata{
			Name: "h-api",
			RequiresDist: []string{
				"requests",
				`pytest ; extra == "tests"`,
				`requests ; extra == "tests"`,
			},
		},
		&pydep.Metadata{Name: "requests"},
		&pydep.Metadata{Name: "pytest"},
	)
	lib := &Product{Code: "h-api", Kind: KindLibrary, OnRegistry: true}

	pkgs, err := lib.Requirements(context.Background(), res, "")
	if err != nil {
		t.Fatalf("Requirements failed: %v", err)
	}
	if len(pkgs) != 2 {
		t.Fatalf("got %d packages, want 2", len(pkgs))
	}

	roles := make(map[pydep.Identity][]string)
	for _, pkg := range pkgs {
		tags := pkg.Roles.ToSlice()
		sort.Strings(tags)
		roles[pkg.Identity] = tags
	}
	// requests is a dist dependency; its reappearance under tests must not
	// add a tests tag.
	if got := roles["requests"]; len(got) != 1 || got[0] != RoleDist {
		t.Errorf("requests roles = %v, want [%s]", got, RoleDist)
	}
	if got := roles["pytest"]; len(got) != 1 || got[0] != RoleTests {
		t.Errorf("pytest roles = %v, want [%s]", got, RoleTests)
	}
}

func TestRequirements_NoKind(t *testing.T) {
	p := &Product{Code: "mystery"}
	if _, err := p.Requirements(context.Background(), testResolver(), ""); err == nil {
		t.Fatal("expected an error for a product without a kind")
	}
}
