// Package product models the organization's own applications and libraries:
// the roots that dependency trees are built for, and the first-party set
// that pruning collapses.
//
// Products are loaded once at startup from a TOML file and passed by
// reference to whatever needs them; there is no global registry.
package product

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"github.com/BurntSushi/toml"
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/lwaddell/depscope/pkg/errors"
	"github.com/lwaddell/depscope/pkg/manifest"
	"github.com/lwaddell/depscope/pkg/pydep"
)

// Kind distinguishes the two traversal origins.
type Kind string

const (
	// KindApplication products draw their requirements from their own
	// requirement files in a local checkout.
	KindApplication Kind = "application"
	// KindLibrary products draw their requirements from the registry's
	// declared metadata, split into dist and tests groups.
	KindLibrary Kind = "library"
)

// Roles used when tagging a product's requirement edges.
const (
	RoleDist  = "dist"
	RoleTests = "tests"
)

// RequirementsDir is the directory inside an application checkout that
// holds its requirement files.
const RequirementsDir = "requirements"

// Product is one application or library.
type Product struct {
	Code       string
	GitURL     string
	OnRegistry bool
	Kind       Kind
}

// Identity returns the product's normalized package identity.
func (p *Product) Identity() pydep.Identity { return pydep.Normalize(p.Code) }

// Set holds every configured product, keyed by code.
type Set struct {
	products map[string]*Product
}

type config struct {
	Applications map[string]productConfig `toml:"applications"`
	Libraries    map[string]productConfig `toml:"libraries"`
}

// productConfig is the raw TOML shape. OnRegistry is a pointer so an omitted
// flag is distinguishable from an explicit false: products are on the
// registry unless opted out.
type productConfig struct {
	GitURL     string `toml:"git_url"`
	OnRegistry *bool  `toml:"on_registry"`
}

func (c productConfig) product(code string, kind Kind) *Product {
	return &Product{
		Code:       code,
		GitURL:     c.GitURL,
		OnRegistry: c.OnRegistry == nil || *c.OnRegistry,
		Kind:       kind,
	}
}

// Load reads a product configuration file:
//
//	[applications.via]
//	git_url = "https://github.com/example/via.git"
//
//	[libraries.h-api]
//	git_url = "https://github.com/example/h-api.git"
//	on_registry = true
func Load(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "reading products %s", path)
	}
	return Parse(data)
}

// Parse builds a Set from raw TOML configuration.
func Parse(data []byte) (*Set, error) {
	var cfg config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "parsing products")
	}

	set := &Set{products: make(map[string]*Product)}
	for code, p := range cfg.Applications {
		set.products[code] = p.product(code, KindApplication)
	}
	for code, p := range cfg.Libraries {
		if _, dup := set.products[code]; dup {
			return nil, errors.New(errors.ErrCodeInvalidConfig, "product %q defined twice", code)
		}
		set.products[code] = p.product(code, KindLibrary)
	}
	return set, nil
}

// Get returns a product by code.
func (s *Set) Get(code string) (*Product, error) {
	p, ok := s.products[code]
	if !ok {
		return nil, errors.New(errors.ErrCodeUnknownProduct, "no product %q configured", code)
	}
	return p, nil
}

// All returns every product, sorted by code.
func (s *Set) All() []*Product {
	out := make([]*Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// Libraries returns the library products, sorted by code.
func (s *Set) Libraries() []*Product {
	var out []*Product
	for _, p := range s.All() {
		if p.Kind == KindLibrary {
			out = append(out, p)
		}
	}
	return out
}

// FirstParty returns the identities of all configured libraries. Packages
// in this set are the organization's own and are collapsed to leaves by
// pruning, since each has its own separate analysis.
func (s *Set) FirstParty() mapset.Set[pydep.Identity] {
	out := mapset.NewThreadUnsafeSet[pydep.Identity]()
	for _, p := range s.products {
		if p.Kind == KindLibrary {
			out.Add(p.Identity())
		}
	}
	return out
}

// Requirements returns the product's role-tagged requirement packages,
// merged by identity with role tags unioned.
//
// Applications read their requirement files from checkoutDir; libraries ask
// the registry for their dist and tests requirement groups. checkoutDir is
// unused for libraries.
func (p *Product) Requirements(ctx context.Context, res *pydep.Resolver, checkoutDir string) ([]*pydep.Package, error) {
	switch p.Kind {
	case KindApplication:
		return p.applicationRequirements(ctx, res, checkoutDir)
	case KindLibrary:
		return p.libraryRequirements(ctx, res)
	}
	return nil, errors.New(errors.ErrCodeInternal, "product %q has no kind", p.Code)
}

func (p *Product) applicationRequirements(ctx context.Context, res *pydep.Resolver, checkoutDir string) ([]*pydep.Package, error) {
	files, err := manifest.Discover(filepath.Join(checkoutDir, RequirementsDir))
	if err != nil {
		return nil, err
	}

	merged := newMerger()
	for _, file := range files {
		specs, err := file.Specs()
		if err != nil {
			return nil, err
		}
		for _, spec := range specs {
			pkg, err := res.Resolve(ctx, spec)
			if err != nil {
				return nil, err
			}
			merged.add(pkg, file.Role)
		}
	}
	return merged.packages(), nil
}

func (p *Product) libraryRequirements(ctx context.Context, res *pydep.Resolver) ([]*pydep.Package, error) {
	pkg, err := res.Resolve(ctx, p.Code)
	if err != nil {
		return nil, err
	}

	merged := newMerger()
	for _, group := range []struct{ role, extra string }{
		{RoleDist, ""},
		{RoleTests, "tests"},
	} {
		reqs, err := pkg.GetRequirements(ctx, group.extra)
		if err != nil {
			return nil, err
		}
		for _, req := range reqs {
			merged.add(req, group.role)
		}
	}

	// A dist dependency showing up again under tests is still just a dist
	// dependency; don't list it twice.
	for _, req := range merged.packages() {
		if req.Roles.Contains(RoleDist) {
			req.Roles = mapset.NewThreadUnsafeSet(RoleDist)
		}
	}
	return merged.packages(), nil
}

// merger deduplicates requirement packages by identity, unioning role tags
// onto the first occurrence and preserving first-seen order.
type merger struct {
	byIdentity map[pydep.Identity]*pydep.Package
	order      []pydep.Identity
}

func newMerger() *merger {
	return &merger{byIdentity: make(map[pydep.Identity]*pydep.Package)}
}

func (m *merger) add(pkg *pydep.Package, role string) {
	existing, ok := m.byIdentity[pkg.Identity]
	if !ok {
		m.byIdentity[pkg.Identity] = pkg
		m.order = append(m.order, pkg.Identity)
		existing = pkg
	}
	existing.Roles.Add(role)
}

func (m *merger) packages() []*pydep.Package {
	out := make([]*pydep.Package, len(m.order))
	for i, id := range m.order {
		out[i] = m.byIdentity[id]
	}
	return out
}
