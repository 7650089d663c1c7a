package pydep

import (
	"context"

	mapset "github.com/deckarep/golang-set/v2"
	"golang.org/x/sync/errgroup"
)

// Distribution describes one distribution file of a release.
type Distribution struct {
	Filename  string `json:"filename"`
	PythonTag string `json:"python_version"` // e.g. "cp39", "py3", "source"
	URL       string `json:"url"`
}

// Metadata is the registry data the resolver needs for one package.
type Metadata struct {
	Name         string                    // canonical name per the registry
	Version      string                    // latest version string
	Classifiers  []string                  // trove classifiers
	RequiresDist []string                  // declared requirement specifiers
	Releases     map[string][]Distribution // version string → distribution files
}

// Fetcher retrieves package metadata from a registry. Implementations must
// be safe for concurrent use: sibling requirements are resolved in parallel.
type Fetcher interface {
	Fetch(ctx context.Context, name string) (*Metadata, error)
}

// Resolver turns requirement specifiers into resolved [Package] nodes and
// builds dependency trees from them. The curated override table and the
// target environment are fixed at construction; no hidden globals.
type Resolver struct {
	fetcher Fetcher
	env     Environment
	known   KnownVersions
}

// NewResolver creates a Resolver. A nil known table disables curated
// overrides.
func NewResolver(fetcher Fetcher, env Environment, known KnownVersions) *Resolver {
	if known == nil {
		known = KnownVersions{}
	}
	return &Resolver{fetcher: fetcher, env: env, known: known}
}

// Resolve parses a requirement specifier and fetches its registry metadata,
// producing a resolved package node.
func (r *Resolver) Resolve(ctx context.Context, spec string) (*Package, error) {
	req, err := ParseRequirement(spec)
	if err != nil {
		return nil, err
	}
	return r.resolve(ctx, req)
}

func (r *Resolver) resolve(ctx context.Context, req *Requirement) (*Package, error) {
	meta, err := r.fetcher.Fetch(ctx, req.Name)
	if err != nil {
		return nil, err
	}
	return &Package{
		Name:     req.Name,
		Identity: req.Identity,
		Roles:    mapset.NewThreadUnsafeSet[string](),
		Req:      *req,
		meta:     meta,
		res:      r,
	}, nil
}

// Package is one resolved package node: its identity, the roles of the
// edges leading to it, and lazily computed registry-derived facts. Nodes
// are owned by the tree that built them and are not shared across trees.
type Package struct {
	Name     string             // display name as required
	Identity Identity           // normalized identity
	Roles    mapset.Set[string] // why this edge exists: "runtime", "tests", ...
	Req      Requirement        // the specifier this node was resolved from

	meta *Metadata
	res  *Resolver

	reqs       []*Package // memoized Requirements()
	reqsDone   bool
	latest     []Distribution // memoized LatestRelease()
	latestDone bool
	supported  *VersionSet
	declared   *VersionSet
}

// Requirements returns the package's declared sub-requirements filtered
// against the default environment (no extra). The result is computed once
// and cached; trees traverse single-threaded, so no locking is needed.
func (p *Package) Requirements(ctx context.Context) ([]*Package, error) {
	if p.reqsDone {
		return p.reqs, nil
	}
	reqs, err := p.GetRequirements(ctx, "")
	if err != nil {
		return nil, err
	}
	p.reqs, p.reqsDone = reqs, true
	return reqs, nil
}

// GetRequirements returns the sub-requirements active for the given
// dependency group: "" for unconditional requirements, or a named extra
// such as "tests" for that group specifically. A marker referencing a
// different, unset extra excludes its requirement.
//
// Sibling lookups have no data dependency, so they are fetched in parallel;
// any failure aborts the whole call.
func (p *Package) GetRequirements(ctx context.Context, extra string) ([]*Package, error) {
	env := p.res.env.WithExtra(extra)

	var active []*Requirement
	for _, spec := range p.meta.RequiresDist {
		req, err := ParseRequirement(spec)
		if err != nil {
			return nil, err
		}
		ok, err := req.Applies(env)
		if err != nil {
			return nil, err
		}
		if ok {
			active = append(active, req)
		}
	}

	pkgs := make([]*Package, len(active))
	g, gctx := errgroup.WithContext(ctx)
	for i, req := range active {
		g.Go(func() error {
			pkg, err := p.res.resolve(gctx, req)
			if err != nil {
				return err
			}
			pkgs[i] = pkg
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return pkgs, nil
}

// LatestRelease returns the distribution files of the most recent release.
// Release keys from the registry are not trusted to be ordered, so every
// key is parsed and the maximum taken. Returns nil when the package has no
// releases.
func (p *Package) LatestRelease() []Distribution {
	if p.latestDone {
		return p.latest
	}
	p.latestDone = true

	var bestKey string
	set := NewVersionSet()
	for key := range p.meta.Releases {
		set.Add(key)
	}
	bestKey = set.Max()
	if bestKey != "" {
		p.latest = p.meta.Releases[bestKey]
	}
	return p.latest
}

// SupportedVersions returns every Python version the package is believed to
// support, ascending. The three sources (declared classifiers, compiled
// wheel tags, curated overrides) are unioned: a version counts if any
// source claims it.
func (p *Package) SupportedVersions() []string {
	return p.supportedSet().Sorted()
}

// UndeclaredVersions returns the supported versions that the declared
// classifiers do not advertise, i.e. inferred-only support.
func (p *Package) UndeclaredVersions() []string {
	return p.supportedSet().Difference(p.declaredSet()).Sorted()
}

func (p *Package) supportedSet() *VersionSet {
	if p.supported != nil {
		return p.supported
	}
	set := NewVersionSet()
	set.AddAll(p.declaredSet())
	set.AddAll(impliedVersions(p.LatestRelease()))
	set.AddAll(p.res.known.versionsFor(p.Identity))
	p.supported = set
	return set
}

func (p *Package) declaredSet() *VersionSet {
	if p.declared == nil {
		p.declared = declaredVersions(p.meta.Classifiers)
	}
	return p.declared
}
