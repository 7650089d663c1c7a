package pydep

import (
	mapset "github.com/deckarep/golang-set/v2"
)

// DefaultTargetVersion is the Python version the drop-satisfied rules
// compare against when none is configured.
const DefaultTargetVersion = "3.9"

// PruneOptions configures which reduction rules run and with what inputs.
type PruneOptions struct {
	// Remove lists identities deleted from every dependency list and from
	// the root, wherever they appear.
	Remove []Identity

	// FirstParty flags packages whose own subtree is covered by separate
	// analysis; when CollapseFirstParty is set their outgoing edges are
	// cleared so they render as leaves.
	FirstParty         mapset.Set[Identity]
	CollapseFirstParty bool

	// DropSatisfiedDirect removes root-level dependencies whose supported
	// versions already include TargetVersion.
	DropSatisfiedDirect bool

	// DropSatisfiedTransitive clears the outgoing edges of any non-root
	// package whose supported versions include TargetVersion.
	DropSatisfiedTransitive bool

	// TargetVersion is the version the drop-satisfied rules check for.
	// Defaults to DefaultTargetVersion.
	TargetVersion string
}

func (o PruneOptions) withDefaults() PruneOptions {
	if o.TargetVersion == "" {
		o.TargetVersion = DefaultTargetVersion
	}
	if o.FirstParty == nil {
		o.FirstParty = mapset.NewThreadUnsafeSet[Identity]()
	}
	return o
}

// Prune applies the configured reduction rules in declared order, then
// removes unreferenced packages to a fixed point. The input graph is left
// untouched; the reduced graph is returned as a new value.
//
// The fixpoint matters: deleting an unreferenced package also deletes the
// edges it was the source of, which can newly orphan packages that were
// only reachable through it. A single removal pass is not sufficient.
func Prune(g *Graph, opts PruneOptions) *Graph {
	opts = opts.withDefaults()
	out := g.Clone()

	if len(opts.Remove) > 0 {
		pruneSpecified(out, opts.Remove)
	}
	if opts.CollapseFirstParty {
		collapseFirstParty(out, opts.FirstParty)
	}
	if opts.DropSatisfiedDirect {
		dropSatisfiedDirect(out, opts.TargetVersion)
	}
	if opts.DropSatisfiedTransitive {
		dropSatisfiedTransitive(out, opts.TargetVersion)
	}

	for removeUnreferenced(out) > 0 {
	}
	return out
}

// pruneSpecified deletes the named identities from every dependency list
// and from the root's dependencies.
func pruneSpecified(g *Graph, remove []Identity) {
	doomed := mapset.NewThreadUnsafeSet(remove...)

	for _, data := range g.Packages {
		kept := data.Dependencies[:0]
		for _, dep := range data.Dependencies {
			if !doomed.Contains(dep) {
				kept = append(kept, dep)
			}
		}
		data.Dependencies = kept
	}
	for _, id := range remove {
		delete(g.Root.Dependencies, id)
	}
}

// collapseFirstParty clears the outgoing edges of first-party packages.
func collapseFirstParty(g *Graph, firstParty mapset.Set[Identity]) {
	for id, data := range g.Packages {
		if firstParty.Contains(id) {
			data.Dependencies = nil
		}
	}
}

// dropSatisfiedDirect removes root dependencies already supporting the
// target version; nothing needs to change for them, so they are noise in a
// compatibility audit.
func dropSatisfiedDirect(g *Graph, target string) {
	for id := range g.Root.Dependencies {
		data, ok := g.Packages[id]
		if ok && supportsVersion(data, target) {
			delete(g.Root.Dependencies, id)
		}
	}
}

// dropSatisfiedTransitive clears the edges of any package already
// supporting the target version; once a package is known-compatible its
// own requirements are no longer interesting.
func dropSatisfiedTransitive(g *Graph, target string) {
	for _, data := range g.Packages {
		if supportsVersion(data, target) {
			data.Dependencies = nil
		}
	}
}

// removeUnreferenced deletes every package not reachable from the root's
// dependencies and reports how many it deleted. Callers loop it to a fixed
// point.
func removeUnreferenced(g *Graph) int {
	reachable := mapset.NewThreadUnsafeSet[Identity]()

	var visit func(id Identity)
	visit = func(id Identity) {
		if reachable.Contains(id) {
			return
		}
		reachable.Add(id)
		if data, ok := g.Packages[id]; ok {
			for _, dep := range data.Dependencies {
				visit(dep)
			}
		}
	}
	for id := range g.Root.Dependencies {
		visit(id)
	}

	removed := 0
	for id := range g.Packages {
		if !reachable.Contains(id) {
			delete(g.Packages, id)
			removed++
		}
	}
	return removed
}

func supportsVersion(data *PackageData, target string) bool {
	for _, v := range data.PythonVersions {
		if v == target {
			return true
		}
	}
	return false
}
