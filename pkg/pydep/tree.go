package pydep

import (
	"context"
	"iter"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/lwaddell/depscope/pkg/errors"
)

// Node is one position in a dependency tree. The same logical package may
// appear at several positions; deduplication happens at serialization time
// via [Tree.UniqueChildren], not during construction.
type Node struct {
	Package  *Package
	Children []*Node
}

// Tree is a fully expanded dependency tree for one root. Package-origin
// trees carry the root's own resolved package in RootPackage; product-origin
// trees carry only the product's name and repository URL.
type Tree struct {
	RootName    string
	RootPackage *Package // nil for product roots that are not on the registry
	GitURL      string
	Children    []*Node
}

// BuildPackage resolves a requirement specifier and recursively expands its
// registry-declared requirements into a tree. A dependency cycle fails the
// build with a CYCLIC_DEPENDENCY error.
func (r *Resolver) BuildPackage(ctx context.Context, spec string) (*Tree, error) {
	pkg, err := r.Resolve(ctx, spec)
	if err != nil {
		return nil, err
	}

	node, err := r.expand(ctx, pkg, mapset.NewThreadUnsafeSet[Identity]())
	if err != nil {
		return nil, err
	}
	return &Tree{
		RootName:    pkg.Name,
		RootPackage: pkg,
		Children:    node.Children,
	}, nil
}

// BuildProduct expands a curated requirement set, such as the packages named
// by an application's own requirement files, into a tree. The requirement
// packages arrive already role-tagged; sibling duplicates should have been
// merged by the caller.
func (r *Resolver) BuildProduct(ctx context.Context, name, gitURL string, reqs []*Package) (*Tree, error) {
	tree := &Tree{RootName: name, GitURL: gitURL}

	stack := mapset.NewThreadUnsafeSet[Identity]()
	for _, pkg := range reqs {
		node, err := r.expand(ctx, pkg, stack)
		if err != nil {
			return nil, err
		}
		tree.Children = append(tree.Children, node)
	}
	return tree, nil
}

// expand recursively builds the subtree rooted at pkg. The stack holds the
// identities currently being expanded on this recursion path; revisiting
// one means the declared graph has a cycle, which would otherwise recurse
// forever.
func (r *Resolver) expand(ctx context.Context, pkg *Package, stack mapset.Set[Identity]) (*Node, error) {
	if stack.Contains(pkg.Identity) {
		return nil, errors.New(errors.ErrCodeCyclicDependency, "dependency cycle through %s", pkg.Identity)
	}
	stack.Add(pkg.Identity)
	defer stack.Remove(pkg.Identity)

	node := &Node{Package: pkg}

	reqs, err := pkg.Requirements(ctx)
	if err != nil {
		return nil, err
	}
	for _, sub := range reqs {
		child, err := r.expand(ctx, sub, stack)
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, child)
	}
	return node, nil
}

// UniqueChildren yields every distinct descendant package exactly once, in
// depth-first order. "Seen" is tracked by identity across the whole
// traversal: the first occurrence wins and later duplicates are suppressed
// along with their subtrees. The sequence is recomputed from the current
// tree on each iteration, so it is restartable.
func (t *Tree) UniqueChildren() iter.Seq[*Node] {
	return func(yield func(*Node) bool) {
		seen := mapset.NewThreadUnsafeSet[Identity]()
		var walk func(children []*Node) bool
		walk = func(children []*Node) bool {
			for _, child := range children {
				if seen.Contains(child.Package.Identity) {
					continue
				}
				seen.Add(child.Package.Identity)
				if !yield(child) {
					return false
				}
				if !walk(child.Children) {
					return false
				}
			}
			return true
		}
		walk(t.Children)
	}
}
