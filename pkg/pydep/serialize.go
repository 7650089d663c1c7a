package pydep

import (
	"maps"
	"slices"
	"sort"
)

// Graph is the flattened interchange form of a dependency tree: a root plus
// a flat map of every referenced package. Pruning operates on this form and
// guarantees that, in its output, every identity in any dependency list
// resolves to a key in Packages.
type Graph struct {
	Root     Root                      `json:"root"`
	Packages map[Identity]*PackageData `json:"packages"`
}

// Root describes the tree's root and its immediate dependencies. Only root
// edges retain role annotations; deeper edges drop them since downstream
// pruning needs role information only at this level.
type Root struct {
	Name         string                `json:"name"`
	GitURL       string                `json:"git_url,omitempty"`
	Dependencies map[Identity][]string `json:"dependencies"` // identity → sorted roles
}

// PackageData is the serialized form of one package node.
type PackageData struct {
	Name               string     `json:"name"`
	Identity           Identity   `json:"normalized_name"`
	PythonVersions     []string   `json:"python_versions"`
	UndeclaredVersions []string   `json:"undeclared_versions"`
	Dependencies       []Identity `json:"dependencies"`
}

// Serialize flattens the tree. Root dependencies carry the accumulated role
// tags of each immediate child; Packages holds one entry per node yielded
// by [Tree.UniqueChildren], each listing its own children's identities in
// order.
func (t *Tree) Serialize() *Graph {
	g := &Graph{
		Root: Root{
			Name:         t.RootName,
			GitURL:       t.GitURL,
			Dependencies: make(map[Identity][]string, len(t.Children)),
		},
		Packages: make(map[Identity]*PackageData),
	}

	for _, child := range t.Children {
		roles := child.Package.Roles.ToSlice()
		sort.Strings(roles)
		g.Root.Dependencies[child.Package.Identity] = roles
	}

	for node := range t.UniqueChildren() {
		data := &PackageData{
			Name:               node.Package.Name,
			Identity:           node.Package.Identity,
			PythonVersions:     node.Package.SupportedVersions(),
			UndeclaredVersions: node.Package.UndeclaredVersions(),
			Dependencies:       make([]Identity, 0, len(node.Children)),
		}
		for _, sub := range node.Children {
			data.Dependencies = append(data.Dependencies, sub.Package.Identity)
		}
		g.Packages[node.Package.Identity] = data
	}

	return g
}

// Clone returns a deep copy of the graph. Pruning rules transform copies so
// the input graph is never mutated.
func (g *Graph) Clone() *Graph {
	out := &Graph{
		Root: Root{
			Name:         g.Root.Name,
			GitURL:       g.Root.GitURL,
			Dependencies: make(map[Identity][]string, len(g.Root.Dependencies)),
		},
		Packages: make(map[Identity]*PackageData, len(g.Packages)),
	}
	for id, roles := range g.Root.Dependencies {
		out.Root.Dependencies[id] = slices.Clone(roles)
	}
	for id, data := range g.Packages {
		copied := *data
		copied.PythonVersions = slices.Clone(data.PythonVersions)
		copied.UndeclaredVersions = slices.Clone(data.UndeclaredVersions)
		copied.Dependencies = slices.Clone(data.Dependencies)
		out.Packages[id] = &copied
	}
	return out
}

// Identities returns the serialized package identities in sorted order.
func (g *Graph) Identities() []Identity {
	return slices.Sorted(maps.Keys(g.Packages))
}
