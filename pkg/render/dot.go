// Package render turns pruned dependency graphs into Graphviz DOT text and
// rendered images for human inspection.
package render

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/lwaddell/depscope/pkg/pydep"
)

// Options configures DOT generation.
type Options struct {
	// TargetVersion anchors the color ladder: packages supporting it render
	// green, with warmer colors the further behind they are.
	TargetVersion string
	// FirstParty packages get their own color regardless of version support.
	FirstParty mapset.Set[pydep.Identity]
}

func (o Options) withDefaults() Options {
	if o.TargetVersion == "" {
		o.TargetVersion = pydep.DefaultTargetVersion
	}
	if o.FirstParty == nil {
		o.FirstParty = mapset.NewThreadUnsafeSet[pydep.Identity]()
	}
	return o
}

const (
	colorFirstParty  = "darkslategray1"
	colorUnsupported = "red"
)

// ladderColors pair with the target version and its three predecessors.
var ladderColors = []string{"green", "greenyellow", "yellow", "orange"}

// ToDOT converts a serialized graph to Graphviz DOT format. Every edge in
// the input must resolve to a present package or the root; pruning
// guarantees this for its output.
func ToDOT(g *pydep.Graph, opts Options) string {
	opts = opts.withDefaults()
	ladder := versionLadder(opts.TargetVersion)

	var buf bytes.Buffer
	buf.WriteString("digraph dependencies {\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white];\n")
	buf.WriteString("\n")

	fmt.Fprintf(&buf, "  %q [shape=ellipse, fillcolor=lightblue];\n", g.Root.Name)

	for _, id := range g.Identities() {
		data := g.Packages[id]
		fmt.Fprintf(&buf, "  %q [label=%q, fillcolor=%q];\n",
			string(id), nodeLabel(data), colorFor(data, opts, ladder))
	}

	buf.WriteString("\n")
	for _, id := range sortedRootDeps(g) {
		roles := g.Root.Dependencies[id]
		if len(roles) > 0 {
			fmt.Fprintf(&buf, "  %q -> %q [label=%q];\n", g.Root.Name, string(id), strings.Join(roles, ","))
		} else {
			fmt.Fprintf(&buf, "  %q -> %q;\n", g.Root.Name, string(id))
		}
	}
	for _, id := range g.Identities() {
		for _, dep := range g.Packages[id].Dependencies {
			fmt.Fprintf(&buf, "  %q -> %q;\n", string(id), string(dep))
		}
	}

	buf.WriteString("}\n")
	return buf.String()
}

// nodeLabel shows the display name and the highest supported version, with
// a marker when that support is inferred rather than declared.
func nodeLabel(data *pydep.PackageData) string {
	maxVersion := "unknown"
	if n := len(data.PythonVersions); n > 0 {
		maxVersion = data.PythonVersions[n-1]
		for _, u := range data.UndeclaredVersions {
			if u == maxVersion {
				maxVersion += "?"
				break
			}
		}
	}
	return fmt.Sprintf("%s\n%s", data.Name, maxVersion)
}

func colorFor(data *pydep.PackageData, opts Options, ladder []string) string {
	if opts.FirstParty.Contains(data.Identity) {
		return colorFirstParty
	}
	for i, version := range ladder {
		for _, supported := range data.PythonVersions {
			if supported == version {
				return ladderColors[i]
			}
		}
	}
	return colorUnsupported
}

// versionLadder returns the target version and its predecessors, one per
// ladder color: "3.9" yields ["3.9", "3.8", "3.7", "3.6"].
func versionLadder(target string) []string {
	parts := strings.SplitN(target, ".", 2)
	if len(parts) != 2 {
		return []string{target}
	}
	major := parts[0]
	minor, err := strconv.Atoi(parts[1])
	if err != nil {
		return []string{target}
	}

	ladder := make([]string, 0, len(ladderColors))
	for i := 0; i < len(ladderColors) && minor-i >= 0; i++ {
		ladder = append(ladder, fmt.Sprintf("%s.%d", major, minor-i))
	}
	return ladder
}

func sortedRootDeps(g *pydep.Graph) []pydep.Identity {
	out := make([]pydep.Identity, 0, len(g.Root.Dependencies))
	for id := range g.Root.Dependencies {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
