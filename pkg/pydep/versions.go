package pydep

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/lwaddell/depscope/pkg/errors"
)

// ParseVersion parses a PyPI-style version string into a semantic version.
// PyPI versions are not strict semver, so missing components are padded
// ("3.9" parses as 3.9.0) and pre-release suffixes in PEP 440 spelling
// (1.0rc1, 2.0b2, 1.0.dev3) are mapped onto semver pre-release tags so that
// ordering puts them before the final release.
func ParseVersion(s string) (*semver.Version, error) {
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "v"))

	// Epoch markers ("1!2.0") only matter for ordering between epochs,
	// which this tool never encounters.
	if i := strings.IndexByte(s, '!'); i >= 0 {
		s = s[i+1:]
	}

	if v, err := semver.NewVersion(s); err == nil {
		return v, nil
	}

	m := versionRE.FindStringSubmatch(s)
	if m == nil {
		return nil, errors.New(errors.ErrCodeUnresolvableRequirement, "unparseable version %q", s)
	}

	major, minor, patch := m[1], m[2], m[3]
	if minor == "" {
		minor = "0"
	}
	if patch == "" {
		patch = "0"
	}

	core := fmt.Sprintf("%s.%s.%s", major, minor, patch)
	if rest := cleanPreRelease(m[4]); rest != "" {
		core += "-" + rest
	}

	v, err := semver.NewVersion(core)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeUnresolvableRequirement, err, "unparseable version %q", s)
	}
	return v, nil
}

var (
	versionRE    = regexp.MustCompile(`^(\d+)(?:\.(\d+))?(?:\.(\d+))?(.*)$`)
	preReleaseRE = regexp.MustCompile(`[^0-9A-Za-z.-]`)
)

func cleanPreRelease(rest string) string {
	rest = strings.TrimLeft(rest, ".-_")
	rest = preReleaseRE.ReplaceAllString(rest, ".")
	return strings.Trim(rest, ".")
}

// VersionSet is an ordered set of Python versions. Each member keeps its
// display form ("3.9") alongside the parsed value used for ordering, so
// serialization round-trips the strings the registry and configuration use.
type VersionSet struct {
	members map[string]*semver.Version
}

// NewVersionSet creates an empty version set.
func NewVersionSet() *VersionSet {
	return &VersionSet{members: make(map[string]*semver.Version)}
}

// Add inserts a version by display string. Unparseable strings are ignored;
// absence of version information is a representable state, not a failure.
func (s *VersionSet) Add(display string) {
	display = strings.TrimSpace(display)
	v, err := ParseVersion(display)
	if err != nil {
		return
	}
	s.members[display] = v
}

// AddAll inserts every version from other.
func (s *VersionSet) AddAll(other *VersionSet) {
	for d, v := range other.members {
		s.members[d] = v
	}
}

// Contains reports whether the set holds the given display version.
func (s *VersionSet) Contains(display string) bool {
	_, ok := s.members[display]
	return ok
}

// Len returns the number of versions in the set.
func (s *VersionSet) Len() int { return len(s.members) }

// Sorted returns the display strings in ascending version order.
func (s *VersionSet) Sorted() []string {
	out := make([]string, 0, len(s.members))
	for d := range s.members {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := s.members[out[i]], s.members[out[j]]
		if c := a.Compare(b); c != 0 {
			return c < 0
		}
		return out[i] < out[j]
	})
	return out
}

// Max returns the highest version's display string, or "" for an empty set.
func (s *VersionSet) Max() string {
	sorted := s.Sorted()
	if len(sorted) == 0 {
		return ""
	}
	return sorted[len(sorted)-1]
}

// Difference returns the members of s not present in other.
func (s *VersionSet) Difference(other *VersionSet) *VersionSet {
	out := NewVersionSet()
	for d, v := range s.members {
		if !other.Contains(d) {
			out.members[d] = v
		}
	}
	return out
}

const (
	classifierLanguage = "Programming Language"
	classifierRuntime  = "Python"
)

// declaredVersions extracts versions advertised through trove classifiers of
// the form "Programming Language :: Python :: 3.9". Only entries whose final
// part parses as a numbered version count; free-text classifiers such as
// "Programming Language :: Python :: Implementation" are skipped.
func declaredVersions(classifiers []string) *VersionSet {
	set := NewVersionSet()
	for _, classifier := range classifiers {
		parts := strings.Split(classifier, " :: ")
		if len(parts) != 3 || parts[0] != classifierLanguage || parts[1] != classifierRuntime {
			continue
		}
		set.Add(parts[2])
	}
	return set
}

// cpTagRE matches compiled-runtime tags like "cp39" on distribution files.
var cpTagRE = regexp.MustCompile(`^cp(\d)(\d)$`)

// impliedVersions infers support from the compiled wheels of a release:
// a file tagged cp39 implies the package supports Python 3.9 whether or not
// the classifiers say so.
func impliedVersions(dists []Distribution) *VersionSet {
	set := NewVersionSet()
	for _, dist := range dists {
		if m := cpTagRE.FindStringSubmatch(dist.PythonTag); m != nil {
			set.Add(m[1] + "." + m[2])
		}
	}
	return set
}

// KnownVersions is the hand-curated override table: normalized identity to
// the versions the package is known to support despite what its metadata
// says.
type KnownVersions map[Identity][]string

// versionsFor yields the curated versions for a package, or an empty set.
func (k KnownVersions) versionsFor(id Identity) *VersionSet {
	set := NewVersionSet()
	for _, display := range k[id] {
		set.Add(display)
	}
	return set
}
