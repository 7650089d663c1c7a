package pydep

import (
	"regexp"
	"strings"

	"github.com/lwaddell/depscope/pkg/errors"
)

// Requirement is a parsed requirement specifier: a package name, optional
// extras, an optional version constraint, and an optional conditional
// marker.
type Requirement struct {
	Name       string   // display name as written
	Identity   Identity // normalized form of Name
	Extras     []string // requested extras, e.g. ["security"]
	Constraint string   // raw version constraint, e.g. ">=2.0,<3"
	Marker     Marker   // nil for unconditional requirements
}

var (
	reqNameRE   = regexp.MustCompile(`^([A-Za-z0-9](?:[A-Za-z0-9._-]*[A-Za-z0-9])?)`)
	reqExtrasRE = regexp.MustCompile(`^\[([^\]]*)\]`)
)

// ParseRequirement parses a requirement specifier such as
//
//	requests[security]>=2.0,<3 ; python_version >= "3.6"
//
// Returns an UNRESOLVABLE_REQUIREMENT error when the specifier has no valid
// package name or its marker cannot be parsed.
func ParseRequirement(spec string) (*Requirement, error) {
	body := spec
	var markerText string
	if i := strings.IndexByte(spec, ';'); i >= 0 {
		body, markerText = spec[:i], strings.TrimSpace(spec[i+1:])
	}
	body = strings.TrimSpace(body)

	m := reqNameRE.FindStringSubmatch(body)
	if m == nil {
		return nil, errors.New(errors.ErrCodeUnresolvableRequirement, "no package name in specifier %q", spec)
	}
	req := &Requirement{
		Name:     m[1],
		Identity: Normalize(m[1]),
	}
	rest := strings.TrimSpace(body[len(m[1]):])

	if em := reqExtrasRE.FindStringSubmatch(rest); em != nil {
		for _, extra := range strings.Split(em[1], ",") {
			if extra = strings.TrimSpace(extra); extra != "" {
				req.Extras = append(req.Extras, extra)
			}
		}
		rest = strings.TrimSpace(rest[len(em[0]):])
	}

	// Constraints are sometimes parenthesized: "requests (>=2.0)".
	rest = strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(rest, "("), ")"))
	req.Constraint = rest

	if markerText != "" {
		marker, err := ParseMarker(markerText)
		if err != nil {
			return nil, err
		}
		req.Marker = marker
	}
	return req, nil
}

// Applies reports whether the requirement is active in the given
// environment: unconditionally when it has no marker, otherwise by
// evaluating the marker.
func (r *Requirement) Applies(env Environment) (bool, error) {
	if r.Marker == nil {
		return true, nil
	}
	return r.Marker.Evaluate(env)
}
