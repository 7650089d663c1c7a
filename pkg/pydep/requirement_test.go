package pydep

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseRequirement(t *testing.T) {
	tests := []struct {
		spec       string
		name       string
		identity   Identity
		extras     []string
		constraint string
		hasMarker  bool
	}{
		{"requests", "requests", "requests", nil, "", false},
		{"requests>=2.0,<3", "requests", "requests", nil, ">=2.0,<3", false},
		{"requests (>=2.0)", "requests", "requests", nil, ">=2.0", false},
		{"requests[security]>=2.0", "requests", "requests", []string{"security"}, ">=2.0", false},
		{"requests[security, socks]", "requests", "requests", []string{"security", "socks"}, "", false},
		{`importlib-metadata ; python_version < "3.8"`, "importlib-metadata", "importlib_metadata", nil, "", true},
		{`pytest>=6 ; extra == "tests"`, "pytest", "pytest", nil, ">=6", true},
		{"Zope.Interface==5.4.0", "Zope.Interface", "zope.interface", nil, "==5.4.0", false},
	}

	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			req, err := ParseRequirement(tt.spec)
			if err != nil {
				t.Fatalf("ParseRequirement(%q) failed: %v", tt.spec, err)
			}
			if req.Name != tt.name {
				t.Errorf("Name = %q, want %q", req.Name, tt.name)
			}
			if req.Identity != tt.identity {
				t.Errorf("Identity = %q, want %q", req.Identity, tt.identity)
			}
			if diff := cmp.Diff(tt.extras, req.Extras); diff != "" {
				t.Errorf("Extras mismatch (-want +got):\n%s", diff)
			}
			if req.Constraint != tt.constraint {
				t.Errorf("Constraint = %q, want %q", req.Constraint, tt.constraint)
			}
			if (req.Marker != nil) != tt.hasMarker {
				t.Errorf("Marker presence = %v, want %v", req.Marker != nil, tt.hasMarker)
			}
		})
	}
}

func TestParseRequirement_Errors(t *testing.T) {
	for _, spec := range []string{"", "   ", ">=2.0", `requests ; bogus ==`} {
		if _, err := ParseRequirement(spec); err == nil {
			t.Errorf("ParseRequirement(%q) should fail", spec)
		}
	}
}
