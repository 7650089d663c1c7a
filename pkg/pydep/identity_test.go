package pydep

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		input    string
		expected Identity
	}{
		{"Foo-Bar", "foo_bar"},
		{"foo_bar", "foo_bar"},
		{"  foo-bar ", "foo_bar"},
		{"UPPERCASE", "uppercase"},
		{"zope.interface", "zope.interface"},
		{"a-b-c_d", "a_b_c_d"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := Normalize(tt.input); got != tt.expected {
				t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	for _, input := range []string{"Foo-Bar", "  spaced ", "already_normal"} {
		once := Normalize(input)
		twice := Normalize(string(once))
		if once != twice {
			t.Errorf("Normalize not idempotent for %q: %q != %q", input, once, twice)
		}
	}
}
