package pydep

import "strings"

// Identity is the normalized canonical form of a package name. Two
// requirement specifiers refer to the same logical package exactly when
// their identities are equal; all deduplication and map keying uses
// Identity, never the display name.
type Identity string

// Normalize converts a package name to its canonical identity: trimmed,
// lowercased, with hyphens folded to underscores. Normalization is
// idempotent.
func Normalize(name string) Identity {
	return Identity(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "-", "_"))
}

// String returns the identity as a plain string.
func (id Identity) String() string { return string(id) }
