package errors

import (
	"strings"
	"unicode"
)

// ValidatePackageName validates a package name for safety and correctness.
// It rejects names that could be used for path traversal or injection attacks
// when the name is interpolated into registry URLs or cache paths.
//
// The validation rules are intentionally conservative:
//   - No empty names
//   - No control characters
//   - No path traversal sequences (.., //, etc.)
//   - No null bytes
//   - Maximum length of 256 characters
//
// Requirement-specifier syntax is validated separately by the resolver.
func ValidatePackageName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidPackage, "package name cannot be empty")
	}

	if len(name) > 256 {
		return New(ErrCodeInvalidPackage, "package name too long (max 256 characters)")
	}

	for _, r := range name {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidPackage, "package name contains invalid control characters")
		}
	}

	dangerousPatterns := []string{
		"..",   // Parent directory
		"//",   // Double slash
		"\x00", // Null byte
		"\\",   // Backslash (Windows path)
		"/",    // PyPI names never contain slashes
	}

	for _, pattern := range dangerousPatterns {
		if strings.Contains(name, pattern) {
			return New(ErrCodeInvalidPackage, "package name contains invalid characters: %q", pattern)
		}
	}

	return nil
}

// ValidateTargetVersion validates a target Python version string such as "3.9".
// Only MAJOR or MAJOR.MINOR forms are accepted; anything else is rejected.
func ValidateTargetVersion(version string) error {
	if version == "" {
		return New(ErrCodeInvalidInput, "target version cannot be empty")
	}

	parts := strings.Split(version, ".")
	if len(parts) > 2 {
		return New(ErrCodeInvalidInput, "target version must be MAJOR or MAJOR.MINOR: %q", version)
	}
	for _, p := range parts {
		if p == "" {
			return New(ErrCodeInvalidInput, "malformed target version: %q", version)
		}
		for _, r := range p {
			if r < '0' || r > '9' {
				return New(ErrCodeInvalidInput, "target version must be numeric: %q", version)
			}
		}
	}
	return nil
}
