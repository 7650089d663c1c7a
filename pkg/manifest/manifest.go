// Package manifest reads newline-delimited Python requirement files.
//
// Each file supplies a role tag derived from its name: requirements/dev.in
// contributes requirements with role "dev". This is how an application's
// first-party requirement set is tagged with why each dependency exists.
package manifest

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/lwaddell/depscope/pkg/errors"
)

// Suffix is stripped from a requirement file's basename to produce its role.
const Suffix = ".in"

// File is one requirement file in a project.
type File struct {
	Path string
	Role string // basename minus Suffix, e.g. "requirements", "tests"
}

// NewFile creates a File whose role is derived from the filename.
func NewFile(path string) File {
	return File{
		Path: path,
		Role: strings.TrimSuffix(filepath.Base(path), Suffix),
	}
}

// Discover returns the requirement files in dir, sorted by name. A missing
// directory yields an empty slice, not an error.
func Discover(dir string) ([]File, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*"+Suffix))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidManifest, err, "globbing %s", dir)
	}

	files := make([]File, 0, len(matches))
	for _, m := range matches {
		files = append(files, NewFile(m))
	}
	return files, nil
}

// Specs reads the file's requirement specifiers. Blank lines, comment lines
// and include directives ("-r other.in") are skipped; inline trailing
// comments are stripped.
func (f File) Specs() ([]string, error) {
	handle, err := os.Open(f.Path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidManifest, err, "opening %s", f.Path)
	}
	defer handle.Close()

	var specs []string
	scanner := bufio.NewScanner(handle)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "-") {
			continue
		}
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = strings.TrimSpace(line[:i])
		}
		if line != "" {
			specs = append(specs, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidManifest, err, "reading %s", f.Path)
	}
	return specs, nil
}
