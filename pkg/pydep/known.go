package pydep

import (
	_ "embed"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/lwaddell/depscope/pkg/errors"
)

//go:embed known_versions.toml
var defaultKnownVersions []byte

type knownConfig struct {
	Packages map[string]knownPackage `toml:"packages"`
}

type knownPackage struct {
	PythonVersions []string `toml:"python_versions"`
}

// DefaultKnownVersions returns the curated override table shipped with the
// binary. Entries cover packages whose registry metadata understates the
// versions they actually work on.
func DefaultKnownVersions() KnownVersions {
	known, err := parseKnownVersions(defaultKnownVersions)
	if err != nil {
		// The embedded table is validated by tests; a parse failure here is
		// a build defect, not a runtime condition.
		panic(err)
	}
	return known
}

// LoadKnownVersions reads a curated override table from a TOML file:
//
//	[packages.zope_interface]
//	python_versions = ["2.7", "3.6", "3.7"]
//
// Table keys are normalized before use, so hyphenated spellings are fine.
func LoadKnownVersions(path string) (KnownVersions, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "reading known versions %s", path)
	}
	return parseKnownVersions(data)
}

func parseKnownVersions(data []byte) (KnownVersions, error) {
	var cfg knownConfig
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "parsing known versions")
	}

	known := make(KnownVersions, len(cfg.Packages))
	for name, pkg := range cfg.Packages {
		known[Normalize(name)] = pkg.PythonVersions
	}
	return known, nil
}
