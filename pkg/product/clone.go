package product

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/lwaddell/depscope/pkg/errors"
)

// Clone checks the product out into dir. An existing checkout is reused
// unless force is set; analysis does not need fresh history, so a shallow
// clone is enough.
func (p *Product) Clone(ctx context.Context, dir string, force bool) error {
	if p.GitURL == "" {
		return errors.New(errors.ErrCodeInvalidConfig, "product %q has no git_url", p.Code)
	}

	if _, err := os.Stat(dir); err == nil {
		if !force {
			return nil
		}
		if err := os.RemoveAll(dir); err != nil {
			return errors.Wrap(errors.ErrCodeInternal, err, "removing stale checkout %s", dir)
		}
	}

	if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "creating checkout parent for %s", dir)
	}

	cmd := exec.CommandContext(ctx, "git", "clone", "--depth", "1", p.GitURL, dir)
	if out, err := cmd.CombinedOutput(); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "git clone %s: %s", p.GitURL, out)
	}
	return nil
}
