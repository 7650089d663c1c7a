package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lwaddell/depscope/pkg/errors"
	"github.com/lwaddell/depscope/pkg/product"
	"github.com/lwaddell/depscope/pkg/pydep"
)

type infoOptions struct {
	checkout      string
	targetVersion string
	forceClone    bool
}

func newInfoCmd(root *rootOptions) *cobra.Command {
	opts := &infoOptions{}

	cmd := &cobra.Command{
		Use:   "info [product...]",
		Short: "Summarize dependencies across products by supported version",
		Long: `List every direct dependency of the configured products, grouped by the
highest Python version it supports and ordered by how many products use it.
The unsupported groups at the top are the upgrade blockers.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := errors.ValidateTargetVersion(opts.targetVersion); err != nil {
				return err
			}
			return runInfo(cmd.Context(), root, opts, args)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.checkout, "checkout", "depgraph/git", "directory for application checkouts")
	f.StringVarP(&opts.targetVersion, "target-version", "t", pydep.DefaultTargetVersion, "Python version the audit targets")
	f.BoolVar(&opts.forceClone, "force-clone", false, "re-clone applications even if a checkout exists")

	return cmd
}

// usageEntry is one dependency aggregated across every product using it.
type usageEntry struct {
	pkg      *pydep.Package
	products []string
}

func runInfo(ctx context.Context, root *rootOptions, opts *infoOptions, args []string) error {
	logger := loggerFromContext(ctx)

	res, store, err := root.newResolver(opts.targetVersion)
	if err != nil {
		return err
	}
	defer store.Close()

	products, err := product.Load(root.productsPath)
	if err != nil {
		return err
	}
	firstParty := products.FirstParty()

	targets := products.All()
	if len(args) > 0 {
		targets = targets[:0]
		for _, code := range args {
			p, err := products.Get(code)
			if err != nil {
				return err
			}
			targets = append(targets, p)
		}
	}

	usages := make(map[pydep.Identity]*usageEntry)
	for _, p := range targets {
		if p.Kind == product.KindLibrary && !p.OnRegistry {
			logger.Warnf("Skipping %s: not published to the registry", p.Code)
			continue
		}

		checkoutDir := filepath.Join(opts.checkout, p.Code)
		if p.Kind == product.KindApplication {
			if err := p.Clone(ctx, checkoutDir, opts.forceClone); err != nil {
				return err
			}
		}

		reqs, err := p.Requirements(ctx, res, checkoutDir)
		if err != nil {
			return err
		}
		for _, req := range reqs {
			entry, ok := usages[req.Identity]
			if !ok {
				entry = &usageEntry{pkg: req}
				usages[req.Identity] = entry
			}
			entry.products = append(entry.products, p.Code)
		}
	}

	printSummary(usages, firstParty)
	return nil
}

// printSummary groups dependencies by their highest supported version and
// prints each group with usage counts, most used first.
func printSummary(usages map[pydep.Identity]*usageEntry, firstParty interface {
	Contains(id ...pydep.Identity) bool
}) {
	byVersion := make(map[string][]*usageEntry)
	for _, entry := range usages {
		version := "unknown"
		if versions := entry.pkg.SupportedVersions(); len(versions) > 0 {
			version = versions[len(versions)-1]
		}
		byVersion[version] = append(byVersion[version], entry)
	}

	versions := make([]string, 0, len(byVersion))
	for v := range byVersion {
		versions = append(versions, v)
	}
	sort.Slice(versions, func(i, j int) bool {
		a, errA := pydep.ParseVersion(versions[i])
		b, errB := pydep.ParseVersion(versions[j])
		if errA != nil || errB != nil {
			return errA == nil || versions[i] < versions[j]
		}
		return a.LessThan(b)
	})

	for _, version := range versions {
		entries := byVersion[version]
		sort.Slice(entries, func(i, j int) bool {
			if len(entries[i].products) != len(entries[j].products) {
				return len(entries[i].products) > len(entries[j].products)
			}
			return entries[i].pkg.Identity < entries[j].pkg.Identity
		})

		fmt.Printf("Python: %s\n", version)
		for _, entry := range entries {
			ours := ""
			if firstParty.Contains(entry.pkg.Identity) {
				ours = "[ours] "
			}
			sort.Strings(entry.products)
			fmt.Printf("\t%d: %s%s\t\t%s\n",
				len(entry.products), ours, entry.pkg.Identity, strings.Join(entry.products, ", "))
		}
	}
}
