package cli

import (
	"context"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/lwaddell/depscope/pkg/errors"
	"github.com/lwaddell/depscope/pkg/product"
	"github.com/lwaddell/depscope/pkg/pydep"
	"github.com/lwaddell/depscope/pkg/render"
)

type graphOptions struct {
	pkg           string
	output        string
	checkout      string
	format        string
	targetVersion string
	ignore        []string
	forceClone    bool
}

func newGraphCmd(root *rootOptions) *cobra.Command {
	opts := &graphOptions{}

	cmd := &cobra.Command{
		Use:   "graph [product...]",
		Short: "Build, prune, and render dependency graphs",
		Long: `Build the transitive dependency graph for products (or a single package
with --package), simplify it with the pruning rules, and render the result.

With no arguments, every configured product is graphed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := errors.ValidateTargetVersion(opts.targetVersion); err != nil {
				return err
			}
			format, err := render.ParseFormat(opts.format)
			if err != nil {
				return err
			}
			return runGraph(cmd.Context(), root, opts, format, args)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.pkg, "package", "", "graph a single registry package instead of products")
	f.StringVarP(&opts.output, "output", "o", "depgraph", "output directory")
	f.StringVar(&opts.checkout, "checkout", "depgraph/git", "directory for application checkouts")
	f.StringVarP(&opts.format, "format", "f", "svg", "output format (dot, svg, png)")
	f.StringVarP(&opts.targetVersion, "target-version", "t", pydep.DefaultTargetVersion, "Python version the audit targets")
	f.StringSliceVar(&opts.ignore, "ignore", []string{"setuptools", "six"}, "packages removed from every graph")
	f.BoolVar(&opts.forceClone, "force-clone", false, "re-clone applications even if a checkout exists")

	return cmd
}

func runGraph(ctx context.Context, root *rootOptions, opts *graphOptions, format render.Format, args []string) error {
	logger := loggerFromContext(ctx)

	res, store, err := root.newResolver(opts.targetVersion)
	if err != nil {
		return err
	}
	defer store.Close()

	remove := make([]pydep.Identity, len(opts.ignore))
	for i, name := range opts.ignore {
		remove[i] = pydep.Normalize(name)
	}

	if opts.pkg != "" {
		return graphPackage(ctx, res, opts, format, remove)
	}

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

	for _, p := range targets {
		if p.Kind == product.KindLibrary && !p.OnRegistry {
			logger.Warnf("Skipping %s: not published to the registry", p.Code)
			continue
		}

		prog := newProgress(logger)
		logger.Infof("Graphing %s", p.Code)

		checkoutDir := filepath.Join(opts.checkout, p.Code)
		if p.Kind == product.KindApplication {
			logger.Debugf("Cloning %s into %s", p.GitURL, checkoutDir)
			if err := p.Clone(ctx, checkoutDir, opts.forceClone); err != nil {
				return err
			}
		}

		reqs, err := p.Requirements(ctx, res, checkoutDir)
		if err != nil {
			return err
		}
		tree, err := res.BuildProduct(ctx, p.Code, p.GitURL, reqs)
		if err != nil {
			return err
		}

		pruneOpts := pydep.PruneOptions{
			Remove:                  remove,
			FirstParty:              firstParty,
			TargetVersion:           opts.targetVersion,
			DropSatisfiedTransitive: true,
		}
		if p.Kind == product.KindApplication {
			// Library graphs keep first-party edges and direct deps visible;
			// each library gets its own graph covering that detail.
			pruneOpts.CollapseFirstParty = true
			pruneOpts.DropSatisfiedDirect = true
		}
		pruned := pydep.Prune(tree.Serialize(), pruneOpts)

		prefix := "lib_" + p.Code
		if p.Kind == product.KindApplication {
			prefix = "app_" + p.Code
		}
		renderOpts := render.Options{TargetVersion: opts.targetVersion, FirstParty: firstParty}
		path, err := writeGraph(ctx, pruned, opts, format, renderOpts, prefix)
		if err != nil {
			return err
		}
		prog.done("Wrote %s", path)
	}
	return nil
}

func graphPackage(ctx context.Context, res *pydep.Resolver, opts *graphOptions, format render.Format, remove []pydep.Identity) error {
	logger := loggerFromContext(ctx)
	prog := newProgress(logger)
	logger.Infof("Graphing package %s", opts.pkg)

	tree, err := res.BuildPackage(ctx, opts.pkg)
	if err != nil {
		return err
	}

	pruned := pydep.Prune(tree.Serialize(), pydep.PruneOptions{
		Remove:                  remove,
		TargetVersion:           opts.targetVersion,
		DropSatisfiedTransitive: true,
	})

	path, err := writeGraph(ctx, pruned, opts, format, render.Options{TargetVersion: opts.targetVersion}, "pkg_"+string(pydep.Normalize(opts.pkg)))
	if err != nil {
		return err
	}
	prog.done("Wrote %s", path)
	return nil
}

func writeGraph(ctx context.Context, g *pydep.Graph, opts *graphOptions, format render.Format, renderOpts render.Options, prefix string) (string, error) {
	dot := render.ToDOT(g, renderOpts)
	data, err := render.Render(ctx, dot, format)
	if err != nil {
		return "", err
	}
	return render.WriteArtifact(opts.output, prefix, format, data)
}
