package cli

import (
	"context"
	"os"
	"time"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/lwaddell/depscope/pkg/buildinfo"
	"github.com/lwaddell/depscope/pkg/cache"
	"github.com/lwaddell/depscope/pkg/errors"
	"github.com/lwaddell/depscope/pkg/pydep"
	"github.com/lwaddell/depscope/pkg/registry"
)

// rootOptions holds the persistent flags shared by every command.
type rootOptions struct {
	verbose      bool
	cacheBackend string // file, redis, none
	cacheDir     string
	cacheTTL     time.Duration
	redisAddr    string
	productsPath string
	knownPath    string
}

// Execute runs the depscope CLI and returns an error if any command fails.
func Execute(ctx context.Context) error {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:          "depscope",
		Short:        "depscope audits cross-project Python dependency exposure",
		Long:         "depscope resolves the transitive dependency graphs of your applications and libraries,\ninfers which Python versions each dependency supports, and renders simplified graphs\nhighlighting what still blocks an upgrade.",
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := charmlog.InfoLevel
			if opts.verbose {
				level = charmlog.DebugLevel
			}
			cmd.SetContext(withLogger(cmd.Context(), newLogger(os.Stderr, level)))
		},
	}

	root.SetVersionTemplate(buildinfo.Template())

	pf := root.PersistentFlags()
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "enable verbose logging")
	pf.StringVar(&opts.cacheBackend, "cache", "file", "registry cache backend (file, redis, none)")
	pf.StringVar(&opts.cacheDir, "cache-dir", "", "cache directory (default ~/.cache/depscope)")
	pf.DurationVar(&opts.cacheTTL, "cache-ttl", 0, "cache entry lifetime (0 = keep forever)")
	pf.StringVar(&opts.redisAddr, "redis-addr", "localhost:6379", "redis address for --cache=redis")
	pf.StringVar(&opts.productsPath, "products", "products.toml", "product configuration file")
	pf.StringVar(&opts.knownPath, "known-versions", "", "curated version override file (default: built-in table)")

	root.AddCommand(newGraphCmd(opts))
	root.AddCommand(newInfoCmd(opts))
	root.AddCommand(newCacheCmd(opts))

	return root.ExecuteContext(ctx)
}

// openStore creates the persistent cache backend selected by flags.
func (o *rootOptions) openStore() (cache.Cache, error) {
	switch o.cacheBackend {
	case "file":
		return cache.NewFile(o.cacheDir)
	case "redis":
		return cache.NewRedis(o.redisAddr, "depscope:"), nil
	case "none":
		return cache.NewNull(), nil
	}
	return nil, errors.New(errors.ErrCodeInvalidInput, "unknown cache backend %q", o.cacheBackend)
}

// newResolver wires the registry client, override table and environment
// into a resolver for the given target version.
func (o *rootOptions) newResolver(target string) (*pydep.Resolver, cache.Cache, error) {
	store, err := o.openStore()
	if err != nil {
		return nil, nil, err
	}

	known := pydep.DefaultKnownVersions()
	if o.knownPath != "" {
		if known, err = pydep.LoadKnownVersions(o.knownPath); err != nil {
			return nil, nil, err
		}
	}

	env := pydep.DefaultEnvironment()
	env.PythonVersion = target
	env.PythonFullVersion = target + ".0"
	env.ImplementationVersion = env.PythonFullVersion

	client := registry.NewClient(store, o.cacheTTL)
	return pydep.NewResolver(client, env, known), store, nil
}

// cachePath returns the file cache directory the flags resolve to.
func (o *rootOptions) cachePath() (string, error) {
	store, err := cache.NewFile(o.cacheDir)
	if err != nil {
		return "", err
	}
	return store.Dir(), nil
}
