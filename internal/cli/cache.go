package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

func newCacheCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the persistent registry cache",
	}

	cmd.AddCommand(newCachePathCmd(root))
	cmd.AddCommand(newCacheClearCmd(root))

	return cmd
}

func newCachePathCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the cache directory path",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := root.cachePath()
			if err != nil {
				return err
			}
			fmt.Println(dir)
			return nil
		},
	}
}

func newCacheClearCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete all cached registry responses",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := loggerFromContext(cmd.Context())

			dir, err := root.cachePath()
			if err != nil {
				return err
			}
			count := 0
			err = filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
				if err != nil || info.IsDir() {
					return nil
				}
				if os.Remove(path) == nil {
					count++
				}
				return nil
			})
			if err != nil {
				return err
			}

			logger.Infof("Cleared %d cached entries from %s", count, dir)
			return nil
		},
	}
}
