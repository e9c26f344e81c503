package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/crateimport/crateimport/internal/config"
	"github.com/crateimport/crateimport/internal/journal"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the build cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:          "stats",
	Short:        "Show recorded builds and cache size",
	RunE:         runCacheStats,
	SilenceUsage: true,
}

var cacheCleanCmd = &cobra.Command{
	Use:          "clean",
	Short:        "Remove all scratch directories and the build journal",
	RunE:         runCacheClean,
	SilenceUsage: true,
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheCleanCmd)
}

func runCacheStats(cmd *cobra.Command, args []string) error {
	cfg, err := config.NewLoader().LoadForBuild(cmd, args)
	if err != nil {
		return err
	}

	jnl, err := journal.Open(cfg.CacheDir)
	if err != nil {
		return err
	}
	defer jnl.Close()

	entries, err := jnl.Entries()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "Cache directory: %s\n", cfg.CacheDir)
	fmt.Fprintf(out, "Recorded builds: %d\n", len(entries))

	for _, e := range entries {
		status := "ok"
		if !e.Success {
			status = "failed"
		}

		profile := "debug"
		if e.Release {
			profile = "release"
		}

		fmt.Fprintf(out, "  %s [%s, %s] %s (%s)\n",
			e.SourcePath, profile, status, e.Timestamp.Format("2006-01-02 15:04:05"), e.Duration.Round(time.Millisecond))
	}

	fmt.Fprintf(out, "Cache size: %.1f MiB\n", float64(dirSize(cfg.CacheDir))/(1024*1024))

	return nil
}

func runCacheClean(cmd *cobra.Command, args []string) error {
	cfg, err := config.NewLoader().LoadForBuild(cmd, args)
	if err != nil {
		return err
	}

	if err := os.RemoveAll(cfg.CacheDir); err != nil {
		return fmt.Errorf("failed to remove cache directory: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", cfg.CacheDir)

	return nil
}

func dirSize(root string) int64 {
	var total int64

	_ = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // skip unreadable entries
		}

		if !info.IsDir() {
			total += info.Size()
		}

		return nil
	})

	return total
}
