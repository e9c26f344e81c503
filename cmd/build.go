package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/crateimport/crateimport/internal/config"
	"github.com/crateimport/crateimport/internal/importable"
	"github.com/crateimport/crateimport/internal/journal"
)

var buildCmd = &cobra.Command{
	Use:   "build [paths...]",
	Short: "Build Rust source files or crates",
	Long: `Compile one or more Rust sources into extension artifacts. A file path is
built directly; a directory is walked recursively and every opted-in source
file and crate inside it is built. Without arguments the current directory
is used.`,
	RunE:         runBuild,
	SilenceUsage: true,
}

func init() {
	buildCmd.Flags().BoolP("force", "f", false, "Rebuild even when the artifact is up to date")
	buildCmd.Flags().BoolP("release", "r", false, "Build release-optimized binaries")
}

// buildStats tallies one batch run for the end-of-run summary.
type buildStats struct {
	built    int
	upToDate int
	skipped  int
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg, err := config.NewLoader().LoadForBuild(cmd, args)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()

	resolver := importable.NewResolver(cfg)

	jnl, err := journal.Open(cfg.CacheDir)
	if err != nil {
		fmt.Fprintf(errOut, "Warning: build journal unavailable: %v\n", err)
	} else {
		defer jnl.Close()
	}

	if len(args) == 0 {
		args = []string{"."}
	}

	var stats buildStats

	for _, arg := range args {
		path, err := filepath.Abs(os.ExpandEnv(arg))
		if err != nil {
			return fmt.Errorf("invalid path %s: %w", arg, err)
		}

		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("the given root path %q could not be found", arg)
		}

		if info.IsDir() {
			// Directory walks require the opt-in marker; near misses
			// are skipped, not errors
			missesBefore := len(resolver.NearMisses())

			units, err := resolver.FindAll(path, true)
			if err != nil {
				return err
			}

			for _, unit := range units {
				if err := buildUnit(cfg, jnl, unit, &stats, out, errOut); err != nil {
					return err
				}
			}

			// The resolver's miss list spans its whole lifetime; only
			// the misses from this walk belong to this argument
			stats.skipped += len(resolver.NearMisses()) - missesBefore
		} else {
			// An explicitly named file is a clear statement of intent,
			// no opt-in marker needed
			unit := resolver.TryCreate(path, "", false)
			if unit == nil {
				return fmt.Errorf("%s is not a buildable Rust source file or crate", arg)
			}

			if err := buildUnit(cfg, jnl, unit, &stats, out, errOut); err != nil {
				return err
			}
		}
	}

	fmt.Fprintf(out, "Done: %d built, %d up to date, %d skipped\n", stats.built, stats.upToDate, stats.skipped)

	return nil
}

func buildUnit(cfg *config.Config, jnl *journal.Journal, unit importable.Importable, stats *buildStats, out, errOut io.Writer) error {
	if !cfg.ForceRebuild && !unit.NeedsRebuild(cfg.Release) {
		if cfg.Verbose {
			fmt.Fprintf(out, "%s is up to date\n", unit.Path())
		}

		stats.upToDate++

		return nil
	}

	if cfg.Verbose {
		fmt.Fprintf(out, "Building %s in %s\n", unit.Path(), unit.BuildDir())
	}

	start := time.Now()
	buildErr := unit.Build(cfg.Release)

	if jnl != nil {
		entry := journal.Entry{
			SourcePath:   unit.Path(),
			FullName:     unit.FullName(),
			ArtifactPath: unit.ExtensionPath(),
			Release:      cfg.Release,
			Success:      buildErr == nil,
			Duration:     time.Since(start),
			Timestamp:    time.Now(),
		}
		if err := jnl.Record(entry); err != nil {
			fmt.Fprintf(errOut, "Warning: failed to record build in journal: %v\n", err)
		}
	}

	if buildErr != nil {
		var be *importable.BuildError
		if errors.As(buildErr, &be) && cfg.Verbose {
			for _, diag := range be.Diagnostics {
				fmt.Fprint(errOut, diag)
			}
		}

		return buildErr
	}

	stats.built++

	return nil
}
