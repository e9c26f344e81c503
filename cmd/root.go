package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/crateimport/crateimport/internal/version"
)

var rootCmd = &cobra.Command{
	Use:          "crateimport",
	Short:        "Build Rust extensions on demand",
	Long:         `Compile single-file Rust sources and crates into host-loadable extensions, rebuilding only when their sources change.`,
	SilenceUsage: true,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.Version = fmt.Sprintf("%s (%s) %s", version.Version, version.Commit, version.BuildTime)

	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "Suppress cargo's console output")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().String("cache-dir", "", "Directory for scratch build directories")

	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(newCmd)
	rootCmd.AddCommand(cacheCmd)
}
