// Package cmd implements the pkgbuild command line interface.
package cmd

import (
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "pkgbuild",
	Short: "Build packages in an isolated, reproducible root filesystem",
	Long: `pkgbuild reads a declarative package recipe, assembles an ephemeral
build root from an overlay over a preinstalled environment, and runs the
recipe's build phases inside it.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c",
		"/etc/pkgbuild/builder.ini", "path to the builder configuration file")
	rootCmd.AddCommand(buildCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
