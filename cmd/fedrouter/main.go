package main

import (
	"fmt"
	"os"

	"github.com/pg-sharding/fedrouter/pkg"
	"github.com/pg-sharding/fedrouter/pkg/fedlog"
	"github.com/spf13/cobra"
)

var (
	cfgPath  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "fedrouter --config `path-to-config` <command>",
	Short: "fedrouter",
	Long:  "fedrouter routes records to the store owning their year and federates reads over every store",
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "print fedrouter version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "fedrouter %s\n", pkg.FedrouterVersionRevision)
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fedlog.Zero.Error().Err(err).Msg("")
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "/etc/fedrouter/fedrouter.yaml", "path to config file")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "", "log level, overrides the config file")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(insertCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(totalsCmd)
	rootCmd.AddCommand(mapCmd)
	rootCmd.AddCommand(demoCmd)
	rootCmd.AddCommand(serveCmd)
}

func main() {
	Execute()
}
