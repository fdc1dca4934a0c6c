// Command epicenter is an operator-facing inspection and recovery tool
// for a boltprovider-backed deployment: it lists registered workspaces,
// reports a workspace's current epoch and per-client proposals, dumps a
// workspace's table/KV state, and rolls a workspace back to an earlier
// epoch when a bad write needs undoing.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/epicenter-hq/core/pkg/config"
	"github.com/epicenter-hq/core/pkg/log"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var cfgFile string
var cfg config.Config

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "epicenter",
	Short: "Inspect and recover epicenter-core workspaces",
	Long: `epicenter is an operator tool for a boltprovider-backed
epicenter-core deployment: it reads the registry and head documents
straight out of the bbolt database to list workspaces, report epochs,
dump table/KV state, and force a workspace back to an earlier epoch.`,
	Version:           Version,
	PersistentPreRunE: loadConfig,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"epicenter version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a YAML config file")
	config.BindFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(registryCmd)
	rootCmd.AddCommand(workspaceCmd)
}

func loadConfig(cmd *cobra.Command, args []string) error {
	loaded, err := config.FromCommand(cmd, cfgFile)
	if err != nil {
		return err
	}
	cfg = loaded

	log.Init(log.Config{
		Level:      log.Level(cfg.LogLevel),
		JSONOutput: cfg.LogJSON,
	})
	return nil
}
