package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/eventlake-systems/eventlake/cli/internal/config"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "elake",
	Short: "EventLake pipeline CLI",
	Long: `elake is the command-line interface for the EventLake pipeline.

Inspect batch processing metadata, browse the dead letter queue, and
manage pipeline state from your terminal.`,
	Version: "0.1.0",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.elake/config.yaml)")
	rootCmd.PersistentFlags().String("output", "table", "output format: table, json")
}

func initConfig() {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not load config: %v\n", err)
		cfg = config.Default()
	}
}
