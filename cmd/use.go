package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vietdv277/rdsctl/internal/config"
)

var useCmd = &cobra.Command{
	Use:   "use <instance>",
	Short: "Set the default instance",
	Long: `Record the instance used when none is given on the command line.

The identifier is written to the config file; every other setting in the
file is kept.

Examples:
  rdsctl use postgres-db
  rdsctl use analytics-db --config ./rdsctl.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runUse,
}

func init() {
	rootCmd.AddCommand(useCmd)
}

func runUse(cmd *cobra.Command, args []string) error {
	path := cfgFile
	if path == "" {
		path = config.GetConfigPath()
	}

	if err := config.SetDefaultInstance(path, args[0]); err != nil {
		return fmt.Errorf("failed to save default instance: %w", err)
	}

	fmt.Printf("Default instance: %s\n", args[0])
	fmt.Printf("  Saved to: %s\n", path)
	return nil
}
