package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vietdv277/rdsctl/internal/config"
)

var (
	// Global flags
	cfgFile          string
	profile          string
	region           string
	instance         string
	user             string
	logLevel         string
	logFormat        string
	restartAfterStop bool

	// configErr is set by initConfig and reported by the first command that
	// reads the configuration
	configErr error
)

var rootCmd = &cobra.Command{
	Use:   "rdsctl",
	Short: "rdsctl - keep an RDS Postgres instance reachable and loaded",
	Long: `rdsctl connects to a Postgres database hosted on AWS RDS. When the
database cannot be reached it cycles the instance through stop and start,
waiting for each transition to settle, and tries again.

Connection:
  rdsctl connect                 # Connect, recovering the instance if needed
  rdsctl connect analytics       # Connect to a specific database

Instance Lifecycle:
  rdsctl instance status         # Show the configured instance state
  rdsctl instance start          # Start and wait until available
  rdsctl instance stop           # Stop and wait until stopped
  rdsctl instance list -i        # Pick an instance interactively

Data:
  rdsctl load --schema tables.yaml --data ./data

Configuration:
  rdsctl use postgres-db         # Save the default instance
  rdsctl status                  # Show configuration and AWS identity

Settings come from flags, RDSCTL_* and PG* environment variables, and
~/.config/rdsctl/config.yaml, in that order of precedence.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default ~/.config/rdsctl/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&profile, "profile", "p", "", "AWS profile to use")
	rootCmd.PersistentFlags().StringVarP(&region, "region", "r", "", "AWS region to use")
	rootCmd.PersistentFlags().StringVar(&instance, "instance", "", "RDS instance identifier")
	rootCmd.PersistentFlags().StringVarP(&user, "user", "U", "", "Database user")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format (console, json)")
	rootCmd.PersistentFlags().BoolVar(&restartAfterStop, "restart-after-stop", false,
		"Start the instance again when recovery had to stop a running one")

	// Bind flags to viper
	bindFlag("profile", "profile")
	bindFlag("region", "region")
	bindFlag("instance", "instance")
	bindFlag("user", "user")
	bindFlag("log_level", "log-level")
	bindFlag("log_format", "log-format")
	bindFlag("restart_after_stop", "restart-after-stop")
}

func bindFlag(key, flag string) {
	_ = viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag))
}

func initConfig() {
	configErr = config.Setup(viper.GetViper(), cfgFile)
}
