package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vietdv277/rdsctl/internal/lifecycle"
	"github.com/vietdv277/rdsctl/internal/postgres"
	"github.com/vietdv277/rdsctl/internal/ui"
)

var connectCmd = &cobra.Command{
	Use:   "connect [database]",
	Short: "Connect to a database, recovering the instance if needed",
	Long: `Open a session to a database on the configured instance.

If the first attempt fails the instance is stopped, started again and the
connection is retried once. When recovery had to stop a running instance it
is left stopped unless --restart-after-stop is set.

Examples:
  rdsctl connect                       # Use PGDATABASE or "postgres"
  rdsctl connect analytics             # Connect to a named database
  rdsctl connect --restart-after-stop  # Always bring the instance back up`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConnect,
}

func init() {
	rootCmd.AddCommand(connectCmd)
}

func runConnect(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadSettings(true)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	database := cfg.Database
	if len(args) > 0 {
		database = args[0]
	}

	client, err := newAWSClient(ctx, cfg)
	if err != nil {
		return err
	}

	controller, err := newSessionController(ctx, client, cfg, logger)
	if err != nil {
		return err
	}

	session := controller.Connect(ctx, database)
	if session == nil {
		return fmt.Errorf("could not connect to %s on %s", database, cfg.Instance)
	}
	defer session.Close(ctx)

	if err := session.Ping(ctx); err != nil {
		return fmt.Errorf("connection is not usable: %w", err)
	}

	fmt.Printf("Connected to %s on %s\n", ui.NameStyle.Render(database), ui.IDStyle.Render(cfg.Instance))
	printServerVersion(cmd, session)

	return nil
}

func printServerVersion(cmd *cobra.Command, session lifecycle.Session) {
	pg, ok := session.(*postgres.Session)
	if !ok {
		return
	}
	version, err := pg.ServerVersion(cmd.Context())
	if err != nil {
		return
	}
	fmt.Printf("  Server:   %s\n", ui.MutedStyle.Render("PostgreSQL "+version))
}
