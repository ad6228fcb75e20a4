package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vietdv277/rdsctl/internal/aws"
	"github.com/vietdv277/rdsctl/internal/config"
	"github.com/vietdv277/rdsctl/internal/lifecycle"
	"github.com/vietdv277/rdsctl/internal/ui"
	"github.com/vietdv277/rdsctl/pkg/provider"
	"github.com/vietdv277/rdsctl/pkg/types"
)

var instanceCmd = &cobra.Command{
	Use:     "instance",
	Aliases: []string{"db"},
	Short:   "Manage the RDS instance lifecycle",
	Long: `Start, stop and inspect RDS instances.

Start and stop wait until the instance settles, polling its status at a
fixed interval for a bounded time (--poll-interval and --max-wait in the
config file, 45s and 120s by default).

Examples:
  rdsctl instance status               # State of the configured instance
  rdsctl instance start postgres-db    # Start and wait until available
  rdsctl instance stop                 # Stop and wait until stopped
  rdsctl instance list -e postgres     # List Postgres instances`,
}

var instanceStatusCmd = &cobra.Command{
	Use:   "status [instance]",
	Short: "Show the state of an instance",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runInstanceStatus,
}

var instanceStartCmd = &cobra.Command{
	Use:   "start [instance]",
	Short: "Start an instance and wait until it is available",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runInstanceStart,
}

var instanceStopCmd = &cobra.Command{
	Use:   "stop [instance]",
	Short: "Stop an instance and wait until it is stopped",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runInstanceStop,
}

var instanceListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List RDS instances",
	Long: `List RDS instances in the current account and region.

Examples:
  rdsctl instance list                 # All instances
  rdsctl instance list -e postgres     # Filter by engine
  rdsctl instance list -s stopped      # Filter by state
  rdsctl instance list -i              # Interactive selection mode`,
	RunE: runInstanceList,
}

var (
	instanceListEngine      string
	instanceListState       string
	instanceListInteractive bool
)

func init() {
	rootCmd.AddCommand(instanceCmd)
	instanceCmd.AddCommand(instanceStatusCmd)
	instanceCmd.AddCommand(instanceStartCmd)
	instanceCmd.AddCommand(instanceStopCmd)
	instanceCmd.AddCommand(instanceListCmd)

	instanceListCmd.Flags().StringVarP(&instanceListEngine, "engine", "e", "", "Filter by engine (postgres, mysql, ...)")
	instanceListCmd.Flags().StringVarP(&instanceListState, "state", "s", "", "Filter by state (available, stopped, ...)")
	instanceListCmd.Flags().BoolVarP(&instanceListInteractive, "interactive", "i", false, "Interactive selection mode")
}

// instanceEnv bundles what the instance subcommands share
type instanceEnv struct {
	cfg    *config.Config
	logger *zap.Logger
	rds    *aws.RDSProvider
}

func newInstanceEnv(ctx context.Context) (*instanceEnv, error) {
	cfg, err := loadSettings(false)
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}

	client, err := newAWSClient(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return &instanceEnv{
		cfg:    cfg,
		logger: logger,
		rds:    aws.NewRDSProvider(client.RDS),
	}, nil
}

func (e *instanceEnv) controller(id string) *lifecycle.Controller {
	return newLifecycleController(e.rds, e.cfg, id, e.logger)
}

func runInstanceStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	env, err := newInstanceEnv(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = env.logger.Sync() }()

	id, err := resolveInstance(env.cfg, args)
	if err != nil {
		return err
	}

	db, err := env.rds.Get(ctx, id)
	if err != nil {
		if errors.Is(err, provider.ErrNotFound) {
			return fmt.Errorf("instance %s not found", id)
		}
		return err
	}

	ui.PrintDatabaseTable(os.Stdout, []types.Database{*db})
	return nil
}

func runInstanceStart(cmd *cobra.Command, args []string) error {
	return runTransition(cmd, args, "start")
}

func runInstanceStop(cmd *cobra.Command, args []string) error {
	return runTransition(cmd, args, "stop")
}

func runTransition(cmd *cobra.Command, args []string, action string) error {
	ctx := cmd.Context()

	env, err := newInstanceEnv(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = env.logger.Sync() }()

	id, err := resolveInstance(env.cfg, args)
	if err != nil {
		return err
	}

	return transition(ctx, env.controller(id), action)
}

var pastTense = map[string]string{
	"start": "started",
	"stop":  "stopped",
}

func transition(ctx context.Context, c *lifecycle.Controller, action string) error {
	var (
		res lifecycle.Result
		err error
	)

	switch action {
	case "start":
		fmt.Printf("Starting %s...\n", ui.IDStyle.Render(c.InstanceID()))
		res, err = c.StartInstance(ctx)
	case "stop":
		fmt.Printf("Stopping %s...\n", ui.IDStyle.Render(c.InstanceID()))
		res, err = c.StopInstance(ctx)
	default:
		return fmt.Errorf("unknown action: %s", action)
	}

	if err != nil {
		if errors.Is(err, lifecycle.ErrConvergenceTimeout) {
			fmt.Println(ui.TransitionStyle.Render(fmt.Sprintf("✗ still %s after %d polls", res.State, res.Polls)))
		}
		return err
	}

	switch res.Outcome {
	case lifecycle.OutcomeAlreadyInState:
		fmt.Println(ui.MutedStyle.Render("Instance was already " + pastTense[action]))
	default:
		fmt.Println(ui.AvailableStyle.Render(fmt.Sprintf("✓ %s after %d polls", res.State, res.Polls)))
	}
	return nil
}

func runInstanceList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	env, err := newInstanceEnv(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = env.logger.Sync() }()

	dbs, err := env.rds.List(ctx, &provider.DBFilter{
		Engine: instanceListEngine,
		State:  instanceListState,
	})
	if err != nil {
		return err
	}

	if len(dbs) == 0 {
		fmt.Println("No instances found")
		return nil
	}

	if !instanceListInteractive {
		ui.PrintDatabaseTable(os.Stdout, dbs)
		return nil
	}

	db, action, err := ui.SelectDatabase(dbs)
	if err != nil {
		if errors.Is(err, ui.ErrSelectionCancelled) {
			return nil
		}
		return err
	}

	switch action {
	case ui.DBActionStart:
		return transition(ctx, env.controller(db.ID), "start")
	case ui.DBActionStop:
		return transition(ctx, env.controller(db.ID), "stop")
	default:
		return connectSelected(ctx, env, db)
	}
}

// connectSelected opens a session to an instance picked in the selector
func connectSelected(ctx context.Context, env *instanceEnv, db *types.Database) error {
	cfg := selectedConfig(env.cfg, db)
	if err := cfg.Validate(); err != nil {
		return err
	}

	client, err := newAWSClient(ctx, &cfg)
	if err != nil {
		return err
	}

	controller, err := newSessionController(ctx, client, &cfg, env.logger)
	if err != nil {
		return err
	}

	fmt.Printf("Connecting to %s...\n", ui.IDStyle.Render(db.ID))
	session := controller.Connect(ctx, cfg.Database)
	if session == nil {
		return fmt.Errorf("could not connect to %s on %s", cfg.Database, db.ID)
	}
	defer session.Close(ctx)

	fmt.Printf("Connected to %s on %s\n", ui.NameStyle.Render(cfg.Database), ui.IDStyle.Render(db.ID))
	return nil
}

// selectedConfig points base at a picked instance. A configured host only
// applies to the configured instance; any other pick is reached through its
// own endpoint.
func selectedConfig(base *config.Config, db *types.Database) config.Config {
	cfg := *base
	cfg.Instance = db.ID
	if db.ID != base.Instance {
		cfg.Host = ""
	}
	return cfg
}
