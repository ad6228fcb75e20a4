package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vietdv277/rdsctl/internal/aws"
	"github.com/vietdv277/rdsctl/internal/ui"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration and authentication status",
	Long: `Display the effective configuration, verify AWS credentials and report
the state of the configured instance.

Examples:
  rdsctl status
  rdsctl status --profile prod`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadSettings(false)
	if err != nil {
		return err
	}

	fmt.Println("Current Status")
	fmt.Println(ui.MutedStyle.Render("─────────────────────────────────"))
	fmt.Println()

	fmt.Printf("Instance: %s\n", orUnset(cfg.Instance, ui.IDStyle.Render))
	fmt.Printf("Host:     %s\n", orUnset(cfg.Host, ui.EndpointStyle.Render))
	fmt.Printf("Database: %s\n", cfg.Database)
	fmt.Printf("User:     %s\n", orUnset(cfg.User, ui.NameStyle.Render))
	fmt.Printf("Polling:  every %s for at most %s\n", cfg.PollInterval, cfg.MaxWait)
	if cfg.RestartAfterStop {
		fmt.Println("Recovery: " + ui.AvailableStyle.Render("restart after stop"))
	} else {
		fmt.Println("Recovery: " + ui.MutedStyle.Render("leave stopped after stopping a running instance"))
	}
	fmt.Println()

	client, err := newAWSClient(ctx, cfg)
	if err != nil {
		return err
	}

	if client.Profile() != "" {
		fmt.Printf("Profile:  %s\n", client.Profile())
	}
	fmt.Printf("Region:   %s\n", orUnset(client.Region(), nil))

	fmt.Print("Auth:     ")
	identity, err := aws.GetCallerIdentity(ctx, client.STS)
	if err != nil {
		fmt.Println(ui.FailedStyle.Render("✗ Not authenticated"))
		fmt.Printf("          %s\n", ui.MutedStyle.Render(err.Error()))
		fmt.Println()
		fmt.Println("To authenticate:")
		if client.Profile() != "" {
			fmt.Printf("  aws sso login --profile %s\n", client.Profile())
		} else {
			fmt.Println("  aws configure")
		}
		return nil
	}

	fmt.Println(ui.AvailableStyle.Render("✓ Authenticated"))
	fmt.Printf("Account:  %s\n", identity.Account)
	fmt.Printf("User ID:  %s\n", identity.UserID)
	if identity.Arn != "" {
		fmt.Printf("ARN:      %s\n", ui.MutedStyle.Render(identity.Arn))
	}

	if cfg.Instance == "" {
		return nil
	}

	fmt.Println()
	fmt.Print("State:    ")
	db, err := aws.NewRDSProvider(client.RDS).Get(ctx, cfg.Instance)
	if err != nil {
		fmt.Println(ui.FailedStyle.Render("✗ " + err.Error()))
		return nil
	}
	fmt.Println(db.State)
	if addr := db.Address(); addr != "" {
		fmt.Printf("Endpoint: %s\n", ui.EndpointStyle.Render(addr))
	}

	return nil
}

func orUnset(s string, render func(...string) string) string {
	if s == "" {
		return ui.MutedStyle.Render("(not set)")
	}
	if render == nil {
		return s
	}
	return render(s)
}
