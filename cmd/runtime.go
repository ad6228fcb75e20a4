package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/vietdv277/rdsctl/internal/aws"
	"github.com/vietdv277/rdsctl/internal/config"
	"github.com/vietdv277/rdsctl/internal/lifecycle"
	"github.com/vietdv277/rdsctl/internal/logging"
	"github.com/vietdv277/rdsctl/internal/postgres"
)

// loadSettings decodes the merged configuration. Full validation is applied
// only when the command is going to open a database session.
func loadSettings(needSession bool) (*config.Config, error) {
	if configErr != nil {
		return nil, configErr
	}

	if needSession {
		return config.Load(viper.GetViper())
	}
	return config.Decode(viper.GetViper())
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return logger, nil
}

func newAWSClient(ctx context.Context, cfg *config.Config) (*aws.Client, error) {
	client, err := aws.NewClient(ctx,
		aws.WithProfile(cfg.Profile),
		aws.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS client: %w", err)
	}
	return client, nil
}

// resolveInstance picks the instance named on the command line over the
// configured one
func resolveInstance(cfg *config.Config, args []string) (string, error) {
	if len(args) > 0 && args[0] != "" {
		return args[0], nil
	}
	if cfg.Instance == "" {
		return "", errors.New("no instance given. Pass one, set PGINSTANCE, or run 'rdsctl use <instance>'")
	}
	return cfg.Instance, nil
}

func retryPolicy(cfg *config.Config) lifecycle.RetryPolicy {
	policy := lifecycle.DefaultRetryPolicy()
	if cfg.PollInterval > 0 {
		policy.Interval = cfg.PollInterval
	}
	if cfg.MaxWait > 0 {
		policy.MaxWait = cfg.MaxWait
	}
	return policy
}

// newLifecycleController builds a controller that only needs the control
// plane. Its dialer is never used.
func newLifecycleController(rds *aws.RDSProvider, cfg *config.Config, id string, logger *zap.Logger) *lifecycle.Controller {
	return lifecycle.New(rds, nil, lifecycle.Config{
		InstanceID:       id,
		Policy:           retryPolicy(cfg),
		RestartAfterStop: cfg.RestartAfterStop,
	}, lifecycle.WithLogger(logger))
}

// newSessionController builds a controller able to open database sessions.
// A missing host is taken from the instance endpoint and a password
// reference is resolved through SSM or Secrets Manager.
func newSessionController(ctx context.Context, client *aws.Client, cfg *config.Config, logger *zap.Logger) (*lifecycle.Controller, error) {
	rds := aws.NewRDSProvider(client.RDS)

	host, port := cfg.Host, cfg.Port
	if host == "" {
		db, err := rds.Get(ctx, cfg.Instance)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve endpoint of %s: %w", cfg.Instance, err)
		}
		if db.Endpoint == "" {
			return nil, fmt.Errorf("instance %s has no endpoint yet (state %s); set PGHOST", cfg.Instance, db.State)
		}
		host = db.Endpoint
		if db.Port != 0 {
			port = db.Port
		}
		logger.Debug("resolved endpoint", zap.String("instance", cfg.Instance), zap.String("address", db.Address()))
	}

	password := cfg.Password
	if password == "" && cfg.PasswordRef != "" {
		resolver := aws.NewSecretResolver(client.SSM, client.SecretsManager)
		resolved, err := resolver.ResolvePassword(ctx, cfg.PasswordRef)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve password: %w", err)
		}
		password = resolved
	}

	dialer := postgres.NewDialer(postgres.Options{
		Host:           host,
		Port:           port,
		User:           cfg.User,
		Password:       password,
		ConnectTimeout: cfg.ConnectTimeout,
	})

	return lifecycle.New(rds, dialer, lifecycle.Config{
		InstanceID:       cfg.Instance,
		Policy:           retryPolicy(cfg),
		RestartAfterStop: cfg.RestartAfterStop,
	}, lifecycle.WithLogger(logger)), nil
}
