package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// Client wraps AWS SDK clients
type Client struct {
	RDS            *rds.Client
	STS            *sts.Client
	SSM            *ssm.Client
	SecretsManager *secretsmanager.Client

	cfg     aws.Config
	profile string
	region  string
}

// ClientOption allows customizing the AWS Client
type ClientOption func(*Client)

// WithProfile sets the AWS profile for the client
func WithProfile(profile string) ClientOption {
	return func(c *Client) {
		c.profile = profile
	}
}

// WithRegion sets the AWS region for the client
func WithRegion(region string) ClientOption {
	return func(c *Client) {
		c.region = region
	}
}

// NewClient creates a new AWS Client with the given options
func NewClient(ctx context.Context, opts ...ClientOption) (*Client, error) {
	c := &Client{}

	for _, opt := range opts {
		opt(c)
	}

	var configOpts []func(*config.LoadOptions) error

	if c.profile != "" {
		configOpts = append(configOpts, config.WithSharedConfigProfile(c.profile))
	}

	if c.region != "" {
		configOpts = append(configOpts, config.WithRegion(c.region))
	}

	cfg, err := config.LoadDefaultConfig(ctx, configOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS SDK config: %w", err)
	}

	c.cfg = cfg
	c.RDS = rds.NewFromConfig(cfg)
	c.STS = sts.NewFromConfig(cfg)
	c.SSM = ssm.NewFromConfig(cfg)
	c.SecretsManager = secretsmanager.NewFromConfig(cfg)

	return c, nil
}

// Profile returns the shared config profile in use, if any
func (c *Client) Profile() string {
	return c.profile
}

// Region returns the resolved AWS region
func (c *Client) Region() string {
	return c.cfg.Region
}
