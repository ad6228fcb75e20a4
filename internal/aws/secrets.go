package aws

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	json "github.com/goccy/go-json"

	"github.com/vietdv277/rdsctl/pkg/provider"
	"github.com/vietdv277/rdsctl/pkg/types"
)

// Secret reference prefixes understood by SecretResolver
const (
	SSMPrefix            = "ssm:"
	SecretsManagerPrefix = "secretsmanager:"
)

// SSMAPI is the subset of the SSM client used here
type SSMAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// SecretsManagerAPI is the subset of the Secrets Manager client used here
type SecretsManagerAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

var (
	_ SSMAPI                   = (*ssm.Client)(nil)
	_ SecretsManagerAPI        = (*secretsmanager.Client)(nil)
	_ provider.SecretsProvider = (*SecretResolver)(nil)
)

// SecretResolver reads secrets from SSM Parameter Store and Secrets Manager.
//
// References look like "ssm:/app/db-password" or "secretsmanager:rds!db-1234".
// Anything without a known prefix is returned verbatim.
type SecretResolver struct {
	ssm SSMAPI
	sm  SecretsManagerAPI
}

// NewSecretResolver creates a new SecretResolver
func NewSecretResolver(ssmClient SSMAPI, smClient SecretsManagerAPI) *SecretResolver {
	return &SecretResolver{
		ssm: ssmClient,
		sm:  smClient,
	}
}

// Get returns the secret a reference points to
func (r *SecretResolver) Get(ctx context.Context, ref string) (*types.SecretValue, error) {
	switch {
	case strings.HasPrefix(ref, SSMPrefix):
		return r.getSSMParameter(ctx, strings.TrimPrefix(ref, SSMPrefix))
	case strings.HasPrefix(ref, SecretsManagerPrefix):
		return r.getSecretsManager(ctx, strings.TrimPrefix(ref, SecretsManagerPrefix))
	default:
		return &types.SecretValue{Value: ref}, nil
	}
}

// ResolvePassword returns a database password for ref. RDS-managed secrets
// store JSON with username and password; only the password is returned.
func (r *SecretResolver) ResolvePassword(ctx context.Context, ref string) (string, error) {
	secret, err := r.Get(ctx, ref)
	if err != nil {
		return "", err
	}

	// Only Secrets Manager holds RDS-managed JSON credentials; literal and
	// SSM values are used as they are.
	value := strings.TrimSpace(secret.Value)
	if !strings.HasPrefix(ref, SecretsManagerPrefix) || !strings.HasPrefix(value, "{") {
		return secret.Value, nil
	}

	var creds struct {
		Password string `json:"password"`
	}
	if err := json.Unmarshal([]byte(value), &creds); err != nil {
		return "", fmt.Errorf("failed to parse secret %s: %w", secret.Name, err)
	}
	if creds.Password == "" {
		return "", fmt.Errorf("secret %s has no password field", secret.Name)
	}

	return creds.Password, nil
}

func (r *SecretResolver) getSSMParameter(ctx context.Context, name string) (*types.SecretValue, error) {
	if r.ssm == nil {
		return nil, fmt.Errorf("%w: ssm", provider.ErrNotConfigured)
	}

	output, err := r.ssm.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           &name,
		WithDecryption: boolPtr(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get SSM parameter: %w", err)
	}

	param := output.Parameter
	if param == nil {
		return nil, fmt.Errorf("%w: parameter %s", provider.ErrNotFound, name)
	}

	return &types.SecretValue{
		Secret: types.Secret{
			Name:      deref(param.Name),
			ARN:       deref(param.ARN),
			Source:    "ssm",
			UpdatedAt: safeTime(param.LastModifiedDate),
		},
		Value:   deref(param.Value),
		Version: fmt.Sprintf("%d", param.Version),
	}, nil
}

func (r *SecretResolver) getSecretsManager(ctx context.Context, name string) (*types.SecretValue, error) {
	if r.sm == nil {
		return nil, fmt.Errorf("%w: secretsmanager", provider.ErrNotConfigured)
	}

	output, err := r.sm.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: &name,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get secret: %w", err)
	}

	return &types.SecretValue{
		Secret: types.Secret{
			Name:      deref(output.Name),
			ARN:       deref(output.ARN),
			Source:    "secretsmanager",
			CreatedAt: safeTime(output.CreatedDate),
		},
		Value:   deref(output.SecretString),
		Version: deref(output.VersionId),
	}, nil
}

func boolPtr(b bool) *bool { return &b }

func safeTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
