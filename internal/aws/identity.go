package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// CallerIdentity represents AWS caller identity information
type CallerIdentity struct {
	Account string
	Arn     string
	UserID  string
}

// STSAPI is the subset of the STS client used here
type STSAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

var _ STSAPI = (*sts.Client)(nil)

// GetCallerIdentity returns the current AWS caller identity
func GetCallerIdentity(ctx context.Context, api STSAPI) (*CallerIdentity, error) {
	output, err := api.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return nil, err
	}

	return &CallerIdentity{
		Account: deref(output.Account),
		Arn:     deref(output.Arn),
		UserID:  deref(output.UserId),
	}, nil
}

// deref safely dereferences a string pointer
func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
