package aws

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	rdstypes "github.com/aws/aws-sdk-go-v2/service/rds/types"
	"github.com/aws/smithy-go"

	"github.com/vietdv277/rdsctl/internal/lifecycle"
	"github.com/vietdv277/rdsctl/pkg/provider"
	"github.com/vietdv277/rdsctl/pkg/types"
)

// RDSAPI is the subset of the RDS client used by RDSProvider
type RDSAPI interface {
	DescribeDBInstances(ctx context.Context, params *rds.DescribeDBInstancesInput, optFns ...func(*rds.Options)) (*rds.DescribeDBInstancesOutput, error)
	StartDBInstance(ctx context.Context, params *rds.StartDBInstanceInput, optFns ...func(*rds.Options)) (*rds.StartDBInstanceOutput, error)
	StopDBInstance(ctx context.Context, params *rds.StopDBInstanceInput, optFns ...func(*rds.Options)) (*rds.StopDBInstanceOutput, error)
}

// Compile-time interface checks
var (
	_ RDSAPI                 = (*rds.Client)(nil)
	_ lifecycle.ControlPlane = (*RDSProvider)(nil)
	_ provider.DBProvider    = (*RDSProvider)(nil)
)

// RDSProvider implements the control plane and DBProvider interfaces for AWS RDS
type RDSProvider struct {
	api RDSAPI
}

// NewRDSProvider creates a new RDS provider
func NewRDSProvider(api RDSAPI) *RDSProvider {
	return &RDSProvider{api: api}
}

// Status returns the current status of an instance
func (p *RDSProvider) Status(ctx context.Context, id string) (lifecycle.InstanceState, error) {
	inst, err := p.describe(ctx, id)
	if err != nil {
		return "", err
	}
	return lifecycle.InstanceState(deref(inst.DBInstanceStatus)), nil
}

// Start starts a stopped instance
func (p *RDSProvider) Start(ctx context.Context, id string) (lifecycle.InstanceState, error) {
	output, err := p.api.StartDBInstance(ctx, &rds.StartDBInstanceInput{
		DBInstanceIdentifier: aws.String(id),
	})
	if err != nil {
		return "", mapRDSError(id, err)
	}
	return reportedState(output.DBInstance), nil
}

// Stop stops a running instance
func (p *RDSProvider) Stop(ctx context.Context, id string) (lifecycle.InstanceState, error) {
	output, err := p.api.StopDBInstance(ctx, &rds.StopDBInstanceInput{
		DBInstanceIdentifier: aws.String(id),
	})
	if err != nil {
		return "", mapRDSError(id, err)
	}
	return reportedState(output.DBInstance), nil
}

// List returns RDS instances matching the filter
func (p *RDSProvider) List(ctx context.Context, filter *provider.DBFilter) ([]types.Database, error) {
	input := &rds.DescribeDBInstancesInput{}

	if filter != nil && filter.Engine != "" {
		input.Filters = []rdstypes.Filter{
			{
				Name:   aws.String("engine"),
				Values: []string{filter.Engine},
			},
		}
	}

	paginator := rds.NewDescribeDBInstancesPaginator(p.api, input)

	var dbs []types.Database
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to describe instances: %w", err)
		}

		for _, inst := range page.DBInstances {
			db := rdsToDatabase(inst)
			// RDS has no server-side status filter
			if filter != nil && filter.State != "" && db.State != filter.State {
				continue
			}
			dbs = append(dbs, db)
		}
	}

	return dbs, nil
}

// Get returns a single instance by identifier
func (p *RDSProvider) Get(ctx context.Context, id string) (*types.Database, error) {
	inst, err := p.describe(ctx, id)
	if err != nil {
		return nil, err
	}
	db := rdsToDatabase(*inst)
	return &db, nil
}

func (p *RDSProvider) describe(ctx context.Context, id string) (*rdstypes.DBInstance, error) {
	output, err := p.api.DescribeDBInstances(ctx, &rds.DescribeDBInstancesInput{
		DBInstanceIdentifier: aws.String(id),
	})
	if err != nil {
		return nil, mapRDSError(id, err)
	}

	if len(output.DBInstances) == 0 {
		return nil, fmt.Errorf("%w: instance %s", provider.ErrNotFound, id)
	}

	return &output.DBInstances[0], nil
}

// mapRDSError translates RDS faults into the errors callers branch on
func mapRDSError(id string, err error) error {
	var stateFault *rdstypes.InvalidDBInstanceStateFault
	if errors.As(err, &stateFault) {
		return fmt.Errorf("%w: %s", lifecycle.ErrStateConflict, stateFault.ErrorMessage())
	}

	var notFound *rdstypes.DBInstanceNotFoundFault
	if errors.As(err, &notFound) {
		return fmt.Errorf("%w: instance %s", provider.ErrNotFound, id)
	}

	// Faults the SDK could not deserialize into a modeled type arrive as a
	// generic API error carrying only the code.
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "InvalidDBInstanceState":
			return fmt.Errorf("%w: %s", lifecycle.ErrStateConflict, apiErr.ErrorMessage())
		case "DBInstanceNotFound":
			return fmt.Errorf("%w: instance %s", provider.ErrNotFound, id)
		}
	}

	return err
}

func reportedState(inst *rdstypes.DBInstance) lifecycle.InstanceState {
	if inst == nil {
		return ""
	}
	return lifecycle.InstanceState(deref(inst.DBInstanceStatus))
}

// rdsToDatabase converts an RDS instance to the unified Database type
func rdsToDatabase(i rdstypes.DBInstance) types.Database {
	db := types.Database{
		ID:       deref(i.DBInstanceIdentifier),
		Name:     deref(i.DBName),
		Engine:   deref(i.Engine),
		Version:  deref(i.EngineVersion),
		State:    deref(i.DBInstanceStatus),
		Class:    deref(i.DBInstanceClass),
		Zone:     deref(i.AvailabilityZone),
		Provider: "aws",
		Raw:      i,
	}

	if i.Endpoint != nil {
		db.Endpoint = deref(i.Endpoint.Address)
		if i.Endpoint.Port != nil {
			db.Port = int(*i.Endpoint.Port)
		}
	}

	if i.InstanceCreateTime != nil {
		db.CreatedAt = *i.InstanceCreateTime
	}

	return db
}
