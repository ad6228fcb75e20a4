// Package lifecycle drives a managed database instance between its stopped and
// available states and hands out database sessions, cycling the instance when
// a direct connection fails.
package lifecycle

import (
	"context"
	"errors"
	"io"
)

// InstanceState is the status reported by the control plane for an instance.
// Statuses other than the constants below are passed through unchanged.
type InstanceState string

const (
	StateAvailable InstanceState = "available"
	StateStopped   InstanceState = "stopped"
	StateStopping  InstanceState = "stopping"
	StateStarting  InstanceState = "starting"
)

// Outcome describes how a start or stop request finished.
type Outcome int

const (
	// OutcomeConverged means the command was issued and the target state was observed.
	OutcomeConverged Outcome = iota
	// OutcomeAlreadyInState means the control plane rejected the command
	// because the instance was already there. No polling happened.
	OutcomeAlreadyInState
	// OutcomeTimedOut means polling ran out of budget before convergence.
	OutcomeTimedOut
)

func (o Outcome) String() string {
	switch o {
	case OutcomeConverged:
		return "converged"
	case OutcomeAlreadyInState:
		return "already-in-state"
	case OutcomeTimedOut:
		return "timed-out"
	default:
		return "unknown"
	}
}

// Result is returned by StartInstance and StopInstance.
type Result struct {
	Outcome Outcome
	Polls   int           // status queries issued while waiting
	State   InstanceState // last state observed, empty if never polled
}

var (
	// ErrStateConflict is returned by a ControlPlane when the instance is
	// already in the state a start or stop command would move it to.
	ErrStateConflict = errors.New("instance is not in a valid state for this operation")

	// ErrConvergenceTimeout is returned when polling exhausts its budget.
	ErrConvergenceTimeout = errors.New("timed out waiting for instance state")
)

// ControlPlane reports and mutates the lifecycle state of a hosted instance.
type ControlPlane interface {
	// Status returns the current state of the instance.
	Status(ctx context.Context, instanceID string) (InstanceState, error)

	// Start requests the instance to start and returns the state reported
	// with the request. Returns ErrStateConflict if it cannot be started.
	Start(ctx context.Context, instanceID string) (InstanceState, error)

	// Stop requests the instance to stop and returns the state reported
	// with the request. Returns ErrStateConflict if it cannot be stopped.
	Stop(ctx context.Context, instanceID string) (InstanceState, error)
}

// Session is an open session to one database. The caller owns it and must
// close it.
type Session interface {
	Exec(ctx context.Context, sql string) (int64, error)
	CopyFrom(ctx context.Context, r io.Reader, sql string) (int64, error)
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// Dialer opens sessions against a fixed host and credentials.
type Dialer interface {
	Dial(ctx context.Context, database string) (Session, error)
}
