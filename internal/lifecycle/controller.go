package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// Config holds the fixed parameters of a Controller.
type Config struct {
	InstanceID string
	Policy     RetryPolicy

	// RestartAfterStop makes Connect start the instance again after it had
	// to stop a running one. When false, that path gives up with the instance
	// left stopped.
	RestartAfterStop bool
}

// Controller owns the start/stop transitions of a single instance and opens
// sessions against it.
type Controller struct {
	plane            ControlPlane
	dialer           Dialer
	instanceID       string
	policy           RetryPolicy
	restartAfterStop bool

	logger   *zap.Logger
	clock    backoff.Clock
	newTimer func() backoff.Timer
}

// Option customizes a Controller.
type Option func(*Controller)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// WithClock replaces the wall clock and sleep timer used while polling.
func WithClock(clock backoff.Clock, newTimer func() backoff.Timer) Option {
	return func(c *Controller) {
		c.clock = clock
		c.newTimer = newTimer
	}
}

// New creates a Controller for cfg.InstanceID.
func New(plane ControlPlane, dialer Dialer, cfg Config, opts ...Option) *Controller {
	c := &Controller{
		plane:            plane,
		dialer:           dialer,
		instanceID:       cfg.InstanceID,
		policy:           cfg.Policy,
		restartAfterStop: cfg.RestartAfterStop,
		logger:           zap.NewNop(),
	}

	// A zero MaxWait would let backoff poll forever.
	if c.policy.Interval <= 0 {
		c.policy.Interval = DefaultPollInterval
	}
	if c.policy.MaxWait <= 0 {
		c.policy.MaxWait = DefaultMaxWait
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// InstanceID returns the identifier of the managed instance.
func (c *Controller) InstanceID() string {
	return c.instanceID
}

// Status queries the control plane once.
func (c *Controller) Status(ctx context.Context) (InstanceState, error) {
	state, err := c.plane.Status(ctx, c.instanceID)
	if err != nil {
		return "", fmt.Errorf("failed to describe instance %s: %w", c.instanceID, err)
	}
	return state, nil
}

// StartInstance starts the instance and waits until it is available.
func (c *Controller) StartInstance(ctx context.Context) (Result, error) {
	unlock := instanceLocks.Lock(c.instanceID)
	defer unlock()

	return c.startInstance(ctx)
}

// StopInstance stops the instance and waits until it is stopped.
func (c *Controller) StopInstance(ctx context.Context) (Result, error) {
	unlock := instanceLocks.Lock(c.instanceID)
	defer unlock()

	return c.stopInstance(ctx)
}

func (c *Controller) startInstance(ctx context.Context) (Result, error) {
	state, err := c.plane.Start(ctx, c.instanceID)
	if errors.Is(err, ErrStateConflict) {
		c.logger.Info("instance is already started", zap.String("instance", c.instanceID), zap.Error(err))
		return Result{Outcome: OutcomeAlreadyInState}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("failed to start instance %s: %w", c.instanceID, err)
	}

	c.logger.Info("instance is being started", zap.String("instance", c.instanceID), zap.String("state", string(state)))
	return c.waitForState(ctx, StateAvailable)
}

func (c *Controller) stopInstance(ctx context.Context) (Result, error) {
	state, err := c.plane.Stop(ctx, c.instanceID)
	if errors.Is(err, ErrStateConflict) {
		c.logger.Info("instance is already stopped", zap.String("instance", c.instanceID), zap.Error(err))
		return Result{Outcome: OutcomeAlreadyInState}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("failed to stop instance %s: %w", c.instanceID, err)
	}

	c.logger.Info("instance is being stopped", zap.String("instance", c.instanceID), zap.String("state", string(state)))
	return c.waitForState(ctx, StateStopped)
}

// Connect opens a session to database. If the direct attempt fails the
// instance is cycled through stop and start and the connection is retried
// once. A nil Session means every attempt failed; the reason is logged.
func (c *Controller) Connect(ctx context.Context, database string) Session {
	log := c.logger.With(zap.String("instance", c.instanceID), zap.String("database", database))

	log.Info("trying to establish connection")
	session, err := c.dialer.Dial(ctx, database)
	if err == nil {
		log.Info("connection established")
		return session
	}
	log.Info("cannot connect, restarting instance", zap.Error(err))

	unlock := instanceLocks.Lock(c.instanceID)
	defer unlock()

	res, err := c.stopInstance(ctx)
	if err != nil {
		log.Error("cannot stop instance", zap.Error(err), zap.Stringer("outcome", res.Outcome), zap.Int("polls", res.Polls))
		return nil
	}

	if res.Outcome == OutcomeConverged && !c.restartAfterStop {
		log.Error("instance was running and has been stopped; it is not restarted automatically",
			zap.String("state", string(res.State)))
		return nil
	}

	if res, err := c.startInstance(ctx); err != nil {
		log.Error("cannot start instance", zap.Error(err), zap.Stringer("outcome", res.Outcome), zap.Int("polls", res.Polls))
		return nil
	}

	session, err = c.dialer.Dial(ctx, database)
	if err != nil {
		log.Error("cannot connect after restarting instance", zap.Error(err))
		return nil
	}

	log.Info("connection established")
	return session
}
