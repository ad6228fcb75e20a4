package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

const (
	DefaultPollInterval = 45 * time.Second
	DefaultMaxWait      = 120 * time.Second
)

// RetryPolicy bounds convergence polling. It never applies to connect attempts.
type RetryPolicy struct {
	MaxWait   time.Duration    // total budget measured from the first poll
	Interval  time.Duration    // fixed delay between polls
	Retryable func(error) bool // nil means IsNotConverged
}

// DefaultRetryPolicy polls every 45s for at most 120s, i.e. three polls.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxWait:   DefaultMaxWait,
		Interval:  DefaultPollInterval,
		Retryable: IsNotConverged,
	}
}

func (p RetryPolicy) retryable(err error) bool {
	if p.Retryable == nil {
		return IsNotConverged(err)
	}
	return p.Retryable(err)
}

// notConvergedError is the retry signal raised by a poll that did not observe
// the target state.
type notConvergedError struct {
	target  InstanceState
	current InstanceState
}

func (e *notConvergedError) Error() string {
	return fmt.Sprintf("instance is %q, waiting for %q", e.current, e.target)
}

// IsNotConverged reports whether err is the signal of a poll that has not yet
// observed the target state.
func IsNotConverged(err error) bool {
	var nc *notConvergedError
	return errors.As(err, &nc)
}

// waitForState polls the control plane until the instance reports target or
// the retry policy is exhausted.
func (c *Controller) waitForState(ctx context.Context, target InstanceState) (Result, error) {
	res := Result{Outcome: OutcomeConverged}
	log := c.logger.With(zap.String("instance", c.instanceID), zap.String("target", string(target)))

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.policy.Interval
	b.MaxInterval = c.policy.Interval
	b.Multiplier = 1
	b.RandomizationFactor = 0
	b.MaxElapsedTime = c.policy.MaxWait
	if c.clock != nil {
		b.Clock = c.clock
	}
	b.Reset()

	poll := func() error {
		res.Polls++
		state, err := c.plane.Status(ctx, c.instanceID)
		if err != nil {
			err = fmt.Errorf("failed to describe instance %s: %w", c.instanceID, err)
		} else {
			res.State = state
			log.Debug("polled instance status", zap.String("state", string(state)), zap.Int("poll", res.Polls))
			if state == target {
				return nil
			}
			err = &notConvergedError{target: target, current: state}
		}
		if !c.policy.retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(_ error, _ time.Duration) {
		log.Info("waiting for instance update to complete",
			zap.Duration("elapsed", time.Duration(res.Polls)*c.policy.Interval))
	}

	var timer backoff.Timer
	if c.newTimer != nil {
		timer = c.newTimer()
	}

	err := backoff.RetryNotifyWithTimer(poll, backoff.WithContext(b, ctx), notify, timer)
	if err == nil {
		return res, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return res, ctxErr
	}
	if IsNotConverged(err) {
		res.Outcome = OutcomeTimedOut
		return res, fmt.Errorf("%w: instance %s still %q after %d polls, want %q",
			ErrConvergenceTimeout, c.instanceID, res.State, res.Polls, target)
	}
	return res, err
}
