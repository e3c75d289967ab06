package services

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/sirupsen/logrus"
)

// RetryPolicy defines retry behavior for failed operations
type RetryPolicy struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	JitterEnabled bool
}

// Retry policy names.
const (
	PolicyDatabaseConnect = "database_connect"
	PolicyRedisConnect    = "redis_connect"
)

// DefaultRetryPolicies returns default retry policies for the startup
// connections.
func DefaultRetryPolicies() map[string]RetryPolicy {
	return map[string]RetryPolicy{
		PolicyDatabaseConnect: {
			MaxRetries:    5,
			InitialDelay:  500 * time.Millisecond,
			MaxDelay:      8 * time.Second,
			BackoffFactor: 2.0,
			JitterEnabled: true,
		},
		PolicyRedisConnect: {
			MaxRetries:    3,
			InitialDelay:  250 * time.Millisecond,
			MaxDelay:      2 * time.Second,
			BackoffFactor: 2.0,
			JitterEnabled: false,
		},
	}
}

// ExecuteWithRetry runs operation until it succeeds, the policy is exhausted,
// or ctx is done. The last operation error is returned.
func ExecuteWithRetry(ctx context.Context, logger *logrus.Logger, name string, policy RetryPolicy, operation func(context.Context) error) error {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	delay := policy.InitialDelay
	var lastErr error
	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return fmt.Errorf("%s: %w (last error: %v)", name, err, lastErr)
			}
			return err
		}

		lastErr = operation(ctx)
		if lastErr == nil {
			if attempt > 0 {
				logger.WithFields(logrus.Fields{
					"operation": name,
					"attempts":  attempt + 1,
				}).Info("Operation recovered after retry")
			}
			return nil
		}
		if attempt == policy.MaxRetries {
			break
		}

		wait := backoffDelay(delay, policy)
		logger.WithFields(logrus.Fields{
			"operation": name,
			"attempt":   attempt + 1,
			"retry_in":  wait.String(),
			"error":     lastErr.Error(),
		}).Warn("Operation failed, retrying")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%s: %w (last error: %v)", name, ctx.Err(), lastErr)
		case <-timer.C:
		}

		delay = time.Duration(float64(delay) * policy.BackoffFactor)
		if policy.MaxDelay > 0 && delay > policy.MaxDelay {
			delay = policy.MaxDelay
		}
	}

	logger.WithFields(logrus.Fields{
		"operation": name,
		"attempts":  policy.MaxRetries + 1,
		"error":     lastErr.Error(),
	}).Error("Operation failed after all retries")
	return lastErr
}

// backoffDelay adds up to ±12.5% jitter when enabled.
func backoffDelay(base time.Duration, policy RetryPolicy) time.Duration {
	if !policy.JitterEnabled || base <= 0 {
		return base
	}
	jitter := time.Duration(float64(base) * 0.25 * (rand.Float64() - 0.5))
	return base + jitter
}
