// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package retry

import (
	"context"
	"math"
	"math/rand"
	"time"

	stepmgrerrors "github.com/jontk/slurm-stepmgr/pkg/errors"
)

// Policy defines the interface for agent dispatch retry policies. It
// governs how many times, and with what delay, a failed RPC to a
// node's slurmd agent is retried before the dispatcher gives up on
// that node.
type Policy interface {
	// ShouldRetry reports whether a dispatch that failed with err on
	// the given attempt (0-indexed) should be retried.
	ShouldRetry(ctx context.Context, err error, attempt int) bool

	// WaitTime returns the wait time before the next retry.
	WaitTime(attempt int) time.Duration

	// MaxRetries returns the maximum number of retries.
	MaxRetries() int
}

// DispatchExponentialBackoff implements exponential backoff with optional
// jitter for agent dispatch retries.
type DispatchExponentialBackoff struct {
	maxRetries    int
	minWaitTime   time.Duration
	maxWaitTime   time.Duration
	backoffFactor float64
	jitter        bool
}

// NewDispatchExponentialBackoff creates an exponential backoff retry policy
// with the defaults a stock slurmctld agent queue uses.
func NewDispatchExponentialBackoff() *DispatchExponentialBackoff {
	return &DispatchExponentialBackoff{
		maxRetries:    3,
		minWaitTime:   1 * time.Second,
		maxWaitTime:   30 * time.Second,
		backoffFactor: 2.0,
		jitter:        true,
	}
}

// WithMaxRetries sets the maximum number of retries.
func (e *DispatchExponentialBackoff) WithMaxRetries(maxRetries int) *DispatchExponentialBackoff {
	e.maxRetries = maxRetries
	return e
}

// WithMinWaitTime sets the minimum wait time.
func (e *DispatchExponentialBackoff) WithMinWaitTime(minWaitTime time.Duration) *DispatchExponentialBackoff {
	e.minWaitTime = minWaitTime
	return e
}

// WithMaxWaitTime sets the maximum wait time.
func (e *DispatchExponentialBackoff) WithMaxWaitTime(maxWaitTime time.Duration) *DispatchExponentialBackoff {
	e.maxWaitTime = maxWaitTime
	return e
}

// WithBackoffFactor sets the backoff factor.
func (e *DispatchExponentialBackoff) WithBackoffFactor(backoffFactor float64) *DispatchExponentialBackoff {
	e.backoffFactor = backoffFactor
	return e
}

// WithJitter enables or disables jitter.
func (e *DispatchExponentialBackoff) WithJitter(jitter bool) *DispatchExponentialBackoff {
	e.jitter = jitter
	return e
}

// ShouldRetry reports whether the dispatch should be retried.
func (e *DispatchExponentialBackoff) ShouldRetry(ctx context.Context, err error, attempt int) bool {
	if attempt >= e.maxRetries {
		return false
	}

	select {
	case <-ctx.Done():
		return false
	default:
	}

	if err == nil {
		return false
	}

	return stepmgrerrors.IsRetryable(err)
}

// WaitTime returns the wait time before the next retry.
func (e *DispatchExponentialBackoff) WaitTime(attempt int) time.Duration {
	if attempt <= 0 {
		return e.minWaitTime
	}

	waitTime := time.Duration(float64(e.minWaitTime) * math.Pow(e.backoffFactor, float64(attempt-1)))

	if waitTime > e.maxWaitTime {
		waitTime = e.maxWaitTime
	}

	if e.jitter {
		jitterAmount := time.Duration(rand.Float64() * float64(waitTime) * 0.1)
		waitTime += jitterAmount
	}

	return waitTime
}

// MaxRetries returns the maximum number of retries.
func (e *DispatchExponentialBackoff) MaxRetries() int {
	return e.maxRetries
}

// FixedDelay implements a fixed delay retry policy.
type FixedDelay struct {
	maxRetries int
	delay      time.Duration
}

// NewFixedDelay creates a new fixed delay retry policy.
func NewFixedDelay(maxRetries int, delay time.Duration) *FixedDelay {
	return &FixedDelay{
		maxRetries: maxRetries,
		delay:      delay,
	}
}

// ShouldRetry reports whether the dispatch should be retried.
func (f *FixedDelay) ShouldRetry(ctx context.Context, err error, attempt int) bool {
	if attempt >= f.maxRetries {
		return false
	}

	select {
	case <-ctx.Done():
		return false
	default:
	}

	if err == nil {
		return false
	}

	return stepmgrerrors.IsRetryable(err)
}

// WaitTime returns the fixed delay regardless of attempt.
func (f *FixedDelay) WaitTime(attempt int) time.Duration {
	return f.delay
}

// MaxRetries returns the maximum number of retries.
func (f *FixedDelay) MaxRetries() int {
	return f.maxRetries
}

// NoRetry never retries: a failed agent RPC is logged and not resent.
// agentqueue.New uses SingleRetry, not NoRetry, when given a nil
// policy.
type NoRetry struct{}

// NewNoRetry creates a no-retry policy.
func NewNoRetry() *NoRetry {
	return &NoRetry{}
}

// ShouldRetry always returns false.
func (n *NoRetry) ShouldRetry(ctx context.Context, err error, attempt int) bool {
	return false
}

// WaitTime returns zero duration.
func (n *NoRetry) WaitTime(attempt int) time.Duration {
	return 0
}

// MaxRetries returns zero.
func (n *NoRetry) MaxRetries() int {
	return 0
}

// SingleRetry retries exactly once, matching the agent queue's
// default of one resend before a node is marked unresponsive.
func SingleRetry() *FixedDelay {
	return NewFixedDelay(1, 0)
}
