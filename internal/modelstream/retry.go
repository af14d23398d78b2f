package modelstream

import (
	"context"
	"errors"
	"net"
	"time"
)

// RetryPolicy bounds reconnect attempts for retriable stream failures
// (network errors, ErrStreamIdle), per spec §4.F: "retried per the stream
// policy (max attempts, base delay)". Delay backs off exponentially,
// doubling each attempt, uncapped beyond MaxAttempts.
//
// Maps to: codex-rs turn scheduler's stream retry handling (original_source,
// described in spec §4.F); the teacher's internal/llm clients call a
// non-streaming API and retry the whole request rather than resuming a
// stream, so there is no teacher code to adapt for mid-stream reconnects.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// DefaultRetryPolicy matches the teacher's activity-retry defaults
// (internal/workflow retry options) generalized to the stream transport.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 3, BaseDelay: 500 * time.Millisecond}

// IsRetriable reports whether err is a transport-level failure the stream
// policy should retry, as opposed to a terminal decode/protocol error.
func IsRetriable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrStreamIdle) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, ErrStreamClosed)
}

// Delay returns the backoff delay before retry attempt number n (1-based).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt <= 1 {
		return p.BaseDelay
	}
	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
	}
	return d
}

// Sleep waits for the attempt's backoff delay or ctx cancellation.
func (p RetryPolicy) Sleep(ctx context.Context, attempt int) error {
	t := time.NewTimer(p.Delay(attempt))
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
