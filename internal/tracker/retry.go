package tracker

import (
	"context"
	"time"
)

// Retry defaults match the bulk sync jobs: a stubborn, slow retry loop
// because batches run in background tasks, not user-facing requests.
const (
	DefaultMaxAttempts   = 10
	DefaultRetryInterval = 10 * time.Second
)

// CreateIssueWithRetry creates a ticket, retrying transient failures up to
// maxAttempts with a fixed interval between attempts. onRetry, if non-nil,
// is invoked once per retried attempt.
func CreateIssueWithRetry(
	ctx context.Context,
	client Client,
	payload *IssuePayload,
	maxAttempts int,
	interval time.Duration,
	onRetry func(),
) (*IssueResponse, error) {
	return withRetry(ctx, maxAttempts, interval, onRetry, func() (*IssueResponse, error) {
		return client.CreateIssue(ctx, payload)
	})
}

// UpdateIssueWithRetry updates a ticket, retrying transient failures up to
// maxAttempts with a fixed interval between attempts. onRetry, if non-nil,
// is invoked once per retried attempt.
func UpdateIssueWithRetry(
	ctx context.Context,
	client Client,
	issueID int64,
	payload *IssuePayload,
	maxAttempts int,
	interval time.Duration,
	onRetry func(),
) (*IssueResponse, error) {
	return withRetry(ctx, maxAttempts, interval, onRetry, func() (*IssueResponse, error) {
		return client.UpdateIssue(ctx, issueID, payload)
	})
}

func withRetry(
	ctx context.Context,
	maxAttempts int,
	interval time.Duration,
	onRetry func(),
	call func() (*IssueResponse, error),
) (*IssueResponse, error) {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		resp, err := call()
		if err == nil {
			return resp, nil
		}
		if !IsTransient(err) {
			return nil, err
		}
		lastErr = err

		if attempt == maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}
		if onRetry != nil {
			onRetry()
		}
	}
	return nil, lastErr
}
