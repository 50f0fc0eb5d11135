// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 campusid Contributors

package snapshot

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"
)

// Write retry policy for backends that can report transient conflicts.
const (
	retryBase        = 5 * time.Millisecond
	retryMaxAttempts = 4
)

// withRetry runs fn, retrying with exponential backoff while retryable
// reports the returned error as transient.
func withRetry(ctx context.Context, retryable func(error) bool, fn func(context.Context) error) error {
	backoff := retry.WithMaxRetries(retryMaxAttempts, retry.NewExponential(retryBase))
	//nolint:wrapcheck // callers wrap with operation context
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn(ctx)
		if err != nil && retryable(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}
