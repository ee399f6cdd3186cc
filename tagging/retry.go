// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package tagging

import (
	"context"
	"log/slog"
	"time"
)

// RetryWithBackoff retries an operation until it succeeds or maxAttempts is reached.
// maxAttempts: maximum number of attempts (must be > 0)
// baseDelay: delay before the second attempt
// multiplier: growth factor applied to the delay after each failure; values <= 1 keep it constant
// Returns the error from the last attempt if all attempts fail, or ctx.Err() if
// the context ends first.
func RetryWithBackoff(ctx context.Context, operation func(attempt int) error, maxAttempts int, baseDelay time.Duration, multiplier float64) error {
	if maxAttempts <= 0 {
		return ErrInvalidMaxAttempts
	}

	var lastErr error
	delay := baseDelay
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		// Check context before attempting
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		lastErr = operation(attempt)
		if lastErr == nil {
			if attempt > 1 {
				slog.Debug("operation succeeded after retry", "attempt", attempt)
			}
			return nil
		}

		slog.Debug("operation failed, will retry", "attempt", attempt, "maxAttempts", maxAttempts, "error", lastErr)

		// Don't sleep after the last attempt
		if attempt == maxAttempts {
			break
		}

		if err := sleepContext(ctx, delay); err != nil {
			return err
		}
		if multiplier > 1 {
			delay = time.Duration(float64(delay) * multiplier)
		}
	}

	return lastErr
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
