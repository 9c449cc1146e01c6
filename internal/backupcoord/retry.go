// Copyright 2026 The tdengine-backup-engine Authors
// This file is part of tdengine-backup-engine.
//
// tdengine-backup-engine is free software: you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// tdengine-backup-engine is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with tdengine-backup-engine. If not, see <http://www.gnu.org/licenses/>.

package backupcoord

import (
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/ZhangZui123/tdengine-backup-engine/pkg/errs"
)

// RetryConfig configures the coordinator's uninterruptible wall-clock retry
// loop (spec §5, §6.4: error_retry_max, error_retry_interval_s).
type RetryConfig struct {
	MaxAttempts int
	Interval    time.Duration
}

// withRetry runs op at most cfg.MaxAttempts times in total, retrying only
// on errors whose Kind is Retryable, with a fixed cfg.Interval between
// attempts. A non-retryable error (including one that is not an
// *errs.Error) is returned immediately; exhausting the attempt budget
// wraps the last error as RetryExhausted.
func withRetry(cfg RetryConfig, op func() error) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	bo := backoff.WithMaxRetries(backoff.NewConstantBackOff(cfg.Interval), uint64(cfg.MaxAttempts-1))

	var lastErr error
	attempts := 0
	permanent := false
	retryErr := backoff.Retry(func() error {
		attempts++
		err := op()
		lastErr = err
		if err == nil {
			return nil
		}
		if e, ok := errs.As(err); !ok || !e.Kind.Retryable() {
			permanent = true
			return backoff.Permanent(err)
		}
		return err
	}, bo)

	if retryErr == nil {
		return nil
	}
	if !permanent && attempts >= cfg.MaxAttempts {
		return errs.Wrap(errs.RetryExhausted, lastErr, "retry budget exhausted")
	}
	return lastErr
}
