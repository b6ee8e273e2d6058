package provider

import (
	"context"
	"math/rand"
	"time"

	"github.com/goran-ethernal/chaindexor/internal/logger"
)

// maxBackoffExponent caps the exponent so 2^retries doesn't overflow into an
// unreasonable sleep; beyond this the backoff simply stays at its ceiling.
const maxBackoffExponent = 20 // 2^20s ≈ 12 days, already far past any useful retry cadence

// jitterFraction is the +/- spread applied to each computed backoff.
const jitterFraction = 0.25

// retryForever calls op until it succeeds or ctx is cancelled, sleeping
// 2^retries seconds (jittered) between attempts. Errors are logged but
// never surfaced to the caller: provider errors are transient
// by definition and retried without limit.
func retryForever(ctx context.Context, log *logger.Logger, opName string, op func() error) error {
	var retries int
	for {
		if err := op(); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warnw("provider call failed, retrying", "op", opName, "retries", retries, "error", err)

			wait := backoffFor(retries)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			retries++
			continue
		}
		return nil
	}
}

func backoffFor(retries int) time.Duration {
	exp := retries
	if exp > maxBackoffExponent {
		exp = maxBackoffExponent
	}
	base := time.Duration(1<<uint(exp)) * time.Second

	jitter := time.Duration(float64(base) * jitterFraction * (rand.Float64()*2 - 1))
	wait := base + jitter
	if wait < 0 {
		wait = base
	}
	return wait
}
