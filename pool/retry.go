package pool

import (
	"context"
	"fmt"

	"github.com/cenkalti/backoff/v4"

	"github.com/452896915/Thrift-Connection-Pool/pool/logging"
)

// newEmptyHandle constructs a Handle with no live connection yet, for
// the Watcher to populate via obtainInternalConnection.
func newEmptyHandle[T Client](p *Partition[T]) *Handle[T] {
	var zero T
	h := newHandle(p, zero)
	h.hasConn = false
	return h
}

// obtainInternalConnection implements spec §4.6's creation path: it
// retries factory calls up to AcquireRetryAttempts, AcquireRetryDelay
// apart, using backoff's constant strategy instead of a hand-rolled
// sleep loop. ctx should be the caller's unbounded (or shutdown-scoped)
// context -- each individual attempt gets its own ConnectTimeout budget
// (config.go's "bounds a single factory call"), so one stalled dial
// cannot starve the remaining retries of their own budget. On final
// failure the Handle's previous connection (if any) is left untouched
// -- Handle.reacquire only swaps on success -- and
// ErrConnectionAcquireFailed is surfaced. On success,
// partition.serverIsDown and the consecutive-failure counter are
// cleared.
func (p *Partition[T]) obtainInternalConnection(ctx context.Context, factory ConnectionFactory[T], h *Handle[T]) error {
	attempts := p.pool.cfg.AcquireRetryAttempts
	if attempts < 1 {
		attempts = 1
	}
	delay := p.pool.cfg.AcquireRetryDelay
	connectTimeout := p.pool.cfg.ConnectTimeout

	var b backoff.BackOff = backoff.WithMaxRetries(backoff.NewConstantBackOff(delay), uint64(attempts-1))
	b = backoff.WithContext(b, ctx)

	var lastErr error
	op := func() error {
		attemptCtx := ctx
		if connectTimeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, connectTimeout)
			defer cancel()
		}
		err := h.reacquire(attemptCtx, factory, p.server)
		if err != nil {
			lastErr = err
			p.consecutiveFailures.Add(1)
			logging.GetLogger().Warn("connection create attempt failed",
				"server", p.server.String(), "error", err)
			return err
		}
		return nil
	}

	if err := backoff.Retry(op, b); err != nil {
		if p.pool.cfg.MaxConnectionCreateFailedCount > 0 &&
			p.consecutiveFailures.Load() >= int64(p.pool.cfg.MaxConnectionCreateFailedCount) {
			p.serverIsDown.Store(true)
		}
		return fmt.Errorf("%w: %v", ErrConnectionAcquireFailed, lastErr)
	}

	p.consecutiveFailures.Store(0)
	p.serverIsDown.Store(false)
	return nil
}
