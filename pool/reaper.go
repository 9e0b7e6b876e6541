package pool

import (
	"context"
	"time"

	"github.com/452896915/Thrift-Connection-Pool/pool/logging"
)

// IdleReaper is the per-partition background actor from spec §4.7: it
// closes free Handles that have sat idle past IdleMaxAge, and
// periodically liveness-probes free Handles that haven't been tested
// recently, discarding ones that fail.
type IdleReaper[T Client] struct {
	pool      *Pool[T]
	partition *Partition[T]
}

func newIdleReaper[T Client](p *Pool[T], part *Partition[T]) *IdleReaper[T] {
	return &IdleReaper[T]{pool: p, partition: part}
}

func (r *IdleReaper[T]) period() time.Duration {
	cfg := r.pool.cfg
	switch {
	case cfg.IdleMaxAge > 0 && cfg.IdleConnectionTestPeriod > 0:
		if cfg.IdleMaxAge > cfg.IdleConnectionTestPeriod {
			return cfg.IdleMaxAge
		}
		return cfg.IdleConnectionTestPeriod
	case cfg.IdleMaxAge > 0:
		return cfg.IdleMaxAge
	case cfg.IdleConnectionTestPeriod > 0:
		return cfg.IdleConnectionTestPeriod
	default:
		return 0
	}
}

func (r *IdleReaper[T]) run() {
	period := r.period()
	if period <= 0 {
		return
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.sweep()
		case <-r.pool.shutdownCtx.Done():
			return
		}
	}
}

func (r *IdleReaper[T]) sweep() {
	cfg := r.pool.cfg
	p := r.partition
	handles := p.drainFree()
	order := scanOrder(handles, cfg.ServiceOrder)

	keep := make(map[*Handle[T]]bool, len(handles))
	for _, h := range order {
		if r.pool.isShuttingDown() {
			// Shutdown wins races with a probe in flight (spec §4.7).
			h.internalClose()
			continue
		}
		if cfg.IdleMaxAge > 0 && h.isIdleExpired(cfg.IdleMaxAge) {
			r.destroy(h)
			continue
		}
		if cfg.IdleConnectionTestPeriod > 0 && r.needsProbe(h) {
			if !r.probe(h) {
				r.destroy(h)
				continue
			}
			h.touchReset()
		}
		keep[h] = true
	}

	// Reinsert survivors in the original FIFO order; ServiceOrder only
	// governs evaluation order above, never the queue's resulting order.
	for _, h := range handles {
		if !keep[h] {
			continue
		}
		if !p.offerFree(h) {
			r.destroy(h)
		}
	}
}

func (r *IdleReaper[T]) needsProbe(h *Handle[T]) bool {
	return nowMs()-h.lastReset() >= r.pool.cfg.IdleConnectionTestPeriod.Milliseconds()
}

func (r *IdleReaper[T]) probe(h *Handle[T]) bool {
	conn, ok := h.peekConn()
	if !ok {
		return false
	}
	if r.pool.probe == nil {
		return true
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.pool.cfg.ConnectTimeout)
	defer cancel()
	if r.pool.probe(ctx, conn) {
		return true
	}
	logging.GetLogger().Debug("idle reaper liveness probe failed",
		"server", r.partition.server.String(), "handle", h.ID.String(), "error", ErrLivenessFailed)
	return false
}

func (r *IdleReaper[T]) destroy(h *Handle[T]) {
	p := r.partition
	h.internalClose()
	p.addCreated(-1)
	p.sem.Release(1)
	p.unableToCreateMoreTransactions.Store(false)
	p.maybeSignal()
	logging.GetLogger().Debug("idle reaper destroyed handle",
		"server", p.server.String(), "handle", h.ID.String())
}

// AgeReaper is the per-partition background actor from spec §4.7: it
// closes free Handles that have exceeded MaxConnectionAge. In-use
// handles are never force-closed; they are caught as expired on their
// next release (spec §4.4 step 1).
type AgeReaper[T Client] struct {
	pool      *Pool[T]
	partition *Partition[T]
}

func newAgeReaper[T Client](p *Pool[T], part *Partition[T]) *AgeReaper[T] {
	return &AgeReaper[T]{pool: p, partition: part}
}

func (r *AgeReaper[T]) run() {
	period := r.pool.cfg.MaxConnectionAge
	if period <= 0 {
		return
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.sweep()
		case <-r.pool.shutdownCtx.Done():
			return
		}
	}
}

func (r *AgeReaper[T]) sweep() {
	cfg := r.pool.cfg
	p := r.partition
	handles := p.drainFree()
	order := scanOrder(handles, cfg.ServiceOrder)

	keep := make(map[*Handle[T]]bool, len(handles))
	for _, h := range order {
		if r.pool.isShuttingDown() {
			h.internalClose()
			continue
		}
		if h.isExpired(cfg.MaxConnectionAge) {
			p.sem.Release(1)
			p.addCreated(-1)
			h.internalClose()
			p.unableToCreateMoreTransactions.Store(false)
			p.maybeSignal()
			continue
		}
		keep[h] = true
	}
	for _, h := range handles {
		if keep[h] && !p.offerFree(h) {
			h.internalClose()
		}
	}
}

func scanOrder[T Client](handles []*Handle[T], order ScanOrder) []*Handle[T] {
	if order != ScanLIFO {
		return handles
	}
	reversed := make([]*Handle[T], len(handles))
	for i, h := range handles {
		reversed[len(handles)-1-i] = h
	}
	return reversed
}
