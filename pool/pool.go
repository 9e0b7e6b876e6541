// Package pool implements the client-side RPC connection pool engine:
// a star of per-server Partitions, each backed by a bounded free queue
// of Handles and three background actors (Watcher, IdleReaper,
// AgeReaper), fronted by an AcquisitionStrategy and torn down by a
// ShutdownCoordinator.
package pool

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/452896915/Thrift-Connection-Pool/pool/logging"
)

// Pool multiplexes a bounded set of long-lived clients across a fleet
// of backend servers (spec §2). It is a thin orchestrator: all hot-path
// logic lives in Partition and AcquisitionStrategy, so contention is
// per-partition, never global.
type Pool[T Client] struct {
	cfg      *Config
	factory  ConnectionFactory[T]
	probe    LivenessProbe[T]
	strategy AcquisitionStrategy[T]

	partitions  []*Partition[T]
	watchers    []*Watcher[T]
	idleReapers []*IdleReaper[T]
	ageReapers  []*AgeReaper[T]

	closed         atomic.Bool
	shutdownCtx    context.Context
	shutdownCancel context.CancelFunc
	wg             sync.WaitGroup
}

// New validates cfg, bootstraps a Partition per surviving server, and
// starts the background actors (spec §4.1).
//
// Servers whose initial connection attempt fails are logged and
// dropped (not fatal) unless that leaves zero servers, in which case
// New fails with ErrNoServersAvailable.
func New[T Client](ctx context.Context, cfg *Config, factory ConnectionFactory[T], probe LivenessProbe[T]) (*Pool[T], error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if factory == nil {
		return nil, fmt.Errorf("%w: factory must not be nil", ErrConfigInvalid)
	}

	shutdownCtx, cancel := context.WithCancel(context.Background())
	p := &Pool[T]{
		cfg:            cfg,
		factory:        factory,
		probe:          probe,
		shutdownCtx:    shutdownCtx,
		shutdownCancel: cancel,
	}
	p.strategy = newAffinityStrategy(p)

	for _, server := range cfg.Servers {
		part := newPartition(p, server)

		if !cfg.LazyInit {
			if err := p.bootstrapOne(ctx, part); err != nil {
				logging.GetLogger().Warn("dropping server: initial connection failed",
					"server", server.String(), "error", err)
				continue
			}
			for int(part.getCreated()) < part.minConnections {
				if err := p.bootstrapOne(ctx, part); err != nil {
					logging.GetLogger().Warn("failed to reach minConnectionsPerServer",
						"server", server.String(), "error", err)
					break
				}
			}
		}

		p.partitions = append(p.partitions, part)
		p.watchers = append(p.watchers, newWatcher(p, part))
		p.idleReapers = append(p.idleReapers, newIdleReaper(p, part))
		p.ageReapers = append(p.ageReapers, newAgeReaper(p, part))
	}

	if !cfg.LazyInit && len(p.partitions) == 0 {
		cancel()
		return nil, ErrNoServersAvailable
	}

	for i := range p.partitions {
		p.wg.Add(3)
		go func(w *Watcher[T]) { defer p.wg.Done(); w.run() }(p.watchers[i])
		go func(r *IdleReaper[T]) { defer p.wg.Done(); r.run() }(p.idleReapers[i])
		go func(r *AgeReaper[T]) { defer p.wg.Done(); r.run() }(p.ageReapers[i])
	}

	return p, nil
}

// bootstrapOne claims a semaphore permit and creates exactly one
// Handle via the factory, with the configured retry policy, adding it
// to the partition's free queue on success.
func (p *Pool[T]) bootstrapOne(ctx context.Context, part *Partition[T]) error {
	if !part.sem.TryAcquire(1) {
		return ErrInternalInvariant
	}
	h := newEmptyHandle(part)
	if err := part.obtainInternalConnection(ctx, p.factory, h); err != nil {
		part.sem.Release(1)
		return err
	}
	part.addCreated(1)
	if !part.offerFree(h) {
		h.internalClose()
		part.addCreated(-1)
		part.sem.Release(1)
		return ErrInternalInvariant
	}
	return nil
}

// GetConnection delegates to the AcquisitionStrategy (spec §4.1).
func (p *Pool[T]) GetConnection(ctx context.Context) (*Handle[T], error) {
	if p.isShuttingDown() {
		return nil, ErrPoolClosed
	}
	return p.strategy.Acquire(ctx)
}

// releaseConnection implements the release path of spec §4.4.
func (p *Pool[T]) releaseConnection(h *Handle[T]) {
	part := h.partition
	if p.isShuttingDown() {
		p.destroyHandle(part, h)
		return
	}
	if h.isExpired(p.cfg.MaxConnectionAge) || (h.possiblyBroken.Load() && !p.checkLiveness(h)) {
		p.destroyHandle(part, h)
		return
	}
	if !part.offerFree(h) {
		logging.GetLogger().Error("internal invariant: free queue full on release",
			"server", part.server.String())
		p.destroyHandle(part, h)
		return
	}
}

func (p *Pool[T]) checkLiveness(h *Handle[T]) bool {
	if p.probe == nil {
		return true
	}
	conn, ok := h.peekConn()
	if !ok {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.ConnectTimeout)
	defer cancel()
	if p.probe(ctx, conn) {
		return true
	}
	logging.GetLogger().Warn("liveness probe failed on release",
		"server", h.partition.server.String(), "handle", h.ID.String(), "error", ErrLivenessFailed)
	return false
}

func (p *Pool[T]) destroyHandle(part *Partition[T], h *Handle[T]) {
	h.internalClose()
	part.addCreated(-1)
	part.sem.Release(1)
	part.unableToCreateMoreTransactions.Store(false)
	part.maybeSignal()
}

// Close sets the shutdown flag, drains and destroys every idle Handle,
// stops the background actors, and is idempotent (spec §4.8).
func (p *Pool[T]) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	p.shutdownCancel()
	(&ShutdownCoordinator[T]{pool: p}).terminateAllConnections()
	p.wg.Wait()
	return nil
}

func (p *Pool[T]) isShuttingDown() bool { return p.closed.Load() }

func (p *Pool[T]) partitionList() []*Partition[T] { return p.partitions }

// Len reports the total number of idle Handles across all partitions.
func (p *Pool[T]) Len() int {
	total := 0
	for _, part := range p.partitions {
		total += part.getAvailable()
	}
	return total
}

// Created reports the total number of live Handles (idle + borrowed)
// across all partitions.
func (p *Pool[T]) Created() int64 {
	var total int64
	for _, part := range p.partitions {
		total += part.getCreated()
	}
	return total
}
