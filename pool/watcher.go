package pool

import (
	"github.com/452896915/Thrift-Connection-Pool/pool/logging"
)

// Watcher is the per-partition background actor from spec §4.6: it
// refills a partition on demand, in batches bounded by
// AcquireIncrement, and after each batch, whether or not it succeeded,
// tops the partition up to MinConnectionsPerServer.
type Watcher[T Client] struct {
	pool      *Pool[T]
	partition *Partition[T]
	factory   ConnectionFactory[T]
}

func newWatcher[T Client](p *Pool[T], part *Partition[T]) *Watcher[T] {
	return &Watcher[T]{pool: p, partition: part, factory: p.factory}
}

// run is the Watcher loop. It exits when the pool shuts down.
func (w *Watcher[T]) run() {
	first := true
	for {
		skipBlock := first && !w.pool.cfg.LazyInit
		if !skipBlock {
			select {
			case <-w.partition.signal:
			case <-w.pool.shutdownCtx.Done():
				return
			}
		}
		first = false

		if w.pool.isShuttingDown() {
			return
		}
		w.fillToCeiling()
	}
}

func (w *Watcher[T]) fillToCeiling() {
	p := w.partition
	max := p.maxConnections
	created := int(p.getCreated())
	deficit := max - created
	if deficit <= 0 {
		p.unableToCreateMoreTransactions.Store(true)
		return
	}

	if max > 0 {
		available := p.getAvailable()
		if available*100/max > w.pool.cfg.PoolAvailabilityThreshold {
			return // someone else already closed the gap
		}
	}

	batch := deficit
	if batch > p.acquireIncrement {
		batch = p.acquireIncrement
	}
	w.createBatch(batch)

	if remaining := p.minConnections - int(p.getCreated()); remaining > 0 {
		w.createBatch(remaining)
	}
}

// createBatch tries to create up to n Handles. A single factory
// failure stops the whole batch (spec §4.6 step 4): the remaining
// slots are left for the next signal.
func (w *Watcher[T]) createBatch(n int) {
	p := w.partition
	for i := 0; i < n; i++ {
		if w.pool.isShuttingDown() {
			return
		}
		if !p.sem.TryAcquire(1) {
			p.unableToCreateMoreTransactions.Store(true)
			return
		}

		h := newEmptyHandle(p)
		err := p.obtainInternalConnection(w.pool.shutdownCtx, w.factory, h)
		if err != nil {
			p.sem.Release(1)
			logging.GetLogger().Error("watcher batch create stopped",
				"server", p.server.String(), "error", err)
			return
		}

		p.addCreated(1)
		if !p.offerFree(h) {
			logging.GetLogger().Error("internal invariant: free queue full on create",
				"server", p.server.String())
			h.internalClose()
			p.addCreated(-1)
			p.sem.Release(1)
			return
		}
	}
}
