package pool

import (
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Partition owns one backend server's bounded slice of the pool: a
// FIFO of free Handles and the counters/flags spec §3 describes.
// Partition never owns a Pool; `pool` is a non-owning back-reference
// used only to route Handle.Close -> Pool.releaseConnection and to
// check the global shutdown flag (spec §9, "cyclic references").
type Partition[T Client] struct {
	server ServerInfo
	pool   *Pool[T]

	free chan *Handle[T]

	// sem bounds `created` at maxConnections: acquiring a permit stands
	// for a slot towards `created` being claimed (eager bootstrap or
	// Watcher creation), releasing stands for a destroy. Borrowing an
	// idle Handle does not take a permit.
	sem *semaphore.Weighted

	created             atomic.Int64
	consecutiveFailures atomic.Int64

	unableToCreateMoreTransactions atomic.Bool
	serverIsDown                   atomic.Bool

	// signal is the coalescing single-slot channel from any actor to
	// this partition's Watcher (spec §9).
	signal chan struct{}

	minConnections   int
	maxConnections   int
	acquireIncrement int
}

func newPartition[T Client](pl *Pool[T], server ServerInfo) *Partition[T] {
	cfg := pl.cfg
	return &Partition[T]{
		server:           server,
		pool:             pl,
		free:             make(chan *Handle[T], cfg.MaxConnectionsPerServer),
		sem:              semaphore.NewWeighted(int64(cfg.MaxConnectionsPerServer)),
		signal:           make(chan struct{}, 1),
		minConnections:   cfg.MinConnectionsPerServer,
		maxConnections:   cfg.MaxConnectionsPerServer,
		acquireIncrement: cfg.AcquireIncrement,
	}
}

// pollFree is the non-blocking head of the free queue.
func (p *Partition[T]) pollFree() (*Handle[T], bool) {
	select {
	case h := <-p.free:
		return h, true
	default:
		return nil, false
	}
}

// offerFree is the non-blocking tail of the free queue. A false return
// means the queue was full, which should never happen when created <=
// max; callers treat it as a bug signal (spec §4.2).
func (p *Partition[T]) offerFree(h *Handle[T]) bool {
	select {
	case p.free <- h:
		return true
	default:
		return false
	}
}

func (p *Partition[T]) addCreated(delta int64) int64 {
	return p.created.Add(delta)
}

func (p *Partition[T]) getCreated() int64 { return p.created.Load() }

func (p *Partition[T]) getAvailable() int { return len(p.free) }

// signalRefill posts a coalescing token to the Watcher. Repeated
// signals while one is pending are dropped on the floor deliberately.
func (p *Partition[T]) signalRefill() {
	select {
	case p.signal <- struct{}{}:
	default:
	}
}

// maybeSignal implements spec §4.4's maybeSignal(partition): post a
// refill signal iff the partition isn't already at ceiling, the pool
// isn't shutting down, and availability has dropped at/under the
// configured threshold.
func (p *Partition[T]) maybeSignal() {
	if p.unableToCreateMoreTransactions.Load() {
		return
	}
	if p.pool.isShuttingDown() {
		return
	}
	max := p.maxConnections
	if max <= 0 {
		return
	}
	available := p.getAvailable()
	if available*100/max <= p.pool.cfg.PoolAvailabilityThreshold {
		p.signalRefill()
	}
}

// drainFree removes and returns every Handle currently sitting in the
// free queue, non-blocking. Used by terminateAllConnections and by the
// reapers, which operate on handles detached from the queue so no lock
// is held across a factory call or liveness probe (spec §5).
func (p *Partition[T]) drainFree() []*Handle[T] {
	var drained []*Handle[T]
	for {
		select {
		case h := <-p.free:
			drained = append(drained, h)
		default:
			return drained
		}
	}
}
