package pool

// ShutdownCoordinator drains and terminates every partition's free
// queue on Pool.Close (spec §4.5 "terminateAllConnections", §4.8).
// Borrowed Handles are not forcibly closed: they are destroyed when
// their caller releases them, since releaseConnection already checks
// the pool's shutdown flag and destroys instead of enqueuing.
type ShutdownCoordinator[T Client] struct {
	pool *Pool[T]
}

// terminateAllConnections clears unableToCreateMoreTransactions, drains
// each partition's free queue, and destroys every drained Handle.
func (s *ShutdownCoordinator[T]) terminateAllConnections() {
	for _, part := range s.pool.partitions {
		part.unableToCreateMoreTransactions.Store(false)
		for _, h := range part.drainFree() {
			h.internalClose()
			part.addCreated(-1)
			part.sem.Release(1)
		}
	}
}
