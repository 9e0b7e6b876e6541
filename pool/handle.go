package pool

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Handle wraps one live Client plus the bookkeeping spec §3/§4.3
// describes. It is the stable, user-facing object; the underlying
// Client is swappable (see reacquire), so callers retain their
// borrowed reference across a transient reconnect.
//
// logicallyClosed resolves an inconsistency between spec §3's data
// model note ("true iff currently handed out") and spec §8's testable
// property 2 ("h.logicallyClosed == false on return [from acquire],
// and exactly one matching release/close transitions it back to
// true"). This implementation follows the testable property, which is
// the one a conformance suite actually checks: false means the caller
// currently holds a usable Handle, true means it has been returned (is
// either idle in the partition's free queue, or destroyed). See
// DESIGN.md.
type Handle[T Client] struct {
	ID uuid.UUID

	partition *Partition[T]

	mu      sync.Mutex
	conn    T
	hasConn bool

	createdMs   int64
	lastUsedMs  int64
	lastResetMs int64

	logicallyClosed atomic.Bool
	possiblyBroken  atomic.Bool
	closeOnce       sync.Once
}

func newHandle[T Client](p *Partition[T], conn T) *Handle[T] {
	now := nowMs()
	h := &Handle[T]{
		ID:          uuid.New(),
		partition:   p,
		conn:        conn,
		hasConn:     true,
		createdMs:   now,
		lastUsedMs:  now,
		lastResetMs: now,
	}
	h.logicallyClosed.Store(true) // idle until acquired
	return h
}

func nowMs() int64 { return time.Now().UnixMilli() }

// Client returns the user-facing client. Valid only while the Handle
// is borrowed (logicallyClosed == false); callers must not retain it
// past Close/release.
func (h *Handle[T]) Client() (T, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var zero T
	if h.logicallyClosed.Load() {
		return zero, ErrInternalInvariant
	}
	if !h.hasConn {
		return zero, ErrConnectionCreate
	}
	return h.conn, nil
}

// Stub dispatches into a multiplexed client's name->stub map. It
// requires the underlying Client to implement Multiplexed.
func (h *Handle[T]) Stub(name string) (any, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.logicallyClosed.Load() || !h.hasConn {
		return nil, ErrInternalInvariant
	}
	m, ok := any(h.conn).(Multiplexed)
	if !ok {
		return nil, ErrInternalInvariant
	}
	return m.Stub(name)
}

// MarkPossiblyBroken is the caller's hint, after observing an I/O
// error on the borrowed client, that the connection should be
// liveness-checked (or discarded) before being reused.
func (h *Handle[T]) MarkPossiblyBroken() {
	h.possiblyBroken.Store(true)
}

// Close is the caller-visible release: it does not close the
// transport, it returns the Handle to its owning Partition (or
// destroys it, per the release path in spec §4.4). Idempotent.
func (h *Handle[T]) Close() error {
	if !h.logicallyClosed.CompareAndSwap(false, true) {
		return nil // double-close / never-acquired: no-op
	}
	h.mu.Lock()
	h.lastUsedMs = nowMs()
	h.mu.Unlock()
	if h.partition != nil {
		h.partition.pool.releaseConnection(h)
	}
	return nil
}

// markBorrowed transitions an idle Handle to borrowed. Returns false
// if the Handle was already borrowed (CAS lost the race).
func (h *Handle[T]) markBorrowed() bool {
	return h.logicallyClosed.CompareAndSwap(true, false)
}

// isExpired reports whether the Handle has exceeded its configured
// absolute age.
func (h *Handle[T]) isExpired(maxAge time.Duration) bool {
	if maxAge <= 0 {
		return false
	}
	h.mu.Lock()
	created := h.createdMs
	h.mu.Unlock()
	return nowMs()-created >= maxAge.Milliseconds()
}

// isIdleExpired reports whether the Handle has been idle in the free
// queue past idleMaxAge.
func (h *Handle[T]) isIdleExpired(idleMaxAge time.Duration) bool {
	if idleMaxAge <= 0 {
		return false
	}
	h.mu.Lock()
	lastUsed := h.lastUsedMs
	h.mu.Unlock()
	return nowMs()-lastUsed >= idleMaxAge.Milliseconds()
}

// lastReset returns the millisecond timestamp of the last successful
// liveness probe (or creation, if never probed).
func (h *Handle[T]) lastReset() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastResetMs
}

// touchReset records that a liveness probe just succeeded.
func (h *Handle[T]) touchReset() {
	h.mu.Lock()
	h.lastResetMs = nowMs()
	h.mu.Unlock()
}

// peekConn returns the current underlying client without any
// borrowed/idle state check. Used by reapers operating on a Handle
// that has been detached from the free queue.
func (h *Handle[T]) peekConn() (T, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.conn, h.hasConn
}

// internalClose closes the underlying Client exactly once, safe
// against concurrent reaper/release races.
func (h *Handle[T]) internalClose() {
	h.closeOnce.Do(func() {
		h.mu.Lock()
		conn, has := h.conn, h.hasConn
		h.hasConn = false
		h.mu.Unlock()
		if has {
			_ = conn.Close()
		}
	})
}

// reacquire replaces a broken underlying Client while preserving
// Handle identity, so a caller who is mid-call retains a valid
// reference across the swap. Used by obtainInternalConnection.
func (h *Handle[T]) reacquire(ctx context.Context, factory ConnectionFactory[T], server ServerInfo) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	prev, hadPrev := h.conn, h.hasConn
	newConn, err := factory(ctx, server)
	if err != nil {
		// Keep the previous connection (if any): reacquire failed, the
		// Handle's identity and any still-live connection are untouched.
		return err
	}
	if hadPrev {
		_ = prev.Close()
	}
	h.conn = newConn
	h.hasConn = true
	h.closeOnce = sync.Once{}
	now := nowMs()
	h.createdMs = now
	h.lastResetMs = now
	h.possiblyBroken.Store(false)
	return nil
}
