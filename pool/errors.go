package pool

import "errors"

// Sentinel errors returned by the pool engine. Callers should use
// errors.Is to classify failures; context.Canceled and
// context.DeadlineExceeded are returned unwrapped from blocking
// acquire paths instead of being folded into these.
var (
	// ErrConfigInvalid is returned by New when a PoolConfig fails validation.
	ErrConfigInvalid = errors.New("pool: invalid configuration")

	// ErrNoServersAvailable is returned by New when every configured
	// server failed eager bootstrap and none survived.
	ErrNoServersAvailable = errors.New("pool: no servers available")

	// ErrConnectionCreate is returned when a ConnectionFactory call fails.
	ErrConnectionCreate = errors.New("pool: connection create failed")

	// ErrConnectionAcquireFailed is returned by obtainInternalConnection
	// when every creation attempt failed; the Watcher and New log it. A
	// caller blocked on the partition's free queue is not handed it: it
	// sees ErrAcquisitionTimeout, its context's error, or ErrPoolClosed.
	ErrConnectionAcquireFailed = errors.New("pool: connection acquire failed")

	// ErrAcquisitionTimeout is returned when a blocking acquire exceeds
	// connectionTimeoutInMs without a context deadline driving it.
	ErrAcquisitionTimeout = errors.New("pool: acquisition timed out")

	// ErrPoolClosed is returned by GetConnection after Close, and by an
	// acquire that was blocked when Close was called.
	ErrPoolClosed = errors.New("pool: closed")

	// ErrLivenessFailed classifies a failed LivenessProbe in logs at the
	// release path (pool.go's checkLiveness) and the IdleReaper's
	// periodic probe; a failed probe destroys the Handle rather than
	// returning an error to any caller, so this sentinel never escapes
	// the package as a return value.
	ErrLivenessFailed = errors.New("pool: liveness probe failed")

	// ErrInternalInvariant guards bugs: a state transition the engine
	// believes can never happen (e.g. offering a handle into a full
	// free queue).
	ErrInternalInvariant = errors.New("pool: internal invariant violated")
)
