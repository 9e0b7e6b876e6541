package pool

import "context"

// Client is the external collaborator contract from spec §6: an opaque,
// live client over some transport+protocol pair. The core never
// inspects a Client beyond these two methods; wire encoding, transport
// sockets, and stub generation are entirely the caller's concern.
//
// Close must be idempotent: the engine may call it more than once when
// a reaper and a releasing caller race (spec §4.7, "ordering policy").
type Client interface {
	IsHealthy(ctx context.Context) bool
	Close() error
}

// Multiplexed is implemented by clients created in multiplexed mode
// (thriftClientClasses in spec §6, bound into the factory closure
// rather than held in Config): the factory prepares a
// name -> stub map once at creation time, and Stub dispatches into it.
// A Client that does not implement Multiplexed is a single-service
// client and only supports Handle.Client().
type Multiplexed interface {
	Client
	Stub(name string) (any, error)
}

// ConnectionFactory turns a ServerInfo into a live Client. It must be
// thread-safe: the Watchers of different partitions call it
// concurrently.
//
// spec §6 describes the factory as create(ServerInfo, timeoutMs,
// protocol, clientSpec) -> Connection. In idiomatic Go the timeoutMs
// argument becomes the ctx deadline the caller (the Watcher, via
// PoolConfig.ConnectTimeout) sets up before invoking the factory, and
// protocol/clientSpec are pre-bound into the factory closure by
// whoever constructs the PoolConfig -- the core itself never needs to
// know which wire protocol or client constructor is in play.
type ConnectionFactory[T Client] func(ctx context.Context, server ServerInfo) (T, error)

// LivenessProbe tells the pool whether an existing Client is still
// usable. A nil LivenessProbe is treated as always-alive (spec §6).
type LivenessProbe[T Client] func(ctx context.Context, c T) bool
