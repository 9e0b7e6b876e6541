package pool

import (
	"fmt"
	"time"
)

// Protocol selects the wire protocol a ConnectionFactory dials with.
// The core never encodes or decodes anything itself; Protocol is pure
// metadata threaded through to the caller's factory closure.
type Protocol int

const (
	ProtocolBinary Protocol = iota
	ProtocolCompact
	ProtocolJSON
	ProtocolTuple
)

func (p Protocol) String() string {
	switch p {
	case ProtocolBinary:
		return "binary"
	case ProtocolCompact:
		return "compact"
	case ProtocolJSON:
		return "json"
	case ProtocolTuple:
		return "tuple"
	default:
		return "unknown"
	}
}

// ScanOrder controls only the traversal direction reapers use over a
// partition's free queue (spec §9, serviceOrder). Acquisition order is
// always FIFO regardless of this setting.
type ScanOrder int

const (
	ScanFIFO ScanOrder = iota
	ScanLIFO
)

// Config is the immutable-after-construction PoolConfig of spec §3/§6.
type Config struct {
	// Name is the pool's label (poolName). The engine does not read it:
	// log lines do not carry it, and Manager.Register takes its key
	// explicitly.
	Name string

	// Servers is the initial server list (thriftServers). At least one
	// is required.
	Servers []ServerInfo

	// ConnectTimeout bounds a single factory call.
	ConnectTimeout time.Duration

	// Protocol is metadata passed through to the caller's factory.
	Protocol Protocol

	// MinConnectionsPerServer is the floor the Watcher fills to.
	MinConnectionsPerServer int

	// MaxConnectionsPerServer is the partition's free-queue capacity
	// and the ceiling on `created`.
	MaxConnectionsPerServer int

	// IdleMaxAge is the idle TTL; 0 disables idle reaping.
	IdleMaxAge time.Duration

	// IdleConnectionTestPeriod is the liveness-probe period on idle
	// handles; 0 disables periodic liveness testing.
	IdleConnectionTestPeriod time.Duration

	// MaxConnectionAge is the absolute TTL; 0 disables age reaping.
	MaxConnectionAge time.Duration

	// LazyInit defers eager creation and the Watcher's first wake to
	// the first real deficit signal.
	LazyInit bool

	// AcquireIncrement bounds the Watcher's per-wake creation batch.
	AcquireIncrement int

	// AcquireRetryAttempts bounds obtainInternalConnection's retries.
	AcquireRetryAttempts int

	// AcquireRetryDelay is the backoff between creation retries.
	AcquireRetryDelay time.Duration

	// MaxConnectionCreateFailedCount trips serverIsDown after this many
	// consecutive factory failures on a partition.
	MaxConnectionCreateFailedCount int

	// ConnectionTimeout bounds a caller's blocking getConnection when
	// no ctx deadline is supplied; 0 means wait forever.
	ConnectionTimeout time.Duration

	// PoolAvailabilityThreshold is the integer percentage of
	// available/max at or below which a refill signal fires.
	PoolAvailabilityThreshold int

	// ServiceOrder controls reaper traversal direction.
	ServiceOrder ScanOrder
}

// Option mutates a Config during construction.
type Option func(*Config)

// WithName sets the pool's label.
func WithName(name string) Option { return func(c *Config) { c.Name = name } }

// WithServers sets the initial server list.
func WithServers(servers ...ServerInfo) Option {
	return func(c *Config) { c.Servers = append([]ServerInfo(nil), servers...) }
}

// WithConnectTimeout sets the per-connect factory timeout.
func WithConnectTimeout(d time.Duration) Option { return func(c *Config) { c.ConnectTimeout = d } }

// WithProtocol sets the wire protocol selector metadata.
func WithProtocol(p Protocol) Option { return func(c *Config) { c.Protocol = p } }

// WithConnectionsPerServer sets the per-partition min/max.
func WithConnectionsPerServer(min, max int) Option {
	return func(c *Config) { c.MinConnectionsPerServer = min; c.MaxConnectionsPerServer = max }
}

// WithIdleMaxAge sets the idle TTL.
func WithIdleMaxAge(d time.Duration) Option { return func(c *Config) { c.IdleMaxAge = d } }

// WithIdleConnectionTestPeriod sets the liveness-probe period.
func WithIdleConnectionTestPeriod(d time.Duration) Option {
	return func(c *Config) { c.IdleConnectionTestPeriod = d }
}

// WithMaxConnectionAge sets the absolute TTL.
func WithMaxConnectionAge(d time.Duration) Option { return func(c *Config) { c.MaxConnectionAge = d } }

// WithLazyInit defers eager fill.
func WithLazyInit(lazy bool) Option { return func(c *Config) { c.LazyInit = lazy } }

// WithAcquireIncrement sets the Watcher batch size.
func WithAcquireIncrement(n int) Option { return func(c *Config) { c.AcquireIncrement = n } }

// WithAcquireRetry sets retry attempts and delay for creation.
func WithAcquireRetry(attempts int, delay time.Duration) Option {
	return func(c *Config) { c.AcquireRetryAttempts = attempts; c.AcquireRetryDelay = delay }
}

// WithMaxConnectionCreateFailedCount sets the server-down trip count.
func WithMaxConnectionCreateFailedCount(n int) Option {
	return func(c *Config) { c.MaxConnectionCreateFailedCount = n }
}

// WithConnectionTimeout sets the caller blocking-acquire timeout.
func WithConnectionTimeout(d time.Duration) Option {
	return func(c *Config) { c.ConnectionTimeout = d }
}

// WithPoolAvailabilityThreshold sets the refill-signal percentage.
func WithPoolAvailabilityThreshold(pct int) Option {
	return func(c *Config) { c.PoolAvailabilityThreshold = pct }
}

// WithServiceOrder sets the reaper scan direction.
func WithServiceOrder(o ScanOrder) Option { return func(c *Config) { c.ServiceOrder = o } }

// NewConfig builds a Config from defaults plus the given options, then
// validates it.
func NewConfig(opts ...Option) (*Config, error) {
	c := &Config{
		Name:                           "pool",
		ConnectTimeout:                 5 * time.Second,
		MinConnectionsPerServer:        0,
		MaxConnectionsPerServer:        8,
		AcquireIncrement:               1,
		AcquireRetryAttempts:           3,
		AcquireRetryDelay:              100 * time.Millisecond,
		MaxConnectionCreateFailedCount: 5,
		ConnectionTimeout:              0,
		PoolAvailabilityThreshold:      20,
		ServiceOrder:                   ScanFIFO,
	}
	for _, opt := range opts {
		opt(c)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) validate() error {
	if len(c.Servers) == 0 {
		return fmt.Errorf("%w: at least one server is required", ErrConfigInvalid)
	}
	if c.MaxConnectionsPerServer <= 0 {
		return fmt.Errorf("%w: maxConnectionsPerServer must be positive", ErrConfigInvalid)
	}
	if c.MinConnectionsPerServer < 0 || c.MinConnectionsPerServer > c.MaxConnectionsPerServer {
		return fmt.Errorf("%w: invalid minConnectionsPerServer/maxConnectionsPerServer configuration", ErrConfigInvalid)
	}
	if c.AcquireIncrement <= 0 {
		return fmt.Errorf("%w: acquireIncrement must be positive", ErrConfigInvalid)
	}
	if c.PoolAvailabilityThreshold < 0 || c.PoolAvailabilityThreshold > 100 {
		return fmt.Errorf("%w: poolAvailabilityThreshold must be within [0,100]", ErrConfigInvalid)
	}
	seen := make(map[ServerInfo]struct{}, len(c.Servers))
	for _, s := range c.Servers {
		if _, dup := seen[s]; dup {
			return fmt.Errorf("%w: duplicate server %s", ErrConfigInvalid, s)
		}
		seen[s] = struct{}{}
	}
	return nil
}
