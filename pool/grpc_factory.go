package pool

import (
	"context"
	"fmt"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
)

// GRPCClient adapts a *grpc.ClientConn to the Client contract (spec
// §6). Close is idempotent, matching the teacher's own ClientConn
// wrapper (catlittlechen-grpc-go-pool).
type GRPCClient struct {
	*grpc.ClientConn

	closeOnce sync.Once
	closeErr  error
}

// IsHealthy reports alive iff the connection is Ready or Idle.
// Idle is included because grpc.NewClient connections are lazy: a
// freshly dialed, never-yet-used connection reports Idle, not Ready.
func (c *GRPCClient) IsHealthy(_ context.Context) bool {
	switch c.ClientConn.GetState() {
	case connectivity.Ready, connectivity.Idle:
		return true
	default:
		return false
	}
}

// Close closes the underlying ClientConn exactly once.
func (c *GRPCClient) Close() error {
	c.closeOnce.Do(func() { c.closeErr = c.ClientConn.Close() })
	return c.closeErr
}

// NewGRPCConnectionFactory returns a ConnectionFactory that dials
// ServerInfo.String() with grpc.NewClient and the given dial options
// (e.g. transport credentials, which the caller must supply).
//
// This is the only file in the engine that imports
// google.golang.org/grpc -- the core (Pool/Partition/Handle/Watcher/
// reapers) never depends on a specific transport (spec §1); it only
// sees the Client/ConnectionFactory/LivenessProbe contracts of §6.
func NewGRPCConnectionFactory(dialOpts ...grpc.DialOption) ConnectionFactory[*GRPCClient] {
	return func(_ context.Context, server ServerInfo) (*GRPCClient, error) {
		conn, err := grpc.NewClient(server.String(), dialOpts...)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConnectionCreate, err)
		}
		return &GRPCClient{ClientConn: conn}, nil
	}
}

// NewGRPCLivenessProbe returns a LivenessProbe that reports alive iff
// the connection's reported state is Ready or Idle.
func NewGRPCLivenessProbe() LivenessProbe[*GRPCClient] {
	return func(ctx context.Context, c *GRPCClient) bool {
		return c.IsHealthy(ctx)
	}
}
