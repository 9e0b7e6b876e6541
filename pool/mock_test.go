package pool

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

// mockClient is the teacher-style mock client: a minimal Client
// implementation with a toggleable health flag and a close counter,
// mirroring mcpany-core's pool_test.go mockClient.
type mockClient struct {
	id int64

	mu      sync.Mutex
	healthy bool
	closed  bool
	closeN  int32
}

func newMockClient(id int64) *mockClient {
	return &mockClient{id: id, healthy: true}
}

func (c *mockClient) IsHealthy(_ context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.healthy && !c.closed
}

func (c *mockClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	atomic.AddInt32(&c.closeN, 1)
	return nil
}

func (c *mockClient) setHealthy(h bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.healthy = h
}

func (c *mockClient) closeCount() int32 {
	return atomic.LoadInt32(&c.closeN)
}

// mockFactory builds a ConnectionFactory[*mockClient] that can be told
// to fail the next N dials to a given server before succeeding.
type mockFactory struct {
	mu      sync.Mutex
	nextID  int64
	failN   map[ServerInfo]int
	created []*mockClient
}

func newMockFactory() *mockFactory {
	return &mockFactory{failN: make(map[ServerInfo]int)}
}

func (f *mockFactory) failNextN(server ServerInfo, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failN[server] = n
}

func (f *mockFactory) factory() ConnectionFactory[*mockClient] {
	return func(_ context.Context, server ServerInfo) (*mockClient, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if n := f.failN[server]; n > 0 {
			f.failN[server] = n - 1
			return nil, fmt.Errorf("mock: dial %s failed", server)
		}
		f.nextID++
		c := newMockClient(f.nextID)
		f.created = append(f.created, c)
		return c, nil
	}
}

func mockHealthProbe() LivenessProbe[*mockClient] {
	return func(ctx context.Context, c *mockClient) bool { return c.IsHealthy(ctx) }
}

// newTestPool builds a single-server pool with an injectable mockFactory
// for tests that don't need multiple servers or failure injection.
func newTestPool(t *testing.T, opts ...Option) (*Pool[*mockClient], *mockFactory) {
	t.Helper()
	f := newMockFactory()
	base := []Option{WithServers(ServerInfo{Host: "h1", Port: 1})}
	cfg, err := NewConfig(append(base, opts...)...)
	require.NoError(t, err)
	p, err := New[*mockClient](context.Background(), cfg, f.factory(), mockHealthProbe())
	require.NoError(t, err)
	return p, f
}
