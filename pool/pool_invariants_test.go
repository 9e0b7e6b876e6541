package pool

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvariant_FreeLeCreatedLeMax(t *testing.T) {
	p, _ := newTestPool(t, WithConnectionsPerServer(2, 5))
	defer p.Close()

	require.Eventually(t, func() bool { return p.Created() == 2 }, time.Second, 5*time.Millisecond)

	part := p.partitions[0]
	assert.LessOrEqual(t, part.getAvailable(), int(part.getCreated()))
	assert.LessOrEqual(t, part.getCreated(), int64(part.maxConnections))
}

func TestInvariant_LogicallyClosedTransitionsOnAcquireRelease(t *testing.T) {
	p, _ := newTestPool(t, WithConnectionsPerServer(1, 1))
	defer p.Close()

	require.Eventually(t, func() bool { return p.Created() == 1 }, time.Second, 5*time.Millisecond)

	h, err := p.GetConnection(context.Background())
	require.NoError(t, err)
	assert.False(t, h.logicallyClosed.Load(), "borrowed handle must report logicallyClosed == false")

	require.NoError(t, h.Close())
	assert.True(t, h.logicallyClosed.Load(), "released handle must report logicallyClosed == true")
}

func TestInvariant_DoubleCloseIsIdempotent(t *testing.T) {
	p, _ := newTestPool(t, WithConnectionsPerServer(1, 1))
	defer p.Close()

	require.Eventually(t, func() bool { return p.Created() == 1 }, time.Second, 5*time.Millisecond)

	h, err := p.GetConnection(context.Background())
	require.NoError(t, err)
	require.NoError(t, h.Close())
	require.NoError(t, h.Close())
}

func TestInvariant_AllConnectionsClosedExactlyOnceOnShutdown(t *testing.T) {
	f := newMockFactory()
	cfg, err := NewConfig(
		WithServers(ServerInfo{Host: "h", Port: 1}),
		WithConnectionsPerServer(3, 3),
	)
	require.NoError(t, err)
	p, err := New[*mockClient](context.Background(), cfg, f.factory(), mockHealthProbe())
	require.NoError(t, err)

	require.Eventually(t, func() bool { return p.Created() == 3 }, time.Second, 5*time.Millisecond)
	require.NoError(t, p.Close())

	require.Len(t, f.created, 3)
	for _, c := range f.created {
		assert.EqualValues(t, 1, c.closeCount())
	}
}

func TestInvariant_RefillSignalEventuallyCreatesOrTripsServerDown(t *testing.T) {
	f := newMockFactory()
	server := ServerInfo{Host: "h", Port: 1}
	f.failNextN(server, 1000)

	cfg, err := NewConfig(
		WithServers(server),
		WithConnectionsPerServer(0, 2),
		WithLazyInit(true),
		WithAcquireRetry(1, time.Millisecond),
		WithMaxConnectionCreateFailedCount(1),
	)
	require.NoError(t, err)
	p, err := New[*mockClient](context.Background(), cfg, f.factory(), mockHealthProbe())
	require.NoError(t, err)
	defer p.Close()

	part := p.partitions[0]

	require.Eventually(t, func() bool {
		part.signalRefill()
		return part.getCreated() > 0 || part.serverIsDown.Load()
	}, time.Second, 10*time.Millisecond)
}
