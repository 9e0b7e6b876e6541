package pool

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// S1: eager init fills MinConnectionsPerServer, and a Handle released
// without being destroyed is handed back out on the next acquire.
func TestScenario_EagerInitRoundTrip(t *testing.T) {
	p, f := newTestPool(t, WithConnectionsPerServer(1, 1))
	defer p.Close()

	require.Eventually(t, func() bool { return p.Created() == 1 }, time.Second, 5*time.Millisecond)

	h1, err := p.GetConnection(context.Background())
	require.NoError(t, err)
	c1, err := h1.Client()
	require.NoError(t, err)
	require.NoError(t, h1.Close())

	h2, err := p.GetConnection(context.Background())
	require.NoError(t, err)
	c2, err := h2.Client()
	require.NoError(t, err)

	assert.Same(t, h1, h2)
	assert.Same(t, c1, c2)
	require.NoError(t, h2.Close())

	assert.Len(t, f.created, 1)
}

// S2: borrowing past the availability threshold wakes the Watcher,
// which refills the partition up to its ceiling.
func TestScenario_ThresholdRefill(t *testing.T) {
	p, _ := newTestPool(t,
		WithConnectionsPerServer(2, 4),
		WithPoolAvailabilityThreshold(80),
		WithAcquireIncrement(4),
	)
	defer p.Close()

	require.Eventually(t, func() bool { return p.Created() == 2 }, time.Second, 5*time.Millisecond)

	h, err := p.GetConnection(context.Background())
	require.NoError(t, err)

	require.Eventually(t, func() bool { return p.Created() == 4 }, time.Second, 5*time.Millisecond)
	require.NoError(t, h.Close())
}

// S3: with two single-capacity partitions, the second acquire is
// pointed at the partition the first one just emptied, and still
// succeeds without blocking, which is only possible if the strategy
// falls through to the other partition.
func TestScenario_FallThroughAcrossPartitions(t *testing.T) {
	f := newMockFactory()
	cfg, err := NewConfig(
		WithServers(ServerInfo{Host: "h0", Port: 0}, ServerInfo{Host: "h1", Port: 1}),
		WithConnectionsPerServer(1, 1),
	)
	require.NoError(t, err)
	p, err := New[*mockClient](context.Background(), cfg, f.factory(), mockHealthProbe())
	require.NoError(t, err)
	defer p.Close()

	require.Eventually(t, func() bool { return p.Created() == 2 }, time.Second, 5*time.Millisecond)

	strategy := p.strategy.(*affinityStrategy[*mockClient])
	strategy.next.Store(0)
	h1, err := p.GetConnection(context.Background())
	require.NoError(t, err)
	strategy.next.Store(0) // same affine pick as h1: that partition is now empty
	h2, err := p.GetConnection(context.Background())
	require.NoError(t, err)

	assert.NotEqual(t, h1.partition.server, h2.partition.server)

	require.NoError(t, h1.Close())
	require.NoError(t, h2.Close())
}

// S4: a blocking acquire against an exhausted, single-capacity
// partition times out with ErrAcquisitionTimeout rather than hanging
// or surfacing a bare context.DeadlineExceeded.
func TestScenario_AcquisitionTimeout(t *testing.T) {
	p, _ := newTestPool(t,
		WithConnectionsPerServer(1, 1),
		WithConnectionTimeout(30*time.Millisecond),
	)
	defer p.Close()

	require.Eventually(t, func() bool { return p.Created() == 1 }, time.Second, 5*time.Millisecond)

	h, err := p.GetConnection(context.Background())
	require.NoError(t, err)

	_, err = p.GetConnection(context.Background())
	assert.ErrorIs(t, err, ErrAcquisitionTimeout)

	require.NoError(t, h.Close())
}

// S5: a Handle marked possibly-broken on release fails its liveness
// check, is destroyed rather than recycled, and a subsequent acquire
// gets a freshly created client.
func TestScenario_BrokenOnReturnRecovery(t *testing.T) {
	p, _ := newTestPool(t, WithConnectionsPerServer(1, 1))
	defer p.Close()

	require.Eventually(t, func() bool { return p.Created() == 1 }, time.Second, 5*time.Millisecond)

	h, err := p.GetConnection(context.Background())
	require.NoError(t, err)
	c, err := h.Client()
	require.NoError(t, err)

	c.setHealthy(false)
	h.MarkPossiblyBroken()
	require.NoError(t, h.Close())

	assert.Eventually(t, func() bool { return c.closeCount() == 1 }, time.Second, 5*time.Millisecond)

	h2, err := p.GetConnection(context.Background())
	require.NoError(t, err)
	c2, err := h2.Client()
	require.NoError(t, err)

	assert.NotSame(t, c, c2)
	require.NoError(t, h2.Close())
}

// S6: a server whose factory keeps failing trips serverIsDown after
// MaxConnectionCreateFailedCount consecutive failures, while a
// healthy sibling partition keeps serving connections.
func TestScenario_ServerDownLatchAndFallThrough(t *testing.T) {
	f := newMockFactory()
	badServer := ServerInfo{Host: "bad", Port: 0}
	goodServer := ServerInfo{Host: "good", Port: 1}
	f.failNextN(badServer, 1000)

	cfg, err := NewConfig(
		WithServers(badServer, goodServer),
		WithConnectionsPerServer(0, 1),
		WithLazyInit(true),
		WithAcquireRetry(1, time.Millisecond),
		WithMaxConnectionCreateFailedCount(2),
	)
	require.NoError(t, err)
	p, err := New[*mockClient](context.Background(), cfg, f.factory(), mockHealthProbe())
	require.NoError(t, err)
	defer p.Close()

	badPart := partitionFor(p, badServer)
	goodPart := partitionFor(p, goodServer)

	require.Eventually(t, func() bool {
		badPart.signalRefill()
		return badPart.serverIsDown.Load()
	}, time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		goodPart.signalRefill()
		return goodPart.getCreated() == 1
	}, time.Second, 10*time.Millisecond)

	h, err := p.GetConnection(context.Background())
	require.NoError(t, err)
	assert.Equal(t, goodServer, h.partition.server)
	require.NoError(t, h.Close())
}

func partitionFor[T Client](p *Pool[T], server ServerInfo) *Partition[T] {
	for _, part := range p.partitions {
		if part.server == server {
			return part
		}
	}
	return nil
}
