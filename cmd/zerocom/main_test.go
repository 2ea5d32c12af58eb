package main

import (
	"context"
	"net"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZentaChain/zerocom/pkg/config"
	"github.com/ZentaChain/zerocom/pkg/network"
)

type fixedStats network.Stats

func (f fixedStats) Stats() network.Stats { return network.Stats(f) }

func TestFetchStats(t *testing.T) {
	status := network.NewStatusServer(fixedStats{Address: "127.0.0.1:8888", AcceptedConnections: 2}, nil)
	ts := httptest.NewServer(status.Handler())
	defer ts.Close()

	stats, err := fetchStats(ts.URL+"/", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8888", stats.Address)
	assert.Equal(t, uint64(2), stats.AcceptedConnections)

	_, err = fetchStats(ts.URL+"/missing", time.Second)
	assert.Error(t, err)
}

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func TestRunServer(t *testing.T) {
	cfg := config.Default()
	cfg.Server.Listen = freeAddr(t)
	cfg.Status.Enabled = true
	cfg.Status.Listen = freeAddr(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runServer(ctx, cfg, zerolog.Nop(), false, 10*time.Millisecond) }()

	var c *network.Client
	require.Eventually(t, func() bool {
		var err error
		c, err = network.Dial(context.Background(), cfg.Server.Listen)
		return err == nil
	}, 2*time.Second, 20*time.Millisecond)
	defer c.Close()
	require.NoError(t, c.Connect("tok-A"))

	var stats *network.Stats
	require.Eventually(t, func() bool {
		var err error
		stats, err = fetchStats("http://"+cfg.Status.Listen, time.Second)
		return err == nil
	}, 2*time.Second, 20*time.Millisecond)
	assert.Equal(t, 1, stats.ActiveConnections)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestIdleFor(t *testing.T) {
	start := time.Now()
	require.NoError(t, idleFor(context.Background(), nil, 30*time.Millisecond, 0))
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, idleFor(ctx, nil, time.Second, 0), context.Canceled)
}
