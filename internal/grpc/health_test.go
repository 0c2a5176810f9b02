package grpc_test

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"

	grpcHealth "github.com/EgehanKilicarslan/medassist/backend-go/internal/grpc"
	"github.com/EgehanKilicarslan/medassist/backend-go/internal/testutil"
)

type switchPinger struct {
	down atomic.Bool
}

func (p *switchPinger) Ping(context.Context) error {
	if p.down.Load() {
		return errors.New("connection refused")
	}
	return nil
}

func startHealthServer(t *testing.T, pinger grpcHealth.Pinger) (*grpcHealth.HealthServer, *grpcHealth.Client) {
	t.Helper()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	server := grpc.NewServer()
	health := grpcHealth.NewHealthServer(pinger, testutil.TestLogger())
	health.Register(server)
	go server.Serve(lis)
	t.Cleanup(server.Stop)

	client, err := grpcHealth.NewClient(lis.Addr().String())
	require.NoError(t, err)
	t.Cleanup(client.Close)

	return health, client
}

func check(client *grpcHealth.Client, service string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return client.Check(ctx, service)
}

func TestHealthServer_StartsNotServing(t *testing.T) {
	_, client := startHealthServer(t, &switchPinger{})

	assert.Error(t, check(client, ""))
	assert.Error(t, check(client, grpcHealth.ServiceName))
}

func TestHealthServer_FollowsDatabase(t *testing.T) {
	pinger := &switchPinger{}
	health, client := startHealthServer(t, pinger)

	health.Probe(context.Background())
	assert.NoError(t, check(client, ""))
	assert.NoError(t, check(client, grpcHealth.ServiceName))

	pinger.down.Store(true)
	health.Probe(context.Background())
	assert.Error(t, check(client, grpcHealth.ServiceName))

	pinger.down.Store(false)
	health.Probe(context.Background())
	assert.NoError(t, check(client, grpcHealth.ServiceName))
}

func TestHealthServer_Shutdown(t *testing.T) {
	health, client := startHealthServer(t, &switchPinger{})

	health.Probe(context.Background())
	require.NoError(t, check(client, ""))

	health.Shutdown()
	assert.Error(t, check(client, ""))

	// Probes after shutdown cannot flip the status back
	health.Probe(context.Background())
	assert.Error(t, check(client, ""))
}

func TestHealthClient_UnknownService(t *testing.T) {
	health, client := startHealthServer(t, &switchPinger{})
	health.Probe(context.Background())

	assert.Error(t, check(client, "some.other.Service"))
}
