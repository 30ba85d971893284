package topologyapp

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tgnet/e2e/internal/bus"
	"github.com/tgnet/e2e/internal/topology"
)

type noopRouter struct{}

func (noopRouter) Route(bus.Envelope) error { return nil }

func testLogger() *slog.Logger { return slog.New(slog.DiscardHandler) }

func setupTopo(t *testing.T) *topology.TopologyWrapper {
	t.Helper()
	topo := topology.NewTopologyWrapper()
	topo.AddSite("site1")
	require.NoError(t, topo.AddNode(topology.Node{Name: "dn1", Type: topology.NodeTypeDN, SiteName: "site1", Status: topology.NodeOnline, LastSeen: time.Now()}))
	return topo
}

func TestReconcileStatusMarksStaleNodeOffline(t *testing.T) {
	topo := setupTopo(t)
	app := NewTopologyApp(noopRouter{}, topo, nil, nil, DefaultParams(), testLogger())

	app.reconcileStatus(time.Now().Add(1 * time.Hour))

	n, err := topo.Node("dn1")
	require.NoError(t, err)
	require.Equal(t, topology.NodeOffline, n.Status)
}

func TestReconcileStatusLeavesFreshNodeOnline(t *testing.T) {
	topo := setupTopo(t)
	app := NewTopologyApp(noopRouter{}, topo, nil, nil, DefaultParams(), testLogger())

	app.reconcileStatus(time.Now())

	n, err := topo.Node("dn1")
	require.NoError(t, err)
	require.Equal(t, topology.NodeOnline, n.Status)
}

func TestHandleStatusReportMarksNodeOnline(t *testing.T) {
	topo := setupTopo(t)
	require.NoError(t, topo.UpdateNodeStatus("dn1", topology.NodeOffline))
	app := NewTopologyApp(noopRouter{}, topo, nil, nil, DefaultParams(), testLogger())

	err := app.handle(bus.Envelope{
		Type:    bus.MsgStatusReport,
		Payload: []byte(`{"nodeName":"dn1","timestamp":1234}`),
	})
	require.NoError(t, err)

	n, err := topo.Node("dn1")
	require.NoError(t, err)
	require.Equal(t, topology.NodeOnline, n.Status)
}

type stubFetcher struct {
	adj   map[string][]string
	calls map[string]int
}

func (s stubFetcher) FetchAdjacencies(_ context.Context, nodeName string) ([]string, error) {
	if s.calls != nil {
		s.calls[nodeName]++
	}
	return s.adj[nodeName], nil
}

func TestPollRoutingAdjacenciesSkipsOfflineNodes(t *testing.T) {
	topo := setupTopo(t)
	require.NoError(t, topo.AddNode(topology.Node{Name: "dn2", Type: topology.NodeTypeDN, SiteName: "site1", Status: topology.NodeOffline}))

	fetcher := stubFetcher{adj: map[string][]string{"dn1": {"dn2"}, "dn2": {"dn1"}}, calls: map[string]int{}}
	app := NewTopologyApp(noopRouter{}, topo, nil, fetcher, DefaultParams(), testLogger())

	app.pollRoutingAdjacencies(context.Background())

	require.Equal(t, 1, fetcher.calls["dn1"], "online node should be polled once")
	require.Zero(t, fetcher.calls["dn2"], "offline node should not be polled")
}
