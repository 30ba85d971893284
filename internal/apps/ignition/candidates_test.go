package ignition

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tgnet/e2e/internal/topology"
)

func setupTopo(t *testing.T) *topology.TopologyWrapper {
	t.Helper()
	topo := topology.NewTopologyWrapper()
	topo.AddSite("site1")
	require.NoError(t, topo.AddNode(topology.Node{Name: "dn1", Type: topology.NodeTypeDN, RadioMacs: []string{"dn1-mac"}, SiteName: "site1"}))
	require.NoError(t, topo.AddNode(topology.Node{Name: "dn2", Type: topology.NodeTypeDN, RadioMacs: []string{"dn2-mac"}, SiteName: "site1"}))
	require.NoError(t, topo.AddNode(topology.Node{Name: "cn1", Type: topology.NodeTypeCN, RadioMacs: []string{"cn1-mac"}, SiteName: "site1"}))
	return topo
}

func TestBuildCandidatesSkipsDampenedLinks(t *testing.T) {
	topo := setupTopo(t)
	require.NoError(t, topo.AddLink("dn1", "dn2", topology.LinkWireless))
	damp := NewDampeningTracker(DefaultParams())
	now := time.Now()
	damp.RecordAttempt("link-dn1-dn2", "dn1-mac", now)

	candidates := BuildCandidates(topo, damp, DefaultParams(), map[string]int{}, map[string]time.Time{}, now.Add(1*time.Second))
	require.Empty(t, candidates, "recently attempted link should still be dampened")
}

func TestBuildCandidatesPrefersPrimaryCnLink(t *testing.T) {
	topo := setupTopo(t)
	require.NoError(t, topo.AddLink("dn1", "cn1", topology.LinkWireless))
	require.NoError(t, topo.AddLink("dn2", "cn1", topology.LinkWireless))

	links := topo.LinksOfNode("cn1")
	var backupName string
	for _, l := range links {
		if l.ANode == "dn2" || l.ZNode == "dn2" {
			backupName = l.Name
		}
	}
	require.NotEmpty(t, backupName)

	damp := NewDampeningTracker(DefaultParams())
	now := time.Now()
	params := DefaultParams()
	params.BackupCnLinkInterval = 300 * time.Second

	candidates := BuildCandidates(topo, damp, params, map[string]int{}, map[string]time.Time{}, now)
	require.Len(t, candidates, 1)
	require.NotEqual(t, backupName, candidates[0].LinkName, "primary should be preferred over backup")
}

func TestBuildCandidatesNeverInitiatesFromCN(t *testing.T) {
	topo := setupTopo(t)
	require.NoError(t, topo.AddLink("cn1", "dn1", topology.LinkWireless))

	damp := NewDampeningTracker(DefaultParams())
	now := time.Now()
	candidates := BuildCandidates(topo, damp, DefaultParams(), map[string]int{}, map[string]time.Time{}, now)

	require.Len(t, candidates, 1)
	require.Equal(t, "dn1", candidates[0].ANode)
	require.Equal(t, "cn1", candidates[0].ZNode)
}

func TestBuildCandidatesRoundRobinsAcrossPasses(t *testing.T) {
	topo := setupTopo(t)
	topo.AddSite("site1")
	require.NoError(t, topo.AddNode(topology.Node{Name: "dn3", Type: topology.NodeTypeDN, RadioMacs: []string{"dn3-mac"}, SiteName: "site1"}))
	require.NoError(t, topo.AddLink("dn1", "dn2", topology.LinkWireless))
	require.NoError(t, topo.AddLink("dn1", "dn3", topology.LinkWireless))

	damp := NewDampeningTracker(DefaultParams())
	now := time.Now()
	idx := map[string]int{}

	first := BuildCandidates(topo, damp, DefaultParams(), idx, map[string]time.Time{}, now)
	require.Len(t, first, 1)

	second := BuildCandidates(topo, damp, DefaultParams(), idx, map[string]time.Time{}, now.Add(20*time.Second))
	require.Len(t, second, 1)
	require.NotEqual(t, first[0].LinkName, second[0].LinkName, "round robin should pick the other candidate link next pass")
}
