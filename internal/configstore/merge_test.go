package configstore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMergeLaterLayerWins(t *testing.T) {
	base := JSONObject{"radioParamsBase": JSONObject{"fwParams": JSONObject{"laMaxMcs": float64(12)}}}
	nodeOverride := JSONObject{"radioParamsBase": JSONObject{"fwParams": JSONObject{"laMaxMcs": float64(10)}}}

	merged := Merge(base, nil, nil, nil, nil, nodeOverride)
	fw := merged["radioParamsBase"].(JSONObject)["fwParams"].(JSONObject)
	require.InDelta(t, 10, fw["laMaxMcs"], 0)
}

func TestMergeArraysReplace(t *testing.T) {
	base := JSONObject{"sysParams": JSONObject{"dnsServers": []any{"1.1.1.1"}}}
	override := JSONObject{"sysParams": JSONObject{"dnsServers": []any{"8.8.8.8", "8.8.4.4"}}}

	merged := Merge(base, override)
	servers := merged["sysParams"].(JSONObject)["dnsServers"].([]any)
	require.Equal(t, []any{"8.8.8.8", "8.8.4.4"}, servers)
}

func TestCanonicalMd5RoundTrip(t *testing.T) {
	cfgA := JSONObject{"b": 2, "a": 1}
	cfgB := JSONObject{"a": 1, "b": 2}

	md5A, err := CanonicalMd5(cfgA)
	require.NoError(t, err)
	md5B, err := CanonicalMd5(cfgB)
	require.NoError(t, err)
	require.Equal(t, md5A, md5B, "key insertion order must not affect configMd5")
}

func TestConfigHelperEffectiveConfigMd5MatchesDirectMerge(t *testing.T) {
	helper := NewConfigHelper()
	helper.SetBase("RELEASE_1", JSONObject{"sysParams": JSONObject{"timezone": "UTC"}})
	helper.SetNodeOverride("node0", JSONObject{"sysParams": JSONObject{"timezone": "America/Los_Angeles"}})

	effective, md5sum, err := helper.EffectiveConfig(NodeVersions{NodeName: "node0", SoftwareVersion: "RELEASE_1"})
	require.NoError(t, err)

	wantMd5, err := CanonicalMd5(effective)
	require.NoError(t, err)
	require.Equal(t, wantMd5, md5sum)
}

func TestDiffDetectsLeafChange(t *testing.T) {
	oldCfg := JSONObject{"linkParamsBase": JSONObject{"fwParams": JSONObject{"laMaxMcs": float64(12)}}}
	newCfg := JSONObject{"linkParamsBase": JSONObject{"fwParams": JSONObject{"laMaxMcs": float64(10)}}}

	paths := Diff(oldCfg, newCfg)
	require.Contains(t, paths, "linkParamsBase.fwParams.laMaxMcs")
}

func TestComputeActionsOrderLaw(t *testing.T) {
	actions := ComputeActions(
		[]string{"p1", "p2"},
		map[string][]Action{
			"p1": {ActionReboot},
			"p2": {ActionRestartStats},
		},
	)
	require.Equal(t, []Action{ActionReboot}, actions, "REBOOT subsumes immediate daemon restarts")
}

func TestComputeActionsKeepsSiblingDaemonRestarts(t *testing.T) {
	actions := ComputeActions(
		[]string{"p1", "p2"},
		map[string][]Action{
			"p1": {ActionRestartStats},
			"p2": {ActionRestartDHCP},
		},
	)
	require.ElementsMatch(t, []Action{ActionRestartStats, ActionRestartDHCP}, actions)
}

func TestActionsForPathsResolvesWildcard(t *testing.T) {
	actions := ActionsForPaths(
		[]string{"linkParamsOverride.aa:bb:cc:dd:ee:ff.fwParams.laMaxMcs"},
		DefaultPathRegistry,
	)
	require.Equal(t, []Action{ActionSetFwParamsSyncOrReloadFirmware}, actions)
}
