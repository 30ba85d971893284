package configapp

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tgnet/e2e/internal/configstore"
)

func TestBuildFwConfigParamsLaMaxMcsPatch(t *testing.T) {
	newCfg := configstore.JSONObject{
		"linkParamsBase": configstore.JSONObject{
			"fwParams": configstore.JSONObject{"laMaxMcs": float64(10)},
		},
	}
	peers := []string{"aa:aa:aa:aa:aa:aa", "bb:bb:bb:bb:bb:bb"}

	built, err := BuildFwConfigParams(
		[]string{"linkParamsBase.fwParams.laMaxMcs"},
		newCfg,
		peers,
		map[string]int{},
		0,
	)
	require.NoError(t, err)
	require.Len(t, built, 2)
	for _, mac := range peers {
		fc, ok := built[mac]
		require.True(t, ok)
		require.Len(t, fc.Params, 1)
		require.InDelta(t, 10, fc.Params[0].Value.(float64), 0)
	}
}

func TestBuildFwConfigParamsOverflowEscalates(t *testing.T) {
	newCfg := configstore.JSONObject{
		"radioParamsBase": configstore.JSONObject{
			"fwParams": configstore.JSONObject{"txPower": float64(1)},
		},
	}
	_, err := BuildFwConfigParams(
		[]string{"radioParamsBase.fwParams.txPower"},
		newCfg,
		[]string{"aa:aa:aa:aa:aa:aa"},
		map[string]int{"aa:aa:aa:aa:aa:aa": KMaxFwRuntimeCfgPoolSize},
		100, // non-zero bwgdIdx triggers the pool-size check
	)
	require.Error(t, err)
	require.True(t, IsPoolOverflow(err))
}

func TestTokenBucketWaitsForDirectionAccumulation(t *testing.T) {
	b := NewLinkMetricTokenBucket(100, 10, 3)
	require.False(t, b.AllowPush(1))
	require.False(t, b.AllowPush(1))
	require.True(t, b.AllowPush(1), "third same-direction change should push")
}

func TestTokenBucketResetsOnDirectionFlip(t *testing.T) {
	b := NewLinkMetricTokenBucket(100, 10, 3)
	require.False(t, b.AllowPush(1))
	require.False(t, b.AllowPush(1))
	require.False(t, b.AllowPush(-1), "direction flip resets the accumulation counter")
}
