package ignition

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDampenedImmediatelyAfterAttempt(t *testing.T) {
	params := DefaultParams()
	params.DampenInterval = 10 * time.Second
	tr := NewDampeningTracker(params)

	now := time.Now()
	tr.RecordAttempt("link-node0-node1", "aa:aa:aa:aa:aa:aa", now)

	require.True(t, tr.IsDampened("link-node0-node1", now.Add(1*time.Second)))
	require.False(t, tr.IsDampened("link-node0-node1", now.Add(11*time.Second)))
}

func TestIgnoreDampenIntervalAfterRespBypassesSuppression(t *testing.T) {
	params := DefaultParams()
	params.DampenInterval = 10 * time.Second
	params.IgnoreDampenIntervalAfterResp = true
	tr := NewDampeningTracker(params)

	now := time.Now()
	tr.RecordAttempt("link-node0-node1", "aa:aa:aa:aa:aa:aa", now)
	require.True(t, tr.IsDampened("link-node0-node1", now.Add(1*time.Second)))

	tr.RecordLinkDown("link-node0-node1", "aa:aa:aa:aa:aa:aa")
	require.False(t, tr.IsDampened("link-node0-node1", now.Add(1*time.Second)))
}

func TestExtendedDampenAfterChronicFailure(t *testing.T) {
	params := DefaultParams()
	params.DampenInterval = 10 * time.Second
	params.ExtendedDampenFailureInterval = 100 * time.Second
	params.ExtendedDampenInterval = 500 * time.Second
	tr := NewDampeningTracker(params)

	now := time.Now()
	tr.RecordAttempt("link-node0-node1", "aa:aa:aa:aa:aa:aa", now)
	// Never acknowledged (no RecordLinkUp): the initial-attempt timestamp
	// stays, so after ExtendedDampenFailureInterval the effective dampen
	// widens to ExtendedDampenInterval.
	tr.RecordAttempt("link-node0-node1", "aa:aa:aa:aa:aa:aa", now.Add(50*time.Second))

	later := now.Add(150 * time.Second)
	require.True(t, tr.IsDampened("link-node0-node1", later), "chronic failure should extend the dampen window")
}

func TestBfTimeoutPacesInitiator(t *testing.T) {
	params := DefaultParams()
	params.BfTimeout = 15 * time.Second
	tr := NewDampeningTracker(params)

	now := time.Now()
	tr.RecordAttempt("link-a", "aa:aa:aa:aa:aa:aa", now)

	require.False(t, tr.CanInitiatorAttempt("aa:aa:aa:aa:aa:aa", now.Add(5*time.Second)))
	require.True(t, tr.CanInitiatorAttempt("aa:aa:aa:aa:aa:aa", now.Add(16*time.Second)))
}

func TestCleanupOfflineRemovesEntries(t *testing.T) {
	tr := NewDampeningTracker(DefaultParams())
	now := time.Now()
	tr.RecordAttempt("link-a", "radio-a", now)
	tr.RecordLinkUp("link-a", "radio-a", now)

	tr.CleanupOffline([]string{"link-a"}, []string{"radio-a"})

	require.False(t, tr.IsDampened("link-a", now))
	_, ok := tr.LastLinkUp("radio-a")
	require.False(t, ok)
}
