package gauge

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/erisprotocol/ve3engine/native/period"
	"github.com/erisprotocol/ve3engine/native/voteescrow"
)

func owner(b byte) [20]byte {
	var a [20]byte
	a[19] = b
	return a
}

func newTestStack(t *testing.T) (*voteescrow.Book, *Book) {
	t.Helper()
	g := NewBook(NewMemStore(), period.NewMemStore(), nil, nil)
	e := voteescrow.NewBook(voteescrow.NewMemPositionStore(), period.NewMemStore(), nil, g, nil)
	g.escrow = e
	return e, g
}

var luna = voteescrow.AssetInfo{Kind: "native", Denom: "uluna"}

func TestSetVotesAggregatesVoterCurveIntoGauge(t *testing.T) {
	escrow, gaugeBook := newTestStack(t)
	voter := owner(1)

	_, err := escrow.CreateLock(voter, luna, big.NewInt(1000), 0, 10, false)
	require.NoError(t, err)

	_, err = gaugeBook.CreateGauge("gauge-1", []string{"astro"}, 0)
	require.NoError(t, err)

	require.NoError(t, gaugeBook.SetVotes("gauge-1", voter, 1, []AllocationEntry{{AssetID: "astro", Bps: 5000}}))

	pt, err := gaugeBook.CurveAt("gauge-1", "astro", 1)
	require.NoError(t, err)
	require.True(t, pt.VotingPower.Sign() > 0)
}

func TestSetVotesRejectsUnwhitelistedAsset(t *testing.T) {
	_, gaugeBook := newTestStack(t)
	_, err := gaugeBook.CreateGauge("gauge-1", []string{"astro"}, 0)
	require.NoError(t, err)

	err = gaugeBook.SetVotes("gauge-1", owner(2), 1, []AllocationEntry{{AssetID: "not-listed", Bps: 100}})
	require.Error(t, err)
}

func TestSetVotesRejectsOverBudgetBps(t *testing.T) {
	_, gaugeBook := newTestStack(t)
	_, err := gaugeBook.CreateGauge("gauge-1", []string{"astro", "other"}, 0)
	require.NoError(t, err)

	err = gaugeBook.SetVotes("gauge-1", owner(3), 1, []AllocationEntry{
		{AssetID: "astro", Bps: 6000},
		{AssetID: "other", Bps: 6000},
	})
	require.Error(t, err)
}

func TestOnLockUpdateMovesAllocationOnTransfer(t *testing.T) {
	escrow, gaugeBook := newTestStack(t)
	from := owner(4)
	to := owner(5)

	pos, err := escrow.CreateLock(from, luna, big.NewInt(1000), 0, 10, false)
	require.NoError(t, err)
	_, err = gaugeBook.CreateGauge("gauge-1", []string{"astro"}, 0)
	require.NoError(t, err)
	require.NoError(t, gaugeBook.SetVotes("gauge-1", from, 1, []AllocationEntry{{AssetID: "astro", Bps: 10000}}))

	before, err := gaugeBook.CurveAt("gauge-1", "astro", 1)
	require.NoError(t, err)
	require.True(t, before.VotingPower.Sign() > 0)

	require.NoError(t, escrow.Transfer(from, pos.TokenID, 1, to))

	after, err := gaugeBook.CurveAt("gauge-1", "astro", 1)
	require.NoError(t, err)
	require.Equal(t, 0, after.VotingPower.Sign(), "transferring the only position away should zero the old owner's allocation contribution")
}

func TestSetVotesSchedulesFutureSlopeForExpiringCoVoter(t *testing.T) {
	escrow, gaugeBook := newTestStack(t)
	short := owner(20)
	long := owner(21)

	// short's position naturally expires at period 5 and is never touched
	// again after voting; long's position outlives it.
	_, err := escrow.CreateLock(short, luna, big.NewInt(1000), 0, 5, false)
	require.NoError(t, err)
	_, err = escrow.CreateLock(long, luna, big.NewInt(1000), 0, 20, false)
	require.NoError(t, err)

	_, err = gaugeBook.CreateGauge("gauge-1", []string{"astro"}, 0)
	require.NoError(t, err)
	require.NoError(t, gaugeBook.SetVotes("gauge-1", short, 1, []AllocationEntry{{AssetID: "astro", Bps: 10000}}))
	require.NoError(t, gaugeBook.SetVotes("gauge-1", long, 1, []AllocationEntry{{AssetID: "astro", Bps: 10000}}))

	// Past short's period-5 expiry, the aggregate must track long's own
	// curve exactly. Without the vote-time schedule seed, the combined
	// curve keeps decaying at both positions' summed slope well past
	// short's expiry, undershooting long's real voting power.
	afterExpiry, err := gaugeBook.CurveAt("gauge-1", "astro", 10)
	require.NoError(t, err)
	longCurve, err := escrow.VoterCurve(long, 10)
	require.NoError(t, err)
	require.Equal(t, longCurve.VotingPower.String(), afterExpiry.VotingPower.String())
}

func TestSetDistributionAtZeroFloorKeepsEveryAssetAndSumsToOne(t *testing.T) {
	escrow, gaugeBook := newTestStack(t)
	voter := owner(6)
	_, err := escrow.CreateLock(voter, luna, big.NewInt(10000), 0, 10, false)
	require.NoError(t, err)

	_, err = gaugeBook.CreateGauge("gauge-1", []string{"big", "small"}, 0)
	require.NoError(t, err)
	require.NoError(t, gaugeBook.SetVotes("gauge-1", voter, 1, []AllocationEntry{
		{AssetID: "big", Bps: 9000},
		{AssetID: "small", Bps: 1000},
	}))

	dist, err := gaugeBook.SetDistribution("gauge-1", 1)
	require.NoError(t, err)
	require.Len(t, dist.Entries, 2)

	total := big.NewInt(0)
	for _, e := range dist.Entries {
		total.Add(total, e.ShareWad)
	}
	require.Equal(t, big.NewInt(period.CoeffScale).String(), total.String())
}

func TestRebaseAccumulatesAcrossUnclaimedPeriods(t *testing.T) {
	_, gaugeBook := newTestStack(t)
	own := owner(7)

	vpByPeriod := map[uint64]*big.Int{1: big.NewInt(100), 2: big.NewInt(80)}
	totalByPeriod := map[uint64]*big.Int{1: big.NewInt(1000), 2: big.NewInt(1000)}

	claimable, err := gaugeBook.Rebase(own, 2,
		func(p uint64) (*big.Int, error) { return vpByPeriod[p], nil },
		func(p uint64) (*big.Int, error) { return totalByPeriod[p], nil },
		big.NewInt(1000),
	)
	require.NoError(t, err)
	require.Equal(t, "180", claimable.String())

	_, err = gaugeBook.Rebase(own, 2,
		func(p uint64) (*big.Int, error) { return vpByPeriod[p], nil },
		func(p uint64) (*big.Int, error) { return totalByPeriod[p], nil },
		big.NewInt(1000),
	)
	require.Error(t, err, "re-claiming through an already-claimed period must yield nothing")
}
