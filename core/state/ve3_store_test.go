package state

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/erisprotocol/ve3engine/native/gauge"
	"github.com/erisprotocol/ve3engine/native/period"
	"github.com/erisprotocol/ve3engine/native/stake"
	"github.com/erisprotocol/ve3engine/native/voteescrow"
	"github.com/erisprotocol/ve3engine/storage"
)

func addr(b byte) [20]byte {
	var a [20]byte
	a[19] = b
	return a
}

func TestCurveStoreRoundTripsPointsAndSlopeChanges(t *testing.T) {
	db := storage.NewMemDB()
	defer db.Close()
	s := NewCurveStore(db)

	pt := period.Point{VotingPower: big.NewInt(500), Slope: big.NewInt(5), Fixed: big.NewInt(0)}
	require.NoError(t, s.PutPoint("ve3-1", 10, pt))

	got, ok, err := s.GetPoint("ve3-1", 10)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "500", got.VotingPower.String())

	_, ok, err = s.GetPoint("ve3-1", 11)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.PutPoint("ve3-1", 20, pt))
	periods, err := s.PointPeriods("ve3-1")
	require.NoError(t, err)
	require.Equal(t, []uint64{10, 20}, periods)

	require.NoError(t, s.PutSlopeChange("ve3-1", 20, big.NewInt(-5)))
	delta, ok, err := s.GetSlopeChange("ve3-1", 20)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "-5", delta.String())

	require.NoError(t, s.DeleteSlopeChange("ve3-1", 20))
	_, ok, err = s.GetSlopeChange("ve3-1", 20)
	require.NoError(t, err)
	require.False(t, ok)

	scPeriods, err := s.SlopeChangePeriods("ve3-1")
	require.NoError(t, err)
	require.Empty(t, scPeriods)
}

func TestPositionStoreIndexesTokensByOwnerAndMintsUniqueIDs(t *testing.T) {
	db := storage.NewMemDB()
	defer db.Close()
	s := NewPositionStore(db)

	owner := addr(1)
	id, err := s.NextTokenID()
	require.NoError(t, err)

	pos := &voteescrow.Position{
		TokenID:          id,
		Owner:            owner,
		Asset:            voteescrow.AssetInfo{Kind: "native", Denom: "uluna"},
		Amount:           big.NewInt(1000),
		UnderlyingAmount: big.NewInt(1000),
		StartPeriod:      0,
		End:              voteescrow.End{Period: 10},
		Approvals:        map[[20]byte]struct{}{addr(2): {}},
	}
	require.NoError(t, s.PutPosition(pos))

	got, ok, err := s.GetPosition(id)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "1000", got.Amount.String())
	require.True(t, got.IsApprovedOrOwner(addr(2)))

	tokens, err := s.TokensByOwner(owner)
	require.NoError(t, err)
	require.Equal(t, []string{id}, tokens)

	id2, err := s.NextTokenID()
	require.NoError(t, err)
	require.NotEqual(t, id, id2)

	require.NoError(t, s.DeletePosition(id))
	_, ok, err = s.GetPosition(id)
	require.NoError(t, err)
	require.False(t, ok)

	tokens, err = s.TokensByOwner(owner)
	require.NoError(t, err)
	require.Empty(t, tokens)
}

func TestGaugeStorePersistsAllocationsAndOwnerIndex(t *testing.T) {
	db := storage.NewMemDB()
	defer db.Close()
	s := NewGaugeStore(db)

	g := &gauge.Gauge{ID: "gauge-1", Whitelist: map[string]struct{}{"astro": {}}, MinBpsFloorNumerator: 100}
	require.NoError(t, s.PutGauge(g))

	got, ok, err := s.GetGauge("gauge-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, got.IsWhitelisted("astro"))

	voter := addr(3)
	alloc := &gauge.Allocation{Gauge: "gauge-1", Voter: voter, Entries: []gauge.AllocationEntry{{AssetID: "astro", Bps: 5000}}}
	require.NoError(t, s.PutAllocation(alloc))

	gauges, err := s.AllocatedGauges(voter)
	require.NoError(t, err)
	require.Equal(t, []string{"gauge-1"}, gauges)

	require.NoError(t, s.PutAllocation(&gauge.Allocation{Gauge: "gauge-1", Voter: voter}))
	gauges, err = s.AllocatedGauges(voter)
	require.NoError(t, err)
	require.Empty(t, gauges)

	dist := &gauge.Distribution{Gauge: "gauge-1", Period: 1, Entries: []gauge.DistributionEntry{
		{AssetID: "astro", VP: big.NewInt(100), ShareWad: big.NewInt(period.CoeffScale)},
	}}
	require.NoError(t, s.PutDistribution(dist))

	storedDist, ok, err := s.GetDistribution("gauge-1", 1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, period.CoeffScale, storedDist.Entries[0].ShareWad.Int64())

	last, ok, err := s.LastDistributionPeriod("gauge-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(1), last)

	require.NoError(t, s.PutRebaseWatermark(voter, 7))
	wm, ok, err := s.GetRebaseWatermark(voter)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(7), wm)
}

func TestStakeStoreRoundTripsPerUserMaps(t *testing.T) {
	db := storage.NewMemDB()
	defer db.Close()
	s := NewStakeStore(db)

	owner := addr(4)
	a := stake.NewAsset("uluna", big.NewInt(1e17))
	a.TotalBalance = big.NewInt(5000)
	a.TotalShares = big.NewInt(5000)
	a.PerUserShares[owner] = big.NewInt(5000)
	a.PerUserUnclaimed[owner] = big.NewInt(42)
	a.Whitelisted = true

	require.NoError(t, s.PutAsset(a))

	got, ok, err := s.GetAsset("uluna")
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, got.Whitelisted)
	require.Equal(t, "5000", got.PerUserShares[owner].String())
	require.Equal(t, "42", got.PerUserUnclaimed[owner].String())

	_, ok, err = s.GetAsset("missing")
	require.NoError(t, err)
	require.False(t, ok)
}
