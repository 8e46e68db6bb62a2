package stake

import (
	"fmt"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func owner(b byte) [20]byte {
	var a [20]byte
	a[19] = b
	return a
}

func newTestBook(t *testing.T) *Book {
	t.Helper()
	book := NewBook(NewMemStore(), nil, nil, nil, nil)
	require.NoError(t, book.RegisterAsset("uluna", big.NewInt(0)))
	return book
}

func TestStakeFirstDepositorGetsOneToOneShares(t *testing.T) {
	book := newTestBook(t)
	shares, err := book.Stake(owner(1), "uluna", big.NewInt(1000), 0)
	require.NoError(t, err)
	require.Equal(t, "1000", shares.String())
}

func TestUnstakeClampsToOwnedBalance(t *testing.T) {
	book := newTestBook(t)
	_, err := book.Stake(owner(1), "uluna", big.NewInt(1000), 0)
	require.NoError(t, err)

	amount, err := book.Unstake(owner(1), "uluna", big.NewInt(5000), 0)
	require.NoError(t, err)
	require.Equal(t, "1000", amount.String())

	a, _, err := book.Get("uluna")
	require.NoError(t, err)
	require.Equal(t, 0, a.sharesOf(owner(1)).Sign())
}

func TestYearlyTakeRateAccruesOverOneWeek(t *testing.T) {
	book := NewBook(NewMemStore(), nil, nil, nil, nil)
	tenPercent := big.NewInt(0).Quo(big.NewInt(RateScale), big.NewInt(10))
	require.NoError(t, book.RegisterAsset("uluna", tenPercent))

	_, err := book.Stake(owner(1), "uluna", big.NewInt(10_000_000), 0)
	require.NoError(t, err)

	const week = 7 * 24 * 60 * 60
	_, err = book.Stake(owner(2), "uluna", big.NewInt(1), uint64(week))
	require.NoError(t, err)

	a, _, err := book.Get("uluna")
	require.NoError(t, err)
	require.Equal(t, "19178", a.Taken.String())
}

func TestDistributeTakeAdvancesHarvested(t *testing.T) {
	book := NewBook(NewMemStore(), nil, nil, nil, nil)
	tenPercent := big.NewInt(0).Quo(big.NewInt(RateScale), big.NewInt(10))
	require.NoError(t, book.RegisterAsset("uluna", tenPercent))
	_, err := book.Stake(owner(1), "uluna", big.NewInt(10_000_000), 0)
	require.NoError(t, err)

	const week = 7 * 24 * 60 * 60
	owed, err := book.DistributeTake("uluna", uint64(week), nil, owner(9))
	require.NoError(t, err)
	require.Equal(t, "19178", owed.String())

	a, _, err := book.Get("uluna")
	require.NoError(t, err)
	require.Equal(t, a.Taken.String(), a.Harvested.String())
}

type failingSink struct {
	failAsset string
	calls     []string
}

func (s *failingSink) Pay(owner [20]byte, assetID string, amount *big.Int) error {
	s.calls = append(s.calls, assetID)
	if assetID == s.failAsset {
		return fmt.Errorf("sink unavailable")
	}
	return nil
}

func TestClaimRewardsBatchIsolatesOneSinkFailure(t *testing.T) {
	sink := &failingSink{failAsset: "uluna"}
	book := NewBook(NewMemStore(), nil, sink, nil, nil)
	require.NoError(t, book.RegisterAsset("uluna", big.NewInt(0)))
	require.NoError(t, book.RegisterAsset("uosmo", big.NewInt(0)))

	_, err := book.Stake(owner(1), "uluna", big.NewInt(1000), 0)
	require.NoError(t, err)
	_, err = book.Stake(owner(1), "uosmo", big.NewInt(1000), 0)
	require.NoError(t, err)
	require.NoError(t, book.ApplyRewardDelta(big.NewInt(500), map[string]*big.Int{"uluna": big.NewInt(RateScale)}, RateScale))
	require.NoError(t, book.ApplyRewardDelta(big.NewInt(500), map[string]*big.Int{"uosmo": big.NewInt(RateScale)}, RateScale))

	results := book.ClaimRewardsBatch([]ClaimRequest{
		{Owner: owner(1), AssetID: "uluna"},
		{Owner: owner(1), AssetID: "uosmo"},
	})
	require.Len(t, results, 2)
	require.Error(t, results[0].Err, "uluna's sink failure must not prevent uosmo's claim below")
	require.NoError(t, results[1].Err)
	require.Equal(t, "500", results[1].Amount.String())

	// the failed claim's unclaimed balance must remain intact for retry.
	a, _, err := book.Get("uluna")
	require.NoError(t, err)
	require.Equal(t, "500", a.unclaimedOf(owner(1)).String())
}

func TestClaimRewardsRequiresNonzeroUnclaimed(t *testing.T) {
	book := newTestBook(t)
	_, err := book.Stake(owner(1), "uluna", big.NewInt(1000), 0)
	require.NoError(t, err)

	_, err = book.ClaimRewards(owner(1), "uluna")
	require.Error(t, err)

	require.NoError(t, book.ApplyRewardDelta(big.NewInt(500), map[string]*big.Int{"uluna": big.NewInt(RateScale)}, RateScale))

	claimable, err := book.ClaimRewards(owner(1), "uluna")
	require.NoError(t, err)
	require.Equal(t, "500", claimable.String())
}
