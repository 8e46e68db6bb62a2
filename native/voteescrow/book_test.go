package voteescrow

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/erisprotocol/ve3engine/native/period"
)

func newTestBook(t *testing.T) *Book {
	t.Helper()
	return NewBook(NewMemPositionStore(), period.NewMemStore(), nil, nil, nil)
}

var luna = AssetInfo{Kind: "native", Denom: "uluna"}

func owner(b byte) [20]byte {
	var a [20]byte
	a[19] = b
	return a
}

func TestCreateLockDecaysToZeroAtEnd(t *testing.T) {
	book := newTestBook(t)
	own := owner(1)

	pos, err := book.CreateLock(own, luna, big.NewInt(1000), 0, 10, false)
	require.NoError(t, err)
	require.Equal(t, uint64(10), pos.End.Period)

	pt, err := book.TotalCurve(10)
	require.NoError(t, err)
	require.Equal(t, 0, pt.VotingPower.Sign())

	voter, err := book.VoterCurve(own, 5)
	require.NoError(t, err)
	require.True(t, voter.VotingPower.Sign() > 0)
}

func TestCreateLockPermanentUsesFixedPower(t *testing.T) {
	book := newTestBook(t)
	own := owner(2)

	_, err := book.CreateLock(own, luna, big.NewInt(500), 0, 0, true)
	require.NoError(t, err)

	pt, err := book.TotalCurve(0)
	require.NoError(t, err)
	require.Equal(t, "500", pt.Fixed.String())
	require.Equal(t, 0, pt.VotingPower.Sign())

	far, err := book.TotalCurve(10_000)
	require.NoError(t, err)
	require.Equal(t, "500", far.Fixed.String())
}

func TestLockPermanentThenUnlockPermanentRoundTrips(t *testing.T) {
	book := newTestBook(t)
	own := owner(3)

	pos, err := book.CreateLock(own, luna, big.NewInt(1000), 0, 10, false)
	require.NoError(t, err)

	require.NoError(t, book.LockPermanent(own, pos.TokenID, 1))
	stored, ok, err := book.Get(pos.TokenID)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, stored.End.Permanent)

	pt, err := book.TotalCurve(1)
	require.NoError(t, err)
	require.Equal(t, 0, pt.VotingPower.Sign())
	require.Equal(t, "1000", pt.Fixed.String())

	require.NoError(t, book.UnlockPermanent(own, pos.TokenID, 1, 5))
	stored, ok, err = book.Get(pos.TokenID)
	require.NoError(t, err)
	require.True(t, ok)
	require.False(t, stored.End.Permanent)
	require.Equal(t, uint64(6), stored.End.Period)

	pt, err = book.TotalCurve(6)
	require.NoError(t, err)
	require.Equal(t, 0, pt.Fixed.Sign())
	require.Equal(t, 0, pt.VotingPower.Sign())
}

func TestMergeCombinesUnderlyingAndBurnsSource(t *testing.T) {
	book := newTestBook(t)
	own := owner(4)

	a, err := book.CreateLock(own, luna, big.NewInt(1000), 0, 10, false)
	require.NoError(t, err)
	bPos, err := book.CreateLock(own, luna, big.NewInt(500), 0, 10, false)
	require.NoError(t, err)

	require.NoError(t, book.Merge(own, bPos.TokenID, a.TokenID, 2))

	_, ok, err := book.Get(bPos.TokenID)
	require.NoError(t, err)
	require.False(t, ok, "merged-from token must be burned")

	merged, ok, err := book.Get(a.TokenID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "1500", merged.UnderlyingAmount.String())
}

func TestSplitProducesProportionalSibling(t *testing.T) {
	book := newTestBook(t)
	own := owner(5)

	pos, err := book.CreateLock(own, luna, big.NewInt(1000), 0, 10, false)
	require.NoError(t, err)

	sibling, err := book.Split(own, pos.TokenID, 2, big.NewInt(400))
	require.NoError(t, err)
	require.Equal(t, "400", sibling.Amount.String())

	remaining, ok, err := book.Get(pos.TokenID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "600", remaining.Amount.String())
}

func TestWithdrawRejectsBeforeExpiry(t *testing.T) {
	book := newTestBook(t)
	own := owner(6)

	pos, err := book.CreateLock(own, luna, big.NewInt(1000), 0, 10, false)
	require.NoError(t, err)

	_, err = book.Withdraw(own, pos.TokenID, 5)
	require.Error(t, err)

	amount, err := book.Withdraw(own, pos.TokenID, 10)
	require.NoError(t, err)
	require.Equal(t, "1000", amount.String())

	_, ok, err := book.Get(pos.TokenID)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestTransferMovesVoterAggregate(t *testing.T) {
	book := newTestBook(t)
	from := owner(7)
	to := owner(8)

	pos, err := book.CreateLock(from, luna, big.NewInt(1000), 0, 10, false)
	require.NoError(t, err)

	require.NoError(t, book.Transfer(from, pos.TokenID, 1, to))

	fromCurve, err := book.VoterCurve(from, 1)
	require.NoError(t, err)
	require.Equal(t, 0, fromCurve.VotingPower.Sign())

	toCurve, err := book.VoterCurve(to, 1)
	require.NoError(t, err)
	require.True(t, toCurve.VotingPower.Sign() > 0)
}

func TestExtendAmountThenExtendTimeKeepsTotalConsistent(t *testing.T) {
	book := newTestBook(t)
	own := owner(10)
	other := owner(11)

	pos, err := book.CreateLock(own, luna, big.NewInt(1000), 0, 10, false)
	require.NoError(t, err)
	// Second position sharing own's original end period, so TOTAL's
	// scheduled slope change at period 10 carries both contributions.
	_, err = book.CreateLock(other, luna, big.NewInt(2000), 0, 10, false)
	require.NoError(t, err)

	require.NoError(t, book.ExtendAmount(own, pos.TokenID, 2, big.NewInt(500)))
	require.NoError(t, book.ExtendTime(own, pos.TokenID, 4, 20))

	extended, ok, err := book.Get(pos.TokenID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(20), extended.End.Period)

	// other, untouched, must still fully decay at its own end period:
	// TOTAL at 10 must equal own's curve alone, not a stale residual
	// from cancelling own's old slope change by a recomputed value.
	otherAtExpiry, err := book.VoterCurve(other, 10)
	require.NoError(t, err)
	require.Equal(t, 0, otherAtExpiry.VotingPower.Sign())

	ownAt10, err := book.VoterCurve(own, 10)
	require.NoError(t, err)
	totalAt10, err := book.TotalCurve(10)
	require.NoError(t, err)
	require.Equal(t, ownAt10.VotingPower.String(), totalAt10.VotingPower.String())

	// own's new slope change lands at 20, where its own curve reaches zero.
	ownAt20, err := book.VoterCurve(own, 20)
	require.NoError(t, err)
	require.Equal(t, 0, ownAt20.VotingPower.Sign())
}

type stubSubscriber struct {
	calls []LockUpdate
}

func (s *stubSubscriber) OnLockUpdate(u LockUpdate) error {
	s.calls = append(s.calls, u)
	return nil
}

func TestCreateLockPushesSubscriberNotification(t *testing.T) {
	sub := &stubSubscriber{}
	book := NewBook(NewMemPositionStore(), period.NewMemStore(), nil, sub, nil)
	own := owner(9)

	_, err := book.CreateLock(own, luna, big.NewInt(1000), 0, 10, false)
	require.NoError(t, err)
	require.Len(t, sub.calls, 1)
	require.Equal(t, own, sub.calls[0].Owner)
	require.True(t, sub.calls[0].After.VotingPower.Sign() > 0)
}
