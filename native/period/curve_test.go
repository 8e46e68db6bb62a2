package period

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSlopeAndInitialPowerReturnsExactZeroAtEnd(t *testing.T) {
	underlying := big.NewInt(1000)
	const dt = 2
	slope, initial := SlopeAndInitialPower(underlying, dt)
	require.True(t, slope.Sign() > 0)

	curve := NewCurve(NewMemStore())
	require.NoError(t, curve.ApplyDelta("token-1", 10, Delta{VotingPower: initial, Slope: slope, Fixed: underlying}, true))
	require.NoError(t, curve.ScheduleSlopeChange("token-1", 10+dt, slope))

	atEnd, err := curve.LatestAt("token-1", 10+dt)
	require.NoError(t, err)
	require.Equal(t, 0, atEnd.VotingPower.Sign(), "voting power must hit exactly zero at the end period")
	require.Equal(t, underlying.String(), atEnd.Fixed.String())

	beyond, err := curve.LatestAt("token-1", 10+dt+50)
	require.NoError(t, err)
	require.Equal(t, 0, beyond.VotingPower.Sign(), "zero floor must hold arbitrarily far past expiry")
}

func TestLatestAtMaterializesIntermediateCheckpoints(t *testing.T) {
	store := NewMemStore()
	curve := NewCurve(store)
	slope, initial := SlopeAndInitialPower(big.NewInt(2000), 4)
	require.NoError(t, curve.ApplyDelta("tok", 100, Delta{VotingPower: initial, Slope: slope, Fixed: big.NewInt(2000)}, true))
	require.NoError(t, curve.ScheduleSlopeChange("tok", 104, slope))

	_, err := curve.LatestAt("tok", 110)
	require.NoError(t, err)

	periods, err := store.PointPeriods("tok")
	require.NoError(t, err)
	require.Contains(t, periods, uint64(104), "the slope-change period must be materialized as a checkpoint")
}

func TestApplyDeltaSaturatesAtZero(t *testing.T) {
	curve := NewCurve(NewMemStore())
	require.NoError(t, curve.ApplyDelta("k", 1, Delta{VotingPower: big.NewInt(5), Slope: big.NewInt(1), Fixed: big.NewInt(0)}, true))
	require.NoError(t, curve.ApplyDelta("k", 1, Delta{VotingPower: big.NewInt(100), Slope: big.NewInt(0), Fixed: big.NewInt(0)}, false))
	pt, err := curve.LatestAt("k", 1)
	require.NoError(t, err)
	require.Equal(t, 0, pt.VotingPower.Sign())
}

func TestScheduleSlopeChangeRemovesZeroEntries(t *testing.T) {
	store := NewMemStore()
	curve := NewCurve(store)
	require.NoError(t, curve.ScheduleSlopeChange("k", 50, big.NewInt(10)))
	require.NoError(t, curve.CancelSlopeChange("k", 50, big.NewInt(10)))
	_, ok, err := store.GetSlopeChange("k", 50)
	require.NoError(t, err)
	require.False(t, ok, "a slope change reduced to zero must be removed, not stored as zero")
}

func TestCoeffBoundaries(t *testing.T) {
	require.Equal(t, int64(0), Coeff(0).Int64())
	require.Equal(t, CoeffScale, Coeff(MaxLockPeriods).Int64())
	require.Equal(t, CoeffScale, Coeff(MaxLockPeriods+10).Int64())
}

func TestPermanentPowerEqualsUnderlyingAtCoeffMax(t *testing.T) {
	underlying := big.NewInt(123456)
	require.Equal(t, underlying.String(), PermanentPower(underlying).String())
}
