package coordinator

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/erisprotocol/ve3engine/native/gauge"
	"github.com/erisprotocol/ve3engine/native/period"
	"github.com/erisprotocol/ve3engine/native/stake"
	"github.com/erisprotocol/ve3engine/native/voteescrow"
)

func owner(b byte) [20]byte {
	var a [20]byte
	a[19] = b
	return a
}

func newStack(t *testing.T) *Coordinator {
	t.Helper()
	escrowBook := voteescrow.NewBook(voteescrow.NewMemPositionStore(), period.NewMemStore(), nil, nil, nil)
	gaugeBook := gauge.NewBook(gauge.NewMemStore(), period.NewMemStore(), escrowBook, nil)
	escrowBook.SetSubscriber(gaugeBook)
	stakeBook := stake.NewBook(stake.NewMemStore(), nil, nil, nil, nil)

	return New(escrowBook, gaugeBook, stakeBook, NewStaticOracle())
}

var luna = voteescrow.AssetInfo{Kind: "native", Denom: "uluna"}

func TestCreateLockRequiresNoCapability(t *testing.T) {
	c := newStack(t)
	_, err := c.CreateLock(owner(1), luna, big.NewInt(1000), 0, 10, false)
	require.NoError(t, err)
}

func TestSetDistributionRequiresGaugeController(t *testing.T) {
	c := newStack(t)
	_, err := c.Gauge.CreateGauge("gauge-1", []string{"astro"}, 0)
	require.NoError(t, err)

	_, err = c.SetDistribution(owner(2), "gauge-1", 1)
	require.Error(t, err, "caller without GAUGE_CONTROLLER must be rejected")

	c.Oracle.(*StaticOracle).Grant(RoleGaugeController, owner(2))
	_, err = c.SetDistribution(owner(2), "gauge-1", 1)
	require.NoError(t, err)
}

func TestDistributeTakeRequiresFeeCollectorAndResolvesRecipient(t *testing.T) {
	c := newStack(t)
	require.NoError(t, c.StakeBook.RegisterAsset("uluna", big.NewInt(0)))

	_, err := c.DistributeTake(owner(3), "uluna", 0, nil)
	require.Error(t, err)

	oracle := c.Oracle.(*StaticOracle)
	oracle.Grant(RoleFeeCollector, owner(3))
	_, err = c.DistributeTake(owner(3), "uluna", 0, nil)
	require.Error(t, err, "must still fail without a resolvable TAKE_RECIPIENT")

	oracle.Grant(RoleTakeRecipient, owner(9))
	_, err = c.DistributeTake(owner(3), "uluna", 0, nil)
	require.NoError(t, err)
}

func TestSetDecommissionedRequiresVEGuardian(t *testing.T) {
	c := newStack(t)
	err := c.SetDecommissioned(owner(4), true)
	require.Error(t, err)

	c.Oracle.(*StaticOracle).Grant(RoleVEGuardian, owner(4))
	require.NoError(t, c.SetDecommissioned(owner(4), true))
	require.True(t, c.Escrow.Decommissioned())
}
