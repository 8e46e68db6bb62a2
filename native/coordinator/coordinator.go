package coordinator

import (
	"math/big"
	"time"

	verrors "github.com/erisprotocol/ve3engine/core/errors"
	"github.com/erisprotocol/ve3engine/native/gauge"
	"github.com/erisprotocol/ve3engine/native/stake"
	"github.com/erisprotocol/ve3engine/native/voteescrow"
	"github.com/erisprotocol/ve3engine/observability"
)

// Coordinator sequences the three books' operations per action: EscrowBook
// mutation, then the push to registered subscribers
// (GaugeBook is always one, wired as voteescrow.Book's Subscriber at
// construction), then StakeBook only when the action also touches stake
// state. It is "thin": it does not itself hold ledger state, only the
// capability oracle and references to the three books.
type Coordinator struct {
	Escrow    *voteescrow.Book
	Gauge     *gauge.Book
	StakeBook *stake.Book
	Oracle    CapabilityOracle
	Metrics   *observability.EngineMetrics
}

// New wires a Coordinator over already-constructed books. Escrow must
// have been built with Gauge as its voteescrow.Subscriber so lock-update
// notifications reach the gauge book automatically inside each book
// operation. Metrics is nil until SetMetrics is called; callers that want
// engine action metrics should pass observability.Engine() explicitly
// (leaving it nil, as tests do, disables recording without affecting
// dispatch behavior).
func New(escrow *voteescrow.Book, g *gauge.Book, s *stake.Book, oracle CapabilityOracle) *Coordinator {
	return &Coordinator{Escrow: escrow, Gauge: g, StakeBook: s, Oracle: oracle}
}

// SetMetrics attaches an EngineMetrics registry for action/denial recording.
func (c *Coordinator) SetMetrics(m *observability.EngineMetrics) {
	c.Metrics = m
}

func (c *Coordinator) requireRight(role Role, principal [20]byte) error {
	ok, err := c.Oracle.HasRight(role, principal)
	if err != nil {
		return err
	}
	if !ok {
		if c.Metrics != nil {
			c.Metrics.ObserveCapabilityDenial(string(role))
		}
		return verrors.ErrCapabilityMissing
	}
	return nil
}

// observe records an action's outcome and latency when Metrics is set; a
// nil Metrics disables recording without changing dispatch behavior.
func (c *Coordinator) observe(action string, start time.Time, err error) {
	if c.Metrics == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.Metrics.ObserveAction(action, outcome, time.Since(start).Seconds())
}

// CreateLock dispatches voteescrow.Book.CreateLock; no privileged
// capability is required (any principal may lock their own assets).
func (c *Coordinator) CreateLock(owner [20]byte, asset voteescrow.AssetInfo, amount *big.Int, atPeriod, dt uint64, permanent bool) (*voteescrow.Position, error) {
	start := time.Now()
	pos, err := c.Escrow.CreateLock(owner, asset, amount, atPeriod, dt, permanent)
	c.observe("create_lock", start, err)
	return pos, err
}

// SetVotes dispatches gauge.Book.SetVotes. Any principal may vote with
// their own curve; no privileged capability is required.
func (c *Coordinator) SetVotes(gaugeID string, voter [20]byte, atPeriod uint64, entries []gauge.AllocationEntry) error {
	start := time.Now()
	err := c.Gauge.SetVotes(gaugeID, voter, atPeriod, entries)
	c.observe("set_votes", start, err)
	return err
}

// SetDistribution requires GAUGE_CONTROLLER.
func (c *Coordinator) SetDistribution(caller [20]byte, gaugeID string, p uint64) (*gauge.Distribution, error) {
	if err := c.requireRight(RoleGaugeController, caller); err != nil {
		return nil, err
	}
	start := time.Now()
	d, err := c.Gauge.SetDistribution(gaugeID, p)
	c.observe("set_distribution", start, err)
	return d, err
}

// SetGaugeWhitelist requires BRIBE_WHITELIST_CONTROLLER.
func (c *Coordinator) SetGaugeWhitelist(caller [20]byte, gaugeID string, assets []string) error {
	if err := c.requireRight(RoleBribeWhitelistController, caller); err != nil {
		return err
	}
	return c.Gauge.SetWhitelist(gaugeID, assets)
}

// SetDecommissioned requires VE_GUARDIAN.
func (c *Coordinator) SetDecommissioned(caller [20]byte, v bool) error {
	if err := c.requireRight(RoleVEGuardian, caller); err != nil {
		return err
	}
	c.Escrow.SetDecommissioned(v)
	return nil
}

// Stake dispatches stake.Book.Stake; no privileged capability required.
func (c *Coordinator) Stake(owner [20]byte, assetID string, amount *big.Int, nowUnix uint64) (*big.Int, error) {
	start := time.Now()
	shares, err := c.StakeBook.Stake(owner, assetID, amount, nowUnix)
	c.observe("stake", start, err)
	return shares, err
}

// Unstake dispatches stake.Book.Unstake; no privileged capability required.
func (c *Coordinator) Unstake(owner [20]byte, assetID string, shareAmount *big.Int, nowUnix uint64) (*big.Int, error) {
	start := time.Now()
	amount, err := c.StakeBook.Unstake(owner, assetID, shareAmount, nowUnix)
	c.observe("unstake", start, err)
	return amount, err
}

// RegisterStakeAsset requires ASSET_WHITELIST_CONTROLLER.
func (c *Coordinator) RegisterStakeAsset(caller [20]byte, assetID string, yearlyTakeRateWad *big.Int) error {
	if err := c.requireRight(RoleAssetWhitelistController, caller); err != nil {
		return err
	}
	return c.StakeBook.RegisterAsset(assetID, yearlyTakeRateWad)
}

// DelistStakeAsset requires ASSET_WHITELIST_CONTROLLER.
func (c *Coordinator) DelistStakeAsset(caller [20]byte, assetID string) error {
	if err := c.requireRight(RoleAssetWhitelistController, caller); err != nil {
		return err
	}
	return c.StakeBook.Delist(assetID)
}

// DistributeTake requires FEE_COLLECTOR to trigger, and pays out to
// whichever address the oracle currently resolves for TAKE_RECIPIENT.
func (c *Coordinator) DistributeTake(caller [20]byte, assetID string, nowUnix uint64, sink stake.RewardSink) (*big.Int, error) {
	if err := c.requireRight(RoleFeeCollector, caller); err != nil {
		return nil, err
	}
	recipient, ok, err := c.Oracle.ResolveRole(RoleTakeRecipient)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, verrors.ErrCapabilityMissing
	}
	start := time.Now()
	amount, err := c.StakeBook.DistributeTake(assetID, nowUnix, sink, recipient)
	c.observe("distribute_take", start, err)
	return amount, err
}

// ClaimRewards dispatches stake.Book.ClaimRewards; no privileged
// capability required (owners claim their own rewards).
func (c *Coordinator) ClaimRewards(owner [20]byte, assetID string) (*big.Int, error) {
	start := time.Now()
	amount, err := c.StakeBook.ClaimRewards(owner, assetID)
	c.observe("claim_rewards", start, err)
	return amount, err
}

// ClaimRewardsBatch dispatches stake.Book.ClaimRewardsBatch; no privileged
// capability required. Unlike ClaimRewards, a single entry's sink failure
// does not fail the call — it is isolated to that entry's ClaimResult.
func (c *Coordinator) ClaimRewardsBatch(claims []stake.ClaimRequest) []stake.ClaimResult {
	start := time.Now()
	results := c.StakeBook.ClaimRewardsBatch(claims)
	var batchErr error
	for _, r := range results {
		if r.Err != nil {
			batchErr = r.Err
			break
		}
	}
	c.observe("claim_rewards_batch", start, batchErr)
	return results
}

// Withdraw dispatches voteescrow.Book.Withdraw; permitted regardless of
// decommission state.
func (c *Coordinator) Withdraw(caller [20]byte, tokenID string, atPeriod uint64) (*big.Int, error) {
	return c.Escrow.Withdraw(caller, tokenID, atPeriod)
}

// Transfer dispatches voteescrow.Book.Transfer.
func (c *Coordinator) Transfer(caller [20]byte, tokenID string, atPeriod uint64, to [20]byte) error {
	return c.Escrow.Transfer(caller, tokenID, atPeriod, to)
}
