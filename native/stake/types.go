// Package stake implements StakeBook: the share/balance accounting ledger
// with a continuous take-rate skim and a per-user reward-rate index.
package stake

import "math/big"

// SecondsPerYear clamps take-rate accrual: dt is capped to one year.
const SecondsPerYear = 365 * 24 * 60 * 60

// RateScale is the WAD fixed-point unit for yearly_take_rate and reward_rate.
const RateScale = 1_000_000_000_000_000_000

// Asset is the StakeAsset record.
type Asset struct {
	ID                string
	TotalBalance      *big.Int
	TotalShares       *big.Int
	Taken             *big.Int
	Harvested         *big.Int
	YearlyTakeRateWad *big.Int
	LastTakenUnix     uint64
	RewardRateWad     *big.Int
	PerUserShares     map[[20]byte]*big.Int
	PerUserRewardRate map[[20]byte]*big.Int
	PerUserUnclaimed  map[[20]byte]*big.Int
	Whitelisted       bool
}

// NewAsset returns a zeroed StakeAsset record.
func NewAsset(id string, yearlyTakeRateWad *big.Int) *Asset {
	return &Asset{
		ID:                id,
		TotalBalance:      big.NewInt(0),
		TotalShares:       big.NewInt(0),
		Taken:             big.NewInt(0),
		Harvested:         big.NewInt(0),
		YearlyTakeRateWad: cloneInt(yearlyTakeRateWad),
		RewardRateWad:     big.NewInt(0),
		PerUserShares:     make(map[[20]byte]*big.Int),
		PerUserRewardRate: make(map[[20]byte]*big.Int),
		PerUserUnclaimed:  make(map[[20]byte]*big.Int),
		Whitelisted:       true,
	}
}

// AvailableBalance is total_balance - taken: the pool backing shares.
func (a *Asset) AvailableBalance() *big.Int {
	return satSub(a.TotalBalance, a.Taken)
}

func (a *Asset) sharesOf(owner [20]byte) *big.Int {
	if v, ok := a.PerUserShares[owner]; ok {
		return v
	}
	return big.NewInt(0)
}

func (a *Asset) rewardRateOf(owner [20]byte) *big.Int {
	if v, ok := a.PerUserRewardRate[owner]; ok {
		return v
	}
	return big.NewInt(0)
}

func (a *Asset) unclaimedOf(owner [20]byte) *big.Int {
	if v, ok := a.PerUserUnclaimed[owner]; ok {
		return v
	}
	return big.NewInt(0)
}

func cloneInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

func nonNil(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v
}

func satSub(a, b *big.Int) *big.Int {
	out := new(big.Int).Sub(nonNil(a), nonNil(b))
	if out.Sign() < 0 {
		return big.NewInt(0)
	}
	return out
}

// Store persists stake assets.
type Store interface {
	GetAsset(id string) (*Asset, bool, error)
	PutAsset(a *Asset) error
}

// StakeForwarder is an external contract an unstaked amount may optionally
// be redeposited into (e.g. an incentive wrapper). Its errors propagate
// like any other non-reward-claim subcall.
type StakeForwarder interface {
	Forward(owner [20]byte, assetID string, amount *big.Int) error
}

// NoopForwarder performs no forwarding.
type NoopForwarder struct{}

// Forward implements StakeForwarder as a no-op.
func (NoopForwarder) Forward([20]byte, string, *big.Int) error { return nil }

// RewardSink receives a per-recipient reward payout. ClaimRewardsBatch
// records a RewardSink error in that entry's own result and goes on with
// the rest of the batch; ClaimRewards and DistributeTake return the error
// to their caller, wrapped in ErrExternalCall.
type RewardSink interface {
	Pay(owner [20]byte, assetID string, amount *big.Int) error
}
