package stake

import (
	"fmt"
	"math/big"

	verrors "github.com/erisprotocol/ve3engine/core/errors"
	"github.com/erisprotocol/ve3engine/core/events"
)

// Book is StakeBook: the share accounting, take-rate skim, and reward
// index ledger.
type Book struct {
	store     Store
	forwarder StakeForwarder
	sink      RewardSink
	emitter   events.Emitter
	now       func() uint64
}

// NewBook constructs a StakeBook. forwarder/sink/emitter may be nil. now is
// kept on the Book but no method reads it: every time-dependent operation
// takes nowUnix explicitly, so now may be nil as well.
func NewBook(store Store, forwarder StakeForwarder, sink RewardSink, emitter events.Emitter, now func() uint64) *Book {
	if forwarder == nil {
		forwarder = NoopForwarder{}
	}
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	return &Book{store: store, forwarder: forwarder, sink: sink, emitter: emitter, now: now}
}

// RegisterAsset whitelists a new stake asset.
func (b *Book) RegisterAsset(id string, yearlyTakeRateWad *big.Int) error {
	if _, ok, _ := b.store.GetAsset(id); ok {
		return nil
	}
	return b.store.PutAsset(NewAsset(id, yearlyTakeRateWad))
}

// Whitelist marks an existing asset whitelisted.
func (b *Book) Whitelist(id string) error {
	a, ok, err := b.store.GetAsset(id)
	if err != nil {
		return err
	}
	if !ok {
		return verrors.ErrUnknownAsset
	}
	a.Whitelisted = true
	return b.store.PutAsset(a)
}

// Delist clears an asset's whitelist flag; existing stakers are unaffected,
// but Stake rejects further deposits.
func (b *Book) Delist(id string) error {
	a, ok, err := b.store.GetAsset(id)
	if err != nil {
		return err
	}
	if !ok {
		return verrors.ErrUnknownAsset
	}
	a.Whitelisted = false
	return b.store.PutAsset(a)
}

// IsWhitelisted reports an asset's whitelist flag.
func (b *Book) IsWhitelisted(id string) (bool, error) {
	a, ok, err := b.store.GetAsset(id)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	return a.Whitelisted, nil
}

// accrueTake updates Taken/LastTakenUnix in place per lazy
// take-rate rule, clamping elapsed time to one year.
func (b *Book) accrueTake(a *Asset, nowUnix uint64) {
	if a.LastTakenUnix == 0 && a.TotalBalance.Sign() == 0 {
		a.LastTakenUnix = nowUnix
		return
	}
	if nowUnix <= a.LastTakenUnix {
		return
	}
	dt := nowUnix - a.LastTakenUnix
	if dt > SecondsPerYear {
		dt = SecondsPerYear
	}
	base := satSub(a.TotalBalance, a.Taken)
	skim := new(big.Int).Mul(a.YearlyTakeRateWad, base)
	skim.Mul(skim, new(big.Int).SetUint64(dt))
	skim.Quo(skim, big.NewInt(RateScale))
	skim.Quo(skim, big.NewInt(SecondsPerYear))
	a.Taken = new(big.Int).Add(a.Taken, skim)
	a.LastTakenUnix = nowUnix
}

func (b *Book) settleRewards(a *Asset, owner [20]byte) {
	shares := a.sharesOf(owner)
	if shares.Sign() > 0 {
		rateDelta := satSub(a.RewardRateWad, a.rewardRateOf(owner))
		if rateDelta.Sign() > 0 {
			pending := new(big.Int).Mul(rateDelta, shares)
			pending.Quo(pending, big.NewInt(RateScale))
			a.PerUserUnclaimed[owner] = new(big.Int).Add(a.unclaimedOf(owner), pending)
		}
	}
	a.PerUserRewardRate[owner] = cloneInt(a.RewardRateWad)
}

// Stake deposits amount of asset for owner, issuing shares proportional to
// the current available_balance (stake).
func (b *Book) Stake(owner [20]byte, assetID string, amount *big.Int, nowUnix uint64) (*big.Int, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, verrors.ErrZeroAmount
	}
	a, ok, err := b.store.GetAsset(assetID)
	if err != nil {
		return nil, err
	}
	if !ok || !a.Whitelisted {
		return nil, verrors.ErrUnknownAsset
	}

	b.accrueTake(a, nowUnix)
	b.settleRewards(a, owner)

	var newShares *big.Int
	if a.TotalShares.Sign() == 0 {
		newShares = new(big.Int).Set(amount)
	} else {
		avail := a.AvailableBalance()
		if avail.Sign() == 0 {
			newShares = new(big.Int).Set(amount)
		} else {
			newShares = new(big.Int).Mul(amount, a.TotalShares)
			newShares.Quo(newShares, avail)
		}
	}

	a.TotalBalance = new(big.Int).Add(a.TotalBalance, amount)
	a.TotalShares = new(big.Int).Add(a.TotalShares, newShares)
	a.PerUserShares[owner] = new(big.Int).Add(a.sharesOf(owner), newShares)

	if err := b.store.PutAsset(a); err != nil {
		return nil, err
	}
	b.emitter.Emit(Staked{Owner: owner, AssetID: assetID, Amount: amount.String(), NewShares: newShares.String()})
	return newShares, nil
}

// Unstake withdraws shareAmount's worth of asset for owner, clamping to
// the owner's full balance if the computed amount would exceed it.
func (b *Book) Unstake(owner [20]byte, assetID string, shareAmount *big.Int, nowUnix uint64) (*big.Int, error) {
	if shareAmount == nil || shareAmount.Sign() <= 0 {
		return nil, verrors.ErrZeroAmount
	}
	a, ok, err := b.store.GetAsset(assetID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, verrors.ErrUnknownAsset
	}

	b.accrueTake(a, nowUnix)
	b.settleRewards(a, owner)

	ownerShares := a.sharesOf(owner)
	clamped := false
	if shareAmount.Cmp(ownerShares) > 0 {
		shareAmount = ownerShares
		clamped = true
	}
	if shareAmount.Sign() <= 0 {
		return nil, verrors.ErrZeroAmount
	}

	avail := a.AvailableBalance()
	var amount *big.Int
	if a.TotalShares.Sign() == 0 {
		amount = big.NewInt(0)
	} else {
		amount = new(big.Int).Mul(shareAmount, avail)
		amount.Quo(amount, a.TotalShares)
	}

	a.TotalShares = satSub(a.TotalShares, shareAmount)
	a.TotalBalance = satSub(a.TotalBalance, amount)
	a.PerUserShares[owner] = satSub(ownerShares, shareAmount)

	if err := b.store.PutAsset(a); err != nil {
		return nil, err
	}

	if err := b.forwarder.Forward(owner, assetID, amount); err != nil {
		return nil, fmt.Errorf("%w: %v", verrors.ErrExternalCall, err)
	}

	b.emitter.Emit(Unstaked{Owner: owner, AssetID: assetID, Amount: amount.String(), Clamped: clamped})
	return amount, nil
}

// DistributeTake pays the accrued-but-unharvested take to the take
// recipient and advances harvested to equal taken (take rate).
func (b *Book) DistributeTake(assetID string, nowUnix uint64, recipientSink RewardSink, recipient [20]byte) (*big.Int, error) {
	a, ok, err := b.store.GetAsset(assetID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, verrors.ErrUnknownAsset
	}
	b.accrueTake(a, nowUnix)

	owed := satSub(a.Taken, a.Harvested)
	if owed.Sign() <= 0 {
		return big.NewInt(0), nil
	}
	a.Harvested = new(big.Int).Set(a.Taken)
	if err := b.store.PutAsset(a); err != nil {
		return nil, err
	}
	if recipientSink != nil {
		if err := recipientSink.Pay(recipient, assetID, owed); err != nil {
			return nil, fmt.Errorf("%w: %v", verrors.ErrExternalCall, err)
		}
	}
	b.emitter.Emit(TakeDistributed{AssetID: assetID, Amount: owed.String()})
	return owed, nil
}

// ApplyRewardDelta implements "rewards update" callback: given
// the pre/post balance delta of the reward asset and a gauge distribution's
// per-asset shares (WAD units summing to period.CoeffScale), splits the
// delta across assets with nonzero total_shares and bumps each asset's
// reward_rate index.
func (b *Book) ApplyRewardDelta(delta *big.Int, sharesByAsset map[string]*big.Int, shareScale int64) error {
	if delta == nil || delta.Sign() <= 0 {
		return nil
	}
	for assetID, shareWad := range sharesByAsset {
		a, ok, err := b.store.GetAsset(assetID)
		if err != nil {
			return err
		}
		if !ok || a.TotalShares.Sign() == 0 {
			continue
		}
		assetDelta := new(big.Int).Mul(delta, shareWad)
		assetDelta.Quo(assetDelta, big.NewInt(shareScale))
		if assetDelta.Sign() <= 0 {
			continue
		}
		inc := new(big.Int).Mul(assetDelta, big.NewInt(RateScale))
		inc.Quo(inc, a.TotalShares)
		a.RewardRateWad = new(big.Int).Add(a.RewardRateWad, inc)
		if err := b.store.PutAsset(a); err != nil {
			return err
		}
	}
	return nil
}

// claim settles and pays a single owner's accrued rewards for an asset
// through the configured RewardSink. The owner's unclaimed balance is NOT
// rolled back to zero on sink failure — it is only cleared once Pay
// succeeds, so a failed claim remains claimable on retry.
func (b *Book) claim(owner [20]byte, assetID string) (*big.Int, error) {
	a, ok, err := b.store.GetAsset(assetID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, verrors.ErrUnknownAsset
	}
	b.settleRewards(a, owner)

	claimable := a.unclaimedOf(owner)
	if claimable.Sign() <= 0 {
		return nil, verrors.ErrNothingToClaim
	}

	if b.sink != nil {
		if err := b.sink.Pay(owner, assetID, claimable); err != nil {
			if perr := b.store.PutAsset(a); perr != nil {
				return nil, perr
			}
			b.emitter.Emit(RewardClaimFailed{Owner: owner, AssetID: assetID, Reason: err.Error()})
			return nil, fmt.Errorf("%w: %v", verrors.ErrExternalCall, err)
		}
	}

	a.PerUserUnclaimed[owner] = big.NewInt(0)
	if err := b.store.PutAsset(a); err != nil {
		return nil, err
	}
	b.emitter.Emit(RewardsClaimed{Owner: owner, AssetID: assetID, Amount: claimable.String()})
	return claimable, nil
}

// ClaimRewards settles and pays an owner's accrued rewards for a single
// asset. A sink failure here propagates directly to the caller; batched
// claims across several assets should use ClaimRewardsBatch instead, which
// isolates each entry's failure from the rest.
func (b *Book) ClaimRewards(owner [20]byte, assetID string) (*big.Int, error) {
	return b.claim(owner, assetID)
}

// ClaimRequest names one reward claim inside a ClaimRewardsBatch call.
type ClaimRequest struct {
	Owner   [20]byte
	AssetID string
}

// ClaimResult is one entry's outcome from ClaimRewardsBatch.
type ClaimResult struct {
	Owner   [20]byte
	AssetID string
	Amount  *big.Int
	Err     error
}

// ClaimRewardsBatch settles and pays every claim in turn. A sink failure
// or validation error on one entry is recorded in that entry's Result
// rather than aborting the remaining entries (a sink failure also emits
// RewardClaimFailed), so one misbehaving recipient cannot block payouts to
// the rest of the batch.
func (b *Book) ClaimRewardsBatch(claims []ClaimRequest) []ClaimResult {
	results := make([]ClaimResult, len(claims))
	for i, req := range claims {
		amount, err := b.claim(req.Owner, req.AssetID)
		results[i] = ClaimResult{Owner: req.Owner, AssetID: req.AssetID, Amount: amount, Err: err}
	}
	return results
}

// Get returns a clone of a stored asset.
func (b *Book) Get(assetID string) (*Asset, bool, error) {
	return b.store.GetAsset(assetID)
}
