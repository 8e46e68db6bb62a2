package voteescrow

import (
	"fmt"
	"math/big"
	"sort"

	verrors "github.com/erisprotocol/ve3engine/core/errors"
	"github.com/erisprotocol/ve3engine/core/events"
	"github.com/erisprotocol/ve3engine/native/period"
)

// PositionStore persists Position records and the owner->token-ids index
// EscrowBook needs to aggregate a voter's whole curve.
type PositionStore interface {
	GetPosition(tokenID string) (*Position, bool, error)
	PutPosition(p *Position) error
	DeletePosition(tokenID string) error
	TokensByOwner(owner [20]byte) ([]string, error)
	NextTokenID() (string, error)
}

// MemPositionStore is an in-memory PositionStore for tests and standalone use.
type MemPositionStore struct {
	positions map[string]*Position
	byOwner   map[[20]byte]map[string]struct{}
	seq       uint64
}

// NewMemPositionStore constructs an empty in-memory PositionStore.
func NewMemPositionStore() *MemPositionStore {
	return &MemPositionStore{
		positions: make(map[string]*Position),
		byOwner:   make(map[[20]byte]map[string]struct{}),
	}
}

func (m *MemPositionStore) GetPosition(tokenID string) (*Position, bool, error) {
	p, ok := m.positions[tokenID]
	if !ok {
		return nil, false, nil
	}
	return p.Clone(), true, nil
}

func (m *MemPositionStore) PutPosition(p *Position) error {
	if existing, ok := m.positions[p.TokenID]; ok && existing.Owner != p.Owner {
		m.unindex(existing.Owner, p.TokenID)
	}
	m.positions[p.TokenID] = p.Clone()
	m.index(p.Owner, p.TokenID)
	return nil
}

func (m *MemPositionStore) DeletePosition(tokenID string) error {
	existing, ok := m.positions[tokenID]
	if !ok {
		return nil
	}
	m.unindex(existing.Owner, tokenID)
	delete(m.positions, tokenID)
	return nil
}

func (m *MemPositionStore) TokensByOwner(owner [20]byte) ([]string, error) {
	set := m.byOwner[owner]
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

func (m *MemPositionStore) NextTokenID() (string, error) {
	m.seq++
	return fmt.Sprintf("ve3-%d", m.seq), nil
}

func (m *MemPositionStore) index(owner [20]byte, tokenID string) {
	set, ok := m.byOwner[owner]
	if !ok {
		set = make(map[string]struct{})
		m.byOwner[owner] = set
	}
	set[tokenID] = struct{}{}
}

func (m *MemPositionStore) unindex(owner [20]byte, tokenID string) {
	set, ok := m.byOwner[owner]
	if !ok {
		return
	}
	delete(set, tokenID)
	if len(set) == 0 {
		delete(m.byOwner, owner)
	}
}

// Book is EscrowBook: the time-locked position ledger. It
// layers a Position record store over a per-token period.Curve plus a
// "TOTAL" curve, and pushes LockUpdate notifications to a Subscriber
// (GaugeBook) whenever a mutation changes an owner's aggregate curve.
type Book struct {
	positions      PositionStore
	curve          *period.Curve
	rates          ExchangeRateAdapter
	sub            Subscriber
	emitter        events.Emitter
	decommissioned bool
}

// NewBook constructs an EscrowBook. rates and sub may be nil, in which case
// IdentityRates{} and a no-op subscriber are used.
func NewBook(positions PositionStore, curveStore period.Store, rates ExchangeRateAdapter, sub Subscriber, emitter events.Emitter) *Book {
	if rates == nil {
		rates = IdentityRates{}
	}
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	return &Book{
		positions: positions,
		curve:     period.NewCurve(curveStore),
		rates:     rates,
		sub:       sub,
		emitter:   emitter,
	}
}

const totalKey = "TOTAL"

// SetSubscriber wires (or rewires) the push-notification subscriber.
// Exists because EscrowBook and GaugeBook are mutually referential at
// construction time: GaugeBook needs EscrowBook as a CurveSource, and
// EscrowBook needs GaugeBook as a Subscriber. Callers typically construct
// both books with nil on one side, then call SetSubscriber once both
// exist.
func (b *Book) SetSubscriber(sub Subscriber) { b.sub = sub }

// SetDecommissioned toggles the decommission flag: once set, CreateLock,
// ExtendTime, ExtendAmount, LockPermanent, UnlockPermanent, Merge, Split
// and Migrate reject. Withdraw, Transfer, Approve and Revoke do not check
// the flag.
func (b *Book) SetDecommissioned(v bool) { b.decommissioned = v }

// Decommissioned reports the current flag value.
func (b *Book) Decommissioned() bool { return b.decommissioned }

func (b *Book) requireActive() error {
	if b.decommissioned {
		return verrors.ErrCapabilityMissing
	}
	return nil
}

// VoterCurve aggregates the caller's whole position set into a single Point
// at atPeriod: the owner-level query GaugeBook needs since votes are
// tracked per owner, not per token.
func (b *Book) VoterCurve(owner [20]byte, atPeriod uint64) (period.Point, error) {
	ids, err := b.positions.TokensByOwner(owner)
	if err != nil {
		return period.Point{}, err
	}
	total := period.Zero()
	for _, id := range ids {
		pt, err := b.curve.LatestAt(id, atPeriod)
		if err != nil {
			return period.Point{}, err
		}
		total.VotingPower.Add(total.VotingPower, pt.VotingPower)
		total.Slope.Add(total.Slope, pt.Slope)
		total.Fixed.Add(total.Fixed, pt.Fixed)
	}
	return total, nil
}

// FutureSlopeSchedule sums, across every position owner holds, the
// scheduled slope-change entries at periods strictly greater than
// atPeriod+1: the voter's full future decay schedule, not just its current
// instantaneous slope. GaugeBook reads this at vote time so a (gauge,
// asset) aggregate's schedule is seeded immediately, rather than only
// catching up reactively through a later OnLockUpdate.
func (b *Book) FutureSlopeSchedule(owner [20]byte, atPeriod uint64) (map[uint64]*big.Int, error) {
	ids, err := b.positions.TokensByOwner(owner)
	if err != nil {
		return nil, err
	}
	out := make(map[uint64]*big.Int)
	for _, id := range ids {
		changes, err := b.curve.ScheduledSlopeChangesAfter(id, atPeriod+1)
		if err != nil {
			return nil, err
		}
		for p, delta := range changes {
			if v, ok := out[p]; ok {
				out[p] = new(big.Int).Add(v, delta)
			} else {
				out[p] = new(big.Int).Set(delta)
			}
		}
	}
	return out, nil
}

func (b *Book) pushOwnerUpdate(owner [20]byte, tokenID string, atPeriod uint64, before period.Point, futureSlopeDelta map[uint64]*big.Int) error {
	if b.sub == nil {
		return nil
	}
	after, err := b.VoterCurve(owner, atPeriod)
	if err != nil {
		return err
	}
	return b.sub.OnLockUpdate(LockUpdate{
		TokenID:          tokenID,
		Owner:            owner,
		AtPeriod:         atPeriod,
		Before:           before,
		After:            after,
		FutureSlopeDelta: futureSlopeDelta,
	})
}

// CreateLock mints a new position for owner, locking amount of asset for
// dt periods starting at atPeriod (create_lock).
func (b *Book) CreateLock(owner [20]byte, asset AssetInfo, amount *big.Int, atPeriod uint64, dt uint64, permanent bool) (*Position, error) {
	if err := b.requireActive(); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, verrors.ErrZeroAmount
	}
	if !permanent && (dt < period.MinLockPeriods || dt > period.MaxLockPeriods) {
		return nil, verrors.ErrDurationOutOfBand
	}

	rate, err := b.rates.Rate(asset)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", verrors.ErrExternalCall, err)
	}
	underlying := Normalize(rate, amount)

	tokenID, err := b.positions.NextTokenID()
	if err != nil {
		return nil, err
	}

	before, err := b.VoterCurve(owner, atPeriod)
	if err != nil {
		return nil, err
	}

	pos := &Position{
		TokenID:          tokenID,
		Owner:            owner,
		Asset:            asset,
		Amount:           new(big.Int).Set(amount),
		UnderlyingAmount: underlying,
		StartPeriod:      atPeriod,
		LastExtendPeriod: atPeriod,
		Approvals:        make(map[[20]byte]struct{}),
	}

	var delta period.Delta
	futureDelta := map[uint64]*big.Int{}
	if permanent {
		pos.End = End{Permanent: true}
		power := period.PermanentPower(underlying)
		delta = period.Delta{Fixed: power}
	} else {
		endPeriod := atPeriod + dt
		pos.End = End{Period: endPeriod}
		slope, initial := period.SlopeAndInitialPower(underlying, dt)
		delta = period.Delta{VotingPower: initial, Slope: slope}
		futureDelta[endPeriod] = slope
		if err := b.curve.ScheduleSlopeChange(tokenID, endPeriod, slope); err != nil {
			return nil, err
		}
		if err := b.curve.ScheduleSlopeChange(totalKey, endPeriod, slope); err != nil {
			return nil, err
		}
	}

	if err := b.curve.ApplyDelta(tokenID, atPeriod, delta, true); err != nil {
		return nil, err
	}
	if err := b.curve.ApplyDelta(totalKey, atPeriod, delta, true); err != nil {
		return nil, err
	}
	if err := b.positions.PutPosition(pos); err != nil {
		return nil, err
	}

	if err := b.pushOwnerUpdate(owner, tokenID, atPeriod, before, futureDelta); err != nil {
		return nil, err
	}

	b.emitter.Emit(LockCreated{TokenID: tokenID, Owner: owner, Asset: asset, Amount: amount, StartPeriod: atPeriod, End: pos.End})
	return pos, nil
}

// ExtendTime pushes a non-permanent position's end further out, re-deriving
// its slope/initial voting power from the full remaining duration.
func (b *Book) ExtendTime(caller [20]byte, tokenID string, atPeriod uint64, newEnd uint64) error {
	if err := b.requireActive(); err != nil {
		return err
	}
	pos, ok, err := b.positions.GetPosition(tokenID)
	if err != nil {
		return err
	}
	if !ok {
		return verrors.ErrPositionNotFound
	}
	if !pos.IsApprovedOrOwner(caller) {
		return verrors.ErrNotOwner
	}
	if pos.End.Permanent {
		return verrors.ErrAlreadyPermanent
	}
	if newEnd <= pos.End.Period {
		return verrors.ErrDurationOutOfBand
	}
	dt := newEnd - atPeriod
	if dt < period.MinLockPeriods || dt > period.MaxLockPeriods {
		return verrors.ErrDurationOutOfBand
	}

	before, err := b.VoterCurve(pos.Owner, atPeriod)
	if err != nil {
		return err
	}

	cur, err := b.curve.LatestAt(tokenID, atPeriod)
	if err != nil {
		return err
	}
	newSlope, newInitial := period.SlopeAndInitialPower(pos.UnderlyingAmount, dt)

	if err := b.curve.CancelSlopeChange(tokenID, pos.End.Period, cur.Slope); err != nil {
		return err
	}
	if err := b.curve.CancelSlopeChange(totalKey, pos.End.Period, cur.Slope); err != nil {
		return err
	}

	replace := period.Delta{
		VotingPower: new(big.Int).Sub(newInitial, cur.VotingPower),
		Slope:       new(big.Int).Sub(newSlope, cur.Slope),
	}
	if err := b.applySignedDelta(tokenID, atPeriod, replace); err != nil {
		return err
	}
	if err := b.applySignedDelta(totalKey, atPeriod, replace); err != nil {
		return err
	}

	if err := b.curve.ScheduleSlopeChange(tokenID, newEnd, newSlope); err != nil {
		return err
	}
	if err := b.curve.ScheduleSlopeChange(totalKey, newEnd, newSlope); err != nil {
		return err
	}

	oldEnd := pos.End.Period
	pos.End = End{Period: newEnd}
	pos.LastExtendPeriod = atPeriod
	if err := b.positions.PutPosition(pos); err != nil {
		return err
	}

	if err := b.pushOwnerUpdate(pos.Owner, tokenID, atPeriod, before, map[uint64]*big.Int{oldEnd: new(big.Int).Neg(cur.Slope), newEnd: newSlope}); err != nil {
		return err
	}
	b.emitter.Emit(LockExtended{TokenID: tokenID, Owner: pos.Owner, NewEnd: pos.End})
	return nil
}

// ExtendAmount deposits additional amount of the position's asset, adding
// its contribution to the voting curve over the position's remaining
// duration without changing the end period.
func (b *Book) ExtendAmount(caller [20]byte, tokenID string, atPeriod uint64, amount *big.Int) error {
	if err := b.requireActive(); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return verrors.ErrZeroAmount
	}
	pos, ok, err := b.positions.GetPosition(tokenID)
	if err != nil {
		return err
	}
	if !ok {
		return verrors.ErrPositionNotFound
	}
	if !pos.IsApprovedOrOwner(caller) {
		return verrors.ErrNotOwner
	}

	rate, err := b.rates.Rate(pos.Asset)
	if err != nil {
		return fmt.Errorf("%w: %v", verrors.ErrExternalCall, err)
	}
	addedUnderlying := Normalize(rate, amount)

	before, err := b.VoterCurve(pos.Owner, atPeriod)
	if err != nil {
		return err
	}

	pos.Amount = new(big.Int).Add(pos.Amount, amount)
	pos.UnderlyingAmount = new(big.Int).Add(pos.UnderlyingAmount, addedUnderlying)

	futureDelta := map[uint64]*big.Int{}
	var delta period.Delta
	if pos.End.Permanent {
		delta = period.Delta{Fixed: period.PermanentPower(addedUnderlying)}
	} else {
		dt := pos.End.Period - atPeriod
		if dt == 0 {
			return verrors.ErrNotExpired
		}
		slope, initial := period.SlopeAndInitialPower(addedUnderlying, dt)
		delta = period.Delta{VotingPower: initial, Slope: slope}
		futureDelta[pos.End.Period] = slope
		if err := b.curve.ScheduleSlopeChange(tokenID, pos.End.Period, slope); err != nil {
			return err
		}
		if err := b.curve.ScheduleSlopeChange(totalKey, pos.End.Period, slope); err != nil {
			return err
		}
	}

	if err := b.curve.ApplyDelta(tokenID, atPeriod, delta, true); err != nil {
		return err
	}
	if err := b.curve.ApplyDelta(totalKey, atPeriod, delta, true); err != nil {
		return err
	}
	if err := b.positions.PutPosition(pos); err != nil {
		return err
	}

	if err := b.pushOwnerUpdate(pos.Owner, tokenID, atPeriod, before, futureDelta); err != nil {
		return err
	}
	b.emitter.Emit(LockExtended{TokenID: tokenID, Owner: pos.Owner, AddedAmount: amount, NewEnd: pos.End})
	return nil
}

// LockPermanent converts a finite-duration position to permanent, replacing
// its decaying voting power with a fixed underlying*COEFF_MAX contribution
// (lock_permanent).
func (b *Book) LockPermanent(caller [20]byte, tokenID string, atPeriod uint64) error {
	if err := b.requireActive(); err != nil {
		return err
	}
	pos, ok, err := b.positions.GetPosition(tokenID)
	if err != nil {
		return err
	}
	if !ok {
		return verrors.ErrPositionNotFound
	}
	if !pos.IsApprovedOrOwner(caller) {
		return verrors.ErrNotOwner
	}
	if pos.End.Permanent {
		return verrors.ErrAlreadyPermanent
	}

	before, err := b.VoterCurve(pos.Owner, atPeriod)
	if err != nil {
		return err
	}

	cur, err := b.curve.LatestAt(tokenID, atPeriod)
	if err != nil {
		return err
	}
	if err := b.curve.CancelSlopeChange(tokenID, pos.End.Period, cur.Slope); err != nil {
		return err
	}
	if err := b.curve.CancelSlopeChange(totalKey, pos.End.Period, cur.Slope); err != nil {
		return err
	}

	fixed := period.PermanentPower(pos.UnderlyingAmount)
	replaceTok := period.Delta{VotingPower: new(big.Int).Neg(cur.VotingPower), Slope: new(big.Int).Neg(cur.Slope), Fixed: fixed}
	if err := b.applySignedDelta(tokenID, atPeriod, replaceTok); err != nil {
		return err
	}
	if err := b.applySignedDelta(totalKey, atPeriod, replaceTok); err != nil {
		return err
	}

	oldEnd := pos.End.Period
	pos.End = End{Permanent: true}
	if err := b.positions.PutPosition(pos); err != nil {
		return err
	}

	if err := b.pushOwnerUpdate(pos.Owner, tokenID, atPeriod, before, map[uint64]*big.Int{oldEnd: new(big.Int).Neg(cur.Slope)}); err != nil {
		return err
	}
	b.emitter.Emit(LockPermanentSet{TokenID: tokenID, Owner: pos.Owner, Permanent: true})
	return nil
}

// UnlockPermanent converts a permanent position back to a finite lock of dt
// periods, trading the fixed contribution for a freshly derived decaying
// one (unlock_permanent).
func (b *Book) UnlockPermanent(caller [20]byte, tokenID string, atPeriod uint64, dt uint64) error {
	if err := b.requireActive(); err != nil {
		return err
	}
	if dt < period.MinLockPeriods || dt > period.MaxLockPeriods {
		return verrors.ErrDurationOutOfBand
	}
	pos, ok, err := b.positions.GetPosition(tokenID)
	if err != nil {
		return err
	}
	if !ok {
		return verrors.ErrPositionNotFound
	}
	if !pos.IsApprovedOrOwner(caller) {
		return verrors.ErrNotOwner
	}
	if !pos.End.Permanent {
		return verrors.ErrNotPermanent
	}

	before, err := b.VoterCurve(pos.Owner, atPeriod)
	if err != nil {
		return err
	}

	fixed := period.PermanentPower(pos.UnderlyingAmount)
	slope, initial := period.SlopeAndInitialPower(pos.UnderlyingAmount, dt)
	endPeriod := atPeriod + dt

	replace := period.Delta{VotingPower: initial, Slope: slope, Fixed: new(big.Int).Neg(fixed)}
	if err := b.applySignedDelta(tokenID, atPeriod, replace); err != nil {
		return err
	}
	if err := b.applySignedDelta(totalKey, atPeriod, replace); err != nil {
		return err
	}
	if err := b.curve.ScheduleSlopeChange(tokenID, endPeriod, slope); err != nil {
		return err
	}
	if err := b.curve.ScheduleSlopeChange(totalKey, endPeriod, slope); err != nil {
		return err
	}

	pos.End = End{Period: endPeriod}
	pos.LastExtendPeriod = atPeriod
	if err := b.positions.PutPosition(pos); err != nil {
		return err
	}

	if err := b.pushOwnerUpdate(pos.Owner, tokenID, atPeriod, before, map[uint64]*big.Int{endPeriod: slope}); err != nil {
		return err
	}
	b.emitter.Emit(LockPermanentSet{TokenID: tokenID, Owner: pos.Owner, Permanent: false, EndPeriod: endPeriod})
	return nil
}

// applySignedDelta applies a Delta whose components may each independently
// be negative, routing each field through ApplyDelta's add/sub saturation
// separately so a negative VotingPower and positive Fixed in the same call
// (as LockPermanent/UnlockPermanent produce) are both handled correctly.
func (b *Book) applySignedDelta(key string, atPeriod uint64, d period.Delta) error {
	if d.VotingPower != nil && d.VotingPower.Sign() != 0 {
		add := d.VotingPower.Sign() > 0
		v := new(big.Int).Abs(d.VotingPower)
		if err := b.curve.ApplyDelta(key, atPeriod, period.Delta{VotingPower: v}, add); err != nil {
			return err
		}
	}
	if d.Slope != nil && d.Slope.Sign() != 0 {
		add := d.Slope.Sign() > 0
		v := new(big.Int).Abs(d.Slope)
		if err := b.curve.ApplyDelta(key, atPeriod, period.Delta{Slope: v}, add); err != nil {
			return err
		}
	}
	if d.Fixed != nil && d.Fixed.Sign() != 0 {
		add := d.Fixed.Sign() > 0
		v := new(big.Int).Abs(d.Fixed)
		if err := b.curve.ApplyDelta(key, atPeriod, period.Delta{Fixed: v}, add); err != nil {
			return err
		}
	}
	return nil
}

// Merge folds fromID's underlying and curve contribution into intoID,
// burning fromID (merge). Both positions must share an owner,
// asset, and maturity class (both permanent, or both finite with the same
// end period) per ErrMergeMismatch.
func (b *Book) Merge(caller [20]byte, fromID, intoID string, atPeriod uint64) error {
	if err := b.requireActive(); err != nil {
		return err
	}
	from, ok, err := b.positions.GetPosition(fromID)
	if err != nil {
		return err
	}
	if !ok {
		return verrors.ErrPositionNotFound
	}
	into, ok, err := b.positions.GetPosition(intoID)
	if err != nil {
		return err
	}
	if !ok {
		return verrors.ErrPositionNotFound
	}
	if !from.IsApprovedOrOwner(caller) || !into.IsApprovedOrOwner(caller) {
		return verrors.ErrNotOwner
	}
	if from.Owner != into.Owner || !from.Asset.Equal(into.Asset) {
		return verrors.ErrMergeMismatch
	}
	if from.End.Permanent != into.End.Permanent || (!from.End.Permanent && from.End.Period != into.End.Period) {
		return verrors.ErrMergeMismatch
	}

	before, err := b.VoterCurve(from.Owner, atPeriod)
	if err != nil {
		return err
	}

	fromCur, err := b.curve.LatestAt(fromID, atPeriod)
	if err != nil {
		return err
	}
	moveIn := period.Delta{VotingPower: fromCur.VotingPower, Slope: fromCur.Slope, Fixed: fromCur.Fixed}
	if err := b.curve.ApplyDelta(intoID, atPeriod, moveIn, true); err != nil {
		return err
	}
	if err := b.curve.SetPoint(fromID, atPeriod, period.Zero()); err != nil {
		return err
	}
	if !from.End.Permanent {
		if err := b.curve.CancelSlopeChange(fromID, from.End.Period, fromCur.Slope); err != nil {
			return err
		}
		if err := b.curve.ScheduleSlopeChange(intoID, from.End.Period, fromCur.Slope); err != nil {
			return err
		}
	}

	into.Amount = new(big.Int).Add(into.Amount, from.Amount)
	into.UnderlyingAmount = new(big.Int).Add(into.UnderlyingAmount, from.UnderlyingAmount)
	if err := b.positions.PutPosition(into); err != nil {
		return err
	}
	if err := b.positions.DeletePosition(fromID); err != nil {
		return err
	}

	if err := b.pushOwnerUpdate(from.Owner, intoID, atPeriod, before, nil); err != nil {
		return err
	}
	b.emitter.Emit(LockMerged{FromTokenID: fromID, IntoTokenID: intoID, Owner: into.Owner, NewAmount: into.Amount})
	return nil
}

// Split carves splitAmount (of the position's deposit Amount) off tokenID
// into a freshly minted sibling position with a proportional share of the
// curve contribution (split).
func (b *Book) Split(caller [20]byte, tokenID string, atPeriod uint64, splitAmount *big.Int) (*Position, error) {
	if err := b.requireActive(); err != nil {
		return nil, err
	}
	if splitAmount == nil || splitAmount.Sign() <= 0 {
		return nil, verrors.ErrZeroAmount
	}
	pos, ok, err := b.positions.GetPosition(tokenID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, verrors.ErrPositionNotFound
	}
	if !pos.IsApprovedOrOwner(caller) {
		return nil, verrors.ErrNotOwner
	}
	if splitAmount.Cmp(pos.Amount) >= 0 {
		return nil, verrors.ErrZeroAmount
	}

	before, err := b.VoterCurve(pos.Owner, atPeriod)
	if err != nil {
		return nil, err
	}

	cur, err := b.curve.LatestAt(tokenID, atPeriod)
	if err != nil {
		return nil, err
	}

	// Proportional split: the new position takes splitAmount/Amount of the
	// current curve contribution; remainder stays with tokenID.
	num := new(big.Int).Set(splitAmount)
	den := new(big.Int).Set(pos.Amount)
	moveVP := new(big.Int).Quo(new(big.Int).Mul(cur.VotingPower, num), den)
	moveSlope := new(big.Int).Quo(new(big.Int).Mul(cur.Slope, num), den)
	moveFixed := new(big.Int).Quo(new(big.Int).Mul(cur.Fixed, num), den)
	moveUnderlying := new(big.Int).Quo(new(big.Int).Mul(pos.UnderlyingAmount, num), den)

	newID, err := b.positions.NextTokenID()
	if err != nil {
		return nil, err
	}
	newPos := &Position{
		TokenID:          newID,
		Owner:            pos.Owner,
		Asset:            pos.Asset,
		Amount:           new(big.Int).Set(splitAmount),
		UnderlyingAmount: moveUnderlying,
		StartPeriod:      pos.StartPeriod,
		End:              pos.End,
		LastExtendPeriod: pos.LastExtendPeriod,
		Approvals:        make(map[[20]byte]struct{}),
	}

	if err := b.curve.ApplyDelta(tokenID, atPeriod, period.Delta{VotingPower: moveVP, Slope: moveSlope, Fixed: moveFixed}, false); err != nil {
		return nil, err
	}
	if err := b.curve.SetPoint(newID, atPeriod, period.Point{VotingPower: moveVP, Slope: moveSlope, Fixed: moveFixed}); err != nil {
		return nil, err
	}
	if !pos.End.Permanent && moveSlope.Sign() > 0 {
		if err := b.curve.ScheduleSlopeChange(newID, pos.End.Period, moveSlope); err != nil {
			return nil, err
		}
	}

	pos.Amount = new(big.Int).Sub(pos.Amount, splitAmount)
	pos.UnderlyingAmount = new(big.Int).Sub(pos.UnderlyingAmount, moveUnderlying)
	if err := b.positions.PutPosition(pos); err != nil {
		return nil, err
	}
	if err := b.positions.PutPosition(newPos); err != nil {
		return nil, err
	}

	if err := b.pushOwnerUpdate(pos.Owner, tokenID, atPeriod, before, nil); err != nil {
		return nil, err
	}
	b.emitter.Emit(LockSplit{FromTokenID: tokenID, NewTokenID: newID, Owner: pos.Owner, SplitAmount: splitAmount})
	return newPos, nil
}

// Withdraw burns an expired, non-permanent position and returns its
// deposit Amount to the caller (withdraw). Withdraw does not consult the
// decommission flag: it is permitted while the book is decommissioned, and
// it still rejects a permanent or unexpired position then.
func (b *Book) Withdraw(caller [20]byte, tokenID string, atPeriod uint64) (*big.Int, error) {
	pos, ok, err := b.positions.GetPosition(tokenID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, verrors.ErrPositionNotFound
	}
	if !pos.IsApprovedOrOwner(caller) {
		return nil, verrors.ErrNotOwner
	}
	if pos.End.Permanent {
		return nil, verrors.ErrAlreadyPermanent
	}
	if atPeriod < pos.End.Period {
		return nil, verrors.ErrNotExpired
	}

	before, err := b.VoterCurve(pos.Owner, atPeriod)
	if err != nil {
		return nil, err
	}

	if err := b.positions.DeletePosition(tokenID); err != nil {
		return nil, err
	}

	if err := b.pushOwnerUpdate(pos.Owner, tokenID, atPeriod, before, nil); err != nil {
		return nil, err
	}
	b.emitter.Emit(LockWithdrawn{TokenID: tokenID, Owner: pos.Owner, Amount: pos.Amount})
	return pos.Amount, nil
}

// Migrate withdraws the position's deposit via zapper into a different
// asset and re-deposits the proceeds into the same token id, preserving
// start/end/maturity class but re-deriving the underlying amount and curve
// contribution from the new asset's exchange rate (migrate).
func (b *Book) Migrate(caller [20]byte, tokenID string, atPeriod uint64, to AssetInfo, zapper Zapper, minReceived *big.Int) error {
	if err := b.requireActive(); err != nil {
		return err
	}
	pos, ok, err := b.positions.GetPosition(tokenID)
	if err != nil {
		return err
	}
	if !ok {
		return verrors.ErrPositionNotFound
	}
	if !pos.IsApprovedOrOwner(caller) {
		return verrors.ErrNotOwner
	}
	if pos.Asset.Equal(to) {
		return verrors.ErrWrongAsset
	}

	received, err := zapper.Swap(pos.Owner, pos.Asset, pos.Amount, to, minReceived)
	if err != nil {
		return fmt.Errorf("%w: %v", verrors.ErrExternalCall, err)
	}
	rate, err := b.rates.Rate(to)
	if err != nil {
		return fmt.Errorf("%w: %v", verrors.ErrExternalCall, err)
	}
	newUnderlying := Normalize(rate, received)

	before, err := b.VoterCurve(pos.Owner, atPeriod)
	if err != nil {
		return err
	}

	cur, err := b.curve.LatestAt(tokenID, atPeriod)
	if err != nil {
		return err
	}
	undo := period.Delta{VotingPower: new(big.Int).Neg(cur.VotingPower), Slope: new(big.Int).Neg(cur.Slope), Fixed: new(big.Int).Neg(cur.Fixed)}
	if err := b.applySignedDelta(tokenID, atPeriod, undo); err != nil {
		return err
	}
	if err := b.applySignedDelta(totalKey, atPeriod, undo); err != nil {
		return err
	}
	if !pos.End.Permanent && cur.Slope.Sign() > 0 {
		if err := b.curve.CancelSlopeChange(tokenID, pos.End.Period, cur.Slope); err != nil {
			return err
		}
		if err := b.curve.CancelSlopeChange(totalKey, pos.End.Period, cur.Slope); err != nil {
			return err
		}
	}

	var redo period.Delta
	futureDelta := map[uint64]*big.Int{}
	if pos.End.Permanent {
		redo = period.Delta{Fixed: period.PermanentPower(newUnderlying)}
	} else {
		dt := pos.End.Period - atPeriod
		slope, initial := period.SlopeAndInitialPower(newUnderlying, dt)
		redo = period.Delta{VotingPower: initial, Slope: slope}
		futureDelta[pos.End.Period] = new(big.Int).Sub(slope, cur.Slope)
		if err := b.curve.ScheduleSlopeChange(tokenID, pos.End.Period, slope); err != nil {
			return err
		}
		if err := b.curve.ScheduleSlopeChange(totalKey, pos.End.Period, slope); err != nil {
			return err
		}
	}
	if err := b.curve.ApplyDelta(tokenID, atPeriod, redo, true); err != nil {
		return err
	}
	if err := b.curve.ApplyDelta(totalKey, atPeriod, redo, true); err != nil {
		return err
	}

	fromAsset := pos.Asset
	pos.Asset = to
	pos.Amount = received
	pos.UnderlyingAmount = newUnderlying
	if err := b.positions.PutPosition(pos); err != nil {
		return err
	}

	if err := b.pushOwnerUpdate(pos.Owner, tokenID, atPeriod, before, futureDelta); err != nil {
		return err
	}
	b.emitter.Emit(LockMigrated{TokenID: tokenID, Owner: pos.Owner, FromAsset: fromAsset, ToAsset: to, Received: received})
	return nil
}

// Transfer moves ownership of tokenID from its current owner to to,
// clearing any standing approvals (transfer).
func (b *Book) Transfer(caller [20]byte, tokenID string, atPeriod uint64, to [20]byte) error {
	pos, ok, err := b.positions.GetPosition(tokenID)
	if err != nil {
		return err
	}
	if !ok {
		return verrors.ErrPositionNotFound
	}
	if !pos.IsApprovedOrOwner(caller) {
		return verrors.ErrNotOwner
	}
	from := pos.Owner

	beforeFrom, err := b.VoterCurve(from, atPeriod)
	if err != nil {
		return err
	}
	beforeTo, err := b.VoterCurve(to, atPeriod)
	if err != nil {
		return err
	}

	pos.Owner = to
	pos.Approvals = make(map[[20]byte]struct{})
	if err := b.positions.PutPosition(pos); err != nil {
		return err
	}

	if b.sub != nil {
		toDelta, err := b.curve.ScheduledSlopeChangesAfter(tokenID, atPeriod+1)
		if err != nil {
			return err
		}
		fromDelta := make(map[uint64]*big.Int, len(toDelta))
		for p, d := range toDelta {
			fromDelta[p] = new(big.Int).Neg(d)
		}
		afterFrom, err := b.VoterCurve(from, atPeriod)
		if err != nil {
			return err
		}
		if err := b.sub.OnLockUpdate(LockUpdate{TokenID: tokenID, Owner: from, AtPeriod: atPeriod, Before: beforeFrom, After: afterFrom, FutureSlopeDelta: fromDelta}); err != nil {
			return err
		}
		afterTo, err := b.VoterCurve(to, atPeriod)
		if err != nil {
			return err
		}
		if err := b.sub.OnLockUpdate(LockUpdate{TokenID: tokenID, Owner: to, AtPeriod: atPeriod, Before: beforeTo, After: afterTo, FutureSlopeDelta: toDelta}); err != nil {
			return err
		}
	}

	b.emitter.Emit(LockTransferred{TokenID: tokenID, From: from, To: to})
	return nil
}

// Approve grants spender the right to act on tokenID on the owner's behalf.
func (b *Book) Approve(caller [20]byte, tokenID string, spender [20]byte) error {
	pos, ok, err := b.positions.GetPosition(tokenID)
	if err != nil {
		return err
	}
	if !ok {
		return verrors.ErrPositionNotFound
	}
	if pos.Owner != caller {
		return verrors.ErrNotOwner
	}
	pos.Approvals[spender] = struct{}{}
	return b.positions.PutPosition(pos)
}

// Revoke removes a previously granted approval.
func (b *Book) Revoke(caller [20]byte, tokenID string, spender [20]byte) error {
	pos, ok, err := b.positions.GetPosition(tokenID)
	if err != nil {
		return err
	}
	if !ok {
		return verrors.ErrPositionNotFound
	}
	if pos.Owner != caller {
		return verrors.ErrNotOwner
	}
	delete(pos.Approvals, spender)
	return b.positions.PutPosition(pos)
}

// Get returns a clone of a stored position.
func (b *Book) Get(tokenID string) (*Position, bool, error) {
	return b.positions.GetPosition(tokenID)
}

// TotalCurve returns the book-wide aggregate curve at atPeriod.
func (b *Book) TotalCurve(atPeriod uint64) (period.Point, error) {
	return b.curve.LatestAt(totalKey, atPeriod)
}
