package gauge

import (
	"math/big"
	"sort"

	verrors "github.com/erisprotocol/ve3engine/core/errors"
	"github.com/erisprotocol/ve3engine/core/events"
	"github.com/erisprotocol/ve3engine/native/period"
	"github.com/erisprotocol/ve3engine/native/voteescrow"
)

// CurveSource resolves a voter's current aggregate voting curve and its
// pending future slope-change schedule. native/voteescrow.Book satisfies
// this.
type CurveSource interface {
	VoterCurve(owner [20]byte, atPeriod uint64) (period.Point, error)
	FutureSlopeSchedule(owner [20]byte, atPeriod uint64) (map[uint64]*big.Int, error)
}

const bpsDenominator = 10_000

// Book is GaugeBook: the vote-allocation and distribution ledger. It
// implements voteescrow.Subscriber so EscrowBook can push LockUpdate
// notifications whenever an owner's aggregate curve changes.
type Book struct {
	store   Store
	curve   *period.Curve
	escrow  CurveSource
	emitter events.Emitter
}

// NewBook constructs a GaugeBook.
func NewBook(store Store, curveStore period.Store, escrow CurveSource, emitter events.Emitter) *Book {
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	return &Book{store: store, curve: period.NewCurve(curveStore), escrow: escrow, emitter: emitter}
}

// SetVotes implements set_votes: allocation is validated
// against the gauge whitelist and the 10_000 bps cap, then each changed
// asset's (gauge, asset) curve is adjusted by sub(old_bps) + add(new_bps)
// against the voter's current curve, including future scheduled slope
// changes so the aggregate's future decay tracks the voter's own decay.
func (b *Book) SetVotes(gaugeID string, voter [20]byte, atPeriod uint64, entries []AllocationEntry) error {
	g, ok, err := b.store.GetGauge(gaugeID)
	if err != nil {
		return err
	}
	if !ok {
		return verrors.ErrUnknownGauge
	}

	seen := make(map[string]struct{}, len(entries))
	var total uint64
	for _, e := range entries {
		if _, dup := seen[e.AssetID]; dup {
			return verrors.ErrDuplicateAsset
		}
		seen[e.AssetID] = struct{}{}
		if !g.IsWhitelisted(e.AssetID) {
			return verrors.ErrUnknownAsset
		}
		total += e.Bps
	}
	if total > bpsDenominator {
		return verrors.ErrBadBps
	}

	prev, ok, err := b.store.GetAllocation(gaugeID, voter)
	if err != nil {
		return err
	}
	if !ok {
		prev = &Allocation{Gauge: gaugeID, Voter: voter}
	}

	voterCurve, err := b.escrow.VoterCurve(voter, atPeriod)
	if err != nil {
		return err
	}
	schedule, err := b.escrow.FutureSlopeSchedule(voter, atPeriod)
	if err != nil {
		return err
	}

	changed := make(map[string]struct{}, len(entries)+len(prev.Entries))
	for _, e := range prev.Entries {
		changed[e.AssetID] = struct{}{}
	}
	for _, e := range entries {
		changed[e.AssetID] = struct{}{}
	}

	for assetID := range changed {
		oldBps := prev.BpsOf(assetID)
		newBps := (Allocation{Entries: entries}).BpsOf(assetID)
		if oldBps == newBps {
			continue
		}
		if err := b.applyBpsDelta(gaugeID, assetID, voterCurve, schedule, oldBps, newBps, atPeriod); err != nil {
			return err
		}
	}

	next := &Allocation{Gauge: gaugeID, Voter: voter, Entries: append([]AllocationEntry(nil), entries...)}
	if err := b.store.PutAllocation(next); err != nil {
		return err
	}

	b.emitter.Emit(VotesSet{Gauge: gaugeID, Voter: voter, Entries: entries})
	return nil
}

// applyBpsDelta moves a voter's curve contribution to (gauge, asset) from
// oldBps to newBps weight, applying the same net bps delta to every one of
// the voter's pending future slope changes so the aggregate's scheduled
// decay at each position's real expiry tracks the new allocation from this
// period forward, not just the instantaneous curve snapshot taken here.
func (b *Book) applyBpsDelta(gaugeID, assetID string, voterCurve period.Point, schedule map[uint64]*big.Int, oldBps, newBps uint64, atPeriod uint64) error {
	key := curveKey(gaugeID, assetID)
	if oldBps > 0 {
		d := weightedDelta(voterCurve, oldBps)
		if err := b.curve.ApplyDelta(key, atPeriod, d, false); err != nil {
			return err
		}
	}
	if newBps > 0 {
		d := weightedDelta(voterCurve, newBps)
		if err := b.curve.ApplyDelta(key, atPeriod, d, true); err != nil {
			return err
		}
	}
	for p, delta := range schedule {
		net := netWeightedSlope(delta, oldBps, newBps)
		if net.Sign() == 0 {
			continue
		}
		if err := b.curve.ScheduleSlopeChange(key, p, net); err != nil {
			return err
		}
	}
	return nil
}

// netWeightedSlope returns delta's contribution at newBps minus its
// contribution at oldBps, the net adjustment set_votes applies to an
// already-scheduled slope change when a voter's allocation changes.
func netWeightedSlope(delta *big.Int, oldBps, newBps uint64) *big.Int {
	den := big.NewInt(bpsDenominator)
	atNew := new(big.Int).Mul(delta, new(big.Int).SetUint64(newBps))
	atNew.Quo(atNew, den)
	atOld := new(big.Int).Mul(delta, new(big.Int).SetUint64(oldBps))
	atOld.Quo(atOld, den)
	return new(big.Int).Sub(atNew, atOld)
}

func weightedDelta(pt period.Point, bps uint64) period.Delta {
	w := new(big.Int).SetUint64(bps)
	den := big.NewInt(bpsDenominator)
	mul := func(v *big.Int) *big.Int {
		out := new(big.Int).Mul(v, w)
		return out.Quo(out, den)
	}
	return period.Delta{
		VotingPower: mul(pt.VotingPower),
		Slope:       mul(pt.Slope),
		Fixed:       mul(pt.Fixed),
	}
}

// OnLockUpdate implements voteescrow.Subscriber. For every gauge the owner
// currently votes in, it replays the owner's before/after aggregate curve
// delta, weighted by that gauge's standing allocation, against each
// allocated asset's (gauge, asset) curve, and re-derives the future
// slope-change schedule from FutureSlopeDelta.
func (b *Book) OnLockUpdate(update voteescrow.LockUpdate) error {
	gaugeIDs, err := b.store.AllocatedGauges(update.Owner)
	if err != nil {
		return err
	}
	for _, gaugeID := range gaugeIDs {
		alloc, ok, err := b.store.GetAllocation(gaugeID, update.Owner)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		for _, e := range alloc.Entries {
			key := curveKey(gaugeID, e.AssetID)
			if update.Before.VotingPower != nil || update.Before.Slope != nil || update.Before.Fixed != nil {
				d := weightedDelta(update.Before, e.Bps)
				if err := b.curve.ApplyDelta(key, update.AtPeriod, d, false); err != nil {
					return err
				}
			}
			d := weightedDelta(update.After, e.Bps)
			if err := b.curve.ApplyDelta(key, update.AtPeriod, d, true); err != nil {
				return err
			}
			for p, delta := range update.FutureSlopeDelta {
				weighted := new(big.Int).Mul(delta, new(big.Int).SetUint64(e.Bps))
				weighted.Quo(weighted, big.NewInt(bpsDenominator))
				if err := b.curve.ScheduleSlopeChange(key, p, weighted); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// SetDistribution freezes a gauge's per-period distribution: assets below
// the floor percentage are excluded, and
// survivors' VP is normalized to shares summing exactly to period.CoeffScale,
// with rounding residue absorbed into the first entry (descending VP,
// deterministic tie-break by ascending asset id).
func (b *Book) SetDistribution(gaugeID string, p uint64) (*Distribution, error) {
	g, ok, err := b.store.GetGauge(gaugeID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, verrors.ErrUnknownGauge
	}

	last, hasLast, err := b.store.LastDistributionPeriod(gaugeID)
	if err != nil {
		return nil, err
	}
	if hasLast {
		if _, ok, err := b.store.GetDistribution(gaugeID, p); err == nil && ok {
			return nil, verrors.ErrDistributionFrozen
		}
		for backfill := last + 1; backfill < p; backfill++ {
			if _, ok, _ := b.store.GetDistribution(gaugeID, backfill); !ok {
				if _, err := b.computeAndStore(g, backfill); err != nil {
					return nil, err
				}
			}
		}
	}

	d, err := b.computeAndStore(g, p)
	if err != nil {
		return nil, err
	}
	b.emitter.Emit(DistributionSet{Gauge: gaugeID, Period: p, Count: len(d.Entries)})
	return d, nil
}

func (b *Book) computeAndStore(g *Gauge, p uint64) (*Distribution, error) {
	type candidate struct {
		assetID string
		vp      *big.Int
	}
	assets := make([]string, 0, len(g.Whitelist))
	for a := range g.Whitelist {
		assets = append(assets, a)
	}
	sort.Strings(assets)

	total := big.NewInt(0)
	var candidates []candidate
	for _, assetID := range assets {
		pt, err := b.curve.LatestAt(curveKey(g.ID, assetID), p)
		if err != nil {
			return nil, err
		}
		vp := pt.Total()
		candidates = append(candidates, candidate{assetID, vp})
		total.Add(total, vp)
	}

	floor := new(big.Int).Mul(total, new(big.Int).SetUint64(g.MinBpsFloorNumerator))
	floor.Quo(floor, big.NewInt(bpsDenominator))

	var survivors []candidate
	for _, c := range candidates {
		if c.vp.Sign() <= 0 || c.vp.Cmp(floor) < 0 {
			continue
		}
		survivors = append(survivors, c)
	}
	sort.SliceStable(survivors, func(i, j int) bool {
		cmp := survivors[i].vp.Cmp(survivors[j].vp)
		if cmp != 0 {
			return cmp > 0
		}
		return survivors[i].assetID < survivors[j].assetID
	})

	survivorTotal := big.NewInt(0)
	for _, s := range survivors {
		survivorTotal.Add(survivorTotal, s.vp)
	}

	scale := big.NewInt(period.CoeffScale)
	shares := make([]*big.Int, len(survivors))
	allocated := big.NewInt(0)
	for i := 1; i < len(survivors); i++ {
		var share *big.Int
		if survivorTotal.Sign() == 0 {
			share = big.NewInt(0)
		} else {
			share = new(big.Int).Mul(survivors[i].vp, scale)
			share.Quo(share, survivorTotal)
			allocated.Add(allocated, share)
		}
		shares[i] = share
	}
	// The first entry, the largest by raw VP since survivors is sorted
	// descending, absorbs the rounding residue left by floor division on
	// every other entry.
	if len(survivors) > 0 {
		shares[0] = new(big.Int).Sub(scale, allocated)
	}

	entries := make([]DistributionEntry, 0, len(survivors))
	for i, s := range survivors {
		entries = append(entries, DistributionEntry{AssetID: s.assetID, VP: s.vp, ShareWad: shares[i]})
	}

	d := &Distribution{Gauge: g.ID, Period: p, Entries: entries}
	if err := b.store.PutDistribution(d); err != nil {
		return nil, err
	}
	return d, nil
}

// Rebase computes an owner's claimable rebase across every period since
// their watermark. Claiming for permanent positions increases
// the same position's underlying directly (the caller is expected to route
// the returned amount into voteescrow.Book.ExtendAmount on a permanent
// token); non-permanent holders receive the amount as a plain transfer
// into a fresh permanent position, which is also the caller's
// responsibility to open via voteescrow.Book.CreateLock(permanent=true).
func (b *Book) Rebase(owner [20]byte, throughPeriod uint64, ownerVPAtPeriod func(p uint64) (*big.Int, error), totalVPAtPeriod func(p uint64) (*big.Int, error), rebasePerPeriod *big.Int) (*big.Int, error) {
	watermark, ok, err := b.store.GetRebaseWatermark(owner)
	if err != nil {
		return nil, err
	}
	start := uint64(0)
	if ok {
		start = watermark + 1
	}
	if start > throughPeriod {
		return nil, verrors.ErrNothingToClaim
	}

	claimable := big.NewInt(0)
	for p := start; p <= throughPeriod; p++ {
		userVP, err := ownerVPAtPeriod(p)
		if err != nil {
			return nil, err
		}
		if userVP == nil || userVP.Sign() <= 0 {
			continue
		}
		totalVP, err := totalVPAtPeriod(p)
		if err != nil {
			return nil, err
		}
		if totalVP == nil || totalVP.Sign() <= 0 {
			continue
		}
		share := new(big.Int).Mul(rebasePerPeriod, userVP)
		share.Quo(share, totalVP)
		claimable.Add(claimable, share)
	}
	if claimable.Sign() <= 0 {
		return nil, verrors.ErrNothingToClaim
	}

	if err := b.store.PutRebaseWatermark(owner, throughPeriod); err != nil {
		return nil, err
	}
	b.emitter.Emit(RebaseClaimed{Owner: owner, ThroughP: throughPeriod, AmountStr: claimable.String()})
	return claimable, nil
}

// CreateGauge registers a new gauge with the given asset whitelist and
// minimum-vote-share floor ("min_gauge_percentage", expressed
// here as bps of total: floorNumerator/10_000).
func (b *Book) CreateGauge(id string, whitelist []string, floorNumerator uint64) (*Gauge, error) {
	set := make(map[string]struct{}, len(whitelist))
	for _, a := range whitelist {
		set[a] = struct{}{}
	}
	g := &Gauge{ID: id, Whitelist: set, MinBpsFloorNumerator: floorNumerator}
	if err := b.store.PutGauge(g); err != nil {
		return nil, err
	}
	return g, nil
}

// IsWhitelisted implements bribe-whitelist-controller
// supplement: whether assetID may currently receive bribes routed through
// this gauge.
func (b *Book) IsWhitelisted(gaugeID, assetID string) (bool, error) {
	g, ok, err := b.store.GetGauge(gaugeID)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, verrors.ErrUnknownGauge
	}
	return g.IsWhitelisted(assetID), nil
}

// SetWhitelist replaces a gauge's asset whitelist wholesale.
func (b *Book) SetWhitelist(gaugeID string, assets []string) error {
	g, ok, err := b.store.GetGauge(gaugeID)
	if err != nil {
		return err
	}
	if !ok {
		return verrors.ErrUnknownGauge
	}
	set := make(map[string]struct{}, len(assets))
	for _, a := range assets {
		set[a] = struct{}{}
	}
	g.Whitelist = set
	return b.store.PutGauge(g)
}

// CurveAt returns a (gauge, asset) aggregate curve point.
func (b *Book) CurveAt(gaugeID, assetID string, p uint64) (period.Point, error) {
	return b.curve.LatestAt(curveKey(gaugeID, assetID), p)
}
