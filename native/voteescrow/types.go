// Package voteescrow implements EscrowBook, the time-locked position
// ledger: positions whose voting power decays linearly toward an end
// period (or never, while permanent), layered over a native/period.Curve
// per token plus a global TOTAL curve.
package voteescrow

import (
	"math/big"

	"github.com/erisprotocol/ve3engine/native/period"
)

// AssetInfo identifies the deposit asset backing a position. Kind
// distinguishes the native coin from a wrapped/liquid-staking denom;
// Denom is the concrete unit (e.g. "uluna", "stluna").
type AssetInfo struct {
	Kind  string
	Denom string
}

// Equal reports whether two AssetInfo values name the same asset.
func (a AssetInfo) Equal(o AssetInfo) bool {
	return a.Kind == o.Kind && a.Denom == o.Denom
}

// End encodes a position's maturity: either a finite period or permanent.
type End struct {
	Permanent bool
	Period    uint64
}

// Position is the EscrowBook entry.
type Position struct {
	TokenID          string
	Owner            [20]byte
	Asset            AssetInfo
	Amount           *big.Int
	UnderlyingAmount *big.Int
	StartPeriod      uint64
	End              End
	LastExtendPeriod uint64
	Approvals        map[[20]byte]struct{}
}

// Clone returns a deep copy of the position.
func (p *Position) Clone() *Position {
	if p == nil {
		return nil
	}
	out := &Position{
		TokenID:          p.TokenID,
		Owner:            p.Owner,
		Asset:            p.Asset,
		Amount:           cloneInt(p.Amount),
		UnderlyingAmount: cloneInt(p.UnderlyingAmount),
		StartPeriod:      p.StartPeriod,
		End:              p.End,
		LastExtendPeriod: p.LastExtendPeriod,
		Approvals:        make(map[[20]byte]struct{}, len(p.Approvals)),
	}
	for addr := range p.Approvals {
		out.Approvals[addr] = struct{}{}
	}
	return out
}

// IsApprovedOrOwner reports whether addr may mutate the position.
func (p *Position) IsApprovedOrOwner(addr [20]byte) bool {
	if p.Owner == addr {
		return true
	}
	_, ok := p.Approvals[addr]
	return ok
}

func cloneInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

// ExchangeRateAdapter resolves the canonical exchange rate for a deposit
// asset. Rate is expressed in period.CoeffScale (WAD) units;
// assets with no configured adapter return CoeffScale (rate == 1).
type ExchangeRateAdapter interface {
	Rate(asset AssetInfo) (*big.Int, error)
}

// IdentityRates is the zero-value ExchangeRateAdapter: every asset has
// rate 1, so UnderlyingAmount always equals Amount.
type IdentityRates struct{}

// Rate implements ExchangeRateAdapter.
func (IdentityRates) Rate(AssetInfo) (*big.Int, error) {
	return big.NewInt(period.CoeffScale), nil
}

// Normalize applies rate (WAD units) to amount, rounding down:
// underlying_amount = exchange_rate(asset) * amount, rounded down.
func Normalize(rate, amount *big.Int) *big.Int {
	out := new(big.Int).Mul(amount, rate)
	return out.Quo(out, big.NewInt(period.CoeffScale))
}

// Zapper converts a withdrawn asset into a target asset during Migrate.
// Its errors propagate and abort the action.
type Zapper interface {
	Swap(owner [20]byte, from AssetInfo, amount *big.Int, to AssetInfo, minReceived *big.Int) (*big.Int, error)
}

// LockUpdate is the push notification EscrowBook sends to subscribers
// (GaugeBook, primarily) whenever a mutation changes an owner's aggregate
// voting curve. Gauge allocations are tracked per owner, so the
// payload reports the affected owner's whole aggregate curve before and
// after the action rather than a single token's delta; GaugeBook derives
// its own per-asset delta from the difference.
type LockUpdate struct {
	TokenID   string
	Owner     [20]byte
	AtPeriod  uint64
	Before    period.Point
	After     period.Point
	// FutureSlopeDelta carries the net change, at a future scheduled
	// period, to the owner's slope-change schedule so GaugeBook can keep
	// its own (gauge, asset) slope-change map in sync.
	FutureSlopeDelta map[uint64]*big.Int
}

// Subscriber receives LockUpdate pushes. GaugeBook implements this.
type Subscriber interface {
	OnLockUpdate(update LockUpdate) error
}
