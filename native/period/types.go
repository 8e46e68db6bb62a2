// Package period implements the piecewise-linear voting-power accumulator
// shared by the escrow and gauge ledgers. It keys a sparse set of
// checkpoints by an opaque string key (a token id, a "gauge|asset" pair, or
// the literal "TOTAL") and lazily replays scheduled slope-change events to
// answer point-in-time queries: a UQ128x128-style fixed-point accrual index
// generalised from a single monotone index to a full decaying curve.
package period

import "math/big"

// SecondsPerWeek is the default period length used to translate wall-clock
// seconds into period indices.
const SecondsPerWeek = 7 * 24 * 60 * 60

// Point is the atomic curve sample: at the
// reference period, total effective power is Fixed+VotingPower; VotingPower
// decays linearly at Slope units per period until a scheduled slope change
// reduces Slope.
type Point struct {
	VotingPower *big.Int
	Slope       *big.Int
	Fixed       *big.Int
}

// Zero returns the additive-identity point.
func Zero() Point {
	return Point{VotingPower: big.NewInt(0), Slope: big.NewInt(0), Fixed: big.NewInt(0)}
}

// Clone returns a deep copy so callers never alias a stored point.
func (p Point) Clone() Point {
	return Point{
		VotingPower: cloneInt(p.VotingPower),
		Slope:       cloneInt(p.Slope),
		Fixed:       cloneInt(p.Fixed),
	}
}

// Total returns Fixed+VotingPower, the effective power at the point's period.
func (p Point) Total() *big.Int {
	return new(big.Int).Add(nonNil(p.Fixed), nonNil(p.VotingPower))
}

// ProjectTo returns the point's voting power projected to a later period p2,
// saturating at zero. Fixed is unaffected by projection.
func (p Point) ProjectTo(atPeriod, p2 uint64) *big.Int {
	if p2 <= atPeriod {
		return cloneInt(p.VotingPower)
	}
	elapsed := new(big.Int).SetUint64(p2 - atPeriod)
	decay := new(big.Int).Mul(nonNil(p.Slope), elapsed)
	return satSub(nonNil(p.VotingPower), decay)
}

func nonNil(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v
}

func cloneInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

// satSub returns max(a-b, 0). The zero floor is load-bearing: curves must
// never report negative voting power regardless of stale slope data.
func satSub(a, b *big.Int) *big.Int {
	out := new(big.Int).Sub(nonNil(a), nonNil(b))
	if out.Sign() < 0 {
		return big.NewInt(0)
	}
	return out
}

// Delta is a combinable offset applied to a stored point by ApplyDelta.
type Delta struct {
	VotingPower *big.Int
	Slope       *big.Int
	Fixed       *big.Int
}
