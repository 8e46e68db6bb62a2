package period

import "math/big"

// Lock-duration bounds, expressed in periods (weeks by default). coeff(0)
// must be 0 and coeff(MaxLockPeriods) must equal CoeffScale, with every
// intermediate period linearly interpolated between them.
const (
	MinLockPeriods uint64 = 1
	MaxLockPeriods uint64 = 104

	// CoeffScale is COEFF_MAX expressed as a WAD-style fixed-point unit
	// (1e18 == 1.0), the same fixed-point convention used throughout this
	// tree's accrual math.
	CoeffScale int64 = 1_000_000_000_000_000_000
)

var coeffScaleBig = big.NewInt(CoeffScale)

// Coeff returns COEFF_MAX*dt/MaxLockPeriods in CoeffScale units: a
// deterministic, monotonically nondecreasing rational in [0, CoeffScale]
// with Coeff(0)=0 and Coeff(MaxLockPeriods)=CoeffScale.
func Coeff(dt uint64) *big.Int {
	if dt >= MaxLockPeriods {
		return new(big.Int).Set(coeffScaleBig)
	}
	num := new(big.Int).Mul(coeffScaleBig, new(big.Int).SetUint64(dt))
	return num.Quo(num, new(big.Int).SetUint64(MaxLockPeriods))
}

// SlopeAndInitialPower implements the §4.1/§9 residual-rounding rule: the
// slope is rounded down so that slope*dt never exceeds underlying*coeff(dt),
// and the initial voting power is set to exactly slope*dt (not
// underlying*coeff(dt)) so the curve returns precisely zero at the end
// period. The forfeited fractional power is permanent and intentional.
func SlopeAndInitialPower(underlying *big.Int, dt uint64) (slope, initialVotingPower *big.Int) {
	if dt == 0 || underlying == nil || underlying.Sign() <= 0 {
		return big.NewInt(0), big.NewInt(0)
	}
	coeff := Coeff(dt)
	raw := new(big.Int).Mul(underlying, coeff)
	raw.Quo(raw, coeffScaleBig)

	slope = new(big.Int).Quo(raw, new(big.Int).SetUint64(dt))
	initialVotingPower = new(big.Int).Mul(slope, new(big.Int).SetUint64(dt))
	return slope, initialVotingPower
}

// PermanentPower returns underlying*COEFF_MAX exactly, the power a
// permanent position contributes. Since COEFF_MAX is defined
// as coeff(MaxLockPeriods) == CoeffScale (i.e. the real-valued coefficient
// 1.0), this is simply underlying itself.
func PermanentPower(underlying *big.Int) *big.Int {
	return cloneInt(nonNil(underlying))
}
