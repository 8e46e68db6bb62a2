package config

import (
	"fmt"
	"math/big"
)

// ValidatePolicy checks that the accounting engine's Policy is internally
// consistent. The books do not read Policy: lock bounds come from the
// native/period constants MinLockPeriods and MaxLockPeriods.
func ValidatePolicy(p Policy) error {
	if p.PeriodLengthSeconds == 0 {
		return fmt.Errorf("policy: period_length_seconds must be positive")
	}
	if p.MinLockPeriods == 0 || p.MinLockPeriods > p.MaxLockPeriods {
		return fmt.Errorf("policy: min_lock_periods must be positive and <= max_lock_periods")
	}
	if p.MinGaugeFloorBps > 10_000 {
		return fmt.Errorf("policy: min_gauge_floor_bps must be <= 10000")
	}
	rate, ok := new(big.Int).SetString(p.MaxYearlyTakeRateWad, 10)
	if !ok || rate.Sign() < 0 {
		return fmt.Errorf("policy: max_yearly_take_rate_wad must be a non-negative integer")
	}
	return nil
}
