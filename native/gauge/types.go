// Package gauge implements GaugeBook: the per-voter bps allocation ledger
// that aggregates owner voting curves into per-(gauge, asset) curves,
// plus periodic distribution snapshots and rebase claims.
package gauge

import (
	"math/big"

	"github.com/erisprotocol/ve3engine/native/period"
)

// AllocationEntry is one (asset_id, bps) pair in a voter's allocation.
type AllocationEntry struct {
	AssetID string
	Bps     uint64
}

// Allocation is a voter's standing vote inside a single gauge.
type Allocation struct {
	Gauge   string
	Voter   [20]byte
	Entries []AllocationEntry
}

// BpsOf returns the bps assigned to assetID, or 0 if absent.
func (a Allocation) BpsOf(assetID string) uint64 {
	for _, e := range a.Entries {
		if e.AssetID == assetID {
			return e.Bps
		}
	}
	return 0
}

// SumBps returns the total bps committed across all entries.
func (a Allocation) SumBps() uint64 {
	var sum uint64
	for _, e := range a.Entries {
		sum += e.Bps
	}
	return sum
}

// DistributionEntry is one asset's frozen share of a gauge's vote for a period.
type DistributionEntry struct {
	AssetID string
	VP      *big.Int
	// ShareWad is the asset's normalized share of the distribution,
	// expressed in period.CoeffScale (WAD) units, summing to exactly
	// period.CoeffScale across all entries.
	ShareWad *big.Int
}

// Distribution is the frozen per-period snapshot set_distribution produces.
type Distribution struct {
	Gauge   string
	Period  uint64
	Entries []DistributionEntry
}

// Gauge holds per-gauge configuration: its asset whitelist (a
// BRIBE_WHITELIST_CONTROLLER manages it independently of StakeBook's own
// asset whitelist) and its minimum vote-share floor.
type Gauge struct {
	ID                   string
	Whitelist            map[string]struct{}
	MinBpsFloorNumerator uint64 // min_gauge_percentage numerator, denominator 10_000
}

// IsWhitelisted reports whether assetID may receive votes in this gauge.
func (g *Gauge) IsWhitelisted(assetID string) bool {
	if g == nil || g.Whitelist == nil {
		return false
	}
	_, ok := g.Whitelist[assetID]
	return ok
}

// Store persists gauges, allocations, and distributions.
type Store interface {
	GetGauge(id string) (*Gauge, bool, error)
	PutGauge(g *Gauge) error

	GetAllocation(gauge string, voter [20]byte) (*Allocation, bool, error)
	PutAllocation(a *Allocation) error
	// AllocatedGauges returns every gauge id the owner currently has a
	// standing allocation in, so OnLockUpdate can replay the curve delta
	// against each one without scanning the whole gauge set.
	AllocatedGauges(owner [20]byte) ([]string, error)

	PutDistribution(d *Distribution) error
	GetDistribution(gauge string, p uint64) (*Distribution, bool, error)
	LastDistributionPeriod(gauge string) (uint64, bool, error)

	// Rebase claim watermark: last period an owner has claimed through.
	GetRebaseWatermark(owner [20]byte) (uint64, bool, error)
	PutRebaseWatermark(owner [20]byte, p uint64) error
}

// curveKey is the period.Curve key for a (gauge, asset) pair.
func curveKey(gauge, assetID string) string {
	return gauge + "|" + assetID
}

func cloneInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
