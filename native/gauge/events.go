package gauge

import (
	"strconv"

	"github.com/erisprotocol/ve3engine/crypto"
)

const (
	// TypeVotesSet is emitted when a voter's allocation inside a gauge changes.
	TypeVotesSet = "gauge.votesSet"
	// TypeDistributionSet is emitted when a period's distribution is frozen.
	TypeDistributionSet = "gauge.distributionSet"
	// TypeRebaseClaimed is emitted when an owner claims accrued rebase.
	TypeRebaseClaimed = "gauge.rebaseClaimed"
)

func addr(a [20]byte) string {
	return crypto.MustNewAddress(crypto.VE3Prefix, a[:]).String()
}

// VotesSet reports a set_votes call.
type VotesSet struct {
	Gauge   string
	Voter   [20]byte
	Entries []AllocationEntry
}

// EventType implements events.Event.
func (VotesSet) EventType() string { return TypeVotesSet }

func (e VotesSet) Attributes() map[string]string {
	return map[string]string{
		"gauge":      e.Gauge,
		"voter":      addr(e.Voter),
		"numAssets":  strconv.Itoa(len(e.Entries)),
	}
}

// DistributionSet reports a frozen per-period distribution.
type DistributionSet struct {
	Gauge  string
	Period uint64
	Count  int
}

// EventType implements events.Event.
func (DistributionSet) EventType() string { return TypeDistributionSet }

func (e DistributionSet) Attributes() map[string]string {
	return map[string]string{
		"gauge":  e.Gauge,
		"period": strconv.FormatUint(e.Period, 10),
		"count":  strconv.Itoa(e.Count),
	}
}

// RebaseClaimed reports a rebase claim settlement.
type RebaseClaimed struct {
	Owner      [20]byte
	ThroughP   uint64
	AmountStr  string
}

// EventType implements events.Event.
func (RebaseClaimed) EventType() string { return TypeRebaseClaimed }

func (e RebaseClaimed) Attributes() map[string]string {
	return map[string]string{
		"owner":   addr(e.Owner),
		"through": strconv.FormatUint(e.ThroughP, 10),
		"amount":  e.AmountStr,
	}
}
