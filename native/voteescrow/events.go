package voteescrow

import (
	"math/big"
	"strconv"

	"github.com/erisprotocol/ve3engine/crypto"
)

const (
	// TypeLockCreated is emitted when a new position is minted.
	TypeLockCreated = "voteescrow.created"
	// TypeLockExtended is emitted on extend_lock_time/extend_lock_amount.
	TypeLockExtended = "voteescrow.extended"
	// TypeLockPermanentSet is emitted on lock_permanent/unlock_permanent.
	TypeLockPermanentSet = "voteescrow.permanentSet"
	// TypeLockMerged is emitted when two positions merge into one.
	TypeLockMerged = "voteescrow.merged"
	// TypeLockSplit is emitted when a position splits into two.
	TypeLockSplit = "voteescrow.split"
	// TypeLockWithdrawn is emitted when an expired position is burned for its underlying.
	TypeLockWithdrawn = "voteescrow.withdrawn"
	// TypeLockMigrated is emitted when a position's asset is swapped via a Zapper.
	TypeLockMigrated = "voteescrow.migrated"
	// TypeLockTransferred is emitted on ownership transfer.
	TypeLockTransferred = "voteescrow.transferred"
)

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func addr(a [20]byte) string {
	return crypto.MustNewAddress(crypto.VE3Prefix, a[:]).String()
}

// LockCreated reports a new position.
type LockCreated struct {
	TokenID     string
	Owner       [20]byte
	Asset       AssetInfo
	Amount      *big.Int
	StartPeriod uint64
	End         End
}

// EventType implements events.Event.
func (LockCreated) EventType() string { return TypeLockCreated }

// Attributes renders the attribute map consumed by the gateway/indexer layer.
func (e LockCreated) Attributes() map[string]string {
	attrs := map[string]string{
		"tokenId":     e.TokenID,
		"owner":       addr(e.Owner),
		"assetKind":   e.Asset.Kind,
		"assetDenom":  e.Asset.Denom,
		"amount":      formatAmount(e.Amount),
		"startPeriod": strconv.FormatUint(e.StartPeriod, 10),
	}
	if e.End.Permanent {
		attrs["permanent"] = "true"
	} else {
		attrs["endPeriod"] = strconv.FormatUint(e.End.Period, 10)
	}
	return attrs
}

// LockExtended reports an extend_lock_time or extend_lock_amount action.
type LockExtended struct {
	TokenID      string
	Owner        [20]byte
	AddedAmount  *big.Int
	PreviousEnd  End
	NewEnd       End
}

// EventType implements events.Event.
func (LockExtended) EventType() string { return TypeLockExtended }

func (e LockExtended) Attributes() map[string]string {
	return map[string]string{
		"tokenId":     e.TokenID,
		"owner":       addr(e.Owner),
		"addedAmount": formatAmount(e.AddedAmount),
		"newEndPeriod": strconv.FormatUint(e.NewEnd.Period, 10),
	}
}

// LockPermanentSet reports a lock_permanent or unlock_permanent transition.
type LockPermanentSet struct {
	TokenID   string
	Owner     [20]byte
	Permanent bool
	EndPeriod uint64
}

// EventType implements events.Event.
func (LockPermanentSet) EventType() string { return TypeLockPermanentSet }

func (e LockPermanentSet) Attributes() map[string]string {
	attrs := map[string]string{
		"tokenId":   e.TokenID,
		"owner":     addr(e.Owner),
		"permanent": strconv.FormatBool(e.Permanent),
	}
	if !e.Permanent {
		attrs["endPeriod"] = strconv.FormatUint(e.EndPeriod, 10)
	}
	return attrs
}

// LockMerged reports a merge of FromTokenID into IntoTokenID.
type LockMerged struct {
	FromTokenID string
	IntoTokenID string
	Owner       [20]byte
	NewAmount   *big.Int
}

// EventType implements events.Event.
func (LockMerged) EventType() string { return TypeLockMerged }

func (e LockMerged) Attributes() map[string]string {
	return map[string]string{
		"fromTokenId": e.FromTokenID,
		"intoTokenId": e.IntoTokenID,
		"owner":       addr(e.Owner),
		"newAmount":   formatAmount(e.NewAmount),
	}
}

// LockSplit reports a split of FromTokenID into two tokens.
type LockSplit struct {
	FromTokenID string
	NewTokenID  string
	Owner       [20]byte
	SplitAmount *big.Int
}

// EventType implements events.Event.
func (LockSplit) EventType() string { return TypeLockSplit }

func (e LockSplit) Attributes() map[string]string {
	return map[string]string{
		"fromTokenId": e.FromTokenID,
		"newTokenId":  e.NewTokenID,
		"owner":       addr(e.Owner),
		"splitAmount": formatAmount(e.SplitAmount),
	}
}

// LockWithdrawn reports a burn-for-underlying on an expired position.
type LockWithdrawn struct {
	TokenID string
	Owner   [20]byte
	Amount  *big.Int
}

// EventType implements events.Event.
func (LockWithdrawn) EventType() string { return TypeLockWithdrawn }

func (e LockWithdrawn) Attributes() map[string]string {
	return map[string]string{
		"tokenId": e.TokenID,
		"owner":   addr(e.Owner),
		"amount":  formatAmount(e.Amount),
	}
}

// LockMigrated reports a Zapper-mediated asset swap on an existing position.
type LockMigrated struct {
	TokenID  string
	Owner    [20]byte
	FromAsset AssetInfo
	ToAsset   AssetInfo
	Received  *big.Int
}

// EventType implements events.Event.
func (LockMigrated) EventType() string { return TypeLockMigrated }

func (e LockMigrated) Attributes() map[string]string {
	return map[string]string{
		"tokenId":   e.TokenID,
		"owner":     addr(e.Owner),
		"fromAsset": e.FromAsset.Denom,
		"toAsset":   e.ToAsset.Denom,
		"received":  formatAmount(e.Received),
	}
}

// LockTransferred reports an ownership transfer.
type LockTransferred struct {
	TokenID string
	From    [20]byte
	To      [20]byte
}

// EventType implements events.Event.
func (LockTransferred) EventType() string { return TypeLockTransferred }

func (e LockTransferred) Attributes() map[string]string {
	return map[string]string{
		"tokenId": e.TokenID,
		"from":    addr(e.From),
		"to":      addr(e.To),
	}
}
