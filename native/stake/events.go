package stake

import (
	"strconv"

	"github.com/erisprotocol/ve3engine/crypto"
)

const (
	// TypeStaked is emitted on a successful stake.
	TypeStaked = "stake.staked"
	// TypeUnstaked is emitted on a successful unstake.
	TypeUnstaked = "stake.unstaked"
	// TypeTakeDistributed is emitted when accrued take is paid to the take recipient.
	TypeTakeDistributed = "stake.takeDistributed"
	// TypeRewardsClaimed is emitted on a reward claim.
	TypeRewardsClaimed = "stake.rewardsClaimed"
	// TypeRewardClaimFailed is emitted when a claim's sink payout fails,
	// whether the claim came through ClaimRewards or ClaimRewardsBatch.
	TypeRewardClaimFailed = "stake.rewardClaimFailed"
)

func addr(a [20]byte) string {
	return crypto.MustNewAddress(crypto.VE3Prefix, a[:]).String()
}

// Staked reports a stake() call.
type Staked struct {
	Owner     [20]byte
	AssetID   string
	Amount    string
	NewShares string
}

// EventType implements events.Event.
func (Staked) EventType() string { return TypeStaked }

func (e Staked) Attributes() map[string]string {
	return map[string]string{
		"owner":     addr(e.Owner),
		"asset":     e.AssetID,
		"amount":    e.Amount,
		"newShares": e.NewShares,
	}
}

// Unstaked reports an unstake() call, including whether it clamped.
type Unstaked struct {
	Owner   [20]byte
	AssetID string
	Amount  string
	Clamped bool
}

// EventType implements events.Event.
func (Unstaked) EventType() string { return TypeUnstaked }

func (e Unstaked) Attributes() map[string]string {
	return map[string]string{
		"owner":   addr(e.Owner),
		"asset":   e.AssetID,
		"amount":  e.Amount,
		"clamped": strconv.FormatBool(e.Clamped),
	}
}

// TakeDistributed reports a distribute_take settlement.
type TakeDistributed struct {
	AssetID string
	Amount  string
}

// EventType implements events.Event.
func (TakeDistributed) EventType() string { return TypeTakeDistributed }

func (e TakeDistributed) Attributes() map[string]string {
	return map[string]string{"asset": e.AssetID, "amount": e.Amount}
}

// RewardsClaimed reports a reward claim payout.
type RewardsClaimed struct {
	Owner   [20]byte
	AssetID string
	Amount  string
}

// EventType implements events.Event.
func (RewardsClaimed) EventType() string { return TypeRewardsClaimed }

func (e RewardsClaimed) Attributes() map[string]string {
	return map[string]string{"owner": addr(e.Owner), "asset": e.AssetID, "amount": e.Amount}
}

// RewardClaimFailed reports one recipient's sink payout failing. Inside a
// ClaimRewardsBatch call the batch continues with the remaining claims;
// a single ClaimRewards call returns the error as well.
type RewardClaimFailed struct {
	Owner   [20]byte
	AssetID string
	Reason  string
}

// EventType implements events.Event.
func (RewardClaimFailed) EventType() string { return TypeRewardClaimFailed }

func (e RewardClaimFailed) Attributes() map[string]string {
	return map[string]string{"owner": addr(e.Owner), "asset": e.AssetID, "reason": e.Reason}
}
