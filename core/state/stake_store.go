package state

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/erisprotocol/ve3engine/native/stake"
	"github.com/erisprotocol/ve3engine/storage"
)

// StakeStore is a stake.Store backed by a storage.Database.
type StakeStore struct {
	db storage.Database
}

// NewStakeStore wraps db as a stake.Store.
func NewStakeStore(db storage.Database) *StakeStore {
	return &StakeStore{db: db}
}

type storedAsset struct {
	ID                string
	TotalBalance      string
	TotalShares       string
	Taken             string
	Harvested         string
	YearlyTakeRateWad string
	LastTakenUnix     uint64
	RewardRateWad     string
	PerUserShares     map[string]string
	PerUserRewardRate map[string]string
	PerUserUnclaimed  map[string]string
	Whitelisted       bool
}

func stakeAssetKey(id string) []byte {
	return append(append([]byte(nil), stakeAssetPrefix...), id...)
}

func addrHex(a [20]byte) string {
	return hex.EncodeToString(a[:])
}

func addrFromHex(s string) ([20]byte, error) {
	var a [20]byte
	b, err := hex.DecodeString(s)
	if err != nil {
		return a, err
	}
	if len(b) != len(a) {
		return a, fmt.Errorf("ve3: malformed address hex %q", s)
	}
	copy(a[:], b)
	return a, nil
}

func toStoredAsset(a *stake.Asset) storedAsset {
	sa := storedAsset{
		ID:                a.ID,
		TotalBalance:      a.TotalBalance.String(),
		TotalShares:       a.TotalShares.String(),
		Taken:             a.Taken.String(),
		Harvested:         a.Harvested.String(),
		YearlyTakeRateWad: a.YearlyTakeRateWad.String(),
		LastTakenUnix:     a.LastTakenUnix,
		RewardRateWad:     a.RewardRateWad.String(),
		Whitelisted:       a.Whitelisted,
		PerUserShares:     map[string]string{},
		PerUserRewardRate: map[string]string{},
		PerUserUnclaimed:  map[string]string{},
	}
	for owner, v := range a.PerUserShares {
		sa.PerUserShares[addrHex(owner)] = v.String()
	}
	for owner, v := range a.PerUserRewardRate {
		sa.PerUserRewardRate[addrHex(owner)] = v.String()
	}
	for owner, v := range a.PerUserUnclaimed {
		sa.PerUserUnclaimed[addrHex(owner)] = v.String()
	}
	return sa
}

func (sa storedAsset) toAsset() (*stake.Asset, error) {
	totalBalance, err := bigFromString(sa.TotalBalance)
	if err != nil {
		return nil, err
	}
	totalShares, err := bigFromString(sa.TotalShares)
	if err != nil {
		return nil, err
	}
	taken, err := bigFromString(sa.Taken)
	if err != nil {
		return nil, err
	}
	harvested, err := bigFromString(sa.Harvested)
	if err != nil {
		return nil, err
	}
	yearlyRate, err := bigFromString(sa.YearlyTakeRateWad)
	if err != nil {
		return nil, err
	}
	rewardRate, err := bigFromString(sa.RewardRateWad)
	if err != nil {
		return nil, err
	}
	a := &stake.Asset{
		ID:                sa.ID,
		TotalBalance:      totalBalance,
		TotalShares:       totalShares,
		Taken:             taken,
		Harvested:         harvested,
		YearlyTakeRateWad: yearlyRate,
		LastTakenUnix:     sa.LastTakenUnix,
		RewardRateWad:     rewardRate,
		Whitelisted:       sa.Whitelisted,
		PerUserShares:     map[[20]byte]*big.Int{},
		PerUserRewardRate: map[[20]byte]*big.Int{},
		PerUserUnclaimed:  map[[20]byte]*big.Int{},
	}
	for hex, v := range sa.PerUserShares {
		owner, err := addrFromHex(hex)
		if err != nil {
			return nil, err
		}
		val, err := bigFromString(v)
		if err != nil {
			return nil, err
		}
		a.PerUserShares[owner] = val
	}
	for hex, v := range sa.PerUserRewardRate {
		owner, err := addrFromHex(hex)
		if err != nil {
			return nil, err
		}
		val, err := bigFromString(v)
		if err != nil {
			return nil, err
		}
		a.PerUserRewardRate[owner] = val
	}
	for hex, v := range sa.PerUserUnclaimed {
		owner, err := addrFromHex(hex)
		if err != nil {
			return nil, err
		}
		val, err := bigFromString(v)
		if err != nil {
			return nil, err
		}
		a.PerUserUnclaimed[owner] = val
	}
	return a, nil
}

func (s *StakeStore) GetAsset(id string) (*stake.Asset, bool, error) {
	raw, err := s.db.Get(stakeAssetKey(id))
	if err != nil || len(raw) == 0 {
		return nil, false, nil
	}
	var sa storedAsset
	if err := json.Unmarshal(raw, &sa); err != nil {
		return nil, false, err
	}
	a, err := sa.toAsset()
	if err != nil {
		return nil, false, err
	}
	return a, true, nil
}

func (s *StakeStore) PutAsset(a *stake.Asset) error {
	raw, err := json.Marshal(toStoredAsset(a))
	if err != nil {
		return err
	}
	return s.db.Put(stakeAssetKey(a.ID), raw)
}
