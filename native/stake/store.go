package stake

import "math/big"

// MemStore is an in-memory Store for tests and standalone use.
type MemStore struct {
	assets map[string]*Asset
}

// NewMemStore constructs an empty in-memory Store.
func NewMemStore() *MemStore {
	return &MemStore{assets: make(map[string]*Asset)}
}

func (m *MemStore) GetAsset(id string) (*Asset, bool, error) {
	a, ok := m.assets[id]
	if !ok {
		return nil, false, nil
	}
	return cloneAsset(a), true, nil
}

func (m *MemStore) PutAsset(a *Asset) error {
	m.assets[a.ID] = cloneAsset(a)
	return nil
}

func cloneAsset(a *Asset) *Asset {
	out := &Asset{
		ID:                a.ID,
		TotalBalance:      cloneInt(a.TotalBalance),
		TotalShares:       cloneInt(a.TotalShares),
		Taken:             cloneInt(a.Taken),
		Harvested:         cloneInt(a.Harvested),
		YearlyTakeRateWad: cloneInt(a.YearlyTakeRateWad),
		LastTakenUnix:     a.LastTakenUnix,
		RewardRateWad:     cloneInt(a.RewardRateWad),
		PerUserShares:     make(map[[20]byte]*big.Int, len(a.PerUserShares)),
		PerUserRewardRate: make(map[[20]byte]*big.Int, len(a.PerUserRewardRate)),
		PerUserUnclaimed:  make(map[[20]byte]*big.Int, len(a.PerUserUnclaimed)),
		Whitelisted:       a.Whitelisted,
	}
	for k, v := range a.PerUserShares {
		out.PerUserShares[k] = cloneInt(v)
	}
	for k, v := range a.PerUserRewardRate {
		out.PerUserRewardRate[k] = cloneInt(v)
	}
	for k, v := range a.PerUserUnclaimed {
		out.PerUserUnclaimed[k] = cloneInt(v)
	}
	return out
}
