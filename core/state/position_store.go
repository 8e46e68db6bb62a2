package state

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/erisprotocol/ve3engine/native/voteescrow"
	"github.com/erisprotocol/ve3engine/storage"
)

// PositionStore is a voteescrow.PositionStore backed by a storage.Database.
// Token IDs are minted from uuid.NewString rather than MemPositionStore's
// sequential counter: a production deployment must not leak the count of
// locks ever created through its id scheme.
type PositionStore struct {
	db storage.Database
}

// NewPositionStore wraps db as a voteescrow.PositionStore.
func NewPositionStore(db storage.Database) *PositionStore {
	return &PositionStore{db: db}
}

type storedEnd struct {
	Permanent bool
	Period    uint64
}

type storedPosition struct {
	TokenID          string
	Owner            [20]byte
	Asset            voteescrow.AssetInfo
	Amount           string
	UnderlyingAmount string
	StartPeriod      uint64
	End              storedEnd
	LastExtendPeriod uint64
	Approvals        [][20]byte
}

func positionKey(tokenID string) []byte {
	return append(append([]byte(nil), positionPrefix...), tokenID...)
}

func ownerTokensKey(owner [20]byte) []byte {
	return append(append([]byte(nil), ownerTokensPrefix...), owner[:]...)
}

func toStoredPosition(p *voteescrow.Position) storedPosition {
	sp := storedPosition{
		TokenID:          p.TokenID,
		Owner:            p.Owner,
		Asset:            p.Asset,
		Amount:           p.Amount.String(),
		UnderlyingAmount: p.UnderlyingAmount.String(),
		StartPeriod:      p.StartPeriod,
		End:              storedEnd{Permanent: p.End.Permanent, Period: p.End.Period},
		LastExtendPeriod: p.LastExtendPeriod,
	}
	for a := range p.Approvals {
		sp.Approvals = append(sp.Approvals, a)
	}
	return sp
}

func (sp storedPosition) toPosition() (*voteescrow.Position, error) {
	amount, err := bigFromString(sp.Amount)
	if err != nil {
		return nil, err
	}
	underlying, err := bigFromString(sp.UnderlyingAmount)
	if err != nil {
		return nil, err
	}
	approvals := make(map[[20]byte]struct{}, len(sp.Approvals))
	for _, a := range sp.Approvals {
		approvals[a] = struct{}{}
	}
	return &voteescrow.Position{
		TokenID:          sp.TokenID,
		Owner:            sp.Owner,
		Asset:            sp.Asset,
		Amount:           amount,
		UnderlyingAmount: underlying,
		StartPeriod:      sp.StartPeriod,
		End:              voteescrow.End{Permanent: sp.End.Permanent, Period: sp.End.Period},
		LastExtendPeriod: sp.LastExtendPeriod,
		Approvals:        approvals,
	}, nil
}

func (s *PositionStore) GetPosition(tokenID string) (*voteescrow.Position, bool, error) {
	raw, err := s.db.Get(positionKey(tokenID))
	if err != nil || len(raw) == 0 {
		return nil, false, nil
	}
	var sp storedPosition
	if err := json.Unmarshal(raw, &sp); err != nil {
		return nil, false, err
	}
	p, err := sp.toPosition()
	if err != nil {
		return nil, false, err
	}
	return p, true, nil
}

func (s *PositionStore) PutPosition(p *voteescrow.Position) error {
	raw, err := json.Marshal(toStoredPosition(p))
	if err != nil {
		return err
	}
	if err := s.db.Put(positionKey(p.TokenID), raw); err != nil {
		return err
	}
	return s.addOwnerToken(p.Owner, p.TokenID)
}

func (s *PositionStore) DeletePosition(tokenID string) error {
	existing, ok, err := s.GetPosition(tokenID)
	if err != nil {
		return err
	}
	if err := s.db.Put(positionKey(tokenID), nil); err != nil {
		return err
	}
	if !ok {
		return nil
	}
	return s.removeOwnerToken(existing.Owner, tokenID)
}

func (s *PositionStore) TokensByOwner(owner [20]byte) ([]string, error) {
	raw, err := s.db.Get(ownerTokensKey(owner))
	if err != nil || len(raw) == 0 {
		return nil, nil
	}
	var tokens []string
	if err := json.Unmarshal(raw, &tokens); err != nil {
		return nil, err
	}
	return tokens, nil
}

func (s *PositionStore) addOwnerToken(owner [20]byte, tokenID string) error {
	tokens, err := s.TokensByOwner(owner)
	if err != nil {
		return err
	}
	for _, t := range tokens {
		if t == tokenID {
			return nil
		}
	}
	tokens = append(tokens, tokenID)
	raw, err := json.Marshal(tokens)
	if err != nil {
		return err
	}
	return s.db.Put(ownerTokensKey(owner), raw)
}

func (s *PositionStore) removeOwnerToken(owner [20]byte, tokenID string) error {
	tokens, err := s.TokensByOwner(owner)
	if err != nil {
		return err
	}
	out := tokens[:0]
	for _, t := range tokens {
		if t != tokenID {
			out = append(out, t)
		}
	}
	raw, err := json.Marshal(out)
	if err != nil {
		return err
	}
	return s.db.Put(ownerTokensKey(owner), raw)
}

// NextTokenID mints a fresh lock id. uuid collisions are astronomically
// unlikely but guarded against anyway since a silent overwrite of an
// existing position would be unrecoverable.
func (s *PositionStore) NextTokenID() (string, error) {
	for i := 0; i < 8; i++ {
		id := fmt.Sprintf("ve3-%s", uuid.NewString())
		if _, ok, err := s.GetPosition(id); err != nil {
			return "", err
		} else if !ok {
			return id, nil
		}
	}
	return "", fmt.Errorf("ve3: could not mint a unique token id")
}
