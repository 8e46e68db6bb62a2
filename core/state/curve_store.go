package state

import (
	"encoding/json"
	"fmt"
	"math/big"
	"sort"

	"github.com/erisprotocol/ve3engine/native/period"
	"github.com/erisprotocol/ve3engine/storage"
)

// CurveStore is a native/period.Store backed by a storage.Database, using
// the same flat key-value persistence idiom as storage/db.go's Database
// interface rather than a trie-backed account tree: a period curve's
// sparse checkpoints need only point lookups and a sorted period index
// per key, not a Merkle-proved trie, so a flat prefixed keyspace is the
// right fit.
//
// storage.Database does not distinguish "missing key" from other read
// failures; every Get error here is treated as a miss, matching how a
// freshly initialized engine (no data written yet) should behave.
type CurveStore struct {
	db storage.Database
}

// NewCurveStore wraps db as a native/period.Store.
func NewCurveStore(db storage.Database) *CurveStore {
	return &CurveStore{db: db}
}

type storedPoint struct {
	VotingPower string
	Slope       string
	Fixed       string
}

func bigFromString(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("ve3: malformed stored integer %q", s)
	}
	return v, nil
}

func (sp storedPoint) toPoint() (period.Point, error) {
	vp, err := bigFromString(sp.VotingPower)
	if err != nil {
		return period.Point{}, err
	}
	slope, err := bigFromString(sp.Slope)
	if err != nil {
		return period.Point{}, err
	}
	fixed, err := bigFromString(sp.Fixed)
	if err != nil {
		return period.Point{}, err
	}
	return period.Point{VotingPower: vp, Slope: slope, Fixed: fixed}, nil
}

func (s *CurveStore) GetPoint(key string, p uint64) (period.Point, bool, error) {
	raw, err := s.db.Get([]byte(fmt.Sprintf(curvePointPrefixFormat, key, p)))
	if err != nil || len(raw) == 0 {
		return period.Point{}, false, nil
	}
	var sp storedPoint
	if err := json.Unmarshal(raw, &sp); err != nil {
		return period.Point{}, false, err
	}
	pt, err := sp.toPoint()
	if err != nil {
		return period.Point{}, false, err
	}
	return pt, true, nil
}

func (s *CurveStore) PutPoint(key string, p uint64, pt period.Point) error {
	sp := storedPoint{VotingPower: pt.VotingPower.String(), Slope: pt.Slope.String(), Fixed: pt.Fixed.String()}
	raw, err := json.Marshal(sp)
	if err != nil {
		return err
	}
	if err := s.db.Put([]byte(fmt.Sprintf(curvePointPrefixFormat, key, p)), raw); err != nil {
		return err
	}
	return s.appendIndex(fmt.Sprintf(curvePointIndexFormat, key), p)
}

func (s *CurveStore) PointPeriods(key string) ([]uint64, error) {
	return s.readIndex(fmt.Sprintf(curvePointIndexFormat, key))
}

func (s *CurveStore) GetSlopeChange(key string, p uint64) (*big.Int, bool, error) {
	raw, err := s.db.Get([]byte(fmt.Sprintf(slopeChangePrefixFormat, key, p)))
	if err != nil || len(raw) == 0 {
		return nil, false, nil
	}
	var str string
	if err := json.Unmarshal(raw, &str); err != nil {
		return nil, false, err
	}
	v, err := bigFromString(str)
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (s *CurveStore) PutSlopeChange(key string, p uint64, delta *big.Int) error {
	raw, err := json.Marshal(delta.String())
	if err != nil {
		return err
	}
	if err := s.db.Put([]byte(fmt.Sprintf(slopeChangePrefixFormat, key, p)), raw); err != nil {
		return err
	}
	return s.appendIndex(fmt.Sprintf(slopeChangeIndexFormat, key), p)
}

func (s *CurveStore) DeleteSlopeChange(key string, p uint64) error {
	if err := s.db.Put([]byte(fmt.Sprintf(slopeChangePrefixFormat, key, p)), nil); err != nil {
		return err
	}
	return s.removeFromIndex(fmt.Sprintf(slopeChangeIndexFormat, key), p)
}

func (s *CurveStore) SlopeChangePeriods(key string) ([]uint64, error) {
	return s.readIndex(fmt.Sprintf(slopeChangeIndexFormat, key))
}

func (s *CurveStore) appendIndex(idxKey string, p uint64) error {
	periods, err := s.readIndex(idxKey)
	if err != nil {
		return err
	}
	i := sort.Search(len(periods), func(i int) bool { return periods[i] >= p })
	if i < len(periods) && periods[i] == p {
		return nil
	}
	periods = append(periods, 0)
	copy(periods[i+1:], periods[i:])
	periods[i] = p
	return s.writeIndex(idxKey, periods)
}

func (s *CurveStore) removeFromIndex(idxKey string, p uint64) error {
	periods, err := s.readIndex(idxKey)
	if err != nil {
		return err
	}
	i := sort.Search(len(periods), func(i int) bool { return periods[i] >= p })
	if i < len(periods) && periods[i] == p {
		periods = append(periods[:i], periods[i+1:]...)
	}
	return s.writeIndex(idxKey, periods)
}

func (s *CurveStore) readIndex(idxKey string) ([]uint64, error) {
	raw, err := s.db.Get([]byte(idxKey))
	if err != nil || len(raw) == 0 {
		return nil, nil
	}
	var periods []uint64
	if err := json.Unmarshal(raw, &periods); err != nil {
		return nil, err
	}
	return periods, nil
}

func (s *CurveStore) writeIndex(idxKey string, periods []uint64) error {
	raw, err := json.Marshal(periods)
	if err != nil {
		return err
	}
	return s.db.Put([]byte(idxKey), raw)
}
