package period

import (
	"math/big"
	"sort"
)

// Store persists the sparse checkpoints and scheduled slope changes a
// PeriodCurve operates over. A production Store is backed by
// core/state.CurveStore (a prefixed key-value layout over storage.Database);
// MemStore below backs unit tests and any in-process-only caller.
//
// Implementations must maintain the period-index lists returned by
// PointPeriods/SlopeChangePeriods in ascending order: LatestAt walks them
// in that order and stops at the first checkpoint past its target.
type Store interface {
	GetPoint(key string, period uint64) (Point, bool, error)
	PutPoint(key string, period uint64, p Point) error
	PointPeriods(key string) ([]uint64, error)

	GetSlopeChange(key string, period uint64) (*big.Int, bool, error)
	PutSlopeChange(key string, period uint64, delta *big.Int) error
	DeleteSlopeChange(key string, period uint64) error
	SlopeChangePeriods(key string) ([]uint64, error)
}

// MemStore is an in-memory Store implementation with no locking of its
// own; callers (PeriodCurve) are expected to serialise access exactly as
// the engine's single-threaded cooperative model requires.
type MemStore struct {
	points       map[string]map[uint64]Point
	pointIdx     map[string][]uint64
	slopeChanges map[string]map[uint64]*big.Int
	slopeIdx     map[string][]uint64
}

// NewMemStore constructs an empty in-memory Store.
func NewMemStore() *MemStore {
	return &MemStore{
		points:       make(map[string]map[uint64]Point),
		pointIdx:     make(map[string][]uint64),
		slopeChanges: make(map[string]map[uint64]*big.Int),
		slopeIdx:     make(map[string][]uint64),
	}
}

func (m *MemStore) GetPoint(key string, period uint64) (Point, bool, error) {
	byPeriod, ok := m.points[key]
	if !ok {
		return Point{}, false, nil
	}
	p, ok := byPeriod[period]
	if !ok {
		return Point{}, false, nil
	}
	return p.Clone(), true, nil
}

func (m *MemStore) PutPoint(key string, period uint64, p Point) error {
	byPeriod, ok := m.points[key]
	if !ok {
		byPeriod = make(map[uint64]Point)
		m.points[key] = byPeriod
	}
	if _, existed := byPeriod[period]; !existed {
		m.pointIdx[key] = insertSorted(m.pointIdx[key], period)
	}
	byPeriod[period] = p.Clone()
	return nil
}

func (m *MemStore) PointPeriods(key string) ([]uint64, error) {
	return append([]uint64(nil), m.pointIdx[key]...), nil
}

func (m *MemStore) GetSlopeChange(key string, period uint64) (*big.Int, bool, error) {
	byPeriod, ok := m.slopeChanges[key]
	if !ok {
		return nil, false, nil
	}
	v, ok := byPeriod[period]
	if !ok {
		return nil, false, nil
	}
	return cloneInt(v), true, nil
}

func (m *MemStore) PutSlopeChange(key string, period uint64, delta *big.Int) error {
	byPeriod, ok := m.slopeChanges[key]
	if !ok {
		byPeriod = make(map[uint64]*big.Int)
		m.slopeChanges[key] = byPeriod
	}
	if _, existed := byPeriod[period]; !existed {
		m.slopeIdx[key] = insertSorted(m.slopeIdx[key], period)
	}
	byPeriod[period] = cloneInt(delta)
	return nil
}

func (m *MemStore) DeleteSlopeChange(key string, period uint64) error {
	byPeriod, ok := m.slopeChanges[key]
	if !ok {
		return nil
	}
	delete(byPeriod, period)
	m.slopeIdx[key] = removeSorted(m.slopeIdx[key], period)
	return nil
}

func (m *MemStore) SlopeChangePeriods(key string) ([]uint64, error) {
	return append([]uint64(nil), m.slopeIdx[key]...), nil
}

func insertSorted(list []uint64, v uint64) []uint64 {
	i := sort.Search(len(list), func(i int) bool { return list[i] >= v })
	if i < len(list) && list[i] == v {
		return list
	}
	list = append(list, 0)
	copy(list[i+1:], list[i:])
	list[i] = v
	return list
}

func removeSorted(list []uint64, v uint64) []uint64 {
	i := sort.Search(len(list), func(i int) bool { return list[i] >= v })
	if i < len(list) && list[i] == v {
		return append(list[:i], list[i+1:]...)
	}
	return list
}
