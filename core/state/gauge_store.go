package state

import (
	"encoding/json"
	"fmt"

	"github.com/erisprotocol/ve3engine/native/gauge"
	"github.com/erisprotocol/ve3engine/storage"
)

// GaugeStore is a gauge.Store backed by a storage.Database.
type GaugeStore struct {
	db storage.Database
}

// NewGaugeStore wraps db as a gauge.Store.
func NewGaugeStore(db storage.Database) *GaugeStore {
	return &GaugeStore{db: db}
}

type storedGauge struct {
	ID                   string
	Whitelist            []string
	MinBpsFloorNumerator uint64
}

func gaugeKey(id string) []byte {
	return append(append([]byte(nil), gaugePrefix...), id...)
}

func (s *GaugeStore) GetGauge(id string) (*gauge.Gauge, bool, error) {
	raw, err := s.db.Get(gaugeKey(id))
	if err != nil || len(raw) == 0 {
		return nil, false, nil
	}
	var sg storedGauge
	if err := json.Unmarshal(raw, &sg); err != nil {
		return nil, false, err
	}
	whitelist := make(map[string]struct{}, len(sg.Whitelist))
	for _, w := range sg.Whitelist {
		whitelist[w] = struct{}{}
	}
	return &gauge.Gauge{ID: sg.ID, Whitelist: whitelist, MinBpsFloorNumerator: sg.MinBpsFloorNumerator}, true, nil
}

func (s *GaugeStore) PutGauge(g *gauge.Gauge) error {
	sg := storedGauge{ID: g.ID, MinBpsFloorNumerator: g.MinBpsFloorNumerator}
	for w := range g.Whitelist {
		sg.Whitelist = append(sg.Whitelist, w)
	}
	raw, err := json.Marshal(sg)
	if err != nil {
		return err
	}
	return s.db.Put(gaugeKey(g.ID), raw)
}

type storedAllocation struct {
	Gauge   string
	Voter   [20]byte
	Entries []gauge.AllocationEntry
}

func allocationKey(g string, voter [20]byte) []byte {
	return []byte(fmt.Sprintf(gaugeAllocationFormat, g, voter))
}

func (s *GaugeStore) GetAllocation(g string, voter [20]byte) (*gauge.Allocation, bool, error) {
	raw, err := s.db.Get(allocationKey(g, voter))
	if err != nil || len(raw) == 0 {
		return nil, false, nil
	}
	var sa storedAllocation
	if err := json.Unmarshal(raw, &sa); err != nil {
		return nil, false, err
	}
	return &gauge.Allocation{Gauge: sa.Gauge, Voter: sa.Voter, Entries: sa.Entries}, true, nil
}

func (s *GaugeStore) PutAllocation(a *gauge.Allocation) error {
	sa := storedAllocation{Gauge: a.Gauge, Voter: a.Voter, Entries: a.Entries}
	raw, err := json.Marshal(sa)
	if err != nil {
		return err
	}
	if err := s.db.Put(allocationKey(a.Gauge, a.Voter), raw); err != nil {
		return err
	}
	return s.updateOwnerGaugeIndex(a.Voter, a.Gauge, len(a.Entries) > 0)
}

func ownerGaugesKey(owner [20]byte) []byte {
	return []byte(fmt.Sprintf(ownerGaugesFormat, owner))
}

func (s *GaugeStore) AllocatedGauges(owner [20]byte) ([]string, error) {
	raw, err := s.db.Get(ownerGaugesKey(owner))
	if err != nil || len(raw) == 0 {
		return nil, nil
	}
	var gauges []string
	if err := json.Unmarshal(raw, &gauges); err != nil {
		return nil, err
	}
	return gauges, nil
}

func (s *GaugeStore) updateOwnerGaugeIndex(owner [20]byte, gaugeID string, present bool) error {
	gauges, err := s.AllocatedGauges(owner)
	if err != nil {
		return err
	}
	idx := -1
	for i, g := range gauges {
		if g == gaugeID {
			idx = i
			break
		}
	}
	switch {
	case present && idx < 0:
		gauges = append(gauges, gaugeID)
	case !present && idx >= 0:
		gauges = append(gauges[:idx], gauges[idx+1:]...)
	default:
		return nil
	}
	raw, err := json.Marshal(gauges)
	if err != nil {
		return err
	}
	return s.db.Put(ownerGaugesKey(owner), raw)
}

type storedDistributionEntry struct {
	AssetID  string
	VP       string
	ShareWad string
}

type storedDistribution struct {
	Gauge   string
	Period  uint64
	Entries []storedDistributionEntry
}

func distributionKey(g string, p uint64) []byte {
	return []byte(fmt.Sprintf(gaugeDistributionFormat, g, p))
}

func (s *GaugeStore) PutDistribution(d *gauge.Distribution) error {
	sd := storedDistribution{Gauge: d.Gauge, Period: d.Period}
	for _, e := range d.Entries {
		sd.Entries = append(sd.Entries, storedDistributionEntry{AssetID: e.AssetID, VP: e.VP.String(), ShareWad: e.ShareWad.String()})
	}
	raw, err := json.Marshal(sd)
	if err != nil {
		return err
	}
	if err := s.db.Put(distributionKey(d.Gauge, d.Period), raw); err != nil {
		return err
	}
	last, ok, err := s.LastDistributionPeriod(d.Gauge)
	if err != nil {
		return err
	}
	if !ok || d.Period > last {
		return s.db.Put([]byte(fmt.Sprintf(gaugeLastDistFormat, d.Gauge)), []byte(fmt.Sprintf("%d", d.Period)))
	}
	return nil
}

func (s *GaugeStore) GetDistribution(g string, p uint64) (*gauge.Distribution, bool, error) {
	raw, err := s.db.Get(distributionKey(g, p))
	if err != nil || len(raw) == 0 {
		return nil, false, nil
	}
	var sd storedDistribution
	if err := json.Unmarshal(raw, &sd); err != nil {
		return nil, false, err
	}
	d := &gauge.Distribution{Gauge: sd.Gauge, Period: sd.Period}
	for _, e := range sd.Entries {
		vp, err := bigFromString(e.VP)
		if err != nil {
			return nil, false, err
		}
		share, err := bigFromString(e.ShareWad)
		if err != nil {
			return nil, false, err
		}
		d.Entries = append(d.Entries, gauge.DistributionEntry{AssetID: e.AssetID, VP: vp, ShareWad: share})
	}
	return d, true, nil
}

func (s *GaugeStore) LastDistributionPeriod(g string) (uint64, bool, error) {
	raw, err := s.db.Get([]byte(fmt.Sprintf(gaugeLastDistFormat, g)))
	if err != nil || len(raw) == 0 {
		return 0, false, nil
	}
	var p uint64
	if _, err := fmt.Sscanf(string(raw), "%d", &p); err != nil {
		return 0, false, err
	}
	return p, true, nil
}

func (s *GaugeStore) GetRebaseWatermark(owner [20]byte) (uint64, bool, error) {
	raw, err := s.db.Get([]byte(fmt.Sprintf(rebaseWatermarkFormat, owner)))
	if err != nil || len(raw) == 0 {
		return 0, false, nil
	}
	var p uint64
	if _, err := fmt.Sscanf(string(raw), "%d", &p); err != nil {
		return 0, false, err
	}
	return p, true, nil
}

func (s *GaugeStore) PutRebaseWatermark(owner [20]byte, p uint64) error {
	return s.db.Put([]byte(fmt.Sprintf(rebaseWatermarkFormat, owner)), []byte(fmt.Sprintf("%d", p)))
}
