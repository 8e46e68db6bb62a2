package gauge

// MemStore is an in-memory Store for tests and standalone use.
type MemStore struct {
	gauges         map[string]*Gauge
	allocations    map[string]map[[20]byte]*Allocation
	distributions  map[string]map[uint64]*Distribution
	lastDist       map[string]uint64
	watermarks     map[[20]byte]uint64
	ownerGauges    map[[20]byte]map[string]struct{}
}

// NewMemStore constructs an empty in-memory Store.
func NewMemStore() *MemStore {
	return &MemStore{
		gauges:        make(map[string]*Gauge),
		allocations:   make(map[string]map[[20]byte]*Allocation),
		distributions: make(map[string]map[uint64]*Distribution),
		lastDist:      make(map[string]uint64),
		watermarks:    make(map[[20]byte]uint64),
		ownerGauges:   make(map[[20]byte]map[string]struct{}),
	}
}

func (m *MemStore) AllocatedGauges(owner [20]byte) ([]string, error) {
	set := m.ownerGauges[owner]
	out := make([]string, 0, len(set))
	for g := range set {
		out = append(out, g)
	}
	return out, nil
}

func (m *MemStore) GetGauge(id string) (*Gauge, bool, error) {
	g, ok := m.gauges[id]
	if !ok {
		return nil, false, nil
	}
	clone := &Gauge{ID: g.ID, Whitelist: make(map[string]struct{}, len(g.Whitelist)), MinBpsFloorNumerator: g.MinBpsFloorNumerator}
	for k := range g.Whitelist {
		clone.Whitelist[k] = struct{}{}
	}
	return clone, true, nil
}

func (m *MemStore) PutGauge(g *Gauge) error {
	m.gauges[g.ID] = g
	return nil
}

func (m *MemStore) GetAllocation(gauge string, voter [20]byte) (*Allocation, bool, error) {
	byVoter, ok := m.allocations[gauge]
	if !ok {
		return nil, false, nil
	}
	a, ok := byVoter[voter]
	if !ok {
		return nil, false, nil
	}
	entries := append([]AllocationEntry(nil), a.Entries...)
	return &Allocation{Gauge: a.Gauge, Voter: a.Voter, Entries: entries}, true, nil
}

func (m *MemStore) PutAllocation(a *Allocation) error {
	byVoter, ok := m.allocations[a.Gauge]
	if !ok {
		byVoter = make(map[[20]byte]*Allocation)
		m.allocations[a.Gauge] = byVoter
	}
	entries := append([]AllocationEntry(nil), a.Entries...)
	byVoter[a.Voter] = &Allocation{Gauge: a.Gauge, Voter: a.Voter, Entries: entries}

	set, ok := m.ownerGauges[a.Voter]
	if !ok {
		set = make(map[string]struct{})
		m.ownerGauges[a.Voter] = set
	}
	if len(entries) == 0 {
		delete(set, a.Gauge)
	} else {
		set[a.Gauge] = struct{}{}
	}
	return nil
}

func (m *MemStore) PutDistribution(d *Distribution) error {
	byPeriod, ok := m.distributions[d.Gauge]
	if !ok {
		byPeriod = make(map[uint64]*Distribution)
		m.distributions[d.Gauge] = byPeriod
	}
	byPeriod[d.Period] = d
	if cur, ok := m.lastDist[d.Gauge]; !ok || d.Period > cur {
		m.lastDist[d.Gauge] = d.Period
	}
	return nil
}

func (m *MemStore) GetDistribution(gauge string, p uint64) (*Distribution, bool, error) {
	byPeriod, ok := m.distributions[gauge]
	if !ok {
		return nil, false, nil
	}
	d, ok := byPeriod[p]
	return d, ok, nil
}

func (m *MemStore) LastDistributionPeriod(gauge string) (uint64, bool, error) {
	p, ok := m.lastDist[gauge]
	return p, ok, nil
}

func (m *MemStore) GetRebaseWatermark(owner [20]byte) (uint64, bool, error) {
	p, ok := m.watermarks[owner]
	return p, ok, nil
}

func (m *MemStore) PutRebaseWatermark(owner [20]byte, p uint64) error {
	m.watermarks[owner] = p
	return nil
}
