package period

import "math/big"

// Curve is the lazy piecewise-linear accumulator. A single Curve instance
// multiplexes every key (token id, "gauge|asset"
// pair, or "TOTAL") over one Store so that EscrowBook and GaugeBook can
// share the materialisation logic without sharing keyspaces.
type Curve struct {
	store Store
}

// NewCurve wraps a Store with the lazy-recomputation algorithm.
func NewCurve(store Store) *Curve {
	return &Curve{store: store}
}

// latestStoredAtOrBefore returns the most recent checkpoint at or before p,
// or ok=false if the key has no history yet.
func (c *Curve) latestStoredAtOrBefore(key string, p uint64) (uint64, Point, bool, error) {
	periods, err := c.store.PointPeriods(key)
	if err != nil {
		return 0, Point{}, false, err
	}
	var found uint64
	var has bool
	for _, candidate := range periods {
		if candidate > p {
			break
		}
		found = candidate
		has = true
	}
	if !has {
		return 0, Point{}, false, nil
	}
	pt, ok, err := c.store.GetPoint(key, found)
	if err != nil {
		return 0, Point{}, false, err
	}
	if !ok {
		return 0, Point{}, false, nil
	}
	return found, pt, true, nil
}

// LatestAt materialises and returns the curve's point at period p, walking
// forward through every scheduled slope change between the last stored
// checkpoint and p. Intermediate checkpoints are written back to the store
// so a later query pays only for events since this call.
func (c *Curve) LatestAt(key string, p uint64) (Point, error) {
	p0, pt, has, err := c.latestStoredAtOrBefore(key, p)
	if err != nil {
		return Point{}, err
	}
	if !has {
		return Zero(), nil
	}
	if p0 == p {
		return pt, nil
	}

	changes, err := c.store.SlopeChangePeriods(key)
	if err != nil {
		return Point{}, err
	}

	prev := p0
	cur := pt.Clone()
	for _, q := range changes {
		if q <= p0 || q > p {
			continue
		}
		cur.VotingPower = satSub(cur.VotingPower, new(big.Int).Mul(cur.Slope, new(big.Int).SetUint64(q-prev)))
		delta, ok, err := c.store.GetSlopeChange(key, q)
		if err != nil {
			return Point{}, err
		}
		if ok {
			cur.Slope = satSub(cur.Slope, delta)
		}
		prev = q
		if err := c.store.PutPoint(key, q, cur); err != nil {
			return Point{}, err
		}
	}

	if prev < p {
		cur.VotingPower = satSub(cur.VotingPower, new(big.Int).Mul(cur.Slope, new(big.Int).SetUint64(p-prev)))
	}
	return cur, nil
}

// ApplyDelta reads (materialising as needed) the point at period p and
// combines it with delta, storing the result back at (key, p). add=true
// adds the delta's components; add=false subtracts them, saturating at
// zero rather than going negative.
func (c *Curve) ApplyDelta(key string, p uint64, delta Delta, add bool) error {
	cur, err := c.LatestAt(key, p)
	if err != nil {
		return err
	}
	if cur.VotingPower == nil {
		cur = Zero()
	}
	if add {
		cur.VotingPower = new(big.Int).Add(cur.VotingPower, nonNil(delta.VotingPower))
		cur.Slope = new(big.Int).Add(cur.Slope, nonNil(delta.Slope))
		cur.Fixed = new(big.Int).Add(cur.Fixed, nonNil(delta.Fixed))
	} else {
		cur.VotingPower = satSub(cur.VotingPower, nonNil(delta.VotingPower))
		cur.Slope = satSub(cur.Slope, nonNil(delta.Slope))
		cur.Fixed = satSub(cur.Fixed, nonNil(delta.Fixed))
	}
	return c.store.PutPoint(key, p, cur)
}

// SetPoint overwrites the point at (key, p) outright. Used by operations
// that replace a curve wholesale (lock_permanent, burn-to-zero) rather than
// combining a delta.
func (c *Curve) SetPoint(key string, p uint64, pt Point) error {
	return c.store.PutPoint(key, p, pt)
}

// ScheduledSlopeChangesAfter returns every slope-change entry scheduled for
// key at a period strictly greater than afterPeriod.
func (c *Curve) ScheduledSlopeChangesAfter(key string, afterPeriod uint64) (map[uint64]*big.Int, error) {
	periods, err := c.store.SlopeChangePeriods(key)
	if err != nil {
		return nil, err
	}
	out := make(map[uint64]*big.Int)
	for _, p := range periods {
		if p <= afterPeriod {
			continue
		}
		delta, ok, err := c.store.GetSlopeChange(key, p)
		if err != nil {
			return nil, err
		}
		if ok {
			out[p] = delta
		}
	}
	return out, nil
}

// ScheduleSlopeChange adds delta to the slope reduction scheduled at pEnd.
// If the resulting value is zero the entry is removed.
func (c *Curve) ScheduleSlopeChange(key string, pEnd uint64, delta *big.Int) error {
	existing, ok, err := c.store.GetSlopeChange(key, pEnd)
	if err != nil {
		return err
	}
	next := nonNil(delta)
	if ok {
		next = new(big.Int).Add(existing, delta)
	}
	if next.Sign() == 0 {
		return c.store.DeleteSlopeChange(key, pEnd)
	}
	return c.store.PutSlopeChange(key, pEnd, next)
}

// CancelSlopeChange subtracts delta (saturating at zero) from the slope
// reduction scheduled at pEnd, removing the entry if it reaches zero.
func (c *Curve) CancelSlopeChange(key string, pEnd uint64, delta *big.Int) error {
	existing, ok, err := c.store.GetSlopeChange(key, pEnd)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	next := satSub(existing, delta)
	if next.Sign() == 0 {
		return c.store.DeleteSlopeChange(key, pEnd)
	}
	return c.store.PutSlopeChange(key, pEnd, next)
}
