package tuf

import (
	"math"
	"sort"
)

// UtilityAt returns the utility at t. Knots yield their exact utility; between
// knots the value is linearly interpolated. Outside the domain ErrOutOfDomain is
// returned, which callers must not read as zero utility.
func (c Curve) UtilityAt(t int64) (float64, error) {
	if !c.Contains(t) {
		return 0, ErrOutOfDomain
	}
	// first knot with Time >= t
	i := sort.Search(len(c.points), func(i int) bool { return c.points[i].Time >= t })
	p1 := c.points[i]
	if p1.Time == t {
		return float64(p1.Utility), nil
	}
	p0 := c.points[i-1]
	return interpolate(p0, p1, t), nil
}

func interpolate(p0, p1 Point, t int64) float64 {
	u0, u1 := float64(p0.Utility), float64(p1.Utility)
	return u0 + (u1-u0)*float64(t-p0.Time)/float64(p1.Time-p0.Time)
}

// BestStart returns the start time in [windowStart, windowEnd-duration] that
// maximises utility, restricted to the curve's domain. Because the curve is
// piecewise linear only the range bounds and interior knots are examined. Ties
// go to the earliest time. ok is false when no such time exists.
func (c Curve) BestStart(windowStart, windowEnd, duration int64) (start int64, ok bool) {
	if len(c.points) == 0 || duration < 0 {
		return 0, false
	}
	// windowEnd-duration would wrap below MinInt64.
	if windowEnd < math.MinInt64+duration {
		return 0, false
	}
	first, last := c.Domain()
	lo := max(windowStart, first)
	hi := min(windowEnd-duration, last)
	if lo > hi {
		return 0, false
	}
	best := lo
	bestU, _ := c.UtilityAt(lo)
	for _, p := range c.points {
		if p.Time <= lo || p.Time >= hi {
			continue
		}
		if u := float64(p.Utility); u > bestU {
			best, bestU = p.Time, u
		}
	}
	if hi != lo {
		if u, _ := c.UtilityAt(hi); u > bestU {
			best = hi
		}
	}
	return best, true
}

// Peak returns the knot with the highest utility, earliest on ties.
func (c Curve) Peak() Point {
	var peak Point
	for i, p := range c.points {
		if i == 0 || p.Utility > peak.Utility {
			peak = p
		}
	}
	return peak
}

// Integral returns the area under the curve over [from, to].
func (c Curve) Integral(from, to int64) (float64, error) {
	if from > to {
		return 0, invalid("integral bounds reversed")
	}
	if !c.Contains(from) || !c.Contains(to) {
		return 0, ErrOutOfDomain
	}
	if from == to {
		return 0, nil
	}
	var (
		area  float64
		prevT = from
	)
	prevU, _ := c.UtilityAt(from)
	for _, p := range c.points {
		if p.Time <= from {
			continue
		}
		if p.Time >= to {
			break
		}
		u := float64(p.Utility)
		area += (prevU + u) / 2 * float64(p.Time-prevT)
		prevT, prevU = p.Time, u
	}
	endU, _ := c.UtilityAt(to)
	area += (prevU + endU) / 2 * float64(to-prevT)
	return area, nil
}

// Shift returns a copy of the curve translated by offset milliseconds.
func (c Curve) Shift(offset int64) (Curve, error) {
	if !inRange(offset) {
		return Curve{}, invalid("offset %d out of range", offset)
	}
	shifted := make([]Point, len(c.points))
	for i, p := range c.points {
		shifted[i] = Point{Time: p.Time + offset, Utility: p.Utility}
	}
	return New(shifted)
}
