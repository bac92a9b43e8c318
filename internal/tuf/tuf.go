// Package tuf implements time-utility functions: piecewise-linear curves mapping
// an instant (epoch milliseconds) to the desirability of a goal at that instant.
package tuf

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// MaxMagnitude is the largest absolute value accepted for a point field. It is
// the largest integer a JSON client can carry without precision loss.
const MaxMagnitude = 1<<53 - 1

var (
	// ErrInvalid marks a point set that does not form a legal curve.
	ErrInvalid = errors.New("time utility function not valid")
	// ErrOutOfDomain marks a query outside [first.Time, last.Time].
	ErrOutOfDomain = errors.New("time outside curve domain")
)

// Point is one control point of a curve.
type Point struct {
	Time    int64 `json:"time"`
	Utility int64 `json:"utility"`
}

// Curve is an immutable, validated, time-ordered sequence of points.
type Curve struct {
	points []Point
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

func inRange(v int64) bool {
	return v >= -MaxMagnitude && v <= MaxMagnitude
}

// Validate checks that points form a legal curve and returns them sorted by time.
// The input slice is not modified.
func Validate(points []Point) ([]Point, error) {
	if len(points) == 0 {
		return nil, invalid("at least one point required")
	}
	sorted := make([]Point, len(points))
	copy(sorted, points)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time < sorted[j].Time })
	for i, p := range sorted {
		if !inRange(p.Time) {
			return nil, invalid("time %d out of range", p.Time)
		}
		if !inRange(p.Utility) {
			return nil, invalid("utility %d out of range", p.Utility)
		}
		if i > 0 && sorted[i-1].Time == p.Time {
			return nil, invalid("duplicate time %d", p.Time)
		}
	}
	return sorted, nil
}

// FromFloats converts parallel wire arrays into points. Every value must be a
// finite integer within MaxMagnitude.
func FromFloats(times, utils []float64) ([]Point, error) {
	if len(times) != len(utils) {
		return nil, invalid("%d times but %d utilities", len(times), len(utils))
	}
	points := make([]Point, len(times))
	for i := range times {
		t, err := toInt(times[i])
		if err != nil {
			return nil, err
		}
		u, err := toInt(utils[i])
		if err != nil {
			return nil, err
		}
		points[i] = Point{Time: t, Utility: u}
	}
	return points, nil
}

func toInt(v float64) (int64, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, invalid("non-finite value")
	}
	if v != math.Trunc(v) {
		return 0, invalid("non-integral value %v", v)
	}
	if math.Abs(v) > MaxMagnitude {
		return 0, invalid("value %v out of range", v)
	}
	return int64(v), nil
}

// New validates points and builds a curve.
func New(points []Point) (Curve, error) {
	sorted, err := Validate(points)
	if err != nil {
		return Curve{}, err
	}
	return Curve{points: sorted}, nil
}

// MustNew is New for literals known to be valid.
func MustNew(points ...Point) Curve {
	c, err := New(points)
	if err != nil {
		panic(err)
	}
	return c
}

// Points returns a copy of the curve's points in time order.
func (c Curve) Points() []Point {
	out := make([]Point, len(c.points))
	copy(out, c.points)
	return out
}

// Len returns the number of knots.
func (c Curve) Len() int { return len(c.points) }

// Domain returns the first and last knot times.
func (c Curve) Domain() (start, end int64) {
	if len(c.points) == 0 {
		return 0, 0
	}
	return c.points[0].Time, c.points[len(c.points)-1].Time
}

// Contains reports whether t lies inside the curve's domain.
func (c Curve) Contains(t int64) bool {
	if len(c.points) == 0 {
		return false
	}
	start, end := c.Domain()
	return t >= start && t <= end
}
