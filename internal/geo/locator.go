// Package geo resolves coordinates to named administrative regions.
//
// Regions are loaded once per run and never mutated. Every locator in this
// package answers with the first region, in input order, whose boundary
// contains the query point, so the linear scan, the R-tree pre-filter and the
// cached decorator are interchangeable.
//
// # Containment rule
//
// Containment uses the even-odd (ray casting) rule over each polygon's outer
// ring; a point inside any hole ring is outside the polygon. Edge crossings
// are counted half-open: an edge (a, b) crosses the ray when
// (a.lat > p.lat) != (b.lat > p.lat) and the intersection lies strictly east
// of the point. As a consequence a point lying exactly on a west or south
// edge of an axis-aligned boundary is inside, and a point on an east or north
// edge is outside. Two regions sharing an edge therefore never both claim a
// point on it.
package geo

import (
	"math"

	"github.com/paulmach/orb"
)

// Region is a named administrative boundary, e.g. a city neighborhood.
type Region struct {
	ID       string
	Boundary orb.MultiPolygon
}

// Bound returns the region's bounding box.
func (r Region) Bound() orb.Bound {
	return r.Boundary.Bound()
}

// Locator answers point-containment queries over a fixed region set.
type Locator interface {
	Locate(p orb.Point) (string, bool)
}

// LinearLocator scans regions in input order. Cost is O(regions * vertices)
// per query, which is fine at municipal scale.
type LinearLocator struct {
	regions []Region
}

// NewLocator creates a LinearLocator over a copy of regions.
func NewLocator(regions []Region) *LinearLocator {
	cp := make([]Region, len(regions))
	copy(cp, regions)
	return &LinearLocator{regions: cp}
}

// Locate returns the ID of the first region containing p. Points with a NaN
// or infinite component are never located.
func (l *LinearLocator) Locate(p orb.Point) (string, bool) {
	if !validPoint(p) {
		return "", false
	}
	for i := range l.regions {
		if Contains(l.regions[i].Boundary, p) {
			return l.regions[i].ID, true
		}
	}
	return "", false
}

// Regions returns the regions in input order.
func (l *LinearLocator) Regions() []Region {
	return l.regions
}

// Contains reports whether any polygon of mp contains p.
func Contains(mp orb.MultiPolygon, p orb.Point) bool {
	for _, poly := range mp {
		if polygonContains(poly, p) {
			return true
		}
	}
	return false
}

func polygonContains(poly orb.Polygon, p orb.Point) bool {
	if len(poly) == 0 || !ringContains(poly[0], p) {
		return false
	}
	for _, hole := range poly[1:] {
		if ringContains(hole, p) {
			return false
		}
	}
	return true
}

// ringContains applies the even-odd rule. Rings may be open or closed; a
// repeated closing vertex forms a zero-length edge that never crosses.
func ringContains(ring orb.Ring, p orb.Point) bool {
	n := len(ring)
	if n < 3 {
		return false
	}
	x, y := p[0], p[1]
	inside := false
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := ring[i][0], ring[i][1]
		xj, yj := ring[j][0], ring[j][1]
		if (yi > y) != (yj > y) && x < (xj-xi)*(y-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}
	return inside
}

func validPoint(p orb.Point) bool {
	for _, v := range p {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
