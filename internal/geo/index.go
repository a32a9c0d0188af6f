package geo

import (
	"slices"

	"github.com/paulmach/orb"
	"github.com/tidwall/rtree"
)

// boundPad widens every indexed box so points on a boundary are always
// candidates; the exact test decides.
const boundPad = 1e-9

// IndexedLocator pre-filters regions by bounding box with an R-tree before
// running the exact containment test. Candidates are tested in ascending
// input order, so the answer is identical to LinearLocator's.
type IndexedLocator struct {
	regions []Region
	tree    rtree.RTreeG[int]
}

// NewIndexedLocator builds the bounding-box index. Each polygon of a region is
// indexed separately so a multi-part region does not inflate a single box.
func NewIndexedLocator(regions []Region) *IndexedLocator {
	l := &IndexedLocator{regions: make([]Region, len(regions))}
	copy(l.regions, regions)
	for i, r := range l.regions {
		for _, poly := range r.Boundary {
			if len(poly) == 0 {
				continue
			}
			b := poly.Bound().Pad(boundPad)
			l.tree.Insert([2]float64{b.Min[0], b.Min[1]}, [2]float64{b.Max[0], b.Max[1]}, i)
		}
	}
	return l
}

// Locate returns the ID of the first region, in input order, containing p.
func (l *IndexedLocator) Locate(p orb.Point) (string, bool) {
	if !validPoint(p) {
		return "", false
	}

	pt := [2]float64{p[0], p[1]}
	var candidates []int
	l.tree.Search(pt, pt, func(_, _ [2]float64, idx int) bool {
		candidates = append(candidates, idx)
		return true
	})
	if len(candidates) == 0 {
		return "", false
	}

	slices.Sort(candidates)
	candidates = slices.Compact(candidates)
	for _, idx := range candidates {
		if Contains(l.regions[idx].Boundary, p) {
			return l.regions[idx].ID, true
		}
	}
	return "", false
}

// Regions returns the regions in input order.
func (l *IndexedLocator) Regions() []Region {
	return l.regions
}
