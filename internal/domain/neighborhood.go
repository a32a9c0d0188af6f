package domain

import "github.com/paulmach/orb"

// RegionLocator resolves a point to the id of the region containing it.
type RegionLocator interface {
	Locate(p orb.Point) (string, bool)
}

// LocateOutcome classifies the result of neighborhood enrichment.
type LocateOutcome string

const (
	LocateFound     LocateOutcome = "found"
	LocateNotFound  LocateOutcome = "not_found"
	LocateNoCoords  LocateOutcome = "no_coordinates"
	LocateNoLocator LocateOutcome = "no_locator"
)

// EnrichWithNeighborhood sets rec.Neighborhood from locator. A record without
// finite coordinates is never located and has Coordinates cleared. A nil
// locator leaves the record unchanged (graceful degradation).
func EnrichWithNeighborhood(rec IncidentRecord, locator RegionLocator) (IncidentRecord, LocateOutcome) {
	rec.Neighborhood = nil
	if !rec.HasValidCoordinates() {
		rec.Coordinates = nil
		return rec, LocateNoCoords
	}
	if locator == nil {
		return rec, LocateNoLocator
	}
	id, ok := locator.Locate(*rec.Coordinates)
	if !ok {
		return rec, LocateNotFound
	}
	rec.Neighborhood = &id
	return rec, LocateFound
}
