package domain

// NeighborhoodCounts is the accident tally per region id plus the largest
// tally.
type NeighborhoodCounts struct {
	Counts map[string]int
	Max    int
}

// CountByNeighborhood tallies incidents per region. Every id starts at zero;
// incidents with no neighborhood, or one not in ids, are not counted.
func CountByNeighborhood(ids []string, incidents []IncidentRecord) NeighborhoodCounts {
	nc := NeighborhoodCounts{Counts: make(map[string]int, len(ids))}
	for _, id := range ids {
		nc.Counts[id] = 0
	}
	for _, rec := range incidents {
		if rec.Neighborhood == nil {
			continue
		}
		n, ok := nc.Counts[*rec.Neighborhood]
		if !ok {
			continue
		}
		n++
		nc.Counts[*rec.Neighborhood] = n
		if n > nc.Max {
			nc.Max = n
		}
	}
	return nc
}

// Rating returns the count for id relative to the largest count, or 0 when
// nothing was counted.
func (nc NeighborhoodCounts) Rating(id string) float64 {
	if nc.Max == 0 {
		return 0
	}
	return float64(nc.Counts[id]) / float64(nc.Max)
}

// Stats returns one entry per id, in the order given.
func (nc NeighborhoodCounts) Stats(ids []string) []NeighborhoodStat {
	out := make([]NeighborhoodStat, 0, len(ids))
	for _, id := range ids {
		out = append(out, NeighborhoodStat{ID: id, Accidents: nc.Counts[id], Rating: nc.Rating(id)})
	}
	return out
}
