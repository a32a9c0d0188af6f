package geo

import (
	"errors"
	"fmt"
	"strings"

	"github.com/paulmach/orb"
	"github.com/tidwall/gjson"
)

// DefaultIDPath is the gjson path of the neighborhood identifier in the
// Cambridge CDD neighborhoods layer.
const DefaultIDPath = "properties.N_HOOD"

var errNoFeatures = errors.New("feature collection has no features")

// LoadRegions decodes a GeoJSON FeatureCollection of Polygon or MultiPolygon
// features into regions, preserving feature order. idPath is a gjson path
// evaluated against each feature. Any structural problem (invalid JSON,
// missing geometry, unsupported geometry type, missing or duplicate ID) is an
// error: a partially loaded region set would silently change which region
// wins a lookup.
func LoadRegions(data []byte, idPath string) ([]Region, error) {
	if !gjson.ValidBytes(data) {
		return nil, errors.New("invalid geojson document")
	}
	if idPath == "" {
		idPath = DefaultIDPath
	}

	doc := gjson.ParseBytes(data)
	if t := doc.Get("type").String(); t != "FeatureCollection" {
		return nil, fmt.Errorf("expected FeatureCollection, got %q", t)
	}

	features := doc.Get("features").Array()
	if len(features) == 0 {
		return nil, errNoFeatures
	}

	regions := make([]Region, 0, len(features))
	seen := make(map[string]int, len(features))
	for i, f := range features {
		id := strings.TrimSpace(f.Get(idPath).String())
		if id == "" {
			return nil, fmt.Errorf("feature %d: missing id at %q", i, idPath)
		}
		if prev, dup := seen[id]; dup {
			return nil, fmt.Errorf("feature %d: duplicate id %q (first seen at feature %d)", i, id, prev)
		}
		seen[id] = i

		boundary, err := parseBoundary(f.Get("geometry"))
		if err != nil {
			return nil, fmt.Errorf("feature %d (%s): %w", i, id, err)
		}
		regions = append(regions, Region{ID: id, Boundary: boundary})
	}
	return regions, nil
}

func parseBoundary(geom gjson.Result) (orb.MultiPolygon, error) {
	if !geom.Exists() || geom.Type == gjson.Null {
		return nil, errors.New("missing geometry")
	}

	coords := geom.Get("coordinates")
	switch t := geom.Get("type").String(); t {
	case "Polygon":
		poly, err := parsePolygon(coords)
		if err != nil {
			return nil, err
		}
		return orb.MultiPolygon{poly}, nil
	case "MultiPolygon":
		parts := coords.Array()
		if len(parts) == 0 {
			return nil, errors.New("empty multipolygon")
		}
		mp := make(orb.MultiPolygon, 0, len(parts))
		for i, part := range parts {
			poly, err := parsePolygon(part)
			if err != nil {
				return nil, fmt.Errorf("polygon %d: %w", i, err)
			}
			mp = append(mp, poly)
		}
		return mp, nil
	default:
		return nil, fmt.Errorf("unsupported geometry type %q", t)
	}
}

func parsePolygon(v gjson.Result) (orb.Polygon, error) {
	rings := v.Array()
	if len(rings) == 0 {
		return nil, errors.New("polygon has no rings")
	}
	poly := make(orb.Polygon, 0, len(rings))
	for i, r := range rings {
		ring, err := parseRing(r)
		if err != nil {
			return nil, fmt.Errorf("ring %d: %w", i, err)
		}
		poly = append(poly, ring)
	}
	return poly, nil
}

func parseRing(v gjson.Result) (orb.Ring, error) {
	vertices := v.Array()
	if len(vertices) < 3 {
		return nil, fmt.Errorf("ring has %d vertices, need at least 3", len(vertices))
	}
	ring := make(orb.Ring, 0, len(vertices))
	for i, vert := range vertices {
		pos := vert.Array()
		if len(pos) < 2 || pos[0].Type != gjson.Number || pos[1].Type != gjson.Number {
			return nil, fmt.Errorf("vertex %d: expected [lon, lat]", i)
		}
		ring = append(ring, orb.Point{pos[0].Float(), pos[1].Float()})
	}
	return ring, nil
}

// IDs returns region IDs in input order.
func IDs(regions []Region) []string {
	ids := make([]string, len(regions))
	for i, r := range regions {
		ids[i] = r.ID
	}
	return ids
}
