package pipeline

import (
	"runtime"
	"time"

	"github.com/HarvardViz/data-processing/internal/domain"
)

// Spatial index modes.
const (
	SpatialIndexNone  = "none"
	SpatialIndexRTree = "rtree"
)

// Options tunes how the families are processed.
type Options struct {
	// SourceZone is the zone of local times in incident, citation and
	// weather sources; also the zone weather days are joined in.
	SourceZone *time.Location
	// AstroZone is the zone the astronomical tables are printed in.
	AstroZone *time.Location

	StrictAccidentType bool
	MissingAstro       domain.MissingAstroPolicy

	SpatialIndex     string
	LocatorCacheSize int
	Workers          int

	Charges         *domain.ChargeClassifier
	IncidentSchemas map[string]domain.Schema
}

func (o Options) withDefaults() Options {
	if o.SourceZone == nil {
		o.SourceZone = time.UTC
	}
	if o.AstroZone == nil {
		o.AstroZone = o.SourceZone
	}
	if o.MissingAstro == "" {
		o.MissingAstro = domain.MissingAstroFill
	}
	if o.SpatialIndex == "" {
		o.SpatialIndex = SpatialIndexRTree
	}
	if o.Workers <= 0 {
		o.Workers = runtime.GOMAXPROCS(0)
	}
	if o.Charges == nil {
		o.Charges = domain.DefaultChargeClassifier()
	}
	if o.IncidentSchemas == nil {
		o.IncidentSchemas = domain.IncidentSchemas
	}
	return o
}
