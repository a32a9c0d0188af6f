package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Unresolved geometry and unmapped categories are not errors:
// they surface as nil fields on the record.
var (
	// ErrMalformedRecord marks a source row with an unparseable date or
	// required numeric field. The row is skipped and counted.
	ErrMalformedRecord = errors.New("malformed record")

	// ErrMissingJoinKey marks a weather record whose calendar day has no
	// astronomical record.
	ErrMissingJoinKey = errors.New("missing join key")

	// ErrSourceUnavailable marks an input that cannot be read or is
	// structurally invalid. It aborts the run before any output is written.
	ErrSourceUnavailable = errors.New("source unavailable")
)

// Family names a dataset family processed independently by the pipeline.
type Family string

const (
	FamilyIncidents     Family = "incidents"
	FamilyCitations     Family = "citations"
	FamilyWeather       Family = "weather"
	FamilyAstronomical  Family = "astronomical"
	FamilyNeighborhoods Family = "neighborhoods"
)

// RecordError describes a problem with a single source row. Row is the
// 1-based data row (CSV, excluding the header) or line number (astronomical
// tables).
type RecordError struct {
	Family Family
	Source string
	Row    int
	Kind   error
	Err    error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("%s %s row %d: %v: %v", e.Family, e.Source, e.Row, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *RecordError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

func malformed(family Family, source string, row int, err error) *RecordError {
	return &RecordError{Family: family, Source: source, Row: row, Kind: ErrMalformedRecord, Err: err}
}
