package domain

import (
	"errors"
	"time"
)

// maxReportedErrors caps the sampled record errors kept per family.
const maxReportedErrors = 100

// FamilyReport summarizes one family's pass.
type FamilyReport struct {
	Family       Family          `json:"family"`
	Read         int             `json:"read"`
	Written      int             `json:"written"`
	Skipped      int             `json:"skipped"`
	Dropped      int             `json:"dropped"`
	MissingJoin  int             `json:"missingJoin,omitempty"`
	Unlocated    int             `json:"unlocated,omitempty"`
	Unresolved   int             `json:"unresolved,omitempty"`
	Unclassified int             `json:"unclassified,omitempty"`
	Defaulted    map[Field]int   `json:"defaulted,omitempty"`
	Duplicates   int             `json:"duplicates,omitempty"`
	Errors       []ReportedError `json:"errors,omitempty"`
	Err          string          `json:"error,omitempty"`
}

// ReportedError is the serializable form of a RecordError.
type ReportedError struct {
	Source  string `json:"source"`
	Row     int    `json:"row"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// NewFamilyReport returns an empty report for f.
func NewFamilyReport(f Family) *FamilyReport {
	return &FamilyReport{Family: f}
}

// Record adds a record error to the sample. Errors past the cap are counted
// by the caller but not kept.
func (r *FamilyReport) Record(err *RecordError) {
	if len(r.Errors) >= maxReportedErrors {
		return
	}
	kind := "error"
	switch {
	case errors.Is(err.Kind, ErrMalformedRecord):
		kind = "malformed"
	case errors.Is(err.Kind, ErrMissingJoinKey):
		kind = "missing_join"
	}
	var msg string
	if err.Err != nil {
		msg = err.Err.Error()
	}
	r.Errors = append(r.Errors, ReportedError{Source: err.Source, Row: err.Row, Kind: kind, Message: msg})
}

// Default counts a field that fell back to its default value.
func (r *FamilyReport) Default(f Field) {
	if r.Defaulted == nil {
		r.Defaulted = make(map[Field]int)
	}
	r.Defaulted[f]++
}

// Failed reports whether the family was aborted.
func (r *FamilyReport) Failed() bool {
	return r.Err != ""
}

// RunReport accompanies every set of outputs.
type RunReport struct {
	RunID      string          `json:"runId"`
	StartedAt  time.Time       `json:"startedAt"`
	FinishedAt time.Time       `json:"finishedAt"`
	Families   []*FamilyReport `json:"families"`
}

// Family returns the report for f, or nil.
func (r RunReport) Family(f Family) *FamilyReport {
	for _, fr := range r.Families {
		if fr.Family == f {
			return fr
		}
	}
	return nil
}
