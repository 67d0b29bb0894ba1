// Package execution carries the diagnostics that accompany query, delete and
// consistency-check results.
//
// Semantic problems found while evaluating against a partition (an unknown
// column, a denied column, a value that does not convert) are recorded on a
// Details value instead of being returned as errors, so a fan-out over many
// partitions can still return partial results. Details from each partition
// are combined with Merge.
package execution

import (
	"fmt"
	"slices"
)

// Level selects how thorough VerifyConsistency is.
type Level uint8

const (
	// Basic checks structure only: lengths and ID presence.
	Basic Level = iota
	// Full also re-hashes every row and checks column-level indexes.
	Full
)

func (l Level) String() string {
	switch l {
	case Basic:
		return "basic"
	case Full:
		return "full"
	default:
		return fmt.Sprintf("level(%d)", uint8(l))
	}
}

// Details accumulates diagnostics. The zero value is not ready for use;
// call New.
type Details struct {
	Succeeded           bool     `json:"succeeded"`
	Errors              []string `json:"errors,omitempty"`
	Warnings            []string `json:"warnings,omitempty"`
	AccessDeniedColumns []string `json:"accessDeniedColumns,omitempty"`
}

// New returns a successful, empty Details.
func New() *Details {
	return &Details{Succeeded: true}
}

// AddError records an error and marks the execution as failed.
func (d *Details) AddError(format string, args ...any) {
	d.Succeeded = false
	d.Errors = appendUnique(d.Errors, fmt.Sprintf(format, args...))
}

// AddWarning records a warning. Warnings do not affect Succeeded.
func (d *Details) AddWarning(format string, args ...any) {
	d.Warnings = appendUnique(d.Warnings, fmt.Sprintf(format, args...))
}

// AddDeniedColumn records a column the caller was not allowed to read.
func (d *Details) AddDeniedColumn(column string) {
	d.AccessDeniedColumns = appendUnique(d.AccessDeniedColumns, column)
}

// Merge folds other into d. Succeeded becomes the AND of both; message
// lists become their ordered union.
func (d *Details) Merge(other *Details) {
	if other == nil {
		return
	}
	d.Succeeded = d.Succeeded && other.Succeeded
	for _, e := range other.Errors {
		d.Errors = appendUnique(d.Errors, e)
	}
	for _, w := range other.Warnings {
		d.Warnings = appendUnique(d.Warnings, w)
	}
	for _, c := range other.AccessDeniedColumns {
		d.AccessDeniedColumns = appendUnique(d.AccessDeniedColumns, c)
	}
}

func appendUnique(list []string, s string) []string {
	if slices.Contains(list, s) {
		return list
	}
	return append(list, s)
}

// DeleteResult reports the outcome of a delete.
type DeleteResult struct {
	Count   int
	Details *Details
}

// NewDeleteResult returns an empty, successful DeleteResult.
func NewDeleteResult() DeleteResult {
	return DeleteResult{Details: New()}
}

// Merge adds other's count and merges its details.
func (r *DeleteResult) Merge(other DeleteResult) {
	r.Count += other.Count
	if r.Details == nil {
		r.Details = New()
	}
	r.Details.Merge(other.Details)
}
