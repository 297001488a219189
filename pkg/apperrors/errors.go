// Package apperrors defines the closed set of error kinds the build
// pipeline can fail with, and the BuildError type that carries one of them
// across component boundaries. This replaces the source system's
// throw-and-classify exception style with an explicit Result-style value:
// every stage returns (result, error) and the revision controller matches
// on Kind to decide whether a failure is fatal.
package apperrors

import (
	"errors"
	"fmt"
)

// Kind is the closed set of build-pipeline error kinds from the spec.
type Kind string

const (
	NoFirstRevision       Kind = "NoFirstRevision"
	NoDataTable           Kind = "NoDataTable"
	UnknownFileType       Kind = "UnknownFileType"
	FactTableCreateFailed Kind = "FactTableCreationFailed"
	FailedToLoadData      Kind = "FailedToLoadData"
	DuplicateFact         Kind = "DuplicateFact"
	IncompleteFact        Kind = "IncompleteFact"
	UnknownDuplicateFact  Kind = "UnknownDuplicateFact"
	UnknownIncompleteFact Kind = "UnknownIncompleteFact"
	FactColumnMissing     Kind = "FactTableColumnMissing"
	UnmatchedColumns      Kind = "UnmatchedColumns"
	DimensionNonMatched   Kind = "DimensionNonMatchedRows"
	MeasureNonMatched     Kind = "MeasureNonMatchedRows"
	NoNoteCodes           Kind = "NoNoteCodes"
	BadNoteCodes          Kind = "BadNoteCodes"
	NoDataValueColumn     Kind = "NoDataValueColumn"
	NonNumericDataValue   Kind = "NonNumericDataValue"
	NoJoinColumn          Kind = "NoJoinColumn"
	InvalidCSV            Kind = "InvalidCsv"
	CubeCreationFailed    Kind = "CubeCreationFailed"
	UnknownErrorKind      Kind = "UnknownError"
)

// nonFatal is the set of kinds that do not abort a build; the revision
// controller degrades the affected dimension to Raw and records a
// DimensionUpdateTask instead of failing.
var nonFatal = map[Kind]bool{
	DimensionNonMatched: true,
}

// BuildError carries a classified failure through the pipeline.
type BuildError struct {
	Kind       Kind
	DatasetID  string
	RevisionID string
	Stage      string
	Field      string
	Cause      error
}

func (e *BuildError) Error() string {
	msg := fmt.Sprintf("%s: stage=%s", e.Kind, e.Stage)
	if e.Field != "" {
		msg += fmt.Sprintf(" field=%s", e.Field)
	}
	if e.Cause != nil {
		msg += fmt.Sprintf(": %v", e.Cause)
	}
	return msg
}

func (e *BuildError) Unwrap() error { return e.Cause }

// Fatal reports whether this error must abort the current build.
func (e *BuildError) Fatal() bool {
	return !nonFatal[e.Kind]
}

// New constructs a BuildError for the given kind and stage.
func New(kind Kind, stage string, cause error) *BuildError {
	return &BuildError{Kind: kind, Stage: stage, Cause: cause}
}

// Newf constructs a BuildError with a formatted cause.
func Newf(kind Kind, stage, format string, args ...any) *BuildError {
	return &BuildError{Kind: kind, Stage: stage, Cause: fmt.Errorf(format, args...)}
}

// WithField returns a copy of the error annotated with the offending field.
func (e *BuildError) WithField(field string) *BuildError {
	c := *e
	c.Field = field
	return &c
}

// WithContext returns a copy of the error annotated with dataset/revision ids.
func (e *BuildError) WithContext(datasetID, revisionID string) *BuildError {
	c := *e
	c.DatasetID = datasetID
	c.RevisionID = revisionID
	return &c
}

// As attempts to unwrap err into a *BuildError.
func As(err error) (*BuildError, bool) {
	var be *BuildError
	if errors.As(err, &be) {
		return be, true
	}
	return nil, false
}

// KindOf returns the Kind carried by err, or UnknownErrorKind if err is not
// a *BuildError.
func KindOf(err error) Kind {
	if be, ok := As(err); ok {
		return be.Kind
	}
	return UnknownErrorKind
}

// IsFatal reports whether err (if a *BuildError) is fatal. Non-BuildError
// errors are always treated as fatal.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if be, ok := As(err); ok {
		return be.Fatal()
	}
	return true
}
