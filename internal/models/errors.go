package models

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies ingestion failures
type ErrorKind string

const (
	ErrorKindConfiguration       ErrorKind = "configuration"
	ErrorKindSourceFetch         ErrorKind = "source_fetch"
	ErrorKindValidation          ErrorKind = "validation"
	ErrorKindPersistenceConflict ErrorKind = "persistence_conflict"
	ErrorKindTransport           ErrorKind = "transport"
)

// IngestionError carries the classification and context of an ingestion failure.
// Messages never include source credentials.
type IngestionError struct {
	Kind      ErrorKind
	TenantID  string
	RunID     string
	RowNumber int
	Message   string
	Err       error
}

func (e *IngestionError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *IngestionError) Unwrap() error {
	return e.Err
}

// WithRun returns a copy of the error annotated with tenant and run ids.
func (e *IngestionError) WithRun(tenantID, runID string) *IngestionError {
	out := *e
	out.TenantID = tenantID
	out.RunID = runID
	return &out
}

// NewConfigurationError reports an invalid source or mapping configuration.
func NewConfigurationError(format string, args ...interface{}) *IngestionError {
	return &IngestionError{Kind: ErrorKindConfiguration, Message: fmt.Sprintf(format, args...)}
}

// NewSourceFetchError reports a failure reading from a source.
func NewSourceFetchError(err error, format string, args ...interface{}) *IngestionError {
	return &IngestionError{Kind: ErrorKindSourceFetch, Message: fmt.Sprintf(format, args...), Err: err}
}

// NewTransportError reports an outbox delivery failure.
func NewTransportError(err error, format string, args ...interface{}) *IngestionError {
	return &IngestionError{Kind: ErrorKindTransport, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the classification of err, or "" when err is not an IngestionError.
func KindOf(err error) ErrorKind {
	var ie *IngestionError
	if errors.As(err, &ie) {
		return ie.Kind
	}
	return ""
}

// IsConfigurationError reports whether err is classified as a configuration error
func IsConfigurationError(err error) bool {
	return KindOf(err) == ErrorKindConfiguration
}

// IsSourceFetchError reports whether err is classified as a source fetch error
func IsSourceFetchError(err error) bool {
	return KindOf(err) == ErrorKindSourceFetch
}

// NewValidationError reports a record rejected by the validation rules.
func NewValidationError(rowNumber int, format string, args ...interface{}) *IngestionError {
	return &IngestionError{Kind: ErrorKindValidation, RowNumber: rowNumber, Message: fmt.Sprintf(format, args...)}
}

// NewPersistenceConflictError reports a natural-key write that could not be reconciled.
func NewPersistenceConflictError(rowNumber int, err error) *IngestionError {
	return &IngestionError{Kind: ErrorKindPersistenceConflict, RowNumber: rowNumber, Message: "concurrent write conflict", Err: err}
}

// IsValidationError reports whether err is classified as a validation error
func IsValidationError(err error) bool {
	return KindOf(err) == ErrorKindValidation
}

// IsTransportError reports whether err is classified as a transport error
func IsTransportError(err error) bool {
	return KindOf(err) == ErrorKindTransport
}
