package domain

import (
	"errors"
	"fmt"
)

// SerializationError is returned when an export cannot produce a document: no filter or
// more than one filter is registered for the key, or the filter produced nothing usable.
// It aborts the whole run.
type SerializationError struct {
	FilterKey string
	Matches   int
	Err       error
}

func (e *SerializationError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("serialization with %q failed: %v", e.FilterKey, e.Err)
	case e.Matches != 1:
		return fmt.Sprintf("expected exactly one serialization filter for %q, found %d", e.FilterKey, e.Matches)
	default:
		return fmt.Sprintf("serialization filter %q produced no document", e.FilterKey)
	}
}

func (e *SerializationError) Unwrap() error {
	return e.Err
}

// NoResponseError is returned when the registration agency could not be reached.
type NoResponseError struct {
	Endpoint string
	Err      error
}

func (e *NoResponseError) Error() string {
	msg := "no response from server"
	if e.Endpoint != "" {
		msg += " " + e.Endpoint
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *NoResponseError) Unwrap() error {
	return e.Err
}

// RejectedImmediateError describes a deposit the agency refused before processing.
type RejectedImmediateError struct {
	BatchID    string
	StatusCode int
	Body       string
}

func (e *RejectedImmediateError) Error() string {
	return fmt.Sprintf("deposit rejected with HTTP %d (batch %q)", e.StatusCode, e.BatchID)
}

// FailedDepositError describes a deposit the agency accepted but flagged with failures.
// The failure detail is only available through a status query for BatchID.
type FailedDepositError struct {
	BatchID      string
	FailureCount int
}

func (e *FailedDepositError) Error() string {
	return fmt.Sprintf("deposit batch %q reported %d failure(s)", e.BatchID, e.FailureCount)
}

// MalformedResponseError is returned when a successful agency response lacks required
// fields or is not XML.
type MalformedResponseError struct {
	Reason string
	Body   []byte
}

func (e *MalformedResponseError) Error() string {
	return "malformed deposit response: " + e.Reason
}

// InvalidTransitionError is returned when a status change is not allowed.
type InvalidTransitionError struct {
	ObjectID string
	From     Status
	To       Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("object %s: cannot move from %s to %s", e.ObjectID, e.From, e.To)
}

// ObjectNotFoundError is returned when no object exists for an id.
type ObjectNotFoundError struct {
	ID string
}

func (e *ObjectNotFoundError) Error() string {
	return fmt.Sprintf("object %q not found", e.ID)
}

// StorageError wraps an I/O failure of the export file storage. It aborts the run.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("export storage %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether err must abort a whole run instead of one object.
func IsFatal(err error) bool {
	var serr *SerializationError
	var stErr *StorageError
	return errors.As(err, &serr) || errors.As(err, &stErr)
}
