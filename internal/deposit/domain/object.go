package domain

import (
	"fmt"
	"time"
)

// ObjectKind is the type of a depositable object.
type ObjectKind string

const (
	KindArticle ObjectKind = "article"
	KindIssue   ObjectKind = "issue"
)

// IsValid returns true if the kind is a recognized object kind.
func (k ObjectKind) IsValid() bool {
	return k == KindArticle || k == KindIssue
}

// FilterKey returns the serialization filter key for exporting objects of this kind.
func (k ObjectKind) FilterKey() string {
	return string(k) + "=>crossref-xml"
}

// ParseObjectKind converts a name into an ObjectKind.
func ParseObjectKind(name string) (ObjectKind, error) {
	k := ObjectKind(name)
	if !k.IsValid() {
		return "", fmt.Errorf("unknown object kind %q (expected article or issue)", name)
	}
	return k, nil
}

// Metadata is the bibliographic data exported for an object.
type Metadata struct {
	Title       string
	URL         string
	Volume      string
	Number      string
	PublishedAt *time.Time
}

// Object is an article or issue eligible for DOI registration.
// All fields are unexported; deposit state only changes through ApplyOutcome and MarkRegistered.
type Object struct {
	id        string
	contextID string
	kind      ObjectKind
	metadata  Metadata

	status    Status
	batchID   string
	failedMsg string
	doi       string

	createdAt time.Time
	updatedAt time.Time
}

// NewObject creates a not-yet-deposited object.
func NewObject(id, contextID string, kind ObjectKind, metadata Metadata) *Object {
	now := time.Now()
	return &Object{
		id:        id,
		contextID: contextID,
		kind:      kind,
		metadata:  metadata,
		status:    StatusNotDeposited,
		createdAt: now,
		updatedAt: now,
	}
}

// ReconstituteObject rebuilds an Object from persisted state.
// It is intended for repositories and performs no transition checks.
func ReconstituteObject(
	id, contextID string,
	kind ObjectKind,
	metadata Metadata,
	status Status,
	batchID, failedMsg, doi string,
	createdAt, updatedAt time.Time,
) *Object {
	return &Object{
		id:        id,
		contextID: contextID,
		kind:      kind,
		metadata:  metadata,
		status:    status,
		batchID:   batchID,
		failedMsg: failedMsg,
		doi:       doi,
		createdAt: createdAt,
		updatedAt: updatedAt,
	}
}

// ID returns the unique object identifier.
func (o *Object) ID() string { return o.id }

// ContextID returns the tenant (journal) the object belongs to.
func (o *Object) ContextID() string { return o.contextID }

// Kind returns the object kind.
func (o *Object) Kind() ObjectKind { return o.kind }

// Metadata returns the bibliographic metadata.
func (o *Object) Metadata() Metadata { return o.metadata }

// Status returns the current deposit status.
func (o *Object) Status() Status { return o.status }

// BatchID returns the batch id of the last deposit attempt, if any.
func (o *Object) BatchID() string { return o.batchID }

// FailedMessage returns the stored failure message. Empty unless the status is failed.
func (o *Object) FailedMessage() string { return o.failedMsg }

// DOI returns the assigned DOI, or "" if none has been saved yet.
func (o *Object) DOI() string { return o.doi }

// CreatedAt returns when the object was first stored.
func (o *Object) CreatedAt() time.Time { return o.createdAt }

// UpdatedAt returns when the object was last changed.
func (o *Object) UpdatedAt() time.Time { return o.updatedAt }

// SetMetadata replaces the bibliographic metadata.
func (o *Object) SetMetadata(m Metadata) {
	o.metadata = m
	o.updatedAt = time.Now()
}

// AssignDOI records the DOI for the object. An already assigned DOI is kept.
func (o *Object) AssignDOI(doi string) {
	if o.doi != "" {
		return
	}
	o.doi = doi
	o.updatedAt = time.Now()
}

// ApplyOutcome records the result of a deposit attempt.
// The failure message is always cleared first and only set again for immediate rejections.
// OutcomeNoResponse leaves the object unchanged and returns false.
func (o *Object) ApplyOutcome(outcome Outcome) (bool, error) {
	next, ok := outcome.Status()
	if !ok {
		return false, nil
	}
	if !o.status.CanTransitionTo(next) {
		return false, &InvalidTransitionError{ObjectID: o.id, From: o.status, To: next}
	}

	o.failedMsg = ""
	o.status = next
	o.batchID = outcome.BatchID
	if outcome.Kind == OutcomeRejectedImmediate {
		o.failedMsg = outcome.Message
	}
	o.updatedAt = time.Now()
	return true, nil
}

// MarkRegistered is the operator override: clears the failure message and sets
// StatusMarkedRegistered regardless of the previous status.
func (o *Object) MarkRegistered() {
	o.failedMsg = ""
	o.status = StatusMarkedRegistered
	o.updatedAt = time.Now()
}

// Clone returns an independent copy of the object.
func (o *Object) Clone() *Object {
	c := *o
	if o.metadata.PublishedAt != nil {
		t := *o.metadata.PublishedAt
		c.metadata.PublishedAt = &t
	}
	return &c
}
