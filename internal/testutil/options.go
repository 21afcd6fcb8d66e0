package testutil

import (
	"time"

	"github.com/scholarly-tools/doideposit/internal/deposit/domain"
)

// objectData holds everything needed to build one object.
type objectData struct {
	id        string
	contextID string
	kind      domain.ObjectKind
	metadata  domain.Metadata
	status    domain.Status
	batchID   string
	failedMsg string
	doi       string
	createdAt time.Time
	updatedAt time.Time
	batches   []domain.Batch
}

// defaultObject returns a not yet deposited article in the "journal" context.
func defaultObject(id string) objectData {
	now := time.Now().UTC().Truncate(time.Second)
	return objectData{
		id:        id,
		contextID: "journal",
		kind:      domain.KindArticle,
		metadata: domain.Metadata{
			Title: "Article " + id,
			URL:   "https://journal.example.org/article/view/" + id,
		},
		status:    domain.StatusNotDeposited,
		createdAt: now,
		updatedAt: now,
	}
}

// ObjectOption configures an object during builder setup.
type ObjectOption func(*objectData)

// Context sets the tenant context.
func Context(id string) ObjectOption {
	return func(d *objectData) { d.contextID = id }
}

// Kind sets the object kind.
func Kind(k domain.ObjectKind) ObjectOption {
	return func(d *objectData) { d.kind = k }
}

// Title sets the title.
func Title(title string) ObjectOption {
	return func(d *objectData) { d.metadata.Title = title }
}

// Issue sets volume and number.
func Issue(volume, number string) ObjectOption {
	return func(d *objectData) {
		d.metadata.Volume = volume
		d.metadata.Number = number
	}
}

// Published sets the publication date.
func Published(at time.Time) ObjectOption {
	return func(d *objectData) {
		at = at.UTC()
		d.metadata.PublishedAt = &at
	}
}

// DOI sets the assigned DOI.
func DOI(doi string) ObjectOption {
	return func(d *objectData) { d.doi = doi }
}

// UpdatedAt sets the last modification time.
func UpdatedAt(at time.Time) ObjectOption {
	return func(d *objectData) { d.updatedAt = at }
}

// Failed puts the object in the failed state after batchID. A non-empty message marks
// an immediate rejection whose response body was kept.
func Failed(batchID, message string) ObjectOption {
	return func(d *objectData) {
		d.status = domain.StatusFailed
		d.batchID = batchID
		d.failedMsg = message
		kind := domain.OutcomeFailed
		if message != "" {
			kind = domain.OutcomeRejectedImmediate
		}
		d.addBatch(domain.Outcome{Kind: kind, BatchID: batchID, FailureCount: 1, Message: message}, d.updatedAt)
	}
}

// Registered puts the object in the registered state after batchID.
func Registered(batchID string) ObjectOption {
	return func(d *objectData) {
		d.status = domain.StatusRegistered
		d.batchID = batchID
		d.failedMsg = ""
		d.addBatch(domain.Outcome{Kind: domain.OutcomeAccepted, BatchID: batchID}, d.updatedAt)
	}
}

// MarkedRegistered puts the object in the marked registered state.
func MarkedRegistered() ObjectOption {
	return func(d *objectData) {
		d.status = domain.StatusMarkedRegistered
		d.failedMsg = ""
	}
}
