package sqlite

import (
	"fmt"
	"time"

	"github.com/scholarly-tools/doideposit/internal/deposit/domain"
)

// ObjectModel represents the database row for the objects table.
// Fields map directly to SQL columns with Unix timestamps for time values.
type ObjectModel struct {
	ID          string
	ContextID   string
	Kind        string
	Title       string
	URL         string
	Volume      *string // nullable
	Number      *string // nullable
	PublishedAt *int64  // nullable

	Status    string
	BatchID   *string // nullable
	FailedMsg *string // nullable, only set while status is failed
	DOI       *string // nullable

	CreatedAt int64
	UpdatedAt int64
}

// BatchModel represents the database row for the deposit_batches table.
type BatchModel struct {
	ObjectID     string
	BatchID      string
	SubmittedAt  int64
	Outcome      string
	FailureCount int
	WarningCount int
	HTTPStatus   int
	Response     *string // nullable
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// toObjectModel converts a domain.Object to an ObjectModel for persistence.
func toObjectModel(o *domain.Object) *ObjectModel {
	md := o.Metadata()
	m := &ObjectModel{
		ID:        o.ID(),
		ContextID: o.ContextID(),
		Kind:      string(o.Kind()),
		Title:     md.Title,
		URL:       md.URL,
		Volume:    optionalString(md.Volume),
		Number:    optionalString(md.Number),
		Status:    o.Status().String(),
		BatchID:   optionalString(o.BatchID()),
		FailedMsg: optionalString(o.FailedMessage()),
		DOI:       optionalString(o.DOI()),
		CreatedAt: o.CreatedAt().Unix(),
		UpdatedAt: o.UpdatedAt().Unix(),
	}
	if md.PublishedAt != nil {
		publishedAt := md.PublishedAt.Unix()
		m.PublishedAt = &publishedAt
	}
	return m
}

// toDomain converts an ObjectModel back to a domain.Object.
func (m *ObjectModel) toDomain() (*domain.Object, error) {
	kind, err := domain.ParseObjectKind(m.Kind)
	if err != nil {
		return nil, fmt.Errorf("object %s: %w", m.ID, err)
	}
	status, err := domain.ParseStatus(m.Status)
	if err != nil {
		return nil, fmt.Errorf("object %s: %w", m.ID, err)
	}

	md := domain.Metadata{
		Title:  m.Title,
		URL:    m.URL,
		Volume: derefString(m.Volume),
		Number: derefString(m.Number),
	}
	if m.PublishedAt != nil {
		t := time.Unix(*m.PublishedAt, 0).UTC()
		md.PublishedAt = &t
	}

	return domain.ReconstituteObject(
		m.ID, m.ContextID, kind, md, status,
		derefString(m.BatchID), derefString(m.FailedMsg), derefString(m.DOI),
		time.Unix(m.CreatedAt, 0), time.Unix(m.UpdatedAt, 0),
	), nil
}

// toBatchModel converts a domain.Batch to a BatchModel for persistence.
func toBatchModel(b domain.Batch) *BatchModel {
	return &BatchModel{
		ObjectID:     b.ObjectID,
		BatchID:      b.BatchID,
		SubmittedAt:  b.SubmittedAt.Unix(),
		Outcome:      b.Outcome.String(),
		FailureCount: b.FailureCount,
		WarningCount: b.WarningCount,
		HTTPStatus:   b.HTTPStatus,
		Response:     optionalString(b.Response),
	}
}

// toDomain converts a BatchModel back to a domain.Batch.
func (m *BatchModel) toDomain() domain.Batch {
	return domain.Batch{
		ObjectID:     m.ObjectID,
		BatchID:      m.BatchID,
		SubmittedAt:  time.Unix(m.SubmittedAt, 0),
		Outcome:      domain.OutcomeKind(m.Outcome),
		FailureCount: m.FailureCount,
		WarningCount: m.WarningCount,
		HTTPStatus:   m.HTTPStatus,
		Response:     derefString(m.Response),
	}
}
