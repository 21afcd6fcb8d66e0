package presentation

import (
	"time"

	"github.com/scholarly-tools/doideposit/internal/deposit/domain"
	"github.com/scholarly-tools/doideposit/internal/deposit/orchestrator"
	"github.com/scholarly-tools/doideposit/internal/notify"
)

// ObjectDTO represents a depositable object for presentation
type ObjectDTO struct {
	ID            string     `json:"id"`
	ContextID     string     `json:"context_id"`
	Kind          string     `json:"kind"`
	Title         string     `json:"title"`
	Status        string     `json:"status"`
	StatusLabel   string     `json:"status_label"`
	BatchID       string     `json:"batch_id,omitempty"`
	FailedMessage string     `json:"failed_message,omitempty"`
	DOI           string     `json:"doi,omitempty"`
	RegisteredDOI string     `json:"registered_doi,omitempty"`
	UpdatedAt     time.Time  `json:"updated_at"`
	Batches       []BatchDTO `json:"batches,omitempty"`
}

// BatchDTO represents one deposit attempt
type BatchDTO struct {
	BatchID      string    `json:"batch_id"`
	SubmittedAt  time.Time `json:"submitted_at"`
	Outcome      string    `json:"outcome"`
	FailureCount int       `json:"failure_count"`
	WarningCount int       `json:"warning_count"`
	HTTPStatus   int       `json:"http_status,omitempty"`
}

// ResultDTO represents the outcome of one object in a run
type ResultDTO struct {
	ObjectID string `json:"object_id"`
	Outcome  string `json:"outcome,omitempty"`
	Status   string `json:"status"`
	BatchID  string `json:"batch_id,omitempty"`
	Error    string `json:"error,omitempty"`
}

// ReportDTO represents a finished run together with the notifications it produced
type ReportDTO struct {
	Results       []ResultDTO           `json:"results"`
	Notifications []notify.Notification `json:"notifications"`
	Messages      []string              `json:"messages"`
}

// StatusLabel returns the human readable label of a status.
func StatusLabel(catalog *notify.Catalog, s domain.Status) string {
	return catalog.Text("crossref.status."+s.String(), "")
}

// FromDomainObject converts a domain object to a DTO. Batches are optional.
func FromDomainObject(obj *domain.Object, catalog *notify.Catalog, batches []domain.Batch) ObjectDTO {
	dto := ObjectDTO{
		ID:            obj.ID(),
		ContextID:     obj.ContextID(),
		Kind:          string(obj.Kind()),
		Title:         obj.Metadata().Title,
		Status:        obj.Status().String(),
		StatusLabel:   StatusLabel(catalog, obj.Status()),
		BatchID:       obj.BatchID(),
		FailedMessage: obj.FailedMessage(),
		DOI:           obj.DOI(),
		UpdatedAt:     obj.UpdatedAt().UTC(),
	}
	for _, b := range batches {
		dto.Batches = append(dto.Batches, BatchDTO{
			BatchID:      b.BatchID,
			SubmittedAt:  b.SubmittedAt.UTC(),
			Outcome:      b.Outcome.String(),
			FailureCount: b.FailureCount,
			WarningCount: b.WarningCount,
			HTTPStatus:   b.HTTPStatus,
		})
	}
	return dto
}

// FromDomainObjects converts a list of objects without their history.
func FromDomainObjects(objects []*domain.Object, catalog *notify.Catalog) []ObjectDTO {
	out := make([]ObjectDTO, 0, len(objects))
	for _, obj := range objects {
		out = append(out, FromDomainObject(obj, catalog, nil))
	}
	return out
}

// FromReport converts a run report, rendering its notifications through catalog.
func FromReport(report *orchestrator.Report, catalog *notify.Catalog) ReportDTO {
	dto := ReportDTO{
		Results:       make([]ResultDTO, 0, len(report.Results)),
		Notifications: report.Notifications(),
	}
	for _, r := range report.Results {
		res := ResultDTO{
			ObjectID: r.ObjectID,
			Outcome:  r.Outcome.String(),
			Status:   r.Status.String(),
			BatchID:  r.BatchID,
		}
		if r.Err != nil {
			res.Error = r.Err.Error()
		}
		dto.Results = append(dto.Results, res)
	}
	for _, n := range dto.Notifications {
		dto.Messages = append(dto.Messages, catalog.Render(n))
	}
	return dto
}
