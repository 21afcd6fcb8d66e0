package xmlexport

import (
	"time"

	"github.com/scholarly-tools/doideposit/internal/deposit/domain"
)

// Deployment carries the per-journal settings a filter needs besides the objects.
type Deployment struct {
	JournalTitle   string
	JournalAbbrev  string
	ISSN           string
	DepositorName  string
	DepositorEmail string
	Registrant     string

	// DOI returns the DOI to deposit for an object.
	DOI func(*domain.Object) string

	// Now stamps the document head. Defaults to time.Now.
	Now func() time.Time

	// BatchID generates the doi_batch_id. Defaults to a random UUID.
	BatchID func() string
}

func (d Deployment) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func (d Deployment) doi(obj *domain.Object) string {
	if d.DOI != nil {
		return d.DOI(obj)
	}
	return obj.DOI()
}
