package testutil

import (
	"time"

	"github.com/scholarly-tools/doideposit/internal/deposit/domain"
)

// WithStandardObjects adds one object per status in two contexts.
//
//	journal:  a-1 notDeposited, a-2 failed (rejected), a-3 failed, a-4 registered,
//	          i-1 issue markedRegistered
//	other:    b-1 notDeposited
func (b *Builder) WithStandardObjects() *Builder {
	lastWeek := time.Now().UTC().Truncate(time.Second).Add(-7 * 24 * time.Hour)

	return b.
		WithObject("a-1", Title("Pending article")).
		WithObject("a-2", Title("Rejected article"), UpdatedAt(lastWeek),
			Failed("batch-a2", "<html>Service Unavailable</html>")).
		WithObject("a-3", Title("Failed article"), UpdatedAt(lastWeek),
			Failed("batch-a3", "")).
		WithObject("a-4", Title("Registered article"), Issue("4", "2"),
			Published(lastWeek), DOI("10.1234/journal.a4"), Registered("batch-a4")).
		WithObject("i-1", Kind(domain.KindIssue), Title("Spring issue"), Issue("4", "2"),
			DOI("10.1234/journal.i1"), MarkedRegistered()).
		WithObject("b-1", Context("other"), Title("Other journal article"))
}

// WithRetriedObject adds an object that failed once and was registered on retry.
func (b *Builder) WithRetriedObject(id string) *Builder {
	earlier := time.Now().UTC().Truncate(time.Second).Add(-time.Hour)
	return b.WithObject(id,
		UpdatedAt(earlier), Failed("batch-"+id+"-1", ""),
		UpdatedAt(earlier.Add(30*time.Minute)), Registered("batch-"+id+"-2"),
	)
}
