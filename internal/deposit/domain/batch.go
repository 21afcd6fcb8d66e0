package domain

import "time"

// Batch is the history record of one submission that produced a batch id.
type Batch struct {
	ObjectID     string
	BatchID      string
	SubmittedAt  time.Time
	Outcome      OutcomeKind
	FailureCount int
	WarningCount int
	HTTPStatus   int

	// Response is retained only for OutcomeRejectedImmediate.
	Response string
}

// NewBatch builds the history record for an outcome.
func NewBatch(objectID string, outcome Outcome, submittedAt time.Time) Batch {
	b := Batch{
		ObjectID:     objectID,
		BatchID:      outcome.BatchID,
		SubmittedAt:  submittedAt,
		Outcome:      outcome.Kind,
		FailureCount: outcome.FailureCount,
		WarningCount: outcome.WarningCount,
		HTTPStatus:   outcome.HTTPStatus,
	}
	if outcome.Kind == OutcomeRejectedImmediate {
		b.Response = string(outcome.Response)
	}
	return b
}
