package domain

// OutcomeKind classifies the result of one deposit attempt.
type OutcomeKind string

const (
	// OutcomeNoResponse means the transport failed and no response body exists.
	OutcomeNoResponse OutcomeKind = "no-response"

	// OutcomeRejectedImmediate means CrossRef answered with a non-200 status.
	// The body is the only copy of the failure detail and is kept as the failure message.
	OutcomeRejectedImmediate OutcomeKind = "rejected-immediate"

	// OutcomeFailed means CrossRef accepted the upload but reported failures.
	// The detail has to be fetched later with a status query for the batch id.
	OutcomeFailed OutcomeKind = "failed"

	// OutcomeAcceptedWithWarnings means the deposit succeeded with warnings.
	OutcomeAcceptedWithWarnings OutcomeKind = "accepted-with-warnings"

	// OutcomeAccepted means the deposit succeeded cleanly.
	OutcomeAccepted OutcomeKind = "accepted-no-warnings"
)

// String returns the string representation of the outcome kind.
func (k OutcomeKind) String() string {
	return string(k)
}

// IsAccepted returns true for both accepted kinds.
func (k OutcomeKind) IsAccepted() bool {
	return k == OutcomeAccepted || k == OutcomeAcceptedWithWarnings
}

// Outcome is the interpreted result of one deposit request.
type Outcome struct {
	Kind         OutcomeKind
	BatchID      string
	FailureCount int
	WarningCount int
	HTTPStatus   int

	// Message is the failure message stored on the object. Only set for OutcomeRejectedImmediate.
	Message string

	// Response is the raw response body, when there was one.
	Response []byte
}

// Status returns the status this outcome moves an object to.
// The second value is false for OutcomeNoResponse, which leaves the object untouched.
func (o Outcome) Status() (Status, bool) {
	switch o.Kind {
	case OutcomeRejectedImmediate, OutcomeFailed:
		return StatusFailed, true
	case OutcomeAccepted, OutcomeAcceptedWithWarnings:
		return StatusRegistered, true
	default:
		return StatusNotDeposited, false
	}
}

// Err returns the error describing a non-successful outcome, or nil for accepted ones.
func (o Outcome) Err() error {
	switch o.Kind {
	case OutcomeNoResponse:
		return &NoResponseError{}
	case OutcomeRejectedImmediate:
		return &RejectedImmediateError{BatchID: o.BatchID, StatusCode: o.HTTPStatus, Body: o.Message}
	case OutcomeFailed:
		return &FailedDepositError{BatchID: o.BatchID, FailureCount: o.FailureCount}
	default:
		return nil
	}
}
