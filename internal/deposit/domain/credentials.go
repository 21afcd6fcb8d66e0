package domain

// Credentials are a tenant's CrossRef account settings.
// TestMode selects the sandbox endpoints instead of production.
type Credentials struct {
	Username string
	Password string
	TestMode bool
}

// DepositedEvent is published after CrossRef accepts a deposit so that collaborating
// components (reference linking, for example) can work with the response.
type DepositedEvent struct {
	ObjectID  string
	ContextID string
	BatchID   string
	Outcome   OutcomeKind
	Response  []byte
}
