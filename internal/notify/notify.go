// Package notify delivers user-facing messages produced by deposit runs.
// Messages are identified by catalog keys; sinks decide how they reach the user.
package notify

import "context"

// Severity of a notification.
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Message keys used by the deposit pipeline.
const (
	KeyRegisterSuccess       = "common.register.success"
	KeyExportSuccess         = "common.export.success"
	KeyMarkRegisteredSuccess = "common.markRegistered.success"
	KeyCLIError              = "common.cliError"
	KeyObjectNotFound        = "common.error.objectNotFound"
	KeyGenericError          = "common.error.generic"
	KeyNoObjectsSelected     = "common.error.noObjectsSelected"
	KeyDepositError          = "crossref.register.error.mdsError"
	KeyDepositWarning        = "crossref.register.success.warning"
	KeyMarkedRegistered      = "crossref.register.error.markedRegistered"

	// NoResponseParam is the parameter of KeyDepositError when CrossRef could not be reached.
	NoResponseParam = "No response from server."
)

// Notification is one message for a user.
type Notification struct {
	Key      string   `json:"key"`
	Param    string   `json:"param,omitempty"`
	Severity Severity `json:"severity"`

	// Entry marks a structured per-object message as opposed to a run summary.
	Entry bool `json:"entry,omitempty"`
}

// Sink accepts notifications for a user.
type Sink interface {
	Notify(ctx context.Context, user string, n Notification) error
}
