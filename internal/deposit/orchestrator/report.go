package orchestrator

import (
	"context"

	"github.com/scholarly-tools/doideposit/internal/deposit/domain"
	"github.com/scholarly-tools/doideposit/internal/notify"
)

// Result is what happened to one object during a run.
type Result struct {
	ObjectID string
	Outcome  domain.OutcomeKind
	Status   domain.Status
	BatchID  string
	Err      error

	// Warning is the raw response of a deposit accepted with warnings.
	Warning string
}

// Entry is a structured message that is reported individually.
type Entry struct {
	ObjectID string
	Key      string
	Param    string
	Severity notify.Severity
}

// Report aggregates the results of one run.
//
// Failures without structured detail only set GenericError, so a run over many failing
// objects produces a single error notification. Entries are reported one by one.
type Report struct {
	Results      []Result
	Entries      []Entry
	GenericError bool

	successKey string
	errorKey   string
}

func newReport(successKey, errorKey string) *Report {
	return &Report{successKey: successKey, errorKey: errorKey}
}

func (r *Report) addResult(res Result) {
	r.Results = append(r.Results, res)
}

func (r *Report) addEntry(e Entry) {
	r.Entries = append(r.Entries, e)
}

// HasEntries reports whether structured messages were produced.
func (r *Report) HasEntries() bool {
	return len(r.Entries) > 0
}

// Notifications applies the notification policy: one notification per entry if there
// are any; otherwise one generic error if any object failed; otherwise one success.
func (r *Report) Notifications() []notify.Notification {
	if len(r.Entries) > 0 {
		out := make([]notify.Notification, 0, len(r.Entries))
		for _, e := range r.Entries {
			out = append(out, notify.Notification{Key: e.Key, Param: e.Param, Severity: e.Severity, Entry: true})
		}
		return out
	}
	if r.GenericError {
		return []notify.Notification{{Key: r.errorKey, Severity: notify.SeverityError}}
	}
	return []notify.Notification{{Key: r.successKey, Severity: notify.SeveritySuccess}}
}

// Deliver sends the report's notifications for user to sink.
func (r *Report) Deliver(ctx context.Context, user string, sink notify.Sink) error {
	for _, n := range r.Notifications() {
		if err := sink.Notify(ctx, user, n); err != nil {
			return err
		}
	}
	return nil
}
