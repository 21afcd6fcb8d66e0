// Package interpret classifies CrossRef deposit responses into outcomes.
package interpret

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/scholarly-tools/doideposit/internal/deposit/domain"
	"github.com/scholarly-tools/doideposit/internal/log"
	"github.com/scholarly-tools/doideposit/internal/pubsub"
)

// Element names read from the deposit response.
const (
	elemBatchID      = "batch_id"
	elemFailureCount = "failure_count"
	elemWarningCount = "warning_count"
)

// fields holds the first value seen for each element of interest.
type fields struct {
	batchID      string
	failureCount string
	warningCount string
	hasBatchID   bool
}

// scan walks the whole document and records the text of the first element named
// batch_id, failure_count and warning_count, wherever they appear.
// It returns an error if the document is not well-formed XML.
func scan(body []byte) (fields, error) {
	var f fields
	dec := xml.NewDecoder(bytes.NewReader(body))
	dec.Strict = true

	var current string
	var text strings.Builder
	sawRoot := false

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return f, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			sawRoot = true
			current = t.Name.Local
			text.Reset()
		case xml.CharData:
			if current != "" {
				text.Write(t)
			}
		case xml.EndElement:
			if t.Name.Local == current {
				value := strings.TrimSpace(text.String())
				switch current {
				case elemBatchID:
					if !f.hasBatchID {
						f.batchID = value
						f.hasBatchID = true
					}
				case elemFailureCount:
					if f.failureCount == "" {
						f.failureCount = value
					}
				case elemWarningCount:
					if f.warningCount == "" {
						f.warningCount = value
					}
				}
			}
			current = ""
		}
	}

	if !sawRoot {
		return f, errors.New("no root element")
	}
	return f, nil
}

// count parses a counter element. Missing or non-numeric values count as zero.
func count(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// Parse classifies one deposit response.
//
// A nil body means the request never got a response. Any status other than 200 is an
// immediate rejection whose raw body becomes the failure message; the body does not have
// to be XML in that case. A 200 response must be well-formed XML carrying a batch_id,
// otherwise a *domain.MalformedResponseError is returned.
func Parse(body []byte, httpStatus int) (domain.Outcome, error) {
	if body == nil {
		return domain.Outcome{Kind: domain.OutcomeNoResponse, HTTPStatus: httpStatus}, nil
	}

	f, scanErr := scan(body)

	if httpStatus != http.StatusOK {
		// Best effort: rejections often carry an HTML or plain text body.
		return domain.Outcome{
			Kind:       domain.OutcomeRejectedImmediate,
			BatchID:    f.batchID,
			HTTPStatus: httpStatus,
			Message:    string(body),
			Response:   body,
		}, nil
	}

	if scanErr != nil {
		return domain.Outcome{}, &domain.MalformedResponseError{Reason: "response is not well-formed XML: " + scanErr.Error(), Body: body}
	}
	if !f.hasBatchID || f.batchID == "" {
		return domain.Outcome{}, &domain.MalformedResponseError{Reason: "response has no batch_id", Body: body}
	}

	outcome := domain.Outcome{
		BatchID:      f.batchID,
		FailureCount: count(f.failureCount),
		WarningCount: count(f.warningCount),
		HTTPStatus:   httpStatus,
		Response:     body,
	}
	switch {
	case outcome.FailureCount > 0:
		outcome.Kind = domain.OutcomeFailed
	case outcome.WarningCount > 0:
		outcome.Kind = domain.OutcomeAcceptedWithWarnings
	default:
		outcome.Kind = domain.OutcomeAccepted
	}
	return outcome, nil
}

// Interpreter parses responses for objects and announces accepted deposits.
type Interpreter struct {
	events pubsub.Publisher[domain.DepositedEvent]
}

// New creates an Interpreter that publishes accepted deposits to events.
// A nil publisher disables the announcement.
func New(events pubsub.Publisher[domain.DepositedEvent]) *Interpreter {
	return &Interpreter{events: events}
}

// Interpret parses the response for obj.
func (i *Interpreter) Interpret(obj *domain.Object, body []byte, httpStatus int) (domain.Outcome, error) {
	outcome, err := Parse(body, httpStatus)
	if err != nil {
		log.Warn(log.CatDeposit, "Malformed deposit response", "object", obj.ID(), "status", httpStatus, "error", err)
		return outcome, err
	}

	log.Debug(log.CatDeposit, "Interpreted deposit response",
		"object", obj.ID(),
		"outcome", outcome.Kind,
		"batch", outcome.BatchID,
		"failures", outcome.FailureCount,
		"warnings", outcome.WarningCount)
	return outcome, nil
}

// Announce publishes an accepted deposit, with or without warnings, as a
// pubsub.DepositedEvent so that other components can use the deposited payload.
// Other outcomes are not published. Call it once the outcome has been recorded.
func (i *Interpreter) Announce(obj *domain.Object, outcome domain.Outcome) {
	if !outcome.Kind.IsAccepted() || i.events == nil {
		return
	}
	i.events.Publish(pubsub.DepositedEvent, domain.DepositedEvent{
		ObjectID:  obj.ID(),
		ContextID: obj.ContextID(),
		BatchID:   outcome.BatchID,
		Outcome:   outcome.Kind,
		Response:  outcome.Response,
	})
}
