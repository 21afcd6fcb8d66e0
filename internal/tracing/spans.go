package tracing

import (
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span names.
const (
	SpanRegisterRun    = "deposit.register"
	SpanExportRun      = "deposit.export"
	SpanObject         = "deposit.object"
	SpanDepositCall    = "crossref.deposit"
	SpanStatusQuery    = "crossref.status_query"
	SpanStatusUpdate   = "deposit.status_update"
	SpanMarkRegistered = "deposit.mark_registered"
)

// Span attribute keys.
const (
	AttrObjectID     = "object.id"
	AttrObjectKind   = "object.kind"
	AttrContextID    = "context.id"
	AttrObjectCount  = "run.object_count"
	AttrFilterKey    = "export.filter_key"
	AttrEndpoint     = "http.url"
	AttrHTTPStatus   = "http.status_code"
	AttrBatchID      = "crossref.batch_id"
	AttrOutcome      = "crossref.outcome"
	AttrFailureCount = "crossref.failure_count"
	AttrWarningCount = "crossref.warning_count"
	AttrTestMode     = "crossref.test_mode"
)

// RecordError marks the span as failed with err. A nil err is ignored.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
