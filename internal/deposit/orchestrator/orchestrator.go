// Package orchestrator drives export and deposit runs over a set of objects.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/scholarly-tools/doideposit/internal/deposit/client"
	"github.com/scholarly-tools/doideposit/internal/deposit/domain"
	"github.com/scholarly-tools/doideposit/internal/deposit/xmlexport"
	"github.com/scholarly-tools/doideposit/internal/log"
	"github.com/scholarly-tools/doideposit/internal/notify"
	"github.com/scholarly-tools/doideposit/internal/tracing"
)

// Exporter serializes objects with a named filter.
type Exporter interface {
	Export(objects []*domain.Object, filterKey string, dep xmlexport.Deployment) ([]byte, error)
}

// Depositor submits one payload file.
type Depositor interface {
	Deposit(ctx context.Context, payloadPath string, creds domain.Credentials, endpoint string) (client.Response, error)
}

// Interpreter classifies a deposit response for an object and announces recorded
// deposits.
type Interpreter interface {
	Interpret(obj *domain.Object, body []byte, httpStatus int) (domain.Outcome, error)
	Announce(obj *domain.Object, outcome domain.Outcome)
}

// StatusStore reads objects and records their deposit state.
type StatusStore interface {
	Get(ctx context.Context, id string) (*domain.Object, error)
	UpdateStatus(ctx context.Context, obj *domain.Object, outcome domain.Outcome) error
	MarkRegistered(ctx context.Context, obj *domain.Object) error
}

// FileStore provides the export file a payload travels in.
type FileStore interface {
	WithFile(part, objectID string, data []byte, fn func(path string) error) error
}

// Tenant is everything a run needs to know about one journal.
type Tenant struct {
	Credentials domain.Credentials
	Endpoints   client.Endpoints
	Deployment  xmlexport.Deployment
}

// TenantFunc resolves the settings of a context.
type TenantFunc func(contextID string) (Tenant, error)

// Request selects the objects of a run.
type Request struct {
	ContextID string
	Kind      domain.ObjectKind
	ObjectIDs []string
}

// Orchestrator runs the export, deposit and mark-registered operations.
type Orchestrator struct {
	exporter    Exporter
	depositor   Depositor
	interpreter Interpreter
	status      StatusStore
	files       FileStore
	tenants     TenantFunc
	tracer      trace.Tracer
}

// Deps groups the collaborators of an Orchestrator.
type Deps struct {
	Exporter    Exporter
	Depositor   Depositor
	Interpreter Interpreter
	Status      StatusStore
	Files       FileStore
	Tenants     TenantFunc
	Tracer      trace.Tracer
}

// New creates an Orchestrator.
func New(deps Deps) *Orchestrator {
	tracer := deps.Tracer
	if tracer == nil {
		tracer = tracing.Noop()
	}
	return &Orchestrator{
		exporter:    deps.Exporter,
		depositor:   deps.Depositor,
		interpreter: deps.Interpreter,
		status:      deps.Status,
		files:       deps.Files,
		tenants:     deps.Tenants,
		tracer:      tracer,
	}
}

// fileNamePart is the object group name used in export file names.
func fileNamePart(kind domain.ObjectKind) string {
	return string(kind) + "s"
}

// resolve loads the requested objects. Unknown ids and objects of another kind or
// context are reported as entries and skipped.
func (o *Orchestrator) resolve(ctx context.Context, req Request, report *Report) ([]*domain.Object, error) {
	objects := make([]*domain.Object, 0, len(req.ObjectIDs))
	for _, id := range req.ObjectIDs {
		obj, err := o.status.Get(ctx, id)
		var notFound *domain.ObjectNotFoundError
		switch {
		case errors.As(err, &notFound):
		case err != nil:
			return nil, fmt.Errorf("load object %s: %w", id, err)
		case req.Kind != "" && obj.Kind() != req.Kind:
		case req.ContextID != "" && obj.ContextID() != req.ContextID:
		default:
			objects = append(objects, obj)
			continue
		}
		report.addEntry(Entry{ObjectID: id, Key: notify.KeyObjectNotFound, Param: id, Severity: notify.SeverityError})
	}
	return objects, nil
}

// Register deposits every requested object with CrossRef, strictly one at a time:
// export, write the export file, deposit, interpret, update the status and remove the
// file before the next object starts.
//
// Per-object failures end up in the report. Only serialization and export storage
// failures abort the run; the report then covers the objects processed so far.
// Cancelling ctx does not stop a run once it has started.
func (o *Orchestrator) Register(ctx context.Context, req Request) (*Report, error) {
	ctx = context.WithoutCancel(ctx)
	ctx, span := o.tracer.Start(ctx, tracing.SpanRegisterRun, trace.WithAttributes(
		attribute.String(tracing.AttrContextID, req.ContextID),
		attribute.Int(tracing.AttrObjectCount, len(req.ObjectIDs)),
	))
	defer span.End()

	report := newReport(notify.KeyRegisterSuccess, notify.KeyDepositError)

	tenant, err := o.tenants(req.ContextID)
	if err != nil {
		tracing.RecordError(span, err)
		return report, err
	}

	objects, err := o.resolve(ctx, req, report)
	if err != nil {
		tracing.RecordError(span, err)
		return report, err
	}

	for _, obj := range objects {
		if err := o.registerOne(ctx, tenant, obj, report); err != nil {
			log.ErrorErr(log.CatDeposit, "Register run aborted", err, "object", obj.ID())
			tracing.RecordError(span, err)
			return report, err
		}
	}

	log.Info(log.CatDeposit, "Register run finished",
		"context", req.ContextID,
		"objects", len(objects),
		"entries", len(report.Entries),
		"generic_error", report.GenericError)
	return report, nil
}

func (o *Orchestrator) registerOne(ctx context.Context, tenant Tenant, obj *domain.Object, report *Report) error {
	ctx, span := o.tracer.Start(ctx, tracing.SpanObject, trace.WithAttributes(
		attribute.String(tracing.AttrObjectID, obj.ID()),
		attribute.String(tracing.AttrObjectKind, string(obj.Kind())),
	))
	defer span.End()

	if !obj.Status().CanTransitionTo(domain.StatusRegistered) {
		log.Warn(log.CatDeposit, "Object not deposited", "object", obj.ID(), "status", obj.Status())
		report.addResult(Result{
			ObjectID: obj.ID(),
			Status:   obj.Status(),
			Err:      &domain.InvalidTransitionError{ObjectID: obj.ID(), From: obj.Status(), To: domain.StatusRegistered},
		})
		report.addEntry(Entry{ObjectID: obj.ID(), Key: notify.KeyMarkedRegistered, Param: obj.ID(), Severity: notify.SeverityError})
		return nil
	}

	doc, err := o.exporter.Export([]*domain.Object{obj}, obj.Kind().FilterKey(), tenant.Deployment)
	if err != nil {
		tracing.RecordError(span, err)
		return err
	}

	var result Result
	err = o.files.WithFile(fileNamePart(obj.Kind()), obj.ID(), doc, func(path string) error {
		var fatal error
		result, fatal = o.deposit(ctx, tenant, obj, path)
		return fatal
	})
	if err != nil {
		tracing.RecordError(span, err)
		return err
	}

	span.SetAttributes(attribute.String(tracing.AttrOutcome, result.Outcome.String()))
	report.addResult(result)
	o.classify(result, report)
	return nil
}

// deposit submits the file at path, records the outcome and announces accepted
// deposits once they are recorded. The returned error is non-nil only for failures
// that must abort the run.
func (o *Orchestrator) deposit(ctx context.Context, tenant Tenant, obj *domain.Object, path string) (Result, error) {
	result := Result{ObjectID: obj.ID(), Status: obj.Status()}

	var body []byte
	var httpStatus int
	resp, err := o.depositor.Deposit(ctx, path, tenant.Credentials, tenant.Endpoints.Deposit)
	if err != nil {
		if domain.IsFatal(err) {
			return result, err
		}
		result.Err = err
	} else {
		body, httpStatus = resp.Body, resp.StatusCode
	}

	outcome, err := o.interpreter.Interpret(obj, body, httpStatus)
	if err != nil {
		result.Err = err
		return result, nil
	}
	result.Outcome = outcome.Kind
	result.BatchID = outcome.BatchID
	if outcome.Kind == domain.OutcomeAcceptedWithWarnings {
		result.Warning = string(outcome.Response)
	}
	if result.Err == nil {
		result.Err = outcome.Err()
	}

	if err := o.status.UpdateStatus(ctx, obj, outcome); err != nil {
		log.ErrorErr(log.CatDeposit, "Status update failed", err,
			"object", obj.ID(),
			"outcome", outcome.Kind,
			"batch", outcome.BatchID)
		result.Err = err
		return result, nil
	}
	result.Status = obj.Status()
	o.interpreter.Announce(obj, outcome)
	return result, nil
}

// classify sorts a result into the generic bucket or a structured entry.
func (o *Orchestrator) classify(res Result, report *Report) {
	if res.Outcome == domain.OutcomeAcceptedWithWarnings && res.Err == nil {
		report.addEntry(Entry{
			ObjectID: res.ObjectID,
			Key:      notify.KeyDepositWarning,
			Param:    res.Warning,
			Severity: notify.SeverityWarning,
		})
		return
	}
	if res.Err != nil || !res.Outcome.IsAccepted() {
		report.GenericError = true
	}
}

// Export writes one XML document for all requested objects to w without depositing.
// Unknown objects fail the export.
func (o *Orchestrator) Export(ctx context.Context, req Request, w io.Writer) error {
	ctx, span := o.tracer.Start(ctx, tracing.SpanExportRun, trace.WithAttributes(
		attribute.String(tracing.AttrContextID, req.ContextID),
		attribute.Int(tracing.AttrObjectCount, len(req.ObjectIDs)),
		attribute.String(tracing.AttrFilterKey, req.Kind.FilterKey()),
	))
	defer span.End()

	tenant, err := o.tenants(req.ContextID)
	if err != nil {
		tracing.RecordError(span, err)
		return err
	}

	report := newReport(notify.KeyExportSuccess, notify.KeyGenericError)
	objects, err := o.resolve(ctx, req, report)
	if err != nil {
		tracing.RecordError(span, err)
		return err
	}
	if len(report.Entries) > 0 {
		err := &domain.ObjectNotFoundError{ID: report.Entries[0].ObjectID}
		tracing.RecordError(span, err)
		return err
	}

	doc, err := o.exporter.Export(objects, req.Kind.FilterKey(), tenant.Deployment)
	if err != nil {
		tracing.RecordError(span, err)
		return err
	}
	if _, err := w.Write(doc); err != nil {
		err = &domain.StorageError{Op: "write", Path: "export output", Err: err}
		tracing.RecordError(span, err)
		return err
	}

	log.Info(log.CatExport, "Exported objects", "context", req.ContextID, "kind", req.Kind, "objects", len(objects))
	return nil
}

// MarkRegistered marks the requested objects registered without contacting CrossRef.
// Cancelling ctx does not stop a run once it has started.
func (o *Orchestrator) MarkRegistered(ctx context.Context, req Request) (*Report, error) {
	ctx = context.WithoutCancel(ctx)
	report := newReport(notify.KeyMarkRegisteredSuccess, notify.KeyGenericError)

	objects, err := o.resolve(ctx, req, report)
	if err != nil {
		return report, err
	}
	for _, obj := range objects {
		res := Result{ObjectID: obj.ID()}
		if err := o.status.MarkRegistered(ctx, obj); err != nil {
			log.ErrorErr(log.CatDeposit, "Mark registered failed", err, "object", obj.ID())
			res.Err = err
			report.GenericError = true
		}
		res.Status = obj.Status()
		report.addResult(res)
	}
	return report, nil
}
