// Package status persists the deposit state of objects.
package status

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/scholarly-tools/doideposit/internal/deposit/domain"
	"github.com/scholarly-tools/doideposit/internal/log"
	"github.com/scholarly-tools/doideposit/internal/tracing"
)

// IdentifierRegistrar assigns the DOI recorded when an object becomes registered.
type IdentifierRegistrar interface {
	Register(obj *domain.Object) (domain.Registration, error)
}

// Store applies deposit outcomes and operator overrides to objects.
// Writes are last-write-wins.
type Store struct {
	objects domain.ObjectRepository
	ids     IdentifierRegistrar
	tracer  trace.Tracer
	now     func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithTracer sets the tracer used for status update spans.
func WithTracer(t trace.Tracer) Option {
	return func(s *Store) { s.tracer = t }
}

// WithClock overrides the time source for batch timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates a Store.
func NewStore(objects domain.ObjectRepository, ids IdentifierRegistrar, opts ...Option) *Store {
	s := &Store{
		objects: objects,
		ids:     ids,
		tracer:  tracing.Noop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// UpdateStatus records the outcome of a deposit attempt for obj.
//
// OutcomeNoResponse leaves the record untouched. Accepted outcomes also register the
// object's identifier. The object row, its batch record and the identifier are written
// together.
func (s *Store) UpdateStatus(ctx context.Context, obj *domain.Object, outcome domain.Outcome) error {
	ctx, span := s.tracer.Start(ctx, tracing.SpanStatusUpdate, trace.WithAttributes(
		attribute.String(tracing.AttrObjectID, obj.ID()),
		attribute.String(tracing.AttrOutcome, outcome.Kind.String()),
		attribute.String(tracing.AttrBatchID, outcome.BatchID),
	))
	defer span.End()

	changed, err := obj.ApplyOutcome(outcome)
	if err != nil {
		tracing.RecordError(span, err)
		return err
	}
	if !changed {
		log.Debug(log.CatDeposit, "Status left unchanged", "object", obj.ID(), "outcome", outcome.Kind)
		return nil
	}

	var reg *domain.Registration
	if outcome.Kind.IsAccepted() {
		r, err := s.ids.Register(obj)
		if err != nil {
			tracing.RecordError(span, err)
			return fmt.Errorf("register identifier: %w", err)
		}
		reg = &r
	}

	if err := s.objects.RecordDeposit(ctx, obj, domain.NewBatch(obj.ID(), outcome, s.now()), reg); err != nil {
		tracing.RecordError(span, err)
		return fmt.Errorf("record deposit for %s: %w", obj.ID(), err)
	}

	log.Info(log.CatDeposit, "Deposit status updated",
		"object", obj.ID(),
		"status", obj.Status(),
		"batch", obj.BatchID())
	return nil
}

// MarkRegistered is the operator override: the object becomes markedRegistered and its
// identifier is registered in the same write. CrossRef is not contacted.
func (s *Store) MarkRegistered(ctx context.Context, obj *domain.Object) error {
	ctx, span := s.tracer.Start(ctx, tracing.SpanMarkRegistered, trace.WithAttributes(
		attribute.String(tracing.AttrObjectID, obj.ID()),
	))
	defer span.End()

	obj.MarkRegistered()
	reg, err := s.ids.Register(obj)
	if err != nil {
		tracing.RecordError(span, err)
		return fmt.Errorf("register identifier: %w", err)
	}
	if err := s.objects.RecordDeposit(ctx, obj, domain.Batch{}, &reg); err != nil {
		tracing.RecordError(span, err)
		return fmt.Errorf("save %s: %w", obj.ID(), err)
	}

	log.Info(log.CatDeposit, "Object marked registered", "object", obj.ID())
	return nil
}

// Get returns the object with the given id.
func (s *Store) Get(ctx context.Context, id string) (*domain.Object, error) {
	return s.objects.FindByID(ctx, id)
}

// List returns the objects matching filter.
func (s *Store) List(ctx context.Context, filter domain.ListFilter) ([]*domain.Object, error) {
	return s.objects.List(ctx, filter)
}

// Batches returns the deposit history of an object, newest first.
func (s *Store) Batches(ctx context.Context, objectID string) ([]domain.Batch, error) {
	return s.objects.Batches(ctx, objectID)
}

// RegisteredDOI returns the DOI registered for an object, or "".
func (s *Store) RegisteredDOI(ctx context.Context, objectID string) (string, error) {
	return s.objects.RegisteredDOI(ctx, objectID)
}

// Save stores obj as is, e.g. after importing metadata.
func (s *Store) Save(ctx context.Context, obj *domain.Object) error {
	return s.objects.Save(ctx, obj)
}
