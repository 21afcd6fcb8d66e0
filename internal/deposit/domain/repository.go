package domain

import "context"

// ListFilter provides filtering options for listing objects.
type ListFilter struct {
	// ContextID restricts results to one tenant. Empty means all tenants.
	ContextID string

	// Statuses restricts results to the given statuses. Empty means all.
	Statuses []Status

	// Kind restricts results to one object kind. Empty means all.
	Kind ObjectKind

	// Limit restricts the number of objects returned. 0 means no limit.
	Limit int
}

// ObjectRepository defines the persistence interface for Object entities.
type ObjectRepository interface {
	// Save inserts or replaces the object (last write wins).
	Save(ctx context.Context, obj *Object) error

	// FindByID returns ObjectNotFoundError if no object has the id.
	FindByID(ctx context.Context, id string) (*Object, error)

	// List returns objects ordered by id.
	List(ctx context.Context, filter ListFilter) ([]*Object, error)

	// RecordDeposit atomically saves the object together with the batch history
	// record of the attempt that changed it and, when reg is non-nil, the registered
	// identifier. A batch without an id is not recorded.
	RecordDeposit(ctx context.Context, obj *Object, batch Batch, reg *Registration) error

	// Batches returns the deposit history of an object, newest first.
	Batches(ctx context.Context, objectID string) ([]Batch, error)

	// RegisteredDOI returns the registered DOI for an object, or "" if none.
	RegisteredDOI(ctx context.Context, objectID string) (string, error)
}

// Registration is a DOI recorded as registered for an object.
type Registration struct {
	DOI    string
	Source string
}
