// Package memory provides in-memory implementations of the deposit repositories.
// They back tests and dry runs that must not touch the database.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/scholarly-tools/doideposit/internal/deposit/domain"
)

// ObjectRepository is an in-memory domain.ObjectRepository.
// It is thread-safe using sync.RWMutex for concurrent access.
type ObjectRepository struct {
	mu         sync.RWMutex
	objects    map[string]*domain.Object
	batches    map[string][]domain.Batch
	registered map[string]string
}

// NewObjectRepository creates an empty repository.
func NewObjectRepository() *ObjectRepository {
	return &ObjectRepository{
		objects:    make(map[string]*domain.Object),
		batches:    make(map[string][]domain.Batch),
		registered: make(map[string]string),
	}
}

// Save stores a copy of obj.
func (r *ObjectRepository) Save(_ context.Context, obj *domain.Object) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.objects[obj.ID()] = obj.Clone()
	return nil
}

// FindByID returns a copy of the stored object.
func (r *ObjectRepository) FindByID(_ context.Context, id string) (*domain.Object, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	obj, ok := r.objects[id]
	if !ok {
		return nil, &domain.ObjectNotFoundError{ID: id}
	}
	return obj.Clone(), nil
}

// List returns copies of the matching objects ordered by id.
func (r *ObjectRepository) List(_ context.Context, filter domain.ListFilter) ([]*domain.Object, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*domain.Object, 0, len(r.objects))
	for _, obj := range r.objects {
		if filter.ContextID != "" && obj.ContextID() != filter.ContextID {
			continue
		}
		if filter.Kind != "" && obj.Kind() != filter.Kind {
			continue
		}
		if len(filter.Statuses) > 0 && !slices.Contains(filter.Statuses, obj.Status()) {
			continue
		}
		result = append(result, obj.Clone())
	}

	sort.Slice(result, func(i, j int) bool { return result[i].ID() < result[j].ID() })
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

// RecordDeposit stores the object, replaces or appends the batch record and records
// the registration. Nothing is stored when the registration has no DOI.
func (r *ObjectRepository) RecordDeposit(_ context.Context, obj *domain.Object, batch domain.Batch, reg *domain.Registration) error {
	if reg != nil && reg.DOI == "" {
		return fmt.Errorf("object %s has no DOI to register", obj.ID())
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.objects[obj.ID()] = obj.Clone()
	if reg != nil {
		r.registered[obj.ID()] = reg.DOI
	}
	if batch.BatchID == "" {
		return nil
	}

	history := r.batches[obj.ID()]
	for i := range history {
		if history[i].BatchID == batch.BatchID {
			history[i] = batch
			return nil
		}
	}
	r.batches[obj.ID()] = append(history, batch)
	return nil
}

// Batches returns the deposit history of an object, newest first.
func (r *ObjectRepository) Batches(_ context.Context, objectID string) ([]domain.Batch, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	history := slices.Clone(r.batches[objectID])
	slices.Reverse(history)
	return history, nil
}

// RegisteredDOI returns the DOI registered for objectID, or "".
func (r *ObjectRepository) RegisteredDOI(_ context.Context, objectID string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.registered[objectID], nil
}
