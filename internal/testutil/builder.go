// Package testutil builds deposit fixtures for repository and service tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/scholarly-tools/doideposit/internal/deposit/domain"
)

// Builder accumulates objects and their deposit history and saves them in order.
type Builder struct {
	t       *testing.T
	repo    domain.ObjectRepository
	objects []objectData
}

// NewBuilder creates a builder that saves into repo.
func NewBuilder(t *testing.T, repo domain.ObjectRepository) *Builder {
	t.Helper()
	return &Builder{t: t, repo: repo}
}

// WithObject adds an object with optional configuration.
func (b *Builder) WithObject(id string, opts ...ObjectOption) *Builder {
	obj := defaultObject(id)
	for _, opt := range opts {
		opt(&obj)
	}
	b.objects = append(b.objects, obj)
	return b
}

// Build saves every object, then records its batches oldest first.
// It returns the saved objects keyed by id.
func (b *Builder) Build() map[string]*domain.Object {
	b.t.Helper()
	ctx := context.Background()
	out := make(map[string]*domain.Object, len(b.objects))
	for _, data := range b.objects {
		obj := data.object()
		require.NoError(b.t, b.repo.Save(ctx, obj))
		for _, batch := range data.batches {
			require.NoError(b.t, b.repo.RecordDeposit(ctx, obj, batch, nil))
		}
		out[obj.ID()] = obj
	}
	return out
}

func (d objectData) object() *domain.Object {
	return domain.ReconstituteObject(
		d.id, d.contextID, d.kind, d.metadata,
		d.status, d.batchID, d.failedMsg, d.doi,
		d.createdAt, d.updatedAt,
	)
}

func (d *objectData) addBatch(outcome domain.Outcome, at time.Time) {
	d.batches = append(d.batches, domain.NewBatch(d.id, outcome, at))
}
