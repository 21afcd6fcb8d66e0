package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/scholarly-tools/doideposit/internal/deposit/domain"
)

// objectColumns is the list of columns to select for object queries.
const objectColumns = `id, context_id, kind, title, url, volume, number, published_at,
	status, batch_id, failed_msg, doi, created_at, updated_at`

const upsertObjectSQL = `INSERT INTO objects (
		id, context_id, kind, title, url, volume, number, published_at,
		status, batch_id, failed_msg, doi, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		context_id = excluded.context_id,
		kind = excluded.kind,
		title = excluded.title,
		url = excluded.url,
		volume = excluded.volume,
		number = excluded.number,
		published_at = excluded.published_at,
		status = excluded.status,
		batch_id = excluded.batch_id,
		failed_msg = excluded.failed_msg,
		doi = excluded.doi,
		updated_at = excluded.updated_at`

const upsertBatchSQL = `INSERT INTO deposit_batches (
		object_id, batch_id, submitted_at, outcome, failure_count, warning_count, http_status, response
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(object_id, batch_id) DO UPDATE SET
		submitted_at = excluded.submitted_at,
		outcome = excluded.outcome,
		failure_count = excluded.failure_count,
		warning_count = excluded.warning_count,
		http_status = excluded.http_status,
		response = excluded.response`

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// objectRepository implements domain.ObjectRepository using SQLite.
type objectRepository struct {
	db  *sql.DB
	now func() time.Time
}

// newObjectRepository creates a new objectRepository instance.
func newObjectRepository(db *sql.DB) *objectRepository {
	return &objectRepository{db: db, now: time.Now}
}

// Ensure objectRepository implements domain.ObjectRepository.
var _ domain.ObjectRepository = (*objectRepository)(nil)

// scanObject scans a row into an ObjectModel.
func scanObject(scanner interface{ Scan(...any) error }) (*ObjectModel, error) {
	var model ObjectModel
	err := scanner.Scan(
		&model.ID, &model.ContextID, &model.Kind, &model.Title, &model.URL,
		&model.Volume, &model.Number, &model.PublishedAt,
		&model.Status, &model.BatchID, &model.FailedMsg, &model.DOI,
		&model.CreatedAt, &model.UpdatedAt,
	)
	return &model, err
}

func saveObject(ctx context.Context, ex execer, obj *domain.Object) error {
	m := toObjectModel(obj)
	_, err := ex.ExecContext(ctx, upsertObjectSQL,
		m.ID, m.ContextID, m.Kind, m.Title, m.URL, m.Volume, m.Number, m.PublishedAt,
		m.Status, m.BatchID, m.FailedMsg, m.DOI, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save object %s: %w", m.ID, err)
	}
	return nil
}

// Save inserts or replaces an object.
func (r *objectRepository) Save(ctx context.Context, obj *domain.Object) error {
	return saveObject(ctx, r.db, obj)
}

// FindByID retrieves an object by id.
// Returns domain.ObjectNotFoundError if no object exists.
func (r *objectRepository) FindByID(ctx context.Context, id string) (*domain.Object, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+objectColumns+` FROM objects WHERE id = ?`, id)

	model, err := scanObject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.ObjectNotFoundError{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find object %s: %w", id, err)
	}
	return model.toDomain()
}

// List returns the objects matching filter ordered by id.
func (r *objectRepository) List(ctx context.Context, filter domain.ListFilter) ([]*domain.Object, error) {
	var (
		where []string
		args  []any
	)
	if filter.ContextID != "" {
		where = append(where, "context_id = ?")
		args = append(args, filter.ContextID)
	}
	if filter.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, string(filter.Kind))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			placeholders[i] = "?"
			args = append(args, s.String())
		}
		where = append(where, "status IN ("+strings.Join(placeholders, ", ")+")")
	}

	query := `SELECT ` + objectColumns + ` FROM objects`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list objects: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var objects []*domain.Object
	for rows.Next() {
		model, err := scanObject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan object: %w", err)
		}
		obj, err := model.toDomain()
		if err != nil {
			return nil, err
		}
		objects = append(objects, obj)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating objects: %w", err)
	}
	return objects, nil
}

// RecordDeposit saves the object, its batch record and the registration in one
// transaction. Batches without an id are not recorded; a repeated batch id replaces
// the earlier record.
func (r *objectRepository) RecordDeposit(ctx context.Context, obj *domain.Object, batch domain.Batch, reg *domain.Registration) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := saveObject(ctx, tx, obj); err != nil {
		return err
	}

	if batch.BatchID != "" {
		m := toBatchModel(batch)
		_, err := tx.ExecContext(ctx, upsertBatchSQL,
			m.ObjectID, m.BatchID, m.SubmittedAt, m.Outcome,
			m.FailureCount, m.WarningCount, m.HTTPStatus, m.Response,
		)
		if err != nil {
			return fmt.Errorf("failed to record batch %s: %w", m.BatchID, err)
		}
	}

	if reg != nil {
		if err := saveRegistration(ctx, tx, obj.ID(), *reg, r.now()); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit deposit: %w", err)
	}
	return nil
}

// Batches returns the deposit history of an object, newest first.
func (r *objectRepository) Batches(ctx context.Context, objectID string) ([]domain.Batch, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT object_id, batch_id, submitted_at, outcome, failure_count, warning_count, http_status, response
		FROM deposit_batches WHERE object_id = ? ORDER BY id DESC`,
		objectID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query batches: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var batches []domain.Batch
	for rows.Next() {
		var m BatchModel
		if err := rows.Scan(
			&m.ObjectID, &m.BatchID, &m.SubmittedAt, &m.Outcome,
			&m.FailureCount, &m.WarningCount, &m.HTTPStatus, &m.Response,
		); err != nil {
			return nil, fmt.Errorf("failed to scan batch: %w", err)
		}
		batches = append(batches, m.toDomain())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating batches: %w", err)
	}
	return batches, nil
}
