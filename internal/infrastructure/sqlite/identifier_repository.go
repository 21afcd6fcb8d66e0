package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/scholarly-tools/doideposit/internal/deposit/domain"
)

const upsertIdentifierSQL = `INSERT INTO registered_identifiers (object_id, doi, source, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(object_id) DO UPDATE SET
		doi = excluded.doi,
		source = excluded.source,
		updated_at = excluded.updated_at`

// saveRegistration upserts the registered DOI of objectID. The object row must exist.
func saveRegistration(ctx context.Context, ex execer, objectID string, reg domain.Registration, now time.Time) error {
	if reg.DOI == "" {
		return fmt.Errorf("object %s has no DOI to register", objectID)
	}
	ts := now.Unix()
	if _, err := ex.ExecContext(ctx, upsertIdentifierSQL, objectID, reg.DOI, reg.Source, ts, ts); err != nil {
		return fmt.Errorf("failed to save identifier for %s: %w", objectID, err)
	}
	return nil
}

// RegisteredDOI returns the registered DOI for objectID, or "" when none is stored.
func (r *objectRepository) RegisteredDOI(ctx context.Context, objectID string) (string, error) {
	var doi string
	err := r.db.QueryRowContext(ctx,
		`SELECT doi FROM registered_identifiers WHERE object_id = ?`, objectID,
	).Scan(&doi)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read identifier for %s: %w", objectID, err)
	}
	return doi, nil
}
