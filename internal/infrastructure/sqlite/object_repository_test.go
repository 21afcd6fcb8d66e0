package sqlite

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/scholarly-tools/doideposit/internal/deposit/domain"
	"github.com/scholarly-tools/doideposit/internal/testutil"
)

// setupTestDB creates a new DB that is closed when the test completes.
func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err, "Failed to create test database")
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newArticle(id, contextID string) *domain.Object {
	published := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	return domain.NewObject(id, contextID, domain.KindArticle, domain.Metadata{
		Title:       "Article " + id,
		URL:         "https://journal.example.org/article/" + id,
		Volume:      "12",
		Number:      "3",
		PublishedAt: &published,
	})
}

func TestObjectRepository_SaveAndFind(t *testing.T) {
	ctx := context.Background()
	repo := setupTestDB(t).ObjectRepository()

	obj := newArticle("1", "journal")
	require.NoError(t, repo.Save(ctx, obj))

	found, err := repo.FindByID(ctx, "1")
	require.NoError(t, err)
	require.Equal(t, obj.ID(), found.ID())
	require.Equal(t, obj.ContextID(), found.ContextID())
	require.Equal(t, domain.KindArticle, found.Kind())
	require.Equal(t, domain.StatusNotDeposited, found.Status())
	require.Equal(t, obj.Metadata().Title, found.Metadata().Title)
	require.Equal(t, "12", found.Metadata().Volume)
	require.NotNil(t, found.Metadata().PublishedAt)
	require.True(t, obj.Metadata().PublishedAt.Equal(*found.Metadata().PublishedAt))
	require.WithinDuration(t, obj.CreatedAt(), found.CreatedAt(), time.Second)
}

func TestObjectRepository_FindByID_NotFound(t *testing.T) {
	repo := setupTestDB(t).ObjectRepository()

	_, err := repo.FindByID(context.Background(), "missing")

	var notFound *domain.ObjectNotFoundError
	require.True(t, errors.As(err, &notFound))
	require.Equal(t, "missing", notFound.ID)
}

func TestObjectRepository_SaveIsLastWriteWins(t *testing.T) {
	ctx := context.Background()
	repo := setupTestDB(t).ObjectRepository()

	obj := newArticle("1", "journal")
	require.NoError(t, repo.Save(ctx, obj))

	obj.SetMetadata(domain.Metadata{Title: "Renamed", URL: "https://example.org/1"})
	require.NoError(t, repo.Save(ctx, obj))

	found, err := repo.FindByID(ctx, "1")
	require.NoError(t, err)
	require.Equal(t, "Renamed", found.Metadata().Title)
	require.Empty(t, found.Metadata().Volume)
	require.Nil(t, found.Metadata().PublishedAt)
}

func TestObjectRepository_List(t *testing.T) {
	ctx := context.Background()
	repo := setupTestDB(t).ObjectRepository()

	for _, obj := range []*domain.Object{
		newArticle("3", "journal"),
		newArticle("1", "journal"),
		newArticle("2", "other"),
		domain.NewObject("4", "journal", domain.KindIssue, domain.Metadata{Title: "Issue"}),
	} {
		require.NoError(t, repo.Save(ctx, obj))
	}
	failed := newArticle("5", "journal")
	_, err := failed.ApplyOutcome(domain.Outcome{Kind: domain.OutcomeRejectedImmediate, BatchID: "b", Message: "no"})
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, failed))

	ids := func(objects []*domain.Object) []string {
		out := make([]string, len(objects))
		for i, o := range objects {
			out[i] = o.ID()
		}
		return out
	}

	all, err := repo.List(ctx, domain.ListFilter{})
	require.NoError(t, err)
	require.Equal(t, []string{"1", "2", "3", "4", "5"}, ids(all))

	byContext, err := repo.List(ctx, domain.ListFilter{ContextID: "journal", Kind: domain.KindArticle})
	require.NoError(t, err)
	require.Equal(t, []string{"1", "3", "5"}, ids(byContext))

	byStatus, err := repo.List(ctx, domain.ListFilter{Statuses: []domain.Status{domain.StatusFailed}})
	require.NoError(t, err)
	require.Equal(t, []string{"5"}, ids(byStatus))
	require.Equal(t, "no", byStatus[0].FailedMessage())

	limited, err := repo.List(ctx, domain.ListFilter{Limit: 2})
	require.NoError(t, err)
	require.Equal(t, []string{"1", "2"}, ids(limited))
}

func TestObjectRepository_RecordDeposit(t *testing.T) {
	ctx := context.Background()
	repo := setupTestDB(t).ObjectRepository()
	submitted := time.Unix(1_700_000_000, 0)

	obj := newArticle("1", "journal")
	require.NoError(t, repo.Save(ctx, obj))

	rejected := domain.Outcome{
		Kind:       domain.OutcomeRejectedImmediate,
		BatchID:    "b-1",
		HTTPStatus: 403,
		Message:    "<html>forbidden</html>",
		Response:   []byte("<html>forbidden</html>"),
	}
	_, err := obj.ApplyOutcome(rejected)
	require.NoError(t, err)
	require.NoError(t, repo.RecordDeposit(ctx, obj, domain.NewBatch("1", rejected, submitted), nil))

	accepted := domain.Outcome{Kind: domain.OutcomeAccepted, BatchID: "b-2", Response: []byte("<doi_batch_diagnostic/>")}
	_, err = obj.ApplyOutcome(accepted)
	require.NoError(t, err)
	require.NoError(t, repo.RecordDeposit(ctx, obj, domain.NewBatch("1", accepted, submitted.Add(time.Minute)), nil))

	found, err := repo.FindByID(ctx, "1")
	require.NoError(t, err)
	require.Equal(t, domain.StatusRegistered, found.Status())
	require.Equal(t, "b-2", found.BatchID())
	require.Empty(t, found.FailedMessage())

	batches, err := repo.Batches(ctx, "1")
	require.NoError(t, err)
	require.Len(t, batches, 2)
	require.Equal(t, "b-2", batches[0].BatchID, "newest first")
	require.Empty(t, batches[0].Response, "accepted responses are not retained")
	require.Equal(t, "b-1", batches[1].BatchID)
	require.Equal(t, 403, batches[1].HTTPStatus)
	require.Equal(t, "<html>forbidden</html>", batches[1].Response)
	require.Equal(t, domain.OutcomeRejectedImmediate, batches[1].Outcome)
}

func TestObjectRepository_RecordDeposit_SkipsEmptyBatchID(t *testing.T) {
	ctx := context.Background()
	repo := setupTestDB(t).ObjectRepository()

	obj := newArticle("1", "journal")
	require.NoError(t, repo.Save(ctx, obj))

	outcome := domain.Outcome{Kind: domain.OutcomeRejectedImmediate, HTTPStatus: 500, Message: "oops"}
	_, err := obj.ApplyOutcome(outcome)
	require.NoError(t, err)
	require.NoError(t, repo.RecordDeposit(ctx, obj, domain.NewBatch("1", outcome, time.Now()), nil))

	batches, err := repo.Batches(ctx, "1")
	require.NoError(t, err)
	require.Empty(t, batches)

	found, err := repo.FindByID(ctx, "1")
	require.NoError(t, err)
	require.Equal(t, domain.StatusFailed, found.Status())
	require.Equal(t, "oops", found.FailedMessage())
}

func TestObjectRepository_RecordDeposit_RollsBackOnBatchError(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := db.ObjectRepository()

	obj := newArticle("1", "journal")
	require.NoError(t, repo.Save(ctx, obj))

	_, err := db.conn.Exec(`CREATE TRIGGER reject_batches BEFORE INSERT ON deposit_batches
		BEGIN SELECT RAISE(ABORT, 'rejected'); END`)
	require.NoError(t, err)

	outcome := domain.Outcome{Kind: domain.OutcomeAccepted, BatchID: "b-1"}
	_, err = obj.ApplyOutcome(outcome)
	require.NoError(t, err)
	require.Error(t, repo.RecordDeposit(ctx, obj, domain.NewBatch("1", outcome, time.Now()), nil))

	found, err := repo.FindByID(ctx, "1")
	require.NoError(t, err)
	require.Equal(t, domain.StatusNotDeposited, found.Status(), "object update must roll back with the batch")
}

// TestObjectRepository_RecordDeposit_Idempotent is a property-based test: recording the
// same batch any number of times leaves exactly one history record.
func TestObjectRepository_RecordDeposit_Idempotent(t *testing.T) {
	ctx := context.Background()
	repo := setupTestDB(t).ObjectRepository()
	n := 0

	rapid.Check(t, func(r *rapid.T) {
		n++
		id := fmt.Sprintf("obj-%d", n)
		obj := newArticle(id, "journal")
		require.NoError(r, repo.Save(ctx, obj))

		outcome := domain.Outcome{
			Kind:         rapid.SampledFrom([]domain.OutcomeKind{domain.OutcomeFailed, domain.OutcomeAccepted}).Draw(r, "kind"),
			BatchID:      rapid.StringMatching(`[0-9a-f]{4,16}`).Draw(r, "batchID"),
			FailureCount: rapid.IntRange(0, 5).Draw(r, "failures"),
		}
		_, err := obj.ApplyOutcome(outcome)
		require.NoError(r, err)

		repeats := rapid.IntRange(1, 4).Draw(r, "repeats")
		for i := 0; i < repeats; i++ {
			require.NoError(r, repo.RecordDeposit(ctx, obj, domain.NewBatch(id, outcome, time.Now()), nil))
		}

		batches, err := repo.Batches(ctx, id)
		require.NoError(r, err)
		require.Len(r, batches, 1)
		require.Equal(r, outcome.BatchID, batches[0].BatchID)
		require.Equal(r, outcome.FailureCount, batches[0].FailureCount)
	})
}

func TestObjectRepository_StandardObjects(t *testing.T) {
	ctx := context.Background()
	repo := setupTestDB(t).ObjectRepository()
	built := testutil.NewBuilder(t, repo).WithStandardObjects().WithRetriedObject("r-1").Build()

	for id, want := range built {
		got, err := repo.FindByID(ctx, id)
		require.NoError(t, err)
		require.Equal(t, want.Status(), got.Status(), id)
		require.Equal(t, want.BatchID(), got.BatchID(), id)
		require.Equal(t, want.FailedMessage(), got.FailedMessage(), id)
		require.Equal(t, want.DOI(), got.DOI(), id)
		require.Equal(t, want.Metadata(), got.Metadata(), id)
	}

	unsettled, err := repo.List(ctx, domain.ListFilter{
		ContextID: "journal",
		Statuses:  []domain.Status{domain.StatusNotDeposited, domain.StatusFailed},
	})
	require.NoError(t, err)
	require.Len(t, unsettled, 3)

	rejected, err := repo.Batches(ctx, "a-2")
	require.NoError(t, err)
	require.Len(t, rejected, 1)
	require.Equal(t, "<html>Service Unavailable</html>", rejected[0].Response)

	retried, err := repo.Batches(ctx, "r-1")
	require.NoError(t, err)
	require.Len(t, retried, 2)
	require.Equal(t, domain.OutcomeAccepted, retried[0].Outcome)
	require.Equal(t, domain.OutcomeFailed, retried[1].Outcome)
}
