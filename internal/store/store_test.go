package store

import (
	"testing"
	"time"

	"drivemigrate/internal/db"
	"drivemigrate/internal/model"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, retention time.Duration) *Store {
	t.Helper()

	gdb, err := db.Open(":memory:")
	require.NoError(t, err)

	return New(gdb, retention)
}

func sel(names ...string) []model.SelectionItem {
	items := make([]model.SelectionItem, 0, len(names))
	for _, n := range names {
		items = append(items, model.SelectionItem{
			ExternalID: "id-" + n,
			Name:       n,
			Kind:       model.ItemKindFile,
		})
	}

	return items
}

func TestCreateAndGet(t *testing.T) {
	s := newTestStore(t, time.Hour)

	created, err := s.Create("job-1", "alice@example.com", "bob@example.com", sel("a.txt", "b.txt"))
	require.NoError(t, err)
	require.Equal(t, model.JobStatusPending, created.Status)
	require.Equal(t, 2, created.TotalCount)

	got, err := s.Get("job-1")
	require.NoError(t, err)
	require.Equal(t, "alice@example.com", got.SourceAccount)
	require.Equal(t, "bob@example.com", got.DestAccount)
	require.Len(t, got.Selection, 2)
	require.Equal(t, "a.txt", got.Selection[0].Name)
	require.Nil(t, got.StartedAt)
	require.Nil(t, got.CompletedAt)
}

func TestCreateConflict(t *testing.T) {
	s := newTestStore(t, time.Hour)

	_, err := s.Create("job-1", "alice@example.com", "bob@example.com", sel("a"))
	require.NoError(t, err)

	_, err = s.Create("job-1", "carol@example.com", "dave@example.com", sel("b"))
	require.ErrorIs(t, err, ErrConflict)
}

func TestGetNotFound(t *testing.T) {
	s := newTestStore(t, time.Hour)

	_, err := s.Get("missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateMergesOnlyGivenFields(t *testing.T) {
	s := newTestStore(t, time.Hour)

	_, err := s.Create("job-1", "alice@example.com", "bob@example.com", sel("a"))
	require.NoError(t, err)

	transferred := 3
	bytes := int64(1024)
	require.NoError(t, s.Update("job-1", JobUpdate{
		TransferredCount: &transferred,
		BytesTransferred: &bytes,
	}))

	got, err := s.Get("job-1")
	require.NoError(t, err)
	require.Equal(t, 3, got.TransferredCount)
	require.Equal(t, int64(1024), got.BytesTransferred)
	require.Equal(t, 0, got.FailedCount)
	require.Equal(t, model.JobStatusPending, got.Status)
}

func TestUpdateErrorLog(t *testing.T) {
	s := newTestStore(t, time.Hour)

	_, err := s.Create("job-1", "alice@example.com", "bob@example.com", sel("a"))
	require.NoError(t, err)

	log := []model.ErrorEntry{{ItemName: "a", Message: "boom"}}
	require.NoError(t, s.Update("job-1", JobUpdate{ErrorLog: log}))

	got, err := s.Get("job-1")
	require.NoError(t, err)
	require.Equal(t, log, got.ErrorLog)
}

func TestUpdateDerivesStartedAtOnce(t *testing.T) {
	s := newTestStore(t, time.Hour)

	_, err := s.Create("job-1", "alice@example.com", "bob@example.com", sel("a"))
	require.NoError(t, err)

	running := model.JobStatusRunning
	require.NoError(t, s.Update("job-1", JobUpdate{Status: &running}))

	first, err := s.Get("job-1")
	require.NoError(t, err)
	require.NotNil(t, first.StartedAt)

	// A second running update must not move the timestamp.
	require.NoError(t, s.Update("job-1", JobUpdate{Status: &running}))

	second, err := s.Get("job-1")
	require.NoError(t, err)
	require.Equal(t, first.StartedAt.UnixNano(), second.StartedAt.UnixNano())
}

func TestUpdateDerivesCompletionFields(t *testing.T) {
	s := newTestStore(t, time.Hour)

	_, err := s.Create("job-1", "alice@example.com", "bob@example.com", sel("a"))
	require.NoError(t, err)

	running := model.JobStatusRunning
	require.NoError(t, s.Update("job-1", JobUpdate{Status: &running}))

	completed := model.JobStatusCompleted
	require.NoError(t, s.Update("job-1", JobUpdate{Status: &completed}))

	got, err := s.Get("job-1")
	require.NoError(t, err)
	require.Equal(t, model.JobStatusCompleted, got.Status)
	require.NotNil(t, got.CompletedAt)
	require.GreaterOrEqual(t, got.DurationMs, int64(0))

	// Terminal status is final: a later transition is dropped.
	failed := model.JobStatusFailed
	require.NoError(t, s.Update("job-1", JobUpdate{Status: &failed}))

	after, err := s.Get("job-1")
	require.NoError(t, err)
	require.Equal(t, model.JobStatusCompleted, after.Status)
	require.Equal(t, got.CompletedAt.UnixNano(), after.CompletedAt.UnixNano())
}

func TestUpdateMissingJobIsNoop(t *testing.T) {
	s := newTestStore(t, time.Hour)

	transferred := 1
	require.NoError(t, s.Update("missing", JobUpdate{TransferredCount: &transferred}))
}

func TestExpiredJobBehavesAsNeverCreated(t *testing.T) {
	s := newTestStore(t, 10*time.Millisecond)

	_, err := s.Create("job-1", "alice@example.com", "bob@example.com", sel("a"))
	require.NoError(t, err)

	time.Sleep(25 * time.Millisecond)

	_, err = s.Get("job-1")
	require.ErrorIs(t, err, ErrNotFound)

	// Updates to an expired row are silently dropped.
	transferred := 1
	require.NoError(t, s.Update("job-1", JobUpdate{TransferredCount: &transferred}))

	// The id is free again.
	_, err = s.Create("job-1", "carol@example.com", "dave@example.com", sel("b"))
	require.NoError(t, err)
}

func TestPurgeExpired(t *testing.T) {
	s := newTestStore(t, 10*time.Millisecond)

	_, err := s.Create("old", "alice@example.com", "bob@example.com", sel("a"))
	require.NoError(t, err)

	time.Sleep(25 * time.Millisecond)

	_, err = s.Create("fresh", "alice@example.com", "bob@example.com", sel("b"))
	require.NoError(t, err)

	n, err := s.PurgeExpired()
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	_, err = s.Get("fresh")
	require.NoError(t, err)
}

func TestListExcludesExpired(t *testing.T) {
	s := newTestStore(t, 50*time.Millisecond)

	_, err := s.Create("old", "alice@example.com", "bob@example.com", sel("a"))
	require.NoError(t, err)

	time.Sleep(60 * time.Millisecond)

	_, err = s.Create("fresh", "alice@example.com", "bob@example.com", sel("b"))
	require.NoError(t, err)

	jobs, err := s.List()
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.Equal(t, "fresh", jobs[0].ID)
}
