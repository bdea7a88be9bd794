package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"drivemigrate/internal/model"

	"gorm.io/gorm"
)

var (
	// ErrConflict is returned by Create when the job id is already taken.
	ErrConflict = errors.New("job already exists")
	// ErrNotFound is returned for jobs that never existed or have expired.
	ErrNotFound = errors.New("job not found")
)

// Store is the single source of truth for job state. Rows expire after the
// retention window; an expired row is indistinguishable from one that never
// existed.
type Store struct {
	db        *gorm.DB
	retention time.Duration
}

func New(db *gorm.DB, retention time.Duration) *Store {
	return &Store{db: db, retention: retention}
}

func (s *Store) expired(job model.Job) bool {
	return time.Since(job.CreatedAt) > s.retention
}

// statusRank orders the lifecycle so transitions only ever move forward.
// Terminal statuses share a rank: once failed or completed, a job is done.
func statusRank(s model.JobStatus) int {
	switch s {
	case model.JobStatusPending:
		return 0
	case model.JobStatusRunning:
		return 1
	default:
		return 2
	}
}

// Create inserts a new pending job. TotalCount is the number of selection
// roots, not the recursively expanded total (see JobUpdate.ExpandedCount).
func (s *Store) Create(id, sourceAccount, destAccount string, selection []model.SelectionItem) (model.Job, error) {
	var existing model.Job
	err := s.db.First(&existing, "id = ?", id).Error
	switch {
	case err == nil:
		if !s.expired(existing) {
			return model.Job{}, ErrConflict
		}
		// Expired rows behave as never created.
		if err := s.db.Delete(&model.Job{}, "id = ?", id).Error; err != nil {
			return model.Job{}, fmt.Errorf("failed to reap expired job: %w", err)
		}
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return model.Job{}, fmt.Errorf("failed to check job: %w", err)
	}

	job := model.Job{
		ID:            id,
		SourceAccount: sourceAccount,
		DestAccount:   destAccount,
		Selection:     selection,
		Status:        model.JobStatusPending,
		TotalCount:    len(selection),
		ErrorLog:      []model.ErrorEntry{},
		CreatedAt:     time.Now(),
	}

	if err := s.db.Create(&job).Error; err != nil {
		return model.Job{}, fmt.Errorf("failed to create job: %w", err)
	}

	return job, nil
}

func (s *Store) Get(id string) (model.Job, error) {
	var job model.Job
	if err := s.db.First(&job, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.Job{}, ErrNotFound
		}
		return model.Job{}, fmt.Errorf("failed to read job: %w", err)
	}

	if s.expired(job) {
		return model.Job{}, ErrNotFound
	}

	return job, nil
}

// JobUpdate carries the merge-only fields of a partial update. Nil fields are
// left untouched.
type JobUpdate struct {
	Status           *model.JobStatus
	ExpandedCount    *int
	ExpandedBytes    *int64
	TransferredCount *int
	FailedCount      *int
	SkippedCount     *int
	BytesTransferred *int64
	ErrorLog         []model.ErrorEntry
}

// Update merges the recognized fields into the job row. Updates to missing or
// expired jobs are silently dropped. StartedAt, CompletedAt and DurationMs are
// derived here, never by callers: StartedAt on the first transition to running,
// CompletedAt and DurationMs on the first transition into a terminal status.
// Backward status transitions are ignored.
func (s *Store) Update(id string, upd JobUpdate) error {
	var job model.Job
	if err := s.db.First(&job, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return fmt.Errorf("failed to read job: %w", err)
	}
	if s.expired(job) {
		return nil
	}

	fields := map[string]any{}

	if upd.Status != nil && statusRank(*upd.Status) > statusRank(job.Status) {
		now := time.Now()
		fields["status"] = *upd.Status

		if *upd.Status == model.JobStatusRunning && job.StartedAt == nil {
			fields["started_at"] = now
		}

		if upd.Status.Terminal() && job.CompletedAt == nil {
			fields["completed_at"] = now

			started := job.CreatedAt
			if job.StartedAt != nil {
				started = *job.StartedAt
			} else if v, ok := fields["started_at"]; ok {
				started = v.(time.Time)
			}
			fields["duration_ms"] = now.Sub(started).Milliseconds()
		}
	}

	if upd.ExpandedCount != nil {
		fields["expanded_count"] = *upd.ExpandedCount
	}
	if upd.ExpandedBytes != nil {
		fields["expanded_bytes"] = *upd.ExpandedBytes
	}
	if upd.TransferredCount != nil {
		fields["transferred_count"] = *upd.TransferredCount
	}
	if upd.FailedCount != nil {
		fields["failed_count"] = *upd.FailedCount
	}
	if upd.SkippedCount != nil {
		fields["skipped_count"] = *upd.SkippedCount
	}
	if upd.BytesTransferred != nil {
		fields["bytes_transferred"] = *upd.BytesTransferred
	}
	if upd.ErrorLog != nil {
		b, err := json.Marshal(upd.ErrorLog)
		if err != nil {
			return fmt.Errorf("failed to encode error log: %w", err)
		}
		fields["error_log"] = string(b)
	}

	if len(fields) == 0 {
		return nil
	}

	if err := s.db.Model(&model.Job{}).Where("id = ?", id).Updates(fields).Error; err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}

	return nil
}

// List returns all unexpired jobs, newest first.
func (s *Store) List() ([]model.Job, error) {
	cutoff := time.Now().Add(-s.retention)

	var jobs []model.Job
	err := s.db.
		Where("created_at > ?", cutoff).
		Order("created_at desc").
		Find(&jobs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	return jobs, nil
}

// PurgeExpired deletes rows past the retention window and reports how many.
func (s *Store) PurgeExpired() (int64, error) {
	cutoff := time.Now().Add(-s.retention)

	res := s.db.Where("created_at <= ?", cutoff).Delete(&model.Job{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to purge jobs: %w", res.Error)
	}

	return res.RowsAffected, nil
}
