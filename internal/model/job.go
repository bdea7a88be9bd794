package model

import "time"

type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// Terminal reports whether no further status transition is possible.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

type ItemKind string

const (
	ItemKindFile   ItemKind = "file"
	ItemKindFolder ItemKind = "folder"
)

// SelectionItem is one user-chosen root of a transfer.
type SelectionItem struct {
	ExternalID string   `json:"external_id"`
	Name       string   `json:"name"`
	Kind       ItemKind `json:"kind"`
	MIMEType   string   `json:"mime_type,omitempty"`
	Size       int64    `json:"size,omitempty"`
}

type ErrorEntry struct {
	ItemName string `json:"item_name"`
	Message  string `json:"message"`
}

// Job is the durable record of one migration between two accounts.
// It is mutated only by the single worker executing it.
type Job struct {
	ID            string          `gorm:"primaryKey" json:"id"`
	SourceAccount string          `gorm:"not null" json:"source_account"`
	DestAccount   string          `gorm:"not null" json:"dest_account"`
	Selection     []SelectionItem `gorm:"serializer:json" json:"selection"`
	Status        JobStatus       `gorm:"not null;default:'pending'" json:"status"`

	TotalCount       int   `json:"total_count"`
	ExpandedCount    int   `json:"expanded_count"`
	ExpandedBytes    int64 `json:"expanded_bytes"`
	TransferredCount int   `json:"transferred_count"`
	FailedCount      int   `json:"failed_count"`
	SkippedCount     int   `json:"skipped_count"`
	BytesTransferred int64 `json:"bytes_transferred"`

	ErrorLog []ErrorEntry `gorm:"serializer:json" json:"error_log"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	DurationMs  int64      `json:"duration_ms"`
}
