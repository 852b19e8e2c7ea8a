package entity

import "time"

type TaskKind string

const (
	TaskKindClassify TaskKind = "classify"
	TaskKindExport   TaskKind = "export"
)

type TaskStatus string

const (
	StatusPending   TaskStatus = "PENDING"
	StatusRunning   TaskStatus = "RUNNING"
	StatusSucceeded TaskStatus = "SUCCEEDED"
	StatusFailed    TaskStatus = "FAILED"
)

// Task is the persisted record of one asynchronous job. Created by the
// submitter, mutated only by the worker that claims it, terminal on
// SUCCEEDED or FAILED.
type Task struct {
	TaskID      string     `gorm:"primaryKey;type:uuid" json:"taskID"`
	Kind        TaskKind   `gorm:"not null;type:text" json:"kind"`
	Status      TaskStatus `gorm:"not null;type:text" json:"status"`
	Payload     string     `gorm:"type:jsonb" json:"-"`
	ResultJSON  string     `gorm:"type:jsonb" json:"-"`
	ResultKey   string     `json:"-"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// TaskMessage is the broker payload. Exactly one of Sample or Filter is set,
// matching Kind.
type TaskMessage struct {
	TaskID string        `json:"taskID"`
	Kind   TaskKind      `json:"kind"`
	Sample *Sample       `json:"sample,omitempty"`
	Filter *ResultFilter `json:"filter,omitempty"`
}

// TaskResult is the poll-side view of a task: its state plus, when terminal,
// the classification outcome or a download link for an export.
type TaskResult struct {
	TaskID      string                `json:"taskID"`
	Kind        TaskKind              `json:"kind,omitempty"`
	Status      TaskStatus            `json:"status"`
	Result      *ClassificationResult `json:"result,omitempty"`
	DownloadURL string                `json:"downloadURL,omitempty"`
	Error       string                `json:"error,omitempty"`
	CompletedAt *time.Time            `json:"completedAt,omitempty"`
}
