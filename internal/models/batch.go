package models

import "time"

// BatchStatus represents the aggregate status of a batch job.
type BatchStatus string

const (
	BatchStatusQueued     BatchStatus = "queued"
	BatchStatusProcessing BatchStatus = "processing"
	BatchStatusComplete   BatchStatus = "complete"
	BatchStatusError      BatchStatus = "error"
)

// BatchJob tracks one batch conversion: N files processed under one tool
// invocation with independent per-file outcomes. The aggregate fields
// follow the batch status wire shape consumed by polling clients.
type BatchJob struct {
	ID                 string      `json:"batch_id" msgpack:"batch_id"`
	ToolID             string      `json:"tool_id" msgpack:"tool_id"`
	TargetFormat       string      `json:"target_format" msgpack:"target_format"`
	Status             BatchStatus `json:"status" msgpack:"status"`
	TotalFiles         int         `json:"total_files" msgpack:"total_files"`
	Completed          int         `json:"completed" msgpack:"completed"`
	Failed             int         `json:"failed" msgpack:"failed"`
	ProgressPercentage float64     `json:"progress_percentage" msgpack:"progress_percentage"`
	FileIDs            []string    `json:"file_ids" msgpack:"file_ids"`
	ZipPath            string      `json:"-" msgpack:"-"`
	CreatedAt          time.Time   `json:"created_at" msgpack:"created_at"`
	CompletedAt        *time.Time  `json:"completed_at,omitempty" msgpack:"completed_at,omitempty"`
}
