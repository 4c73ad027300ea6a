package models

import "time"

// FileStatus represents the lifecycle state of a tracked file.
type FileStatus string

const (
	FileStatusPending    FileStatus = "pending"
	FileStatusUploading  FileStatus = "uploading"
	FileStatusProcessing FileStatus = "processing"
	FileStatusCompleted  FileStatus = "completed"
	FileStatusError      FileStatus = "error"
)

// Terminal reports whether no further status transitions are expected
// short of an explicit retry.
func (s FileStatus) Terminal() bool {
	return s == FileStatusCompleted || s == FileStatusError
}

// Busy reports whether a conversion is in flight for the file.
func (s FileStatus) Busy() bool {
	return s == FileStatusUploading || s == FileStatusProcessing
}

// FileRef describes a candidate file before (and after) admission.
// Path points at the stored content once the file has been saved.
type FileRef struct {
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	MIMEType string `json:"mimeType,omitempty"`
	Path     string `json:"-"`
}

// ConversionResult holds the outcome of a successful conversion.
type ConversionResult struct {
	OutputRef       string            `json:"outputRef"`
	OutputSize      int64             `json:"outputSize"`
	OutputFormat    string            `json:"outputFormat"`
	DurationSeconds float64           `json:"durationSeconds"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// FileRecord is the tracked state of one file a user has submitted to a tool.
// Name and Size are copied from the source file at admission and are
// immutable thereafter. Result is set only when Status is completed,
// Error only when Status is error.
type FileRecord struct {
	ID       string            `json:"id"`
	Name     string            `json:"name"`
	Size     int64             `json:"size"`
	ToolID   string            `json:"toolId"`
	Status   FileStatus        `json:"status"`
	Progress int               `json:"progress"` // 0-100, monotone within one attempt
	Result   *ConversionResult `json:"result,omitempty"`
	Error    string            `json:"error,omitempty"`
	AddedAt  time.Time         `json:"addedAt"`
}

// UserTier governs admission limits.
type UserTier string

const (
	TierFree UserTier = "free"
	TierPro  UserTier = "pro"
)

// TierLimits holds the numeric limits consulted at admission time.
type TierLimits struct {
	MaxFiles        int
	MaxBytesPerFile int64
}

// LimitsFor returns the admission limits for a tier.
func LimitsFor(tier UserTier) TierLimits {
	if tier == TierPro {
		return TierLimits{MaxFiles: 50, MaxBytesPerFile: 500 * 1024 * 1024}
	}
	return TierLimits{MaxFiles: 5, MaxBytesPerFile: 50 * 1024 * 1024}
}
