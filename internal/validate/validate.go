// Package validate implements the upload validation gateway: pure,
// synchronous checks run against a candidate file before it is admitted
// into the session state.
package validate

import (
	"fmt"
	"strings"

	"github.com/MrUnggoy/ConvertAllHub-sub000/internal/models"
)

// Candidate describes the file under validation.
type Candidate struct {
	Name     string
	Size     int64
	MIMEType string
}

// CheckFile validates a candidate against a tool's accepted input formats
// and a size ceiling. It returns nil on success or a *models.FlowError
// with code INVALID_FILE. The size check runs first; the extension check
// is primary and a MIME-type substring match is a permissive fallback for
// well-known types (e.g. a MIME type containing "pdf" satisfies an
// accepted format of "pdf").
func CheckFile(c Candidate, acceptedFormats []string, maxBytes int64) *models.FlowError {
	if maxBytes > 0 && c.Size > maxBytes {
		return &models.FlowError{
			Code:    models.CodeInvalidFile,
			Message: fmt.Sprintf("file size %s exceeds limit %s", FormatMB(c.Size), FormatMB(maxBytes)),
			UserMessage: fmt.Sprintf("This file is %s, but the maximum allowed size is %s.",
				FormatMB(c.Size), FormatMB(maxBytes)),
			SuggestedAction: "Choose a smaller file or upgrade your plan for a higher limit.",
		}
	}

	if matchesFormat(c, acceptedFormats) {
		return nil
	}

	return &models.FlowError{
		Code:    models.CodeInvalidFile,
		Message: fmt.Sprintf("unsupported file type %q, accepted: %s", Extension(c.Name), strings.Join(acceptedFormats, ", ")),
		UserMessage: fmt.Sprintf("This file type is not supported. Accepted formats: %s.",
			strings.Join(acceptedFormats, ", ")),
		SuggestedAction: "Pick a file in one of the accepted formats.",
	}
}

func matchesFormat(c Candidate, acceptedFormats []string) bool {
	ext := Extension(c.Name)
	for _, f := range acceptedFormats {
		if strings.EqualFold(ext, f) {
			return true
		}
	}

	// MIME fallback, only after the extension check failed.
	if c.MIMEType == "" {
		return false
	}
	mime := strings.ToLower(c.MIMEType)
	for _, f := range acceptedFormats {
		if strings.Contains(mime, strings.ToLower(f)) {
			return true
		}
	}
	return false
}

// Extension returns the lowercased substring after the last dot, without
// the dot. Files with no dot have an empty extension.
func Extension(name string) string {
	idx := strings.LastIndex(name, ".")
	if idx < 0 || idx == len(name)-1 {
		return ""
	}
	return strings.ToLower(name[idx+1:])
}

// FormatMB renders a byte count in megabytes with one decimal, e.g. "50.0MB".
func FormatMB(bytes int64) string {
	return fmt.Sprintf("%.1fMB", float64(bytes)/(1024*1024))
}
