package models

import "fmt"

// Flow error codes surfaced to the user.
const (
	CodeInvalidFile         = "INVALID_FILE"
	CodeNoFile              = "NO_FILE"
	CodeNoFormat            = "NO_FORMAT"
	CodeConversionFailed    = "CONVERSION_FAILED"
	CodeConversionCancelled = "CONVERSION_CANCELLED"
	CodeFileBusy            = "FILE_BUSY"
)

// FlowError is the structured error record carried through the conversion
// flow: a machine code, an internal message, a user-facing message, a
// suggested remedial action, and an optional technical detail blob that
// stays collapsed from view by default.
type FlowError struct {
	Code             string `json:"code"`
	Message          string `json:"message"`
	UserMessage      string `json:"userMessage"`
	SuggestedAction  string `json:"suggestedAction,omitempty"`
	TechnicalDetails string `json:"technicalDetails,omitempty"`
}

// Error implements the error interface.
func (e *FlowError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewFlowError creates a FlowError with matching internal and user messages.
func NewFlowError(code, message, action string) *FlowError {
	return &FlowError{
		Code:            code,
		Message:         message,
		UserMessage:     message,
		SuggestedAction: action,
	}
}
