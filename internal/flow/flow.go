// Package flow implements the three-step conversion flow: file selection,
// format selection, conversion. Steps only advance when the current
// step's gating condition holds; going back is always allowed and never
// discards the data of the step being left.
package flow

import (
	"context"
	"fmt"
	"sync"

	"github.com/MrUnggoy/ConvertAllHub-sub000/internal/convert"
	"github.com/MrUnggoy/ConvertAllHub-sub000/internal/models"
	"github.com/MrUnggoy/ConvertAllHub-sub000/internal/session"
	"github.com/MrUnggoy/ConvertAllHub-sub000/internal/validate"
)

// Step identifies the active step of the flow.
type Step int

const (
	StepFileSelection   Step = 1
	StepFormatSelection Step = 2
	StepConverting      Step = 3
)

// Flow drives one conversion through the three steps. A Flow instance is
// scoped to one file/format pair; the session state it writes into is
// shared and outlives it.
type Flow struct {
	mu    sync.Mutex
	tool  *models.Tool
	state *session.State
	exec  convert.Executor

	currentStep    Step
	selectedFile   *models.FileRef
	selectedFormat string
	options        convert.Options
	activeError    *models.FlowError
	recordID       string
	result         *models.ConversionResult
}

// New creates a flow for the given tool, writing records into state and
// converting through exec.
func New(tool *models.Tool, state *session.State, exec convert.Executor) *Flow {
	return &Flow{
		tool:        tool,
		state:       state,
		exec:        exec,
		currentStep: StepFileSelection,
	}
}

// SelectFile validates a candidate against the tool's accepted input
// formats and the session tier's size ceiling. On failure the step is
// unchanged and the error becomes the active error; on success the file
// is selected and any active error clears. The file is not yet admitted
// into the session state; admission happens at StartConversion.
func (f *Flow) SelectFile(ref models.FileRef) *models.FlowError {
	f.mu.Lock()
	defer f.mu.Unlock()

	limits := f.state.Limits()
	if err := validate.CheckFile(validate.Candidate{
		Name:     ref.Name,
		Size:     ref.Size,
		MIMEType: ref.MIMEType,
	}, f.tool.InputFormats, limits.MaxBytesPerFile); err != nil {
		f.activeError = err
		return err
	}

	f.selectedFile = &ref
	f.activeError = nil
	return nil
}

// AdvanceFromFileSelection moves to format selection, gated on a file
// being selected.
func (f *Flow) AdvanceFromFileSelection() *models.FlowError {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.selectedFile == nil {
		f.activeError = models.NewFlowError(models.CodeNoFile,
			"no file selected", "Select a file to continue.")
		return f.activeError
	}
	f.currentStep = StepFormatSelection
	f.activeError = nil
	return nil
}

// SelectFormat records the target output format. It does not advance the
// step, and unknown formats are rejected without touching the selection.
func (f *Flow) SelectFormat(formatID string) *models.FlowError {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.tool.AcceptsFormat(formatID) {
		err := models.NewFlowError(models.CodeNoFormat,
			fmt.Sprintf("tool %s does not offer format %q", f.tool.ID, formatID),
			"Pick one of the offered output formats.")
		f.activeError = err
		return err
	}
	f.selectedFormat = formatID
	f.activeError = nil
	return nil
}

// SetOptions stores executor options for the upcoming conversion.
func (f *Flow) SetOptions(opts convert.Options) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.options = opts
}

// AdvanceFromFormatSelection moves to the conversion step, gated on a
// format being selected.
func (f *Flow) AdvanceFromFormatSelection() *models.FlowError {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.selectedFormat == "" {
		f.activeError = models.NewFlowError(models.CodeNoFormat,
			"no output format selected", "Choose an output format to continue.")
		return f.activeError
	}
	f.currentStep = StepConverting
	f.activeError = nil
	return nil
}

// GoBack steps back one step, never below file selection. It clears the
// active error but keeps the selected file and format.
func (f *Flow) GoBack() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.currentStep > StepFileSelection {
		f.currentStep--
	}
	f.activeError = nil
}

// StartConversion admits the selected file into the session state and
// runs the executor. Valid only when both selections are present. On
// success the result is stored and the flow stays on the conversion step;
// on failure the structured error becomes active and the record freezes
// in error state for Retry.
func (f *Flow) StartConversion(ctx context.Context) *models.FlowError {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.selectedFile == nil {
		f.activeError = models.NewFlowError(models.CodeNoFile,
			"no file selected", "Select a file before converting.")
		return f.activeError
	}
	if f.selectedFormat == "" {
		f.activeError = models.NewFlowError(models.CodeNoFormat,
			"no output format selected", "Choose an output format before converting.")
		return f.activeError
	}

	if f.recordID == "" {
		rec, err := f.state.AddFile(*f.selectedFile, f.tool.ID)
		if err != nil {
			f.activeError = err
			return err
		}
		f.recordID = rec.ID
	}

	return f.run(ctx)
}

// Retry replays the conversion with identical inputs, resetting progress
// to 0 first.
func (f *Flow) Retry(ctx context.Context) *models.FlowError {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.recordID == "" {
		f.activeError = models.NewFlowError(models.CodeNoFile,
			"nothing to retry", "Start a conversion first.")
		return f.activeError
	}

	f.state.UpdateFileStatus(f.recordID, models.FileStatusPending, 0)
	return f.run(ctx)
}

// run drives one conversion attempt. Caller holds f.mu; run releases it
// while the executor works so progress readers are never blocked, and
// returns with it held again (the caller's deferred unlock applies).
func (f *Flow) run(ctx context.Context) *models.FlowError {
	id := f.recordID
	format := f.selectedFormat
	exec := f.exec
	f.activeError = nil
	f.result = nil

	initial := models.FileStatusProcessing
	if !f.tool.Local {
		initial = models.FileStatusUploading
	}
	f.state.UpdateFileStatus(id, initial, 0)

	in := convert.Input{
		ToolID:   f.tool.ID,
		Name:     f.selectedFile.Name,
		Path:     f.selectedFile.Path,
		Size:     f.selectedFile.Size,
		MIMEType: f.selectedFile.MIMEType,
		Endpoint: f.tool.Endpoint,
	}

	opts := f.options

	f.mu.Unlock()
	result, err := exec.Execute(ctx, in, format, opts, func(percent int) {
		f.state.UpdateFileStatus(id, models.FileStatusProcessing, percent)
	})
	f.mu.Lock()

	if err != nil {
		ce := convert.Normalize(err)
		f.state.SetFileError(id, ce.Message)
		f.activeError = &models.FlowError{
			Code:             ce.Code,
			Message:          ce.Message,
			UserMessage:      "The conversion did not complete.",
			SuggestedAction:  "Try again, or pick a different output format.",
			TechnicalDetails: ce.Detail,
		}
		return f.activeError
	}

	f.state.SetFileResult(id, result)
	f.result = result
	return nil
}

// Reset returns the flow to file selection, clearing the selected file,
// format, result and active error. The session record, if any, stays in
// the session state.
func (f *Flow) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.currentStep = StepFileSelection
	f.selectedFile = nil
	f.selectedFormat = ""
	f.activeError = nil
	f.result = nil
	f.recordID = ""
}

// CurrentStep returns the active step.
func (f *Flow) CurrentStep() Step {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.currentStep
}

// SelectedFile returns the selected file, nil when none.
func (f *Flow) SelectedFile() *models.FileRef {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.selectedFile == nil {
		return nil
	}
	ref := *f.selectedFile
	return &ref
}

// SelectedFormat returns the selected output format, empty when none.
func (f *Flow) SelectedFormat() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.selectedFormat
}

// ActiveError returns the current structured error, nil when none.
func (f *Flow) ActiveError() *models.FlowError {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.activeError
}

// Result returns the conversion result once completed.
func (f *Flow) Result() *models.ConversionResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.result
}

// RecordID returns the session record id created by StartConversion.
func (f *Flow) RecordID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.recordID
}
