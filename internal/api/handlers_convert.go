// handlers_convert.go - Single-file conversion handlers
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/MrUnggoy/ConvertAllHub-sub000/internal/convert"
	"github.com/MrUnggoy/ConvertAllHub-sub000/internal/flow"
	"github.com/MrUnggoy/ConvertAllHub-sub000/internal/models"
	"github.com/MrUnggoy/ConvertAllHub-sub000/internal/session"
	"github.com/MrUnggoy/ConvertAllHub-sub000/internal/storage"
	"github.com/MrUnggoy/ConvertAllHub-sub000/internal/tools"
)

// ConvertHandlerImpl implements the ConvertHandler interface
type ConvertHandlerImpl struct {
	registry       *tools.Registry
	state          *session.State
	store          storage.Store
	dispatcher     *convert.Dispatcher
	tasks          *TaskManager
	defaultQuality int
}

// NewConvertHandler creates a new conversion handler instance
func NewConvertHandler(registry *tools.Registry, state *session.State, store storage.Store, dispatcher *convert.Dispatcher, tasks *TaskManager, defaultQuality int) ConvertHandler {
	return &ConvertHandlerImpl{
		registry:       registry,
		state:          state,
		store:          store,
		dispatcher:     dispatcher,
		tasks:          tasks,
		defaultQuality: defaultQuality,
	}
}

// conversionStatusResponse is the wire shape clients poll for.
type conversionStatusResponse struct {
	TaskID         string            `json:"task_id"`
	Status         string            `json:"status"`
	Progress       int               `json:"progress"`
	ResultURL      string            `json:"result_url,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	ErrorMessage   string            `json:"error_message,omitempty"`
	ProcessingTime float64           `json:"processing_time,omitempty"`
}

// HandleStartConversion accepts a multipart upload plus option fields and
// starts an async conversion task.
func (h *ConvertHandlerImpl) HandleStartConversion(c echo.Context) error {
	toolID := c.Param("toolId")
	tool, ok := h.registry.Get(toolID)
	if !ok {
		return NewNotFoundError("tool", toolID)
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return &APIError{
			Status:  http.StatusBadRequest,
			Code:    models.CodeNoFile,
			Message: "no file provided",
		}
	}

	targetFormat := c.FormValue("output_format")
	if targetFormat == "" {
		return &APIError{
			Status:  http.StatusBadRequest,
			Code:    models.CodeNoFormat,
			Message: "output_format is required",
		}
	}

	f := flow.New(tool, h.state, h.dispatcher.ForTool(tool))

	src, err := fileHeader.Open()
	if err != nil {
		return NewInternalError("failed to open uploaded file", err)
	}
	defer src.Close()

	// Selection runs the validation gateway before anything is stored.
	ref := models.FileRef{
		Name:     fileHeader.Filename,
		Size:     fileHeader.Size,
		MIMEType: fileHeader.Header.Get(echo.HeaderContentType),
	}
	if ferr := f.SelectFile(ref); ferr != nil {
		return FromFlowError(ferr)
	}

	info, err := h.store.Save(fileHeader.Filename, storage.KindInput, src)
	if err != nil {
		return NewInternalError("failed to store uploaded file", err)
	}
	path, err := h.store.Path(info.ID)
	if err != nil {
		return NewInternalError("failed to resolve stored file", err)
	}
	ref.Path = path
	if ferr := f.SelectFile(ref); ferr != nil {
		return FromFlowError(ferr)
	}

	if ferr := f.AdvanceFromFileSelection(); ferr != nil {
		return FromFlowError(ferr)
	}
	if ferr := f.SelectFormat(targetFormat); ferr != nil {
		return FromFlowError(ferr)
	}
	if ferr := f.AdvanceFromFormatSelection(); ferr != nil {
		return FromFlowError(ferr)
	}
	f.SetOptions(convert.Options{
		Quality: parseQuality(c, h.defaultQuality),
		Extra:   extraOptions(c),
	})

	h.state.SetCurrentTool(tool.ID)

	task := h.tasks.Start(f, tool.ID)
	fmt.Printf("[Convert %s] Started: %s -> %s via %s\n",
		task.ID[:8], fileHeader.Filename, targetFormat, tool.ID)

	return c.JSON(http.StatusAccepted, map[string]string{
		"task_id": task.ID,
		"status":  string(models.FileStatusPending),
	})
}

// HandleTaskStatus returns the current state of a conversion task.
func (h *ConvertHandlerImpl) HandleTaskStatus(c echo.Context) error {
	task, ok := h.taskFromContext(c)
	if !ok {
		return NewNotFoundError("task", c.Param("taskId"))
	}
	return c.JSON(http.StatusOK, h.statusOf(task))
}

// HandleTaskProgressStream streams task progress via SSE until the task
// reaches a terminal status.
func (h *ConvertHandlerImpl) HandleTaskProgressStream(c echo.Context) error {
	task, ok := h.taskFromContext(c)
	if !ok {
		return NewNotFoundError("task", c.Param("taskId"))
	}

	c.Response().Header().Set("Content-Type", "text/event-stream")
	c.Response().Header().Set("Cache-Control", "no-cache")
	c.Response().Header().Set("Connection", "keep-alive")
	c.Response().Header().Set("X-Accel-Buffering", "no")
	c.Response().WriteHeader(http.StatusOK)

	sendSSEData(c, h.statusOf(task))

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	timeout := time.NewTimer(5 * time.Minute)
	defer timeout.Stop()

	for {
		select {
		case <-ticker.C:
			status := h.statusOf(task)
			sendSSEData(c, status)
			if isTerminal(status.Status) {
				return nil
			}
		case <-timeout.C:
			sendSSEError(c, "progress stream timed out")
			return nil
		case <-c.Request().Context().Done():
			return nil
		}
	}
}

// HandleCancelTask aborts a running conversion.
func (h *ConvertHandlerImpl) HandleCancelTask(c echo.Context) error {
	task, ok := h.taskFromContext(c)
	if !ok {
		return NewNotFoundError("task", c.Param("taskId"))
	}

	status := h.statusOf(task)
	if isTerminal(status.Status) {
		return NewConflictError("ALREADY_FINISHED",
			fmt.Sprintf("task %s already finished with status %s", task.ID, status.Status))
	}

	task.Cancel()
	return c.JSON(http.StatusAccepted, map[string]string{
		"task_id": task.ID,
		"status":  "cancelling",
	})
}

func (h *ConvertHandlerImpl) taskFromContext(c echo.Context) (*Task, bool) {
	id := c.Param("taskId")
	if id == "" {
		return nil, false
	}
	return h.tasks.Get(id)
}

// statusOf projects a task onto the polling wire shape.
func (h *ConvertHandlerImpl) statusOf(task *Task) conversionStatusResponse {
	resp := conversionStatusResponse{
		TaskID: task.ID,
		Status: string(models.FileStatusPending),
	}

	rec, ok := h.tasks.Record(task)
	if !ok {
		return resp
	}

	resp.Status = string(rec.Status)
	resp.Progress = rec.Progress
	resp.ErrorMessage = rec.Error

	if rec.Result != nil {
		resp.ResultURL = resultURL(rec.Result.OutputRef)
		resp.Metadata = rec.Result.Metadata
		resp.ProcessingTime = rec.Result.DurationSeconds
	}
	return resp
}

// resultURL maps a result reference to something a client can fetch.
// Remote executors hand back absolute URLs; local outputs are served
// through the download endpoint.
func resultURL(ref string) string {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	return "/api/files/" + ref + "/download"
}

func isTerminal(status string) bool {
	return models.FileStatus(status).Terminal()
}

// parseQuality reads the optional quality form value, falling back to
// the configured server default.
func parseQuality(c echo.Context, fallback int) int {
	if q := c.FormValue("quality"); q != "" {
		if v, err := strconv.Atoi(q); err == nil && v > 0 && v <= 100 {
			return v
		}
	}
	return fallback
}

// extraOptions collects tool-specific form fields beyond the reserved
// file and option names.
func extraOptions(c echo.Context) map[string]string {
	form, err := c.MultipartForm()
	if err != nil {
		return nil
	}
	extra := make(map[string]string)
	for key, vals := range form.Value {
		if key == "output_format" || key == "quality" {
			continue
		}
		if len(vals) > 0 {
			extra[key] = vals[0]
		}
	}
	if len(extra) == 0 {
		return nil
	}
	return extra
}

func sendSSEData(c echo.Context, data interface{}) {
	jsonData, _ := json.Marshal(data)
	fmt.Fprintf(c.Response(), "data: %s\n\n", jsonData)
	c.Response().Flush()
}

func sendSSEError(c echo.Context, message string) {
	sendSSEData(c, map[string]string{"error": message})
}
