// handlers_batch.go - Batch conversion handlers
package api

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/MrUnggoy/ConvertAllHub-sub000/internal/batch"
	"github.com/MrUnggoy/ConvertAllHub-sub000/internal/convert"
	"github.com/MrUnggoy/ConvertAllHub-sub000/internal/models"
	"github.com/MrUnggoy/ConvertAllHub-sub000/internal/session"
	"github.com/MrUnggoy/ConvertAllHub-sub000/internal/storage"
	"github.com/MrUnggoy/ConvertAllHub-sub000/internal/tools"
	"github.com/MrUnggoy/ConvertAllHub-sub000/internal/validate"
)

const msgpackContentType = "application/x-msgpack"

// BatchHandlerImpl implements the BatchHandler interface
type BatchHandlerImpl struct {
	registry       *tools.Registry
	state          *session.State
	store          storage.Store
	manager        *batch.Manager
	defaultQuality int
}

// NewBatchHandler creates a new batch handler instance
func NewBatchHandler(registry *tools.Registry, state *session.State, store storage.Store, manager *batch.Manager, defaultQuality int) BatchHandler {
	return &BatchHandlerImpl{
		registry:       registry,
		state:          state,
		store:          store,
		manager:        manager,
		defaultQuality: defaultQuality,
	}
}

// HandleStartBatch accepts multiple files[] parts and starts a batch job.
// Every file must pass the validation gateway before anything runs.
func (h *BatchHandlerImpl) HandleStartBatch(c echo.Context) error {
	toolID := c.Param("toolId")
	tool, ok := h.registry.Get(toolID)
	if !ok {
		return NewNotFoundError("tool", toolID)
	}

	form, err := c.MultipartForm()
	if err != nil {
		return NewBadRequestError("invalid multipart form", err)
	}
	fileHeaders := form.File["files"]
	if len(fileHeaders) == 0 {
		return &APIError{
			Status:  http.StatusBadRequest,
			Code:    models.CodeNoFile,
			Message: "no files provided",
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

	limits := h.state.Limits()
	items := make([]batch.Item, 0, len(fileHeaders))
	for _, fh := range fileHeaders {
		cand := validate.Candidate{
			Name:     fh.Filename,
			Size:     fh.Size,
			MIMEType: fh.Header.Get(echo.HeaderContentType),
		}
		if ferr := validate.CheckFile(cand, tool.InputFormats, limits.MaxBytesPerFile); ferr != nil {
			return FromFlowError(ferr)
		}

		src, err := fh.Open()
		if err != nil {
			return NewInternalError("failed to open uploaded file", err)
		}
		info, err := h.store.Save(fh.Filename, storage.KindInput, src)
		src.Close()
		if err != nil {
			return NewInternalError("failed to store uploaded file", err)
		}
		path, err := h.store.Path(info.ID)
		if err != nil {
			return NewInternalError("failed to resolve stored file", err)
		}

		items = append(items, batch.Item{
			Ref: models.FileRef{
				Name:     fh.Filename,
				Size:     fh.Size,
				MIMEType: fh.Header.Get(echo.HeaderContentType),
				Path:     path,
			},
			Path: path,
		})
	}

	opts := convert.Options{Quality: parseQuality(c, h.defaultQuality), Extra: extraOptions(c)}
	job, err := h.manager.Start(tool, targetFormat, opts, items)
	if err != nil {
		if ferr, ok := err.(*models.FlowError); ok {
			return FromFlowError(ferr)
		}
		return NewBadRequestError(err.Error(), nil)
	}

	h.state.SetBatchMode(true)
	fmt.Printf("[Batch %s] Accepted: %d files via %s\n", job.ID[:8], job.TotalFiles, tool.ID)

	return c.JSON(http.StatusAccepted, job)
}

// HandleBatchStatus returns a batch snapshot, as msgpack when the client
// asks for it.
func (h *BatchHandlerImpl) HandleBatchStatus(c echo.Context) error {
	id := c.Param("batchId")
	job, ok := h.manager.GetJob(id)
	if !ok {
		return NewNotFoundError("batch", id)
	}

	if c.Request().Header.Get(echo.HeaderAccept) == msgpackContentType {
		data, err := msgpack.Marshal(job)
		if err != nil {
			return NewInternalError("failed to encode batch status", err)
		}
		return c.Blob(http.StatusOK, msgpackContentType, data)
	}

	return c.JSON(http.StatusOK, job)
}

// HandleBatchDownload serves the zip bundle of successful outputs.
func (h *BatchHandlerImpl) HandleBatchDownload(c echo.Context) error {
	id := c.Param("batchId")
	job, ok := h.manager.GetJob(id)
	if !ok {
		return NewNotFoundError("batch", id)
	}

	zipPath, ok := h.manager.ZipPath(id)
	if !ok {
		if job.Status == models.BatchStatusQueued || job.Status == models.BatchStatusProcessing {
			return NewConflictError("BATCH_NOT_FINISHED",
				fmt.Sprintf("batch %s is still %s", id, job.Status))
		}
		return NewNotFoundError("batch archive", id)
	}

	return c.Attachment(zipPath, fmt.Sprintf("converted-%s.zip", id[:8]))
}
