// handlers_files.go - Stored file access and session record removal
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/MrUnggoy/ConvertAllHub-sub000/internal/session"
	"github.com/MrUnggoy/ConvertAllHub-sub000/internal/storage"
)

// FileHandlerImpl implements the FileHandler interface
type FileHandlerImpl struct {
	store         storage.Store
	state         *session.State
	allowDeletion bool
}

// NewFileHandler creates a new file handler instance
func NewFileHandler(store storage.Store, state *session.State, allowDeletion bool) FileHandler {
	return &FileHandlerImpl{store: store, state: state, allowDeletion: allowDeletion}
}

// HandleDownloadFile serves a stored object by id.
func (h *FileHandlerImpl) HandleDownloadFile(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	info, err := h.store.Get(id)
	if err != nil {
		return NewNotFoundError("file", id)
	}
	path, err := h.store.Path(id)
	if err != nil {
		return NewNotFoundError("file", id)
	}

	return c.Attachment(path, info.Name)
}

// HandleDeleteFile removes a session record and its stored input. A file
// with a conversion in flight is refused with 409.
func (h *FileHandlerImpl) HandleDeleteFile(c echo.Context) error {
	if !h.allowDeletion {
		return &APIError{
			Status:  http.StatusForbidden,
			Code:    "DELETION_DISABLED",
			Message: "file deletion is disabled on this server",
		}
	}

	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	rec, ok := h.state.File(id)
	if !ok {
		return NewNotFoundError("file", id)
	}

	if ferr := h.state.RemoveFile(id); ferr != nil {
		return FromFlowError(ferr)
	}

	// Best effort: drop the locally stored output along with the record.
	if rec.Result != nil {
		if _, err := h.store.Get(rec.Result.OutputRef); err == nil {
			h.store.Delete(rec.Result.OutputRef)
		}
	}

	return c.NoContent(http.StatusNoContent)
}

// HandleListFiles returns the session's file records.
func (h *FileHandlerImpl) HandleListFiles(c echo.Context) error {
	return c.JSON(http.StatusOK, h.state.Files())
}
