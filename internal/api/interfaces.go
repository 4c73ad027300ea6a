// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"github.com/labstack/echo/v4"
)

// ConvertHandler handles single-file conversion operations
type ConvertHandler interface {
	HandleStartConversion(c echo.Context) error
	HandleTaskStatus(c echo.Context) error
	HandleTaskProgressStream(c echo.Context) error
	HandleCancelTask(c echo.Context) error
}

// BatchHandler handles multi-file conversion operations
type BatchHandler interface {
	HandleStartBatch(c echo.Context) error
	HandleBatchStatus(c echo.Context) error
	HandleBatchDownload(c echo.Context) error
}

// ToolHandler exposes the tool registry
type ToolHandler interface {
	HandleListTools(c echo.Context) error
	HandleGetTool(c echo.Context) error
}

// FileHandler handles stored file access and removal
type FileHandler interface {
	HandleDownloadFile(c echo.Context) error
	HandleDeleteFile(c echo.Context) error
	HandleListFiles(c echo.Context) error
}

// HistoryHandler exposes recorded conversions
type HistoryHandler interface {
	HandleRecentHistory(c echo.Context) error
	HandleHistoryStats(c echo.Context) error
}

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}
