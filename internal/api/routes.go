// routes.go - Route registration helpers
package api

import (
	"github.com/labstack/echo/v4"

	"github.com/MrUnggoy/ConvertAllHub-sub000/internal/batch"
	"github.com/MrUnggoy/ConvertAllHub-sub000/internal/convert"
	"github.com/MrUnggoy/ConvertAllHub-sub000/internal/history"
	"github.com/MrUnggoy/ConvertAllHub-sub000/internal/session"
	"github.com/MrUnggoy/ConvertAllHub-sub000/internal/storage"
	"github.com/MrUnggoy/ConvertAllHub-sub000/internal/tools"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Registry   *tools.Registry
	State      *session.State
	Store      storage.Store
	Dispatcher *convert.Dispatcher
	BatchMgr   *batch.Manager
	History    *history.Store
	Tasks      *TaskManager
	Version    string

	// DefaultQuality applies when a request carries no quality field;
	// zero falls back to the executor default.
	DefaultQuality int
	// AllowFileDeletion gates DELETE /api/files/:id.
	AllowFileDeletion bool
}

// Handlers holds all handler instances
type Handlers struct {
	Health   HealthHandler
	Convert  ConvertHandler
	Batch    BatchHandler
	Tools    ToolHandler
	Files    FileHandler
	History  HistoryHandler
	Progress *ProgressSocketHandler
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	tasks := deps.Tasks
	if tasks == nil {
		tasks = NewTaskManager(deps.State)
	}
	quality := deps.DefaultQuality
	if quality <= 0 || quality > 100 {
		quality = convert.DefaultQuality
	}
	h := &Handlers{
		Health:   NewHealthHandler(deps.Version),
		Convert:  NewConvertHandler(deps.Registry, deps.State, deps.Store, deps.Dispatcher, tasks, quality),
		Batch:    NewBatchHandler(deps.Registry, deps.State, deps.Store, deps.BatchMgr, quality),
		Tools:    NewToolHandler(deps.Registry),
		Files:    NewFileHandler(deps.Store, deps.State, deps.AllowFileDeletion),
		Progress: NewProgressSocketHandler(deps.State, tasks),
	}
	if deps.History != nil {
		h.History = NewHistoryHandler(deps.History)
		tasks.SetRecorder(deps.History)
	}
	return h
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	apiGroup := e.Group("/api")

	apiGroup.GET("/health", handlers.Health.HandleHealth)

	// Single-file conversion
	apiGroup.POST("/convert/:toolId", handlers.Convert.HandleStartConversion)
	apiGroup.GET("/convert/:taskId/status", handlers.Convert.HandleTaskStatus)
	apiGroup.GET("/convert/:taskId/progress", handlers.Convert.HandleTaskProgressStream)
	apiGroup.POST("/convert/:taskId/cancel", handlers.Convert.HandleCancelTask)

	// WebSocket progress stream
	apiGroup.GET("/ws/progress/:taskId", handlers.Progress.HandleProgressSocket)

	// Batch conversion
	apiGroup.POST("/batch/convert/:toolId", handlers.Batch.HandleStartBatch)
	apiGroup.GET("/batch/status/:batchId", handlers.Batch.HandleBatchStatus)
	apiGroup.GET("/batch/:batchId/download", handlers.Batch.HandleBatchDownload)

	// Tool registry
	apiGroup.GET("/tools", handlers.Tools.HandleListTools)
	apiGroup.GET("/tools/:id", handlers.Tools.HandleGetTool)

	// Stored files and session records
	apiGroup.GET("/files", handlers.Files.HandleListFiles)
	apiGroup.GET("/files/:id/download", handlers.Files.HandleDownloadFile)
	apiGroup.DELETE("/files/:id", handlers.Files.HandleDeleteFile)

	// Conversion history
	if handlers.History != nil {
		apiGroup.GET("/history/recent", handlers.History.HandleRecentHistory)
		apiGroup.GET("/history/stats", handlers.History.HandleHistoryStats)
	}
}

// SetupMiddleware configures the custom error handler
func SetupMiddleware(e *echo.Echo) {
	e.HTTPErrorHandler = ErrorHandler
}
