// handlers_tools.go - Tool registry handlers
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/MrUnggoy/ConvertAllHub-sub000/internal/tools"
)

// ToolHandlerImpl implements the ToolHandler interface
type ToolHandlerImpl struct {
	registry *tools.Registry
}

// NewToolHandler creates a new tool handler instance
func NewToolHandler(registry *tools.Registry) ToolHandler {
	return &ToolHandlerImpl{registry: registry}
}

// HandleListTools returns all registered tools, optionally filtered by
// the category query param.
func (h *ToolHandlerImpl) HandleListTools(c echo.Context) error {
	if category := c.QueryParam("category"); category != "" {
		byCat := h.registry.ByCategory()
		for cat, list := range byCat {
			if string(cat) == category {
				return c.JSON(http.StatusOK, list)
			}
		}
		return c.JSON(http.StatusOK, []struct{}{})
	}
	return c.JSON(http.StatusOK, h.registry.List())
}

// HandleGetTool returns one tool by id.
func (h *ToolHandlerImpl) HandleGetTool(c echo.Context) error {
	id := c.Param("id")
	tool, ok := h.registry.Get(id)
	if !ok {
		return NewNotFoundError("tool", id)
	}
	return c.JSON(http.StatusOK, tool)
}
