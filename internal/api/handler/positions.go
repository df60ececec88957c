package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/timmy/shareledger/internal/api/middleware"
	"github.com/timmy/shareledger/internal/domain"
	"github.com/timmy/shareledger/internal/service"
)

const (
	defaultPageSize = 20
	maxPageSize     = 1000
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// PositionsHandler serves stored positions.
type PositionsHandler struct {
	positions service.PositionReader
	export    *service.ExportService
}

// NewPositionsHandler creates a new positions handler.
func NewPositionsHandler(positions service.PositionReader, export *service.ExportService) *PositionsHandler {
	return &PositionsHandler{positions: positions, export: export}
}

// PositionListResponse is one page of positions.
type PositionListResponse struct {
	Positions []domain.Position `json:"positions"`
	Total     int64             `json:"total"`
	Limit     int               `json:"limit"`
	Offset    int               `json:"offset"`
}

// List handles GET /api/v1/positions.
func (h *PositionsHandler) List(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultPageSize)))
	if err != nil || limit < 1 || limit > maxPageSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 1000"})
		return
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "offset must be a non-negative integer"})
		return
	}

	ctx := c.Request.Context()
	positions, err := h.positions.List(ctx, limit, offset)
	if err != nil {
		middleware.GetLogger(c).WithError(err).Error("Failed to list positions")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list positions"})
		return
	}
	total, err := h.positions.Count(ctx)
	if err != nil {
		middleware.GetLogger(c).WithError(err).Error("Failed to count positions")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list positions"})
		return
	}
	if positions == nil {
		positions = []domain.Position{}
	}

	c.JSON(http.StatusOK, PositionListResponse{
		Positions: positions,
		Total:     total,
		Limit:     limit,
		Offset:    offset,
	})
}

// Export handles GET /api/v1/positions/export.
func (h *PositionsHandler) Export(c *gin.Context) {
	data, err := h.export.PositionsXLSX(c.Request.Context())
	if err != nil {
		middleware.GetLogger(c).WithError(err).Error("Failed to export positions")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to export positions"})
		return
	}
	c.Header("Content-Disposition", `attachment; filename="positions.xlsx"`)
	c.Data(http.StatusOK, xlsxContentType, data)
}
