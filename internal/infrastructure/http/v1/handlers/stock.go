package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"stockpile/internal/core/apperror"
	"stockpile/internal/core/entity"
	"stockpile/internal/core/id"
	"stockpile/internal/domain/allocation"
	"stockpile/internal/domain/ledger"
	"stockpile/internal/infrastructure/http/v1/dto"
)

// StockHandler handles HTTP requests for the stock ledger and allocations.
type StockHandler struct {
	*BaseHandler
	service *ledger.Service
	engine  *allocation.Engine
}

// NewStockHandler creates a new stock handler.
func NewStockHandler(base *BaseHandler, service *ledger.Service, engine *allocation.Engine) *StockHandler {
	return &StockHandler{
		BaseHandler: base,
		service:     service,
		engine:      engine,
	}
}

// CreateCell handles POST /stock/cells.
func (h *StockHandler) CreateCell(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.CreateCellRequest
	if !h.BindJSON(c, &req) {
		return
	}

	key, err := req.ToKey()
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid cell key").WithDetail("error", err.Error()))
		return
	}

	cell, err := h.service.CreateCell(ctx, key, req.InitialQuantity, req.Reference)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.FromStockCell(cell))
}

// GetCell handles GET /stock/cells/:id.
func (h *StockHandler) GetCell(c *gin.Context) {
	ctx := c.Request.Context()

	cellID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	cell, err := h.service.GetCellByID(ctx, cellID)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromStockCell(cell))
}

// DeleteCell handles DELETE /stock/cells/:id.
func (h *StockHandler) DeleteCell(c *gin.Context) {
	ctx := c.Request.Context()

	cellID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	if err := h.service.DeleteCell(ctx, cellID, c.Query("reference")); err != nil {
		h.Error(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// VerifyCell handles POST /stock/cells/:id/verify - replay consistency check.
func (h *StockHandler) VerifyCell(c *gin.Context) {
	ctx := c.Request.Context()

	cellID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	replayed, err := h.service.VerifyCell(ctx, cellID)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.VerifyCellResponse{
		CellID:   cellID.String(),
		Replayed: replayed,
		Valid:    true,
	})
}

// ListCells handles GET /stock/cells.
func (h *StockHandler) ListCells(c *gin.Context) {
	ctx := c.Request.Context()

	filter := ledger.CellFilter{
		ExcludeEmpty: c.Query("excludeEmpty") == "true",
		Limit:        h.ParseIntQuery(c, "limit", 100),
		Offset:       h.ParseIntQuery(c, "offset", 0),
	}

	var ok bool
	if filter.ProductID, ok = h.parseOptionalID(c, "productId"); !ok {
		return
	}
	if filter.LocationID, ok = h.parseOptionalID(c, "locationId"); !ok {
		return
	}
	if filter.BatchID, ok = h.parseOptionalID(c, "batchId"); !ok {
		return
	}

	if statusStr := c.Query("status"); statusStr != "" {
		status := entity.StockStatus(statusStr)
		filter.Status = &status
	}

	cells, err := h.service.ListCells(ctx, filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]dto.StockCellResponse, len(cells))
	for i := range cells {
		items[i] = dto.FromStockCell(&cells[i])
	}

	c.JSON(http.StatusOK, dto.StockCellListResponse{Items: items})
}

// ApplyDelta handles POST /stock/entries.
func (h *StockHandler) ApplyDelta(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.ApplyDeltaRequest
	if !h.BindJSON(c, &req) {
		return
	}

	key, err := req.ToKey()
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid cell key").WithDetail("error", err.Error()))
		return
	}

	cell, err := h.service.ApplyDelta(ctx, key, req.Delta, req.EntryType, req.Reference)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromStockCell(cell))
}

// Reserve handles POST /stock/reservations.
func (h *StockHandler) Reserve(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.ReservationRequest
	if !h.BindJSON(c, &req) {
		return
	}

	key, err := req.ToKey()
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid cell key").WithDetail("error", err.Error()))
		return
	}

	cell, err := h.service.Reserve(ctx, key, req.Quantity)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromStockCell(cell))
}

// Release handles POST /stock/reservations/release.
func (h *StockHandler) Release(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.ReservationRequest
	if !h.BindJSON(c, &req) {
		return
	}

	key, err := req.ToKey()
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid cell key").WithDetail("error", err.Error()))
		return
	}

	cell, err := h.service.Release(ctx, key, req.Quantity)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromStockCell(cell))
}

// ListLog handles GET /stock/log.
func (h *StockHandler) ListLog(c *gin.Context) {
	ctx := c.Request.Context()

	filter := ledger.LogFilter{
		Reference: c.Query("reference"),
		Limit:     h.ParseIntQuery(c, "limit", 100),
		Offset:    h.ParseIntQuery(c, "offset", 0),
	}

	var ok bool
	if filter.ProductID, ok = h.parseOptionalID(c, "productId"); !ok {
		return
	}
	if filter.LocationID, ok = h.parseOptionalID(c, "locationId"); !ok {
		return
	}
	if filter.CellID, ok = h.parseOptionalID(c, "cellId"); !ok {
		return
	}

	if typeStr := c.Query("entryType"); typeStr != "" {
		entryType := entity.EntryType(typeStr)
		filter.EntryType = &entryType
	}

	if fromStr := c.Query("fromDate"); fromStr != "" {
		if parsed, err := time.Parse(time.RFC3339, fromStr); err == nil {
			filter.FromDate = &parsed
		}
	}
	if toStr := c.Query("toDate"); toStr != "" {
		if parsed, err := time.Parse(time.RFC3339, toStr); err == nil {
			filter.ToDate = &parsed
		}
	}

	entries, err := h.service.ListLog(ctx, filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]dto.StockLogEntryResponse, len(entries))
	for i := range entries {
		items[i] = dto.FromStockLogEntry(&entries[i])
	}

	c.JSON(http.StatusOK, dto.StockLogListResponse{Items: items})
}

// TotalStock handles GET /stock/total.
func (h *StockHandler) TotalStock(c *gin.Context) {
	ctx := c.Request.Context()

	productIDStr := c.Query("productId")
	if productIDStr == "" {
		h.Error(c, apperror.NewValidation("productId is required"))
		return
	}

	productID, err := id.Parse(productIDStr)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid productId format"))
		return
	}

	total, err := h.service.TotalStock(ctx, productID)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.TotalStockResponse{
		ProductID: productID.String(),
		Total:     total,
	})
}

// PlanAllocation handles POST /stock/allocations/plan - dry run, no deductions.
func (h *StockHandler) PlanAllocation(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.AllocationRequest
	if !h.BindJSON(c, &req) {
		return
	}

	allocReq, err := req.ToRequest()
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid allocation request").WithDetail("error", err.Error()))
		return
	}

	deductions, err := h.engine.Plan(ctx, allocReq)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromDeductions(deductions))
}

// Allocate handles POST /stock/allocations - executes the deductions.
func (h *StockHandler) Allocate(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.AllocationRequest
	if !h.BindJSON(c, &req) {
		return
	}

	allocReq, err := req.ToRequest()
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid allocation request").WithDetail("error", err.Error()))
		return
	}

	deductions, err := h.engine.Allocate(ctx, allocReq)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromDeductions(deductions))
}

func (h *StockHandler) parseOptionalID(c *gin.Context, key string) (*id.ID, bool) {
	val := c.Query(key)
	if val == "" {
		return nil, true
	}
	parsed, err := id.Parse(val)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid "+key+" format"))
		return nil, false
	}
	return &parsed, true
}
