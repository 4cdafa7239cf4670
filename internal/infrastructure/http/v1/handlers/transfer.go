package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"stockpile/internal/core/apperror"
	"stockpile/internal/core/id"
	"stockpile/internal/domain/transfer"
	"stockpile/internal/infrastructure/http/v1/dto"
)

// TransferHandler handles HTTP requests for transfer documents.
type TransferHandler struct {
	*BaseHandler
	service *transfer.Service
}

// NewTransferHandler creates a new transfer handler.
func NewTransferHandler(base *BaseHandler, service *transfer.Service) *TransferHandler {
	return &TransferHandler{
		BaseHandler: base,
		service:     service,
	}
}

// Create handles POST /transfers.
func (h *TransferHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.CreateTransferRequest
	if !h.BindJSON(c, &req) {
		return
	}

	t, err := req.ToEntity()
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid transfer request").WithDetail("error", err.Error()))
		return
	}

	if err := h.service.Create(ctx, t); err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.FromTransfer(t))
}

// Get handles GET /transfers/:id.
func (h *TransferHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()

	transferID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	t, err := h.service.GetByID(ctx, transferID)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromTransfer(t))
}

// Act handles POST /transfers/:id/actions - lifecycle transitions.
func (h *TransferHandler) Act(c *gin.Context) {
	ctx := c.Request.Context()

	transferID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	var req dto.TransferActionRequest
	if !h.BindJSON(c, &req) {
		return
	}

	t, err := h.service.Act(ctx, transferID, req.Action)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromTransfer(t))
}

// List handles GET /transfers.
func (h *TransferHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	filter := transfer.ListFilter{
		Limit:  h.ParseIntQuery(c, "limit", 50),
		Offset: h.ParseIntQuery(c, "offset", 0),
	}

	if statusStr := c.Query("status"); statusStr != "" {
		status := transfer.Status(statusStr)
		filter.Status = &status
	}

	if fromStr := c.Query("fromLocationId"); fromStr != "" {
		parsed, err := id.Parse(fromStr)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid fromLocationId format"))
			return
		}
		filter.FromLocationID = &parsed
	}

	if toStr := c.Query("toLocationId"); toStr != "" {
		parsed, err := id.Parse(toStr)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid toLocationId format"))
			return
		}
		filter.ToLocationID = &parsed
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

	transfers, err := h.service.List(ctx, filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]*dto.TransferResponse, len(transfers))
	for i := range transfers {
		items[i] = dto.FromTransfer(&transfers[i])
	}

	c.JSON(http.StatusOK, dto.TransferListResponse{Items: items})
}
