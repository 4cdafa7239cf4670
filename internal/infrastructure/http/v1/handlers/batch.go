package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"stockpile/internal/core/apperror"
	"stockpile/internal/core/id"
	"stockpile/internal/domain/batch"
	"stockpile/internal/infrastructure/http/v1/dto"
)

// BatchHandler handles HTTP requests for batches.
type BatchHandler struct {
	*BaseHandler
	service *batch.Service
}

// NewBatchHandler creates a new batch handler.
func NewBatchHandler(base *BaseHandler, service *batch.Service) *BatchHandler {
	return &BatchHandler{
		BaseHandler: base,
		service:     service,
	}
}

// Create handles POST /batches.
func (h *BatchHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.CreateBatchRequest
	if !h.BindJSON(c, &req) {
		return
	}

	b, err := req.ToEntity()
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid productId format"))
		return
	}

	if err := h.service.Create(ctx, b); err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.FromBatch(b))
}

// Get handles GET /batches/:id.
func (h *BatchHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()

	batchID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	b, err := h.service.GetByID(ctx, batchID)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromBatch(b))
}

// Update handles PUT /batches/:id.
func (h *BatchHandler) Update(c *gin.Context) {
	ctx := c.Request.Context()

	batchID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	var req dto.UpdateBatchRequest
	if !h.BindJSON(c, &req) {
		return
	}

	b, err := h.service.GetByID(ctx, batchID)
	if err != nil {
		h.Error(c, err)
		return
	}

	req.ApplyTo(b)

	if err := h.service.Update(ctx, b); err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromBatch(b))
}

// Delete handles DELETE /batches/:id.
func (h *BatchHandler) Delete(c *gin.Context) {
	ctx := c.Request.Context()

	batchID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	if err := h.service.Delete(ctx, batchID); err != nil {
		h.Error(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// List handles GET /batches.
func (h *BatchHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	filter := batch.ListFilter{
		Limit:  h.ParseIntQuery(c, "limit", 50),
		Offset: h.ParseIntQuery(c, "offset", 0),
	}

	if pStr := c.Query("productId"); pStr != "" {
		parsed, err := id.Parse(pStr)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid productId format"))
			return
		}
		filter.ProductID = &parsed
	}

	if beforeStr := c.Query("expiringBefore"); beforeStr != "" {
		parsed, err := time.Parse(time.RFC3339, beforeStr)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid expiringBefore format (RFC3339 expected)"))
			return
		}
		unix := parsed.Unix()
		filter.ExpiringBefore = &unix
	}

	batches, err := h.service.List(ctx, filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]*dto.BatchResponse, len(batches))
	for i := range batches {
		items[i] = dto.FromBatch(&batches[i])
	}

	c.JSON(http.StatusOK, dto.BatchListResponse{Items: items})
}
