package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"stockpile/internal/core/apperror"
	"stockpile/internal/core/id"
	"stockpile/internal/domain/alert"
	"stockpile/internal/infrastructure/http/v1/dto"
)

// AlertHandler handles HTTP requests for stock alerts.
type AlertHandler struct {
	*BaseHandler
	service   *alert.Service
	evaluator *alert.Evaluator
}

// NewAlertHandler creates a new alert handler.
func NewAlertHandler(base *BaseHandler, service *alert.Service, evaluator *alert.Evaluator) *AlertHandler {
	return &AlertHandler{
		BaseHandler: base,
		service:     service,
		evaluator:   evaluator,
	}
}

// Get handles GET /alerts/:id.
func (h *AlertHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()

	alertID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	a, err := h.service.GetByID(ctx, alertID)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromAlert(a))
}

// List handles GET /alerts.
func (h *AlertHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	filter := alert.ListFilter{
		ActiveOnly: c.Query("activeOnly") != "false",
		Limit:      h.ParseIntQuery(c, "limit", 50),
		Offset:     h.ParseIntQuery(c, "offset", 0),
	}

	if pStr := c.Query("productId"); pStr != "" {
		parsed, err := id.Parse(pStr)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid productId format"))
			return
		}
		filter.ProductID = &parsed
	}

	if typeStr := c.Query("type"); typeStr != "" {
		alertType := alert.AlertType(typeStr)
		filter.Type = &alertType
	}

	if sevStr := c.Query("severity"); sevStr != "" {
		severity := alert.Severity(sevStr)
		filter.Severity = &severity
	}

	alerts, err := h.service.List(ctx, filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]*dto.AlertResponse, len(alerts))
	for i := range alerts {
		items[i] = dto.FromAlert(&alerts[i])
	}

	c.JSON(http.StatusOK, dto.AlertListResponse{Items: items})
}

// Resolve handles POST /alerts/:id/resolve.
func (h *AlertHandler) Resolve(c *gin.Context) {
	ctx := c.Request.Context()

	alertID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	a, err := h.service.Resolve(ctx, alertID)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromAlert(a))
}

// Dismiss handles POST /alerts/:id/dismiss.
func (h *AlertHandler) Dismiss(c *gin.Context) {
	ctx := c.Request.Context()

	alertID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	a, err := h.service.Dismiss(ctx, alertID)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromAlert(a))
}

// Evaluate handles POST /alerts/evaluate - on-demand evaluation for a product.
func (h *AlertHandler) Evaluate(c *gin.Context) {
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

	if err := h.evaluator.EvaluateStock(ctx, productID); err != nil {
		h.Error(c, err)
		return
	}

	h.Success(c, "evaluation completed")
}
