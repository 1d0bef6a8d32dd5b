package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nits22/smart-grocery-cart/internal/domain"
	"github.com/nits22/smart-grocery-cart/internal/usecase"
)

const serviceVersion = "1.0.0"

// CartService is the usecase surface the HTTP layer needs
type CartService interface {
	OptimizeCart(ctx context.Context, req *usecase.CartRequest) (*usecase.CartResult, error)
	OptimizeObservations(ctx context.Context, req *usecase.ObservationRequest) (*usecase.CartResult, error)
	ListStores() []domain.Store
	GetRun(ctx context.Context, id string) (*domain.Run, error)
	ListRuns(ctx context.Context, limit int) ([]domain.Run, error)
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	cartService CartService
}

// NewHandler creates a new HTTP handler
func NewHandler(cartService CartService) *Handler {
	return &Handler{cartService: cartService}
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "smart-grocery-cart",
		"version": serviceVersion,
	})
}

// OptimizeCart looks up prices for a shopping list and returns the cheapest plan
func (h *Handler) OptimizeCart(c *gin.Context) {
	if !h.ready(c) {
		return
	}

	var req usecase.CartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	result, err := h.cartService.OptimizeCart(c.Request.Context(), &req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// OptimizeObservations optimizes caller-supplied price observations
func (h *Handler) OptimizeObservations(c *gin.Context) {
	if !h.ready(c) {
		return
	}

	var req usecase.ObservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	result, err := h.cartService.OptimizeObservations(c.Request.Context(), &req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ListStores returns the configured stores and delivery fees
func (h *Handler) ListStores(c *gin.Context) {
	if !h.ready(c) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"stores": h.cartService.ListStores()})
}

// ListRuns returns recent optimization runs
func (h *Handler) ListRuns(c *gin.Context) {
	if !h.ready(c) {
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	runs, err := h.cartService.ListRuns(c.Request.Context(), limit)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

// GetRun returns one recorded run
func (h *Handler) GetRun(c *gin.Context) {
	if !h.ready(c) {
		return
	}

	run, err := h.cartService.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, run)
}

func (h *Handler) ready(c *gin.Context) bool {
	if h.cartService == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "cart service not configured"})
		return false
	}
	return true
}

// writeError maps domain errors to HTTP status codes
func (h *Handler) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	message := "internal server error"

	switch {
	case errors.Is(err, domain.ErrValidation):
		status, message = http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrSearchSpaceTooLarge):
		status, message = http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, domain.ErrRunNotFound):
		status, message = http.StatusNotFound, err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		status, message = http.StatusGatewayTimeout, "price lookup timed out"
	}

	if status >= http.StatusInternalServerError {
		zap.L().Error("request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err))
	}
	c.JSON(status, gin.H{"error": message})
}
