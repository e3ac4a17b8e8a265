package handler

import (
	"net/http"

	"github.com/DevChiJay/url-shortener-with-QR/internal/middleware"
	"github.com/DevChiJay/url-shortener-with-QR/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type StatsHandler struct {
	service service.StatisticsService
	logger  *zap.Logger
}

func NewStatsHandler(service service.StatisticsService, logger *zap.Logger) *StatsHandler {
	return &StatsHandler{
		service: service,
		logger:  logger,
	}
}

// GetStats godoc
// @Summary Get click statistics for a short link
// @Description Total clicks with per-day, referrer, browser and country breakdowns
// @Tags links
// @Produce json
// @Param code path string true "Short code"
// @Success 200 {object} models.Statistics
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/links/{code}/stats [get]
func (h *StatsHandler) GetStats(c *gin.Context) {
	code := c.Param("code")

	stats, err := h.service.GetByShortCode(c.Request.Context(), code, middleware.OwnerFromContext(c))
	if err != nil {
		h.logger.Warn("Failed to get stats", zap.String("code", code), zap.Error(err))
		renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// GetUserStats godoc
// @Summary Get statistics for all of the caller's links
// @Description Statistics of every link of the authenticated owner; links without statistics are omitted
// @Tags user
// @Produce json
// @Success 200 {array} models.Statistics
// @Failure 401 {object} ErrorResponse
// @Router /api/v1/user/stats [get]
func (h *StatsHandler) GetUserStats(c *gin.Context) {
	owner := middleware.OwnerFromContext(c)
	if owner == nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "auth_required",
			Message: "Authentication is required for this operation",
		})
		return
	}

	stats, err := h.service.GetByOwner(c.Request.Context(), *owner)
	if err != nil {
		h.logger.Error("Failed to get user stats", zap.Error(err))
		renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}
