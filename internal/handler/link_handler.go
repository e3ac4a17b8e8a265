package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/DevChiJay/url-shortener-with-QR/internal/middleware"
	"github.com/DevChiJay/url-shortener-with-QR/internal/models"
	"github.com/DevChiJay/url-shortener-with-QR/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/mileusna/useragent"
	"go.uber.org/zap"
)

type LinkHandler struct {
	service        service.ShortenerService
	clickProcessor service.ClickProcessor
	baseURL        string
	logger         *zap.Logger
}

func NewLinkHandler(
	service service.ShortenerService,
	clickProcessor service.ClickProcessor,
	baseURL string,
	logger *zap.Logger,
) *LinkHandler {
	return &LinkHandler{
		service:        service,
		clickProcessor: clickProcessor,
		baseURL:        baseURL,
		logger:         logger,
	}
}

type CreateLinkRequest struct {
	URL            string  `json:"url" binding:"required"`
	ExpirationDays int     `json:"expiration_days,omitempty"`
	CustomSlug     *string `json:"custom_slug,omitempty"`
	Description    *string `json:"description,omitempty"`
	Domain         *string `json:"domain,omitempty"`
}

type UpdateLinkRequest struct {
	ExpiresAt   *string `json:"expires_at,omitempty"`
	Description *string `json:"description,omitempty"`
	CustomSlug  *string `json:"custom_slug,omitempty"`
}

type UpdateExpirationRequest struct {
	Days int `json:"days" binding:"required"`
}

type LinkResponse struct {
	ShortCode    string    `json:"short_code"`
	ShortURL     string    `json:"short_url"`
	OriginalURL  string    `json:"original_url"`
	Description  *string   `json:"description,omitempty"`
	CustomDomain *string   `json:"custom_domain,omitempty"`
	ClickCount   int64     `json:"click_count"`
	ExpiresAt    time.Time `json:"expires_at"`
	CreatedAt    time.Time `json:"created_at"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (h *LinkHandler) toResponse(url *models.Url) LinkResponse {
	return LinkResponse{
		ShortCode:    url.ShortCode,
		ShortURL:     h.baseURL + "/" + url.ShortCode,
		OriginalURL:  url.OriginalURL,
		Description:  url.Description,
		CustomDomain: url.CustomDomain,
		ClickCount:   url.ClickCount,
		ExpiresAt:    url.ExpiresAt,
		CreatedAt:    url.CreatedAt,
	}
}

// renderError отображает ошибки сервиса в HTTP статусы со стабильными
// кодами ошибок в теле ответа
func renderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "Link not found or expired",
		})
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, ErrorResponse{
			Error:   "forbidden",
			Message: "Link belongs to another owner",
		})
	case errors.Is(err, service.ErrAuthRequired):
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "auth_required",
			Message: "Authentication is required for this operation",
		})
	case errors.Is(err, service.ErrSlugTaken):
		c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "slug_taken",
			Message: "Requested short code is already in use",
		})
	case errors.Is(err, service.ErrQuotaExceeded):
		c.JSON(http.StatusForbidden, ErrorResponse{
			Error:   "quota_exceeded",
			Message: "Active link limit reached",
		})
	case errors.Is(err, service.ErrInvalidURL):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_url",
			Message: "URL must use http or https scheme",
		})
	case errors.Is(err, service.ErrInvalidSlug):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_slug",
			Message: "Custom slug must be 4-12 characters of [A-Za-z0-9_-]",
		})
	case errors.Is(err, service.ErrInvalidDate):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_date",
			Message: "Expiration must be a future RFC3339 date or positive day count",
		})
	case errors.Is(err, service.ErrNoFields):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "no_fields",
			Message: "At least one field must be provided",
		})
	case errors.Is(err, service.ErrGenerationExhausted):
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "generation_exhausted",
			Message: "Could not allocate a unique short code",
		})
	default:
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Internal server error",
		})
	}
}

// CreateLink godoc
// @Summary Create a short link
// @Description Create a new shortened URL with an optional custom slug
// @Tags links
// @Accept json
// @Produce json
// @Param request body CreateLinkRequest true "Link creation request"
// @Success 201 {object} LinkResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /api/v1/links [post]
func (h *LinkHandler) CreateLink(c *gin.Context) {
	var req CreateLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", zap.Error(err))
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: err.Error(),
		})
		return
	}

	input := &models.ShortenInput{
		OriginalURL:    req.URL,
		BaseURL:        h.baseURL,
		ExpirationDays: req.ExpirationDays,
		CustomSlug:     req.CustomSlug,
		Description:    req.Description,
		Domain:         req.Domain,
		OwnerID:        middleware.OwnerFromContext(c),
	}

	url, err := h.service.Shorten(c.Request.Context(), input)
	if err != nil {
		h.logger.Warn("Failed to create link", zap.Error(err))
		renderError(c, err)
		return
	}

	c.JSON(http.StatusCreated, h.toResponse(url))
}

// Redirect godoc
// @Summary Redirect to original URL
// @Description Redirect to the original URL by short code
// @Tags links
// @Produce json
// @Param code path string true "Short code"
// @Success 307 {object} nil
// @Failure 404 {object} ErrorResponse
// @Router /{code} [get]
func (h *LinkHandler) Redirect(c *gin.Context) {
	code := c.Param("code")

	url, err := h.service.Resolve(c.Request.Context(), code)
	if err != nil {
		h.logger.Warn("Link not found", zap.String("code", code), zap.Error(err))
		renderError(c, err)
		return
	}

	// Асинхронная запись статистики: браузер из User-Agent, страна из
	// geo-заголовка CDN, пустые значения получат дефолты в процессоре
	clickEvent := &models.ClickEvent{
		ShortCode: code,
		Referrer:  c.Request.Referer(),
		Browser:   useragent.Parse(c.Request.UserAgent()).Name,
		Country:   c.GetHeader("CF-IPCountry"),
	}
	if err := h.clickProcessor.RecordClick(c.Request.Context(), clickEvent); err != nil {
		h.logger.Debug("Failed to record click (non-blocking)", zap.Error(err))
	}

	c.Redirect(http.StatusTemporaryRedirect, url.OriginalURL)
}

// GetQR godoc
// @Summary Get the QR code for a short link
// @Description Returns the stored QR code PNG encoding the short URL
// @Tags links
// @Produce png
// @Param code path string true "Short code"
// @Success 200 {string} binary "PNG image"
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/links/{code}/qr [get]
func (h *LinkHandler) GetQR(c *gin.Context) {
	code := c.Param("code")

	url, err := h.service.Resolve(c.Request.Context(), code)
	if err != nil {
		renderError(c, err)
		return
	}
	if len(url.QRImage) == 0 {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "QR code is not available for this link",
		})
		return
	}

	c.Header("Content-Disposition", `inline; filename="`+code+`.png"`)
	c.Data(http.StatusOK, "image/png", url.QRImage)
}

// UpdateLink godoc
// @Summary Update a short link
// @Description Partially update expiration, description or custom slug
// @Tags links
// @Accept json
// @Produce json
// @Param code path string true "Short code"
// @Param request body UpdateLinkRequest true "Fields to update"
// @Success 200 {object} LinkResponse
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /api/v1/links/{code} [patch]
func (h *LinkHandler) UpdateLink(c *gin.Context) {
	code := c.Param("code")

	var req UpdateLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: err.Error(),
		})
		return
	}

	input := &models.UpdateInput{
		ExpiresAt:   req.ExpiresAt,
		Description: req.Description,
		CustomSlug:  req.CustomSlug,
	}

	url, err := h.service.Update(c.Request.Context(), code, input, h.baseURL, middleware.OwnerFromContext(c))
	if err != nil {
		h.logger.Warn("Failed to update link", zap.String("code", code), zap.Error(err))
		renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, h.toResponse(url))
}

// UpdateExpiration godoc
// @Summary Extend the lifetime of a short link
// @Description Reset the expiration to the given number of days from now
// @Tags links
// @Accept json
// @Produce json
// @Param code path string true "Short code"
// @Param request body UpdateExpirationRequest true "New lifetime in days"
// @Success 200 {object} LinkResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/links/{code}/expiration [patch]
func (h *LinkHandler) UpdateExpiration(c *gin.Context) {
	code := c.Param("code")

	var req UpdateExpirationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: err.Error(),
		})
		return
	}

	url, err := h.service.UpdateExpiration(c.Request.Context(), code, req.Days, middleware.OwnerFromContext(c))
	if err != nil {
		h.logger.Warn("Failed to update expiration", zap.String("code", code), zap.Error(err))
		renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, h.toResponse(url))
}

// DeleteLink godoc
// @Summary Delete a short link
// @Description Delete a shortened URL and its statistics by short code
// @Tags links
// @Produce json
// @Param code path string true "Short code"
// @Success 200 {object} map[string]string
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/links/{code} [delete]
func (h *LinkHandler) DeleteLink(c *gin.Context) {
	code := c.Param("code")

	err := h.service.Delete(c.Request.Context(), code, middleware.OwnerFromContext(c))
	if err != nil {
		var deleteErr *service.DeleteError
		if errors.As(err, &deleteErr) {
			// Частичный сбой: ссылка и статистика разошлись, ответ
			// называет обе половины
			h.logger.Error("Partial delete failure", zap.String("code", code), zap.Error(err))
			c.JSON(http.StatusInternalServerError, ErrorResponse{
				Error:   "partial_delete",
				Message: deleteErr.Error(),
			})
			return
		}
		h.logger.Warn("Failed to delete link", zap.String("code", code), zap.Error(err))
		renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Link deleted successfully"})
}

// GetUserLinks godoc
// @Summary List the caller's links
// @Description All links of the authenticated owner, newest first
// @Tags user
// @Produce json
// @Success 200 {array} LinkResponse
// @Failure 401 {object} ErrorResponse
// @Router /api/v1/user/links [get]
func (h *LinkHandler) GetUserLinks(c *gin.Context) {
	owner := middleware.OwnerFromContext(c)
	if owner == nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "auth_required",
			Message: "Authentication is required for this operation",
		})
		return
	}

	urls, err := h.service.ListByOwner(c.Request.Context(), *owner)
	if err != nil {
		h.logger.Error("Failed to list links", zap.Error(err))
		renderError(c, err)
		return
	}

	responses := make([]LinkResponse, 0, len(urls))
	for _, url := range urls {
		responses = append(responses, h.toResponse(url))
	}
	c.JSON(http.StatusOK, responses)
}
