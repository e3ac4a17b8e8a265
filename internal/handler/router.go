package handler

import (
	"github.com/DevChiJay/url-shortener-with-QR/internal/middleware"
	"github.com/DevChiJay/url-shortener-with-QR/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func NewRouter(
	shortenerService service.ShortenerService,
	statisticsService service.StatisticsService,
	clickProcessor service.ClickProcessor,
	rateLimiter *middleware.RateLimiter,
	apiKeys map[string]string,
	baseURL string,
	logger *zap.Logger,
) *gin.Engine {
	router := gin.Default()

	// Middleware для логгирования
	router.Use(func(c *gin.Context) {
		logger.Info("Request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("ip", c.ClientIP()),
		)
		c.Next()
	})

	// Rate limiting для всех запросов
	router.Use(rateLimiter.Middleware())

	linkHandler := NewLinkHandler(shortenerService, clickProcessor, baseURL, logger)
	statsHandler := NewStatsHandler(statisticsService, logger)

	// API v.1
	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", HealthCheck)

		// API ключ опционален: анонимные запросы проходят без владельца,
		// валидный ключ даёт идентификатор владельца
		v1.Use(middleware.OptionalAPIKey(apiKeys))

		v1.POST("/links", linkHandler.CreateLink)
		v1.GET("/links/:code/qr", linkHandler.GetQR)
		v1.PATCH("/links/:code", linkHandler.UpdateLink)
		v1.PATCH("/links/:code/expiration", linkHandler.UpdateExpiration)
		v1.DELETE("/links/:code", linkHandler.DeleteLink)
		v1.GET("/links/:code/stats", statsHandler.GetStats)

		// Личный кабинет требует API ключ
		user := v1.Group("/user")
		user.Use(middleware.RequireAPIKey(apiKeys))
		{
			user.GET("/links", linkHandler.GetUserLinks)
			user.GET("/stats", statsHandler.GetUserStats)
		}
	}

	// Редирект (корневой путь) - без API key проверки
	router.GET("/:code", linkHandler.Redirect)

	return router
}
