package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Ключ контекста, под которым хранится идентификатор владельца
const ownerContextKey = "owner_id"

// APIKeyConfig конфигурация для API key аутентификации
type APIKeyConfig struct {
	// ValidKeys карта валидных API ключей к идентификаторам владельцев
	ValidKeys map[string]string
	// HeaderName имя заголовка для API ключа (по умолчанию: X-API-Key)
	HeaderName string
	// Optional если true, запросы без API ключа пропускаются как анонимные
	Optional bool
}

// DefaultAPIKeyConfig конфигурация по умолчанию
var DefaultAPIKeyConfig = APIKeyConfig{
	HeaderName: "X-API-Key",
	Optional:   false,
}

// APIKey middleware аутентификации по API ключу. Ключ отображается в
// непрозрачный идентификатор владельца - дальше по стеку ядро работает
// только с ним.
type APIKey struct {
	config APIKeyConfig
}

// NewAPIKey создаёт новый API key middleware
func NewAPIKey(config APIKeyConfig) *APIKey {
	if config.HeaderName == "" {
		config.HeaderName = DefaultAPIKeyConfig.HeaderName
	}
	return &APIKey{config: config}
}

// Middleware возвращает Gin middleware handler для API key аутентификации
func (ak *APIKey) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := c.GetHeader(ak.config.HeaderName)

		// Также проверяем заголовок Authorization с Bearer схемой
		if apiKey == "" {
			authHeader := c.GetHeader("Authorization")
			if strings.HasPrefix(authHeader, "Bearer ") {
				apiKey = strings.TrimPrefix(authHeader, "Bearer ")
			}
		}

		if apiKey == "" {
			if ak.config.Optional {
				c.Next()
				return
			}
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "missing_api_key",
				"message": "Требуется API ключ. Передайте его через заголовок X-API-Key или Authorization: Bearer",
			})
			c.Abort()
			return
		}

		// Валидация API ключа с использованием constant-time comparison
		valid := false
		var ownerID string
		for validKey, owner := range ak.config.ValidKeys {
			if subtle.ConstantTimeCompare([]byte(apiKey), []byte(validKey)) == 1 {
				valid = true
				ownerID = owner
				break
			}
		}

		if !valid {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "invalid_api_key",
				"message": "Невалидный API ключ",
			})
			c.Abort()
			return
		}

		c.Set(ownerContextKey, ownerID)
		c.Next()
	}
}

// RequireAPIKey хелпер для middleware, требующего API ключ
func RequireAPIKey(validKeys map[string]string) gin.HandlerFunc {
	ak := NewAPIKey(APIKeyConfig{
		ValidKeys:  validKeys,
		HeaderName: "X-API-Key",
		Optional:   false,
	})
	return ak.Middleware()
}

// OptionalAPIKey хелпер для middleware, опционально принимающего API ключ
func OptionalAPIKey(validKeys map[string]string) gin.HandlerFunc {
	ak := NewAPIKey(APIKeyConfig{
		ValidKeys:  validKeys,
		HeaderName: "X-API-Key",
		Optional:   true,
	})
	return ak.Middleware()
}

// OwnerFromContext извлекает идентификатор владельца из контекста.
// Nil означает анонимный запрос.
func OwnerFromContext(c *gin.Context) *string {
	value, exists := c.Get(ownerContextKey)
	if !exists {
		return nil
	}
	owner, ok := value.(string)
	if !ok || owner == "" {
		return nil
	}
	return &owner
}
