package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// UserIDHeader заголовок с идентификатором пользователя, сгенерированным
// устройством при первом запуске
const UserIDHeader = "X-User-ID"

const userIDContextKey = "user_id"

// UserIdentity извлекает идентичность пользователя из заголовка.
// Запросы без валидного UUID отклоняются.
func UserIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(UserIDHeader)
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "missing " + UserIDHeader + " header"})
			return
		}
		userID, err := uuid.Parse(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid " + UserIDHeader + " header"})
			return
		}
		c.Set(userIDContextKey, userID)
		c.Next()
	}
}

// UserID возвращает идентичность пользователя, установленную UserIdentity
func UserID(c *gin.Context) (uuid.UUID, bool) {
	value, exists := c.Get(userIDContextKey)
	if !exists {
		return uuid.Nil, false
	}
	userID, ok := value.(uuid.UUID)
	return userID, ok
}
