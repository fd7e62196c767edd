package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/room-booker/internal/middleware"
	"github.com/noah-isme/room-booker/internal/models"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// operatorFromContext names the caller for audit fields; anonymous requests are attributed to "api".
func operatorFromContext(c *gin.Context) string {
	if claims := claimsFromContext(c); claims != nil && claims.OperatorID != "" {
		return claims.OperatorID
	}
	return "api"
}
