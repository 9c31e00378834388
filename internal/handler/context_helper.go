package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/das-api/internal/middleware"
	"github.com/noah-isme/das-api/internal/models"
	appErrors "github.com/noah-isme/das-api/pkg/errors"
	"github.com/noah-isme/das-api/pkg/response"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	return middleware.Claims(c)
}

// actorFromContext resolves the caller. It writes a 401 and returns false
// when the request carries no verified claims.
func actorFromContext(c *gin.Context) (models.Actor, bool) {
	claims := claimsFromContext(c)
	if claims == nil || claims.UserID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return models.Actor{}, false
	}
	return claims.Actor(), true
}

func bindJSON(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.WrapAs(appErrors.ErrValidation, err, "invalid request body"))
		return false
	}
	return true
}

func bindQuery(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindQuery(dest); err != nil {
		response.Error(c, appErrors.WrapAs(appErrors.ErrValidation, err, "invalid query parameters"))
		return false
	}
	return true
}
