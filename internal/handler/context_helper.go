package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/lgu-assessor/faas-api/internal/middleware"
	"github.com/lgu-assessor/faas-api/internal/models"
	appErrors "github.com/lgu-assessor/faas-api/pkg/errors"
)

// currentActor reconstructs the acting user from the JWT claims the auth
// middleware stored on the context.
func currentActor(c *gin.Context) (*models.User, error) {
	claimsValue, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil, appErrors.ErrUnauthorized
	}
	claims, ok := claimsValue.(*models.JWTClaims)
	if !ok {
		return nil, appErrors.ErrUnauthorized
	}
	return &models.User{
		ID:       claims.UserID,
		Email:    claims.Email,
		FullName: claims.FullName,
		Role:     claims.Role,
	}, nil
}
