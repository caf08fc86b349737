package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/noah-isme/hostel-allocation-api/internal/middleware"
	"github.com/noah-isme/hostel-allocation-api/internal/models"
	appErrors "github.com/noah-isme/hostel-allocation-api/pkg/errors"
	"github.com/noah-isme/hostel-allocation-api/pkg/response"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	claims, ok := middleware.Claims(c)
	if !ok {
		return nil
	}
	return claims
}

// requireClaims writes a 401 and returns nil when the caller is anonymous.
func requireClaims(c *gin.Context) *models.JWTClaims {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
	}
	return claims
}

func bindJSON(c *gin.Context, dst interface{}, message string) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message))
		return false
	}
	return true
}

func bindQuery(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindQuery(dst); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid query parameters"))
		return false
	}
	return true
}

// pathID returns the :id parameter. Identifiers are UUIDs, so anything else
// cannot name an existing record and is answered with 404.
func pathID(c *gin.Context, resource string) (string, bool) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, resource+" not found"))
		return "", false
	}
	return id, true
}

// requireUUID writes a validation error when a non-empty field is not a UUID.
func requireUUID(c *gin.Context, field, value string) bool {
	if value == "" {
		return true
	}
	if _, err := uuid.Parse(value); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, field+" must be a UUID"))
		return false
	}
	return true
}
