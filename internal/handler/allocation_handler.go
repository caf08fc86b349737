package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/hostel-allocation-api/internal/dto"
	"github.com/noah-isme/hostel-allocation-api/internal/models"
	"github.com/noah-isme/hostel-allocation-api/pkg/response"
)

type allocationService interface {
	SetPreferences(ctx context.Context, studentID string, req dto.SetPreferencesRequest) (*models.StudentProfile, error)
	DeletePreferences(ctx context.Context, studentID string) error
	GetProfile(ctx context.Context, studentID string) (*models.ProfileDetail, error)
	AutoAssign(ctx context.Context, studentID string) (*models.ProfileDetail, error)
	BatchAutoAssign(ctx context.Context, actorID string) (*models.BatchAssignResult, error)
}

// AllocationHandler serves preference management and room assignment.
type AllocationHandler struct {
	service allocationService
}

// NewAllocationHandler constructs the handler.
func NewAllocationHandler(service allocationService) *AllocationHandler {
	return &AllocationHandler{service: service}
}

// SetPreferences godoc
// @Summary Save room preferences
// @Description Creates or replaces the caller's preferences. An existing room assignment is kept.
// @Tags Student
// @Accept json
// @Produce json
// @Param payload body dto.SetPreferencesRequest true "Preferences"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /student/preferences [post]
func (h *AllocationHandler) SetPreferences(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req dto.SetPreferencesRequest
	if !bindJSON(c, &req, "invalid preferences payload") {
		return
	}

	profile, err := h.service.SetPreferences(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, profile, nil)
}

// GetPreferences godoc
// @Summary Get room preferences
// @Tags Student
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /student/preferences [get]
func (h *AllocationHandler) GetPreferences(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	detail, err := h.service.GetProfile(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail.StudentProfile, nil)
}

// DeletePreferences godoc
// @Summary Delete room preferences
// @Description Removes the caller's profile and frees the assigned bed, if any.
// @Tags Student
// @Success 204
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /student/preferences [delete]
func (h *AllocationHandler) DeletePreferences(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	if err := h.service.DeletePreferences(c.Request.Context(), claims.UserID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Profile godoc
// @Summary Allocation profile
// @Description Returns the caller's profile with the assigned room resolved.
// @Tags Student
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /student/profile [get]
func (h *AllocationHandler) Profile(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	detail, err := h.service.GetProfile(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Assign godoc
// @Summary Auto-assign a room
// @Tags Student
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /student/assign [post]
func (h *AllocationHandler) Assign(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	detail, err := h.service.AutoAssign(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// BatchAssign godoc
// @Summary Assign every pending student
// @Description Runs auto-assignment for each pending profile. Individual failures are reported, not fatal.
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/assign/batch [post]
func (h *AllocationHandler) BatchAssign(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	result, err := h.service.BatchAutoAssign(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
