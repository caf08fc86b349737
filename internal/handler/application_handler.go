package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/hostel-allocation-api/internal/dto"
	"github.com/noah-isme/hostel-allocation-api/internal/models"
	"github.com/noah-isme/hostel-allocation-api/pkg/response"
)

type changeApplicationService interface {
	Apply(ctx context.Context, userID string, req dto.ApplyChangeRequest) (*models.ChangeApplication, error)
	Decide(ctx context.Context, id, adminID string, req dto.DecisionRequest) (*models.ApplicationOutcome, error)
	List(ctx context.Context, query dto.ApplicationQuery) ([]models.ChangeApplication, error)
}

// ApplicationHandler exposes bed-type and hostel change applications.
type ApplicationHandler struct {
	service changeApplicationService
}

// NewApplicationHandler constructs the handler.
func NewApplicationHandler(service changeApplicationService) *ApplicationHandler {
	return &ApplicationHandler{service: service}
}

// Apply godoc
// @Summary Apply for a bed type or hostel change
// @Tags Student
// @Accept json
// @Produce json
// @Param payload body dto.ApplyChangeRequest true "Application"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /student/change [post]
func (h *ApplicationHandler) Apply(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req dto.ApplyChangeRequest
	if !bindJSON(c, &req, "invalid application payload") {
		return
	}

	app, err := h.service.Apply(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, app)
}

// Mine godoc
// @Summary List own change applications
// @Tags Student
// @Produce json
// @Param status query string false "Status filter"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /student/applications [get]
func (h *ApplicationHandler) Mine(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var query dto.ApplicationQuery
	if !bindQuery(c, &query) {
		return
	}
	query.UserID = claims.UserID
	h.list(c, query)
}

// List godoc
// @Summary List change applications
// @Tags Admin
// @Produce json
// @Param status query string false "Status filter"
// @Param userId query string false "Applicant"
// @Param limit query int false "Page size, at most 200"
// @Param offset query int false "Rows to skip"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/applications [get]
func (h *ApplicationHandler) List(c *gin.Context) {
	var query dto.ApplicationQuery
	if !bindQuery(c, &query) || !requireUUID(c, "userId", query.UserID) {
		return
	}
	h.list(c, query)
}

func (h *ApplicationHandler) list(c *gin.Context, query dto.ApplicationQuery) {
	apps, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, apps, nil)
}

// Decide godoc
// @Summary Approve or reject a change application
// @Description Approval rewrites the applicant's preferences and re-runs matching. No match leaves the student pending.
// @Tags Admin
// @Accept json
// @Produce json
// @Param id path string true "Application ID"
// @Param payload body dto.DecisionRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/applications/{id}/decide [post]
func (h *ApplicationHandler) Decide(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	id, ok := pathID(c, "change application")
	if !ok {
		return
	}
	var req dto.DecisionRequest
	if !bindJSON(c, &req, "invalid decision payload") {
		return
	}

	outcome, err := h.service.Decide(c.Request.Context(), id, claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, outcome, nil)
}
