package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/hostel-allocation-api/internal/dto"
	"github.com/noah-isme/hostel-allocation-api/internal/models"
	"github.com/noah-isme/hostel-allocation-api/pkg/response"
)

type swapService interface {
	RequestSwap(ctx context.Context, fromUser string, req dto.RequestSwapRequest) (*models.SwapRequest, error)
	DecideSwap(ctx context.Context, swapID, adminID string, req dto.DecisionRequest) (*models.SwapRequest, error)
	CancelSwap(ctx context.Context, swapID, studentID string) (*models.SwapRequest, error)
	List(ctx context.Context, query dto.SwapQuery) ([]models.SwapRequest, error)
}

// SwapHandler exposes the swap workflow.
type SwapHandler struct {
	service swapService
}

// NewSwapHandler constructs the handler.
func NewSwapHandler(service swapService) *SwapHandler {
	return &SwapHandler{service: service}
}

// Request godoc
// @Summary Request a room swap
// @Tags Student
// @Accept json
// @Produce json
// @Param payload body dto.RequestSwapRequest true "Swap counterpart"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /student/swap [post]
func (h *SwapHandler) Request(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req dto.RequestSwapRequest
	if !bindJSON(c, &req, "invalid swap payload") || !requireUUID(c, "toUserId", req.ToUserID) {
		return
	}

	swap, err := h.service.RequestSwap(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, swap)
}

// Mine godoc
// @Summary List own swap requests
// @Tags Student
// @Produce json
// @Param status query string false "Status filter"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /student/swaps [get]
func (h *SwapHandler) Mine(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var query dto.SwapQuery
	if !bindQuery(c, &query) {
		return
	}
	query.UserID = claims.UserID
	h.list(c, query)
}

// Cancel godoc
// @Summary Cancel a pending swap
// @Description Only the initiator may cancel. Their profile returns to assigned.
// @Tags Student
// @Produce json
// @Param id path string true "Swap ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /student/swap/{id}/cancel [post]
func (h *SwapHandler) Cancel(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	id, ok := pathID(c, "swap request")
	if !ok {
		return
	}
	swap, err := h.service.CancelSwap(c.Request.Context(), id, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, swap, nil)
}

// List godoc
// @Summary List swap requests
// @Tags Admin
// @Produce json
// @Param status query string false "Status filter"
// @Param userId query string false "Initiator or counterpart"
// @Param limit query int false "Page size, at most 200"
// @Param offset query int false "Rows to skip"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/swaps [get]
func (h *SwapHandler) List(c *gin.Context) {
	var query dto.SwapQuery
	if !bindQuery(c, &query) || !requireUUID(c, "userId", query.UserID) {
		return
	}
	h.list(c, query)
}

func (h *SwapHandler) list(c *gin.Context, query dto.SwapQuery) {
	swaps, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, swaps, nil)
}

// Decide godoc
// @Summary Approve or reject a swap
// @Tags Admin
// @Accept json
// @Produce json
// @Param id path string true "Swap ID"
// @Param payload body dto.DecisionRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/swaps/{id}/decide [post]
func (h *SwapHandler) Decide(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	id, ok := pathID(c, "swap request")
	if !ok {
		return
	}
	var req dto.DecisionRequest
	if !bindJSON(c, &req, "invalid decision payload") {
		return
	}

	swap, err := h.service.DecideSwap(c.Request.Context(), id, claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, swap, nil)
}
