package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/hostel-allocation-api/internal/dto"
	"github.com/noah-isme/hostel-allocation-api/internal/middleware"
	"github.com/noah-isme/hostel-allocation-api/internal/models"
	"github.com/noah-isme/hostel-allocation-api/pkg/response"
)

type roomService interface {
	Upsert(ctx context.Context, adminID string, req dto.UpsertRoomRequest) (*models.Room, error)
	GetRoom(ctx context.Context, id string) (*models.Room, error)
	ListAvailability(ctx context.Context, query dto.AvailabilityQuery) ([]models.RoomAvailability, bool, error)
	Export(ctx context.Context, query dto.ExportQuery) (*dto.ExportFile, error)
}

// RoomHandler serves the room catalogue.
type RoomHandler struct {
	service roomService
}

// NewRoomHandler constructs the handler.
func NewRoomHandler(service roomService) *RoomHandler {
	return &RoomHandler{service: service}
}

// Availability godoc
// @Summary Room availability
// @Description Lists rooms with their free beds. Rooms at capacity are included with zero availability.
// @Tags Rooms
// @Produce json
// @Param hostelNumber query int false "Hostel number"
// @Param hostelName query string false "Named hostel"
// @Param blockType query string false "normal or premium"
// @Param seater query int false "Beds per room"
// @Param ac query bool false "Air conditioned"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /rooms/availability [get]
func (h *RoomHandler) Availability(c *gin.Context) {
	var query dto.AvailabilityQuery
	if !bindQuery(c, &query) {
		return
	}

	start := time.Now()
	items, cacheHit, err := h.service.ListAvailability(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	meta := middleware.ExtractMeta(c)
	if meta == nil {
		meta = map[string]interface{}{}
	}
	meta["processing_time_ms"] = time.Since(start).Milliseconds()
	response.JSON(c, http.StatusOK, items, nil, meta)
}

// Upsert godoc
// @Summary Create or update a room
// @Tags Admin
// @Accept json
// @Produce json
// @Param payload body dto.UpsertRoomRequest true "Room"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/rooms/upsert [post]
func (h *RoomHandler) Upsert(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req dto.UpsertRoomRequest
	if !bindJSON(c, &req, "invalid room payload") {
		return
	}

	room, err := h.service.Upsert(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, room, nil)
}

// Get godoc
// @Summary Get a room with its occupants
// @Tags Admin
// @Produce json
// @Param id path string true "Room ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/rooms/{id} [get]
func (h *RoomHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "room")
	if !ok {
		return
	}
	room, err := h.service.GetRoom(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, room, nil)
}

// Export godoc
// @Summary Export the occupancy roster
// @Tags Admin
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv (default) or pdf"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/rooms/export [get]
func (h *RoomHandler) Export(c *gin.Context) {
	var query dto.ExportQuery
	if !bindQuery(c, &query) {
		return
	}
	file, err := h.service.Export(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Body)
}
