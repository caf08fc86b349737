package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/noah-isme/hostel-allocation-api/internal/dto"
	"github.com/noah-isme/hostel-allocation-api/internal/models"
	"github.com/noah-isme/hostel-allocation-api/internal/repository"
	appErrors "github.com/noah-isme/hostel-allocation-api/pkg/errors"
	"github.com/noah-isme/hostel-allocation-api/pkg/export"
)

type roomCatalogStore interface {
	FindByID(ctx context.Context, id string) (*models.Room, error)
	Upsert(ctx context.Context, room *models.Room) (*models.Room, error)
	ListAvailability(ctx context.Context, filter models.RoomFilter) ([]models.RoomAvailability, error)
}

type datasetRenderer interface {
	Render(data export.Dataset) ([]byte, error)
	ContentType() string
	Extension() string
}

// RoomServiceConfig tunes availability caching.
type RoomServiceConfig struct {
	AvailabilityTTL time.Duration
}

// RoomService manages the room catalog and its read projections.
type RoomService struct {
	rooms     roomCatalogStore
	catalog   *HostelCatalog
	audit     auditLogger
	cache     *CacheService
	renderers map[string]datasetRenderer
	group     singleflight.Group
	validator *validator.Validate
	logger    *zap.Logger
	cfg       RoomServiceConfig
	now       func() time.Time
}

// RoomServiceParams groups constructor dependencies.
type RoomServiceParams struct {
	Rooms   roomCatalogStore
	Catalog *HostelCatalog
	Audit   auditLogger
	Cache   *CacheService
	Config  RoomServiceConfig
}

// NewRoomService constructs a RoomService with CSV and PDF renderers.
func NewRoomService(params RoomServiceParams, validate *validator.Validate, logger *zap.Logger) *RoomService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if params.Catalog == nil {
		params.Catalog = DefaultHostelCatalog()
	}
	csvRenderer := export.NewCSVExporter()
	pdfRenderer := export.NewPDFExporter()
	return &RoomService{
		rooms:   params.Rooms,
		catalog: params.Catalog,
		audit:   params.Audit,
		cache:   params.Cache,
		renderers: map[string]datasetRenderer{
			csvRenderer.Extension(): csvRenderer,
			pdfRenderer.Extension(): pdfRenderer,
		},
		validator: validate,
		logger:    logger,
		cfg:       params.Config,
		now:       time.Now,
	}
}

// Upsert creates a room or updates the non-occupancy fields of an existing one.
func (s *RoomService) Upsert(ctx context.Context, adminID string, req dto.UpsertRoomRequest) (*models.Room, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid room payload")
	}

	name := trimmedPtr(req.HostelName)
	if req.HostelNumber == nil && name == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "hostelNumber or hostelName is required")
	}

	room := &models.Room{
		HostelNumber: req.HostelNumber,
		HostelName:   name,
		Seater:       req.Seater,
		AC:           *req.AC,
		Amenities: models.Amenities{
			LargeDining:     req.LargeDining,
			ExtraFacilities: req.ExtraFacilities,
		},
		Capacity:  req.Seater,
		RoomLabel: trimmedPtr(req.RoomLabel),
	}
	switch {
	case req.BlockType != nil:
		room.BlockType = *req.BlockType
	case req.HostelNumber != nil:
		room.BlockType = s.catalog.BlockFor(*req.HostelNumber)
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "blockType is required for named hostels")
	}
	if req.Capacity != nil {
		room.Capacity = *req.Capacity
	}

	saved, err := s.rooms.Upsert(ctx, room)
	if err != nil {
		if errors.Is(err, repository.ErrCapacityBelowOccupancy) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "capacity cannot drop below current occupancy")
		}
		return nil, internalError(err, "failed to upsert room")
	}

	s.cache.Invalidate(ctx, availabilityCachePattern)
	emitAudit(ctx, s.audit, s.logger, &models.AuditLog{
		UserID:     &adminID,
		Action:     models.AuditActionRoomUpsert,
		Resource:   "room",
		ResourceID: &saved.ID,
		NewValues:  auditPayload(saved),
	})
	s.logger.Info("room upserted", zap.String("room_id", saved.ID), zap.String("hostel", saved.Hostel().String()))
	return saved, nil
}

// GetRoom returns a room with its occupants.
func (s *RoomService) GetRoom(ctx context.Context, id string) (*models.Room, error) {
	room, err := s.rooms.FindByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "room not found")
		}
		return nil, internalError(err, "failed to load room")
	}
	return room, nil
}

// ListAvailability returns free capacity per room and whether the result came
// from cache. Concurrent misses for the same filter share one query.
func (s *RoomService) ListAvailability(ctx context.Context, query dto.AvailabilityQuery) ([]models.RoomAvailability, bool, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid availability filter")
	}
	filter := models.RoomFilter{
		Seater:       query.Seater,
		AC:           query.AC,
		BlockType:    query.BlockType,
		HostelNumber: query.HostelNumber,
		HostelName:   trimmedPtr(query.HostelName),
	}
	key := availabilityCacheKey(filter)

	var cached []models.RoomAvailability
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return cached, true, nil
	}

	result, err, _ := s.group.Do(key, func() (interface{}, error) {
		items, err := s.rooms.ListAvailability(ctx, filter)
		if err != nil {
			return nil, err
		}
		_ = s.cache.Set(ctx, key, items, s.cfg.AvailabilityTTL)
		return items, nil
	})
	if err != nil {
		return nil, false, internalError(err, "failed to list room availability")
	}
	return result.([]models.RoomAvailability), false, nil
}

// Export renders the occupancy roster as CSV (default) or PDF.
func (s *RoomService) Export(ctx context.Context, query dto.ExportQuery) (*dto.ExportFile, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "format must be csv or pdf")
	}
	format := strings.ToLower(query.Format)
	if format == "" {
		format = "csv"
	}
	renderer, ok := s.renderers[format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}

	items, err := s.rooms.ListAvailability(ctx, models.RoomFilter{})
	if err != nil {
		return nil, internalError(err, "failed to load occupancy roster")
	}

	body, err := renderer.Render(rosterDataset(items))
	if err != nil {
		return nil, internalError(err, "failed to render occupancy roster")
	}
	return &dto.ExportFile{
		Filename:    fmt.Sprintf("occupancy-%s.%s", s.now().UTC().Format("20060102-150405"), renderer.Extension()),
		ContentType: renderer.ContentType(),
		Body:        body,
	}, nil
}

var rosterHeaders = []string{"room_id", "hostel", "block", "seater", "ac", "label", "capacity", "occupied", "available"}

func rosterDataset(items []models.RoomAvailability) export.Dataset {
	rows := make([]map[string]string, 0, len(items))
	for _, item := range items {
		hostel := ""
		switch {
		case item.HostelNumber != nil:
			hostel = strconv.Itoa(*item.HostelNumber)
		case item.HostelName != nil:
			hostel = *item.HostelName
		}
		label := ""
		if item.RoomLabel != nil {
			label = *item.RoomLabel
		}
		rows = append(rows, map[string]string{
			"room_id":   item.ID,
			"hostel":    hostel,
			"block":     string(item.BlockType),
			"seater":    strconv.Itoa(item.Seater),
			"ac":        strconv.FormatBool(item.AC),
			"label":     label,
			"capacity":  strconv.Itoa(item.Capacity),
			"occupied":  strconv.Itoa(item.Occupied),
			"available": strconv.Itoa(item.Available),
		})
	}
	return export.Dataset{Title: "Room occupancy", Headers: rosterHeaders, Rows: rows}
}

func availabilityCacheKey(filter models.RoomFilter) string {
	parts := []string{"availability"}
	if filter.HostelNumber != nil {
		parts = append(parts, "n="+strconv.Itoa(*filter.HostelNumber))
	}
	if filter.HostelName != nil {
		parts = append(parts, "h="+*filter.HostelName)
	}
	if filter.BlockType != nil {
		parts = append(parts, "b="+string(*filter.BlockType))
	}
	if filter.Seater != nil {
		parts = append(parts, "s="+strconv.Itoa(*filter.Seater))
	}
	if filter.AC != nil {
		parts = append(parts, "ac="+strconv.FormatBool(*filter.AC))
	}
	if len(parts) == 1 {
		parts = append(parts, "all")
	}
	return strings.Join(parts, ":")
}

func trimmedPtr(value *string) *string {
	if value == nil {
		return nil
	}
	v := strings.TrimSpace(*value)
	if v == "" {
		return nil
	}
	return &v
}
