package service

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/hostel-allocation-api/internal/dto"
	"github.com/noah-isme/hostel-allocation-api/internal/models"
	appErrors "github.com/noah-isme/hostel-allocation-api/pkg/errors"
)

// memCache stores JSON payloads the same way the redis repository does.
type memCache struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func newMemCache() *memCache {
	return &memCache{entries: map[string][]byte{}}
}

func (c *memCache) Get(ctx context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *memCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = raw
	return nil
}

func (c *memCache) DeleteByPattern(ctx context.Context, pattern string) error {
	prefix := strings.TrimSuffix(pattern, "*")
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
	return nil
}

func (c *memCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// countingRooms counts availability queries that reach storage.
type countingRooms struct {
	memRooms
	mu    sync.Mutex
	calls int
}

func (r *countingRooms) ListAvailability(ctx context.Context, filter models.RoomFilter) ([]models.RoomAvailability, error) {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
	return r.memRooms.ListAvailability(ctx, filter)
}

func newRoomService(store *memStore, cache *CacheService) *RoomService {
	return NewRoomService(RoomServiceParams{
		Rooms:   memRooms{store},
		Catalog: DefaultHostelCatalog(),
		Audit:   store,
		Cache:   cache,
	}, validator.New(), zap.NewNop())
}

func TestRoomUpsertDerivesBlockAndCapacity(t *testing.T) {
	store := newMemStore()
	svc := newRoomService(store, nil)

	room, err := svc.Upsert(context.Background(), "admin", dto.UpsertRoomRequest{
		HostelNumber: intPtr(3), Seater: 4, AC: boolPtr(true), LargeDining: true,
	})
	require.NoError(t, err)
	assert.Equal(t, models.BlockPremium, room.BlockType)
	assert.Equal(t, 4, room.Capacity)
	assert.True(t, room.Amenities.LargeDining)

	updated, err := svc.Upsert(context.Background(), "admin", dto.UpsertRoomRequest{
		HostelNumber: intPtr(3), Seater: 4, AC: boolPtr(true), Capacity: intPtr(5),
	})
	require.NoError(t, err)
	assert.Equal(t, room.ID, updated.ID)
	assert.Equal(t, 5, updated.Capacity)
	assert.False(t, updated.Amenities.LargeDining)

	normal, err := svc.Upsert(context.Background(), "admin", dto.UpsertRoomRequest{
		HostelNumber: intPtr(1), Seater: 2, AC: boolPtr(false),
	})
	require.NoError(t, err)
	assert.Equal(t, models.BlockNormal, normal.BlockType)
	assert.Contains(t, store.auditActions(), models.AuditActionRoomUpsert)
}

func TestRoomUpsertValidation(t *testing.T) {
	store := newMemStore()
	svc := newRoomService(store, nil)
	ctx := context.Background()

	_, err := svc.Upsert(ctx, "admin", dto.UpsertRoomRequest{Seater: 2, AC: boolPtr(false)})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.Upsert(ctx, "admin", dto.UpsertRoomRequest{HostelName: strPtr("aminity"), Seater: 2, AC: boolPtr(false)})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.Upsert(ctx, "admin", dto.UpsertRoomRequest{HostelNumber: intPtr(1), Seater: 5, AC: boolPtr(false)})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.Upsert(ctx, "admin", dto.UpsertRoomRequest{HostelNumber: intPtr(9), Seater: 2, AC: boolPtr(false)})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	premium := models.BlockPremium
	named, err := svc.Upsert(ctx, "admin", dto.UpsertRoomRequest{HostelName: strPtr(" aminity "), BlockType: &premium, Seater: 2, AC: boolPtr(false)})
	require.NoError(t, err)
	assert.Equal(t, "aminity", *named.HostelName)
}

func TestRoomUpsertCapacityBelowOccupancy(t *testing.T) {
	store := newMemStore()
	store.addRoom(models.Room{HostelNumber: intPtr(1), Seater: 3, Capacity: 3, Occupants: []string{"a", "b"}})
	svc := newRoomService(store, nil)

	_, err := svc.Upsert(context.Background(), "admin", dto.UpsertRoomRequest{HostelNumber: intPtr(1), Seater: 3, AC: boolPtr(false), Capacity: intPtr(1)})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestGetRoom(t *testing.T) {
	store := newMemStore()
	roomID := store.addRoom(models.Room{HostelNumber: intPtr(1), Seater: 2, Occupants: []string{"s1"}})
	svc := newRoomService(store, nil)

	room, err := svc.GetRoom(context.Background(), roomID)
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, room.Occupants)

	_, err = svc.GetRoom(context.Background(), "room-missing")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestListAvailabilityUsesCache(t *testing.T) {
	store := newMemStore()
	store.addRoom(models.Room{HostelNumber: intPtr(1), Seater: 2, Capacity: 2, Occupants: []string{"a"}})
	store.addRoom(models.Room{HostelNumber: intPtr(3), Seater: 2, BlockType: models.BlockPremium, Capacity: 2})
	cacheRepo := newMemCache()
	cache := NewCacheService(cacheRepo, nil, time.Minute, zap.NewNop(), true)
	rooms := &countingRooms{memRooms: memRooms{store}}
	svc := NewRoomService(RoomServiceParams{Rooms: rooms, Cache: cache}, validator.New(), zap.NewNop())
	ctx := context.Background()

	items, hit, err := svc.ListAvailability(ctx, dto.AvailabilityQuery{Seater: intPtr(2)})
	require.NoError(t, err)
	assert.False(t, hit)
	require.Len(t, items, 2)
	assert.Equal(t, 1, items[0].Available)
	assert.Equal(t, 2, items[1].Available)

	again, hit, err := svc.ListAvailability(ctx, dto.AvailabilityQuery{Seater: intPtr(2)})
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, items, again)
	assert.Equal(t, 1, rooms.calls)

	premium := models.BlockPremium
	filtered, _, err := svc.ListAvailability(ctx, dto.AvailabilityQuery{BlockType: &premium})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, 2, rooms.calls)
	assert.Equal(t, 2, cacheRepo.size())
}

func TestAssignmentInvalidatesAvailabilityCache(t *testing.T) {
	store := newMemStore()
	store.addRoom(models.Room{HostelNumber: intPtr(1), Seater: 2, Capacity: 2})
	cacheRepo := newMemCache()
	cache := NewCacheService(cacheRepo, nil, time.Minute, zap.NewNop(), true)
	svc := newRoomService(store, cache)
	alloc := NewAllocationService(AllocationDeps{
		Rooms: memRooms{store}, Profiles: memProfiles{store}, Tx: store, Cache: cache,
	}, nil, nil)
	ctx := context.Background()

	before, _, err := svc.ListAvailability(ctx, dto.AvailabilityQuery{})
	require.NoError(t, err)
	assert.Equal(t, 2, before[0].Available)
	assert.Equal(t, 1, cacheRepo.size())

	_, err = alloc.SetPreferences(ctx, "s1", prefs(2, false))
	require.NoError(t, err)
	_, err = alloc.AutoAssign(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 0, cacheRepo.size())

	after, hit, err := svc.ListAvailability(ctx, dto.AvailabilityQuery{})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 1, after[0].Available)
}

func TestAvailabilityCacheKey(t *testing.T) {
	assert.Equal(t, "availability:all", availabilityCacheKey(models.RoomFilter{}))
	premium := models.BlockPremium
	key := availabilityCacheKey(models.RoomFilter{HostelNumber: intPtr(3), BlockType: &premium, Seater: intPtr(2), AC: boolPtr(false)})
	assert.Equal(t, "availability:n=3:b=premium:s=2:ac=false", key)
}

func TestExportRoster(t *testing.T) {
	store := newMemStore()
	store.addRoom(models.Room{HostelNumber: intPtr(1), Seater: 2, Capacity: 2, Occupants: []string{"a"}})
	store.addRoom(models.Room{HostelName: strPtr("aminity"), Seater: 4, AC: true, Capacity: 4, RoomLabel: strPtr("A-12")})
	svc := newRoomService(store, nil)
	svc.now = func() time.Time { return time.Date(2024, 7, 1, 10, 0, 0, 0, time.UTC) }

	file, err := svc.Export(context.Background(), dto.ExportQuery{})
	require.NoError(t, err)
	assert.Equal(t, "text/csv", file.ContentType)
	assert.Equal(t, "occupancy-20240701-100000.csv", file.Filename)
	lines := strings.Split(strings.TrimSpace(string(file.Body)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "room_id,hostel,block,seater,ac,label,capacity,occupied,available", lines[0])
	assert.True(t, strings.HasSuffix(lines[1], ",1,normal,2,false,,2,1,1"))
	assert.True(t, strings.HasSuffix(lines[2], ",aminity,normal,4,true,A-12,4,0,4"))

	pdf, err := svc.Export(context.Background(), dto.ExportQuery{Format: "pdf"})
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", pdf.ContentType)
	assert.True(t, bytes.HasPrefix(pdf.Body, []byte("%PDF")))

	_, err = svc.Export(context.Background(), dto.ExportQuery{Format: "xlsx"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}
