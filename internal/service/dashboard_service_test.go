package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/hostel-allocation-api/internal/dto"
	"github.com/noah-isme/hostel-allocation-api/internal/models"
	appErrors "github.com/noah-isme/hostel-allocation-api/pkg/errors"
)

func TestDashboardStats(t *testing.T) {
	f := newAllocationFixture(t)
	ctx := context.Background()
	f.store.addRoom(models.Room{HostelNumber: intPtr(1), Seater: 2, Capacity: 2})
	f.store.addRoom(models.Room{HostelNumber: intPtr(6), Seater: 2, Capacity: 2})
	f.store.addRoom(models.Room{HostelNumber: intPtr(3), Seater: 4, AC: true, BlockType: models.BlockPremium, Capacity: 4})
	f.assigned(t, "A", prefs(2, false, models.HostelByNumber(1)))
	f.assigned(t, "B", prefs(2, false, models.HostelByNumber(6)))
	f.student(t, "C", prefs(3, false))
	_, err := f.swaps.RequestSwap(ctx, "A", dto.RequestSwapRequest{ToUserID: "B"})
	require.NoError(t, err)
	_, err = f.changes.Apply(ctx, "C", bedTypeApplication(4, true))
	require.NoError(t, err)

	svc := NewDashboardService(DashboardServiceParams{
		Rooms: memRooms{f.store}, Profiles: memProfiles{f.store}, Swaps: memSwaps{f.store}, Applications: memApps{f.store},
	})
	svc.now = func() time.Time { return time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC) }

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalRooms)
	assert.Equal(t, 8, stats.TotalCapacity)
	assert.Equal(t, 2, stats.TotalOccupied)
	assert.Equal(t, 1, stats.PendingSwaps)
	assert.Equal(t, 1, stats.PendingApplications)
	assert.Equal(t, map[string]int{"pending": 1, "assigned": 1, "swap_pending": 1}, stats.ProfilesByStatus)
	require.Len(t, stats.ByBedType, 2)
	assert.Equal(t, models.OccupancyStats{Seater: 2, AC: false, Rooms: 2, Capacity: 4, Occupied: 2}, stats.ByBedType[0])
	assert.Equal(t, time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC), stats.GeneratedAt)
}

type failingCounter struct{}

func (failingCounter) CountPending(context.Context) (int, error) { return 0, errors.New("db down") }

func TestDashboardStatsPropagatesErrors(t *testing.T) {
	store := newMemStore()
	svc := NewDashboardService(DashboardServiceParams{
		Rooms: memRooms{store}, Profiles: memProfiles{store}, Swaps: failingCounter{}, Applications: memApps{store},
	})

	_, err := svc.Stats(context.Background())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
}
