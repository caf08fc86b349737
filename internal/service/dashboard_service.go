package service

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/hostel-allocation-api/internal/models"
)

type occupancyReporter interface {
	OccupancyByBedType(ctx context.Context) ([]models.OccupancyStats, error)
}

type profileCounter interface {
	CountByStatus(ctx context.Context) (map[string]int, error)
}

type pendingCounter interface {
	CountPending(ctx context.Context) (int, error)
}

// DashboardService composes the admin allocation overview.
type DashboardService struct {
	rooms        occupancyReporter
	profiles     profileCounter
	swaps        pendingCounter
	applications pendingCounter
	logger       *zap.Logger
	now          func() time.Time
}

// DashboardServiceParams groups constructor dependencies.
type DashboardServiceParams struct {
	Rooms        occupancyReporter
	Profiles     profileCounter
	Swaps        pendingCounter
	Applications pendingCounter
	Logger       *zap.Logger
}

// NewDashboardService constructs a DashboardService.
func NewDashboardService(params DashboardServiceParams) *DashboardService {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		rooms:        params.Rooms,
		profiles:     params.Profiles,
		swaps:        params.Swaps,
		applications: params.Applications,
		logger:       logger,
		now:          time.Now,
	}
}

// Stats gathers occupancy and queue sizes. The four reads run concurrently and
// are not a consistent snapshot.
func (s *DashboardService) Stats(ctx context.Context) (*models.AllocationStats, error) {
	stats := &models.AllocationStats{GeneratedAt: s.now().UTC()}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		byBedType, err := s.rooms.OccupancyByBedType(gCtx)
		if err != nil {
			return err
		}
		stats.ByBedType = byBedType
		return nil
	})
	g.Go(func() error {
		counts, err := s.profiles.CountByStatus(gCtx)
		if err != nil {
			return err
		}
		stats.ProfilesByStatus = counts
		return nil
	})
	g.Go(func() error {
		n, err := s.swaps.CountPending(gCtx)
		if err != nil {
			return err
		}
		stats.PendingSwaps = n
		return nil
	})
	g.Go(func() error {
		n, err := s.applications.CountPending(gCtx)
		if err != nil {
			return err
		}
		stats.PendingApplications = n
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, internalError(err, "failed to compute allocation stats")
	}

	for _, bucket := range stats.ByBedType {
		stats.TotalRooms += bucket.Rooms
		stats.TotalCapacity += bucket.Capacity
		stats.TotalOccupied += bucket.Occupied
	}
	if stats.ProfilesByStatus == nil {
		stats.ProfilesByStatus = map[string]int{}
	}
	for _, status := range []models.ProfileStatus{models.ProfileStatusPending, models.ProfileStatusAssigned, models.ProfileStatusSwapPending} {
		if _, ok := stats.ProfilesByStatus[string(status)]; !ok {
			stats.ProfilesByStatus[string(status)] = 0
		}
	}
	return stats, nil
}
