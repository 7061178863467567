package services

import (
	"context"
	"time"

	"github.com/crewhire/onboarding-backend/internal/database"
	"github.com/crewhire/onboarding-backend/internal/models"
	"golang.org/x/sync/errgroup"
)

// DashboardService builds the summary numbers for staff dashboards
type DashboardService struct {
	apps          *database.ApplicationRepository
	deactivations *database.DeactivationRepository
	outlets       *database.OutletRepository
	scope         *ScopeResolver
	now           func() time.Time
}

// NewDashboardService creates a new dashboard service
func NewDashboardService(apps *database.ApplicationRepository, deactivations *database.DeactivationRepository, outlets *database.OutletRepository, scope *ScopeResolver) *DashboardService {
	return &DashboardService{
		apps:          apps,
		deactivations: deactivations,
		outlets:       outlets,
		scope:         scope,
		now:           time.Now,
	}
}

// Stats returns dashboard counts scoped to the actor's outlets
func (s *DashboardService) Stats(ctx context.Context, actor Actor) (*models.DashboardStats, error) {
	scope, err := s.scope.OutletScope(ctx, actor)
	if err != nil {
		return nil, err
	}

	stats := &models.DashboardStats{}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		counts, err := s.apps.CountByStatus(gctx, scope)
		if err != nil {
			return err
		}
		stats.ByStatus = counts
		return nil
	})
	g.Go(func() error {
		n, err := s.deactivations.CountPending(gctx, scope)
		stats.PendingDeactivations = n
		return err
	})
	g.Go(func() error {
		n, err := s.outlets.Count(gctx, scope)
		stats.Outlets = n
		return err
	})
	g.Go(func() error {
		n, err := s.apps.CountSubmittedSince(gctx, s.now().AddDate(0, 0, -7), scope)
		stats.SubmittedLast7Days = n
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, n := range stats.ByStatus {
		stats.Total += n
	}
	return stats, nil
}
