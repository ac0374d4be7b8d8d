package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/lgu-assessor/faas-api/internal/dto"
	"github.com/lgu-assessor/faas-api/internal/models"
	appErrors "github.com/lgu-assessor/faas-api/pkg/errors"
)

const statsCacheKey = "dashboard:stats"

type statusCounter interface {
	CountByStatus(ctx context.Context) (map[models.RecordStatus]int, error)
}

type statsCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// DashboardService serves record counts per lifecycle state, cached in Redis
// and invalidated on every transition.
type DashboardService struct {
	records  statusCounter
	cache    statsCache
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewDashboardService constructs the dashboard service.
func NewDashboardService(records statusCounter, cache statsCache, cacheTTL time.Duration, logger *zap.Logger) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &DashboardService{records: records, cache: cache, cacheTTL: cacheTTL, logger: logger}
}

// Stats returns the per-status record counts. The cached copy wins when
// present; a cache failure degrades to a direct count, never to an error.
func (s *DashboardService) Stats(ctx context.Context) (*dto.DashboardStats, error) {
	if s.cache != nil {
		var cached dto.DashboardStats
		err := s.cache.Get(ctx, statsCacheKey, &cached)
		if err == nil {
			return &cached, nil
		}
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("dashboard cache read failed", zap.Error(err))
		}
	}

	counts, err := s.records.CountByStatus(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count records")
	}

	stats := &dto.DashboardStats{
		Draft:    counts[models.RecordStatusDraft],
		Pending:  counts[models.RecordStatusPending],
		Approved: counts[models.RecordStatusApproved],
		Rejected: counts[models.RecordStatusRejected],
	}
	stats.Total = stats.Draft + stats.Pending + stats.Approved + stats.Rejected

	if s.cache != nil {
		if err := s.cache.Set(ctx, statsCacheKey, stats, s.cacheTTL); err != nil {
			s.logger.Warn("dashboard cache write failed", zap.Error(err))
		}
	}
	return stats, nil
}

// InvalidateStats drops the cached counts after a lifecycle transition.
func (s *DashboardService) InvalidateStats(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, "dashboard:*"); err != nil {
		s.logger.Warn("dashboard cache invalidation failed", zap.Error(err))
	}
}
