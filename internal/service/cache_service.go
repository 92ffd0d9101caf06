package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/drivehq/selection-api/internal/models"
	"github.com/drivehq/selection-api/internal/repository"
)

// CacheRepository abstracts persistence for cached payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

const searchCachePrefix = "applicants:search:"

// CacheService caches search results and invalidates them on mutation.
type CacheService struct {
	repo    CacheRepository
	metrics *MetricsService
	ttl     time.Duration
	logger  *zap.Logger
	enabled bool
}

// NewCacheService constructs a cache service.
func NewCacheService(repo CacheRepository, metrics *MetricsService, ttl time.Duration, logger *zap.Logger, enabled bool) *CacheService {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{repo: repo, metrics: metrics, ttl: ttl, logger: logger, enabled: enabled}
}

// Enabled indicates whether caching is active.
func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled && s.repo != nil
}

// GetSearch attempts to serve a search result from cache.
func (s *CacheService) GetSearch(ctx context.Context, filter models.ApplicantFilter) ([]models.Applicant, bool) {
	if !s.Enabled() {
		return nil, false
	}
	var cached []models.Applicant
	err := s.repo.Get(ctx, searchKey(filter), &cached)
	if err != nil {
		if !errors.Is(err, repository.ErrCacheMiss) {
			s.logger.Warn("search cache get failed", zap.Error(err))
		}
		s.metrics.RecordCacheLookup(false)
		return nil, false
	}
	s.metrics.RecordCacheLookup(true)
	return cached, true
}

// SetSearch stores a search result.
func (s *CacheService) SetSearch(ctx context.Context, filter models.ApplicantFilter, results []models.Applicant) {
	if !s.Enabled() {
		return
	}
	if err := s.repo.Set(ctx, searchKey(filter), results, s.ttl); err != nil {
		s.logger.Warn("search cache set failed", zap.Error(err))
	}
}

// Invalidate drops every cached search result. Called after each mutation;
// failures are logged and ignored.
func (s *CacheService) Invalidate(ctx context.Context) {
	if !s.Enabled() {
		return
	}
	if err := s.repo.DeleteByPattern(ctx, searchCachePrefix+"*"); err != nil {
		s.logger.Warn("search cache invalidation failed", zap.Error(err))
	}
}

func searchKey(filter models.ApplicantFilter) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%d", filter.Query, filter.Stage, filter.Limit)))
	return searchCachePrefix + hex.EncodeToString(sum[:exposedKeyLen])
}

const exposedKeyLen = 16
