package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"heritage-atlas/internal/cache"
	"heritage-atlas/internal/domain"
	"heritage-atlas/internal/repository"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// VerificationService answers "is this code a genuine product?"
type VerificationService interface {
	// Verify returns domain.ErrProductNotFound when no product carries the
	// code, and a response with Verified=false when the product is inactive.
	Verify(ctx context.Context, code string) (*domain.VerificationResponse, error)
	// Invalidate drops any cached outcome for code.
	Invalidate(ctx context.Context, code string)
}

// cachedVerification also records misses so unknown codes do not hit the
// database on every scan.
type cachedVerification struct {
	Found    bool                         `json:"found"`
	Response *domain.VerificationResponse `json:"response,omitempty"`
}

// lookupTimeout bounds a shared lookup, which outlives any single caller.
const lookupTimeout = 5 * time.Second

type verificationService struct {
	productRepo repository.ProductRepository
	cache       cache.Cache
	ttl         time.Duration
	group       singleflight.Group
	logger      *zap.Logger
}

// NewVerificationService creates a new instance of VerificationService
func NewVerificationService(
	productRepo repository.ProductRepository,
	c cache.Cache,
	ttl time.Duration,
	logger *zap.Logger,
) VerificationService {
	return &verificationService{
		productRepo: productRepo,
		cache:       c,
		ttl:         ttl,
		logger:      logger,
	}
}

// NormalizeCode is the canonical form used for cache keys and lookups.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (s *verificationService) Verify(ctx context.Context, code string) (*domain.VerificationResponse, error) {
	key := NormalizeCode(code)
	if key == "" {
		return nil, domain.ErrInvalidCode
	}

	if cached, ok := s.fromCache(ctx, key); ok {
		if !cached.Found {
			return nil, domain.ErrProductNotFound
		}
		return cached.Response, nil
	}

	// Concurrent scans of the same label share one lookup. It runs detached
	// from the first caller so that caller leaving does not fail the rest.
	ch := s.group.DoChan(key, func() (interface{}, error) {
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lookupTimeout)
		defer cancel()
		return s.lookup(lctx, key)
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return nil, res.Err
	}

	cached := res.Val.(*cachedVerification)
	s.logger.Debug("Verification lookup",
		zap.String("code", key),
		zap.Bool("found", cached.Found),
		zap.Bool("shared", res.Shared),
	)

	if !cached.Found {
		return nil, domain.ErrProductNotFound
	}
	return cached.Response, nil
}

func (s *verificationService) lookup(ctx context.Context, key string) (*cachedVerification, error) {
	product, err := s.productRepo.FindByBarcode(ctx, key)
	if err != nil && !errors.Is(err, repository.ErrProductNotFound) {
		return nil, fmt.Errorf("failed to verify code: %w", err)
	}

	var result *cachedVerification
	switch {
	case product == nil:
		result = &cachedVerification{Found: false}
	case !product.IsActive:
		result = &cachedVerification{Found: true, Response: &domain.VerificationResponse{Verified: false}}
	default:
		result = &cachedVerification{Found: true, Response: &domain.VerificationResponse{Verified: true, Product: product}}
	}

	s.toCache(ctx, key, result)
	return result, nil
}

func (s *verificationService) fromCache(ctx context.Context, key string) (*cachedVerification, bool) {
	if s.cache == nil {
		return nil, false
	}

	raw, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, domain.ErrCacheMiss) {
			s.logger.Warn("Verification cache read failed", zap.String("code", key), zap.Error(err))
		}
		return nil, false
	}

	var cached cachedVerification
	if err := json.Unmarshal(raw, &cached); err != nil {
		s.logger.Warn("Discarding malformed cache entry", zap.String("code", key), zap.Error(err))
		return nil, false
	}
	if cached.Found && cached.Response == nil {
		return nil, false
	}

	return &cached, true
}

func (s *verificationService) toCache(ctx context.Context, key string, value *cachedVerification) {
	if s.cache == nil || s.ttl <= 0 {
		return
	}

	raw, err := json.Marshal(value)
	if err != nil {
		s.logger.Error("Failed to encode cache entry", zap.Error(err))
		return
	}

	if err := s.cache.Set(ctx, key, raw, s.ttl); err != nil {
		s.logger.Warn("Verification cache write failed", zap.String("code", key), zap.Error(err))
	}
}

func (s *verificationService) Invalidate(ctx context.Context, code string) {
	key := NormalizeCode(code)
	if s.cache == nil || key == "" {
		return
	}
	if err := s.cache.Delete(ctx, key); err != nil {
		s.logger.Warn("Failed to invalidate cached verification", zap.String("code", key), zap.Error(err))
	}
}
