package services

import (
	"context"
	"errors"
	"fmt"

	domain "github.com/butchers-select/api/internal/domain"
	"github.com/butchers-select/api/internal/platform/localcache"
	"github.com/butchers-select/api/internal/repositories"
	"github.com/butchers-select/api/internal/syncstore"
)

// ShippingSettingsCacheKey is the local snapshot key for the shipping settings.
const ShippingSettingsCacheKey = "bs_shipping_settings_cache"

var (
	// ErrShippingInvalidInput indicates the caller supplied invalid shipping input.
	ErrShippingInvalidInput = errors.New("shipping service: invalid input")
	// ErrShippingUnavailable indicates the settings backend cannot fulfil the request.
	ErrShippingUnavailable = errors.New("shipping service: unavailable")

	errShippingRepositoryRequired = errors.New("shipping service: repository is required")
	errShippingCacheRequired      = errors.New("shipping service: cache is required")
)

// ShippingServiceDeps wires the shipping settings dependencies.
type ShippingServiceDeps struct {
	Repository repositories.ShippingSettingsRepository
	Cache      localcache.Cache
	Logger     func(context.Context, string, map[string]any)
}

type shippingService struct {
	repo       repositories.ShippingSettingsRepository
	collection *syncstore.Collection[domain.ShippingSettings]
	logger     func(context.Context, string, map[string]any)
}

// NewShippingService constructs a ShippingService backed by a synced singleton.
func NewShippingService(deps ShippingServiceDeps) (ShippingService, error) {
	if deps.Repository == nil {
		return nil, errShippingRepositoryRequired
	}
	if deps.Cache == nil {
		return nil, errShippingCacheRequired
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	collection, err := syncstore.New(syncstore.Deps[domain.ShippingSettings]{
		Cache:    deps.Cache,
		CacheKey: ShippingSettingsCacheKey,
		Fetch: func(ctx context.Context) (domain.ShippingSettings, error) {
			settings, _, err := deps.Repository.Fetch(ctx)
			if err != nil {
				return domain.ShippingSettings{}, err
			}
			// A missing document means no amount-based free shipping.
			return settings, nil
		},
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}

	return &shippingService{
		repo:       deps.Repository,
		collection: collection,
		logger:     logger,
	}, nil
}

// Options returns the fixed carrier table.
func (s *shippingService) Options() []domain.ShippingOption {
	return domain.ShippingOptions()
}

// Load publishes the cached settings immediately and reconciles with the remote store.
func (s *shippingService) Load(ctx context.Context) (domain.ShippingSettings, error) {
	if s == nil || s.collection == nil {
		return domain.ShippingSettings{}, ErrShippingUnavailable
	}
	settings, err := s.collection.Load(ctx)
	if err != nil {
		return domain.ShippingSettings{}, translateRepoError(err, nil, ErrShippingUnavailable)
	}
	return settings, nil
}

// Settings returns the latest published snapshot, zero when nothing loaded yet.
func (s *shippingService) Settings() domain.ShippingSettings {
	if s == nil || s.collection == nil {
		return domain.ShippingSettings{}
	}
	settings, _ := s.collection.Snapshot()
	return settings
}

// SaveThreshold updates the amount-based free-shipping threshold optimistically. A nil
// threshold disables amount-based free shipping for store-to-store carriers.
func (s *shippingService) SaveThreshold(ctx context.Context, threshold *int64) (domain.ShippingSettings, error) {
	if s == nil || s.collection == nil {
		return domain.ShippingSettings{}, ErrShippingUnavailable
	}
	if threshold != nil && *threshold < 0 {
		return domain.ShippingSettings{}, fieldError(ErrShippingInvalidInput, "freeShippingThreshold", "threshold must not be negative")
	}

	// A fresh process has no published value yet; load before mutating so the save
	// does not depend on an earlier read having happened.
	if _, ok := s.collection.Snapshot(); !ok {
		if _, err := s.collection.Load(ctx); err != nil {
			return domain.ShippingSettings{}, translateRepoError(err, nil, ErrShippingUnavailable)
		}
	}

	next := domain.ShippingSettings{FreeShippingThreshold: threshold}
	settings, err := s.collection.Mutate(ctx,
		func(domain.ShippingSettings) domain.ShippingSettings {
			return next
		},
		func(ctx context.Context, value domain.ShippingSettings) error {
			return s.repo.Save(ctx, value)
		},
	)
	if err != nil {
		if errors.Is(err, syncstore.ErrNotReady) {
			return domain.ShippingSettings{}, fmt.Errorf("%w: settings have not been loaded", ErrShippingUnavailable)
		}
		s.logger(ctx, "shipping.save_failed", map[string]any{"error": err.Error()})
		return domain.ShippingSettings{}, translateRepoError(err, nil, ErrShippingUnavailable)
	}
	return settings, nil
}

// Quote computes the cart totals for the chosen carrier using the latest settings.
// When nothing has been published yet the settings are loaded cache-first, so pricing
// honours the remote threshold even on the first request of a fresh process.
func (s *shippingService) Quote(ctx context.Context, lines []domain.CartLine, method domain.ShippingMethod) (domain.Quote, error) {
	if s == nil || s.collection == nil {
		return domain.Quote{}, ErrShippingUnavailable
	}
	if !method.Valid() {
		return domain.Quote{}, fieldError(ErrShippingInvalidInput, "shippingMethod", "unknown carrier")
	}
	return domain.ComputeTotals(lines, method, s.currentSettings(ctx)), nil
}

// currentSettings returns the published snapshot, loading when none exists. A failed
// load degrades to zero settings the same way the read path degrades to stale data.
func (s *shippingService) currentSettings(ctx context.Context) domain.ShippingSettings {
	if settings, ok := s.collection.Snapshot(); ok {
		return settings
	}
	settings, err := s.collection.Load(ctx)
	if err != nil {
		s.logger(ctx, "shipping.settings_load_failed", map[string]any{"error": err.Error()})
		return domain.ShippingSettings{}
	}
	return settings
}
