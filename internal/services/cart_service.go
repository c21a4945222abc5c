package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"

	domain "github.com/butchers-select/api/internal/domain"
	"github.com/butchers-select/api/internal/platform/localcache"
)

const cartCacheKeyPrefix = "cart_items_"

var (
	// ErrCartInvalidInput indicates the caller supplied invalid cart input.
	ErrCartInvalidInput = errors.New("cart service: invalid input")
	// ErrCartUnavailable indicates the cart cannot be persisted locally.
	ErrCartUnavailable = errors.New("cart service: unavailable")

	errCartCacheRequired = errors.New("cart service: cache is required")
)

// CartCacheKey derives the per-identity local cache key.
func CartCacheKey(userID string) string {
	return cartCacheKeyPrefix + strings.TrimSpace(userID)
}

// CartServiceDeps wires the cart engine's dependencies.
type CartServiceDeps struct {
	Cache  localcache.Cache
	Logger func(context.Context, string, map[string]any)
}

// cartService keeps one identity's cart in memory, mirrored to the local cache on
// every mutation. It deliberately has no remote copy: the cart only reaches the
// remote store as part of a submitted order.
type cartService struct {
	cache  localcache.Cache
	logger func(context.Context, string, map[string]any)

	mu     sync.Mutex
	userID string
	lines  []domain.CartLine
}

// NewCartService constructs a CartService starting with no active identity.
func NewCartService(deps CartServiceDeps) (CartService, error) {
	if deps.Cache == nil {
		return nil, errCartCacheRequired
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &cartService{
		cache:  deps.Cache,
		logger: logger,
	}, nil
}

// SwitchUser discards the in-memory cart and reloads the cart cached for the new
// identity. An empty user id means anonymous: the cart becomes empty and mutations
// are rejected until a login happens.
func (s *cartService) SwitchUser(ctx context.Context, userID string) error {
	if s == nil || s.cache == nil {
		return ErrCartUnavailable
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.userID = strings.TrimSpace(userID)
	s.lines = nil
	if s.userID == "" {
		return nil
	}

	raw, err := s.cache.Get(CartCacheKey(s.userID))
	if err != nil {
		if !errors.Is(err, localcache.ErrNotFound) {
			s.logger(ctx, "cart.cache_read_failed", map[string]any{
				"userID": s.userID,
				"error":  err.Error(),
			})
		}
		return nil
	}

	var lines []domain.CartLine
	if err := json.Unmarshal([]byte(raw), &lines); err != nil {
		// Corrupt snapshots are treated as absent, never fatal.
		s.logger(ctx, "cart.cache_corrupt", map[string]any{"userID": s.userID})
		return nil
	}
	s.lines = lines
	return nil
}

// AddLine increments the existing line for the product or appends a new one with
// quantity 1. The boolean is false when no identity is active so the caller can
// present a login prompt instead of an error page.
func (s *cartService) AddLine(ctx context.Context, product domain.Product) (bool, error) {
	if s == nil || s.cache == nil {
		return false, ErrCartUnavailable
	}
	if strings.TrimSpace(product.ID) == "" {
		return false, fieldError(ErrCartInvalidInput, "id", "product id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.userID == "" {
		return false, nil
	}

	found := false
	for i := range s.lines {
		if s.lines[i].ID == product.ID {
			s.lines[i].Quantity++
			found = true
			break
		}
	}
	if !found {
		s.lines = append(s.lines, domain.CartLine{Product: product, Quantity: 1})
	}

	s.persistLocked(ctx)
	return true, nil
}

// SetQuantity sets the line's quantity; zero or less removes the line.
func (s *cartService) SetQuantity(ctx context.Context, productID string, quantity int64) error {
	if s == nil || s.cache == nil {
		return ErrCartUnavailable
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return fieldError(ErrCartInvalidInput, "id", "product id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if quantity <= 0 {
		s.removeLocked(productID)
	} else {
		for i := range s.lines {
			if s.lines[i].ID == productID {
				s.lines[i].Quantity = quantity
				break
			}
		}
	}
	s.persistLocked(ctx)
	return nil
}

// RemoveLine drops the line for the product.
func (s *cartService) RemoveLine(ctx context.Context, productID string) error {
	if s == nil || s.cache == nil {
		return ErrCartUnavailable
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return fieldError(ErrCartInvalidInput, "id", "product id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(productID)
	s.persistLocked(ctx)
	return nil
}

// Clear empties the cart and removes the persisted cache entry.
func (s *cartService) Clear(ctx context.Context) error {
	if s == nil || s.cache == nil {
		return ErrCartUnavailable
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.lines = nil
	if s.userID == "" {
		return nil
	}
	if err := s.cache.Remove(CartCacheKey(s.userID)); err != nil && !errors.Is(err, localcache.ErrNotFound) {
		s.logger(ctx, "cart.cache_remove_failed", map[string]any{
			"userID": s.userID,
			"error":  err.Error(),
		})
	}
	return nil
}

// Lines returns a copy of the current cart lines.
func (s *cartService) Lines() []domain.CartLine {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.CartLine(nil), s.lines...)
}

// ItemCount returns the summed quantity across lines, for the cart badge.
func (s *cartService) ItemCount() int64 {
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for _, line := range s.lines {
		count += line.Quantity
	}
	return count
}

func (s *cartService) removeLocked(productID string) {
	next := s.lines[:0]
	for _, line := range s.lines {
		if line.ID != productID {
			next = append(next, line)
		}
	}
	s.lines = next
}

func (s *cartService) persistLocked(ctx context.Context) {
	if s.userID == "" {
		return
	}
	encoded, err := json.Marshal(s.lines)
	if err != nil {
		s.logger(ctx, "cart.cache_encode_failed", map[string]any{"userID": s.userID})
		return
	}
	if err := s.cache.Set(CartCacheKey(s.userID), string(encoded)); err != nil {
		s.logger(ctx, "cart.cache_write_failed", map[string]any{
			"userID": s.userID,
			"error":  err.Error(),
		})
	}
}
