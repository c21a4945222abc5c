package services

import (
	"context"
	"testing"

	domain "github.com/butchers-select/api/internal/domain"
	"github.com/butchers-select/api/internal/platform/localcache"
)

func newTestCart(t *testing.T, cache localcache.Cache) CartService {
	t.Helper()
	cart, err := NewCartService(CartServiceDeps{Cache: cache})
	if err != nil {
		t.Fatalf("unexpected error constructing cart service: %v", err)
	}
	return cart
}

func porkProduct() domain.Product {
	return domain.Product{ID: "p1", Name: "梅花豬", Price: 450}
}

func TestAddLineRequiresIdentity(t *testing.T) {
	cart := newTestCart(t, localcache.NewMemory())

	added, err := cart.AddLine(context.Background(), porkProduct())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if added {
		t.Fatalf("expected add to be refused without an identity")
	}
	if count := cart.ItemCount(); count != 0 {
		t.Fatalf("expected empty cart, got %d items", count)
	}
}

func TestAddLineIncrementsExistingLine(t *testing.T) {
	cache := localcache.NewMemory()
	cart := newTestCart(t, cache)
	ctx := context.Background()
	if err := cart.SwitchUser(ctx, "user-a"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := 0; i < 3; i++ {
		if added, err := cart.AddLine(ctx, porkProduct()); err != nil || !added {
			t.Fatalf("add %d failed: added=%v err=%v", i, added, err)
		}
	}

	lines := cart.Lines()
	if len(lines) != 1 || lines[0].Quantity != 3 {
		t.Fatalf("expected one line with quantity 3, got %+v", lines)
	}
	if _, err := cache.Get(CartCacheKey("user-a")); err != nil {
		t.Fatalf("expected cart to be persisted: %v", err)
	}
}

func TestSetQuantityRemovesLineAtZero(t *testing.T) {
	cart := newTestCart(t, localcache.NewMemory())
	ctx := context.Background()
	_ = cart.SwitchUser(ctx, "user-a")
	_, _ = cart.AddLine(ctx, porkProduct())

	if err := cart.SetQuantity(ctx, "p1", 5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lines := cart.Lines(); len(lines) != 1 || lines[0].Quantity != 5 {
		t.Fatalf("expected quantity 5, got %+v", lines)
	}

	if err := cart.SetQuantity(ctx, "p1", 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lines := cart.Lines(); len(lines) != 0 {
		t.Fatalf("expected line removed at zero quantity, got %+v", lines)
	}
}

func TestClearRemovesPersistedEntry(t *testing.T) {
	cache := localcache.NewMemory()
	cart := newTestCart(t, cache)
	ctx := context.Background()
	_ = cart.SwitchUser(ctx, "user-a")
	_, _ = cart.AddLine(ctx, porkProduct())

	if err := cart.Clear(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lines := cart.Lines(); len(lines) != 0 {
		t.Fatalf("expected empty cart, got %+v", lines)
	}
	if _, err := cache.Get(CartCacheKey("user-a")); err == nil {
		t.Fatalf("expected cache entry to be removed")
	}
}

func TestSwitchUserIsolatesCarts(t *testing.T) {
	cache := localcache.NewMemory()
	cart := newTestCart(t, cache)
	ctx := context.Background()

	_ = cart.SwitchUser(ctx, "user-a")
	_, _ = cart.AddLine(ctx, porkProduct())

	if err := cart.SwitchUser(ctx, "user-b"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lines := cart.Lines(); len(lines) != 0 {
		t.Fatalf("identity B must never see identity A's cart, got %+v", lines)
	}

	if err := cart.SwitchUser(ctx, "user-a"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lines := cart.Lines()
	if len(lines) != 1 || lines[0].ID != "p1" {
		t.Fatalf("expected identity A's cart to be restored, got %+v", lines)
	}
}

func TestSwitchUserTreatsCorruptCacheAsEmpty(t *testing.T) {
	cache := localcache.NewMemory()
	_ = cache.Set(CartCacheKey("user-a"), `{{{not json`)
	cart := newTestCart(t, cache)

	if err := cart.SwitchUser(context.Background(), "user-a"); err != nil {
		t.Fatalf("corrupt cache must not be fatal: %v", err)
	}
	if lines := cart.Lines(); len(lines) != 0 {
		t.Fatalf("expected empty cart, got %+v", lines)
	}
}
