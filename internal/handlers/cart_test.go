package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	domain "github.com/butchers-select/api/internal/domain"
	"github.com/butchers-select/api/internal/platform/auth"
	"github.com/butchers-select/api/internal/platform/localcache"
	"github.com/butchers-select/api/internal/services"
)

// identityMiddleware injects a fixed identity, standing in for token verification.
func identityMiddleware(identity *auth.Identity) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if identity != nil {
				r = r.WithContext(auth.WithIdentity(r.Context(), identity))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func newCartRouter(t *testing.T, cache localcache.Cache, identity *auth.Identity) http.Handler {
	t.Helper()
	factory := func() (services.CartService, error) {
		return services.NewCartService(services.CartServiceDeps{Cache: cache})
	}
	h := NewCartHandlers(factory, nil)
	return NewRouter(
		WithMiddlewares(identityMiddleware(identity)),
		WithCartRoutes(h.Routes),
	)
}

func TestCartRequiresAuthentication(t *testing.T) {
	router := newCartRouter(t, localcache.NewMemory(), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart/", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestCartAddAndFetchRoundTrip(t *testing.T) {
	cache := localcache.NewMemory()
	identity := &auth.Identity{UID: "user-a"}
	router := newCartRouter(t, cache, identity)

	payload := `{"product":{"id":"p1","name":"梅花豬","price":450}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	// A separate request sees the persisted cart.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/cart/", nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	var body struct {
		Items     []domain.CartLine `json:"items"`
		ItemCount int64             `json:"itemCount"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(body.Items) != 1 || body.Items[0].ID != "p1" || body.ItemCount != 1 {
		t.Fatalf("unexpected cart %+v", body)
	}
}

func TestCartClearRemovesPersistedState(t *testing.T) {
	cache := localcache.NewMemory()
	identity := &auth.Identity{UID: "user-a"}
	router := newCartRouter(t, cache, identity)

	payload := `{"product":{"id":"p1","name":"梅花豬","price":450}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(httptest.NewRecorder(), req)

	req = httptest.NewRequest(http.MethodDelete, "/api/v1/cart/", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	if _, err := cache.Get(services.CartCacheKey("user-a")); err == nil {
		t.Fatalf("expected persisted cart removed")
	}
}
