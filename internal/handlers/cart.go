package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	domain "github.com/butchers-select/api/internal/domain"
	"github.com/butchers-select/api/internal/platform/auth"
	"github.com/butchers-select/api/internal/platform/httpx"
	"github.com/butchers-select/api/internal/services"
)

// CartFactory builds a fresh cart engine bound to the shared local cache. Handlers
// create one per request so concurrent shoppers never share in-memory state.
type CartFactory func() (services.CartService, error)

// CartHandlers exposes the authenticated cart endpoints.
type CartHandlers struct {
	newCart  CartFactory
	shipping services.ShippingService
}

const maxCartBodySize = 64 * 1024

// NewCartHandlers constructs the cart endpoints.
func NewCartHandlers(newCart CartFactory, shipping services.ShippingService) *CartHandlers {
	return &CartHandlers{
		newCart:  newCart,
		shipping: shipping,
	}
}

// Routes wires the /cart endpoints onto the provided router.
func (h *CartHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Use(auth.RequireAuth)
	r.Get("/", h.getCart)
	r.Post("/items", h.addItem)
	r.Put("/items/{productID}", h.setQuantity)
	r.Delete("/items/{productID}", h.removeItem)
	r.Delete("/", h.clearCart)
	r.Get("/quote", h.quote)
}

// openCart builds a request-scoped cart engine attached to the caller's identity.
func (h *CartHandlers) openCart(w http.ResponseWriter, r *http.Request) (services.CartService, bool) {
	ctx := r.Context()
	if h.newCart == nil {
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "cart unavailable", http.StatusServiceUnavailable))
		return nil, false
	}
	identity, _ := auth.IdentityFromContext(ctx)

	cart, err := h.newCart()
	if err != nil {
		writeServiceError(ctx, w, err)
		return nil, false
	}
	if err := cart.SwitchUser(ctx, identity.UID); err != nil {
		writeServiceError(ctx, w, err)
		return nil, false
	}
	return cart, true
}

func (h *CartHandlers) getCart(w http.ResponseWriter, r *http.Request) {
	cart, ok := h.openCart(w, r)
	if !ok {
		return
	}
	writeCart(w, cart)
}

func (h *CartHandlers) addItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cart, ok := h.openCart(w, r)
	if !ok {
		return
	}

	var body struct {
		Product domain.Product `json:"product"`
	}
	if err := decodeJSONBody(r, &body); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	added, err := cart.AddLine(ctx, body.Product)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	if !added {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "sign in to add items", http.StatusUnauthorized))
		return
	}
	writeCart(w, cart)
}

func (h *CartHandlers) setQuantity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cart, ok := h.openCart(w, r)
	if !ok {
		return
	}

	var body struct {
		Quantity int64 `json:"quantity"`
	}
	if err := decodeJSONBody(r, &body); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	if err := cart.SetQuantity(ctx, chi.URLParam(r, "productID"), body.Quantity); err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeCart(w, cart)
}

func (h *CartHandlers) removeItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cart, ok := h.openCart(w, r)
	if !ok {
		return
	}
	if err := cart.RemoveLine(ctx, chi.URLParam(r, "productID")); err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeCart(w, cart)
}

func (h *CartHandlers) clearCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cart, ok := h.openCart(w, r)
	if !ok {
		return
	}
	if err := cart.Clear(ctx); err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeCart(w, cart)
}

// quote prices the current cart for the carrier given in the method query parameter.
func (h *CartHandlers) quote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.shipping == nil {
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "shipping unavailable", http.StatusServiceUnavailable))
		return
	}
	cart, ok := h.openCart(w, r)
	if !ok {
		return
	}

	method, valid := domain.ParseShippingMethod(r.URL.Query().Get("method"))
	if !valid {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "unknown shipping method", http.StatusBadRequest))
		return
	}

	quote, err := h.shipping.Quote(ctx, cart.Lines(), method)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, quote)
}

func writeCart(w http.ResponseWriter, cart services.CartService) {
	lines := cart.Lines()
	if lines == nil {
		lines = []domain.CartLine{}
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"items":     lines,
		"itemCount": cart.ItemCount(),
	})
}

func decodeJSONBody(r *http.Request, target any) error {
	defer r.Body.Close()
	decoder := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxCartBodySize))
	decoder.DisallowUnknownFields()
	return decoder.Decode(target)
}
