package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	domain "github.com/butchers-select/api/internal/domain"
	"github.com/butchers-select/api/internal/platform/httpx"
	"github.com/butchers-select/api/internal/services"
)

// PublicHandlers serves the unauthenticated storefront read surface: the product
// catalog, the announcement banner, and the shipping carrier table and settings.
type PublicHandlers struct {
	catalog       services.CatalogService
	announcements services.AnnouncementService
	shipping      services.ShippingService
	remittance    RemittanceInfo
}

// RemittanceInfo carries the bank transfer details shown to shoppers at checkout.
type RemittanceInfo struct {
	BankName      string `json:"bankName"`
	BankCode      string `json:"bankCode"`
	AccountNumber string `json:"accountNumber"`
	AccountName   string `json:"accountName"`
}

func (i RemittanceInfo) configured() bool {
	return i.BankName != "" || i.AccountNumber != ""
}

// PublicOption customises the public handler set.
type PublicOption func(*PublicHandlers)

// WithRemittanceInfo attaches the bank transfer details served at /remittance.
func WithRemittanceInfo(info RemittanceInfo) PublicOption {
	return func(h *PublicHandlers) {
		h.remittance = info
	}
}

// NewPublicHandlers constructs the public storefront handlers.
func NewPublicHandlers(catalog services.CatalogService, announcements services.AnnouncementService, shipping services.ShippingService, opts ...PublicOption) *PublicHandlers {
	h := &PublicHandlers{
		catalog:       catalog,
		announcements: announcements,
		shipping:      shipping,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes wires the public endpoints onto the provided router.
func (h *PublicHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/products", h.listProducts)
	r.Get("/announcement", h.getAnnouncement)
	r.Get("/shipping/options", h.listShippingOptions)
	r.Get("/shipping/settings", h.getShippingSettings)
	r.Get("/remittance", h.getRemittanceInfo)
}

func (h *PublicHandlers) getRemittanceInfo(w http.ResponseWriter, r *http.Request) {
	if !h.remittance.configured() {
		httpx.WriteError(r.Context(), w, httpx.NewError("not_configured", "remittance details not configured", http.StatusNotFound))
		return
	}
	httpx.WriteJSON(w, http.StatusOK, h.remittance)
}

func (h *PublicHandlers) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "catalog unavailable", http.StatusServiceUnavailable))
		return
	}

	products, err := h.catalog.Load(ctx)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	if products == nil {
		products = []domain.Product{}
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"products": products})
}

func (h *PublicHandlers) getAnnouncement(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.announcements == nil {
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "announcements unavailable", http.StatusServiceUnavailable))
		return
	}

	message, err := h.announcements.Load(ctx)
	if err != nil {
		// The default banner still renders when the backend is unreachable.
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"message": message, "degraded": true})
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"message": message})
}

func (h *PublicHandlers) listShippingOptions(w http.ResponseWriter, r *http.Request) {
	options := domain.ShippingOptions()
	payload := make([]map[string]any, 0, len(options))
	for _, option := range options {
		payload = append(payload, map[string]any{
			"method":       option.Method,
			"label":        option.Label,
			"fee":          option.Fee,
			"storeToStore": option.Method.IsStoreToStore(),
		})
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"options": payload})
}

func (h *PublicHandlers) getShippingSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.shipping == nil {
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "shipping settings unavailable", http.StatusServiceUnavailable))
		return
	}

	settings, err := h.shipping.Load(ctx)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, settings)
}
