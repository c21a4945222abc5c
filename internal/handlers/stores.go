package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/butchers-select/api/internal/platform/httpx"
	"github.com/butchers-select/api/internal/services"
)

// StoreHandlers exposes the convenience-store branch lookup used by the checkout form.
type StoreHandlers struct {
	lookup services.StoreLookupService
}

// NewStoreHandlers constructs the branch lookup endpoints.
func NewStoreHandlers(lookup services.StoreLookupService) *StoreHandlers {
	return &StoreHandlers{lookup: lookup}
}

// Routes wires the /stores endpoints onto the provided router.
func (h *StoreHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.search)
}

func (h *StoreHandlers) search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.lookup == nil {
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "store lookup unavailable", http.StatusServiceUnavailable))
		return
	}

	query := services.StoreQuery{
		City:    r.URL.Query().Get("city"),
		Town:    r.URL.Query().Get("town"),
		Keyword: r.URL.Query().Get("keyword"),
	}

	stores, err := h.lookup.Search(ctx, query)
	if err != nil {
		// A superseded search maps to the cancelled envelope; the client discards it.
		writeServiceError(ctx, w, err)
		return
	}
	if stores == nil {
		stores = []services.Store{}
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"stores": stores})
}
