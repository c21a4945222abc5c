package handlers

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/butchers-select/api/internal/domain"
	"github.com/butchers-select/api/internal/platform/auth"
	"github.com/butchers-select/api/internal/platform/httpx"
	"github.com/butchers-select/api/internal/services"
)

// CheckoutFactory builds a checkout service around a request-scoped cart engine.
type CheckoutFactory func(cart services.CartService) (services.CheckoutService, error)

// OrderHandlers exposes order submission, listing, and late proof upload.
type OrderHandlers struct {
	orders      services.OrderService
	newCart     CartFactory
	newCheckout CheckoutFactory
}

const maxUploadSize = 8 << 20

// NewOrderHandlers constructs the order endpoints.
func NewOrderHandlers(orders services.OrderService, newCart CartFactory, newCheckout CheckoutFactory) *OrderHandlers {
	return &OrderHandlers{
		orders:      orders,
		newCart:     newCart,
		newCheckout: newCheckout,
	}
}

// Routes wires the /orders endpoints onto the provided router.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Use(auth.RequireAuth)
	r.Get("/", h.listMine)
	r.Post("/", h.submit)
	r.Get("/{orderID}", h.get)
	r.Post("/{orderID}/proof", h.attachProof)
}

func (h *OrderHandlers) listMine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "orders unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, _ := auth.IdentityFromContext(ctx)

	orders, err := h.orders.ListByUser(ctx, identity.UID)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

func (h *OrderHandlers) get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "orders unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, _ := auth.IdentityFromContext(ctx)

	order, err := h.orders.Get(ctx, chi.URLParam(r, "orderID"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	if order.UserID != "" && order.UserID != identity.UID && !identity.Admin {
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", "not the owner of this order", http.StatusForbidden))
		return
	}
	httpx.WriteJSON(w, http.StatusOK, order)
}

// submit accepts a multipart checkout form with an optional proof image and runs the
// submission protocol against a request-scoped cart.
func (h *OrderHandlers) submit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.newCart == nil || h.newCheckout == nil {
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "checkout unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, _ := auth.IdentityFromContext(ctx)

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "expected multipart form", http.StatusBadRequest))
		return
	}

	method, _ := domain.ParseShippingMethod(r.FormValue("shippingMethod"))
	cmd := services.SubmitOrderCommand{
		UserID:         identity.UID,
		CustomerName:   r.FormValue("customerName"),
		Phone:          r.FormValue("phone"),
		Address:        r.FormValue("address"),
		ShippingMethod: method,
		StoreCity:      r.FormValue("storeCity"),
		StoreName:      r.FormValue("storeName"),
	}

	proof, err := readImageUpload(r, "proof")
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	cmd.Proof = proof

	cart, err := h.newCart()
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	if err := cart.SwitchUser(ctx, identity.UID); err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	checkout, err := h.newCheckout(cart)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	order, err := checkout.SubmitOrder(ctx, cmd)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, order)
}

// attachProof uploads a remittance proof for an already submitted order.
func (h *OrderHandlers) attachProof(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "orders unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, _ := auth.IdentityFromContext(ctx)

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "expected multipart form", http.StatusBadRequest))
		return
	}

	proof, err := readImageUpload(r, "proof")
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	if proof == nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "proof file is required", http.StatusBadRequest))
		return
	}

	url, err := h.orders.AttachProof(ctx, services.AttachProofCommand{
		OrderID: chi.URLParam(r, "orderID"),
		UserID:  identity.UID,
		Proof:   *proof,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"remittanceProofUrl": url})
}

// readImageUpload extracts the named multipart file; a missing file returns nil.
func readImageUpload(r *http.Request, field string) (*services.ImageUpload, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	data, err := readLimited(file)
	if err != nil {
		return nil, err
	}
	return &services.ImageUpload{
		FileName:    header.Filename,
		ContentType: contentTypeOf(header),
		Data:        data,
	}, nil
}

func contentTypeOf(header *multipart.FileHeader) string {
	if header == nil {
		return ""
	}
	return strings.TrimSpace(header.Header.Get("Content-Type"))
}
