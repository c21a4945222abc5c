package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	domain "github.com/butchers-select/api/internal/domain"
	"github.com/butchers-select/api/internal/platform/auth"
	"github.com/butchers-select/api/internal/platform/httpx"
	"github.com/butchers-select/api/internal/services"
)

// AdminHandlers exposes the admin console surface: product CRUD with image uploads,
// order status disposition, the announcement banner, and the free-shipping settings.
type AdminHandlers struct {
	catalog       services.CatalogService
	orders        services.OrderService
	announcements services.AnnouncementService
	shipping      services.ShippingService
}

// NewAdminHandlers constructs the admin endpoints.
func NewAdminHandlers(catalog services.CatalogService, orders services.OrderService, announcements services.AnnouncementService, shipping services.ShippingService) *AdminHandlers {
	return &AdminHandlers{
		catalog:       catalog,
		orders:        orders,
		announcements: announcements,
		shipping:      shipping,
	}
}

// Routes wires the /admin endpoints onto the provided router.
func (h *AdminHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Use(auth.RequireAdmin)

	r.Post("/products", h.addProduct)
	r.Put("/products/{productID}", h.updateProduct)
	r.Delete("/products/{productID}", h.deleteProduct)
	r.Post("/products/{productID}/images", h.uploadImages)

	r.Get("/orders", h.listOrders)
	r.Put("/orders/{orderID}/status", h.updateOrderStatus)

	r.Put("/announcement", h.saveAnnouncement)
	r.Put("/shipping/settings", h.saveShippingSettings)
}

type productRequest struct {
	Name                 string   `json:"name"`
	Category             string   `json:"category"`
	Description          string   `json:"description"`
	Price                int64    `json:"price"`
	ImageURLs            []string `json:"imageUrls"`
	FreeShippingQuantity int64    `json:"freeShippingQuantity"`
}

func (h *AdminHandlers) addProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "catalog unavailable", http.StatusServiceUnavailable))
		return
	}

	var body productRequest
	if err := decodeJSONBody(r, &body); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	product, err := h.catalog.AddProduct(ctx, services.AddProductCommand{
		Name:                 body.Name,
		Category:             body.Category,
		Description:          body.Description,
		Price:                body.Price,
		ImageURLs:            body.ImageURLs,
		FreeShippingQuantity: body.FreeShippingQuantity,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, product)
}

func (h *AdminHandlers) updateProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "catalog unavailable", http.StatusServiceUnavailable))
		return
	}

	var body productRequest
	if err := decodeJSONBody(r, &body); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	product, err := h.catalog.UpdateProduct(ctx, services.UpdateProductCommand{
		ID:                   chi.URLParam(r, "productID"),
		Name:                 body.Name,
		Category:             body.Category,
		Description:          body.Description,
		Price:                body.Price,
		ImageURLs:            body.ImageURLs,
		FreeShippingQuantity: body.FreeShippingQuantity,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, product)
}

func (h *AdminHandlers) deleteProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "catalog unavailable", http.StatusServiceUnavailable))
		return
	}
	if err := h.catalog.DeleteProduct(ctx, chi.URLParam(r, "productID")); err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// uploadImages accepts a multipart form with one or more files under the images field
// and returns their public URLs in upload order.
func (h *AdminHandlers) uploadImages(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "catalog unavailable", http.StatusServiceUnavailable))
		return
	}

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "expected multipart form", http.StatusBadRequest))
		return
	}

	var files []services.ImageUpload
	if r.MultipartForm != nil {
		for _, header := range r.MultipartForm.File["images"] {
			file, err := header.Open()
			if err != nil {
				httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
				return
			}
			data, err := readLimited(file)
			_ = file.Close()
			if err != nil {
				httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
				return
			}
			files = append(files, services.ImageUpload{
				FileName:    header.Filename,
				ContentType: contentTypeOf(header),
				Data:        data,
			})
		}
	}

	urls, err := h.catalog.UploadImages(ctx, chi.URLParam(r, "productID"), files)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"imageUrls": urls})
}

func (h *AdminHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "orders unavailable", http.StatusServiceUnavailable))
		return
	}

	orders, err := h.orders.ListAll(ctx)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

func (h *AdminHandlers) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "orders unavailable", http.StatusServiceUnavailable))
		return
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := decodeJSONBody(r, &body); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	if err := h.orders.UpdateStatus(ctx, chi.URLParam(r, "orderID"), domain.OrderStatus(body.Status)); err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandlers) saveAnnouncement(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.announcements == nil {
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "announcements unavailable", http.StatusServiceUnavailable))
		return
	}

	var body struct {
		Message string `json:"message"`
	}
	if err := decodeJSONBody(r, &body); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	message, err := h.announcements.Save(ctx, body.Message)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"message": message})
}

func (h *AdminHandlers) saveShippingSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.shipping == nil {
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "shipping unavailable", http.StatusServiceUnavailable))
		return
	}

	var body struct {
		FreeShippingThreshold *int64 `json:"freeShippingThreshold"`
	}
	if err := decodeJSONBody(r, &body); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	settings, err := h.shipping.SaveThreshold(ctx, body.FreeShippingThreshold)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, settings)
}

func readLimited(file io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(file, maxUploadSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxUploadSize {
		return nil, errors.New("file exceeds allowed size")
	}
	return data, nil
}
