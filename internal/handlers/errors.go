package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/butchers-select/api/internal/platform/httpx"
	"github.com/butchers-select/api/internal/services"
)

// writeServiceError maps service sentinels onto the JSON error envelope. Field-level
// validation failures carry the offending field name in the payload.
func writeServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	var fieldErr *services.FieldError
	if errors.As(err, &fieldErr) {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", fieldErr.Message, http.StatusBadRequest).
			WithDetails(map[string]any{"field": fieldErr.Field}))
		return
	}

	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		httpx.WriteError(ctx, w, httpx.NewError("request_cancelled", "request cancelled", 499))
	case errors.Is(err, services.ErrCatalogInvalidInput),
		errors.Is(err, services.ErrCartInvalidInput),
		errors.Is(err, services.ErrCheckoutInvalidInput),
		errors.Is(err, services.ErrOrderInvalidInput),
		errors.Is(err, services.ErrAnnouncementInvalidInput),
		errors.Is(err, services.ErrShippingInvalidInput),
		errors.Is(err, services.ErrStoreLookupInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCheckoutEmptyCart):
		httpx.WriteError(ctx, w, httpx.NewError("cart_empty", "cart is empty", http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrCatalogNotFound), errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("not_found", "resource not found", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderForbidden):
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", "not the owner of this resource", http.StatusForbidden))
	case errors.Is(err, services.ErrCheckoutUploadFailed):
		httpx.WriteError(ctx, w, httpx.NewError("upload_failed", "proof upload failed, order was not created", http.StatusBadGateway))
	case errors.Is(err, services.ErrCheckoutPersistFailed):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_saved", "order could not be saved, please retry", http.StatusBadGateway))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "service temporarily unavailable", http.StatusServiceUnavailable))
	}
}
