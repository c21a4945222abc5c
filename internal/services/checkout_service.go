package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/butchers-select/api/internal/domain"
	"github.com/butchers-select/api/internal/platform/jobs"
	"github.com/butchers-select/api/internal/platform/storage"
	"github.com/butchers-select/api/internal/repositories"
)

const orderIDPrefix = "BS-"

var (
	// ErrCheckoutInvalidInput indicates a required checkout field is missing or malformed.
	ErrCheckoutInvalidInput = errors.New("checkout service: invalid input")
	// ErrCheckoutEmptyCart indicates submission was attempted with no cart lines.
	ErrCheckoutEmptyCart = errors.New("checkout service: cart is empty")
	// ErrCheckoutUploadFailed indicates the proof image could not be stored; nothing
	// was persisted.
	ErrCheckoutUploadFailed = errors.New("checkout service: proof upload failed")
	// ErrCheckoutPersistFailed indicates the order record could not be written; the
	// cart is left untouched so the shopper can retry.
	ErrCheckoutPersistFailed = errors.New("checkout service: order could not be saved")
	// ErrCheckoutUnavailable indicates missing dependencies.
	ErrCheckoutUnavailable = errors.New("checkout service: unavailable")

	errCheckoutOrdersRequired   = errors.New("checkout service: order repository is required")
	errCheckoutCartRequired     = errors.New("checkout service: cart service is required")
	errCheckoutShippingRequired = errors.New("checkout service: shipping service is required")
)

// CheckoutServiceDeps wires the submission protocol's dependencies.
type CheckoutServiceDeps struct {
	Orders      repositories.OrderRepository
	Cart        CartService
	Shipping    ShippingService
	Uploader    BlobUploader
	Publisher   jobs.OrderPublisher
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(context.Context, string, map[string]any)
}

type checkoutService struct {
	orders    repositories.OrderRepository
	cart      CartService
	shipping  ShippingService
	uploader  BlobUploader
	publisher jobs.OrderPublisher
	newID     func() string
	now       func() time.Time
	logger    func(context.Context, string, map[string]any)
}

// NewCheckoutService constructs a CheckoutService enforcing dependency validation.
func NewCheckoutService(deps CheckoutServiceDeps) (CheckoutService, error) {
	if deps.Orders == nil {
		return nil, errCheckoutOrdersRequired
	}
	if deps.Cart == nil {
		return nil, errCheckoutCartRequired
	}
	if deps.Shipping == nil {
		return nil, errCheckoutShippingRequired
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	return &checkoutService{
		orders:    deps.Orders,
		cart:      deps.Cart,
		shipping:  deps.Shipping,
		uploader:  deps.Uploader,
		publisher: deps.Publisher,
		newID:     idGen,
		now:       func() time.Time { return clock().UTC() },
		logger:    logger,
	}, nil
}

// SubmitOrder runs the submission protocol: validate, freeze the cart into order
// lines, upload the proof image (abort on failure), persist, then clear the cart.
// Persist failures leave the cart untouched so the shopper can retry.
func (s *checkoutService) SubmitOrder(ctx context.Context, cmd SubmitOrderCommand) (domain.Order, error) {
	if s == nil || s.orders == nil {
		return domain.Order{}, ErrCheckoutUnavailable
	}

	if err := validateSubmission(cmd); err != nil {
		return domain.Order{}, err
	}

	lines := s.cart.Lines()
	if len(lines) == 0 {
		return domain.Order{}, ErrCheckoutEmptyCart
	}

	quote, err := s.shipping.Quote(ctx, lines, cmd.ShippingMethod)
	if err != nil {
		return domain.Order{}, err
	}

	now := s.now()
	order := domain.Order{
		OrderID:        orderIDPrefix + s.newID(),
		Timestamp:      now,
		CustomerName:   strings.TrimSpace(cmd.CustomerName),
		Phone:          strings.TrimSpace(cmd.Phone),
		ShippingMethod: cmd.ShippingMethod,
		ShippingFee:    quote.ShippingFee,
		Total:          quote.Total,
		Items:          freezeLines(lines),
		Status:         domain.OrderStatusPendingConfirmation,
		UserID:         strings.TrimSpace(cmd.UserID),
	}
	order.ShippingMethodLabel = cmd.ShippingMethod.Label()

	if cmd.ShippingMethod.IsStoreToStore() {
		order.StoreCity = strings.TrimSpace(cmd.StoreCity)
		order.StoreName = strings.TrimSpace(cmd.StoreName)
		order.ShippingDetail = order.StoreCity + " " + order.StoreName
	} else {
		order.Address = strings.TrimSpace(cmd.Address)
		order.ShippingDetail = order.Address
	}

	if cmd.Proof != nil {
		url, err := s.uploadProof(ctx, order.OrderID, *cmd.Proof, now)
		if err != nil {
			return domain.Order{}, err
		}
		order.RemittanceProofURL = url
		order.RemittanceSubmitted = true
	}

	if err := s.orders.Create(ctx, order); err != nil {
		s.logger(ctx, "checkout.persist_failed", map[string]any{
			"orderID": order.OrderID,
			"error":   err.Error(),
		})
		return domain.Order{}, fmt.Errorf("%w: %v", ErrCheckoutPersistFailed, err)
	}

	if err := s.cart.Clear(ctx); err != nil {
		// The order exists; a failed cache cleanup must not fail the submission.
		s.logger(ctx, "checkout.cart_clear_failed", map[string]any{
			"orderID": order.OrderID,
			"error":   err.Error(),
		})
	}

	s.publishSubmitted(ctx, order)

	s.logger(ctx, "checkout.order_submitted", map[string]any{
		"orderID": order.OrderID,
		"total":   order.Total,
	})
	return order, nil
}

func (s *checkoutService) uploadProof(ctx context.Context, orderID string, proof ImageUpload, now time.Time) (string, error) {
	if s.uploader == nil {
		return "", fmt.Errorf("%w: no uploader configured", ErrCheckoutUploadFailed)
	}
	if len(proof.Data) == 0 {
		return "", fieldError(ErrCheckoutInvalidInput, "proof", "proof image is empty")
	}

	object, err := storage.ProofObjectPath(orderID, proof.FileName, now)
	if err != nil {
		return "", fieldError(ErrCheckoutInvalidInput, "proof", err.Error())
	}
	url, err := s.uploader.Put(ctx, object, proof.Data, proof.ContentType)
	if err != nil {
		s.logger(ctx, "checkout.proof_upload_failed", map[string]any{
			"orderID": orderID,
			"error":   err.Error(),
		})
		return "", fmt.Errorf("%w: %v", ErrCheckoutUploadFailed, err)
	}
	return url, nil
}

func (s *checkoutService) publishSubmitted(ctx context.Context, order domain.Order) {
	if s.publisher == nil {
		return
	}
	_, err := s.publisher.PublishOrderSubmitted(ctx, jobs.OrderSubmittedMessage{
		OrderID:       order.OrderID,
		UserID:        order.UserID,
		CustomerName:  order.CustomerName,
		Total:         order.Total,
		HasProof:      order.RemittanceSubmitted,
		SubmittedAt:   order.Timestamp,
		ShippingLabel: order.ShippingMethodLabel,
	})
	if err != nil {
		// Notification delivery is best-effort and never fails the order.
		s.logger(ctx, "checkout.notify_failed", map[string]any{
			"orderID": order.OrderID,
			"error":   err.Error(),
		})
	}
}

// validateSubmission fails fast before any network call is issued.
func validateSubmission(cmd SubmitOrderCommand) error {
	if strings.TrimSpace(cmd.CustomerName) == "" {
		return fieldError(ErrCheckoutInvalidInput, "customerName", "name is required")
	}
	if strings.TrimSpace(cmd.Phone) == "" {
		return fieldError(ErrCheckoutInvalidInput, "phone", "phone is required")
	}
	if !cmd.ShippingMethod.Valid() {
		return fieldError(ErrCheckoutInvalidInput, "shippingMethod", "unknown carrier")
	}
	if cmd.ShippingMethod.IsStoreToStore() {
		if strings.TrimSpace(cmd.StoreCity) == "" {
			return fieldError(ErrCheckoutInvalidInput, "storeCity", "store city is required")
		}
		if strings.TrimSpace(cmd.StoreName) == "" {
			return fieldError(ErrCheckoutInvalidInput, "storeName", "store name is required")
		}
		return nil
	}
	if strings.TrimSpace(cmd.Address) == "" {
		return fieldError(ErrCheckoutInvalidInput, "address", "address is required")
	}
	return nil
}

// freezeLines copies the cart lines into immutable order lines with subtotals
// computed at submission time.
func freezeLines(lines []domain.CartLine) []domain.OrderLine {
	frozen := make([]domain.OrderLine, 0, len(lines))
	for _, line := range lines {
		frozen = append(frozen, domain.OrderLine{
			ID:       line.ID,
			Name:     line.Name,
			Quantity: line.Quantity,
			Price:    line.Price,
			Subtotal: line.LineSubtotal(),
		})
	}
	return frozen
}
