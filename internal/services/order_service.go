package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	domain "github.com/butchers-select/api/internal/domain"
	"github.com/butchers-select/api/internal/platform/storage"
	"github.com/butchers-select/api/internal/repositories"
)

var (
	// ErrOrderInvalidInput indicates the caller supplied invalid order input.
	ErrOrderInvalidInput = errors.New("order service: invalid input")
	// ErrOrderNotFound indicates the requested order does not exist.
	ErrOrderNotFound = errors.New("order service: not found")
	// ErrOrderForbidden indicates the caller does not own the order.
	ErrOrderForbidden = errors.New("order service: forbidden")
	// ErrOrderUnavailable indicates the order backend cannot fulfil the request.
	ErrOrderUnavailable = errors.New("order service: unavailable")

	errOrderRepositoryRequired = errors.New("order service: repository is required")
)

// OrderServiceDeps wires the order listing and disposition dependencies.
type OrderServiceDeps struct {
	Repository repositories.OrderRepository
	Uploader   BlobUploader
	Clock      func() time.Time
	Logger     func(context.Context, string, map[string]any)
}

type orderService struct {
	repo     repositories.OrderRepository
	uploader BlobUploader
	now      func() time.Time
	logger   func(context.Context, string, map[string]any)
}

// NewOrderService constructs an OrderService enforcing dependency validation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Repository == nil {
		return nil, errOrderRepositoryRequired
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &orderService{
		repo:     deps.Repository,
		uploader: deps.Uploader,
		now:      func() time.Time { return clock().UTC() },
		logger:   logger,
	}, nil
}

// ListAll returns every order for the admin console, newest first.
func (s *orderService) ListAll(ctx context.Context) ([]domain.Order, error) {
	if s == nil || s.repo == nil {
		return nil, ErrOrderUnavailable
	}
	orders, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, translateRepoError(err, nil, ErrOrderUnavailable)
	}
	sortOrdersNewestFirst(orders)
	return orders, nil
}

// ListByUser returns the identity's own orders, newest first.
func (s *orderService) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	if s == nil || s.repo == nil {
		return nil, ErrOrderUnavailable
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fieldError(ErrOrderInvalidInput, "userId", "user id is required")
	}
	orders, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, translateRepoError(err, nil, ErrOrderUnavailable)
	}
	sortOrdersNewestFirst(orders)
	return orders, nil
}

// Get fetches one order by id.
func (s *orderService) Get(ctx context.Context, orderID string) (domain.Order, error) {
	if s == nil || s.repo == nil {
		return domain.Order{}, ErrOrderUnavailable
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.Order{}, fieldError(ErrOrderInvalidInput, "orderId", "order id is required")
	}
	order, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, translateRepoError(err, ErrOrderNotFound, ErrOrderUnavailable)
	}
	return order, nil
}

// UpdateStatus sets the order status. Transitions are admin-privileged and
// unconstrained; repeating the current status is a no-op from the caller's view.
func (s *orderService) UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus) error {
	if s == nil || s.repo == nil {
		return ErrOrderUnavailable
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return fieldError(ErrOrderInvalidInput, "orderId", "order id is required")
	}
	if !status.Valid() {
		return fieldError(ErrOrderInvalidInput, "status", "unknown status")
	}

	if err := s.repo.UpdateStatus(ctx, orderID, status); err != nil {
		s.logger(ctx, "orders.status_update_failed", map[string]any{
			"orderID": orderID,
			"status":  string(status),
			"error":   err.Error(),
		})
		return translateRepoError(err, ErrOrderNotFound, ErrOrderUnavailable)
	}
	return nil
}

// AttachProof uploads a remittance proof for an existing order and records its URL.
// Only the owning identity may attach a proof; admin checks happen at the handler.
func (s *orderService) AttachProof(ctx context.Context, cmd AttachProofCommand) (string, error) {
	if s == nil || s.repo == nil {
		return "", ErrOrderUnavailable
	}
	if s.uploader == nil {
		return "", errors.Join(ErrOrderUnavailable, errors.New("no uploader configured"))
	}
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return "", fieldError(ErrOrderInvalidInput, "orderId", "order id is required")
	}
	if len(cmd.Proof.Data) == 0 {
		return "", fieldError(ErrOrderInvalidInput, "proof", "proof image is empty")
	}

	order, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return "", translateRepoError(err, ErrOrderNotFound, ErrOrderUnavailable)
	}
	if uid := strings.TrimSpace(cmd.UserID); uid != "" && order.UserID != "" && order.UserID != uid {
		return "", ErrOrderForbidden
	}

	object, err := storage.ProofObjectPath(orderID, cmd.Proof.FileName, s.now())
	if err != nil {
		return "", fieldError(ErrOrderInvalidInput, "proof", err.Error())
	}
	url, err := s.uploader.Put(ctx, object, cmd.Proof.Data, cmd.Proof.ContentType)
	if err != nil {
		s.logger(ctx, "orders.proof_upload_failed", map[string]any{
			"orderID": orderID,
			"error":   err.Error(),
		})
		return "", errors.Join(ErrOrderUnavailable, err)
	}

	if err := s.repo.AttachProof(ctx, orderID, url); err != nil {
		return "", translateRepoError(err, ErrOrderNotFound, ErrOrderUnavailable)
	}
	return url, nil
}

// sortOrdersNewestFirst sorts by the server creation time, falling back to the client
// timestamp for records that predate the server stamp.
func sortOrdersNewestFirst(orders []domain.Order) {
	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].EffectiveCreatedAt().After(orders[j].EffectiveCreatedAt())
	})
}
