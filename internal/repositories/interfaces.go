package repositories

import (
	"context"
	"errors"

	domain "github.com/butchers-select/api/internal/domain"
)

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// IsNotFound reports whether the error chain categorises as a missing document.
func IsNotFound(err error) bool {
	var repoErr RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}

// IsUnavailable reports whether the error chain categorises as a transient outage.
func IsUnavailable(err error) bool {
	var repoErr RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsUnavailable()
}

// ProductRepository persists the catalog collection.
type ProductRepository interface {
	List(ctx context.Context) ([]domain.Product, error)
	Upsert(ctx context.Context, product domain.Product) error
	Update(ctx context.Context, product domain.Product) error
	Delete(ctx context.Context, productID string) error
}

// OrderRepository persists order records and their admin-owned status field.
type OrderRepository interface {
	Create(ctx context.Context, order domain.Order) error
	Get(ctx context.Context, orderID string) (domain.Order, error)
	ListAll(ctx context.Context) ([]domain.Order, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Order, error)
	UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus) error
	AttachProof(ctx context.Context, orderID string, proofURL string) error
}

// AnnouncementRepository persists the singleton storefront banner message.
type AnnouncementRepository interface {
	Fetch(ctx context.Context) (string, bool, error)
	Save(ctx context.Context, message string) error
}

// ShippingSettingsRepository persists the singleton free-shipping configuration.
type ShippingSettingsRepository interface {
	Fetch(ctx context.Context) (domain.ShippingSettings, bool, error)
	Save(ctx context.Context, settings domain.ShippingSettings) error
}
