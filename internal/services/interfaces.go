package services

import (
	"context"
	"errors"

	domain "github.com/butchers-select/api/internal/domain"
	"github.com/butchers-select/api/internal/repositories"
)

// BlobUploader writes binary payloads to the blob store and returns public URLs.
type BlobUploader interface {
	Put(ctx context.Context, object string, data []byte, contentType string) (string, error)
}

// BlobStore extends BlobUploader with removal for owners of their objects' lifecycle.
type BlobStore interface {
	BlobUploader
	Delete(ctx context.Context, object string) error
	ObjectFromURL(url string) (string, bool)
}

// ImageUpload carries one uploaded file's bytes and metadata.
type ImageUpload struct {
	FileName    string
	ContentType string
	Data        []byte
}

// CatalogService exposes the product collection with optimistic admin mutations.
type CatalogService interface {
	Load(ctx context.Context) ([]domain.Product, error)
	Products() ([]domain.Product, bool)
	AddProduct(ctx context.Context, cmd AddProductCommand) (domain.Product, error)
	UpdateProduct(ctx context.Context, cmd UpdateProductCommand) (domain.Product, error)
	DeleteProduct(ctx context.Context, productID string) error
	UploadImages(ctx context.Context, productID string, files []ImageUpload) ([]string, error)
}

// AddProductCommand carries the admin input for a new catalog entry.
type AddProductCommand struct {
	Name                 string
	Category             string
	Description          string
	Price                int64
	ImageURLs            []string
	FreeShippingQuantity int64
}

// UpdateProductCommand carries the admin input for editing an existing entry.
type UpdateProductCommand struct {
	ID                   string
	Name                 string
	Category             string
	Description          string
	Price                int64
	ImageURLs            []string
	FreeShippingQuantity int64
}

// CartService keeps the active identity's cart in memory and persisted locally.
type CartService interface {
	SwitchUser(ctx context.Context, userID string) error
	AddLine(ctx context.Context, product domain.Product) (bool, error)
	SetQuantity(ctx context.Context, productID string, quantity int64) error
	RemoveLine(ctx context.Context, productID string) error
	Clear(ctx context.Context) error
	Lines() []domain.CartLine
	ItemCount() int64
}

// CheckoutService runs the order submission protocol.
type CheckoutService interface {
	SubmitOrder(ctx context.Context, cmd SubmitOrderCommand) (domain.Order, error)
}

// SubmitOrderCommand carries the checkout form input plus the optional proof image.
type SubmitOrderCommand struct {
	UserID         string
	CustomerName   string
	Phone          string
	Address        string
	ShippingMethod domain.ShippingMethod
	StoreCity      string
	StoreName      string
	Proof          *ImageUpload
}

// OrderService exposes order listing and admin disposition.
type OrderService interface {
	ListAll(ctx context.Context) ([]domain.Order, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Order, error)
	Get(ctx context.Context, orderID string) (domain.Order, error)
	UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus) error
	AttachProof(ctx context.Context, cmd AttachProofCommand) (string, error)
}

// AttachProofCommand carries a late remittance proof upload for an existing order.
type AttachProofCommand struct {
	OrderID string
	UserID  string
	Proof   ImageUpload
}

// AnnouncementService exposes the storefront banner message.
type AnnouncementService interface {
	Load(ctx context.Context) (string, error)
	Message() string
	Save(ctx context.Context, message string) (string, error)
}

// ShippingService exposes carrier options, the singleton settings, and quotes.
type ShippingService interface {
	Options() []domain.ShippingOption
	Load(ctx context.Context) (domain.ShippingSettings, error)
	Settings() domain.ShippingSettings
	SaveThreshold(ctx context.Context, threshold *int64) (domain.ShippingSettings, error)
	Quote(ctx context.Context, lines []domain.CartLine, method domain.ShippingMethod) (domain.Quote, error)
}

// StoreLookupService searches convenience-store branches as the shopper types.
type StoreLookupService interface {
	Search(ctx context.Context, query StoreQuery) ([]Store, error)
}

// StoreQuery narrows the branch search.
type StoreQuery struct {
	City    string
	Town    string
	Keyword string
}

// Store is one convenience-store branch returned by the lookup endpoint.
type Store struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	City    string `json:"city"`
	Town    string `json:"town"`
	Address string `json:"address"`
}

// FieldError reports which input field failed validation. It unwraps to the owning
// service's invalid-input sentinel so callers can branch on the category.
type FieldError struct {
	Field   string
	Message string
	wrapped error
}

// Error implements the error interface.
func (e *FieldError) Error() string {
	if e == nil {
		return ""
	}
	return e.Field + ": " + e.Message
}

// Unwrap exposes the invalid-input sentinel.
func (e *FieldError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.wrapped
}

func fieldError(sentinel error, field, message string) *FieldError {
	return &FieldError{Field: field, Message: message, wrapped: sentinel}
}

func translateRepoError(err error, notFound, unavailable error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if repositories.IsNotFound(err) && notFound != nil {
		return notFound
	}
	if unavailable != nil {
		return errors.Join(unavailable, err)
	}
	return err
}
