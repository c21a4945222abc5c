package firestore

import (
	"context"
	"errors"
	"strings"

	"cloud.google.com/go/firestore"

	domain "github.com/butchers-select/api/internal/domain"
	pfirestore "github.com/butchers-select/api/internal/platform/firestore"
)

const productCollection = "products"

// ProductRepository persists catalog products within Firestore.
type ProductRepository struct {
	base *pfirestore.BaseRepository[domain.Product]
}

// NewProductRepository constructs a Firestore-backed product repository.
func NewProductRepository(provider *pfirestore.Provider) (*ProductRepository, error) {
	if provider == nil {
		return nil, errors.New("product repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[domain.Product](provider, productCollection, encodeProduct, decodeProduct)
	return &ProductRepository{base: base}, nil
}

// List returns every product in the catalog.
func (r *ProductRepository) List(ctx context.Context) ([]domain.Product, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("product repository not initialised")
	}

	docs, err := r.base.Query(ctx, nil)
	if err != nil {
		return nil, err
	}

	products := make([]domain.Product, 0, len(docs))
	for _, doc := range docs {
		product := doc.Data
		if strings.TrimSpace(product.ID) == "" {
			product.ID = doc.ID
		}
		products = append(products, product)
	}
	return products, nil
}

// Upsert writes the full product document under its id.
func (r *ProductRepository) Upsert(ctx context.Context, product domain.Product) error {
	if r == nil || r.base == nil {
		return errors.New("product repository not initialised")
	}
	return r.base.Set(ctx, product.ID, product)
}

// Update applies the product fields as a merge so unknown legacy fields survive.
func (r *ProductRepository) Update(ctx context.Context, product domain.Product) error {
	if r == nil || r.base == nil {
		return errors.New("product repository not initialised")
	}
	return r.base.Set(ctx, product.ID, product, firestore.MergeAll)
}

// Delete removes the product document.
func (r *ProductRepository) Delete(ctx context.Context, productID string) error {
	if r == nil || r.base == nil {
		return errors.New("product repository not initialised")
	}
	return r.base.Delete(ctx, productID)
}

// encodeProduct mirrors the quantity threshold into the legacy freeamount field so
// older clients keep reading it.
func encodeProduct(_ context.Context, product domain.Product) (any, error) {
	fields := map[string]any{
		"id":          strings.TrimSpace(product.ID),
		"name":        product.Name,
		"category":    product.Category,
		"description": product.Description,
		"price":       product.Price,
		"freeamount":  product.FreeShippingQuantity,
	}
	fields["freeShippingQuantity"] = product.FreeShippingQuantity
	if len(product.ImageURLs) > 0 {
		fields["imageUrls"] = product.ImageURLs
	}
	return fields, nil
}

// decodeProduct accepts both the current and the legacy field layout.
func decodeProduct(_ context.Context, snap *firestore.DocumentSnapshot) (domain.Product, error) {
	data := snap.Data()
	if data == nil {
		data = map[string]any{}
	}

	product := domain.Product{
		ID:          asString(data["id"]),
		Name:        asString(data["name"]),
		Category:    asString(data["category"]),
		Description: asString(data["description"]),
		Price:       asInt64(data["price"]),
		ImageURLs:   asStringSlice(data["imageUrls"]),
	}
	if product.ID == "" {
		product.ID = snap.Ref.ID
	}

	threshold := asInt64(data["freeamount"])
	if threshold == 0 {
		threshold = asInt64(data["freeShippingQuantity"])
	}
	product.FreeShippingQuantity = threshold

	// Single-image legacy records predate the imageUrls array.
	if len(product.ImageURLs) == 0 {
		if legacy := asString(data["imageUrl"]); legacy != "" {
			product.ImageURLs = []string{legacy}
		}
	}
	return product, nil
}
