package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/butchers-select/api/internal/domain"
	"github.com/butchers-select/api/internal/platform/localcache"
	"github.com/butchers-select/api/internal/platform/storage"
	"github.com/butchers-select/api/internal/repositories"
	"github.com/butchers-select/api/internal/syncstore"
)

// ProductCacheKey is the local snapshot key for the catalog collection.
const ProductCacheKey = "bs_products_cache"

var (
	// ErrCatalogInvalidInput indicates the caller supplied invalid product input.
	ErrCatalogInvalidInput = errors.New("catalog service: invalid input")
	// ErrCatalogUnavailable indicates the catalog backend cannot fulfil the request.
	ErrCatalogUnavailable = errors.New("catalog service: unavailable")
	// ErrCatalogNotFound indicates the requested product does not exist.
	ErrCatalogNotFound = errors.New("catalog service: not found")

	errCatalogRepositoryRequired = errors.New("catalog service: repository is required")
	errCatalogCacheRequired      = errors.New("catalog service: cache is required")
)

// CatalogServiceDeps wires the catalog collection's dependencies.
type CatalogServiceDeps struct {
	Repository  repositories.ProductRepository
	Cache       localcache.Cache
	Uploader    BlobStore
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(context.Context, string, map[string]any)
}

type catalogService struct {
	repo       repositories.ProductRepository
	uploader   BlobStore
	collection *syncstore.Collection[[]domain.Product]
	newID      func() string
	now        func() time.Time
	logger     func(context.Context, string, map[string]any)
}

// NewCatalogService constructs a CatalogService backed by a synced collection.
func NewCatalogService(deps CatalogServiceDeps) (CatalogService, error) {
	if deps.Repository == nil {
		return nil, errCatalogRepositoryRequired
	}
	if deps.Cache == nil {
		return nil, errCatalogCacheRequired
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

	collection, err := syncstore.New(syncstore.Deps[[]domain.Product]{
		Cache:    deps.Cache,
		CacheKey: ProductCacheKey,
		Fetch:    deps.Repository.List,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}

	return &catalogService{
		repo:       deps.Repository,
		uploader:   deps.Uploader,
		collection: collection,
		newID:      idGen,
		now:        func() time.Time { return clock().UTC() },
		logger:     logger,
	}, nil
}

// Load publishes the cached catalog immediately and reconciles with the remote store.
func (s *catalogService) Load(ctx context.Context) ([]domain.Product, error) {
	if s == nil || s.collection == nil {
		return nil, ErrCatalogUnavailable
	}
	products, err := s.collection.Load(ctx)
	if err != nil {
		return nil, translateRepoError(err, nil, ErrCatalogUnavailable)
	}
	return products, nil
}

// Products returns the latest published snapshot without touching the network.
func (s *catalogService) Products() ([]domain.Product, bool) {
	if s == nil || s.collection == nil {
		return nil, false
	}
	return s.collection.Snapshot()
}

// ensureLoaded returns the published catalog, loading cache-first when no value has
// been published yet so mutations do not depend on an earlier read in this process.
func (s *catalogService) ensureLoaded(ctx context.Context) ([]domain.Product, error) {
	if snapshot, ok := s.collection.Snapshot(); ok {
		return snapshot, nil
	}
	products, err := s.collection.Load(ctx)
	if err != nil {
		return nil, translateRepoError(err, nil, ErrCatalogUnavailable)
	}
	return products, nil
}

// AddProduct appends a new catalog entry optimistically and persists it remotely.
func (s *catalogService) AddProduct(ctx context.Context, cmd AddProductCommand) (domain.Product, error) {
	if s == nil || s.collection == nil {
		return domain.Product{}, ErrCatalogUnavailable
	}

	product := domain.Product{
		ID:                   s.newID(),
		Name:                 strings.TrimSpace(cmd.Name),
		Category:             strings.TrimSpace(cmd.Category),
		Description:          strings.TrimSpace(cmd.Description),
		Price:                cmd.Price,
		ImageURLs:            cmd.ImageURLs,
		FreeShippingQuantity: cmd.FreeShippingQuantity,
	}
	if err := validateProduct(product); err != nil {
		return domain.Product{}, err
	}
	if _, err := s.ensureLoaded(ctx); err != nil {
		return domain.Product{}, err
	}

	_, err := s.collection.Mutate(ctx,
		func(current []domain.Product) []domain.Product {
			next := append([]domain.Product(nil), current...)
			return append(next, product)
		},
		func(ctx context.Context, _ []domain.Product) error {
			return s.repo.Upsert(ctx, product)
		},
	)
	if err != nil {
		return domain.Product{}, s.translate(ctx, "catalog.add_failed", product.ID, err)
	}
	return product, nil
}

// UpdateProduct replaces the matching entry optimistically and merges it remotely.
func (s *catalogService) UpdateProduct(ctx context.Context, cmd UpdateProductCommand) (domain.Product, error) {
	if s == nil || s.collection == nil {
		return domain.Product{}, ErrCatalogUnavailable
	}

	product := domain.Product{
		ID:                   strings.TrimSpace(cmd.ID),
		Name:                 strings.TrimSpace(cmd.Name),
		Category:             strings.TrimSpace(cmd.Category),
		Description:          strings.TrimSpace(cmd.Description),
		Price:                cmd.Price,
		ImageURLs:            cmd.ImageURLs,
		FreeShippingQuantity: cmd.FreeShippingQuantity,
	}
	if product.ID == "" {
		return domain.Product{}, fieldError(ErrCatalogInvalidInput, "id", "product id is required")
	}
	if err := validateProduct(product); err != nil {
		return domain.Product{}, err
	}

	snapshot, err := s.ensureLoaded(ctx)
	if err != nil {
		return domain.Product{}, err
	}
	if !containsProduct(snapshot, product.ID) {
		return domain.Product{}, ErrCatalogNotFound
	}

	_, err = s.collection.Mutate(ctx,
		func(current []domain.Product) []domain.Product {
			next := append([]domain.Product(nil), current...)
			for i := range next {
				if next[i].ID == product.ID {
					next[i] = product
				}
			}
			return next
		},
		func(ctx context.Context, _ []domain.Product) error {
			return s.repo.Update(ctx, product)
		},
	)
	if err != nil {
		return domain.Product{}, s.translate(ctx, "catalog.update_failed", product.ID, err)
	}
	return product, nil
}

// DeleteProduct removes the entry optimistically, deletes the remote document, and
// best-effort removes the product's stored images afterwards.
func (s *catalogService) DeleteProduct(ctx context.Context, productID string) error {
	if s == nil || s.collection == nil {
		return ErrCatalogUnavailable
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return fieldError(ErrCatalogInvalidInput, "id", "product id is required")
	}

	snapshot, err := s.ensureLoaded(ctx)
	if err != nil {
		return err
	}
	var images []string
	for _, p := range snapshot {
		if p.ID == productID {
			images = p.ImageURLs
		}
	}

	_, err = s.collection.Mutate(ctx,
		func(current []domain.Product) []domain.Product {
			next := make([]domain.Product, 0, len(current))
			for _, p := range current {
				if p.ID != productID {
					next = append(next, p)
				}
			}
			return next
		},
		func(ctx context.Context, _ []domain.Product) error {
			return s.repo.Delete(ctx, productID)
		},
	)
	if err != nil {
		return s.translate(ctx, "catalog.delete_failed", productID, err)
	}

	s.removeImages(ctx, productID, images)
	return nil
}

// removeImages deletes the blobs backing the product's image URLs. Failures are
// logged only; the catalog entry is already gone and orphaned blobs are harmless.
func (s *catalogService) removeImages(ctx context.Context, productID string, urls []string) {
	if s.uploader == nil {
		return
	}
	for _, raw := range urls {
		object, ok := s.uploader.ObjectFromURL(raw)
		if !ok {
			continue
		}
		if err := s.uploader.Delete(ctx, object); err != nil {
			s.logger(ctx, "catalog.image_delete_failed", map[string]any{
				"productID": productID,
				"object":    object,
				"error":     err.Error(),
			})
		}
	}
}

// UploadImages stores the files under the product's image prefix and returns the
// resulting URLs in upload order.
func (s *catalogService) UploadImages(ctx context.Context, productID string, files []ImageUpload) ([]string, error) {
	if s == nil {
		return nil, ErrCatalogUnavailable
	}
	if s.uploader == nil {
		return nil, fmt.Errorf("%w: no uploader configured", ErrCatalogUnavailable)
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return nil, fieldError(ErrCatalogInvalidInput, "id", "product id is required")
	}
	if len(files) == 0 {
		return nil, fieldError(ErrCatalogInvalidInput, "images", "at least one file is required")
	}

	now := s.now()
	urls := make([]string, 0, len(files))
	for i, file := range files {
		if len(file.Data) == 0 {
			return nil, fieldError(ErrCatalogInvalidInput, "images", "empty file")
		}
		object, err := storage.ProductImagePath(productID, file.FileName, i, now)
		if err != nil {
			return nil, fieldError(ErrCatalogInvalidInput, "images", err.Error())
		}
		url, err := s.uploader.Put(ctx, object, file.Data, file.ContentType)
		if err != nil {
			s.logger(ctx, "catalog.image_upload_failed", map[string]any{
				"productID": productID,
				"index":     i,
				"error":     err.Error(),
			})
			return nil, fmt.Errorf("%w: image upload failed", ErrCatalogUnavailable)
		}
		urls = append(urls, url)
	}
	return urls, nil
}

func (s *catalogService) translate(ctx context.Context, event, productID string, err error) error {
	if errors.Is(err, syncstore.ErrNotReady) {
		return fmt.Errorf("%w: catalog has not been loaded", ErrCatalogUnavailable)
	}
	s.logger(ctx, event, map[string]any{
		"productID": productID,
		"error":     err.Error(),
	})
	return translateRepoError(err, ErrCatalogNotFound, ErrCatalogUnavailable)
}

func validateProduct(product domain.Product) error {
	if product.Name == "" {
		return fieldError(ErrCatalogInvalidInput, "name", "product name is required")
	}
	if product.Price < 0 {
		return fieldError(ErrCatalogInvalidInput, "price", "price must not be negative")
	}
	if product.FreeShippingQuantity < 0 {
		return fieldError(ErrCatalogInvalidInput, "freeShippingQuantity", "threshold must not be negative")
	}
	return nil
}

func containsProduct(products []domain.Product, id string) bool {
	for _, p := range products {
		if p.ID == id {
			return true
		}
	}
	return false
}
