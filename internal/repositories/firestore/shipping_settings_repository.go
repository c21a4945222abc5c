package firestore

import (
	"context"
	"errors"

	"cloud.google.com/go/firestore"

	domain "github.com/butchers-select/api/internal/domain"
	pfirestore "github.com/butchers-select/api/internal/platform/firestore"
)

const (
	shippingSettingsCollection = "freeprice"
	shippingSettingsPinnedID   = "sRNBEbcFJGCO3SxQfKrB"
	shippingSettingsFallbackID = "shipping"
)

// ShippingSettingsRepository persists the singleton free-shipping threshold. The
// production document was created by hand under an opaque pinned id; if it is ever
// deleted, fetches fall back to the first document in the collection and fresh saves
// recreate the record under a readable id.
type ShippingSettingsRepository struct {
	base     *pfirestore.BaseRepository[map[string]any]
	resolver *docResolver
}

// NewShippingSettingsRepository constructs a Firestore-backed settings repository.
func NewShippingSettingsRepository(provider *pfirestore.Provider) (*ShippingSettingsRepository, error) {
	if provider == nil {
		return nil, errors.New("shipping settings repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[map[string]any](provider, shippingSettingsCollection, nil, pfirestore.MapDecoder())
	return &ShippingSettingsRepository{
		base:     base,
		resolver: newDocResolver(shippingSettingsPinnedID),
	}, nil
}

// Fetch returns the configured settings. The second return value reports whether a
// settings document exists; a document without any recognised threshold field decodes
// to a nil threshold, which disables amount-based free shipping.
func (r *ShippingSettingsRepository) Fetch(ctx context.Context) (domain.ShippingSettings, bool, error) {
	if r == nil || r.base == nil {
		return domain.ShippingSettings{}, false, errors.New("shipping settings repository not initialised")
	}

	doc, err := r.base.Get(ctx, r.resolver.target())
	if err == nil {
		r.resolver.remember(doc.ID)
		return decodeShippingSettings(doc.Data), true, nil
	}

	var repoErr *pfirestore.Error
	if !errors.As(err, &repoErr) || !repoErr.IsNotFound() {
		return domain.ShippingSettings{}, false, err
	}

	docs, err := r.base.Query(ctx, func(query firestore.Query) firestore.Query {
		return query.Limit(1)
	})
	if err != nil {
		return domain.ShippingSettings{}, false, err
	}
	if len(docs) == 0 {
		return domain.ShippingSettings{}, false, nil
	}

	r.resolver.remember(docs[0].ID)
	return decodeShippingSettings(docs[0].Data), true, nil
}

// Save writes the settings to the resolved singleton document. All three historical
// field names are written so every client generation keeps reading the same value.
func (r *ShippingSettingsRepository) Save(ctx context.Context, settings domain.ShippingSettings) error {
	if r == nil || r.base == nil {
		return errors.New("shipping settings repository not initialised")
	}

	target := r.resolver.target()
	if target == "" {
		target = shippingSettingsFallbackID
	}

	fields := map[string]any{}
	if settings.FreeShippingThreshold != nil {
		fields["freeShippingThreshold"] = *settings.FreeShippingThreshold
		fields["freeprice"] = *settings.FreeShippingThreshold
		fields["free"] = *settings.FreeShippingThreshold
	}
	if err := r.base.Set(ctx, target, fields); err != nil {
		return err
	}
	r.resolver.remember(target)
	return nil
}

// decodeShippingSettings accepts the three field names the document has carried over
// its lifetime, newest first.
func decodeShippingSettings(data map[string]any) domain.ShippingSettings {
	for _, key := range []string{"freeShippingThreshold", "freeprice", "free"} {
		value, ok := data[key]
		if !ok {
			continue
		}
		threshold := asInt64(value)
		if threshold < 0 {
			continue
		}
		return domain.ShippingSettings{FreeShippingThreshold: &threshold}
	}
	return domain.ShippingSettings{}
}
