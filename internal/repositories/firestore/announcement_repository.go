package firestore

import (
	"context"
	"errors"
	"strings"

	"cloud.google.com/go/firestore"

	pfirestore "github.com/butchers-select/api/internal/platform/firestore"
)

const (
	announcementCollection = "announcements"
	announcementDocID      = "site"
)

// AnnouncementRepository persists the singleton storefront banner message. The
// message normally lives in the pinned `site` document, but older deployments wrote
// it under an auto-generated id, so fetches fall back to the first document in the
// collection and remember its id for subsequent saves.
type AnnouncementRepository struct {
	base     *pfirestore.BaseRepository[map[string]any]
	resolver *docResolver
}

// NewAnnouncementRepository constructs a Firestore-backed announcement repository.
func NewAnnouncementRepository(provider *pfirestore.Provider) (*AnnouncementRepository, error) {
	if provider == nil {
		return nil, errors.New("announcement repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[map[string]any](provider, announcementCollection, nil, pfirestore.MapDecoder())
	return &AnnouncementRepository{
		base:     base,
		resolver: newDocResolver(announcementDocID),
	}, nil
}

// Fetch returns the stored banner message. The second return value reports whether a
// document was found at all; an empty stored message still counts as found.
func (r *AnnouncementRepository) Fetch(ctx context.Context) (string, bool, error) {
	if r == nil || r.base == nil {
		return "", false, errors.New("announcement repository not initialised")
	}

	doc, err := r.base.Get(ctx, r.resolver.target())
	if err == nil {
		r.resolver.remember(doc.ID)
		return asString(doc.Data["message"]), true, nil
	}

	var repoErr *pfirestore.Error
	if !errors.As(err, &repoErr) || !repoErr.IsNotFound() {
		return "", false, err
	}

	docs, err := r.base.Query(ctx, func(query firestore.Query) firestore.Query {
		return query.Limit(1)
	})
	if err != nil {
		return "", false, err
	}
	if len(docs) == 0 {
		return "", false, nil
	}

	r.resolver.remember(docs[0].ID)
	return asString(docs[0].Data["message"]), true, nil
}

// Save writes the banner message to the resolved singleton document, creating the
// pinned document when the collection is empty.
func (r *AnnouncementRepository) Save(ctx context.Context, message string) error {
	if r == nil || r.base == nil {
		return errors.New("announcement repository not initialised")
	}
	return r.base.Set(ctx, r.resolver.target(), map[string]any{
		"message": strings.TrimSpace(message),
	})
}
