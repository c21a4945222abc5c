package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	domain "github.com/butchers-select/api/internal/domain"
	"github.com/butchers-select/api/internal/platform/localcache"
	"github.com/butchers-select/api/internal/repositories"
	"github.com/butchers-select/api/internal/syncstore"
)

// AnnouncementCacheKey is the local snapshot key for the storefront banner.
const AnnouncementCacheKey = "bs_announcement_cache"

const maxAnnouncementLength = 500

var (
	// ErrAnnouncementInvalidInput indicates the supplied banner message is invalid.
	ErrAnnouncementInvalidInput = errors.New("announcement service: invalid input")
	// ErrAnnouncementUnavailable indicates the banner backend cannot fulfil the request.
	ErrAnnouncementUnavailable = errors.New("announcement service: unavailable")

	errAnnouncementRepositoryRequired = errors.New("announcement service: repository is required")
	errAnnouncementCacheRequired      = errors.New("announcement service: cache is required")
)

// AnnouncementServiceDeps wires the banner dependencies.
type AnnouncementServiceDeps struct {
	Repository repositories.AnnouncementRepository
	Cache      localcache.Cache
	Logger     func(context.Context, string, map[string]any)
}

type announcementService struct {
	repo       repositories.AnnouncementRepository
	collection *syncstore.Collection[domain.Announcement]
	sanitizer  *bluemonday.Policy
	logger     func(context.Context, string, map[string]any)
}

// NewAnnouncementService constructs an AnnouncementService backed by a synced singleton.
func NewAnnouncementService(deps AnnouncementServiceDeps) (AnnouncementService, error) {
	if deps.Repository == nil {
		return nil, errAnnouncementRepositoryRequired
	}
	if deps.Cache == nil {
		return nil, errAnnouncementCacheRequired
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	collection, err := syncstore.New(syncstore.Deps[domain.Announcement]{
		Cache:    deps.Cache,
		CacheKey: AnnouncementCacheKey,
		Fetch: func(ctx context.Context) (domain.Announcement, error) {
			message, found, err := deps.Repository.Fetch(ctx)
			if err != nil {
				return domain.Announcement{}, err
			}
			if !found {
				return domain.Announcement{Message: domain.DefaultAnnouncement}, nil
			}
			return domain.Announcement{Message: message}, nil
		},
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}

	return &announcementService{
		repo:       deps.Repository,
		collection: collection,
		sanitizer:  bluemonday.StrictPolicy(),
		logger:     logger,
	}, nil
}

// Load publishes the cached banner immediately and reconciles with the remote store.
// The built-in default is returned when neither remote nor cache holds a message.
func (s *announcementService) Load(ctx context.Context) (string, error) {
	if s == nil || s.collection == nil {
		return "", ErrAnnouncementUnavailable
	}
	announcement, err := s.collection.Load(ctx)
	if err != nil {
		return domain.DefaultAnnouncement, translateRepoError(err, nil, ErrAnnouncementUnavailable)
	}
	if strings.TrimSpace(announcement.Message) == "" {
		return domain.DefaultAnnouncement, nil
	}
	return announcement.Message, nil
}

// Message returns the latest published banner, falling back to the default.
func (s *announcementService) Message() string {
	if s == nil || s.collection == nil {
		return domain.DefaultAnnouncement
	}
	announcement, ok := s.collection.Snapshot()
	if !ok || strings.TrimSpace(announcement.Message) == "" {
		return domain.DefaultAnnouncement
	}
	return announcement.Message
}

// Save sanitises and persists the banner message optimistically, rolling back the
// local copy when the remote write fails.
func (s *announcementService) Save(ctx context.Context, message string) (string, error) {
	if s == nil || s.collection == nil {
		return "", ErrAnnouncementUnavailable
	}

	cleaned := strings.TrimSpace(s.sanitizer.Sanitize(message))
	if cleaned == "" {
		return "", fieldError(ErrAnnouncementInvalidInput, "message", "message is required")
	}
	if len([]rune(cleaned)) > maxAnnouncementLength {
		return "", fieldError(ErrAnnouncementInvalidInput, "message", "message is too long")
	}

	// A fresh process has no published value yet; load before mutating so the save
	// does not depend on an earlier read having happened.
	if _, ok := s.collection.Snapshot(); !ok {
		if _, err := s.collection.Load(ctx); err != nil {
			return "", translateRepoError(err, nil, ErrAnnouncementUnavailable)
		}
	}

	saved, err := s.collection.Mutate(ctx,
		func(domain.Announcement) domain.Announcement {
			return domain.Announcement{Message: cleaned}
		},
		func(ctx context.Context, value domain.Announcement) error {
			return s.repo.Save(ctx, value.Message)
		},
	)
	if err != nil {
		if errors.Is(err, syncstore.ErrNotReady) {
			return "", fmt.Errorf("%w: announcement has not been loaded", ErrAnnouncementUnavailable)
		}
		s.logger(ctx, "announcement.save_failed", map[string]any{"error": err.Error()})
		return "", translateRepoError(err, nil, ErrAnnouncementUnavailable)
	}
	return saved.Message, nil
}
