package services

import (
	"context"
	"errors"
	"testing"

	domain "github.com/butchers-select/api/internal/domain"
	"github.com/butchers-select/api/internal/platform/localcache"
)

type stubAnnouncementRepo struct {
	fetchFn func(ctx context.Context) (string, bool, error)
	saveFn  func(ctx context.Context, message string) error
}

func (s *stubAnnouncementRepo) Fetch(ctx context.Context) (string, bool, error) {
	if s.fetchFn == nil {
		return "", false, nil
	}
	return s.fetchFn(ctx)
}

func (s *stubAnnouncementRepo) Save(ctx context.Context, message string) error {
	if s.saveFn == nil {
		return nil
	}
	return s.saveFn(ctx, message)
}

func newTestAnnouncements(t *testing.T, repo *stubAnnouncementRepo, cache localcache.Cache) AnnouncementService {
	t.Helper()
	service, err := NewAnnouncementService(AnnouncementServiceDeps{Repository: repo, Cache: cache})
	if err != nil {
		t.Fatalf("unexpected error constructing announcement service: %v", err)
	}
	return service
}

func TestAnnouncementLoadReturnsStoredMessage(t *testing.T) {
	repo := &stubAnnouncementRepo{fetchFn: func(context.Context) (string, bool, error) {
		return "本週五公休", true, nil
	}}
	service := newTestAnnouncements(t, repo, localcache.NewMemory())

	message, err := service.Load(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if message != "本週五公休" {
		t.Fatalf("unexpected message %q", message)
	}
}

func TestAnnouncementLoadDefaultsWhenMissing(t *testing.T) {
	service := newTestAnnouncements(t, &stubAnnouncementRepo{}, localcache.NewMemory())

	message, err := service.Load(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if message != domain.DefaultAnnouncement {
		t.Fatalf("expected default announcement, got %q", message)
	}
}

func TestAnnouncementLoadFallsBackToCache(t *testing.T) {
	cache := localcache.NewMemory()
	_ = cache.Set(AnnouncementCacheKey, `{"message":"快取公告"}`)
	repo := &stubAnnouncementRepo{fetchFn: func(context.Context) (string, bool, error) {
		return "", false, errors.New("remote unreachable")
	}}
	service := newTestAnnouncements(t, repo, cache)

	message, err := service.Load(context.Background())
	if err != nil {
		t.Fatalf("expected silent fallback, got %v", err)
	}
	if message != "快取公告" {
		t.Fatalf("expected cached announcement, got %q", message)
	}
}

func TestAnnouncementSaveSanitisesMarkup(t *testing.T) {
	var saved string
	repo := &stubAnnouncementRepo{saveFn: func(_ context.Context, message string) error {
		saved = message
		return nil
	}}
	service := newTestAnnouncements(t, repo, localcache.NewMemory())
	if _, err := service.Load(context.Background()); err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}

	message, err := service.Save(context.Background(), `<script>alert(1)</script>中秋禮盒開賣`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if message != "中秋禮盒開賣" || saved != "中秋禮盒開賣" {
		t.Fatalf("expected markup stripped, got %q / %q", message, saved)
	}
}

func TestAnnouncementSaveRollsBackOnRemoteFailure(t *testing.T) {
	repo := &stubAnnouncementRepo{
		fetchFn: func(context.Context) (string, bool, error) { return "原公告", true, nil },
		saveFn:  func(context.Context, string) error { return errors.New("write rejected") },
	}
	service := newTestAnnouncements(t, repo, localcache.NewMemory())
	if _, err := service.Load(context.Background()); err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}

	if _, err := service.Save(context.Background(), "新公告"); err == nil {
		t.Fatalf("expected remote failure to propagate")
	}
	if got := service.Message(); got != "原公告" {
		t.Fatalf("expected rollback to previous message, got %q", got)
	}
}

func TestAnnouncementSaveBeforeAnyLoad(t *testing.T) {
	var saved string
	repo := &stubAnnouncementRepo{
		fetchFn: func(context.Context) (string, bool, error) { return "原公告", true, nil },
		saveFn: func(_ context.Context, message string) error {
			saved = message
			return nil
		},
	}
	service := newTestAnnouncements(t, repo, localcache.NewMemory())

	// No prior Load: the save must fetch the current banner itself instead of
	// failing on incidental request ordering.
	message, err := service.Save(context.Background(), "新公告")
	if err != nil {
		t.Fatalf("save must not depend on an earlier read: %v", err)
	}
	if message != "新公告" || saved != "新公告" {
		t.Fatalf("expected new banner persisted, got %q / %q", message, saved)
	}
}

func TestAnnouncementSaveRejectsEmptyAfterSanitising(t *testing.T) {
	service := newTestAnnouncements(t, &stubAnnouncementRepo{}, localcache.NewMemory())
	if _, err := service.Load(context.Background()); err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}

	if _, err := service.Save(context.Background(), "<b></b>"); !errors.Is(err, ErrAnnouncementInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}
