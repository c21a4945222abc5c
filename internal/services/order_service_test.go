package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	domain "github.com/butchers-select/api/internal/domain"
)

func newTestOrders(t *testing.T, repo *stubOrderRepo, uploader BlobUploader) OrderService {
	t.Helper()
	service, err := NewOrderService(OrderServiceDeps{
		Repository: repo,
		Uploader:   uploader,
		Clock:      func() time.Time { return time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("unexpected error constructing order service: %v", err)
	}
	return service
}

func TestListAllSortsNewestFirstWithClientFallback(t *testing.T) {
	older := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	middle := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	repo := &stubOrderRepo{listAllFn: func(context.Context) ([]domain.Order, error) {
		return []domain.Order{
			{OrderID: "BS-1", CreatedAt: &older},
			// Legacy record without a server stamp; client timestamp is the key.
			{OrderID: "BS-2", Timestamp: newer},
			{OrderID: "BS-3", CreatedAt: &middle},
		}, nil
	}}
	service := newTestOrders(t, repo, nil)

	orders, err := service.ListAll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := []string{orders[0].OrderID, orders[1].OrderID, orders[2].OrderID}
	want := []string{"BS-2", "BS-3", "BS-1"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("unexpected order: got %v, want %v", got, want)
		}
	}
}

func TestListByUserRequiresUserID(t *testing.T) {
	service := newTestOrders(t, &stubOrderRepo{}, nil)
	if _, err := service.ListByUser(context.Background(), "  "); !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestUpdateStatusRejectsUnknownStatus(t *testing.T) {
	called := false
	repo := &stubOrderRepo{updateStatusFn: func(context.Context, string, domain.OrderStatus) error {
		called = true
		return nil
	}}
	service := newTestOrders(t, repo, nil)

	if err := service.UpdateStatus(context.Background(), "BS-1", "lost"); !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if called {
		t.Fatalf("invalid status must not reach the repository")
	}

	if err := service.UpdateStatus(context.Background(), "BS-1", domain.OrderStatusShipped); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatalf("expected repository update")
	}
}

func TestAttachProofUploadsAndRecordsURL(t *testing.T) {
	var attachedURL string
	repo := &stubOrderRepo{
		getFn: func(context.Context, string) (domain.Order, error) {
			return domain.Order{OrderID: "BS-1", UserID: "user-a"}, nil
		},
		attachProofFn: func(_ context.Context, _ string, proofURL string) error {
			attachedURL = proofURL
			return nil
		},
	}
	service := newTestOrders(t, repo, &stubUploader{})

	url, err := service.AttachProof(context.Background(), AttachProofCommand{
		OrderID: "BS-1",
		UserID:  "user-a",
		Proof:   ImageUpload{FileName: "slip.jpg", Data: []byte{0x1}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(url, "orders/BS-1/proof-") || attachedURL != url {
		t.Fatalf("unexpected proof url %q (attached %q)", url, attachedURL)
	}
}

func TestAttachProofRefusesForeignOrder(t *testing.T) {
	repo := &stubOrderRepo{getFn: func(context.Context, string) (domain.Order, error) {
		return domain.Order{OrderID: "BS-1", UserID: "user-a"}, nil
	}}
	service := newTestOrders(t, repo, &stubUploader{})

	_, err := service.AttachProof(context.Background(), AttachProofCommand{
		OrderID: "BS-1",
		UserID:  "user-b",
		Proof:   ImageUpload{FileName: "slip.jpg", Data: []byte{0x1}},
	})
	if !errors.Is(err, ErrOrderForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}
