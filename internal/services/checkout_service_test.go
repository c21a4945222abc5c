package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	domain "github.com/butchers-select/api/internal/domain"
	"github.com/butchers-select/api/internal/platform/jobs"
	"github.com/butchers-select/api/internal/platform/localcache"
)

type stubOrderRepo struct {
	createFn       func(ctx context.Context, order domain.Order) error
	getFn          func(ctx context.Context, orderID string) (domain.Order, error)
	listAllFn      func(ctx context.Context) ([]domain.Order, error)
	listByUserFn   func(ctx context.Context, userID string) ([]domain.Order, error)
	updateStatusFn func(ctx context.Context, orderID string, status domain.OrderStatus) error
	attachProofFn  func(ctx context.Context, orderID string, proofURL string) error
}

func (s *stubOrderRepo) Create(ctx context.Context, order domain.Order) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, order)
}

func (s *stubOrderRepo) Get(ctx context.Context, orderID string) (domain.Order, error) {
	if s.getFn == nil {
		return domain.Order{}, errors.New("not implemented")
	}
	return s.getFn(ctx, orderID)
}

func (s *stubOrderRepo) ListAll(ctx context.Context) ([]domain.Order, error) {
	if s.listAllFn == nil {
		return nil, nil
	}
	return s.listAllFn(ctx)
}

func (s *stubOrderRepo) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	if s.listByUserFn == nil {
		return nil, nil
	}
	return s.listByUserFn(ctx, userID)
}

func (s *stubOrderRepo) UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus) error {
	if s.updateStatusFn == nil {
		return nil
	}
	return s.updateStatusFn(ctx, orderID, status)
}

func (s *stubOrderRepo) AttachProof(ctx context.Context, orderID string, proofURL string) error {
	if s.attachProofFn == nil {
		return nil
	}
	return s.attachProofFn(ctx, orderID, proofURL)
}

type stubUploader struct {
	putFn    func(ctx context.Context, object string, data []byte, contentType string) (string, error)
	deleteFn func(ctx context.Context, object string) error
	deleted  []string
}

func (s *stubUploader) Put(ctx context.Context, object string, data []byte, contentType string) (string, error) {
	if s.putFn == nil {
		return "https://blob.example/" + object, nil
	}
	return s.putFn(ctx, object, data, contentType)
}

func (s *stubUploader) Delete(ctx context.Context, object string) error {
	if s.deleteFn != nil {
		return s.deleteFn(ctx, object)
	}
	s.deleted = append(s.deleted, object)
	return nil
}

func (s *stubUploader) ObjectFromURL(url string) (string, bool) {
	object, found := strings.CutPrefix(url, "https://blob.example/")
	if !found || object == "" {
		return "", false
	}
	return object, true
}

type stubPublisher struct {
	published []jobs.OrderSubmittedMessage
	err       error
}

func (s *stubPublisher) PublishOrderSubmitted(_ context.Context, message jobs.OrderSubmittedMessage) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.published = append(s.published, message)
	return "msg-1", nil
}

type stubShipping struct {
	settings domain.ShippingSettings
}

func (s *stubShipping) Options() []domain.ShippingOption { return domain.ShippingOptions() }

func (s *stubShipping) Load(context.Context) (domain.ShippingSettings, error) {
	return s.settings, nil
}

func (s *stubShipping) Settings() domain.ShippingSettings { return s.settings }

func (s *stubShipping) SaveThreshold(_ context.Context, threshold *int64) (domain.ShippingSettings, error) {
	s.settings = domain.ShippingSettings{FreeShippingThreshold: threshold}
	return s.settings, nil
}

func (s *stubShipping) Quote(_ context.Context, lines []domain.CartLine, method domain.ShippingMethod) (domain.Quote, error) {
	return domain.ComputeTotals(lines, method, s.settings), nil
}

func newLoadedCart(t *testing.T, userID string, lines ...domain.CartLine) CartService {
	t.Helper()
	cart := newTestCart(t, localcache.NewMemory())
	ctx := context.Background()
	if err := cart.SwitchUser(ctx, userID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, line := range lines {
		for i := int64(0); i < line.Quantity; i++ {
			if added, err := cart.AddLine(ctx, line.Product); err != nil || !added {
				t.Fatalf("seeding cart failed: added=%v err=%v", added, err)
			}
		}
	}
	return cart
}

func newTestCheckout(t *testing.T, deps CheckoutServiceDeps) CheckoutService {
	t.Helper()
	if deps.Clock == nil {
		deps.Clock = func() time.Time { return time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC) }
	}
	if deps.IDGenerator == nil {
		deps.IDGenerator = func() string { return "01HZXT0000000000000000TEST" }
	}
	service, err := NewCheckoutService(deps)
	if err != nil {
		t.Fatalf("unexpected error constructing checkout service: %v", err)
	}
	return service
}

func courierCommand() SubmitOrderCommand {
	return SubmitOrderCommand{
		UserID:         "user-a",
		CustomerName:   "王小明",
		Phone:          "0912345678",
		Address:        "台北市信義區市府路1號",
		ShippingMethod: domain.ShippingBlackCat,
	}
}

func TestSubmitOrderValidatesBeforeAnyCall(t *testing.T) {
	repoCalled := false
	repo := &stubOrderRepo{createFn: func(context.Context, domain.Order) error {
		repoCalled = true
		return nil
	}}
	cart := newLoadedCart(t, "user-a", domain.CartLine{Product: porkProduct(), Quantity: 1})
	service := newTestCheckout(t, CheckoutServiceDeps{Orders: repo, Cart: cart, Shipping: &stubShipping{}})

	cases := []struct {
		name  string
		mut   func(*SubmitOrderCommand)
		field string
	}{
		{"missing name", func(c *SubmitOrderCommand) { c.CustomerName = " " }, "customerName"},
		{"missing phone", func(c *SubmitOrderCommand) { c.Phone = "" }, "phone"},
		{"missing address", func(c *SubmitOrderCommand) { c.Address = "" }, "address"},
		{"unknown carrier", func(c *SubmitOrderCommand) { c.ShippingMethod = "pigeon" }, "shippingMethod"},
		{"missing store", func(c *SubmitOrderCommand) {
			c.ShippingMethod = domain.ShippingSevenEleven
			c.StoreCity = "台北市"
		}, "storeName"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cmd := courierCommand()
			tc.mut(&cmd)
			_, err := service.SubmitOrder(context.Background(), cmd)
			if !errors.Is(err, ErrCheckoutInvalidInput) {
				t.Fatalf("expected invalid input, got %v", err)
			}
			var fieldErr *FieldError
			if !errors.As(err, &fieldErr) || fieldErr.Field != tc.field {
				t.Fatalf("expected field %q, got %v", tc.field, err)
			}
		})
	}
	if repoCalled {
		t.Fatalf("validation failures must not reach the repository")
	}
}

func TestSubmitOrderRejectsEmptyCart(t *testing.T) {
	cart := newLoadedCart(t, "user-a")
	service := newTestCheckout(t, CheckoutServiceDeps{Orders: &stubOrderRepo{}, Cart: cart, Shipping: &stubShipping{}})

	if _, err := service.SubmitOrder(context.Background(), courierCommand()); !errors.Is(err, ErrCheckoutEmptyCart) {
		t.Fatalf("expected empty cart error, got %v", err)
	}
}

func TestSubmitOrderFreezesLinesAndClearsCart(t *testing.T) {
	var created domain.Order
	repo := &stubOrderRepo{createFn: func(_ context.Context, order domain.Order) error {
		created = order
		return nil
	}}
	cart := newLoadedCart(t, "user-a", domain.CartLine{Product: porkProduct(), Quantity: 2})
	publisher := &stubPublisher{}
	service := newTestCheckout(t, CheckoutServiceDeps{
		Orders:    repo,
		Cart:      cart,
		Shipping:  &stubShipping{},
		Publisher: publisher,
	})

	order, err := service.SubmitOrder(context.Background(), courierCommand())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.HasPrefix(order.OrderID, "BS-") {
		t.Fatalf("unexpected order id %q", order.OrderID)
	}
	if order.Status != domain.OrderStatusPendingConfirmation {
		t.Fatalf("expected pending status, got %q", order.Status)
	}
	if len(created.Items) != 1 || created.Items[0].Subtotal != 900 {
		t.Fatalf("expected frozen subtotal 900, got %+v", created.Items)
	}
	// 900 < 5000 so the courier flat fee applies.
	if order.ShippingFee != 290 || order.Total != 1190 {
		t.Fatalf("unexpected totals fee=%d total=%d", order.ShippingFee, order.Total)
	}
	if len(cart.Lines()) != 0 {
		t.Fatalf("expected cart cleared on success")
	}
	if len(publisher.published) != 1 || publisher.published[0].OrderID != order.OrderID {
		t.Fatalf("expected one notification job, got %+v", publisher.published)
	}

	// Mutating the cart after submission must not change the persisted lines.
	_, _ = cart.AddLine(context.Background(), porkProduct())
	if created.Items[0].Quantity != 2 || created.Items[0].Subtotal != 900 {
		t.Fatalf("order lines must be immutable copies, got %+v", created.Items)
	}
}

func TestSubmitOrderStoreToStoreDetail(t *testing.T) {
	var created domain.Order
	repo := &stubOrderRepo{createFn: func(_ context.Context, order domain.Order) error {
		created = order
		return nil
	}}
	cart := newLoadedCart(t, "user-a", domain.CartLine{Product: porkProduct(), Quantity: 1})
	service := newTestCheckout(t, CheckoutServiceDeps{Orders: repo, Cart: cart, Shipping: &stubShipping{}})

	cmd := courierCommand()
	cmd.ShippingMethod = domain.ShippingFamilyMart
	cmd.Address = ""
	cmd.StoreCity = "台北市"
	cmd.StoreName = "信義門市"

	if _, err := service.SubmitOrder(context.Background(), cmd); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created.ShippingDetail != "台北市 信義門市" {
		t.Fatalf("unexpected shipping detail %q", created.ShippingDetail)
	}
	if created.Address != "" {
		t.Fatalf("address must be empty for store-to-store, got %q", created.Address)
	}
}

func TestSubmitOrderAbortsWhenProofUploadFails(t *testing.T) {
	repoCalled := false
	repo := &stubOrderRepo{createFn: func(context.Context, domain.Order) error {
		repoCalled = true
		return nil
	}}
	cart := newLoadedCart(t, "user-a", domain.CartLine{Product: porkProduct(), Quantity: 1})
	uploader := &stubUploader{putFn: func(context.Context, string, []byte, string) (string, error) {
		return "", errors.New("bucket unreachable")
	}}
	service := newTestCheckout(t, CheckoutServiceDeps{Orders: repo, Cart: cart, Shipping: &stubShipping{}, Uploader: uploader})

	cmd := courierCommand()
	cmd.Proof = &ImageUpload{FileName: "proof.jpg", ContentType: "image/jpeg", Data: []byte{0x1}}

	_, err := service.SubmitOrder(context.Background(), cmd)
	if !errors.Is(err, ErrCheckoutUploadFailed) {
		t.Fatalf("expected upload failure, got %v", err)
	}
	if repoCalled {
		t.Fatalf("no order may be created when the proof upload fails")
	}
	if len(cart.Lines()) != 1 {
		t.Fatalf("cart must be left untouched on abort")
	}
}

func TestSubmitOrderAttachesProofURL(t *testing.T) {
	var created domain.Order
	repo := &stubOrderRepo{createFn: func(_ context.Context, order domain.Order) error {
		created = order
		return nil
	}}
	cart := newLoadedCart(t, "user-a", domain.CartLine{Product: porkProduct(), Quantity: 1})
	service := newTestCheckout(t, CheckoutServiceDeps{Orders: repo, Cart: cart, Shipping: &stubShipping{}, Uploader: &stubUploader{}})

	cmd := courierCommand()
	cmd.Proof = &ImageUpload{FileName: "proof.jpg", ContentType: "image/jpeg", Data: []byte{0x1}}

	order, err := service.SubmitOrder(context.Background(), cmd)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !order.RemittanceSubmitted || order.RemittanceProofURL == "" {
		t.Fatalf("expected proof recorded, got %+v", order)
	}
	if !strings.Contains(created.RemittanceProofURL, "orders/"+order.OrderID+"/proof-") {
		t.Fatalf("unexpected proof object path in %q", created.RemittanceProofURL)
	}
}

func TestSubmitOrderKeepsCartOnPersistFailure(t *testing.T) {
	repo := &stubOrderRepo{createFn: func(context.Context, domain.Order) error {
		return errors.New("firestore down")
	}}
	cart := newLoadedCart(t, "user-a", domain.CartLine{Product: porkProduct(), Quantity: 1})
	service := newTestCheckout(t, CheckoutServiceDeps{Orders: repo, Cart: cart, Shipping: &stubShipping{}})

	_, err := service.SubmitOrder(context.Background(), courierCommand())
	if !errors.Is(err, ErrCheckoutPersistFailed) {
		t.Fatalf("expected persist failure, got %v", err)
	}
	if len(cart.Lines()) != 1 {
		t.Fatalf("cart must survive a persist failure for retry")
	}
}

func TestSubmitOrderSucceedsWhenPublisherFails(t *testing.T) {
	cart := newLoadedCart(t, "user-a", domain.CartLine{Product: porkProduct(), Quantity: 1})
	service := newTestCheckout(t, CheckoutServiceDeps{
		Orders:    &stubOrderRepo{},
		Cart:      cart,
		Shipping:  &stubShipping{},
		Publisher: &stubPublisher{err: errors.New("topic gone")},
	})

	if _, err := service.SubmitOrder(context.Background(), courierCommand()); err != nil {
		t.Fatalf("notification failures must not fail the order: %v", err)
	}
}
