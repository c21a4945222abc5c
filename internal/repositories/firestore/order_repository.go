package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/butchers-select/api/internal/domain"
	pfirestore "github.com/butchers-select/api/internal/platform/firestore"
)

const orderCollection = "orders"

// OrderRepository persists order records within Firestore. Orders are written once at
// submission; only the status and proof fields are merged afterwards.
type OrderRepository struct {
	base *pfirestore.BaseRepository[domain.Order]
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[domain.Order](provider, orderCollection, encodeOrder, decodeOrder)
	return &OrderRepository{base: base}, nil
}

// Create writes the order document keyed by its order id. The creation timestamp is
// assigned server-side; the client timestamp travels in the document as a fallback.
func (r *OrderRepository) Create(ctx context.Context, order domain.Order) error {
	if r == nil || r.base == nil {
		return errors.New("order repository not initialised")
	}
	return r.base.Set(ctx, order.OrderID, order)
}

// Get fetches a single order by id.
func (r *OrderRepository) Get(ctx context.Context, orderID string) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	doc, err := r.base.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	return doc.Data, nil
}

// ListAll returns every order for the admin console.
func (r *OrderRepository) ListAll(ctx context.Context) ([]domain.Order, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("order repository not initialised")
	}
	docs, err := r.base.Query(ctx, nil)
	if err != nil {
		return nil, err
	}
	return ordersFromDocs(docs), nil
}

// ListByUser returns the orders owned by the given identity.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("order repository not initialised")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, errors.New("order repository: user id is required")
	}

	docs, err := r.base.Query(ctx, func(query firestore.Query) firestore.Query {
		return query.Where("userId", "==", userID)
	})
	if err != nil {
		return nil, err
	}
	return ordersFromDocs(docs), nil
}

// UpdateStatus merges the status field only, leaving the rest of the record untouched.
func (r *OrderRepository) UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus) error {
	if r == nil || r.base == nil {
		return errors.New("order repository not initialised")
	}
	return r.base.Merge(ctx, orderID, map[string]any{
		"status": string(status),
	})
}

// AttachProof records a late remittance proof upload against an existing order.
func (r *OrderRepository) AttachProof(ctx context.Context, orderID string, proofURL string) error {
	if r == nil || r.base == nil {
		return errors.New("order repository not initialised")
	}
	proofURL = strings.TrimSpace(proofURL)
	if proofURL == "" {
		return errors.New("order repository: proof url is required")
	}
	return r.base.Merge(ctx, orderID, map[string]any{
		"remittanceProofUrl":  proofURL,
		"remittanceSubmitted": true,
		"proofUploadedAt":     pfirestore.ServerTimestamp,
	})
}

func ordersFromDocs(docs []pfirestore.Document[domain.Order]) []domain.Order {
	orders := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		order := doc.Data
		if strings.TrimSpace(order.OrderID) == "" {
			order.OrderID = doc.ID
		}
		orders = append(orders, order)
	}
	return orders
}

func encodeOrder(_ context.Context, order domain.Order) (any, error) {
	timestamp := order.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}

	status := order.Status
	if !status.Valid() {
		status = domain.OrderStatusPendingConfirmation
	}

	fields := map[string]any{
		"orderId":             strings.TrimSpace(order.OrderID),
		"timestamp":           timestamp,
		"customerName":        order.CustomerName,
		"phone":               order.Phone,
		"address":             order.Address,
		"shippingMethod":      string(order.ShippingMethod),
		"shippingMethodLabel": order.ShippingMethodLabel,
		"shippingDetail":      order.ShippingDetail,
		"storeCity":           order.StoreCity,
		"storeName":           order.StoreName,
		"shippingFee":         order.ShippingFee,
		"total":               order.Total,
		"items":               encodeOrderLines(order.Items),
		"remittanceSubmitted": order.RemittanceSubmitted,
		"status":              string(status),
		"createdAt":           pfirestore.ServerTimestamp,
	}
	if url := strings.TrimSpace(order.RemittanceProofURL); url != "" {
		fields["remittanceProofUrl"] = url
	}
	if uid := strings.TrimSpace(order.UserID); uid != "" {
		fields["userId"] = uid
	}
	return fields, nil
}

func encodeOrderLines(lines []domain.OrderLine) []map[string]any {
	encoded := make([]map[string]any, 0, len(lines))
	for _, line := range lines {
		encoded = append(encoded, map[string]any{
			"id":       line.ID,
			"name":     line.Name,
			"quantity": line.Quantity,
			"price":    line.Price,
			"subtotal": line.Subtotal,
		})
	}
	return encoded
}

// decodeOrder normalises legacy records: a missing status defaults to pending
// confirmation, remittanceSubmitted is inferred from the proof URL, and the client
// timestamp stands in for a missing server creation stamp.
func decodeOrder(_ context.Context, snap *firestore.DocumentSnapshot) (domain.Order, error) {
	data := snap.Data()
	if data == nil {
		data = map[string]any{}
	}

	order := domain.Order{
		OrderID:             asString(data["orderId"]),
		CustomerName:        asString(data["customerName"]),
		Phone:               asString(data["phone"]),
		Address:             asString(data["address"]),
		ShippingMethodLabel: asString(data["shippingMethodLabel"]),
		ShippingDetail:      asString(data["shippingDetail"]),
		StoreCity:           asString(data["storeCity"]),
		StoreName:           asString(data["storeName"]),
		ShippingFee:         asInt64(data["shippingFee"]),
		Total:               asInt64(data["total"]),
		RemittanceProofURL:  asString(data["remittanceProofUrl"]),
		UserID:              asString(data["userId"]),
		Status:              domain.ParseOrderStatus(asString(data["status"])),
	}
	if order.OrderID == "" {
		order.OrderID = snap.Ref.ID
	}

	if method, ok := domain.ParseShippingMethod(asString(data["shippingMethod"])); ok {
		order.ShippingMethod = method
		if order.ShippingMethodLabel == "" {
			order.ShippingMethodLabel = method.Label()
		}
	}

	if ts, ok := asTime(data["timestamp"]); ok {
		order.Timestamp = ts
	}
	if created, ok := asTime(data["createdAt"]); ok {
		order.CreatedAt = &created
	}
	if uploaded, ok := asTime(data["proofUploadedAt"]); ok {
		order.ProofUploadedAt = &uploaded
	}

	order.RemittanceSubmitted = asBool(data["remittanceSubmitted"]) || order.RemittanceProofURL != ""

	if items, ok := data["items"].([]any); ok {
		order.Items = make([]domain.OrderLine, 0, len(items))
		for _, raw := range items {
			entry, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			order.Items = append(order.Items, domain.OrderLine{
				ID:       asString(entry["id"]),
				Name:     asString(entry["name"]),
				Quantity: asInt64(entry["quantity"]),
				Price:    asInt64(entry["price"]),
				Subtotal: asInt64(entry["subtotal"]),
			})
		}
	}
	return order, nil
}
