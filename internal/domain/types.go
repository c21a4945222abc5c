package domain

import (
	"strings"
	"time"
)

// Product is a catalog entry managed by the admin surface and readable by everyone.
// Monetary amounts are whole New Taiwan dollars.
type Product struct {
	ID          string   `firestore:"id" json:"id"`
	Name        string   `firestore:"name" json:"name"`
	Category    string   `firestore:"category" json:"category"`
	Description string   `firestore:"description" json:"description"`
	Price       int64    `firestore:"price" json:"price"`
	ImageURLs   []string `firestore:"imageUrls" json:"imageUrls,omitempty"`
	// FreeShippingQuantity waives store-to-store shipping once a single cart line
	// reaches this quantity. Zero means the product carries no quantity threshold.
	FreeShippingQuantity int64 `firestore:"freeShippingQuantity" json:"freeShippingQuantity,omitempty"`
}

// CartLine is a product plus the quantity selected by the shopper.
// A cart holds at most one line per product id.
type CartLine struct {
	Product
	Quantity int64 `json:"quantity"`
}

// LineSubtotal returns price multiplied by quantity for this line.
func (l CartLine) LineSubtotal() int64 {
	return l.Price * l.Quantity
}

// ShippingMethod identifies one of the fixed carrier options configured in code.
type ShippingMethod string

const (
	// ShippingBlackCat is home delivery by courier.
	ShippingBlackCat ShippingMethod = "blackCat"
	// ShippingSevenEleven is 7-11 store-to-store pickup.
	ShippingSevenEleven ShippingMethod = "sevenEleven"
	// ShippingFamilyMart is FamilyMart store-to-store pickup.
	ShippingFamilyMart ShippingMethod = "familyMart"
)

// ShippingOption couples a carrier with its display label and flat fee.
type ShippingOption struct {
	Method ShippingMethod
	Label  string
	Fee    int64
}

var shippingOptions = map[ShippingMethod]ShippingOption{
	ShippingBlackCat:    {Method: ShippingBlackCat, Label: "黑貓宅急便", Fee: 290},
	ShippingSevenEleven: {Method: ShippingSevenEleven, Label: "7-11 店到店", Fee: 225},
	ShippingFamilyMart:  {Method: ShippingFamilyMart, Label: "全家 店到店", Fee: 205},
}

// ShippingOptions returns the carrier table in a stable order.
func ShippingOptions() []ShippingOption {
	return []ShippingOption{
		shippingOptions[ShippingBlackCat],
		shippingOptions[ShippingSevenEleven],
		shippingOptions[ShippingFamilyMart],
	}
}

// ParseShippingMethod validates a raw carrier identifier.
func ParseShippingMethod(raw string) (ShippingMethod, bool) {
	method := ShippingMethod(strings.TrimSpace(raw))
	_, ok := shippingOptions[method]
	return method, ok
}

// Valid reports whether the method is one of the configured carriers.
func (m ShippingMethod) Valid() bool {
	_, ok := shippingOptions[m]
	return ok
}

// Label returns the localized carrier name.
func (m ShippingMethod) Label() string {
	return shippingOptions[m].Label
}

// FlatFee returns the carrier's flat shipping fee.
func (m ShippingMethod) FlatFee() int64 {
	return shippingOptions[m].Fee
}

// IsStoreToStore reports whether the parcel is collected at a retail outlet.
func (m ShippingMethod) IsStoreToStore() bool {
	return m == ShippingSevenEleven || m == ShippingFamilyMart
}

// ShippingSettings is the singleton admin-managed shipping configuration.
// A nil threshold disables amount-based free shipping for store-to-store carriers.
type ShippingSettings struct {
	FreeShippingThreshold *int64 `json:"freeShippingThreshold,omitempty"`
}

// OrderStatus tracks an order through admin disposition.
type OrderStatus string

const (
	// OrderStatusPendingConfirmation is the state every order is created in.
	OrderStatusPendingConfirmation OrderStatus = "待確認"
	// OrderStatusShipped marks the parcel as handed to the carrier.
	OrderStatusShipped OrderStatus = "已出貨"
	// OrderStatusCancelled marks the order as cancelled by the admin.
	OrderStatusCancelled OrderStatus = "已取消"
)

// ParseOrderStatus maps a stored status value onto the enum, defaulting missing or
// unknown values to pending confirmation so that legacy records keep loading.
func ParseOrderStatus(raw string) OrderStatus {
	switch OrderStatus(strings.TrimSpace(raw)) {
	case OrderStatusShipped:
		return OrderStatusShipped
	case OrderStatusCancelled:
		return OrderStatusCancelled
	default:
		return OrderStatusPendingConfirmation
	}
}

// Valid reports whether the status is one of the known states.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPendingConfirmation, OrderStatusShipped, OrderStatusCancelled:
		return true
	}
	return false
}

// OrderLine is a frozen copy of a cart line taken at submission time.
type OrderLine struct {
	ID       string `firestore:"id" json:"id"`
	Name     string `firestore:"name" json:"name"`
	Quantity int64  `firestore:"quantity" json:"quantity"`
	Price    int64  `firestore:"price" json:"price"`
	Subtotal int64  `firestore:"subtotal" json:"subtotal"`
}

// Order is immutable once created except for its status and late proof attachment.
type Order struct {
	OrderID             string         `json:"orderId"`
	Timestamp           time.Time      `json:"timestamp"`
	CustomerName        string         `json:"customerName"`
	Phone               string         `json:"phone"`
	Address             string         `json:"address,omitempty"`
	ShippingMethod      ShippingMethod `json:"shippingMethod"`
	ShippingMethodLabel string         `json:"shippingMethodLabel"`
	ShippingDetail      string         `json:"shippingDetail"`
	StoreCity           string         `json:"storeCity,omitempty"`
	StoreName           string         `json:"storeName,omitempty"`
	ShippingFee         int64          `json:"shippingFee"`
	Total               int64          `json:"total"`
	Items               []OrderLine    `json:"items"`
	RemittanceProofURL  string         `json:"remittanceProofUrl,omitempty"`
	RemittanceSubmitted bool           `json:"remittanceSubmitted"`
	ProofUploadedAt     *time.Time     `json:"proofUploadedAt,omitempty"`
	// CreatedAt is the server-assigned creation time; Timestamp is the client
	// clock kept as a sorting and display fallback for records that predate it.
	CreatedAt *time.Time  `json:"createdAt,omitempty"`
	Status    OrderStatus `json:"status"`
	UserID    string      `json:"userId,omitempty"`
}

// EffectiveCreatedAt prefers the server timestamp and falls back to the client clock.
func (o Order) EffectiveCreatedAt() time.Time {
	if o.CreatedAt != nil && !o.CreatedAt.IsZero() {
		return *o.CreatedAt
	}
	return o.Timestamp
}

// Announcement is the single globally shared storefront banner message.
type Announcement struct {
	Message string `json:"message"`
}

// DefaultAnnouncement is shown when neither the remote store nor the local cache
// holds an announcement.
const DefaultAnnouncement = "🎉 全館滿 NT$2000 免運費！新會員註冊即享9折優惠！"
