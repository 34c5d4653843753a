package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/avilesmarco/storefront-backend/pkg/enums"
)

// OrderCreatedEvent signals a completed checkout transition.
type OrderCreatedEvent struct {
	OrderID        uuid.UUID           `json:"order_id"`
	OwnerID        uuid.UUID           `json:"owner_id"`
	CartID         uuid.UUID           `json:"cart_id"`
	PaymentMethod  enums.PaymentMethod `json:"payment_method"`
	PaymentStatus  enums.PaymentStatus `json:"payment_status"`
	SubtotalCents  int64               `json:"subtotal_cents"`
	TaxCents       int64               `json:"tax_cents"`
	ShippingCents  int64               `json:"shipping_cents"`
	TotalCents     int64               `json:"total_cents"`
	LineItemCount  int                 `json:"line_item_count"`
	IdempotencyKey string              `json:"idempotency_key"`
}

// OrderStatusChangedEvent is emitted on every lifecycle transition.
type OrderStatusChangedEvent struct {
	OrderID        uuid.UUID         `json:"order_id"`
	OwnerID        uuid.UUID         `json:"owner_id"`
	FromStatus     enums.OrderStatus `json:"from_status"`
	ToStatus       enums.OrderStatus `json:"to_status"`
	TrackingNumber *string           `json:"tracking_number,omitempty"`
	ChangedAt      time.Time         `json:"changed_at"`
}

// CartConvertedEvent reports the cart consumed by a checkout.
type CartConvertedEvent struct {
	CartID      uuid.UUID `json:"cart_id"`
	OwnerID     uuid.UUID `json:"owner_id"`
	OrderID     uuid.UUID `json:"order_id"`
	ItemCount   int       `json:"item_count"`
	ConvertedAt time.Time `json:"converted_at"`
}
