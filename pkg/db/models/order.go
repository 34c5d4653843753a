package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/avilesmarco/storefront-backend/pkg/enums"
	"github.com/avilesmarco/storefront-backend/pkg/types"
)

// Order is the immutable snapshot produced by a checkout transition. Only the
// status, payment status and tracking fields change after creation; the item
// and pricing snapshots never do.
type Order struct {
	ID              uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OwnerID         uuid.UUID           `gorm:"column:owner_id;type:uuid;not null;index:idx_orders_owner;uniqueIndex:ux_orders_owner_idempotency"`
	IdempotencyKey  string              `gorm:"column:idempotency_key;not null;uniqueIndex:ux_orders_owner_idempotency"`
	ShippingAddress types.Address       `gorm:"column:shipping_address;type:jsonb;serializer:json"`
	PaymentMethod   enums.PaymentMethod `gorm:"column:payment_method;not null"`
	Status          enums.OrderStatus   `gorm:"column:status;not null;default:'pending'"`
	PaymentStatus   enums.PaymentStatus `gorm:"column:payment_status;not null;default:'pending'"`
	TrackingNumber  *string             `gorm:"column:tracking_number"`
	SubtotalCents   int64               `gorm:"column:subtotal_cents;not null"`
	TaxCents        int64               `gorm:"column:tax_cents;not null"`
	ShippingCents   int64               `gorm:"column:shipping_cents;not null"`
	TotalCents      int64               `gorm:"column:total_cents;not null"`
	Items           []OrderLineItem     `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
