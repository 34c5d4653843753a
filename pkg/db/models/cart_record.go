package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/avilesmarco/storefront-backend/pkg/enums"
)

// CartRecord is the authoritative server-held cart. One active record exists
// per owner; checkout flips it to converted and a fresh one is created on the
// next mutation.
type CartRecord struct {
	ID        uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OwnerID   uuid.UUID        `gorm:"column:owner_id;type:uuid;not null;index:idx_cart_records_owner"`
	Status    enums.CartStatus `gorm:"column:status;not null;default:'active'"`
	Items     []CartItem       `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
