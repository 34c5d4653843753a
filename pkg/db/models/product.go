package models

import (
	"time"

	"github.com/google/uuid"
)

// Product is the catalog row the cart snapshots from. Stock lives directly on
// the product; decrements happen through conditional updates only.
type Product struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name           string    `gorm:"column:name;not null"`
	Description    string    `gorm:"column:description"`
	UnitPriceCents int64     `gorm:"column:unit_price_cents;not null"`
	ImageRef       string    `gorm:"column:image_ref"`
	Stock          int       `gorm:"column:stock;not null;default:0"`
	IsActive       bool      `gorm:"column:is_active;not null;default:true"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
