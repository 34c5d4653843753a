package cart

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/avilesmarco/storefront-backend/internal/pricing"
	"github.com/avilesmarco/storefront-backend/pkg/types"
)

// Line is one product entry in a session cart. Price and name are snapshots
// taken when the product was added.
type Line struct {
	ProductID      uuid.UUID `json:"product_id"`
	Name           string    `json:"name"`
	UnitPriceCents int64     `json:"unit_price_cents"`
	ImageRef       string    `json:"image_ref,omitempty"`
	Quantity       int       `json:"quantity"`
}

// UnitPrice returns the line's price in decimal form for pricing math.
func (l Line) UnitPrice() decimal.Decimal {
	return types.CentsToDecimal(l.UnitPriceCents)
}

// Snapshot is a point-in-time copy of a session cart with its pricing
// breakdown. It is safe to hand out: mutating it never touches the cache.
type Snapshot struct {
	Lines     []Line
	Breakdown pricing.Breakdown
}

// RemoteStore is the authoritative server-side cart the session layer mirrors
// into and reconciles from. Replace returns the post-write item list so the
// caller can converge on the server's view of the cart.
type RemoteStore interface {
	Fetch(ctx context.Context, ownerID uuid.UUID) ([]Line, error)
	Replace(ctx context.Context, ownerID uuid.UUID, lines []Line) ([]Line, error)
}

func pricingItems(lines []Line) []pricing.LineItem {
	items := make([]pricing.LineItem, 0, len(lines))
	for _, line := range lines {
		items = append(items, pricing.LineItem{
			ProductID: line.ProductID,
			Name:      line.Name,
			UnitPrice: line.UnitPrice(),
			Quantity:  line.Quantity,
		})
	}
	return items
}
