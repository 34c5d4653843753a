package pricing

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/avilesmarco/storefront-backend/pkg/errors"
)

var (
	// TaxRate is applied to the subtotal and rounded to cents.
	TaxRate = decimal.NewFromFloat(0.10)
	// FreeShippingThreshold is the subtotal above which shipping is waived.
	// The comparison is strict: a subtotal of exactly 100 still pays shipping.
	FreeShippingThreshold = decimal.NewFromInt(100)
	// FlatShippingFee is charged whenever the threshold is not exceeded.
	FlatShippingFee = decimal.NewFromInt(10)
)

// LineItem is a single priced entry in a cart.
type LineItem struct {
	ProductID uuid.UUID
	Name      string
	UnitPrice decimal.Decimal
	Quantity  int
}

// Breakdown is the full pricing result for a set of line items.
type Breakdown struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Shipping decimal.Decimal
	Total    decimal.Decimal
}

// Compute derives the deterministic pricing breakdown for the given items.
// An empty slice yields an all-zero breakdown including zero shipping; the
// shipping fee applies to carts, not to the absence of one.
func Compute(items []LineItem) (Breakdown, error) {
	if len(items) == 0 {
		zero := decimal.Zero
		return Breakdown{Subtotal: zero, Tax: zero, Shipping: zero, Total: zero}, nil
	}

	subtotal := decimal.Zero
	for _, item := range items {
		if err := validateItem(item); err != nil {
			return Breakdown{}, err
		}
		subtotal = subtotal.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	tax := subtotal.Mul(TaxRate).Round(2)

	shipping := FlatShippingFee
	if subtotal.GreaterThan(FreeShippingThreshold) {
		shipping = decimal.Zero
	}

	return Breakdown{
		Subtotal: subtotal,
		Tax:      tax,
		Shipping: shipping,
		Total:    subtotal.Add(tax).Add(shipping),
	}, nil
}

func validateItem(item LineItem) error {
	if item.Quantity <= 0 {
		return errors.New(errors.CodeValidation, "line item quantity must be positive").
			WithDetails(map[string]any{"product_id": item.ProductID.String(), "quantity": item.Quantity})
	}
	if item.UnitPrice.IsNegative() {
		return errors.New(errors.CodeValidation, "line item unit price must not be negative").
			WithDetails(map[string]any{"product_id": item.ProductID.String()})
	}
	return nil
}
