package cart

import (
	"sync"

	"github.com/google/uuid"

	"github.com/avilesmarco/storefront-backend/internal/pricing"
	"github.com/avilesmarco/storefront-backend/pkg/errors"
)

// Cache is the in-memory cart for one session. All reads and writes go
// through its mutex; the pricing breakdown is memoized and recomputed only
// after a mutation invalidates it.
type Cache struct {
	mu        sync.Mutex
	lines     []Line
	breakdown pricing.Breakdown
	dirty     bool
}

// NewCache returns an empty cart cache.
func NewCache() *Cache {
	return &Cache{}
}

// Snapshot returns a copy of the cart plus its breakdown. Mutating the
// returned lines does not touch the cache.
func (c *Cache) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Cache) snapshotLocked() Snapshot {
	if c.dirty {
		breakdown, err := pricing.Compute(pricingItems(c.lines))
		if err == nil {
			c.breakdown = breakdown
			c.dirty = false
		}
	}
	copied := make([]Line, len(c.lines))
	copy(copied, c.lines)
	return Snapshot{Lines: copied, Breakdown: c.breakdown}
}

// Add merges the line into the cart. Adding a product that is already present
// increments its quantity; the price snapshot from the first add wins.
func (c *Cache) Add(line Line) (Snapshot, error) {
	if line.Quantity <= 0 {
		return Snapshot{}, errors.New(errors.CodeValidation, "quantity must be positive").
			WithDetails(map[string]any{"product_id": line.ProductID.String(), "quantity": line.Quantity})
	}
	if line.UnitPriceCents < 0 {
		return Snapshot{}, errors.New(errors.CodeValidation, "unit price must not be negative").
			WithDetails(map[string]any{"product_id": line.ProductID.String()})
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.lines {
		if c.lines[i].ProductID == line.ProductID {
			c.lines[i].Quantity += line.Quantity
			c.dirty = true
			return c.snapshotLocked(), nil
		}
	}
	c.lines = append(c.lines, line)
	c.dirty = true
	return c.snapshotLocked(), nil
}

// SetQuantity pins the quantity of an existing line. Zero or negative removes
// the line entirely. Unknown products are a no-op rather than an error so
// retried removals stay idempotent.
func (c *Cache) SetQuantity(productID uuid.UUID, quantity int) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.lines {
		if c.lines[i].ProductID != productID {
			continue
		}
		if quantity <= 0 {
			c.lines = append(c.lines[:i], c.lines[i+1:]...)
		} else {
			c.lines[i].Quantity = quantity
		}
		c.dirty = true
		break
	}
	return c.snapshotLocked()
}

// Remove deletes the line for the product if present.
func (c *Cache) Remove(productID uuid.UUID) Snapshot {
	return c.SetQuantity(productID, 0)
}

// Clear empties the cart.
func (c *Cache) Clear() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lines = nil
	c.dirty = true
	return c.snapshotLocked()
}

// ReplaceAll overwrites the cart wholesale. Used by reconciliation, where the
// server copy always wins.
func (c *Cache) ReplaceAll(lines []Line) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	copied := make([]Line, len(lines))
	copy(copied, lines)
	c.lines = copied
	c.dirty = true
	return c.snapshotLocked()
}
