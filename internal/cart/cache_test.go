package cart

import (
	"testing"

	"github.com/google/uuid"

	"github.com/avilesmarco/storefront-backend/pkg/errors"
)

func line(id uuid.UUID, priceCents int64, qty int) Line {
	return Line{ProductID: id, Name: "product", UnitPriceCents: priceCents, Quantity: qty}
}

func TestCacheAddMergesExistingLine(t *testing.T) {
	cache := NewCache()
	productID := uuid.New()

	if _, err := cache.Add(line(productID, 4000, 1)); err != nil {
		t.Fatalf("first add: %v", err)
	}
	snapshot, err := cache.Add(line(productID, 4000, 2))
	if err != nil {
		t.Fatalf("second add: %v", err)
	}

	if len(snapshot.Lines) != 1 {
		t.Fatalf("expected one line, got %d", len(snapshot.Lines))
	}
	if snapshot.Lines[0].Quantity != 3 {
		t.Errorf("quantity = %d, want 3", snapshot.Lines[0].Quantity)
	}
}

func TestCacheAddKeepsFirstPriceSnapshot(t *testing.T) {
	cache := NewCache()
	productID := uuid.New()

	if _, err := cache.Add(line(productID, 4000, 1)); err != nil {
		t.Fatalf("first add: %v", err)
	}
	snapshot, err := cache.Add(line(productID, 9999, 1))
	if err != nil {
		t.Fatalf("second add: %v", err)
	}

	if snapshot.Lines[0].UnitPriceCents != 4000 {
		t.Errorf("unit price = %d, want original snapshot 4000", snapshot.Lines[0].UnitPriceCents)
	}
}

func TestCacheAddRejectsNonPositiveQuantity(t *testing.T) {
	cache := NewCache()
	_, err := cache.Add(line(uuid.New(), 4000, 0))
	if !errors.HasCode(err, errors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCacheSetQuantityZeroRemovesLine(t *testing.T) {
	cache := NewCache()
	productID := uuid.New()
	if _, err := cache.Add(line(productID, 2000, 2)); err != nil {
		t.Fatalf("add: %v", err)
	}

	snapshot := cache.SetQuantity(productID, 0)
	if len(snapshot.Lines) != 0 {
		t.Errorf("expected empty cart, got %d lines", len(snapshot.Lines))
	}
}

func TestCacheSetQuantityUnknownProductIsNoop(t *testing.T) {
	cache := NewCache()
	if _, err := cache.Add(line(uuid.New(), 2000, 1)); err != nil {
		t.Fatalf("add: %v", err)
	}

	snapshot := cache.SetQuantity(uuid.New(), 5)
	if len(snapshot.Lines) != 1 {
		t.Errorf("expected cart untouched, got %d lines", len(snapshot.Lines))
	}
}

func TestCacheSnapshotRecomputesBreakdownAfterMutation(t *testing.T) {
	cache := NewCache()
	productID := uuid.New()

	snapshot, err := cache.Add(line(productID, 2000, 1))
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	// 20 subtotal + 2 tax + 10 shipping
	if snapshot.Breakdown.Total.String() != "32" {
		t.Fatalf("total = %s, want 32", snapshot.Breakdown.Total.String())
	}

	snapshot = cache.SetQuantity(productID, 6)
	// 120 subtotal + 12 tax, free shipping
	if snapshot.Breakdown.Total.String() != "132" {
		t.Errorf("total = %s, want 132", snapshot.Breakdown.Total.String())
	}
}

func TestCacheSnapshotIsDetachedCopy(t *testing.T) {
	cache := NewCache()
	productID := uuid.New()
	if _, err := cache.Add(line(productID, 2000, 1)); err != nil {
		t.Fatalf("add: %v", err)
	}

	snapshot := cache.Snapshot()
	snapshot.Lines[0].Quantity = 99

	if cache.Snapshot().Lines[0].Quantity != 1 {
		t.Errorf("mutating a snapshot leaked into the cache")
	}
}

func TestCacheReplaceAllOverwrites(t *testing.T) {
	cache := NewCache()
	if _, err := cache.Add(line(uuid.New(), 2000, 1)); err != nil {
		t.Fatalf("add: %v", err)
	}

	incoming := []Line{line(uuid.New(), 3000, 2), line(uuid.New(), 1000, 1)}
	snapshot := cache.ReplaceAll(incoming)

	if len(snapshot.Lines) != 2 {
		t.Fatalf("expected 2 lines after replace, got %d", len(snapshot.Lines))
	}
	// 70 subtotal + 7 tax + 10 shipping
	if snapshot.Breakdown.Total.String() != "87" {
		t.Errorf("total = %s, want 87", snapshot.Breakdown.Total.String())
	}
}
