package checkout

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avilesmarco/storefront-backend/internal/cart"
	"github.com/avilesmarco/storefront-backend/internal/cartstore"
	"github.com/avilesmarco/storefront-backend/internal/catalog"
	"github.com/avilesmarco/storefront-backend/internal/orders"
	"github.com/avilesmarco/storefront-backend/pkg/auth"
	"github.com/avilesmarco/storefront-backend/pkg/db"
	"github.com/avilesmarco/storefront-backend/pkg/db/models"
	"github.com/avilesmarco/storefront-backend/pkg/enums"
	apperrors "github.com/avilesmarco/storefront-backend/pkg/errors"
	"github.com/avilesmarco/storefront-backend/pkg/logger"
	"github.com/avilesmarco/storefront-backend/pkg/outbox"
	"github.com/avilesmarco/storefront-backend/pkg/types"
)

type stubLock struct {
	mu       sync.Mutex
	held     bool
	denyNext bool
}

func (l *stubLock) Acquire(ctx context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.denyNext || l.held {
		return false, nil
	}
	l.held = true
	return true, nil
}

func (l *stubLock) Release(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.held = false
	return nil
}

type checkoutFixture struct {
	service Service
	client  *db.Client
	lock    *stubLock
	actor   auth.AccessTokenPayload
}

func setupCheckout(t *testing.T) *checkoutFixture {
	t.Helper()

	client, err := db.OpenSQLite("file:checkout_" + uuid.NewString() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	logg := logger.New(logger.Options{ServiceName: "test"})
	lock := &stubLock{}

	svc, err := NewService(Params{
		Client:  client,
		Carts:   cartstore.NewRepository(client.DB()),
		Orders:  orders.NewRepository(client.DB()),
		Catalog: catalog.NewRepository(client.DB()),
		Events:  outbox.NewService(outbox.NewRepository(client.DB()), logg),
		Locks:   func(uuid.UUID) (Lock, error) { return lock, nil },
		Logger:  logg,
	})
	require.NoError(t, err)

	return &checkoutFixture{
		service: svc,
		client:  client,
		lock:    lock,
		actor:   auth.AccessTokenPayload{UserID: uuid.New(), Role: enums.RoleCustomer},
	}
}

func (f *checkoutFixture) seedProduct(t *testing.T, priceCents int64, stock int) models.Product {
	t.Helper()
	product := models.Product{
		ID:             uuid.New(),
		Name:           "seeded product",
		UnitPriceCents: priceCents,
		Stock:          stock,
		IsActive:       true,
	}
	require.NoError(t, f.client.DB().Create(&product).Error)
	return product
}

func (f *checkoutFixture) seedActiveCart(t *testing.T, product models.Product, qty int) models.CartRecord {
	t.Helper()
	record := models.CartRecord{
		ID:      uuid.New(),
		OwnerID: f.actor.UserID,
		Status:  enums.CartStatusActive,
	}
	require.NoError(t, f.client.DB().Create(&record).Error)
	item := models.CartItem{
		ID:             uuid.New(),
		CartID:         record.ID,
		ProductID:      product.ID,
		Name:           product.Name,
		UnitPriceCents: product.UnitPriceCents,
		Quantity:       qty,
	}
	require.NoError(t, f.client.DB().Create(&item).Error)
	return record
}

func validAddress() types.Address {
	return types.Address{
		Name:    "Dana Smith",
		Email:   "dana@example.com",
		Street:  "1 Main St",
		City:    "Springfield",
		State:   "CA",
		ZipCode: "90210",
		Country: "US",
	}
}

func lineFor(product models.Product, qty int) cart.Line {
	return cart.Line{
		ProductID:      product.ID,
		Name:           product.Name,
		UnitPriceCents: product.UnitPriceCents,
		Quantity:       qty,
	}
}

func TestExecuteCreatesOrderAndConvertsCart(t *testing.T) {
	f := setupCheckout(t)
	product := f.seedProduct(t, 4000, 10)
	record := f.seedActiveCart(t, product, 2)

	result, err := f.service.Execute(context.Background(), f.actor, Input{
		Lines:           []cart.Line{lineFor(product, 2)},
		ShippingAddress: validAddress(),
		PaymentMethod:   enums.PaymentMethodCreditCard,
		IdempotencyKey:  "key-1",
	})
	require.NoError(t, err)
	require.True(t, result.Created)

	order := result.Order
	assert.Equal(t, enums.OrderStatusPending, order.Status)
	assert.Equal(t, enums.PaymentStatusCompleted, order.PaymentStatus)
	// 80 subtotal + 8 tax + 10 shipping
	assert.Equal(t, int64(8000), order.SubtotalCents)
	assert.Equal(t, int64(800), order.TaxCents)
	assert.Equal(t, int64(1000), order.ShippingCents)
	assert.Equal(t, int64(9800), order.TotalCents)
	require.Len(t, order.Items, 1)

	var stored models.Product
	require.NoError(t, f.client.DB().First(&stored, "id = ?", product.ID).Error)
	assert.Equal(t, 8, stored.Stock)

	var cartRow models.CartRecord
	require.NoError(t, f.client.DB().First(&cartRow, "id = ?", record.ID).Error)
	assert.Equal(t, enums.CartStatusConverted, cartRow.Status)

	var events []models.OutboxEvent
	require.NoError(t, f.client.DB().Find(&events).Error)
	eventTypes := map[enums.OutboxEventType]bool{}
	for _, e := range events {
		eventTypes[e.EventType] = true
	}
	assert.True(t, eventTypes[enums.EventOrderCreated], "missing order_created event")
	assert.True(t, eventTypes[enums.EventCartConverted], "missing cart_converted event")
}

func TestExecuteReplaysIdempotencyKey(t *testing.T) {
	f := setupCheckout(t)
	product := f.seedProduct(t, 4000, 10)

	input := Input{
		Lines:           []cart.Line{lineFor(product, 1)},
		ShippingAddress: validAddress(),
		PaymentMethod:   enums.PaymentMethodPaypal,
		IdempotencyKey:  "key-retry",
	}

	first, err := f.service.Execute(context.Background(), f.actor, input)
	require.NoError(t, err)
	require.True(t, first.Created)

	second, err := f.service.Execute(context.Background(), f.actor, input)
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.Order.ID, second.Order.ID)

	// Stock was only taken once.
	var stored models.Product
	require.NoError(t, f.client.DB().First(&stored, "id = ?", product.ID).Error)
	assert.Equal(t, 9, stored.Stock)
}

func TestExecuteInsufficientStockRollsBackEverything(t *testing.T) {
	f := setupCheckout(t)
	inStock := f.seedProduct(t, 2000, 5)
	outOfStock := f.seedProduct(t, 3000, 1)

	_, err := f.service.Execute(context.Background(), f.actor, Input{
		Lines:           []cart.Line{lineFor(inStock, 2), lineFor(outOfStock, 3)},
		ShippingAddress: validAddress(),
		PaymentMethod:   enums.PaymentMethodCreditCard,
		IdempotencyKey:  "key-oversell",
	})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict))

	typed := apperrors.As(err)
	require.NotNil(t, typed)
	details, ok := typed.Details().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, outOfStock.ID.String(), details["product_id"])

	// The in-stock decrement rolled back with the rest.
	var stored models.Product
	require.NoError(t, f.client.DB().First(&stored, "id = ?", inStock.ID).Error)
	assert.Equal(t, 5, stored.Stock)

	var count int64
	require.NoError(t, f.client.DB().Model(&models.Order{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestExecuteRejectsEmptyCart(t *testing.T) {
	f := setupCheckout(t)

	_, err := f.service.Execute(context.Background(), f.actor, Input{
		ShippingAddress: validAddress(),
		PaymentMethod:   enums.PaymentMethodCreditCard,
		IdempotencyKey:  "key-empty",
	})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
}

func TestExecuteRequiresIdempotencyKey(t *testing.T) {
	f := setupCheckout(t)
	product := f.seedProduct(t, 2000, 5)

	_, err := f.service.Execute(context.Background(), f.actor, Input{
		Lines:           []cart.Line{lineFor(product, 1)},
		ShippingAddress: validAddress(),
		PaymentMethod:   enums.PaymentMethodCreditCard,
	})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
}

func TestExecuteRejectsIncompleteAddress(t *testing.T) {
	f := setupCheckout(t)
	product := f.seedProduct(t, 2000, 5)

	address := validAddress()
	address.ZipCode = "   "

	_, err := f.service.Execute(context.Background(), f.actor, Input{
		Lines:           []cart.Line{lineFor(product, 1)},
		ShippingAddress: address,
		PaymentMethod:   enums.PaymentMethodCreditCard,
		IdempotencyKey:  "key-address",
	})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
}

func TestExecuteRejectsAnonymousPrincipal(t *testing.T) {
	f := setupCheckout(t)
	product := f.seedProduct(t, 2000, 5)

	_, err := f.service.Execute(context.Background(), auth.AccessTokenPayload{}, Input{
		Lines:           []cart.Line{lineFor(product, 1)},
		ShippingAddress: validAddress(),
		PaymentMethod:   enums.PaymentMethodCreditCard,
		IdempotencyKey:  "key-anon",
	})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthorized))
}

func TestExecuteConflictsWhenLockHeld(t *testing.T) {
	f := setupCheckout(t)
	product := f.seedProduct(t, 2000, 5)
	f.lock.denyNext = true

	_, err := f.service.Execute(context.Background(), f.actor, Input{
		Lines:           []cart.Line{lineFor(product, 1)},
		ShippingAddress: validAddress(),
		PaymentMethod:   enums.PaymentMethodCreditCard,
		IdempotencyKey:  "key-locked",
	})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict))
}
