package orders

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avilesmarco/storefront-backend/internal/catalog"
	"github.com/avilesmarco/storefront-backend/pkg/auth"
	"github.com/avilesmarco/storefront-backend/pkg/db"
	"github.com/avilesmarco/storefront-backend/pkg/db/models"
	"github.com/avilesmarco/storefront-backend/pkg/enums"
	apperrors "github.com/avilesmarco/storefront-backend/pkg/errors"
	"github.com/avilesmarco/storefront-backend/pkg/logger"
	"github.com/avilesmarco/storefront-backend/pkg/outbox"
	"github.com/avilesmarco/storefront-backend/pkg/pagination"
)

type ordersFixture struct {
	service Service
	client  *db.Client
	admin   auth.AccessTokenPayload
	owner   auth.AccessTokenPayload
}

func setupOrders(t *testing.T) *ordersFixture {
	t.Helper()

	client, err := db.OpenSQLite("file:orders_" + uuid.NewString() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	logg := logger.New(logger.Options{ServiceName: "test"})
	svc, err := NewService(
		client,
		NewRepository(client.DB()),
		catalog.NewRepository(client.DB()),
		outbox.NewService(outbox.NewRepository(client.DB()), logg),
		logg,
	)
	require.NoError(t, err)

	return &ordersFixture{
		service: svc,
		client:  client,
		admin:   auth.AccessTokenPayload{UserID: uuid.New(), Role: enums.RoleAdmin},
		owner:   auth.AccessTokenPayload{UserID: uuid.New(), Role: enums.RoleCustomer},
	}
}

func (f *ordersFixture) seedOrder(t *testing.T, status enums.OrderStatus) *models.Order {
	t.Helper()
	order := &models.Order{
		ID:             uuid.New(),
		OwnerID:        f.owner.UserID,
		IdempotencyKey: uuid.NewString(),
		PaymentMethod:  enums.PaymentMethodCreditCard,
		Status:         status,
		PaymentStatus:  enums.PaymentStatusCompleted,
		SubtotalCents:  2000,
		TaxCents:       200,
		ShippingCents:  1000,
		TotalCents:     3200,
		Items: []models.OrderLineItem{{
			ID:             uuid.New(),
			ProductID:      uuid.New(),
			Name:           "seeded product",
			UnitPriceCents: 2000,
			Quantity:       1,
		}},
	}
	for i := range order.Items {
		order.Items[i].OrderID = order.ID
	}
	require.NoError(t, f.client.DB().Create(order).Error)
	return order
}

func TestUpdateStatusHappyPath(t *testing.T) {
	f := setupOrders(t)
	order := f.seedOrder(t, enums.OrderStatusPending)

	updated, err := f.service.UpdateStatus(context.Background(), f.admin, order.ID, enums.OrderStatusConfirmed, nil)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusConfirmed, updated.Status)

	var stored models.Order
	require.NoError(t, f.client.DB().First(&stored, "id = ?", order.ID).Error)
	assert.Equal(t, enums.OrderStatusConfirmed, stored.Status)

	var events []models.OutboxEvent
	require.NoError(t, f.client.DB().Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, enums.EventOrderStatusChanged, events[0].EventType)
}

func TestUpdateStatusRejectsIllegalTransition(t *testing.T) {
	f := setupOrders(t)
	order := f.seedOrder(t, enums.OrderStatusShipped)

	_, err := f.service.UpdateStatus(context.Background(), f.admin, order.ID, enums.OrderStatusPending, nil)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeStateConflict))

	typed := apperrors.As(err)
	require.NotNil(t, typed)
	details, ok := typed.Details().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "shipped", details["from"])
	assert.Equal(t, "pending", details["to"])
}

func TestUpdateStatusShippedRequiresTracking(t *testing.T) {
	f := setupOrders(t)
	order := f.seedOrder(t, enums.OrderStatusConfirmed)

	_, err := f.service.UpdateStatus(context.Background(), f.admin, order.ID, enums.OrderStatusShipped, nil)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	tracking := "TRACK-123"
	updated, err := f.service.UpdateStatus(context.Background(), f.admin, order.ID, enums.OrderStatusShipped, &tracking)
	require.NoError(t, err)
	require.NotNil(t, updated.TrackingNumber)
	assert.Equal(t, tracking, *updated.TrackingNumber)
}

func TestUpdateStatusRejectsTrackingBeforeShipped(t *testing.T) {
	f := setupOrders(t)
	order := f.seedOrder(t, enums.OrderStatusPending)

	tracking := "EARLY-1"
	_, err := f.service.UpdateStatus(context.Background(), f.admin, order.ID, enums.OrderStatusConfirmed, &tracking)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	var stored models.Order
	require.NoError(t, f.client.DB().First(&stored, "id = ?", order.ID).Error)
	assert.Equal(t, enums.OrderStatusPending, stored.Status)
	assert.Nil(t, stored.TrackingNumber)
}

func TestUpdateStatusCancelReleasesStock(t *testing.T) {
	f := setupOrders(t)

	product := models.Product{
		ID:             uuid.New(),
		Name:           "restockable",
		UnitPriceCents: 2000,
		Stock:          3,
		IsActive:       true,
	}
	require.NoError(t, f.client.DB().Create(&product).Error)

	order := f.seedOrder(t, enums.OrderStatusShipped)
	require.NoError(t, f.client.DB().
		Model(&models.OrderLineItem{}).
		Where("order_id = ?", order.ID).
		Updates(map[string]any{"product_id": product.ID, "quantity": 2}).Error)

	_, err := f.service.UpdateStatus(context.Background(), f.admin, order.ID, enums.OrderStatusCancelled, nil)
	require.NoError(t, err)

	var stored models.Product
	require.NoError(t, f.client.DB().First(&stored, "id = ?", product.ID).Error)
	assert.Equal(t, 5, stored.Stock)
}

func TestUpdateStatusRequiresAdmin(t *testing.T) {
	f := setupOrders(t)
	order := f.seedOrder(t, enums.OrderStatusPending)

	_, err := f.service.UpdateStatus(context.Background(), f.owner, order.ID, enums.OrderStatusConfirmed, nil)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))
}

func TestUpdateStatusTerminalStatesAreFrozen(t *testing.T) {
	f := setupOrders(t)

	for _, terminal := range []enums.OrderStatus{enums.OrderStatusDelivered, enums.OrderStatusCancelled} {
		order := f.seedOrder(t, terminal)
		_, err := f.service.UpdateStatus(context.Background(), f.admin, order.ID, enums.OrderStatusConfirmed, nil)
		assert.True(t, apperrors.HasCode(err, apperrors.CodeStateConflict), "status %s should be terminal", terminal)
	}
}

func TestGetOrderEnforcesOwnership(t *testing.T) {
	f := setupOrders(t)
	order := f.seedOrder(t, enums.OrderStatusPending)

	got, err := f.service.GetOrder(context.Background(), f.owner, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, got.ID)

	stranger := auth.AccessTokenPayload{UserID: uuid.New(), Role: enums.RoleCustomer}
	_, err = f.service.GetOrder(context.Background(), stranger, order.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	got, err = f.service.GetOrder(context.Background(), f.admin, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, got.ID)
}

func TestGetOrderNotFound(t *testing.T) {
	f := setupOrders(t)

	_, err := f.service.GetOrder(context.Background(), f.admin, uuid.New())
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestListOrdersPaginates(t *testing.T) {
	f := setupOrders(t)
	for i := 0; i < 5; i++ {
		f.seedOrder(t, enums.OrderStatusPending)
	}

	page, next, err := f.service.ListOrders(context.Background(), f.owner, pagination.Params{Limit: 3})
	require.NoError(t, err)
	assert.Len(t, page, 3)
	require.NotEmpty(t, next)

	rest, _, err := f.service.ListOrders(context.Background(), f.owner, pagination.Params{Limit: 3, Cursor: next})
	require.NoError(t, err)
	assert.Len(t, rest, 2)
}
