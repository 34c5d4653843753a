package checkout

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/avilesmarco/storefront-backend/internal/cart"
	"github.com/avilesmarco/storefront-backend/internal/cartstore"
	"github.com/avilesmarco/storefront-backend/internal/catalog"
	"github.com/avilesmarco/storefront-backend/internal/orders"
	"github.com/avilesmarco/storefront-backend/internal/pricing"
	"github.com/avilesmarco/storefront-backend/pkg/auth"
	"github.com/avilesmarco/storefront-backend/pkg/db"
	"github.com/avilesmarco/storefront-backend/pkg/db/models"
	"github.com/avilesmarco/storefront-backend/pkg/enums"
	"github.com/avilesmarco/storefront-backend/pkg/errors"
	"github.com/avilesmarco/storefront-backend/pkg/logger"
	"github.com/avilesmarco/storefront-backend/pkg/metrics"
	"github.com/avilesmarco/storefront-backend/pkg/outbox"
	"github.com/avilesmarco/storefront-backend/pkg/outbox/payloads"
	"github.com/avilesmarco/storefront-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Lock is the slice of the redis lock the service needs.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// LockFactory builds a per-principal checkout lock.
type LockFactory func(ownerID uuid.UUID) (Lock, error)

// Input carries everything a checkout transition consumes. Lines are the
// session cart at the moment the customer confirmed.
type Input struct {
	Lines           []cart.Line
	ShippingAddress types.Address
	PaymentMethod   enums.PaymentMethod
	IdempotencyKey  string
}

// Result is the checkout outcome. Created is false when the idempotency key
// matched an order from an earlier attempt.
type Result struct {
	Order   *models.Order
	Created bool
}

// Service runs the cart-to-order transition.
type Service interface {
	Execute(ctx context.Context, actor auth.AccessTokenPayload, input Input) (*Result, error)
}

// Params wires the checkout service dependencies.
type Params struct {
	Client  txRunner
	Carts   *cartstore.Repository
	Orders  *orders.Repository
	Catalog *catalog.Repository
	Events  *outbox.Service
	Locks   LockFactory
	Metrics *metrics.CheckoutMetrics
	Logger  *logger.Logger
}

type service struct {
	client  txRunner
	carts   *cartstore.Repository
	orders  *orders.Repository
	catalog *catalog.Repository
	events  *outbox.Service
	locks   LockFactory
	metrics *metrics.CheckoutMetrics
	logg    *logger.Logger
}

// NewService validates dependencies and returns the checkout service.
func NewService(params Params) (Service, error) {
	if params.Client == nil {
		return nil, stderrors.New("db client is required")
	}
	if params.Carts == nil {
		return nil, stderrors.New("cart repository is required")
	}
	if params.Orders == nil {
		return nil, stderrors.New("orders repository is required")
	}
	if params.Catalog == nil {
		return nil, stderrors.New("catalog repository is required")
	}
	if params.Events == nil {
		return nil, stderrors.New("outbox service is required")
	}
	if params.Locks == nil {
		return nil, stderrors.New("lock factory is required")
	}
	if params.Logger == nil {
		return nil, stderrors.New("logger is required")
	}
	return &service{
		client:  params.Client,
		carts:   params.Carts,
		orders:  params.Orders,
		catalog: params.Catalog,
		events:  params.Events,
		locks:   params.Locks,
		metrics: params.Metrics,
		logg:    params.Logger,
	}, nil
}

// Execute turns the cart into an order, all or nothing. Stock decrements, the
// order insert, the server cart conversion and the outbox events share one
// transaction; any failure rolls everything back and the cart survives
// untouched. Retries with the same idempotency key return the original order.
func (s *service) Execute(ctx context.Context, actor auth.AccessTokenPayload, input Input) (*Result, error) {
	started := time.Now()
	result, err := s.execute(ctx, actor, input)
	outcome := "success"
	switch {
	case err != nil:
		outcome = "failure"
	case !result.Created:
		outcome = "replayed"
	}
	s.metrics.ObserveCheckout(outcome, time.Since(started))
	return result, err
}

func (s *service) execute(ctx context.Context, actor auth.AccessTokenPayload, input Input) (*Result, error) {
	if actor.UserID == uuid.Nil {
		return nil, errors.New(errors.CodeUnauthorized, "checkout requires an authenticated principal")
	}
	if strings.TrimSpace(input.IdempotencyKey) == "" {
		return nil, errors.New(errors.CodeValidation, "idempotency key is required")
	}
	if !input.PaymentMethod.IsValid() {
		return nil, errors.New(errors.CodeValidation, "unknown payment method").
			WithDetails(map[string]any{"payment_method": string(input.PaymentMethod)})
	}
	input.ShippingAddress = input.ShippingAddress.Normalize()
	if !input.ShippingAddress.IsComplete() {
		return nil, errors.New(errors.CodeValidation, "shipping address is incomplete")
	}
	if len(input.Lines) == 0 {
		return nil, errors.New(errors.CodeValidation, "cannot check out an empty cart")
	}

	// Lookup-first idempotency: a replayed key short-circuits before any
	// lock or stock work happens.
	if existing, err := s.orders.FindByOwnerAndKey(ctx, actor.UserID, input.IdempotencyKey); err == nil {
		return &Result{Order: existing, Created: false}, nil
	} else if !orders.IsNotFound(err) {
		return nil, errors.Wrap(errors.CodeInternal, err, "checking idempotency key")
	}

	lock, err := s.locks(actor.UserID)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "building checkout lock")
	}
	acquired, err := lock.Acquire(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.CodeDependency, err, "acquiring checkout lock")
	}
	if !acquired {
		return nil, errors.New(errors.CodeConflict, "a checkout is already in progress for this customer")
	}
	defer func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
			s.logg.Warn(ctx, "failed to release checkout lock")
		}
	}()

	items := make([]pricing.LineItem, 0, len(input.Lines))
	for _, l := range input.Lines {
		items = append(items, pricing.LineItem{
			ProductID: l.ProductID,
			Name:      l.Name,
			UnitPrice: l.UnitPrice(),
			Quantity:  l.Quantity,
		})
	}
	breakdown, err := pricing.Compute(items)
	if err != nil {
		return nil, err
	}

	var order *models.Order
	err = s.client.WithTx(ctx, func(tx *gorm.DB) error {
		catalogRepo := s.catalog.WithTx(tx)
		for _, line := range input.Lines {
			ok, err := catalogRepo.DecrementStock(ctx, line.ProductID, line.Quantity)
			if err != nil {
				return errors.Wrap(errors.CodeInternal, err, "reserving stock")
			}
			if !ok {
				return errors.New(errors.CodeConflict, "insufficient stock").
					WithDetails(map[string]any{"product_id": line.ProductID.String()})
			}
		}

		lineItems := make([]models.OrderLineItem, 0, len(input.Lines))
		for _, line := range input.Lines {
			lineItems = append(lineItems, models.OrderLineItem{
				ProductID:      line.ProductID,
				Name:           line.Name,
				UnitPriceCents: line.UnitPriceCents,
				ImageRef:       line.ImageRef,
				Quantity:       line.Quantity,
			})
		}
		created, err := s.orders.WithTx(tx).Create(ctx, &models.Order{
			OwnerID:         actor.UserID,
			IdempotencyKey:  input.IdempotencyKey,
			ShippingAddress: input.ShippingAddress,
			PaymentMethod:   input.PaymentMethod,
			Status:          enums.OrderStatusPending,
			PaymentStatus:   enums.PaymentStatusCompleted,
			SubtotalCents:   types.DecimalToCents(breakdown.Subtotal),
			TaxCents:        types.DecimalToCents(breakdown.Tax),
			ShippingCents:   types.DecimalToCents(breakdown.Shipping),
			TotalCents:      types.DecimalToCents(breakdown.Total),
			Items:           lineItems,
		})
		if err != nil {
			// The only unique constraint on this insert path is the
			// owner/idempotency-key index.
			if db.IsUniqueViolation(err, "") {
				// Lost a race with a concurrent retry carrying the same key.
				return errors.New(errors.CodeIdempotency, "idempotency key already used").
					WithDetails(map[string]any{"idempotency_key": input.IdempotencyKey})
			}
			return errors.Wrap(errors.CodeInternal, err, "creating order")
		}

		cartRepo := s.carts.WithTx(tx)
		record, err := cartRepo.FindActiveByOwner(ctx, actor.UserID)
		if err != nil && !cartstore.IsNotFound(err) {
			return errors.Wrap(errors.CodeInternal, err, "loading server cart")
		}
		if record != nil {
			if _, err := cartRepo.MarkConverted(ctx, record.ID); err != nil {
				return errors.Wrap(errors.CodeInternal, err, "converting server cart")
			}
			cartEvent := outbox.DomainEvent{
				EventType:     enums.EventCartConverted,
				AggregateType: enums.AggregateCart,
				AggregateID:   record.ID,
				Actor:         &outbox.ActorRef{UserID: actor.UserID, Role: actor.Role.String()},
				Data: payloads.CartConvertedEvent{
					CartID:      record.ID,
					OwnerID:     actor.UserID,
					OrderID:     created.ID,
					ItemCount:   len(record.Items),
					ConvertedAt: time.Now().UTC(),
				},
			}
			if err := s.events.Emit(ctx, tx, cartEvent); err != nil {
				return errors.Wrap(errors.CodeInternal, err, "queueing cart event")
			}
		}

		cartID := uuid.Nil
		if record != nil {
			cartID = record.ID
		}
		orderEvent := outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   created.ID,
			Actor:         &outbox.ActorRef{UserID: actor.UserID, Role: actor.Role.String()},
			Data: payloads.OrderCreatedEvent{
				OrderID:        created.ID,
				OwnerID:        actor.UserID,
				CartID:         cartID,
				PaymentMethod:  created.PaymentMethod,
				PaymentStatus:  created.PaymentStatus,
				SubtotalCents:  created.SubtotalCents,
				TaxCents:       created.TaxCents,
				ShippingCents:  created.ShippingCents,
				TotalCents:     created.TotalCents,
				LineItemCount:  len(created.Items),
				IdempotencyKey: input.IdempotencyKey,
			},
		}
		if err := s.events.Emit(ctx, tx, orderEvent); err != nil {
			return errors.Wrap(errors.CodeInternal, err, "queueing order event")
		}

		order = created
		return nil
	})
	if err != nil {
		// A concurrent retry may have committed the order first.
		if errors.HasCode(err, errors.CodeIdempotency) {
			if existing, lookupErr := s.orders.FindByOwnerAndKey(ctx, actor.UserID, input.IdempotencyKey); lookupErr == nil {
				return &Result{Order: existing, Created: false}, nil
			}
		}
		return nil, err
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"order_id":    order.ID.String(),
		"owner_id":    actor.UserID.String(),
		"total_cents": order.TotalCents,
	}), "checkout completed")
	return &Result{Order: order, Created: true}, nil
}
