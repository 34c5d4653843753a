package orders

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/avilesmarco/storefront-backend/internal/catalog"
	"github.com/avilesmarco/storefront-backend/pkg/auth"
	"github.com/avilesmarco/storefront-backend/pkg/db/models"
	"github.com/avilesmarco/storefront-backend/pkg/enums"
	"github.com/avilesmarco/storefront-backend/pkg/errors"
	"github.com/avilesmarco/storefront-backend/pkg/logger"
	"github.com/avilesmarco/storefront-backend/pkg/outbox"
	"github.com/avilesmarco/storefront-backend/pkg/outbox/payloads"
	"github.com/avilesmarco/storefront-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes order reads and admin lifecycle transitions.
type Service interface {
	GetOrder(ctx context.Context, actor auth.AccessTokenPayload, orderID uuid.UUID) (*models.Order, error)
	ListOrders(ctx context.Context, actor auth.AccessTokenPayload, params pagination.Params) ([]models.Order, string, error)
	UpdateStatus(ctx context.Context, actor auth.AccessTokenPayload, orderID uuid.UUID, to enums.OrderStatus, tracking *string) (*models.Order, error)
}

type service struct {
	client  txRunner
	repo    *Repository
	catalog *catalog.Repository
	events  *outbox.Service
	logg    *logger.Logger
}

// NewService validates dependencies and returns the orders service.
func NewService(client txRunner, repo *Repository, catalogRepo *catalog.Repository, events *outbox.Service, logg *logger.Logger) (Service, error) {
	if client == nil {
		return nil, stderrors.New("db client is required")
	}
	if repo == nil {
		return nil, stderrors.New("orders repository is required")
	}
	if catalogRepo == nil {
		return nil, stderrors.New("catalog repository is required")
	}
	if events == nil {
		return nil, stderrors.New("outbox service is required")
	}
	if logg == nil {
		return nil, stderrors.New("logger is required")
	}
	return &service{client: client, repo: repo, catalog: catalogRepo, events: events, logg: logg}, nil
}

// GetOrder returns the order when the actor owns it or is an admin.
func (s *service) GetOrder(ctx context.Context, actor auth.AccessTokenPayload, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if IsNotFound(err) {
			return nil, errors.New(errors.CodeNotFound, "order not found")
		}
		return nil, errors.Wrap(errors.CodeInternal, err, "loading order")
	}
	if order.OwnerID != actor.UserID && actor.Role != enums.RoleAdmin {
		return nil, errors.New(errors.CodeForbidden, "order belongs to another customer")
	}
	return order, nil
}

// ListOrders returns the actor's own orders, newest first.
func (s *service) ListOrders(ctx context.Context, actor auth.AccessTokenPayload, params pagination.Params) ([]models.Order, string, error) {
	rows, next, err := s.repo.ListByOwner(ctx, actor.UserID, params)
	if err != nil {
		return nil, "", errors.Wrap(errors.CodeInternal, err, "listing orders")
	}
	return rows, next, nil
}

// UpdateStatus applies an admin lifecycle transition. Cancelling an order
// returns its reserved stock in the same transaction.
func (s *service) UpdateStatus(ctx context.Context, actor auth.AccessTokenPayload, orderID uuid.UUID, to enums.OrderStatus, tracking *string) (*models.Order, error) {
	if actor.Role != enums.RoleAdmin {
		return nil, errors.New(errors.CodeForbidden, "order transitions require an admin principal")
	}
	if !to.IsValid() {
		return nil, errors.New(errors.CodeValidation, "unknown order status").
			WithDetails(map[string]any{"status": string(to)})
	}

	var updated *models.Order
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			if IsNotFound(err) {
				return errors.New(errors.CodeNotFound, "order not found")
			}
			return errors.Wrap(errors.CodeInternal, err, "loading order")
		}

		from := order.Status
		if !CanTransition(from, to) {
			return errors.New(errors.CodeStateConflict, "order status transition disallowed").
				WithDetails(map[string]any{"from": string(from), "to": string(to)})
		}
		if to == enums.OrderStatusShipped && (tracking == nil || *tracking == "") {
			return errors.New(errors.CodeValidation, "tracking number is required to mark an order shipped")
		}
		if tracking != nil && *tracking != "" && to != enums.OrderStatusShipped && to != enums.OrderStatusDelivered {
			return errors.New(errors.CodeValidation, "tracking number is only accepted at or after shipped").
				WithDetails(map[string]any{"status": string(to)})
		}

		applied, err := repo.UpdateStatus(ctx, orderID, from, to, tracking)
		if err != nil {
			return errors.Wrap(errors.CodeInternal, err, "updating order status")
		}
		if !applied {
			return errors.New(errors.CodeConflict, "order status changed concurrently").
				WithDetails(map[string]any{"order_id": orderID.String()})
		}

		if to == enums.OrderStatusCancelled {
			catalogRepo := s.catalog.WithTx(tx)
			for _, item := range order.Items {
				if err := catalogRepo.ReleaseStock(ctx, item.ProductID, item.Quantity); err != nil {
					return errors.Wrap(errors.CodeInternal, err, "releasing stock for cancelled order")
				}
			}
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: actor.UserID, Role: actor.Role.String()},
			Data: payloads.OrderStatusChangedEvent{
				OrderID:        order.ID,
				OwnerID:        order.OwnerID,
				FromStatus:     from,
				ToStatus:       to,
				TrackingNumber: tracking,
				ChangedAt:      time.Now().UTC(),
			},
		}
		if err := s.events.Emit(ctx, tx, event); err != nil {
			return errors.Wrap(errors.CodeInternal, err, "queueing order status event")
		}

		order.Status = to
		if tracking != nil {
			order.TrackingNumber = tracking
		}
		updated = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"order_id": orderID.String(),
		"status":   to.String(),
	}), "order status updated")
	return updated, nil
}
