package cartstore

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/avilesmarco/storefront-backend/internal/cart"
	"github.com/avilesmarco/storefront-backend/pkg/db/models"
	"github.com/avilesmarco/storefront-backend/pkg/enums"
	"github.com/avilesmarco/storefront-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes the server-side cart as the remote store the session layer
// mirrors into and reconciles from.
type Service struct {
	client txRunner
	repo   *Repository
	logg   *logger.Logger
}

// NewService validates dependencies and returns the service.
func NewService(client txRunner, repo *Repository, logg *logger.Logger) (*Service, error) {
	if client == nil {
		return nil, errors.New("db client is required")
	}
	if repo == nil {
		return nil, errors.New("cart repository is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &Service{client: client, repo: repo, logg: logg}, nil
}

var _ cart.RemoteStore = (*Service)(nil)

// Fetch loads the owner's active cart as session lines. A missing cart is an
// empty cart, not an error.
func (s *Service) Fetch(ctx context.Context, ownerID uuid.UUID) ([]cart.Line, error) {
	record, err := s.repo.FindActiveByOwner(ctx, ownerID)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return LinesFromItems(record.Items), nil
}

// Replace overwrites the owner's active cart with the given lines, creating
// the cart record when none exists. The swap runs in one transaction so a
// concurrent checkout never sees a half-written cart. The returned lines are
// re-read from the stored rows: that list is the authoritative cart state.
func (s *Service) Replace(ctx context.Context, ownerID uuid.UUID, lines []cart.Line) ([]cart.Line, error) {
	var stored []cart.Line
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		record, err := repo.FindActiveByOwner(ctx, ownerID)
		if err != nil {
			if !IsNotFound(err) {
				return err
			}
			record, err = repo.Create(ctx, &models.CartRecord{
				OwnerID: ownerID,
				Status:  enums.CartStatusActive,
			})
			if err != nil {
				return err
			}
		}

		if err := repo.ReplaceItems(ctx, record.ID, ItemsFromLines(lines)); err != nil {
			return err
		}
		if err := repo.Touch(ctx, record.ID); err != nil {
			return err
		}

		updated, err := repo.FindActiveByOwner(ctx, ownerID)
		if err != nil {
			return err
		}
		stored = LinesFromItems(updated.Items)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

// LinesFromItems converts persisted cart items into session lines.
func LinesFromItems(items []models.CartItem) []cart.Line {
	if len(items) == 0 {
		return nil
	}
	lines := make([]cart.Line, 0, len(items))
	for _, item := range items {
		lines = append(lines, cart.Line{
			ProductID:      item.ProductID,
			Name:           item.Name,
			UnitPriceCents: item.UnitPriceCents,
			ImageRef:       item.ImageRef,
			Quantity:       item.Quantity,
		})
	}
	return lines
}

// ItemsFromLines converts session lines into persistable cart items.
func ItemsFromLines(lines []cart.Line) []models.CartItem {
	if len(lines) == 0 {
		return nil
	}
	items := make([]models.CartItem, 0, len(lines))
	for _, line := range lines {
		items = append(items, models.CartItem{
			ProductID:      line.ProductID,
			Name:           line.Name,
			UnitPriceCents: line.UnitPriceCents,
			ImageRef:       line.ImageRef,
			Quantity:       line.Quantity,
		})
	}
	return items
}
