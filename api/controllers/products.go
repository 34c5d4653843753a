package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/avilesmarco/storefront-backend/api/responses"
	"github.com/avilesmarco/storefront-backend/api/validators"
	"github.com/avilesmarco/storefront-backend/internal/catalog"
	"github.com/avilesmarco/storefront-backend/pkg/db/models"
	pkgerrors "github.com/avilesmarco/storefront-backend/pkg/errors"
	"github.com/avilesmarco/storefront-backend/pkg/logger"
)

type productResponse struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	Description    string    `json:"description,omitempty"`
	UnitPriceCents int64     `json:"unit_price_cents"`
	ImageRef       string    `json:"image_ref,omitempty"`
	Stock          int       `json:"stock"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func newProductResponse(product models.Product) productResponse {
	return productResponse{
		ID:             product.ID,
		Name:           product.Name,
		Description:    product.Description,
		UnitPriceCents: product.UnitPriceCents,
		ImageRef:       product.ImageRef,
		Stock:          product.Stock,
		CreatedAt:      product.CreatedAt,
		UpdatedAt:      product.UpdatedAt,
	}
}

// ListProducts returns the active catalog.
func ListProducts(repo *catalog.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		products, err := repo.ListActive(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing products"))
			return
		}

		out := make([]productResponse, 0, len(products))
		for _, product := range products {
			out = append(out, newProductResponse(product))
		}
		responses.WriteSuccess(w, out)
	}
}

// GetProduct returns a single catalog row, active or not.
func GetProduct(repo *catalog.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := uuid.Parse(chi.URLParam(r, "productID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product id"))
			return
		}

		product, err := repo.FindByID(r.Context(), productID)
		if err != nil {
			if catalog.IsNotFound(err) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "product not found"))
				return
			}
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading product"))
			return
		}

		responses.WriteSuccess(w, newProductResponse(*product))
	}
}

type createProductRequest struct {
	Name           string `json:"name" validate:"required"`
	Description    string `json:"description"`
	UnitPriceCents int64  `json:"unit_price_cents" validate:"required,min=0"`
	ImageRef       string `json:"image_ref"`
	Stock          int    `json:"stock" validate:"min=0"`
}

// CreateProduct is the admin path for seeding catalog rows.
func CreateProduct(repo *catalog.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload createProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := repo.Create(r.Context(), &models.Product{
			Name:           payload.Name,
			Description:    payload.Description,
			UnitPriceCents: payload.UnitPriceCents,
			ImageRef:       payload.ImageRef,
			Stock:          payload.Stock,
			IsActive:       true,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating product"))
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newProductResponse(*product))
	}
}
