package controllers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/avilesmarco/storefront-backend/api/middleware"
	"github.com/avilesmarco/storefront-backend/api/responses"
	"github.com/avilesmarco/storefront-backend/internal/orders"
	"github.com/avilesmarco/storefront-backend/pkg/db/models"
	pkgerrors "github.com/avilesmarco/storefront-backend/pkg/errors"
	"github.com/avilesmarco/storefront-backend/pkg/logger"
	"github.com/avilesmarco/storefront-backend/pkg/pagination"
	"github.com/avilesmarco/storefront-backend/pkg/types"
)

type orderLineItemResponse struct {
	ProductID      uuid.UUID `json:"product_id"`
	Name           string    `json:"name"`
	UnitPriceCents int64     `json:"unit_price_cents"`
	ImageRef       string    `json:"image_ref,omitempty"`
	Quantity       int       `json:"quantity"`
}

type orderResponse struct {
	ID              uuid.UUID               `json:"id"`
	Status          string                  `json:"status"`
	PaymentMethod   string                  `json:"payment_method"`
	PaymentStatus   string                  `json:"payment_status"`
	TrackingNumber  *string                 `json:"tracking_number,omitempty"`
	ShippingAddress types.Address           `json:"shipping_address"`
	SubtotalCents   int64                   `json:"subtotal_cents"`
	TaxCents        int64                   `json:"tax_cents"`
	ShippingCents   int64                   `json:"shipping_cents"`
	TotalCents      int64                   `json:"total_cents"`
	Items           []orderLineItemResponse `json:"items"`
	CreatedAt       time.Time               `json:"created_at"`
	UpdatedAt       time.Time               `json:"updated_at"`
}

type orderListResponse struct {
	Orders     []orderResponse `json:"orders"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

func newOrderResponse(order *models.Order) orderResponse {
	items := make([]orderLineItemResponse, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderLineItemResponse{
			ProductID:      item.ProductID,
			Name:           item.Name,
			UnitPriceCents: item.UnitPriceCents,
			ImageRef:       item.ImageRef,
			Quantity:       item.Quantity,
		})
	}

	return orderResponse{
		ID:              order.ID,
		Status:          string(order.Status),
		PaymentMethod:   string(order.PaymentMethod),
		PaymentStatus:   string(order.PaymentStatus),
		TrackingNumber:  order.TrackingNumber,
		ShippingAddress: order.ShippingAddress,
		SubtotalCents:   order.SubtotalCents,
		TaxCents:        order.TaxCents,
		ShippingCents:   order.ShippingCents,
		TotalCents:      order.TotalCents,
		Items:           items,
		CreatedAt:       order.CreatedAt,
		UpdatedAt:       order.UpdatedAt,
	}
}

// ListOrders returns the caller's orders, newest first, cursor paginated.
func ListOrders(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := middleware.ActorFromContext(r.Context())

		params := pagination.Params{Cursor: r.URL.Query().Get("cursor")}
		if raw := r.URL.Query().Get("limit"); raw != "" {
			limit, err := strconv.Atoi(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid limit"))
				return
			}
			params.Limit = limit
		}

		rows, next, err := svc.ListOrders(r.Context(), actor, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]orderResponse, 0, len(rows))
		for i := range rows {
			out = append(out, newOrderResponse(&rows[i]))
		}
		responses.WriteSuccess(w, orderListResponse{Orders: out, NextCursor: next})
	}
}

// GetOrder returns one order when the caller owns it or is an admin.
func GetOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := middleware.ActorFromContext(r.Context())

		orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id"))
			return
		}

		order, err := svc.GetOrder(r.Context(), actor, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderResponse(order))
	}
}
