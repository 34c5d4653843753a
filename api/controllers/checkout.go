package controllers

import (
	"net/http"
	"strings"

	"github.com/avilesmarco/storefront-backend/api/middleware"
	"github.com/avilesmarco/storefront-backend/api/responses"
	"github.com/avilesmarco/storefront-backend/api/validators"
	"github.com/avilesmarco/storefront-backend/internal/cart"
	"github.com/avilesmarco/storefront-backend/internal/checkout"
	"github.com/avilesmarco/storefront-backend/pkg/enums"
	pkgerrors "github.com/avilesmarco/storefront-backend/pkg/errors"
	"github.com/avilesmarco/storefront-backend/pkg/logger"
	"github.com/avilesmarco/storefront-backend/pkg/types"
)

type checkoutRequest struct {
	ShippingAddress types.Address `json:"shipping_address" validate:"required"`
	PaymentMethod   string        `json:"payment_method" validate:"required"`
}

// Checkout turns the session cart into an order. The session is bound to the
// principal first so a cart built before login is reconciled against the
// server copy, then the snapshot is taken at request time; success clears the
// local cart to mirror the server-side conversion already committed in the
// transaction.
func Checkout(svc checkout.Service, manager *cart.Manager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := middleware.ActorFromContext(r.Context())

		idempotencyKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
		if idempotencyKey == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required"))
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		method, err := enums.ParsePaymentMethod(payload.PaymentMethod)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method"))
			return
		}

		sessionID, err := bindSessionPrincipal(r, manager, logg)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		snapshot := manager.Get(r.Context(), sessionID)

		result, err := svc.Execute(r.Context(), actor, checkout.Input{
			Lines:           snapshot.Lines,
			ShippingAddress: payload.ShippingAddress,
			PaymentMethod:   method,
			IdempotencyKey:  idempotencyKey,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if result.Created {
			manager.ClearLocal(sessionID)
			responses.WriteSuccessStatus(w, http.StatusCreated, newOrderResponse(result.Order))
			return
		}
		responses.WriteSuccess(w, newOrderResponse(result.Order))
	}
}
